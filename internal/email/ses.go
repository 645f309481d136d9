// Package email sends transactional mail through AWS SES.
package email

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/reelhub/backend/internal/telemetry"
)

// Message is a single outgoing email
type Message struct {
	To      string
	Subject string
	Text    string
	// HTML defaults to the escaped text wrapped in the standard layout
	HTML string
}

// Sender delivers email
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SESAPI is the part of the SES client the service uses
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESService handles sending emails via AWS SES
type SESService struct {
	client    SESAPI
	fromEmail string
	fromName  string
}

var _ Sender = (*SESService)(nil)

// NewSESService creates a sender from the default AWS credential chain
func NewSESService(ctx context.Context, region, fromEmail string) (*SESService, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewSESServiceWithClient(ses.NewFromConfig(cfg), fromEmail, "Reelhub"), nil
}

// NewSESServiceWithClient wraps an existing client
func NewSESServiceWithClient(client SESAPI, fromEmail, fromName string) *SESService {
	return &SESService{client: client, fromEmail: fromEmail, fromName: fromName}
}

// Send delivers msg
func (e *SESService) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return fmt.Errorf("email recipient is required")
	}

	from := e.fromEmail
	if e.fromName != "" {
		from = fmt.Sprintf("%s <%s>", e.fromName, e.fromEmail)
	}

	htmlBody := msg.HTML
	if htmlBody == "" {
		htmlBody = renderHTML(msg.Subject, msg.Text)
	}

	input := &ses.SendEmailInput{
		Source: aws.String(from),
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(htmlBody), Charset: aws.String("UTF-8")},
				Text: &types.Content{Data: aws.String(msg.Text), Charset: aws.String("UTF-8")},
			},
		},
	}

	ctx, span := telemetry.TraceExternalCall(ctx, "ses", "send_email")
	_, err := e.client.SendEmail(ctx, input)
	telemetry.End(span, err)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func renderHTML(subject, text string) string {
	var paragraphs strings.Builder
	for _, p := range strings.Split(strings.TrimSpace(text), "\n\n") {
		paragraphs.WriteString("<p>" + strings.ReplaceAll(html.EscapeString(p), "\n", "<br>") + "</p>\n")
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #222;">
<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
<h2>%s</h2>
%s<hr>
<p style="color: #999; font-size: 12px;">You are receiving this because of your Reelhub notification settings.</p>
</div>
</body>
</html>`, html.EscapeString(subject), paragraphs.String())
}
