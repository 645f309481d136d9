package email

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSES struct {
	inputs []*ses.SendEmailInput
}

func (f *fakeSES) SendEmail(_ context.Context, in *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.inputs = append(f.inputs, in)
	return &ses.SendEmailOutput{MessageId: aws.String("m-1")}, nil
}

func TestSend(t *testing.T) {
	api := &fakeSES{}
	svc := NewSESServiceWithClient(api, "no-reply@reelhub.app", "Reelhub")

	err := svc.Send(context.Background(), Message{
		To:      "viewer@example.com",
		Subject: "New like",
		Text:    "alice liked <your> video",
	})
	require.NoError(t, err)
	require.Len(t, api.inputs, 1)

	in := api.inputs[0]
	assert.Equal(t, "Reelhub <no-reply@reelhub.app>", aws.ToString(in.Source))
	assert.Equal(t, []string{"viewer@example.com"}, in.Destination.ToAddresses)
	assert.Contains(t, aws.ToString(in.Message.Body.Html.Data), "alice liked &lt;your&gt; video")
	assert.Equal(t, "alice liked <your> video", aws.ToString(in.Message.Body.Text.Data))
}

func TestSendRequiresRecipient(t *testing.T) {
	svc := NewSESServiceWithClient(&fakeSES{}, "no-reply@reelhub.app", "")
	assert.Error(t, svc.Send(context.Background(), Message{Subject: "x"}))
}
