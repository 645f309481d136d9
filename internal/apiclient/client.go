// Package apiclient is the HTTP client reelctl uses to talk to a running API.
package apiclient

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	json "github.com/json-iterator/go"
	"github.com/reelhub/backend/internal/telemetry"
)

const userAgent = "reelctl/0.1.0"

// Options configures a Client
type Options struct {
	BaseURL string
	Timeout time.Duration
	Token   string
	// Impersonate is sent as X-Impersonate-User; the API honours it for admins only
	Impersonate string
	Debug       bool
}

// Client wraps resty with the Reelhub API routes
type Client struct {
	http *resty.Client
}

// New creates a client for the API at opts.BaseURL
func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	httpClient := telemetry.NewInstrumentedHTTPClient(telemetry.HTTPClientConfig{
		ServiceName: "reelhub-api",
		Timeout:     timeout,
	})
	http := resty.NewWithClient(httpClient).
		SetBaseURL(opts.BaseURL).
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent).
		SetDebug(opts.Debug)
	if opts.Token != "" {
		http.SetAuthToken(opts.Token)
	}
	if opts.Impersonate != "" {
		http.SetHeader("X-Impersonate-User", opts.Impersonate)
	}
	return &Client{http: http}
}

// Error is a non-2xx API response
type Error struct {
	StatusCode int
	Code       string
	Message    string
	Field      string
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%d] %s: %s (field %s)", e.StatusCode, e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("[%d] %s: %s", e.StatusCode, e.Code, e.Message)
}

// parseError decodes the API error body, falling back to the raw body
func parseError(resp *resty.Response) error {
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Field   string `json:"field"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err == nil && body.Code != "" {
		return &Error{StatusCode: resp.StatusCode(), Code: body.Code, Message: body.Message, Field: body.Field}
	}
	return &Error{StatusCode: resp.StatusCode(), Code: "unknown_error", Message: string(resp.Body())}
}

func (c *Client) do(req *resty.Request, method, path string) error {
	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if !resp.IsSuccess() {
		return parseError(resp)
	}
	return nil
}

// Health is the /health response
type Health struct {
	Status  string                 `json:"status"`
	Service string                 `json:"service"`
	Checks  map[string]interface{} `json:"checks"`
}

// Health calls /health. An unhealthy API still decodes; the error reports
// the status code.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var out Health
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).SetError(&out).Get("/health")
	if err != nil {
		return nil, fmt.Errorf("GET /health: %w", err)
	}
	if !resp.IsSuccess() {
		return &out, fmt.Errorf("api is %s (%s)", out.Status, resp.Status())
	}
	return &out, nil
}

// Video is the subset of a feed item reelctl prints
type Video struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	UserID    string `json:"user_id"`
	LikeCount int64  `json:"like_count"`
	ViewCount int64  `json:"view_count"`
	Liked     bool   `json:"liked"`
}

// Feed fetches one page of the global feed
func (c *Client) Feed(ctx context.Context, limit, offset int) ([]Video, error) {
	var out struct {
		Videos []Video `json:"videos"`
	}
	req := c.http.R().SetContext(ctx).SetResult(&out).SetQueryParams(map[string]string{
		"limit":  strconv.Itoa(limit),
		"offset": strconv.Itoa(offset),
	})
	if err := c.do(req, resty.MethodGet, "/api/v1/feed"); err != nil {
		return nil, err
	}
	return out.Videos, nil
}

// Wallet is the caller's coin balance
type Wallet struct {
	UserID  string `json:"user_id"`
	Balance int64  `json:"balance"`
}

// Wallet returns the authenticated user's wallet
func (c *Client) Wallet(ctx context.Context) (*Wallet, error) {
	var out struct {
		Wallet Wallet `json:"wallet"`
	}
	if err := c.do(c.http.R().SetContext(ctx).SetResult(&out), resty.MethodGet, "/api/v1/wallet"); err != nil {
		return nil, err
	}
	return &out.Wallet, nil
}

// Transaction is one wallet ledger entry
type Transaction struct {
	ID           string `json:"id"`
	Delta        int64  `json:"delta"`
	BalanceAfter int64  `json:"balance_after"`
	Reason       string `json:"reason"`
}

// AwardCoins credits a user; the token must belong to an admin
func (c *Client) AwardCoins(ctx context.Context, userID string, amount int64, reference string) (*Transaction, error) {
	var out struct {
		Transaction Transaction `json:"transaction"`
	}
	req := c.http.R().SetContext(ctx).SetResult(&out).SetBody(map[string]interface{}{
		"user_id":   userID,
		"amount":    amount,
		"reference": reference,
	})
	if err := c.do(req, resty.MethodPost, "/api/v1/admin/wallet/award"); err != nil {
		return nil, err
	}
	return &out.Transaction, nil
}

// PublishSummary reports one scheduled publish pass
type PublishSummary struct {
	Processed int `json:"processed"`
	Published int `json:"published"`
	Failed    int `json:"failed"`
}

// RunScheduledPublish triggers a publish pass on the server; admins only
func (c *Client) RunScheduledPublish(ctx context.Context, batchSize int) (*PublishSummary, error) {
	var out struct {
		Summary PublishSummary `json:"summary"`
	}
	req := c.http.R().SetContext(ctx).SetResult(&out).SetQueryParam("batch_size", strconv.Itoa(batchSize))
	if err := c.do(req, resty.MethodPost, "/api/v1/admin/scheduled-videos/run"); err != nil {
		return nil, err
	}
	return &out.Summary, nil
}
