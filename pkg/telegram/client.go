package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"campaignhub-botgateway/pkg/config"

	"github.com/go-resty/resty/v2"
	"go.uber.org/fx"
)

var Module = fx.Module("telegram",
	fx.Provide(NewClient),
)

// ErrTransport marks a send that never produced a platform verdict.
var ErrTransport = errors.New("telegram: transport failure")

// Client issues outbound Bot API calls. Tokens are per organization, so they
// travel with each call.
type Client interface {
	SendMessage(ctx context.Context, token, chatID, text string, opts ...SendOption) (*SendResponse, error)
}

// SendResponse is the platform verdict. OK=false is a rejection, not an error.
type SendResponse struct {
	OK          bool         `json:"ok"`
	Description string       `json:"description,omitempty"`
	ErrorCode   int          `json:"error_code,omitempty"`
	Result      *SentMessage `json:"result,omitempty"`
}

type SentMessage struct {
	MessageID int64 `json:"message_id"`
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode,omitempty"`
	ReplyToMessageID      int64  `json:"reply_to_message_id,omitempty"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview,omitempty"`
}

type SendOption func(*sendMessageRequest)

// WithParseMode sets the markup dialect, e.g. "HTML".
func WithParseMode(mode string) SendOption {
	return func(r *sendMessageRequest) { r.ParseMode = mode }
}

func WithReplyTo(messageID int64) SendOption {
	return func(r *sendMessageRequest) { r.ReplyToMessageID = messageID }
}

func WithoutPreview() SendOption {
	return func(r *sendMessageRequest) { r.DisableWebPagePreview = true }
}

type httpClient struct {
	rc *resty.Client
}

func NewClient(cfg *config.Config) Client {
	return NewHTTPClient(cfg.Telegram.APIBaseURL, cfg.Telegram.Timeout)
}

func NewHTTPClient(baseURL string, timeout time.Duration) Client {
	rc := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	return &httpClient{rc: rc}
}

func (c *httpClient) SendMessage(ctx context.Context, token, chatID, text string, opts ...SendOption) (*SendResponse, error) {
	req := sendMessageRequest{ChatID: chatID, Text: text}
	for _, opt := range opts {
		opt(&req)
	}

	var out SendResponse
	resp, err := c.rc.R().
		SetContext(ctx).
		SetPathParam("token", token).
		SetBody(req).
		SetResult(&out).
		SetError(&out).
		Post("/bot{token}/sendMessage")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	// The Bot API answers rejections with 4xx and a JSON body. Anything without
	// that body is a gateway or proxy failure.
	if !out.OK && out.Description == "" && out.ErrorCode == 0 {
		return nil, fmt.Errorf("%w: unexpected response status %d", ErrTransport, resp.StatusCode())
	}

	return &out, nil
}
