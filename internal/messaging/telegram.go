package messaging

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/botfleet/registry/internal/domain"
	"github.com/go-resty/resty/v2"
)

const defaultTelegramTimeout = 15 * time.Second

// APIError is a non-2xx answer from the Bot API.
type APIError struct {
	StatusCode  int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram api: %d %s", e.StatusCode, e.Description)
}

// Permanent reports whether retrying the same request cannot succeed, which
// is every client error except rate limiting.
func (e *APIError) Permanent() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500 && e.StatusCode != http.StatusTooManyRequests
}

type Telegram struct {
	client *resty.Client
}

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64 `json:"message_id"`
		Date      int64 `json:"date"`
	} `json:"result"`
	Parameters struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

func NewTelegram(baseURL string, timeout time.Duration, retries int) *Telegram {
	baseURL = strings.TrimSuffix(baseURL, "/")
	if baseURL == "" {
		baseURL = DefaultTelegramAPIURL
	}
	if timeout <= 0 {
		timeout = defaultTelegramTimeout
	}
	if retries < 0 {
		retries = 0
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(retries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			code := resp.StatusCode()
			return code == http.StatusTooManyRequests || code >= 500
		}).
		SetRetryAfter(func(c *resty.Client, resp *resty.Response) (time.Duration, error) {
			if resp != nil && resp.StatusCode() == http.StatusTooManyRequests {
				if s := resp.Header().Get("Retry-After"); s != "" {
					if secs, err := strconv.Atoi(s); err == nil {
						return time.Duration(secs) * time.Second, nil
					}
				}
			}
			return 0, nil
		})

	return &Telegram{client: client}
}

func (t *Telegram) Name() string { return ProviderTelegram }

func (t *Telegram) Send(ctx context.Context, msg domain.OutboundMessage) (*domain.Delivery, error) {
	var out sendMessageResponse
	resp, err := t.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetPathParam("token", msg.Token).
		SetBody(sendMessageRequest{ChatID: msg.ChatID, Text: msg.Text}).
		SetResult(&out).
		SetError(&out).
		Post("/bot{token}/sendMessage")
	if err != nil {
		return nil, fmt.Errorf("telegram send: %w", err)
	}
	if resp.IsError() || !out.OK {
		desc := out.Description
		if desc == "" {
			desc = resp.Status()
		}
		return nil, &APIError{StatusCode: resp.StatusCode(), Description: desc}
	}

	sent := time.Now().UTC()
	if out.Result.Date > 0 {
		sent = time.Unix(out.Result.Date, 0).UTC()
	}
	return &domain.Delivery{
		ID:       strconv.FormatInt(out.Result.MessageID, 10),
		Provider: ProviderTelegram,
		SentAt:   sent,
	}, nil
}
