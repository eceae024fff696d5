package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/botfleet/registry/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTelegram_Send(t *testing.T) {
	var gotPath string
	var gotBody sendMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":77,"date":1714564800}}`))
	}))
	defer srv.Close()

	tg := NewTelegram(srv.URL+"/", time.Second, 0)
	d, err := tg.Send(context.Background(), domain.OutboundMessage{Token: "123:abc", ChatID: "@nyc_news", Text: "hello"})
	require.NoError(t, err)

	assert.Equal(t, "/bot123:abc/sendMessage", gotPath)
	assert.Equal(t, "@nyc_news", gotBody.ChatID)
	assert.Equal(t, "hello", gotBody.Text)
	assert.Equal(t, "77", d.ID)
	assert.Equal(t, ProviderTelegram, d.Provider)
	assert.Equal(t, time.Unix(1714564800, 0).UTC(), d.SentAt)
}

func TestTelegram_SendAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
	}))
	defer srv.Close()

	tg := NewTelegram(srv.URL, time.Second, 2)
	_, err := tg.Send(context.Background(), domain.OutboundMessage{Token: "t", ChatID: "c", Text: "x"})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "Bad Request: chat not found", apiErr.Description)
	assert.True(t, apiErr.Permanent())
}

func TestTelegram_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"ok":false,"description":"upstream"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1}}`))
	}))
	defer srv.Close()

	tg := NewTelegram(srv.URL, time.Second, 1)
	d, err := tg.Send(context.Background(), domain.OutboundMessage{Token: "t", ChatID: "c", Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, "1", d.ID)
	assert.Equal(t, int32(2), calls.Load())
}

func TestAPIError_Permanent(t *testing.T) {
	assert.True(t, (&APIError{StatusCode: 401}).Permanent())
	assert.True(t, (&APIError{StatusCode: 403}).Permanent())
	assert.False(t, (&APIError{StatusCode: 429}).Permanent())
	assert.False(t, (&APIError{StatusCode: 502}).Permanent())
}
