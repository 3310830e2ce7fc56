package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"fundingwatch/config"
)

func newTestTelegram(url string) *Telegram {
	return NewTelegram(config.TelegramConfig{
		APIURL:  url,
		Token:   "123:abc",
		ChatID:  "-1001",
		Timeout: 2 * time.Second,
	})
}

func TestTelegramSend(t *testing.T) {
	var gotPath string
	var got sendMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7}}`))
	}))
	defer srv.Close()

	ok := newTestTelegram(srv.URL).Send(context.Background(), "<b>hello</b>")
	assert.True(t, ok)
	assert.Equal(t, "/bot123:abc/sendMessage", gotPath)
	assert.Equal(t, sendMessageRequest{ChatID: "-1001", Text: "<b>hello</b>", ParseMode: "HTML"}, got)
}

func TestTelegramSendRejected(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "not ok", status: http.StatusBadRequest, body: `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`},
		{name: "ok false with 200", status: http.StatusOK, body: `{"ok":false}`},
		{name: "not json", status: http.StatusBadGateway, body: `<html>bad gateway</html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			assert.False(t, newTestTelegram(srv.URL).Send(context.Background(), "msg"))
		})
	}
}

func TestTelegramSendUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	assert.False(t, newTestTelegram(url).Send(context.Background(), "msg"))
}

func TestTelegramNotConfigured(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	tg := NewTelegram(config.TelegramConfig{APIURL: srv.URL, Token: "123:abc"})
	assert.False(t, tg.Send(context.Background(), "msg"))
	assert.Zero(t, calls)
}
