package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	kit "gamenewsbot/internal/transport"
	logx "gamenewsbot/pkg/logx"
)

type botAPI struct {
	mu       sync.Mutex
	calls    []string
	payloads []map[string]any
	reply    string
}

func (b *botAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	b.mu.Lock()
	b.calls = append(b.calls, r.URL.Path)
	b.payloads = append(b.payloads, body)
	reply := b.reply
	b.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(reply))
}

func newTestAdapter(t *testing.T, api *botAPI) *Adapter {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	a, err := New(Config{Token: "123:abc", APIURL: srv.URL, Offline: true, RequestTimeout: 5 * time.Second}, logx.Nop())
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	return a
}

func TestSendTextWithButton(t *testing.T) {
	t.Parallel()

	api := &botAPI{reply: `{"ok":true,"result":{"message_id":42,"chat":{"id":-100123}}}`}
	a := newTestAdapter(t, api)

	ref, err := a.SendText(context.Background(), kit.Target("@gamenews"), "<b>hi</b>", &kit.SendOptions{
		ParseMode: "HTML",
		Buttons:   []kit.Button{{Text: "Forest Road", URL: "https://t.me/ForestRoad1"}},
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if ref.MessageID != 42 || ref.Chat != "@gamenews" {
		t.Fatalf("ref = %+v", ref)
	}

	api.mu.Lock()
	defer api.mu.Unlock()
	if len(api.calls) != 1 || !strings.HasSuffix(api.calls[0], "/sendMessage") {
		t.Fatalf("calls = %v", api.calls)
	}
	p := api.payloads[0]
	if p["chat_id"] != "@gamenews" || p["parse_mode"] != "HTML" {
		t.Fatalf("payload = %v", p)
	}
	if rm, _ := p["reply_markup"].(string); !strings.Contains(rm, "https://t.me/ForestRoad1") {
		t.Fatalf("reply_markup = %v", p["reply_markup"])
	}
}

func TestFloodErrorIsMapped(t *testing.T) {
	t.Parallel()

	api := &botAPI{reply: `{"ok":false,"error_code":429,"description":"Too Many Requests: retry after 7","parameters":{"retry_after":7}}`}
	a := newTestAdapter(t, api)

	_, err := a.SendText(context.Background(), kit.Target("@gamenews"), "x", nil)
	var rl *kit.RateLimitedError
	if !errors.As(err, &rl) {
		t.Fatalf("err = %v, want RateLimitedError", err)
	}
	if rl.RetryAfter != 7*time.Second {
		t.Fatalf("RetryAfter = %s", rl.RetryAfter)
	}
}

func TestCanceledContextSkipsRequest(t *testing.T) {
	t.Parallel()

	api := &botAPI{reply: `{"ok":true,"result":{"message_id":1,"chat":{"id":1}}}`}
	a := newTestAdapter(t, api)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := a.SendPhoto(ctx, kit.Target("@gamenews"), "https://x/img.jpg", "c", nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	api.mu.Lock()
	defer api.mu.Unlock()
	if len(api.calls) != 0 {
		t.Fatalf("no request expected, got %v", api.calls)
	}
}

func TestNewRejectsEmptyToken(t *testing.T) {
	t.Parallel()
	if _, err := New(Config{Token: " "}, logx.Nop()); err == nil {
		t.Fatalf("expected error")
	}
}
