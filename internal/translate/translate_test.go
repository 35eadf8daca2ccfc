package translate

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	logx "gamenewsbot/pkg/logx"
)

type stubBackend struct {
	out   string
	err   error
	calls int
	slow  bool
	panic bool
}

func (s *stubBackend) Name() string { return "stub" }

func (s *stubBackend) Translate(ctx context.Context, text, src, dst string) (string, error) {
	s.calls++
	if s.panic {
		panic("kaboom")
	}
	if s.slow {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return s.out, s.err
}

func TestTranslateFallback(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		backend    *stubBackend
		in         string
		want       string
		translated bool
		wantErr    bool
	}{
		{"success", &stubBackend{out: " Привет "}, "Hello", "Привет", true, false},
		{"backend error", &stubBackend{err: errors.New("503")}, "Hello", "Hello", false, true},
		{"empty output", &stubBackend{out: "  "}, "Hello", "Hello", false, true},
		{"panic", &stubBackend{panic: true}, "Hello", "Hello", false, true},
		{"timeout", &stubBackend{slow: true}, "Hello", "Hello", false, true},
		{"empty input", &stubBackend{out: "x"}, "", "", false, false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			tr := New(tc.backend, Config{Timeout: 20 * time.Millisecond}, logx.Nop())
			res := tr.Translate(context.Background(), tc.in)
			if res.Text != tc.want || res.Translated != tc.translated || (res.Err != nil) != tc.wantErr {
				t.Fatalf("result = %+v, want text=%q translated=%v err=%v", res, tc.want, tc.translated, tc.wantErr)
			}
		})
	}
}

func TestSameLanguageSkipsBackend(t *testing.T) {
	t.Parallel()

	b := &stubBackend{out: "x"}
	tr := New(b, Config{Source: "ru", Target: "RU"}, logx.Nop())
	if res := tr.Translate(context.Background(), "Привет"); res.Text != "Привет" || res.Translated {
		t.Fatalf("result = %+v", res)
	}
	if b.calls != 0 {
		t.Fatalf("backend called %d times", b.calls)
	}
}

func TestGoogleBackend(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("client") != "gtx" || q.Get("sl") != "en" || q.Get("tl") != "ru" || q.Get("q") != "Hello. World." {
			http.Error(w, "bad query", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`[[["Привет. ","Hello. ",null,null,10],["Мир.","World.",null,null,10]],null,"en"]`))
	}))
	defer srv.Close()

	g := NewGoogle(srv.Client())
	g.Endpoint = srv.URL
	tr := New(g, Config{}, logx.Nop())
	res := tr.Translate(context.Background(), "Hello. World.")
	if !res.Translated || res.Text != "Привет. Мир." {
		t.Fatalf("result = %+v", res)
	}
}

func TestGoogleBackendErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		status int
		body   string
	}{
		{"status", http.StatusTooManyRequests, `[]`},
		{"not json", http.StatusOK, `<html>`},
		{"empty", http.StatusOK, `[]`},
		{"no segments", http.StatusOK, `[[],null,"en"]`},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()
			g := NewGoogle(srv.Client())
			g.Endpoint = srv.URL
			if _, err := g.Translate(context.Background(), "Hello", "en", "ru"); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestNewBackend(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	for _, p := range []string{"", "google", "none"} {
		b, c, err := NewBackend(ctx, BackendConfig{Provider: p})
		if err != nil || b == nil || c == nil {
			t.Fatalf("provider %q: b=%v err=%v", p, b, err)
		}
	}
	if _, _, err := NewBackend(ctx, BackendConfig{Provider: "gemini"}); err == nil {
		t.Fatalf("gemini without key should fail")
	}
	if _, _, err := NewBackend(ctx, BackendConfig{Provider: "deepl"}); err == nil {
		t.Fatalf("unknown provider should fail")
	}
}
