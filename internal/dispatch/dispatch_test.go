package dispatch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	kit "gamenewsbot/internal/transport"
	logx "gamenewsbot/pkg/logx"
)

type fakeSender struct {
	photos []string
	texts  []string
	opts   []*kit.SendOptions
	err    error
	panic  bool
	block  bool
}

func (f *fakeSender) SendText(ctx context.Context, to kit.Target, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	return f.send(ctx, to, text, opt, false)
}

func (f *fakeSender) SendPhoto(ctx context.Context, to kit.Target, photoURL, caption string, opt *kit.SendOptions) (kit.MessageRef, error) {
	return f.send(ctx, to, caption, opt, true)
}

func (f *fakeSender) send(ctx context.Context, to kit.Target, text string, opt *kit.SendOptions, photo bool) (kit.MessageRef, error) {
	if f.panic {
		panic("boom")
	}
	if f.block {
		<-ctx.Done()
		return kit.MessageRef{}, ctx.Err()
	}
	if f.err != nil {
		return kit.MessageRef{}, f.err
	}
	if photo {
		f.photos = append(f.photos, text)
	} else {
		f.texts = append(f.texts, text)
	}
	f.opts = append(f.opts, opt)
	return kit.MessageRef{Chat: to.String(), MessageID: 7}, nil
}

func TestSendOutcomes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		sender *fakeSender
		post   Post
		cfg    Config
		ok     bool
		reason Reason
	}{
		{"photo", &fakeSender{}, Post{Caption: "<b>t</b>", ImageURL: "https://x/i.jpg"}, Config{}, true, ReasonNone},
		{"text", &fakeSender{}, Post{Caption: "<b>t</b>"}, Config{}, true, ReasonNone},
		{"empty caption", &fakeSender{}, Post{Caption: "  "}, Config{}, false, ReasonEmptyCaption},
		{"photo caption too long", &fakeSender{}, Post{Caption: strings.Repeat("я", MaxCaptionRunes+1), ImageURL: "https://x/i.jpg"}, Config{}, false, ReasonCaptionTooLong},
		{"text under text limit", &fakeSender{}, Post{Caption: strings.Repeat("я", MaxCaptionRunes+1)}, Config{}, true, ReasonNone},
		{"flood", &fakeSender{err: &kit.RateLimitedError{Err: errors.New("429"), RetryAfter: 3 * time.Second}}, Post{Caption: "x"}, Config{}, false, ReasonFlood},
		{"transport", &fakeSender{err: errors.New("bad request")}, Post{Caption: "x"}, Config{}, false, ReasonTransport},
		{"panic", &fakeSender{panic: true}, Post{Caption: "x"}, Config{}, false, ReasonPanic},
		{"timeout", &fakeSender{block: true}, Post{Caption: "x"}, Config{Timeout: 20 * time.Millisecond}, false, ReasonTimeout},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			d := New(tc.sender, tc.cfg, logx.Nop())
			res := d.Send(context.Background(), kit.Target("@c"), tc.post)
			if res.OK != tc.ok || res.Reason != tc.reason {
				t.Fatalf("result = %+v, want ok=%v reason=%q", res, tc.ok, tc.reason)
			}
			if !res.OK && res.Err == nil {
				t.Fatalf("failure without error: %+v", res)
			}
			if res.OK && res.MessageID != 7 {
				t.Fatalf("message id = %d", res.MessageID)
			}
		})
	}
}

func TestFloodCarriesRetryAfter(t *testing.T) {
	t.Parallel()

	d := New(&fakeSender{err: &kit.RateLimitedError{Err: errors.New("429"), RetryAfter: 9 * time.Second}}, Config{}, logx.Nop())
	res := d.Send(context.Background(), kit.Target("@c"), Post{Caption: "x"})
	if res.RetryAfter != 9*time.Second {
		t.Fatalf("RetryAfter = %s", res.RetryAfter)
	}
}

func TestSendPassesOptions(t *testing.T) {
	t.Parallel()

	f := &fakeSender{}
	d := New(f, Config{}, logx.Nop())
	btn := []kit.Button{{Text: "go", URL: "https://t.me/x"}}
	res := d.Send(context.Background(), kit.Target("@c"), Post{Caption: "x", ImageURL: "https://x/i.jpg", Buttons: btn})
	if !res.OK {
		t.Fatalf("send failed: %+v", res)
	}
	if len(f.photos) != 1 || len(f.texts) != 0 {
		t.Fatalf("photos=%d texts=%d", len(f.photos), len(f.texts))
	}
	if f.opts[0].ParseMode != "HTML" || len(f.opts[0].Buttons) != 1 {
		t.Fatalf("opts = %+v", f.opts[0])
	}
}

func TestCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := New(&fakeSender{}, Config{RatePerSec: 1}, logx.Nop())
	res := d.Send(ctx, kit.Target("@c"), Post{Caption: "x"})
	if res.OK || res.Reason != ReasonCanceled {
		t.Fatalf("result = %+v, want canceled", res)
	}
}
