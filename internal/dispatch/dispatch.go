// Package dispatch delivers one post to the destination channel and
// reports the outcome as a value. It never panics and never retries.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	kit "gamenewsbot/internal/transport"
	logx "gamenewsbot/pkg/logx"
)

// Telegram limits, counted in characters after entity parsing. Counting
// runes of the HTML source is stricter, which is what we want.
const (
	MaxCaptionRunes = 1024
	MaxTextRunes    = 4096
)

// Post is what gets published: an optional photo with an HTML caption, or
// a plain HTML message when ImageURL is empty.
type Post struct {
	Caption  string
	ImageURL string
	Buttons  []kit.Button
	// DisablePreview applies to text posts only.
	DisablePreview bool
}

type Reason string

const (
	ReasonNone           Reason = ""
	ReasonEmptyCaption   Reason = "empty_caption"
	ReasonCaptionTooLong Reason = "caption_too_long"
	ReasonFlood          Reason = "flood"
	ReasonTimeout        Reason = "timeout"
	ReasonCanceled       Reason = "canceled"
	ReasonTransport      Reason = "transport"
	ReasonPanic          Reason = "panic"
)

// Result is Success (OK) or Failure (Reason, Err).
type Result struct {
	OK         bool
	MessageID  int
	Reason     Reason
	Err        error
	RetryAfter time.Duration
}

func failure(reason Reason, err error) Result {
	return Result{Reason: reason, Err: err}
}

type Config struct {
	// RatePerSec paces sends; <= 0 disables pacing.
	RatePerSec float64
	// Timeout bounds a single send including the pacing wait.
	Timeout   time.Duration
	ParseMode string
}

type Dispatcher struct {
	sender  kit.Sender
	cfg     Config
	limiter *rate.Limiter
	log     logx.Logger
}

func New(sender kit.Sender, cfg Config, log logx.Logger) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.ParseMode == "" {
		cfg.ParseMode = "HTML"
	}
	d := &Dispatcher{sender: sender, cfg: cfg, log: log}
	if cfg.RatePerSec > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1)
	}
	return d
}

// Send publishes p to dest.
func (d *Dispatcher) Send(ctx context.Context, dest kit.Target, p Post) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("dispatch panic", logx.Any("panic", r), logx.Stack(string(debug.Stack())))
			res = failure(ReasonPanic, fmt.Errorf("dispatch panic: %v", r))
		}
	}()

	if strings.TrimSpace(p.Caption) == "" {
		return failure(ReasonEmptyCaption, errors.New("caption is empty"))
	}
	limit := MaxTextRunes
	if p.ImageURL != "" {
		limit = MaxCaptionRunes
	}
	if n := utf8.RuneCountInString(p.Caption); n > limit {
		return failure(ReasonCaptionTooLong, fmt.Errorf("caption has %d characters, limit %d", n, limit))
	}

	if d.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
	}
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return classify(ctx, err)
		}
	}

	opt := &kit.SendOptions{
		ParseMode:      d.cfg.ParseMode,
		DisablePreview: p.DisablePreview,
		Buttons:        p.Buttons,
	}
	var (
		ref kit.MessageRef
		err error
	)
	if p.ImageURL != "" {
		ref, err = d.sender.SendPhoto(ctx, dest, p.ImageURL, p.Caption, opt)
	} else {
		ref, err = d.sender.SendText(ctx, dest, p.Caption, opt)
	}
	if err != nil {
		return classify(ctx, err)
	}
	return Result{OK: true, MessageID: ref.MessageID}
}

func classify(ctx context.Context, err error) Result {
	var rl *kit.RateLimitedError
	switch {
	case errors.As(err, &rl):
		r := failure(ReasonFlood, err)
		r.RetryAfter = rl.RetryAfter
		return r
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return failure(ReasonTimeout, err)
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return failure(ReasonCanceled, err)
	default:
		return failure(ReasonTransport, err)
	}
}
