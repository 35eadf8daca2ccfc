package promo

import (
	"context"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"gamenewsbot/internal/dispatch"
	kit "gamenewsbot/internal/transport"
	logx "gamenewsbot/pkg/logx"
)

// Payload is the fixed promotional post.
type Payload struct {
	Caption    string
	ImageURL   string
	ButtonText string
	ButtonURL  string
}

// Sender is the dispatcher operation the job needs.
type Sender interface {
	Send(ctx context.Context, dest kit.Target, p dispatch.Post) dispatch.Result
}

// Outcome reports what a promo tick did.
type Outcome string

const (
	OutcomeCooling Outcome = "cooling"
	OutcomeSent    Outcome = "sent"
	OutcomeFailed  Outcome = "failed"
)

type Job struct {
	limiter *Limiter
	sender  Sender
	dest    kit.Target
	payload Payload
	now     func() time.Time
	log     logx.Logger
}

type JobOption func(*Job)

func WithClock(now func() time.Time) JobOption {
	return func(j *Job) {
		if now != nil {
			j.now = now
		}
	}
}

func NewJob(limiter *Limiter, sender Sender, dest kit.Target, payload Payload, log logx.Logger, opts ...JobOption) *Job {
	if log.IsZero() {
		log = logx.Nop()
	}
	payload.Caption = SanitizeCaption(payload.Caption)
	j := &Job{
		limiter: limiter,
		sender:  sender,
		dest:    dest,
		payload: payload,
		now:     time.Now,
		log:     log,
	}
	for _, o := range opts {
		if o != nil {
			o(j)
		}
	}
	return j
}

// Run is RunAt with the job clock.
func (j *Job) Run(ctx context.Context) (Outcome, error) {
	return j.RunAt(ctx, j.now())
}

// RunAt sends the promo when the limiter is eligible at now and records
// now as the send time. Scheduled runs pass their trigger time, so ticks
// exactly one period apart stay due no matter how long each waited in the
// queue. A failed send leaves the limiter untouched so the next tick tries
// again.
func (j *Job) RunAt(ctx context.Context, now time.Time) (Outcome, error) {
	if !j.limiter.IsDue(now) {
		j.log.Debug("promo cooling", logx.Time("next_due", j.limiter.NextDue()))
		return OutcomeCooling, nil
	}

	post := dispatch.Post{
		Caption:  j.payload.Caption,
		ImageURL: j.payload.ImageURL,
	}
	if strings.TrimSpace(j.payload.ButtonURL) != "" {
		post.Buttons = []kit.Button{{Text: j.payload.ButtonText, URL: j.payload.ButtonURL}}
	}

	res := j.sender.Send(ctx, j.dest, post)
	if !res.OK {
		j.log.Warn("promo dispatch failed", logx.String("reason", string(res.Reason)), logx.Err(res.Err))
		return OutcomeFailed, res.Err
	}
	if err := j.limiter.MarkSent(ctx, now); err != nil {
		j.log.Warn("promo sent but state not persisted", logx.Err(err))
	}
	j.log.Info("promo sent", logx.Int("message_id", res.MessageID), logx.Time("next_due", j.limiter.NextDue()))
	return OutcomeSent, nil
}

var captionPolicy = func() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("b", "strong", "i", "em", "u", "ins", "s", "strike", "del", "code", "pre", "blockquote")
	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("http", "https", "tg")
	p.RequireParseableURLs(true)
	return p
}()

// SanitizeCaption keeps only the HTML subset Telegram accepts in captions.
// Operator-supplied captions come from config and may contain anything.
func SanitizeCaption(s string) string {
	return strings.TrimSpace(captionPolicy.Sanitize(s))
}
