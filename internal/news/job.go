// Package news runs one aggregation cycle: fetch every feed, skip links
// that were posted recently, translate, publish and record.
package news

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"gamenewsbot/internal/dedup"
	"gamenewsbot/internal/dispatch"
	"gamenewsbot/internal/feed"
	"gamenewsbot/internal/metrics"
	"gamenewsbot/internal/translate"
	kit "gamenewsbot/internal/transport"
	logx "gamenewsbot/pkg/logx"
)

// CommitTimeout bounds recording a dispatch that already went out. It
// does not follow the cycle context.
const CommitTimeout = 10 * time.Second

// ErrStoreUnavailable stops a cycle when dispatch history cannot be read.
var ErrStoreUnavailable = errors.New("news: dedup store unavailable")

type FeedSource interface {
	Fetch(ctx context.Context, url string) ([]feed.Entry, error)
}

type Deduper interface {
	Acquire(ctx context.Context, link string, asOf time.Time) (*dedup.Claim, error)
}

type Translator interface {
	Translate(ctx context.Context, text string) translate.Result
}

type Sender interface {
	Send(ctx context.Context, dest kit.Target, p dispatch.Post) dispatch.Result
}

// CycleStats summarizes one Run.
type CycleStats struct {
	ID         string
	Feeds      int
	FeedErrors int
	Entries    int
	Skipped    int
	Sent       int
	Failed     int
}

type Deps struct {
	Feeds      []string
	Source     FeedSource
	Dedup      Deduper
	Translator Translator
	Sender     Sender
	Dest       kit.Target
	Formatter  Formatter
	Metrics    *metrics.Collector
	Log        logx.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

type Job struct {
	d Deps
}

func NewJob(d Deps) (*Job, error) {
	if d.Source == nil || d.Dedup == nil || d.Sender == nil {
		return nil, errors.New("news: source, dedup and sender are required")
	}
	if d.Translator == nil {
		d.Translator = translate.New(translate.None{}, translate.Config{}, logx.Nop())
	}
	if d.Log.IsZero() {
		d.Log = logx.Nop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Job{d: d}, nil
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeSent
	outcomeFailed
	outcomeFlood
	outcomeStoreError
	// sent but the dispatch could not be recorded
	outcomeRecordError
)

// Run executes one cycle. It returns an error only when the cycle was cut
// short: the store could not be queried, Telegram asked to back off, or
// ctx was canceled. Feed and entry failures are counted, not returned.
func (j *Job) Run(ctx context.Context) (CycleStats, error) {
	stats := CycleStats{ID: uuid.NewString()}
	log := j.d.Log.With(logx.String("cycle_id", stats.ID))
	started := time.Now()
	now := j.d.Now().UTC()

	var runErr error
feeds:
	for _, url := range j.d.Feeds {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		stats.Feeds++
		entries, err := j.fetch(ctx, url)
		if err != nil {
			stats.FeedErrors++
			log.Warn("feed skipped", logx.String("feed", url), logx.Err(err))
			continue
		}
		log.Debug("feed fetched", logx.String("feed", url), logx.Int("entries", len(entries)))

		for _, e := range entries {
			if err := ctx.Err(); err != nil {
				runErr = err
				break feeds
			}
			stats.Entries++
			out, err := j.processEntry(ctx, log, e, now)
			switch out {
			case outcomeSkipped:
				stats.Skipped++
			case outcomeSent, outcomeRecordError:
				stats.Sent++
			case outcomeFailed:
				stats.Failed++
			case outcomeFlood:
				stats.Failed++
				runErr = err
				log.Warn("flood control hit, remaining entries wait for the next cycle", logx.Err(err))
				break feeds
			case outcomeStoreError:
				runErr = fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
				log.Error("dedup store query failed, dispatching stopped for this cycle", logx.Err(err))
				break feeds
			}
		}
	}

	result := "ok"
	switch {
	case errors.Is(runErr, ErrStoreUnavailable):
		result = "store_error"
	case errors.Is(runErr, context.Canceled), errors.Is(runErr, context.DeadlineExceeded):
		result = "canceled"
	case runErr != nil:
		result = "flood"
	}
	j.d.Metrics.CycleFinished(result, time.Since(started))
	log.Info("news cycle finished",
		logx.String("result", result),
		logx.Int("feeds", stats.Feeds),
		logx.Int("feed_errors", stats.FeedErrors),
		logx.Int("entries", stats.Entries),
		logx.Int("skipped", stats.Skipped),
		logx.Int("sent", stats.Sent),
		logx.Int("failed", stats.Failed),
		logx.Duration("took", time.Since(started)),
	)
	return stats, runErr
}

func (j *Job) fetch(ctx context.Context, url string) (entries []feed.Entry, err error) {
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("feed panic: %v", r)
		}
		j.d.Metrics.FeedFetched(err == nil, time.Since(started))
	}()
	return j.d.Source.Fetch(ctx, url)
}

// processEntry never lets a panic out: whatever goes wrong with one entry
// is logged and the cycle moves on.
func (j *Job) processEntry(ctx context.Context, log logx.Logger, e feed.Entry, now time.Time) (out outcome, err error) {
	log = log.With(logx.String("link", e.Link))
	defer func() {
		if r := recover(); r != nil {
			log.Error("entry panic", logx.Any("panic", r), logx.Stack(string(debug.Stack())))
			out, err = outcomeFailed, fmt.Errorf("entry panic: %v", r)
		}
		j.d.Metrics.Entry(outcomeLabel(out))
	}()

	claim, err := j.d.Dedup.Acquire(ctx, e.Link, now)
	switch {
	case errors.Is(err, dedup.ErrRecentlyPosted), errors.Is(err, dedup.ErrInFlight), errors.Is(err, dedup.ErrEmptyLink):
		log.Trace("entry skipped", logx.Err(err))
		return outcomeSkipped, nil
	case err != nil:
		return outcomeStoreError, err
	}
	defer claim.Release()

	title := j.translate(ctx, e.Title)
	summary := j.translate(ctx, e.Summary)

	post := j.buildPost(title, summary, e)
	res := j.d.Sender.Send(ctx, j.d.Dest, post)
	j.d.Metrics.Dispatched("news", string(res.Reason))
	if !res.OK {
		log.Warn("dispatch failed, entry stays eligible", logx.String("reason", string(res.Reason)), logx.Err(res.Err))
		if res.Reason == dispatch.ReasonFlood {
			return outcomeFlood, res.Err
		}
		return outcomeFailed, res.Err
	}

	// The post is out; record it even if the cycle is being canceled.
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), CommitTimeout)
	defer cancel()
	if err := claim.Commit(cctx, now); err != nil {
		log.Error("posted but not recorded", logx.Int("message_id", res.MessageID), logx.Err(err))
		return outcomeRecordError, nil
	}
	log.Info("entry posted", logx.Int("message_id", res.MessageID))
	return outcomeSent, nil
}

// buildPost prefers a photo post. When the fixed parts of the caption
// leave no room under the photo caption limit, the entry goes out as a
// text post, which allows four times as much.
func (j *Job) buildPost(title, summary string, e feed.Entry) dispatch.Post {
	if e.ImageURL != "" {
		caption := j.d.Formatter.Caption(title, summary, e.Link, dispatch.MaxCaptionRunes)
		if utf8.RuneCountInString(caption) <= dispatch.MaxCaptionRunes {
			return dispatch.Post{Caption: caption, ImageURL: e.ImageURL}
		}
	}
	return dispatch.Post{Caption: j.d.Formatter.Caption(title, summary, e.Link, dispatch.MaxTextRunes)}
}

func (j *Job) translate(ctx context.Context, text string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	res := j.d.Translator.Translate(ctx, text)
	switch {
	case res.Translated:
		j.d.Metrics.Translated("translated")
	case res.Err != nil:
		j.d.Metrics.Translated("fallback")
	default:
		j.d.Metrics.Translated("skipped")
	}
	return res.Text
}

func outcomeLabel(o outcome) string {
	switch o {
	case outcomeSent:
		return "sent"
	case outcomeSkipped:
		return "skipped"
	case outcomeStoreError:
		return "store_error"
	case outcomeRecordError:
		return "record_error"
	default:
		return "failed"
	}
}
