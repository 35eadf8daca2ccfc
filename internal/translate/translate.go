// Package translate turns English headlines and summaries into the
// channel language. Translation never fails from the caller's point of
// view: on any problem the original text comes back with Translated=false.
package translate

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	logx "gamenewsbot/pkg/logx"
)

// Result is either a translation or the original text with the error that
// prevented translating it.
type Result struct {
	Text       string
	Translated bool
	Err        error
}

// Backend performs one translation attempt.
type Backend interface {
	Name() string
	Translate(ctx context.Context, text, src, dst string) (string, error)
}

type Config struct {
	Provider string
	Source   string
	Target   string
	Timeout  time.Duration
}

// Translator wraps a Backend with the fallback contract.
type Translator struct {
	backend Backend
	src     string
	dst     string
	timeout time.Duration
	log     logx.Logger
}

func New(backend Backend, cfg Config, log logx.Logger) *Translator {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.Source == "" {
		cfg.Source = "en"
	}
	if cfg.Target == "" {
		cfg.Target = "ru"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if backend == nil {
		backend = None{}
	}
	return &Translator{backend: backend, src: cfg.Source, dst: cfg.Target, timeout: cfg.Timeout, log: log}
}

func (t *Translator) Backend() string { return t.backend.Name() }

// Translate makes a single attempt with a bounded timeout. Empty input and
// same-language pairs are returned untouched without calling the backend.
func (t *Translator) Translate(ctx context.Context, text string) (res Result) {
	fallback := func(err error) Result { return Result{Text: text, Err: err} }

	if strings.TrimSpace(text) == "" || strings.EqualFold(t.src, t.dst) {
		return Result{Text: text}
	}
	defer func() {
		if r := recover(); r != nil {
			t.log.Error("translate panic", logx.String("backend", t.backend.Name()), logx.Any("panic", r), logx.Stack(string(debug.Stack())))
			res = fallback(fmt.Errorf("translate panic: %v", r))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	out, err := t.backend.Translate(ctx, text, t.src, t.dst)
	if err != nil {
		t.log.Debug("translation failed, using original", logx.String("backend", t.backend.Name()), logx.Err(err))
		return fallback(err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return fallback(fmt.Errorf("%s: empty translation", t.backend.Name()))
	}
	return Result{Text: out, Translated: true}
}

// None leaves text as is.
type None struct{}

func (None) Name() string { return "none" }

func (None) Translate(_ context.Context, text, _, _ string) (string, error) { return text, nil }
