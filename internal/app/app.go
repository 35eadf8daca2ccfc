// Package app wires configuration, storage, transport and the scheduled
// jobs into one process.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"gamenewsbot/internal/config"
	"gamenewsbot/internal/dedup"
	"gamenewsbot/internal/dispatch"
	"gamenewsbot/internal/feed"
	"gamenewsbot/internal/metrics"
	"gamenewsbot/internal/monitor"
	"gamenewsbot/internal/news"
	"gamenewsbot/internal/promo"
	rtsup "gamenewsbot/internal/runtime/supervisor"
	"gamenewsbot/internal/storage"
	"gamenewsbot/internal/task/engine"
	"gamenewsbot/internal/task/scheduler"
	"gamenewsbot/internal/translate"
	kit "gamenewsbot/internal/transport"
	telegram "gamenewsbot/internal/transport/telegram/adapter"
	logx "gamenewsbot/pkg/logx"
)

const (
	jobNews  = "news"
	jobPromo = "promo"
	jobPrune = "prune"

	startupSpread = 30 * time.Second
	promoTimeout  = 5 * time.Minute
	pruneTimeout  = 2 * time.Minute
)

type App struct {
	cfgm *config.ConfigManager
	rc   *config.Resolved
	sup  *rtsup.Supervisor

	log  logx.Logger
	logs *logx.Service

	store     storage.Store
	dedup     *dedup.Store
	translate io.Closer
	metrics   *metrics.Collector

	engine  *engine.Service
	sched   *scheduler.Service
	monitor *monitor.Service

	news  *news.Job
	promo *promo.Job
	limit *promo.Limiter

	notify notifier
	now    func() time.Time
}

// options replace external edges in tests.
type options struct {
	sender kit.Sender
	source news.FeedSource
	notify notifier
	now    func() time.Time
}

// NewApp loads the config at cfgPath (defaults and environment apply when
// the file is missing) and builds every component. Nothing runs until
// Start.
func NewApp(cfgPath string) (*App, error) {
	return newApp(config.NewConfigManager(cfgPath), options{})
}

func newApp(cfgm *config.ConfigManager, opt options) (a *App, err error) {
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	rc, err := config.Resolve(cfg)
	if err != nil {
		return nil, err
	}
	if opt.now == nil {
		opt.now = time.Now
	}
	if opt.notify == nil {
		opt.notify = systemdNotifier{}
	}

	logSvc, root := logx.NewService(mapLoggingConfig(cfg.Logging))
	log := root.With(logx.String("comp", "app"))
	cfgm.SetLogger(root.With(logx.String("comp", "config")))

	a = &App{cfgm: cfgm, rc: rc, log: log, logs: logSvc, notify: opt.notify, now: opt.now}
	defer func() {
		if err != nil {
			a.closeResources()
		}
	}()

	a.store, err = storage.Open(mapStorageConfig(rc), root.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	log.Info("storage ready", logx.String("driver", rc.StorageDriver))

	a.metrics = metrics.New()
	a.dedup = dedup.New(a.store, rc.DedupWindow, root.With(logx.String("comp", "dedup")))

	backend, closer, err := translate.NewBackend(context.Background(), translate.BackendConfig{
		Provider:     rc.TranslateProvider,
		GeminiAPIKey: rc.GeminiAPIKey,
		GeminiModel:  rc.GeminiModel,
		HTTPClient:   &http.Client{Timeout: rc.TranslateTimeout},
	})
	if err != nil {
		return nil, fmt.Errorf("translate backend: %w", err)
	}
	a.translate = closer
	tr := translate.New(backend, translate.Config{
		Provider: rc.TranslateProvider,
		Source:   rc.SourceLang,
		Target:   rc.TargetLang,
		Timeout:  rc.TranslateTimeout,
	}, root.With(logx.String("comp", "translate")))

	sender := opt.sender
	if sender == nil {
		ad, err := telegram.New(telegram.Config{
			Token:          rc.Token,
			RequestTimeout: rc.RequestTimeout,
			APIURL:         rc.APIURL,
		}, root.With(logx.String("comp", "telegram")))
		if err != nil {
			return nil, fmt.Errorf("telegram: %w", err)
		}
		sender = ad
	}
	disp := dispatch.New(sender, dispatch.Config{
		RatePerSec: rc.RatePerSec,
		Timeout:    rc.RequestTimeout,
	}, root.With(logx.String("comp", "dispatch")))
	dest := kit.Target(rc.Channel)

	source := opt.source
	if source == nil {
		source = feed.NewFetcher(feed.Config{
			Timeout:      rc.FeedTimeout,
			MaxBodyBytes: rc.MaxBodyBytes,
			UserAgent:    rc.UserAgent,
			SafeClient:   rc.SafeClient,
		})
	}

	a.news, err = news.NewJob(news.Deps{
		Feeds:      rc.Feeds,
		Source:     source,
		Dedup:      a.dedup,
		Translator: tr,
		Sender:     disp,
		Dest:       dest,
		Formatter: news.Formatter{
			ReadMoreLabel: rc.ReadMoreLabel,
			SupportPrefix: rc.SupportPrefix,
			SupportLabel:  rc.SupportLabel,
			SupportLink:   rc.SupportLink,
		},
		Metrics: a.metrics,
		Log:     root.With(logx.String("comp", "news")),
		Now:     opt.now,
	})
	if err != nil {
		return nil, err
	}

	if rc.PromoEnabled {
		plog := root.With(logx.String("comp", "promo"))
		if rc.PromoPersist {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			a.limit, err = promo.RestoreLimiter(ctx, rc.PromoPeriod, a.store, opt.now(), plog)
			cancel()
			if err != nil {
				return nil, err
			}
		} else {
			a.limit = promo.NewLimiter(rc.PromoPeriod, opt.now().Add(-rc.PromoPeriod))
		}
		a.promo = promo.NewJob(a.limit, disp, dest, promo.Payload{
			Caption:    rc.PromoCaption,
			ImageURL:   rc.PromoImageURL,
			ButtonText: rc.PromoButtonText,
			ButtonURL:  rc.PromoButtonURL,
		}, plog, promo.WithClock(opt.now))
	}

	a.engine = engine.New(engine.Config{
		Workers:       rc.Workers,
		QueueSize:     rc.QueueSize,
		HistorySize:   rc.HistorySize,
		MaxQueueDelay: rc.MaxQueueDelay,
	}, root.With(logx.String("comp", "taskengine")))
	a.engine.SetObserver(a.metrics.TaskRun)
	a.sched = scheduler.New(scheduler.Config{
		Timezone:      rc.Timezone,
		StartupSpread: startupSpread,
	}, a.engine, root.With(logx.String("comp", "scheduler")))

	if rc.MonitorEnabled {
		a.monitor = monitor.New(monitor.Config{Addr: rc.MonitorAddr, Pprof: rc.MonitorPprof}, monitor.Probes{
			Live:    a.live,
			Ready:   a.store.Ping,
			Status:  func() any { return a.Status() },
			Metrics: a.metrics.Handler(),
		}, root.With(logx.String("comp", "monitor")))
	}

	return a, nil
}

// Done is closed when the app context ends (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error seen by the app supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	run := a.sup.Context()

	a.engine.Start(run)
	if err := a.registerJobs(); err != nil {
		return err
	}
	a.sched.Start(run)
	a.runOnStart()

	if a.monitor != nil {
		if err := a.monitor.Start(run); err != nil {
			a.log.Warn("monitor disabled: listen failed", logx.String("addr", a.rc.MonitorAddr), logx.Err(err))
		}
	}

	if a.cfgm.FileExists() {
		a.startConfigReload()
	} else {
		a.log.Info("no config file; hot reload disabled", logx.String("path", a.cfgm.Path()))
	}

	a.startSystemd()
	a.log.Info("app started",
		logx.String("channel", a.rc.Channel),
		logx.Int("feeds", len(a.rc.Feeds)),
		logx.Duration("news_interval", a.rc.NewsInterval),
		logx.Bool("promo", a.promo != nil),
	)
	return nil
}

func (a *App) registerJobs() error {
	if err := a.sched.AddInterval(jobNews, a.rc.NewsInterval, a.rc.NewsTimeout, a.runNews); err != nil {
		return err
	}
	if a.promo != nil {
		if err := a.sched.AddInterval(jobPromo, a.rc.PromoInterval, promoTimeout, a.runPromo); err != nil {
			return err
		}
	}
	if a.rc.Retention > 0 {
		if err := a.sched.AddInterval(jobPrune, a.rc.PruneInterval, pruneTimeout, a.runPrune); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) runOnStart() {
	var names []string
	if a.rc.NewsRunOnStart {
		names = append(names, jobNews)
	}
	if a.promo != nil && a.rc.PromoRunOnStart {
		names = append(names, jobPromo)
	}
	if a.rc.Retention > 0 {
		names = append(names, jobPrune)
	}
	for _, n := range names {
		if err := a.sched.RunNow(n); err != nil {
			a.log.Warn("startup run not queued", logx.String("job", n), logx.Err(err))
		}
	}
}

func (a *App) runNews(ctx context.Context) error {
	_, err := a.news.Run(ctx)
	return err
}

func (a *App) runPromo(ctx context.Context) error {
	at, ok := scheduler.TickTime(ctx)
	if !ok {
		at = a.now()
	}
	out, err := a.promo.RunAt(ctx, at)
	a.metrics.PromoTick(string(out))
	return err
}

func (a *App) runPrune(ctx context.Context) error {
	cutoff := a.now().Add(-a.rc.Retention)
	n, err := a.store.PrunePosted(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune posted: %w", err)
	}
	a.metrics.Pruned(n)
	if n > 0 {
		a.log.Info("posted records pruned", logx.Int64("removed", n), logx.Time("cutoff", cutoff))
	}
	return nil
}

func (a *App) startConfigReload() {
	sub := a.cfgm.Subscribe(4)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		last := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case next, ok := <-sub:
				if !ok {
					return
				}
				a.applyConfig(last, next)
				last = next
			}
		}
	})
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})
}

// applyConfig applies the live sections of a reloaded config and reports
// the rest.
func (a *App) applyConfig(prev, next *config.Config) {
	sections, attrs := config.SummarizeConfigChange(prev, next)
	if len(sections) == 0 {
		a.log.Debug("config reload received, no effective changes")
		return
	}
	for _, s := range sections {
		if s == "logging" {
			a.logs.Apply(mapLoggingConfig(next.Logging))
		}
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
	if pending := config.RestartRequired(sections); len(pending) > 0 {
		a.log.Warn("config changes need a restart to take effect", logx.Strs("sections", pending))
	}
}

// Stop shuts components down in dependency order, each step bounded, and
// closes the store last.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		a.closeResources()
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.notifyStopping()
	a.sup.Cancel()

	a.step(ctx, "scheduler", 2*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	a.step(ctx, "monitor", time.Second, func(c context.Context) error {
		if a.monitor != nil {
			a.monitor.Stop(c)
		}
		return nil
	})
	// In-flight runs already see a canceled context, but a send that is
	// already on the wire only ends with its request timeout. Give it that
	// long plus the time to record it.
	engineWait := max(10*time.Second, a.rc.RequestTimeout+news.CommitTimeout)
	a.step(ctx, "taskengine", engineWait, func(c context.Context) error { a.engine.Stop(c); return nil })
	a.step(ctx, "supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	// A run that outlived its step may still commit what it sent; the store
	// stays open for it and goes away with the process.
	if n := a.engine.Snapshot().InFlight; n > 0 {
		a.log.Warn("runs still in flight, store left open", logx.Int("in_flight", n))
	} else if err := a.closeResources(); err != nil {
		a.log.Warn("close resources", logx.Err(err))
	}

	a.log.Info("stopped")
	return a.logs.Close()
}

func (a *App) closeResources() error {
	var errs []error
	if a.translate != nil {
		errs = append(errs, a.translate.Close())
		a.translate = nil
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
		a.store = nil
	}
	return errors.Join(errs...)
}

// step runs fn with an upper bound so one component cannot stall the
// whole stop. It never extends the caller's deadline.
func (a *App) step(ctx context.Context, name string, max time.Duration, fn func(context.Context) error) {
	start := time.Now()
	if dl, ok := ctx.Deadline(); ok {
		max = min(max, time.Until(dl))
	}
	if max <= 0 {
		a.log.Warn("stop step skipped: deadline reached", logx.String("name", name))
		return
	}
	stepCtx, cancel := context.WithTimeout(ctx, max)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	case <-stepCtx.Done():
		a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		go func() {
			err := <-done
			a.log.Info("stop step finished after deadline", logx.String("name", name), logx.Err(err), logx.Duration("took", time.Since(start)))
		}()
	}
}
