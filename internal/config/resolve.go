package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var ErrInvalid = errors.New("invalid config")

// Resolved holds parsed, validated settings. Components are built from it,
// never from the raw string fields.
type Resolved struct {
	Token          string
	Channel        string
	RequestTimeout time.Duration
	RatePerSec     float64
	APIURL         string

	Feeds        []string
	FeedTimeout  time.Duration
	MaxBodyBytes int64
	UserAgent    string
	SafeClient   bool

	NewsInterval   time.Duration
	DedupWindow    time.Duration
	NewsTimeout    time.Duration
	NewsRunOnStart bool
	SupportLink    string
	SupportLabel   string
	SupportPrefix  string
	ReadMoreLabel  string

	TranslateProvider string
	SourceLang        string
	TargetLang        string
	TranslateTimeout  time.Duration
	GeminiAPIKey      string
	GeminiModel       string

	PromoEnabled    bool
	PromoInterval   time.Duration
	PromoPeriod     time.Duration
	PromoPersist    bool
	PromoRunOnStart bool
	PromoCaption    string
	PromoImageURL   string
	PromoButtonText string
	PromoButtonURL  string

	StorageDriver      string
	StoragePath        string
	StorageDSN         string
	StorageBusyTimeout time.Duration
	Retention          time.Duration
	PruneInterval      time.Duration

	Workers       int
	QueueSize     int
	HistorySize   int
	MaxQueueDelay time.Duration
	Timezone      string

	MonitorEnabled bool
	MonitorAddr    string
	MonitorPprof   bool
}

type fieldErrors []string

func (e *fieldErrors) add(format string, args ...any) {
	*e = append(*e, fmt.Sprintf(format, args...))
}

func (e fieldErrors) err() error {
	if len(e) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(e, "; "))
}

// Resolve validates cfg and returns the parsed settings. Every problem is
// reported, not only the first.
func Resolve(cfg *Config) (*Resolved, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is nil", ErrInvalid)
	}
	var errs fieldErrors
	dur := func(path, raw string, def time.Duration) time.Duration {
		d, err := ParseDurationOrDefault(path, raw, def)
		if err != nil {
			errs.add("%v", err)
		}
		return d
	}
	positive := func(path, raw string) time.Duration {
		d, err := ParseDurationField(path, raw)
		if err != nil {
			errs.add("%v", err)
			return 0
		}
		if d <= 0 {
			errs.add("%s must be > 0", path)
		}
		return d
	}

	r := &Resolved{
		Token:          strings.TrimSpace(cfg.Telegram.Token),
		Channel:        strings.TrimSpace(cfg.Telegram.Channel),
		RequestTimeout: dur("telegram.request_timeout", cfg.Telegram.RequestTimeout, 30*time.Second),
		RatePerSec:     cfg.Telegram.RatePerSec,
		APIURL:         strings.TrimSpace(cfg.Telegram.APIURL),

		FeedTimeout:  dur("feeds.request_timeout", cfg.Feeds.RequestTimeout, 20*time.Second),
		MaxBodyBytes: cfg.Feeds.MaxBodyBytes,
		UserAgent:    strings.TrimSpace(cfg.Feeds.UserAgent),
		SafeClient:   cfg.Feeds.SafeClient,

		NewsInterval:   positive("news.interval", cfg.News.Interval),
		DedupWindow:    positive("news.dedup_window", cfg.News.DedupWindow),
		NewsTimeout:    dur("news.timeout", cfg.News.Timeout, 30*time.Minute),
		NewsRunOnStart: cfg.News.RunOnStart,
		SupportLink:    strings.TrimSpace(cfg.News.SupportLink),
		SupportLabel:   strings.TrimSpace(cfg.News.SupportLabel),
		SupportPrefix:  strings.TrimSpace(cfg.News.SupportPrefix),
		ReadMoreLabel:  strings.TrimSpace(cfg.News.ReadMoreLabel),

		TranslateProvider: strings.ToLower(strings.TrimSpace(cfg.Translate.Provider)),
		SourceLang:        strings.TrimSpace(cfg.Translate.SourceLang),
		TargetLang:        strings.TrimSpace(cfg.Translate.TargetLang),
		TranslateTimeout:  dur("translate.timeout", cfg.Translate.Timeout, 15*time.Second),
		GeminiAPIKey:      strings.TrimSpace(cfg.Translate.GeminiAPIKey),
		GeminiModel:       strings.TrimSpace(cfg.Translate.GeminiModel),

		PromoEnabled:    cfg.Promo.Enabled,
		PromoPersist:    cfg.Promo.Persist,
		PromoRunOnStart: cfg.Promo.RunOnStart,
		PromoCaption:    cfg.Promo.Caption,
		PromoImageURL:   strings.TrimSpace(cfg.Promo.ImageURL),
		PromoButtonText: strings.TrimSpace(cfg.Promo.ButtonText),
		PromoButtonURL:  strings.TrimSpace(cfg.Promo.ButtonURL),

		StorageDriver:      strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)),
		StoragePath:        strings.TrimSpace(cfg.Storage.Path),
		StorageDSN:         strings.TrimSpace(cfg.Storage.DSN),
		StorageBusyTimeout: dur("storage.busy_timeout", cfg.Storage.BusyTimeout, 5*time.Second),

		Workers:       cfg.TaskEngine.Workers,
		QueueSize:     cfg.TaskEngine.QueueSize,
		HistorySize:   cfg.TaskEngine.HistorySize,
		MaxQueueDelay: dur("task_engine.max_queue_delay", cfg.TaskEngine.MaxQueueDelay, 0),
		Timezone:      strings.TrimSpace(cfg.TaskEngine.Timezone),

		MonitorEnabled: cfg.Monitor.Enabled,
		MonitorAddr:    strings.TrimSpace(cfg.Monitor.Addr),
		MonitorPprof:   cfg.Monitor.Pprof,
	}

	if r.Token == "" {
		errs.add("telegram.token is required (BOT_TOKEN)")
	}
	if r.Channel == "" {
		errs.add("telegram.channel is required (CHANNEL)")
	} else if !strings.HasPrefix(r.Channel, "@") {
		if _, err := strconv.ParseInt(r.Channel, 10, 64); err != nil {
			errs.add("telegram.channel must be @name or a numeric chat id")
		}
	}
	if r.RatePerSec <= 0 {
		errs.add("telegram.rate_per_sec must be > 0")
	}
	if r.APIURL != "" && !isHTTPURL(r.APIURL) {
		errs.add("telegram.api_url must be an http(s) URL")
	}

	for _, u := range cfg.Feeds.URLs {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if !isHTTPURL(u) {
			errs.add("feeds.urls: %q is not an http(s) URL", u)
			continue
		}
		r.Feeds = append(r.Feeds, u)
	}
	if len(r.Feeds) == 0 {
		errs.add("feeds.urls must list at least one feed (FEEDS)")
	}
	if r.MaxBodyBytes < 0 {
		errs.add("feeds.max_body_bytes must be >= 0")
	}

	if r.SupportLink != "" && !isHTTPURL(r.SupportLink) {
		errs.add("news.support_link must be an http(s) URL")
	}

	switch r.TranslateProvider {
	case "google", "none":
	case "gemini":
		if r.GeminiAPIKey == "" {
			errs.add("translate.gemini_api_key is required for provider gemini (GEMINI_API_KEY)")
		}
	default:
		errs.add("translate.provider %q is not one of google, gemini, none", cfg.Translate.Provider)
	}

	if r.PromoEnabled {
		r.PromoInterval = positive("promo.interval", cfg.Promo.Interval)
		r.PromoPeriod = positive("promo.period", cfg.Promo.Period)
		if strings.TrimSpace(r.PromoCaption) == "" {
			errs.add("promo.caption is required when promo is enabled")
		}
		if r.PromoImageURL != "" && !isHTTPURL(r.PromoImageURL) {
			errs.add("promo.image_url must be an http(s) URL")
		}
		if r.PromoButtonURL != "" && !isHTTPURL(r.PromoButtonURL) {
			errs.add("promo.button_url must be an http(s) URL")
		}
	}

	switch r.StorageDriver {
	case "sqlite", "file":
		if r.StoragePath == "" {
			errs.add("storage.path is required for driver %s", r.StorageDriver)
		}
	case "postgres":
		if r.StorageDSN == "" {
			errs.add("storage.dsn is required for driver postgres (DATABASE_URL)")
		}
	case "memory":
	default:
		errs.add("storage.driver %q is not one of sqlite, postgres, file, memory", cfg.Storage.Driver)
	}
	r.Retention = dur("storage.retention", cfg.Storage.Retention, 0)
	if r.Retention > 0 {
		if r.Retention < r.DedupWindow {
			errs.add("storage.retention (%s) must be >= news.dedup_window (%s)", r.Retention, r.DedupWindow)
		}
		r.PruneInterval = positive("storage.prune_interval", cfg.Storage.PruneInterval)
	}

	if r.MonitorEnabled && r.MonitorAddr == "" {
		errs.add("monitor.addr is required when monitor is enabled")
	}
	if r.Timezone != "" {
		if _, err := time.LoadLocation(r.Timezone); err != nil {
			errs.add("task_engine.timezone: %v", err)
		}
	}

	if err := errs.err(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate reports whether cfg resolves cleanly.
func Validate(cfg *Config) error {
	_, err := Resolve(cfg)
	return err
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
