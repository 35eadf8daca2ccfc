package config

// Config is the on-disk configuration. Durations are Go duration strings
// ("35m", "72h"); Resolve parses and validates them.
type Config struct {
	Telegram   TelegramConfig   `json:"telegram"`
	Feeds      FeedsConfig      `json:"feeds"`
	News       NewsConfig       `json:"news"`
	Translate  TranslateConfig  `json:"translate"`
	Promo      PromoConfig      `json:"promo"`
	Storage    StorageConfig    `json:"storage"`
	TaskEngine TaskEngineConfig `json:"task_engine"`
	Logging    LoggingConfig    `json:"logging"`
	Monitor    MonitorConfig    `json:"monitor"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// Channel is "@name" or a numeric chat id.
	Channel        string  `json:"channel"`
	RequestTimeout string  `json:"request_timeout"`
	RatePerSec     float64 `json:"rate_per_sec"`
	// APIURL overrides the Bot API endpoint (local bot API server).
	APIURL string `json:"api_url,omitempty"`
}

type FeedsConfig struct {
	URLs           []string `json:"urls"`
	RequestTimeout string   `json:"request_timeout"`
	MaxBodyBytes   int64    `json:"max_body_bytes"`
	UserAgent      string   `json:"user_agent"`
	// SafeClient routes fetches through an SSRF-guarded client that refuses
	// private and loopback addresses.
	SafeClient bool `json:"safe_client"`
}

type NewsConfig struct {
	Interval      string `json:"interval"`
	DedupWindow   string `json:"dedup_window"`
	Timeout       string `json:"timeout"`
	RunOnStart    bool   `json:"run_on_start"`
	SupportLink   string `json:"support_link"`
	SupportLabel  string `json:"support_label"`
	SupportPrefix string `json:"support_prefix"`
	ReadMoreLabel string `json:"read_more_label"`
}

type TranslateConfig struct {
	Provider     string `json:"provider"`
	SourceLang   string `json:"source_lang"`
	TargetLang   string `json:"target_lang"`
	Timeout      string `json:"timeout"`
	GeminiAPIKey string `json:"gemini_api_key,omitempty"`
	GeminiModel  string `json:"gemini_model,omitempty"`
}

type PromoConfig struct {
	Enabled    bool   `json:"enabled"`
	Interval   string `json:"interval"`
	Period     string `json:"period"`
	Persist    bool   `json:"persist"`
	RunOnStart bool   `json:"run_on_start"`
	Caption    string `json:"caption"`
	ImageURL   string `json:"image_url"`
	ButtonText string `json:"button_text"`
	ButtonURL  string `json:"button_url"`
}

// StorageConfig selects the persistence driver.
//
//	"storage": { "driver": "file", "path": "./data/gamenewsbot" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	DSN         string `json:"dsn,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
	// Retention of posted records; "0s" disables pruning.
	Retention     string `json:"retention"`
	PruneInterval string `json:"prune_interval"`
}

type TaskEngineConfig struct {
	Workers     int `json:"workers"`
	QueueSize   int `json:"queue_size"`
	HistorySize int `json:"history_size"`
	// MaxQueueDelay drops runs that waited in the queue longer than this.
	MaxQueueDelay string `json:"max_queue_delay,omitempty"`
	Timezone      string `json:"timezone,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// MonitorConfig controls the operator HTTP endpoint. Prefer a loopback
// address; pprof is off unless asked for.
type MonitorConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
	Pprof   bool   `json:"pprof"`
}
