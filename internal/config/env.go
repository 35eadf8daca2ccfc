package config

import "strings"

// ApplyEnv overrides file values with environment variables. Empty
// variables are ignored.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if cfg == nil || getenv == nil {
		return
	}
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&cfg.Telegram.Token, "BOT_TOKEN")
	set(&cfg.Telegram.Channel, "CHANNEL")
	set(&cfg.News.SupportLink, "SUPPORT_LINK")
	set(&cfg.Translate.GeminiAPIKey, "GEMINI_API_KEY")
	set(&cfg.Logging.Level, "LOG_LEVEL")

	if dsn := strings.TrimSpace(getenv("DATABASE_URL")); dsn != "" {
		cfg.Storage.DSN = dsn
		cfg.Storage.Driver = "postgres"
	}
	if raw := strings.TrimSpace(getenv("FEEDS")); raw != "" {
		var urls []string
		for _, u := range strings.Split(raw, ",") {
			if u = strings.TrimSpace(u); u != "" {
				urls = append(urls, u)
			}
		}
		if len(urls) > 0 {
			cfg.Feeds.URLs = urls
		}
	}
}
