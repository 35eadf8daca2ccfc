package config

import (
	"reflect"
	"sort"
	"strings"

	logx "gamenewsbot/pkg/logx"
)

// LiveSections can be applied without a restart.
var LiveSections = map[string]bool{"logging": true}

// SummarizeConfigChange lists the top-level sections that differ and safe
// log attributes describing them. Secrets (token, DSN, API key) are only
// reported as set/unset.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	changed := make([]string, 0, 4)
	attrs := make([]logx.Field, 0, 12)

	if !reflect.DeepEqual(oldCfg.Telegram, newCfg.Telegram) {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.String("telegram.channel", newCfg.Telegram.Channel),
			logx.Bool("telegram.token_changed", oldCfg.Telegram.Token != newCfg.Telegram.Token),
			logx.Float64("telegram.rate_per_sec", newCfg.Telegram.RatePerSec),
		)
	}
	if !reflect.DeepEqual(oldCfg.Feeds, newCfg.Feeds) {
		changed = append(changed, "feeds")
		attrs = append(attrs, logx.Int("feeds.count", len(newCfg.Feeds.URLs)))
	}
	if !reflect.DeepEqual(oldCfg.News, newCfg.News) {
		changed = append(changed, "news")
		attrs = append(attrs,
			logx.String("news.interval", newCfg.News.Interval),
			logx.String("news.dedup_window", newCfg.News.DedupWindow),
		)
	}
	if !reflect.DeepEqual(oldCfg.Translate, newCfg.Translate) {
		changed = append(changed, "translate")
		attrs = append(attrs,
			logx.String("translate.provider", newCfg.Translate.Provider),
			logx.Bool("translate.gemini_key_set", strings.TrimSpace(newCfg.Translate.GeminiAPIKey) != ""),
		)
	}
	if !reflect.DeepEqual(oldCfg.Promo, newCfg.Promo) {
		changed = append(changed, "promo")
		attrs = append(attrs,
			logx.Bool("promo.enabled", newCfg.Promo.Enabled),
			logx.String("promo.period", newCfg.Promo.Period),
		)
	}
	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", newCfg.Storage.Driver),
			logx.Bool("storage.dsn_set", strings.TrimSpace(newCfg.Storage.DSN) != ""),
		)
	}
	if !reflect.DeepEqual(oldCfg.TaskEngine, newCfg.TaskEngine) {
		changed = append(changed, "task_engine")
		attrs = append(attrs, logx.Int("task_engine.workers", newCfg.TaskEngine.Workers))
	}
	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}
	if !reflect.DeepEqual(oldCfg.Monitor, newCfg.Monitor) {
		changed = append(changed, "monitor")
		attrs = append(attrs, logx.Bool("monitor.enabled", newCfg.Monitor.Enabled))
	}

	sort.Strings(changed)
	return changed, attrs
}

// RestartRequired returns the changed sections that only take effect after
// a restart.
func RestartRequired(changed []string) []string {
	var out []string
	for _, s := range changed {
		if !LiveSections[s] {
			out = append(out, s)
		}
	}
	return out
}
