package config

const (
	DefaultPromoCaption = "<b>————————————РЕКЛАМА——————————————</b>\n\n" +
		"Хэй, тут есть один канал, там чел выкладывает свой life и делает розыгрыши.\n" +
		"Подписывайтесь на него и выигрывайте в розыгрышах."
	DefaultPromoImage = "https://i.postimg.cc/CxwC7B8R/forestroad.jpg"
	DefaultSupport    = "https://t.me/ForestRoad1"
)

var defaultFeeds = []string{
	"https://www.ign.com/articles/rss",
	"https://www.gamespot.com/feeds/mashup/",
	"https://www.polygon.com/rss/index.xml",
	"https://www.playground.ru/news",
	"https://stopgame.ru/news",
	"https://www.goha.ru/videogames",
	"https://gameguru.ru/articles/rubrics_news",
	"https://vkplay.ru/media/",
	"https://cubiq.ru/news/",
}

// Default returns the configuration used when no file is present. File
// values and environment overrides are applied on top of it.
func Default() *Config {
	return &Config{
		Telegram: TelegramConfig{
			RequestTimeout: "30s",
			RatePerSec:     1,
		},
		Feeds: FeedsConfig{
			URLs:           append([]string(nil), defaultFeeds...),
			RequestTimeout: "20s",
			MaxBodyBytes:   5 << 20,
			UserAgent:      "gamenewsbot/1.0",
		},
		News: NewsConfig{
			Interval:      "35m",
			DedupWindow:   "35m",
			Timeout:       "30m",
			RunOnStart:    true,
			SupportLink:   DefaultSupport,
			SupportLabel:  "Forest Road",
			SupportPrefix: "Поддержка",
			ReadMoreLabel: "Читать полностью",
		},
		Translate: TranslateConfig{
			Provider:    "google",
			SourceLang:  "en",
			TargetLang:  "ru",
			Timeout:     "15s",
			GeminiModel: "gemini-1.5-flash",
		},
		Promo: PromoConfig{
			Enabled:    true,
			Interval:   "72h",
			Period:     "72h",
			Persist:    true,
			Caption:    DefaultPromoCaption,
			ImageURL:   DefaultPromoImage,
			ButtonText: "Forest Road 🌲",
			ButtonURL:  DefaultSupport,
		},
		Storage: StorageConfig{
			Driver:        "sqlite",
			Path:          "./data/gamenewsbot.db",
			BusyTimeout:   "5s",
			Retention:     "168h",
			PruneInterval: "24h",
		},
		TaskEngine: TaskEngineConfig{
			Workers:     2,
			QueueSize:   16,
			HistorySize: 50,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
			File:    LoggingFile{Path: "./gamenewsbot.log"},
		},
		Monitor: MonitorConfig{
			Addr: "127.0.0.1:9090",
		},
	}
}
