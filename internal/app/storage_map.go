package app

import (
	"gamenewsbot/internal/config"
	"gamenewsbot/internal/storage"
	logx "gamenewsbot/pkg/logx"
)

func mapStorageConfig(rc *config.Resolved) storage.Config {
	return storage.Config{
		Driver:      rc.StorageDriver,
		Path:        rc.StoragePath,
		DSN:         rc.StorageDSN,
		BusyTimeout: rc.StorageBusyTimeout,
	}
}

func mapLoggingConfig(c config.LoggingConfig) logx.Config {
	return logx.Config{
		Level:   c.Level,
		Console: c.Console,
		File: logx.FileConfig{
			Enabled: c.File.Enabled,
			Path:    c.File.Path,
		},
	}
}
