package logger

import (
	"io"
	"os"

	"github.com/spf13/cast"
)

// EnvConfig configures a logger from the process environment.
//
// Outside APP_ENV=local, lines also go to LOG_FILE, rotated by size; with
// LOG_FILE_ONLY set they go only there.
type EnvConfig struct {
	Level       string
	Format      string
	Output      io.Writer // overrides stdout and file output when set
	ServiceName string
	Environment string

	LogFile     string
	LogFileOnly bool
	MaxSizeMB   int
	MaxBackups  int
	MaxAgeDays  int
	Compress    bool
}

func envConfig() *EnvConfig {
	return &EnvConfig{
		Level:       envString("LOG_LEVEL", "info"),
		Format:      envString("LOG_FORMAT", "json"),
		ServiceName: envString("SERVICE_NAME", "memevote"),
		Environment: envString("APP_ENV", "local"),

		LogFile:     envString("LOG_FILE", "./logs/memevote.log"),
		LogFileOnly: cast.ToBool(envString("LOG_FILE_ONLY", "false")),
		MaxSizeMB:   cast.ToInt(envString("LOG_MAX_SIZE", "100")),
		MaxBackups:  cast.ToInt(envString("LOG_MAX_BACKUPS", "7")),
		MaxAgeDays:  cast.ToInt(envString("LOG_MAX_AGE", "30")),
		Compress:    cast.ToBool(envString("LOG_COMPRESS", "true")),
	}
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}
