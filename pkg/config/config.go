package config

import (
	"fmt"
	"log/slog"
	"time"
)

// DefaultPrefix is prepended to every variable name.
const DefaultPrefix = "DEVICEKIT_"

// Config is the complete devicekit configuration.
type Config struct {
	Database DatabaseConfig `envPrefix:"DB_"`
	Updater  UpdaterConfig  `envPrefix:"UPDATER_"`
	S3       S3Config       `envPrefix:"S3_"`
	Redis    RedisConfig    `envPrefix:"REDIS_"`
	Log      LogConfig      `envPrefix:"LOG_"`
	HTTP     HTTPConfig     `envPrefix:"HTTP_"`
}

// DatabaseConfig locates the device database and shapes what is loaded.
type DatabaseConfig struct {
	RootPath     string   `env:"ROOT_PATH,required"`
	Patches      []string `env:"PATCHES" envSeparator:","`
	Capabilities []string `env:"CAPABILITIES" envSeparator:","`
	CacheSize    int      `env:"CACHE_SIZE" envDefault:"10000"`
}

type UpdaterConfig struct {
	Enabled         bool          `env:"ENABLED" envDefault:"false"`
	Source          string        `env:"SOURCE"`
	Interval        time.Duration `env:"INTERVAL" envDefault:"24h"`
	FetchTimeout    time.Duration `env:"FETCH_TIMEOUT" envDefault:"10m"`
	ConnectTimeout  time.Duration `env:"CONNECT_TIMEOUT" envDefault:"10s"`
	MaxDownloadSize int64         `env:"MAX_DOWNLOAD_SIZE" envDefault:"536870912"`
}

// S3Config is used for s3:// update sources. Empty credentials fall back to
// the default AWS chain.
type S3Config struct {
	Region         string `env:"REGION"`
	AccessKeyID    string `env:"ACCESS_KEY_ID"`
	SecretKey      string `env:"SECRET_KEY"`
	Endpoint       string `env:"ENDPOINT"`
	ForcePathStyle bool   `env:"FORCE_PATH_STYLE" envDefault:"false"`
}

// RedisConfig is used for redis:// update sources.
type RedisConfig struct {
	RetryAttempts  int           `env:"RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"RETRY_INTERVAL" envDefault:"5s"`
	ConnectTimeout time.Duration `env:"CONNECT_TIMEOUT" envDefault:"30s"`
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
}

type HTTPConfig struct {
	Addr            string        `env:"ADDR" envDefault:":8080"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	// TrustProxy takes the client address from forwarding headers.
	TrustProxy bool `env:"TRUST_PROXY"`
}

// Validate checks values the tags cannot express.
func (c Config) Validate() error {
	switch {
	case c.Database.CacheSize < 0:
		return fmt.Errorf("%w: DB_CACHE_SIZE must not be negative", ErrInvalidConfig)
	case c.Updater.Enabled && c.Updater.Source == "":
		return fmt.Errorf("%w: UPDATER_SOURCE is required when the updater is enabled", ErrInvalidConfig)
	case c.Updater.Enabled && c.Updater.Interval <= 0:
		return fmt.Errorf("%w: UPDATER_INTERVAL must be positive", ErrInvalidConfig)
	case c.Updater.MaxDownloadSize <= 0:
		return fmt.Errorf("%w: UPDATER_MAX_DOWNLOAD_SIZE must be positive", ErrInvalidConfig)
	case c.Redis.RetryAttempts < 1:
		return fmt.Errorf("%w: REDIS_RETRY_ATTEMPTS must be at least 1", ErrInvalidConfig)
	case c.Log.Format != "json" && c.Log.Format != "text":
		return fmt.Errorf("%w: LOG_FORMAT must be json or text, got %q", ErrInvalidConfig, c.Log.Format)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return fmt.Errorf("%w: LOG_LEVEL: %w", ErrInvalidConfig, err)
	}
	return nil
}
