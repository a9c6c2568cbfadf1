package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

var validBackends = []string{BackendMemory, BackendSQLite}

// Config is read from, in increasing priority: built-in defaults, the TOML
// file named by WEDDINGSYNC_CONFIG, and the environment.
type Config struct {
	// HTTP server
	Port               string `toml:"port"`
	RateLimitPerMinute int    `toml:"rate_limit_per_minute"`

	// Storage
	DataBackend  string `toml:"data_backend"`
	SQLiteDBPath string `toml:"sqlite_db_path"`

	// AI gateway
	GeminiAPIKey string   `toml:"gemini_api_key"`
	GeminiModel  string   `toml:"gemini_model"`
	AITimeout    Duration `toml:"ai_timeout"`

	// AMQP change feed; an empty URL disables it
	AMQPURL      string `toml:"amqp_url"`
	AMQPExchange string `toml:"amqp_exchange"`
	AMQPQueue    string `toml:"amqp_queue"`

	// Backup worker
	BackupDir      string   `toml:"backup_dir"`
	BackupKeep     int      `toml:"backup_keep"`
	BackupInterval Duration `toml:"backup_interval"`

	// Reports
	ReportCacheTTL Duration `toml:"report_cache_ttl"`

	LogLevel string `toml:"log_level"`
}

// Duration decodes TOML strings such as "90s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func Defaults() *Config {
	return &Config{
		Port:               "8081",
		RateLimitPerMinute: 120,
		DataBackend:        BackendSQLite,
		SQLiteDBPath:       "./data/weddingsync.db",
		GeminiModel:        "gemini-2.5-flash",
		AITimeout:          Duration{60 * time.Second},
		AMQPExchange:       "weddingsync",
		AMQPQueue:          "profile_changed",
		BackupDir:          "./data/backups",
		BackupKeep:         10,
		BackupInterval:     Duration{time.Hour},
		ReportCacheTTL:     Duration{30 * time.Second},
		LogLevel:           "info",
	}
}

// LoadDotEnv loads .env style files into the environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

func Load() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("WEDDINGSYNC_CONFIG"); path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", cfg.RateLimitPerMinute)
	cfg.DataBackend = getEnv("DATA_BACKEND", cfg.DataBackend)
	cfg.SQLiteDBPath = getEnv("SQLITE_DB_PATH", cfg.SQLiteDBPath)
	cfg.GeminiAPIKey = getEnv("GEMINI_API_KEY", getEnv("API_KEY", cfg.GeminiAPIKey))
	cfg.GeminiModel = getEnv("GEMINI_MODEL", cfg.GeminiModel)
	cfg.AITimeout.Duration = getEnvDuration("AI_TIMEOUT", cfg.AITimeout.Duration)
	cfg.AMQPURL = getEnv("AMQP_URL", cfg.AMQPURL)
	cfg.AMQPExchange = getEnv("AMQP_EXCHANGE", cfg.AMQPExchange)
	cfg.AMQPQueue = getEnv("AMQP_QUEUE", cfg.AMQPQueue)
	cfg.BackupDir = getEnv("BACKUP_DIR", cfg.BackupDir)
	cfg.BackupKeep = getEnvInt("BACKUP_KEEP", cfg.BackupKeep)
	cfg.BackupInterval.Duration = getEnvDuration("BACKUP_INTERVAL", cfg.BackupInterval.Duration)
	cfg.ReportCacheTTL.Duration = getEnvDuration("REPORT_CACHE_TTL", cfg.ReportCacheTTL.Duration)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	return cfg, nil
}

// AIEnabled reports whether the AI features can be offered.
func (c *Config) AIEnabled() bool {
	return strings.TrimSpace(c.GeminiAPIKey) != ""
}

// AMQPEnabled reports whether the change feed is configured.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
}

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RateLimitPerMinute < 1 {
		errs = append(errs, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errs = append(errs, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == BackendSQLite {
		if c.SQLiteDBPath == "" {
			errs = append(errs, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					errs = append(errs, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.AITimeout.Duration < time.Second || c.AITimeout.Duration > 10*time.Minute {
		errs = append(errs, fmt.Sprintf("invalid AI timeout %v: must be between 1s and 10m", c.AITimeout.Duration))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.BackupDir == "" {
		errs = append(errs, "backup directory cannot be empty")
	}
	if c.BackupKeep < 1 || c.BackupKeep > 1000 {
		errs = append(errs, fmt.Sprintf("invalid backup keep %d: must be between 1 and 1000", c.BackupKeep))
	}
	if c.BackupInterval.Duration < time.Minute || c.BackupInterval.Duration > 7*24*time.Hour {
		errs = append(errs, fmt.Sprintf("invalid backup interval %v: must be between 1m and 168h", c.BackupInterval.Duration))
	}
	if c.ReportCacheTTL.Duration < 0 {
		errs = append(errs, fmt.Sprintf("invalid report cache TTL %v: cannot be negative", c.ReportCacheTTL.Duration))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
