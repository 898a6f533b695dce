package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. WORKSHOP_HTTP_PORT.
const EnvPrefix = "WORKSHOP"

// Ledger backends.
const (
	LedgerSQLite = "sqlite"
	LedgerRedis  = "redis"
	LedgerMemory = "memory"
)

// Meeting providers.
const (
	MeetingStatic = "static"
	MeetingHTTP   = "http"
)

// Config captures configuration values for the workshop service.
type Config struct {
	HTTPPort      int
	SQLiteDSN     string
	Timezone      *time.Location
	LedgerBackend string
	AdminKeyHash  string
	Redis         RedisConfig
	Meeting       MeetingConfig
	Log           LogConfig
	Notify        NotifyConfig
}

// RedisConfig configures the redis ledger backend.
type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	ConnectTimeout time.Duration
}

// MeetingConfig selects and configures the meeting link generator.
type MeetingConfig struct {
	Provider string
	Endpoint string
	APIToken string
	BaseURL  string
	Timeout  time.Duration
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string
	Format string
}

// NotifyConfig configures attendee email. An empty SendGridAPIKey disables sending.
type NotifyConfig struct {
	SendGridAPIKey string
	From           string
}

// LoadOptions points Load at optional files.
type LoadOptions struct {
	// ConfigFile is a YAML file whose keys match the environment variable
	// names without the prefix, in lower case.
	ConfigFile string
	// DotEnvFile defaults to ".env" and is ignored when absent.
	DotEnvFile string
}

// Load reads configuration from the environment and an optional .env file.
func Load() (Config, error) {
	return LoadWithOptions(LoadOptions{})
}

// LoadWithOptions reads configuration from, in order of precedence, the
// environment, the .env file, the YAML file, and defaults.
func LoadWithOptions(opts LoadOptions) (Config, error) {
	dotEnv := opts.DotEnvFile
	if dotEnv == "" {
		dotEnv = ".env"
	}
	if _, err := os.Stat(dotEnv); err == nil {
		if err := godotenv.Load(dotEnv); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", dotEnv, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("stat %s: %w", dotEnv, err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	setDefaults(v)

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", opts.ConfigFile, err)
		}
	}

	return parse(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_port", "8080")
	v.SetDefault("sqlite_dsn", "workshops.db")
	v.SetDefault("timezone", "UTC")
	v.SetDefault("ledger_backend", LedgerSQLite)
	v.SetDefault("redis_db", "0")
	v.SetDefault("redis_connect_timeout", "30s")
	v.SetDefault("meeting_provider", MeetingStatic)
	v.SetDefault("meeting_base_url", "https://meet.localhost")
	v.SetDefault("meeting_timeout", "10s")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "auto")
}

func parse(v *viper.Viper) (Config, error) {
	cfg := Config{
		SQLiteDSN:     strings.TrimSpace(v.GetString("sqlite_dsn")),
		LedgerBackend: strings.ToLower(strings.TrimSpace(v.GetString("ledger_backend"))),
		AdminKeyHash:  strings.TrimSpace(v.GetString("admin_key_hash")),
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(v.GetString("redis_addr")),
			Password: v.GetString("redis_password"),
		},
		Meeting: MeetingConfig{
			Provider: strings.ToLower(strings.TrimSpace(v.GetString("meeting_provider"))),
			Endpoint: strings.TrimSpace(v.GetString("meeting_endpoint")),
			APIToken: strings.TrimSpace(v.GetString("meeting_api_token")),
			BaseURL:  strings.TrimSpace(v.GetString("meeting_base_url")),
		},
		Log: LogConfig{
			Level:  strings.ToLower(strings.TrimSpace(v.GetString("log_level"))),
			Format: strings.ToLower(strings.TrimSpace(v.GetString("log_format"))),
		},
		Notify: NotifyConfig{
			SendGridAPIKey: strings.TrimSpace(v.GetString("sendgrid_api_key")),
			From:           strings.TrimSpace(v.GetString("notify_from")),
		},
	}

	missing := make([]string, 0, 2)
	invalid := make([]string, 0, 2)
	env := func(key string) string { return EnvPrefix + "_" + strings.ToUpper(key) }

	if port, err := strconv.Atoi(strings.TrimSpace(v.GetString("http_port"))); err != nil || port <= 0 || port > 65535 {
		invalid = append(invalid, env("http_port"))
	} else {
		cfg.HTTPPort = port
	}

	if cfg.SQLiteDSN == "" {
		missing = append(missing, env("sqlite_dsn"))
	}

	if loc, err := time.LoadLocation(strings.TrimSpace(v.GetString("timezone"))); err != nil {
		invalid = append(invalid, env("timezone"))
	} else {
		cfg.Timezone = loc
	}

	switch cfg.LedgerBackend {
	case LedgerSQLite, LedgerMemory:
	case LedgerRedis:
		if cfg.Redis.Addr == "" {
			missing = append(missing, env("redis_addr"))
		}
	default:
		invalid = append(invalid, env("ledger_backend"))
	}

	if db, err := strconv.Atoi(strings.TrimSpace(v.GetString("redis_db"))); err != nil || db < 0 {
		invalid = append(invalid, env("redis_db"))
	} else {
		cfg.Redis.DB = db
	}

	if d, ok := positiveDuration(v.GetString("redis_connect_timeout")); ok {
		cfg.Redis.ConnectTimeout = d
	} else {
		invalid = append(invalid, env("redis_connect_timeout"))
	}

	switch cfg.Meeting.Provider {
	case MeetingStatic:
	case MeetingHTTP:
		if cfg.Meeting.Endpoint == "" {
			missing = append(missing, env("meeting_endpoint"))
		}
	default:
		invalid = append(invalid, env("meeting_provider"))
	}

	if d, ok := positiveDuration(v.GetString("meeting_timeout")); ok {
		cfg.Meeting.Timeout = d
	} else {
		invalid = append(invalid, env("meeting_timeout"))
	}

	switch cfg.Log.Format {
	case "auto", "json", "console":
	default:
		invalid = append(invalid, env("log_format"))
	}

	if cfg.Notify.SendGridAPIKey != "" && cfg.Notify.From == "" {
		missing = append(missing, env("notify_from"))
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid configuration values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

func positiveDuration(value string) (time.Duration, bool) {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}
