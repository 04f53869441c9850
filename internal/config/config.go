package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"budgetwatch/internal/alerting"
	"budgetwatch/internal/logging"
)

// Source kinds.
const (
	SourcePostgres = "postgres"
	SourceHTTP     = "http"
	SourceFile     = "file"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Source    SourceConfig    `mapstructure:"source"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Server    ServerConfig    `mapstructure:"server"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// SchedulerConfig governs evaluation cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// EngineConfig selects what the periodic evaluation looks at.
type EngineConfig struct {
	OwnerID             string   `mapstructure:"owner_id"`
	BudgetIDs           []string `mapstructure:"budget_ids"`
	UpcomingHorizonDays int      `mapstructure:"upcoming_horizon_days"`
	UpcomingLimit       int      `mapstructure:"upcoming_limit"`
}

// SourceConfig selects where records are read from.
type SourceConfig struct {
	Kind string           `mapstructure:"kind"`
	HTTP HTTPSourceConfig `mapstructure:"http"`
	File FileSourceConfig `mapstructure:"file"`
}

// HTTPSourceConfig points at the dashboard's REST API.
type HTTPSourceConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Token          string        `mapstructure:"token"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// FileSourceConfig points at a YAML/JSON snapshot.
type FileSourceConfig struct {
	Path string `mapstructure:"path"`
}

// AlertingConfig defines alert thresholds and routing.
type AlertingConfig struct {
	Enabled    bool                `mapstructure:"enabled"`
	Thresholds alerting.Thresholds `mapstructure:"thresholds"`
	Retention  time.Duration       `mapstructure:"retention"`
	Channels   []string            `mapstructure:"channels"`
	Telegram   TelegramConfig      `mapstructure:"telegram"`
}

// TelegramConfig describes the Telegram channel.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxCategories int `mapstructure:"max_categories"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BUDGETWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "budgetwatch")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scheduler.interval", "1h")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x62756467))
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("engine.owner_id", "")
	v.SetDefault("engine.budget_ids", []string{})
	v.SetDefault("engine.upcoming_horizon_days", 14)
	v.SetDefault("engine.upcoming_limit", 10)

	v.SetDefault("source.kind", SourcePostgres)
	v.SetDefault("source.http.request_timeout", "10s")
	v.SetDefault("source.http.user_agent", "budgetwatch/1.0")
	v.SetDefault("source.file.path", "snapshot.yaml")

	v.SetDefault("alerting.enabled", true)
	v.SetDefault("alerting.thresholds.t50", true)
	v.SetDefault("alerting.thresholds.t75", true)
	v.SetDefault("alerting.thresholds.t90", true)
	v.SetDefault("alerting.thresholds.t100", true)
	v.SetDefault("alerting.retention", "8760h")
	v.SetDefault("alerting.channels", []string{"log"})
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("export.max_categories", 25)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Engine.UpcomingHorizonDays < 0 {
		return fmt.Errorf("engine.upcoming_horizon_days cannot be negative")
	}
	if c.Export.MaxCategories <= 0 {
		return fmt.Errorf("export.max_categories must be greater than zero")
	}
	switch c.Source.Kind {
	case SourcePostgres:
	case SourceHTTP:
		if c.Source.HTTP.BaseURL == "" {
			return fmt.Errorf("source.http.base_url is required when source.kind is http")
		}
	case SourceFile:
		if c.Source.File.Path == "" {
			return fmt.Errorf("source.file.path is required when source.kind is file")
		}
	default:
		return fmt.Errorf("source.kind %q is not one of postgres, http, file", c.Source.Kind)
	}
	if c.Alerting.Retention < 0 {
		return fmt.Errorf("alerting.retention cannot be negative")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required")
		}
	}
	return nil
}

// ResolveHorizon returns either the CLI override or config default.
func (c *Config) ResolveHorizon(override int) int {
	if override > 0 {
		return override
	}
	return c.Engine.UpcomingHorizonDays
}

// ResolveBudgets returns either the CLI override or the configured budget IDs.
func (c *Config) ResolveBudgets(override string) []string {
	if override != "" {
		return []string{override}
	}
	return c.Engine.BudgetIDs
}
