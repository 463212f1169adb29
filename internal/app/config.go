package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config represents the runtime configuration for the yaruyo backend.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Line       LineConfig       `mapstructure:"line"`
	Push       PushConfig       `mapstructure:"push"`
	Reminders  ReminderConfig   `mapstructure:"reminders"`
	Dispatch   DispatchConfig   `mapstructure:"dispatch"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int             `mapstructure:"port"`
	LogLevel       string          `mapstructure:"log_level"`
	LogFormat      string          `mapstructure:"log_format"`
	AllowedOrigins []string        `mapstructure:"allowed_origins"`
	RateLimit      RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig throttles authenticated API callers.
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string       `mapstructure:"driver"`
	Path     string       `mapstructure:"path"`
	DSN      string       `mapstructure:"dsn"`
	Postgres DBAuthConfig `mapstructure:"postgres"`
	MySQL    DBAuthConfig `mapstructure:"mysql"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// AuthConfig captures all authentication-related settings.
type AuthConfig struct {
	JWT       JWTSettings       `mapstructure:"jwt"`
	LineLogin LineLoginSettings `mapstructure:"line_login"`
}

// JWTSettings configures JWT access tokens.
type JWTSettings struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"access_token_ttl"`
}

// LineLoginSettings enables LINE Login ID tokens as bearer credentials.
type LineLoginSettings struct {
	Enabled   bool   `mapstructure:"enabled"`
	ChannelID string `mapstructure:"channel_id"`
	Issuer    string `mapstructure:"issuer"`
}

// LineConfig holds LINE Messaging API credentials.
type LineConfig struct {
	ChannelAccessToken string          `mapstructure:"channel_access_token"`
	ChannelSecret      string          `mapstructure:"channel_secret"`
	APIBaseURL         string          `mapstructure:"api_base_url"`
	Timeout            time.Duration   `mapstructure:"timeout"`
	RateLimit          RateLimitConfig `mapstructure:"rate_limit"`
}

// PushConfig selects the outbound push provider.
type PushConfig struct {
	Provider string    `mapstructure:"provider"`
	FCM      FCMConfig `mapstructure:"fcm"`
}

// FCMConfig configures Firebase Cloud Messaging.
type FCMConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
	ProjectID       string `mapstructure:"project_id"`
	Title           string `mapstructure:"title"`
}

// ReminderConfig controls the start reminder sweep.
type ReminderConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Schedule    string        `mapstructure:"schedule"`
	Timezone    string        `mapstructure:"timezone"`
	Buffer      time.Duration `mapstructure:"buffer"`
	GridMinutes int           `mapstructure:"grid_minutes"`
}

// DispatchConfig bounds notification fan-out.
type DispatchConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// MonitoringConfig enables health checks and metrics.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Health     HealthConfig     `mapstructure:"health_check"`
}

// PrometheusConfig toggles metrics endpoints.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// HealthConfig toggles health endpoints.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("YARUYO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects settings the runtime cannot start with.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Push.Provider) {
	case "", "line", "fcm":
	default:
		return fmt.Errorf("config: unsupported push provider %q", c.Push.Provider)
	}

	if c.Reminders.GridMinutes <= 0 || 60%c.Reminders.GridMinutes != 0 {
		return fmt.Errorf("config: reminders.grid_minutes must divide 60, got %d", c.Reminders.GridMinutes)
	}

	if c.Reminders.Buffer < 0 {
		return errors.New("config: reminders.buffer must not be negative")
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.rate_limit.enabled", true)
	v.SetDefault("server.rate_limit.requests_per_second", 5)
	v.SetDefault("server.rate_limit.burst", 20)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/yaruyo.sqlite")
	v.SetDefault("database.dsn", "")
	for _, vendor := range []string{"postgres", "mysql"} {
		v.SetDefault("database."+vendor+".enabled", false)
		v.SetDefault("database."+vendor+".host", "")
		v.SetDefault("database."+vendor+".port", 0)
		v.SetDefault("database."+vendor+".database", "")
		v.SetDefault("database."+vendor+".username", "")
		v.SetDefault("database."+vendor+".password", "")
	}

	// Every key needs a default so AutomaticEnv can override it on Unmarshal.
	v.SetDefault("auth.jwt.secret", "")
	v.SetDefault("auth.jwt.issuer", "yaruyo")
	v.SetDefault("auth.jwt.access_token_ttl", "1h")
	v.SetDefault("auth.line_login.enabled", false)
	v.SetDefault("auth.line_login.issuer", "https://access.line.me")
	v.SetDefault("auth.line_login.channel_id", "")

	v.SetDefault("line.channel_access_token", "")
	v.SetDefault("line.channel_secret", "")
	v.SetDefault("line.api_base_url", "https://api.line.me")
	v.SetDefault("line.timeout", "10s")
	v.SetDefault("line.rate_limit.enabled", true)
	v.SetDefault("line.rate_limit.requests_per_second", 100)
	v.SetDefault("line.rate_limit.burst", 20)

	v.SetDefault("push.provider", "line")
	v.SetDefault("push.fcm.credentials_file", "")
	v.SetDefault("push.fcm.project_id", "")
	v.SetDefault("push.fcm.title", "やるよ")

	v.SetDefault("reminders.enabled", true)
	v.SetDefault("reminders.schedule", "0,30 * * * *")
	v.SetDefault("reminders.timezone", "Asia/Tokyo")
	v.SetDefault("reminders.buffer", "5m")
	v.SetDefault("reminders.grid_minutes", 30)

	v.SetDefault("dispatch.concurrency", 4)

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")
	v.SetDefault("monitoring.health_check.enabled", true)
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
