package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/charlesng35/awards/internal/auth"
	"github.com/charlesng35/awards/internal/cache"
	"github.com/charlesng35/awards/internal/database"
	"github.com/charlesng35/awards/internal/services"
	"github.com/charlesng35/awards/pkg/logger"
	"github.com/charlesng35/awards/pkg/mail"
)

// Config represents the runtime configuration for the awards backend.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Verification VerificationConfig `mapstructure:"verification"`
	Voting       VotingConfig       `mapstructure:"voting"`
	Email        EmailConfig        `mapstructure:"email"`
	Monitoring   MonitoringConfig   `mapstructure:"monitoring"`
	Maintenance  MaintenanceConfig  `mapstructure:"maintenance"`
	Bootstrap    BootstrapConfig    `mapstructure:"bootstrap"`
}

type ServerConfig struct {
	Port            int             `mapstructure:"port"`
	LogLevel        string          `mapstructure:"log_level"`
	LogFormat       string          `mapstructure:"log_format"`
	Mode            string          `mapstructure:"mode"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
	TrustedProxies  []string        `mapstructure:"trusted_proxies"`
	CORSOrigins     []string        `mapstructure:"cors_origins"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig applies a fixed-window limit per client IP.
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver          string            `mapstructure:"driver"`
	Path            string            `mapstructure:"path"`
	DSN             string            `mapstructure:"dsn"`
	Host            string            `mapstructure:"host"`
	Port            int               `mapstructure:"port"`
	Name            string            `mapstructure:"name"`
	Username        string            `mapstructure:"username"`
	Password        string            `mapstructure:"password"`
	Options         map[string]string `mapstructure:"options"`
	MaxOpenConns    int               `mapstructure:"max_open_conns"`
	MaxIdleConns    int               `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration     `mapstructure:"conn_max_lifetime"`
	LogQueries      bool              `mapstructure:"log_queries"`
}

type CacheConfig struct {
	Redis RedisCacheConfig `mapstructure:"redis"`
}

type RedisCacheConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Address   string        `mapstructure:"address"`
	Username  string        `mapstructure:"username"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	TLS       bool          `mapstructure:"tls"`
	Timeout   time.Duration `mapstructure:"timeout"`
	KeyPrefix string        `mapstructure:"key_prefix"`
}

type AuthConfig struct {
	Session SessionSettings `mapstructure:"session"`
}

// SessionSettings configures opaque session tokens.
type SessionSettings struct {
	TTL         time.Duration `mapstructure:"ttl"`
	TokenLength int           `mapstructure:"token_length"`
	CookieName  string        `mapstructure:"cookie_name"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
}

type VerificationConfig struct {
	CodeTTL    time.Duration `mapstructure:"code_ttl"`
	CodeLength int           `mapstructure:"code_length"`
	// ExposeCode returns the code in the API response. Development only.
	ExposeCode bool   `mapstructure:"expose_code"`
	Subject    string `mapstructure:"subject"`
}

// VotingConfig holds the device policy applied until an administrator overrides it.
type VotingConfig struct {
	DeviceMode        string `mapstructure:"device_mode"`
	MaxAccountsDevice int    `mapstructure:"max_accounts_per_device"`
	MaxAccountsIP     int    `mapstructure:"max_accounts_per_ip"`
}

type EmailConfig struct {
	SMTP      SMTPConfig `mapstructure:"smtp"`
	QueueSize int        `mapstructure:"queue_size"`
}

type SMTPConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	From     string        `mapstructure:"from"`
	UseTLS   bool          `mapstructure:"use_tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Health     HealthConfig     `mapstructure:"health_check"`
}

type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

type HealthConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// MaintenanceConfig holds cron schedules for cleanup jobs.
type MaintenanceConfig struct {
	Enabled              bool   `mapstructure:"enabled"`
	SessionSchedule      string `mapstructure:"session_schedule"`
	VerificationSchedule string `mapstructure:"verification_schedule"`
	CacheSchedule        string `mapstructure:"cache_schedule"`
}

// BootstrapConfig seeds the first SUPER_ADMIN on an empty installation.
type BootstrapConfig struct {
	AdminName     string `mapstructure:"admin_name"`
	AdminEmail    string `mapstructure:"admin_email"`
	AdminPassword string `mapstructure:"admin_password"`
}

// LoadConfig reads config/config.yaml (or the supplied directories), a local
// .env file and AWARDS_* environment variables, in increasing precedence.
func LoadConfig(paths ...string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("AWARDS")
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

// Validate rejects combinations that cannot work at runtime.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Voting.DeviceMode) {
	case services.DeviceModeOff, services.DeviceModeFlag, services.DeviceModeBlock:
	default:
		return fmt.Errorf("config: voting.device_mode must be off, flag or block (got %q)", c.Voting.DeviceMode)
	}
	if c.Verification.CodeLength < 4 || c.Verification.CodeLength > 10 {
		return fmt.Errorf("config: verification.code_length must be between 4 and 10")
	}
	if c.Cache.Redis.Enabled && strings.TrimSpace(c.Cache.Redis.Address) == "" {
		return errors.New("config: cache.redis.address is required when redis is enabled")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.rate_limit.enabled", true)
	v.SetDefault("server.rate_limit.requests", 120)
	v.SetDefault("server.rate_limit.window", "1m")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/awards.sqlite")

	v.SetDefault("cache.redis.enabled", false)
	v.SetDefault("cache.redis.address", "127.0.0.1:6379")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.timeout", "5s")
	v.SetDefault("cache.redis.key_prefix", "awards:")

	v.SetDefault("auth.session.ttl", "168h")
	v.SetDefault("auth.session.token_length", 48)
	v.SetDefault("auth.session.cookie_name", "awards_session")
	v.SetDefault("auth.session.cache_ttl", "5m")

	v.SetDefault("verification.code_ttl", "10m")
	v.SetDefault("verification.code_length", 6)
	v.SetDefault("verification.expose_code", false)
	v.SetDefault("verification.subject", "Your awards verification code")

	v.SetDefault("voting.device_mode", services.DeviceModeFlag)
	v.SetDefault("voting.max_accounts_per_device", 1)
	v.SetDefault("voting.max_accounts_per_ip", services.DefaultMaxAccountsPerIP)

	v.SetDefault("email.queue_size", 256)
	v.SetDefault("email.smtp.enabled", false)
	v.SetDefault("email.smtp.port", 587)
	v.SetDefault("email.smtp.use_tls", false)
	v.SetDefault("email.smtp.timeout", "10s")

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")
	v.SetDefault("monitoring.health_check.enabled", true)
	v.SetDefault("monitoring.health_check.timeout", "3s")

	v.SetDefault("maintenance.enabled", true)
	v.SetDefault("maintenance.session_schedule", "@hourly")
	v.SetDefault("maintenance.verification_schedule", "@every 15m")
	v.SetDefault("maintenance.cache_schedule", "@every 30m")

	v.SetDefault("bootstrap.admin_name", "Administrator")
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

// ConfigureLogging initialises the global logger from the server section.
func (c ServerConfig) ConfigureLogging() error {
	level := strings.TrimSpace(c.LogLevel)
	if level == "" {
		level = "info"
	}
	return logger.Configure(logger.Options{Level: level, Format: c.LogFormat, Service: "awards"})
}

// DatabaseSettings converts the configuration into database.Config.
func (c DatabaseConfig) DatabaseSettings() database.Config {
	return database.Config{
		Driver:          c.Driver,
		Path:            c.Path,
		DSN:             c.DSN,
		Host:            c.Host,
		Port:            c.Port,
		User:            c.Username,
		Password:        c.Password,
		Name:            c.Name,
		Options:         c.Options,
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
		LogQueries:      c.LogQueries,
	}
}

func (c CacheConfig) RedisClientConfig() cache.RedisConfig {
	return cache.RedisConfig{
		Address:   strings.TrimSpace(c.Redis.Address),
		Username:  strings.TrimSpace(c.Redis.Username),
		Password:  c.Redis.Password,
		DB:        c.Redis.DB,
		TLS:       c.Redis.TLS,
		Timeout:   c.Redis.Timeout,
		KeyPrefix: c.Redis.KeyPrefix,
	}
}

func (c EmailConfig) SMTPSettings() mail.SMTPSettings {
	return mail.SMTPSettings{
		Enabled:  c.SMTP.Enabled,
		Host:     c.SMTP.Host,
		Port:     c.SMTP.Port,
		Username: c.SMTP.Username,
		Password: c.SMTP.Password,
		From:     c.SMTP.From,
		UseTLS:   c.SMTP.UseTLS,
		Timeout:  c.SMTP.Timeout,
	}
}

// SessionServiceConfig converts session settings, falling back to package defaults.
func (c AuthConfig) SessionServiceConfig() auth.SessionConfig {
	cfg := auth.SessionConfig{
		TTL:         c.Session.TTL,
		TokenLength: c.Session.TokenLength,
		CacheTTL:    c.Session.CacheTTL,
	}
	if cfg.TTL <= 0 {
		cfg.TTL = auth.DefaultSessionTTL
	}
	if cfg.TokenLength <= 0 {
		cfg.TokenLength = auth.DefaultTokenLength
	}
	return cfg
}

// VerificationOptions maps verification settings onto service options.
func (c Config) VerificationOptions() []services.VerificationOption {
	return []services.VerificationOption{
		services.WithCodeTTL(c.Verification.CodeTTL),
		services.WithCodeLength(c.Verification.CodeLength),
		services.WithVerificationSubject(c.Verification.Subject),
		services.WithVerificationSender(c.Email.SMTP.From),
	}
}

// DevicePolicy is the policy used while no device_policy AppSetting exists.
func (c VotingConfig) DevicePolicy() services.DevicePolicy {
	return services.DevicePolicy{
		Mode:        strings.ToLower(c.DeviceMode),
		MaxAccounts:      c.MaxAccountsDevice,
		MaxAccountsPerIP: c.MaxAccountsIP,
	}
}
