// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Server        ServerConfig        `mapstructure:"server"`
	Invites       InvitesConfig       `mapstructure:"invites"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Mail          MailConfig          `mapstructure:"mail"`
	Integrations  IntegrationConfig   `mapstructure:"integrations"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// ServerConfig covers the HTTP listener and the URLs it advertises.
type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	ClientURL    string `mapstructure:"client_url"` // allowed CORS origin
	BaseURL      string `mapstructure:"base_url"`   // prefix for capability links
	ReadTimeout  int    `mapstructure:"read_timeout"`  // milliseconds
	WriteTimeout int    `mapstructure:"write_timeout"` // milliseconds
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

// Store backends for invitations.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// InvitesConfig drives invitation creation and lifecycle rules.
type InvitesConfig struct {
	TopN              int    `mapstructure:"top_n"`
	StrictTransitions bool   `mapstructure:"strict_transitions"`
	Store             string `mapstructure:"store"`
	KeyPrefix         string `mapstructure:"key_prefix"` // redis only
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Mail providers.
const (
	MailProviderSMTP = "smtp"
	MailProviderSES  = "ses"
)

// MailConfig selects and tunes the outbound mail transport.
type MailConfig struct {
	Provider  string `mapstructure:"provider"`
	FromEmail string `mapstructure:"from_email"`
	Timeout   int    `mapstructure:"timeout"` // milliseconds
}

// IntegrationConfig holds settings for SMTP and AWS.
type IntegrationConfig struct {
	SMTP SMTPConfig `mapstructure:"smtp"`

	AWS struct {
		Region string `mapstructure:"region"`
		SES    struct {
			Enabled bool `mapstructure:"enabled"`
		} `mapstructure:"ses"`
		SNS struct {
			Enabled  bool   `mapstructure:"enabled"`
			TopicARN string `mapstructure:"topic_arn"`
		} `mapstructure:"sns"`
	} `mapstructure:"aws"`
}

// SMTPConfig configures the SMTP transport. Secure means
// implicit TLS (port 465); otherwise STARTTLS is used when offered.
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Secure   bool   `mapstructure:"secure"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// ObservabilityConfig configures OpenTelemetry.
type ObservabilityConfig struct {
	ServiceName    string `mapstructure:"service_name"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
}

// MailTimeout returns the mail send budget as a duration.
func (c *Config) MailTimeout() time.Duration {
	return GetDuration(c.Mail.Timeout)
}

// NotifyBudget bounds the mail sends of one notify request so its response
// is written before the server write timeout. Zero means no bound.
func (c *Config) NotifyBudget() time.Duration {
	wt := GetDuration(c.Server.WriteTimeout)
	if wt <= 0 {
		return 0
	}
	return wt - wt/5
}
