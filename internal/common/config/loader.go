// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml, merges configs/config.<env>.yaml, applies
// environment overrides and validates the result.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	overrideFromEnv(&cfg)
	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// loadEnvFile loads the first .env found walking from the working directory
// up to the module root. It returns the path used, or "".
func loadEnvFile() string {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return path
			}
		}
	}
	return ""
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "ideamarket-notifier")
	v.SetDefault("app.environment", "development")

	v.SetDefault("server.port", 4000)
	v.SetDefault("server.client_url", "http://localhost:3000")
	v.SetDefault("server.base_url", "")
	v.SetDefault("server.read_timeout", 15000)
	v.SetDefault("server.write_timeout", 60000)

	v.SetDefault("invites.top_n", 5)
	v.SetDefault("invites.strict_transitions", true)
	v.SetDefault("invites.store", StoreMemory)
	v.SetDefault("invites.key_prefix", "ideamarket")

	v.SetDefault("database.redis.address", "")
	v.SetDefault("database.postgres.host", "")
	v.SetDefault("database.postgres.port", 5432)

	v.SetDefault("mail.provider", MailProviderSMTP)
	v.SetDefault("mail.from_email", "")
	v.SetDefault("mail.timeout", 30000)

	v.SetDefault("integrations.smtp.host", "smtp.gmail.com")
	v.SetDefault("integrations.smtp.port", 465)
	v.SetDefault("integrations.smtp.secure", true)
	v.SetDefault("integrations.smtp.username", "")
	v.SetDefault("integrations.smtp.password", "")
	v.SetDefault("integrations.aws.region", "us-east-1")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("observability.service_name", "ideamarket-notifier")
	v.SetDefault("observability.jaeger_endpoint", "")
}

// expandEnvVars resolves ${VAR} placeholders in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			if expanded := os.ExpandEnv(strVal); expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideFromEnv honours the flat variable names the mailer has always
// been deployed with.
func overrideFromEnv(cfg *Config) {
	if port, ok := envInt("PORT"); ok {
		cfg.Server.Port = port
	}
	if val := os.Getenv("CLIENT_URL"); val != "" {
		cfg.Server.ClientURL = val
	}
	if val := os.Getenv("SERVER_URL"); val != "" {
		cfg.Server.BaseURL = val
	}
	if n, ok := envInt("TOP_N"); ok {
		cfg.Invites.TopN = n
	}

	if val := os.Getenv("SMTP_HOST"); val != "" {
		cfg.Integrations.SMTP.Host = val
	}
	if port, ok := envInt("SMTP_PORT"); ok {
		cfg.Integrations.SMTP.Port = port
	}
	if val := os.Getenv("SMTP_SECURE"); val != "" {
		cfg.Integrations.SMTP.Secure = val == "true"
	}
	if val := os.Getenv("SMTP_USER"); val != "" {
		cfg.Integrations.SMTP.Username = val
	}
	if val := os.Getenv("SMTP_PASS"); val != "" {
		cfg.Integrations.SMTP.Password = val
	}
	if val := os.Getenv("FROM_EMAIL"); val != "" {
		cfg.Mail.FromEmail = val
	}

	if val := os.Getenv("DB_USER"); val != "" && cfg.Database.Postgres.User == "" {
		cfg.Database.Postgres.User = val
	}
	if val := os.Getenv("DB_PASSWORD"); val != "" && cfg.Database.Postgres.Password == "" {
		cfg.Database.Postgres.Password = val
	}
}

func envInt(key string) (int, bool) {
	val := os.Getenv(key)
	if val == "" {
		return 0, false
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, false
	}
	return n, true
}

// applyDefaults fills values derived from other settings.
func applyDefaults(cfg *Config) {
	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}
	cfg.Server.BaseURL = strings.TrimRight(cfg.Server.BaseURL, "/")

	if cfg.Mail.FromEmail == "" {
		cfg.Mail.FromEmail = cfg.Integrations.SMTP.Username
	}
	cfg.Invites.Store = strings.ToLower(cfg.Invites.Store)
	cfg.Mail.Provider = strings.ToLower(cfg.Mail.Provider)

	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if cfg.Invites.TopN < 0 {
		return fmt.Errorf("invites.top_n must not be negative")
	}

	switch cfg.Invites.Store {
	case StoreMemory:
	case StoreRedis:
		if cfg.Database.Redis.Address == "" {
			return fmt.Errorf("database.redis.address is required for the redis store")
		}
	case StorePostgres:
		if cfg.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required for the postgres store")
		}
		if cfg.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required for the postgres store")
		}
		if cfg.Database.Postgres.User == "" {
			return fmt.Errorf("database.postgres.user is required for the postgres store")
		}
	default:
		return fmt.Errorf("invites.store must be one of memory, redis, postgres (got %q)", cfg.Invites.Store)
	}

	switch cfg.Mail.Provider {
	case MailProviderSMTP:
		if cfg.Integrations.SMTP.Host == "" {
			return fmt.Errorf("integrations.smtp.host is required for the smtp provider")
		}
		if cfg.Integrations.SMTP.Port <= 0 || cfg.Integrations.SMTP.Port > 65535 {
			return fmt.Errorf("integrations.smtp.port must be between 1 and 65535")
		}
	case MailProviderSES:
		if cfg.Integrations.AWS.Region == "" {
			return fmt.Errorf("integrations.aws.region is required for the ses provider")
		}
	default:
		return fmt.Errorf("mail.provider must be smtp or ses (got %q)", cfg.Mail.Provider)
	}

	if cfg.Integrations.AWS.SNS.Enabled && cfg.Integrations.AWS.SNS.TopicARN == "" {
		return fmt.Errorf("integrations.aws.sns.topic_arn is required when sns is enabled")
	}
	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
