package service

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	TopN              int           `mapstructure:"top_n"`
	BaseURL           string        `mapstructure:"base_url"`
	FromEmail         string        `mapstructure:"from_email"`
	StrictTransitions bool          `mapstructure:"strict_transitions"`
	MailTimeout       time.Duration `mapstructure:"mail_timeout"`
	// BatchTimeout bounds all mail sends of one CreateInvites call; 0 means
	// only MailTimeout applies.
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}

func DefaultConfig() *Config {
	return &Config{
		TopN:              5,
		BaseURL:           "http://localhost:4000",
		StrictTransitions: true,
		MailTimeout:       30 * time.Second,
	}
}

func (c *Config) Validate() error {
	if c.TopN < 0 {
		return fmt.Errorf("top_n must not be negative")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("base_url must be an http(s) URL")
	}
	if c.MailTimeout < 0 {
		return fmt.Errorf("mail_timeout must not be negative")
	}
	if c.BatchTimeout < 0 {
		return fmt.Errorf("batch_timeout must not be negative")
	}
	return nil
}
