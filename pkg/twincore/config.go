package twincore

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds the settings every twin shares. Fields are populated from the
// environment by envconfig and may be overridden by CLI flags.
type Config struct {
	Port       int           `envconfig:"PORT" json:"port" validate:"gte=0,lte=65535"`
	Latency    time.Duration `split_words:"true" json:"latency" validate:"gte=0s"`
	FailRate   float64       `split_words:"true" json:"fail_rate" validate:"gte=0,lte=1"`
	WebhookURL string        `split_words:"true" json:"webhook_url" validate:"omitempty,url"`
	SeedFile   string        `split_words:"true" json:"seed_file"`
	Verbose    bool          `split_words:"true" json:"verbose"`
	Name       string        `ignored:"true" json:"name"` // twin name for logging
}

// ConfigError reports a configuration value that failed to load or validate.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("config: %v", e.Err)
	}
	return fmt.Sprintf("config: %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

var configValidator = validator.New(validator.WithRequiredStructEnabled())

// ValidateConfig checks the validate tags of cfg, which may be a Config or a
// struct embedding one. The first failing field is returned as a *ConfigError.
func ValidateConfig(cfg any) error {
	err := configValidator.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &ConfigError{
			Field: fe.Field(),
			Err:   fmt.Errorf("failed %q check (value %v)", fe.Tag(), fe.Value()),
		}
	}
	return &ConfigError{Err: err}
}

// Validate checks the shared settings.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}
