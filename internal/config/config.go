// Package config loads twin-paypal settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/wondertwin-ai/twin-paypal/pkg/twincore"
)

// EnvPrefix prefixes every environment variable, e.g. TWIN_PAYPAL_CLIENT_ID.
const EnvPrefix = "TWIN_PAYPAL"

// DefaultEnvFile is loaded when present.
const DefaultEnvFile = ".env"

// DefaultPort is used when neither TWIN_PAYPAL_PORT nor PORT is set.
const DefaultPort = 12112

// Config is the full twin configuration.
type Config struct {
	twincore.Config

	// APIHostname is the host requests must target. Empty accepts any host,
	// which is what a locally served twin needs.
	APIHostname        string `envconfig:"API_HOSTNAME" json:"api_hostname"`
	ClientID           string `split_words:"true" json:"client_id"`
	ClientSecret       string `split_words:"true" json:"-"`
	TokenKey           string `split_words:"true" json:"-"`
	WebhookID          string `split_words:"true" default:"WH-TWIN-PAYPAL" json:"webhook_id"`
	WebhookSecret      string `split_words:"true" json:"-"`
	WebhookAutoDeliver bool   `split_words:"true" default:"true" json:"webhook_auto_deliver"`
	IDMode             string `envconfig:"ID_MODE" default:"random" json:"id_mode" validate:"oneof=random sequential"`
}

// Load reads envFile (if it exists) into the process environment without
// overriding variables already set, then decodes and validates the config.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		var perr *envconfig.ParseError
		if errors.As(err, &perr) {
			return nil, &twincore.ConfigError{Field: perr.FieldName, Err: perr.Err}
		}
		return nil, &twincore.ConfigError{Err: err}
	}
	cfg.Name = "twin-paypal"
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the shared and PayPal-specific settings.
func (c *Config) Validate() error {
	return twincore.ValidateConfig(c)
}

// SequentialIDs reports whether deterministic IDs were requested.
func (c *Config) SequentialIDs() bool {
	return c.IDMode == "sequential"
}
