package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// dotenvFile is loaded before envconfig processing when present. Real
// environment variables always win over dotenv values.
const dotenvFile = ".env"

// Load resolves the full configuration from the environment and validates
// it. It is called exactly once at process start; any failure is fatal to
// the process, so a half-configured service never serves traffic.
func Load() (*Config, error) {
	// Dotenv is a local-development convenience only; missing file is fine.
	if _, err := os.Stat(dotenvFile); err == nil {
		if err := godotenv.Load(dotenvFile); err != nil {
			return nil, fmt.Errorf("loading %s: %w", dotenvFile, err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("processing environment config: %w", err)
	}

	cfg.Build = buildInfo()

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate applies the struct validation tags and reports every failing
// field, so an operator can fix a broken deployment in one pass.
func validate(cfg *Config) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	err := v.Struct(cfg)
	if err == nil {
		return nil
	}

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("validating config: %w", err)
	}

	msg := "invalid configuration:"
	for _, fe := range validationErrs {
		msg += fmt.Sprintf(" %s (rule %q);", fe.Namespace(), fe.Tag())
	}
	return fmt.Errorf("%s", msg)
}
