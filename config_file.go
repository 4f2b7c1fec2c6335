package joysky

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig reads a YAML config file, layers it over [DefaultConfig], and
// validates the result. Fields absent from the file keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadConfigWithEnv is [LoadConfig] plus environment overrides for the
// settings that differ between deployments.
func LoadConfigWithEnv(path string) (Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return Config{}, err
	}

	if v := os.Getenv("JOYSKY_PII_PUBLIC_KEY"); v != "" {
		cfg.PII.PublicKeyPath = v
	}
	if v := os.Getenv("JOYSKY_PII_PRIVATE_KEY"); v != "" {
		cfg.PII.PrivateKeyPath = v
	}
	if v := os.Getenv("JOYSKY_MAIL_COOLDOWN"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid JOYSKY_MAIL_COOLDOWN: %w", err)
		}
		cfg.Reset.MailCooldown = d
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration after env overrides: %w", err)
	}
	return cfg, nil
}
