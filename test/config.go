package test

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// RELAY_ADDR points the suite at an already running relay. Left empty,
	// every test boots its own relay on a loopback port.
	RelayAddr string `envconfig:"RELAY_ADDR"`
	// E2E_TIMEOUT bounds every single wait in the scenarios
	Timeout time.Duration `envconfig:"E2E_TIMEOUT" default:"5s"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
