// Package config loads daemon settings from sdlcd.yml and the SDLCD_*
// environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the daemon's settings.
type Config struct {
	// Listen is the HTTP API bind address.
	Listen string `mapstructure:"listen"`

	// Agents maps stage ids to agent endpoint URLs. When empty, the
	// daemon starts its built-in stub fleet instead.
	Agents map[string]string `mapstructure:"agents"`

	// AutoAdvance controls automatic progression after a stage succeeds.
	AutoAdvance bool `mapstructure:"autoAdvance"`

	// AdvanceDelay is the pause before an automatic advance.
	AdvanceDelay time.Duration `mapstructure:"advanceDelay"`

	// InvokeTimeout bounds a single agent call.
	InvokeTimeout time.Duration `mapstructure:"invokeTimeout"`

	// StubBasePort is the first port for the stub fleet; 0 picks free
	// ports.
	StubBasePort int `mapstructure:"stubBasePort"`
}

// Load reads sdlcd.yml (or .yaml) from dir, layering SDLCD_* environment
// variables on top. A missing file yields the defaults, not an error.
func Load(dir string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("sdlcd")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	v.SetEnvPrefix("SDLCD")
	v.AutomaticEnv()

	v.SetDefault("listen", ":8080")
	v.SetDefault("autoAdvance", true)
	v.SetDefault("advanceDelay", 3*time.Second)
	v.SetDefault("invokeTimeout", 2*time.Minute)
	v.SetDefault("stubBasePort", 0)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read %s: %w", dir, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if cfg.AdvanceDelay < 0 {
		return nil, fmt.Errorf("config: advanceDelay must not be negative")
	}
	if cfg.InvokeTimeout <= 0 {
		return nil, fmt.Errorf("config: invokeTimeout must be positive")
	}

	return &cfg, nil
}

// UseStubAgents reports whether the daemon should run its built-in fleet.
func (c *Config) UseStubAgents() bool {
	return len(c.Agents) == 0
}
