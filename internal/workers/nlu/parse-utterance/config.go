package parseutterance

import (
	"fmt"
	"time"

	"nlu-engine/internal/common/config"
)

type Config struct {
	Enabled       bool          `mapstructure:"enabled"`
	MaxJobsActive int           `mapstructure:"max_jobs_active"`
	Timeout       time.Duration `mapstructure:"timeout"`
	// ParseTimeout bounds the engine call alone.
	ParseTimeout    time.Duration `mapstructure:"parse_timeout"`
	MaxAlternatives int           `mapstructure:"max_alternatives"`
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:         true,
		MaxJobsActive:   5,
		Timeout:         30 * time.Second,
		ParseTimeout:    2 * time.Second,
		MaxAlternatives: 3,
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.ParseTimeout <= 0 {
		return fmt.Errorf("parse_timeout must be positive")
	}
	if c.ParseTimeout > c.Timeout {
		return fmt.Errorf("parse_timeout must not exceed timeout")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max_jobs_active must be positive")
	}
	if c.MaxAlternatives < 0 {
		return fmt.Errorf("max_alternatives must not be negative")
	}
	return nil
}

func createConfigFromAppConfig(appConfig *config.Config, customConfig *Config) *Config {
	if customConfig != nil {
		return customConfig
	}

	cfg := DefaultConfig()
	if appConfig == nil {
		return cfg
	}

	if workerCfg, exists := appConfig.Workers[TaskType]; exists {
		cfg.Enabled = workerCfg.Enabled
		if workerCfg.MaxJobsActive > 0 {
			cfg.MaxJobsActive = workerCfg.MaxJobsActive
		}
		if workerCfg.Timeout > 0 {
			cfg.Timeout = config.GetDuration(workerCfg.Timeout)
		}
	}
	if appConfig.Engine.ParseTimeout > 0 {
		cfg.ParseTimeout = config.GetDuration(appConfig.Engine.ParseTimeout)
	}
	if appConfig.Engine.MaxAlternatives > 0 {
		cfg.MaxAlternatives = appConfig.Engine.MaxAlternatives
	}
	return cfg
}
