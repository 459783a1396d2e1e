package searchcustomerdocuments

import (
	"time"

	"customer-insights/internal/common/config"
)

type Config struct {
	Enabled bool
	Timeout time.Duration
	Index   string
}

func NewConfig(wcfg config.WorkerConfig, index string) *Config {
	cfg := &Config{
		Enabled: wcfg.Enabled,
		Timeout: 10 * time.Second,
		Index:   index,
	}
	if wcfg.Timeout > 0 {
		cfg.Timeout = config.GetDuration(wcfg.Timeout)
	}
	return cfg
}
