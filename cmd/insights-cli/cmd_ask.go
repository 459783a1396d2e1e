package main

import (
	"context"
	"fmt"
	"time"

	"customer-insights/internal/common/config"
	"customer-insights/internal/common/database"
	"customer-insights/internal/common/logger"
	"customer-insights/internal/insights/chart"
	"customer-insights/internal/insights/dataset"
	"customer-insights/internal/insights/dispatch"
	"customer-insights/internal/insights/fallback"
	"customer-insights/internal/upstream"

	"github.com/spf13/cobra"
)

type askResult struct {
	Message string           `json:"message"`
	Data    *dataset.Dataset `json:"data"`
	Chart   *chart.Spec      `json:"chart"`
	Source  string           `json:"source"`
	Outcome string           `json:"outcome,omitempty"`
	Code    string           `json:"errorCode,omitempty"`
	Topic   string           `json:"topic,omitempty"`
	Trail   []string         `json:"trail"`
}

func newAskCmd(opts *rootOptions) *cobra.Command {
	var (
		customerID string
		offline    bool
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask the analytics backend, falling back to the built-in knowledge base",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.NewStructured(opts.logLevel, "console")

			var (
				up      dispatch.Upstream
				cleanup = func() {}
			)
			if !offline {
				var err error
				up, cleanup, err = buildUpstream(cmd.Context(), opts.configPath, log)
				if err != nil {
					return err
				}
			}
			defer cleanup()

			d := dispatch.NewDispatcher(up, fallback.NewKnowledgeBase(), dispatch.Config{Timeout: timeout}, log)
			res := d.Resolve(cmd.Context(), args[0], customerID)
			return render(cmd.OutOrStdout(), opts.output, toAskResult(res))
		},
	}

	cmd.Flags().StringVar(&customerID, "customer", "", "scope the question to one customer ID")
	cmd.Flags().BoolVar(&offline, "offline", false, "skip the backend and answer from the knowledge base")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "backend call timeout")
	return cmd
}

func toAskResult(res dispatch.Result) askResult {
	trail := make([]string, 0, len(res.Trail))
	for _, s := range res.Trail {
		trail = append(trail, s.String())
	}
	return askResult{
		Message: res.Response.Message,
		Data:    res.Response.Data,
		Chart:   res.Response.Chart,
		Source:  res.Source(),
		Outcome: string(res.Outcome),
		Code:    res.Code(),
		Topic:   res.Topic,
		Trail:   trail,
	}
}

// buildUpstream connects the backend named by the config's analytics mode.
func buildUpstream(ctx context.Context, configPath string, log logger.Logger) (dispatch.Upstream, func(), error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}

	if cfg.APIs.Analytics.Mode == config.AnalyticsModeHTTP {
		up := upstream.NewHTTPClient(cfg.APIs.Analytics.BaseURL, cfg.APIs.Analytics.APIKey,
			config.GetDuration(cfg.APIs.Analytics.Timeout), log)
		return up, func() {}, nil
	}

	cortex, cleanup, err := connectCortex(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return cortex, cleanup, nil
}

func loadConfig(configPath string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func connectCortex(ctx context.Context, cfg *config.Config, log logger.Logger) (*upstream.CortexClient, func(), error) {
	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pg.Ping(ctx); err != nil {
		pg.Close()
		return nil, nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return upstream.NewCortexClient(pg, log), func() { pg.Close() }, nil
}
