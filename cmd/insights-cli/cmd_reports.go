package main

import (
	"context"
	"errors"
	"time"

	"customer-insights/internal/common/config"
	"customer-insights/internal/common/logger"
	"customer-insights/internal/insights/chart"
	"customer-insights/internal/insights/dataset"
	"customer-insights/internal/upstream"

	"github.com/spf13/cobra"
)

var errReportsNeedSQL = errors.New("reports need the sql analytics mode")

// openReporter is swapped out in tests.
var openReporter = func(ctx context.Context, configPath string, log logger.Logger) (upstream.Reporter, func(), error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	if cfg.APIs.Analytics.Mode != config.AnalyticsModeSQL {
		return nil, nil, errReportsNeedSQL
	}

	cortex, cleanup, err := connectCortex(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return cortex, cleanup, nil
}

type reportResult struct {
	Report  string           `json:"report"`
	Tier    string           `json:"tier,omitempty"`
	Message string           `json:"message"`
	Data    *dataset.Dataset `json:"data"`
	Chart   *chart.Spec      `json:"chart"`
}

func newReportCmds(opts *rootOptions) []*cobra.Command {
	insights := newReportCmd(opts, upstream.ReportCustomerInsights, "insights",
		"Summarize the customer base, optionally for one tier")
	insights.Flags().String("tier", "", "limit the summary to one customer tier")

	return []*cobra.Command{
		insights,
		newReportCmd(opts, upstream.ReportSupportTrends, "support-trends", "Analyze support ticket trends"),
		newReportCmd(opts, upstream.ReportRevenueOpportunities, "revenue-opportunities", "List revenue opportunities"),
	}
}

func newReportCmd(opts *rootOptions, report upstream.Report, use, short string) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.NewStructured(opts.logLevel, "console")

			var tier string
			if f := cmd.Flags().Lookup("tier"); f != nil {
				tier = f.Value.String()
			}

			reporter, cleanup, err := openReporter(cmd.Context(), opts.configPath, log)
			if err != nil {
				return err
			}
			defer cleanup()

			resp, err := upstream.NewReportRunner(reporter, timeout, log).Run(cmd.Context(), report, tier)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, reportResult{
				Report:  report.Name,
				Tier:    tier,
				Message: resp.Message,
				Data:    resp.Data,
				Chart:   resp.Chart,
			})
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "backend call timeout")
	return cmd
}
