package upstream

import (
	"context"
	"errors"
	"fmt"
	"time"

	commonerrors "customer-insights/internal/common/errors"
	"customer-insights/internal/common/logger"
	"customer-insights/internal/common/metrics"
	"customer-insights/internal/insights/dispatch"
	"customer-insights/internal/insights/response"
)

// Report is one of the warehouse's fixed analyses.
type Report struct {
	Name string
	// Context stands in for the question when a chart is picked for the data.
	Context string
	// Empty is the message used when the function returns nothing.
	Empty string
}

var (
	ReportCustomerInsights     = Report{Name: "customer-insights", Context: "Customer insights", Empty: "Could not generate customer insights"}
	ReportSupportTrends        = Report{Name: "support-trends", Context: "Support trends", Empty: "Could not analyze support trends"}
	ReportRevenueOpportunities = Report{Name: "revenue-opportunities", Context: "Revenue opportunities", Empty: "Could not analyze revenue opportunities"}
)

// Reports lists every report in display order.
var Reports = []Report{ReportCustomerInsights, ReportSupportTrends, ReportRevenueOpportunities}

func ReportByName(name string) (Report, bool) {
	for _, r := range Reports {
		if r.Name == name {
			return r, true
		}
	}
	return Report{}, false
}

// Reporter is satisfied by *CortexClient.
type Reporter interface {
	CustomerInsights(ctx context.Context, tier string) (response.Raw, error)
	SupportTrends(ctx context.Context) (response.Raw, error)
	RevenueOpportunities(ctx context.Context) (response.Raw, error)
}

// ReportRunner calls a report and normalizes its payload. Reports have no offline
// answer, so backend failures come back as StandardErrors.
type ReportRunner struct {
	reporter Reporter
	timeout  time.Duration
	logger   logger.Logger
}

func NewReportRunner(reporter Reporter, timeout time.Duration, log logger.Logger) *ReportRunner {
	return &ReportRunner{
		reporter: reporter,
		timeout:  timeout,
		logger:   log.With(map[string]interface{}{"component": "reports"}),
	}
}

// Run executes the report. tier only applies to ReportCustomerInsights.
func (r *ReportRunner) Run(ctx context.Context, report Report, tier string) (response.Response, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	var (
		raw response.Raw
		err error
	)
	switch report.Name {
	case ReportCustomerInsights.Name:
		raw, err = r.reporter.CustomerInsights(ctx, tier)
	case ReportSupportTrends.Name:
		raw, err = r.reporter.SupportTrends(ctx)
	case ReportRevenueOpportunities.Name:
		raw, err = r.reporter.RevenueOpportunities(ctx)
	default:
		return response.Response{}, commonerrors.NewInvalidInputError(fmt.Sprintf("unknown report %q", report.Name))
	}
	metrics.UpstreamDuration.WithLabelValues(report.Name).Observe(time.Since(start).Seconds())

	if err != nil {
		stdErr := r.reportError(ctx, report, err)
		r.logger.Warn("report failed", map[string]interface{}{
			"report":    report.Name,
			"errorCode": string(stdErr.Code),
			"error":     err.Error(),
		})
		return response.Response{}, stdErr
	}

	resp := response.Normalize(raw, report.Context)
	if resp.Message == response.DefaultMessage && !resp.HasData() {
		resp.Message = report.Empty
	}

	r.logger.Info("report served", map[string]interface{}{
		"report":     report.Name,
		"hasData":    resp.HasData(),
		"durationMs": time.Since(start).Milliseconds(),
	})
	return resp, nil
}

func (r *ReportRunner) reportError(ctx context.Context, report Report, err error) *commonerrors.StandardError {
	if errors.Is(err, dispatch.ErrUpstreamTimeout) || errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return commonerrors.NewUpstreamTimeoutError(report.Name, r.timeout)
	}
	return commonerrors.NewTransportFailureError(report.Name, err)
}
