package upstream

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"customer-insights/internal/common/logger"
	"customer-insights/internal/insights/dispatch"
	"customer-insights/internal/insights/response"
)

const (
	queryAskGeneral           = "SELECT ask_customer_360_ai($1) AS response"
	queryAnalyzeCustomer      = "SELECT analyze_customer($1, $2) AS response"
	queryCustomerInsights     = "SELECT get_customer_insights($1) AS response"
	querySupportTrends        = "SELECT analyze_support_trends() AS response"
	queryRevenueOpportunities = "SELECT analyze_revenue_opportunities() AS response"
)

// CortexFunctions lists the stored functions the client calls.
var CortexFunctions = []string{
	"ask_customer_360_ai",
	"analyze_customer",
	"get_customer_insights",
	"analyze_support_trends",
	"analyze_revenue_opportunities",
}

// Analysis types understood by analyze_customer.
const (
	AnalysisOverview      = "overview"
	AnalysisChurnRisk     = "churn_risk"
	AnalysisOpportunities = "opportunities"
)

var (
	churnHints       = []string{"churn", "risk", "leav", "retention"}
	opportunityHints = []string{"opportunit", "upsell", "cross-sell", "revenue", "recommend"}
)

// RowQuerier is satisfied by *database.PostgresClient.
type RowQuerier interface {
	QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// CortexClient asks the warehouse's AI functions. Each call is one SELECT that
// returns a single text (often JSON) column.
type CortexClient struct {
	db     RowQuerier
	logger logger.Logger
}

func NewCortexClient(db RowQuerier, log logger.Logger) *CortexClient {
	return &CortexClient{
		db:     db,
		logger: log.With(map[string]interface{}{"upstream": "cortex"}),
	}
}

func (c *CortexClient) CallGeneral(ctx context.Context, question string) (response.Raw, error) {
	return c.selectOne(ctx, "ask_customer_360_ai", queryAskGeneral, question)
}

func (c *CortexClient) CallScoped(ctx context.Context, question, customerID string) (response.Raw, error) {
	return c.AnalyzeCustomer(ctx, customerID, AnalysisTypeFor(question))
}

func (c *CortexClient) AnalyzeCustomer(ctx context.Context, customerID, analysisType string) (response.Raw, error) {
	if analysisType == "" {
		analysisType = AnalysisOverview
	}
	return c.selectOne(ctx, "analyze_customer", queryAnalyzeCustomer, customerID, analysisType)
}

// CustomerInsights summarizes the customer base, optionally for one tier.
func (c *CortexClient) CustomerInsights(ctx context.Context, tier string) (response.Raw, error) {
	var arg interface{}
	if tier != "" {
		arg = tier
	}
	return c.selectOne(ctx, "get_customer_insights", queryCustomerInsights, arg)
}

func (c *CortexClient) SupportTrends(ctx context.Context) (response.Raw, error) {
	return c.selectOne(ctx, "analyze_support_trends", querySupportTrends)
}

func (c *CortexClient) RevenueOpportunities(ctx context.Context) (response.Raw, error) {
	return c.selectOne(ctx, "analyze_revenue_opportunities", queryRevenueOpportunities)
}

func (c *CortexClient) selectOne(ctx context.Context, function, query string, args ...interface{}) (response.Raw, error) {
	var payload sql.NullString
	err := c.db.QueryRow(ctx, query, args...).Scan(&payload)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		c.logger.Debug("analytics function returned no rows", map[string]interface{}{"function": function})
		return response.Empty(), nil
	case err != nil:
		if ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return response.Empty(), fmt.Errorf("%w: %w: %s", dispatch.ErrTransportFailure, dispatch.ErrUpstreamTimeout, function)
		}
		return response.Empty(), fmt.Errorf("%w: %s: %v", dispatch.ErrTransportFailure, function, err)
	case !payload.Valid:
		return response.Empty(), nil
	}

	return response.Text(payload.String), nil
}

// AnalysisTypeFor picks the analyze_customer mode from the wording of the question.
func AnalysisTypeFor(question string) string {
	lower := strings.ToLower(question)
	for _, hint := range churnHints {
		if strings.Contains(lower, hint) {
			return AnalysisChurnRisk
		}
	}
	for _, hint := range opportunityHints {
		if strings.Contains(lower, hint) {
			return AnalysisOpportunities
		}
	}
	return AnalysisOverview
}
