package askcustomerinsights

import (
	"customer-insights/internal/common/errors"
	"customer-insights/internal/insights/chart"
	"customer-insights/internal/insights/dataset"
)

type Input struct {
	Question   string `json:"question"`
	CustomerID string `json:"customerId,omitempty"`
	SessionID  string `json:"sessionId,omitempty"`
}

type Output struct {
	Message string           `json:"message"`
	Data    *dataset.Dataset `json:"data"`
	Chart   *chart.Spec      `json:"chart"`
	// Outcome is how the backend payload was read; empty when it never answered.
	Outcome string `json:"outcome"`
	// Source is "upstream", "fallback" or "apology".
	Source    string `json:"source"`
	ErrorCode string `json:"errorCode,omitempty"`
	// Error details the recovered failure, or an unparsable payload that was used as text.
	Error        *errors.StandardError `json:"error,omitempty"`
	HistorySaved bool                  `json:"historySaved"`
	RequestID    string                `json:"requestId"`
}
