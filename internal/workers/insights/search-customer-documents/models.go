package searchcustomerdocuments

import "customer-insights/internal/search"

type Input struct {
	Query        string `json:"query"`
	CustomerTier string `json:"customerTier,omitempty"`
	DocumentType string `json:"documentType,omitempty"`
	Limit        int    `json:"limit,omitempty"`
}

type Output struct {
	Documents []search.Document `json:"documents"`
	Total     int64             `json:"total"`
	Took      int64             `json:"took"` // milliseconds
}
