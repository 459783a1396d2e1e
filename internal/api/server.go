package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"customer-insights/internal/common/database"
	"customer-insights/internal/common/errors"
	"customer-insights/internal/common/logger"
	"customer-insights/internal/insights/chart"
	"customer-insights/internal/insights/dataset"
	"customer-insights/internal/insights/response"
	"customer-insights/internal/session"
	"customer-insights/internal/upstream"
	ask "customer-insights/internal/workers/insights/ask-customer-insights"
	docs "customer-insights/internal/workers/insights/search-customer-documents"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxRequestBytes = 64 << 10

// Asker is satisfied by the ask-customer-insights job handler.
type Asker interface {
	Execute(ctx context.Context, input *ask.Input) (*ask.Output, error)
}

// DocumentSearcher is satisfied by the search-customer-documents job handler.
type DocumentSearcher interface {
	Execute(ctx context.Context, input *docs.Input) (*docs.Output, error)
}

// ReportRunner is satisfied by *upstream.ReportRunner.
type ReportRunner interface {
	Run(ctx context.Context, report upstream.Report, tier string) (response.Response, error)
}

type Dependencies struct {
	Asker    Asker
	Searcher DocumentSearcher
	// Reports may be nil, in which case the report routes answer 503.
	Reports ReportRunner
	// History may be nil, in which case the session routes answer 503.
	History      session.Store
	Checks       map[string]database.Pinger
	CheckTimeout time.Duration
	// RequestTimeout bounds /api/ask and /api/search.
	RequestTimeout time.Duration
	Logger         logger.Logger
}

type Server struct {
	deps   Dependencies
	logger logger.Logger
}

func NewServer(deps Dependencies) *Server {
	if deps.CheckTimeout == 0 {
		deps.CheckTimeout = 2 * time.Second
	}
	return &Server{
		deps:   deps,
		logger: deps.Logger.With(map[string]interface{}{"component": "http"}),
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /api/ask", s.handleAsk)
	mux.HandleFunc("GET /api/search", s.handleSearch)
	mux.HandleFunc("GET /api/insights", s.handleReport(upstream.ReportCustomerInsights))
	mux.HandleFunc("GET /api/support-trends", s.handleReport(upstream.ReportSupportTrends))
	mux.HandleFunc("GET /api/revenue-opportunities", s.handleReport(upstream.ReportRevenueOpportunities))
	mux.HandleFunc("GET /api/sessions/{id}/history", s.handleHistory)
	mux.HandleFunc("DELETE /api/sessions/{id}/history", s.handleClearHistory)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := database.CheckAll(r.Context(), s.deps.CheckTimeout, s.deps.Checks)
	ok, failing := database.Healthy(checks)

	body := map[string]interface{}{
		"status": "ready",
		"checks": checks,
		"time":   time.Now().Format(time.RFC3339),
	}
	if !ok {
		body["status"] = "not_ready"
		body["failing"] = failing
		writeJSON(w, http.StatusServiceUnavailable, body)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var input ask.Input
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(&input); err != nil {
		s.writeError(w, errors.NewInvalidInputError("request body must be JSON: "+err.Error()))
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	out, err := s.deps.Asker.Execute(ctx, &input)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	input := docs.Input{
		Query:        q.Get("q"),
		CustomerTier: q.Get("tier"),
		DocumentType: q.Get("type"),
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			s.writeError(w, errors.NewInvalidInputError("limit must be a positive integer"))
			return
		}
		input.Limit = limit
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	out, err := s.deps.Searcher.Execute(ctx, &input)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type reportBody struct {
	Report  string           `json:"report"`
	Tier    string           `json:"tier,omitempty"`
	Message string           `json:"message"`
	Data    *dataset.Dataset `json:"data"`
	Chart   *chart.Spec      `json:"chart"`
}

func (s *Server) handleReport(report upstream.Report) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.deps.Reports == nil {
			writeJSON(w, http.StatusServiceUnavailable,
				errorBody("REPORTS_UNAVAILABLE", "reports need the sql analytics backend", ""))
			return
		}

		var tier string
		if report == upstream.ReportCustomerInsights {
			tier = r.URL.Query().Get("tier")
		}

		ctx, cancel := s.requestContext(r)
		defer cancel()

		resp, err := s.deps.Reports.Run(ctx, report, tier)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, reportBody{
			Report:  report.Name,
			Tier:    tier,
			Message: resp.Message,
			Data:    resp.Data,
			Chart:   resp.Chart,
		})
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("HISTORY_UNAVAILABLE", "conversation history is disabled", ""))
		return
	}
	sessionID := r.PathValue("id")

	body, err := session.Export(r.Context(), s.deps.History, sessionID)
	if err != nil {
		s.writeError(w, errors.NewHistoryStoreFailedError(sessionID, err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("HISTORY_UNAVAILABLE", "conversation history is disabled", ""))
		return
	}
	sessionID := r.PathValue("id")

	if err := s.deps.History.Clear(r.Context(), sessionID); err != nil {
		s.writeError(w, errors.NewHistoryStoreFailedError(sessionID, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.deps.RequestTimeout > 0 {
		return context.WithTimeout(r.Context(), s.deps.RequestTimeout)
	}
	return context.WithCancel(r.Context())
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	stdErr := errors.Normalize(err)
	status := StatusFor(stdErr.Code)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", map[string]interface{}{
			"errorCode": string(stdErr.Code),
			"details":   stdErr.Details,
		})
	}
	writeJSON(w, status, errorBody(string(stdErr.Code), stdErr.Message, stdErr.Details))
}

// StatusFor maps an error code to the HTTP status returned for it.
func StatusFor(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case errors.ErrCodeIndexNotFound:
		return http.StatusNotFound
	case errors.ErrCodeSearchTimeout, errors.ErrCodeUpstreamTimeout:
		return http.StatusGatewayTimeout
	case errors.ErrCodeTransportFailure, errors.ErrCodeSearchQueryFailed, errors.ErrCodeHistoryStoreFailed,
		errors.ErrCodeElasticsearchConnectionFailed, errors.ErrCodeDatabaseConnectionFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errorBody(code, message, details string) map[string]interface{} {
	body := map[string]interface{}{"code": code, "message": message}
	if details != "" {
		body["details"] = details
	}
	return map[string]interface{}{"error": body}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
