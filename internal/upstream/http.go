package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	httpclient "customer-insights/internal/common/http"
	"customer-insights/internal/common/logger"
	"customer-insights/internal/insights/dispatch"
	"customer-insights/internal/insights/response"
)

const (
	pathAskGeneral = "/api/analytics/ask"
	pathAskScoped  = "/api/analytics/customers/%s/ask"
)

type askRequest struct {
	Question string `json:"question"`
}

// HTTPClient asks an analytics REST service. Calls are never retried.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *httpclient.Client
	logger  logger.Logger
}

func NewHTTPClient(baseURL, apiKey string, timeout time.Duration, log logger.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  httpclient.NewClient(timeout),
		logger:  log.With(map[string]interface{}{"upstream": "http"}),
	}
}

func (c *HTTPClient) CallGeneral(ctx context.Context, question string) (response.Raw, error) {
	return c.post(ctx, c.baseURL+pathAskGeneral, question)
}

func (c *HTTPClient) CallScoped(ctx context.Context, question, customerID string) (response.Raw, error) {
	endpoint := c.baseURL + fmt.Sprintf(pathAskScoped, url.PathEscape(customerID))
	return c.post(ctx, endpoint, question)
}

func (c *HTTPClient) post(ctx context.Context, endpoint, question string) (response.Raw, error) {
	headers := map[string]string{}
	if c.apiKey != "" {
		headers["Authorization"] = "Bearer " + c.apiKey
	}

	body, err := c.client.PostJSON(ctx, endpoint, askRequest{Question: question}, headers)
	if err != nil {
		var statusErr *httpclient.StatusError
		if errors.As(err, &statusErr) {
			c.logger.Debug("analytics service rejected request", map[string]interface{}{
				"status":   statusErr.StatusCode,
				"endpoint": endpoint,
			})
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return response.Empty(), fmt.Errorf("%w: %w: %v", dispatch.ErrTransportFailure, dispatch.ErrUpstreamTimeout, err)
		}
		return response.Empty(), fmt.Errorf("%w: %v", dispatch.ErrTransportFailure, err)
	}

	if len(body) == 0 {
		return response.Empty(), nil
	}
	return response.Text(string(body)), nil
}
