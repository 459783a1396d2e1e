package database

import (
	"context"
	"fmt"
	"net/http"

	"customer-insights/internal/common/config"
	commonerrors "customer-insights/internal/common/errors"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// ElasticsearchClient wraps the client used for customer document search.
type ElasticsearchClient struct {
	Client *elasticsearch.Client
}

func NewElasticsearch(cfg config.ElasticsearchConfig) (*ElasticsearchClient, error) {
	addrs := cfg.GetAddresses()
	if len(addrs) == 0 {
		return nil, fmt.Errorf("elasticsearch has no addresses configured")
	}

	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: addrs,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	return &ElasticsearchClient{Client: es}, nil
}

func (c *ElasticsearchClient) Ping(ctx context.Context) error {
	res, err := c.Client.Ping(c.Client.Ping.WithContext(ctx))
	if err != nil {
		return commonerrors.NewElasticsearchConnectionFailedError(fmt.Errorf("elasticsearch ping failed: %w", err))
	}
	defer res.Body.Close()
	if res.IsError() {
		return commonerrors.NewElasticsearchConnectionFailedError(fmt.Errorf("elasticsearch ping returned %s", res.Status()))
	}
	return nil
}

// IndexExists reports whether index is present in the cluster.
func (c *ElasticsearchClient) IndexExists(ctx context.Context, index string) (bool, error) {
	res, err := esapi.IndicesExistsRequest{Index: []string{index}}.Do(ctx, c.Client)
	if err != nil {
		return false, fmt.Errorf("index check for %s failed: %w", index, err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("index check for %s returned %s", index, res.Status())
	}
}

// IndexPinger is a readiness check that fails while index is missing.
func (c *ElasticsearchClient) IndexPinger(index string) Pinger {
	return indexPinger{client: c, index: index}
}

type indexPinger struct {
	client *ElasticsearchClient
	index  string
}

func (p indexPinger) Ping(ctx context.Context) error {
	ok, err := p.client.IndexExists(ctx, p.index)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("index %s not found", p.index)
	}
	return nil
}
