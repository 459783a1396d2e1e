package database

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"customer-insights/internal/common/config"
	commonerrors "customer-insights/internal/common/errors"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestPostgres_Ping(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing()
	client := NewPostgresFromDB(db)
	assert.NoError(t, client.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedis_Ping(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedis(config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, client.Ping(context.Background()))

	_, err = NewRedis(config.RedisConfig{})
	assert.Error(t, err)
}

func TestElasticsearch_Ping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := NewElasticsearch(config.ElasticsearchConfig{URL: server.URL})
	require.NoError(t, err)
	assert.NoError(t, client.Ping(context.Background()))
}

func TestPostgres_PingFailureIsConnectionError(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	err = NewPostgresFromDB(db).Ping(context.Background())
	require.Error(t, err)

	var stdErr *commonerrors.StandardError
	require.True(t, errors.As(err, &stdErr))
	assert.Equal(t, commonerrors.ErrCodeDatabaseConnectionFailed, stdErr.Code)
	assert.True(t, stdErr.Retryable)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestElasticsearch_PingFailureIsConnectionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client, err := NewElasticsearch(config.ElasticsearchConfig{URL: server.URL})
	require.NoError(t, err)

	err = client.Ping(context.Background())
	require.Error(t, err)
	assert.Equal(t, commonerrors.ErrCodeElasticsearchConnectionFailed, commonerrors.Normalize(err).Code)
	assert.Contains(t, err.Error(), "500")
}

func TestNewPostgres_PoolDefaults(t *testing.T) {
	client, err := NewPostgres(config.PostgresConfig{Host: "localhost", Port: 5432, SSLMode: "disable"})
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, defaultPostgresMaxOpen, client.DB.Stats().MaxOpenConnections)
}

func TestPostgres_MissingFunctions(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT DISTINCT proname FROM pg_proc").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"proname"}).AddRow("ask_customer_360_ai"))

	client := NewPostgresFromDB(db)
	missing, err := client.MissingFunctions(context.Background(), "ask_customer_360_ai", "analyze_customer", "analyze_support_trends")
	require.NoError(t, err)
	assert.Equal(t, []string{"analyze_customer", "analyze_support_trends"}, missing)
	assert.NoError(t, mock.ExpectationsWereMet())

	missing, err = client.MissingFunctions(context.Background())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestPostgres_MissingFunctionsQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT DISTINCT proname").WillReturnError(errors.New("permission denied"))

	_, err = NewPostgresFromDB(db).MissingFunctions(context.Background(), "analyze_customer")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
}

func TestRedis_URLAddress(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedis(config.RedisConfig{Address: "redis://" + mr.Addr() + "/2"})
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, 2, client.Client.Options().DB)
	assert.Equal(t, mr.Addr(), client.Client.Options().Addr)
	assert.NoError(t, client.Ping(context.Background()))

	_, err = NewRedis(config.RedisConfig{Address: "redis://host:port:extra/x"})
	assert.Error(t, err)
}

func TestElasticsearch_IndexPinger(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		switch r.URL.Path {
		case "/customer_documents":
			w.WriteHeader(http.StatusOK)
		case "/broken":
			w.WriteHeader(http.StatusForbidden)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client, err := NewElasticsearch(config.ElasticsearchConfig{URL: server.URL})
	require.NoError(t, err)

	ok, err := client.IndexExists(context.Background(), "customer_documents")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.NoError(t, client.IndexPinger("customer_documents").Ping(context.Background()))

	err = client.IndexPinger("missing").Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	_, err = client.IndexExists(context.Background(), "broken")
	assert.Error(t, err)

	_, err = NewElasticsearch(config.ElasticsearchConfig{})
	assert.Error(t, err)
}

func TestCheckAll(t *testing.T) {
	statuses := CheckAll(context.Background(), time.Second, map[string]Pinger{
		"postgres": pingFunc(func(context.Context) error { return nil }),
		"redis":    pingFunc(func(context.Context) error { return errors.New("connection refused") }),
		"skipped":  nil,
	})

	assert.Equal(t, map[string]string{"postgres": "ok", "redis": "connection refused"}, statuses)

	ok, failing := Healthy(statuses)
	assert.False(t, ok)
	assert.Equal(t, []string{"redis"}, failing)

	ok, failing = Healthy(map[string]string{"a": "ok"})
	assert.True(t, ok)
	assert.Empty(t, failing)
}
