package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetRetryCount(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeSearchQueryFailed, 3},
		{ErrCodeHistoryStoreFailed, 3},
		{ErrCodeDatabaseConnectionFailed, 3},
		{ErrCodeSearchTimeout, 2},
		{ErrCodeTransportFailure, 0},
		{ErrCodeUpstreamTimeout, 0},
		{ErrCodeInvalidInput, 0},
		{"SOMETHING_ELSE", 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, GetRetryCount(tt.code))
			assert.Equal(t, tt.want > 0, IsRetryableErrorCode(tt.code))
		})
	}
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "ANALYTICS", GetErrorCategory(ErrCodeTransportFailure))
	assert.Equal(t, "ANALYTICS", GetErrorCategory(ErrCodeEmptyResult))
	assert.Equal(t, "ANALYTICS", GetErrorCategory(ErrCodeNoFallbackAvailable))
	assert.Equal(t, "SEARCH", GetErrorCategory(ErrCodeSearchTimeout))
	assert.Equal(t, "SEARCH", GetErrorCategory(ErrCodeIndexNotFound))
	assert.Equal(t, "SESSION", GetErrorCategory(ErrCodeHistoryStoreFailed))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeInvalidInput))
	assert.Equal(t, "DATABASE", GetErrorCategory(ErrCodeDatabaseConnectionFailed))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeInternal))
}

func TestConvertToBPMNError(t *testing.T) {
	stdErr := NewSearchQueryFailedError("customer_documents", fmt.Errorf("shard failure"))
	bpmn := ConvertToBPMNError(stdErr)

	assert.Equal(t, "SEARCH_QUERY_FAILED", bpmn.Code)
	assert.True(t, bpmn.Retryable)
	assert.Equal(t, 3, bpmn.Retries)
	assert.Equal(t, "SEARCH_QUERY_FAILED", bpmn.ErrorVariables["originalErrorCode"])

	vars := bpmn.ToErrorVariables()
	assert.Equal(t, "SEARCH_QUERY_FAILED", vars["errorCode"])
	assert.Contains(t, vars["errorDetails"], "shard failure")
	assert.Contains(t, vars, "timestamp")

	invalid := ConvertToBPMNError(NewInvalidInputError("question is required"))
	assert.Equal(t, 0, invalid.Retries)
	assert.False(t, invalid.Retryable)
}

func TestNormalize(t *testing.T) {
	cause := stderrors.New("redis down")
	wrapped := fmt.Errorf("append: %w", NewHistoryStoreFailedError("s-1", cause))

	got := Normalize(wrapped)
	assert.Equal(t, ErrCodeHistoryStoreFailed, got.Code)
	assert.True(t, stderrors.Is(got, cause))

	plain := Normalize(stderrors.New("boom"))
	assert.Equal(t, ErrCodeInternal, plain.Code)
	assert.False(t, plain.Retryable)
	assert.WithinDuration(t, time.Now().UTC(), plain.Timestamp, time.Minute)
}

func TestShouldRetry(t *testing.T) {
	retryable := NewSearchQueryFailedError("idx", stderrors.New("x"))
	require.True(t, retryable.Retryable)

	assert.True(t, ShouldRetry(retryable, 3))
	assert.False(t, ShouldRetry(retryable, 0))
	assert.False(t, ShouldRetry(NewInvalidInputError("bad"), 3))
	assert.False(t, ShouldRetry(NewTransportFailureError("general", stderrors.New("x")), 3))
}

func TestRetriesLeft(t *testing.T) {
	assert.Equal(t, int32(1), retriesLeft(2, 3))
	assert.Equal(t, int32(2), retriesLeft(5, 3))
	assert.Equal(t, int32(2), retriesLeft(3, 3))
}

func TestRetryBackoff(t *testing.T) {
	assert.Equal(t, 5*time.Second, RetryBackoff(ErrCodeSearchTimeout))
	assert.Equal(t, 10*time.Second, RetryBackoff(ErrCodeElasticsearchConnectionFailed))
	assert.Equal(t, 2*time.Second, RetryBackoff(ErrCodeSearchQueryFailed))
}

func TestAnalyticsConstructors(t *testing.T) {
	cause := fmt.Errorf("dial tcp: refused")

	transport := NewTransportFailureError("general", cause)
	assert.Equal(t, ErrCodeTransportFailure, transport.Code)
	assert.ErrorIs(t, transport, cause)
	assert.Equal(t, "StandardError[TRANSPORT_FAILURE]: Analytics backend call failed: variant: general, error: dial tcp: refused", transport.Error())

	timeout := NewUpstreamTimeoutError("scoped", 30*time.Second)
	assert.Equal(t, "variant: scoped, timeout: 30s", timeout.Details)
	assert.Equal(t, 5*time.Second, RetryBackoff(timeout.Code))

	assert.False(t, NewUnparsablePayloadError("variant: general").Retryable)
	assert.Equal(t, "StandardError[EMPTY_RESULT]: Analytics backend returned no usable content", NewEmptyResultError().Error())
	assert.Equal(t, "ANALYTICS", GetErrorCategory(NewNoFallbackAvailableError("weather").Code))
}

func TestConnectionConstructors(t *testing.T) {
	cause := fmt.Errorf("connection refused")

	db := NewDatabaseConnectionFailedError(cause)
	assert.Equal(t, ErrCodeDatabaseConnectionFailed, db.Code)
	assert.True(t, db.Retryable)
	assert.ErrorIs(t, db, cause)

	es := NewElasticsearchConnectionFailedError(cause)
	assert.Equal(t, "SEARCH", GetErrorCategory(es.Code))
	assert.Equal(t, 3, ConvertToBPMNError(es).Retries)
}
