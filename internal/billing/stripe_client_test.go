package billing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentdesk/internal/types"
)

func newTestStripeClient(t *testing.T, baseURL string) *StripeClient {
	t.Helper()
	return NewStripeClient(&http.Client{Timeout: 5 * time.Second}, StripeClientConfig{
		SecretKey: "sk_test_123",
		BaseURL:   baseURL,
	})
}

func TestGetSubscription_Success(t *testing.T) {
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"sub_1","customer":"cus_1","status":"active","items":{"data":[{"price":{"id":"price_pro_m"}}]}}`))
	}))
	defer srv.Close()

	client := newTestStripeClient(t, srv.URL)
	sub, err := client.GetSubscription(context.Background(), "sub_1")
	require.NoError(t, err)

	assert.Equal(t, "/v1/subscriptions/sub_1", gotPath)
	assert.Equal(t, "Bearer sk_test_123", gotAuth)
	assert.Equal(t, "cus_1", sub.Customer)
	assert.Equal(t, "price_pro_m", sub.priceID())
}

func TestGetSubscription_EmptyID(t *testing.T) {
	client := newTestStripeClient(t, "http://stripe.invalid")

	_, err := client.GetSubscription(context.Background(), "")
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeValidationMissingField, appErr.Code)
}

func TestGetSubscription_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	client := newTestStripeClient(t, srv.URL)
	_, err := client.GetSubscription(context.Background(), "sub_ghost")
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeUpstreamStripe, appErr.Code)
}

func TestGetSubscription_CircuitBreakerOpensAfterThreshold(t *testing.T) {
	var serverCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		serverCalls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	breaker := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "stripe-test",
		MaxRequests: 1,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	client := NewStripeClientWithBreaker(&http.Client{Timeout: 5 * time.Second}, breaker, StripeClientConfig{
		SecretKey: "sk_test_123",
		BaseURL:   srv.URL,
	})

	for i := 0; i < 3; i++ {
		_, err := client.GetSubscription(context.Background(), "sub_1")
		require.Error(t, err)
	}
	callsBeforeOpen := serverCalls

	_, err := client.GetSubscription(context.Background(), "sub_1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState), "expected open-state breaker error, got %v", err)
	assert.Equal(t, callsBeforeOpen, serverCalls, "open breaker must not reach the server")
}
