package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"agentdesk/internal/types"
)

// stripeAPIBase is the default Stripe API base URL.
// Overridable in tests via StripeClientConfig.BaseURL.
const stripeAPIBase = "https://api.stripe.com"

// maxStripeResponseSize bounds response bodies read from the Stripe API.
const maxStripeResponseSize = 1 << 20 // 1 MB

// SubscriptionFetcher retrieves a subscription's current state from Stripe.
// The webhook service uses it when an event payload omits the price data
// needed to resolve a plan tier.
type SubscriptionFetcher interface {
	GetSubscription(ctx context.Context, subscriptionID string) (*subscriptionObject, error)
}

// StripeClientConfig holds the configuration for creating a StripeClient.
type StripeClientConfig struct {
	SecretKey string
	BaseURL   string // Override for testing; defaults to stripeAPIBase
	Logger    *slog.Logger
}

// StripeClient implements SubscriptionFetcher by calling the Stripe REST API
// directly. All requests flow through a circuit breaker so a Stripe outage
// fails fast instead of tying up request goroutines on a dead upstream.
type StripeClient struct {
	client    *http.Client
	breaker   *gobreaker.CircuitBreaker[*http.Response]
	secretKey string
	baseURL   string
	logger    *slog.Logger
}

// NewStripeClient creates a StripeClient with a fresh circuit breaker.
func NewStripeClient(httpClient *http.Client, cfg StripeClientConfig) *StripeClient {
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "stripe",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})
	return NewStripeClientWithBreaker(httpClient, cb, cfg)
}

// NewStripeClientWithBreaker creates a StripeClient with a caller-provided
// circuit breaker. Useful for tests that need to control breaker state.
func NewStripeClientWithBreaker(
	httpClient *http.Client,
	breaker *gobreaker.CircuitBreaker[*http.Response],
	cfg StripeClientConfig,
) *StripeClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = stripeAPIBase
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &StripeClient{
		client:    httpClient,
		breaker:   breaker,
		secretKey: cfg.SecretKey,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		logger:    logger,
	}
}

// GetSubscription fetches the subscription from GET /v1/subscriptions/{id}.
func (c *StripeClient) GetSubscription(ctx context.Context, subscriptionID string) (*subscriptionObject, error) {
	if subscriptionID == "" {
		return nil, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"subscription ID is required",
			nil,
		)
	}

	url := c.baseURL + "/v1/subscriptions/" + subscriptionID

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.secretKey)

		res, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		if res.StatusCode >= http.StatusInternalServerError {
			// Count 5xx responses as breaker failures.
			res.Body.Close()
			return nil, fmt.Errorf("stripe returned status %d", res.StatusCode)
		}
		return res, nil
	})
	if err != nil {
		return nil, c.mapError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxStripeResponseSize))
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamStripe,
			"failed to read stripe response",
			err,
		)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.WarnContext(ctx, "stripe subscription fetch failed",
			"subscription_id", subscriptionID,
			"status", resp.StatusCode,
		)
		return nil, types.NewAppError(
			types.ErrCodeUpstreamStripe,
			fmt.Sprintf("stripe returned status %d", resp.StatusCode),
			nil,
		)
	}

	var sub subscriptionObject
	if err := json.Unmarshal(body, &sub); err != nil {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamStripe,
			"failed to decode stripe subscription",
			err,
		)
	}
	return &sub, nil
}

// mapError translates transport and breaker errors into AppErrors.
func (c *StripeClient) mapError(err error) *types.AppError {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.NewAppError(
			types.ErrCodeUpstreamStripe,
			"stripe circuit breaker is open",
			err,
		)
	}
	return types.NewAppError(
		types.ErrCodeUpstreamStripe,
		"stripe request failed",
		err,
	)
}

var _ SubscriptionFetcher = (*StripeClient)(nil)
