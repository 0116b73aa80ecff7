package billing

import (
	"context"
	"encoding/json"
	"log/slog"

	"agentdesk/internal/types"
)

// Stripe webhook event types the service reacts to. Everything else is
// acknowledged and ignored.
const (
	EventSubscriptionCreated = "customer.subscription.created"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// webhookEvent is a minimal representation of a Stripe webhook event
// tailored to extract the fields needed for routing and processing.
// We avoid unmarshaling into the full stripe.Event type to keep the service
// decoupled from the stripe-go payload shapes and to make testing
// straightforward.
type webhookEvent struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// eventData wraps the event data object.
type eventData struct {
	Object json.RawMessage `json:"object"`
}

// subscriptionObject represents the minimal fields from a Stripe
// customer.subscription.* event's data object.
type subscriptionObject struct {
	ID       string   `json:"id"`
	Customer string   `json:"customer"`
	Status   string   `json:"status"`
	Items    subItems `json:"items"`
}

type subItems struct {
	Data []subItem `json:"data"`
}

type subItem struct {
	Price subPrice `json:"price"`
}

type subPrice struct {
	ID string `json:"id"`
}

// priceID returns the price ID of the subscription's first item, or "".
func (s *subscriptionObject) priceID() string {
	if len(s.Items.Data) == 0 {
		return ""
	}
	return s.Items.Data[0].Price.ID
}

// Service applies Stripe subscription state to agency plan tiers.
type Service struct {
	agencies      types.AgencyRepository
	prices        PriceMap
	fetcher       SubscriptionFetcher
	verifier      WebhookVerifier
	webhookSecret string
	logger        *slog.Logger
}

// NewService creates the billing service. fetcher may be nil, in which case
// events without inline price data fall back to the free tier instead of
// re-fetching the subscription from Stripe.
func NewService(
	agencies types.AgencyRepository,
	prices PriceMap,
	fetcher SubscriptionFetcher,
	verifier WebhookVerifier,
	webhookSecret string,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		agencies:      agencies,
		prices:        prices,
		fetcher:       fetcher,
		verifier:      verifier,
		webhookSecret: webhookSecret,
		logger:        logger,
	}
}

// VerifySignature checks the webhook payload against the Stripe-Signature
// header. Returns an auth error for missing or invalid signatures.
//
// An empty webhook secret is rejected outright: an HMAC keyed with the empty
// string would verify forged payloads, so a misconfigured service must never
// accept any event.
func (s *Service) VerifySignature(payload []byte, sigHeader string) error {
	if s.webhookSecret == "" {
		return types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"webhook secret is not configured",
			nil,
		)
	}
	if sigHeader == "" {
		return types.NewAppError(
			types.ErrCodeAuthSubjectMissing,
			"missing Stripe-Signature header",
			nil,
		)
	}
	if err := s.verifier.Verify(payload, sigHeader, s.webhookSecret); err != nil {
		return types.NewAppError(
			types.ErrCodeAuthSubjectInvalid,
			"webhook signature verification failed",
			err,
		)
	}
	return nil
}

// ProcessEvent parses a verified webhook payload and applies any plan change
// it implies. Unrecognized event types are ignored without error so new
// Stripe event subscriptions never break the endpoint.
func (s *Service) ProcessEvent(ctx context.Context, payload []byte) error {
	var event webhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return types.NewAppError(
			types.ErrCodeValidationInvalidJSON,
			"invalid webhook event JSON",
			err,
		)
	}

	s.logger.InfoContext(ctx, "processing stripe webhook event",
		"event_id", event.ID,
		"event_type", event.Type,
	)

	switch event.Type {
	case EventSubscriptionCreated, EventSubscriptionUpdated:
		return s.handleSubscriptionChange(ctx, &event)
	case EventSubscriptionDeleted:
		return s.handleSubscriptionDeleted(ctx, &event)
	default:
		return nil
	}
}

// handleSubscriptionChange maps the subscription's price to a plan tier and
// applies it to the owning agency.
func (s *Service) handleSubscriptionChange(ctx context.Context, event *webhookEvent) error {
	sub, err := s.decodeSubscription(event)
	if err != nil {
		return err
	}

	priceID := sub.priceID()
	if priceID == "" && s.fetcher != nil {
		// Some events arrive without expanded items. Re-fetch the
		// subscription to get the authoritative price.
		fetched, err := s.fetcher.GetSubscription(ctx, sub.ID)
		if err != nil {
			return err
		}
		priceID = fetched.priceID()
	}

	plan := s.prices.PlanForPrice(priceID)
	return s.applyPlan(ctx, event, sub.Customer, plan)
}

// handleSubscriptionDeleted reverts the agency to the free tier.
func (s *Service) handleSubscriptionDeleted(ctx context.Context, event *webhookEvent) error {
	sub, err := s.decodeSubscription(event)
	if err != nil {
		return err
	}
	return s.applyPlan(ctx, event, sub.Customer, types.PlanFree)
}

// decodeSubscription unwraps event.data.object into a subscriptionObject.
func (s *Service) decodeSubscription(event *webhookEvent) (*subscriptionObject, error) {
	var data eventData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return nil, types.NewAppError(
			types.ErrCodeValidationInvalidJSON,
			"invalid webhook event data",
			err,
		)
	}
	var sub subscriptionObject
	if err := json.Unmarshal(data.Object, &sub); err != nil {
		return nil, types.NewAppError(
			types.ErrCodeValidationInvalidJSON,
			"invalid subscription object",
			err,
		)
	}
	if sub.Customer == "" {
		return nil, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"subscription event is missing the customer ID",
			nil,
		)
	}
	return &sub, nil
}

// applyPlan resolves the agency by Stripe customer ID and writes the plan.
func (s *Service) applyPlan(ctx context.Context, event *webhookEvent, customerID string, plan types.PlanTier) error {
	agency, err := s.agencies.GetByStripeCustomerID(ctx, customerID)
	if err != nil {
		return err
	}

	if agency.Plan == plan {
		// Stripe retries and duplicate events make replays routine.
		s.logger.DebugContext(ctx, "plan unchanged, skipping update",
			"event_id", event.ID,
			"agency_id", agency.ID,
			"plan", plan,
		)
		return nil
	}

	if err := s.agencies.UpdatePlan(ctx, agency.ID, plan); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "agency plan updated from stripe event",
		"event_id", event.ID,
		"event_type", event.Type,
		"agency_id", agency.ID,
		"previous_plan", agency.Plan,
		"plan", plan,
	)
	return nil
}
