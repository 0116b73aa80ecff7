package billing

import (
	"github.com/stripe/stripe-go/v82/webhook"
)

// WebhookVerifier abstracts Stripe webhook signature checking.
// Implementations must return an error for invalid or expired signatures.
type WebhookVerifier interface {
	// Verify validates a webhook payload against the provided signature header
	// using the given signing secret.
	Verify(payload []byte, header string, secret string) error
}

// StripeVerifier implements WebhookVerifier using stripe-go's webhook
// signature verification. This provides HMAC-SHA256 signature checking
// with the default timestamp tolerance.
type StripeVerifier struct{}

// Verify validates a Stripe webhook payload against the signature header
// and signing secret.
func (v *StripeVerifier) Verify(payload []byte, header string, secret string) error {
	return webhook.ValidatePayload(payload, header, secret)
}

var _ WebhookVerifier = (*StripeVerifier)(nil)
