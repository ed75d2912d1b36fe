package billing

import (
	"errors"
	"strings"
)

// StripeConfig configures the card payment provider.
type StripeConfig struct {
	APIKey        string
	WebhookSecret string
	// MaxRetries bounds network retries inside the Stripe client. Zero means 3.
	MaxRetries int64
}

// Validate rejects configs that could never authenticate a request or a
// webhook delivery.
func (c StripeConfig) Validate() error {
	switch {
	case c.APIKey == "":
		return errors.New("stripe: API key is required")
	case !strings.HasPrefix(c.APIKey, "sk_") && !strings.HasPrefix(c.APIKey, "rk_"):
		return errors.New("stripe: API key must be a secret or restricted key")
	case c.WebhookSecret == "":
		return errors.New("stripe: webhook secret is required")
	case !strings.HasPrefix(c.WebhookSecret, "whsec_"):
		return errors.New("stripe: webhook secret must start with whsec_")
	}
	return nil
}

// Mode reports "test" or "live" from the key prefix.
func (c StripeConfig) Mode() string {
	if strings.Contains(c.APIKey, "_test_") {
		return "test"
	}
	return "live"
}
