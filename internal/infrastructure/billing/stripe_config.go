package billing

import (
	"fmt"
	"strings"
)

// StripeConfig holds configuration for the Stripe adapter
type StripeConfig struct {
	// SecretKey is the Stripe secret API key (sk_test_xxx or sk_live_xxx)
	SecretKey string `json:"secret_key" mapstructure:"secret_key"`

	// Currency of pack checkouts
	Currency string `json:"currency" mapstructure:"currency"`

	// MaxNetworkRetries is handed to stripe-go; zero keeps the library default
	MaxNetworkRetries int64 `json:"max_network_retries" mapstructure:"max_network_retries"`
}

// DefaultStripeConfig returns a configuration for development
func DefaultStripeConfig() *StripeConfig {
	return &StripeConfig{
		Currency:          "usd",
		MaxNetworkRetries: 2,
	}
}

// Validate validates the Stripe configuration
func (c *StripeConfig) Validate() error {
	if c.SecretKey == "" {
		return fmt.Errorf("stripe: secret key is required")
	}
	if !strings.HasPrefix(c.SecretKey, "sk_test_") && !strings.HasPrefix(c.SecretKey, "sk_live_") && !strings.HasPrefix(c.SecretKey, "rk_") {
		return fmt.Errorf("stripe: secret key must be a secret or restricted key")
	}
	if c.Currency == "" {
		return fmt.Errorf("stripe: currency is required")
	}
	return nil
}

// IsTestMode reports whether the key talks to Stripe test mode
func (c *StripeConfig) IsTestMode() bool {
	return strings.HasPrefix(c.SecretKey, "sk_test_") || strings.HasPrefix(c.SecretKey, "rk_test_")
}
