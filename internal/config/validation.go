package config

import (
	"encoding/hex"
	"fmt"
	"os"
)

// MinAuthSecretLength is the minimum byte length for the token-signing
// secret. Shorter secrets make HMAC forgery practical.
const MinAuthSecretLength = 32

// Validate performs fail-fast configuration validation.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	switch c.Provider {
	case ProviderGemini, ProviderGoogleAI:
		if os.Getenv("GEMINI_API_KEY") == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY environment variable not set", ErrMissingAPIKey)
		}
	default:
		return fmt.Errorf("%w: %q (supported: gemini, googleai)", ErrInvalidProvider, c.Provider)
	}

	if c.ModelName == "" {
		return fmt.Errorf("%w: model name is empty", ErrInvalidModelName)
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: %d (must be 1-65535)", ErrInvalidPort, c.Port)
	}

	if c.BusCapacity < 1 || c.BusCapacity > 65536 {
		return fmt.Errorf("%w: %d (must be 1-65536)", ErrInvalidBusCapacity, c.BusCapacity)
	}

	if c.RateLimitPerSecond <= 0 || c.RateLimitBurst < 1 {
		return fmt.Errorf("%w: per_second=%v burst=%d", ErrInvalidRateLimit,
			c.RateLimitPerSecond, c.RateLimitBurst)
	}

	if c.AuthSecret != "" {
		if len(c.AuthSecret) < MinAuthSecretLength {
			return fmt.Errorf("%w: must be at least %d characters", ErrInvalidAuthSecret, MinAuthSecretLength)
		}
		users, err := c.Users()
		if err != nil {
			return err
		}
		for name, digest := range users {
			raw, err := hex.DecodeString(digest)
			if err != nil || len(raw) != 32 {
				return fmt.Errorf("%w: digest for %q is not sha256 hex", ErrInvalidAuthUsers, name)
			}
		}
	}

	return nil
}
