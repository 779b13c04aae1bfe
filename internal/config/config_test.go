package config

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
)

func validConfig() *Config {
	return &Config{
		Provider:           ProviderGemini,
		ModelName:          "gemini-2.0-flash",
		Port:               8000,
		BusCapacity:        256,
		RateLimitPerSecond: 5,
		RateLimitBurst:     10,
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")

	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Validate() on valid config = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown provider", func(c *Config) { c.Provider = "anthropic" }},
		{"empty model name", func(c *Config) { c.ModelName = "" }},
		{"port zero", func(c *Config) { c.Port = 0 }},
		{"port too high", func(c *Config) { c.Port = 70000 }},
		{"bus capacity zero", func(c *Config) { c.BusCapacity = 0 }},
		{"zero rate limit", func(c *Config) { c.RateLimitPerSecond = 0 }},
		{"short auth secret", func(c *Config) { c.AuthSecret = "too-short" }},
		{"malformed auth users", func(c *Config) {
			c.AuthSecret = strings.Repeat("s", MinAuthSecretLength)
			c.AuthUsers = "alice"
		}},
		{"non-sha256 digest", func(c *Config) {
			c.AuthSecret = strings.Repeat("s", MinAuthSecretLength)
			c.AuthUsers = "alice:nothex"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestValidate_MissingGeminiKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	if err := validConfig().Validate(); err == nil {
		t.Error("Validate() = nil without GEMINI_API_KEY, want error")
	}
}

func TestUsers(t *testing.T) {
	digest := sha256.Sum256([]byte("password"))
	hexDigest := hex.EncodeToString(digest[:])

	cfg := &Config{AuthUsers: "alice:" + hexDigest + " , bob:" + hexDigest}
	users, err := cfg.Users()
	if err != nil {
		t.Fatalf("Users() error = %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("Users() = %d entries, want 2", len(users))
	}
	if users["alice"] != hexDigest {
		t.Errorf("alice digest = %q", users["alice"])
	}

	if _, err := (&Config{AuthUsers: "broken-entry"}).Users(); err == nil {
		t.Error("Users() on malformed input = nil, want error")
	}
}

func TestMarshalJSON_MasksSecrets(t *testing.T) {
	cfg := Config{
		ExaAPIKey:    "exa-secret-key-value",
		SerperAPIKey: "serper-secret-key-value",
		AuthSecret:   "auth-secret-signing-key-material",
		AuthUsers:    "alice:deadbeef",
	}

	data, err := cfg.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v", err)
	}
	out := string(data)

	for _, secret := range []string{"exa-secret-key-value", "serper-secret-key-value",
		"auth-secret-signing-key-material", "alice:deadbeef"} {
		if strings.Contains(out, secret) {
			t.Errorf("MarshalJSON() leaked %q", secret)
		}
	}
	if !strings.Contains(out, maskedValue) {
		t.Error("MarshalJSON() output has no masked placeholder")
	}
}

func TestMaskSecret(t *testing.T) {
	if got := maskSecret(""); got != "" {
		t.Errorf("maskSecret(\"\") = %q", got)
	}
	if got := maskSecret("short"); got != maskedValue {
		t.Errorf("maskSecret(short) = %q, want full mask", got)
	}
	got := maskSecret("my_long_secret_key_123")
	if !strings.HasPrefix(got, "my") || !strings.HasSuffix(got, "23") {
		t.Errorf("maskSecret(long) = %q, want first/last 2 chars kept", got)
	}
	if strings.Contains(got, "long_secret") {
		t.Errorf("maskSecret(long) leaked middle: %q", got)
	}
}

func TestFullModelName(t *testing.T) {
	cfg := &Config{Provider: ProviderGemini, ModelName: "gemini-2.0-flash"}
	if got := cfg.FullModelName(); got != "googleai/gemini-2.0-flash" {
		t.Errorf("FullModelName() = %q", got)
	}

	cfg.ModelName = "googleai/gemini-2.5-pro"
	if got := cfg.FullModelName(); got != "googleai/gemini-2.5-pro" {
		t.Errorf("FullModelName() with qualified name = %q", got)
	}
}
