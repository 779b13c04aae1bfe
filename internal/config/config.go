// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.research-chat/config.yaml)
//  3. Default values
//
// Security: sensitive values (API keys, the auth secret, password digests)
// are masked in MarshalJSON so the config can be logged safely.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidPort indicates the listen port is out of range.
	ErrInvalidPort = errors.New("invalid port")

	// ErrInvalidAuthSecret indicates the auth secret is too short.
	ErrInvalidAuthSecret = errors.New("invalid auth secret")

	// ErrInvalidAuthUsers indicates the auth user list is malformed.
	ErrInvalidAuthUsers = errors.New("invalid auth users")

	// ErrInvalidBusCapacity indicates the event bus capacity is out of range.
	ErrInvalidBusCapacity = errors.New("invalid bus capacity")

	// ErrInvalidRateLimit indicates the rate limit settings are out of range.
	ErrInvalidRateLimit = errors.New("invalid rate limit")
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini   = "gemini"
	ProviderGoogleAI = "googleai"
)

// WebScraperConfig tunes the source-page enricher.
type WebScraperConfig struct {
	// Parallelism is max concurrent requests per domain (default: 4)
	Parallelism int `mapstructure:"parallelism" json:"parallelism"`
	// DelayMs is delay between requests in milliseconds (default: 100)
	DelayMs int `mapstructure:"delay_ms" json:"delay_ms"`
	// TimeoutMs is request timeout in milliseconds (default: 10000)
	TimeoutMs int `mapstructure:"timeout_ms" json:"timeout_ms"`
}

// TracingConfig holds OTLP trace export configuration.
type TracingConfig struct {
	// Enabled turns trace export on.
	Enabled bool `mapstructure:"enabled" json:"enabled"`
	// AgentHost is the OTLP/HTTP collector endpoint (default: localhost:4318)
	AgentHost string `mapstructure:"agent_host" json:"agent_host"`
	// Environment is the deployment environment tag (default: dev)
	Environment string `mapstructure:"environment" json:"environment"`
	// ServiceName is the service name on exported spans.
	ServiceName string `mapstructure:"service_name" json:"service_name"`
}

// Config stores application configuration.
// SECURITY: Sensitive fields are explicitly masked in MarshalJSON().
type Config struct {
	// AI provider and model configuration
	Provider  string `mapstructure:"provider" json:"provider"`
	ModelName string `mapstructure:"model_name" json:"model_name"`

	// HTTP server
	Host string `mapstructure:"host" json:"host"`
	Port int    `mapstructure:"port" json:"port"`

	// Search provider credentials
	ExaAPIKey    string `mapstructure:"exa_api_key" json:"exa_api_key"`       // SENSITIVE: masked in MarshalJSON
	SerperAPIKey string `mapstructure:"serper_api_key" json:"serper_api_key"` // SENSITIVE: masked in MarshalJSON

	// Research pipeline
	NumResults int              `mapstructure:"num_results" json:"num_results"`
	WebScraper WebScraperConfig `mapstructure:"web_scraper" json:"web_scraper"`

	// Event bus
	BusCapacity int `mapstructure:"bus_capacity" json:"bus_capacity"`

	// Auth: AuthSecret signs bearer tokens; AuthUsers maps username to a
	// hex-encoded SHA-256 password digest ("alice:ab12...,bob:cd34...").
	// Auth is disabled when AuthSecret is empty (dev mode).
	AuthSecret string `mapstructure:"auth_secret" json:"auth_secret"` // SENSITIVE: masked in MarshalJSON
	AuthUsers  string `mapstructure:"auth_users" json:"auth_users"`   // SENSITIVE: masked in MarshalJSON

	// Serve-mode security
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"`

	// Rate limiting (per client IP)
	RateLimitPerSecond float64 `mapstructure:"rate_limit_per_second" json:"rate_limit_per_second"`
	RateLimitBurst     int     `mapstructure:"rate_limit_burst" json:"rate_limit_burst"`

	// Observability
	Tracing TracingConfig `mapstructure:"tracing" json:"tracing"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".research-chat")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// Missing config file is fine; defaults plus env cover it.
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	viper.SetDefault("provider", ProviderGemini)
	viper.SetDefault("model_name", "gemini-2.0-flash")

	viper.SetDefault("host", "0.0.0.0")
	viper.SetDefault("port", 8000)

	viper.SetDefault("num_results", 5)
	viper.SetDefault("web_scraper.parallelism", 4)
	viper.SetDefault("web_scraper.delay_ms", 100)
	viper.SetDefault("web_scraper.timeout_ms", 10000)

	viper.SetDefault("bus_capacity", 256)

	// CORS defaults (frontend dev server)
	viper.SetDefault("cors_origins", []string{"http://localhost:3000"})
	viper.SetDefault("trust_proxy", false)

	viper.SetDefault("rate_limit_per_second", 5.0)
	viper.SetDefault("rate_limit_burst", 10)

	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.agent_host", "localhost:4318")
	viper.SetDefault("tracing.environment", "dev")
	viper.SetDefault("tracing.service_name", "research-chat")
}

// bindEnvVariables binds environment variables explicitly.
// GEMINI_API_KEY is read directly by the Genkit plugin, not via Viper;
// validation checks its presence based on the selected provider.
func bindEnvVariables() {
	// Hardcoded keys can't fail to bind; a panic here is a bug, not a
	// runtime error.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("exa_api_key", "EXA_API_KEY")
	mustBind("serper_api_key", "SERPER_API_KEY")

	mustBind("auth_secret", "AUTH_SECRET")
	mustBind("auth_users", "AUTH_USERS")

	mustBind("host", "RESEARCH_HOST")
	mustBind("port", "PORT")

	mustBind("provider", "RESEARCH_PROVIDER")
	mustBind("model_name", "RESEARCH_MODEL_NAME")

	mustBind("cors_origins", "RESEARCH_CORS_ORIGINS")
	mustBind("trust_proxy", "RESEARCH_TRUST_PROXY")
}

// maskedValue is the placeholder for masked sensitive data. Full-width blocks
// avoid substring matches against the real secret.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging. Secrets of 8 characters
// or fewer are fully masked; longer ones keep the first and last 2 characters
// for debug utility. This defends against accidental logging, nothing more.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
//
// Sensitive fields masked: ExaAPIKey, SerperAPIKey, AuthSecret, AuthUsers.
// When adding new sensitive fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.ExaAPIKey = maskSecret(a.ExaAPIKey)
	a.SerperAPIKey = maskSecret(a.SerperAPIKey)
	a.AuthSecret = maskSecret(a.AuthSecret)
	a.AuthUsers = maskSecret(a.AuthUsers)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// FullModelName returns the provider-qualified model name for Genkit.
// Example: "googleai/gemini-2.0-flash". If ModelName already contains a "/",
// it is returned as-is.
func (c *Config) FullModelName() string {
	if strings.Contains(c.ModelName, "/") {
		return c.ModelName
	}
	return ProviderGoogleAI + "/" + c.ModelName
}

// Users parses AuthUsers into a username -> password-digest map.
func (c *Config) Users() (map[string]string, error) {
	users := make(map[string]string)
	if c.AuthUsers == "" {
		return users, nil
	}
	for entry := range strings.SplitSeq(c.AuthUsers, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, digest, ok := strings.Cut(entry, ":")
		if !ok || name == "" || digest == "" {
			return nil, fmt.Errorf("%w: entry %q must be username:sha256hex", ErrInvalidAuthUsers, entry)
		}
		users[name] = digest
	}
	return users, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
