package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates every setting the service reads at startup.
type Config struct {
	Server   ServerConfig
	Provider ProviderConfig
	Debate   DebateConfig
}

// Load reads the configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	provider, err := loadProviderConfig()
	if err != nil {
		return nil, err
	}

	debate, err := loadDebateConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, Provider: provider, Debate: debate}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Accept ":8080" or "127.0.0.1:8080" verbatim.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// ProviderConfig describes the chat-completion provider endpoint.
type ProviderConfig struct {
	BaseURL     string
	APIKey      string
	Temperature *float64
	Timeout     time.Duration
}

func loadProviderConfig() (ProviderConfig, error) {
	temperature, err := parseOptionalFloatEnv("PROVIDER_TEMPERATURE")
	if err != nil {
		return ProviderConfig{}, err
	}

	timeout := 60 * time.Second
	if override, err := parseOptionalIntEnv("PROVIDER_TIMEOUT_SECONDS"); err != nil {
		return ProviderConfig{}, err
	} else if override != nil && *override > 0 {
		timeout = time.Duration(*override) * time.Second
	}

	return ProviderConfig{
		BaseURL:     getEnvOrDefault("PROVIDER_BASE_URL", "https://openrouter.ai/api/v1"),
		APIKey:      strings.TrimSpace(os.Getenv("PROVIDER_API_KEY")),
		Temperature: temperature,
		Timeout:     timeout,
	}, nil
}

// DebateConfig tunes the session coordinator.
type DebateConfig struct {
	// TickDelay paces automatic turn-taking: the coordinator waits this
	// long after each transcript change before scheduling the next turn.
	TickDelay time.Duration
	// DataDir holds the key-value file with the credential and model pool.
	DataDir string
}

func loadDebateConfig() (DebateConfig, error) {
	delay := 3 * time.Second
	if raw := strings.TrimSpace(os.Getenv("DEBATE_TICK_DELAY")); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return DebateConfig{}, fmt.Errorf("invalid DEBATE_TICK_DELAY value %q: %w", raw, err)
		}
		if parsed < 0 {
			return DebateConfig{}, fmt.Errorf("invalid DEBATE_TICK_DELAY value %q: must not be negative", raw)
		}
		delay = parsed
	}

	return DebateConfig{
		TickDelay: delay,
		DataDir:   getEnvOrDefault("DEBATE_DATA_DIR", "."),
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
