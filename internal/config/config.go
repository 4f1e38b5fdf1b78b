package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvProduction represents the production environment.
	EnvProduction = "production"
)

// Config holds all application configuration.
//
// The collaborator API base URL is injected from here into every client
// that needs it; nothing in the codebase hardcodes an endpoint.
type Config struct {
	// Environment settings
	Env      string `envconfig:"ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Collaborator API settings
	APIBaseURL string        `envconfig:"API_BASE_URL" default:"http://localhost:8000/api"`
	APITimeout time.Duration `envconfig:"API_TIMEOUT" default:"10m"`

	// Audio capture settings
	SampleRate  int           `envconfig:"SAMPLE_RATE" default:"16000"`
	Channels    int           `envconfig:"CHANNELS" default:"1"`
	MaxDuration time.Duration `envconfig:"MAX_DURATION" default:"5m"`

	// Stub server settings
	StubPort   string `envconfig:"STUB_PORT" default:"8000"`
	HSTSMaxAge int    `envconfig:"HSTS_MAX_AGE" default:"31536000"`
}

// LoadConfig loads configuration from .env file and environment variables.
func LoadConfig() (*Config, error) {
	// Try to load .env file (optional for development)
	if err := godotenv.Load(); err != nil {
		// Not an error if file doesn't exist (expected in production)
		if !os.IsNotExist(err) {
			log.Printf("Warning: Error loading .env file: %v", err)
		}
	}

	// Parse environment variables into config struct
	var config Config
	if err := envconfig.Process("scribe", &config); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	return &config, nil
}

// Validate checks the values the capture and client layers depend on.
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("API base URL must not be empty")
	}

	if c.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", c.SampleRate)
	}

	if c.Channels != 1 {
		return fmt.Errorf("only mono capture is supported, got %d channels", c.Channels)
	}

	if c.MaxDuration <= 0 {
		return fmt.Errorf("max recording duration must be positive, got %s", c.MaxDuration)
	}

	return nil
}
