// Package config provides centralized configuration for the smarttrash service.
// All configurable values are loaded from environment variables with sensible defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Provider names.
const (
	ProviderOpenAI      = "openai"
	ProviderClaude      = "claude"
	ProviderGemini      = "gemini"
	ProviderOllama      = "ollama"
	ProviderCloudVision = "cloudvision"
	ProviderStub        = "stub"
)

// Config holds all service configuration values.
type Config struct {
	// Port is the HTTP server listen port.
	Port string `validate:"required,numeric"`

	// StoragePath is the directory for captured images and, by default, the database.
	StoragePath string `validate:"required"`

	// DBFile is the item database file. A bare file name is placed in StoragePath.
	DBFile string `validate:"required"`

	// LLMProvider selects which LLM backend to use.
	LLMProvider string `validate:"oneof=openai claude gemini ollama stub"`

	// OpenAIKey is the API key for the OpenAI service.
	OpenAIKey string

	// OpenAIBaseURL is the endpoint of an OpenAI-compatible API.
	OpenAIBaseURL string `validate:"omitempty,url"`

	// OpenAIModel is the model identifier for OpenAI completions.
	OpenAIModel string

	// AnthropicKey is the API key for the Anthropic Claude service.
	AnthropicKey string

	// AnthropicModel is the model identifier for Claude completions.
	AnthropicModel string

	// GeminiKey is the API key for the Google Gemini service.
	GeminiKey string

	// GeminiModel is the model identifier for Gemini completions and labelling.
	GeminiModel string

	// OllamaURL is the base URL for the local Ollama server.
	OllamaURL string `validate:"required,url"`

	// OllamaModel is the model identifier for Ollama completions.
	OllamaModel string

	// VisionProvider selects the object labeller.
	VisionProvider string `validate:"oneof=cloudvision gemini stub"`

	// VisionAPIKey is an API key for Cloud Vision. Without it, Application
	// Default Credentials are used.
	VisionAPIKey string

	// CredentialsFile is a service account JSON file for Cloud Vision.
	CredentialsFile string

	// CameraID is the video device index.
	CameraID int `validate:"gte=0"`

	// CameraImage, when set, replaces the device with a fixed image file.
	CameraImage string

	// S3Bucket, when set, stores captured images in S3 instead of StoragePath.
	S3Bucket string

	// S3Region is the bucket region.
	S3Region string `validate:"required_with=S3Bucket"`

	// AnalysisCachePath, when set, caches model responses in a SQLite file.
	AnalysisCachePath string

	// TriggerInterval, when positive, runs the pipeline on a timer.
	TriggerInterval time.Duration `validate:"gte=0s"`

	// HTTPTimeout is the timeout for outgoing HTTP requests (LLM APIs).
	HTTPTimeout time.Duration `validate:"gt=0s"`

	// CORSOrigin is the allowed CORS origin. Defaults to "*".
	CORSOrigin string

	// LogLevel is the minimum zerolog level.
	LogLevel string `validate:"oneof=trace debug info warn error"`

	// LogFile, when set, also writes logs to this file.
	LogFile string
}

// Load reads configuration from environment variables, applying defaults,
// and validates the result.
func Load() (Config, error) {
	cfg := Config{
		Port:              envOr("PORT", "5000"),
		StoragePath:       envOr("STORAGE_PATH", "./trashimages"),
		DBFile:            envOr("DB_FILE", "items_database.json"),
		LLMProvider:       strings.ToLower(envOr("LLM_PROVIDER", ProviderOllama)),
		OpenAIKey:         os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:     envOr("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:       envOr("OPENAI_MODEL", "gpt-4o-mini"),
		AnthropicKey:      os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:    envOr("ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
		GeminiKey:         os.Getenv("GEMINI_API_KEY"),
		GeminiModel:       envOr("GEMINI_MODEL", "gemini-2.0-flash"),
		OllamaURL:         envOr("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:       envOr("OLLAMA_MODEL", "llama3"),
		VisionProvider:    strings.ToLower(envOr("VISION_PROVIDER", ProviderCloudVision)),
		VisionAPIKey:      os.Getenv("GOOGLE_VISION_API_KEY"),
		CredentialsFile:   os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		CameraID:          envInt("CAMERA_ID", 0),
		CameraImage:       os.Getenv("CAMERA_IMAGE"),
		S3Bucket:          os.Getenv("S3_BUCKET"),
		S3Region:          envOr("S3_REGION", "us-east-1"),
		AnalysisCachePath: os.Getenv("ANALYSIS_CACHE_PATH"),
		TriggerInterval:   envDuration("TRIGGER_INTERVAL", 0),
		HTTPTimeout:       envDuration("HTTP_TIMEOUT", 60*time.Second),
		CORSOrigin:        envOr("CORS_ORIGIN", "*"),
		LogLevel:          strings.ToLower(envOr("LOG_LEVEL", "info")),
		LogFile:           os.Getenv("LOG_FILE"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Field(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LoadEnvFiles loads KEY=VALUE files into the environment. Variables that are
// already set win, and missing files are skipped.
func LoadEnvFiles(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// DBPath returns the database file location.
func (c Config) DBPath() string {
	if filepath.IsAbs(c.DBFile) || strings.ContainsRune(c.DBFile, os.PathSeparator) {
		return c.DBFile
	}
	return filepath.Join(c.StoragePath, c.DBFile)
}

// UseStubs returns true when no LLM API key is configured for the selected provider.
func (c Config) UseStubs() bool {
	switch c.LLMProvider {
	case ProviderStub:
		return true
	case ProviderClaude:
		return c.AnthropicKey == ""
	case ProviderGemini:
		return c.GeminiKey == ""
	case ProviderOllama:
		return false // Ollama runs locally, no key needed
	default:
		return c.OpenAIKey == ""
	}
}

// UseVisionStub returns true when the selected labeller cannot authenticate.
func (c Config) UseVisionStub() bool {
	switch c.VisionProvider {
	case ProviderStub:
		return true
	case ProviderGemini:
		return c.GeminiKey == ""
	default:
		return false // Cloud Vision falls back to Application Default Credentials
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
