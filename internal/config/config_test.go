package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"PORT", "STORAGE_PATH", "DB_FILE", "LLM_PROVIDER",
	"OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_MODEL",
	"ANTHROPIC_API_KEY", "ANTHROPIC_MODEL",
	"GEMINI_API_KEY", "GEMINI_MODEL",
	"OLLAMA_URL", "OLLAMA_MODEL",
	"VISION_PROVIDER", "GOOGLE_VISION_API_KEY", "GOOGLE_APPLICATION_CREDENTIALS",
	"CAMERA_ID", "CAMERA_IMAGE", "S3_BUCKET", "S3_REGION",
	"ANALYSIS_CACHE_PATH", "TRIGGER_INTERVAL", "HTTP_TIMEOUT",
	"CORS_ORIGIN", "LOG_LEVEL", "LOG_FILE",
}

// clearEnv blanks every variable Load reads. t.Setenv restores them afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "5000", cfg.Port)
	assert.Equal(t, "./trashimages", cfg.StoragePath)
	assert.Equal(t, "items_database.json", cfg.DBFile)
	assert.Equal(t, filepath.Join("trashimages", "items_database.json"), cfg.DBPath())
	assert.Equal(t, ProviderOllama, cfg.LLMProvider)
	assert.Equal(t, "https://api.openai.com/v1", cfg.OpenAIBaseURL)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAIModel)
	assert.Equal(t, ProviderCloudVision, cfg.VisionProvider)
	assert.Equal(t, 0, cfg.CameraID)
	assert.Equal(t, "us-east-1", cfg.S3Region)
	assert.Zero(t, cfg.TriggerInterval)
	assert.Equal(t, 60*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "*", cfg.CORSOrigin)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_EnvOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "8081")
	t.Setenv("LLM_PROVIDER", "OpenAI")
	t.Setenv("OPENAI_BASE_URL", "https://aiberm.com/v1")
	t.Setenv("OPENAI_MODEL", "google/gemini-2.5-flash")
	t.Setenv("OPENAI_API_KEY", "sk-test-key")
	t.Setenv("CAMERA_ID", "2")
	t.Setenv("TRIGGER_INTERVAL", "30s")
	t.Setenv("DB_FILE", "/var/lib/smarttrash/items.json")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8081", cfg.Port)
	assert.Equal(t, ProviderOpenAI, cfg.LLMProvider)
	assert.Equal(t, "https://aiberm.com/v1", cfg.OpenAIBaseURL)
	assert.Equal(t, "google/gemini-2.5-flash", cfg.OpenAIModel)
	assert.Equal(t, "sk-test-key", cfg.OpenAIKey)
	assert.Equal(t, 2, cfg.CameraID)
	assert.Equal(t, 30*time.Second, cfg.TriggerInterval)
	assert.Equal(t, "/var/lib/smarttrash/items.json", cfg.DBPath())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
		field string
	}{
		{"unknown provider", "LLM_PROVIDER", "watson", "LLMProvider"},
		{"unknown labeller", "VISION_PROVIDER", "rekognition", "VisionProvider"},
		{"non-numeric port", "PORT", "http", "Port"},
		{"negative camera", "CAMERA_ID", "-1", "CameraID"},
		{"bad ollama url", "OLLAMA_URL", "not a url", "OllamaURL"},
		{"bad log level", "LOG_LEVEL", "verbose", "LogLevel"},
		{"negative interval", "TRIGGER_INTERVAL", "-5s", "TriggerInterval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	content := "# comment\nTEST_SMARTTRASH_A=hello\nTEST_SMARTTRASH_B=\"quoted value\"\nexport TEST_SMARTTRASH_C=exported\n"
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o644))

	for _, k := range []string{"TEST_SMARTTRASH_A", "TEST_SMARTTRASH_B", "TEST_SMARTTRASH_C"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	require.NoError(t, LoadEnvFiles(envFile))
	assert.Equal(t, "hello", os.Getenv("TEST_SMARTTRASH_A"))
	assert.Equal(t, "quoted value", os.Getenv("TEST_SMARTTRASH_B"))
	assert.Equal(t, "exported", os.Getenv("TEST_SMARTTRASH_C"))
}

func TestLoadEnvFiles_Precedence(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("PRECEDENCE_TEST=from-file\n"), 0o644))
	t.Setenv("PRECEDENCE_TEST", "from-env")

	require.NoError(t, LoadEnvFiles(envFile))
	assert.Equal(t, "from-env", os.Getenv("PRECEDENCE_TEST"))
}

func TestLoadEnvFiles_MissingFile(t *testing.T) {
	assert.NoError(t, LoadEnvFiles("/nonexistent/path/.env.local"))
}

func TestUseStubs(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		wantStub bool
	}{
		{"openai without key", Config{LLMProvider: "openai"}, true},
		{"openai with key", Config{LLMProvider: "openai", OpenAIKey: "sk-x"}, false},
		{"claude without key", Config{LLMProvider: "claude"}, true},
		{"claude with key", Config{LLMProvider: "claude", AnthropicKey: "sk-x"}, false},
		{"gemini without key", Config{LLMProvider: "gemini"}, true},
		{"gemini with key", Config{LLMProvider: "gemini", GeminiKey: "key"}, false},
		{"ollama always false", Config{LLMProvider: "ollama"}, false},
		{"explicit stub", Config{LLMProvider: "stub", OpenAIKey: "sk-x"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantStub, tt.cfg.UseStubs())
		})
	}
}

func TestUseVisionStub(t *testing.T) {
	assert.False(t, Config{VisionProvider: "cloudvision"}.UseVisionStub())
	assert.True(t, Config{VisionProvider: "gemini"}.UseVisionStub())
	assert.False(t, Config{VisionProvider: "gemini", GeminiKey: "k"}.UseVisionStub())
	assert.True(t, Config{VisionProvider: "stub"}.UseVisionStub())
}

func TestEnvDuration_Invalid(t *testing.T) {
	t.Setenv("TEST_DUR_INVALID", "not-a-duration")
	assert.Equal(t, 5*time.Second, envDuration("TEST_DUR_INVALID", 5*time.Second))
}

func TestEnvInt_Invalid(t *testing.T) {
	t.Setenv("TEST_INT_INVALID", "abc")
	assert.Equal(t, 42, envInt("TEST_INT_INVALID", 42))
}
