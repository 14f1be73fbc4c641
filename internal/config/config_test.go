package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "sidecar", cfg.OCR.Engine)
	assert.Equal(t, "https://api.openai.com/v1/", cfg.Translator.Endpoint)
	assert.InDelta(t, 0.3, cfg.Pipeline.ConfidenceThreshold, 1e-9)
}

func TestLoadWithoutPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8090, cfg.Server.Port)
}

func TestLoadYAMLOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: 9999
sidecar:
  base_url: http://models:9300
  timeout: 30s
ocr:
  engine: tesseract
  languages: [jpn]
pipeline:
  confidence_threshold: 0.6
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "http://models:9300", cfg.Sidecar.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Sidecar.Timeout)
	assert.Equal(t, "tesseract", cfg.OCR.Engine)
	assert.Equal(t, []string{"jpn"}, cfg.OCR.Languages)
	assert.InDelta(t, 0.6, cfg.Pipeline.ConfidenceThreshold, 1e-9)

	// Untouched sections keep defaults.
	assert.Equal(t, "gpt-4o-mini", cfg.Translator.Model)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "7777")
	t.Setenv("SIDECAR_URL", "http://env:9300")
	t.Setenv("OCR_ENGINE", "tesseract")
	t.Setenv("OCR_LANGUAGES", "jpn,kor")
	t.Setenv("TRANSLATOR_API_KEY", "sk-env")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7777, cfg.Server.Port)
	assert.Equal(t, "http://env:9300", cfg.Sidecar.BaseURL)
	assert.Equal(t, "tesseract", cfg.OCR.Engine)
	assert.Equal(t, []string{"jpn", "kor"}, cfg.OCR.Languages)
	assert.Equal(t, "sk-env", cfg.Translator.APIKey)
	assert.Equal(t, "debug", cfg.Observability.LogLevel)
}

func TestOpenAIKeyFallback(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-openai")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sk-openai", cfg.Translator.APIKey)

	t.Setenv("TRANSLATOR_API_KEY", "sk-explicit")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "sk-explicit", cfg.Translator.APIKey, "explicit key wins over the OpenAI fallback")
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"bad ocr engine", func(c *Config) { c.OCR.Engine = "carrier-pigeon" }},
		{"empty sidecar url", func(c *Config) { c.Sidecar.BaseURL = "" }},
		{"confidence above one", func(c *Config) { c.Pipeline.ConfidenceThreshold = 1.5 }},
		{"negative nms", func(c *Config) { c.Pipeline.NMSThreshold = -0.1 }},
		{"negative dilate", func(c *Config) { c.Pipeline.DilateKernelSize = -1 }},
		{"zero brush radius", func(c *Config) { c.Pipeline.BrushRadius = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
