// Package config provides unified configuration loading for mangaforge.
// Supports YAML files, environment variables, and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for mangaforge.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Sidecar       SidecarConfig       `yaml:"sidecar"`
	OCR           OCRConfig           `yaml:"ocr"`
	Translator    TranslatorConfig    `yaml:"translator"`
	Pipeline      PipelineConfig      `yaml:"pipeline"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
}

// SidecarConfig holds the model sidecar connection settings.
type SidecarConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// OCRConfig selects the OCR engine.
type OCRConfig struct {
	Engine    string   `yaml:"engine"` // sidecar or tesseract
	Languages []string `yaml:"languages"`
}

// TranslatorConfig holds LLM translation settings.
type TranslatorConfig struct {
	Endpoint       string        `yaml:"endpoint"`
	APIKey         string        `yaml:"api_key"`
	Model          string        `yaml:"model"`
	SystemPrompt   string        `yaml:"system_prompt"`
	Temperature    float64       `yaml:"temperature"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
}

// PipelineConfig holds detection and mask tuning knobs.
type PipelineConfig struct {
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	NMSThreshold        float64 `yaml:"nms_threshold"`
	DilateKernelSize    int     `yaml:"dilate_kernel_size"`
	ErodeDistance       int     `yaml:"erode_distance"`
	BrushRadius         float64 `yaml:"brush_radius"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Load reads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for local use.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "127.0.0.1",
			Port:             8090,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     120 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 10 * time.Second,
		},
		Sidecar: SidecarConfig{
			BaseURL: "http://127.0.0.1:9300",
			Timeout: 5 * time.Minute,
		},
		OCR: OCRConfig{
			Engine:    "sidecar",
			Languages: []string{"jpn", "eng"},
		},
		Translator: TranslatorConfig{
			Endpoint:       "https://api.openai.com/v1/",
			Model:          "gpt-4o-mini",
			Temperature:    0.2,
			Timeout:        2 * time.Minute,
			MaxRetries:     3,
			InitialBackoff: 1 * time.Second,
		},
		Pipeline: PipelineConfig{
			ConfidenceThreshold: 0.3,
			NMSThreshold:        0.5,
			DilateKernelSize:    9,
			ErodeDistance:       2,
			BrushRadius:         16,
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "console",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.OCR.Engine != "sidecar" && c.OCR.Engine != "tesseract" {
		return fmt.Errorf("invalid ocr engine: %s", c.OCR.Engine)
	}

	if c.Sidecar.BaseURL == "" {
		return fmt.Errorf("sidecar base_url must be set")
	}

	if c.Pipeline.ConfidenceThreshold < 0 || c.Pipeline.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence_threshold must be between 0 and 1")
	}

	if c.Pipeline.NMSThreshold < 0 || c.Pipeline.NMSThreshold > 1 {
		return fmt.Errorf("nms_threshold must be between 0 and 1")
	}

	if c.Pipeline.DilateKernelSize < 0 {
		return fmt.Errorf("dilate_kernel_size must be non-negative")
	}

	if c.Pipeline.BrushRadius <= 0 {
		return fmt.Errorf("brush_radius must be positive")
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("SIDECAR_URL"); v != "" {
		cfg.Sidecar.BaseURL = v
	}

	if v := os.Getenv("OCR_ENGINE"); v != "" {
		cfg.OCR.Engine = v
	}

	if v := os.Getenv("OCR_LANGUAGES"); v != "" {
		cfg.OCR.Languages = strings.Split(v, ",")
	}

	if v := os.Getenv("TRANSLATOR_ENDPOINT"); v != "" {
		cfg.Translator.Endpoint = v
	}

	if v := os.Getenv("TRANSLATOR_API_KEY"); v != "" {
		cfg.Translator.APIKey = v
	}

	if v := os.Getenv("OPENAI_API_KEY"); v != "" && cfg.Translator.APIKey == "" {
		cfg.Translator.APIKey = v
	}

	if v := os.Getenv("TRANSLATOR_MODEL"); v != "" {
		cfg.Translator.Model = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}
