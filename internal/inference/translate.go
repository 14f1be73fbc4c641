package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mangaforge/mangaforge/internal/domain"
)

// DefaultTranslatorEndpoint is the public OpenAI endpoint used when no
// endpoint is configured. Calling it requires an API key.
const DefaultTranslatorEndpoint = "https://api.openai.com/v1/"

const defaultSystemPrompt = "You are a professional manga translator. " +
	"Translate the user's text naturally, keeping honorifics and tone. " +
	"Reply with the translation only."

// TranslatorConfig holds the settings for the OpenAI-compatible
// chat-completions translator.
type TranslatorConfig struct {
	Endpoint     string
	APIKey       string
	Model        string
	SystemPrompt string
	Temperature  float64
	Timeout      time.Duration
	Retry        RetryConfig
}

// TranslatorClient calls an OpenAI-compatible chat-completions endpoint to
// translate recognized text.
type TranslatorClient struct {
	url          string
	apiKey       string
	model        string
	systemPrompt string
	temperature  float64
	usingDefault bool
	httpClient   *http.Client
	retry        RetryConfig
	logger       zerolog.Logger
}

// NewTranslatorClient creates a translator client. The endpoint is
// normalized so it always ends in /chat/completions; an empty endpoint
// falls back to the public OpenAI default.
func NewTranslatorClient(cfg TranslatorConfig, logger zerolog.Logger) *TranslatorClient {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	usingDefault := endpoint == "" || endpoint == DefaultTranslatorEndpoint ||
		strings.TrimRight(endpoint, "/") == strings.TrimRight(DefaultTranslatorEndpoint, "/")
	if endpoint == "" {
		endpoint = DefaultTranslatorEndpoint
	}

	prompt := cfg.SystemPrompt
	if prompt == "" {
		prompt = defaultSystemPrompt
	}
	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = 0.2
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &TranslatorClient{
		url:          normalizeEndpoint(endpoint),
		apiKey:       cfg.APIKey,
		model:        cfg.Model,
		systemPrompt: prompt,
		temperature:  temperature,
		usingDefault: usingDefault,
		httpClient:   &http.Client{Timeout: timeout},
		retry:        cfg.Retry.withDefaults(),
		logger:       logger,
	}
}

// normalizeEndpoint appends /chat/completions to a base URL unless it is
// already present.
func normalizeEndpoint(endpoint string) string {
	trimmed := strings.TrimRight(endpoint, "/")
	if strings.HasSuffix(trimmed, "/chat/completions") {
		return trimmed
	}
	return trimmed + "/chat/completions"
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatChoice struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Text string `json:"text"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
}

// Translate sends sourceText through the chat-completions endpoint and
// returns the first choice's trimmed content. When the endpoint is the
// public default and no API key is configured, a configuration error is
// raised before any network attempt.
func (c *TranslatorClient) Translate(ctx context.Context, sourceText string) (string, error) {
	if c.usingDefault && c.apiKey == "" {
		return "", domain.ConfigError("translator needs an endpoint or an API key", nil)
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: c.systemPrompt},
			{Role: "user", Content: sourceText},
		},
		Temperature: c.temperature,
	})
	if err != nil {
		return "", domain.AdapterError("marshal chat request", err)
	}

	resp, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}
		return req, nil
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return "", domain.AdapterError("translation request failed", &StatusError{
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		})
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", domain.AdapterError("decode translation response", err)
	}
	if len(parsed.Choices) == 0 {
		return "", domain.AdapterError("translation response carries no choices", nil)
	}
	choice := parsed.Choices[0]
	content := choice.Message.Content
	if content == "" {
		content = choice.Text
	}
	if content == "" {
		return "", domain.AdapterError("translation response carries no content", nil)
	}
	return strings.TrimSpace(content), nil
}

// doWithRetry executes the request with exponential backoff on transient
// failures (429 and 5xx). Non-retryable responses are returned to the
// caller as-is.
func (c *TranslatorClient) doWithRetry(ctx context.Context, build func() (*http.Request, error)) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		req, err := build()
		if err != nil {
			return nil, domain.AdapterError("build translation request", err)
		}

		resp, err := c.httpClient.Do(req)
		if err == nil && !shouldRetry(resp.StatusCode) {
			return resp, nil
		}

		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("HTTP %d", resp.StatusCode)
			resp.Body.Close()
		}

		if attempt == c.retry.MaxRetries {
			break
		}

		backoff := c.retry.backoff(attempt)
		c.logger.Warn().
			Int("attempt", attempt+1).
			Int("max", c.retry.MaxRetries).
			Dur("backoff", backoff).
			Err(lastErr).
			Msg("Translation request failed, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return nil, domain.AdapterError(
		fmt.Sprintf("translation request failed after %d retries", c.retry.MaxRetries), lastErr)
}
