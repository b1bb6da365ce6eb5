package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"ragchat/internal/domain"
)

// ClientConfig holds what is needed to reach the Gemini API.
type ClientConfig struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// NewClient creates a Gemini API client for a user-supplied key.
func NewClient(ctx context.Context, cfg ClientConfig) (*genai.Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: Gemini API key is required", domain.ErrInvalidConfig)
	}
	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		timeout := cfg.Timeout
		cc.HTTPOptions.Timeout = &timeout
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("%w: create Gemini client", domain.ErrInvalidConfig)
	}
	return client, nil
}

// Describe turns a Gemini API failure into a short cause without echoing
// request details.
func Describe(err error) string {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusBadRequest:
			if strings.Contains(strings.ToLower(apiErr.Message), "api key") {
				return "invalid API key"
			}
			return "bad request: " + apiErr.Message
		case http.StatusUnauthorized, http.StatusForbidden:
			return "API key rejected"
		case http.StatusTooManyRequests:
			return "quota exceeded"
		default:
			if apiErr.Code >= 500 {
				return fmt.Sprintf("service error %d", apiErr.Code)
			}
			return fmt.Sprintf("status %d: %s", apiErr.Code, apiErr.Message)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "request timed out"
	}
	return "network error: " + err.Error()
}
