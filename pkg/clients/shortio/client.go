package shortio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
)

const defaultBaseURL = "https://api.short.io"

// Client defines the interface for interacting with Short.io API
type Client interface {
	CreateShortLink(ctx context.Context, originalURL string) (string, error)
}

type clientImpl struct {
	httpClient *http.Client
	apiKey     string
	domain     string
	baseURL    string
	logger     *zap.Logger
}

// NewClient creates a new Short.io client
func NewClient(httpClient *http.Client, apiKey, domain string, logger *zap.Logger) Client {
	return newClient(httpClient, apiKey, domain, defaultBaseURL, logger)
}

func newClient(httpClient *http.Client, apiKey, domain, baseURL string, logger *zap.Logger) *clientImpl {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &clientImpl{
		httpClient: httpClient,
		apiKey:     apiKey,
		domain:     domain,
		baseURL:    baseURL,
		logger:     logger,
	}
}

func (c *clientImpl) CreateShortLink(ctx context.Context, originalURL string) (string, error) {
	// Create payload
	payload := map[string]interface{}{
		"originalURL": originalURL,
		"domain":      c.domain,
	}

	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("error creating payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/links", bytes.NewBuffer(jsonPayload))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}

	// Add authentication headers
	req.Header.Add("Authorization", c.apiKey)
	req.Header.Add("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("error creating short link: %w", err)
	}
	defer resp.Body.Close()

	// Read response body
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("error from Short.io API: %s", string(body))
	}

	// Parse response
	var response struct {
		ShortURL string `json:"shortURL"`
	}

	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("error parsing response: %w", err)
	}
	if response.ShortURL == "" {
		return "", fmt.Errorf("error from Short.io API: empty short link")
	}

	c.logger.Debug("Created short link", zap.String("short", response.ShortURL))
	return response.ShortURL, nil
}
