package appscript

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"getquote/pkg/models"
)

// ErrAgentConfig is returned when the config script answers with an error field
var ErrAgentConfig = errors.New("agent config rejected")

// Client defines the interface for the Apps Script endpoints backing the agent sheets
type Client interface {
	FetchConfig(ctx context.Context, agentID string) (*models.AgentProfile, error)
	FetchRates(ctx context.Context, sourceURL string) (json.RawMessage, error)
	// FetchBenefits reports ok=false when the payload carries no hibah section
	FetchBenefits(ctx context.Context) (catalog models.BenefitCatalog, ok bool, err error)
}

type clientImpl struct {
	httpClient  *http.Client
	configURL   string
	benefitsURL string
	logger      *zap.Logger
}

// NewClient creates a new Apps Script client
func NewClient(httpClient *http.Client, configURL, benefitsURL string, logger *zap.Logger) Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &clientImpl{
		httpClient:  httpClient,
		configURL:   configURL,
		benefitsURL: benefitsURL,
		logger:      logger,
	}
}

func (c *clientImpl) FetchConfig(ctx context.Context, agentID string) (*models.AgentProfile, error) {
	u, err := url.Parse(c.configURL)
	if err != nil {
		return nil, fmt.Errorf("error parsing config url: %w", err)
	}
	q := u.Query()
	q.Set("agent", agentID)
	u.RawQuery = q.Encode()

	body, err := c.get(ctx, u.String())
	if err != nil {
		return nil, fmt.Errorf("error fetching agent config: %w", err)
	}

	var profile models.AgentProfile
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, fmt.Errorf("error parsing agent config: %w", err)
	}
	if profile.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrAgentConfig, profile.Error)
	}

	c.logger.Debug("Fetched agent config", zap.String("agent", agentID), zap.String("name", profile.Name))
	return &profile, nil
}

func (c *clientImpl) FetchRates(ctx context.Context, sourceURL string) (json.RawMessage, error) {
	if sourceURL == "" {
		return nil, fmt.Errorf("error fetching rates: no rate source configured")
	}

	body, err := c.get(ctx, sourceURL)
	if err != nil {
		return nil, fmt.Errorf("error fetching rates: %w", err)
	}
	c.logger.Debug("Fetched rate tables", zap.String("url", sourceURL), zap.Int("bytes", len(body)))
	return json.RawMessage(body), nil
}

func (c *clientImpl) FetchBenefits(ctx context.Context) (models.BenefitCatalog, bool, error) {
	body, err := c.get(ctx, c.benefitsURL)
	if err != nil {
		return nil, false, fmt.Errorf("error fetching benefits: %w", err)
	}

	var response struct {
		Hibah models.BenefitCatalog `json:"hibah"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, false, fmt.Errorf("error parsing benefits: %w", err)
	}
	if response.Hibah == nil {
		c.logger.Warn("Benefits payload has no hibah section")
		return models.BenefitCatalog{}, false, nil
	}
	return response.Hibah, true, nil
}

func (c *clientImpl) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Add("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// Read response body
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(body, 200))
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
