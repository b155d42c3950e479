package leadstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"getquote/pkg/models"
)

// Kind classifies a failed read of the lead store
type Kind string

const (
	KindPermission Kind = "permissions"
	KindNotFound   Kind = "not found"
	KindBadFormat  Kind = "bad format"
	KindNetwork    Kind = "network"
	KindNoURL      Kind = "no url"
)

var hints = map[Kind]string{
	KindPermission: "Deploy the sheet script with access set to \"Anyone\" and use the /exec URL.",
	KindNotFound:   "The database URL does not exist. Copy the latest deployment URL from the sheet script.",
	KindBadFormat:  "The database URL did not return lead data. Check that it points to the leads script, not the sheet itself.",
	KindNetwork:    "The database could not be reached. Check the connection and try again.",
	KindNoURL:      "No database URL is set for this agent.",
}

// Error is a classified lead store read failure with a remediation hint
type Error struct {
	Kind Kind
	Hint string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("lead store %s: %v", e.Kind, e.Err)
	}
	return "lead store " + string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match on kind alone
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Err == nil && t.Kind == e.Kind
}

func newError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Hint: hints[kind], Err: err}
}

// Sentinels for errors.Is
var (
	ErrPermission = &Error{Kind: KindPermission}
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrBadFormat  = &Error{Kind: KindBadFormat}
	ErrNetwork    = &Error{Kind: KindNetwork}
	ErrNoURL      = &Error{Kind: KindNoURL}
)

// Client defines the interface for the spreadsheet-backed lead store
type Client interface {
	Submit(ctx context.Context, destination string, lead models.Lead) error
	List(ctx context.Context, source string) ([]models.LeadRecord, error)
}

type clientImpl struct {
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new lead store client
func NewClient(httpClient *http.Client, logger *zap.Logger) Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &clientImpl{httpClient: httpClient, logger: logger}
}

// Submit posts the lead. The body is JSON but labelled text/plain so the
// sheet script receives it as a simple request. The response is not read
// beyond the status line.
func (c *clientImpl) Submit(ctx context.Context, destination string, lead models.Lead) error {
	jsonPayload, err := json.Marshal(lead)
	if err != nil {
		return fmt.Errorf("error creating payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, destination, bytes.NewBuffer(jsonPayload))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Add("Content-Type", "text/plain;charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error submitting lead: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("lead store answered %d", resp.StatusCode)
	}
	return nil
}

// List reads every lead from the store. The script may answer with a bare
// array or with {"data": [...]}; an empty body means no leads yet.
func (c *clientImpl) List(ctx context.Context, source string) ([]models.LeadRecord, error) {
	if strings.TrimSpace(source) == "" {
		return nil, newError(KindNoURL, nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, newError(KindBadFormat, fmt.Errorf("error creating request: %w", err))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, newError(KindNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError(KindNetwork, fmt.Errorf("error reading response: %w", err))
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, newError(KindPermission, fmt.Errorf("status %d", resp.StatusCode))
	case http.StatusNotFound:
		return nil, newError(KindNotFound, fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, newError(KindNetwork, fmt.Errorf("status %d", resp.StatusCode))
	}

	leads, err := decodeLeads(body)
	if err != nil {
		c.logger.Warn("Unreadable lead store response", zap.String("url", source), zap.Error(err))
		return nil, err
	}
	return leads, nil
}

func decodeLeads(body []byte) ([]models.LeadRecord, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return []models.LeadRecord{}, nil
	}

	if trimmed[0] == '<' {
		// Apps Script serves an HTML sign-in or error page when the deployment is not public
		lower := strings.ToLower(string(trimmed))
		for _, marker := range []string{"sign in", "signin", "accounts.google.com", "access denied", "permission", "you need access"} {
			if strings.Contains(lower, marker) {
				return nil, newError(KindPermission, errors.New("received a sign-in page"))
			}
		}
		if strings.Contains(lower, "not found") || strings.Contains(lower, "404") {
			return nil, newError(KindNotFound, errors.New("received a not found page"))
		}
		return nil, newError(KindBadFormat, errors.New("received HTML instead of JSON"))
	}

	var list []models.LeadRecord
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, newError(KindBadFormat, err)
		}
		return list, nil
	}

	var wrapped struct {
		Data  *[]models.LeadRecord `json:"data"`
		Error string               `json:"error"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, newError(KindBadFormat, err)
	}
	if wrapped.Data == nil {
		if wrapped.Error != "" {
			return nil, newError(KindBadFormat, errors.New(wrapped.Error))
		}
		return nil, newError(KindBadFormat, errors.New("response has no data array"))
	}
	return *wrapped.Data, nil
}
