package mailbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/hostops/concierge/internal/config"
	"github.com/hostops/concierge/internal/pkg/httpretry"
)

// Client is the mailbox capability the pipeline consumes. Implementations
// must be safe for concurrent use.
type Client interface {
	// List returns refs for messages matching the query, newest first,
	// capped at max. label restricts the search when non-empty.
	List(ctx context.Context, query string, max int, label string) ([]Ref, error)
	// Get fetches one message in full, including the MIME payload.
	Get(ctx context.Context, id string) (*RawMessage, error)
	// Send submits a raw RFC 5322 message, threading it when threadID is
	// non-empty. Returns the provider's id for the sent message.
	Send(ctx context.Context, raw []byte, threadID string) (string, error)
}

// HTTPClient implements Client against a Gmail-style REST API using an
// OAuth refresh token.
type HTTPClient struct {
	baseURL    string
	httpClient httpretry.HTTPDoer
}

// NewHTTPClient builds a mailbox client from config. The returned client
// refreshes its access token automatically via the oauth2 token source.
func NewHTTPClient(ctx context.Context, cfg config.MailboxConfig) *HTTPClient {
	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes: []string{
			"https://www.googleapis.com/auth/gmail.readonly",
			"https://www.googleapis.com/auth/gmail.send",
		},
		Endpoint: google.Endpoint,
	}
	token := &oauth2.Token{RefreshToken: cfg.RefreshToken}

	base := oauth2.NewClient(ctx, oauthCfg.TokenSource(ctx, token))
	base.Timeout = cfg.Timeout()

	return &HTTPClient{
		baseURL:    cfg.BaseURL,
		httpClient: httpretry.NewRetryClient(base, 3),
	}
}

type listResponse struct {
	Messages           []Ref  `json:"messages"`
	NextPageToken      string `json:"nextPageToken"`
	ResultSizeEstimate int    `json:"resultSizeEstimate"`
}

// List returns refs for messages matching the query.
func (c *HTTPClient) List(ctx context.Context, query string, max int, label string) ([]Ref, error) {
	params := url.Values{}
	params.Set("q", query)
	if max > 0 {
		params.Set("maxResults", strconv.Itoa(max))
	}
	if label != "" {
		params.Set("labelIds", label)
	}

	var out listResponse
	if err := c.doJSON(ctx, "GET", "/gmail/v1/users/me/messages?"+params.Encode(), nil, &out); err != nil {
		return nil, fmt.Errorf("mailbox list: %w", err)
	}
	return out.Messages, nil
}

// Get fetches one message in full.
func (c *HTTPClient) Get(ctx context.Context, id string) (*RawMessage, error) {
	var out RawMessage
	path := fmt.Sprintf("/gmail/v1/users/me/messages/%s?format=full", url.PathEscape(id))
	if err := c.doJSON(ctx, "GET", path, nil, &out); err != nil {
		return nil, fmt.Errorf("mailbox get %s: %w", id, err)
	}
	return &out, nil
}

type sendRequest struct {
	Raw      string `json:"raw"`
	ThreadID string `json:"threadId,omitempty"`
}

type sendResponse struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
}

// Send submits a composed reply.
func (c *HTTPClient) Send(ctx context.Context, raw []byte, threadID string) (string, error) {
	body := sendRequest{Raw: EncodeRaw(raw), ThreadID: threadID}
	var out sendResponse
	if err := c.doJSON(ctx, "POST", "/gmail/v1/users/me/messages/send", body, &out); err != nil {
		return "", fmt.Errorf("mailbox send: %w", err)
	}
	return out.ID, nil
}

func (c *HTTPClient) doJSON(ctx context.Context, method, path string, in, out any) error {
	var reqBody io.Reader
	if in != nil {
		jsonBody, err := json.Marshal(in)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(respBody), 300))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// interface check
var _ Client = (*HTTPClient)(nil)
