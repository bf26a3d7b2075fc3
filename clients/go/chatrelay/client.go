// Package chatrelay provides a client for the token-gated chat relay API.
package chatrelay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// Client is a chat relay API client.
type Client struct {
	BaseURL    string
	ConfigDir  string
	Wallet     string // default sender, sent as X-Chat-Wallet
	HTTPClient *http.Client
}

// Config holds the persisted client settings.
type Config struct {
	Wallet string `json:"wallet"`
}

// APIError is a non-2xx response from the relay.
type APIError struct {
	Status  int
	Kind    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chatrelay error %d (%s): %s", e.Status, e.Kind, e.Message)
}

// IsKind reports whether err is an APIError of the given kind.
func IsKind(err error, kind string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}

// NewClient creates a new client and loads any saved config.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	configDir := os.Getenv("CHATRELAY_CONFIG")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".chatrelay")
	}

	c := &Client{
		BaseURL:    baseURL,
		ConfigDir:  configDir,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}

	_ = c.LoadConfig()
	return c
}

// LoadConfig loads the saved wallet from disk.
func (c *Client) LoadConfig() error {
	data, err := os.ReadFile(filepath.Join(c.ConfigDir, "config.json"))
	if err != nil {
		return err
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return err
	}
	c.Wallet = config.Wallet
	return nil
}

// SaveConfig saves the current wallet to disk.
func (c *Client) SaveConfig() error {
	if err := os.MkdirAll(c.ConfigDir, 0700); err != nil {
		return err
	}
	data, _ := json.MarshalIndent(Config{Wallet: c.Wallet}, "", "  ")
	return os.WriteFile(filepath.Join(c.ConfigDir, "config.json"), data, 0600)
}

// doRequest performs an HTTP request and decodes a JSON response into out.
func (c *Client) doRequest(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Wallet != "" {
		req.Header.Set("X-Chat-Wallet", c.Wallet)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
			Kind  string `json:"kind"`
		}
		json.Unmarshal(respBody, &errResp)
		return &APIError{Status: resp.StatusCode, Kind: errResp.Kind, Message: errResp.Error}
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(respBody, out)
}

// Message is a chat message.
type Message struct {
	ID                int64  `json:"id"`
	GroupID           string `json:"group_id"`
	CollectionAddress string `json:"collection_address"`
	Sender            string `json:"sender"`
	Content           string `json:"content"`
	Kind              string `json:"kind"`
	Timestamp         int64  `json:"ts"`
	IsBot             bool   `json:"is_bot"`
}

// MessagesResponse is the response from fetching a group's messages.
type MessagesResponse struct {
	Messages []Message `json:"messages"`
	Count    int       `json:"count"`
}

// VerifyAccess reports whether any of wallets holds a token of collection.
func (c *Client) VerifyAccess(ctx context.Context, wallets []string, collection string) (bool, error) {
	req := struct {
		Wallets           []string `json:"wallets"`
		CollectionAddress string   `json:"collection_address"`
	}{wallets, collection}

	var resp struct {
		HasAccess bool `json:"has_access"`
	}
	if err := c.doRequest(ctx, http.MethodPost, "/access", req, &resp); err != nil {
		return false, err
	}
	return resp.HasAccess, nil
}

// FetchMessages returns a group's messages. groupID may be a collection address.
func (c *Client) FetchMessages(ctx context.Context, groupID string) (*MessagesResponse, error) {
	var resp MessagesResponse
	if err := c.doRequest(ctx, http.MethodGet, "/groups/"+url.PathEscape(groupID)+"/messages", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SendRequest is the body of a send.
type SendRequest struct {
	Sender  string `json:"sender"`
	Content string `json:"content"`
	Kind    string `json:"kind,omitempty"`
}

// SendMessage posts a message. An empty Sender uses the client's wallet.
func (c *Client) SendMessage(ctx context.Context, groupID string, req SendRequest) (*Message, error) {
	if req.Sender == "" {
		req.Sender = c.Wallet
	}

	var resp struct {
		Message Message `json:"message"`
	}
	if err := c.doRequest(ctx, http.MethodPost, "/groups/"+url.PathEscape(groupID)+"/messages", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Message, nil
}

// Preview is a collection summary.
type Preview struct {
	Address     string `json:"address"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	TotalSupply string `json:"total_supply,omitempty"`
}

// CollectionPreview returns display metadata for a collection.
func (c *Client) CollectionPreview(ctx context.Context, collection string) (*Preview, error) {
	var resp Preview
	if err := c.doRequest(ctx, http.MethodGet, "/collections/"+url.PathEscape(collection)+"/preview", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// HealthResponse is the server health report.
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	RelayMode string `json:"relay_mode"`
	Checks    map[string]struct {
		Status  string `json:"status"`
		Latency string `json:"latency,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"checks"`
}

// Health checks server health. An unhealthy server still returns its report.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	err := c.doRequest(ctx, http.MethodGet, "/health", nil, &resp)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusServiceUnavailable {
		resp.Status = "unhealthy"
		return &resp, nil
	}
	if err != nil {
		return nil, err
	}
	return &resp, nil
}
