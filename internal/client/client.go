// Package client is a small HTTP client for a running contextd daemon.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const (
	defaultServerURL = "http://127.0.0.1:37878"
	httpTimeout      = 5 * time.Second
)

// Client talks to the contextd server.
type Client struct {
	http      *http.Client
	serverURL string
}

// New creates a client for the given base URL. An empty URL falls back to
// the CONTEXTD_URL env var, then to http://127.0.0.1:37878.
func New(serverURL string) *Client {
	if serverURL == "" {
		serverURL = os.Getenv("CONTEXTD_URL")
	}
	if serverURL == "" {
		serverURL = defaultServerURL
	}
	return &Client{
		http:      &http.Client{Timeout: httpTimeout},
		serverURL: serverURL,
	}
}

// Post sends a POST request with JSON body. Returns response body.
func (c *Client) Post(path string, body []byte) ([]byte, error) {
	resp, err := c.http.Post(c.serverURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response %s: %w", path, err)
	}
	if resp.StatusCode >= 400 {
		return data, fmt.Errorf("POST %s: status %d: %s", path, resp.StatusCode, data)
	}
	return data, nil
}

// Get sends a GET request. Returns response body.
func (c *Client) Get(path string) ([]byte, error) {
	resp, err := c.http.Get(c.serverURL + path)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response %s: %w", path, err)
	}
	if resp.StatusCode >= 400 {
		return data, fmt.Errorf("GET %s: status %d: %s", path, resp.StatusCode, data)
	}
	return data, nil
}

// Healthy checks if the server is reachable.
func (c *Client) Healthy() bool {
	resp, err := c.http.Get(c.serverURL + "/api/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// TrackRequest is one activity observation to report.
type TrackRequest struct {
	ActivityID   string `json:"activity_id"`
	ActivityType string `json:"activity_type"`
	Timestamp    string `json:"timestamp,omitempty"`
	AppName      string `json:"app_name,omitempty"`
	WindowTitle  string `json:"window_title,omitempty"`
	FilePath     string `json:"file_path,omitempty"`
	URL          string `json:"url,omitempty"`
	Duration     int    `json:"duration,omitempty"`
}

// Track reports an activity to the daemon. Returns the recorded/dropped
// status string from the server.
func (c *Client) Track(req TrackRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal track request: %w", err)
	}

	data, err := c.Post("/api/activities", body)
	if err != nil {
		return "", err
	}

	var resp struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("decode track response: %w", err)
	}
	return resp.Status, nil
}
