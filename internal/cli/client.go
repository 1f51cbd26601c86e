package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jmaddaus/issueboard/internal/board"
	"github.com/jmaddaus/issueboard/internal/model"
)

// Client is an HTTP client wrapper for communicating with the daemon.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a new Client targeting the given daemon host.
func NewClient(host string) *Client {
	return &Client{
		baseURL: strings.TrimRight(host, "/"),
		http: &http.Client{
			// Loading a large repository pages through the GitHub API.
			Timeout: 2 * time.Minute,
		},
	}
}

// Do executes an HTTP request to the daemon and returns the response.
// If body is non-nil it is JSON-encoded.
func (c *Client) Do(method, path string, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if strings.Contains(err.Error(), "connection refused") {
			return nil, fmt.Errorf("daemon not running at %s; start with: board daemon start", c.baseURL)
		}
		return nil, fmt.Errorf("request failed (is the daemon running?): %w", err)
	}
	return resp, nil
}

// decodeOrError reads the response body. If the status is not in the 2xx range
// it tries to parse an error message from the JSON body.
func decodeOrError(resp *http.Response, v interface{}) error {
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &errResp) == nil && errResp.Error != "" {
			return fmt.Errorf("daemon error (%d): %s", resp.StatusCode, errResp.Error)
		}
		return fmt.Errorf("daemon error (%d): %s", resp.StatusCode, string(data))
	}

	if v != nil {
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// LoadBoard asks the daemon to fetch repoURL and build its board.
func (c *Client) LoadBoard(repoURL string) (*board.Board, error) {
	resp, err := c.Do("POST", "/boards", map[string]string{"repo_url": repoURL})
	if err != nil {
		return nil, err
	}
	var b board.Board
	if err := decodeOrError(resp, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// GetBoard returns the board of a repository the daemon has loaded.
func (c *Client) GetBoard(repoURL string) (*board.Board, error) {
	resp, err := c.Do("GET", "/boards?repo_url="+url.QueryEscape(repoURL), nil)
	if err != nil {
		return nil, err
	}
	var b board.Board
	if err := decodeOrError(resp, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// MoveRequest is a move command addressed to one repository.
type MoveRequest struct {
	RepoURL string `json:"repo_url"`
	model.MoveCommand
}

// Move applies a move command and returns the updated board.
func (c *Client) Move(req MoveRequest) (*board.Board, error) {
	resp, err := c.Do("POST", "/boards/move", req)
	if err != nil {
		return nil, err
	}
	var b board.Board
	if err := decodeOrError(resp, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// PositionsResponse is the persisted position map of a repository.
type PositionsResponse struct {
	RepoURL   string          `json:"repo_url"`
	Positions model.Positions `json:"positions"`
	UpdatedAt *time.Time      `json:"updated_at,omitempty"`
}

// Positions returns the persisted issue positions of repoURL.
func (c *Client) Positions(repoURL string) (*PositionsResponse, error) {
	resp, err := c.Do("GET", "/positions?repo_url="+url.QueryEscape(repoURL), nil)
	if err != nil {
		return nil, err
	}
	var p PositionsResponse
	if err := decodeOrError(resp, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Health pings the daemon health endpoint.
func (c *Client) Health() (map[string]interface{}, error) {
	resp, err := c.Do("GET", "/health", nil)
	if err != nil {
		return nil, err
	}
	var result map[string]interface{}
	if err := decodeOrError(resp, &result); err != nil {
		return nil, err
	}
	return result, nil
}
