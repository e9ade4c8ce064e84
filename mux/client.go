package mux

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// Client talks to a Server over its unix socket. It is what cmd/squish
// uses to drive the daemon.
type Client struct {
	SocketPath string
	http       *http.Client
}

// NewClient builds a Client dialing socketPath for every request.
func NewClient(socketPath string) *Client {
	return &Client{
		SocketPath: socketPath,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
					var d net.Dialer
					return d.DialContext(ctx, "unix", socketPath)
				},
			},
		},
	}
}

func (c *Client) doRequest(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = strings.NewReader(string(encoded))
	}
	return c.doRequestRaw(ctx, method, path, reader, body != nil, result)
}

func (c *Client) doRequestRaw(ctx context.Context, method, path string, body io.Reader, isJSON bool, result any) error {
	req, err := http.NewRequestWithContext(ctx, method, "http://unix"+path, body)
	if err != nil {
		return err
	}
	if isJSON {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("daemon not running: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&errResp) == nil && errResp.Error != "" {
			return fmt.Errorf("%s", errResp.Error)
		}
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

// Status pings the daemon.
func (c *Client) Status(ctx context.Context) error {
	return c.doRequest(ctx, http.MethodGet, "/status", nil, nil)
}

// List returns every live container the daemon knows about.
func (c *Client) List(ctx context.Context) ([]ListContainerEntry, error) {
	var out []ListContainerEntry
	if err := c.doRequest(ctx, http.MethodGet, "/containers/list", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Create submits a manifest (already resolved to absolute paths and
// JSON-encoded by the caller) and spawns a container from it, returning
// the created ids (currently always exactly one).
func (c *Client) Create(ctx context.Context, manifestJSON []byte) ([]string, error) {
	var out []string
	body := bytes.NewReader(manifestJSON)
	if err := c.doRequestRaw(ctx, http.MethodPost, "/containers/create", body, true, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Stop fuzzy-matches prefix against live container ids/names and tears
// down every match, returning the ids removed.
func (c *Client) Stop(ctx context.Context, prefix string) ([]string, error) {
	var out []string
	if err := c.doRequest(ctx, http.MethodPost, "/containers/stop/"+prefix, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
