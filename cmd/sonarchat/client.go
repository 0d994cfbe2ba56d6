package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kalambet/sonarchat/internal/config"
)

// apiClient talks to a running sonarchat server.
type apiClient struct {
	baseURL    string
	httpClient *http.Client
}

var newAPIClient = func(cfg config.Config) *apiClient {
	return &apiClient{
		baseURL:    "http://" + cfg.Server.Addr(),
		httpClient: &http.Client{Timeout: 2 * time.Second},
	}
}

func (c *apiClient) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("server not reachable, is sonarchat running? (%w)", err)
	}
	return resp, nil
}

func (c *apiClient) getJSON(ctx context.Context, path string, v any) error {
	resp, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	return decodeJSON(resp, v)
}

func (c *apiClient) health(ctx context.Context) error {
	var body struct {
		Status string `json:"status"`
	}
	if err := c.getJSON(ctx, "/health", &body); err != nil {
		return err
	}
	if body.Status != "ok" {
		return fmt.Errorf("server reported status %q", body.Status)
	}
	return nil
}

type modelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
	Default string `json:"default"`
}

func (m modelsResponse) ids() []string {
	out := make([]string, len(m.Data))
	for i, d := range m.Data {
		out[i] = d.ID
	}
	return out
}

func decodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("server returned %d (failed to read body: %w)", resp.StatusCode, err)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
