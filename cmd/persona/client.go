package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kalambet/persona/internal/api"
	"github.com/kalambet/persona/internal/config"
	"github.com/kalambet/persona/internal/resolver"
	"github.com/kalambet/persona/internal/storage"
)

type apiClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var newAPIClient = func() (*apiClient, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	return &apiClient{
		baseURL:    fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port),
		token:      cfg.Server.Token,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}, nil
}

func (c *apiClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshalling request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("server not reachable, is persona running? (%w)", err)
	}
	return resp, nil
}

func (c *apiClient) get(ctx context.Context, path string) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *apiClient) post(ctx context.Context, path string, body any) (*http.Response, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

// askReply mirrors api.AskResponse with the result left undecoded.
type askReply struct {
	Kind   resolver.Kind   `json:"kind"`
	Stage  resolver.Stage  `json:"stage"`
	Field  string          `json:"field,omitempty"`
	Query  string          `json:"query"`
	Result json.RawMessage `json:"result"`
}

// ask posts a query to /v1/ask. A fetch-error answer arrives with status 502
// and is returned as a normal reply.
func (c *apiClient) ask(ctx context.Context, query string) (askReply, error) {
	resp, err := c.post(ctx, "/v1/ask", api.AskRequest{Query: query})
	if err != nil {
		return askReply{}, err
	}
	var out askReply
	if resp.StatusCode == http.StatusBadGateway {
		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return askReply{}, fmt.Errorf("decoding response: %w", err)
		}
		return out, nil
	}
	return out, decodeJSON(resp, &out)
}

func (c *apiClient) chat(ctx context.Context, req api.ChatRequest) (api.ChatResponse, error) {
	resp, err := c.post(ctx, "/v1/chat", req)
	if err != nil {
		return api.ChatResponse{}, err
	}
	var out api.ChatResponse
	return out, decodeJSON(resp, &out)
}

func (c *apiClient) listSessions(ctx context.Context, limit int) ([]storage.Session, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	resp, err := c.get(ctx, "/v1/sessions?"+q.Encode())
	if err != nil {
		return nil, err
	}
	var out []storage.Session
	return out, decodeJSON(resp, &out)
}

func decodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("server returned %d (failed to read body: %w)", resp.StatusCode, err)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErrorMessage(body))
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// apiErrorMessage extracts error.message from an API error body, falling
// back to the raw body.
func apiErrorMessage(body []byte) string {
	var e struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error.Message != "" {
		return e.Error.Message
	}
	return string(bytes.TrimSpace(body))
}
