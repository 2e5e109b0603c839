package profile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultURL is the profile service queried when no URL is configured.
	DefaultURL     = "https://personal-api-orcin.vercel.app/profile"
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 4 << 20
)

// Source yields a freshly fetched profile document.
type Source interface {
	Fetch(ctx context.Context) (*Document, error)
}

// FetchError describes a failed profile retrieval. Status is the HTTP status
// code for non-200 responses and 0 for transport or decoding failures.
type FetchError struct {
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("Error fetching data: Status code %d", e.Status)
	}
	if e.Err == nil {
		return "Error fetching data"
	}
	return fmt.Sprintf("Error fetching data: %v", e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Client fetches the profile document over HTTP. It keeps no state between
// calls: every Fetch is a fresh GET.
type Client struct {
	url        string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient creates a client for the given profile URL. An empty URL selects
// DefaultURL; a non-positive timeout selects the 10s default.
func NewClient(url string, timeout time.Duration) *Client {
	if url == "" {
		url = DefaultURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		url:        url,
		timeout:    timeout,
		httpClient: &http.Client{},
	}
}

// NewClientWithHTTP creates a client that sends requests through hc (for testing).
func NewClientWithHTTP(url string, timeout time.Duration, hc *http.Client) *Client {
	c := NewClient(url, timeout)
	c.httpClient = hc
	return c
}

// URL returns the profile endpoint.
func (c *Client) URL() string { return c.url }

// Fetch performs one GET of the profile endpoint. Every failure is returned
// as a *FetchError.
func (c *Client) Fetch(ctx context.Context) (*Document, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, &FetchError{Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &FetchError{Err: fmt.Errorf("request timed out after %s: %w", c.timeout, err)}
		}
		return nil, &FetchError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &FetchError{Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &FetchError{Err: fmt.Errorf("reading response: %w", err)}
	}

	doc, err := Decode(body)
	if err != nil {
		return nil, &FetchError{Err: err}
	}
	return doc, nil
}

// Static is a Source that always returns the same document.
type Static struct {
	Doc *Document
}

func (s Static) Fetch(context.Context) (*Document, error) {
	if s.Doc == nil {
		return nil, &FetchError{Err: errors.New("no profile document")}
	}
	return s.Doc, nil
}
