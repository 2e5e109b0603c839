// Package llm runs tool-calling conversations against hosted language models.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kalambet/persona/internal/tools"
)

// ErrMaxSteps is returned when the model keeps requesting tools past the
// step limit without producing a final answer.
var ErrMaxSteps = errors.New("llm: tool-call step limit reached")

const (
	defaultMaxSteps  = 5
	defaultMaxTokens = 1024
)

// Provider is the interface for model backends.
type Provider interface {
	// Run sends the request and serves tool calls from req.Tools until the
	// model answers with text.
	Run(ctx context.Context, req Request) (string, error)
}

// Request is a single user turn.
type Request struct {
	System    string
	Message   string
	Tools     *tools.Registry
	MaxSteps  int
	MaxTokens int
}

func (r Request) maxSteps() int {
	if r.MaxSteps > 0 {
		return r.MaxSteps
	}
	return defaultMaxSteps
}

func (r Request) maxTokens() int64 {
	if r.MaxTokens > 0 {
		return int64(r.MaxTokens)
	}
	return defaultMaxTokens
}

func (r Request) toolList() []tools.Tool {
	if r.Tools == nil {
		return nil
	}
	return r.Tools.List()
}

// Config selects and authenticates a provider.
type Config struct {
	Provider string // openai, google, anthropic
	Model    string
	APIKey   string
	BaseURL  string // openai and anthropic only
}

// NewProvider is the factory for creating providers. It is a package-level
// variable so tests can replace it; restore it with t.Cleanup.
var NewProvider func(cfg Config) (Provider, error) = defaultNewProvider

func defaultNewProvider(cfg Config) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: no API key configured for provider %q", cfg.Provider)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("llm: no model configured for provider %q", cfg.Provider)
	}
	switch strings.ToLower(cfg.Provider) {
	case "openai", "":
		return newOpenAIProvider(cfg), nil
	case "google":
		return newGoogleProvider(cfg), nil
	case "anthropic":
		return newAnthropicProvider(cfg), nil
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}

// callTool serves one tool call. Failures are reported to the model as text
// so it can recover; isError marks them for providers that carry the flag.
func callTool(ctx context.Context, reg *tools.Registry, name string, rawArgs []byte) (out string, isError bool) {
	if reg == nil {
		return fmt.Sprintf("error: unknown tool %q", name), true
	}
	out, err := reg.Call(ctx, name, rawArgs)
	if err != nil {
		slog.Warn("tool call failed", "tool", name, "error", err)
		return "error: " + err.Error(), true
	}
	slog.Debug("tool call served", "tool", name, "bytes", len(out))
	return out, false
}

// invokeTool is callTool for providers that hand over decoded arguments.
func invokeTool(ctx context.Context, reg *tools.Registry, name string, args map[string]any) (out string, isError bool) {
	if reg == nil {
		return fmt.Sprintf("error: unknown tool %q", name), true
	}
	payload, err := reg.Invoke(ctx, name, tools.Args(args))
	if err == nil {
		out, err = tools.Render(payload)
	}
	if err != nil {
		slog.Warn("tool call failed", "tool", name, "error", err)
		return "error: " + err.Error(), true
	}
	slog.Debug("tool call served", "tool", name, "bytes", len(out))
	return out, false
}
