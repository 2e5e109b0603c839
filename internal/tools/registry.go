// Package tools is the capability boundary between language-model runtimes
// and the code that serves their tool calls.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrUnknownTool is returned by Call for names that were never registered.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrMissingArgument is returned when a required parameter is absent.
	ErrMissingArgument = errors.New("missing required argument")
)

// Param describes a string parameter of a tool.
type Param struct {
	Name        string
	Description string
	Required    bool
}

// Args holds decoded tool-call arguments.
type Args map[string]any

// String returns the named argument as a string. Non-string values are
// rendered with fmt.
func (a Args) String(name string) (string, bool) {
	v, ok := a[name]
	if !ok || v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return fmt.Sprint(v), true
}

// Handler serves a tool call. The returned payload is rendered for the
// model by Render.
type Handler func(ctx context.Context, args Args) (any, error)

// Tool is a named operation a model may invoke.
type Tool struct {
	Name        string
	Description string
	Params      []Param
	Handler     Handler
}

// Schema returns the JSON schema of the tool's parameters.
func (t Tool) Schema() map[string]any {
	props := make(map[string]any, len(t.Params))
	required := []string{}
	for _, p := range t.Params {
		props[p.Name] = map[string]any{
			"type":        "string",
			"description": p.Description,
		}
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// Registry keeps tools in registration order.
type Registry struct {
	mu    sync.RWMutex
	tools []Tool
	index map[string]int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Register adds a tool. Names must be non-empty and unique.
func (r *Registry) Register(t Tool) error {
	if t.Name == "" {
		return errors.New("tool name is empty")
	}
	if t.Handler == nil {
		return fmt.Errorf("tool %q has no handler", t.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.index[t.Name]; ok {
		return fmt.Errorf("tool %q already registered", t.Name)
	}
	r.index[t.Name] = len(r.tools)
	r.tools = append(r.tools, t)
	return nil
}

// Get returns the named tool.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.index[name]
	if !ok {
		return Tool{}, false
	}
	return r.tools[i], true
}

// List returns all tools in registration order.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, len(r.tools))
	copy(out, r.tools)
	return out
}

// Invoke runs the named tool with decoded arguments and returns its raw payload.
func (r *Registry) Invoke(ctx context.Context, name string, args Args) (any, error) {
	t, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	for _, p := range t.Params {
		if !p.Required {
			continue
		}
		if _, ok := args.String(p.Name); !ok {
			return nil, fmt.Errorf("%s: %w %q", name, ErrMissingArgument, p.Name)
		}
	}
	return t.Handler(ctx, args)
}

// Call decodes rawArgs as a JSON object, runs the named tool, and renders
// the payload as text. Empty rawArgs is treated as no arguments.
func (r *Registry) Call(ctx context.Context, name string, rawArgs []byte) (string, error) {
	args := Args{}
	if len(rawArgs) > 0 {
		if err := json.Unmarshal(rawArgs, &args); err != nil {
			return "", fmt.Errorf("decoding %s arguments: %w", name, err)
		}
	}
	payload, err := r.Invoke(ctx, name, args)
	if err != nil {
		return "", err
	}
	return Render(payload)
}

// Render turns a tool payload into text for the model: strings verbatim,
// everything else as JSON.
func Render(payload any) (string, error) {
	if s, ok := payload.(string); ok {
		return s, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encoding tool result: %w", err)
	}
	return string(b), nil
}
