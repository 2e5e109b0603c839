// Package agent answers conversational turns about a single person by
// delegating to a language model that can call profile tools.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kalambet/persona/internal/llm"
	"github.com/kalambet/persona/internal/tools"
)

// ErrEmptyMessage is returned by Reply for blank input.
var ErrEmptyMessage = errors.New("agent: empty message")

// Agent is a named assistant bound to a provider and a tool registry.
type Agent struct {
	Name         string
	Instructions string
	Provider     llm.Provider
	Tools        *tools.Registry
	MaxSteps     int
}

// New creates an agent for subject with rendered default instructions.
func New(subject string, provider llm.Provider, reg *tools.Registry) (*Agent, error) {
	instr, err := RenderInstructions(subject)
	if err != nil {
		return nil, err
	}
	return &Agent{
		Name:         DisplayName(subject),
		Instructions: instr,
		Provider:     provider,
		Tools:        reg,
	}, nil
}

// Reply produces the assistant's answer to a single user message.
func (a *Agent) Reply(ctx context.Context, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", ErrEmptyMessage
	}
	if a.Provider == nil {
		return "", errors.New("agent: no provider configured")
	}

	start := time.Now()
	reply, err := a.Provider.Run(ctx, llm.Request{
		System:   a.Instructions,
		Message:  message,
		Tools:    a.Tools,
		MaxSteps: a.MaxSteps,
	})
	if err != nil {
		return "", fmt.Errorf("agent %s: %w", a.Name, err)
	}
	slog.Debug("agent replied", "agent", a.Name, "duration_ms", time.Since(start).Milliseconds())
	return reply, nil
}
