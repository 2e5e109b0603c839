package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/kalambet/persona/internal/agent"
	"github.com/kalambet/persona/internal/config"
	"github.com/kalambet/persona/internal/llm"
	"github.com/kalambet/persona/internal/profile"
	"github.com/kalambet/persona/internal/resolver"
	"github.com/kalambet/persona/internal/tools"
)

// components are the pieces every entry point shares.
type components struct {
	cfg      config.Config
	logger   *slog.Logger
	source   profile.Source
	resolver *resolver.Resolver
	tools    *tools.Registry
}

func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func buildComponents(cfg config.Config) (*components, error) {
	logger := newLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)

	kw, err := resolver.LoadKeywords(cfg.Profile.KeywordsFile)
	if err != nil {
		return nil, err
	}

	res := resolver.New(kw,
		resolver.WithSubject(cfg.Profile.Subject),
		resolver.WithLogger(logger),
	)
	src := profile.NewClient(cfg.Profile.URL, cfg.FetchTimeout())

	reg := tools.NewRegistry()
	if err := reg.Register(tools.ProfileTool(res, src)); err != nil {
		return nil, fmt.Errorf("registering profile tool: %w", err)
	}

	return &components{
		cfg:      cfg,
		logger:   logger,
		source:   src,
		resolver: res,
		tools:    reg,
	}, nil
}

// newAgent builds the model-backed agent. It fails when no API key is set.
func (c *components) newAgent() (*agent.Agent, error) {
	if err := c.cfg.RequireLLM(); err != nil {
		return nil, err
	}
	provider, err := llm.NewProvider(llm.Config{
		Provider: c.cfg.LLM.Provider,
		Model:    c.cfg.LLM.Model,
		APIKey:   c.cfg.LLM.APIKey,
		BaseURL:  c.cfg.LLM.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating model provider: %w", err)
	}
	a, err := agent.New(c.resolver.Subject(), provider, c.tools)
	if err != nil {
		return nil, err
	}
	a.MaxSteps = c.cfg.LLM.MaxSteps
	return a, nil
}
