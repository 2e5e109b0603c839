package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/persona/internal/profile"
	"github.com/kalambet/persona/internal/resolver"
	"github.com/kalambet/persona/internal/tools"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Tools    *tools.Registry
	Resolver *resolver.Resolver
	Source   profile.Source
	Version  string
}

// NewMCPServer creates an MCP server exposing every registered tool plus
// the profile document and keyword table as resources.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"persona",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions(fmt.Sprintf("persona answers questions about %s from a remote profile document.", deps.Resolver.Subject())),
		server.WithRecovery(),
	)

	// Tools
	for _, t := range deps.Tools.List() {
		s.AddTool(mcpToolFor(t), mcpToolHandler(deps.Tools, t.Name))
	}

	// Resources
	s.AddResource(
		mcp.NewResource(
			"profile://document",
			"Profile Document",
			mcp.WithResourceDescription("Freshly fetched profile document as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceDocument(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"profile://keywords",
			"Keyword Table",
			mcp.WithResourceDescription("Ordered keyword phrases and the profile fields they select"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceKeywords(deps),
	)

	return s
}

func mcpToolFor(t tools.Tool) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(t.Description)}
	for _, p := range t.Params {
		propOpts := []mcp.PropertyOption{mcp.Description(p.Description)}
		if p.Required {
			propOpts = append(propOpts, mcp.Required())
		}
		opts = append(opts, mcp.WithString(p.Name, propOpts...))
	}
	return mcp.NewTool(t.Name, opts...)
}

func mcpToolHandler(reg *tools.Registry, name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		payload, err := reg.Invoke(ctx, name, tools.Args(req.GetArguments()))
		if err != nil {
			return mcpError(err.Error()), nil
		}
		text, err := tools.Render(payload)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to render result: %v", err)), nil
		}
		return mcpText(text), nil
	}
}

func mcpResourceDocument(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		doc, err := deps.Source.Fetch(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch profile: %w", err)
		}

		b, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal profile: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpResourceKeywords(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		b, err := json.Marshal(deps.Resolver.Keywords().Entries())
		if err != nil {
			return nil, fmt.Errorf("failed to marshal keywords: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
