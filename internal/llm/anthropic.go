package llm

import (
	"context"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/kalambet/persona/internal/tools"
)

// anthropicProvider implements Provider using the Anthropic SDK.
// anthropic.Client is a value type; the SDK's NewClient returns it by value.
type anthropicProvider struct {
	client anthropic.Client
	model  string
}

func newAnthropicProvider(cfg Config) Provider {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &anthropicProvider{client: anthropic.NewClient(opts...), model: cfg.Model}
}

func anthropicTools(list []tools.Tool) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(list))
	for _, t := range list {
		schema := t.Schema()
		required, _ := schema["required"].([]string)
		tp := anthropic.ToolParam{
			Name:        t.Name,
			Description: anthropic.String(t.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: schema["properties"],
				Required:   required,
			},
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: &tp})
	}
	return out
}

func (p *anthropicProvider) Run(ctx context.Context, req Request) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: req.maxTokens(),
		System:    []anthropic.TextBlockParam{{Text: req.System}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Message)),
		},
	}
	if list := req.toolList(); len(list) > 0 {
		params.Tools = anthropicTools(list)
	}

	for range req.maxSteps() {
		msg, err := p.client.Messages.New(ctx, params)
		if err != nil {
			return "", fmt.Errorf("anthropic: messages.new: %w", err)
		}

		var (
			text    []string
			results []anthropic.ContentBlockParamUnion
		)
		for _, block := range msg.Content {
			switch v := block.AsAny().(type) {
			case anthropic.TextBlock:
				text = append(text, v.Text)
			case anthropic.ToolUseBlock:
				out, isErr := callTool(ctx, req.Tools, v.Name, []byte(v.Input))
				results = append(results, anthropic.NewToolResultBlock(v.ID, out, isErr))
			}
		}

		if len(results) == 0 {
			if len(text) == 0 {
				return "", fmt.Errorf("anthropic: response contained no text content blocks")
			}
			return strings.Join(text, ""), nil
		}

		params.Messages = append(params.Messages, msg.ToParam(), anthropic.NewUserMessage(results...))
	}
	return "", ErrMaxSteps
}
