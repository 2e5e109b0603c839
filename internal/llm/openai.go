package llm

import (
	"context"
	"fmt"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/kalambet/persona/internal/tools"
)

// openaiProvider implements Provider for any OpenAI-compatible chat
// completions endpoint, including Gemini's compatibility layer.
type openaiProvider struct {
	client openai.Client
	model  string
}

func newOpenAIProvider(cfg Config) Provider {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &openaiProvider{client: openai.NewClient(opts...), model: cfg.Model}
}

func openaiTools(list []tools.Tool) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, 0, len(list))
	for _, t := range list {
		out = append(out, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  openai.FunctionParameters(t.Schema()),
			},
		})
	}
	return out
}

func (p *openaiProvider) Run(ctx context.Context, req Request) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:     shared.ChatModel(p.model),
		MaxTokens: openai.Int(req.maxTokens()),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.Message),
		},
	}
	if list := req.toolList(); len(list) > 0 {
		params.Tools = openaiTools(list)
	}

	for range req.maxSteps() {
		resp, err := p.client.Chat.Completions.New(ctx, params)
		if err != nil {
			return "", fmt.Errorf("openai: chat.completions.new: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("openai: response contained no choices")
		}
		msg := resp.Choices[0].Message
		if len(msg.ToolCalls) == 0 {
			if msg.Content == "" {
				return "", fmt.Errorf("openai: response contained no content")
			}
			return msg.Content, nil
		}

		params.Messages = append(params.Messages, msg.ToParam())
		for _, tc := range msg.ToolCalls {
			out, _ := callTool(ctx, req.Tools, tc.Function.Name, []byte(tc.Function.Arguments))
			params.Messages = append(params.Messages, openai.ToolMessage(out, tc.ID))
		}
	}
	return "", ErrMaxSteps
}
