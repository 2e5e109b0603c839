package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	googleoption "google.golang.org/api/option"

	"github.com/kalambet/persona/internal/tools"
)

// googleProvider implements Provider using the Google Generative AI SDK.
// A new genai.Client is created per Run so the caller's context governs the
// connection and the client is always closed after use.
type googleProvider struct {
	apiKey string
	model  string
}

func newGoogleProvider(cfg Config) Provider {
	return &googleProvider{apiKey: cfg.APIKey, model: cfg.Model}
}

func googleTools(list []tools.Tool) []*genai.Tool {
	if len(list) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(list))
	for _, t := range list {
		schema := &genai.Schema{
			Type:       genai.TypeObject,
			Properties: make(map[string]*genai.Schema, len(t.Params)),
		}
		for _, p := range t.Params {
			schema.Properties[p.Name] = &genai.Schema{Type: genai.TypeString, Description: p.Description}
			if p.Required {
				schema.Required = append(schema.Required, p.Name)
			}
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  schema,
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

func (p *googleProvider) Run(ctx context.Context, req Request) (string, error) {
	client, err := genai.NewClient(ctx, googleoption.WithAPIKey(p.apiKey))
	if err != nil {
		return "", fmt.Errorf("google: genai client: %w", err)
	}
	defer client.Close()

	m := client.GenerativeModel(p.model)
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	maxOut := int32(req.maxTokens())
	m.MaxOutputTokens = &maxOut
	m.Tools = googleTools(req.toolList())

	return googleLoop(ctx, m.StartChat(), req)
}

// googleChat is the part of *genai.ChatSession the tool loop drives.
type googleChat interface {
	SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

func googleLoop(ctx context.Context, cs googleChat, req Request) (string, error) {
	parts := []genai.Part{genai.Text(req.Message)}
	for range req.maxSteps() {
		resp, err := cs.SendMessage(ctx, parts...)
		if err != nil {
			return "", fmt.Errorf("google: send message: %w", err)
		}

		text, calls := googleFirstCandidate(resp)
		if len(calls) == 0 {
			if len(text) == 0 {
				return "", fmt.Errorf("google: response contained no text content")
			}
			return strings.Join(text, ""), nil
		}

		parts = make([]genai.Part, 0, len(calls))
		for _, fc := range calls {
			out, isErr := invokeTool(ctx, req.Tools, fc.Name, fc.Args)
			key := "result"
			if isErr {
				key = "error"
			}
			parts = append(parts, genai.FunctionResponse{
				Name:     fc.Name,
				Response: map[string]any{key: out},
			})
		}
	}
	return "", ErrMaxSteps
}

// googleFirstCandidate splits the first candidate into text and function
// calls. Other candidates are alternatives, not continuations.
func googleFirstCandidate(resp *genai.GenerateContentResponse) ([]string, []genai.FunctionCall) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, nil
	}
	var (
		text  []string
		calls []genai.FunctionCall
	)
	for _, part := range resp.Candidates[0].Content.Parts {
		switch v := part.(type) {
		case genai.Text:
			text = append(text, string(v))
		case genai.FunctionCall:
			calls = append(calls, v)
		}
	}
	return text, calls
}
