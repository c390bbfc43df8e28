package generation

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"google.golang.org/genai"
)

// Gemini talks to the Gemini API through the genai SDK.
type Gemini struct {
	client     *genai.Client
	model      string
	imageModel string
}

func NewGemini(ctx context.Context, apiKey, model, imageModel string) (*Gemini, error) {
	if apiKey == "" {
		return nil, ErrNotConfigured
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Gemini{client: client, model: model, imageModel: imageModel}, nil
}

func (g *Gemini) Name() string { return "gemini" }

func (g *Gemini) Complete(ctx context.Context, req Request) (Result, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), geminiConfig(req))
	if err != nil {
		return Result{}, fmt.Errorf("gemini generate: %w", err)
	}
	frag := geminiFragment(resp)
	return Result{Text: frag.Text, Calls: frag.Calls}, nil
}

func (g *Gemini) Stream(ctx context.Context, req Request) iter.Seq2[Fragment, error] {
	return func(yield func(Fragment, error) bool) {
		for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, genai.Text(req.Prompt), geminiConfig(req)) {
			if err != nil {
				yield(Fragment{}, fmt.Errorf("gemini stream: %w", err))
				return
			}
			frag := geminiFragment(resp)
			if frag.Empty() {
				continue
			}
			if !yield(frag, nil) {
				return
			}
		}
	}
}

func (g *Gemini) GenerateImage(ctx context.Context, prompt string) (*Media, error) {
	cfg := &genai.GenerateContentConfig{ResponseModalities: []string{"TEXT", "IMAGE"}}
	resp, err := g.client.Models.GenerateContent(ctx, g.imageModel, genai.Text(prompt), cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini image: %w", err)
	}
	return geminiMedia(resp), nil
}

func geminiConfig(req Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if strings.TrimSpace(req.System) != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if len(req.Declarations) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Declarations))
		for _, d := range req.Declarations {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:                 d.Name,
				Description:          d.Description,
				ParametersJsonSchema: d.Parameters,
			})
		}
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}
	return cfg
}

// geminiFragment flattens the first candidate's parts into text and calls,
// skipping thought parts.
func geminiFragment(resp *genai.GenerateContentResponse) Fragment {
	var frag Fragment
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return frag
	}
	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		text.WriteString(part.Text)
		if fc := part.FunctionCall; fc != nil {
			args := fc.Args
			if args == nil {
				args = map[string]any{}
			}
			frag.Calls = append(frag.Calls, Call{ID: fc.ID, Name: fc.Name, Args: args})
		}
	}
	frag.Text = text.String()
	return frag
}

func geminiMedia(resp *genai.GenerateContentResponse) *Media {
	if resp == nil {
		return nil
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
				mime := part.InlineData.MIMEType
				if mime == "" {
					mime = "image/png"
				}
				return &Media{MIMEType: mime, Data: part.InlineData.Data}
			}
		}
	}
	return nil
}
