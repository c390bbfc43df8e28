package generation

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"iter"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAI talks to the chat completions and image APIs.
type OpenAI struct {
	client     openai.Client
	model      string
	imageModel string
}

func NewOpenAI(apiKey, model, imageModel string, opts ...option.RequestOption) (*OpenAI, error) {
	if apiKey == "" {
		return nil, ErrNotConfigured
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAI{client: openai.NewClient(opts...), model: model, imageModel: imageModel}, nil
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) params(req Request) openai.ChatCompletionNewParams {
	var msgs []openai.ChatCompletionMessageParamUnion
	if strings.TrimSpace(req.System) != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	msgs = append(msgs, openai.UserMessage(req.Prompt))
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(o.model),
		Messages: msgs,
	}
	for _, d := range req.Declarations {
		params.Tools = append(params.Tools, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        d.Name,
				Description: openai.String(d.Description),
				Parameters:  openai.FunctionParameters(d.Parameters),
			},
		})
	}
	return params
}

func (o *OpenAI) Complete(ctx context.Context, req Request) (Result, error) {
	completion, err := o.client.Chat.Completions.New(ctx, o.params(req))
	if err != nil {
		return Result{}, fmt.Errorf("openai completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return Result{}, nil
	}
	msg := completion.Choices[0].Message
	res := Result{Text: msg.Content}
	for _, tc := range msg.ToolCalls {
		res.Calls = append(res.Calls, decodeOpenAICall(tc.ID, tc.Function.Name, tc.Function.Arguments))
	}
	return res, nil
}

func (o *OpenAI) Stream(ctx context.Context, req Request) iter.Seq2[Fragment, error] {
	return func(yield func(Fragment, error) bool) {
		stream := o.client.Chat.Completions.NewStreaming(ctx, o.params(req))
		defer stream.Close()
		acc := openai.ChatCompletionAccumulator{}
		for stream.Next() {
			chunk := stream.Current()
			acc.AddChunk(chunk)

			var frag Fragment
			if len(chunk.Choices) > 0 {
				frag.Text = chunk.Choices[0].Delta.Content
			}
			if tool, ok := acc.JustFinishedToolCall(); ok {
				frag.Calls = append(frag.Calls, decodeOpenAICall(tool.ID, tool.Name, tool.Arguments))
			}
			if frag.Empty() {
				continue
			}
			if !yield(frag, nil) {
				return
			}
		}
		if err := stream.Err(); err != nil {
			yield(Fragment{}, fmt.Errorf("openai stream: %w", err))
		}
	}
}

func (o *OpenAI) GenerateImage(ctx context.Context, prompt string) (*Media, error) {
	params := openai.ImageGenerateParams{
		Prompt: prompt,
		Model:  openai.ImageModel(o.imageModel),
	}
	if strings.HasPrefix(o.imageModel, "dall-e") {
		params.ResponseFormat = openai.ImageGenerateParamsResponseFormatB64JSON
	}
	resp, err := o.client.Images.Generate(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai image: %w", err)
	}
	for _, img := range resp.Data {
		if img.B64JSON == "" {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(img.B64JSON)
		if err != nil {
			return nil, fmt.Errorf("decode image payload: %w", err)
		}
		return &Media{MIMEType: "image/png", Data: data}, nil
	}
	return nil, nil
}

// decodeOpenAICall keeps malformed argument JSON on the call so the
// executor reports it instead of the stream failing.
func decodeOpenAICall(id, name, arguments string) Call {
	call := Call{ID: id, Name: name, Args: map[string]any{}}
	if strings.TrimSpace(arguments) != "" {
		if err := json.Unmarshal([]byte(arguments), &call.Args); err != nil {
			call.Args = nil
			call.ArgsErr = fmt.Errorf("decode %s arguments: %w", name, err)
		}
	}
	return call
}
