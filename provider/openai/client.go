// Package openai implements provider.Client on top of the OpenAI Chat
// Completions and Images APIs using github.com/openai/openai-go. The
// adapter shape (narrow client interfaces for testability, New/
// NewFromAPIKey constructors, translateResponse) mirrors the teacher's
// model/openai adapter, adapted from the legacy go-openai SDK shape to
// openai-go's typed params/unions.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/flowcraft/execore/provider"
)

// ChatClient captures the chat-completions subset of the SDK used here.
type ChatClient interface {
	New(ctx context.Context, params sdk.ChatCompletionNewParams, opts ...option.RequestOption) (*sdk.ChatCompletion, error)
	NewStreaming(ctx context.Context, params sdk.ChatCompletionNewParams, opts ...option.RequestOption) *chatStream
}

// ImagesClient captures the image-generation subset of the SDK used here.
type ImagesClient interface {
	Generate(ctx context.Context, params sdk.ImageGenerateParams, opts ...option.RequestOption) (*sdk.ImagesResponse, error)
}

// Options configures the adapter.
type Options struct {
	DefaultModel      string
	DefaultImageModel string
	MaxTokens         int
	Temperature       float64
}

// Client implements provider.Client on OpenAI Chat Completions + Images.
type Client struct {
	chat       ChatClient
	images     ImagesClient
	model      string
	imageModel string
	maxTok     int
	temp       float64
}

var _ provider.Client = (*Client)(nil)

// New builds a client from explicit sub-clients (tests) or use
// NewFromAPIKey for production wiring.
func New(chat ChatClient, images ImagesClient, opts Options) (*Client, error) {
	if chat == nil {
		return nil, errors.New("openai: chat client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("openai: default model is required")
	}
	imageModel := opts.DefaultImageModel
	if imageModel == "" {
		imageModel = "dall-e-3"
	}
	return &Client{
		chat: chat, images: images,
		model: opts.DefaultModel, imageModel: imageModel,
		maxTok: opts.MaxTokens, temp: opts.Temperature,
	}, nil
}

// NewFromAPIKey builds a client against the real OpenAI API.
func NewFromAPIKey(apiKey, defaultModel string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	c := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&sdkChatAdapter{svc: &c.Chat.Completions}, &sdkImagesAdapter{svc: &c.Images}, Options{DefaultModel: defaultModel})
}

func (c *Client) Name() string { return "openai" }

func (c *Client) DefaultModel() string      { return c.model }
func (c *Client) DefaultImageModel() string { return c.imageModel }

func (c *Client) Complete(ctx context.Context, req provider.Request) (provider.Response, error) {
	params, err := c.buildParams(req)
	if err != nil {
		return provider.Response{}, err
	}
	resp, err := c.chat.New(ctx, *params)
	if err != nil {
		if isRateLimited(err) {
			return provider.Response{}, fmt.Errorf("%w: %w", provider.ErrRateLimited, err)
		}
		return provider.Response{}, fmt.Errorf("openai: chat completion: %w", err)
	}
	return translateResponse(resp), nil
}

func (c *Client) Stream(ctx context.Context, req provider.Request) (provider.Streamer, error) {
	params, err := c.buildParams(req)
	if err != nil {
		return nil, err
	}
	params.StreamOptions = sdk.ChatCompletionStreamOptionsParam{IncludeUsage: sdk.Bool(true)}
	s := c.chat.NewStreaming(ctx, *params)
	return newStreamer(s), nil
}

func (c *Client) GenerateImage(ctx context.Context, req provider.ImageRequest) ([]provider.ImageResult, error) {
	if c.images == nil {
		return nil, provider.ErrImageUnsupported
	}
	n := req.Count
	if n <= 0 {
		n = 1
	}
	params := sdk.ImageGenerateParams{
		Prompt: req.Prompt,
		Model:  sdk.ImageModel(c.imageModel),
		N:      sdk.Int(int64(n)),
	}
	if req.Size != "" {
		params.Size = sdk.ImageGenerateParamsSize(req.Size)
	}
	if req.Quality != "" {
		params.Quality = sdk.ImageGenerateParamsQuality(req.Quality)
	}
	if req.Style != "" {
		params.Style = sdk.ImageGenerateParamsStyle(req.Style)
	}
	resp, err := c.images.Generate(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai: image generation: %w", err)
	}
	out := make([]provider.ImageResult, 0, len(resp.Data))
	for _, d := range resp.Data {
		out = append(out, provider.ImageResult{Format: "png", Base64: d.B64JSON, URL: d.URL})
	}
	return out, nil
}

func (c *Client) ModelInfo(name string) (provider.ModelInfo, bool) {
	if name == "" {
		return provider.ModelInfo{}, false
	}
	return provider.ModelInfo{
		Name:        name,
		IsImageOnly: strings.HasPrefix(name, "dall-e"),
		IsChat:      !strings.HasPrefix(name, "dall-e"),
	}, true
}

// EstimateTokens uses the common ~4-characters-per-token heuristic for
// GPT-family tokenizers when no real tokenizer is available offline.
func (c *Client) EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

const (
	openaiInputPerMillion  = 2.50
	openaiOutputPerMillion = 10.00
)

func (c *Client) CalculateCost(usage provider.TokenUsage, _ string) float64 {
	in := float64(usage.PromptTokens) / 1_000_000 * openaiInputPerMillion
	out := float64(usage.CompletionTokens) / 1_000_000 * openaiOutputPerMillion
	return in + out
}

func (c *Client) buildParams(req provider.Request) (*sdk.ChatCompletionNewParams, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("openai: at least one message is required")
	}
	modelID := req.Model
	if modelID == "" {
		modelID = c.model
	}
	messages, err := encodeMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	params := sdk.ChatCompletionNewParams{
		Model:    sdk.ChatModel(modelID),
		Messages: messages,
	}
	if mt := req.MaxTokens; mt > 0 {
		params.MaxTokens = sdk.Int(int64(mt))
	} else if c.maxTok > 0 {
		params.MaxTokens = sdk.Int(int64(c.maxTok))
	}
	if t := req.Temperature; t > 0 {
		params.Temperature = sdk.Float(t)
	} else if c.temp > 0 {
		params.Temperature = sdk.Float(c.temp)
	}
	if len(req.Tools) > 0 {
		tools, err := encodeTools(req.Tools)
		if err != nil {
			return nil, err
		}
		params.Tools = tools
	}
	switch req.ToolChoice {
	case provider.ToolChoiceNone:
		params.ToolChoice = sdk.ChatCompletionToolChoiceOptionUnionParam{OfAuto: sdk.String("none")}
	case provider.ToolChoiceAny:
		params.ToolChoice = sdk.ChatCompletionToolChoiceOptionUnionParam{OfAuto: sdk.String("required")}
	}
	return &params, nil
}

func encodeMessages(msgs []provider.Message) ([]sdk.ChatCompletionMessageParamUnion, error) {
	out := make([]sdk.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		if toolResults, ok := allToolResults(m); ok {
			out = append(out, encodeToolResults(toolResults)...)
			continue
		}
		switch m.Role {
		case provider.RoleSystem:
			out = append(out, sdk.SystemMessage(textOf(m)))
		case provider.RoleUser:
			parts, err := encodeUserParts(m.Parts)
			if err != nil {
				return nil, err
			}
			out = append(out, sdk.UserMessage(parts))
		case provider.RoleAssistant:
			out = append(out, encodeAssistantMessage(m))
		}
	}
	if len(out) == 0 {
		return nil, errors.New("openai: no encodable messages")
	}
	return out, nil
}

// allToolResults reports whether m is entirely made of ToolResultParts
// (the shape the AI Service Manager's tool loop appends after dispatching
// a round of calls); OpenAI has no single "tool results" message, so each
// part becomes its own role=tool message (§4.5.2).
func allToolResults(m provider.Message) ([]provider.ToolResultPart, bool) {
	if len(m.Parts) == 0 {
		return nil, false
	}
	out := make([]provider.ToolResultPart, 0, len(m.Parts))
	for _, p := range m.Parts {
		tr, ok := p.(provider.ToolResultPart)
		if !ok {
			return nil, false
		}
		out = append(out, tr)
	}
	return out, true
}

func encodeToolResults(results []provider.ToolResultPart) []sdk.ChatCompletionMessageParamUnion {
	out := make([]sdk.ChatCompletionMessageParamUnion, 0, len(results))
	for _, r := range results {
		out = append(out, sdk.ToolMessage(toolResultText(r), r.ToolUseID))
	}
	return out
}

func toolResultText(r provider.ToolResultPart) string {
	if s, ok := r.Content.(string); ok {
		return s
	}
	b, err := json.Marshal(r.Content)
	if err != nil {
		return fmt.Sprintf("%v", r.Content)
	}
	return string(b)
}

func textOf(m provider.Message) string {
	var b strings.Builder
	for _, p := range m.Parts {
		if t, ok := p.(provider.TextPart); ok {
			b.WriteString(t.Text)
		}
	}
	return b.String()
}

func encodeUserParts(parts []provider.Part) ([]sdk.ChatCompletionContentPartUnionParam, error) {
	out := make([]sdk.ChatCompletionContentPartUnionParam, 0, len(parts))
	for _, part := range parts {
		switch v := part.(type) {
		case provider.TextPart:
			if v.Text != "" {
				out = append(out, sdk.TextContentPart(v.Text))
			}
		case provider.ImagePart:
			dataURL := fmt.Sprintf("data:image/%s;base64,%s", normalizeMime(v.Format), encodeBase64(v.Bytes))
			out = append(out, sdk.ImageContentPart(sdk.ChatCompletionContentPartImageImageURLParam{URL: dataURL}))
		case provider.ToolResultPart:
			// A lone tool result mixed into a user message (rather than a
			// message made up entirely of them) has nowhere to go in the
			// OpenAI wire format; encodeMessages handles the normal case.
		}
	}
	return out, nil
}

func encodeAssistantMessage(m provider.Message) sdk.ChatCompletionMessageParamUnion {
	msg := sdk.ChatCompletionAssistantMessageParam{Content: sdk.ChatCompletionAssistantMessageParamContentUnion{OfString: sdk.String(textOf(m))}}
	for _, p := range m.Parts {
		if tu, ok := p.(provider.ToolUsePart); ok {
			args, _ := json.Marshal(tu.Input)
			msg.ToolCalls = append(msg.ToolCalls, sdk.ChatCompletionMessageToolCallParam{
				ID: tu.ID,
				Function: sdk.ChatCompletionMessageToolCallFunctionParam{
					Name:      tu.Name,
					Arguments: string(args),
				},
			})
		}
	}
	return sdk.ChatCompletionMessageParamUnion{OfAssistant: &msg}
}

func encodeTools(defs []provider.ToolDefinition) ([]sdk.ChatCompletionToolParam, error) {
	out := make([]sdk.ChatCompletionToolParam, 0, len(defs))
	for _, def := range defs {
		var schema map[string]any
		raw, err := json.Marshal(def.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("openai: tool %q schema: %w", def.Name, err)
		}
		if err := json.Unmarshal(raw, &schema); err != nil {
			return nil, fmt.Errorf("openai: tool %q schema: %w", def.Name, err)
		}
		out = append(out, sdk.ChatCompletionToolParam{
			Function: sdk.FunctionDefinitionParam{
				Name:        def.Name,
				Description: sdk.String(def.Description),
				Parameters:  schema,
			},
		})
	}
	return out, nil
}

func translateResponse(resp *sdk.ChatCompletion) provider.Response {
	out := provider.Response{
		Usage: provider.TokenUsage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}
	if len(resp.Choices) == 0 {
		return out
	}
	choice := resp.Choices[0]
	out.Text = choice.Message.Content
	out.StopReason = string(choice.FinishReason)
	for _, call := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, provider.ToolCall{
			ID: call.ID, Name: call.Function.Name, Payload: []byte(call.Function.Arguments),
		})
	}
	return out
}

func isRateLimited(err error) bool {
	return err != nil && strings.Contains(err.Error(), "429")
}

func normalizeMime(format string) string {
	if format == "jpg" {
		return "jpeg"
	}
	return format
}
