// Package anthropic implements provider.Client on top of the Anthropic
// Claude Messages API using github.com/anthropics/anthropic-sdk-go. The
// adapter shape (a narrow MessagesClient interface so tests can supply a
// fake, New/NewFromAPIKey constructors, prepareRequest/translateResponse
// split) is modeled on the teacher's model/anthropic adapter.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/flowcraft/execore/provider"
)

// MessagesClient captures the subset of the Anthropic SDK used here so
// tests can substitute a fake.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
	NewStreaming(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) *streamAdapter
}

// Options configures the adapter.
type Options struct {
	DefaultModel      string
	DefaultImageModel string // Anthropic has no native image generation; New ignores this field and the image model stays empty
	MaxTokens         int
	Temperature       float64
}

// Client implements provider.Client on Anthropic Messages.
type Client struct {
	msg    MessagesClient
	model  string
	maxTok int
	temp   float64
}

var _ provider.Client = (*Client)(nil)

// New builds a client from an explicit MessagesClient (tests) or use
// NewFromAPIKey for production wiring.
func New(msg MessagesClient, opts Options) (*Client, error) {
	if msg == nil {
		return nil, errors.New("anthropic: client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("anthropic: default model is required")
	}
	maxTok := opts.MaxTokens
	if maxTok <= 0 {
		maxTok = 4096
	}
	return &Client{msg: msg, model: opts.DefaultModel, maxTok: maxTok, temp: opts.Temperature}, nil
}

// NewFromAPIKey builds a client against the real Anthropic API.
func NewFromAPIKey(apiKey, defaultModel string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic: api key is required")
	}
	ac := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&sdkMessagesAdapter{svc: &ac.Messages}, Options{DefaultModel: defaultModel})
}

func (c *Client) Name() string { return "anthropic" }

func (c *Client) DefaultModel() string      { return c.model }
func (c *Client) DefaultImageModel() string { return "" }

func (c *Client) Complete(ctx context.Context, req provider.Request) (provider.Response, error) {
	params, err := c.buildParams(req)
	if err != nil {
		return provider.Response{}, err
	}
	msg, err := c.msg.New(ctx, *params)
	if err != nil {
		if isRateLimited(err) {
			return provider.Response{}, fmt.Errorf("%w: %w", provider.ErrRateLimited, err)
		}
		return provider.Response{}, fmt.Errorf("anthropic: messages.new: %w", err)
	}
	return translateResponse(msg), nil
}

func (c *Client) Stream(ctx context.Context, req provider.Request) (provider.Streamer, error) {
	params, err := c.buildParams(req)
	if err != nil {
		return nil, err
	}
	s := c.msg.NewStreaming(ctx, *params)
	if s.Err() != nil {
		if isRateLimited(s.Err()) {
			return nil, fmt.Errorf("%w: %w", provider.ErrRateLimited, s.Err())
		}
		return nil, fmt.Errorf("anthropic: messages.new stream: %w", s.Err())
	}
	return newStreamer(s), nil
}

func (c *Client) GenerateImage(context.Context, provider.ImageRequest) ([]provider.ImageResult, error) {
	return nil, provider.ErrImageUnsupported
}

func (c *Client) ModelInfo(name string) (provider.ModelInfo, bool) {
	if name == "" {
		return provider.ModelInfo{}, false
	}
	return provider.ModelInfo{Name: name, IsChat: true}, true
}

// EstimateTokens approximates token count at roughly 4 characters per
// token, the common order-of-magnitude heuristic for Claude models when
// no tokenizer is available offline.
func (c *Client) EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

// Anthropic per-million-token pricing varies by model tier; callers
// needing exact billing should consult account-level pricing. This
// default applies the Sonnet-class pricing used by DefaultModel to every
// model; the model argument is not consulted.
const (
	anthropicInputPerMillion  = 3.00
	anthropicOutputPerMillion = 15.00
)

func (c *Client) CalculateCost(usage provider.TokenUsage, _ string) float64 {
	in := float64(usage.PromptTokens) / 1_000_000 * anthropicInputPerMillion
	out := float64(usage.CompletionTokens) / 1_000_000 * anthropicOutputPerMillion
	return in + out
}

func (c *Client) buildParams(req provider.Request) (*sdk.MessageNewParams, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("anthropic: at least one message is required")
	}
	modelID := req.Model
	if modelID == "" {
		modelID = c.model
	}
	msgs, system, err := encodeMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTok
	}
	params := sdk.MessageNewParams{
		Model:     sdk.Model(modelID),
		MaxTokens: int64(maxTokens),
		Messages:  msgs,
	}
	if len(system) > 0 {
		params.System = system
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
		none := sdk.NewToolChoiceNoneParam()
		params.ToolChoice = sdk.ToolChoiceUnionParam{OfNone: &none}
	case provider.ToolChoiceAny:
		params.ToolChoice = sdk.ToolChoiceUnionParam{OfAny: &sdk.ToolChoiceAnyParam{}}
	}
	return &params, nil
}

func encodeMessages(msgs []provider.Message) ([]sdk.MessageParam, []sdk.TextBlockParam, error) {
	out := make([]sdk.MessageParam, 0, len(msgs))
	var system []sdk.TextBlockParam
	for _, m := range msgs {
		if m.Role == provider.RoleSystem {
			for _, p := range m.Parts {
				if t, ok := p.(provider.TextPart); ok && t.Text != "" {
					system = append(system, sdk.TextBlockParam{Text: t.Text})
				}
			}
			continue
		}
		blocks := make([]sdk.ContentBlockParamUnion, 0, len(m.Parts))
		for _, part := range m.Parts {
			switch v := part.(type) {
			case provider.TextPart:
				if v.Text != "" {
					blocks = append(blocks, sdk.NewTextBlock(v.Text))
				}
			case provider.ImagePart:
				blocks = append(blocks, sdk.NewImageBlockBase64("image/"+normalizeMime(v.Format), encodeBase64(v.Bytes)))
			case provider.ToolUsePart:
				blocks = append(blocks, sdk.NewToolUseBlock(v.ID, v.Input, v.Name))
			case provider.ToolResultPart:
				blocks = append(blocks, encodeToolResult(v))
			}
		}
		if len(blocks) == 0 {
			continue
		}
		switch m.Role {
		case provider.RoleUser:
			out = append(out, sdk.NewUserMessage(blocks...))
		case provider.RoleAssistant:
			out = append(out, sdk.NewAssistantMessage(blocks...))
		}
	}
	if len(out) == 0 {
		return nil, nil, errors.New("anthropic: at least one user/assistant message is required")
	}
	return out, system, nil
}

func encodeToolResult(v provider.ToolResultPart) sdk.ContentBlockParamUnion {
	var content string
	switch c := v.Content.(type) {
	case string:
		content = c
	case []byte:
		content = string(c)
	default:
		if data, err := json.Marshal(c); err == nil {
			content = string(data)
		}
	}
	return sdk.NewToolResultBlock(v.ToolUseID, content, v.IsError)
}

func encodeTools(defs []provider.ToolDefinition) ([]sdk.ToolUnionParam, error) {
	out := make([]sdk.ToolUnionParam, 0, len(defs))
	for _, def := range defs {
		schema, err := toolInputSchema(def.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("anthropic: tool %q schema: %w", def.Name, err)
		}
		u := sdk.ToolUnionParamOfTool(schema, def.Name)
		if u.OfTool != nil {
			u.OfTool.Description = sdk.String(def.Description)
		}
		out = append(out, u)
	}
	return out, nil
}

func toolInputSchema(schema any) (sdk.ToolInputSchemaParam, error) {
	if schema == nil {
		return sdk.ToolInputSchemaParam{}, nil
	}
	var raw []byte
	switch v := schema.(type) {
	case json.RawMessage:
		raw = v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return sdk.ToolInputSchemaParam{}, err
		}
		raw = data
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return sdk.ToolInputSchemaParam{}, err
	}
	return sdk.ToolInputSchemaParam{ExtraFields: m}, nil
}

func translateResponse(msg *sdk.Message) provider.Response {
	resp := provider.Response{StopReason: string(msg.StopReason)}
	var text strings.Builder
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "tool_use":
			payload, _ := json.Marshal(block.Input)
			resp.ToolCalls = append(resp.ToolCalls, provider.ToolCall{
				ID: block.ID, Name: block.Name, Payload: payload,
			})
		}
	}
	resp.Text = text.String()
	resp.Usage = provider.TokenUsage{
		PromptTokens:     int(msg.Usage.InputTokens),
		CompletionTokens: int(msg.Usage.OutputTokens),
		TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
	}
	return resp
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
