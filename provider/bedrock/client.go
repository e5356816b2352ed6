// Package bedrock implements provider.Client on top of the AWS Bedrock
// Converse API using github.com/aws/aws-sdk-go-v2/service/bedrockruntime,
// demonstrating the provider-neutral contract across a non-direct,
// IAM-authenticated transport. Message/tool encoding and the
// RuntimeClient abstraction mirror the teacher's model/bedrock adapter.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	smithy "github.com/aws/smithy-go"

	"github.com/flowcraft/execore/provider"
)

// RuntimeClient mirrors the subset of the AWS Bedrock runtime client used
// here; satisfied by *bedrockruntime.Client or a test fake.
type RuntimeClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
	ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error)
}

// Options configures the adapter.
type Options struct {
	DefaultModel string // e.g. "anthropic.claude-3-5-sonnet-20241022-v2:0" or a Nova model id
	MaxTokens    int
	Temperature  float32
}

// Client implements provider.Client on AWS Bedrock Converse.
type Client struct {
	runtime RuntimeClient
	model   string
	maxTok  int32
	temp    float32
}

var _ provider.Client = (*Client)(nil)

// New builds a client from an explicit RuntimeClient (tests) or use
// NewFromClient for production wiring against *bedrockruntime.Client.
func New(runtime RuntimeClient, opts Options) (*Client, error) {
	if runtime == nil {
		return nil, errors.New("bedrock: runtime client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("bedrock: default model is required")
	}
	maxTok := opts.MaxTokens
	if maxTok <= 0 {
		maxTok = 4096
	}
	return &Client{runtime: runtime, model: opts.DefaultModel, maxTok: int32(maxTok), temp: opts.Temperature}, nil
}

// NewFromClient builds an adapter from an already-configured
// *bedrockruntime.Client (the host process owns AWS credential chain
// resolution; this package never reads AWS env vars itself).
func NewFromClient(rt *bedrockruntime.Client, defaultModel string) (*Client, error) {
	return New(rt, Options{DefaultModel: defaultModel})
}

func (c *Client) Name() string { return "bedrock" }

func (c *Client) DefaultModel() string      { return c.model }
func (c *Client) DefaultImageModel() string { return "" }

func (c *Client) Complete(ctx context.Context, req provider.Request) (provider.Response, error) {
	input, toolNames, err := c.buildConverseInput(req)
	if err != nil {
		return provider.Response{}, err
	}
	out, err := c.runtime.Converse(ctx, input)
	if err != nil {
		if isThrottled(err) {
			return provider.Response{}, fmt.Errorf("%w: %w", provider.ErrRateLimited, err)
		}
		return provider.Response{}, fmt.Errorf("bedrock: converse: %w", err)
	}
	return translateResponse(out, toolNames), nil
}

func (c *Client) Stream(ctx context.Context, req provider.Request) (provider.Streamer, error) {
	base, toolNames, err := c.buildConverseInput(req)
	if err != nil {
		return nil, err
	}
	streamInput := &bedrockruntime.ConverseStreamInput{
		ModelId:         base.ModelId,
		Messages:        base.Messages,
		System:          base.System,
		ToolConfig:      base.ToolConfig,
		InferenceConfig: base.InferenceConfig,
	}
	out, err := c.runtime.ConverseStream(ctx, streamInput)
	if err != nil {
		if isThrottled(err) {
			return nil, fmt.Errorf("%w: %w", provider.ErrRateLimited, err)
		}
		return nil, fmt.Errorf("bedrock: converse stream: %w", err)
	}
	return newStreamer(out, toolNames), nil
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

// EstimateTokens falls back to the ~4-characters-per-token heuristic;
// Bedrock does not expose a standalone tokenizer endpoint.
func (c *Client) EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

// CalculateCost uses Anthropic-on-Bedrock Sonnet-class pricing as the
// representative default for every model; the model argument is not
// consulted, so Nova and Opus-class models are priced the same way.
const (
	bedrockInputPerMillion  = 3.00
	bedrockOutputPerMillion = 15.00
)

func (c *Client) CalculateCost(usage provider.TokenUsage, _ string) float64 {
	in := float64(usage.PromptTokens) / 1_000_000 * bedrockInputPerMillion
	out := float64(usage.CompletionTokens) / 1_000_000 * bedrockOutputPerMillion
	return in + out
}

func (c *Client) buildConverseInput(req provider.Request) (*bedrockruntime.ConverseInput, map[string]string, error) {
	if len(req.Messages) == 0 {
		return nil, nil, errors.New("bedrock: at least one message is required")
	}
	modelID := req.Model
	if modelID == "" {
		modelID = c.model
	}
	messages, system, err := encodeMessages(req.Messages)
	if err != nil {
		return nil, nil, err
	}
	maxTok := c.maxTok
	if req.MaxTokens > 0 {
		maxTok = int32(req.MaxTokens)
	}
	temp := c.temp
	if req.Temperature > 0 {
		temp = float32(req.Temperature)
	}
	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(modelID),
		Messages: messages,
		System:   system,
		InferenceConfig: &brtypes.InferenceConfiguration{
			MaxTokens:   aws.Int32(maxTok),
			Temperature: aws.Float32(temp),
		},
	}
	var toolNames map[string]string
	if len(req.Tools) > 0 {
		toolConfig, names, err := encodeTools(req.Tools)
		if err != nil {
			return nil, nil, err
		}
		input.ToolConfig = toolConfig
		toolNames = names
	}
	return input, toolNames, nil
}

func encodeMessages(msgs []provider.Message) ([]brtypes.Message, []brtypes.SystemContentBlock, error) {
	out := make([]brtypes.Message, 0, len(msgs))
	var system []brtypes.SystemContentBlock
	for _, m := range msgs {
		if m.Role == provider.RoleSystem {
			for _, p := range m.Parts {
				if t, ok := p.(provider.TextPart); ok && t.Text != "" {
					system = append(system, &brtypes.SystemContentBlockMemberText{Value: t.Text})
				}
			}
			continue
		}
		blocks := make([]brtypes.ContentBlock, 0, len(m.Parts))
		for _, part := range m.Parts {
			switch v := part.(type) {
			case provider.TextPart:
				if v.Text != "" {
					blocks = append(blocks, &brtypes.ContentBlockMemberText{Value: v.Text})
				}
			case provider.ImagePart:
				blocks = append(blocks, &brtypes.ContentBlockMemberImage{Value: brtypes.ImageBlock{
					Format: brtypes.ImageFormat(normalizeImageFormat(v.Format)),
					Source: &brtypes.ImageSourceMemberBytes{Value: v.Bytes},
				}})
			case provider.ToolUsePart:
				input, _ := json.Marshal(v.Input)
				blocks = append(blocks, &brtypes.ContentBlockMemberToolUse{Value: brtypes.ToolUseBlock{
					ToolUseId: aws.String(v.ID),
					Name:      aws.String(v.Name),
					Input:     jsonDocument(input),
				}})
			case provider.ToolResultPart:
				blocks = append(blocks, encodeToolResult(v))
			}
		}
		if len(blocks) == 0 {
			continue
		}
		role := brtypes.ConversationRoleUser
		if m.Role == provider.RoleAssistant {
			role = brtypes.ConversationRoleAssistant
		}
		out = append(out, brtypes.Message{Role: role, Content: blocks})
	}
	if len(out) == 0 {
		return nil, nil, errors.New("bedrock: at least one user/assistant message is required")
	}
	return out, system, nil
}

func encodeToolResult(v provider.ToolResultPart) brtypes.ContentBlock {
	var text string
	switch c := v.Content.(type) {
	case string:
		text = c
	case []byte:
		text = string(c)
	default:
		if data, err := json.Marshal(c); err == nil {
			text = string(data)
		}
	}
	status := brtypes.ToolResultStatusSuccess
	if v.IsError {
		status = brtypes.ToolResultStatusError
	}
	return &brtypes.ContentBlockMemberToolResult{Value: brtypes.ToolResultBlock{
		ToolUseId: aws.String(v.ToolUseID),
		Status:    status,
		Content:   []brtypes.ToolResultContentBlock{&brtypes.ToolResultContentBlockMemberText{Value: text}},
	}}
}

func encodeTools(defs []provider.ToolDefinition) (*brtypes.ToolConfiguration, map[string]string, error) {
	names := make(map[string]string, len(defs))
	specs := make([]brtypes.Tool, 0, len(defs))
	for _, def := range defs {
		sanitized := sanitizeToolName(def.Name)
		names[sanitized] = def.Name
		raw, err := json.Marshal(def.InputSchema)
		if err != nil {
			return nil, nil, fmt.Errorf("bedrock: tool %q schema: %w", def.Name, err)
		}
		specs = append(specs, &brtypes.ToolMemberToolSpec{Value: brtypes.ToolSpecification{
			Name:        aws.String(sanitized),
			Description: aws.String(def.Description),
			InputSchema: &brtypes.ToolInputSchemaMemberJson{Value: jsonDocument(raw)},
		}})
	}
	return &brtypes.ToolConfiguration{Tools: specs}, names, nil
}

func translateResponse(out *bedrockruntime.ConverseOutput, toolNames map[string]string) provider.Response {
	resp := provider.Response{StopReason: string(out.StopReason)}
	msg, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return resp
	}
	var text strings.Builder
	for _, block := range msg.Value.Content {
		switch b := block.(type) {
		case *brtypes.ContentBlockMemberText:
			text.WriteString(b.Value)
		case *brtypes.ContentBlockMemberToolUse:
			name := aws.ToString(b.Value.Name)
			if canonical, ok := toolNames[name]; ok {
				name = canonical
			}
			resp.ToolCalls = append(resp.ToolCalls, provider.ToolCall{
				ID: aws.ToString(b.Value.ToolUseId), Name: name, Payload: decodeDocument(b.Value.Input),
			})
		}
	}
	resp.Text = text.String()
	if out.Usage != nil {
		resp.Usage = provider.TokenUsage{
			PromptTokens:     int(aws.ToInt32(out.Usage.InputTokens)),
			CompletionTokens: int(aws.ToInt32(out.Usage.OutputTokens)),
			TotalTokens:      int(aws.ToInt32(out.Usage.TotalTokens)),
		}
	}
	return resp
}

func isThrottled(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "ThrottlingException"
	}
	return false
}

func normalizeImageFormat(format string) string {
	if format == "jpg" {
		return "jpeg"
	}
	return format
}

func jsonDocument(raw []byte) document.Interface {
	var v any
	if len(raw) == 0 {
		v = map[string]any{}
	} else if err := json.Unmarshal(raw, &v); err != nil {
		v = map[string]any{}
	}
	return document.NewLazyDocument(&v)
}

func decodeDocument(doc document.Interface) json.RawMessage {
	if doc == nil {
		return nil
	}
	data, err := doc.MarshalSmithyDocument()
	if err != nil || len(data) == 0 {
		return nil
	}
	return json.RawMessage(data)
}

func sanitizeToolName(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
