package openai

import (
	"context"
	"encoding/base64"
	"io"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"

	"github.com/flowcraft/execore/provider"
)

// chatStream narrows ssestream.Stream to what this package consumes.
type chatStream = ssestream.Stream[sdk.ChatCompletionChunk]

type sdkChatAdapter struct {
	svc *sdk.ChatCompletionService
}

func (a *sdkChatAdapter) New(ctx context.Context, params sdk.ChatCompletionNewParams, opts ...option.RequestOption) (*sdk.ChatCompletion, error) {
	return a.svc.New(ctx, params, opts...)
}

func (a *sdkChatAdapter) NewStreaming(ctx context.Context, params sdk.ChatCompletionNewParams, opts ...option.RequestOption) *chatStream {
	return a.svc.NewStreaming(ctx, params, opts...)
}

type sdkImagesAdapter struct {
	svc *sdk.ImageService
}

func (a *sdkImagesAdapter) Generate(ctx context.Context, params sdk.ImageGenerateParams, opts ...option.RequestOption) (*sdk.ImagesResponse, error) {
	return a.svc.Generate(ctx, params, opts...)
}

type openaiStreamer struct {
	stream *chatStream
}

func newStreamer(s *chatStream) *openaiStreamer {
	return &openaiStreamer{stream: s}
}

func (s *openaiStreamer) Recv() (provider.Chunk, error) {
	if !s.stream.Next() {
		if err := s.stream.Err(); err != nil {
			return provider.Chunk{}, err
		}
		return provider.Chunk{}, io.EOF
	}
	chunk := s.stream.Current()
	if len(chunk.Choices) == 0 {
		if chunk.Usage.TotalTokens > 0 {
			usage := provider.TokenUsage{
				PromptTokens:     int(chunk.Usage.PromptTokens),
				CompletionTokens: int(chunk.Usage.CompletionTokens),
				TotalTokens:      int(chunk.Usage.TotalTokens),
			}
			return provider.Chunk{Usage: &usage}, nil
		}
		return provider.Chunk{}, nil
	}
	choice := chunk.Choices[0]
	out := provider.Chunk{TextDelta: choice.Delta.Content}
	if choice.FinishReason != "" {
		out.Done = true
		out.StopReason = choice.FinishReason
	}
	for _, tc := range choice.Delta.ToolCalls {
		out.ToolCall = &provider.ToolCall{ID: tc.ID, Name: tc.Function.Name, Payload: []byte(tc.Function.Arguments)}
	}
	return out, nil
}

func (s *openaiStreamer) Close() error {
	return s.stream.Close()
}

func encodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}
