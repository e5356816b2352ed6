package anthropic

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/flowcraft/execore/provider"
)

// streamAdapter names the SDK's ssestream.Stream type this package
// consumes.
type streamAdapter = ssestream.Stream[sdk.MessageStreamEventUnion]

type sdkMessagesAdapter struct {
	svc *sdk.MessageService
}

func (a *sdkMessagesAdapter) New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error) {
	return a.svc.New(ctx, body, opts...)
}

func (a *sdkMessagesAdapter) NewStreaming(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) *streamAdapter {
	return a.svc.NewStreaming(ctx, body, opts...)
}

type anthropicStreamer struct {
	stream *streamAdapter
}

func newStreamer(s *streamAdapter) *anthropicStreamer {
	return &anthropicStreamer{stream: s}
}

// Recv translates the next SSE event into a provider.Chunk. Each text
// delta is returned as its own chunk; deltas are not accumulated.
// Anthropic emits the stop reason on a separate content_block_stop/
// message_stop event.
func (s *anthropicStreamer) Recv() (provider.Chunk, error) {
	if !s.stream.Next() {
		if err := s.stream.Err(); err != nil {
			return provider.Chunk{}, err
		}
		return provider.Chunk{}, io.EOF
	}
	event := s.stream.Current()
	switch event.Type {
	case "content_block_delta":
		if delta := event.Delta; delta.Text != "" {
			return provider.Chunk{TextDelta: delta.Text}, nil
		}
		return provider.Chunk{}, nil
	case "content_block_start":
		if event.ContentBlock.Type == "tool_use" {
			payload, _ := json.Marshal(event.ContentBlock.Input)
			return provider.Chunk{ToolCall: &provider.ToolCall{
				ID: event.ContentBlock.ID, Name: event.ContentBlock.Name, Payload: payload,
			}}, nil
		}
		return provider.Chunk{}, nil
	case "message_delta":
		usage := provider.TokenUsage{
			CompletionTokens: int(event.Usage.OutputTokens),
		}
		return provider.Chunk{Usage: &usage, StopReason: string(event.Delta.StopReason)}, nil
	case "message_stop":
		return provider.Chunk{Done: true}, nil
	default:
		return provider.Chunk{}, nil
	}
}

func (s *anthropicStreamer) Close() error {
	return s.stream.Close()
}

func encodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}
