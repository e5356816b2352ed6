package bedrock

import (
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/flowcraft/execore/provider"
)

type toolBuffer struct {
	id        string
	name      string
	fragments strings.Builder
}

type bedrockStreamer struct {
	events    *bedrockruntime.ConverseStreamEventStream
	toolNames map[string]string
	toolBlock map[int32]*toolBuffer
}

func newStreamer(out *bedrockruntime.ConverseStreamOutput, toolNames map[string]string) *bedrockStreamer {
	return &bedrockStreamer{
		events:    out.GetStream(),
		toolNames: toolNames,
		toolBlock: make(map[int32]*toolBuffer),
	}
}

// Recv translates the next Bedrock stream event into a provider.Chunk.
// Tool-use input arrives as incremental JSON fragments keyed by content
// block index; the accumulated payload is emitted once on
// ContentBlockStop, matching the non-streaming Complete contract.
func (s *bedrockStreamer) Recv() (provider.Chunk, error) {
	for event := range s.events.Events() {
		switch ev := event.(type) {
		case *brtypes.ConverseStreamOutputMemberContentBlockStart:
			if start, ok := ev.Value.Start.(*brtypes.ContentBlockStartMemberToolUse); ok {
				name := aws.ToString(start.Value.Name)
				if canonical, ok := s.toolNames[name]; ok {
					name = canonical
				}
				s.toolBlock[ev.Value.ContentBlockIndex] = &toolBuffer{id: aws.ToString(start.Value.ToolUseId), name: name}
			}
		case *brtypes.ConverseStreamOutputMemberContentBlockDelta:
			switch delta := ev.Value.Delta.(type) {
			case *brtypes.ContentBlockDeltaMemberText:
				if delta.Value != "" {
					return provider.Chunk{TextDelta: delta.Value}, nil
				}
			case *brtypes.ContentBlockDeltaMemberToolUse:
				if tb := s.toolBlock[ev.Value.ContentBlockIndex]; tb != nil && delta.Value.Input != nil {
					tb.fragments.WriteString(*delta.Value.Input)
				}
			}
		case *brtypes.ConverseStreamOutputMemberContentBlockStop:
			if tb := s.toolBlock[ev.Value.ContentBlockIndex]; tb != nil {
				delete(s.toolBlock, ev.Value.ContentBlockIndex)
				return provider.Chunk{ToolCall: &provider.ToolCall{
					ID: tb.id, Name: tb.name, Payload: []byte(tb.fragments.String()),
				}}, nil
			}
		case *brtypes.ConverseStreamOutputMemberMessageStop:
			return provider.Chunk{Done: true, StopReason: string(ev.Value.StopReason)}, nil
		case *brtypes.ConverseStreamOutputMemberMetadata:
			if ev.Value.Usage != nil {
				usage := provider.TokenUsage{
					PromptTokens:     int(aws.ToInt32(ev.Value.Usage.InputTokens)),
					CompletionTokens: int(aws.ToInt32(ev.Value.Usage.OutputTokens)),
					TotalTokens:      int(aws.ToInt32(ev.Value.Usage.TotalTokens)),
				}
				return provider.Chunk{Usage: &usage}, nil
			}
		}
	}
	if err := s.events.Err(); err != nil {
		return provider.Chunk{}, err
	}
	return provider.Chunk{}, io.EOF
}

func (s *bedrockStreamer) Close() error {
	s.events.Close()
	return nil
}
