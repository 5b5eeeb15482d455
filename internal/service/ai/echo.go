package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// EchoModel is an offline chat model for local runs without Ark credentials.
// It answers with a canned sentence around the last user message and streams
// it a few runes at a time.
type EchoModel struct {
	ChunkSize int
}

var _ model.BaseChatModel = (*EchoModel)(nil)

func (e *EchoModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	return schema.AssistantMessage(e.answer(input), nil), nil
}

func (e *EchoModel) Stream(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	size := e.ChunkSize
	if size <= 0 {
		size = 8
	}

	runes := []rune(e.answer(input))
	chunks := make([]*schema.Message, 0, len(runes)/size+1)
	for i := 0; i < len(runes); i += size {
		end := min(i+size, len(runes))
		chunks = append(chunks, schema.AssistantMessage(string(runes[i:end]), nil))
	}
	return schema.StreamReaderFromArray(chunks), nil
}

func (e *EchoModel) answer(input []*schema.Message) string {
	var query string
	for i := len(input) - 1; i >= 0; i-- {
		if input[i].Role == schema.User {
			query = strings.TrimSpace(input[i].Content)
			break
		}
	}
	if query == "" {
		return "무엇을 도와드릴까요?"
	}
	return fmt.Sprintf("'%s'에 대해 확인해볼게요. 조건에 맞는 카드를 정리해드릴게요.", query)
}
