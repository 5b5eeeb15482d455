package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/cardchat/internal/model/chat"
	"github.com/zhouzirui/cardchat/internal/model/persona"
)

const historyLimit = 10

// Service runs the persona prompt chain against a chat model.
type Service struct {
	chatModel model.BaseChatModel
	prompts   *PersonaPromptManager
	chain     compose.Runnable[map[string]any, *schema.Message]
}

// NewService compiles the prompt chain around chatModel.
func NewService(ctx context.Context, chatModel model.BaseChatModel) (*Service, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model is required")
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		chatModel: chatModel,
		prompts:   NewPersonaPromptManager(),
		chain:     runnable,
	}, nil
}

// Reply generates a complete answer.
func (s *Service) Reply(ctx context.Context, p *persona.Persona, history []chat.Turn, query string) (string, error) {
	resp, err := s.chain.Invoke(ctx, s.buildChainInput(p, history, query))
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}
	return resp.Content, nil
}

// Stream yields the answer chunk by chunk. The caller closes the reader.
func (s *Service) Stream(ctx context.Context, p *persona.Persona, history []chat.Turn, query string) (*schema.StreamReader[*schema.Message], error) {
	stream, err := s.chain.Stream(ctx, s.buildChainInput(p, history, query))
	if err != nil {
		return nil, fmt.Errorf("failed to stream AI chain output: %w", err)
	}
	return stream, nil
}

func (s *Service) buildChainInput(p *persona.Persona, history []chat.Turn, query string) map[string]any {
	return map[string]any{
		"system":  s.prompts.BuildSystemPrompt(p),
		"history": buildHistoryMessages(history),
		"query":   query,
	}
}

func buildHistoryMessages(turns []chat.Turn) []*schema.Message {
	if len(turns) == 0 {
		return nil
	}

	start := 0
	if len(turns) > historyLimit {
		start = len(turns) - historyLimit
	}

	history := make([]*schema.Message, 0, len(turns)-start)
	for _, t := range turns[start:] {
		switch t.Sender {
		case chat.SenderUser:
			history = append(history, schema.UserMessage(t.Content))
		case chat.SenderBot:
			history = append(history, schema.AssistantMessage(t.Content, nil))
		}
	}
	return history
}
