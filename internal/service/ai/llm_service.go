package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"
)

// ErrNotConfigured is returned when no completion provider credentials are set.
var ErrNotConfigured = errors.New("completion provider not configured")

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one entry of the conversation window sent with a completion request.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a single stateless completion call.
type Request struct {
	SystemPrompt string
	Temperature  float32
	MaxTokens    int
	History      []Turn
}

// Completer turns a system prompt plus conversation window into reply text.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Service runs completions through an eino chain over an Ark chat model.
type Service struct {
	chatModel model.BaseChatModel
	chain     compose.Runnable[map[string]any, *schema.Message]
	logger    *zap.Logger
}

// NewService compiles the prompt chain around chatModel.
func NewService(ctx context.Context, chatModel model.BaseChatModel, logger *zap.Logger) (*Service, error) {
	if chatModel == nil {
		return nil, ErrNotConfigured
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", false),
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
		chain:     runnable,
		logger:    logger.With(zap.String("component", "ai"), zap.String("provider", "ark")),
	}, nil
}

// Complete implements Completer.
func (s *Service) Complete(ctx context.Context, req Request) (string, error) {
	input := map[string]any{
		"system":  req.SystemPrompt,
		"history": buildHistoryMessages(req.History),
	}

	opts := []model.Option{model.WithTemperature(req.Temperature)}
	if req.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(req.MaxTokens))
	}

	response, err := s.chain.Invoke(ctx, input, compose.WithChatModelOption(opts...))
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}

	s.logger.Debug("generated response", zap.Int("history", len(req.History)), zap.Int("length", len(response.Content)))
	return strings.TrimSpace(response.Content), nil
}

func buildHistoryMessages(turns []Turn) []*schema.Message {
	history := make([]*schema.Message, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case RoleUser:
			history = append(history, schema.UserMessage(turn.Content))
		case RoleAssistant:
			history = append(history, schema.AssistantMessage(turn.Content, nil))
		}
	}
	return history
}

// Unavailable fails every call; installed when no provider is configured.
type Unavailable struct{}

// Complete implements Completer.
func (Unavailable) Complete(context.Context, Request) (string, error) {
	return "", ErrNotConfigured
}
