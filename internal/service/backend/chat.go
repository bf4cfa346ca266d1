package backend

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/renkeyss/cch-bot/internal/config"
)

const arkBackend = "ark"

// ChatClient answers questions with a single chat-completion call through an eino chain.
// It carries no conversation history and produces no citations.
type ChatClient struct {
	chain        compose.Runnable[map[string]any, *schema.Message]
	systemPrompt string
	timeout      time.Duration
	messages     config.Messages
}

// NewChatClient compiles the prompt template and chat model into a runnable chain.
func NewChatClient(ctx context.Context, chatModel model.ChatModel, cfg config.ArkConfig, messages config.Messages) (*ChatClient, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}

	return &ChatClient{
		chain:        runnable,
		systemPrompt: cfg.SystemPrompt,
		timeout:      timeout,
		messages:     messages,
	}, nil
}

// Answer runs the chain once for text.
func (c *ChatClient) Answer(ctx context.Context, text string) Reply {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	response, err := c.chain.Invoke(ctx, map[string]any{
		"system": c.systemPrompt,
		"query":  text + c.messages.LanguageSuffix,
	})
	if err != nil {
		if !isTransport(ctx, err) {
			err = &ReportedError{Backend: arkBackend, Err: err}
		}
		return absorb(arkBackend, err, c.messages)
	}

	if response == nil || strings.TrimSpace(response.Content) == "" {
		return noAnswer(arkBackend, c.messages)
	}

	log.Printf("[backend] ark answered, length=%d", len(response.Content))
	return Reply{Text: response.Content, Outcome: Answered}
}
