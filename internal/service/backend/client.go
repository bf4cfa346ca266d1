package backend

import (
	"context"
	"fmt"

	"github.com/renkeyss/cch-bot/internal/config"
)

// Outcome classifies how a backend call ended.
type Outcome int

const (
	Answered Outcome = iota
	NoAnswer
	BackendFailure
	UnexpectedFailure
)

func (o Outcome) String() string {
	switch o {
	case Answered:
		return "answered"
	case NoAnswer:
		return "no_answer"
	case BackendFailure:
		return "backend_failure"
	case UnexpectedFailure:
		return "unexpected_failure"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Reply is what a backend produces for one question. Text is always safe to send to the user,
// including when Outcome reports a failure.
type Reply struct {
	Text    string
	Outcome Outcome
}

// Client turns raw user text into a reply. Implementations never return errors;
// every failure is absorbed into a user-facing Reply.
type Client interface {
	Answer(ctx context.Context, text string) Reply
}

// New creates the client selected by cfg.Backend.
func New(ctx context.Context, cfg config.AIConfig, messages config.Messages) (Client, error) {
	switch cfg.Backend {
	case config.BackendAssistant:
		client, err := NewAssistantClient(cfg.Assistant, messages)
		if err != nil {
			return nil, err
		}
		return client, nil
	case config.BackendArk:
		chatModel, err := cfg.Ark.NewChatModel(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create chat model: %w", err)
		}
		client, err := NewChatClient(ctx, chatModel, cfg.Ark, messages)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported AI backend %q", cfg.Backend)
	}
}
