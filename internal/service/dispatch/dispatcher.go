package dispatch

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/renkeyss/cch-bot/internal/analysis/intent"
	"github.com/renkeyss/cch-bot/internal/config"
	"github.com/renkeyss/cch-bot/internal/model/exchange"
	"github.com/renkeyss/cch-bot/internal/model/relay"
	"github.com/renkeyss/cch-bot/internal/service/backend"
	"github.com/renkeyss/cch-bot/internal/service/quota"
)

// QuotaStore reserves one backend call for a user.
type QuotaStore interface {
	CheckAndReserve(userID string) quota.Reservation
}

// Recorder persists a handled exchange. Errors are logged and otherwise ignored.
type Recorder interface {
	Record(ctx context.Context, entry exchange.Exchange) error
}

// Dispatcher turns one inbound message into exactly one reply.
type Dispatcher struct {
	classifier *intent.Classifier
	quota      QuotaStore
	backend    backend.Client
	recorder   Recorder
	messages   config.Messages
}

// New wires the dispatcher. recorder may be nil.
func New(classifier *intent.Classifier, quotaStore QuotaStore, client backend.Client, recorder Recorder, messages config.Messages) *Dispatcher {
	if classifier == nil {
		classifier = intent.NewClassifier(messages.IntroductionTriggers)
	}
	return &Dispatcher{
		classifier: classifier,
		quota:      quotaStore,
		backend:    client,
		recorder:   recorder,
		messages:   messages,
	}
}

// Handle never fails: every path, including a panicking collaborator, yields a reply text.
func (d *Dispatcher) Handle(ctx context.Context, event relay.InboundEvent) relay.DispatchResult {
	in := d.classifier.Classify(event.Text)
	text, outcome := d.reply(ctx, event, in)

	d.record(ctx, event, in, text, outcome)
	return relay.DispatchResult{ReplyText: text}
}

func (d *Dispatcher) reply(ctx context.Context, event relay.InboundEvent, in intent.Intent) (text string, outcome exchange.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[dispatch] recovered panic for event %s: %v", event.ID, r)
			text, outcome = d.messages.DispatchFailure, exchange.OutcomeDispatchFailure
		}
	}()

	if in.Kind == intent.Introduction {
		return d.messages.Introduction, exchange.OutcomeIntroduction
	}

	reservation := d.quota.CheckAndReserve(event.UserID)
	if !reservation.Allowed {
		log.Printf("[dispatch] user %s exceeded daily quota, resets at %s", event.UserID, reservation.ResetAt.Format(time.RFC3339))
		return d.messages.QuotaExceeded, exchange.OutcomeQuotaExceeded
	}

	answer := d.backend.Answer(ctx, in.Text)
	outcome, err := answerOutcome(answer)
	if err != nil {
		log.Printf("[dispatch] event %s: %v", event.ID, err)
		return d.messages.DispatchFailure, exchange.OutcomeDispatchFailure
	}

	log.Printf("[dispatch] event %s answered for user %s, outcome=%s, used=%d/%d", event.ID, event.UserID, answer.Outcome, reservation.Count, reservation.Count+reservation.Remaining)
	return answer.Text, outcome
}

func answerOutcome(answer backend.Reply) (exchange.Outcome, error) {
	if strings.TrimSpace(answer.Text) == "" {
		return "", fmt.Errorf("backend returned empty reply text with outcome %s", answer.Outcome)
	}

	switch answer.Outcome {
	case backend.Answered:
		return exchange.OutcomeAnswered, nil
	case backend.NoAnswer:
		return exchange.OutcomeNoAnswer, nil
	case backend.BackendFailure:
		return exchange.OutcomeBackendFailure, nil
	case backend.UnexpectedFailure:
		return exchange.OutcomeUnexpectedFailure, nil
	default:
		return "", fmt.Errorf("unknown backend outcome %s", answer.Outcome)
	}
}

func (d *Dispatcher) record(ctx context.Context, event relay.InboundEvent, in intent.Intent, text string, outcome exchange.Outcome) {
	if d.recorder == nil || event.UserID == "" {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("[exchange] recorder panicked for event %s: %v", event.ID, r)
		}
	}()

	entry := exchange.Exchange{
		EventID: event.ID,
		UserID:  event.UserID,
		Intent:  string(in.Kind),
		Outcome: outcome,
		Request: event.Text,
		Reply:   text,
	}
	if err := d.recorder.Record(context.WithoutCancel(ctx), entry); err != nil {
		log.Printf("[exchange] failed to record event %s: %v", event.ID, err)
	}
}
