package backend

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"

	"github.com/sashabaranov/go-openai"

	"github.com/renkeyss/cch-bot/internal/config"
)

// ReportedError is a failure the AI backend itself reported, such as a rate limit,
// an auth failure or a run that ended unsuccessfully.
type ReportedError struct {
	Backend string
	Code    string
	Err     error
}

func (e *ReportedError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s reported %s: %v", e.Backend, e.Code, e.Err)
	}
	return fmt.Sprintf("%s reported: %v", e.Backend, e.Err)
}

func (e *ReportedError) Unwrap() error { return e.Err }

// isReported reports whether err came back from the backend as a structured failure.
func isReported(err error) bool {
	var (
		reported *ReportedError
		apiErr   *openai.APIError
		reqErr   *openai.RequestError
	)
	return errors.As(err, &reported) || errors.As(err, &apiErr) || errors.As(err, &reqErr)
}

// isTransport reports whether err is a local timeout, cancellation or network failure.
func isTransport(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// absorb logs err and converts it into the matching user-facing reply.
func absorb(backend string, err error, messages config.Messages) Reply {
	if isReported(err) {
		log.Printf("[backend] %s error: %v", backend, err)
		return Reply{Text: messages.BackendFailure, Outcome: BackendFailure}
	}

	log.Printf("[backend] unexpected %s failure: %v", backend, err)
	return Reply{Text: messages.UnexpectedFailure, Outcome: UnexpectedFailure}
}

func noAnswer(backend string, messages config.Messages) Reply {
	log.Printf("[backend] %s returned no answer", backend)
	return Reply{Text: messages.NoAnswer, Outcome: NoAnswer}
}
