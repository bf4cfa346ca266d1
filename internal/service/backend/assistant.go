package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/renkeyss/cch-bot/internal/config"
)

const assistantBackend = "assistant"

// AssistantAPI is the subset of the OpenAI client used by AssistantClient.
type AssistantAPI interface {
	CreateThread(ctx context.Context, request openai.ThreadRequest) (openai.Thread, error)
	CreateRun(ctx context.Context, threadID string, request openai.RunRequest) (openai.Run, error)
	RetrieveRun(ctx context.Context, threadID string, runID string) (openai.Run, error)
	ListMessage(ctx context.Context, threadID string, limit *int, order *string, after *string, before *string, runID *string) (openai.MessagesList, error)
	GetFile(ctx context.Context, fileID string) (openai.File, error)
}

// AssistantClient answers questions through an OpenAI assistant, one new thread per question.
type AssistantClient struct {
	api          AssistantAPI
	assistantID  string
	pollInterval time.Duration
	timeout      time.Duration
	messages     config.Messages
}

// NewAssistantClient creates an AssistantClient backed by the OpenAI API.
func NewAssistantClient(cfg config.AssistantConfig, messages config.Messages) (*AssistantClient, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("OPENAI_API_KEY and ASSISTANT_ID are required for the assistant backend")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return newAssistantClient(openai.NewClientWithConfig(clientCfg), cfg, messages), nil
}

func newAssistantClient(api AssistantAPI, cfg config.AssistantConfig, messages config.Messages) *AssistantClient {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}

	return &AssistantClient{
		api:          api,
		assistantID:  cfg.AssistantID,
		pollInterval: pollInterval,
		timeout:      timeout,
		messages:     messages,
	}
}

// Answer submits text to the assistant and formats the first reply message with its citations.
func (c *AssistantClient) Answer(ctx context.Context, text string) Reply {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	content, err := c.complete(ctx, text)
	if err != nil {
		return absorb(assistantBackend, err, c.messages)
	}
	if content == nil || strings.TrimSpace(content.Value) == "" {
		return noAnswer(assistantBackend, c.messages)
	}

	annotations, err := decodeAnnotations(content.Annotations)
	if err != nil {
		return absorb(assistantBackend, err, c.messages)
	}

	reply := FormatCitations(content.Value, c.citations(ctx, annotations))
	log.Printf("[backend] assistant answered, length=%d, citations=%d", len(reply), len(annotations))
	return Reply{Text: reply, Outcome: Answered}
}

// complete runs a new thread to completion and returns the first text content of the newest
// message of that run, or nil when the run produced none.
func (c *AssistantClient) complete(ctx context.Context, text string) (*openai.MessageText, error) {
	thread, err := c.api.CreateThread(ctx, openai.ThreadRequest{
		Messages: []openai.ThreadMessage{{
			Role:    openai.ThreadMessageRoleUser,
			Content: text + c.messages.LanguageSuffix,
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("create thread: %w", err)
	}

	run, err := c.api.CreateRun(ctx, thread.ID, openai.RunRequest{AssistantID: c.assistantID})
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	run, err = c.awaitRun(ctx, thread.ID, run)
	if err != nil {
		return nil, err
	}

	list, err := c.api.ListMessage(ctx, thread.ID, nil, nil, nil, nil, &run.ID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	if len(list.Messages) == 0 {
		return nil, nil
	}

	for _, content := range list.Messages[0].Content {
		if content.Text != nil {
			return content.Text, nil
		}
	}
	return nil, nil
}

// awaitRun polls until the run reaches a terminal status.
func (c *AssistantClient) awaitRun(ctx context.Context, threadID string, run openai.Run) (openai.Run, error) {
	for {
		switch run.Status {
		case openai.RunStatusCompleted:
			return run, nil
		case openai.RunStatusQueued, openai.RunStatusInProgress, openai.RunStatusCancelling:
		case openai.RunStatusFailed, openai.RunStatusExpired, openai.RunStatusCancelled, openai.RunStatusIncomplete:
			return run, runFailure(run)
		default:
			// requires_action means the assistant wants tool outputs, which this relay never provides.
			return run, fmt.Errorf("run %s stopped in unsupported status %q", run.ID, run.Status)
		}

		timer := time.NewTimer(c.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return run, fmt.Errorf("await run %s: %w", run.ID, ctx.Err())
		case <-timer.C:
		}

		next, err := c.api.RetrieveRun(ctx, threadID, run.ID)
		if err != nil {
			return run, fmt.Errorf("retrieve run: %w", err)
		}
		run = next
	}
}

func runFailure(run openai.Run) error {
	reported := &ReportedError{
		Backend: assistantBackend,
		Err:     fmt.Errorf("run %s ended with status %s", run.ID, run.Status),
	}
	if run.LastError != nil {
		reported.Code = string(run.LastError.Code)
		reported.Err = fmt.Errorf("run %s ended with status %s: %s", run.ID, run.Status, run.LastError.Message)
	}
	return reported
}

type annotation struct {
	Type         string `json:"type"`
	Text         string `json:"text"`
	FileCitation *struct {
		FileID string `json:"file_id"`
	} `json:"file_citation,omitempty"`
}

// decodeAnnotations converts the loosely typed annotations of a text content.
func decodeAnnotations(raw []any) ([]annotation, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode annotations: %w", err)
	}

	var annotations []annotation
	if err := json.Unmarshal(data, &annotations); err != nil {
		return nil, fmt.Errorf("decode annotations: %w", err)
	}
	return annotations, nil
}

// citations resolves the display name of every cited file, falling back to its ID.
func (c *AssistantClient) citations(ctx context.Context, annotations []annotation) []Citation {
	citations := make([]Citation, 0, len(annotations))
	names := make(map[string]string)

	for _, a := range annotations {
		citation := Citation{Marker: a.Text}
		if a.FileCitation != nil && a.FileCitation.FileID != "" {
			citation.Source = c.fileName(ctx, a.FileCitation.FileID, names)
		}
		citations = append(citations, citation)
	}
	return citations
}

func (c *AssistantClient) fileName(ctx context.Context, fileID string, cache map[string]string) string {
	if name, ok := cache[fileID]; ok {
		return name
	}

	name := fileID
	file, err := c.api.GetFile(ctx, fileID)
	if err != nil {
		log.Printf("[backend] failed to resolve cited file %s: %v", fileID, err)
	} else if file.FileName != "" {
		name = file.FileName
	}

	cache[fileID] = name
	return name
}
