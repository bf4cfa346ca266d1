package backend

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/renkeyss/cch-bot/internal/config"
)

type fakeAssistantAPI struct {
	mu sync.Mutex

	createThreadErr error
	statuses        []openai.RunStatus
	lastError       *openai.RunLastError
	messages        openai.MessagesList
	listErr         error
	files           map[string]string

	threadContent string
	listedRunID   string
	retrieved     int
}

func (f *fakeAssistantAPI) CreateThread(_ context.Context, request openai.ThreadRequest) (openai.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createThreadErr != nil {
		return openai.Thread{}, f.createThreadErr
	}
	if len(request.Messages) > 0 {
		f.threadContent = request.Messages[0].Content
	}
	return openai.Thread{ID: "thread_1"}, nil
}

func (f *fakeAssistantAPI) CreateRun(_ context.Context, threadID string, request openai.RunRequest) (openai.Run, error) {
	return f.run(threadID, 0), nil
}

func (f *fakeAssistantAPI) RetrieveRun(_ context.Context, threadID string, _ string) (openai.Run, error) {
	f.mu.Lock()
	f.retrieved++
	n := f.retrieved
	f.mu.Unlock()
	return f.run(threadID, n), nil
}

func (f *fakeAssistantAPI) run(threadID string, n int) openai.Run {
	status := openai.RunStatusCompleted
	if len(f.statuses) > 0 {
		if n >= len(f.statuses) {
			n = len(f.statuses) - 1
		}
		status = f.statuses[n]
	}
	return openai.Run{ID: "run_1", ThreadID: threadID, Status: status, LastError: f.lastError}
}

func (f *fakeAssistantAPI) ListMessage(_ context.Context, _ string, _ *int, _ *string, _ *string, _ *string, runID *string) (openai.MessagesList, error) {
	if runID != nil {
		f.listedRunID = *runID
	}
	return f.messages, f.listErr
}

func (f *fakeAssistantAPI) GetFile(_ context.Context, fileID string) (openai.File, error) {
	name, ok := f.files[fileID]
	if !ok {
		return openai.File{}, &openai.APIError{Message: "no such file", HTTPStatusCode: http.StatusNotFound}
	}
	return openai.File{ID: fileID, FileName: name}, nil
}

func textMessages(value string, annotations ...any) openai.MessagesList {
	return openai.MessagesList{Messages: []openai.Message{{
		ID:   "msg_1",
		Role: "assistant",
		Content: []openai.MessageContent{{
			Type: "text",
			Text: &openai.MessageText{Value: value, Annotations: annotations},
		}},
	}}}
}

func fileCitation(marker, fileID string) map[string]any {
	return map[string]any{
		"type":          "file_citation",
		"text":          marker,
		"file_citation": map[string]any{"file_id": fileID},
	}
}

func newTestAssistant(api AssistantAPI, timeout time.Duration) *AssistantClient {
	return newAssistantClient(api, config.AssistantConfig{
		AssistantID:  "asst_1",
		PollInterval: time.Millisecond,
		Timeout:      timeout,
	}, config.DefaultMessages())
}

func TestAssistantAnswerFormatsCitations(t *testing.T) {
	api := &fakeAssistantAPI{
		statuses: []openai.RunStatus{openai.RunStatusQueued, openai.RunStatusInProgress, openai.RunStatusCompleted},
		messages: textMessages("多喝水【4:0†source】並規律運動【4:1†source】",
			fileCitation("【4:0†source】", "file-a"),
			fileCitation("【4:1†source】", "file-b"),
		),
		files: map[string]string{"file-a": "衛教手冊.pdf", "file-b": "運動指南.pdf"},
	}

	reply := newTestAssistant(api, time.Second).Answer(context.Background(), "血糖高怎麼辦")

	if reply.Outcome != Answered {
		t.Fatalf("unexpected outcome: %s", reply.Outcome)
	}
	want := "多喝水[0]並規律運動[1]\n\n[0] 衛教手冊.pdf\n[1] 運動指南.pdf"
	if reply.Text != want {
		t.Fatalf("reply = %q, want %q", reply.Text, want)
	}
	if api.threadContent != "血糖高怎麼辦。請用中文回答。" {
		t.Fatalf("unexpected thread content: %q", api.threadContent)
	}
	if api.listedRunID != "run_1" {
		t.Fatalf("messages should be listed for the run, got %q", api.listedRunID)
	}
	if api.retrieved < 2 {
		t.Fatalf("expected polling until completion, retrieved %d times", api.retrieved)
	}
}

func TestAssistantAnswerFallsBackToFileID(t *testing.T) {
	api := &fakeAssistantAPI{
		messages: textMessages("答案【1】", fileCitation("【1】", "file-missing")),
	}

	reply := newTestAssistant(api, time.Second).Answer(context.Background(), "q")
	if reply.Text != "答案[0]\n\n[0] file-missing" {
		t.Fatalf("unexpected reply: %q", reply.Text)
	}
}

func TestAssistantAnswerWithoutAnnotations(t *testing.T) {
	api := &fakeAssistantAPI{messages: textMessages("請定期回診。")}

	reply := newTestAssistant(api, time.Second).Answer(context.Background(), "q")
	if reply.Outcome != Answered || reply.Text != "請定期回診。" {
		t.Fatalf("unexpected reply: %+v", reply)
	}
}

func TestAssistantAnswerAPIErrorIsAbsorbed(t *testing.T) {
	api := &fakeAssistantAPI{
		createThreadErr: &openai.APIError{Code: "rate_limit_exceeded", Message: "slow down", HTTPStatusCode: http.StatusTooManyRequests},
	}

	reply := newTestAssistant(api, time.Second).Answer(context.Background(), "q")
	if reply.Outcome != BackendFailure {
		t.Fatalf("unexpected outcome: %s", reply.Outcome)
	}
	if reply.Text != config.DefaultMessages().BackendFailure {
		t.Fatalf("unexpected text: %q", reply.Text)
	}
}

func TestAssistantAnswerFailedRunIsBackendFailure(t *testing.T) {
	api := &fakeAssistantAPI{
		statuses:  []openai.RunStatus{openai.RunStatusInProgress, openai.RunStatusFailed},
		lastError: &openai.RunLastError{Code: "rate_limit_exceeded", Message: "quota"},
	}

	reply := newTestAssistant(api, time.Second).Answer(context.Background(), "q")
	if reply.Outcome != BackendFailure {
		t.Fatalf("unexpected outcome: %s", reply.Outcome)
	}
}

func TestAssistantAnswerTransportErrorIsUnexpected(t *testing.T) {
	api := &fakeAssistantAPI{createThreadErr: errors.New("connection reset by peer")}

	reply := newTestAssistant(api, time.Second).Answer(context.Background(), "q")
	if reply.Outcome != UnexpectedFailure {
		t.Fatalf("unexpected outcome: %s", reply.Outcome)
	}
	if reply.Text != config.DefaultMessages().UnexpectedFailure {
		t.Fatalf("unexpected text: %q", reply.Text)
	}
}

func TestAssistantAnswerTimeoutIsUnexpected(t *testing.T) {
	api := &fakeAssistantAPI{statuses: []openai.RunStatus{openai.RunStatusInProgress}}

	reply := newTestAssistant(api, 20*time.Millisecond).Answer(context.Background(), "q")
	if reply.Outcome != UnexpectedFailure {
		t.Fatalf("unexpected outcome: %s", reply.Outcome)
	}
}

func TestAssistantAnswerRequiresActionIsUnexpected(t *testing.T) {
	api := &fakeAssistantAPI{statuses: []openai.RunStatus{openai.RunStatusRequiresAction}}

	reply := newTestAssistant(api, time.Second).Answer(context.Background(), "q")
	if reply.Outcome != UnexpectedFailure {
		t.Fatalf("unexpected outcome: %s", reply.Outcome)
	}
}

func TestAssistantAnswerEmptyResultIsNoAnswer(t *testing.T) {
	api := &fakeAssistantAPI{}

	reply := newTestAssistant(api, time.Second).Answer(context.Background(), "q")
	if reply.Outcome != NoAnswer {
		t.Fatalf("unexpected outcome: %s", reply.Outcome)
	}
	if reply.Text != config.DefaultMessages().NoAnswer {
		t.Fatalf("unexpected text: %q", reply.Text)
	}
}

func TestAssistantAnswerMalformedAnnotationsIsUnexpected(t *testing.T) {
	api := &fakeAssistantAPI{messages: textMessages("answer", "not-an-object")}

	reply := newTestAssistant(api, time.Second).Answer(context.Background(), "q")
	if reply.Outcome != UnexpectedFailure {
		t.Fatalf("unexpected outcome: %s", reply.Outcome)
	}
}

func TestNewAssistantClientRequiresCredentials(t *testing.T) {
	if _, err := NewAssistantClient(config.AssistantConfig{}, config.DefaultMessages()); err == nil {
		t.Fatal("expected error without credentials")
	}

	client, err := NewAssistantClient(config.AssistantConfig{APIKey: "sk-test", AssistantID: "asst_1"}, config.DefaultMessages())
	if err != nil {
		t.Fatalf("NewAssistantClient err: %v", err)
	}
	if !strings.HasPrefix(client.assistantID, "asst_") {
		t.Fatalf("unexpected assistant id: %s", client.assistantID)
	}
}
