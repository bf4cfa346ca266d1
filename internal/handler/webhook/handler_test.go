package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/renkeyss/cch-bot/internal/model/relay"
)

const testSecret = "channel-secret"

type echoDispatcher struct {
	mu     sync.Mutex
	events []relay.InboundEvent
}

func (d *echoDispatcher) Handle(_ context.Context, event relay.InboundEvent) relay.DispatchResult {
	d.mu.Lock()
	d.events = append(d.events, event)
	d.mu.Unlock()
	return relay.DispatchResult{ReplyText: "re:" + event.Text}
}

type spyReplier struct {
	mu      sync.Mutex
	replies map[string][]string
}

func (s *spyReplier) Reply(_ context.Context, replyToken, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.replies == nil {
		s.replies = make(map[string][]string)
	}
	s.replies[replyToken] = append(s.replies[replyToken], text)
	return nil
}

func setupRouter() (*chi.Mux, *echoDispatcher, *spyReplier) {
	dispatcher := &echoDispatcher{}
	replier := &spyReplier{}
	handler := New(testSecret, dispatcher, replier, time.Second)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, dispatcher, replier
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func textEvent(source, replyToken, text string) string {
	return `{"type":"message","mode":"active","timestamp":1714550400000,` +
		`"source":` + source + `,"webhookEventId":"01HX` + replyToken + `",` +
		`"deliveryContext":{"isRedelivery":false},"replyToken":"` + replyToken + `",` +
		`"message":{"id":"1","type":"text","quoteToken":"q","text":"` + text + `"}}`
}

func callback(events ...string) []byte {
	return []byte(`{"destination":"Ubot","events":[` + strings.Join(events, ",") + `]}`)
}

func post(r http.Handler, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/callback", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(signatureHeader, signature)
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestCallbackMissingSignature(t *testing.T) {
	r, dispatcher, _ := setupRouter()

	resp := post(r, callback(), "")
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	if resp.Body.String() != "signature missing" {
		t.Fatalf("unexpected body %q", resp.Body.String())
	}
	if len(dispatcher.events) != 0 {
		t.Fatal("nothing should be dispatched")
	}
}

func TestCallbackInvalidSignature(t *testing.T) {
	r, dispatcher, _ := setupRouter()
	body := callback(textEvent(`{"type":"user","userId":"U1"}`, "rt1", "hello"))

	resp := post(r, body, sign([]byte("tampered")))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	if resp.Body.String() != "invalid signature" {
		t.Fatalf("unexpected body %q", resp.Body.String())
	}
	if len(dispatcher.events) != 0 {
		t.Fatal("nothing should be dispatched")
	}
}

func TestCallbackDispatchesEveryTextEvent(t *testing.T) {
	r, dispatcher, replier := setupRouter()
	body := callback(
		textEvent(`{"type":"user","userId":"U1"}`, "rt1", "first"),
		textEvent(`{"type":"user","userId":"U2"}`, "rt2", "second"),
	)

	resp := post(r, body, sign(body))
	if resp.Code != http.StatusOK || resp.Body.String() != "OK" {
		t.Fatalf("unexpected response %d %q", resp.Code, resp.Body.String())
	}

	if got := replier.replies["rt1"]; len(got) != 1 || got[0] != "re:first" {
		t.Fatalf("unexpected replies for rt1: %v", got)
	}
	if got := replier.replies["rt2"]; len(got) != 1 || got[0] != "re:second" {
		t.Fatalf("unexpected replies for rt2: %v", got)
	}

	users := []string{dispatcher.events[0].UserID, dispatcher.events[1].UserID}
	sort.Strings(users)
	if users[0] != "U1" || users[1] != "U2" {
		t.Fatalf("unexpected users: %v", users)
	}
	if dispatcher.events[0].ID == "" {
		t.Fatal("expected an event id")
	}
}

func TestCallbackIgnoresNonTextEvents(t *testing.T) {
	r, dispatcher, replier := setupRouter()
	follow := `{"type":"follow","mode":"active","timestamp":1714550400000,` +
		`"source":{"type":"user","userId":"U1"},"webhookEventId":"01HXF",` +
		`"deliveryContext":{"isRedelivery":false},"replyToken":"rt-follow","follow":{"isUnblocked":false}}`
	sticker := `{"type":"message","mode":"active","timestamp":1714550400000,` +
		`"source":{"type":"user","userId":"U1"},"webhookEventId":"01HXS",` +
		`"deliveryContext":{"isRedelivery":false},"replyToken":"rt-sticker",` +
		`"message":{"id":"2","type":"sticker","quoteToken":"q","packageId":"1","stickerId":"1","stickerResourceType":"STATIC"}}`
	body := callback(follow, sticker)

	resp := post(r, body, sign(body))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if len(dispatcher.events) != 0 || len(replier.replies) != 0 {
		t.Fatalf("non-text events must be ignored: %v %v", dispatcher.events, replier.replies)
	}
}

func TestCallbackGroupWithoutUserFallsBackToGroup(t *testing.T) {
	r, dispatcher, _ := setupRouter()
	body := callback(textEvent(`{"type":"group","groupId":"G1"}`, "rt1", "hi"))

	resp := post(r, body, sign(body))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if len(dispatcher.events) != 1 || dispatcher.events[0].UserID != "G1" {
		t.Fatalf("unexpected events: %+v", dispatcher.events)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("血糖控制", 2); got != "血糖" {
		t.Fatalf("unexpected truncation %q", got)
	}
	if got := truncate("ok", 5); got != "ok" {
		t.Fatalf("unexpected truncation %q", got)
	}
}
