package webhook

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"

	"github.com/renkeyss/cch-bot/internal/model/relay"
	"github.com/renkeyss/cch-bot/pkg/utils"
)

const signatureHeader = "X-Line-Signature"

// Dispatcher 处理一条规范化后的消息
type Dispatcher interface {
	Handle(ctx context.Context, event relay.InboundEvent) relay.DispatchResult
}

// Replier 通过 reply token 投递回复，每个 token 只能使用一次
type Replier interface {
	Reply(ctx context.Context, replyToken, text string) error
}

// Handler LINE webhook 的HTTP处理器
type Handler struct {
	channelSecret string
	dispatcher    Dispatcher
	replier       Replier
	timeout       time.Duration
}

// New 创建 webhook 处理器
func New(channelSecret string, dispatcher Dispatcher, replier Replier, timeout time.Duration) *Handler {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &Handler{
		channelSecret: channelSecret,
		dispatcher:    dispatcher,
		replier:       replier,
		timeout:       timeout,
	}
}

// RegisterRoutes 注册回调路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/callback", h.handleCallback)
}

// handleCallback 校验签名、解析事件并逐个分发
func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get(signatureHeader) == "" {
		utils.RespondText(w, http.StatusBadRequest, "signature missing")
		return
	}

	cb, err := webhook.ParseRequest(h.channelSecret, r)
	if err != nil {
		if errors.Is(err, webhook.ErrInvalidSignature) {
			log.Printf("[webhook] rejected request with invalid signature")
			utils.RespondText(w, http.StatusBadRequest, "invalid signature")
			return
		}
		log.Printf("[webhook] failed to parse callback: %v", err)
		utils.RespondText(w, http.StatusBadRequest, "invalid request")
		return
	}

	events := make([]relay.InboundEvent, 0, len(cb.Events))
	for _, raw := range cb.Events {
		if event, ok := canonicalize(raw); ok {
			events = append(events, event)
		}
	}

	// 回复完成后再返回 200，避免平台在处理期间重投
	var wg sync.WaitGroup
	for _, event := range events {
		wg.Add(1)
		go func(event relay.InboundEvent) {
			defer wg.Done()
			h.process(r.Context(), event)
		}(event)
	}
	wg.Wait()

	utils.RespondText(w, http.StatusOK, "OK")
}

func (h *Handler) process(parent context.Context, event relay.InboundEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), h.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			log.Printf("[webhook] recovered panic for event %s: %v", event.ID, r)
		}
	}()

	result := h.dispatcher.Handle(ctx, event)
	if err := h.replier.Reply(ctx, event.ReplyToken, result.ReplyText); err != nil {
		log.Printf("[webhook] failed to reply to event %s: %v", event.ID, err)
	}
}

// canonicalize 只接受文本消息事件，其余事件忽略
func canonicalize(raw webhook.EventInterface) (relay.InboundEvent, bool) {
	e, ok := raw.(webhook.MessageEvent)
	if !ok {
		return relay.InboundEvent{}, false
	}
	message, ok := e.Message.(webhook.TextMessageContent)
	if !ok || e.ReplyToken == "" {
		return relay.InboundEvent{}, false
	}

	return relay.InboundEvent{
		ID:         uuid.NewString(),
		UserID:     sourceID(e.Source),
		Text:       message.Text,
		ReplyToken: e.ReplyToken,
		ReceivedAt: time.Now().UTC(),
	}, true
}

// sourceID 优先使用用户ID，群组或聊天室中缺失时退回到会话ID
func sourceID(source webhook.SourceInterface) string {
	switch s := source.(type) {
	case webhook.UserSource:
		return s.UserId
	case webhook.GroupSource:
		if s.UserId != "" {
			return s.UserId
		}
		return s.GroupId
	case webhook.RoomSource:
		if s.UserId != "" {
			return s.UserId
		}
		return s.RoomId
	default:
		return ""
	}
}
