package relay

import "time"

// InboundEvent is one canonical text message handed over by a platform adapter.
// ReplyToken may be used exactly once to deliver the reply.
type InboundEvent struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Text       string    `json:"text"`
	ReplyToken string    `json:"-"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// DispatchResult is the single reply produced for an InboundEvent.
type DispatchResult struct {
	ReplyText string `json:"replyText"`
}
