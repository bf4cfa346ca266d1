package webhook

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// maxTextLength is the longest text message LINE accepts.
const maxTextLength = 5000

// LineReplier delivers replies through the LINE Messaging API.
type LineReplier struct {
	api *messaging_api.MessagingApiAPI
}

// NewLineReplier creates a replier authenticated with the channel access token.
func NewLineReplier(channelAccessToken string) (*LineReplier, error) {
	api, err := messaging_api.NewMessagingApiAPI(
		channelAccessToken,
		messaging_api.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}),
	)
	if err != nil {
		return nil, fmt.Errorf("create messaging api client: %w", err)
	}
	return &LineReplier{api: api}, nil
}

// Reply sends text as a single text message.
func (r *LineReplier) Reply(ctx context.Context, replyToken, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := r.api.ReplyMessage(&messaging_api.ReplyMessageRequest{
		ReplyToken: replyToken,
		Messages: []messaging_api.MessageInterface{
			messaging_api.TextMessage{Text: truncate(text, maxTextLength)},
		},
	})
	if err != nil {
		return fmt.Errorf("reply message: %w", err)
	}
	return nil
}

func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
