package gateway

import (
	"context"

	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/model"
)

// SendResult is the gateway acknowledgement for one outbound message.
type SendResult struct {
	MessageID string `json:"id_message"`
}

// Health is the gateway instance connection state.
type Health struct {
	State      string `json:"state"`
	Authorized bool   `json:"authorized"`
}

// Gateway is the messaging transport used for outbound sends and
// conversation polling.
type Gateway interface {
	// SendMessage sends a plain text message to the chat.
	SendMessage(ctx context.Context, chatID, text string) (*SendResult, error)
	// SendFileByURL sends a media attachment by public URL with an
	// optional caption.
	SendFileByURL(ctx context.Context, chatID, fileURL, fileName, caption string) (*SendResult, error)
	// FetchRecentHistory returns up to limit messages of the chat in
	// chronological order, oldest first.
	FetchRecentHistory(ctx context.Context, chatID string, limit int) ([]model.InboundMessage, error)
	// CheckConnectionHealth reports whether the instance is authorized
	// to send.
	CheckConnectionHealth(ctx context.Context) (*Health, error)
}
