package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/vendora/marketplace/pkg/messaging"
)

// ChatMessageEvent is a message posted into a buyer conversation,
// e.g. the per-item shipping update a seller pushes on dispatch.
type ChatMessageEvent struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	SenderID       uuid.UUID `json:"sender_id"`
	Text           string    `json:"text"`
	ImageURI       string    `json:"image_uri,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func (e ChatMessageEvent) Subject() string {
	return messaging.ChatMessagesSubject
}

func (e ChatMessageEvent) Payload() ([]byte, error) {
	return json.Marshal(e)
}
