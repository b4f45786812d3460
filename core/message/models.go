package message

import (
	"time"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/attachment"
)

type Kind string

const (
	KindText  Kind = "text"
	KindAudio Kind = "audio"
)

// Message is immutable once sent; only its sender may delete it.
type Message struct {
	ID         string  `json:"id"`
	SenderID   string  `json:"sender_id"`
	ReceiverID string  `json:"receiver_id"`
	Content    *string `json:"content"`
	Caption    *string `json:"caption"`
	AudioURL   *string `json:"audio_url"`
	*attachment.Ref
	FileURL     string    `json:"file_url,omitempty"`
	MessageType Kind      `json:"message_type"`
	Duration    int       `json:"duration,omitempty"` // seconds, audio only
	CreatedAt   time.Time `json:"created_at"`         // UTC
}

// NewTextMessage needs content, an attachment, or both.
type NewTextMessage struct {
	ReceiverID string  `json:"receiver_id" form:"receiver_id" validate:"required"`
	Content    *string `json:"content" form:"content" validate:"omitempty,max=5000"`
}

func (nm *NewTextMessage) clean() {
	nm.ReceiverID = core.CleanString(nm.ReceiverID)
	nm.Content = core.CleanStringPtr(nm.Content)
}

type NewAudioMessage struct {
	ReceiverID string  `json:"receiver_id" form:"receiverId" validate:"required"`
	Duration   float64 `json:"duration" form:"duration" validate:"min=0"` // seconds
	Caption    *string `json:"caption" form:"caption" validate:"omitempty,max=1000"`
}

func (nm *NewAudioMessage) clean() {
	nm.ReceiverID = core.CleanString(nm.ReceiverID)
	nm.Caption = core.CleanStringPtr(nm.Caption)
}
