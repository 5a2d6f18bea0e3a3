package domain

import "encoding/json"

// Message is the canonical receive-message payload.
type Message struct {
	ID           string    `json:"id"`
	TempID       string    `json:"tempId,omitempty"`
	RoomID       RoomID    `json:"roomId" validate:"required"`
	SenderID     UserID    `json:"senderId,omitempty"`
	SenderName   string    `json:"senderName,omitempty"`
	SenderAvatar string    `json:"senderAvatar,omitempty"`
	Content      string    `json:"content,omitempty" validate:"required_without_all=FileURL ImageURL VideoURL AudioURL"`
	FileURL      string    `json:"fileUrl,omitempty"`
	ImageURL     string    `json:"imageUrl,omitempty"`
	VideoURL     string    `json:"videoUrl,omitempty"`
	AudioURL     string    `json:"audioUrl,omitempty"`
	FileName     string    `json:"fileName,omitempty"`
	FileSize     int64     `json:"fileSize,omitempty"`
	MessageType  string    `json:"messageType,omitempty"`
	CreatedAt    string    `json:"createdAt,omitempty"`
	ReplyTo      *ReplyRef `json:"replyTo,omitempty"`
}

// UnmarshalJSON accepts "_id" as an alias of "id" and keeps replyTo loose
// until it is normalized.
func (m *Message) UnmarshalJSON(data []byte) error {
	type plain Message
	var aux struct {
		plain
		AltID   string          `json:"_id"`
		ReplyTo json.RawMessage `json:"replyTo"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*m = Message(aux.plain)
	if m.ID == "" {
		m.ID = aux.AltID
	}
	m.ReplyTo = nil
	if len(aux.ReplyTo) > 0 && string(aux.ReplyTo) != "null" {
		var loose LooseReply
		if err := json.Unmarshal(aux.ReplyTo, &loose); err == nil {
			m.ReplyTo = loose.Normalize()
		}
	}
	return nil
}

// ReplyRef is the fixed four-field reference to a replied-to message.
type ReplyRef struct {
	ID           string `json:"id"`
	Content      string `json:"content"`
	SenderName   string `json:"senderName"`
	SenderAvatar string `json:"senderAvatar,omitempty"`
}

// LooseReply is any of the reply shapes callers send.
type LooseReply struct {
	ID           string `json:"id"`
	AltID        string `json:"_id"`
	Content      string `json:"content"`
	SenderName   string `json:"senderName"`
	SenderAvatar string `json:"senderAvatar"`
	Sender       *struct {
		Name   string `json:"name"`
		Avatar string `json:"avatar"`
	} `json:"sender"`
}

// Normalize re-shapes a loose reply; messages without text become "Media".
func (l LooseReply) Normalize() *ReplyRef {
	ref := &ReplyRef{
		ID:           l.ID,
		Content:      l.Content,
		SenderName:   l.SenderName,
		SenderAvatar: l.SenderAvatar,
	}
	if ref.ID == "" {
		ref.ID = l.AltID
	}
	if l.Sender != nil {
		if ref.SenderName == "" {
			ref.SenderName = l.Sender.Name
		}
		if ref.SenderAvatar == "" {
			ref.SenderAvatar = l.Sender.Avatar
		}
	}
	if ref.Content == "" {
		ref.Content = "Media"
	}
	return ref
}

type Typing struct {
	RoomID   RoomID `json:"roomId" validate:"required"`
	UserID   UserID `json:"userId"`
	UserName string `json:"userName,omitempty"`
}

type MessageEdit struct {
	MessageID string `json:"messageId" validate:"required"`
	Content   string `json:"content,omitempty"`
	RoomID    RoomID `json:"roomId" validate:"required"`
}

type Reactions struct {
	MessageID string          `json:"messageId" validate:"required"`
	RoomID    RoomID          `json:"roomId" validate:"required"`
	Reactions json.RawMessage `json:"reactions"`
}

type Receipt struct {
	MessageID string `json:"messageId" validate:"required"`
	UserID    UserID `json:"userId,omitempty"`
	RoomID    RoomID `json:"roomId" validate:"required"`
}
