package chat

import "encoding/json"

// MessageType tells which side of the conversation wrote a message.
type MessageType string

const (
	MessageTypeUser  MessageType = "user"
	MessageTypeAdmin MessageType = "admin"
)

// AnonymousSender is used when a message carries no sender name.
const AnonymousSender = "Anonymous"

// Message is one append-only entry in a chat session.
type Message struct {
	ID        string      `json:"id"`
	ChatID    string      `json:"chatId,omitempty"`
	Type      MessageType `json:"type"`
	Text      string      `json:"text"`
	Username  string      `json:"username,omitempty"`
	UserID    string      `json:"userId,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// UnmarshalJSON accepts the legacy "content" field when "text" is absent.
func (m *Message) UnmarshalJSON(data []byte) error {
	type plain Message
	var wire struct {
		plain
		Content string `json:"content"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*m = Message(wire.plain)
	if m.Text == "" {
		m.Text = wire.Content
	}
	return nil
}
