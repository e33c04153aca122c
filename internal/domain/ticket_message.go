package domain

import "time"

// Message is a single entry in a ticket thread. Messages carry their send
// time; thread position doubles as the ordering key.
type Message struct {
	Sender string    `json:"sender"`
	Text   string    `json:"text"`
	SentAt time.Time `json:"sent_at"`
}

// NewMessage stamps a message with the current time.
func NewMessage(sender, text string) Message {
	return Message{Sender: sender, Text: text, SentAt: time.Now().UTC()}
}
