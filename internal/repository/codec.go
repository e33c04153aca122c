package repository

import (
	"encoding/json"
	"fmt"

	"github.com/blockhaven/ticketd/internal/domain"
)

// messageBlobVersion is the current wire version of the serialized thread.
// Bump it when the envelope changes shape; decode refuses versions it does
// not know so a schema migration cannot be skipped silently.
const messageBlobVersion = 1

// messageBlob is the envelope stored in the tickets.messages column. The
// thread is not independently queryable; it travels as one opaque field.
type messageBlob struct {
	Version  int              `json:"v"`
	Messages []domain.Message `json:"messages"`
}

// encodeMessages serializes a thread for storage.
func encodeMessages(messages []domain.Message) ([]byte, error) {
	blob := messageBlob{Version: messageBlobVersion, Messages: messages}
	data, err := json.Marshal(blob)
	if err != nil {
		return nil, fmt.Errorf("encode messages: %w", err)
	}
	return data, nil
}

// decodeMessages restores a thread from its stored form.
func decodeMessages(data []byte) ([]domain.Message, error) {
	var blob messageBlob
	if err := json.Unmarshal(data, &blob); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	if blob.Version != messageBlobVersion {
		return nil, fmt.Errorf("decode messages: unsupported blob version %d", blob.Version)
	}
	return blob.Messages, nil
}
