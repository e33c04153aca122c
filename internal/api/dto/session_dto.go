package dto

import "time"

// OpenSessionRequest is presented by the game-server bridge: the shared key
// plus the player the session is for.
type OpenSessionRequest struct {
	BridgeKey string `json:"bridge_key"`
	Name      string `json:"name"`
	Elevated  bool   `json:"elevated"`
	Server    string `json:"server"`
}

// SessionResponse payload.
type SessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NoticeResponse is one buffered notice drained by polling clients.
type NoticeResponse struct {
	Kind   string    `json:"kind"`
	Ticket string    `json:"ticket"`
	Actor  string    `json:"actor"`
	Status string    `json:"status,omitempty"`
	SentAt time.Time `json:"sent_at"`
}
