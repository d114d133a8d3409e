package domain

import "time"

// ChatMessage is one turn stored inside a chat transcript.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chat is a persisted conversation transcript owned by one user.
type Chat struct {
	ID        string
	UserID    string
	Title     string
	Messages  []ChatMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ChatSummary is the list-view projection of a chat.
type ChatSummary struct {
	ID        string
	Title     string
	UpdatedAt time.Time
}
