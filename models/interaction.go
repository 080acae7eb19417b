package models

import "time"

// InteractionEvent is the append-only audit record of a single view or skip.
type InteractionEvent struct {
	EventID    string    `json:"eventId"`
	QuestionID string    `json:"questionId"`
	CategoryID string    `json:"categoryId"`
	Action     Action    `json:"action"`
	SessionID  string    `json:"sessionId"`
	UserID     string    `json:"userId,omitempty"`
	IPAddress  string    `json:"ipAddress,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
