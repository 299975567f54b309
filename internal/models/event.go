package models

import "time"

type EventLevel string

const (
	LevelInfo    EventLevel = "INFO"
	LevelWarning EventLevel = "WARNING"
	LevelError   EventLevel = "ERROR"
	LevelAdmin   EventLevel = "ADMIN"
)

// Event is one audit log entry.
type Event struct {
	ID        string     `json:"id" db:"id"`
	Level     EventLevel `json:"level" db:"level"`
	Message   string     `json:"message" db:"message"`
	UserID    *int64     `json:"userId,omitempty" db:"user_id"`
	Timestamp time.Time  `json:"timestamp" db:"timestamp"`
}
