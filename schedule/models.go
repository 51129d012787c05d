// Package schedule stores weekday/time scheduled messages and dispatches them
// once they fall due.
package schedule

import "time"

// Message is a scheduled notification. It moves from pending to sent exactly
// once, by a dispatcher sweep.
type Message struct {
	ID            string     `json:"id"`
	Message       string     `json:"message"`
	ScheduledDay  string     `json:"scheduled_day"`
	ScheduledTime string     `json:"scheduled_time"`
	ScheduledDate time.Time  `json:"scheduled_date"`
	IsSent        bool       `json:"is_sent"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Request is a caller's scheduling request.
type Request struct {
	Message string `json:"message" validate:"required"`
	Day     string `json:"day" validate:"required"`
	Time    string `json:"time" validate:"required"`
}

// SweepResult counts the outcome of one dispatch sweep.
type SweepResult struct {
	Due        int
	Dispatched int
	Failed     int
}
