package model

import "time"

// JournalEntry is the slice of an entry the worker and report renderer need.
// Full entry CRUD lives outside this service.
type JournalEntry struct {
	ID        string
	UserID    string
	Title     string
	Body      string
	CreatedAt time.Time
}

// MeditationSession is a completed sitting; only counted, never rendered.
type MeditationSession struct {
	ID          string
	UserID      string
	DurationSec int
	CompletedAt time.Time
}
