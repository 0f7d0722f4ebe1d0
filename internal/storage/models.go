package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Document is an uploaded source document awaiting or finished with rule
// extraction. Content is kept so the extraction job can be retried.
type Document struct {
	ID        string
	Name      string
	Type      string // text, markdown, csv, json, pdf, html
	Status    string // "pending", "extracted", "failed"
	RuleCount int
	Content   []byte
	CreatedAt time.Time
}

// Job is a queued unit of background work.
type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}
