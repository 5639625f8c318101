package storage

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
	// Keep bounds the number of retained entries. 0 means 10000.
	Keep int
}

// RunEntry records one launch attempt.
// Keep it compact and schema-stable.
type RunEntry struct {
	ID        uuid.UUID `json:"id"`
	Line      int       `json:"line"`
	Source    string    `json:"source"`
	Command   string    `json:"command"`
	Scheduled time.Time `json:"scheduled"`
	Started   time.Time `json:"started"`
	PID       int       `json:"pid,omitempty"`
	CatchUp   bool      `json:"catch_up,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// OK reports whether the command was launched.
func (e RunEntry) OK() bool { return e.Error == "" }
