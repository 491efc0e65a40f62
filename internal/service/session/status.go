// Package session provides the process-wide session registry, the customer
// status machine and per-stream chunk sequence monitoring.
package session

import "fmt"

// Status represents the lifecycle status of a customer or session.
type Status int

const (
	// StatusActive - stream is running, audio is being processed.
	StatusActive Status = iota
	// StatusStopped - customer sent an explicit audio_stream_stop.
	StatusStopped
	// StatusClosed - connection terminated (cleanly or not).
	StatusClosed
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusStopped:
		return "stopped"
	case StatusClosed:
		return "closed"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// IsTerminal returns true if the status is terminal (stopped or closed).
// A session closes when every one of its customers is terminal.
func (s Status) IsTerminal() bool {
	return s == StatusStopped || s == StatusClosed
}
