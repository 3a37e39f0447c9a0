package models

import "path/filepath"

// State is a queue item's lifecycle position.
type State string

const (
	StateQueued     State = "QUEUED"
	StateProcessing State = "PROCESSING"
	StateSucceeded  State = "SUCCEEDED"
	StateFailed     State = "FAILED"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool { return s == StateSucceeded || s == StateFailed }

// QueueItem is one filing document picked up from the queue directory.
type QueueItem struct {
	Path  string
	State State
}

// Name is the file name without directory.
func (q QueueItem) Name() string { return filepath.Base(q.Path) }
