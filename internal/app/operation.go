package app

import "time"

// Operation tracks the CLI command being run. Every log line it produces
// carries its ID, and Close logs how it ended.
type Operation struct {
	ID         string
	Name       string
	Parameters string
	Status     string // "success" or "error"
	Started    time.Time
}

// NewOperation creates an operation that started at now. Its ID is the
// start time in UTC, to the second.
func NewOperation(name, parameters string, now time.Time) *Operation {
	return &Operation{
		ID:         now.UTC().Format("20060102T150405Z"),
		Name:       name,
		Parameters: parameters,
		Status:     "success",
		Started:    now,
	}
}

// Fail marks the operation as failed.
func (op *Operation) Fail() {
	op.Status = "error"
}

// Failed reports whether Fail was called.
func (op *Operation) Failed() bool {
	return op.Status == "error"
}
