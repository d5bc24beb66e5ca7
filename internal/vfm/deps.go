package vfm

import (
	"time"

	"github.com/google/uuid"
)

// Logger is the structured logger the managers write to.
// args are alternating key/value pairs, as with log/slog.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NopLogger discards everything.
type NopLogger struct{}

func NewNopLogger() *NopLogger { return &NopLogger{} }

func (*NopLogger) Debug(string, ...any) {}
func (*NopLogger) Info(string, ...any)  {}
func (*NopLogger) Warn(string, ...any)  {}
func (*NopLogger) Error(string, ...any) {}

// Clock supplies the current time so tests can pin it.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// IDGenerator mints record ids, blob ids and session tokens.
type IDGenerator interface {
	New() string
}

// UUIDGenerator returns random (v4) UUID strings.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.New().String() }
