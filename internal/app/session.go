package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Session is the login kept between CLI invocations.
type Session struct {
	Token   string    `toml:"token"`
	UserID  string    `toml:"user_id"`
	Email   string    `toml:"email"`
	Expires time.Time `toml:"expires"`
}

// SessionFile reads and writes the Session stored at Path.
type SessionFile struct {
	Path string
}

// Read returns the stored session, or nil if there is none.
func (f SessionFile) Read() (*Session, error) {
	var s Session
	if _, err := toml.DecodeFile(f.Path, &s); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading session file: %w", err)
	}
	if s.Token == "" {
		return nil, nil
	}
	return &s, nil
}

// Write replaces the stored session. The file is readable by its owner
// only.
func (f SessionFile) Write(s *Session) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return fmt.Errorf("creating session directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.Path), ".session-*")
	if err != nil {
		return fmt.Errorf("creating session file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("setting session file mode: %w", err)
	}
	if err := toml.NewEncoder(tmp).Encode(s); err != nil {
		tmp.Close()
		return fmt.Errorf("writing session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing session file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.Path); err != nil {
		return fmt.Errorf("replacing session file: %w", err)
	}
	return nil
}

// Clear removes the stored session. Clearing when there is none succeeds.
func (f SessionFile) Clear() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing session file: %w", err)
	}
	return nil
}
