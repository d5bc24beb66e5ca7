package encryption

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"vfm-go/internal/config"
)

func newTestAgeEncryptor(t *testing.T) *AgeEncryptor {
	t.Helper()
	dir := t.TempDir()
	return NewAgeEncryptor(config.EncryptionConfig{
		Type:           "age",
		PublicKeyPath:  filepath.Join(dir, "keys", "vfm.pub"),
		PrivateKeyPath: filepath.Join(dir, "keys", "vfm.key"),
	})
}

func roundTrip(t *testing.T, e *AgeEncryptor, passphrase string, input []byte) []byte {
	t.Helper()

	var encrypted bytes.Buffer
	if err := e.Encrypt(bytes.NewReader(input), &encrypted); err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if len(input) > 0 && bytes.Contains(encrypted.Bytes(), input) {
		t.Error("ciphertext contains the plaintext")
	}

	dc, err := e.Unlock(passphrase)
	if err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	var decrypted bytes.Buffer
	if err := dc.Decrypt(&encrypted, &decrypted); err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	return decrypted.Bytes()
}

func TestAgeEncryptor_Setup(t *testing.T) {
	t.Parallel()
	e := newTestAgeEncryptor(t)

	if e.IsConfigured() {
		t.Fatal("IsConfigured() = true before Setup, want false")
	}
	if err := e.Setup("test-passphrase"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if !e.IsConfigured() {
		t.Error("IsConfigured() = false after Setup, want true")
	}

	info, err := os.Stat(e.privateKeyPath)
	if err != nil {
		t.Fatalf("stat private key: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("private key permissions = %o, want 600", perm)
	}

	if err := e.Setup("other"); !errors.Is(err, ErrAlreadyConfigured) {
		t.Errorf("second Setup() error = %v, want ErrAlreadyConfigured", err)
	}
}

func TestAgeEncryptor_SetupRequiresPassphrase(t *testing.T) {
	t.Parallel()
	e := newTestAgeEncryptor(t)

	if err := e.Setup(""); err == nil {
		t.Error("Setup(\"\") expected error")
	}
	if e.IsConfigured() {
		t.Error("IsConfigured() = true after failed Setup")
	}
}

func TestAgeEncryptor_EncryptDecryptRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input []byte
	}{
		{name: "document", input: []byte("%PDF-1.7 quarterly report")},
		{name: "empty", input: []byte{}},
		{name: "binary data", input: []byte{0x00, 0xff, 0x01, 0xfe}},
		{name: "large data", input: bytes.Repeat([]byte("abcdef"), 100000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := newTestAgeEncryptor(t)
			if err := e.Setup("test-passphrase"); err != nil {
				t.Fatalf("Setup() error = %v", err)
			}

			got := roundTrip(t, e, "test-passphrase", tt.input)
			if !bytes.Equal(got, tt.input) {
				t.Errorf("round-trip failed: got %d bytes, want %d bytes", len(got), len(tt.input))
			}
		})
	}
}

func TestAgeEncryptor_UnlockWrongPassphrase(t *testing.T) {
	t.Parallel()

	e := newTestAgeEncryptor(t)
	if err := e.Setup("correct-passphrase"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	_, err := e.Unlock("wrong-passphrase")
	if !errors.Is(err, ErrWrongPassphrase) {
		t.Errorf("Unlock() error = %v, want ErrWrongPassphrase", err)
	}
}

func TestAgeEncryptor_ChangePassphrase(t *testing.T) {
	t.Parallel()

	e := newTestAgeEncryptor(t)
	if err := e.Setup("old"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	var encrypted bytes.Buffer
	if err := e.Encrypt(bytes.NewReader([]byte("kept across rekey")), &encrypted); err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	if err := e.ChangePassphrase("wrong", "new"); !errors.Is(err, ErrWrongPassphrase) {
		t.Fatalf("ChangePassphrase() with wrong passphrase error = %v, want ErrWrongPassphrase", err)
	}
	if err := e.ChangePassphrase("old", "new"); err != nil {
		t.Fatalf("ChangePassphrase() error = %v", err)
	}

	if _, err := e.Unlock("old"); !errors.Is(err, ErrWrongPassphrase) {
		t.Errorf("Unlock(old) error = %v, want ErrWrongPassphrase", err)
	}
	dc, err := e.Unlock("new")
	if err != nil {
		t.Fatalf("Unlock(new) error = %v", err)
	}
	var decrypted bytes.Buffer
	if err := dc.Decrypt(&encrypted, &decrypted); err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if decrypted.String() != "kept across rekey" {
		t.Errorf("Decrypt() = %q, want %q", decrypted.String(), "kept across rekey")
	}
}

func TestAgeEncryptor_BeforeSetup(t *testing.T) {
	t.Parallel()

	e := newTestAgeEncryptor(t)

	var buf bytes.Buffer
	if err := e.Encrypt(bytes.NewReader([]byte("data")), &buf); err == nil {
		t.Error("Encrypt() before Setup should return error")
	}
	if _, err := e.Unlock("passphrase"); err == nil {
		t.Error("Unlock() before Setup should return error")
	}
}
