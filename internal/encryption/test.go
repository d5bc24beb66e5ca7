package encryption

import (
	"bytes"
	"fmt"
	"io"

	"vfm-go/internal/vfm"
)

// testHeader marks TestEncryptor output so it never equals the plaintext.
var testHeader = []byte("VFMENC\x00\x01")

// TestEncryptor is a deterministic, crypto-free Encryptor for tests. It
// prefixes testHeader on Encrypt and strips it on Decrypt. When built with
// a passphrase, Unlock checks it.
type TestEncryptor struct {
	passphrase  string
	setupCalled bool
}

var _ vfm.Encryptor = (*TestEncryptor)(nil)

// NewTestEncryptor returns a TestEncryptor that unlocks with any passphrase.
func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

// NewTestEncryptorWithPassphrase returns a TestEncryptor whose Unlock only
// accepts passphrase.
func NewTestEncryptorWithPassphrase(passphrase string) *TestEncryptor {
	return &TestEncryptor{passphrase: passphrase}
}

func (e *TestEncryptor) Setup(passphrase string) error {
	e.setupCalled = true
	if e.passphrase == "" {
		e.passphrase = passphrase
	}
	return nil
}

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(testHeader); err != nil {
		return fmt.Errorf("writing test header: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (e *TestEncryptor) Unlock(passphrase string) (vfm.DecryptionContext, error) {
	if e.passphrase != "" && passphrase != e.passphrase {
		return nil, ErrWrongPassphrase
	}
	return &TestDecryptionContext{}, nil
}

func (e *TestEncryptor) IsConfigured() bool {
	return true
}

// TestDecryptionContext strips the header added by TestEncryptor.
type TestDecryptionContext struct{}

var _ vfm.DecryptionContext = (*TestDecryptionContext)(nil)

func (c *TestDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	header := make([]byte, len(testHeader))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading test header: %w", err)
	}
	if !bytes.Equal(header, testHeader) {
		return fmt.Errorf("invalid test encryption header")
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}
