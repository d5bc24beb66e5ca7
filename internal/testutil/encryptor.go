package testutil

import (
	"vfm-go/internal/encryption"
	"vfm-go/internal/vfm"
)

// NewTestEncryptor creates a new test encryptor that unlocks with
// passphrase. An empty passphrase unlocks with anything.
func NewTestEncryptor(passphrase string) vfm.Encryptor {
	if passphrase == "" {
		return encryption.NewTestEncryptor()
	}
	return encryption.NewTestEncryptorWithPassphrase(passphrase)
}
