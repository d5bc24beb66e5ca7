package vfm

import "io"

// Encryptor encrypts blob content at rest. Encrypting needs only the
// public key; reading content back needs the passphrase-protected private
// key, unlocked once per process.
type Encryptor interface {
	// Setup generates the key pair and protects the private key with
	// passphrase. Run once, from `vfm config init`.
	Setup(passphrase string) error

	// Encrypt reads plaintext from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock opens the private key. A wrong passphrase is an error.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured reports whether Setup has produced both keys.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key in memory only.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
