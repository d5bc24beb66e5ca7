package testutil

import (
	"vfm-go/internal/vault"
)

// NewTestBlobStore creates a new in-memory blob store with its own URL
// registry.
func NewTestBlobStore() *vault.MemoryVault {
	return vault.NewMemoryVault("test-blobs", nil)
}
