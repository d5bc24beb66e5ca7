package testutil

import (
	"testing"

	"vfm-go/internal/vault"
	"vfm-go/internal/vfm"
)

// Env is a fully wired set of managers over fresh in-memory stores.
type Env struct {
	Clock *StubClock
	IDs   *StubIDGenerator
	Store vfm.MetadataStore
	Blobs *FaultyBlobStore
	Mem   *vault.MemoryVault

	*vfm.Services
}

// NewEnv builds an Env. Blob faults can be switched on through Blobs.
func NewEnv(t *testing.T) *Env {
	t.Helper()

	clock := FixedClock()
	ids := NewStubIDGenerator()
	store := NewTestStore(t, clock)
	mem := NewTestBlobStore()
	blobs := NewFaultyBlobStore(mem)

	return &Env{
		Clock:    clock,
		IDs:      ids,
		Store:    store,
		Blobs:    blobs,
		Mem:      mem,
		Services: vfm.NewServices(store, blobs, vfm.NewNopLogger(), clock, ids, vfm.Options{}),
	}
}
