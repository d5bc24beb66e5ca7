package vault

import (
	"context"
	"io"
	"sync"

	"vfm-go/internal/vfm"
)

// MemoryVault is an in-memory implementation of vfm.BlobStore, useful for
// tests and throwaway sessions. This implementation is safe for concurrent use.
type MemoryVault struct {
	name  string
	urls  *URLRegistry
	mu    sync.RWMutex
	blobs map[string]*vfm.StoredBlob
}

var _ vfm.BlobStore = (*MemoryVault)(nil)

// NewMemoryVault creates an empty vault. URLs are minted from urls, or
// from a private registry when urls is nil.
func NewMemoryVault(name string, urls *URLRegistry) *MemoryVault {
	if urls == nil {
		urls = NewURLRegistry()
	}
	return &MemoryVault{
		name:  name,
		urls:  urls,
		blobs: make(map[string]*vfm.StoredBlob),
	}
}

func (m *MemoryVault) Init(context.Context) error { return nil }

// StoreFile stores the content under meta.ID, replacing any earlier blob.
func (m *MemoryVault) StoreFile(_ context.Context, meta vfm.BlobMeta, r io.Reader) error {
	if err := checkID(meta.ID); err != nil {
		return err
	}
	data, sum, err := readContent(r, meta.Size)
	if err != nil {
		return err
	}
	meta.Checksum = sum

	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[meta.ID] = &vfm.StoredBlob{BlobMeta: meta, Data: data}
	return nil
}

// GetFile returns a copy of the blob, or nil.
func (m *MemoryVault) GetFile(_ context.Context, id string) (*vfm.StoredBlob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	blob, ok := m.blobs[id]
	if !ok {
		return nil, nil
	}
	return &vfm.StoredBlob{BlobMeta: blob.BlobMeta, Data: append([]byte(nil), blob.Data...)}, nil
}

func (m *MemoryVault) GetFileURL(ctx context.Context, id string) (*vfm.ObjectURL, error) {
	blob, err := m.GetFile(ctx, id)
	if err != nil || blob == nil {
		return nil, err
	}
	return m.urls.Mint(blob), nil
}

func (m *MemoryVault) DeleteFile(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, id)
	return nil
}

// ValidateSetup always succeeds for in-memory vault.
func (m *MemoryVault) ValidateSetup() error {
	return nil
}

// URLs returns the registry this vault mints object URLs from.
func (m *MemoryVault) URLs() *URLRegistry {
	return m.urls
}

// Len returns the number of blobs held.
func (m *MemoryVault) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}
