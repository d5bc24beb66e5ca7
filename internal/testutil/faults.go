package testutil

import (
	"context"
	"errors"
	"io"
	"sync"

	"vfm-go/internal/vfm"
)

// ErrInjected is returned by operations a FaultyBlobStore was told to fail.
var ErrInjected = errors.New("injected failure")

// FaultyBlobStore wraps a BlobStore and fails selected operations on
// demand, so tests can drive the partial-failure paths.
type FaultyBlobStore struct {
	inner vfm.BlobStore

	mu         sync.Mutex
	failStore  bool
	failDelete bool
	deleted    []string
}

var _ vfm.BlobStore = (*FaultyBlobStore)(nil)

func NewFaultyBlobStore(inner vfm.BlobStore) *FaultyBlobStore {
	return &FaultyBlobStore{inner: inner}
}

// FailStore makes StoreFile fail until called again with false.
func (f *FaultyBlobStore) FailStore(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failStore = fail
}

// FailDelete makes DeleteFile fail until called again with false.
func (f *FaultyBlobStore) FailDelete(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failDelete = fail
}

// Deleted returns the blob ids DeleteFile was called with, in order,
// including calls that failed.
func (f *FaultyBlobStore) Deleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

func (f *FaultyBlobStore) Init(ctx context.Context) error {
	return f.inner.Init(ctx)
}

func (f *FaultyBlobStore) StoreFile(ctx context.Context, meta vfm.BlobMeta, r io.Reader) error {
	f.mu.Lock()
	fail := f.failStore
	f.mu.Unlock()
	if fail {
		return ErrInjected
	}
	return f.inner.StoreFile(ctx, meta, r)
}

func (f *FaultyBlobStore) GetFile(ctx context.Context, id string) (*vfm.StoredBlob, error) {
	return f.inner.GetFile(ctx, id)
}

func (f *FaultyBlobStore) GetFileURL(ctx context.Context, id string) (*vfm.ObjectURL, error) {
	return f.inner.GetFileURL(ctx, id)
}

func (f *FaultyBlobStore) DeleteFile(ctx context.Context, id string) error {
	f.mu.Lock()
	f.deleted = append(f.deleted, id)
	fail := f.failDelete
	f.mu.Unlock()
	if fail {
		return ErrInjected
	}
	return f.inner.DeleteFile(ctx, id)
}

func (f *FaultyBlobStore) ValidateSetup() error {
	return f.inner.ValidateSetup()
}
