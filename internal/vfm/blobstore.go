package vfm

import (
	"context"
	"io"
	"time"
)

// BlobMeta describes a stored blob. Size and Checksum describe the
// plaintext bytes even when the backend encrypts at rest.
type BlobMeta struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	MimeType   string    `json:"type"`
	UploadedAt time.Time `json:"uploadedAt"`
	Checksum   string    `json:"checksum,omitempty"` // blake3, hex
}

// StoredBlob is a blob read back from a BlobStore.
type StoredBlob struct {
	BlobMeta
	Data []byte
}

// ObjectURL is a transient reference to blob bytes for display or
// download. The caller must call Release once the URL is no longer in use.
type ObjectURL struct {
	URL     string
	release func()
}

// NewObjectURL wraps url with the function that frees it.
func NewObjectURL(url string, release func()) *ObjectURL {
	return &ObjectURL{URL: url, release: release}
}

// Release frees the resources held by the URL. Calling it twice is safe.
func (u *ObjectURL) Release() {
	if u == nil || u.release == nil {
		return
	}
	u.release()
	u.release = nil
}

// BlobStore keeps raw file bytes keyed by blob id, independent of file
// metadata. Nothing ties a blob's lifetime to the File that references it;
// callers delete both.
type BlobStore interface {
	// Init prepares the backend. It is safe to call more than once.
	Init(ctx context.Context) error

	// StoreFile stores meta.Size bytes read from r under meta.ID,
	// replacing any blob with that id.
	StoreFile(ctx context.Context, meta BlobMeta, r io.Reader) error

	// GetFile returns the blob with the given id, or nil if there is none.
	GetFile(ctx context.Context, id string) (*StoredBlob, error)

	// GetFileURL returns a transient reference to the blob's bytes, or nil
	// if there is no such blob.
	GetFileURL(ctx context.Context, id string) (*ObjectURL, error)

	// DeleteFile removes the blob. Deleting an absent id succeeds.
	DeleteFile(ctx context.Context, id string) error

	// ValidateSetup verifies that the backend is reachable and configured.
	ValidateSetup() error
}
