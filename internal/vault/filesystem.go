package vault

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"lukechampine.com/blake3"

	"vfm-go/internal/vfm"
)

// FileSystemVault is a filesystem-based implementation of vfm.BlobStore.
// It stores each blob as two files:
//
//	<root>/
//	  content/
//	    <blobID>       (raw bytes)
//	  meta/
//	    <blobID>.json  (vfm.BlobMeta)
//
// The content file is written first, so a blob is only visible once its
// meta file exists.
type FileSystemVault struct {
	name       string
	root       string
	contentDir string
	metaDir    string
	urls       *URLRegistry

	mu          sync.Mutex
	initialized bool
	unavailable bool
}

var _ vfm.BlobStore = (*FileSystemVault)(nil)

// NewFileSystemVault creates a vault rooted at root. Directories are
// created by Init.
func NewFileSystemVault(name, root string, urls *URLRegistry) *FileSystemVault {
	if urls == nil {
		urls = NewURLRegistry()
	}
	return &FileSystemVault{
		name:       name,
		root:       root,
		contentDir: filepath.Join(root, "content"),
		metaDir:    filepath.Join(root, "meta"),
		urls:       urls,
	}
}

// Init creates the directory structure. If it cannot, the vault is marked
// unavailable and every later operation fails with
// vfm.ErrStorageUnavailable.
func (v *FileSystemVault) Init(context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.initialized {
		return nil
	}
	v.initialized = true

	for _, dir := range []string{v.contentDir, v.metaDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			v.unavailable = true
			return nil
		}
	}
	return nil
}

func (v *FileSystemVault) ready(ctx context.Context) error {
	if err := v.Init(ctx); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.unavailable {
		return vfm.ErrStorageUnavailable
	}
	return nil
}

// StoreFile writes the content and then its meta, replacing any earlier
// blob with the same id.
func (v *FileSystemVault) StoreFile(ctx context.Context, meta vfm.BlobMeta, r io.Reader) error {
	if err := v.ready(ctx); err != nil {
		return err
	}
	if err := checkID(meta.ID); err != nil {
		return err
	}

	h := blake3.New(32, nil)
	if err := v.writeFile(v.contentPath(meta.ID), io.TeeReader(r, h), meta.Size); err != nil {
		return err
	}
	meta.Checksum = hex.EncodeToString(h.Sum(nil))

	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encoding blob meta: %w", err)
	}
	return v.writeFile(v.metaPath(meta.ID), bytes.NewReader(data), int64(len(data)))
}

// GetFile reads a blob back and verifies its checksum.
func (v *FileSystemVault) GetFile(ctx context.Context, id string) (*vfm.StoredBlob, error) {
	if err := v.ready(ctx); err != nil {
		return nil, err
	}
	if err := checkID(id); err != nil {
		return nil, err
	}

	meta, err := v.readMeta(id)
	if err != nil || meta == nil {
		return nil, err
	}

	data, err := os.ReadFile(v.contentPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("blob %s has meta but no content", id)
		}
		return nil, fmt.Errorf("failed to read content: %w", err)
	}
	if err := verify(*meta, data); err != nil {
		return nil, err
	}
	return &vfm.StoredBlob{BlobMeta: *meta, Data: data}, nil
}

func (v *FileSystemVault) GetFileURL(ctx context.Context, id string) (*vfm.ObjectURL, error) {
	blob, err := v.GetFile(ctx, id)
	if err != nil || blob == nil {
		return nil, err
	}
	return v.urls.Mint(blob), nil
}

// DeleteFile removes the meta file first, then the content.
func (v *FileSystemVault) DeleteFile(ctx context.Context, id string) error {
	if err := v.ready(ctx); err != nil {
		return err
	}
	if err := checkID(id); err != nil {
		return err
	}
	for _, p := range []string{v.metaPath(id), v.contentPath(id)} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", filepath.Base(p), err)
		}
	}
	return nil
}

// ValidateSetup verifies that the vault directories are accessible.
func (v *FileSystemVault) ValidateSetup() error {
	info, err := os.Stat(v.root)
	if err != nil {
		return fmt.Errorf("vault root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("vault root is not a directory: %s", v.root)
	}

	for _, dir := range []string{v.contentDir, v.metaDir} {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("vault directory not accessible: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("vault path is not a directory: %s", dir)
		}
	}
	return nil
}

// URLs returns the registry this vault mints object URLs from.
func (v *FileSystemVault) URLs() *URLRegistry {
	return v.urls
}

func (v *FileSystemVault) contentPath(id string) string {
	return filepath.Join(v.contentDir, id)
}

func (v *FileSystemVault) metaPath(id string) string {
	return filepath.Join(v.metaDir, id+".json")
}

func (v *FileSystemVault) readMeta(id string) (*vfm.BlobMeta, error) {
	data, err := os.ReadFile(v.metaPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read blob meta: %w", err)
	}
	var meta vfm.BlobMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decoding blob meta %s: %w", id, err)
	}
	return &meta, nil
}

// writeFile writes data from r to the specified path using atomic write (temp file + rename).
func (v *FileSystemVault) writeFile(destPath string, r io.Reader, expectedSize int64) error {
	// Same directory, so the rename cannot cross filesystems.
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	success = true
	return nil
}
