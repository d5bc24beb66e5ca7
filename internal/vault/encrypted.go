package vault

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"vfm-go/internal/vfm"
)

// ErrLocked is returned when encrypted content is read before Unlock.
var ErrLocked = errors.New("blob store is locked: passphrase required")

const sealedMimeType = "application/octet-stream"

// EncryptedVault encrypts blobs before handing them to another BlobStore.
// The plaintext meta travels inside the ciphertext, so the inner store
// only sees the blob id, the ciphertext size and the upload time. Writes
// need only the public key; reads need Unlock.
//
// Sealed layout, before encryption: a 4-byte big-endian meta length, the
// JSON meta, then the content.
type EncryptedVault struct {
	inner vfm.BlobStore
	enc   vfm.Encryptor
	urls  *URLRegistry

	mu  sync.RWMutex
	dec vfm.DecryptionContext
}

var _ vfm.BlobStore = (*EncryptedVault)(nil)

// NewEncryptedVault wraps inner. Object URLs are always minted from urls,
// since a URL from the inner store would serve ciphertext.
func NewEncryptedVault(inner vfm.BlobStore, enc vfm.Encryptor, urls *URLRegistry) *EncryptedVault {
	if urls == nil {
		urls = NewURLRegistry()
	}
	return &EncryptedVault{inner: inner, enc: enc, urls: urls}
}

// Unlock opens the private key so content can be read.
func (v *EncryptedVault) Unlock(passphrase string) error {
	dec, err := v.enc.Unlock(passphrase)
	if err != nil {
		return fmt.Errorf("unlocking blob store: %w", err)
	}
	v.mu.Lock()
	v.dec = dec
	v.mu.Unlock()
	return nil
}

// Locked reports whether reads still need Unlock.
func (v *EncryptedVault) Locked() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.dec == nil
}

func (v *EncryptedVault) Init(ctx context.Context) error {
	return v.inner.Init(ctx)
}

func (v *EncryptedVault) StoreFile(ctx context.Context, meta vfm.BlobMeta, r io.Reader) error {
	data, sum, err := readContent(r, meta.Size)
	if err != nil {
		return err
	}
	meta.Checksum = sum

	header, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encoding blob meta: %w", err)
	}
	var plain bytes.Buffer
	binary.Write(&plain, binary.BigEndian, uint32(len(header)))
	plain.Write(header)
	plain.Write(data)

	var sealed bytes.Buffer
	if err := v.enc.Encrypt(&plain, &sealed); err != nil {
		return fmt.Errorf("encrypting blob %s: %w", meta.ID, err)
	}

	outer := vfm.BlobMeta{
		ID:         meta.ID,
		Size:       int64(sealed.Len()),
		MimeType:   sealedMimeType,
		UploadedAt: meta.UploadedAt,
	}
	return v.inner.StoreFile(ctx, outer, &sealed)
}

func (v *EncryptedVault) GetFile(ctx context.Context, id string) (*vfm.StoredBlob, error) {
	v.mu.RLock()
	dec := v.dec
	v.mu.RUnlock()
	if dec == nil {
		return nil, ErrLocked
	}

	sealed, err := v.inner.GetFile(ctx, id)
	if err != nil || sealed == nil {
		return nil, err
	}

	var plain bytes.Buffer
	if err := dec.Decrypt(bytes.NewReader(sealed.Data), &plain); err != nil {
		return nil, fmt.Errorf("decrypting blob %s: %w", id, err)
	}
	return unseal(id, plain.Bytes())
}

// GetFileURL decrypts the blob and mints a URL for the plaintext.
func (v *EncryptedVault) GetFileURL(ctx context.Context, id string) (*vfm.ObjectURL, error) {
	blob, err := v.GetFile(ctx, id)
	if err != nil || blob == nil {
		return nil, err
	}
	return v.urls.Mint(blob), nil
}

func (v *EncryptedVault) DeleteFile(ctx context.Context, id string) error {
	return v.inner.DeleteFile(ctx, id)
}

func (v *EncryptedVault) ValidateSetup() error {
	if !v.enc.IsConfigured() {
		return fmt.Errorf("encryption keys are not set up")
	}
	return v.inner.ValidateSetup()
}

// URLs returns the registry this vault mints object URLs from.
func (v *EncryptedVault) URLs() *URLRegistry {
	return v.urls
}

func unseal(id string, plain []byte) (*vfm.StoredBlob, error) {
	if len(plain) < 4 {
		return nil, fmt.Errorf("blob %s is corrupt: truncated header", id)
	}
	n := binary.BigEndian.Uint32(plain[:4])
	if uint64(n) > uint64(len(plain)-4) {
		return nil, fmt.Errorf("blob %s is corrupt: header length %d", id, n)
	}

	var meta vfm.BlobMeta
	if err := json.Unmarshal(plain[4:4+n], &meta); err != nil {
		return nil, fmt.Errorf("blob %s is corrupt: %w", id, err)
	}
	data := plain[4+n:]
	if err := verify(meta, data); err != nil {
		return nil, err
	}
	return &vfm.StoredBlob{BlobMeta: meta, Data: data}, nil
}
