package vault

import (
	"context"
	"fmt"

	"vfm-go/internal/config"
	"vfm-go/internal/vfm"
)

// NewBlobStoreFromConfig creates a BlobStore implementation based on the blobs config type.
// Local backends mint object URLs from urls.
func NewBlobStoreFromConfig(ctx context.Context, cfg config.BlobsConfig, urls *URLRegistry) (vfm.BlobStore, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryVault("memory", urls), nil
	case "filesystem":
		if cfg.Root == "" {
			return nil, fmt.Errorf("filesystem blob store requires root to be set")
		}
		return NewFileSystemVault("filesystem", cfg.Root, urls), nil
	case "s3":
		return NewS3Vault(ctx, "s3", S3Options{
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
	default:
		return nil, fmt.Errorf("unknown blob store type: %s", cfg.Type)
	}
}

// WithEncryption wraps store in an EncryptedVault when enc is non-nil.
func WithEncryption(store vfm.BlobStore, enc vfm.Encryptor, urls *URLRegistry) vfm.BlobStore {
	if enc == nil {
		return store
	}
	return NewEncryptedVault(store, enc, urls)
}
