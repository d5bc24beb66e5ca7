package vault

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"vfm-go/internal/vfm"
)

// DefaultPresignTTL is how long a presigned object URL stays valid.
const DefaultPresignTTL = 15 * time.Minute

// S3Options configures an S3Vault.
type S3Options struct {
	Bucket string
	Prefix string
	Region string

	// Endpoint points the client at an S3-compatible server and switches
	// to path-style addressing.
	Endpoint string

	AccessKeyID     string
	SecretAccessKey string

	PresignTTL time.Duration
}

// S3Vault stores blobs in an S3 bucket, mirroring the filesystem layout:
// <prefix>/content/<blobID> and <prefix>/meta/<blobID>.json. Object URLs
// are presigned GET URLs and need no release.
type S3Vault struct {
	name       string
	bucket     string
	prefix     string
	presignTTL time.Duration

	client   *s3.Client
	uploader *manager.Uploader
	presign  *s3.PresignClient
}

var _ vfm.BlobStore = (*S3Vault)(nil)

// NewS3Vault builds a vault from opts, loading credentials from the
// default AWS chain unless static keys are given.
func NewS3Vault(ctx context.Context, name string, opts S3Options) (*S3Vault, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 vault requires a bucket")
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Vault(name, client, opts), nil
}

func newS3Vault(name string, client *s3.Client, opts S3Options) *S3Vault {
	ttl := opts.PresignTTL
	if ttl <= 0 {
		ttl = DefaultPresignTTL
	}
	return &S3Vault{
		name:       name,
		bucket:     opts.Bucket,
		prefix:     opts.Prefix,
		presignTTL: ttl,
		client:     client,
		uploader:   manager.NewUploader(client),
		presign:    s3.NewPresignClient(client),
	}
}

func (v *S3Vault) Init(context.Context) error { return nil }

func (v *S3Vault) StoreFile(ctx context.Context, meta vfm.BlobMeta, r io.Reader) error {
	if err := checkID(meta.ID); err != nil {
		return err
	}
	data, sum, err := readContent(r, meta.Size)
	if err != nil {
		return err
	}
	meta.Checksum = sum

	contentType := meta.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err = v.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(v.bucket),
		Key:         aws.String(v.contentKey(meta.ID)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("uploading content %s: %w", meta.ID, err)
	}

	metaData, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encoding blob meta: %w", err)
	}
	_, err = v.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(v.bucket),
		Key:         aws.String(v.metaKey(meta.ID)),
		Body:        bytes.NewReader(metaData),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("uploading meta %s: %w", meta.ID, err)
	}
	return nil
}

func (v *S3Vault) GetFile(ctx context.Context, id string) (*vfm.StoredBlob, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}

	metaData, err := v.getObject(ctx, v.metaKey(id))
	if err != nil || metaData == nil {
		return nil, err
	}
	var meta vfm.BlobMeta
	if err := json.Unmarshal(metaData, &meta); err != nil {
		return nil, fmt.Errorf("decoding blob meta %s: %w", id, err)
	}

	data, err := v.getObject(ctx, v.contentKey(id))
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("blob %s has meta but no content", id)
	}
	if err := verify(meta, data); err != nil {
		return nil, err
	}
	return &vfm.StoredBlob{BlobMeta: meta, Data: data}, nil
}

// GetFileURL presigns a GET for the content object.
func (v *S3Vault) GetFileURL(ctx context.Context, id string) (*vfm.ObjectURL, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}

	_, err := v.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(v.metaKey(id)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("checking blob %s: %w", id, err)
	}

	req, err := v.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(v.contentKey(id)),
	}, s3.WithPresignExpires(v.presignTTL))
	if err != nil {
		return nil, fmt.Errorf("presigning blob %s: %w", id, err)
	}
	return vfm.NewObjectURL(req.URL, nil), nil
}

// DeleteFile removes the meta object, then the content. S3 deletes of
// missing keys succeed.
func (v *S3Vault) DeleteFile(ctx context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	for _, key := range []string{v.metaKey(id), v.contentKey(id)} {
		_, err := v.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(v.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return fmt.Errorf("deleting %s: %w", key, err)
		}
	}
	return nil
}

// ValidateSetup checks that the bucket exists and is reachable with the
// configured credentials.
func (v *S3Vault) ValidateSetup() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := v.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(v.bucket)}); err != nil {
		return fmt.Errorf("s3 bucket %s not accessible: %w", v.bucket, err)
	}
	return nil
}

func (v *S3Vault) contentKey(id string) string {
	return path.Join(v.prefix, "content", id)
}

func (v *S3Vault) metaKey(id string) string {
	return path.Join(v.prefix, "meta", id+".json")
}

// getObject returns the object's bytes, or nil if the key does not exist.
func (v *S3Vault) getObject(ctx context.Context, key string) ([]byte, error) {
	out, err := v.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	return data, nil
}

func isNotFound(err error) bool {
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noKey) || errors.As(err, &notFound)
}
