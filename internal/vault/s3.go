package vault

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"turnkeep/internal/archive"
	"turnkeep/internal/config"
)

// versionMetadataKey is the object metadata entry holding a manifest's
// version.
const versionMetadataKey = "turnkeep-version"

// S3Vault stores archive objects in an S3 bucket (or an S3-compatible
// endpoint) under an optional key prefix:
//
//	<prefix>/content/<checksum>
//	<prefix>/manifests/<campaign>.json
type S3Vault struct {
	name       string
	bucket     string
	prefix     string
	client     *s3.Client
	uploader   *manager.Uploader
	downloader *manager.Downloader
}

// NewS3Vault builds a vault from cfg. No request is made until the vault is
// used; call ValidateSetup to check access.
func NewS3Vault(ctx context.Context, cfg config.VaultConfig) (*S3Vault, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 vault requires s3_bucket to be set")
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.S3Region))
	}
	if cfg.S3AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Vault{
		name:       cfg.Name,
		bucket:     cfg.S3Bucket,
		prefix:     cfg.S3Prefix,
		client:     client,
		uploader:   manager.NewUploader(client),
		downloader: manager.NewDownloader(client),
	}, nil
}

// Name returns the configured vault name.
func (v *S3Vault) Name() string { return v.name }

// PutContent uploads content unless an object with that checksum exists.
func (v *S3Vault) PutContent(ctx context.Context, checksum string, r io.Reader, size int64) error {
	data, err := readSized(r, size)
	if err != nil {
		return err
	}
	key := v.contentKey(checksum)
	_, err = v.head(ctx, key)
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, archive.ErrNotFound):
		return err
	}
	return v.put(ctx, key, data, nil)
}

func (v *S3Vault) GetContent(ctx context.Context, checksum string, w io.Writer) error {
	return v.get(ctx, v.contentKey(checksum), w)
}

// PutManifest uploads a manifest with its version stored as object metadata.
func (v *S3Vault) PutManifest(ctx context.Context, campaignID string, r io.Reader, size int64, version int64) error {
	data, err := readSized(r, size)
	if err != nil {
		return err
	}
	return v.put(ctx, v.manifestKey(campaignID), data, map[string]string{
		versionMetadataKey: strconv.FormatInt(version, 10),
	})
}

func (v *S3Vault) GetManifest(ctx context.Context, campaignID string, w io.Writer) error {
	return v.get(ctx, v.manifestKey(campaignID), w)
}

// GetManifestVersion returns 0 if no manifest has been stored.
func (v *S3Vault) GetManifestVersion(ctx context.Context, campaignID string) (int64, error) {
	out, err := v.head(ctx, v.manifestKey(campaignID))
	if err != nil {
		if errors.Is(err, archive.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	raw, ok := out.Metadata[versionMetadataKey]
	if !ok {
		return 0, nil
	}
	version, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version: %w", err)
	}
	return version, nil
}

// ValidateSetup checks that the bucket exists and is reachable.
func (v *S3Vault) ValidateSetup(ctx context.Context) error {
	if _, err := v.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(v.bucket)}); err != nil {
		return fmt.Errorf("bucket %s not accessible: %w", v.bucket, err)
	}
	return nil
}

func (v *S3Vault) contentKey(checksum string) string {
	return path.Join(v.prefix, "content", checksum)
}

func (v *S3Vault) manifestKey(campaignID string) string {
	return path.Join(v.prefix, "manifests", campaignID+".json")
}

func (v *S3Vault) put(ctx context.Context, key string, data []byte, metadata map[string]string) error {
	_, err := v.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:   aws.String(v.bucket),
		Key:      aws.String(key),
		Body:     bytes.NewReader(data),
		Metadata: metadata,
	})
	if err != nil {
		return fmt.Errorf("uploading %s: %w", key, err)
	}
	return nil
}

func (v *S3Vault) get(ctx context.Context, key string, w io.Writer) error {
	buf := manager.NewWriteAtBuffer(nil)
	_, err := v.downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return fmt.Errorf("%s: %w", key, archive.ErrNotFound)
		}
		return fmt.Errorf("downloading %s: %w", key, err)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (v *S3Vault) head(ctx context.Context, key string) (*s3.HeadObjectOutput, error) {
	out, err := v.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("%s: %w", key, archive.ErrNotFound)
		}
		return nil, fmt.Errorf("checking %s: %w", key, err)
	}
	return out, nil
}

var _ archive.Vault = (*S3Vault)(nil)
