package storage

import (
	"context"
	"fmt"
	"os"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog/log"
)

type uploadAPI interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type headBucketAPI interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3Mirror copies stored uploads to a bucket.
type S3Mirror struct {
	uploader uploadAPI
	client   headBucketAPI
	bucket   string
	prefix   string
}

// NewS3Mirror loads AWS config from the default chain.
func NewS3Mirror(ctx context.Context, bucket, prefix string) (*S3Mirror, error) {
	cfg, err := awscfg.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	cli := s3.NewFromConfig(cfg)
	return &S3Mirror{uploader: manager.NewUploader(cli), client: cli, bucket: bucket, prefix: prefix}, nil
}

func (m *S3Mirror) Bucket() string { return m.bucket }

// Key returns the object key used for a stored file name.
func (m *S3Mirror) Key(name string) string { return path.Join(m.prefix, name) }

// Mirror uploads the file at localPath and returns the s3:// reference.
func (m *S3Mirror) Mirror(ctx context.Context, localPath, name, originalName string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	key := m.Key(name)
	_, err = m.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:            aws.String(m.bucket),
		Key:               aws.String(key),
		Body:              f,
		ContentType:       aws.String("application/pdf"),
		ChecksumAlgorithm: s3types.ChecksumAlgorithmSha256,
		Metadata:          map[string]string{"name": originalName},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}
	ref := "s3://" + m.bucket + "/" + key
	log.Info().Str("key", key).Str("bucket", m.bucket).Msg("mirrored upload to S3")
	return ref, nil
}

// Ping checks the bucket is reachable with the current credentials.
func (m *S3Mirror) Ping(ctx context.Context) error {
	_, err := m.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(m.bucket)})
	return err
}
