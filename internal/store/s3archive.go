package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ErrBucketUnreachable is returned by VerifyBucket when the configured
// archive bucket does not exist or is not accessible with the process's
// credentials.
var ErrBucketUnreachable = errors.New("s3 archive bucket unreachable")

// S3ArchiveStore is a read-only cold-storage mirror of a corpus's root path
// reference. The retrieval core never reads from it on the request hot
// path — it only backs the optional archival check a corpus's config can
// request at write time, generalized from objectstore.S3Store (whose
// Get/Put/List surface this domain has no use for) down to the one thing
// §6 asks for: confirming the bucket a corpus points at actually exists.
type S3ArchiveStore struct {
	client *s3.Client
}

// NewS3ArchiveStore builds the store from ambient AWS configuration
// (environment/shared-config credential chain — no corpus-specific
// credentials are ever accepted through the API).
func NewS3ArchiveStore(ctx context.Context, region string) (*S3ArchiveStore, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &S3ArchiveStore{client: s3.NewFromConfig(awsCfg)}, nil
}

// VerifyBucket confirms the named bucket exists and is reachable. It is
// called from /api/config's write path when a ScopedConfiguration sets
// Archive.S3Bucket, so a misconfigured archive target is rejected at
// save time rather than discovered later during an offline archival run.
func (s *S3ArchiveStore) VerifyBucket(ctx context.Context, bucket string) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err == nil {
		return nil
	}
	var notFound *s3types.NotFound
	if errors.As(err, &notFound) {
		return ErrBucketUnreachable
	}
	return fmt.Errorf("%w: %v", ErrBucketUnreachable, err)
}
