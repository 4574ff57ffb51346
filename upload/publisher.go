// Package upload publishes archived artifacts to external nightly storage.
// Credentials are injected by the pipeline's secrets manager and stay opaque
// to everything else: the publisher consumes them, nothing logs them.
package upload

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/strandlabs/strand/artifact"
	"github.com/strandlabs/strand/errors"
	"github.com/strandlabs/strand/secrets"
)

// Publisher uploads artifacts to an S3 bucket under a fixed key prefix.
type Publisher struct {
	client S3API
	bucket string
	prefix string
}

// Result describes a completed publish.
type Result struct {
	// Bucket and Key locate the published object.
	Bucket string
	Key    string

	// ETag is the object's entity tag as reported by S3.
	ETag string

	// Size is the uploaded byte count.
	Size int64

	// Duration is the wall time the upload took.
	Duration time.Duration
}

// New creates a Publisher over an existing S3 client.
func New(client S3API, bucket, prefix string) *Publisher {
	return &Publisher{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

// NewFromSecret creates a Publisher authenticated with an injected
// credentials secret of the form "ACCESS_KEY_ID:SECRET_ACCESS_KEY".
// A nil secret falls back to the ambient AWS credential chain.
func NewFromSecret(ctx context.Context, bucket, prefix, region string, cred *secrets.Secret) (*Publisher, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}

	if cred != nil {
		accessKey, secretKey, found := strings.Cut(cred.String(), ":")
		if !found || accessKey == "" || secretKey == "" {
			return nil, errors.New(
				errors.CodeUploadFailed,
				"upload credentials must be ACCESS_KEY_ID:SECRET_ACCESS_KEY",
			)
		}
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUploadFailed, "failed to load AWS configuration")
	}

	return New(s3.NewFromConfig(cfg), bucket, prefix), nil
}

// Publish uploads an artifact's primary file under the given key, joined to
// the publisher's prefix.
func (p *Publisher) Publish(ctx context.Context, art *artifact.Artifact, key string) (*Result, error) {
	path, err := art.Primary()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUploadFailed, "artifact has nothing to publish")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WrapWithContext(
			err,
			errors.CodeUploadFailed,
			"failed to open artifact file",
			map[string]any{"artifact": art.Name},
		)
	}
	defer f.Close()

	fullKey := key
	if p.prefix != "" {
		fullKey = p.prefix + "/" + strings.TrimPrefix(key, "/")
	}

	start := time.Now()
	input := &s3.PutObjectInput{
		Bucket:        aws.String(p.bucket),
		Key:           aws.String(fullKey),
		Body:          f,
		ContentType:   aws.String(art.ContentType),
		ContentLength: aws.Int64(art.Size),
		Metadata: map[string]string{
			"strand-run":      art.RunID,
			"strand-artifact": art.Name,
		},
	}

	output, err := p.client.PutObject(ctx, input)
	if err != nil {
		return nil, errors.WrapWithContext(
			err,
			errors.CodeUploadFailed,
			"failed to publish artifact",
			map[string]any{"artifact": art.Name, "bucket": p.bucket, "key": fullKey},
		)
	}

	return &Result{
		Bucket:   p.bucket,
		Key:      fullKey,
		ETag:     aws.ToString(output.ETag),
		Size:     art.Size,
		Duration: time.Since(start),
	}, nil
}

// ExpandKey substitutes the supported placeholders in an upload key:
// {date} becomes the given time's YYYY-MM-DD.
func ExpandKey(key string, at time.Time) string {
	return strings.ReplaceAll(key, "{date}", at.UTC().Format("2006-01-02"))
}

// String implements fmt.Stringer for log lines.
func (r *Result) String() string {
	return fmt.Sprintf("s3://%s/%s (%d bytes)", r.Bucket, r.Key, r.Size)
}
