package upload_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strandlabs/strand/artifact"
	"github.com/strandlabs/strand/errors"
	"github.com/strandlabs/strand/secrets"
	"github.com/strandlabs/strand/upload"
)

// fakeS3 records PutObject calls.
type fakeS3 struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakeS3) PutObject(
	ctx context.Context,
	params *s3.PutObjectInput,
	optFns ...func(*s3.Options),
) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.input = params
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.body = body
	return &s3.PutObjectOutput{ETag: aws.String(`"abc123"`)}, nil
}

func archiveFixture(t *testing.T, content string) *artifact.Artifact {
	t.Helper()

	store, err := artifact.Open(filepath.Join(t.TempDir(), "store"))
	require.NoError(t, err)

	src := filepath.Join(t.TempDir(), "servo-latest.tar.gz")
	require.NoError(t, os.WriteFile(src, []byte(content), 0o644))

	art, err := store.Archive(context.Background(), "run-1", "linux-release-tarball", []string{src}, 0)
	require.NoError(t, err)
	return art
}

func TestPublish(t *testing.T) {
	fake := &fakeS3{}
	publisher := upload.New(fake, "servo-builds", "nightly")
	art := archiveFixture(t, "tarball-bytes")

	result, err := publisher.Publish(context.Background(), art, "linux/2026-08-23/servo-latest.tar.gz")
	require.NoError(t, err)

	assert.Equal(t, "servo-builds", aws.ToString(fake.input.Bucket))
	assert.Equal(t, "nightly/linux/2026-08-23/servo-latest.tar.gz", aws.ToString(fake.input.Key))
	assert.Equal(t, []byte("tarball-bytes"), fake.body)
	assert.Equal(t, art.ContentType, aws.ToString(fake.input.ContentType))
	assert.Equal(t, "run-1", fake.input.Metadata["strand-run"])

	assert.Equal(t, "servo-builds", result.Bucket)
	assert.Equal(t, `"abc123"`, result.ETag)
	assert.Equal(t, art.Size, result.Size)
}

func TestPublishNoPrefix(t *testing.T) {
	fake := &fakeS3{}
	publisher := upload.New(fake, "servo-builds", "")
	art := archiveFixture(t, "x")

	_, err := publisher.Publish(context.Background(), art, "key.tar.gz")
	require.NoError(t, err)
	assert.Equal(t, "key.tar.gz", aws.ToString(fake.input.Key))
}

func TestPublishClientError(t *testing.T) {
	fake := &fakeS3{err: assert.AnError}
	publisher := upload.New(fake, "servo-builds", "nightly")
	art := archiveFixture(t, "x")

	_, err := publisher.Publish(context.Background(), art, "key")
	assert.True(t, errors.HasCode(err, errors.CodeUploadFailed))
}

func TestNewFromSecretRejectsMalformedCredentials(t *testing.T) {
	cred := &secrets.Secret{Value: []byte("no-separator")}
	_, err := upload.NewFromSecret(context.Background(), "bucket", "", "us-east-1", cred)
	assert.True(t, errors.HasCode(err, errors.CodeUploadFailed))
}

func TestExpandKey(t *testing.T) {
	at := time.Date(2026, 8, 23, 4, 5, 6, 0, time.UTC)
	assert.Equal(t,
		"nightly/linux/2026-08-23/servo-latest.tar.gz",
		upload.ExpandKey("nightly/linux/{date}/servo-latest.tar.gz", at))
	assert.Equal(t, "static-key", upload.ExpandKey("static-key", at))
}
