package artifact

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strandlabs/strand/errors"
)

func writeFixture(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "artifacts"))
	require.NoError(t, err)
	return store
}

func TestArchiveAndGet(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	src := t.TempDir()
	writeFixture(t, src, "timing-1.html", "<html>timing</html>")
	writeFixture(t, src, "timing-2.html", "<html>more timing</html>")

	art, err := store.Archive(ctx, "run-1", "cargo-timings",
		[]string{filepath.Join(src, "timing-*.html")}, 30*24*time.Hour)
	require.NoError(t, err)

	assert.Equal(t, "run-1", art.RunID)
	assert.Equal(t, "cargo-timings", art.Name)
	assert.Len(t, art.Files, 2)
	assert.Equal(t, int64(len("<html>timing</html>")+len("<html>more timing</html>")), art.Size)
	assert.Contains(t, art.ContentType, "html")

	got, err := store.Get("run-1", "cargo-timings")
	require.NoError(t, err)
	assert.Equal(t, art.Name, got.Name)
	assert.Equal(t, art.Size, got.Size)

	primary, err := got.Primary()
	require.NoError(t, err)
	assert.FileExists(t, primary)
}

func TestArchiveNameUniquePerRun(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	src := t.TempDir()
	writeFixture(t, src, "bin.tar.gz", "binary")
	pattern := []string{filepath.Join(src, "bin.tar.gz")}

	_, err := store.Archive(ctx, "run-1", "release", pattern, 0)
	require.NoError(t, err)

	_, err = store.Archive(ctx, "run-1", "release", pattern, 0)
	assert.True(t, errors.HasCode(err, errors.CodeArtifactConflict))

	// Same name under a different run is fine.
	_, err = store.Archive(ctx, "run-2", "release", pattern, 0)
	assert.NoError(t, err)
}

func TestArchiveNoMatches(t *testing.T) {
	store := openStore(t)
	_, err := store.Archive(context.Background(), "run-1", "empty",
		[]string{filepath.Join(t.TempDir(), "nothing-*")}, 0)
	assert.True(t, errors.HasCode(err, errors.CodeArtifactNotFound))
}

func TestGetMissing(t *testing.T) {
	store := openStore(t)
	_, err := store.Get("run-1", "ghost")
	assert.True(t, errors.HasCode(err, errors.CodeArtifactNotFound))
}

func TestList(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	src := t.TempDir()
	path := writeFixture(t, src, "a.txt", "a")

	_, err := store.Archive(ctx, "run-1", "first", []string{path}, 0)
	require.NoError(t, err)
	_, err = store.Archive(ctx, "run-1", "second", []string{path}, 0)
	require.NoError(t, err)

	arts, err := store.List("run-1")
	require.NoError(t, err)
	assert.Len(t, arts, 2)

	arts, err = store.List("run-none")
	require.NoError(t, err)
	assert.Empty(t, arts)
}

func TestSweepRemovesOnlyExpired(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "artifacts")
	store, err := Open(root)
	require.NoError(t, err)

	src := t.TempDir()
	path := writeFixture(t, src, "a.txt", "a")

	expired, err := store.Archive(ctx, "run-old", "stale", []string{path}, time.Hour)
	require.NoError(t, err)
	_, err = store.Archive(ctx, "run-new", "fresh", []string{path}, 0)
	require.NoError(t, err)

	// Backdate the expiry below the sweep threshold.
	expired.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	data, err := json.MarshalIndent(expired, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(expired.Dir, metadataFile), data, 0o644))

	// Reopening sweeps.
	_, err = Open(root)
	require.NoError(t, err)

	_, err = store.Get("run-old", "stale")
	assert.True(t, errors.HasCode(err, errors.CodeArtifactNotFound))
	_, err = store.Get("run-new", "fresh")
	assert.NoError(t, err)
}
