// Package artifact implements the local artifact store: named byte blobs a
// stage produces and later stages (or an external upload) consume. Artifact
// names are unique within a run; artifacts outlive their producing stage
// until retention expires them.
package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/gabriel-vasile/mimetype"

	"github.com/strandlabs/strand/errors"
)

// DefaultRetention applies to artifacts whose definition names no retention.
const DefaultRetention = 90 * 24 * time.Hour

// metadataFile is the per-artifact metadata sidecar.
const metadataFile = "metadata.json"

// Artifact is a named blob archived from a run.
type Artifact struct {
	// RunID scopes the artifact to its producing run.
	RunID string `json:"run_id"`

	// Name identifies the artifact within the run.
	Name string `json:"name"`

	// Files are the stored file names, relative to Dir.
	Files []string `json:"files"`

	// Dir is the directory holding the artifact's files.
	Dir string `json:"-"`

	// ContentType is the detected media type of the artifact's first file.
	ContentType string `json:"content_type"`

	// Size is the total stored size in bytes.
	Size int64 `json:"size"`

	// CreatedAt records when the artifact was archived.
	CreatedAt time.Time `json:"created_at"`

	// ExpiresAt is when retention allows the artifact to be swept.
	ExpiresAt time.Time `json:"expires_at"`
}

// Primary returns the absolute path of the artifact's first file, which for
// single-file artifacts (tarballs) is the artifact itself.
func (a *Artifact) Primary() (string, error) {
	if len(a.Files) == 0 {
		return "", errors.Newf(errors.CodeArtifactNotFound, "artifact %q has no files", a.Name)
	}
	return filepath.Join(a.Dir, a.Files[0]), nil
}

// Store is a filesystem-backed artifact store rooted at a single directory.
type Store struct {
	root string
}

// Open opens (creating if needed) a store at root and sweeps expired
// artifacts. An empty root places the store under the XDG cache directory.
func Open(root string) (*Store, error) {
	if root == "" {
		root = filepath.Join(xdg.CacheHome, "strand", "artifacts")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact store root: %w", err)
	}

	s := &Store{root: root}
	if err := s.sweepExpired(); err != nil {
		return nil, fmt.Errorf("failed to sweep expired artifacts: %w", err)
	}
	return s, nil
}

// Root returns the store's root directory.
func (s *Store) Root() string {
	return s.root
}

// Archive collects the files matched by the glob patterns into a new
// artifact. It fails with CodeArtifactConflict if the name was already
// archived for the run, and with CodeArtifactNotFound if no pattern matched
// anything.
func (s *Store) Archive(
	ctx context.Context,
	runID, name string,
	patterns []string,
	retention time.Duration,
) (*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("archive cancelled: %w", err)
	}
	if retention <= 0 {
		retention = DefaultRetention
	}

	dir := s.artifactDir(runID, name)
	if _, err := os.Stat(dir); err == nil {
		return nil, errors.WrapWithContext(
			nil,
			errors.CodeArtifactConflict,
			"artifact already archived for this run",
			map[string]any{"run": runID, "artifact": name},
		)
	}

	var matches []string
	for _, pattern := range patterns {
		found, err := filepath.Glob(pattern)
		if err != nil {
			return nil, errors.Newf(errors.CodeArtifactNotFound, "bad artifact pattern %q: %v", pattern, err)
		}
		matches = append(matches, found...)
	}
	if len(matches) == 0 {
		return nil, errors.WrapWithContext(
			nil,
			errors.CodeArtifactNotFound,
			"artifact patterns matched no files",
			map[string]any{"artifact": name, "patterns": patterns},
		)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}

	art := &Artifact{
		RunID:     runID,
		Name:      name,
		Dir:       dir,
		CreatedAt: time.Now().UTC(),
	}
	art.ExpiresAt = art.CreatedAt.Add(retention)

	for _, src := range matches {
		base := filepath.Base(src)
		size, err := copyFile(src, filepath.Join(dir, base))
		if err != nil {
			os.RemoveAll(dir)
			return nil, fmt.Errorf("failed to store artifact file %q: %w", src, err)
		}
		art.Files = append(art.Files, base)
		art.Size += size
	}

	mtype, err := mimetype.DetectFile(filepath.Join(dir, art.Files[0]))
	if err != nil {
		// Detection failure is not fatal; the artifact is still usable.
		art.ContentType = "application/octet-stream"
	} else {
		art.ContentType = mtype.String()
	}

	if err := s.writeMetadata(art); err != nil {
		os.RemoveAll(dir)
		return nil, err
	}
	return art, nil
}

// Get returns a previously archived artifact by run and name.
func (s *Store) Get(runID, name string) (*Artifact, error) {
	dir := s.artifactDir(runID, name)
	data, err := os.ReadFile(filepath.Join(dir, metadataFile))
	if err != nil {
		return nil, errors.WrapWithContext(
			err,
			errors.CodeArtifactNotFound,
			"artifact not found",
			map[string]any{"run": runID, "artifact": name},
		)
	}

	var art Artifact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, fmt.Errorf("failed to decode artifact metadata: %w", err)
	}
	art.Dir = dir
	return &art, nil
}

// List returns the artifacts archived for a run, in directory order.
func (s *Store) List(runID string) ([]*Artifact, error) {
	runDir := filepath.Join(s.root, runID)
	entries, err := os.ReadDir(runDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list run artifacts: %w", err)
	}

	var artifacts []*Artifact
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		art, err := s.Get(runID, entry.Name())
		if err != nil {
			continue // tolerate partial writes from interrupted runs
		}
		artifacts = append(artifacts, art)
	}
	return artifacts, nil
}

func (s *Store) artifactDir(runID, name string) string {
	return filepath.Join(s.root, runID, name)
}

func (s *Store) writeMetadata(art *Artifact) error {
	data, err := json.MarshalIndent(art, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode artifact metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(art.Dir, metadataFile), data, 0o644); err != nil {
		return fmt.Errorf("failed to write artifact metadata: %w", err)
	}
	return nil
}

// sweepExpired removes artifacts whose retention has lapsed, and empty run
// directories left behind.
func (s *Store) sweepExpired() error {
	runs, err := os.ReadDir(s.root)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, run := range runs {
		if !run.IsDir() {
			continue
		}
		runDir := filepath.Join(s.root, run.Name())
		arts, err := os.ReadDir(runDir)
		if err != nil {
			continue
		}
		remaining := 0
		for _, entry := range arts {
			if !entry.IsDir() {
				continue
			}
			art, err := s.Get(run.Name(), entry.Name())
			if err != nil || now.Before(art.ExpiresAt) {
				remaining++
				continue
			}
			if err := os.RemoveAll(filepath.Join(runDir, entry.Name())); err != nil {
				return err
			}
		}
		if remaining == 0 {
			_ = os.Remove(runDir)
		}
	}
	return nil
}

func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(out, in)
	if err != nil {
		out.Close()
		return 0, err
	}
	return n, out.Close()
}
