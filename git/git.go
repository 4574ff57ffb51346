// Package git resolves the triggering branch of a pipeline run from the
// checkout the orchestrator runs in. Push triggers and the fan-out
// dispatcher both key on the branch name.
package git

import (
	"context"
	"errors"
	"fmt"

	gogit "github.com/go-git/go-git/v5"
)

// Sentinel errors checkable with errors.Is().

// ErrNotRepository is returned when the given path is not inside a git
// repository.
var ErrNotRepository = errors.New("not a git repository")

// ErrDetachedHead is returned when HEAD does not point at a branch, so no
// triggering branch can be resolved.
var ErrDetachedHead = errors.New("HEAD is detached")

// Repo wraps an opened git repository.
type Repo struct {
	repo *gogit.Repository
}

// Open opens the repository containing path, walking up to find .git the
// way the git CLI does.
func Open(path string) (*Repo, error) {
	repo, err := gogit.PlainOpenWithOptions(path, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, gogit.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%w: %s", ErrNotRepository, path)
		}
		return nil, fmt.Errorf("failed to open repository at %s: %w", path, err)
	}
	return &Repo{repo: repo}, nil
}

// CurrentBranch returns the name of the currently checked out branch.
// It returns ErrDetachedHead if HEAD is in a detached state.
//
// Context cancellation is honored during the operation.
func (r *Repo) CurrentBranch(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("branch resolution cancelled: %w", err)
	}

	head, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to get HEAD reference: %w", err)
	}

	if !head.Name().IsBranch() {
		return "", ErrDetachedHead
	}

	return head.Name().Short(), nil
}
