package git_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strandlabs/strand/git"
)

// initRepo creates a repository with one commit so HEAD resolves.
func initRepo(t *testing.T) (string, *gogit.Repository) {
	t.Helper()

	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "Cargo.lock"), []byte("[[package]]\n"), 0o644))

	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("Cargo.lock")
	require.NoError(t, err)

	_, err = wt.Commit("initial", &gogit.CommitOptions{
		Author: &object.Signature{
			Name:  "test",
			Email: "test@example.com",
			When:  time.Now(),
		},
	})
	require.NoError(t, err)

	return dir, repo
}

func TestOpenNotARepository(t *testing.T) {
	_, err := git.Open(t.TempDir())
	assert.ErrorIs(t, err, git.ErrNotRepository)
}

func TestCurrentBranch(t *testing.T) {
	dir, _ := initRepo(t)

	repo, err := git.Open(dir)
	require.NoError(t, err)

	branch, err := repo.CurrentBranch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "master", branch)
}

func TestOpenFromSubdirectory(t *testing.T) {
	dir, _ := initRepo(t)
	sub := filepath.Join(dir, "components", "layout")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	repo, err := git.Open(sub)
	require.NoError(t, err)

	branch, err := repo.CurrentBranch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "master", branch)
}

func TestCurrentBranchDetachedHead(t *testing.T) {
	dir, raw := initRepo(t)

	head, err := raw.Head()
	require.NoError(t, err)
	wt, err := raw.Worktree()
	require.NoError(t, err)
	require.NoError(t, wt.Checkout(&gogit.CheckoutOptions{Hash: head.Hash()}))

	repo, err := git.Open(dir)
	require.NoError(t, err)

	_, err = repo.CurrentBranch(context.Background())
	assert.ErrorIs(t, err, git.ErrDetachedHead)
}

func TestCurrentBranchCancelledContext(t *testing.T) {
	dir, _ := initRepo(t)

	repo, err := git.Open(dir)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = repo.CurrentBranch(ctx)
	assert.Error(t, err)
}

func TestCurrentBranchOnTriggerBranch(t *testing.T) {
	dir, raw := initRepo(t)

	wt, err := raw.Worktree()
	require.NoError(t, err)
	require.NoError(t, wt.Checkout(&gogit.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName("try-wpt-2020"),
		Create: true,
	}))

	repo, err := git.Open(dir)
	require.NoError(t, err)

	branch, err := repo.CurrentBranch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "try-wpt-2020", branch)
}
