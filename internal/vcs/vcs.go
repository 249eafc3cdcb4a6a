// Package vcs reads version control metadata for the build workspace.
package vcs

import (
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Revision returns the HEAD commit hash of the git repository containing
// dir. It returns "" without error when dir is not inside a repository or
// the repository has no commits yet.
func Revision(dir string) (string, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return "", nil
		}
		return "", fmt.Errorf("opening repository at %s: %w", dir, err)
	}
	head, err := repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("resolving HEAD: %w", err)
	}
	return head.Hash().String(), nil
}
