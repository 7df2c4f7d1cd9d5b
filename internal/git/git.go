// Package git keeps a local checkout of a remote repository at a requested
// ref. It fetches every branch and tag of a single remote named origin and
// detaches HEAD at the resolved commit.
//
// The package imports only stdlib and go-git packages.
package git

import (
	"context"
	"errors"
	"fmt"
	"os"

	gogit "github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/config"
	"github.com/go-git/go-git/v6/plumbing"
)

// RemoteName is the remote every checkout tracks.
const RemoteName = "origin"

var (
	// ErrNotRepository is returned when a directory holds no git repository.
	ErrNotRepository = errors.New("not a git repository")

	// ErrRefNotFound is returned when a ref matches no branch, tag or commit.
	ErrRefNotFound = errors.New("git ref not found")
)

var fetchRefSpecs = []config.RefSpec{
	"+refs/heads/*:refs/remotes/" + RemoteName + "/*",
	"+refs/tags/*:refs/tags/*",
}

// Checkout is a local repository tracking one remote.
type Checkout struct {
	repo *gogit.Repository
	dir  string
}

// Open opens the repository at dir.
//
// Returns ErrNotRepository (wrapped) if dir holds no repository.
func Open(dir string) (*Checkout, error) {
	repo, err := gogit.PlainOpen(dir)
	if err != nil {
		if errors.Is(err, gogit.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%w: %s", ErrNotRepository, dir)
		}
		return nil, fmt.Errorf("opening repository at %s: %w", dir, err)
	}
	return &Checkout{repo: repo, dir: dir}, nil
}

// Ensure opens the repository at dir, or initialises one whose origin is url
// when dir does not exist yet. Nothing is fetched.
func Ensure(dir, url string) (*Checkout, error) {
	if _, err := os.Stat(dir); err == nil {
		return Open(dir)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	repo, err := gogit.PlainInit(dir, false)
	if err != nil {
		return nil, fmt.Errorf("initialising repository at %s: %w", dir, err)
	}
	if _, err := repo.CreateRemote(&config.RemoteConfig{
		Name:  RemoteName,
		URLs:  []string{url},
		Fetch: fetchRefSpecs,
	}); err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("adding remote %s: %w", url, err)
	}
	return &Checkout{repo: repo, dir: dir}, nil
}

// Dir returns the working tree directory.
func (c *Checkout) Dir() string { return c.dir }

// Fetch updates every remote branch and tag. Being up to date is not an error.
func (c *Checkout) Fetch(ctx context.Context) error {
	err := c.repo.FetchContext(ctx, &gogit.FetchOptions{
		RemoteName: RemoteName,
		RefSpecs:   fetchRefSpecs,
		Force:      true,
	})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return fmt.Errorf("fetching %s in %s: %w", RemoteName, c.dir, err)
	}
	return nil
}

// Resolve finds the commit of ref, trying a remote branch first, then a tag,
// then any revision go-git understands such as a full or short hash.
func (c *Checkout) Resolve(ref string) (plumbing.Hash, error) {
	candidates := []string{
		"refs/remotes/" + RemoteName + "/" + ref,
		"refs/tags/" + ref,
		ref,
	}
	for _, rev := range candidates {
		h, err := c.repo.ResolveRevision(plumbing.Revision(rev))
		if err == nil {
			return *h, nil
		}
	}
	return plumbing.ZeroHash, fmt.Errorf("%w: %s", ErrRefNotFound, ref)
}

// CheckoutRef resolves ref and force-checks it out on a detached HEAD,
// discarding local changes. It returns the commit SHA.
func (c *Checkout) CheckoutRef(ref string) (string, error) {
	h, err := c.Resolve(ref)
	if err != nil {
		return "", err
	}
	wt, err := c.repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("getting worktree: %w", err)
	}
	if err := wt.Checkout(&gogit.CheckoutOptions{Hash: h, Force: true}); err != nil {
		return "", fmt.Errorf("checking out %s (%s): %w", ref, h, err)
	}
	return h.String(), nil
}

// Head returns the SHA HEAD points at.
func (c *Checkout) Head() (string, error) {
	head, err := c.repo.Head()
	if err != nil {
		return "", fmt.Errorf("reading HEAD: %w", err)
	}
	return head.Hash().String(), nil
}

// Sync is Ensure, Fetch and CheckoutRef in one step.
func Sync(ctx context.Context, dir, url, ref string) (string, error) {
	co, err := Ensure(dir, url)
	if err != nil {
		return "", err
	}
	if err := co.Fetch(ctx); err != nil {
		return "", err
	}
	return co.CheckoutRef(ref)
}
