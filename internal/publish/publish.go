// Package publish commits a generated site into a git repository and
// optionally pushes it.
package publish

import (
	"context"
	stderrors "errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"

	"git.home.luguber.info/inful/pillarsite/internal/foundation/errors"
	"git.home.luguber.info/inful/pillarsite/internal/logfields"
	"git.home.luguber.info/inful/pillarsite/internal/output"
	"git.home.luguber.info/inful/pillarsite/internal/site"
)

const remoteName = "origin"

// generatedDirs are emptied before each publish so removed pages disappear.
var generatedDirs = []string{site.PillarsDir, site.ArticlesDir, "content"}

// Options configures a publish.
type Options struct {
	RepoPath    string
	RemoteURL   string
	Branch      string
	Username    string
	Token       string
	AuthorName  string
	AuthorEmail string
	Push        bool
	Logger      *slog.Logger
}

// Result describes what a publish did.
type Result struct {
	Commit  string
	Changed bool
	Pushed  bool
}

// Publish writes b into the repository worktree and commits it with message.
// A bundle identical to HEAD produces no commit.
func Publish(ctx context.Context, opts Options, b *site.Bundle, message string) (Result, error) {
	if opts.RepoPath == "" {
		return Result{}, errors.ConfigError("publish.repo_path is required").Build()
	}
	if opts.Branch == "" {
		opts.Branch = "main"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	repo, err := openOrCreate(ctx, opts)
	if err != nil {
		return Result{}, err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return Result{}, classifyGitError(err, "worktree", "")
	}
	if err := checkoutBranch(repo, wt, opts.Branch); err != nil {
		return Result{}, err
	}

	var prevHead plumbing.Hash
	if head, err := repo.Head(); err == nil {
		prevHead = head.Hash()
	}

	for _, dir := range generatedDirs {
		if err := os.RemoveAll(filepath.Join(opts.RepoPath, dir)); err != nil {
			return Result{}, errors.WrapError(err, errors.CategoryFileSystem, "failed to clear generated directory").
				WithContext("path", dir).
				Build()
		}
	}
	written, err := (&output.Writer{Dir: opts.RepoPath, Logger: logger}).Write(b)
	if err != nil {
		return Result{}, err
	}
	res, err := commitAndPush(ctx, repo, wt, opts, message, logger)
	if err != nil {
		restore(repo, wt, opts.Branch, prevHead, written, logger)
		return Result{}, err
	}
	written.Finalize()
	return res, nil
}

func commitAndPush(ctx context.Context, repo *git.Repository, wt *git.Worktree, opts Options, message string, logger *slog.Logger) (Result, error) {
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return Result{}, classifyGitError(err, "add", "")
	}
	status, err := wt.Status()
	if err != nil {
		return Result{}, classifyGitError(err, "status", "")
	}

	res := Result{}
	if status.IsClean() {
		logger.Info("Published site unchanged, nothing to commit", logfields.Path(opts.RepoPath))
	} else {
		hash, err := wt.Commit(message, &git.CommitOptions{
			Author: &object.Signature{Name: opts.AuthorName, Email: opts.AuthorEmail, When: time.Now()},
		})
		if err != nil {
			return Result{}, classifyGitError(err, "commit", "")
		}
		res.Commit = hash.String()
		res.Changed = true
		logger.Info("Committed site", logfields.Path(opts.RepoPath), slog.String("commit", hash.String()[:8]))
	}

	if opts.Push && opts.RemoteURL != "" {
		pushed, err := push(ctx, repo, opts)
		if err != nil {
			return Result{}, err
		}
		res.Pushed = pushed
	}
	return res, nil
}

// restore undoes a failed publish: the worktree files go back to their prior
// content and the branch back to prevHead. A branch that had no commit is removed.
func restore(repo *git.Repository, wt *git.Worktree, branch string, prevHead plumbing.Hash, written *output.Commit, logger *slog.Logger) {
	if err := written.Rollback(); err != nil {
		logger.Warn("Failed to restore published files", logfields.Error(err))
	}
	if prevHead.IsZero() {
		ref := plumbing.NewBranchReferenceName(branch)
		if err := repo.Storer.RemoveReference(ref); err != nil {
			logger.Warn("Failed to remove unpublished branch", slog.String("branch", branch), logfields.Error(err))
		}
		return
	}
	if err := wt.Reset(&git.ResetOptions{Commit: prevHead, Mode: git.HardReset}); err != nil {
		logger.Warn("Failed to reset repository after failed publish", logfields.Error(err))
	}
}

func openOrCreate(ctx context.Context, opts Options) (*git.Repository, error) {
	repo, err := git.PlainOpen(opts.RepoPath)
	if err == nil {
		return repo, ensureRemote(repo, opts.RemoteURL)
	}
	if !stderrors.Is(err, git.ErrRepositoryNotExists) {
		return nil, classifyGitError(err, "open", "")
	}

	if opts.RemoteURL != "" {
		repo, err = git.PlainCloneContext(ctx, opts.RepoPath, false, &git.CloneOptions{
			URL:  opts.RemoteURL,
			Auth: authFor(opts),
		})
		if err == nil {
			return repo, nil
		}
		if !stderrors.Is(err, transport.ErrEmptyRemoteRepository) {
			return nil, classifyGitError(err, "clone", opts.RemoteURL)
		}
		_ = os.RemoveAll(opts.RepoPath)
	}

	repo, err = git.PlainInitWithOptions(opts.RepoPath, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: plumbing.NewBranchReferenceName(opts.Branch)},
	})
	if err != nil {
		return nil, classifyGitError(err, "init", "")
	}
	return repo, ensureRemote(repo, opts.RemoteURL)
}

func ensureRemote(repo *git.Repository, url string) error {
	if url == "" {
		return nil
	}
	if _, err := repo.Remote(remoteName); err == nil {
		return nil
	}
	_, err := repo.CreateRemote(&gitconfig.RemoteConfig{Name: remoteName, URLs: []string{url}})
	return classifyGitError(err, "remote", url)
}

// checkoutBranch moves HEAD to branch, creating it from HEAD when missing.
// A repository without commits only gets its symbolic HEAD pointed at branch.
func checkoutBranch(repo *git.Repository, wt *git.Worktree, branch string) error {
	ref := plumbing.NewBranchReferenceName(branch)
	head, err := repo.Head()
	if err != nil {
		if stderrors.Is(err, plumbing.ErrReferenceNotFound) {
			sym := plumbing.NewSymbolicReference(plumbing.HEAD, ref)
			return classifyGitError(repo.Storer.SetReference(sym), "checkout", "")
		}
		return classifyGitError(err, "head", "")
	}
	if head.Name() == ref {
		return nil
	}
	_, lookupErr := repo.Reference(ref, true)
	err = wt.Checkout(&git.CheckoutOptions{Branch: ref, Create: lookupErr != nil, Keep: true})
	return classifyGitError(err, "checkout", "")
}

func push(ctx context.Context, repo *git.Repository, opts Options) (bool, error) {
	spec := gitconfig.RefSpec("refs/heads/" + opts.Branch + ":refs/heads/" + opts.Branch)
	err := repo.PushContext(ctx, &git.PushOptions{
		RemoteName: remoteName,
		RefSpecs:   []gitconfig.RefSpec{spec},
		Auth:       authFor(opts),
	})
	if stderrors.Is(err, git.NoErrAlreadyUpToDate) {
		return false, nil
	}
	if err != nil {
		return false, classifyGitError(err, "push", opts.RemoteURL)
	}
	return true, nil
}

func authFor(opts Options) transport.AuthMethod {
	if opts.Token == "" {
		return nil
	}
	user := opts.Username
	if user == "" {
		user = "x-access-token"
	}
	return &http.BasicAuth{Username: user, Password: opts.Token}
}

// Repo publishes every bundle to the repository described by Options.
type Repo struct {
	Options Options
}

// Publish commits b with message.
func (r *Repo) Publish(ctx context.Context, b *site.Bundle, message string) (Result, error) {
	return Publish(ctx, r.Options, b, message)
}
