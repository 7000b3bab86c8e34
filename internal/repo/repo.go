// Package repo ties the directory tree, the file store and the on-disk
// metadata together into a repository with commit and restore operations.
package repo

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"vercon/internal/config"
	"vercon/internal/fs"
	"vercon/internal/repo/store/file"
	"vercon/internal/repo/tree"
)

var (
	// ErrUncommittedChanges reports a restore blocked by unsaved edits.
	ErrUncommittedChanges = errors.New("uncommitted changes")
	// ErrUntrackedPath reports working-tree content the store does not know
	// about, found during a deletion-safety scan.
	ErrUntrackedPath = errors.New("untracked path")
	// ErrInvalidFilter reports a filter that does not compile as a regular
	// expression.
	ErrInvalidFilter = errors.New("invalid filter")
	// ErrRevisionOutOfRange reports a restore target below 1 or beyond the
	// current maximum revision.
	ErrRevisionOutOfRange = errors.New("revision out of range")
	// ErrPathConflict reports a filesystem entry of the wrong kind blocking
	// a create or restore.
	ErrPathConflict = errors.New("path conflict")
	// ErrDirectoryNotEmpty reports a directory deletion blocked by a
	// remaining untracked entry.
	ErrDirectoryNotEmpty = errors.New("directory not empty")
)

// CurrentRevision selects the repository's current maximum revision when
// passed to RestoreTo. Restoring to it is the discard-working-changes
// operation.
const CurrentRevision = 0

// Repository is an opened version-control store rooted at the first
// ancestor directory containing a REPO metadata directory.
type Repository struct {
	Config *config.RepoConfig
	FS     afero.Fs
	Log    *zap.Logger
	Tree   *tree.Tree
	Store  *file.Context

	lastRev int
}

// Option customizes Open.
type Option func(*Repository)

// WithFS swaps the filesystem implementation (tests use the in-memory one).
func WithFS(fsys afero.Fs) Option {
	return func(r *Repository) { r.FS = fsys }
}

// WithLogger injects a diagnostics sink. The engine never writes to a
// process-wide log.
func WithLogger(log *zap.Logger) Option {
	return func(r *Repository) { r.Log = log }
}

// Open locates the repository for dir, walking up to the nearest ancestor
// holding a REPO directory, or creates a fresh store in dir when none is
// found. An interrupted commit is recovered before anything else.
func Open(dir string, opts ...Option) (*Repository, error) {
	r := &Repository{FS: fs.New(), Log: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}

	base, found := config.FindBaseDir(r.FS, dir)
	if !found {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("resolve %q: %w", dir, err)
		}
		base = abs
	}
	r.Config = config.NewRepoConfig(base)
	r.Store = file.NewContext(r.FS, base, r.Config.DataDir(), r.Log)

	if !found {
		if err := r.create(); err != nil {
			return nil, err
		}
		r.Tree = tree.New()
		r.Log.Info("repository created", zap.String("base", base))
		return r, nil
	}

	if err := r.recover(); err != nil {
		return nil, err
	}
	if err := r.load(); err != nil {
		return nil, err
	}
	r.Log.Debug("repository opened", zap.String("base", base), zap.Int("last_revision", r.lastRev))
	return r, nil
}

// create lays out an empty store: REPO, REPO/DATA and the two empty
// metadata files.
func (r *Repository) create() error {
	if err := r.FS.MkdirAll(r.Config.DataDir(), 0o755); err != nil {
		return fmt.Errorf("create store layout: %w", err)
	}
	for _, p := range []string{r.Config.MetadataPath(), r.Config.CommitsPath()} {
		if err := afero.WriteFile(r.FS, p, nil, 0o644); err != nil {
			return fmt.Errorf("create %q: %w", p, err)
		}
	}
	return nil
}

// LastRevision returns the highest committed revision, 0 when the
// repository has never been committed to.
func (r *Repository) LastRevision() int {
	return r.lastRev
}

// List returns the commit log. Verbose is the raw log; otherwise only the
// "<R>. <comment>" header lines are returned.
func (r *Repository) List(verbose bool) (string, error) {
	data, err := afero.ReadFile(r.FS, r.Config.CommitsPath())
	if err != nil {
		return "", fmt.Errorf("read commit log: %w", err)
	}
	if verbose {
		return string(data), nil
	}
	var b strings.Builder
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" || strings.HasPrefix(line, "  ") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String(), nil
}
