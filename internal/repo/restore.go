package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"vercon/internal/repo/store/file"
	"vercon/internal/repo/tree"
	"vercon/internal/util"
)

// restorePlan holds the create, restore and delete sets computed for a
// target revision before anything is mutated.
type restorePlan struct {
	rev        int
	createDirs []*tree.Node
	restore    []*file.File
	deleteFile []*file.File
	deleteDirs []*tree.Node
}

// RestoreTo rebuilds the working tree as it was at the given revision.
// CurrentRevision selects the current maximum and is the designated
// discard-working-changes operation; any other target refuses to touch
// files with uncommitted modifications. The filter is a regular
// expression matched against the start of POSIX-style relative file
// paths; it applies to files only, never directories. Revision history is
// never changed, only working-tree files and directories.
func (r *Repository) RestoreTo(rev int, filter string) error {
	if rev == CurrentRevision {
		rev = r.lastRev
	}
	if rev < 1 || rev > r.lastRev {
		return fmt.Errorf("%w: %d (have 1..%d)", ErrRevisionOutOfRange, rev, r.lastRev)
	}
	matcher, err := compileFilter(filter)
	if err != nil {
		return err
	}

	plan := &restorePlan{rev: rev}
	r.planRestoreDir(r.Tree.Root, matcher, plan)
	if err := r.validateRestore(plan); err != nil {
		return err
	}
	if err := r.applyRestore(plan); err != nil {
		return err
	}
	r.Log.Info("restored", zap.Int("revision", rev), zap.String("filter", filter))
	return nil
}

func compileFilter(filter string) (*regexp.Regexp, error) {
	if filter == "" {
		filter = ".*"
	}
	re, err := regexp.Compile("^(?:" + filter + ")")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	return re, nil
}

// planRestoreDir computes the restore sets. A directory inactive at the
// target revision sends its entire subtree to the delete sets. An active
// directory is created, its matching files are routed to the restore set
// (present at the revision) or the delete set (absent), and planning
// recurses into children regardless of the filter.
func (r *Repository) planRestoreDir(node *tree.Node, matcher *regexp.Regexp, plan *restorePlan) {
	for _, name := range util.SortedKeys(node.Children) {
		child := node.Children[name]
		if !child.ActiveAt(plan.rev) {
			collectSubtree(child, plan)
			continue
		}
		plan.createDirs = append(plan.createDirs, child)
		r.planRestoreDir(child, matcher, plan)
	}
	for _, name := range util.SortedKeys(node.Files) {
		f := node.Files[name]
		if !matcher.MatchString(f.RelPath()) {
			continue
		}
		if f.ExistsAt(plan.rev) {
			plan.restore = append(plan.restore, f)
		} else {
			plan.deleteFile = append(plan.deleteFile, f)
		}
	}
}

// collectSubtree routes a wholesale-deleted directory and everything
// beneath it into the delete sets.
func collectSubtree(node *tree.Node, plan *restorePlan) {
	plan.deleteDirs = append(plan.deleteDirs, node)
	for _, name := range util.SortedKeys(node.Files) {
		plan.deleteFile = append(plan.deleteFile, node.Files[name])
	}
	for _, name := range util.SortedKeys(node.Children) {
		collectSubtree(node.Children[name], plan)
	}
}

// validateRestore aborts the whole operation before any mutation when a
// slated file carries uncommitted changes (unless restoring to the
// current maximum) or a doomed directory holds untracked content. Files
// missing from the working tree are exempt: they are rewritten or already
// gone.
func (r *Repository) validateRestore(plan *restorePlan) error {
	guard := plan.rev != r.lastRev

	for _, f := range append(append([]*file.File{}, plan.restore...), plan.deleteFile...) {
		wp := r.Store.WorkingPath(f)
		info, err := r.FS.Stat(wp)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("stat %q: %w", f.RelPath(), err)
		}
		if info.IsDir() {
			return fmt.Errorf("%w: %q is a directory", ErrPathConflict, f.RelPath())
		}
		if !guard {
			continue
		}
		modified, err := r.Store.Modified(f)
		if err != nil {
			return err
		}
		if modified {
			return fmt.Errorf("%w: %q", ErrUncommittedChanges, f.RelPath())
		}
	}

	for _, n := range plan.deleteDirs {
		if err := r.validateDoomedDir(n, plan.rev); err != nil {
			return err
		}
	}
	return nil
}

// validateDoomedDir scans a directory slated for wholesale deletion:
// nothing inside may be untracked, and no tracked file may carry
// uncommitted changes unless restoring to the current maximum.
func (r *Repository) validateDoomedDir(node *tree.Node, rev int) error {
	dirPath := filepath.Join(r.Config.BaseDir, filepath.FromSlash(node.Path()))
	entries, err := afero.ReadDir(r.FS, dirPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("scan %q: %w", node.Path(), err)
	}

	guard := rev != r.lastRev
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			child, ok := node.Children[name]
			if !ok {
				return fmt.Errorf("%w: %s/%s", ErrUntrackedPath, node.Path(), name)
			}
			if err := r.validateDoomedDir(child, rev); err != nil {
				return err
			}
			continue
		}
		f, ok := node.Files[name]
		if !ok {
			return fmt.Errorf("%w: %s/%s", ErrUntrackedPath, node.Path(), name)
		}
		if !guard {
			continue
		}
		modified, err := r.Store.Modified(f)
		if err != nil {
			return err
		}
		if modified {
			return fmt.Errorf("%w: %q", ErrUncommittedChanges, f.RelPath())
		}
	}
	return nil
}

// applyRestore mutates the working tree, strictly in this order: create
// directories, write restored file contents, delete files, delete
// directories deepest-first.
func (r *Repository) applyRestore(plan *restorePlan) error {
	for _, n := range plan.createDirs {
		p := filepath.Join(r.Config.BaseDir, filepath.FromSlash(n.Path()))
		info, err := r.FS.Stat(p)
		if err == nil && !info.IsDir() {
			return fmt.Errorf("%w: %q exists and is not a directory", ErrPathConflict, n.Path())
		}
		if err := r.FS.MkdirAll(p, 0o755); err != nil {
			return fmt.Errorf("create %q: %w", n.Path(), err)
		}
	}

	for _, f := range plan.restore {
		data, kind, err := r.Store.ContentsAt(f, plan.rev)
		if err != nil {
			return err
		}
		wp := r.Store.WorkingPath(f)
		if info, err := r.FS.Stat(wp); err == nil && info.IsDir() {
			return fmt.Errorf("%w: %q is a directory", ErrPathConflict, f.RelPath())
		}
		if err := afero.WriteFile(r.FS, wp, data, 0o644); err != nil {
			return fmt.Errorf("restore %q: %w", f.RelPath(), err)
		}
		r.Log.Debug("file restored", zap.String("path", f.RelPath()), zap.Int("revision", plan.rev), zap.Stringer("kind", kind))
	}

	for _, f := range plan.deleteFile {
		if err := r.FS.Remove(r.Store.WorkingPath(f)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("delete %q: %w", f.RelPath(), err)
		}
	}

	doomed := append([]*tree.Node{}, plan.deleteDirs...)
	sort.Slice(doomed, func(i, j int) bool { return len(doomed[i].Path()) > len(doomed[j].Path()) })
	for _, n := range doomed {
		p := filepath.Join(r.Config.BaseDir, filepath.FromSlash(n.Path()))
		if err := r.FS.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("%w: %q", ErrDirectoryNotEmpty, n.Path())
		}
	}
	return nil
}
