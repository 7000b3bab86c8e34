package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"vercon/internal/config"
	"vercon/internal/repo/store/file"
	"vercon/internal/repo/tree"
	"vercon/internal/util"
)

type changeOp int

const (
	opCreateDir changeOp = iota
	opDeleteDir
	opCreateFile
	opModifyFile
	opDeleteFile
)

// change is one planned mutation of the upcoming commit. File contents
// are re-read at apply time, not captured during planning.
type change struct {
	op   changeOp
	path string // POSIX-style relative path
	node *tree.Node
	f    *file.File
}

// Commit snapshots the working tree as a new revision. It returns
// (0, false, nil) when nothing changed: no revision is allocated and no
// files are written. The comment is flattened to a single line; the
// commit-log entry format reserves line structure for itself.
//
// Any in-process failure during the write sequence leaves the LOCK
// artifact in place and may leave the in-memory state ahead of the disk
// state. The handle must then be discarded and the repository reopened,
// which runs crash recovery; retrying Commit on the same handle is not
// supported.
func (r *Repository) Commit(comment string) (int, bool, error) {
	comment = flattenComment(comment)
	rev := r.lastRev + 1
	r.Tree.ResetTouched()

	var changes []change
	if err := r.planDir(r.Tree.Root, r.Config.BaseDir, rev, &changes); err != nil {
		return 0, false, err
	}
	r.markUntouchedDeleted(r.Tree.Root, rev, &changes)

	if len(changes) == 0 {
		r.Log.Debug("commit is a no-op")
		return 0, false, nil
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].path < changes[j].path })

	if err := r.applyCommit(rev, comment, changes); err != nil {
		return 0, false, err
	}
	r.lastRev = rev
	r.Log.Info("committed", zap.Int("revision", rev), zap.Int("changes", len(changes)))
	return rev, true, nil
}

// planDir mirrors one working-tree directory against its node: new or
// reactivated subdirectories and new, recreated or modified files become
// planned changes; everything visited is marked touched.
func (r *Repository) planDir(node *tree.Node, dirPath string, rev int, changes *[]change) error {
	entries, err := afero.ReadDir(r.FS, dirPath)
	if err != nil {
		return fmt.Errorf("walk %q: %w", dirPath, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		rel := name
		if nodePath := node.Path(); nodePath != "" {
			rel = nodePath + "/" + name
		}

		if entry.IsDir() {
			if node == r.Tree.Root && name == config.RepoDirName {
				continue
			}
			child, ok := node.Children[name]
			switch {
			case !ok:
				if child, err = r.Tree.Add(rel, rev); err != nil {
					return err
				}
				*changes = append(*changes, change{op: opCreateDir, path: rel, node: child})
			case !child.Active():
				if err := child.Toggle(rev); err != nil {
					return err
				}
				*changes = append(*changes, change{op: opCreateDir, path: rel, node: child})
			}
			child.Touched = true
			if err := r.planDir(child, filepath.Join(dirPath, name), rev, changes); err != nil {
				return err
			}
			continue
		}

		f, ok := node.Files[name]
		if !ok {
			f = file.New(node.Path(), name)
			node.Files[name] = f
			*changes = append(*changes, change{op: opCreateFile, path: rel, node: node, f: f})
		} else if f.LiveRevision() == 0 {
			// present on disk, deleted in the store: a recreation
			*changes = append(*changes, change{op: opCreateFile, path: rel, node: node, f: f})
		} else {
			modified, err := r.Store.Modified(f)
			if err != nil {
				return err
			}
			if modified {
				*changes = append(*changes, change{op: opModifyFile, path: rel, node: node, f: f})
			}
		}
		f.Touched = true
	}
	return nil
}

// markUntouchedDeleted captures deletions: every active node and every
// live file not touched by the walk is absent from the working tree.
func (r *Repository) markUntouchedDeleted(node *tree.Node, rev int, changes *[]change) {
	for _, name := range util.SortedKeys(node.Files) {
		f := node.Files[name]
		if !f.Touched && f.LiveRevision() != 0 {
			*changes = append(*changes, change{op: opDeleteFile, path: f.RelPath(), node: node, f: f})
		}
	}
	for _, name := range util.SortedKeys(node.Children) {
		child := node.Children[name]
		if child.Active() && !child.Touched {
			// Toggle cannot fail here: rev is beyond every history entry.
			_ = child.Toggle(rev)
			*changes = append(*changes, change{op: opDeleteDir, path: child.Path(), node: child})
		}
		r.markUntouchedDeleted(child, rev, changes)
	}
}

// applyCommit performs the crash-safe write sequence: lock, metadata
// backups, artifact mutations, new metadata, commit-log entry, unlock,
// backup cleanup.
func (r *Repository) applyCommit(rev int, comment string, changes []change) error {
	if err := afero.WriteFile(r.FS, r.Config.LockPath(), []byte(strconv.Itoa(rev)), 0o644); err != nil {
		return fmt.Errorf("write lock: %w", err)
	}
	if err := r.backupMetadata(rev); err != nil {
		return err
	}

	logLines := make([]string, 0, len(changes))
	for _, c := range changes {
		line, err := r.applyChange(rev, c)
		if err != nil {
			return err
		}
		logLines = append(logLines, line)
	}

	if err := afero.WriteFile(r.FS, r.Config.MetadataPath(), []byte(r.Tree.Serialize()), 0o644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	if err := r.appendCommitLog(rev, comment, logLines); err != nil {
		return err
	}
	if err := r.FS.Remove(r.Config.LockPath()); err != nil {
		return fmt.Errorf("remove lock: %w", err)
	}
	return r.dropBackups(rev)
}

// applyChange executes one planned mutation and returns its commit-log line.
func (r *Repository) applyChange(rev int, c change) (string, error) {
	switch c.op {
	case opCreateDir:
		if err := r.FS.MkdirAll(filepath.Join(r.Config.DataDir(), filepath.FromSlash(c.path)), 0o755); err != nil {
			return "", fmt.Errorf("mirror directory %q: %w", c.path, err)
		}
		return "  +d " + c.path, nil

	case opDeleteDir:
		return "  -d " + c.path, nil

	case opCreateFile, opModifyFile:
		data, err := afero.ReadFile(r.FS, filepath.Join(r.Config.BaseDir, filepath.FromSlash(c.path)))
		if err != nil {
			return "", fmt.Errorf("read working file %q: %w", c.path, err)
		}
		if c.op == opCreateFile {
			err = r.Store.Create(c.f, rev, data)
		} else {
			err = r.Store.Change(c.f, rev, data)
		}
		if err != nil {
			return "", err
		}
		c.node.Bump(rev)
		code := "*f"
		if c.op == opCreateFile {
			code = "+f"
		}
		return "  " + code + kindLetter(c.f.Events[rev].Content) + " " + c.path, nil

	case opDeleteFile:
		if err := r.Store.Delete(c.f, rev); err != nil {
			return "", err
		}
		c.node.Bump(rev)
		return "  -f " + c.path, nil
	}
	return "", fmt.Errorf("unknown change op %d", c.op)
}

// flattenComment reduces a comment to one line. Line breaks become single
// spaces so the "<R>. <comment>" header stays parseable.
func flattenComment(comment string) string {
	comment = strings.ReplaceAll(comment, "\r\n", " ")
	comment = strings.ReplaceAll(comment, "\n", " ")
	return strings.ReplaceAll(comment, "\r", " ")
}

func kindLetter(k file.ContentKind) string {
	if k == file.Text {
		return "t"
	}
	return "b"
}

// backupMetadata copies the two metadata files to their BAK<rev>-
// counterparts before the commit overwrites them.
func (r *Repository) backupMetadata(rev int) error {
	for _, name := range []string{config.MetadataFile, config.CommitsFile} {
		src := filepath.Join(r.Config.RepoDir(), name)
		data, err := afero.ReadFile(r.FS, src)
		if err != nil {
			return fmt.Errorf("backup %q: %w", name, err)
		}
		dst := filepath.Join(r.Config.RepoDir(), file.BackupLocator(rev, name))
		if err := afero.WriteFile(r.FS, dst, data, 0o644); err != nil {
			return fmt.Errorf("backup %q: %w", name, err)
		}
	}
	return nil
}

// appendCommitLog writes the human-readable entry: a "<R>. <comment>"
// header, one line per changed path, and a blank line terminator.
func (r *Repository) appendCommitLog(rev int, comment string, lines []string) error {
	entry := strconv.Itoa(rev) + ". " + comment + "\n"
	for _, l := range lines {
		entry += l + "\n"
	}
	entry += "\n"

	existing, err := afero.ReadFile(r.FS, r.Config.CommitsPath())
	if err != nil {
		return fmt.Errorf("read commit log: %w", err)
	}
	if err := afero.WriteFile(r.FS, r.Config.CommitsPath(), append(existing, entry...), 0o644); err != nil {
		return fmt.Errorf("append commit log: %w", err)
	}
	return nil
}

// dropBackups removes the now-superseded backup artifacts of a completed
// commit.
func (r *Repository) dropBackups(rev int) error {
	var doomed []string
	err := afero.Walk(r.FS, r.Config.RepoDir(), func(p string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		if backupRev, _, ok := file.ParseBackup(info.Name()); ok && backupRev == rev {
			doomed = append(doomed, p)
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, p := range doomed {
		if err := r.FS.Remove(p); err != nil {
			return fmt.Errorf("remove backup %q: %w", p, err)
		}
	}
	return nil
}
