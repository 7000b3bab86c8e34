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
)

// recover undoes an interrupted commit. A LOCK file naming revision R
// means revision R never completed: every BAK<R>- artifact is copied back
// over its live counterpart (copy, not move, so recovery itself is
// idempotent), every artifact stamped R in the ET/EB/D namespaces is
// removed, and LOCK is deleted. This restores the store to its state at
// the end of revision R-1.
func (r *Repository) recover() error {
	lockPath := r.Config.LockPath()
	ok, err := afero.Exists(r.FS, lockPath)
	if err != nil || !ok {
		return err
	}

	raw, err := afero.ReadFile(r.FS, lockPath)
	if err != nil {
		return fmt.Errorf("read lock: %w", err)
	}
	rev, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil || rev < 1 {
		return fmt.Errorf("lock names no valid revision: %q", raw)
	}
	r.Log.Info("recovering interrupted commit", zap.Int("revision", rev))

	if err := r.restoreBackups(rev); err != nil {
		return err
	}
	if err := r.dropRevisionArtifacts(rev); err != nil {
		return err
	}
	if err := r.pruneMirrorDirs(); err != nil {
		return err
	}
	if err := r.FS.Remove(lockPath); err != nil {
		return fmt.Errorf("remove lock: %w", err)
	}
	return nil
}

// restoreBackups copies every BAK<rev>- artifact back over its target.
// When the target is a live artifact, a historical artifact at the same
// revision and name is a leftover of the interrupted historicization and
// is removed, otherwise rehydration would see two events at one revision.
func (r *Repository) restoreBackups(rev int) error {
	return afero.Walk(r.FS, r.Config.RepoDir(), func(p string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		backupRev, target, ok := file.ParseBackup(info.Name())
		if !ok || backupRev != rev {
			return nil
		}

		dir := filepath.Dir(p)
		data, err := afero.ReadFile(r.FS, p)
		if err != nil {
			return fmt.Errorf("read backup %q: %w", info.Name(), err)
		}
		if err := afero.WriteFile(r.FS, filepath.Join(dir, target), data, 0o644); err != nil {
			return fmt.Errorf("restore backup %q: %w", info.Name(), err)
		}

		if kind, content, targetRev, fileName, ok := file.ParseArtifact(target); ok && kind == file.Live {
			stale := file.Locator(histPrefixFor(content), targetRev, fileName)
			if err := r.FS.Remove(filepath.Join(dir, stale)); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("remove stale artifact %q: %w", stale, err)
			}
		}
		return nil
	})
}

// dropRevisionArtifacts removes every live artifact and delete marker
// stamped with the interrupted revision.
func (r *Repository) dropRevisionArtifacts(rev int) error {
	var doomed []string
	err := afero.Walk(r.FS, r.Config.DataDir(), func(p string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		kind, _, artifactRev, _, ok := file.ParseArtifact(info.Name())
		if ok && artifactRev == rev && (kind == file.Live || kind == file.Deleted) {
			doomed = append(doomed, p)
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, p := range doomed {
		if err := r.FS.Remove(p); err != nil {
			return fmt.Errorf("remove artifact %q: %w", p, err)
		}
	}
	return nil
}

// pruneMirrorDirs removes data-store directories the restored metadata
// does not know about. The interrupted commit mirrors new directories
// before it writes the new metadata, so a leftover mirror would trip the
// metadata check during rehydration.
func (r *Repository) pruneMirrorDirs() error {
	metaText, err := afero.ReadFile(r.FS, r.Config.MetadataPath())
	if err != nil {
		return fmt.Errorf("read metadata: %w", err)
	}
	t, err := tree.Deserialize(string(metaText))
	if err != nil {
		return err
	}

	dataDir := r.Config.DataDir()
	var doomed []string
	err = afero.Walk(r.FS, dataDir, func(p string, info os.FileInfo, err error) error {
		if err != nil || !info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dataDir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}
		if _, err := t.AtPath(rel); err != nil {
			doomed = append(doomed, p)
		}
		return nil
	})
	if err != nil {
		return err
	}

	// deepest-first, so nested leftovers are gone before their parents
	sort.Slice(doomed, func(i, j int) bool { return len(doomed[i]) > len(doomed[j]) })
	for _, p := range doomed {
		if err := r.FS.RemoveAll(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("prune mirror directory %q: %w", p, err)
		}
		r.Log.Info("pruned leftover mirror directory", zap.String("path", p))
	}
	return nil
}

func histPrefixFor(k file.ContentKind) string {
	if k == file.Text {
		return config.PrefixHistText
	}
	return config.PrefixHistBinary
}
