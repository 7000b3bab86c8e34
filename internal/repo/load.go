package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"vercon/internal/repo/store/file"
	"vercon/internal/repo/tree"
)

// load rehydrates the directory tree from metadatadir.txt and the file
// event logs from a scan of the data store.
func (r *Repository) load() error {
	metaText, err := afero.ReadFile(r.FS, r.Config.MetadataPath())
	if err != nil {
		return fmt.Errorf("read metadata: %w", err)
	}
	t, err := tree.Deserialize(string(metaText))
	if err != nil {
		return err
	}
	r.Tree = t

	dataDir := r.Config.DataDir()
	err = afero.Walk(r.FS, dataDir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
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

		if info.IsDir() {
			// every mirror directory must be known to the metadata
			if _, err := t.AtPath(rel); err != nil {
				return fmt.Errorf("%w: data directory %q not in metadata", tree.ErrMalformed, rel)
			}
			return nil
		}

		relDir := ""
		if i := strings.LastIndex(rel, "/"); i >= 0 {
			relDir = rel[:i]
		}
		name := filepath.Base(p)
		if _, _, ok := file.ParseBackup(name); ok {
			// stale backup from an older recovered commit
			return nil
		}
		kind, content, revision, fileName, ok := file.ParseArtifact(name)
		if !ok {
			r.Log.Warn("unrecognized file in data store", zap.String("path", rel))
			return nil
		}

		node, err := t.AtPath(relDir)
		if err != nil {
			return fmt.Errorf("%w: artifact %q outside metadata", tree.ErrMalformed, rel)
		}
		f, exists := node.Files[fileName]
		if !exists {
			f = file.New(relDir, fileName)
			node.Files[fileName] = f
		}
		if err := f.LoadEvent(kind, revision, content, name); err != nil {
			return err
		}
		node.Bump(revision)
		return nil
	})
	if err != nil {
		return err
	}

	r.lastRev = r.Tree.Root.MaxRevision
	return nil
}
