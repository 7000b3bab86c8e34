package config

import (
	"path/filepath"

	"github.com/spf13/afero"
)

// FindBaseDir walks from dir up to the filesystem root looking for the
// nearest ancestor that contains a REPO directory. The closest match wins
// when several ancestors carry one. Returns ("", false) when none exists.
func FindBaseDir(fsys afero.Fs, dir string) (string, bool) {
	cur, err := filepath.Abs(dir)
	if err != nil {
		return "", false
	}
	for {
		ok, err := afero.DirExists(fsys, filepath.Join(cur, RepoDirName))
		if err == nil && ok {
			return cur, true
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", false
		}
		cur = parent
	}
}
