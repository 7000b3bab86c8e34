package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vercon/internal/config"
	"vercon/internal/fs"
)

func TestRepoConfigPaths(t *testing.T) {
	c := config.NewRepoConfig("/base")
	assert.Equal(t, "/base/REPO", c.RepoDir())
	assert.Equal(t, "/base/REPO/DATA", c.DataDir())
	assert.Equal(t, "/base/REPO/metadatadir.txt", c.MetadataPath())
	assert.Equal(t, "/base/REPO/commits.txt", c.CommitsPath())
	assert.Equal(t, "/base/REPO/LOCK", c.LockPath())
}

func TestFindBaseDirNearestWins(t *testing.T) {
	fsys := fs.NewMem()
	require.NoError(t, fsys.MkdirAll("/outer/REPO", 0o755))
	require.NoError(t, fsys.MkdirAll("/outer/mid/REPO", 0o755))
	require.NoError(t, fsys.MkdirAll("/outer/mid/leaf", 0o755))

	base, ok := config.FindBaseDir(fsys, "/outer/mid/leaf")
	require.True(t, ok)
	assert.Equal(t, "/outer/mid", base)

	base, ok = config.FindBaseDir(fsys, "/outer")
	require.True(t, ok)
	assert.Equal(t, "/outer", base)
}

func TestFindBaseDirMiss(t *testing.T) {
	fsys := fs.NewMem()
	require.NoError(t, fsys.MkdirAll("/plain/dir", 0o755))
	_, ok := config.FindBaseDir(fsys, "/plain/dir")
	assert.False(t, ok)
}

func TestFindBaseDirIgnoresRepoFile(t *testing.T) {
	// a plain file named REPO does not mark a repository
	fsys := fs.NewMem()
	require.NoError(t, fsys.MkdirAll("/here", 0o755))
	f, err := fsys.Create("/here/REPO")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, ok := config.FindBaseDir(fsys, "/here")
	assert.False(t, ok)
}
