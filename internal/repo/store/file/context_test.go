package file_test

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vercon/internal/delta"
	"vercon/internal/fs"
	"vercon/internal/repo/store/file"
)

func newStore(t *testing.T) (*file.Context, afero.Fs) {
	t.Helper()
	fsys := fs.NewMem()
	require.NoError(t, fsys.MkdirAll("/work/REPO/DATA", 0o755))
	return file.NewContext(fsys, "/work", "/work/REPO/DATA", nil), fsys
}

func artifactNames(t *testing.T, fsys afero.Fs, dir string) []string {
	t.Helper()
	entries, err := afero.ReadDir(fsys, dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestCreateWritesLiveArtifact(t *testing.T) {
	st, fsys := newStore(t)
	f := file.New("", "a.txt")

	require.NoError(t, st.Create(f, 1, []byte("hello\n")))
	assert.Equal(t, 1, f.LiveRevision())
	assert.Equal(t, []string{"ET1- a.txt"}, artifactNames(t, fsys, "/work/REPO/DATA"))

	data, kind, err := st.ContentsAt(f, 1)
	require.NoError(t, err)
	assert.Equal(t, file.Text, kind)
	assert.Equal(t, "hello\n", string(data))
}

func TestCreateRejectsLiveFile(t *testing.T) {
	st, _ := newStore(t)
	f := file.New("", "a.txt")
	require.NoError(t, st.Create(f, 1, []byte("hello\n")))
	assert.ErrorIs(t, st.Create(f, 2, []byte("again\n")), file.ErrAlreadyHasHistory)
}

func TestTextChainReconstruction(t *testing.T) {
	st, fsys := newStore(t)
	f := file.New("", "a.txt")

	c1 := "alpha\nbeta\ngamma\n"
	c2 := "alpha\nBETA\ngamma\ndelta\n"
	c3 := "alpha\ndelta\n"
	require.NoError(t, st.Create(f, 1, []byte(c1)))
	require.NoError(t, st.Change(f, 2, []byte(c2)))
	require.NoError(t, st.Change(f, 3, []byte(c3)))

	assert.ElementsMatch(t, []string{"HT1- a.txt", "HT2- a.txt", "ET3- a.txt"},
		artifactNames(t, fsys, "/work/REPO/DATA"))

	for rev, want := range map[int]string{1: c1, 2: c2, 3: c3} {
		data, kind, err := st.ContentsAt(f, rev)
		require.NoError(t, err, "revision %d", rev)
		assert.Equal(t, file.Text, kind)
		assert.Equal(t, want, string(data), "revision %d", rev)
	}

	// historical artifacts hold reverse deltas against their successor
	raw, err := afero.ReadFile(fsys, "/work/REPO/DATA/HT2- a.txt")
	require.NoError(t, err)
	d, err := delta.Decode(string(raw))
	require.NoError(t, err)
	got, err := delta.Apply(c3, d)
	require.NoError(t, err)
	assert.Equal(t, c2, got)
}

func TestBinaryChainKeepsFullSnapshots(t *testing.T) {
	st, fsys := newStore(t)
	f := file.New("", "img")

	b1 := []byte{0xff, 0x00, 0x01}
	b2 := []byte{0xff, 0x00, 0x02, 0x03}
	require.NoError(t, st.Create(f, 1, b1))
	require.NoError(t, st.Change(f, 2, b2))

	assert.ElementsMatch(t, []string{"HB1- img", "EB2- img"},
		artifactNames(t, fsys, "/work/REPO/DATA"))

	data, kind, err := st.ContentsAt(f, 1)
	require.NoError(t, err)
	assert.Equal(t, file.Binary, kind)
	assert.Equal(t, b1, data)
}

func TestTypeChangeTextToBinaryAndBack(t *testing.T) {
	st, fsys := newStore(t)
	f := file.New("", "a.dat")

	c1 := "plain text\n"
	b2 := []byte{0xc3, 0x28} // invalid UTF-8
	c3 := "text again\n"
	require.NoError(t, st.Create(f, 1, []byte(c1)))
	require.NoError(t, st.Change(f, 2, b2))
	require.NoError(t, st.Change(f, 3, []byte(c3)))

	assert.ElementsMatch(t, []string{"HT1- a.dat", "HB2- a.dat", "ET3- a.dat"},
		artifactNames(t, fsys, "/work/REPO/DATA"))

	// the revision-1 delta anchors on the empty string, so the text content
	// survives the binary interlude
	data, kind, err := st.ContentsAt(f, 1)
	require.NoError(t, err)
	assert.Equal(t, file.Text, kind)
	assert.Equal(t, c1, string(data))

	data, kind, err = st.ContentsAt(f, 2)
	require.NoError(t, err)
	assert.Equal(t, file.Binary, kind)
	assert.Equal(t, b2, data)
}

func TestDeleteAndRecreate(t *testing.T) {
	st, fsys := newStore(t)
	f := file.New("", "a.txt")

	require.NoError(t, st.Create(f, 1, []byte("hello\n")))
	require.NoError(t, st.Delete(f, 2))
	assert.Equal(t, 0, f.LiveRevision())
	assert.ElementsMatch(t, []string{"HT1- a.txt", "D2- a.txt"},
		artifactNames(t, fsys, "/work/REPO/DATA"))

	data, _, err := st.ContentsAt(f, 1)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))

	_, _, err = st.ContentsAt(f, 2)
	assert.ErrorIs(t, err, file.ErrDeletedAtRevision)
	_, _, err = st.ContentsAt(f, 0)
	assert.ErrorIs(t, err, file.ErrNotYetPresent)

	// a delete marker ends the log but does not seal it
	require.NoError(t, st.Create(f, 3, []byte("reborn\n")))
	assert.Equal(t, 3, f.LiveRevision())
	data, _, err = st.ContentsAt(f, 3)
	require.NoError(t, err)
	assert.Equal(t, "reborn\n", string(data))
}

func TestChangeAndDeleteNeedAdvancingRevision(t *testing.T) {
	st, _ := newStore(t)
	f := file.New("", "a.txt")
	require.NoError(t, st.Create(f, 2, []byte("hello\n")))
	assert.ErrorIs(t, st.Change(f, 2, []byte("x\n")), file.ErrEventOrder)
	assert.ErrorIs(t, st.Delete(f, 1), file.ErrEventOrder)

	fresh := file.New("", "b.txt")
	assert.ErrorIs(t, st.Change(fresh, 1, []byte("x\n")), file.ErrEventOrder)
	assert.ErrorIs(t, st.Delete(fresh, 1), file.ErrEventOrder)
}

func TestModified(t *testing.T) {
	st, fsys := newStore(t)
	f := file.New("", "a.txt")
	require.NoError(t, afero.WriteFile(fsys, "/work/a.txt", []byte("hello\n"), 0o644))
	require.NoError(t, st.Create(f, 1, []byte("hello\n")))

	modified, err := st.Modified(f)
	require.NoError(t, err)
	assert.False(t, modified)

	require.NoError(t, afero.WriteFile(fsys, "/work/a.txt", []byte("hello!\n"), 0o644))
	modified, err = st.Modified(f)
	require.NoError(t, err)
	assert.True(t, modified)
}

func TestHistoricizeBacksUpLiveArtifact(t *testing.T) {
	st, fsys := newStore(t)
	f := file.New("", "a.txt")
	require.NoError(t, st.Create(f, 1, []byte("hello\n")))
	require.NoError(t, st.Change(f, 2, []byte("hello!\n")))

	// the superseded live artifact is copied aside under the commit revision
	data, err := afero.ReadFile(fsys, "/work/REPO/DATA/BAK2- ET1- a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))
}

func TestSubdirectoryArtifactsMirrorLayout(t *testing.T) {
	st, fsys := newStore(t)
	f := file.New("docs/notes", "a.txt")
	require.NoError(t, st.Create(f, 1, []byte("hello\n")))

	assert.Equal(t, []string{"ET1- a.txt"},
		artifactNames(t, fsys, "/work/REPO/DATA/docs/notes"))
	assert.Equal(t, "/work/docs/notes/a.txt", st.WorkingPath(f))
}
