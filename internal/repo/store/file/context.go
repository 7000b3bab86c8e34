package file

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"vercon/internal/config"
	"vercon/internal/delta"
	"vercon/internal/util"
)

// Context performs artifact IO for file event logs. BaseDir is the
// working-tree root, DataDir the artifact store root mirroring it.
type Context struct {
	FS      afero.Fs
	BaseDir string
	DataDir string
	Log     *zap.Logger
}

// NewContext creates a store context. A nil logger is replaced by a no-op
// sink; the store never writes to a process-wide log.
func NewContext(fsys afero.Fs, baseDir, dataDir string, log *zap.Logger) *Context {
	if log == nil {
		log = zap.NewNop()
	}
	return &Context{FS: fsys, BaseDir: baseDir, DataDir: dataDir, Log: log}
}

// WorkingPath returns the absolute working-tree path of f.
func (st *Context) WorkingPath(f *File) string {
	return filepath.Join(st.BaseDir, filepath.FromSlash(f.Dir), f.Name)
}

// artifactPath returns the absolute path of an artifact of f.
func (st *Context) artifactPath(f *File, locator string) string {
	return filepath.Join(st.DataDir, filepath.FromSlash(f.Dir), locator)
}

func (st *Context) readArtifact(f *File, locator string) ([]byte, error) {
	data, err := afero.ReadFile(st.FS, st.artifactPath(f, locator))
	if err != nil {
		return nil, fmt.Errorf("read artifact %q: %w", locator, err)
	}
	return data, nil
}

func (st *Context) writeArtifact(f *File, locator string, data []byte) error {
	p := st.artifactPath(f, locator)
	if err := st.FS.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("mkdir for artifact %q: %w", locator, err)
	}
	if err := afero.WriteFile(st.FS, p, data, 0o644); err != nil {
		return fmt.Errorf("write artifact %q: %w", locator, err)
	}
	return nil
}

// backupArtifact copies an existing artifact to its BAK<R>- counterpart
// in the same directory before the commit targeting revision R mutates it.
// Copy, not move: recovery must be idempotent.
func (st *Context) backupArtifact(f *File, locator string, commitRev int) error {
	data, err := st.readArtifact(f, locator)
	if err != nil {
		return err
	}
	return st.writeArtifact(f, BackupLocator(commitRev, locator), data)
}

// Create records a create event at revision rev with the given working
// content and writes the live artifact. A file with prior history is
// rejected unless its terminal event is a delete marker, which is the
// recreate-after-delete path.
func (st *Context) Create(f *File, rev int, data []byte) error {
	if !f.IsNew() {
		if f.liveRev != 0 {
			return fmt.Errorf("%w: %q", ErrAlreadyHasHistory, f.RelPath())
		}
		if rev <= f.LastRevision {
			return fmt.Errorf("%w: recreate at %d not beyond last revision %d for %q", ErrEventOrder, rev, f.LastRevision, f.RelPath())
		}
	}

	kind := classify(data)
	locator := Locator(livePrefix(kind), rev, f.Name)
	if err := st.writeArtifact(f, locator, data); err != nil {
		return err
	}
	if err := f.LoadEvent(Live, rev, kind, locator); err != nil {
		return err
	}
	st.Log.Debug("file created", zap.String("path", f.RelPath()), zap.Int("revision", rev), zap.Stringer("kind", kind))
	return nil
}

// Change supersedes the live event with the current working content at
// revision rev. The prior live artifact is historicized according to the
// kind transition: binary old content is renamed to a binary snapshot,
// text old content is stored as a reverse delta (computed against the new
// text, or against the empty string when the new content is binary).
func (st *Context) Change(f *File, rev int, data []byte) error {
	if f.liveRev == 0 {
		return fmt.Errorf("%w: no live event to supersede for %q", ErrEventOrder, f.RelPath())
	}
	if rev <= f.LastRevision {
		return fmt.Errorf("%w: change at %d not beyond last revision %d for %q", ErrEventOrder, rev, f.LastRevision, f.RelPath())
	}

	newKind := classify(data)
	var deltaSource string
	if newKind == Text {
		deltaSource = string(data)
	}
	if err := st.historicizeLive(f, rev, deltaSource); err != nil {
		return err
	}

	locator := Locator(livePrefix(newKind), rev, f.Name)
	if err := st.writeArtifact(f, locator, data); err != nil {
		return err
	}
	if err := f.LoadEvent(Live, rev, newKind, locator); err != nil {
		return err
	}
	st.Log.Debug("file changed", zap.String("path", f.RelPath()), zap.Int("revision", rev), zap.Stringer("kind", newKind))
	return nil
}

// Delete historicizes the live event and records a delete marker at rev.
func (st *Context) Delete(f *File, rev int) error {
	if f.liveRev == 0 {
		return fmt.Errorf("%w: no live event to delete for %q", ErrEventOrder, f.RelPath())
	}
	if rev <= f.LastRevision {
		return fmt.Errorf("%w: delete at %d not beyond last revision %d for %q", ErrEventOrder, rev, f.LastRevision, f.RelPath())
	}

	if err := st.historicizeLive(f, rev, ""); err != nil {
		return err
	}

	locator := Locator(config.PrefixDelete, rev, f.Name)
	if err := st.writeArtifact(f, locator, nil); err != nil {
		return err
	}
	if err := f.LoadEvent(Deleted, rev, Binary, locator); err != nil {
		return err
	}
	st.Log.Debug("file deleted", zap.String("path", f.RelPath()), zap.Int("revision", rev))
	return nil
}

// historicizeLive turns the live artifact into a historical one, backing
// it up first so an interrupted commit can be undone. For binary content
// the artifact is renamed verbatim. For text content a reverse delta is
// stored instead: textSource is the content the delta is computed from —
// the superseding text, or the empty string when the superseding event is
// binary or a delete.
func (st *Context) historicizeLive(f *File, commitRev int, textSource string) error {
	old := f.Events[f.liveRev]
	if err := st.backupArtifact(f, old.Locator, commitRev); err != nil {
		return err
	}

	histLocator := Locator(histPrefix(old.Content), old.Revision, f.Name)
	switch old.Content {
	case Binary:
		oldPath := st.artifactPath(f, old.Locator)
		if err := st.FS.Rename(oldPath, st.artifactPath(f, histLocator)); err != nil {
			return fmt.Errorf("historicize %q: %w", old.Locator, err)
		}
	case Text:
		oldData, err := st.readArtifact(f, old.Locator)
		if err != nil {
			return err
		}
		d := delta.Compute(textSource, string(oldData))
		if err := st.writeArtifact(f, histLocator, []byte(delta.Encode(d))); err != nil {
			return err
		}
		if err := st.FS.Remove(st.artifactPath(f, old.Locator)); err != nil {
			return fmt.Errorf("remove superseded artifact %q: %w", old.Locator, err)
		}
	}

	f.historicize(histLocator)
	return nil
}

// Modified reports whether the working-tree content of f differs from the
// content of the live artifact. The comparison is content-based; file
// timestamps are never consulted.
func (st *Context) Modified(f *File) (bool, error) {
	working, err := afero.ReadFile(st.FS, st.WorkingPath(f))
	if err != nil {
		return false, fmt.Errorf("read working file %q: %w", f.RelPath(), err)
	}
	if f.liveRev == 0 {
		// store says deleted, working tree has content: uncommitted
		return true, nil
	}
	committed, err := st.readArtifact(f, f.Events[f.liveRev].Locator)
	if err != nil {
		return false, err
	}
	return !util.ContentEqual(working, committed), nil
}

// ContentsAt reconstructs the exact content of f as of revision rev,
// together with the content kind valid at that revision.
func (st *Context) ContentsAt(f *File, rev int) ([]byte, ContentKind, error) {
	target, ok := f.eventAt(rev)
	if !ok {
		return nil, Text, fmt.Errorf("%w: %q at %d", ErrNotYetPresent, f.RelPath(), rev)
	}
	if target.Kind == Deleted {
		return nil, Text, fmt.Errorf("%w: %q at %d", ErrDeletedAtRevision, f.RelPath(), rev)
	}
	if target.Kind == Live || target.Content == Binary {
		data, err := st.readArtifact(f, target.Locator)
		if err != nil {
			return nil, Text, err
		}
		return data, target.Content, nil
	}

	// Historical text snapshot: walk forward through the delta chain up to
	// the next anchor, then merge backwards.
	chain, anchor := f.deltaChain(target.Revision)
	text, err := st.mergeTextBackwards(f, chain, anchor)
	if err != nil {
		return nil, Text, err
	}
	return []byte(text), Text, nil
}

// deltaChain returns the ascending revisions of the historical text
// deltas starting at rev, and the anchor event that bounds the chain: the
// next live event, binary snapshot or delete marker.
func (f *File) deltaChain(rev int) ([]int, Event) {
	var chain []int
	var anchor Event
	for _, r := range f.sortedRevisions() {
		if r < rev {
			continue
		}
		ev := f.Events[r]
		if ev.Kind == Live || ev.Kind == Deleted || ev.Content == Binary {
			anchor = ev
			break
		}
		chain = append(chain, r)
	}
	return chain, anchor
}

// mergeTextBackwards rebuilds historical text content. The running buffer
// starts from the anchor: its full text when the anchor is a live text
// artifact, the empty string otherwise (deltas stored below a binary or
// delete event were computed against the empty string). Each delta is
// then applied most-recent-first, walking time backward to the earliest
// revision of the chain.
func (st *Context) mergeTextBackwards(f *File, chain []int, anchor Event) (string, error) {
	var buffer string
	if anchor.Kind == Live && anchor.Content == Text {
		data, err := st.readArtifact(f, anchor.Locator)
		if err != nil {
			return "", err
		}
		buffer = string(data)
	}

	for i := len(chain) - 1; i >= 0; i-- {
		ev := f.Events[chain[i]]
		raw, err := st.readArtifact(f, ev.Locator)
		if err != nil {
			return "", err
		}
		d, err := delta.Decode(string(raw))
		if err != nil {
			return "", fmt.Errorf("artifact %q: %w", ev.Locator, err)
		}
		buffer, err = delta.Apply(buffer, d)
		if err != nil {
			return "", fmt.Errorf("artifact %q: %w", ev.Locator, err)
		}
	}
	return buffer, nil
}

func classify(data []byte) ContentKind {
	if util.IsText(data) {
		return Text
	}
	return Binary
}
