// Package file implements the per-file revision log and its on-disk
// artifact store. A File is an event log (create/modify/delete, each
// tagged with revision, content kind and artifact locator); a Context
// performs the artifact IO needed to record new events and reconstruct
// content at any past revision.
package file

import (
	"errors"
	"fmt"
	"path"
	"sort"
)

var (
	// ErrInvalidEvent reports an event with an unknown kind, content kind
	// or non-positive revision.
	ErrInvalidEvent = errors.New("invalid event")
	// ErrDuplicateEvent reports a second event at an already-recorded revision.
	ErrDuplicateEvent = errors.New("duplicate event")
	// ErrEventOrder reports an event added out of causal order or a
	// duplicate terminal event.
	ErrEventOrder = errors.New("event out of order")
	// ErrAlreadyHasHistory reports a create on a file that is already tracked.
	ErrAlreadyHasHistory = errors.New("file already has history")
	// ErrNotYetPresent reports a content request at a revision before the
	// file first appeared.
	ErrNotYetPresent = errors.New("file not yet present at revision")
	// ErrDeletedAtRevision reports a content request at a revision where
	// the file was deleted.
	ErrDeletedAtRevision = errors.New("file deleted at revision")
)

// ContentKind classifies a file's content at one event.
type ContentKind int

const (
	Text ContentKind = iota
	Binary
)

func (k ContentKind) String() string {
	if k == Text {
		return "text"
	}
	return "binary"
}

// EventKind distinguishes the three event states. A live event holds the
// file's current-as-of-its-last-event content; once superseded it is
// historicized in place, never duplicated.
type EventKind int

const (
	Live EventKind = iota
	Historical
	Deleted
)

// Event is one entry of a file's revision log. Locator names the on-disk
// artifact carrying the event's content (or delta, or delete marker).
type Event struct {
	Kind     EventKind
	Content  ContentKind
	Revision int
	Locator  string
}

// File is the event log of a single tracked path. Events are dense by
// revision but not required contiguous. Touched is commit-scoped scratch
// state reset at the start of every commit walk; it is not persisted.
type File struct {
	Name string
	Dir  string // POSIX-style directory relative to the base, "" for the root

	Events       map[int]Event
	LastRevision int

	Touched bool

	liveRev int // revision of the live event, 0 when none
}

// New returns an empty log for the file name under relative directory dir.
func New(dir, name string) *File {
	return &File{Name: name, Dir: dir, Events: map[int]Event{}}
}

// RelPath returns the file's POSIX-style path relative to the base.
func (f *File) RelPath() string {
	if f.Dir == "" {
		return f.Name
	}
	return path.Join(f.Dir, f.Name)
}

// IsNew reports whether no events are recorded yet.
func (f *File) IsNew() bool {
	return len(f.Events) == 0
}

// LiveRevision returns the revision of the live event, 0 when none.
func (f *File) LiveRevision() int {
	return f.liveRev
}

// LoadEvent records one event. It is the rehydration entry point: events
// may arrive in any order, so the structural invariants (no duplicate
// revision, at most one live event, the live event maximal) are what is
// enforced, not arrival order.
func (f *File) LoadEvent(kind EventKind, revision int, content ContentKind, locator string) error {
	if kind != Live && kind != Historical && kind != Deleted {
		return fmt.Errorf("%w: kind %d for %q", ErrInvalidEvent, kind, f.RelPath())
	}
	if content != Text && content != Binary {
		return fmt.Errorf("%w: content kind %d for %q", ErrInvalidEvent, content, f.RelPath())
	}
	if revision < 1 {
		return fmt.Errorf("%w: revision %d for %q", ErrInvalidEvent, revision, f.RelPath())
	}
	if _, ok := f.Events[revision]; ok {
		return fmt.Errorf("%w: revision %d for %q", ErrDuplicateEvent, revision, f.RelPath())
	}
	if kind == Live {
		if f.liveRev != 0 {
			return fmt.Errorf("%w: second live event at %d for %q (live at %d)", ErrEventOrder, revision, f.RelPath(), f.liveRev)
		}
		if revision < f.LastRevision {
			return fmt.Errorf("%w: live event at %d below last revision %d for %q", ErrEventOrder, revision, f.LastRevision, f.RelPath())
		}
	} else if f.liveRev != 0 && revision > f.liveRev {
		return fmt.Errorf("%w: event at %d beyond live event %d for %q", ErrEventOrder, revision, f.liveRev, f.RelPath())
	}

	f.Events[revision] = Event{Kind: kind, Content: content, Revision: revision, Locator: locator}
	if revision > f.LastRevision {
		f.LastRevision = revision
	}
	if kind == Live {
		f.liveRev = revision
	}
	return nil
}

// eventAt returns the event with the greatest revision <= rev.
func (f *File) eventAt(rev int) (Event, bool) {
	best := 0
	for r := range f.Events {
		if r <= rev && r > best {
			best = r
		}
	}
	if best == 0 {
		return Event{}, false
	}
	return f.Events[best], true
}

// ExistsAt reports whether the file was present at revision rev: present
// iff the closest event at or before rev is not a delete.
func (f *File) ExistsAt(rev int) bool {
	ev, ok := f.eventAt(rev)
	return ok && ev.Kind != Deleted
}

// KindAt returns the content kind valid at revision rev. The second
// return is false when the file did not exist at rev.
func (f *File) KindAt(rev int) (ContentKind, bool) {
	ev, ok := f.eventAt(rev)
	if !ok || ev.Kind == Deleted {
		return Text, false
	}
	return ev.Content, true
}

// sortedRevisions returns all recorded revisions in ascending order.
func (f *File) sortedRevisions() []int {
	revs := make([]int, 0, len(f.Events))
	for r := range f.Events {
		revs = append(revs, r)
	}
	sort.Ints(revs)
	return revs
}

// historicize flips the live event to historical, pointing it at the
// given artifact locator. The event is rewritten in place.
func (f *File) historicize(locator string) {
	ev := f.Events[f.liveRev]
	ev.Kind = Historical
	ev.Locator = locator
	f.Events[f.liveRev] = ev
	f.liveRev = 0
}
