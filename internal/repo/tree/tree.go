// Package tree implements the directory activity model: a hierarchical
// map of paths to creation/deletion histories, used both to mirror the
// on-disk tree and to decide whether a path was present at a revision.
package tree

import (
	"errors"
	"fmt"
	"strings"

	"vercon/internal/repo/store/file"
	"vercon/internal/util"
)

var (
	// ErrNotFound reports a lookup miss.
	ErrNotFound = errors.New("path not found")
	// ErrExists reports re-adding a path that is already active.
	ErrExists = errors.New("path already exists")
	// ErrMalformed reports an unparsable metadata line.
	ErrMalformed = errors.New("malformed metadata")
	// ErrHistoryOrder reports a history entry that does not advance.
	ErrHistoryOrder = errors.New("history revision out of order")
)

// Node represents one path segment. History is the ordered list of
// revisions at which the directory toggled between created and deleted;
// odd length means active. A node is never destroyed, only deactivated.
// Touched is commit-scoped scratch state reset at the start of every
// commit walk; it is not part of the persisted model.
type Node struct {
	Name     string
	History  []int
	Children map[string]*Node
	Files    map[string]*file.File

	// MaxRevision is the highest revision touched anywhere in this subtree.
	MaxRevision int
	Touched     bool

	parent *Node // non-owning, used only for path reconstruction
}

func newNode(name string, parent *Node) *Node {
	return &Node{
		Name:     name,
		Children: map[string]*Node{},
		Files:    map[string]*file.File{},
		parent:   parent,
	}
}

// Tree owns the root node. The root has history [0] and no name; it is
// the base of the tree, not itself activity-tracked.
type Tree struct {
	Root *Node
}

func New() *Tree {
	root := newNode("", nil)
	root.History = []int{0}
	return &Tree{Root: root}
}

// Path returns the node's POSIX-style path relative to the root.
func (n *Node) Path() string {
	if n.parent == nil {
		return ""
	}
	parent := n.parent.Path()
	if parent == "" {
		return n.Name
	}
	return parent + "/" + n.Name
}

// Active reports the node's current state: odd history length is active.
func (n *Node) Active() bool {
	return len(n.History)%2 == 1
}

// ActiveAt replays the history up to rev: start inactive, flip on each
// entry <= rev.
func (n *Node) ActiveAt(rev int) bool {
	active := false
	for _, r := range n.History {
		if r > rev {
			break
		}
		active = !active
	}
	return active
}

// Toggle appends rev to the history, flipping the node between active and
// inactive. rev must be strictly greater than the last history entry.
func (n *Node) Toggle(rev int) error {
	if len(n.History) > 0 && rev <= n.History[len(n.History)-1] {
		return fmt.Errorf("%w: %d after %d at %q", ErrHistoryOrder, rev, n.History[len(n.History)-1], n.Path())
	}
	n.History = append(n.History, rev)
	n.bump(rev)
	return nil
}

// bump raises MaxRevision on the node and all its ancestors.
func (n *Node) bump(rev int) {
	for cur := n; cur != nil; cur = cur.parent {
		if rev > cur.MaxRevision {
			cur.MaxRevision = rev
		}
	}
}

// Bump raises the subtree maximum, for callers recording file events.
func (n *Node) Bump(rev int) { n.bump(rev) }

// AtPath returns the node at a POSIX-style relative path. The empty path
// is the root.
func (t *Tree) AtPath(p string) (*Node, error) {
	cur := t.Root
	if p == "" {
		return cur, nil
	}
	for _, seg := range strings.Split(p, "/") {
		next, ok := cur.Children[seg]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, p)
		}
		cur = next
	}
	return cur, nil
}

// Add creates missing segments along p with creation revision rev and
// reactivates segments that exist but are inactive. It fails only when
// the full path already existed and was already active.
func (t *Tree) Add(p string, rev int) (*Node, error) {
	if p == "" {
		return nil, fmt.Errorf("%w: empty path", ErrNotFound)
	}
	cur := t.Root
	changed := false
	for _, seg := range strings.Split(p, "/") {
		next, ok := cur.Children[seg]
		if !ok {
			next = newNode(seg, cur)
			next.History = []int{rev}
			next.bump(rev)
			cur.Children[seg] = next
			changed = true
		} else if !next.Active() {
			if err := next.Toggle(rev); err != nil {
				return nil, err
			}
			changed = true
		}
		cur = next
	}
	if !changed {
		return nil, fmt.Errorf("%w: %q", ErrExists, p)
	}
	return cur, nil
}

// ResetTouched clears the transient touched flags on every node and file
// before a commit walk.
func (t *Tree) ResetTouched() {
	var walk func(n *Node)
	walk = func(n *Node) {
		n.Touched = false
		for _, f := range n.Files {
			f.Touched = false
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(t.Root)
}

// Walk visits every node depth-first, children in name order, root first.
func (t *Tree) Walk(visit func(n *Node)) {
	var walk func(n *Node)
	walk = func(n *Node) {
		visit(n)
		for _, name := range util.SortedKeys(n.Children) {
			walk(n.Children[name])
		}
	}
	walk(t.Root)
}
