package tree

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"vercon/internal/util"
)

// metadataLine matches one serialized node: leading spaces encode depth,
// then the comma-joined history, a space, and the segment name.
var metadataLine = regexp.MustCompile(`^( *)(\d+(?:,\d+)*) (.+)$`)

// Serialize renders the tree as indentation-depth-encoded lines, one per
// node, children sorted by name, the unnamed root omitted. File objects
// are not part of this text; they are rehydrated by scanning the data
// store.
func (t *Tree) Serialize() string {
	var b strings.Builder
	var walk func(n *Node, depth int)
	walk = func(n *Node, depth int) {
		for _, name := range util.SortedKeys(n.Children) {
			child := n.Children[name]
			b.WriteString(strings.Repeat(" ", depth))
			b.WriteString(historyString(child.History))
			b.WriteByte(' ')
			b.WriteString(child.Name)
			b.WriteByte('\n')
			walk(child, depth+1)
		}
	}
	walk(t.Root, 0)
	return b.String()
}

// Deserialize rebuilds a tree from its serialized form. The round-trip
// Deserialize(Serialize(t)) preserves history and path structure.
func Deserialize(text string) (*Tree, error) {
	t := New()
	// stack[d] is the most recent node seen at depth d
	stack := []*Node{t.Root}

	for i, line := range strings.Split(text, "\n") {
		if line == "" {
			continue
		}
		m := metadataLine.FindStringSubmatch(line)
		if m == nil {
			return nil, fmt.Errorf("%w: line %d %q", ErrMalformed, i+1, line)
		}
		depth := len(m[1])
		if depth+1 > len(stack) {
			return nil, fmt.Errorf("%w: line %d skips depth", ErrMalformed, i+1)
		}
		history, err := parseHistory(m[2])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, i+1, err)
		}

		parent := stack[depth]
		name := m[3]
		if _, ok := parent.Children[name]; ok {
			return nil, fmt.Errorf("%w: line %d duplicates %q", ErrMalformed, i+1, name)
		}
		node := newNode(name, parent)
		node.History = history
		parent.Children[name] = node
		node.bump(history[len(history)-1])

		stack = append(stack[:depth+1], node)
	}
	return t, nil
}

func historyString(history []int) string {
	parts := make([]string, len(history))
	for i, r := range history {
		parts[i] = strconv.Itoa(r)
	}
	return strings.Join(parts, ",")
}

func parseHistory(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	history := make([]int, len(parts))
	last := 0
	for i, p := range parts {
		r, err := strconv.Atoi(p)
		if err != nil {
			return nil, err
		}
		if r <= last {
			return nil, fmt.Errorf("%w: %d after %d", ErrHistoryOrder, r, last)
		}
		history[i] = r
		last = r
	}
	return history, nil
}
