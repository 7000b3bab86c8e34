// Package delta implements the edit-script codec used to reconstruct
// earlier revisions of text files. A delta is an ordered list of
// copy/skip/insert instructions consumed left-to-right against a source
// buffer; deltas are computed new→old, so applying them in
// reverse-chronological order walks time backward.
package delta

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pmezard/go-difflib/difflib"
)

// ErrCorrupt reports a malformed instruction stream or a cursor overrun.
var ErrCorrupt = errors.New("corrupt delta")

// Op identifies one instruction kind.
type Op byte

const (
	// Copy emits the next n characters of the source.
	Copy Op = 'c'
	// Skip advances over n source characters without emitting.
	Skip Op = 's'
	// Insert emits a literal verbatim.
	Insert Op = 'i'
)

// Instruction is one step of an edit script. Count is a character count,
// not a byte count. Literal is set for Insert only.
type Instruction struct {
	Op      Op
	Count   int
	Literal string
}

// Delta is an ordered edit script transforming one text into another.
type Delta []Instruction

// Compute produces a delta such that Apply(from, delta) == to,
// character-exact including line terminators. Matching is line-based LCS;
// exact minimality is not required, only round-trip fidelity. Autojunk is
// disabled so long repeated runs are matched deterministically.
func Compute(from, to string) Delta {
	m := difflib.NewMatcherWithJunk(splitLinesKeepNL(from), splitLinesKeepNL(to), false, nil)

	var d Delta
	toRunes := []rune(to)
	fromOff := lineOffsets(from)
	toOff := lineOffsets(to)

	for _, op := range m.GetOpCodes() {
		srcLen := fromOff[op.I2] - fromOff[op.I1]
		dstLen := toOff[op.J2] - toOff[op.J1]
		switch op.Tag {
		case 'e':
			if srcLen > 0 {
				d = append(d, Instruction{Op: Copy, Count: srcLen})
			}
		case 'd':
			if srcLen > 0 {
				d = append(d, Instruction{Op: Skip, Count: srcLen})
			}
		case 'i':
			if dstLen > 0 {
				lit := string(toRunes[toOff[op.J1]:toOff[op.J2]])
				d = append(d, Instruction{Op: Insert, Count: dstLen, Literal: lit})
			}
		case 'r':
			if srcLen > 0 {
				d = append(d, Instruction{Op: Skip, Count: srcLen})
			}
			if dstLen > 0 {
				lit := string(toRunes[toOff[op.J1]:toOff[op.J2]])
				d = append(d, Instruction{Op: Insert, Count: dstLen, Literal: lit})
			}
		}
	}
	return d
}

// Apply runs the edit script against from and returns the rebuilt text.
func Apply(from string, d Delta) (string, error) {
	src := []rune(from)
	var out strings.Builder
	cur := 0
	for _, ins := range d {
		switch ins.Op {
		case Copy:
			if cur+ins.Count > len(src) {
				return "", fmt.Errorf("%w: copy %d overruns source at %d/%d", ErrCorrupt, ins.Count, cur, len(src))
			}
			out.WriteString(string(src[cur : cur+ins.Count]))
			cur += ins.Count
		case Skip:
			if cur+ins.Count > len(src) {
				return "", fmt.Errorf("%w: skip %d overruns source at %d/%d", ErrCorrupt, ins.Count, cur, len(src))
			}
			cur += ins.Count
		case Insert:
			out.WriteString(ins.Literal)
		default:
			return "", fmt.Errorf("%w: unknown op %q", ErrCorrupt, ins.Op)
		}
	}
	return out.String(), nil
}

// Encode renders the delta in its serialized textual form: one
// "<op> <count>" line per instruction, with insert literals following
// their header line and terminated by a newline. The literal may itself
// contain newlines; only the character count is authoritative.
func Encode(d Delta) string {
	var b strings.Builder
	for _, ins := range d {
		b.WriteString(string(ins.Op))
		b.WriteByte(' ')
		b.WriteString(strconv.Itoa(ins.Count))
		b.WriteByte('\n')
		if ins.Op == Insert {
			b.WriteString(ins.Literal)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// Decode parses the serialized textual form back into a Delta.
func Decode(text string) (Delta, error) {
	runes := []rune(text)
	var d Delta
	i := 0
	for i < len(runes) {
		nl := indexRune(runes, i, '\n')
		if nl < 0 {
			return nil, fmt.Errorf("%w: unterminated instruction line", ErrCorrupt)
		}
		line := string(runes[i:nl])
		i = nl + 1

		op, count, err := parseHeader(line)
		if err != nil {
			return nil, err
		}
		ins := Instruction{Op: op, Count: count}
		if op == Insert {
			if i+count > len(runes) {
				return nil, fmt.Errorf("%w: insert literal truncated", ErrCorrupt)
			}
			ins.Literal = string(runes[i : i+count])
			i += count
			if i >= len(runes) || runes[i] != '\n' {
				return nil, fmt.Errorf("%w: insert literal not newline-terminated", ErrCorrupt)
			}
			i++
		}
		d = append(d, ins)
	}
	return d, nil
}

func parseHeader(line string) (Op, int, error) {
	if len(line) < 3 || line[1] != ' ' {
		return 0, 0, fmt.Errorf("%w: bad instruction %q", ErrCorrupt, line)
	}
	op := Op(line[0])
	if op != Copy && op != Skip && op != Insert {
		return 0, 0, fmt.Errorf("%w: unknown op %q", ErrCorrupt, line)
	}
	count, err := strconv.Atoi(line[2:])
	if err != nil || count < 0 {
		return 0, 0, fmt.Errorf("%w: bad count in %q", ErrCorrupt, line)
	}
	return op, count, nil
}

func indexRune(runes []rune, from int, r rune) int {
	for i := from; i < len(runes); i++ {
		if runes[i] == r {
			return i
		}
	}
	return -1
}

// splitLinesKeepNL splits into lines keeping the newline characters, which
// lets instruction counts be derived from line spans without adjustment.
func splitLinesKeepNL(s string) []string {
	if s == "" {
		return []string{}
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// lineOffsets returns, for each line boundary, the cumulative character
// offset, so that offsets[i2]-offsets[i1] is the character span of a line
// range.
func lineOffsets(s string) []int {
	lines := splitLinesKeepNL(s)
	offsets := make([]int, len(lines)+1)
	for i, ln := range lines {
		offsets[i+1] = offsets[i] + utf8.RuneCountInString(ln)
	}
	return offsets
}
