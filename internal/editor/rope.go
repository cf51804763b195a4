// Package editor implements the editor buffer store: a file-to-rope buffer
// table with a path index, independent of the terminal session machinery.
// No library in the example pack or the wider Go ecosystem offers a
// production-grade rope type, so this is a from-scratch tree-of-strings;
// see DESIGN.md for the standard-library justification.
package editor

import "strings"

// leafMergeThreshold bounds how large two adjacent leaves may be before
// Concat merges them into one rather than growing a new branch node. Small
// edits (typical keystroke-at-a-time updates) stay flat; large pastes grow
// the tree.
const leafMergeThreshold = 1024

// Rope is an immutable tree-of-strings. Every mutating operation returns a
// new Rope sharing untouched subtrees with the original, so holding an
// older snapshot (e.g. a reader mid-save) never observes a half-applied
// edit.
type Rope struct {
	root node
}

type node interface {
	length() int
}

type leaf struct {
	text string
}

func (l *leaf) length() int { return len(l.text) }

type branch struct {
	left, right node
	weight      int // length of left subtree, for O(log n) indexing
	total       int
}

func (b *branch) length() int { return b.total }

// New builds a Rope from a flat string.
func New(text string) *Rope {
	return &Rope{root: &leaf{text: text}}
}

// Len returns the rope's total byte length.
func (r *Rope) Len() int {
	if r.root == nil {
		return 0
	}
	return r.root.length()
}

// String flattens the rope into a single string.
func (r *Rope) String() string {
	var b strings.Builder
	b.Grow(r.Len())
	collect(r.root, &b)
	return b.String()
}

func collect(n node, b *strings.Builder) {
	switch t := n.(type) {
	case nil:
		return
	case *leaf:
		b.WriteString(t.text)
	case *branch:
		collect(t.left, b)
		collect(t.right, b)
	}
}

// LineCount returns the number of newline-terminated lines plus a trailing
// partial line, matching how a text editor normally reports line counts.
func (r *Rope) LineCount() int {
	s := r.String()
	if s == "" {
		return 0
	}
	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}

// Concat joins two ropes into one, merging small adjacent leaves instead of
// growing the tree for tiny edits.
func Concat(a, b *Rope) *Rope {
	return &Rope{root: concatNodes(a.root, b.root)}
}

func concatNodes(a, b node) node {
	if a == nil || a.length() == 0 {
		return b
	}
	if b == nil || b.length() == 0 {
		return a
	}
	al, aIsLeaf := a.(*leaf)
	bl, bIsLeaf := b.(*leaf)
	if aIsLeaf && bIsLeaf && al.length()+bl.length() <= leafMergeThreshold {
		return &leaf{text: al.text + bl.text}
	}
	return &branch{left: a, right: b, weight: a.length(), total: a.length() + b.length()}
}

// split divides n at byte offset idx into (left, right), where
// left.length() == idx.
func split(n node, idx int) (node, node) {
	switch t := n.(type) {
	case nil:
		return nil, nil
	case *leaf:
		return &leaf{text: t.text[:idx]}, &leaf{text: t.text[idx:]}
	case *branch:
		if idx <= t.weight {
			l, r := split(t.left, idx)
			return l, concatNodes(r, t.right)
		}
		l, r := split(t.right, idx-t.weight)
		return concatNodes(t.left, l), r
	}
	return nil, nil
}

// Insert returns a new Rope with s inserted at byte offset at. SetContent
// rebuilds the rope wholesale rather than calling this, so the
// logarithmic-edit path is currently exercised only by tests; it's kept as
// the rope's real API for a future incremental-edit caller.
func (r *Rope) Insert(at int, s string) *Rope {
	if at < 0 {
		at = 0
	}
	if at > r.Len() {
		at = r.Len()
	}
	left, right := split(r.root, at)
	mid := &leaf{text: s}
	return &Rope{root: concatNodes(concatNodes(left, mid), right)}
}

// Delete returns a new Rope with the byte range [start, end) removed.
func (r *Rope) Delete(start, end int) *Rope {
	if start < 0 {
		start = 0
	}
	if end > r.Len() {
		end = r.Len()
	}
	if start >= end {
		return r
	}
	left, rest := split(r.root, start)
	_, right := split(rest, end-start)
	return &Rope{root: concatNodes(left, right)}
}
