package testutil

import (
	"strings"

	"bwkp-go/internal/bwkp"
	"bwkp-go/internal/store"
)

// NewTestStore returns a memory store with sequential IDs.
func NewTestStore() *store.MemoryStore {
	return store.NewMemoryStore(NewStubIDGenerator())
}

// FindGroup walks '/'-separated names from root. It returns nil if any
// segment is missing.
func FindGroup(root *bwkp.Group, path string) *bwkp.Group {
	current := root
	for _, name := range strings.Split(path, "/") {
		var next *bwkp.Group
		for _, g := range current.Groups() {
			if g.Name == name {
				next = g
				break
			}
		}
		if next == nil {
			return nil
		}
		current = next
	}
	return current
}

// FindEntry returns the first entry titled title directly in group.
func FindEntry(group *bwkp.Group, title string) *bwkp.Entry {
	if group == nil {
		return nil
	}
	for _, e := range group.Entries() {
		if e.Title == title {
			return e
		}
	}
	return nil
}

// Dump renders the tree below g as indented lines, for comparing runs.
func Dump(g *bwkp.Group) string {
	var b strings.Builder
	dump(&b, g, 0)
	return b.String()
}

func dump(b *strings.Builder, g *bwkp.Group, depth int) {
	indent := strings.Repeat("  ", depth)
	b.WriteString(indent + "[" + g.Name + "]\n")
	for _, e := range g.Entries() {
		b.WriteString(indent + "  " + e.Title + " user=" + e.UserName + " url=" + e.URL + " otp=" + e.OTP + "\n")
		for _, f := range e.Fields() {
			b.WriteString(indent + "    field " + f.Name + "=" + f.Value + "\n")
		}
		for _, a := range e.Attachments() {
			b.WriteString(indent + "    attachment " + a.FileName + "\n")
		}
	}
	for _, child := range g.Groups() {
		dump(b, child, depth+1)
	}
}
