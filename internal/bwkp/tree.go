package bwkp

import (
	"fmt"
	"slices"
	"strings"
)

// Group is a destination group. Groups are owned by a Store; the exported
// mutators are primarily for use by Store implementations.
type Group struct {
	ID    string
	Name  string
	Notes string

	parent  *Group
	groups  []*Group
	entries []*Entry
}

// NewRootGroup creates a parentless group.
func NewRootGroup(id, name string) *Group {
	return &Group{ID: id, Name: name}
}

// AddChild appends a new child group. It does not check for duplicates;
// ResolveGroupPath is responsible for reusing existing siblings.
func (g *Group) AddChild(id, name string) *Group {
	child := &Group{ID: id, Name: name, parent: g}
	g.groups = append(g.groups, child)
	return child
}

// AddEntry appends a new entry to the group.
func (g *Group) AddEntry(e *Entry) {
	g.entries = append(g.entries, e)
}

// RemoveEntry drops e from the group. It reports whether e was present.
func (g *Group) RemoveEntry(e *Entry) bool {
	i := slices.Index(g.entries, e)
	if i < 0 {
		return false
	}
	g.entries = slices.Delete(g.entries, i, i+1)
	return true
}

// Parent returns the parent group, or nil for a root.
func (g *Group) Parent() *Group { return g.parent }

// Groups returns the direct child groups in creation order.
func (g *Group) Groups() []*Group { return g.groups }

// Entries returns the group's entries in creation order.
func (g *Group) Entries() []*Entry { return g.entries }

// Path returns the '/'-joined names from the root's child down to g.
// The root itself contributes no segment.
func (g *Group) Path() string {
	var names []string
	for n := g; n != nil && n.parent != nil; n = n.parent {
		names = append(names, n.Name)
	}
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return strings.Join(names, "/")
}

// CustomField is an extra string stored on an entry.
type CustomField struct {
	Name      string
	Value     string
	Protected bool
}

// EntryAttachment is a named binary stored on an entry.
type EntryAttachment struct {
	FileName string
	Data     []byte
}

// Entry is a destination entry. Custom-field names and attachment file names
// are unique within one entry.
type Entry struct {
	ID       string
	Title    string
	UserName string
	Password string
	URL      string
	Notes    string
	OTP      string

	fields      []CustomField
	attachments []EntryAttachment
}

// Fields returns the custom fields in insertion order.
func (e *Entry) Fields() []CustomField { return e.fields }

// Field looks up a custom field by exact name.
func (e *Entry) Field(name string) (CustomField, bool) {
	for _, f := range e.fields {
		if f.Name == name {
			return f, true
		}
	}
	return CustomField{}, false
}

// Attachments returns the attachments in insertion order.
func (e *Entry) Attachments() []EntryAttachment { return e.attachments }

// SetField adds a custom field, rejecting names already in use.
func (e *Entry) SetField(name, value string, protected bool) error {
	if _, ok := e.Field(name); ok {
		return fmt.Errorf("%w: %q", ErrDuplicateField, name)
	}
	e.fields = append(e.fields, CustomField{Name: name, Value: value, Protected: protected})
	return nil
}

// AddAttachment adds a binary, rejecting file names already in use.
func (e *Entry) AddAttachment(fileName string, data []byte) error {
	for _, a := range e.attachments {
		if a.FileName == fileName {
			return fmt.Errorf("%w: %q", ErrDuplicateAttachment, fileName)
		}
	}
	e.attachments = append(e.attachments, EntryAttachment{FileName: fileName, Data: data})
	return nil
}
