package bwkp

// Store is the destination credential database. A Store is exclusively owned
// by one export run and is finished with exactly one of Commit or Discard.
type Store interface {
	// Root returns the top-level group.
	Root() *Group

	// AddGroup creates a child group under parent.
	AddGroup(parent *Group, name string) (*Group, error)

	// Children returns parent's direct child groups in creation order.
	Children(parent *Group) []*Group

	// AddEntry creates an entry in group. Empty strings are valid values.
	AddEntry(group *Group, title, username, password string) (*Entry, error)

	// RemoveEntry deletes an entry created by AddEntry from group.
	RemoveEntry(group *Group, entry *Entry) error

	// SetCustomField stores a custom string on an entry. Names must be unique
	// within the entry.
	SetCustomField(entry *Entry, name, value string, protected bool) error

	// AddAttachment stores a binary on an entry. File names must be unique
	// within the entry.
	AddAttachment(entry *Entry, fileName string, data []byte) error

	SetGroupNotes(group *Group, notes string)
	SetEntryNotes(entry *Entry, notes string)

	// SetOTP stores a canonical otpauth:// URI on an entry.
	SetOTP(entry *Entry, uri string) error

	SetURL(entry *Entry, url string)

	// Commit atomically persists the whole tree. After Commit the store is closed.
	Commit() error

	// Discard releases the store without writing anything.
	Discard() error
}
