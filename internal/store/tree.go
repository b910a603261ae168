package store

import (
	"errors"
	"fmt"

	"bwkp-go/internal/bwkp"
)

var errClosed = errors.New("store is closed")

// treeStore holds the destination tree in memory. It implements every
// bwkp.Store method except Commit and Discard.
type treeStore struct {
	root   *bwkp.Group
	idgen  bwkp.IDGenerator
	closed bool
}

func newTreeStore(rootName string, idgen bwkp.IDGenerator) treeStore {
	return treeStore{root: bwkp.NewRootGroup(idgen.New(), rootName), idgen: idgen}
}

func (s *treeStore) Root() *bwkp.Group { return s.root }

func (s *treeStore) AddGroup(parent *bwkp.Group, name string) (*bwkp.Group, error) {
	if s.closed {
		return nil, errClosed
	}
	if name == "" {
		return nil, fmt.Errorf("group name must not be empty")
	}
	return parent.AddChild(s.idgen.New(), name), nil
}

func (s *treeStore) Children(parent *bwkp.Group) []*bwkp.Group {
	return parent.Groups()
}

func (s *treeStore) AddEntry(group *bwkp.Group, title, username, password string) (*bwkp.Entry, error) {
	if s.closed {
		return nil, errClosed
	}
	e := &bwkp.Entry{ID: s.idgen.New(), Title: title, UserName: username, Password: password}
	group.AddEntry(e)
	return e, nil
}

func (s *treeStore) RemoveEntry(group *bwkp.Group, entry *bwkp.Entry) error {
	if s.closed {
		return errClosed
	}
	if !group.RemoveEntry(entry) {
		return fmt.Errorf("entry %q is not in group %q", entry.Title, group.Path())
	}
	return nil
}

func (s *treeStore) SetCustomField(entry *bwkp.Entry, name, value string, protected bool) error {
	if s.closed {
		return errClosed
	}
	return entry.SetField(name, value, protected)
}

func (s *treeStore) AddAttachment(entry *bwkp.Entry, fileName string, data []byte) error {
	if s.closed {
		return errClosed
	}
	return entry.AddAttachment(fileName, data)
}

func (s *treeStore) SetGroupNotes(group *bwkp.Group, notes string) { group.Notes = notes }

func (s *treeStore) SetEntryNotes(entry *bwkp.Entry, notes string) { entry.Notes = notes }

func (s *treeStore) SetOTP(entry *bwkp.Entry, uri string) error {
	if s.closed {
		return errClosed
	}
	if entry.OTP != "" {
		return fmt.Errorf("%w: otp", bwkp.ErrDuplicateField)
	}
	entry.OTP = uri
	return nil
}

func (s *treeStore) SetURL(entry *bwkp.Entry, url string) { entry.URL = url }
