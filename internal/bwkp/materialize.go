package bwkp

import (
	"errors"
	"fmt"
	"os"
)

const (
	otpFieldName   = "otp"
	fido2FieldName = "Fido2Credentials"
	uriFieldName   = "URI"
)

// reservedFieldNames are string keys the KDBX format uses itself. A custom
// field with one of these names would shadow entry data.
var reservedFieldNames = NewNameSet(otpFieldName, "Title", "UserName", "Password", "URL", "Notes")

// noReservedNames is the reserved set for attachment file names.
var noReservedNames = NewNameSet()

type plannedField struct {
	name      string
	value     string
	protected bool
}

type plannedAttachment struct {
	fileName string
	data     []byte
}

// Materializer turns vault items into destination entries.
type Materializer struct {
	store  Store
	logger Logger
}

// NewMaterializer creates a Materializer writing into store.
func NewMaterializer(store Store, logger Logger) *Materializer {
	return &Materializer{store: store, logger: logger}
}

// Materialize builds one entry in group from item. The entry is fully planned
// before the store is touched, and an entry whose store writes fail is
// removed again, so a failing item leaves no partial entry.
// Failures are returned as *EntryBuildError.
func (m *Materializer) Materialize(group *Group, item *Item) (*Entry, error) {
	entry, err := m.materialize(group, item)
	if err != nil {
		return nil, &EntryBuildError{ItemID: item.ID, ItemName: item.Name, Err: err}
	}
	return entry, nil
}

func (m *Materializer) materialize(group *Group, item *Item) (*Entry, error) {
	m.logger.Info("adding entry", "item", item.ID, "name", item.Name, "group", group.Path())

	fields, err := m.planFields(item)
	if err != nil {
		return nil, err
	}
	attachments, err := m.planAttachments(item)
	if err != nil {
		return nil, err
	}

	var username, password string
	if item.Login != nil {
		username = deref(item.Login.Username)
		password = deref(item.Login.Password)
	}

	entry, err := m.store.AddEntry(group, item.Name, username, password)
	if err != nil {
		return nil, fmt.Errorf("adding entry: %w", err)
	}

	if err := m.fill(entry, item, fields, attachments); err != nil {
		if rmErr := m.store.RemoveEntry(group, entry); rmErr != nil {
			return nil, errors.Join(err, fmt.Errorf("removing partial entry: %w", rmErr))
		}
		return nil, err
	}
	return entry, nil
}

// fill writes the planned data onto a freshly added entry.
func (m *Materializer) fill(entry *Entry, item *Item, fields []plannedField, attachments []plannedAttachment) error {
	if item.Login != nil && len(item.Login.URIs) > 0 {
		m.store.SetURL(entry, item.Login.URIs[0].URI)
	}

	for _, f := range fields {
		if err := m.store.SetCustomField(entry, f.name, f.value, f.protected); err != nil {
			return fmt.Errorf("setting field %q: %w", f.name, err)
		}
	}

	for _, a := range attachments {
		if err := m.store.AddAttachment(entry, a.fileName, a.data); err != nil {
			return fmt.Errorf("adding attachment %q: %w", a.fileName, err)
		}
	}

	if item.Login != nil && deref(item.Login.TOTP) != "" {
		if err := m.store.SetOTP(entry, NormalizeOTP(*item.Login.TOTP, item.Name)); err != nil {
			return fmt.Errorf("setting otp: %w", err)
		}
	}

	if notes := deref(item.Notes); notes != "" {
		m.store.SetEntryNotes(entry, notes)
	}
	return nil
}

// planFields collects custom fields, the synthesized FIDO2 and URI fields,
// and decollides all names in order.
func (m *Materializer) planFields(item *Item) ([]plannedField, error) {
	planned := make([]plannedField, 0, len(item.Fields))
	for _, f := range item.Fields {
		value, protected, err := fieldValue(f)
		if err != nil {
			return nil, err
		}
		planned = append(planned, plannedField{name: f.Name, value: value, protected: protected})
	}

	if item.Login != nil && len(item.Login.Fido2Credentials) > 0 {
		m.logger.Warn("fido2 credentials are not supported by kdbx, storing as protected field",
			"item", item.ID, "name", item.Name)
		data, err := indentJSON(item.Login.Fido2Credentials)
		if err != nil {
			return nil, fmt.Errorf("encoding fido2 credentials: %w", err)
		}
		planned = append(planned, plannedField{name: fido2FieldName, value: data, protected: true})
	}

	if item.Login != nil && len(item.Login.URIs) > 0 {
		if len(item.Login.URIs) > 1 {
			m.logger.Warn("multiple uris, only the first becomes the entry url",
				"item", item.ID, "name", item.Name, "count", len(item.Login.URIs))
		}
		for _, u := range item.Login.URIs {
			planned = append(planned, plannedField{name: uriLabel(u), value: u.URI})
		}
	}

	used := NewNameSet()
	for i := range planned {
		name := Decollide(planned[i].name, reservedFieldNames, used)
		if name != planned[i].name {
			m.logger.Warn("renamed colliding field",
				"item", item.ID, "name", item.Name, "field", planned[i].name, "renamed", name)
			planned[i].name = name
		}
	}
	return planned, nil
}

// planAttachments loads attachment content and decollides file names.
func (m *Materializer) planAttachments(item *Item) ([]plannedAttachment, error) {
	planned := make([]plannedAttachment, 0, len(item.Attachments))
	used := NewNameSet()
	for _, a := range item.Attachments {
		if a.LocalPath == "" {
			return nil, fmt.Errorf("attachment %s (%q) has not been fetched", a.ID, a.FileName)
		}
		data, err := os.ReadFile(a.LocalPath)
		if err != nil {
			return nil, fmt.Errorf("reading attachment %s (%q): %w", a.ID, a.FileName, err)
		}

		name := Decollide(a.FileName, noReservedNames, used)
		if name != a.FileName {
			m.logger.Warn("renamed colliding attachment",
				"item", item.ID, "name", item.Name, "attachment", a.FileName, "renamed", name)
		}
		planned = append(planned, plannedAttachment{fileName: name, data: data})
	}
	return planned, nil
}

// fieldValue maps a custom field to its stored value and protection flag.
func fieldValue(f Field) (string, bool, error) {
	switch f.Type {
	case FieldText, FieldBoolean:
		return f.Value, false, nil
	case FieldHidden:
		return f.Value, true, nil
	case FieldLinked:
		if f.LinkedID == nil {
			return "", false, integrityErrorf("field %q: linked field without linkedId", f.Name)
		}
		switch *f.LinkedID {
		case LinkedUsername:
			return "Linked to Username", false, nil
		case LinkedPassword:
			return "Linked to Password", false, nil
		}
		return "", false, integrityErrorf("field %q: unknown linkedId %d", f.Name, *f.LinkedID)
	}
	return "", false, integrityErrorf("field %q: unknown field type %d", f.Name, f.Type)
}

func uriLabel(u URI) string {
	if u.Match == nil {
		return uriFieldName
	}
	return fmt.Sprintf("%s-type-%d", uriFieldName, *u.Match)
}
