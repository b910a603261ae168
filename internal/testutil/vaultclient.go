package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"bwkp-go/internal/bwkp"
)

// FakeVaultClient serves records held in memory. Every List call returns
// fresh copies so callers may mutate what they get.
type FakeVaultClient struct {
	StatusValue bwkp.VaultStatus

	Organizations []*bwkp.Organization
	Collections   []*bwkp.Collection
	Folders       []*bwkp.Folder
	Items         []*bwkp.Item

	// AttachmentData maps "<itemID>/<attachmentID>" to content.
	AttachmentData map[string][]byte

	// FailListing makes the named listing return an error.
	FailListing string
	// FailAttachment makes fetching this attachment ID return an error.
	FailAttachment string

	dir string

	mu      sync.Mutex
	fetches int
}

// NewFakeVaultClient returns an unlocked, empty vault whose attachments are
// written below a test temp dir.
func NewFakeVaultClient(t *testing.T) *FakeVaultClient {
	t.Helper()
	return &FakeVaultClient{
		StatusValue:    bwkp.StatusUnlocked,
		AttachmentData: make(map[string][]byte),
		dir:            t.TempDir(),
	}
}

// Fetches returns how many attachments were fetched.
func (c *FakeVaultClient) Fetches() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetches
}

func (c *FakeVaultClient) Status(ctx context.Context) (bwkp.VaultStatus, error) {
	return c.StatusValue, nil
}

func (c *FakeVaultClient) ListOrganizations(ctx context.Context) ([]*bwkp.Organization, error) {
	var out []*bwkp.Organization
	return out, c.decode(ctx, "organizations", &out)
}

func (c *FakeVaultClient) ListCollections(ctx context.Context) ([]*bwkp.Collection, error) {
	var out []*bwkp.Collection
	return out, c.decode(ctx, "collections", &out)
}

func (c *FakeVaultClient) ListItems(ctx context.Context) ([]*bwkp.Item, error) {
	var out []*bwkp.Item
	return out, c.decode(ctx, "items", &out)
}

func (c *FakeVaultClient) ListFolders(ctx context.Context) ([]*bwkp.Folder, error) {
	var out []*bwkp.Folder
	return out, c.decode(ctx, "folders", &out)
}

func (c *FakeVaultClient) RawListing(ctx context.Context, name string) (json.RawMessage, error) {
	if name == c.FailListing {
		return nil, fmt.Errorf("listing %s: injected failure", name)
	}

	var v any
	switch name {
	case "organizations":
		v = c.Organizations
	case "collections":
		v = c.Collections
	case "items":
		v = c.Items
	case "folders":
		v = c.Folders
	default:
		return nil, fmt.Errorf("unknown listing %q", name)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", name, err)
	}
	return data, nil
}

func (c *FakeVaultClient) FetchAttachment(ctx context.Context, itemID, attachmentID string) (string, error) {
	if attachmentID == c.FailAttachment {
		return "", fmt.Errorf("attachment %s: injected failure", attachmentID)
	}
	data, ok := c.AttachmentData[itemID+"/"+attachmentID]
	if !ok {
		return "", fmt.Errorf("attachment %s of item %s not found", attachmentID, itemID)
	}

	path := filepath.Join(c.dir, itemID, attachmentID)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", err
	}

	c.mu.Lock()
	c.fetches++
	c.mu.Unlock()
	return path, nil
}

func (c *FakeVaultClient) decode(ctx context.Context, name string, out any) error {
	data, err := c.RawListing(ctx, name)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// AddOrganization appends an organization and returns it.
func (c *FakeVaultClient) AddOrganization(id, name string) *bwkp.Organization {
	org := &bwkp.Organization{Object: "organization", ID: id, Name: name, Enabled: true}
	c.Organizations = append(c.Organizations, org)
	return org
}

// AddCollection appends a collection of orgID.
func (c *FakeVaultClient) AddCollection(id, orgID, name string) *bwkp.Collection {
	col := &bwkp.Collection{Object: "collection", ID: id, OrganizationID: orgID, Name: name}
	c.Collections = append(c.Collections, col)
	return col
}

// AddFolder appends a folder. An empty id adds the implicit "No Folder".
func (c *FakeVaultClient) AddFolder(id, name string) *bwkp.Folder {
	f := &bwkp.Folder{Object: "folder", Name: name}
	if id != "" {
		f.ID = Ptr(id)
	}
	c.Folders = append(c.Folders, f)
	return f
}

// AddLogin appends a login item with the given credentials.
func (c *FakeVaultClient) AddLogin(id, name, username, password string) *bwkp.Item {
	item := &bwkp.Item{
		Object: "item",
		ID:     id,
		Type:   1,
		Name:   name,
		Login:  &bwkp.Login{Username: Ptr(username), Password: Ptr(password)},
	}
	c.Items = append(c.Items, item)
	return item
}

// AddNote appends a secure note item.
func (c *FakeVaultClient) AddNote(id, name, notes string) *bwkp.Item {
	item := &bwkp.Item{Object: "item", ID: id, Type: 2, Name: name, Notes: Ptr(notes)}
	c.Items = append(c.Items, item)
	return item
}

// Attach adds an attachment with content to item.
func (c *FakeVaultClient) Attach(item *bwkp.Item, attachmentID, fileName string, data []byte) {
	item.Attachments = append(item.Attachments, &bwkp.Attachment{
		ID:       attachmentID,
		FileName: fileName,
		Size:     fmt.Sprint(len(data)),
	})
	c.AttachmentData[item.ID+"/"+attachmentID] = data
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

// NewSampleVault returns a vault with one organization holding two
// collections, two folders, unfiled items and one attachment.
func NewSampleVault(t *testing.T) *FakeVaultClient {
	t.Helper()
	c := NewFakeVaultClient(t)

	c.AddOrganization("org-1", "Acme")
	c.AddCollection("col-1", "org-1", "Engineering/Servers")
	c.AddCollection("col-2", "org-1", "Finance")
	c.AddFolder("", "No Folder")
	c.AddFolder("fld-1", "Personal/Email")
	c.AddFolder("fld-2", "Banking")

	db := c.AddLogin("item-1", "db-prod", "admin", "s3cret")
	db.OrganizationID = Ptr("org-1")
	db.CollectionIDs = []string{"col-1"}
	db.Login.URIs = []bwkp.URI{{URI: "https://db.example.com"}}

	ledger := c.AddLogin("item-2", "ledger", "cfo", "money")
	ledger.OrganizationID = Ptr("org-1")
	ledger.CollectionIDs = []string{"col-2"}
	ledger.Login.TOTP = Ptr("JBSW Y3DP")

	mail := c.AddLogin("item-3", "gmail", "me@example.com", "hunter2")
	mail.FolderID = Ptr("fld-1")
	mail.Fields = []bwkp.Field{
		{Name: "recovery", Value: "words", Type: bwkp.FieldHidden},
		{Name: "note", Value: "plain", Type: bwkp.FieldText},
	}

	bank := c.AddLogin("item-4", "bank", "acct", "pin")
	bank.FolderID = Ptr("fld-2")
	c.Attach(bank, "att-1", "statement.pdf", []byte("%PDF-1.4 statement"))

	c.AddNote("item-5", "wifi", "ssid: home")

	return c
}

var (
	_ bwkp.VaultClient = (*FakeVaultClient)(nil)
	_ bwkp.RawSource   = (*FakeVaultClient)(nil)
)
