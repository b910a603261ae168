package bwkp

import (
	"context"
	"encoding/json"
)

// VaultClient is the source password vault.
type VaultClient interface {
	// Status returns the current lock state.
	Status(ctx context.Context) (VaultStatus, error)

	ListOrganizations(ctx context.Context) ([]*Organization, error)
	ListCollections(ctx context.Context) ([]*Collection, error)
	ListItems(ctx context.Context) ([]*Item, error)
	ListFolders(ctx context.Context) ([]*Folder, error)

	// FetchAttachment downloads one attachment and returns the local path
	// holding its content.
	FetchAttachment(ctx context.Context, itemID, attachmentID string) (string, error)
}

// Raw listing names, in the order they are embedded and dumped.
var RawListings = []string{"organizations", "collections", "items", "folders"}

// RawSource is implemented by vault clients that can return the undecoded
// JSON of each listing.
type RawSource interface {
	// RawListing returns the raw JSON for one of RawListings.
	RawListing(ctx context.Context, name string) (json.RawMessage, error)
}
