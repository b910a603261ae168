package bwkp

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// DefaultAttachmentWorkers is the number of concurrent attachment fetches
// used when none is configured.
const DefaultAttachmentWorkers = 4

// Snapshot is the validated vault tree an export walks. Items are already
// placed into their collections and folders.
type Snapshot struct {
	Organizations []*Organization
	Folders       []*Folder
	Unfiled       []*Item
	ItemCount     int
}

// LoadSnapshot lists everything from client, fetches attachment content and
// places every item. Dangling references and organization items without a
// collection are integrity errors.
func LoadSnapshot(ctx context.Context, client VaultClient, policy MembershipPolicy, workers int, logger Logger) (*Snapshot, error) {
	orgs, err := client.ListOrganizations(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing organizations: %w", err)
	}
	logger.Info("organizations fetched", "count", len(orgs))

	orgByID := make(map[string]*Organization, len(orgs))
	for _, org := range orgs {
		org.Collections = nil
		orgByID[org.ID] = org
	}

	collections, err := client.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	logger.Info("collections fetched", "count", len(collections))

	collectionByID := make(map[string]*Collection, len(collections))
	for _, c := range collections {
		org, ok := orgByID[c.OrganizationID]
		if !ok {
			return nil, integrityErrorf("collection %s (%q) references unknown organization %s", c.ID, c.Name, c.OrganizationID)
		}
		c.Items = nil
		org.Collections = append(org.Collections, c)
		collectionByID[c.ID] = c
	}

	folders, err := client.ListFolders(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing folders: %w", err)
	}
	logger.Info("folders fetched", "count", len(folders))

	snap := &Snapshot{Organizations: orgs}
	folderByID := make(map[string]*Folder, len(folders))
	for _, f := range folders {
		// The CLI lists the implicit "No Folder" with a null id.
		if f.ID == nil || *f.ID == "" {
			continue
		}
		f.Items = nil
		snap.Folders = append(snap.Folders, f)
		folderByID[*f.ID] = f
	}

	items, err := client.ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	logger.Info("items fetched", "count", len(items))
	snap.ItemCount = len(items)

	if err := fetchAttachments(ctx, client, items, workers, logger); err != nil {
		return nil, err
	}

	for _, item := range items {
		if item.InOrganization() {
			if err := placeOrganizationItem(item, orgByID, collectionByID, policy, logger); err != nil {
				return nil, err
			}
			continue
		}
		if item.InFolder() {
			folder, ok := folderByID[*item.FolderID]
			if !ok {
				return nil, integrityErrorf("item %s (%q) references unknown folder %s", item.ID, item.Name, *item.FolderID)
			}
			folder.Items = append(folder.Items, item)
			continue
		}
		snap.Unfiled = append(snap.Unfiled, item)
	}

	return snap, nil
}

// placeOrganizationItem appends item to every collection the membership
// policy selects.
func placeOrganizationItem(item *Item, orgByID map[string]*Organization, collectionByID map[string]*Collection, policy MembershipPolicy, logger Logger) error {
	if _, ok := orgByID[*item.OrganizationID]; !ok {
		return integrityErrorf("item %s (%q) references unknown organization %s", item.ID, item.Name, *item.OrganizationID)
	}

	ids, err := ResolveMembership(item, policy, logger)
	if err != nil {
		return err
	}
	for _, id := range ids {
		c, ok := collectionByID[id]
		if !ok || c.OrganizationID != *item.OrganizationID {
			return integrityErrorf("item %s (%q) references unknown collection %s in organization %s",
				item.ID, item.Name, id, *item.OrganizationID)
		}
		c.Items = append(c.Items, item)
	}
	return nil
}

// fetchAttachments downloads every attachment with at most workers fetches in
// flight. Each fetch only writes its own attachment's LocalPath.
func fetchAttachments(ctx context.Context, client VaultClient, items []*Item, workers int, logger Logger) error {
	if workers <= 0 {
		workers = DefaultAttachmentWorkers
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, item := range items {
		for _, a := range item.Attachments {
			g.Go(func() error {
				path, err := client.FetchAttachment(ctx, item.ID, a.ID)
				if err != nil {
					return fmt.Errorf("fetching attachment %s (%q) of item %s: %w", a.ID, a.FileName, item.ID, err)
				}
				a.LocalPath = path
				logger.Debug("attachment fetched", "item", item.ID, "attachment", a.ID)
				return nil
			})
		}
	}
	return g.Wait()
}
