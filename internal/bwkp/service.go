package bwkp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	// PersonalVaultGroup is the top-level group holding folders and unfiled
	// personal items.
	PersonalVaultGroup = "My Vault"

	// RawExportTitle is the root entry carrying the raw listings as attachments.
	RawExportTitle = "Bitwarden Export"
)

// ExportOptions tunes one export run.
type ExportOptions struct {
	Membership MembershipPolicy

	// SavePartialOnError commits whatever was built when traversal fails
	// instead of discarding it.
	SavePartialOnError bool

	// EmbedRawExport adds the RawExportTitle entry when the client is a
	// RawSource.
	EmbedRawExport bool

	AttachmentWorkers int
}

// ExportSummary counts what a run wrote.
type ExportSummary struct {
	Organizations int
	Collections   int
	Folders       int
	Entries       int
	Attachments   int
}

// Exporter walks a vault and writes it into a Store. An Exporter runs once.
type Exporter struct {
	client VaultClient
	store  Store
	logger Logger
	opts   ExportOptions

	materializer *Materializer
	summary      ExportSummary
	traversing   bool
}

// NewExporter creates an Exporter reading from client and writing into store.
func NewExporter(client VaultClient, store Store, logger Logger, opts ExportOptions) *Exporter {
	return &Exporter{
		client:       client,
		store:        store,
		logger:       logger,
		opts:         opts,
		materializer: NewMaterializer(store, logger),
	}
}

// Export runs the full export. The store is always finished on return:
// committed on success, discarded or partially committed on failure.
func (x *Exporter) Export(ctx context.Context) (summary *ExportSummary, err error) {
	defer func() {
		err = x.finish(err)
		if err != nil {
			summary = nil
		}
	}()

	status, err := x.client.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("checking vault status: %w", err)
	}
	if status != StatusUnlocked {
		return nil, fmt.Errorf("%w (status %q)", ErrVaultNotUnlocked, status)
	}
	x.logger.Info("vault unlocked, starting export", "membership", x.opts.Membership.String())

	snap, err := LoadSnapshot(ctx, x.client, x.opts.Membership, x.opts.AttachmentWorkers, x.logger)
	if err != nil {
		return nil, err
	}

	x.traversing = true

	anchor, err := ResolveGroupPath(x.store, x.store.Root(), PersonalVaultGroup)
	if err != nil {
		return nil, fmt.Errorf("creating %q group: %w", PersonalVaultGroup, err)
	}

	if err := x.exportOrganizations(ctx, snap.Organizations); err != nil {
		return nil, err
	}
	if err := x.exportFolders(ctx, anchor, snap.Folders); err != nil {
		return nil, err
	}
	if err := x.exportItems(ctx, anchor, snap.Unfiled); err != nil {
		return nil, fmt.Errorf("exporting unfiled items: %w", err)
	}

	if x.opts.EmbedRawExport {
		if err := x.addRawExport(ctx); err != nil {
			return nil, err
		}
	}

	result := x.summary
	return &result, nil
}

// finish ends the store lifecycle exactly once.
func (x *Exporter) finish(runErr error) error {
	if runErr == nil {
		if err := x.store.Commit(); err != nil {
			return fmt.Errorf("committing store: %w", err)
		}
		x.logger.Info("export committed",
			"entries", x.summary.Entries, "attachments", x.summary.Attachments)
		return nil
	}

	if x.traversing && x.opts.SavePartialOnError {
		x.logger.Warn("export failed, saving partial database", "error", runErr)
		if err := x.store.Commit(); err != nil {
			return errors.Join(runErr, fmt.Errorf("saving partial store: %w", err))
		}
		return runErr
	}

	x.logger.Error("export failed, discarding database", "error", runErr)
	if err := x.store.Discard(); err != nil {
		return errors.Join(runErr, fmt.Errorf("discarding store: %w", err))
	}
	return runErr
}

func (x *Exporter) exportOrganizations(ctx context.Context, orgs []*Organization) error {
	for _, org := range orgs {
		group, err := ResolveGroupPath(x.store, x.store.Root(), org.Name)
		if err != nil {
			return fmt.Errorf("organization %s (%q): %w", org.ID, org.Name, err)
		}
		if err := x.setGroupNotes(group, org); err != nil {
			return err
		}
		x.summary.Organizations++

		for _, c := range org.Collections {
			cgroup, err := ResolveGroupPath(x.store, group, c.Name)
			if err != nil {
				return fmt.Errorf("collection %s (%q): %w", c.ID, c.Name, err)
			}
			if err := x.setGroupNotes(cgroup, c); err != nil {
				return err
			}
			x.summary.Collections++

			if err := x.exportItems(ctx, cgroup, c.Items); err != nil {
				return fmt.Errorf("organization %q collection %q: %w", org.Name, c.Name, err)
			}
		}
	}
	return nil
}

func (x *Exporter) exportFolders(ctx context.Context, anchor *Group, folders []*Folder) error {
	for _, f := range folders {
		group, err := ResolveGroupPath(x.store, anchor, f.Name)
		if err != nil {
			return fmt.Errorf("folder %s (%q): %w", deref(f.ID), f.Name, err)
		}
		if err := x.setGroupNotes(group, f); err != nil {
			return err
		}
		x.summary.Folders++

		if err := x.exportItems(ctx, group, f.Items); err != nil {
			return fmt.Errorf("folder %q: %w", f.Name, err)
		}
	}
	return nil
}

func (x *Exporter) exportItems(ctx context.Context, group *Group, items []*Item) error {
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		entry, err := x.materializer.Materialize(group, item)
		if err != nil {
			return err
		}
		x.summary.Entries++
		x.summary.Attachments += len(entry.Attachments())
	}
	return nil
}

// setGroupNotes stores the source record as indented JSON. Child lists are
// not part of the encoding.
func (x *Exporter) setGroupNotes(group *Group, record any) error {
	notes, err := indentJSON(record)
	if err != nil {
		return fmt.Errorf("encoding notes for group %q: %w", group.Path(), err)
	}
	x.store.SetGroupNotes(group, notes)
	return nil
}

// indentJSON encodes v with four-space indentation. HTML characters are kept
// literal so notes read the same as the vault's own data.
func indentJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// addRawExport attaches every raw listing to a root entry.
func (x *Exporter) addRawExport(ctx context.Context) error {
	raw, ok := x.client.(RawSource)
	if !ok {
		x.logger.Debug("vault client has no raw listings, skipping raw export entry")
		return nil
	}

	entry, err := x.store.AddEntry(x.store.Root(), RawExportTitle, "", "")
	if err != nil {
		return fmt.Errorf("adding raw export entry: %w", err)
	}
	for _, name := range RawListings {
		data, err := raw.RawListing(ctx, name)
		if err != nil {
			return fmt.Errorf("reading raw %s listing: %w", name, err)
		}
		var buf bytes.Buffer
		if err := json.Indent(&buf, data, "", "    "); err != nil {
			return fmt.Errorf("formatting raw %s listing: %w", name, err)
		}
		if err := x.store.AddAttachment(entry, name+".json", buf.Bytes()); err != nil {
			return fmt.Errorf("attaching raw %s listing: %w", name, err)
		}
	}
	x.summary.Entries++
	x.summary.Attachments += len(RawListings)
	return nil
}
