package bwkp_test

import (
	"context"
	"errors"
	"testing"

	"bwkp-go/internal/bwkp"
	"bwkp-go/internal/testutil"
)

func TestLoadSnapshot(t *testing.T) {
	ctx := context.Background()

	t.Run("places sample vault", func(t *testing.T) {
		client := testutil.NewSampleVault(t)

		snap, err := bwkp.LoadSnapshot(ctx, client, bwkp.MembershipCanonical, 2, bwkp.NewNopLogger())
		if err != nil {
			t.Fatalf("LoadSnapshot() error = %v", err)
		}

		if snap.ItemCount != 5 {
			t.Errorf("ItemCount = %d, want 5", snap.ItemCount)
		}
		if len(snap.Organizations) != 1 || len(snap.Organizations[0].Collections) != 2 {
			t.Fatalf("organizations = %+v", snap.Organizations)
		}
		eng := snap.Organizations[0].Collections[0]
		if eng.Name != "Engineering/Servers" || len(eng.Items) != 1 || eng.Items[0].ID != "item-1" {
			t.Errorf("first collection = %q with %d items", eng.Name, len(eng.Items))
		}

		if len(snap.Folders) != 2 {
			t.Fatalf("got %d folders, want 2 (No Folder skipped)", len(snap.Folders))
		}
		if snap.Folders[0].Name != "Personal/Email" || len(snap.Folders[0].Items) != 1 {
			t.Errorf("first folder = %q with %d items", snap.Folders[0].Name, len(snap.Folders[0].Items))
		}

		if len(snap.Unfiled) != 1 || snap.Unfiled[0].ID != "item-5" {
			t.Errorf("unfiled = %+v, want [item-5]", snap.Unfiled)
		}

		bank := snap.Folders[1].Items[0]
		if bank.Attachments[0].LocalPath == "" {
			t.Error("attachment LocalPath not set")
		}
		if client.Fetches() != 1 {
			t.Errorf("fetches = %d, want 1", client.Fetches())
		}
	})

	t.Run("allow duplicates places item in every collection", func(t *testing.T) {
		client := testutil.NewSampleVault(t)
		client.Items[0].CollectionIDs = []string{"col-1", "col-2"}

		snap, err := bwkp.LoadSnapshot(ctx, client, bwkp.MembershipAllowDuplicates, 1, bwkp.NewNopLogger())
		if err != nil {
			t.Fatalf("LoadSnapshot() error = %v", err)
		}
		for _, c := range snap.Organizations[0].Collections {
			found := false
			for _, item := range c.Items {
				if item.ID == "item-1" {
					found = true
				}
			}
			if !found {
				t.Errorf("item-1 missing from collection %q", c.Name)
			}
		}
	})

	integrity := []struct {
		name   string
		mutate func(c *testutil.FakeVaultClient)
	}{
		{
			name: "collection of unknown organization",
			mutate: func(c *testutil.FakeVaultClient) {
				c.AddCollection("col-x", "org-missing", "Lost")
			},
		},
		{
			name: "item in unknown folder",
			mutate: func(c *testutil.FakeVaultClient) {
				c.Items[2].FolderID = testutil.Ptr("fld-missing")
			},
		},
		{
			name: "item in unknown collection",
			mutate: func(c *testutil.FakeVaultClient) {
				c.Items[0].CollectionIDs = []string{"col-missing"}
			},
		},
		{
			name: "item in unknown organization",
			mutate: func(c *testutil.FakeVaultClient) {
				c.Items[0].OrganizationID = testutil.Ptr("org-missing")
			},
		},
		{
			name: "item in collection of another organization",
			mutate: func(c *testutil.FakeVaultClient) {
				c.AddOrganization("org-2", "Other")
				c.AddCollection("col-3", "org-2", "Elsewhere")
				c.Items[0].CollectionIDs = []string{"col-3"}
			},
		},
		{
			name: "organization item without collection",
			mutate: func(c *testutil.FakeVaultClient) {
				c.Items[0].CollectionIDs = nil
			},
		},
	}

	for _, tt := range integrity {
		t.Run(tt.name, func(t *testing.T) {
			client := testutil.NewSampleVault(t)
			tt.mutate(client)

			_, err := bwkp.LoadSnapshot(ctx, client, bwkp.MembershipCanonical, 1, bwkp.NewNopLogger())
			if !errors.Is(err, bwkp.ErrIntegrity) {
				t.Errorf("LoadSnapshot() error = %v, want ErrIntegrity", err)
			}
		})
	}

	t.Run("listing failure", func(t *testing.T) {
		client := testutil.NewSampleVault(t)
		client.FailListing = "collections"

		if _, err := bwkp.LoadSnapshot(ctx, client, bwkp.MembershipCanonical, 1, bwkp.NewNopLogger()); err == nil {
			t.Error("LoadSnapshot() expected error")
		}
	})

	t.Run("attachment failure", func(t *testing.T) {
		client := testutil.NewSampleVault(t)
		client.FailAttachment = "att-1"

		if _, err := bwkp.LoadSnapshot(ctx, client, bwkp.MembershipCanonical, 1, bwkp.NewNopLogger()); err == nil {
			t.Error("LoadSnapshot() expected error")
		}
	})
}
