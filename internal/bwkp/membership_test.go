package bwkp_test

import (
	"errors"
	"slices"
	"testing"

	"bwkp-go/internal/bwkp"
	"bwkp-go/internal/testutil"
)

func TestResolveMembership(t *testing.T) {
	org := testutil.Ptr("org-1")

	tests := []struct {
		name      string
		item      *bwkp.Item
		policy    bwkp.MembershipPolicy
		want      []string
		wantWarns int
		wantErr   error
	}{
		{
			name: "personal item",
			item: &bwkp.Item{ID: "i"},
			want: nil,
		},
		{
			name: "single collection",
			item: &bwkp.Item{ID: "i", OrganizationID: org, CollectionIDs: []string{"c1"}},
			want: []string{"c1"},
		},
		{
			name:      "canonical keeps the first",
			item:      &bwkp.Item{ID: "i", OrganizationID: org, CollectionIDs: []string{"c2", "c1"}},
			policy:    bwkp.MembershipCanonical,
			want:      []string{"c2"},
			wantWarns: 1,
		},
		{
			name:   "allow duplicates keeps all in order",
			item:   &bwkp.Item{ID: "i", OrganizationID: org, CollectionIDs: []string{"c2", "c1", "c3"}},
			policy: bwkp.MembershipAllowDuplicates,
			want:   []string{"c2", "c1", "c3"},
		},
		{
			name:    "organization item without collection",
			item:    &bwkp.Item{ID: "i", OrganizationID: org},
			wantErr: bwkp.ErrIntegrity,
		},
		{
			name: "empty organization id is personal",
			item: &bwkp.Item{ID: "i", OrganizationID: testutil.Ptr(""), CollectionIDs: []string{"c1"}},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := testutil.NewRecordingLogger()
			got, err := bwkp.ResolveMembership(tt.item, tt.policy, logger)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ResolveMembership() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveMembership() error = %v", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("ResolveMembership() = %v, want %v", got, tt.want)
			}
			if warns := logger.Warnings(); len(warns) != tt.wantWarns {
				t.Errorf("ResolveMembership() logged warnings %q, want %d", warns, tt.wantWarns)
			}
		})
	}
}

func TestMembershipPolicy_String(t *testing.T) {
	if got := bwkp.MembershipCanonical.String(); got != "canonical" {
		t.Errorf("MembershipCanonical.String() = %q", got)
	}
	if got := bwkp.MembershipAllowDuplicates.String(); got != "allow-duplicates" {
		t.Errorf("MembershipAllowDuplicates.String() = %q", got)
	}
}
