package bwkp

// MembershipPolicy decides where items listed in several collections go.
type MembershipPolicy int

const (
	// MembershipCanonical places the item only in its first collection.
	MembershipCanonical MembershipPolicy = iota
	// MembershipAllowDuplicates places an independent copy in every collection.
	MembershipAllowDuplicates
)

func (p MembershipPolicy) String() string {
	if p == MembershipAllowDuplicates {
		return "allow-duplicates"
	}
	return "canonical"
}

// ResolveMembership returns the collection IDs item should be materialized
// under. Personal items return nil. Dropped collections are logged.
func ResolveMembership(item *Item, policy MembershipPolicy, logger Logger) ([]string, error) {
	if !item.InOrganization() {
		return nil, nil
	}
	switch len(item.CollectionIDs) {
	case 0:
		return nil, integrityErrorf("item %s (%q) belongs to organization %s but has no collection",
			item.ID, item.Name, *item.OrganizationID)
	case 1:
		return []string{item.CollectionIDs[0]}, nil
	}

	if policy == MembershipAllowDuplicates {
		ids := make([]string, len(item.CollectionIDs))
		copy(ids, item.CollectionIDs)
		return ids, nil
	}

	logger.Warn("item belongs to multiple collections, using the first",
		"item", item.ID, "name", item.Name,
		"collection", item.CollectionIDs[0], "dropped", item.CollectionIDs[1:])
	return []string{item.CollectionIDs[0]}, nil
}
