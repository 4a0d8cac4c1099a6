// Package reconcile computes the change set between a stored child
// collection and the full replacement sent by a client. Entries without
// an id are creations, entries whose id matches a stored row are updates,
// stored rows absent from the payload are deletions, and entries carrying
// an id that matches nothing land in Unmatched for the caller to reject.
package reconcile

// Plan partitions an incoming collection against the stored one. Every
// incoming entry lands in exactly one of Create, Update or Unmatched, and
// every existing id lands in either Update (via the matching entry) or
// Delete.
type Plan[T any] struct {
	Create    []T
	Update    []T
	Delete    []string
	Unmatched []T
}

// Diff builds the reconciliation plan. idOf extracts the client-supplied
// id of an entry; the empty string marks a new entry.
func Diff[T any](existingIDs []string, incoming []T, idOf func(T) string) Plan[T] {
	existing := make(map[string]bool, len(existingIDs))
	for _, eid := range existingIDs {
		existing[eid] = true
	}

	var plan Plan[T]
	seen := make(map[string]bool, len(incoming))
	for _, entry := range incoming {
		entryID := idOf(entry)
		switch {
		case entryID == "":
			plan.Create = append(plan.Create, entry)
		case existing[entryID]:
			plan.Update = append(plan.Update, entry)
			seen[entryID] = true
		default:
			plan.Unmatched = append(plan.Unmatched, entry)
		}
	}
	for _, eid := range existingIDs {
		if !seen[eid] {
			plan.Delete = append(plan.Delete, eid)
		}
	}
	return plan
}
