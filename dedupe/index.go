package dedupe

import "github.com/samber/lo"

// Index maps object ids to their duplicate groups. It is built once per
// change of the working set so renders and batches agree on which groups
// belong to which object.
type Index struct {
	order    []string
	byObject map[string][]DuplicateGroup
}

// NewIndex builds an index over groups. Objects are ordered by first
// appearance and each object's groups keep their relative order.
func NewIndex(groups []DuplicateGroup) Index {
	return Index{
		order:    objectOrder(groups),
		byObject: lo.GroupBy(groups, func(g DuplicateGroup) string { return g.ObjectID }),
	}
}

// ObjectIDs returns the indexed object ids in first-seen order.
func (ix Index) ObjectIDs() []string {
	return append([]string(nil), ix.order...)
}

// GroupsFor returns the groups belonging to one object.
func (ix Index) GroupsFor(objectID string) []DuplicateGroup {
	return ix.byObject[objectID]
}

// Len returns the number of indexed objects.
func (ix Index) Len() int {
	return len(ix.order)
}

func objectOrder(groups []DuplicateGroup) []string {
	return lo.Uniq(lo.Map(groups, func(g DuplicateGroup, _ int) string { return g.ObjectID }))
}
