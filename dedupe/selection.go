package dedupe

import (
	"fmt"
	"unicode/utf8"

	"github.com/samber/lo"
)

// SelectionStore owns the working set of duplicate groups, the winner chosen
// in each of them, and the set of objects marked for the next write-back.
//
// Inclusion is object-level: marking an object includes all of its groups.
// onChange is called after every mutation so a presenter can re-render.
// A SelectionStore is not safe for concurrent use.
type SelectionStore struct {
	groups   []DuplicateGroup
	pos      map[GroupID]int
	index    Index
	included map[string]bool
	onChange func()
}

// NewSelectionStore creates a store over groups. The groups' current
// selections (the detector's defaults) seed the selection set.
func NewSelectionStore(groups []DuplicateGroup, onChange func()) *SelectionStore {
	s := &SelectionStore{
		groups:   append([]DuplicateGroup(nil), groups...),
		included: make(map[string]bool),
		onChange: onChange,
	}
	s.reindex()
	return s
}

func (s *SelectionStore) reindex() {
	s.pos = make(map[GroupID]int, len(s.groups))
	for i, g := range s.groups {
		s.pos[g.ID()] = i
	}
	s.index = NewIndex(s.groups)
}

func (s *SelectionStore) changed() {
	if s.onChange != nil {
		s.onChange()
	}
}

// ---------------------------------------------------------------------------
// Winner selection
// ---------------------------------------------------------------------------

// Select makes key the only selected member of the group id.
func (s *SelectionStore) Select(id GroupID, key CandidateKey) error {
	i, ok := s.pos[id]
	if !ok {
		return unknownGroup(id)
	}
	updated, err := s.groups[i].WithSelection(key)
	if err != nil {
		return err
	}
	s.groups[i] = updated
	s.changed()
	return nil
}

// Unselect clears the group's winner. Reconciling a group without a winner
// removes its key from the object.
func (s *SelectionStore) Unselect(id GroupID) error {
	i, ok := s.pos[id]
	if !ok {
		return unknownGroup(id)
	}
	s.groups[i] = s.groups[i].WithoutSelection()
	s.changed()
	return nil
}

// Selection returns the chosen candidate of every group that has one.
func (s *SelectionStore) Selection() map[GroupID]CandidateKey {
	out := make(map[GroupID]CandidateKey, len(s.groups))
	for _, g := range s.groups {
		if w, ok := g.Winner(); ok {
			out[g.ID()] = w.Key()
		}
	}
	return out
}

// KeepPolicy chooses winners in bulk.
type KeepPolicy string

const (
	KeepFirst   KeepPolicy = "first"
	KeepLast    KeepPolicy = "last"
	KeepLongest KeepPolicy = "longest"
	KeepNone    KeepPolicy = "none"
)

// KeepPolicies lists the accepted policies in display order.
var KeepPolicies = []KeepPolicy{KeepFirst, KeepLast, KeepLongest, KeepNone}

// ParseKeepPolicy validates a policy name.
func ParseKeepPolicy(name string) (KeepPolicy, error) {
	p := KeepPolicy(name)
	if lo.Contains(KeepPolicies, p) {
		return p, nil
	}
	return "", fmt.Errorf("unknown keep policy %q (valid: first, last, longest, none)", name)
}

// ApplyPolicy re-selects the winner of every group according to p.
func (s *SelectionStore) ApplyPolicy(p KeepPolicy) error {
	for i, g := range s.groups {
		if p == KeepNone {
			s.groups[i] = g.WithoutSelection()
			continue
		}
		updated, err := g.WithSelection(g.Members[policyIndex(g, p)].Key())
		if err != nil {
			return err
		}
		s.groups[i] = updated
	}
	s.changed()
	return nil
}

func policyIndex(g DuplicateGroup, p KeepPolicy) int {
	switch p {
	case KeepLast:
		// an equal value earlier in the group wins the key
		return len(g.Members) - 1
	case KeepLongest:
		best := 0
		for i, m := range g.Members {
			if utf8.RuneCountInString(m.Value) > utf8.RuneCountInString(g.Members[best].Value) {
				best = i
			}
		}
		return best
	default:
		return 0
	}
}

// ---------------------------------------------------------------------------
// Object inclusion
// ---------------------------------------------------------------------------

// Toggle flips whether objectID is included in the next write-back. Ids
// outside the working set are ignored.
func (s *SelectionStore) Toggle(objectID string) {
	if len(s.index.GroupsFor(objectID)) == 0 {
		return
	}
	if s.included[objectID] {
		delete(s.included, objectID)
	} else {
		s.included[objectID] = true
	}
	s.changed()
}

// Include marks the given objects for write-back, ignoring ids that are not
// in the working set.
func (s *SelectionStore) Include(objectIDs ...string) {
	for _, id := range objectIDs {
		if len(s.index.GroupsFor(id)) > 0 {
			s.included[id] = true
		}
	}
	s.changed()
}

// SelectAll includes every object in the working set.
func (s *SelectionStore) SelectAll() {
	s.included = make(map[string]bool, s.index.Len())
	for _, id := range s.index.ObjectIDs() {
		s.included[id] = true
	}
	s.changed()
}

// SelectNone clears the inclusion set.
func (s *SelectionStore) SelectNone() {
	s.included = make(map[string]bool)
	s.changed()
}

// IsIncluded reports whether objectID is marked for write-back.
func (s *SelectionStore) IsIncluded(objectID string) bool {
	return s.included[objectID]
}

// AllIncluded reports whether every object in a non-empty working set is
// marked.
func (s *SelectionStore) AllIncluded() bool {
	if s.index.Len() == 0 {
		return false
	}
	for _, id := range s.index.ObjectIDs() {
		if !s.included[id] {
			return false
		}
	}
	return true
}

// Included returns a copy of the inclusion set.
func (s *SelectionStore) Included() map[string]bool {
	out := make(map[string]bool, len(s.included))
	for id, ok := range s.included {
		out[id] = ok
	}
	return out
}

// ---------------------------------------------------------------------------
// Views
// ---------------------------------------------------------------------------

// Groups returns the working set in detection order.
func (s *SelectionStore) Groups() []DuplicateGroup {
	out := make([]DuplicateGroup, len(s.groups))
	for i, g := range s.groups {
		out[i] = g.clone()
	}
	return out
}

// Group returns one group by id.
func (s *SelectionStore) Group(id GroupID) (DuplicateGroup, bool) {
	i, ok := s.pos[id]
	if !ok {
		return DuplicateGroup{}, false
	}
	return s.groups[i].clone(), true
}

// ObjectIDs returns the ids of objects with groups in the working set.
func (s *SelectionStore) ObjectIDs() []string {
	return s.index.ObjectIDs()
}

// GroupsFor returns the current groups of one object.
func (s *SelectionStore) GroupsFor(objectID string) []DuplicateGroup {
	var out []DuplicateGroup
	for _, g := range s.index.GroupsFor(objectID) {
		out = append(out, s.groups[s.pos[g.ID()]].clone())
	}
	return out
}

// Selected returns every group of every included object, in detection order.
func (s *SelectionStore) Selected() []DuplicateGroup {
	return lo.Filter(s.Groups(), func(g DuplicateGroup, _ int) bool {
		return s.included[g.ObjectID]
	})
}

// Len returns the number of groups in the working set.
func (s *SelectionStore) Len() int {
	return len(s.groups)
}

// ---------------------------------------------------------------------------
// Batch feedback
// ---------------------------------------------------------------------------

// Apply folds a batch result into the working set: succeeded groups are
// removed together with their objects' inclusion, failed groups stay as they
// are so they can be retried.
func (s *SelectionStore) Apply(result BatchResult) {
	done := make(map[GroupID]bool, len(result.Succeeded))
	for _, g := range result.Succeeded {
		done[g.ID()] = true
		delete(s.included, g.ObjectID)
	}
	s.groups = lo.Reject(s.groups, func(g DuplicateGroup, _ int) bool {
		return done[g.ID()]
	})
	s.reindex()
	s.changed()
}
