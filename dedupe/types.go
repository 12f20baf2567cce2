// Package dedupe detects duplicate translations on remote metadata objects
// and computes the replacement translation lists that resolve them.
//
// A translation collides with another when both share the same locale and
// property on the same object. Detection, selection and reconciliation are
// pure; only the Scanner and BatchReconciler talk to the outside world, and
// they do so through the ObjectSource and ObjectWriter ports.
package dedupe

import "fmt"

// ---------------------------------------------------------------------------
// Translations and keys
// ---------------------------------------------------------------------------

// Translation is one localized value for one property of an object.
type Translation struct {
	Locale   string `json:"locale" yaml:"locale"`
	Property string `json:"property" yaml:"property"`
	Value    string `json:"value" yaml:"value"`
}

// Key returns the (locale, property) pair the translation is grouped by.
func (t Translation) Key() DuplicateKey {
	return DuplicateKey{Locale: t.Locale, Property: t.Property}
}

// DuplicateKey identifies a translation slot on a single object.
// Two translations on the same object collide iff their keys are equal.
type DuplicateKey struct {
	Locale   string
	Property string
}

func (k DuplicateKey) String() string {
	return fmt.Sprintf("%s/%s", k.Locale, k.Property)
}

// CandidateKey identifies one colliding translation inside a group.
type CandidateKey struct {
	Locale   string
	Property string
	Value    string
}

// GroupID identifies a DuplicateGroup across detection passes and renders.
type GroupID struct {
	ObjectID string
	Locale   string
	Property string
}

func (id GroupID) String() string {
	return fmt.Sprintf("%s:%s/%s", id.ObjectID, id.Locale, id.Property)
}

// ---------------------------------------------------------------------------
// Objects
// ---------------------------------------------------------------------------

// ObjectType is a translatable metadata type exposed by the remote API.
type ObjectType struct {
	Name        string `json:"name" yaml:"name"`
	Plural      string `json:"plural" yaml:"plural"`
	APIEndpoint string `json:"relativeApiEndpoint,omitempty" yaml:"endpoint,omitempty"`
}

// Object is the summary form of a remote object used for detection.
type Object struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Translations []Translation `json:"translations"`
}

// FullObject is the owner-level representation of an object, fetched right
// before write-back. Fields holds every property other than translations and
// is sent back unchanged.
type FullObject struct {
	ID           string
	Translations []Translation
	Fields       map[string]any
}

// ---------------------------------------------------------------------------
// Groups
// ---------------------------------------------------------------------------

// TranslationCandidate is one member of a duplicate group.
type TranslationCandidate struct {
	Translation
	Selected bool
}

// Key returns the candidate's synthetic identity.
func (c TranslationCandidate) Key() CandidateKey {
	return CandidateKey{Locale: c.Locale, Property: c.Property, Value: c.Value}
}

// SelectedValue returns the candidate's value when it is the chosen winner.
func (c TranslationCandidate) SelectedValue() (string, bool) {
	if !c.Selected {
		return "", false
	}
	return c.Value, true
}

// DuplicateGroup holds all translations of one object sharing a DuplicateKey.
// Members always has at least two entries.
type DuplicateGroup struct {
	Type       ObjectType
	ObjectID   string
	ObjectName string
	Key        DuplicateKey
	Members    []TranslationCandidate

	// Original is the object's full translation list at detection time.
	Original []Translation
}

// ID returns the group's identity.
func (g DuplicateGroup) ID() GroupID {
	return GroupID{ObjectID: g.ObjectID, Locale: g.Key.Locale, Property: g.Key.Property}
}

// Winner returns the selected member, if any.
func (g DuplicateGroup) Winner() (TranslationCandidate, bool) {
	for _, m := range g.Members {
		if m.Selected {
			return m, true
		}
	}
	return TranslationCandidate{}, false
}

// Has reports whether key names a member of the group.
func (g DuplicateGroup) Has(key CandidateKey) bool {
	return g.indexOf(key) >= 0
}

func (g DuplicateGroup) indexOf(key CandidateKey) int {
	for i, m := range g.Members {
		if m.Key() == key {
			return i
		}
	}
	return -1
}

// WithSelection returns a copy of the group in which only the member named by
// key is selected. When several members share the key, the first one wins.
func (g DuplicateGroup) WithSelection(key CandidateKey) (DuplicateGroup, error) {
	idx := g.indexOf(key)
	if idx < 0 {
		return g, invalidSelection(g.ID(), key)
	}
	out := g.clone()
	for i := range out.Members {
		out.Members[i].Selected = i == idx
	}
	return out, nil
}

// WithoutSelection returns a copy of the group with no member selected.
func (g DuplicateGroup) WithoutSelection() DuplicateGroup {
	out := g.clone()
	for i := range out.Members {
		out.Members[i].Selected = false
	}
	return out
}

// Values returns the member values in input order.
func (g DuplicateGroup) Values() []string {
	values := make([]string, len(g.Members))
	for i, m := range g.Members {
		values[i] = m.Value
	}
	return values
}

func (g DuplicateGroup) clone() DuplicateGroup {
	out := g
	out.Members = append([]TranslationCandidate(nil), g.Members...)
	return out
}

// ---------------------------------------------------------------------------
// Batch results
// ---------------------------------------------------------------------------

// BatchResult partitions the groups of a write-back batch.
type BatchResult struct {
	Succeeded []DuplicateGroup
	Failed    []DuplicateGroup

	// Errors maps object id to the error that failed it.
	Errors map[string]error
}

// SucceededObjects returns the number of distinct objects written.
func (r BatchResult) SucceededObjects() int {
	return countObjects(r.Succeeded)
}

// FailedObjects returns the number of distinct objects that failed.
func (r BatchResult) FailedObjects() int {
	return countObjects(r.Failed)
}

// Summary reduces the result to counts.
func (r BatchResult) Summary() Summary {
	return Summary{
		SucceededGroups:  len(r.Succeeded),
		FailedGroups:     len(r.Failed),
		SucceededObjects: r.SucceededObjects(),
		FailedObjects:    r.FailedObjects(),
	}
}

// Summary is the count-only view of a batch handed to presenters.
type Summary struct {
	SucceededGroups  int
	FailedGroups     int
	SucceededObjects int
	FailedObjects    int
}

func countObjects(groups []DuplicateGroup) int {
	seen := make(map[string]bool, len(groups))
	for _, g := range groups {
		seen[g.ObjectID] = true
	}
	return len(seen)
}
