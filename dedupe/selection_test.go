package dedupe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleGroups() []DuplicateGroup {
	typ := ObjectType{Name: "dataElement", Plural: "dataElements"}
	a := DetectObject(typ, Object{ID: "objA", Name: "A", Translations: []Translation{
		tr("en", "NAME", "a1"),
		tr("en", "NAME", "a2"),
		tr("en", "NAME", "a3"),
		tr("fr", "NAME", "af1"),
		tr("fr", "NAME", "af2"),
	}})
	b := DetectObject(typ, Object{ID: "objB", Name: "B", Translations: []Translation{
		tr("en", "SHORT_NAME", "b1"),
		tr("en", "SHORT_NAME", "b2 longer"),
	}})
	return append(a, b...)
}

func selectedValues(g DuplicateGroup) []string {
	var out []string
	for _, m := range g.Members {
		if v, ok := m.SelectedValue(); ok {
			out = append(out, v)
		}
	}
	return out
}

func TestSelectSwitchesWinner(t *testing.T) {
	renders := 0
	s := NewSelectionStore(sampleGroups(), func() { renders++ })
	id := GroupID{ObjectID: "objA", Locale: "en", Property: "NAME"}

	require.NoError(t, s.Select(id, CandidateKey{"en", "NAME", "a2"}))
	require.NoError(t, s.Select(id, CandidateKey{"en", "NAME", "a3"}))

	g, ok := s.Group(id)
	require.True(t, ok)
	assert.Equal(t, []string{"a3"}, selectedValues(g))
	assert.False(t, g.Members[0].Selected)
	assert.False(t, g.Members[1].Selected)
	assert.Equal(t, 2, renders)

	// other groups are untouched
	other, _ := s.Group(GroupID{ObjectID: "objA", Locale: "fr", Property: "NAME"})
	assert.Equal(t, []string{"af1"}, selectedValues(other))
}

func TestSelectRejectsForeignCandidate(t *testing.T) {
	s := NewSelectionStore(sampleGroups(), nil)
	id := GroupID{ObjectID: "objA", Locale: "en", Property: "NAME"}

	err := s.Select(id, CandidateKey{"fr", "NAME", "af1"})
	assert.ErrorIs(t, err, ErrInvalidSelection)

	err = s.Select(GroupID{ObjectID: "missing", Locale: "en", Property: "NAME"}, CandidateKey{"en", "NAME", "a1"})
	assert.ErrorIs(t, err, ErrInvalidSelection)

	g, _ := s.Group(id)
	assert.Equal(t, []string{"a1"}, selectedValues(g), "failed selection must not change state")
}

func TestSelectDuplicateValueResolvesToFirst(t *testing.T) {
	groups := Detect([]Translation{
		tr("en", "NAME", "x"),
		tr("en", "NAME", "y"),
		tr("en", "NAME", "y"),
	})
	require.Len(t, groups, 1)

	g, err := groups[0].WithSelection(CandidateKey{"en", "NAME", "y"})
	require.NoError(t, err)
	assert.Equal(t, []bool{false, true, false}, []bool{g.Members[0].Selected, g.Members[1].Selected, g.Members[2].Selected})
	// the input group is not modified
	assert.True(t, groups[0].Members[0].Selected)
}

func TestUnselect(t *testing.T) {
	s := NewSelectionStore(sampleGroups(), nil)
	id := GroupID{ObjectID: "objB", Locale: "en", Property: "SHORT_NAME"}

	require.NoError(t, s.Unselect(id))
	g, _ := s.Group(id)
	assert.Empty(t, selectedValues(g))
	_, ok := s.Selection()[id]
	assert.False(t, ok)

	assert.ErrorIs(t, s.Unselect(GroupID{ObjectID: "nope"}), ErrInvalidSelection)
}

func TestApplyPolicy(t *testing.T) {
	scenarios := []struct {
		policy KeepPolicy
		want   map[string][]string
	}{
		{KeepFirst, map[string][]string{"en": {"a1"}, "fr": {"af1"}, "b": {"b1"}}},
		{KeepLast, map[string][]string{"en": {"a3"}, "fr": {"af2"}, "b": {"b2 longer"}}},
		{KeepLongest, map[string][]string{"en": {"a1"}, "fr": {"af1"}, "b": {"b2 longer"}}},
		{KeepNone, map[string][]string{"en": nil, "fr": nil, "b": nil}},
	}

	for _, sc := range scenarios {
		t.Run(string(sc.policy), func(t *testing.T) {
			s := NewSelectionStore(sampleGroups(), nil)
			require.NoError(t, s.ApplyPolicy(sc.policy))

			en, _ := s.Group(GroupID{"objA", "en", "NAME"})
			fr, _ := s.Group(GroupID{"objA", "fr", "NAME"})
			b, _ := s.Group(GroupID{"objB", "en", "SHORT_NAME"})
			assert.Equal(t, sc.want["en"], selectedValues(en))
			assert.Equal(t, sc.want["fr"], selectedValues(fr))
			assert.Equal(t, sc.want["b"], selectedValues(b))
		})
	}
}

func TestParseKeepPolicy(t *testing.T) {
	p, err := ParseKeepPolicy("longest")
	require.NoError(t, err)
	assert.Equal(t, KeepLongest, p)

	_, err = ParseKeepPolicy("random")
	assert.Error(t, err)
}

func TestInclusion(t *testing.T) {
	s := NewSelectionStore(sampleGroups(), nil)
	assert.Equal(t, []string{"objA", "objB"}, s.ObjectIDs())
	assert.False(t, s.AllIncluded())

	s.Toggle("objB")
	assert.True(t, s.IsIncluded("objB"))
	assert.Len(t, s.Selected(), 1)

	s.Toggle("objB")
	assert.False(t, s.IsIncluded("objB"))
	assert.Empty(t, s.Selected())

	s.Toggle("ghost")
	assert.False(t, s.IsIncluded("ghost"), "ids outside the working set are ignored")
	assert.Empty(t, s.Included())

	s.SelectAll()
	assert.True(t, s.AllIncluded())
	assert.Len(t, s.Selected(), 3)

	s.SelectNone()
	assert.Empty(t, s.Included())

	s.Include("objA", "unknown")
	assert.Equal(t, map[string]bool{"objA": true}, s.Included())

	selected := s.Selected()
	require.Len(t, selected, 2)
	for _, g := range selected {
		assert.Equal(t, "objA", g.ObjectID)
	}
}

func TestGroupsForUsesIndex(t *testing.T) {
	s := NewSelectionStore(sampleGroups(), nil)
	require.NoError(t, s.Select(GroupID{"objA", "fr", "NAME"}, CandidateKey{"fr", "NAME", "af2"}))

	groups := s.GroupsFor("objA")
	require.Len(t, groups, 2)
	assert.Equal(t, DuplicateKey{"en", "NAME"}, groups[0].Key)
	assert.Equal(t, []string{"af2"}, selectedValues(groups[1]), "index must reflect the latest selection")
	assert.Empty(t, s.GroupsFor("missing"))
}

func TestApplyBatchResult(t *testing.T) {
	s := NewSelectionStore(sampleGroups(), nil)
	s.SelectAll()

	groups := s.Groups()
	result := BatchResult{
		Succeeded: groups[:2], // objA
		Failed:    groups[2:], // objB
	}
	s.Apply(result)

	assert.Equal(t, 1, s.Len())
	assert.Equal(t, []string{"objB"}, s.ObjectIDs())
	assert.False(t, s.IsIncluded("objA"))
	assert.True(t, s.IsIncluded("objB"))

	failed, ok := s.Group(GroupID{"objB", "en", "SHORT_NAME"})
	require.True(t, ok)
	assert.Equal(t, groups[2], failed)
}

func TestGroupsReturnsCopies(t *testing.T) {
	s := NewSelectionStore(sampleGroups(), nil)
	groups := s.Groups()
	groups[0].Members[0].Selected = false

	g, _ := s.Group(groups[0].ID())
	assert.True(t, g.Members[0].Selected)
}
