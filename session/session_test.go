package session

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minios-linux/d2dedup/dedupe"
)

func tr(locale, property, value string) dedupe.Translation {
	return dedupe.Translation{Locale: locale, Property: property, Value: value}
}

func detect(id string, translations ...dedupe.Translation) []dedupe.DuplicateGroup {
	return dedupe.DetectObject(dedupe.ObjectType{Plural: "indicators"}, dedupe.Object{ID: id, Translations: translations})
}

func TestLoadNonExistent(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "d2dedup.session"))
	require.NoError(t, err)
	assert.Equal(t, Version, s.Version)
	assert.Empty(t, s.Choices)
	assert.Equal(t, "empty", s.Summary())
}

func TestLoadRejectsNewerVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "d2dedup.session")
	require.NoError(t, os.WriteFile(path, []byte("version: 99\n"), 0644))
	_, err := Load(path)
	assert.ErrorContains(t, err, "unsupported session version")
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "d2dedup.session")
	s, err := Load(path)
	require.NoError(t, err)
	s.Server = "https://play.dhis2.org/40"

	groups := detect("abc", tr("en", "NAME", "A"), tr("en", "NAME", "B"), tr("fr", "NAME", "C"), tr("fr", "NAME", "D"))
	groups[1] = groups[1].WithoutSelection()
	s.Record(groups...)
	require.NoError(t, s.Save())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://play.dhis2.org/40", loaded.Server)

	objects, choices := loaded.Stats()
	assert.Equal(t, 1, objects)
	assert.Equal(t, 2, choices)
	assert.Equal(t, "1 object, 2 choices", loaded.Summary())

	c, ok := loaded.Lookup(groups[0])
	require.True(t, ok)
	assert.Equal(t, "A", c.Value)
	assert.False(t, c.Drop)

	c, ok = loaded.Lookup(groups[1])
	require.True(t, ok)
	assert.True(t, c.Drop)
}

func TestRecordReplacesEarlierChoice(t *testing.T) {
	s := &Session{Choices: make(map[string][]Choice)}
	groups := detect("abc", tr("en", "NAME", "A"), tr("en", "NAME", "B"))

	s.Record(groups[0])
	updated, err := groups[0].WithSelection(dedupe.CandidateKey{Locale: "en", Property: "NAME", Value: "B"})
	require.NoError(t, err)
	s.Record(updated)

	require.Len(t, s.Choices["abc"], 1)
	assert.Equal(t, "B", s.Choices["abc"][0].Value)
}

func TestLookupIgnoresChangedObjects(t *testing.T) {
	s := &Session{Choices: make(map[string][]Choice)}
	s.Record(detect("abc", tr("en", "NAME", "A"), tr("en", "NAME", "B"))...)

	changed := detect("abc", tr("en", "NAME", "A"), tr("en", "NAME", "B"), tr("de", "NAME", "X"))
	_, ok := s.Lookup(changed[0])
	assert.False(t, ok)
}

func TestRestore(t *testing.T) {
	groups := append(
		detect("abc", tr("en", "NAME", "A"), tr("en", "NAME", "B"), tr("fr", "NAME", "C"), tr("fr", "NAME", "D")),
		detect("xyz", tr("en", "NAME", "X"), tr("en", "NAME", "Y"))...,
	)

	s := &Session{Choices: make(map[string][]Choice)}
	chosen, err := groups[0].WithSelection(dedupe.CandidateKey{Locale: "en", Property: "NAME", Value: "B"})
	require.NoError(t, err)
	s.Record(chosen, groups[1].WithoutSelection())

	store := dedupe.NewSelectionStore(groups, nil)
	n, err := s.Restore(store)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	en, _ := store.Group(groups[0].ID())
	w, ok := en.Winner()
	require.True(t, ok)
	assert.Equal(t, "B", w.Value)

	fr, _ := store.Group(groups[1].ID())
	_, ok = fr.Winner()
	assert.False(t, ok)

	xyz, _ := store.Group(groups[2].ID())
	w, _ = xyz.Winner()
	assert.Equal(t, "X", w.Value, "groups without a choice keep their default")
}

func TestRecordResult(t *testing.T) {
	one := detect("one", tr("en", "NAME", "A"), tr("en", "NAME", "B"))
	two := detect("two", tr("en", "NAME", "X"), tr("en", "NAME", "Y"))

	s := &Session{Choices: make(map[string][]Choice)}
	s.Record(one...)
	s.Failed = []FailedObject{{ID: "one", Type: "indicators", Error: "old"}}

	s.RecordResult(dedupe.BatchResult{
		Succeeded: one,
		Failed:    two,
		Errors:    map[string]error{"two": errors.New("409 conflict")},
	})

	assert.NotContains(t, s.Choices, "one")
	assert.Contains(t, s.Choices, "two")
	assert.Equal(t, []string{"two"}, s.FailedObjects())
	assert.Equal(t, []string{"indicators"}, s.FailedTypes())
	assert.Equal(t, "409 conflict", s.Failed[0].Error)

	// failing again updates the entry in place
	s.RecordResult(dedupe.BatchResult{Failed: two, Errors: map[string]error{"two": errors.New("timeout")}})
	require.Len(t, s.Failed, 1)
	assert.Equal(t, "timeout", s.Failed[0].Error)
	assert.Equal(t, "1 object, 1 choice, 1 failed (two)", s.Summary())
}

func TestForget(t *testing.T) {
	s := &Session{Choices: make(map[string][]Choice)}
	s.Record(detect("one", tr("en", "NAME", "A"), tr("en", "NAME", "B"))...)
	s.Failed = []FailedObject{{ID: "one"}, {ID: "two"}}

	s.Forget("one")
	assert.Empty(t, s.Choices)
	assert.Equal(t, []string{"two"}, s.FailedObjects())
}

func TestSaveWithoutPath(t *testing.T) {
	s := &Session{}
	assert.Error(t, s.Save())
}
