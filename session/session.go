// Package session implements the d2dedup session file, which remembers the
// winners chosen for each duplicate group and the objects whose write-back
// failed. fix --retry reads it to pick up where the last run stopped.
//
// Choices carry a fingerprint of the object's translations at detection
// time and are only restored onto an identical object.
package session

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/minios-linux/d2dedup/dedupe"
	"github.com/minios-linux/d2dedup/i18n"
)

// Version is the session file format version.
const Version = 1

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// Session represents the session file structure.
type Session struct {
	Version int    `yaml:"version"`
	Server  string `yaml:"server,omitempty"`

	// Choices maps object id to the winners recorded for it.
	Choices map[string][]Choice `yaml:"choices"`
	// Failed lists objects whose last write-back failed.
	Failed []FailedObject `yaml:"failed,omitempty"`

	mu   sync.Mutex `yaml:"-"`
	path string     `yaml:"-"`
}

// Choice is the recorded outcome of one duplicate group.
type Choice struct {
	Locale   string `yaml:"locale"`
	Property string `yaml:"property"`
	Value    string `yaml:"value,omitempty"`
	// Drop means no winner: the key is removed from the object.
	Drop        bool   `yaml:"drop,omitempty"`
	Fingerprint string `yaml:"fingerprint"`
}

// Key returns the duplicate key the choice applies to.
func (c Choice) Key() dedupe.DuplicateKey {
	return dedupe.DuplicateKey{Locale: c.Locale, Property: c.Property}
}

// FailedObject records a failed write-back.
type FailedObject struct {
	ID    string `yaml:"id"`
	Type  string `yaml:"type"`
	Error string `yaml:"error"`
}

// ---------------------------------------------------------------------------
// Loading and saving
// ---------------------------------------------------------------------------

// Load reads a session file. Returns an empty session if the file doesn't
// exist.
func Load(path string) (*Session, error) {
	s := &Session{
		Version: Version,
		Choices: make(map[string][]Choice),
		path:    path,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if s.Version > Version {
		return nil, fmt.Errorf("%s: unsupported session version %d", path, s.Version)
	}
	s.path = path

	if s.Choices == nil {
		s.Choices = make(map[string][]Choice)
	}
	return s, nil
}

// Save writes the session file to disk.
func (s *Session) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return fmt.Errorf("session file path not set")
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", s.path, err)
	}
	return nil
}

// Path returns the session file path.
func (s *Session) Path() string {
	return s.path
}

// ---------------------------------------------------------------------------
// Choices
// ---------------------------------------------------------------------------

// Record stores the current winner of each group, replacing any earlier
// choice for the same object and key.
func (s *Session) Record(groups ...dedupe.DuplicateGroup) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, g := range groups {
		c := Choice{
			Locale:      g.Key.Locale,
			Property:    g.Key.Property,
			Fingerprint: dedupe.Fingerprint(g.Original),
		}
		if w, ok := g.Winner(); ok {
			c.Value = w.Value
		} else {
			c.Drop = true
		}

		choices := s.Choices[g.ObjectID]
		replaced := false
		for i := range choices {
			if choices[i].Key() == g.Key {
				choices[i] = c
				replaced = true
			}
		}
		if !replaced {
			choices = append(choices, c)
		}
		s.Choices[g.ObjectID] = choices
	}
}

// Lookup returns the recorded choice for a group whose object still matches
// the fingerprint taken when the choice was made.
func (s *Session) Lookup(g dedupe.DuplicateGroup) (Choice, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.Choices[g.ObjectID] {
		if c.Key() == g.Key && c.Fingerprint == dedupe.Fingerprint(g.Original) {
			return c, true
		}
	}
	return Choice{}, false
}

// Restore re-applies recorded choices to the groups of store. It returns the
// number of groups restored. Choices for changed objects, or naming a value
// that is no longer a member, are skipped.
func (s *Session) Restore(store *dedupe.SelectionStore) (int, error) {
	restored := 0
	for _, g := range store.Groups() {
		c, ok := s.Lookup(g)
		if !ok {
			continue
		}

		var err error
		if c.Drop {
			err = store.Unselect(g.ID())
		} else {
			key := dedupe.CandidateKey{Locale: c.Locale, Property: c.Property, Value: c.Value}
			if !g.Has(key) {
				continue
			}
			err = store.Select(g.ID(), key)
		}
		if err != nil {
			return restored, err
		}
		restored++
	}
	return restored, nil
}

// Forget removes the choices and failure record of objects.
func (s *Session) Forget(objectIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	drop := make(map[string]bool, len(objectIDs))
	for _, id := range objectIDs {
		drop[id] = true
		delete(s.Choices, id)
	}

	kept := s.Failed[:0]
	for _, f := range s.Failed {
		if !drop[f.ID] {
			kept = append(kept, f)
		}
	}
	s.Failed = kept
}

// ---------------------------------------------------------------------------
// Batch outcome
// ---------------------------------------------------------------------------

// RecordResult folds a batch outcome into the session: succeeded objects are
// forgotten and failed objects are recorded for retry along with their
// choices.
func (s *Session) RecordResult(result dedupe.BatchResult) {
	succeeded := make(map[string]bool)
	for _, g := range result.Succeeded {
		succeeded[g.ObjectID] = true
	}
	ids := make([]string, 0, len(succeeded))
	for id := range succeeded {
		ids = append(ids, id)
	}
	s.Forget(ids...)

	s.Record(result.Failed...)

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]int, len(s.Failed))
	for i, f := range s.Failed {
		seen[f.ID] = i
	}
	for _, g := range result.Failed {
		msg := ""
		if err := result.Errors[g.ObjectID]; err != nil {
			msg = err.Error()
		}
		entry := FailedObject{ID: g.ObjectID, Type: g.Type.Plural, Error: msg}
		if i, ok := seen[g.ObjectID]; ok {
			s.Failed[i] = entry
			continue
		}
		seen[g.ObjectID] = len(s.Failed)
		s.Failed = append(s.Failed, entry)
	}
}

// FailedObjects returns the ids of objects awaiting retry, in record order.
func (s *Session) FailedObjects() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, len(s.Failed))
	for i, f := range s.Failed {
		ids[i] = f.ID
	}
	return ids
}

// FailedTypes returns the distinct type plurals of failed objects, sorted.
func (s *Session) FailedTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool)
	var types []string
	for _, f := range s.Failed {
		if f.Type != "" && !seen[f.Type] {
			seen[f.Type] = true
			types = append(types, f.Type)
		}
	}
	sort.Strings(types)
	return types
}

// ---------------------------------------------------------------------------
// Stats
// ---------------------------------------------------------------------------

// Stats returns the number of objects with choices and total choices.
func (s *Session) Stats() (objects, choices int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	objects = len(s.Choices)
	for _, c := range s.Choices {
		choices += len(c)
	}
	return
}

// Summary returns a human-readable summary string.
func (s *Session) Summary() string {
	objects, choices := s.Stats()
	failed := s.FailedObjects()
	if objects == 0 && len(failed) == 0 {
		return i18n.T("empty")
	}
	parts := []string{
		i18n.N("%d object", "%d objects", objects, objects),
		i18n.N("%d choice", "%d choices", choices, choices),
	}
	if len(failed) > 0 {
		parts = append(parts, i18n.N("%d failed (%s)", "%d failed (%s)", len(failed), len(failed), strings.Join(failed, ", ")))
	}
	return strings.Join(parts, ", ")
}
