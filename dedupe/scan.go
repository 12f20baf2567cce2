package dedupe

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/samber/lo"
)

// Scanner runs a detection pass over every translatable type of a source.
type Scanner struct {
	Source ObjectSource
	Log    *log.Logger

	// Include, when non-empty, restricts the pass to these type plurals.
	Include []string
	// Exclude skips these type plurals.
	Exclude []string

	// OnProgress receives the fraction of types processed, in (0, 1].
	OnProgress func(fraction float64)
}

// ScanResult is the outcome of one detection pass.
type ScanResult struct {
	Groups  []DuplicateGroup
	Types   []ObjectType
	Objects int

	// Skipped holds the types whose objects could not be fetched.
	Skipped []*FetchObjectsError
}

// Scan lists the translatable types, fetches each type's objects and detects
// duplicates on each object. Failing to list types aborts the pass with a
// *FetchTypeError; failing to fetch one type is recorded in Skipped and the
// pass continues.
func (s *Scanner) Scan(ctx context.Context) (ScanResult, error) {
	logger := s.Log
	if logger == nil {
		logger = log.Default()
	}

	types, err := s.Source.ListTypes(ctx)
	if err != nil {
		return ScanResult{}, &FetchTypeError{Err: err}
	}
	types = s.filter(types)
	logger.Debug("translatable types", "count", len(types))

	result := ScanResult{Types: types}
	for i, t := range types {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		objects, err := s.Source.FetchObjects(ctx, t)
		if err != nil {
			fe := &FetchObjectsError{Type: t.Plural, Err: err}
			logger.Warn("skipping type", "type", t.Plural, "err", err)
			result.Skipped = append(result.Skipped, fe)
			objects = nil
		}

		found := 0
		for _, o := range objects {
			groups := DetectObject(t, o)
			found += len(groups)
			result.Groups = append(result.Groups, groups...)
		}
		result.Objects += len(objects)
		if found > 0 {
			logger.Info("duplicates found", "type", t.Plural, "groups", found)
		}

		if s.OnProgress != nil {
			s.OnProgress(float64(i+1) / float64(len(types)))
		}
	}

	return result, nil
}

func (s *Scanner) filter(types []ObjectType) []ObjectType {
	return lo.Filter(types, func(t ObjectType, _ int) bool {
		if len(s.Include) > 0 && !lo.Contains(s.Include, t.Plural) {
			return false
		}
		return !lo.Contains(s.Exclude, t.Plural)
	})
}
