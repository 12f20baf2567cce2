package present

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/minios-linux/d2dedup/dedupe"
)

// DryRunWriter reads through to a real writer but, instead of persisting,
// prints a unified diff of each object's translations.
type DryRunWriter struct {
	Writer dedupe.ObjectWriter
	Out    io.Writer

	mu     sync.Mutex
	before map[string][]dedupe.Translation
}

var _ dedupe.ObjectWriter = (*DryRunWriter)(nil)

// NewDryRunWriter wraps w, printing diffs to out.
func NewDryRunWriter(w dedupe.ObjectWriter, out io.Writer) *DryRunWriter {
	return &DryRunWriter{Writer: w, Out: out, before: make(map[string][]dedupe.Translation)}
}

// FetchFresh delegates and remembers the server's translations.
func (d *DryRunWriter) FetchFresh(ctx context.Context, t dedupe.ObjectType, id string) (*dedupe.FullObject, error) {
	obj, err := d.Writer.FetchFresh(ctx, t, id)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.before[id] = append([]dedupe.Translation(nil), obj.Translations...)
	d.mu.Unlock()
	return obj, nil
}

// WriteBack prints the change without sending it.
func (d *DryRunWriter) WriteBack(_ context.Context, t dedupe.ObjectType, id string, obj *dedupe.FullObject) error {
	d.mu.Lock()
	before := d.before[id]
	delete(d.before, id)
	d.mu.Unlock()

	return difflib.WriteUnifiedDiff(d.Out, difflib.UnifiedDiff{
		A:        translationLines(before),
		B:        translationLines(obj.Translations),
		FromFile: fmt.Sprintf("%s/%s (server)", t.Plural, id),
		ToFile:   fmt.Sprintf("%s/%s (fixed)", t.Plural, id),
		Context:  3,
	})
}

func translationLines(translations []dedupe.Translation) []string {
	lines := make([]string, len(translations))
	for i, t := range translations {
		lines[i] = fmt.Sprintf("%s %s: %s\n", t.Locale, t.Property, t.Value)
	}
	return lines
}
