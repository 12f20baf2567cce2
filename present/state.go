// Package present holds the presentation side of d2dedup: the state
// container that couples the selection store to a presenter, terminal and
// interactive presenters, and dry-run output.
package present

import (
	"context"

	"github.com/minios-linux/d2dedup/dedupe"
)

// State owns the working set for one run. Every mutation of the embedded
// store re-renders through the presenter.
type State struct {
	*dedupe.SelectionStore
	presenter dedupe.Presenter
}

// NewState builds the working set from a detection pass.
func NewState(groups []dedupe.DuplicateGroup, p dedupe.Presenter) *State {
	s := &State{presenter: p}
	s.SelectionStore = dedupe.NewSelectionStore(groups, s.render)
	return s
}

// Render pushes the current state to the presenter.
func (s *State) Render() {
	s.render()
}

func (s *State) render() {
	if s.presenter != nil {
		s.presenter.RenderState(s.Groups(), s.Included())
	}
}

// Fix writes every included object through b, folds the result into the
// working set and reports the summary.
func (s *State) Fix(ctx context.Context, b *dedupe.BatchReconciler) dedupe.BatchResult {
	result := b.Apply(ctx, s.Selected())
	s.Apply(result)
	if s.presenter != nil {
		s.presenter.NotifySummary(result.Summary())
	}
	return result
}
