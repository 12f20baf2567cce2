package present

import (
	"fmt"
	"io"
	"math"

	"github.com/charmbracelet/log"
	"github.com/fatih/color"

	"github.com/minios-linux/d2dedup/dedupe"
	"github.com/minios-linux/d2dedup/i18n"
)

// Terminal is a line-oriented Presenter for the CLI.
type Terminal struct {
	Out io.Writer
	Log *log.Logger

	// ShowState prints the full table on every render. When false, renders
	// are only logged at debug level.
	ShowState bool

	lastPercent int
}

var _ dedupe.Presenter = (*Terminal)(nil)

// NewTerminal creates a presenter writing to out.
func NewTerminal(out io.Writer, logger *log.Logger) *Terminal {
	if logger == nil {
		logger = log.Default()
	}
	return &Terminal{Out: out, Log: logger, lastPercent: -1}
}

// NotifyProgress redraws the progress line when the whole percentage moves.
func (t *Terminal) NotifyProgress(fraction float64) {
	pct := int(math.Round(math.Max(0, math.Min(1, fraction)) * 100))
	if pct == t.lastPercent {
		return
	}
	t.lastPercent = pct

	fmt.Fprintf(t.Out, "\r%s %3d%%", i18n.T("Scanning metadata types..."), pct)
	if pct == 100 {
		fmt.Fprintln(t.Out)
		t.lastPercent = -1
	}
}

// NotifySummary prints the outcome of a batch.
func (t *Terminal) NotifySummary(s dedupe.Summary) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	if s.SucceededGroups == 0 && s.FailedGroups == 0 {
		fmt.Fprintln(t.Out, i18n.T("Nothing to update."))
		return
	}
	if s.SucceededGroups > 0 {
		fmt.Fprintln(t.Out, green(i18n.N("%d translation string updated successfully.",
			"%d translation strings updated successfully.", s.SucceededGroups, s.SucceededGroups)))
	}
	if s.FailedGroups > 0 {
		fmt.Fprintln(t.Out, red(i18n.N("%d update failed.", "%d updates failed.", s.FailedGroups, s.FailedGroups)))
	}
	t.Log.Info("batch finished",
		"objects_ok", s.SucceededObjects, "objects_failed", s.FailedObjects,
		"groups_ok", s.SucceededGroups, "groups_failed", s.FailedGroups)
}

// RenderState prints the working set, or the empty-set notice.
func (t *Terminal) RenderState(groups []dedupe.DuplicateGroup, included map[string]bool) {
	if len(groups) == 0 {
		fmt.Fprintln(t.Out, i18n.T("No duplicate translations found."))
		return
	}
	if !t.ShowState {
		t.Log.Debug("state changed", "groups", len(groups), "included", len(included))
		return
	}
	t.PrintTable(groups, included)
}

// PrintTable prints groups as a table, followed by a count line.
func (t *Terminal) PrintTable(groups []dedupe.DuplicateGroup, included map[string]bool) {
	table, err := RenderTable(Rows(groups, included))
	if err != nil {
		t.Log.Error("rendering table", "err", err)
		return
	}
	fmt.Fprintln(t.Out, table)

	objects := dedupe.NewIndex(groups).Len()
	fmt.Fprintln(t.Out, i18n.T("%d duplicate groups on %d objects, %d marked for fixing.",
		len(groups), objects, countIncluded(groups, included)))
}

func countIncluded(groups []dedupe.DuplicateGroup, included map[string]bool) int {
	n := 0
	for _, id := range dedupe.NewIndex(groups).ObjectIDs() {
		if included[id] {
			n++
		}
	}
	return n
}
