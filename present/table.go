package present

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"github.com/minios-linux/d2dedup/dedupe"
	"github.com/minios-linux/d2dedup/i18n"
	"github.com/minios-linux/d2dedup/langmeta"
)

// MaxValueWidth bounds the display width of one translation value.
const MaxValueWidth = 40

const (
	markSelected   = "●"
	markUnselected = "○"
)

var ansi = regexp.MustCompile(`\x1B\[([0-9]{1,2}(;[0-9]{1,2})*)?[mK]`)

// Decolorise strips ANSI colour sequences.
func Decolorise(s string) string {
	return ansi.ReplaceAllString(s, "")
}

// RenderTable pads each column to its widest cell. Widths are measured in
// terminal cells, ignoring colour codes, so CJK and RTL values line up.
func RenderTable(rows [][]string) (string, error) {
	if len(rows) == 0 {
		return "", nil
	}
	cols := len(rows[0])
	for _, r := range rows {
		if len(r) != cols {
			return "", fmt.Errorf("each row must have %d columns", cols)
		}
	}

	widths := make([]int, cols)
	for _, r := range rows {
		for i, cell := range r {
			if w := runewidth.StringWidth(Decolorise(cell)); w > widths[i] {
				widths[i] = w
			}
		}
	}

	lines := make([]string, len(rows))
	for i, r := range rows {
		var b strings.Builder
		for j, cell := range r {
			if j == cols-1 {
				b.WriteString(cell)
				break
			}
			b.WriteString(cell)
			b.WriteString(strings.Repeat(" ", widths[j]-runewidth.StringWidth(Decolorise(cell))+1))
		}
		lines[i] = strings.TrimRight(b.String(), " ")
	}
	return strings.Join(lines, "\n"), nil
}

// Rows lays out groups one per row, object by object. The inclusion box is
// shown on the first row of each object only.
func Rows(groups []dedupe.DuplicateGroup, included map[string]bool) [][]string {
	header := color.New(color.Bold).SprintFunc()
	rows := [][]string{{
		checkbox(allIncluded(groups, included)),
		header(i18n.T("Object Type")),
		header(i18n.T("ID")),
		header(i18n.T("Name")),
		header(i18n.T("Locale")),
		header(i18n.T("Property")),
		header(i18n.T("Translations")),
	}}

	index := dedupe.NewIndex(groups)
	for _, id := range index.ObjectIDs() {
		for i, g := range index.GroupsFor(id) {
			box := ""
			if i == 0 {
				box = checkbox(included[id])
			}
			rows = append(rows, []string{
				box,
				g.Type.Plural,
				g.ObjectID,
				runewidth.Truncate(g.ObjectName, MaxValueWidth, "…"),
				langmeta.Label(g.Key.Locale),
				g.Key.Property,
				candidates(g),
			})
		}
	}
	return rows
}

func checkbox(on bool) string {
	if on {
		return "[x]"
	}
	return "[ ]"
}

func allIncluded(groups []dedupe.DuplicateGroup, included map[string]bool) bool {
	if len(groups) == 0 {
		return false
	}
	for _, g := range groups {
		if !included[g.ObjectID] {
			return false
		}
	}
	return true
}

func candidates(g dedupe.DuplicateGroup) string {
	winner := color.New(color.FgGreen).SprintFunc()
	parts := make([]string, len(g.Members))
	for i, m := range g.Members {
		v := runewidth.Truncate(m.Value, MaxValueWidth, "…")
		if m.Selected {
			parts[i] = winner(markSelected + " " + v)
		} else {
			parts[i] = markUnselected + " " + v
		}
	}
	return strings.Join(parts, "  ")
}
