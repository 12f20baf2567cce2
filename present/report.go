package present

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/minios-linux/d2dedup/dedupe"
)

// Report is the machine-readable form of a scan.
type Report struct {
	Server  string        `yaml:"server,omitempty"`
	Types   int           `yaml:"types"`
	Objects int           `yaml:"objects"`
	Skipped []string      `yaml:"skipped,omitempty"`
	Groups  []ReportGroup `yaml:"groups"`
}

// ReportGroup describes one duplicate group.
type ReportGroup struct {
	Type     string   `yaml:"type"`
	Object   string   `yaml:"object"`
	Name     string   `yaml:"name,omitempty"`
	Locale   string   `yaml:"locale"`
	Property string   `yaml:"property"`
	Values   []string `yaml:"values"`
	Winner   *string  `yaml:"winner"`
}

// NewReport summarizes a scan result.
func NewReport(server string, result dedupe.ScanResult) Report {
	r := Report{
		Server:  server,
		Types:   len(result.Types),
		Objects: result.Objects,
		Groups:  make([]ReportGroup, 0, len(result.Groups)),
	}
	for _, s := range result.Skipped {
		r.Skipped = append(r.Skipped, s.Type)
	}
	for _, g := range result.Groups {
		rg := ReportGroup{
			Type:     g.Type.Plural,
			Object:   g.ObjectID,
			Name:     g.ObjectName,
			Locale:   g.Key.Locale,
			Property: g.Key.Property,
			Values:   g.Values(),
		}
		if w, ok := g.Winner(); ok {
			v := w.Value
			rg.Winner = &v
		}
		r.Groups = append(r.Groups, rg)
	}
	return r
}

// WriteYAML encodes r to w.
func (r Report) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return enc.Close()
}
