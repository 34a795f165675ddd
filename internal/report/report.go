// Package report renders pipeline results as terminal tables, JSON or YAML.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	"github.com/dvloznov/quarterly-extractor/internal/pipeline"
	"github.com/dvloznov/quarterly-extractor/internal/preprocess"
)

// ErrUnknownFormat is returned for an unsupported output format.
var ErrUnknownFormat = errors.New("unknown output format")

// Format is an output format.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat resolves a format name; empty means FormatTable.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatTable, nil
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Write renders v to w. v is one of the pipeline result types.
func Write(w io.Writer, format Format, v interface{}) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("report.Write: encode JSON: %w", err)
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(yamlValue(v)); err != nil {
			return fmt.Errorf("report.Write: encode YAML: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("report.Write: encode YAML: %w", err)
		}
		return nil
	case FormatTable, "":
		out, err := render(v)
		if err != nil {
			return fmt.Errorf("report.Write: %w", err)
		}
		_, err = io.WriteString(w, out)
		return err
	default:
		return fmt.Errorf("report.Write: %w: %q", ErrUnknownFormat, format)
	}
}

// resultYAML swaps the correlated record for an ordered mapping node.
type resultYAML struct {
	pipeline.Result `yaml:",inline"`
	Correlation     *yaml.Node `yaml:"correlation,omitempty"`
}

func yamlValue(v interface{}) interface{} {
	res, ok := v.(*pipeline.Result)
	if !ok || res == nil {
		return v
	}
	out := resultYAML{Result: *res}
	if res.Correlation != nil {
		out.Correlation = recordNode(*res.Correlation)
	}
	return out
}

func recordNode(rec preprocess.CorrelatedRecord) *yaml.Node {
	n := &yaml.Node{Kind: yaml.MappingNode}
	for _, f := range rec.Fields {
		n.Content = append(n.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: f.Key},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: f.Value},
		)
	}
	return n
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func render(v interface{}) (string, error) {
	var b strings.Builder
	switch r := v.(type) {
	case *pipeline.Result:
		renderResult(&b, r)
	case *pipeline.ScanResult:
		renderScan(&b, r)
	case *pipeline.QueryResult:
		b.WriteString(r.Answer)
		b.WriteString("\n")
		renderWarnings(&b, r.Warnings)
	case *pipeline.TextResult:
		b.WriteString(r.Text)
		b.WriteString("\n")
		renderWarnings(&b, r.Warnings)
	default:
		return "", fmt.Errorf("no table layout for %T", v)
	}
	return b.String(), nil
}

func renderResult(b *strings.Builder, r *pipeline.Result) {
	fmt.Fprintf(b, "%s\n", titleStyle.Render(fmt.Sprintf("%s %s", r.Quarter, r.FiscalYear)))
	fmt.Fprintf(b, "Document: %s\n", r.Document)
	if r.Engine != "" {
		fmt.Fprintf(b, "Engine:   %s\n", r.Engine)
	}
	fmt.Fprintf(b, "Mode:     %s\n\n", r.Mode)

	if len(r.Values) > 0 {
		t := newTable("Term", "Value")
		for _, k := range orderedKeys(r.Values, r.Terms) {
			t.Row(k, r.Values[k])
		}
		b.WriteString(t.String())
		b.WriteString("\n")
	}

	if r.Correlation != nil {
		t := newTable("Field", "Value")
		for _, f := range r.Correlation.Fields {
			t.Row(f.Key, f.Value)
		}
		b.WriteString(t.String())
		b.WriteString("\n")
	}

	if len(r.Failures) > 0 {
		t := newTable("Engine", "Reason", "Error")
		for _, f := range r.Failures {
			t.Row(f.Engine, f.Reason, f.Error)
		}
		b.WriteString(t.String())
		b.WriteString("\n")
	}
	renderWarnings(b, r.Warnings)
}

func renderScan(b *strings.Builder, r *pipeline.ScanResult) {
	fmt.Fprintf(b, "Document: %s\n", r.Document)
	fmt.Fprintf(b, "Chunks:   %d (%d cached)\n\n", r.Chunks, r.CacheHits)

	if r.Data != nil {
		for _, section := range []struct {
			title string
			data  map[string]map[string]string
		}{
			{"Quarterly", r.Data.Quarterly},
			{"Annual", r.Data.Annual},
		} {
			if len(section.data) == 0 {
				continue
			}
			t := newTable(section.title, "Metric", "Value")
			for _, period := range sortedKeys(section.data) {
				for _, metric := range sortedKeys(section.data[period]) {
					t.Row(period, metric, section.data[period][metric])
				}
			}
			b.WriteString(t.String())
			b.WriteString("\n")
		}

		if len(r.Data.Metrics) > 0 {
			t := newTable("Metric", "Value")
			for _, k := range sortedKeys(r.Data.Metrics) {
				t.Row(k, r.Data.Metrics[k])
			}
			b.WriteString(t.String())
			b.WriteString("\n")
		}
	}
	renderWarnings(b, r.Warnings)
}

func renderWarnings(b *strings.Builder, warnings []string) {
	for _, w := range warnings {
		b.WriteString(warnStyle.Render("warning: " + w))
		b.WriteString("\n")
	}
}

// orderedKeys lists keys in the order the terms were requested, then any
// extra keys alphabetically.
func orderedKeys(values map[string]string, terms []string) []string {
	seen := make(map[string]bool, len(values))
	var keys []string
	for _, t := range terms {
		if _, ok := values[t]; ok && !seen[t] {
			keys = append(keys, t)
			seen[t] = true
		}
	}
	for _, k := range sortedKeys(values) {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	return keys
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
