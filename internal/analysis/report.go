package analysis

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dvloznov/menu-analytics/internal/table"
)

// Output formats accepted by Report.Write.
const (
	FormatText = "text"
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// Section is one titled analysis result.
type Section struct {
	Title string
	Table *table.Table
}

// Report holds every analysis of one unified table.
type Report struct {
	Name     string
	Rows     int
	Sections []Section
	Nulls    []table.ColumnNulls
}

// Build runs all analyses over t.
func (a *Analyzer) Build(t *table.Table) (*Report, error) {
	r := &Report{Name: t.Name(), Rows: t.NumRows(), Nulls: NullCounts(t)}

	steps := []struct {
		title string
		fn    func(*table.Table) (*table.Table, error)
	}{
		{"Average nutrition by brand", a.BrandNutrition},
		{"Healthy items by brand", a.HealthyStats},
		{"Highest calorie items", func(t *table.Table) (*table.Table, error) { return a.TopItems(t, 0, false) }},
		{"Lowest calorie items", func(t *table.Table) (*table.Table, error) { return a.TopItems(t, 0, true) }},
		{"Protein rich healthy items", a.ProteinRich},
		{"Sugar or sodium overload", a.SugarSodiumOverload},
	}
	for _, s := range steps {
		out, err := s.fn(t)
		if err != nil {
			return nil, err
		}
		r.Sections = append(r.Sections, Section{Title: s.title, Table: out})
	}
	return r, nil
}

// Write renders the report in format (text, csv or json).
func (r *Report) Write(w io.Writer, format string) error {
	switch strings.ToLower(format) {
	case "", FormatText:
		return r.writeText(w)
	case FormatCSV:
		return r.writeCSV(w)
	case FormatJSON:
		return r.writeJSON(w)
	default:
		return fmt.Errorf("unknown report format %q (valid: text, csv, json)", format)
	}
}

func (r *Report) writeText(w io.Writer) error {
	fmt.Fprintf(w, "Menu report: %s (%d rows)\n", r.Name, r.Rows)
	for _, s := range r.Sections {
		fmt.Fprintf(w, "\n%s\n", s.Title)
		if err := writeTabular(w, s.Table); err != nil {
			return err
		}
	}

	fmt.Fprintf(w, "\nNull counts\n")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Column\tNulls")
	for _, n := range r.Nulls {
		fmt.Fprintf(tw, "%s\t%d\n", n.Column, n.Nulls)
	}
	return tw.Flush()
}

func writeTabular(w io.Writer, t *table.Table) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(t.Columns(), "\t"))
	for i := 0; i < t.NumRows(); i++ {
		vals := t.Row(i).Values()
		cells := make([]string, len(vals))
		for j, v := range vals {
			cells[j] = formatCell(v)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

// formatCell shortens floats for display.
func formatCell(v any) string {
	if f, ok := v.(float64); ok {
		return fmt.Sprintf("%.2f", f)
	}
	return table.FormatValue(v)
}

func (r *Report) writeCSV(w io.Writer) error {
	for i, s := range r.Sections {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "# %s\n", s.Title)
		if err := table.WriteCSV(w, s.Table, table.CSVOptions{}); err != nil {
			return fmt.Errorf("failed to write section %q: %w", s.Title, err)
		}
	}
	return nil
}

type jsonSection struct {
	Title   string           `json:"title"`
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

type jsonReport struct {
	Name     string              `json:"name"`
	Rows     int                 `json:"rows"`
	Sections []jsonSection       `json:"sections"`
	Nulls    []table.ColumnNulls `json:"nulls"`
}

func (r *Report) writeJSON(w io.Writer) error {
	out := jsonReport{Name: r.Name, Rows: r.Rows, Nulls: r.Nulls}
	for _, s := range r.Sections {
		out.Sections = append(out.Sections, jsonSection{
			Title:   s.Title,
			Columns: s.Table.Columns(),
			Rows:    s.Table.Records(),
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
