package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// ReadOptions controls how CSV cells are parsed.
type ReadOptions struct {
	// NullValues lists cell texts, compared after trimming, that mean null
	// in addition to the empty cell.
	NullValues []string
}

// CSVOptions controls how tables are written.
type CSVOptions struct {
	// NullMarker is written for null cells. Empty by default.
	NullMarker string
	// Comma is the field delimiter. Zero means ','.
	Comma rune
}

// ReadCSV parses a CSV document with a header row into a table named name.
//
// A blank header cell becomes "_c<i>" where i is the column position. Each
// column is Integer if every non-empty cell parses as an int64, Float if
// every non-empty cell parses as a finite float64, and Text otherwise. Empty or
// whitespace-only cells are null.
func ReadCSV(r io.Reader, name string) (*Table, error) {
	return ReadCSVWithOptions(r, name, ReadOptions{})
}

// ReadCSVWithOptions is ReadCSV with extra null tokens.
func ReadCSVWithOptions(r io.Reader, name string, opts ReadOptions) (*Table, error) {
	isNull := nullChecker(opts.NullValues)

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("ReadCSV %s: empty input", name)
	}
	if err != nil {
		return nil, fmt.Errorf("ReadCSV %s: read header: %w", name, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	fields := make([]Field, len(header))
	for i, h := range header {
		if strings.TrimSpace(h) == "" {
			h = fmt.Sprintf("_c%d", i)
		}
		fields[i] = Field{Name: h, Kind: Integer}
	}

	var records [][]string
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ReadCSV %s: read row: %w", name, err)
		}
		if len(rec) != len(fields) {
			return nil, fmt.Errorf("ReadCSV %s: line %d has %d cells, want %d: %w", name, line, len(rec), len(fields), ErrRaggedRow)
		}
		records = append(records, rec)
	}

	for j := range fields {
		fields[j].Kind = inferKind(records, j, isNull)
	}

	rows := make([][]any, len(records))
	for i, rec := range records {
		vals := make([]any, len(rec))
		for j, cell := range rec {
			vals[j] = parseCell(cell, fields[j].Kind, isNull)
		}
		rows[i] = vals
	}
	return &Table{name: name, fields: fields, rows: rows}, nil
}

// WriteCSV writes the header and every row of t.
func WriteCSV(w io.Writer, t *Table, opts CSVOptions) error {
	cw := csv.NewWriter(w)
	if opts.Comma != 0 {
		cw.Comma = opts.Comma
	}
	if err := cw.Write(t.Columns()); err != nil {
		return fmt.Errorf("WriteCSV %s: header: %w", t.name, err)
	}
	rec := make([]string, len(t.fields))
	for _, row := range t.rows {
		for i, v := range row {
			if v == nil {
				rec[i] = opts.NullMarker
				continue
			}
			rec[i] = FormatValue(v)
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("WriteCSV %s: row: %w", t.name, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func nullChecker(tokens []string) func(string) bool {
	set := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		set[strings.TrimSpace(tok)] = true
	}
	return func(trimmed string) bool {
		return trimmed == "" || set[trimmed]
	}
}

func inferKind(records [][]string, col int, isNull func(string) bool) Kind {
	kind := Integer
	for _, rec := range records {
		cell := strings.TrimSpace(rec[col])
		if isNull(cell) {
			continue
		}
		if kind == Integer {
			if _, err := strconv.ParseInt(cell, 10, 64); err == nil {
				continue
			}
			kind = Float
		}
		if _, ok := parseFinite(cell); !ok {
			return Text
		}
	}
	return kind
}

// parseFinite accepts only finite decimals, so "NaN" and "Inf" stay text.
func parseFinite(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func parseCell(cell string, k Kind, isNull func(string) bool) any {
	trimmed := strings.TrimSpace(cell)
	if isNull(trimmed) {
		return nil
	}
	switch k {
	case Integer:
		n, _ := strconv.ParseInt(trimmed, 10, 64)
		return n
	case Float:
		f, _ := parseFinite(trimmed)
		return f
	default:
		return cell
	}
}
