package table

// UnionByName concatenates the rows of tables in order, aligning columns by
// name. The result has the union of all column names in first-seen order;
// a column missing from an input is null for that input's rows.
//
// When the same name has different kinds, Integer and Float widen to Float
// and anything mixed with Text becomes Text. Only the first column of a
// given name in each input takes part.
func UnionByName(tables ...*Table) *Table {
	var fields []Field
	pos := make(map[string]int)
	total := 0
	for _, t := range tables {
		if t == nil {
			continue
		}
		total += len(t.rows)
		for _, f := range t.fields {
			if i, ok := pos[f.Name]; ok {
				fields[i].Kind = widen(fields[i].Kind, f.Kind)
				continue
			}
			pos[f.Name] = len(fields)
			fields = append(fields, f)
		}
	}

	rows := make([][]any, 0, total)
	for _, t := range tables {
		if t == nil {
			continue
		}
		src := make([]int, len(fields))
		for i, f := range fields {
			src[i] = t.Index(f.Name)
		}
		for _, row := range t.rows {
			vals := make([]any, len(fields))
			for i, j := range src {
				if j >= 0 {
					vals[i] = convert(row[j], fields[i].Kind)
				}
			}
			rows = append(rows, vals)
		}
	}

	name := "union"
	if len(tables) > 0 && tables[0] != nil {
		name = tables[0].name
	}
	return &Table{name: name, fields: fields, rows: rows}
}
