package bigquery

import (
	"cloud.google.com/go/bigquery"

	"github.com/dvloznov/menu-analytics/internal/table"
)

// SchemaFor maps table columns to a nullable BigQuery schema.
func SchemaFor(t *table.Table) bigquery.Schema {
	fields := t.Fields()
	schema := make(bigquery.Schema, len(fields))
	for i, f := range fields {
		schema[i] = &bigquery.FieldSchema{
			Name: f.Name,
			Type: fieldType(f.Kind),
		}
	}
	return schema
}

// FieldsFor maps a BigQuery schema back to table fields. Types other than
// INTEGER and FLOAT are read as text.
func FieldsFor(schema bigquery.Schema) []table.Field {
	fields := make([]table.Field, len(schema))
	for i, fs := range schema {
		fields[i] = table.Field{Name: fs.Name, Kind: kindFor(fs.Type)}
	}
	return fields
}

// SanitizeColumns renames columns to letters, digits and underscores.
func SanitizeColumns(t *table.Table) *table.Table {
	return t.NormalizeColumns(table.NormalizeOptions{ReplaceDots: true, Strict: true})
}

func fieldType(k table.Kind) bigquery.FieldType {
	switch k {
	case table.Integer:
		return bigquery.IntegerFieldType
	case table.Float:
		return bigquery.FloatFieldType
	default:
		return bigquery.StringFieldType
	}
}

func kindFor(ft bigquery.FieldType) table.Kind {
	switch ft {
	case bigquery.IntegerFieldType:
		return table.Integer
	case bigquery.FloatFieldType, bigquery.NumericFieldType, bigquery.BigNumericFieldType:
		return table.Float
	default:
		return table.Text
	}
}
