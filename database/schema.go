package db

import "strings"

// ObjectKind identifies the kind of a schema object.
type ObjectKind string

const (
	KindTable     ObjectKind = "table"
	KindView      ObjectKind = "view"
	KindProcedure ObjectKind = "procedure"
	KindFunction  ObjectKind = "function"
	KindTrigger   ObjectKind = "trigger"
)

// Keyword returns the SQL keyword for the kind (TABLE, VIEW, ...).
func (k ObjectKind) Keyword() string {
	return strings.ToUpper(string(k))
}

// Title returns the capitalized kind name (Table, View, ...).
func (k ObjectKind) Title() string {
	if k == "" {
		return ""
	}
	return strings.ToUpper(string(k[:1])) + string(k[1:])
}

// createColumn is the SHOW CREATE result column holding the definition.
func (k ObjectKind) createColumn() string {
	switch k {
	case KindTable:
		return "Create Table"
	case KindView:
		return "Create View"
	case KindProcedure:
		return "Create Procedure"
	case KindFunction:
		return "Create Function"
	case KindTrigger:
		return "SQL Original Statement"
	}
	return ""
}

type SchemaObject struct {
	Kind ObjectKind `json:"kind"`
	Name string     `json:"name"`
}

type Column struct {
	Name            string `json:"name"`
	OrdinalPosition int    `json:"ordinalPosition"`
	IsGenerated     bool   `json:"isGenerated"` // computed by the server, never inserted
	IsPrimaryKey    bool   `json:"isPrimaryKey"`
	DataType        string `json:"dataType"` // information_schema DATA_TYPE, lower case
}

// KeysetOrderable reports whether values of a column type round-trip through
// their SQL literal exactly and compare the same way the server sorts them,
// so the last key of a page can seed the next one. Approximate numerics,
// DECIMAL, BIT, ENUM/SET, JSON and spatial types do not qualify.
func KeysetOrderable(dataType string) bool {
	switch strings.ToLower(dataType) {
	case "tinyint", "smallint", "mediumint", "int", "integer", "bigint", "year",
		"char", "varchar", "tinytext", "text", "mediumtext", "longtext",
		"binary", "varbinary", "tinyblob", "blob", "mediumblob", "longblob",
		"date", "datetime", "timestamp", "time":
		return true
	}
	return false
}

// IsGeneratedExtra reports whether an information_schema EXTRA value marks a
// generated column. MySQL tags expression defaults as DEFAULT_GENERATED,
// those columns still take explicit values.
func IsGeneratedExtra(extra string) bool {
	extra = strings.ToUpper(extra)
	extra = strings.ReplaceAll(extra, "DEFAULT_GENERATED", "")
	return strings.Contains(extra, "GENERATED")
}

// InsertableColumns returns the non-generated columns, keeping their order.
func InsertableColumns(columns []Column) []Column {
	var out []Column
	for _, col := range columns {
		if !col.IsGenerated {
			out = append(out, col)
		}
	}
	return out
}

// ColumnNames returns the names of columns in order.
func ColumnNames(columns []Column) []string {
	names := make([]string, len(columns))
	for i, col := range columns {
		names[i] = col.Name
	}
	return names
}

// QuoteIdent quotes a MySQL identifier with backticks.
func QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// QuoteIdents quotes and comma-joins identifiers.
func QuoteIdents(names []string) string {
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = QuoteIdent(name)
	}
	return strings.Join(quoted, ", ")
}
