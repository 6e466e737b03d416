package dbstore

import (
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const prefixDotless = "$"

// jsonPathKey quotes a tag key for use in a JSON path.
// Keys that can not be quoted safely are reported as not ok and must be evaluated outside of the DB.
func jsonPathKey(key string) (string, bool) {
	if key == "" || strings.ContainsAny(key, "\"\\") {
		return "", false
	}

	return prefixDotless + ".\"" + key + "\"", true
}

// supportsTagQuery reports if tag key expressions can be built for the given dialect.
func supportsTagQuery(dialect string) bool {
	switch dialect {
	case "sqlite", "mysql", "postgres":
		return true
	default:
		return false
	}
}

// tagKeyExists implements [clause.Expression] matching rows whose JSON column has a given top level key.
// A key holding JSON `null` still counts as present.
type tagKeyExists struct {
	column string
	key    string
}

// Build implements clause.Expression
func (q tagKeyExists) Build(builder clause.Builder) {
	stmt, ok := builder.(*gorm.Statement)
	if !ok {
		return
	}

	path, _ := jsonPathKey(q.key)
	switch stmt.Dialector.Name() {
	case "sqlite":
		builder.WriteString("JSON_TYPE(")
		builder.WriteQuoted(q.column)
		builder.WriteByte(',')
		builder.AddVar(stmt, path)
		builder.WriteString(") IS NOT NULL")
	case "mysql":
		builder.WriteString("JSON_CONTAINS_PATH(")
		builder.WriteQuoted(q.column)
		builder.WriteString(", 'one', ")
		builder.AddVar(stmt, path)
		builder.WriteString(") = 1")
	case "postgres":
		builder.WriteString("jsonb_exists(")
		builder.WriteQuoted(q.column)
		builder.WriteString("::jsonb, ")
		builder.AddVar(stmt, q.key)
		builder.WriteByte(')')
	}
}
