package store

import "strings"

// QueryBuilder converts SQL queries with ? placeholders to dialect-specific format.
type QueryBuilder struct {
	dialect Dialect
}

// NewQueryBuilder creates a new QueryBuilder for the given dialect.
func NewQueryBuilder(dialect Dialect) *QueryBuilder {
	return &QueryBuilder{dialect: dialect}
}

// Build converts a query with ? placeholders to the dialect's placeholders.
//
//	input:    "SELECT payload FROM batch_runs WHERE id = ? AND target = ?"
//	SQLite:   unchanged
//	Postgres: "SELECT payload FROM batch_runs WHERE id = $1 AND target = $2"
func (qb *QueryBuilder) Build(query string) string {
	if _, ok := qb.dialect.(*SQLiteDialect); ok {
		return query
	}
	var b strings.Builder
	position := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			b.WriteString(qb.dialect.Placeholder(position))
			position++
		} else {
			b.WriteByte(query[i])
		}
	}
	return b.String()
}
