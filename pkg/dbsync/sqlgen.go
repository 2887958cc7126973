package dbsync

import (
	"strings"

	"github.com/uptrace/bun"
)

// Every table and column name reaching these builders comes from the registry or from
// information_schema, and is passed as bun.Ident. Values are always bound as arguments.

const (
	tableExistsSQL = "SELECT table_name FROM information_schema.tables " +
		"WHERE table_schema = current_schema() AND table_name = ?"

	columnsSQL = "SELECT column_name, column_default, is_identity, identity_generation, is_generated " +
		"FROM information_schema.columns " +
		"WHERE table_schema = current_schema() AND table_name = ? ORDER BY ordinal_position"

	truncateSQL = "TRUNCATE TABLE ? RESTART IDENTITY CASCADE"

	// advanceSequenceSQL moves a serial sequence past the largest key in the table.
	// It yields no row when the column has no sequence.
	advanceSequenceSQL = "SELECT setval(s.seq::regclass, (SELECT COALESCE(MAX(?), 1) FROM ?)) AS value " +
		"FROM (SELECT pg_get_serial_sequence(?, ?) AS seq) AS s WHERE s.seq IS NOT NULL"
)

func truncateQuery(table string) (string, []interface{}) {
	return truncateSQL, []interface{}{bun.Ident(table)}
}

func selectAllQuery(table, primaryKey string) (string, []interface{}) {
	return "SELECT * FROM ? ORDER BY ?", []interface{}{bun.Ident(table), bun.Ident(primaryKey)}
}

func selectColumnsQuery(table, primaryKey string, columns []string) (string, []interface{}) {
	args := make([]interface{}, 0, len(columns)+2)
	for _, c := range columns {
		args = append(args, bun.Ident(c))
	}
	args = append(args, bun.Ident(table), bun.Ident(primaryKey))
	return "SELECT " + placeholders(len(columns)) + " FROM ? ORDER BY ?", args
}

func insertQuery(table string, columns []string, values []interface{}, overridingSystemValue bool) (string, []interface{}) {
	args := make([]interface{}, 0, 1+len(columns)+len(values))
	args = append(args, bun.Ident(table))
	for _, c := range columns {
		args = append(args, bun.Ident(c))
	}
	args = append(args, values...)

	var b strings.Builder
	b.WriteString("INSERT INTO ? (")
	b.WriteString(placeholders(len(columns)))
	b.WriteString(")")
	if overridingSystemValue {
		b.WriteString(" OVERRIDING SYSTEM VALUE")
	}
	b.WriteString(" VALUES (")
	b.WriteString(placeholders(len(values)))
	b.WriteString(")")
	return b.String(), args
}

// upsertQuery builds INSERT ... ON CONFLICT (pk) DO UPDATE SET col = EXCLUDED.col for every
// non-key column. columns must contain primaryKey.
func upsertQuery(table, primaryKey string, columns []string, values []interface{}, overridingSystemValue bool) (string, []interface{}) {
	query, args := insertQuery(table, columns, values, overridingSystemValue)

	var b strings.Builder
	b.WriteString(query)
	b.WriteString(" ON CONFLICT (?)")
	args = append(args, bun.Ident(primaryKey))

	var sets []string
	for _, c := range columns {
		if c == primaryKey {
			continue
		}
		sets = append(sets, "? = EXCLUDED.?")
		args = append(args, bun.Ident(c), bun.Ident(c))
	}
	if len(sets) == 0 {
		b.WriteString(" DO NOTHING")
	} else {
		b.WriteString(" DO UPDATE SET ")
		b.WriteString(strings.Join(sets, ", "))
	}
	return b.String(), args
}

func advanceSequenceQuery(table, primaryKey string) (string, []interface{}) {
	return advanceSequenceSQL, []interface{}{bun.Ident(primaryKey), bun.Ident(table), table, primaryKey}
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
