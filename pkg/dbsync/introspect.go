package dbsync

import (
	"context"
	"fmt"
	"strings"

	"github.com/rxpartners/crm-backend/pkg/dbconn"
	"github.com/rxpartners/crm-backend/pkg/environment"
)

// Column describes one column as reported by information_schema.
type Column struct {
	Name string
	// Generated is set when the database fills the column itself (any default or identity).
	Generated bool
	// Identity is set for identity columns; inserting into them needs OVERRIDING SYSTEM VALUE.
	Identity bool
	// Computed columns (GENERATED ALWAYS AS ...) cannot be written at all.
	Computed bool
}

func tableExists(ctx context.Context, db dbconn.Reader, table string) (bool, error) {
	rows, err := db.Query(ctx, tableExistsSQL, table)
	if err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", table, err)
	}
	return len(rows) > 0, nil
}

func tableColumns(ctx context.Context, db dbconn.Reader, table string) ([]Column, error) {
	rows, err := db.Query(ctx, columnsSQL, table)
	if err != nil {
		return nil, fmt.Errorf("failed to list columns of %s: %w", table, err)
	}

	columns := make([]Column, 0, len(rows))
	for _, row := range rows {
		name, _ := Normalize(row["column_name"]).(string)
		if !environment.ValidIdentifier(name) {
			// never interpolate a name we cannot quote safely
			return nil, fmt.Errorf("table %s: unsupported column name %q", table, name)
		}
		identity := strings.EqualFold(textValue(row["is_identity"]), "YES")
		columns = append(columns, Column{
			Name:      name,
			Identity:  identity,
			Generated: identity || textValue(row["column_default"]) != "",
			Computed:  strings.EqualFold(textValue(row["is_generated"]), "ALWAYS"),
		})
	}
	return columns, nil
}

func textValue(v interface{}) string {
	if s, ok := Normalize(v).(string); ok {
		return s
	}
	return ""
}

func columnByName(columns []Column, name string) (Column, bool) {
	for _, c := range columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}
