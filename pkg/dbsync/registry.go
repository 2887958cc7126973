package dbsync

import (
	"fmt"
	"strings"

	"github.com/rxpartners/crm-backend/pkg/environment"
)

const defaultPrimaryKey = "id"

// TrackedTable is one table mirrored between production and development.
type TrackedTable struct {
	Name       string
	PrimaryKey string
	// KeyFields are the only columns compared for FieldMismatch detection.
	KeyFields []string
	// DependsOn names the tracked tables this one references through a cascading foreign
	// key. Truncating any of them empties this table too.
	DependsOn []string
}

// Registry is the ordered set of tracked tables plus the subset that gets
// row-level reconciliation.
type Registry struct {
	tables   []TrackedTable
	critical map[string]bool
}

// DefaultTables is the fixed CRM table registry, in comparison order.
func DefaultTables() []TrackedTable {
	return []TrackedTable{
		{Name: "customers", KeyFields: []string{"company_name", "status", "affiliate_partner", "next_step", "assigned_executive"}},
		{Name: "customer_notes", KeyFields: []string{"customer_id", "content"}, DependsOn: []string{"customers"}},
		{Name: "customer_files", KeyFields: []string{"customer_id", "original_name", "file_path"}, DependsOn: []string{"customers"}},
		{Name: "users", KeyFields: []string{"username", "email", "role"}},
		{Name: "affiliates", KeyFields: []string{"name", "email"}},
		{Name: "affiliate_aes", KeyFields: []string{"affiliate_id", "name", "email"}, DependsOn: []string{"affiliates"}},
	}
}

// DefaultCriticalTables are the tables reconciled row by row unless configured otherwise.
func DefaultCriticalTables() []string {
	return []string{"customers", "customer_notes", "customer_files"}
}

// NewRegistry validates every table and column identifier. Critical names must be tracked tables,
// and a table may only depend on tables registered before it.
func NewRegistry(tables []TrackedTable, critical []string) (*Registry, error) {
	r := &Registry{critical: make(map[string]bool, len(critical))}
	seen := make(map[string]bool, len(tables))

	for _, t := range tables {
		if t.PrimaryKey == "" {
			t.PrimaryKey = defaultPrimaryKey
		}
		if !environment.ValidIdentifier(t.Name) {
			return nil, fmt.Errorf("invalid table name %q", t.Name)
		}
		if seen[t.Name] {
			return nil, fmt.Errorf("table %q registered twice", t.Name)
		}
		seen[t.Name] = true
		for _, col := range append([]string{t.PrimaryKey}, t.KeyFields...) {
			if !environment.ValidIdentifier(col) {
				return nil, fmt.Errorf("table %s: invalid column name %q", t.Name, col)
			}
		}
		for _, parent := range t.DependsOn {
			if parent == t.Name || !seen[parent] {
				return nil, fmt.Errorf("table %s: dependency %q must be tracked before it", t.Name, parent)
			}
		}
		t.KeyFields = append([]string(nil), t.KeyFields...)
		t.DependsOn = append([]string(nil), t.DependsOn...)
		r.tables = append(r.tables, t)
	}

	for _, name := range critical {
		name = strings.TrimSpace(name)
		if !seen[name] {
			return nil, fmt.Errorf("critical table %q is not tracked", name)
		}
		r.critical[name] = true
	}
	return r, nil
}

// DefaultRegistry is the CRM registry with the given critical subset, or the default one when empty.
func DefaultRegistry(critical []string) (*Registry, error) {
	if len(critical) == 0 {
		critical = DefaultCriticalTables()
	}
	return NewRegistry(DefaultTables(), critical)
}

// Tables returns the tracked tables in registry order.
func (r *Registry) Tables() []TrackedTable {
	return append([]TrackedTable(nil), r.tables...)
}

// Lookup finds a tracked table by name.
func (r *Registry) Lookup(name string) (TrackedTable, bool) {
	for _, t := range r.tables {
		if t.Name == name {
			return t, true
		}
	}
	return TrackedTable{}, false
}

// Dependents returns the tables that directly depend on table, in registry order.
func (r *Registry) Dependents(table string) []TrackedTable {
	var out []TrackedTable
	for _, t := range r.tables {
		for _, parent := range t.DependsOn {
			if parent == table {
				out = append(out, t)
				break
			}
		}
	}
	return out
}

// IsCritical reports whether table gets row-level reconciliation.
func (r *Registry) IsCritical(table string) bool {
	return r.critical[table]
}

// SplitItemID splits "<table>-<recordId>" on the longest tracked table name that prefixes it,
// so record ids may themselves contain hyphens.
func (r *Registry) SplitItemID(itemID string) (TrackedTable, string, bool) {
	var (
		best  TrackedTable
		found bool
	)
	for _, t := range r.tables {
		prefix := t.Name + "-"
		if strings.HasPrefix(itemID, prefix) && len(itemID) > len(prefix) && len(t.Name) > len(best.Name) {
			best, found = t, true
		}
	}
	if !found {
		return TrackedTable{}, "", false
	}
	return best, strings.TrimPrefix(itemID, best.Name+"-"), true
}

// ItemID is the inverse of SplitItemID.
func ItemID(table, recordID string) string {
	return table + "-" + recordID
}
