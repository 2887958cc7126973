package dbsync

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/uptrace/bun"

	"github.com/rxpartners/crm-backend/pkg/dbconn"
)

// fakeColumn describes a column of a fakeTable.
type fakeColumn struct {
	name     string
	dflt     string
	identity bool
}

type fakeTable struct {
	columns []fakeColumn
	pk      string
	rows    []dbconn.Row
	seq     int64
}

// fakeDB is an in-memory dbconn.Database that understands exactly the statements the sync
// components generate. Every statement is recorded.
type fakeDB struct {
	name string

	mu         sync.Mutex
	tables     map[string]*fakeTable
	statements []string
	// failQuery, when set, fails any statement whose text contains the key.
	failQuery map[string]error
	// failInsert, when set, is consulted for every inserted row.
	failInsert func(table string, row dbconn.Row) error
	// referencedBy maps a table to the tables holding a cascading foreign key to it.
	referencedBy map[string][]string
}

var _ dbconn.Database = (*fakeDB)(nil)

func newFakeDB(name string) *fakeDB {
	return &fakeDB{
		name:         name,
		tables:       make(map[string]*fakeTable),
		failQuery:    make(map[string]error),
		referencedBy: make(map[string][]string),
	}
}

// noteColumns is the customer_notes layout.
func noteColumns() []fakeColumn {
	return []fakeColumn{
		{name: "id", dflt: "nextval('customer_notes_id_seq'::regclass)"},
		{name: "customer_id"},
		{name: "content"},
	}
}

// references declares a cascading foreign key from child to parent, so truncating parent
// empties child as TRUNCATE ... CASCADE does.
func (f *fakeDB) references(child, parent string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.referencedBy[parent] = append(f.referencedBy[parent], child)
}

// customerColumns is the customers layout: a serial key plus text columns.
func customerColumns() []fakeColumn {
	return []fakeColumn{
		{name: "id", dflt: "nextval('customers_id_seq'::regclass)"},
		{name: "company_name"},
		{name: "contact_name"},
		{name: "status", dflt: "'Lead'::character varying"},
		{name: "affiliate_partner"},
		{name: "next_step"},
		{name: "assigned_executive"},
	}
}

func (f *fakeDB) createTable(name string, columns ...fakeColumn) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables[name] = &fakeTable{columns: columns, pk: "id"}
}

// seed stores rows verbatim and moves the sequence past the largest key.
func (f *fakeDB) seed(table string, rows ...dbconn.Row) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.tables[table]
	for _, r := range rows {
		t.rows = append(t.rows, copyRow(r))
		if id, ok := Normalize(r[t.pk]).(int64); ok && id > t.seq {
			t.seq = id
		}
	}
}

func (f *fakeDB) rows(table string) []dbconn.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tables[table]
	if !ok {
		return nil
	}
	out := make([]dbconn.Row, len(t.rows))
	for i, r := range t.rows {
		out[i] = copyRow(r)
	}
	return out
}

func (f *fakeDB) row(table, id string) (dbconn.Row, bool) {
	for _, r := range f.rows(table) {
		if recordKey(r["id"]) == id {
			return r, true
		}
	}
	return nil, false
}

func (f *fakeDB) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.statements...)
}

func (f *fakeDB) Schema() string { return "" }

func (f *fakeDB) Close() error { return nil }

func (f *fakeDB) Query(_ context.Context, query string, args ...interface{}) ([]dbconn.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(query); err != nil {
		return nil, err
	}

	switch {
	case query == tableExistsSQL:
		if _, ok := f.tables[args[0].(string)]; ok {
			return []dbconn.Row{{"table_name": args[0]}}, nil
		}
		return []dbconn.Row{}, nil

	case query == columnsSQL:
		t, ok := f.tables[args[0].(string)]
		if !ok {
			return []dbconn.Row{}, nil
		}
		out := make([]dbconn.Row, 0, len(t.columns))
		for _, c := range t.columns {
			row := dbconn.Row{"column_name": c.name, "is_identity": "NO", "is_generated": "NEVER", "column_default": nil}
			if c.dflt != "" {
				row["column_default"] = c.dflt
			}
			if c.identity {
				row["is_identity"], row["identity_generation"] = "YES", "BY DEFAULT"
			}
			out = append(out, row)
		}
		return out, nil

	case query == advanceSequenceSQL:
		t, err := f.table(args[1])
		if err != nil {
			return nil, err
		}
		for _, r := range t.rows {
			if id, ok := Normalize(r[t.pk]).(int64); ok && id > t.seq {
				t.seq = id
			}
		}
		return []dbconn.Row{{"value": t.seq}}, nil

	case strings.HasPrefix(query, "SELECT "):
		return f.selectRows(query, args)
	}
	return nil, fmt.Errorf("%s: unsupported query %q", f.name, query)
}

func (f *fakeDB) Exec(_ context.Context, query string, args ...interface{}) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(query); err != nil {
		return 0, err
	}

	switch {
	case query == truncateSQL:
		t, err := f.table(args[0])
		if err != nil {
			return 0, err
		}
		n := int64(len(t.rows))
		t.rows, t.seq = nil, 0
		f.cascadeTruncate(identName(args[0]))
		return n, nil

	case strings.HasPrefix(query, "INSERT INTO "):
		return f.insert(query, args)
	}
	return 0, fmt.Errorf("%s: unsupported statement %q", f.name, query)
}

func (f *fakeDB) cascadeTruncate(parent string) {
	for _, child := range f.referencedBy[parent] {
		if t, ok := f.tables[child]; ok {
			t.rows, t.seq = nil, 0
		}
		f.cascadeTruncate(child)
	}
}

func (f *fakeDB) record(query string) error {
	f.statements = append(f.statements, query)
	for key, err := range f.failQuery {
		if strings.Contains(query, key) {
			return err
		}
	}
	return nil
}

func (f *fakeDB) table(arg interface{}) (*fakeTable, error) {
	name := identName(arg)
	t, ok := f.tables[name]
	if !ok {
		return nil, fmt.Errorf("%s: relation %q does not exist", f.name, name)
	}
	return t, nil
}

// selectRows handles SELECT * and SELECT <columns>, both ending in FROM ? ORDER BY ?.
func (f *fakeDB) selectRows(query string, args []interface{}) ([]dbconn.Row, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("%s: unsupported query %q", f.name, query)
	}
	t, err := f.table(args[len(args)-2])
	if err != nil {
		return nil, err
	}
	orderBy := identName(args[len(args)-1])

	var columns []string
	if !strings.HasPrefix(query, "SELECT * ") {
		for _, a := range args[:len(args)-2] {
			name := identName(a)
			if !t.hasColumn(name) {
				return nil, fmt.Errorf("%s: column %q does not exist", f.name, name)
			}
			columns = append(columns, name)
		}
	}

	out := make([]dbconn.Row, 0, len(t.rows))
	for _, r := range t.rows {
		if columns == nil {
			out = append(out, copyRow(r))
			continue
		}
		row := make(dbconn.Row, len(columns))
		for _, c := range columns {
			row[c] = r[c]
		}
		out = append(out, row)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, _ := Normalize(out[i][orderBy]).(int64)
		b, _ := Normalize(out[j][orderBy]).(int64)
		return a < b
	})
	return out, nil
}

// insert handles INSERT and the ON CONFLICT upsert. Arguments are the table ident, one ident
// per column and then one value per column.
func (f *fakeDB) insert(query string, args []interface{}) (int64, error) {
	t, err := f.table(args[0])
	if err != nil {
		return 0, err
	}

	var columns []string
	for _, a := range args[1:] {
		if _, ok := a.(bun.Ident); !ok {
			break
		}
		columns = append(columns, identName(a))
	}
	if len(args) < 1+2*len(columns) {
		return 0, fmt.Errorf("%s: malformed insert", f.name)
	}
	values := args[1+len(columns) : 1+2*len(columns)]

	row := make(dbconn.Row, len(t.columns))
	for _, c := range t.columns {
		row[c.name] = nil
	}
	for i, c := range columns {
		if !t.hasColumn(c) {
			return 0, fmt.Errorf("%s: column %q does not exist", f.name, c)
		}
		row[c] = values[i]
	}
	if _, ok := indexOf(columns, t.pk); !ok {
		t.seq++
		row[t.pk] = t.seq
	}
	if f.failInsert != nil {
		if err := f.failInsert(identName(args[0]), row); err != nil {
			return 0, err
		}
	}

	key := recordKey(row[t.pk])
	for i, existing := range t.rows {
		if recordKey(existing[t.pk]) != key {
			continue
		}
		if !strings.Contains(query, "ON CONFLICT") {
			return 0, fmt.Errorf("%s: duplicate key value %s", f.name, key)
		}
		if strings.Contains(query, "DO NOTHING") {
			return 0, nil
		}
		for _, c := range columns {
			existing[c] = row[c]
		}
		t.rows[i] = existing
		return 1, nil
	}
	t.rows = append(t.rows, row)
	return 1, nil
}

func (t *fakeTable) hasColumn(name string) bool {
	for _, c := range t.columns {
		if c.name == name {
			return true
		}
	}
	return false
}

func identName(v interface{}) string {
	if id, ok := v.(bun.Ident); ok {
		return string(id)
	}
	return fmt.Sprint(v)
}

func indexOf(list []string, s string) (int, bool) {
	for i, v := range list {
		if v == s {
			return i, true
		}
	}
	return -1, false
}

func copyRow(r dbconn.Row) dbconn.Row {
	out := make(dbconn.Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// customer builds a customers row.
func customer(id int64, company, status string) dbconn.Row {
	return dbconn.Row{
		"id":                 id,
		"company_name":       company,
		"contact_name":       "Contact " + company,
		"status":             status,
		"affiliate_partner":  nil,
		"next_step":          nil,
		"assigned_executive": nil,
	}
}

// note builds a customer_notes row.
func note(id, customerID int64, content string) dbconn.Row {
	return dbconn.Row{"id": id, "customer_id": customerID, "content": content}
}

// customersOnly is a registry tracking just the customers table, critically.
func customersOnly() *Registry {
	r, err := NewRegistry(DefaultTables()[:1], []string{"customers"})
	if err != nil {
		panic(err)
	}
	return r
}
