package testutil

import (
	"database/sql"
	"fmt"
	"strings"
	"testing"

	_ "modernc.org/sqlite"
)

// Table is a fixture table; every column is created as TEXT.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]any
}

// Property is a property definition with its (value, label) options.
type Property struct {
	Name    string
	Options [][2]string
}

// NewSQLiteDB opens a private in-memory database closed when the test ends.
func NewSQLiteDB(t testing.TB) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

// CreateTable creates tbl and inserts its rows.
func CreateTable(t testing.TB, db *sql.DB, tbl Table) {
	t.Helper()
	defs := make([]string, len(tbl.Columns))
	marks := make([]string, len(tbl.Columns))
	for i, c := range tbl.Columns {
		defs[i] = c + " TEXT"
		marks[i] = "?"
	}
	mustExec(t, db, fmt.Sprintf("CREATE TABLE %s (%s)", tbl.Name, strings.Join(defs, ", ")))

	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		tbl.Name, strings.Join(tbl.Columns, ", "), strings.Join(marks, ", "))
	for _, row := range tbl.Rows {
		mustExec(t, db, insert, row...)
	}
}

// CreateProperties writes the property definition table and its option child
// table in the layout the loader produces.
func CreateProperties(t testing.TB, db *sql.DB, props []Property) {
	t.Helper()
	defs := Table{Name: "properties", Columns: []string{"_dlt_id", "name"}}
	opts := Table{Name: "properties__options", Columns: []string{"_dlt_parent_id", "value", "label"}}
	for i, p := range props {
		id := fmt.Sprintf("prop-%d", i+1)
		defs.Rows = append(defs.Rows, []any{id, p.Name})
		for _, o := range p.Options {
			opts.Rows = append(opts.Rows, []any{id, o[0], o[1]})
		}
	}
	CreateTable(t, db, defs)
	CreateTable(t, db, opts)
}

// SeedCRM loads a small companies/contacts/deals data set with labelled properties.
func SeedCRM(t testing.TB, db *sql.DB) {
	t.Helper()
	CreateTable(t, db, Table{
		Name:    "companies",
		Columns: []string{"id", "name", "industry", "domain"},
		Rows: [][]any{
			{"1", "Acme", "tech", "acme.io"},
			{"2", "Globex", "fin", "globex.com"},
			{"3", "Initech", "unknown", "initech.com"},
			{"4", "Umbrella", nil, "umbrella.com"},
		},
	})
	CreateTable(t, db, Table{
		Name:    "contacts",
		Columns: []string{"id", "email", "property_lifecyclestage"},
		Rows: [][]any{
			{"10", "ann@acme.io", "lead"},
			{"11", "bob@globex.com", "customer"},
		},
	})
	CreateTable(t, db, Table{
		Name:    "deals",
		Columns: []string{"id", "dealname", "amount", "dealtype"},
		Rows: [][]any{
			{"100", "Renewal", "1200", "existingbusiness"},
			{"101", "Pilot", "300", "newbusiness"},
		},
	})
	CreateProperties(t, db, []Property{
		{Name: "industry", Options: [][2]string{{"tech", "Technology"}, {"fin", "Finance"}}},
		{Name: "lifecyclestage", Options: [][2]string{{"lead", "Lead"}, {"customer", "Customer"}}},
		{Name: "dealtype", Options: [][2]string{{"newbusiness", "New Business"}, {"existingbusiness", "Existing Business"}}},
	})
}

// QueryStrings runs query and returns every row as column -> value, with
// NULL as a nil pointer.
func QueryStrings(t testing.TB, db *sql.DB, query string) []map[string]*string {
	t.Helper()
	rows, err := db.Query(query)
	if err != nil {
		t.Fatalf("query failed: %v\n%s", err, query)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		t.Fatalf("columns: %v", err)
	}

	var out []map[string]*string
	for rows.Next() {
		values := make([]sql.NullString, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			t.Fatalf("scan: %v", err)
		}
		row := make(map[string]*string, len(cols))
		for i, c := range cols {
			if values[i].Valid {
				v := values[i].String
				row[c] = &v
			} else {
				row[c] = nil
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows: %v", err)
	}
	return out
}

// Str is a helper for comparing against QueryStrings results.
func Str(s string) *string {
	return &s
}

func mustExec(t testing.TB, db *sql.DB, query string, args ...any) {
	t.Helper()
	if _, err := db.Exec(query, args...); err != nil {
		t.Fatalf("exec failed: %v\n%s", err, query)
	}
}
