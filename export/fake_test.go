package export

import (
	"context"
	"fmt"
	"sync"

	db "github.com/KazanKK/mariadump/database"
)

type fakeTable struct {
	create   string
	columns  []db.Column
	rows     [][]db.Value // in primary key order, one value per column
	countErr error
	fetchErr error
}

// fakeConn is an in-memory schema.
type fakeConn struct {
	mu sync.Mutex

	tableOrder []string
	tables     map[string]*fakeTable
	views      []string
	procs      []string
	funcs      []string
	triggers   []string
	creates    map[string]string // "<kind>/<name>" for non-table objects
	showErr    map[string]error
	listErr    map[string]error

	queries []db.PageQuery
	closed  int
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		tables:  make(map[string]*fakeTable),
		creates: make(map[string]string),
		showErr: make(map[string]error),
		listErr: make(map[string]error),
	}
}

func (f *fakeConn) addTable(name string, t *fakeTable) {
	f.tableOrder = append(f.tableOrder, name)
	f.tables[name] = t
}

func (f *fakeConn) addObject(kind db.ObjectKind, name, create string) {
	switch kind {
	case db.KindView:
		f.views = append(f.views, name)
	case db.KindProcedure:
		f.procs = append(f.procs, name)
	case db.KindFunction:
		f.funcs = append(f.funcs, name)
	case db.KindTrigger:
		f.triggers = append(f.triggers, name)
	}
	f.creates[string(kind)+"/"+name] = create
}

func (f *fakeConn) connector() db.Connector {
	return func(context.Context, db.ConnParams) (db.Connection, error) {
		return f, nil
	}
}

func (f *fakeConn) list(what string, names []string) ([]string, error) {
	if err := f.listErr[what]; err != nil {
		return nil, err
	}
	return names, nil
}

func (f *fakeConn) ListTables(context.Context) ([]string, error) {
	return f.list("tables", f.tableOrder)
}
func (f *fakeConn) ListViews(context.Context) ([]string, error) { return f.list("views", f.views) }
func (f *fakeConn) ListProcedures(context.Context) ([]string, error) {
	return f.list("procedures", f.procs)
}
func (f *fakeConn) ListFunctions(context.Context) ([]string, error) {
	return f.list("functions", f.funcs)
}
func (f *fakeConn) ListTriggers(context.Context) ([]string, error) {
	return f.list("triggers", f.triggers)
}

func (f *fakeConn) ListColumns(_ context.Context, table string) ([]db.Column, error) {
	t, ok := f.tables[table]
	if !ok {
		return nil, fmt.Errorf("table %s not found", table)
	}
	return t.columns, nil
}

func (f *fakeConn) ShowCreate(_ context.Context, kind db.ObjectKind, name string) (string, error) {
	key := string(kind) + "/" + name
	if err := f.showErr[key]; err != nil {
		return "", err
	}
	if kind == db.KindTable {
		if t, ok := f.tables[name]; ok {
			return t.create, nil
		}
	} else if c, ok := f.creates[key]; ok {
		return c, nil
	}
	return "", fmt.Errorf("%s %s not found", kind, name)
}

func (f *fakeConn) CountRows(_ context.Context, table string) (int64, error) {
	t, ok := f.tables[table]
	if !ok {
		return 0, fmt.Errorf("table %s not found", table)
	}
	if t.countErr != nil {
		return 0, t.countErr
	}
	return int64(len(t.rows)), nil
}

// FetchRows serves offset pages by position and keyset pages by locating the
// row whose key encodes like After.
func (f *fakeConn) FetchRows(_ context.Context, q db.PageQuery) ([][]db.Value, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()

	t, ok := f.tables[q.Table]
	if !ok {
		return nil, fmt.Errorf("table %s not found", q.Table)
	}
	if t.fetchErr != nil {
		return nil, t.fetchErr
	}
	pos := make(map[string]int, len(t.columns))
	for i, c := range t.columns {
		pos[c.Name] = i
	}

	start := int(q.Offset)
	if len(q.After) > 0 {
		after := db.EncodeRow(q.After)
		start = len(t.rows)
		for i, row := range t.rows {
			key := make([]db.Value, len(q.OrderBy))
			for k, name := range q.OrderBy {
				key[k] = row[pos[name]]
			}
			if db.EncodeRow(key) == after {
				start = i + 1
				break
			}
		}
	}
	if start > len(t.rows) {
		start = len(t.rows)
	}
	end := start + int(q.Limit)
	if end > len(t.rows) {
		end = len(t.rows)
	}

	var page [][]db.Value
	for _, row := range t.rows[start:end] {
		out := make([]db.Value, len(q.Columns))
		for i, name := range q.Columns {
			out[i] = row[pos[name]]
		}
		page = append(page, out)
	}
	return page, nil
}

func (f *fakeConn) ServerVersion(context.Context) (string, error) { return "10.11.6-MariaDB", nil }

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

// idTable builds a table with an integer primary key and a text column.
func idTable(name string, n int) *fakeTable {
	t := &fakeTable{
		create: fmt.Sprintf("CREATE TABLE `%s` (\n  `id` int NOT NULL AUTO_INCREMENT,\n  `label` varchar(64) DEFAULT NULL,\n  PRIMARY KEY (`id`)\n) ENGINE=InnoDB AUTO_INCREMENT=%d DEFAULT CHARSET=utf8mb4", name, n+1),
		columns: []db.Column{
			{Name: "id", OrdinalPosition: 1, IsPrimaryKey: true, DataType: "int"},
			{Name: "label", OrdinalPosition: 2, DataType: "varchar"},
		},
	}
	for i := 1; i <= n; i++ {
		t.rows = append(t.rows, []db.Value{db.IntValue(int64(i)), db.TextValue(fmt.Sprintf("row %d", i))})
	}
	return t
}
