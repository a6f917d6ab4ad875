package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	log "github.com/sirupsen/logrus"
)

// MySQLManager implements Connection for MariaDB and MySQL.
type MySQLManager struct {
	DB     *sql.DB
	schema string
}

// Connect opens and verifies a connection to the schema in params.
func Connect(ctx context.Context, params ConnParams) (Connection, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid connection parameters: %w", err)
	}
	dsn, err := params.DSN()
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening connection to %s: %w", params, err)
	}
	// One connection, one query in flight.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to %s: %w", params, err)
	}
	log.Infof("Connected to %s", params)
	return newMySQLManager(db, params.Database), nil
}

func newMySQLManager(db *sql.DB, schema string) *MySQLManager {
	return &MySQLManager{DB: db, schema: schema}
}

func (m *MySQLManager) Close() error {
	if m.DB == nil {
		return nil
	}
	err := m.DB.Close()
	m.DB = nil
	return err
}

func (m *MySQLManager) ServerVersion(ctx context.Context) (string, error) {
	var version string
	if err := m.DB.QueryRowContext(ctx, "SELECT VERSION()").Scan(&version); err != nil {
		return "", fmt.Errorf("querying server version: %w", err)
	}
	return version, nil
}

func (m *MySQLManager) ListTables(ctx context.Context) ([]string, error) {
	return m.listNames(ctx, "tables", `
		SELECT TABLE_NAME
		FROM information_schema.TABLES
		WHERE TABLE_SCHEMA = ?
		AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME`)
}

func (m *MySQLManager) ListViews(ctx context.Context) ([]string, error) {
	return m.listNames(ctx, "views", `
		SELECT TABLE_NAME
		FROM information_schema.TABLES
		WHERE TABLE_SCHEMA = ?
		AND TABLE_TYPE = 'VIEW'
		ORDER BY TABLE_NAME`)
}

func (m *MySQLManager) ListProcedures(ctx context.Context) ([]string, error) {
	return m.listNames(ctx, "procedures", `
		SELECT ROUTINE_NAME
		FROM information_schema.ROUTINES
		WHERE ROUTINE_SCHEMA = ?
		AND ROUTINE_TYPE = 'PROCEDURE'
		ORDER BY ROUTINE_NAME`)
}

func (m *MySQLManager) ListFunctions(ctx context.Context) ([]string, error) {
	return m.listNames(ctx, "functions", `
		SELECT ROUTINE_NAME
		FROM information_schema.ROUTINES
		WHERE ROUTINE_SCHEMA = ?
		AND ROUTINE_TYPE = 'FUNCTION'
		ORDER BY ROUTINE_NAME`)
}

// ListTriggers orders by table and action order so FOLLOWS/PRECEDES
// references resolve on replay.
func (m *MySQLManager) ListTriggers(ctx context.Context) ([]string, error) {
	return m.listNames(ctx, "triggers", `
		SELECT TRIGGER_NAME
		FROM information_schema.TRIGGERS
		WHERE TRIGGER_SCHEMA = ?
		ORDER BY EVENT_OBJECT_TABLE, ACTION_ORDER, TRIGGER_NAME`)
}

func (m *MySQLManager) listNames(ctx context.Context, what, query string) ([]string, error) {
	if m.DB == nil {
		return nil, errors.New("no database connection")
	}
	rows, err := m.DB.QueryContext(ctx, query, m.schema)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", what, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", what, err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", what, err)
	}
	log.Debugf("Found %d %s in %s", len(names), what, m.schema)
	return names, nil
}

func (m *MySQLManager) ListColumns(ctx context.Context, table string) ([]Column, error) {
	if m.DB == nil {
		return nil, errors.New("no database connection")
	}
	rows, err := m.DB.QueryContext(ctx, `
		SELECT COLUMN_NAME, ORDINAL_POSITION, DATA_TYPE, COLUMN_KEY, EXTRA
		FROM information_schema.COLUMNS
		WHERE TABLE_SCHEMA = ?
		AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION`, m.schema, table)
	if err != nil {
		return nil, fmt.Errorf("querying columns for table %s: %w", table, err)
	}
	defer rows.Close()

	var columns []Column
	for rows.Next() {
		var col Column
		var dataType, columnKey, extra sql.NullString
		if err := rows.Scan(&col.Name, &col.OrdinalPosition, &dataType, &columnKey, &extra); err != nil {
			return nil, fmt.Errorf("scanning column info for table %s: %w", table, err)
		}
		col.DataType = strings.ToLower(dataType.String)
		col.IsPrimaryKey = columnKey.String == "PRI"
		col.IsGenerated = IsGeneratedExtra(extra.String)
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading columns for table %s: %w", table, err)
	}
	return columns, nil
}

// ShowCreate returns the server's canonical create statement for an object.
func (m *MySQLManager) ShowCreate(ctx context.Context, kind ObjectKind, name string) (string, error) {
	if m.DB == nil {
		return "", errors.New("no database connection")
	}
	want := kind.createColumn()
	if want == "" {
		return "", fmt.Errorf("unsupported object kind %q", kind)
	}
	query := fmt.Sprintf("SHOW CREATE %s %s", kind.Keyword(), QuoteIdent(name))
	rows, err := m.DB.QueryContext(ctx, query)
	if err != nil {
		return "", fmt.Errorf("running %s: %w", query, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return "", fmt.Errorf("reading columns of %s: %w", query, err)
	}
	idx := -1
	for i, c := range cols {
		if strings.EqualFold(c, want) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return "", fmt.Errorf("%s returned no %q column", query, want)
	}
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return "", fmt.Errorf("reading %s: %w", query, err)
		}
		return "", fmt.Errorf("%s %s not found", kind, name)
	}

	dest := make([]any, len(cols))
	var create sql.NullString
	for i := range dest {
		if i == idx {
			dest[i] = &create
		} else {
			dest[i] = new(sql.RawBytes)
		}
	}
	if err := rows.Scan(dest...); err != nil {
		return "", fmt.Errorf("scanning %s: %w", query, err)
	}
	if !create.Valid {
		return "", fmt.Errorf("definition of %s %s is not visible (missing privileges?)", kind, name)
	}
	return create.String, nil
}

func (m *MySQLManager) CountRows(ctx context.Context, table string) (int64, error) {
	if m.DB == nil {
		return 0, errors.New("no database connection")
	}
	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", QuoteIdent(table))
	if err := m.DB.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting rows of %s: %w", table, err)
	}
	return count, nil
}

// FetchRows reads one page and decodes each value by its column type.
func (m *MySQLManager) FetchRows(ctx context.Context, q PageQuery) ([][]Value, error) {
	if m.DB == nil {
		return nil, errors.New("no database connection")
	}
	query := BuildPageQuery(q)
	log.Tracef("Fetching page: %s", query)
	rows, err := m.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying rows of %s: %w", q.Table, err)
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("reading column types of %s: %w", q.Table, err)
	}
	raw := make([]any, len(types))
	ptrs := make([]any, len(types))
	for i := range raw {
		ptrs[i] = &raw[i]
	}

	var page [][]Value
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row of %s: %w", q.Table, err)
		}
		row := make([]Value, len(raw))
		for i, v := range raw {
			row[i] = Decode(types[i].DatabaseTypeName(), v)
		}
		page = append(page, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading rows of %s: %w", q.Table, err)
	}
	return page, nil
}

// BuildPageQuery renders the SELECT for a page. Keyset values are written
// as literals through Encode.
func BuildPageQuery(q PageQuery) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s", QuoteIdents(q.Columns), QuoteIdent(q.Table))
	keyset := len(q.After) > 0 && len(q.After) == len(q.OrderBy)
	if keyset {
		fmt.Fprintf(&sb, " WHERE (%s) > %s", QuoteIdents(q.OrderBy), EncodeRow(q.After))
	}
	if len(q.OrderBy) > 0 {
		fmt.Fprintf(&sb, " ORDER BY %s", QuoteIdents(q.OrderBy))
	}
	fmt.Fprintf(&sb, " LIMIT %d", q.Limit)
	if !keyset && q.Offset > 0 {
		fmt.Fprintf(&sb, " OFFSET %d", q.Offset)
	}
	return sb.String()
}
