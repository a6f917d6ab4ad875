package db

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"
)

// Catalog lists the objects of the connected schema.
type Catalog interface {
	ListTables(ctx context.Context) ([]string, error)
	ListViews(ctx context.Context) ([]string, error)
	ListProcedures(ctx context.Context) ([]string, error)
	ListFunctions(ctx context.Context) ([]string, error)
	ListTriggers(ctx context.Context) ([]string, error)
	ListColumns(ctx context.Context, table string) ([]Column, error)
}

// Connection is a live handle to one schema.
type Connection interface {
	Catalog
	ShowCreate(ctx context.Context, kind ObjectKind, name string) (string, error)
	CountRows(ctx context.Context, table string) (int64, error)
	FetchRows(ctx context.Context, q PageQuery) ([][]Value, error)
	ServerVersion(ctx context.Context) (string, error)
	Close() error
}

// Connector opens a Connection. Connect is the production implementation.
type Connector func(ctx context.Context, params ConnParams) (Connection, error)

// PageQuery selects one bounded page of a table.
type PageQuery struct {
	Table   string
	Columns []string
	// OrderBy lists the primary key columns, empty for heap order.
	OrderBy []string
	// After holds the OrderBy values of the last row of the previous page
	// for keyset paging. Offset is ignored when it is set.
	After  []Value
	Limit  int64
	Offset int64
}

// ConnParams describes where and how to connect.
type ConnParams struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password,omitempty"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode,omitempty"`
	Charset  string `yaml:"charset,omitempty"`
}

const DefaultPort = 3306

// Validate checks the parameters needed to open a connection.
func (p ConnParams) Validate() error {
	if p.Host == "" {
		return fmt.Errorf("host is required")
	}
	if p.User == "" {
		return fmt.Errorf("user is required")
	}
	if p.Database == "" {
		return fmt.Errorf("database is required")
	}
	if p.Port < 0 || p.Port > 65535 {
		return fmt.Errorf("invalid port %d", p.Port)
	}
	if _, err := tlsParam(p.SSLMode); err != nil {
		return err
	}
	return nil
}

// sessionSQLMode keeps the server's sql_mode minus NO_BACKSLASH_ESCAPES.
// Keyset page queries inline key literals escaped with backslashes.
const sessionSQLMode = "(SELECT TRIM(BOTH ',' FROM REPLACE(CONCAT(',', @@SESSION.sql_mode, ','), ',NO_BACKSLASH_ESCAPES,', ',')))"

// DSN builds a go-sql-driver DSN for the parameters.
func (p ConnParams) DSN() (string, error) {
	tls, err := tlsParam(p.SSLMode)
	if err != nil {
		return "", err
	}
	port := p.Port
	if port == 0 {
		port = DefaultPort
	}
	charset := p.Charset
	if charset == "" {
		charset = "utf8mb4"
	}

	cfg := mysql.NewConfig()
	cfg.User = p.User
	cfg.Passwd = p.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(p.Host, strconv.Itoa(port))
	cfg.DBName = p.Database
	cfg.TLSConfig = tls
	cfg.Params = map[string]string{
		"charset":  charset,
		"sql_mode": sessionSQLMode,
	}
	return cfg.FormatDSN(), nil
}

// String describes the target without credentials.
func (p ConnParams) String() string {
	port := p.Port
	if port == 0 {
		port = DefaultPort
	}
	return fmt.Sprintf("%s@%s:%d/%s", p.User, p.Host, port, p.Database)
}

func tlsParam(sslMode string) (string, error) {
	switch sslMode {
	case "", "disable":
		return "false", nil
	case "prefer":
		return "preferred", nil
	case "require":
		return "skip-verify", nil
	}
	return "", fmt.Errorf("invalid ssl mode %q (want disable, prefer or require)", sslMode)
}
