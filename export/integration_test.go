//go:build integration

package export

import (
	"context"
	"database/sql"
	"net"
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	db "github.com/KazanKK/mariadump/database"
)

// Run with a scratch schema, for example:
//
//	MARIADUMP_TEST_DSN='root:secret@tcp(localhost:3306)/mariadump_test' go test -tags integration ./export/
func integrationParams(t *testing.T) (db.ConnParams, string) {
	t.Helper()
	dsn := os.Getenv("MARIADUMP_TEST_DSN")
	if dsn == "" {
		t.Skip("MARIADUMP_TEST_DSN not set")
	}
	cfg, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(cfg.Addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	cfg.MultiStatements = true
	return db.ConnParams{
		Host:     host,
		Port:     port,
		User:     cfg.User,
		Password: cfg.Passwd,
		Database: cfg.DBName,
	}, cfg.FormatDSN()
}

func setupSchema(t *testing.T, dsn string) {
	t.Helper()
	conn, err := sql.Open("mysql", dsn)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Exec(`
		DROP TRIGGER IF EXISTS orders_bi;
		DROP VIEW IF EXISTS big_orders;
		DROP PROCEDURE IF EXISTS clear_orders;
		DROP TABLE IF EXISTS orders;
		DROP TABLE IF EXISTS customers;
		CREATE TABLE customers (
			id INT NOT NULL AUTO_INCREMENT PRIMARY KEY,
			name VARCHAR(100) NOT NULL,
			avatar BLOB NULL
		);
		CREATE TABLE orders (
			id INT NOT NULL AUTO_INCREMENT PRIMARY KEY,
			customer_id INT NOT NULL,
			qty INT NOT NULL,
			price DECIMAL(10,2) NOT NULL,
			total DECIMAL(12,2) AS (qty * price) STORED,
			FOREIGN KEY (customer_id) REFERENCES customers(id)
		);
		INSERT INTO customers (name, avatar) VALUES ('O''Brien', x'DEAD'), ('line\nbreak', NULL), ('plain', x'');
		INSERT INTO orders (customer_id, qty, price) VALUES (1, 2, 9.99), (2, 1, 100.00), (1, 5, 0.50);
		CREATE VIEW big_orders AS SELECT id, total FROM orders WHERE total > 10;
		CREATE PROCEDURE clear_orders() BEGIN DELETE FROM orders; SELECT 1; END;
		CREATE TRIGGER orders_bi BEFORE INSERT ON orders FOR EACH ROW BEGIN SET NEW.qty = GREATEST(NEW.qty, 1); END;
	`)
	require.NoError(t, err)
}

func TestIntegration_FullExport(t *testing.T) {
	params, dsn := integrationParams(t)
	setupSchema(t, dsn)

	cfg := NewRunConfig(params.Database, t.TempDir(), ModeFull, 2)
	res, err := NewExporter(cfg, params, db.Connect).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Failures)
	assert.Equal(t, int64(6), res.Rows)
	assert.Len(t, res.Artifacts, 4)

	full := readArtifact(t, cfg, SectionStructure)
	assert.Contains(t, full, "DROP TABLE IF EXISTS `customers`;")
	assert.NotContains(t, full, "AUTO_INCREMENT=")
	assert.Contains(t, full, "-- DATA SECTION --")
	assert.Contains(t, full, "(1, 'O\\'Brien', 0xdead)")
	assert.Contains(t, full, "(2, 'line\\nbreak', NULL)")
	assert.Contains(t, full, "(3, 'plain', '')")
	assert.Contains(t, full, "INSERT INTO `orders` (`id`, `customer_id`, `qty`, `price`) VALUES")
	assert.Contains(t, full, "'9.99'")
	assert.Less(t, strings.Index(full, "CREATE TABLE"), strings.Index(full, "INSERT INTO"))

	assert.Contains(t, readArtifact(t, cfg, SectionViews), "DROP VIEW IF EXISTS `big_orders`;")
	routines := readArtifact(t, cfg, SectionRoutines)
	assert.Contains(t, routines, "DELIMITER $$")
	assert.Contains(t, routines, "DROP PROCEDURE IF EXISTS `clear_orders`;")
	assert.Contains(t, readArtifact(t, cfg, SectionTriggers), "DROP TRIGGER IF EXISTS `orders_bi`;")
}
