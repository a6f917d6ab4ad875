package export

import (
	"context"
	"fmt"
	"io"

	db "github.com/KazanKK/mariadump/database"
)

// dataEmitter writes batched multi-row INSERT statements.
type dataEmitter struct {
	conn     db.Connection
	cfg      RunConfig
	failures []ObjectError
	rows     int64
	log      logger
}

// writeData writes the data section for tables in the given order.
func (e *dataEmitter) writeData(ctx context.Context, out io.Writer, tables []string) error {
	w := &sqlWriter{w: out}
	writeBanner(w, "Data", e.cfg)
	w.write("SET FOREIGN_KEY_CHECKS=0;\n")
	w.write("START TRANSACTION;\n\n")

	for _, table := range tables {
		if w.err != nil {
			break
		}
		w.printf("-- Data for table %s\n", table)
		n, err := e.writeTable(ctx, w, table)
		e.rows += n
		if w.err != nil {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			oe := ObjectError{Kind: db.KindTable, Name: table, Err: err}
			e.failures = append(e.failures, oe)
			e.log.Warnf("Could not export data for table %s: %v", table, err)
			w.write(errorComment(fmt.Sprintf("could not export data for table %s: %v", table, err)))
		}
		w.write("\n")
	}

	w.write("COMMIT;\n")
	w.write("SET FOREIGN_KEY_CHECKS=1;\n")
	return w.err
}

// writeTable exports one table and returns the number of rows written.
// Write errors are left on w; the returned error is a read failure.
func (e *dataEmitter) writeTable(ctx context.Context, w *sqlWriter, table string) (int64, error) {
	total, err := e.conn.CountRows(ctx, table)
	if err != nil {
		return 0, err
	}
	if total == 0 {
		e.log.Infof("Table %s is empty, skipped", table)
		w.printf("-- Table %s is empty\n", table)
		return 0, nil
	}

	all, err := e.conn.ListColumns(ctx, table)
	if err != nil {
		return 0, err
	}
	columns := db.InsertableColumns(all)
	if len(columns) == 0 {
		w.printf("-- Table %s has no insertable columns\n", table)
		return 0, nil
	}
	names := db.ColumnNames(columns)
	header := fmt.Sprintf("INSERT INTO %s (%s) VALUES\n", db.QuoteIdent(table), db.QuoteIdents(names))

	q := db.PageQuery{Table: table, Columns: names, Limit: int64(e.cfg.BatchSize)}
	keyIdx := primaryKeyIndexes(all, columns)
	if keyIdx != nil {
		for _, i := range keyIdx {
			q.OrderBy = append(q.OrderBy, names[i])
		}
	}
	keyset := e.cfg.Paging == PagingKeyset && keyIdx != nil
	if keyset {
		for _, i := range keyIdx {
			if !db.KeysetOrderable(columns[i].DataType) {
				e.log.Debugf("Table %s key column %s is %s, using offset paging", table, columns[i].Name, columns[i].DataType)
				keyset = false
				break
			}
		}
	}

	batches := (total + q.Limit - 1) / q.Limit
	var written int64
	batch := int64(0)
	for offset := int64(0); offset < total; offset += q.Limit {
		batch++
		e.log.Debugf("Table %s batch %d/%d (offset %d)", table, batch, batches, offset)
		q.Offset = offset
		page, err := e.conn.FetchRows(ctx, q)
		if err != nil {
			return written, err
		}
		if len(page) == 0 {
			if keyset {
				break
			}
			continue
		}
		w.write(header)
		for i, row := range page {
			w.write(db.EncodeRow(row))
			if i < len(page)-1 {
				w.write(",\n")
			}
		}
		w.write(";\n")
		if w.err != nil {
			return written, nil
		}
		written += int64(len(page))

		if keyset {
			last := page[len(page)-1]
			q.After = make([]db.Value, len(keyIdx))
			for i, idx := range keyIdx {
				q.After[i] = last[idx]
			}
		}
	}
	e.log.Infof("Exported %d rows from table %s", written, table)
	return written, nil
}

// primaryKeyIndexes returns the positions of the primary key columns within
// the selected columns, or nil when the table has no primary key or part of
// it is not selectable.
func primaryKeyIndexes(all, selected []db.Column) []int {
	pos := make(map[string]int, len(selected))
	for i, col := range selected {
		pos[col.Name] = i
	}
	var idx []int
	for _, col := range all {
		if !col.IsPrimaryKey {
			continue
		}
		i, ok := pos[col.Name]
		if !ok {
			return nil
		}
		idx = append(idx, i)
	}
	return idx
}
