package export

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	db "github.com/KazanKK/mariadump/database"
)

const (
	routineDelimiter = "$$"
	noticeRule       = "-- ======================================================================"
)

var autoIncrementOption = regexp.MustCompile(`\s+AUTO_INCREMENT=\d+`)

// StripAutoIncrement removes the AUTO_INCREMENT=<n> table option. Only the
// table options line after the closing parenthesis is touched, and quoted
// literals on it (COMMENT='...') are left alone.
func StripAutoIncrement(create string) string {
	start := strings.LastIndex(create, "\n)") + 1
	end := len(create)
	if i := strings.IndexByte(create[start:], '\n'); i >= 0 {
		end = start + i
	}
	return create[:start] + stripOutsideQuotes(create[start:end]) + create[end:]
}

func stripOutsideQuotes(line string) string {
	var sb strings.Builder
	plain := 0
	for i := 0; i < len(line); i++ {
		if line[i] != '\'' {
			continue
		}
		sb.WriteString(autoIncrementOption.ReplaceAllString(line[plain:i], ""))
		j := i + 1
		for j < len(line) {
			if line[j] == '\\' {
				j += 2
				continue
			}
			if line[j] == '\'' {
				if j+1 < len(line) && line[j+1] == '\'' {
					j += 2
					continue
				}
				break
			}
			j++
		}
		if j >= len(line) {
			j = len(line) - 1
		}
		sb.WriteString(line[i : j+1])
		i = j
		plain = j + 1
	}
	sb.WriteString(autoIncrementOption.ReplaceAllString(line[plain:], ""))
	return sb.String()
}

// ObjectError records an object that could not be exported.
type ObjectError struct {
	Kind db.ObjectKind
	Name string
	Err  error
}

func (e ObjectError) Error() string {
	return fmt.Sprintf("could not export %s %s: %v", e.Kind, e.Name, e.Err)
}

// errorComment renders a failure as a single SQL comment line.
func errorComment(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	return "-- ERROR: " + text + "\n"
}

// sqlWriter tracks the first write error so emitters can write freely and
// check once.
type sqlWriter struct {
	w   io.Writer
	err error
}

func (s *sqlWriter) printf(format string, args ...any) {
	if s.err != nil {
		return
	}
	_, s.err = fmt.Fprintf(s.w, format, args...)
}

func (s *sqlWriter) write(text string) {
	if s.err != nil {
		return
	}
	_, s.err = io.WriteString(s.w, text)
}

func writeBanner(w *sqlWriter, title string, cfg RunConfig) {
	w.printf("-- MariaDB Database %s Export\n", title)
	w.printf("-- Database: %s\n", cfg.Schema)
	w.printf("-- Generated: %s\n\n", cfg.Timestamp.Format("2006-01-02 15:04:05"))
	w.write("SET NAMES utf8mb4;\n")
}

// structureEmitter writes DROP/CREATE pairs for every object kind.
type structureEmitter struct {
	conn     db.Connection
	cfg      RunConfig
	failures []ObjectError
	log      logger
}

func (e *structureEmitter) fail(kind db.ObjectKind, name string, w *sqlWriter, err error) {
	oe := ObjectError{Kind: kind, Name: name, Err: err}
	e.failures = append(e.failures, oe)
	e.log.Warnf("%v", oe)
	w.write(errorComment(oe.Error()))
}

// writeTables writes the table structure section.
func (e *structureEmitter) writeTables(ctx context.Context, out io.Writer, tables []string) error {
	w := &sqlWriter{w: out}
	writeBanner(w, "Structure", e.cfg)
	w.write("SET FOREIGN_KEY_CHECKS=0;\n\n")

	if len(tables) == 0 {
		w.write("-- No tables found\n\n")
	}
	for _, table := range tables {
		if w.err != nil {
			break
		}
		e.log.Infof("Exporting structure of table %s", table)
		create, err := e.conn.ShowCreate(ctx, db.KindTable, table)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.fail(db.KindTable, table, w, err)
			w.write("\n")
			continue
		}
		if e.cfg.StripAutoIncrement {
			create = StripAutoIncrement(create)
		}
		w.printf("-- Structure for table %s\n", table)
		w.printf("DROP TABLE IF EXISTS %s;\n", db.QuoteIdent(table))
		w.printf("%s;\n\n", create)
	}

	w.write("SET FOREIGN_KEY_CHECKS=1;\n")
	return w.err
}

func (e *structureEmitter) writeViews(ctx context.Context, out io.Writer, views []string, listErr error) error {
	w := &sqlWriter{w: out}
	writeBanner(w, "Views", e.cfg)
	w.write("\n")
	if listErr != nil {
		w.write(errorComment("could not list views: " + listErr.Error()))
		return w.err
	}
	if len(views) == 0 {
		w.write("-- No views found\n")
		return w.err
	}
	var defs []viewDef
	for _, view := range views {
		if w.err != nil {
			break
		}
		e.log.Infof("Exporting view %s", view)
		create, err := e.conn.ShowCreate(ctx, db.KindView, view)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.fail(db.KindView, view, w, err)
			w.write("\n")
			continue
		}
		defs = append(defs, viewDef{name: view, create: create})
	}
	for _, def := range orderViews(defs) {
		w.printf("-- View: %s\n", def.name)
		w.printf("DROP VIEW IF EXISTS %s;\n", db.QuoteIdent(def.name))
		w.printf("%s;\n\n", def.create)
	}
	return w.err
}

type viewDef struct {
	name   string
	create string
}

// orderViews puts every view after the views its definition references, so
// the script replays top to bottom. Independent views keep their order and a
// reference cycle is broken at the first remaining view.
func orderViews(defs []viewDef) []viewDef {
	deps := make([][]int, len(defs))
	for i, def := range defs {
		for j, other := range defs {
			if i != j && strings.Contains(def.create, db.QuoteIdent(other.name)) {
				deps[i] = append(deps[i], j)
			}
		}
	}
	done := make([]bool, len(defs))
	out := make([]viewDef, 0, len(defs))
	for len(out) < len(defs) {
		next := -1
		for i := range defs {
			if done[i] {
				continue
			}
			if next < 0 {
				next = i
			}
			ready := true
			for _, j := range deps[i] {
				if !done[j] {
					ready = false
					break
				}
			}
			if ready {
				next = i
				break
			}
		}
		done[next] = true
		out = append(out, defs[next])
	}
	return out
}

// routineGroup is one kind of delimiter-wrapped object with its listing.
type routineGroup struct {
	kind    db.ObjectKind
	names   []string
	listErr error
}

func (e *structureEmitter) writeRoutines(ctx context.Context, out io.Writer, title, plural string, groups []routineGroup) error {
	w := &sqlWriter{w: out}
	writeBanner(w, title, e.cfg)
	w.write("\n")

	wrote := false
	for _, g := range groups {
		if g.listErr != nil {
			wrote = true
			w.write(errorComment(fmt.Sprintf("could not list %ss: %v", g.kind, g.listErr)))
			continue
		}
		for _, name := range g.names {
			wrote = true
			if w.err != nil {
				return w.err
			}
			e.log.Infof("Exporting %s %s", g.kind, name)
			create, err := e.conn.ShowCreate(ctx, g.kind, name)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				e.fail(g.kind, name, w, err)
				w.write("\n")
				continue
			}
			keyword := g.kind.Keyword()
			w.printf("-- %s: %s\n", g.kind.Title(), name)
			w.printf("DROP %s IF EXISTS %s;\n", keyword, db.QuoteIdent(name))
			w.printf("DELIMITER %s\n", routineDelimiter)
			w.printf("%s%s\n", create, routineDelimiter)
			w.write("DELIMITER ;\n\n")
		}
	}
	if !wrote {
		w.printf("-- No %s found\n", plural)
	}
	return w.err
}
