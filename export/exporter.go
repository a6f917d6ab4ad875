package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	db "github.com/KazanKK/mariadump/database"
)

type Mode string

const (
	ModeStructure Mode = "structure"
	ModeData      Mode = "data"
	ModeFull      Mode = "full"
)

// MergeStrategy selects how full mode puts the data section into the
// structure artifact.
type MergeStrategy string

const (
	// MergeAppend reopens the structure artifact and writes data into it.
	MergeAppend MergeStrategy = "append"
	// MergeCopy writes a separate data artifact, copies it over in chunks
	// and deletes it.
	MergeCopy MergeStrategy = "copy"
)

type Paging string

const (
	PagingOffset Paging = "offset"
	PagingKeyset Paging = "keyset"
)

// TimestampLayout is the run timestamp format used in artifact names.
const TimestampLayout = "20060102_150405"

// DataSectionSeparator sits between structure and data in full mode.
const DataSectionSeparator = "\n\n" + noticeRule + "\n-- DATA SECTION --\n" + noticeRule + "\n\n"

// RunConfig is fixed at the start of one export run.
type RunConfig struct {
	Schema             string
	OutputDir          string
	Mode               Mode
	BatchSize          int
	Timestamp          time.Time
	RunID              string
	IncludeViews       bool
	IncludeRoutines    bool
	IncludeTriggers    bool
	StripAutoIncrement bool
	Merge              MergeStrategy
	Paging             Paging
}

// NewRunConfig returns a config with the defaults of the export command and
// the timestamp and run ID fixed to now.
func NewRunConfig(schema, outputDir string, mode Mode, batchSize int) RunConfig {
	return RunConfig{
		Schema:             schema,
		OutputDir:          outputDir,
		Mode:               mode,
		BatchSize:          batchSize,
		Timestamp:          time.Now(),
		RunID:              uuid.NewString(),
		IncludeViews:       true,
		IncludeRoutines:    true,
		IncludeTriggers:    true,
		StripAutoIncrement: true,
		Merge:              MergeAppend,
		Paging:             PagingOffset,
	}
}

func (c RunConfig) Validate() error {
	switch c.Mode {
	case ModeStructure, ModeData, ModeFull:
	default:
		return fmt.Errorf("invalid export mode %q (want structure, data or full)", c.Mode)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch size must be at least 1, got %d", c.BatchSize)
	}
	if c.Schema == "" {
		return errors.New("schema name is required")
	}
	if c.OutputDir == "" {
		return errors.New("output directory is required")
	}
	if c.Timestamp.IsZero() {
		return errors.New("run timestamp is not set")
	}
	switch c.Merge {
	case MergeAppend, MergeCopy:
	default:
		return fmt.Errorf("invalid merge strategy %q (want append or copy)", c.Merge)
	}
	switch c.Paging {
	case PagingOffset, PagingKeyset:
	default:
		return fmt.Errorf("invalid paging %q (want offset or keyset)", c.Paging)
	}
	return nil
}

func (c RunConfig) artifactPath(section Section) string {
	return filepath.Join(c.OutputDir, ArtifactName(c.Schema, section, c.Timestamp.Format(TimestampLayout)))
}

func (c RunConfig) wantsTables() bool {
	return c.Mode == ModeStructure || c.Mode == ModeFull
}

func (c RunConfig) wantsData() bool {
	return c.Mode == ModeData || c.Mode == ModeFull
}

// Result describes a finished run.
type Result struct {
	Artifacts []string
	Failures  []ObjectError
	Tables    int
	Rows      int64
}

type logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

// Exporter runs one export: connect, write each enabled section, close.
type Exporter struct {
	cfg     RunConfig
	params  db.ConnParams
	connect db.Connector
	log     *log.Entry
}

func NewExporter(cfg RunConfig, params db.ConnParams, connect db.Connector) *Exporter {
	return &Exporter{
		cfg:     cfg,
		params:  params,
		connect: connect,
		log:     log.WithFields(log.Fields{"run": cfg.RunID, "schema": cfg.Schema}),
	}
}

// Run executes the export. Per-object failures are reported in the Result
// and do not fail the run.
func (x *Exporter) Run(ctx context.Context) (res *Result, err error) {
	if err := x.cfg.Validate(); err != nil {
		return nil, err
	}
	conn, err := x.connect(ctx, x.params)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			x.log.Warnf("Closing connection: %v", cerr)
		} else {
			x.log.Infof("Connection closed")
		}
	}()

	x.log.Infof("Starting %s export of %s (batch size %d)", x.cfg.Mode, x.cfg.Schema, x.cfg.BatchSize)
	res = &Result{}
	structure := &structureEmitter{conn: conn, cfg: x.cfg, log: x.log}
	data := &dataEmitter{conn: conn, cfg: x.cfg, log: x.log}
	defer func() {
		res.Failures = append(structure.failures, data.failures...)
		res.Rows = data.rows
	}()

	if x.cfg.wantsTables() || x.cfg.wantsData() {
		tables, err := conn.ListTables(ctx)
		if err != nil {
			return res, fmt.Errorf("listing tables: %w", err)
		}
		res.Tables = len(tables)
		if err := x.exportTables(ctx, res, structure, data, tables); err != nil {
			return res, err
		}
	}

	if x.cfg.IncludeViews {
		views, listErr := conn.ListViews(ctx)
		x.warnList("views", listErr)
		err := x.writeArtifact(res, SectionViews, func(w io.Writer) error {
			return structure.writeViews(ctx, w, views, listErr)
		})
		if err != nil {
			return res, err
		}
	}

	if x.cfg.IncludeRoutines {
		procs, procErr := conn.ListProcedures(ctx)
		x.warnList("procedures", procErr)
		funcs, funcErr := conn.ListFunctions(ctx)
		x.warnList("functions", funcErr)
		groups := []routineGroup{
			{kind: db.KindProcedure, names: procs, listErr: procErr},
			{kind: db.KindFunction, names: funcs, listErr: funcErr},
		}
		err := x.writeArtifact(res, SectionRoutines, func(w io.Writer) error {
			return structure.writeRoutines(ctx, w, "Routines", "routines", groups)
		})
		if err != nil {
			return res, err
		}
	}

	if x.cfg.IncludeTriggers {
		triggers, listErr := conn.ListTriggers(ctx)
		x.warnList("triggers", listErr)
		groups := []routineGroup{{kind: db.KindTrigger, names: triggers, listErr: listErr}}
		err := x.writeArtifact(res, SectionTriggers, func(w io.Writer) error {
			return structure.writeRoutines(ctx, w, "Triggers", "triggers", groups)
		})
		if err != nil {
			return res, err
		}
	}

	x.log.Infof("Export finished: %d artifacts, %d rows, %d failed objects",
		len(res.Artifacts), data.rows, len(structure.failures)+len(data.failures))
	return res, nil
}

func (x *Exporter) warnList(what string, err error) {
	if err != nil {
		x.log.Warnf("Could not list %s, treating as none: %v", what, err)
	}
}

// writeArtifact creates one artifact, fills it with write and commits it.
// On error the partial file is removed.
func (x *Exporter) writeArtifact(res *Result, section Section, write func(io.Writer) error) error {
	a, err := createArtifact(x.cfg.artifactPath(section))
	if err != nil {
		return err
	}
	defer a.discard()
	if err := write(a); err != nil {
		return fmt.Errorf("writing %s section: %w", section, err)
	}
	if err := a.commit(); err != nil {
		return err
	}
	x.log.Infof("Wrote %s", a.path)
	res.Artifacts = append(res.Artifacts, a.path)
	return nil
}

func (x *Exporter) exportTables(ctx context.Context, res *Result, structure *structureEmitter, data *dataEmitter, tables []string) error {
	switch x.cfg.Mode {
	case ModeStructure:
		return x.writeArtifact(res, SectionStructure, func(w io.Writer) error {
			return structure.writeTables(ctx, w, tables)
		})
	case ModeData:
		return x.writeArtifact(res, SectionData, func(w io.Writer) error {
			return data.writeData(ctx, w, tables)
		})
	}

	// Full mode: data goes into the structure artifact.
	a, err := createArtifact(x.cfg.artifactPath(SectionStructure))
	if err != nil {
		return err
	}
	defer a.discard()
	if err := structure.writeTables(ctx, a, tables); err != nil {
		return fmt.Errorf("writing %s section: %w", SectionStructure, err)
	}
	if err := a.close(); err != nil {
		return err
	}

	switch x.cfg.Merge {
	case MergeCopy:
		err = x.mergeByCopy(ctx, a, data, tables)
	default:
		err = x.mergeByAppend(ctx, a, data, tables)
	}
	if err != nil {
		return err
	}
	if err := a.commit(); err != nil {
		return err
	}
	x.log.Infof("Wrote %s", a.path)
	res.Artifacts = append(res.Artifacts, a.path)
	return nil
}

func (x *Exporter) mergeByAppend(ctx context.Context, a *artifact, data *dataEmitter, tables []string) error {
	if err := a.reopen(); err != nil {
		return err
	}
	if _, err := io.WriteString(a, DataSectionSeparator); err != nil {
		return fmt.Errorf("writing data separator: %w", err)
	}
	if err := data.writeData(ctx, a, tables); err != nil {
		return fmt.Errorf("writing %s section: %w", SectionData, err)
	}
	return a.close()
}

func (x *Exporter) mergeByCopy(ctx context.Context, a *artifact, data *dataEmitter, tables []string) error {
	tmp, err := createArtifact(x.cfg.artifactPath(SectionData))
	if err != nil {
		return err
	}
	defer tmp.discard()
	if err := data.writeData(ctx, tmp, tables); err != nil {
		return fmt.Errorf("writing %s section: %w", SectionData, err)
	}
	if err := tmp.close(); err != nil {
		return err
	}

	if err := a.reopen(); err != nil {
		return err
	}
	if _, err := io.WriteString(a, DataSectionSeparator); err != nil {
		return fmt.Errorf("writing data separator: %w", err)
	}
	n, err := appendFile(a, tmp.tmpPath)
	if err != nil {
		return fmt.Errorf("copying data section into %s: %w", filepath.Base(a.path), err)
	}
	x.log.Debugf("Copied %d bytes of data into %s", n, filepath.Base(a.path))
	if err := a.close(); err != nil {
		return err
	}
	if err := os.Remove(tmp.tmpPath); err != nil && !os.IsNotExist(err) {
		x.log.Warnf("Removing temporary data file: %v", err)
	}
	return nil
}
