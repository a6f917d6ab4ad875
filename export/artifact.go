package export

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Section names the part of an export an artifact holds.
type Section string

const (
	SectionStructure Section = "structure"
	SectionData      Section = "data"
	SectionViews     Section = "views"
	SectionRoutines  Section = "routines"
	SectionTriggers  Section = "triggers"
)

const (
	partialSuffix = ".partial"
	copyChunkSize = 1 << 20
)

// ArtifactName returns <schema>_<section>_<timestamp>.sql.
func ArtifactName(schema string, section Section, timestamp string) string {
	return fmt.Sprintf("%s_%s_%s.sql", schema, section, timestamp)
}

// artifact is an output file written under a .partial name and renamed into
// place by commit.
type artifact struct {
	path    string
	tmpPath string
	file    *os.File
	buf     *bufio.Writer
}

func createArtifact(path string) (*artifact, error) {
	a := &artifact{path: path, tmpPath: path + partialSuffix}
	f, err := os.OpenFile(a.tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", filepath.Base(path), err)
	}
	a.file = f
	a.buf = bufio.NewWriter(f)
	return a, nil
}

func (a *artifact) Write(p []byte) (int, error) {
	if a.buf == nil {
		return 0, fmt.Errorf("write to closed artifact %s", filepath.Base(a.path))
	}
	return a.buf.Write(p)
}

// close flushes and closes the file but keeps it pending.
func (a *artifact) close() error {
	if a.file == nil {
		return nil
	}
	ferr := a.buf.Flush()
	cerr := a.file.Close()
	a.file, a.buf = nil, nil
	if ferr != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(a.path), ferr)
	}
	if cerr != nil {
		return fmt.Errorf("closing %s: %w", filepath.Base(a.path), cerr)
	}
	return nil
}

// reopen opens the pending file again in append mode.
func (a *artifact) reopen() error {
	if a.file != nil {
		return nil
	}
	f, err := os.OpenFile(a.tmpPath, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("reopening %s: %w", filepath.Base(a.path), err)
	}
	a.file = f
	a.buf = bufio.NewWriter(f)
	return nil
}

func (a *artifact) commit() error {
	if err := a.close(); err != nil {
		return err
	}
	if err := os.Rename(a.tmpPath, a.path); err != nil {
		return fmt.Errorf("finalizing %s: %w", filepath.Base(a.path), err)
	}
	return nil
}

// discard drops the pending file. Safe to call after commit.
func (a *artifact) discard() {
	if a.file != nil {
		a.file.Close()
		a.file, a.buf = nil, nil
	}
	os.Remove(a.tmpPath)
}

// appendFile streams src onto the end of dst in fixed-size chunks.
func appendFile(dst io.Writer, src string) (int64, error) {
	f, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	chunk := make([]byte, copyChunkSize)
	var total int64
	for {
		n, rerr := f.Read(chunk)
		if n > 0 {
			if _, err := dst.Write(chunk[:n]); err != nil {
				return total, err
			}
			total += int64(n)
		}
		if rerr == io.EOF {
			return total, nil
		}
		if rerr != nil {
			return total, rerr
		}
	}
}

// ParseArtifactName splits an artifact file name into its schema, section
// and run timestamp. Schema names may themselves contain underscores.
func ParseArtifactName(name string) (schema string, section Section, timestamp string, ok bool) {
	base, found := strings.CutSuffix(name, ".sql")
	if !found {
		return "", "", "", false
	}
	// <schema>_<section>_<YYYYMMDD>_<HHMMSS>
	parts := strings.Split(base, "_")
	if len(parts) < 4 {
		return "", "", "", false
	}
	n := len(parts)
	timestamp = parts[n-2] + "_" + parts[n-1]
	if _, err := time.Parse(TimestampLayout, timestamp); err != nil {
		return "", "", "", false
	}
	section = Section(parts[n-3])
	switch section {
	case SectionStructure, SectionData, SectionViews, SectionRoutines, SectionTriggers:
	default:
		return "", "", "", false
	}
	schema = strings.Join(parts[:n-3], "_")
	if schema == "" {
		return "", "", "", false
	}
	return schema, section, timestamp, true
}
