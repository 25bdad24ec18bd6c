// Package file serves partitions from CSV files laid out as <root>/<areaType>/<outcode>.csv.
package file

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"postcode-api/internal/localdb"
	"postcode-api/internal/logger"
)

const (
	readBufferSize = 64 * 1024

	// column names of a migrated partition header
	incodeColumn = "incode"
	valueColumn  = "value"
)

// Source reads partition files under a data root.
type Source struct {
	root string
	log  *slog.Logger
}

// NewSource returns a Source rooted at dir. Malformed rows are reported to l, or to the default
// logger when l is nil.
func NewSource(dir string, l *slog.Logger) *Source {
	if l == nil {
		l = logger.L()
	}
	return &Source{root: dir, log: l}
}

// Root returns the data root.
func (s *Source) Root() string { return s.root }

// PartitionPath returns the file holding the (areaType, outcode) partition.
func (s *Source) PartitionPath(areaType, outcode string) string {
	return filepath.Join(s.root, areaType, outcode+".csv")
}

// Open opens the partition file and reads its header. A missing file, or a name that cannot be a
// single path segment, yields localdb.ErrPartitionNotFound.
func (s *Source) Open(_ context.Context, areaType, outcode string) (localdb.Rows, error) {
	if !localdb.ValidSegment(areaType) || !localdb.ValidSegment(outcode) {
		return nil, fmt.Errorf("%w: %q/%q", localdb.ErrPartitionNotFound, areaType, outcode)
	}
	path := s.PartitionPath(areaType, outcode)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s/%s", localdb.ErrPartitionNotFound, areaType, outcode)
		}
		return nil, fmt.Errorf("open partition: %w", err)
	}
	rows, err := newRows(f, path, s.log)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return rows, nil
}

// AreaTypes lists the non-hidden subdirectories of the data root, sorted.
func (s *Source) AreaTypes(_ context.Context) ([]string, error) {
	return DiscoverAreaTypes(s.root)
}

// DiscoverAreaTypes lists the non-hidden subdirectories of root, sorted.
func DiscoverAreaTypes(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read data root %s: %w", root, err)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out, nil
}

// Outcodes lists the outcodes with a partition file for areaType, sorted.
func (s *Source) Outcodes(areaType string) ([]string, error) {
	if !localdb.ValidSegment(areaType) {
		return nil, fmt.Errorf("invalid area type %q", areaType)
	}
	matches, err := filepath.Glob(filepath.Join(s.root, areaType, "*.csv"))
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, strings.TrimSuffix(filepath.Base(m), ".csv"))
	}
	sort.Strings(out)
	return out, nil
}

// rows streams one partition file.
type rows struct {
	f        *os.File
	r        *csv.Reader
	path     string
	log      *slog.Logger
	incodeAt int
	valueAt  int
	cur      localdb.Row
	err      error
	done     bool
}

func newRows(f *os.File, path string, l *slog.Logger) (*rows, error) {
	r := csv.NewReader(bufio.NewReaderSize(f, readBufferSize))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.ReuseRecord = true

	rs := &rows{f: f, r: r, path: path, log: l, incodeAt: -1, valueAt: -1}
	header, err := r.Read()
	if err == io.EOF {
		// empty file: a partition with no rows
		rs.done = true
		return rs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		switch strings.ToLower(name) {
		case incodeColumn:
			rs.incodeAt = i
		case valueColumn:
			rs.valueAt = i
		}
	}
	if rs.incodeAt < 0 || rs.valueAt < 0 {
		return nil, fmt.Errorf("partition %s: header %q lacks %s/%s columns", path, strings.Join(header, ","), incodeColumn, valueColumn)
	}
	return rs, nil
}

func (rs *rows) Next() bool {
	if rs.done {
		return false
	}
	for {
		rec, err := rs.r.Read()
		if err == io.EOF {
			rs.done = true
			return false
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				rs.log.Warn("partition_row_malformed", "path", rs.path, "line", pe.Line, "err", pe.Err)
				continue
			}
			rs.err = fmt.Errorf("read %s: %w", rs.path, err)
			rs.done = true
			return false
		}
		if len(rec) <= rs.incodeAt || len(rec) <= rs.valueAt {
			line, _ := rs.r.FieldPos(0)
			rs.log.Warn("partition_row_malformed", "path", rs.path, "line", line, "fields", len(rec))
			continue
		}
		rs.cur = localdb.Row{Incode: rec[rs.incodeAt], Value: rec[rs.valueAt]}
		return true
	}
}

func (rs *rows) Row() localdb.Row { return rs.cur }

func (rs *rows) Err() error { return rs.err }

func (rs *rows) Close() error {
	rs.done = true
	return rs.f.Close()
}
