package migrate

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"postcode-api/internal/logger"
)

var (
	legacyHeader = []byte(`"pc","ca"`)
	header       = []byte(`"incode","value"`)
)

// HeaderResult counts the files a header migration touched.
type HeaderResult struct {
	Migrated int
	Skipped  int
}

// MigrateHeaders: rewrite the first line of every <root>/*/*.csv from the legacy "pc","ca"
// header to "incode","value", leaving the rest of each file byte-for-byte intact.
// Background: files already carrying an incode,value header are skipped; any other header fails
// the run.
// Constraints: up to workers goroutines (runtime.NumCPU() when workers <= 0); each rewrite goes
// through a temporary file and a rename.
func MigrateHeaders(ctx context.Context, root string, workers int) (HeaderResult, error) {
	files, err := filepath.Glob(filepath.Join(root, "*", "*.csv"))
	if err != nil {
		return HeaderResult{}, fmt.Errorf("list partitions under %s: %w", root, err)
	}
	sort.Strings(files)
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	logger.L().Info("header_migration_begin", "root", root, "files", len(files), "workers", workers)

	var migrated, skipped atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, path := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			changed, err := migrateFile(path)
			if err != nil {
				return err
			}
			if changed {
				migrated.Add(1)
			} else {
				skipped.Add(1)
			}
			return nil
		})
	}
	err = g.Wait()
	res := HeaderResult{Migrated: int(migrated.Load()), Skipped: int(skipped.Load())}
	if err != nil {
		return res, err
	}
	logger.L().Info("header_migration_done", "migrated", res.Migrated, "skipped", res.Skipped)
	return res, nil
}

// migrateFile rewrites one file's header. It reports false when the file was already migrated.
func migrateFile(path string) (bool, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	first, rest := splitFirstLine(content)
	switch {
	case isHeader(first, header):
		return false, nil
	case !bytes.Equal(first, legacyHeader):
		return false, fmt.Errorf("unexpected header %q in %s", first, path)
	}

	out := make([]byte, 0, len(header)+len(rest))
	out = append(out, header...)
	out = append(out, rest...)
	if err := writeAtomic(path, out); err != nil {
		return false, err
	}
	logger.L().Debug("header_migrated", "path", path)
	return true, nil
}

// splitFirstLine returns the first line without its terminator, and everything from the
// terminator on.
func splitFirstLine(b []byte) (line, rest []byte) {
	i := bytes.IndexByte(b, '\n')
	if i < 0 {
		return bytes.TrimSuffix(b, []byte("\r")), nil
	}
	end := i
	if end > 0 && b[end-1] == '\r' {
		end--
	}
	return b[:end], b[end:]
}

// isHeader matches the migrated header with or without quotes.
func isHeader(line, want []byte) bool {
	return bytes.Equal(line, want) || bytes.Equal(line, bytes.ReplaceAll(want, []byte(`"`), nil))
}

func writeAtomic(path string, data []byte) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp for %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), info.Mode().Perm()); err != nil {
		return fmt.Errorf("chmod temp for %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
