package store

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hackgods/gp-clinic-console/pkg/logging"
)

// CSVBackend keeps one <entity>.csv file per entity in a directory. The first
// row of each file holds the field names.
type CSVBackend struct {
	dir    string
	logger *logging.Logger
}

func NewCSVBackend(dir string, logger *logging.Logger) (*CSVBackend, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &CSVBackend{dir: dir, logger: logger}, nil
}

func (b *CSVBackend) Dir() string {
	return b.dir
}

func (b *CSVBackend) path(entity Entity) string {
	return filepath.Join(b.dir, string(entity)+".csv")
}

func (b *CSVBackend) Load(ctx context.Context, entity Entity) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(b.path(entity))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			b.logger.Warn("entity file not found, treating as empty", "entity", entity, "path", b.path(entity))
			return []Record{}, nil
		}
		return nil, fmt.Errorf("open %s: %w", entity, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return []Record{}, nil
		}
		return nil, fmt.Errorf("read %s header: %w", entity, err)
	}

	records := []Record{}
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", entity, err)
		}

		rec := make(Record, len(header))
		for i, field := range header {
			if i < len(row) {
				rec[field] = row[i]
			} else {
				rec[field] = ""
			}
		}
		records = append(records, rec)
	}

	return records, nil
}

// Save writes every snapshot to a temp file, then swaps the temp files in.
// If a swap fails, files already swapped are restored from their backups.
func (b *CSVBackend) Save(ctx context.Context, snapshots ...Snapshot) error {
	if len(snapshots) == 0 {
		return ErrEmptySave
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	temps := make([]string, 0, len(snapshots))
	cleanup := func() {
		for _, tmp := range temps {
			_ = os.Remove(tmp)
		}
	}

	for _, snap := range snapshots {
		tmp := b.path(snap.Entity) + ".tmp"
		if err := writeCSV(tmp, snap); err != nil {
			temps = append(temps, tmp)
			cleanup()
			return fmt.Errorf("write %s: %w", snap.Entity, err)
		}
		temps = append(temps, tmp)
	}

	type swapped struct {
		final     string
		backup    string
		hadBackup bool
	}
	var done []swapped

	rollback := func() {
		for i := len(done) - 1; i >= 0; i-- {
			s := done[i]
			if s.hadBackup {
				if err := os.Rename(s.backup, s.final); err != nil {
					b.logger.Error("restore backup failed", "path", s.final, "error", err)
				}
			} else {
				_ = os.Remove(s.final)
			}
		}
	}

	for i, snap := range snapshots {
		final := b.path(snap.Entity)
		backup := final + ".bak"

		hadBackup := false
		if _, err := os.Stat(final); err == nil {
			if err := os.Rename(final, backup); err != nil {
				rollback()
				cleanup()
				return fmt.Errorf("backup %s: %w", snap.Entity, err)
			}
			hadBackup = true
		}

		if err := os.Rename(temps[i], final); err != nil {
			if hadBackup {
				_ = os.Rename(backup, final)
			}
			rollback()
			cleanup()
			return fmt.Errorf("replace %s: %w", snap.Entity, err)
		}

		done = append(done, swapped{final: final, backup: backup, hadBackup: hadBackup})
	}

	for _, s := range done {
		if s.hadBackup {
			_ = os.Remove(s.backup)
		}
	}

	b.logger.Debug("entities saved", "count", len(snapshots))
	return nil
}

func writeCSV(path string, snap Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if err := w.Write(snap.Fields); err != nil {
		f.Close()
		return err
	}

	row := make([]string, len(snap.Fields))
	for _, rec := range snap.Records {
		for i, field := range snap.Fields {
			row[i] = rec[field]
		}
		if err := w.Write(row); err != nil {
			f.Close()
			return err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
