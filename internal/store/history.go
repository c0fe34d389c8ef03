package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"fortio.org/safecast"

	"github.com/ieee-cs-bmsit/structsight/internal/layout"
)

// Run is one recorded analysis.
type Run struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	FilePath  string    `json:"filePath"`
	Arch      string    `json:"arch"`
	Compiler  string    `json:"compiler"`
	Records   int       `json:"records"` // Number of layouts, filled by ListRuns
}

// Entry is one record as measured in a run.
type Entry struct {
	RunID         string    `json:"runId"`
	CreatedAt     time.Time `json:"createdAt"`
	FilePath      string    `json:"filePath"`
	Name          string    `json:"name"`
	QualifiedName string    `json:"qualifiedName"`
	TotalSize     uint64    `json:"totalSize"`
	PaddingBytes  uint64    `json:"paddingBytes"`
	BytesSaved    uint64    `json:"bytesSaved"`
}

// bytesSaved returns the saving of the reorder suggestion, if any.
func bytesSaved(d layout.Descriptor) uint64 {
	for _, s := range d.Optimizations {
		if s.Kind == layout.Reorder {
			return s.BytesSaved
		}
	}
	return 0
}

// RecordRun stores a run and its analyzed layouts in one transaction.
func (s *Store) RecordRun(ctx context.Context, run Run, layouts []layout.Descriptor) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, created_at, file_path, arch, compiler)
		VALUES (?, ?, ?, ?, ?)
	`, run.ID, run.CreatedAt.UnixNano(), run.FilePath, run.Arch, run.Compiler)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO layouts
		(run_id, seq, name, qualified_name, total_size, padding_bytes, bytes_saved)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	defer stmt.Close()

	for i, d := range layouts {
		size, err := safecast.Conv[int64](d.TotalSize)
		if err != nil {
			return fmt.Errorf("record run: %s: %w", d.QualifiedName, err)
		}
		padding, err := safecast.Conv[int64](d.TotalPadding())
		if err != nil {
			return fmt.Errorf("record run: %s: %w", d.QualifiedName, err)
		}
		saved, err := safecast.Conv[int64](bytesSaved(d))
		if err != nil {
			return fmt.Errorf("record run: %s: %w", d.QualifiedName, err)
		}

		if _, err := stmt.ExecContext(ctx, run.ID, i, d.Name, d.QualifiedName, size, padding, saved); err != nil {
			return fmt.Errorf("record run: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first. A non-positive limit
// returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.created_at, r.file_path, r.arch, r.compiler,
		       (SELECT COUNT(*) FROM layouts l WHERE l.run_id = r.id)
		FROM runs r
		ORDER BY r.created_at DESC, r.rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r       Run
			created int64
		)
		if err := rows.Scan(&r.ID, &created, &r.FilePath, &r.Arch, &r.Compiler, &r.Records); err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		r.CreatedAt = time.Unix(0, created)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// History returns the recorded sizes of the record called name (matched
// against the short or qualified name), newest first.
func (s *Store) History(ctx context.Context, name string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT l.run_id, r.created_at, r.file_path, l.name, l.qualified_name,
		       l.total_size, l.padding_bytes, l.bytes_saved
		FROM layouts l
		JOIN runs r ON r.id = l.run_id
		WHERE l.name = ? OR l.qualified_name = ?
		ORDER BY r.created_at DESC, r.rowid DESC, l.seq
		LIMIT ?
	`, name, name, limit)
	if err != nil {
		return nil, fmt.Errorf("history %s: %w", name, err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var out []Entry
	for rows.Next() {
		var (
			e                    Entry
			created              int64
			size, padding, saved int64
		)
		if err := rows.Scan(&e.RunID, &created, &e.FilePath, &e.Name, &e.QualifiedName, &size, &padding, &saved); err != nil {
			return nil, err
		}
		e.CreatedAt = time.Unix(0, created)

		var err error
		if e.TotalSize, err = safecast.Conv[uint64](size); err != nil {
			return nil, err
		}
		if e.PaddingBytes, err = safecast.Conv[uint64](padding); err != nil {
			return nil, err
		}
		if e.BytesSaved, err = safecast.Conv[uint64](saved); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
