package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"kctvfetch/internal/broadcast"
)

const recordColumns = `date, status, run_id, media_url, file_path, bytes, attempts,
        offsets_json, stages, error_message, updated_at`

// Put inserts or replaces the row for rec.Date.
func (s *Store) Put(ctx context.Context, rec Record) error {
	if rec.Date.IsZero() {
		return errors.New("history record requires a date")
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}

	var offsets any
	if len(rec.Offsets) > 0 {
		data, err := json.Marshal(rec.Offsets)
		if err != nil {
			return fmt.Errorf("marshal offsets: %w", err)
		}
		offsets = string(data)
	}

	err := s.exec(ctx,
		`INSERT INTO broadcasts (`+recordColumns+`)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(date) DO UPDATE SET
            status = excluded.status,
            run_id = excluded.run_id,
            media_url = excluded.media_url,
            file_path = excluded.file_path,
            bytes = excluded.bytes,
            attempts = excluded.attempts,
            offsets_json = excluded.offsets_json,
            stages = excluded.stages,
            error_message = excluded.error_message,
            updated_at = excluded.updated_at`,
		rec.Date.String(),
		string(rec.Status),
		rec.RunID,
		nullableString(rec.MediaURL),
		nullableString(rec.FilePath),
		rec.Bytes,
		rec.Attempts,
		offsets,
		nullableString(strings.Join(rec.Stages, ",")),
		nullableString(rec.Error),
		rec.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record %s: %w", rec.Date, err)
	}
	return nil
}

// Get returns the row for date, or nil when the date was never recorded.
func (s *Store) Get(ctx context.Context, date broadcast.Date) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM broadcasts WHERE date = ?`, date.String())
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// List returns the most recent dates first. limit <= 0 returns every row.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	query := `SELECT ` + recordColumns + ` FROM broadcasts ORDER BY date DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// Counts returns how many dates are in each status.
func (s *Store) Counts(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM broadcasts GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count history: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[Status(status)] = n
	}
	return counts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var (
		date, status, runID, updatedAt      string
		mediaURL, filePath, offsets, stages sql.NullString
		errorMessage                        sql.NullString
		bytes                               int64
		attempts                            int
	)
	if err := row.Scan(&date, &status, &runID, &mediaURL, &filePath, &bytes, &attempts,
		&offsets, &stages, &errorMessage, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan history row: %w", err)
	}

	parsedDate, err := broadcast.ParseDate(date)
	if err != nil {
		return nil, fmt.Errorf("history row date %q: %w", date, err)
	}
	rec := &Record{
		Date:     parsedDate,
		Status:   Status(status),
		RunID:    runID,
		MediaURL: mediaURL.String,
		FilePath: filePath.String,
		Bytes:    bytes,
		Attempts: attempts,
		Error:    errorMessage.String,
	}
	if offsets.Valid && offsets.String != "" {
		if err := json.Unmarshal([]byte(offsets.String), &rec.Offsets); err != nil {
			return nil, fmt.Errorf("history row offsets: %w", err)
		}
	}
	if stages.Valid && stages.String != "" {
		rec.Stages = strings.Split(stages.String, ",")
	}
	if ts, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		rec.UpdatedAt = ts
	}
	return rec, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
