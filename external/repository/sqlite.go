package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/foxseedlab/segmentd/internal/repository"
	_ "modernc.org/sqlite"
)

const sqliteSegmentColumns = `id, file_hash, recorded_at, sequence_number, length_seconds, text_content, storage_path, segment_hash, created_at`

// SQLiteRepository keeps the index in a single SQLite file. Writes go through
// one connection, which serializes concurrent commits to the same hash.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens path (":memory:" for an in-process database) with WAL and a busy timeout.
func OpenSQLite(path string) (*SQLiteRepository, error) {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Init(ctx context.Context) error {
	return RunSQLiteMigration(ctx, r.db)
}

func (r *SQLiteRepository) Insert(ctx context.Context, seg repository.Segment) (int64, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO audio_segments (file_hash, recorded_at, sequence_number, length_seconds, text_content, storage_path, segment_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (file_hash, sequence_number) DO UPDATE SET
			recorded_at = excluded.recorded_at,
			length_seconds = excluded.length_seconds,
			text_content = excluded.text_content,
			storage_path = excluded.storage_path,
			segment_hash = excluded.segment_hash
		RETURNING id
	`, seg.FileHash, unixFromTime(seg.Timestamp), seg.Sequence, seg.LengthSeconds,
		sql.NullString{String: seg.Text, Valid: seg.Text != ""},
		seg.StoragePath, seg.SegmentHash, unixFromTime(r.now()))
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("insert segment: %w", err)
	}
	return id, nil
}

func (r *SQLiteRepository) QueryByHash(ctx context.Context, fileHash string) ([]repository.Segment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+sqliteSegmentColumns+`
		FROM audio_segments
		WHERE file_hash = ?
		ORDER BY sequence_number ASC
	`, fileHash)
	if err != nil {
		return nil, fmt.Errorf("query segments: %w", err)
	}
	defer rows.Close()

	var list []repository.Segment
	for rows.Next() {
		seg, err := scanSQLiteSegment(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *seg)
	}
	return list, rows.Err()
}

func (r *SQLiteRepository) QueryByID(ctx context.Context, id int64) (*repository.Segment, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sqliteSegmentColumns+` FROM audio_segments WHERE id = ?`, id)
	return scanSQLiteOptional(row)
}

func (r *SQLiteRepository) QueryBySequence(ctx context.Context, fileHash string, sequence int) (*repository.Segment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sqliteSegmentColumns+` FROM audio_segments WHERE file_hash = ? AND sequence_number = ?`,
		fileHash, sequence)
	return scanSQLiteOptional(row)
}

func (r *SQLiteRepository) DeleteByHash(ctx context.Context, fileHash string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM audio_segments WHERE file_hash = ?`, fileHash)
	if err != nil {
		return 0, fmt.Errorf("delete segments: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete segments: %w", err)
	}
	return n, nil
}

// Close closes the database connection.
func (r *SQLiteRepository) Close() {
	_ = r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteOptional(row *sql.Row) (*repository.Segment, error) {
	seg, err := scanSQLiteSegment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return seg, nil
}

func scanSQLiteSegment(row rowScanner) (*repository.Segment, error) {
	var seg repository.Segment
	var recordedAt, createdAt float64
	var text sql.NullString
	if err := row.Scan(&seg.ID, &seg.FileHash, &recordedAt, &seg.Sequence, &seg.LengthSeconds,
		&text, &seg.StoragePath, &seg.SegmentHash, &createdAt); err != nil {
		return nil, fmt.Errorf("scan segment: %w", err)
	}
	seg.Timestamp = timeFromUnix(recordedAt)
	seg.CreatedAt = timeFromUnix(createdAt)
	if text.Valid {
		seg.Text = text.String
	}
	return &seg, nil
}

func unixFromTime(t time.Time) float64 {
	return float64(t.UnixMicro()) / 1e6
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).Round(time.Microsecond)
}
