package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/foxseedlab/segmentd/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSegmentColumns = `id, file_hash, recorded_at, sequence_number, length_seconds, text_content, storage_path, segment_hash, created_at`

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) repository.SegmentIndex {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Init(ctx context.Context) error {
	return RunPostgresMigration(ctx, r.pool)
}

func (r *PostgresRepository) Insert(ctx context.Context, seg repository.Segment) (int64, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO audio_segments (file_hash, recorded_at, sequence_number, length_seconds, text_content, storage_path, segment_hash)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (file_hash, sequence_number) DO UPDATE SET
		   recorded_at = EXCLUDED.recorded_at,
		   length_seconds = EXCLUDED.length_seconds,
		   text_content = EXCLUDED.text_content,
		   storage_path = EXCLUDED.storage_path,
		   segment_hash = EXCLUDED.segment_hash
		 RETURNING id`,
		seg.FileHash, seg.Timestamp, seg.Sequence, seg.LengthSeconds, nullableText(seg.Text), seg.StoragePath, seg.SegmentHash)
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("insert segment: %w", err)
	}
	return id, nil
}

func (r *PostgresRepository) QueryByHash(ctx context.Context, fileHash string) ([]repository.Segment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+postgresSegmentColumns+`
		 FROM audio_segments WHERE file_hash = $1 ORDER BY sequence_number ASC`,
		fileHash)
	if err != nil {
		return nil, fmt.Errorf("query segments: %w", err)
	}
	defer rows.Close()
	var list []repository.Segment
	for rows.Next() {
		seg, err := scanPostgresSegment(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *seg)
	}
	return list, rows.Err()
}

func (r *PostgresRepository) QueryByID(ctx context.Context, id int64) (*repository.Segment, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+postgresSegmentColumns+` FROM audio_segments WHERE id = $1`, id)
	return scanPostgresOptional(row)
}

func (r *PostgresRepository) QueryBySequence(ctx context.Context, fileHash string, sequence int) (*repository.Segment, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+postgresSegmentColumns+` FROM audio_segments WHERE file_hash = $1 AND sequence_number = $2`,
		fileHash, sequence)
	return scanPostgresOptional(row)
}

func (r *PostgresRepository) DeleteByHash(ctx context.Context, fileHash string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM audio_segments WHERE file_hash = $1`, fileHash)
	if err != nil {
		return 0, fmt.Errorf("delete segments: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRepository) Close() {
	r.pool.Close()
}

func scanPostgresOptional(row pgx.Row) (*repository.Segment, error) {
	seg, err := scanPostgresSegment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return seg, nil
}

func scanPostgresSegment(row pgx.Row) (*repository.Segment, error) {
	var seg repository.Segment
	var text *string
	if err := row.Scan(&seg.ID, &seg.FileHash, &seg.Timestamp, &seg.Sequence, &seg.LengthSeconds,
		&text, &seg.StoragePath, &seg.SegmentHash, &seg.CreatedAt); err != nil {
		return nil, fmt.Errorf("scan segment: %w", err)
	}
	if text != nil {
		seg.Text = *text
	}
	return &seg, nil
}

func nullableText(text string) *string {
	if text == "" {
		return nil
	}
	return &text
}
