package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

var postgresMigrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS audio_segments (
		id BIGSERIAL PRIMARY KEY,
		file_hash TEXT NOT NULL,
		recorded_at TIMESTAMPTZ NOT NULL,
		sequence_number INTEGER NOT NULL CHECK (sequence_number >= 0),
		length_seconds DOUBLE PRECISION NOT NULL CHECK (length_seconds > 0),
		text_content TEXT,
		storage_path TEXT NOT NULL,
		segment_hash TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE(file_hash, sequence_number)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audio_segments_file_hash ON audio_segments (file_hash)`,
	`CREATE INDEX IF NOT EXISTS idx_audio_segments_recorded_at ON audio_segments (recorded_at)`,
}

var sqliteMigrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS audio_segments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		file_hash TEXT NOT NULL,
		recorded_at REAL NOT NULL,
		sequence_number INTEGER NOT NULL CHECK (sequence_number >= 0),
		length_seconds REAL NOT NULL CHECK (length_seconds > 0),
		text_content TEXT,
		storage_path TEXT NOT NULL,
		segment_hash TEXT NOT NULL,
		created_at REAL NOT NULL,
		UNIQUE(file_hash, sequence_number)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audio_segments_file_hash ON audio_segments (file_hash)`,
	`CREATE INDEX IF NOT EXISTS idx_audio_segments_recorded_at ON audio_segments (recorded_at)`,
}

func RunPostgresMigration(ctx context.Context, pool *pgxpool.Pool) error {
	for _, s := range postgresMigrationStatements {
		stmt := strings.TrimSpace(s)
		if stmt == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func RunSQLiteMigration(ctx context.Context, db *sql.DB) error {
	for _, s := range sqliteMigrationStatements {
		stmt := strings.TrimSpace(s)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
