package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"scribo/pkg/logger"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Transcript is a completed transcription kept for history. Jobs themselves
// are never persisted; only results are.
type Transcript struct {
	ID           string    `json:"id" db:"id"`
	JobID        string    `json:"job_id" db:"job_id"`
	ChatID       int64     `json:"chat_id" db:"chat_id"`
	FileUniqueID string    `json:"file_unique_id" db:"file_unique_id"`
	FileName     string    `json:"file_name" db:"file_name"`
	Text         string    `json:"text" db:"text"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// PostgresStorage persists transcripts in PostgreSQL.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

func NewPostgresStorage(databaseURL string) (*PostgresStorage, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(databaseURL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("Database migrations completed")

	return &PostgresStorage{pool: pool}, nil
}

func runMigrations(databaseURL string) error {
	migrationsPath, err := filepath.Abs("migrations")
	if err != nil {
		return fmt.Errorf("failed to resolve migrations path: %w", err)
	}

	m, err := migrate.New("file://"+migrationsPath, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// SaveTranscript inserts a completed transcription.
func (s *PostgresStorage) SaveTranscript(ctx context.Context, t *Transcript) error {
	const q = `
		INSERT INTO transcripts (id, job_id, chat_id, file_unique_id, file_name, text, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.pool.Exec(ctx, q,
		t.ID, t.JobID, t.ChatID, t.FileUniqueID, t.FileName, t.Text, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert transcript: %w", err)
	}
	return nil
}

// RecentTranscripts returns the newest transcripts for a chat, newest first.
func (s *PostgresStorage) RecentTranscripts(ctx context.Context, chatID int64, limit int) ([]Transcript, error) {
	const q = `
		SELECT id, job_id, chat_id, file_unique_id, file_name, text, created_at
		FROM transcripts
		WHERE chat_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, q, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query transcripts: %w", err)
	}
	defer rows.Close()

	var transcripts []Transcript
	for rows.Next() {
		var t Transcript
		if err := rows.Scan(&t.ID, &t.JobID, &t.ChatID, &t.FileUniqueID, &t.FileName, &t.Text, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transcript: %w", err)
		}
		transcripts = append(transcripts, t)
	}
	return transcripts, rows.Err()
}

func (s *PostgresStorage) Close() {
	s.pool.Close()
}
