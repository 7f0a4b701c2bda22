package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/bdougie/trafficwatch/internal/embeddings"
	"github.com/bdougie/trafficwatch/internal/models"
)

// PostgresConfig holds connection details for PostgreSQL
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// ConnString builds a pgx connection URL.
func (c PostgresConfig) ConnString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.DBName,
	)
}

// execer is the write side of a pgxpool.Pool
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStorage records each run and its violations in PostgreSQL
type PostgresStorage struct {
	pool     *pgxpool.Pool
	db       execer
	runID    uuid.UUID
	video    string
	embedder *embeddings.Service
	logger   *slog.Logger

	mu         sync.Mutex
	runCreated bool
}

// NewPostgresStorage connects to the database. The run row for videoName is
// written with the first violation, so runs without findings leave nothing
// behind. embedder may be nil, in which case violations are stored without
// embeddings.
func NewPostgresStorage(ctx context.Context, config PostgresConfig, runID uuid.UUID, videoName string, embedder *embeddings.Service, logger *slog.Logger) (*PostgresStorage, error) {
	pool, err := pgxpool.New(ctx, config.ConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStorage{
		pool:     pool,
		db:       pool,
		runID:    runID,
		video:    videoName,
		embedder: embedder,
		logger:   logger,
	}, nil
}

// Close closes the database connection
func (s *PostgresStorage) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// ensureRun inserts the run row once; a failed insert is retried on the
// next violation.
func (s *PostgresStorage) ensureRun(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runCreated {
		return nil
	}

	_, err := s.db.Exec(ctx,
		"INSERT INTO runs (id, video, created_at) VALUES ($1, $2, $3)",
		s.runID, s.video, time.Now())
	if err != nil {
		return fmt.Errorf("failed to create run entry: %w", err)
	}
	s.runCreated = true
	return nil
}

// AddViolation stores a violation immediately, with an embedding of its
// description when an embedder is configured.
func (s *PostgresStorage) AddViolation(ctx context.Context, v models.Violation) error {
	if err := s.ensureRun(ctx); err != nil {
		return err
	}

	var embedding any
	if s.embedder != nil {
		vec, err := s.embedder.GetEmbedding(ctx, v.Description)
		if err != nil {
			// continue without embedding
			s.logger.Warn("failed to generate embedding", "violation", v.Name, "error", err)
		} else {
			embedding = pgvector.NewVector(vec)
		}
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO violations
        (run_id, name, subject, start_time, end_time, description, embedding, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.runID, v.Name, v.Subject, v.StartTime, v.EndTime, v.Description, embedding, time.Now())
	if err != nil {
		return fmt.Errorf("failed to store violation: %w", err)
	}

	return nil
}

// Flush implements the Storage interface - no-op for Postgres as we save immediately
func (s *PostgresStorage) Flush() error {
	return nil
}

// SearchSimilar finds stored violations whose descriptions are closest to query
func (s *PostgresStorage) SearchSimilar(ctx context.Context, query string, limit int) ([]models.SearchResult, error) {
	if s.embedder == nil {
		return nil, fmt.Errorf("similarity search requires an embedding model")
	}

	queryEmbedding, err := s.embedder.GetEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT v.name, v.subject, v.start_time, v.end_time, v.description, r.video,
        1 - (v.embedding <=> $1) AS similarity
        FROM violations v
        JOIN runs r ON v.run_id = r.id
        WHERE v.embedding IS NOT NULL
        ORDER BY v.embedding <=> $1
        LIMIT $2`,
		pgvector.NewVector(queryEmbedding), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search similar violations: %w", err)
	}
	defer rows.Close()

	var results []models.SearchResult
	for rows.Next() {
		var r models.SearchResult
		if err := rows.Scan(&r.Name, &r.Subject, &r.StartTime, &r.EndTime,
			&r.Description, &r.Video, &r.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan search results: %w", err)
		}
		results = append(results, r)
	}

	return results, rows.Err()
}

// InitSchema creates the database schema if it doesn't exist. dims is the
// embedding width of the configured model.
func InitSchema(ctx context.Context, config PostgresConfig, dims int) error {
	conn, err := pgx.Connect(ctx, config.ConnString())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	_, err = conn.Exec(ctx, fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS runs (
            id UUID PRIMARY KEY,
            video VARCHAR(255) NOT NULL,
            created_at TIMESTAMPTZ NOT NULL
        );

        CREATE TABLE IF NOT EXISTS violations (
            id SERIAL PRIMARY KEY,
            run_id UUID REFERENCES runs(id) ON DELETE CASCADE,
            name TEXT NOT NULL,
            subject TEXT NOT NULL,
            start_time INTEGER NOT NULL,
            end_time INTEGER NOT NULL CHECK (end_time >= start_time),
            description TEXT NOT NULL,
            embedding vector(%d),
            created_at TIMESTAMPTZ NOT NULL
        );
    `, dims))
	if err != nil {
		return fmt.Errorf("failed to create database schema: %w", err)
	}

	_, err = conn.Exec(ctx, `
        CREATE INDEX IF NOT EXISTS idx_violations_run_id ON violations(run_id);
        CREATE INDEX IF NOT EXISTS idx_violations_embedding ON violations USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);
    `)
	if err != nil {
		return fmt.Errorf("failed to create database indexes: %w", err)
	}

	return nil
}
