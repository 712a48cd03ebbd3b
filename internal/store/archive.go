// Package store persists conversation turns to PostgreSQL. The engine
// works fully in memory; the archive is an audit trail, not a
// dependency.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/prometheus-agent-platform/internal/agent"
)

// Config holds database connection pool configuration
type Config struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultConfig returns a connection config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Host:            "localhost",
		Port:            5432,
		User:            "agent",
		Password:        "agent",
		Database:        "agent",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 5 * time.Minute,
	}
}

const createTurnsTable = `
CREATE TABLE IF NOT EXISTS conversation_turns (
	id              BIGSERIAL PRIMARY KEY,
	conversation_id TEXT        NOT NULL,
	role            TEXT        NOT NULL,
	text            TEXT        NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversation_turns_conversation
	ON conversation_turns (conversation_id, id);
`

// Archive stores conversation turns in PostgreSQL. It implements
// agent.Archiver.
type Archive struct {
	db     *sql.DB
	config *Config
}

// NewArchive opens a pooled connection and ensures the schema exists.
func NewArchive(config *Config) (*Archive, error) {
	if config == nil {
		config = DefaultConfig()
	}

	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.Database, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, createTurnsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Archive{db: db, config: config}, nil
}

// ArchiveTurn appends one turn to the archive. Transient errors are
// retried once.
func (a *Archive) ArchiveTurn(ctx context.Context, conversationID string, turn agent.Turn) error {
	const insert = `
		INSERT INTO conversation_turns (conversation_id, role, text, created_at)
		VALUES ($1, $2, $3, $4)`

	_, err := a.db.ExecContext(ctx, insert, conversationID, string(turn.Role), turn.Text, turn.Timestamp)
	if err != nil && IsRetryableError(err) {
		_, err = a.db.ExecContext(ctx, insert, conversationID, string(turn.Role), turn.Text, turn.Timestamp)
	}
	if err != nil {
		return fmt.Errorf("failed to archive turn: %w", err)
	}
	return nil
}

// RecentTurns returns the newest turns of a conversation in
// chronological order.
func (a *Archive) RecentTurns(ctx context.Context, conversationID string, limit int) ([]agent.Turn, error) {
	const query = `
		SELECT role, text, created_at FROM (
			SELECT id, role, text, created_at
			FROM conversation_turns
			WHERE conversation_id = $1
			ORDER BY id DESC
			LIMIT $2
		) newest ORDER BY id ASC`

	rows, err := a.db.QueryContext(ctx, query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	var turns []agent.Turn
	for rows.Next() {
		var turn agent.Turn
		var role string
		if err := rows.Scan(&role, &turn.Text, &turn.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		turn.Role = agent.Role(role)
		turns = append(turns, turn)
	}
	return turns, rows.Err()
}

// Ping tests the database connection
func (a *Archive) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

// Close closes the database connection
func (a *Archive) Close() error {
	return a.db.Close()
}

// IsRetryableError checks if an error is transient
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if err == sql.ErrConnDone {
		return true
	}

	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "08000", "08001", "08003", "08004", "08006": // connection failures
			return true
		case "40001": // serialization_failure
			return true
		case "40P01": // deadlock_detected
			return true
		case "53300": // too_many_connections
			return true
		}
	}

	return false
}
