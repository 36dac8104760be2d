// Package audit persists routing decisions, push dispatch outcomes and
// provider lifecycle events to PostgreSQL. The store is optional: when no
// DSN is configured the relay runs without it, and a write failure is
// logged but never surfaces to the request that triggered it.
package audit

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/callbridge/callbridge/internal/api"
	"github.com/callbridge/callbridge/internal/push"
	"github.com/callbridge/callbridge/internal/router"

	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store implements router.DecisionLogger, push.AttemptLogger and
// api.EventLogger using PostgreSQL.
type Store struct {
	db *sql.DB
}

// New opens a PostgreSQL connection and runs pending migrations.
func New(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgresql: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgresql: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{db: db}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	slog.Info("audit store opened")
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate runs all pending SQL migration files in order.
func (s *Store) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version := strings.TrimSuffix(entry.Name(), ".sql")

		var count int
		err := s.db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = $1", version).Scan(&count)
		if err != nil {
			return fmt.Errorf("checking migration %s: %w", version, err)
		}
		if count > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", version, err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %s: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("executing migration %s: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES ($1)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %s: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %s: %w", version, err)
		}

		slog.Info("applied migration", "version", version)
	}

	return nil
}

// LogDecision records one routing decision.
func (s *Store) LogDecision(rec router.DecisionRecord) {
	_, err := s.db.Exec(
		`INSERT INTO routing_decisions
		   (id, call_id, caller_number, callee_number, outcome, client_identity, reason, decided_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.NewString(), rec.CallID, rec.CallerNumber, rec.CalleeNumber,
		rec.Outcome, rec.ClientIdentity, rec.Reason, rec.DecidedAt,
	)
	if err != nil {
		slog.Error("audit: failed to record routing decision",
			"call_id", rec.CallID, "error", err)
	}
}

// LogPushAttempt records the outcome of one push dispatch. The token is
// stored truncated; it is a credential, not an identifier.
func (s *Store) LogPushAttempt(attempt push.Attempt) {
	errText := ""
	if attempt.Err != nil {
		errText = attempt.Err.Error()
	}
	_, err := s.db.Exec(
		`INSERT INTO push_attempts (id, call_id, token_prefix, success, error, attempted_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.NewString(), attempt.CallID, truncateToken(attempt.Token),
		attempt.Err == nil, errText, time.Now().UTC(),
	)
	if err != nil {
		slog.Error("audit: failed to record push attempt",
			"call_id", attempt.CallID, "error", err)
	}
}

// LogCallEvent records one provider lifecycle callback.
func (s *Store) LogCallEvent(ev api.CallEvent) {
	_, err := s.db.Exec(
		`INSERT INTO call_events (id, call_id, state, from_number, to_number, duration, received_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.NewString(), ev.CallID, ev.State, ev.From, ev.To, ev.Duration, ev.At,
	)
	if err != nil {
		slog.Error("audit: failed to record call event",
			"call_id", ev.CallID, "error", err)
	}
}

// truncateToken returns the first 12 characters of a push token for safe
// storage.
func truncateToken(token string) string {
	if len(token) <= 12 {
		return token
	}
	return token[:12] + "..."
}
