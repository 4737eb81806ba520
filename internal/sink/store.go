// Package sink persists ranked tables outside the table files: every row in
// a SQL database and one event per table on Kafka.
package sink

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/internal/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/review-term-analytics/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/pkg/postgres"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id      TEXT PRIMARY KEY,
	created_at  TEXT NOT NULL,
	table_count INTEGER NOT NULL,
	row_count   INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS term_scores (
	run_id   TEXT NOT NULL REFERENCES runs(run_id),
	category TEXT NOT NULL,
	bucket   TEXT NOT NULL,
	position INTEGER NOT NULL,
	term     TEXT NOT NULL,
	score    DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (run_id, category, bucket, term)
);
CREATE INDEX IF NOT EXISTS term_scores_scope ON term_scores (category, bucket, position);
`

// Store writes scored rows through database/sql. The driver only changes the
// placeholder syntax.
type Store struct {
	db     *sql.DB
	driver string
	logger *slog.Logger
}

func NewStore(db *sql.DB, driver string) (*Store, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("%w: unknown sink driver %q", apperrors.ErrInvalidConfig, driver)
	}
	return &Store{
		db:     db,
		driver: driver,
		logger: slog.Default().With("component", "score-store", "driver", driver),
	}, nil
}

func (s *Store) Driver() string {
	return s.driver
}

// EnsureSchema creates the tables if they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	return nil
}

func (s *Store) placeholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = s.ph(i + 1)
	}
	return strings.Join(parts, ", ")
}

// SaveRun stores every row of tables under runID in one transaction and
// returns the number of rows written. A failure leaves nothing behind.
func (s *Store) SaveRun(ctx context.Context, runID string, tables []ranker.Table) (int, error) {
	rows := 0
	for _, t := range tables {
		rows += len(t.Rows)
	}
	err := postgres.InTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO runs (run_id, created_at, table_count, row_count) VALUES ("+s.placeholders(4)+")",
			runID, time.Now().UTC().Format(time.RFC3339), len(tables), rows,
		); err != nil {
			return fmt.Errorf("inserting run %s: %w", runID, err)
		}
		stmt, err := tx.PrepareContext(ctx,
			"INSERT INTO term_scores (run_id, category, bucket, position, term, score) VALUES ("+s.placeholders(6)+")")
		if err != nil {
			return fmt.Errorf("preparing score insert: %w", err)
		}
		defer stmt.Close()
		for _, t := range tables {
			for i, row := range t.Rows {
				if _, err := stmt.ExecContext(ctx, runID, t.Scope.Category, string(t.Scope.Bucket), i+1, row.Term, row.Score); err != nil {
					return fmt.Errorf("inserting %s/%q: %w", t.Scope, row.Term, err)
				}
			}
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("scores stored", "run_id", runID, "tables", len(tables), "rows", rows)
	return rows, nil
}

// TopTerms returns the first limit rows of one scope for a run, in rank
// order.
func (s *Store) TopTerms(ctx context.Context, runID, category, bucket string, limit int) ([]ranker.ScoredTerm, error) {
	q := "SELECT term, score FROM term_scores WHERE run_id = " + s.ph(1) +
		" AND category = " + s.ph(2) + " AND bucket = " + s.ph(3) +
		" ORDER BY position LIMIT " + s.ph(4)
	rows, err := s.db.QueryContext(ctx, q, runID, category, bucket, limit)
	if err != nil {
		return nil, fmt.Errorf("querying top terms: %w", err)
	}
	defer rows.Close()
	var out []ranker.ScoredTerm
	for rows.Next() {
		var st ranker.ScoredTerm
		if err := rows.Scan(&st.Term, &st.Score); err != nil {
			return nil, fmt.Errorf("scanning top terms: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *Store) ph(i int) string {
	if s.driver == DriverPostgres {
		return fmt.Sprintf("$%d", i)
	}
	return "?"
}

// Ping verifies the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
