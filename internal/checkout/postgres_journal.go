package checkout

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// dbtx is the subset of *pgxpool.Pool used by the journal
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const createTransitionsTable = `
	CREATE TABLE IF NOT EXISTS checkout_transitions (
		id                TEXT PRIMARY KEY,
		session_id        TEXT NOT NULL,
		event_id          INTEGER NOT NULL,
		from_step         TEXT NOT NULL,
		to_step           TEXT NOT NULL,
		reason            TEXT,
		error_code        TEXT,
		reservation_id    INTEGER,
		purchase_group_id TEXT,
		created_at        TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_checkout_transitions_session
		ON checkout_transitions (session_id, created_at);
`

// PostgresJournal implements Journal using PostgreSQL
type PostgresJournal struct {
	db dbtx
}

// NewPostgresJournal creates a journal on a pgx pool or connection
func NewPostgresJournal(db dbtx) *PostgresJournal {
	return &PostgresJournal{db: db}
}

// EnsureSchema creates the transitions table when missing
func (j *PostgresJournal) EnsureSchema(ctx context.Context) error {
	if _, err := j.db.Exec(ctx, createTransitionsTable); err != nil {
		return fmt.Errorf("failed to create checkout_transitions: %w", err)
	}
	return nil
}

// Record appends a transition
func (j *PostgresJournal) Record(ctx context.Context, t Transition) error {
	query := `
		INSERT INTO checkout_transitions (
			id, session_id, event_id, from_step, to_step, reason,
			error_code, reservation_id, purchase_group_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	var reason, errorCode *string
	if t.Reason != "" {
		reason = &t.Reason
	}
	if t.ErrorCode != CodeUnknown {
		ec := string(t.ErrorCode)
		errorCode = &ec
	}

	_, err := j.db.Exec(ctx, query,
		t.ID,
		t.SessionID,
		t.EventID,
		string(t.From),
		string(t.To),
		reason,
		errorCode,
		t.ReservationID,
		t.PurchaseGroupID,
		t.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to save transition: %w", err)
	}
	return nil
}

// History returns the transitions of a session, oldest first
func (j *PostgresJournal) History(ctx context.Context, sessionID string) ([]Transition, error) {
	query := `
		SELECT id, session_id, event_id, from_step, to_step, reason,
			   error_code, reservation_id, purchase_group_id, created_at
		FROM checkout_transitions
		WHERE session_id = $1
		ORDER BY created_at ASC
	`

	rows, err := j.db.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transitions: %w", err)
	}
	defer rows.Close()

	result := make([]Transition, 0)
	for rows.Next() {
		var t Transition
		var from, to string
		var reason, errorCode *string

		if err := rows.Scan(
			&t.ID,
			&t.SessionID,
			&t.EventID,
			&from,
			&to,
			&reason,
			&errorCode,
			&t.ReservationID,
			&t.PurchaseGroupID,
			&t.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}

		t.From = Step(from)
		t.To = Step(to)
		if reason != nil {
			t.Reason = *reason
		}
		if errorCode != nil {
			t.ErrorCode = ErrorCode(*errorCode)
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transitions: %w", err)
	}

	return result, nil
}
