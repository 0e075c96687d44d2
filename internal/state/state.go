// Package state persists per-fingerprint alert lifecycle state and decides
// what follow-up action a normalized alert warrants. The store keeps one row
// per fingerprint; transitions are driven by the vendor-reported state and
// guarded against out-of-order delivery using the provider timestamp.
package state

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"alert-collector/internal/events"
)

// Action is the follow-up a downstream consumer should take for an alert.
type Action string

const (
	// ActionCreate opens a new incident for a firing alert.
	ActionCreate Action = "CREATE"
	// ActionComment annotates an already-open incident that is still firing.
	ActionComment Action = "COMMENT"
	// ActionClose closes the open incident for a resolved alert.
	ActionClose Action = "CLOSE"
	// ActionSkipStale drops out-of-order or already-settled notifications.
	ActionSkipStale Action = "SKIP_STALE"
	// ActionSkipManualClose drops notifications for alerts an operator
	// explicitly pinned closed.
	ActionSkipManualClose Action = "SKIP_MANUAL_CLOSE"
)

// Status is the stored lifecycle status of an alert.
type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

// AlertState is one row of stored lifecycle state.
type AlertState struct {
	Fingerprint         string
	Status              Status
	ManuallyClosed      bool
	LastProviderStateAt time.Time
	Title               string
	Team                string
	Priority            string
	UpdatedAt           time.Time
}

// Store wraps the Postgres connection holding alert state.
type Store struct {
	conn *sql.DB
}

// NewStore opens a Postgres connection for the given DSN and verifies it.
func NewStore(dsn string) (*Store, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("Successfully connected to PostgreSQL database")
	return &Store{conn: conn}, nil
}

// NewStoreWithConn wraps an existing connection. Used by tests.
func NewStoreWithConn(conn *sql.DB) *Store {
	return &Store{conn: conn}
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.conn != nil {
		slog.Info("Closing alert state database connection")
		return s.conn.Close()
	}
	return nil
}

// Load retrieves the stored state for a fingerprint.
// Returns (nil, nil) when no state exists yet.
func (s *Store) Load(ctx context.Context, fp string) (*AlertState, error) {
	query := `
		SELECT fingerprint, status, manually_closed, last_provider_state_at, title, team, priority, updated_at
		FROM alert_state
		WHERE fingerprint = $1
	`
	var st AlertState
	err := s.conn.QueryRowContext(ctx, query, fp).Scan(
		&st.Fingerprint,
		&st.Status,
		&st.ManuallyClosed,
		&st.LastProviderStateAt,
		&st.Title,
		&st.Team,
		&st.Priority,
		&st.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load alert state: %w", err)
	}
	return &st, nil
}

// Upsert writes the state row for a fingerprint, creating it if absent.
func (s *Store) Upsert(ctx context.Context, st *AlertState) error {
	query := `
		INSERT INTO alert_state (fingerprint, status, manually_closed, last_provider_state_at, title, team, priority, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (fingerprint) DO UPDATE SET
			status = EXCLUDED.status,
			manually_closed = EXCLUDED.manually_closed,
			last_provider_state_at = EXCLUDED.last_provider_state_at,
			title = EXCLUDED.title,
			team = EXCLUDED.team,
			priority = EXCLUDED.priority,
			updated_at = NOW()
	`
	_, err := s.conn.ExecContext(ctx, query,
		st.Fingerprint,
		st.Status,
		st.ManuallyClosed,
		st.LastProviderStateAt,
		st.Title,
		st.Team,
		st.Priority,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert alert state: %w", err)
	}
	return nil
}

// Transition loads the current state for a fingerprint, determines the
// action for the incoming alert, and persists the resulting state. Skip
// actions leave the stored row untouched.
func (s *Store) Transition(ctx context.Context, fp string, alert *events.AlertEvent) (Action, error) {
	occurredAt, err := time.Parse(time.RFC3339Nano, alert.OccurredAt)
	if err != nil {
		return "", fmt.Errorf("invalid occurred_at %q: %w", alert.OccurredAt, err)
	}

	existing, err := s.Load(ctx, fp)
	if err != nil {
		return "", err
	}

	action := DetermineAction(existing, alert, occurredAt)

	switch action {
	case ActionCreate, ActionComment:
		err = s.Upsert(ctx, &AlertState{
			Fingerprint:         fp,
			Status:              StatusOpen,
			ManuallyClosed:      false,
			LastProviderStateAt: occurredAt,
			Title:               alert.Title,
			Team:                alert.Team,
			Priority:            alert.Priority,
		})
	case ActionClose:
		err = s.Upsert(ctx, &AlertState{
			Fingerprint:         fp,
			Status:              StatusClosed,
			ManuallyClosed:      false,
			LastProviderStateAt: occurredAt,
			Title:               alert.Title,
			Team:                alert.Team,
			Priority:            alert.Priority,
		})
	}
	if err != nil {
		return "", err
	}
	return action, nil
}

// DetermineAction decides the follow-up for an incoming alert given its
// stored state. Pure; existing may be nil when the fingerprint has never
// been seen. Out-of-order notifications (provider timestamp older than the
// stored one) are skipped; downstream consumers reconcile ordering with
// occurred_at.
func DetermineAction(existing *AlertState, incoming *events.AlertEvent, occurredAt time.Time) Action {
	if existing == nil {
		if incoming.State == events.StateFiring {
			return ActionCreate
		}
		return ActionSkipStale
	}

	// Never auto-act on alerts an operator pinned closed.
	if existing.ManuallyClosed {
		return ActionSkipManualClose
	}

	if occurredAt.Before(existing.LastProviderStateAt) {
		return ActionSkipStale
	}

	switch incoming.State {
	case events.StateFiring:
		if existing.Status == StatusClosed {
			return ActionCreate
		}
		return ActionComment
	case events.StateResolved:
		if existing.Status == StatusOpen {
			return ActionClose
		}
		return ActionSkipStale
	}

	return ActionSkipStale
}
