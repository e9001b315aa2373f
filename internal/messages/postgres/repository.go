// Package postgres provides PostgreSQL implementation of messages repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/domain"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/incidents"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/pkg/postgres"
)

// Repository implements messages.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create inserts a message and signals the incident thread.
func (r *Repository) Create(ctx context.Context, msg *domain.Message) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.Error("failed to rollback transaction", "error", err)
		}
	}()

	id := uuid.New().String()
	query := `
		INSERT INTO messages (id, incident_id, user_id, user_name, user_role, body, type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = tx.Exec(ctx, query,
		id,
		msg.IncidentID,
		msg.UserID,
		msg.UserName,
		msg.UserRole,
		msg.Message,
		msg.Type,
		msg.Timestamp,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if (errors.As(err, &pgErr) && pgErr.Code == "23503") || postgres.IsInvalidInput(err) {
			return incidents.ErrIncidentNotFound
		}
		return fmt.Errorf("insert message: %w", err)
	}

	change := domain.Change{Topic: domain.TopicMessages, Key: msg.IncidentID}
	if err := postgres.NotifyChange(ctx, tx, change); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	msg.ID = id
	return nil
}

// List returns the thread of an incident ordered by creation time.
func (r *Repository) List(ctx context.Context, incidentID string) ([]*domain.Message, error) {
	query := `
		SELECT id, incident_id, user_id, user_name, user_role, body, type, created_at
		FROM messages
		WHERE incident_id = $1
		ORDER BY created_at, id
	`
	rows, err := r.db.Query(ctx, query, incidentID)
	if err != nil {
		if postgres.IsInvalidInput(err) {
			return nil, incidents.ErrIncidentNotFound
		}
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	items := make([]*domain.Message, 0)
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.IncidentID,
			&msg.UserID,
			&msg.UserName,
			&msg.UserRole,
			&msg.Message,
			&msg.Type,
			&msg.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		items = append(items, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return items, nil
}
