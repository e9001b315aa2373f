// Package postgres provides PostgreSQL implementation of notifications repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/domain"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/notifications"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/pkg/postgres"
)

// Repository implements notifications.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create inserts a notification and signals the recipient's feed.
func (r *Repository) Create(ctx context.Context, n *domain.Notification) error {
	return r.inTx(ctx, n.UserID, func(tx pgx.Tx) error {
		query := `
			INSERT INTO notifications (user_id, title, message, type, incident_id, read, created_at)
			VALUES ($1, $2, $3, $4, $5, FALSE, $6)
			RETURNING id
		`
		if err := tx.QueryRow(ctx, query,
			n.UserID,
			n.Title,
			n.Message,
			n.Type,
			n.IncidentID,
			n.CreatedAt,
		).Scan(&n.ID); err != nil {
			return fmt.Errorf("insert notification: %w", err)
		}
		return nil
	})
}

// List returns the newest notifications of a user.
func (r *Repository) List(ctx context.Context, userID string, limit int) ([]*domain.Notification, error) {
	query := `
		SELECT id, user_id, title, message, type, incident_id, read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	items := make([]*domain.Notification, 0)
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(
			&n.ID,
			&n.UserID,
			&n.Title,
			&n.Message,
			&n.Type,
			&n.IncidentID,
			&n.Read,
			&n.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		items = append(items, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return items, nil
}

// UnreadCount returns the number of unread notifications of a user.
func (r *Repository) UnreadCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT read`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead marks a notification read. Only the recipient's rows match.
func (r *Repository) MarkRead(ctx context.Context, userID, id string) error {
	return r.inTx(ctx, userID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
		if err != nil {
			if postgres.IsInvalidInput(err) {
				return notifications.ErrNotificationNotFound
			}
			return fmt.Errorf("mark notification read: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return notifications.ErrNotificationNotFound
		}
		return nil
	})
}

// MarkAllRead marks every unread notification of a user as read.
func (r *Repository) MarkAllRead(ctx context.Context, userID string) (int, error) {
	var updated int
	err := r.inTx(ctx, userID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE notifications SET read = TRUE WHERE user_id = $1 AND NOT read`, userID)
		if err != nil {
			return fmt.Errorf("mark all notifications read: %w", err)
		}
		updated = int(tag.RowsAffected())
		return nil
	})
	return updated, err
}

// DeleteReadBefore removes read notifications created before cutoff and
// signals the feed of every user who lost rows.
func (r *Repository) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int, error) {
	var deleted int
	err := r.signalling(ctx, func(tx pgx.Tx) ([]string, error) {
		rows, err := tx.Query(ctx, `DELETE FROM notifications WHERE read AND created_at < $1 RETURNING user_id`, cutoff)
		if err != nil {
			return nil, fmt.Errorf("delete read notifications: %w", err)
		}
		defer rows.Close()

		seen := make(map[string]bool)
		var users []string
		for rows.Next() {
			var userID string
			if err := rows.Scan(&userID); err != nil {
				return nil, fmt.Errorf("scan deleted notification: %w", err)
			}
			deleted++
			if !seen[userID] {
				seen[userID] = true
				users = append(users, userID)
			}
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("delete read notifications: %w", err)
		}
		return users, nil
	})
	return deleted, err
}

// inTx runs fn and signals the user's feed on commit.
func (r *Repository) inTx(ctx context.Context, userID string, fn func(tx pgx.Tx) error) error {
	return r.signalling(ctx, func(tx pgx.Tx) ([]string, error) {
		if err := fn(tx); err != nil {
			return nil, err
		}
		return []string{userID}, nil
	})
}

// signalling runs fn and signals the feeds of the users it returns on commit.
func (r *Repository) signalling(ctx context.Context, fn func(tx pgx.Tx) ([]string, error)) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.Error("failed to rollback transaction", "error", err)
		}
	}()

	users, err := fn(tx)
	if err != nil {
		return err
	}

	for _, userID := range users {
		change := domain.Change{Topic: domain.TopicNotifications, Key: userID}
		if err := postgres.NotifyChange(ctx, tx, change); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
