package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/domain"
)

// ChangesChannel is the LISTEN/NOTIFY channel carrying committed write signals.
const ChangesChannel = "incidentdesk_changes"

// Execer is implemented by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// NotifyChange queues a change signal. Inside a transaction it is delivered
// to listeners only on commit, in commit order.
func NotifyChange(ctx context.Context, db Execer, change domain.Change) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}
	if _, err := db.Exec(ctx, "SELECT pg_notify($1, $2)", ChangesChannel, string(payload)); err != nil {
		return fmt.Errorf("notify change: %w", err)
	}
	return nil
}

// ParseChange decodes a notification payload.
func ParseChange(payload string) (domain.Change, error) {
	var change domain.Change
	if err := json.Unmarshal([]byte(payload), &change); err != nil {
		return domain.Change{}, fmt.Errorf("parse change: %w", err)
	}
	if change.Topic == "" {
		return domain.Change{}, fmt.Errorf("parse change: empty topic")
	}
	return change, nil
}

// IsInvalidInput reports whether err is a malformed literal such as a bad UUID.
func IsInvalidInput(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "22P02"
	}
	return false
}

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
