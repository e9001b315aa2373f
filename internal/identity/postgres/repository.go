// Package postgres provides PostgreSQL implementation of identity repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/domain"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/identity"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/pkg/postgres"
)

const userColumns = `
	id, email, full_name, role, department, skills, availability,
	push_token, latitude, longitude, created_at, updated_at
`

// Repository implements identity.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateUser inserts a new profile.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(ctx, tx)

	lat, lng := splitLocation(user.Location)
	query := `
		INSERT INTO users (id, email, full_name, role, department, skills, availability,
			push_token, latitude, longitude, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
	`
	_, err = tx.Exec(ctx, query,
		user.ID,
		user.Email,
		user.FullName,
		user.Role,
		user.Department,
		nonNil(user.Skills),
		user.Availability,
		user.PushToken,
		lat,
		lng,
		user.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if pgErr.ConstraintName == "idx_users_email" {
				return identity.ErrEmailExists
			}
			return identity.ErrUserExists
		}
		return fmt.Errorf("insert user: %w", err)
	}

	if err := postgres.NotifyChange(ctx, tx, domain.Change{Topic: domain.TopicUsers, Key: user.ID}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetUserByID retrieves a profile by id.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	return getUser(ctx, r.db, id, false)
}

// MutateUser locks the profile row, applies fn and stores the mutable
// fields in one transaction. The role is never written.
func (r *Repository) MutateUser(ctx context.Context, id string, fn func(user *domain.User) error) (*domain.User, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(ctx, tx)

	user, err := getUser(ctx, tx, id, true)
	if err != nil {
		return nil, err
	}
	if err := fn(user); err != nil {
		return nil, err
	}
	user.UpdatedAt = time.Now().UTC()

	lat, lng := splitLocation(user.Location)
	query := `
		UPDATE users
		SET full_name = $2, department = $3, skills = $4, availability = $5,
			push_token = $6, latitude = $7, longitude = $8, updated_at = $9
		WHERE id = $1
	`
	_, err = tx.Exec(ctx, query,
		user.ID,
		user.FullName,
		user.Department,
		nonNil(user.Skills),
		user.Availability,
		user.PushToken,
		lat,
		lng,
		user.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	if err := postgres.NotifyChange(ctx, tx, domain.Change{Topic: domain.TopicUsers, Key: user.ID}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return user, nil
}

// ListUsers returns profiles ordered by name.
func (r *Repository) ListUsers(ctx context.Context, filter identity.UserFilter) ([]*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users`
	var conditions []string
	var args []interface{}
	argNum := 1

	if len(filter.Roles) > 0 {
		roles := make([]string, len(filter.Roles))
		for i, role := range filter.Roles {
			roles[i] = string(role)
		}
		conditions = append(conditions, fmt.Sprintf("role = ANY($%d)", argNum))
		args = append(args, roles)
		argNum++
	}
	if filter.Availability != nil {
		conditions = append(conditions, fmt.Sprintf("availability = $%d", argNum))
		args = append(args, *filter.Availability)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY full_name, id"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := make([]*domain.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getUser(ctx context.Context, q rowQuerier, id string, forUpdate bool) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}

	user, err := scanUser(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	var lat, lng *float64
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.FullName,
		&user.Role,
		&user.Department,
		&user.Skills,
		&user.Availability,
		&user.PushToken,
		&lat,
		&lng,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lat != nil && lng != nil {
		user.Location = &domain.Location{Lat: *lat, Lng: *lng}
	}
	return &user, nil
}

func rollback(ctx context.Context, tx pgx.Tx) {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		slog.Error("failed to rollback transaction", "error", err)
	}
}

func splitLocation(loc *domain.Location) (lat, lng *float64) {
	if loc == nil {
		return nil, nil
	}
	return &loc.Lat, &loc.Lng
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
