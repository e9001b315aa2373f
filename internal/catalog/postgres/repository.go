// Package postgres provides PostgreSQL implementation of the catalog repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/catalog"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/domain"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/pkg/postgres"
)

// Repository implements the catalog.Repository interface using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Create inserts a category and its subcategories.
func (r *Repository) Create(ctx context.Context, category *domain.Category) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO categories (name, priority, icon, color, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $6)
			RETURNING id
		`
		err := tx.QueryRow(ctx, query,
			category.Name,
			category.Priority,
			category.Icon,
			category.Color,
			category.Status,
			category.CreatedAt,
		).Scan(&category.ID)
		if err != nil {
			if postgres.IsUniqueViolation(err) {
				return fmt.Errorf("%w: category %q", catalog.ErrDuplicateName, category.Name)
			}
			return fmt.Errorf("insert category: %w", err)
		}
		if err := insertSubcategories(ctx, tx, category); err != nil {
			return err
		}
		return notify(ctx, tx, category.ID)
	})
}

// Get retrieves a category by id.
func (r *Repository) Get(ctx context.Context, id string) (*domain.Category, error) {
	return getCategory(ctx, r.db, id, false)
}

// List retrieves categories ordered by name.
func (r *Repository) List(ctx context.Context, filter catalog.Filter) ([]*domain.Category, error) {
	query := `
		SELECT id, name, priority, icon, color, status, created_at, updated_at
		FROM categories
	`
	if !filter.IncludeArchived {
		query += " WHERE status = 'Active'"
	}
	query += " ORDER BY name, id"

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := make([]*domain.Category, 0)
	ids := make([]string, 0)
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(
			&c.ID,
			&c.Name,
			&c.Priority,
			&c.Icon,
			&c.Color,
			&c.Status,
			&c.CreatedAt,
			&c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, &c)
		ids = append(ids, c.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}

	subs, err := subcategories(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}
	for _, c := range categories {
		c.Subcategories = subs[c.ID]
		if c.Subcategories == nil {
			c.Subcategories = []domain.Subcategory{}
		}
	}
	return categories, nil
}

// Mutate locks the category row, applies fn and stores the category
// fields and subcategory list in one transaction.
func (r *Repository) Mutate(ctx context.Context, id string, fn func(c *domain.Category) error) (*domain.Category, error) {
	var category *domain.Category
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		category, err = getCategory(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if err := fn(category); err != nil {
			return err
		}

		query := `
			UPDATE categories
			SET name = $2, priority = $3, icon = $4, color = $5, status = $6, updated_at = $7
			WHERE id = $1
		`
		_, err = tx.Exec(ctx, query,
			category.ID,
			category.Name,
			category.Priority,
			category.Icon,
			category.Color,
			category.Status,
			category.UpdatedAt,
		)
		if err != nil {
			if postgres.IsUniqueViolation(err) {
				return fmt.Errorf("%w: category %q", catalog.ErrDuplicateName, category.Name)
			}
			return fmt.Errorf("update category: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM subcategories WHERE category_id = $1`, category.ID); err != nil {
			return fmt.Errorf("delete old subcategories: %w", err)
		}
		if err := insertSubcategories(ctx, tx, category); err != nil {
			return err
		}
		return notify(ctx, tx, category.ID)
	})
	if err != nil {
		return nil, err
	}
	return category, nil
}

// Delete removes a category. Subcategories cascade.
func (r *Repository) Delete(ctx context.Context, id string) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
		if err != nil {
			if postgres.IsInvalidInput(err) {
				return catalog.ErrCategoryNotFound
			}
			return fmt.Errorf("delete category: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return catalog.ErrCategoryNotFound
		}
		return notify(ctx, tx, id)
	})
}

// Count returns the number of categories, archived included.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM categories`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count categories: %w", err)
	}
	return count, nil
}

func getCategory(ctx context.Context, q querier, id string, forUpdate bool) (*domain.Category, error) {
	query := `
		SELECT id, name, priority, icon, color, status, created_at, updated_at
		FROM categories
		WHERE id = $1
	`
	if forUpdate {
		query += " FOR UPDATE"
	}

	var c domain.Category
	err := q.QueryRow(ctx, query, id).Scan(
		&c.ID,
		&c.Name,
		&c.Priority,
		&c.Icon,
		&c.Color,
		&c.Status,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || postgres.IsInvalidInput(err) {
			return nil, catalog.ErrCategoryNotFound
		}
		return nil, fmt.Errorf("get category: %w", err)
	}

	subs, err := subcategories(ctx, q, []string{c.ID})
	if err != nil {
		return nil, err
	}
	c.Subcategories = subs[c.ID]
	if c.Subcategories == nil {
		c.Subcategories = []domain.Subcategory{}
	}
	return &c, nil
}

func subcategories(ctx context.Context, q querier, categoryIDs []string) (map[string][]domain.Subcategory, error) {
	out := make(map[string][]domain.Subcategory, len(categoryIDs))
	if len(categoryIDs) == 0 {
		return out, nil
	}

	query := `
		SELECT category_id, id, name, active
		FROM subcategories
		WHERE category_id = ANY($1)
		ORDER BY category_id, position
	`
	rows, err := q.Query(ctx, query, categoryIDs)
	if err != nil {
		return nil, fmt.Errorf("list subcategories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var categoryID string
		var sub domain.Subcategory
		if err := rows.Scan(&categoryID, &sub.ID, &sub.Name, &sub.Active); err != nil {
			return nil, fmt.Errorf("scan subcategory: %w", err)
		}
		out[categoryID] = append(out[categoryID], sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subcategories: %w", err)
	}
	return out, nil
}

func insertSubcategories(ctx context.Context, tx pgx.Tx, category *domain.Category) error {
	query := `
		INSERT INTO subcategories (id, category_id, name, active, position)
		VALUES ($1, $2, $3, $4, $5)
	`
	for i, sub := range category.Subcategories {
		if _, err := tx.Exec(ctx, query, sub.ID, category.ID, sub.Name, sub.Active, i); err != nil {
			if postgres.IsUniqueViolation(err) {
				return fmt.Errorf("%w: subcategory %q", catalog.ErrDuplicateName, sub.Name)
			}
			return fmt.Errorf("insert subcategory: %w", err)
		}
	}
	return nil
}

func notify(ctx context.Context, tx pgx.Tx, id string) error {
	return postgres.NotifyChange(ctx, tx, domain.Change{Topic: domain.TopicCategories, Key: id})
}

func (r *Repository) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.Error("failed to rollback transaction", "error", err)
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
