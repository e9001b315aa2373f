// Package postgres provides PostgreSQL implementation of incidents repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/domain"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/incidents"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/pkg/postgres"
)

// querier is an interface for database operations that both *pgxpool.Pool and pgx.Tx implement.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const incidentColumns = `
	id, title, description, category, subcategory_id, department, office, area,
	latitude, longitude, priority, status, reporter_id, reporter_name,
	assigned_to, assigned_to_name, assigned_to_role, reviewed_by, reviewed_at,
	rejection_reason, evidence_urls, version, created_at, updated_at, resolved_at
`

// Repository implements incidents.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create inserts the incident and its initial history in one transaction.
func (r *Repository) Create(ctx context.Context, inc *domain.Incident) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(ctx, tx)

	lat, lng := splitLocation(inc.Location)
	query := `
		INSERT INTO incidents (
			title, description, category, subcategory_id, department, office, area,
			latitude, longitude, priority, status, reporter_id, reporter_name,
			evidence_urls, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, 1, $15, $15)
		RETURNING id, version
	`
	err = tx.QueryRow(ctx, query,
		inc.Title,
		inc.Description,
		inc.Category,
		inc.SubcategoryID,
		inc.Department,
		inc.Office,
		inc.Area,
		lat,
		lng,
		inc.Priority,
		inc.Status,
		inc.ReporterID,
		inc.ReporterName,
		nonNil(inc.EvidenceURLs),
		inc.CreatedAt,
	).Scan(&inc.ID, &inc.Version)
	if err != nil {
		return fmt.Errorf("insert incident: %w", err)
	}

	for i, entry := range inc.StatusHistory {
		if err := insertHistory(ctx, tx, inc.ID, i+1, entry); err != nil {
			return err
		}
	}

	if err := postgres.NotifyChange(ctx, tx, domain.Change{Topic: domain.TopicIncidents, Key: inc.ID}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Get retrieves an incident with its full history.
func (r *Repository) Get(ctx context.Context, id string) (*domain.Incident, error) {
	inc, err := getIncident(ctx, r.db, id, false)
	if err != nil {
		return nil, err
	}

	history, err := loadHistory(ctx, r.db, []string{inc.ID})
	if err != nil {
		return nil, err
	}
	inc.StatusHistory = history[inc.ID]

	return inc, nil
}

// List retrieves incidents matching the filter, newest first.
func (r *Repository) List(ctx context.Context, filter incidents.Filter) ([]*domain.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE 1=1`
	args := []interface{}{}
	argNum := 1

	if filter.ReporterID != nil {
		query += fmt.Sprintf(" AND reporter_id = $%d", argNum)
		args = append(args, *filter.ReporterID)
		argNum++
	}

	if filter.AssignedTo != nil {
		query += fmt.Sprintf(" AND assigned_to = $%d", argNum)
		args = append(args, *filter.AssignedTo)
		argNum++
	}

	if filter.Unassigned {
		query += " AND assigned_to IS NULL"
	}

	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		query += fmt.Sprintf(" AND status = ANY($%d)", argNum)
		args = append(args, statuses)
		argNum++
	}

	if filter.Category != nil {
		query += fmt.Sprintf(" AND category = $%d", argNum)
		args = append(args, *filter.Category)
		argNum++
	}

	if filter.CreatedSince != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argNum)
		args = append(args, *filter.CreatedSince)
		argNum++
	}

	query += " ORDER BY created_at DESC, id"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, filter.Limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	defer rows.Close()

	list := make([]*domain.Incident, 0)
	ids := make([]string, 0)
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		list = append(list, inc)
		ids = append(ids, inc.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate incidents: %w", err)
	}

	if len(ids) == 0 {
		return list, nil
	}

	history, err := loadHistory(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}
	for _, inc := range list {
		inc.StatusHistory = history[inc.ID]
	}

	return list, nil
}

// Mutate locks the incident row, applies fn and writes the result together
// with at most one new history entry.
func (r *Repository) Mutate(ctx context.Context, id string, fn incidents.MutateFunc) (*domain.Incident, error) {
	return r.mutate(ctx, id, "", func(inc *domain.Incident, _ *domain.User) (*domain.StatusHistoryEntry, error) {
		return fn(inc)
	})
}

// MutateWithResponder is Mutate with the responder's profile locked FOR SHARE
// after the incident row, so availability changes wait for the commit.
func (r *Repository) MutateWithResponder(ctx context.Context, id, responderID string, fn incidents.AssignFunc) (*domain.Incident, error) {
	return r.mutate(ctx, id, responderID, fn)
}

func (r *Repository) mutate(ctx context.Context, id, responderID string, fn incidents.AssignFunc) (*domain.Incident, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(ctx, tx)

	inc, err := getIncident(ctx, tx, id, true)
	if err != nil {
		return nil, err
	}

	history, err := loadHistory(ctx, tx, []string{inc.ID})
	if err != nil {
		return nil, err
	}
	inc.StatusHistory = history[inc.ID]

	var responder *domain.User
	if responderID != "" {
		responder, err = lockResponder(ctx, tx, responderID)
		if err != nil {
			return nil, err
		}
	}

	beforeStatus := inc.Status
	beforeVersion := inc.Version
	seq := len(inc.StatusHistory) + 1

	entry, err := fn(inc, responder)
	if err != nil {
		return nil, err
	}

	if entry == nil && inc.Status != beforeStatus {
		return nil, fmt.Errorf("status change %s -> %s without history entry", beforeStatus, inc.Status)
	}
	if entry != nil && entry.Status != inc.Status {
		return nil, fmt.Errorf("history entry status %s does not match incident status %s", entry.Status, inc.Status)
	}

	now := time.Now().UTC()
	lat, lng := splitLocation(inc.Location)

	query := `
		UPDATE incidents SET
			title = $3, description = $4, category = $5, subcategory_id = $6,
			department = $7, office = $8, area = $9, latitude = $10, longitude = $11,
			priority = $12, status = $13, assigned_to = $14, assigned_to_name = $15,
			assigned_to_role = $16, reviewed_by = $17, reviewed_at = $18,
			rejection_reason = $19, evidence_urls = $20, resolved_at = $21,
			version = version + 1, updated_at = $22
		WHERE id = $1 AND version = $2
		RETURNING version, updated_at
	`
	err = tx.QueryRow(ctx, query,
		inc.ID,
		beforeVersion,
		inc.Title,
		inc.Description,
		inc.Category,
		inc.SubcategoryID,
		inc.Department,
		inc.Office,
		inc.Area,
		lat,
		lng,
		inc.Priority,
		inc.Status,
		inc.AssignedTo,
		inc.AssignedToName,
		inc.AssignedToRole,
		inc.ReviewedBy,
		inc.ReviewedAt,
		inc.RejectionReason,
		nonNil(inc.EvidenceURLs),
		inc.ResolvedAt,
		now,
	).Scan(&inc.Version, &inc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("update incident %s: version %d changed underneath", id, beforeVersion)
		}
		return nil, fmt.Errorf("update incident: %w", err)
	}

	if entry != nil {
		if entry.Timestamp.IsZero() {
			entry.Timestamp = now
		}
		if err := insertHistory(ctx, tx, inc.ID, seq, *entry); err != nil {
			return nil, err
		}
		inc.StatusHistory = append(inc.StatusHistory, *entry)
	}

	if err := postgres.NotifyChange(ctx, tx, domain.Change{Topic: domain.TopicIncidents, Key: inc.ID}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return inc, nil
}

func lockResponder(ctx context.Context, q querier, id string) (*domain.User, error) {
	query := `
		SELECT id, email, full_name, role, availability
		FROM users
		WHERE id = $1
		FOR SHARE
	`
	var u domain.User
	err := q.QueryRow(ctx, query, id).Scan(&u.ID, &u.Email, &u.FullName, &u.Role, &u.Availability)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, incidents.ErrResponderNotFound
		}
		return nil, fmt.Errorf("lock responder: %w", err)
	}
	return &u, nil
}

func getIncident(ctx context.Context, q querier, id string, forUpdate bool) (*domain.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE id = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}

	inc, err := scanIncident(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || postgres.IsInvalidInput(err) {
			return nil, incidents.ErrIncidentNotFound
		}
		return nil, fmt.Errorf("get incident: %w", err)
	}
	return inc, nil
}

func scanIncident(row pgx.Row) (*domain.Incident, error) {
	var inc domain.Incident
	var lat, lng *float64
	err := row.Scan(
		&inc.ID,
		&inc.Title,
		&inc.Description,
		&inc.Category,
		&inc.SubcategoryID,
		&inc.Department,
		&inc.Office,
		&inc.Area,
		&lat,
		&lng,
		&inc.Priority,
		&inc.Status,
		&inc.ReporterID,
		&inc.ReporterName,
		&inc.AssignedTo,
		&inc.AssignedToName,
		&inc.AssignedToRole,
		&inc.ReviewedBy,
		&inc.ReviewedAt,
		&inc.RejectionReason,
		&inc.EvidenceURLs,
		&inc.Version,
		&inc.CreatedAt,
		&inc.UpdatedAt,
		&inc.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	if lat != nil && lng != nil {
		inc.Location = &domain.Location{Lat: *lat, Lng: *lng}
	}
	if inc.EvidenceURLs == nil {
		inc.EvidenceURLs = make([]string, 0)
	}
	return &inc, nil
}

func loadHistory(ctx context.Context, q querier, ids []string) (map[string][]domain.StatusHistoryEntry, error) {
	query := `
		SELECT incident_id, status, note, actor, created_at
		FROM incident_history
		WHERE incident_id = ANY($1)
		ORDER BY incident_id, seq
	`
	rows, err := q.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	history := make(map[string][]domain.StatusHistoryEntry, len(ids))
	for rows.Next() {
		var incidentID string
		var entry domain.StatusHistoryEntry
		if err := rows.Scan(&incidentID, &entry.Status, &entry.Note, &entry.User, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		history[incidentID] = append(history[incidentID], entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return history, nil
}

func insertHistory(ctx context.Context, q querier, incidentID string, seq int, entry domain.StatusHistoryEntry) error {
	query := `
		INSERT INTO incident_history (incident_id, seq, status, note, actor, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := q.Exec(ctx, query, incidentID, seq, entry.Status, entry.Note, entry.User, entry.Timestamp); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func rollback(ctx context.Context, tx pgx.Tx) {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		slog.Error("failed to rollback transaction", "error", err)
	}
}

func splitLocation(loc *domain.Location) (*float64, *float64) {
	if loc == nil {
		return nil, nil
	}
	lat, lng := loc.Lat, loc.Lng
	return &lat, &lng
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
