// internal/store/store.go
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"familyski-workers/internal/common/errors"
	"familyski-workers/internal/models"
)

// Store owns all SQL against the resort directory database. Workers and
// backfill tools share one instance; everything goes through contexts so
// job timeouts cut queries short too.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateResort inserts a discovered resort together with its empty metrics
// row. The metrics row exists from day one so research and scoring can
// UPDATE unconditionally.
func (s *Store) CreateResort(ctx context.Context, r *models.Resort) error {
	exists, err := s.ResortExists(ctx, r.Slug)
	if err != nil {
		return err
	}
	if exists {
		return errors.NewDuplicateResortError(r.Slug)
	}

	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	now := time.Now().UTC().Format(time.RFC3339)
	if r.CreatedAt == "" {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	if r.Status == "" {
		r.Status = models.StatusDiscovered
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewDatabaseInsertFailedError(err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO resorts (id, slug, name, country, region, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		r.ID, r.Slug, r.Name, r.Country, r.Region, r.Status, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return errors.NewDatabaseInsertFailedError(err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO resort_metrics (resort_id) VALUES ($1)
		ON CONFLICT (resort_id) DO NOTHING`,
		r.ID,
	)
	if err != nil {
		return errors.NewDatabaseInsertFailedError(err)
	}

	if err := tx.Commit(); err != nil {
		return errors.NewDatabaseInsertFailedError(err)
	}
	return nil
}

// GetResortBySlug loads one resort.
func (s *Store) GetResortBySlug(ctx context.Context, slug string) (*models.Resort, error) {
	var r models.Resort
	err := s.db.QueryRowContext(ctx, `
		SELECT id, slug, name, country, region, status, created_at, updated_at
		FROM resorts
		WHERE slug = $1`, slug).
		Scan(&r.ID, &r.Slug, &r.Name, &r.Country, &r.Region, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewResortNotFoundError(slug)
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("get resort by slug", err)
	}
	return &r, nil
}

// ResortExists reports whether a resort with the slug is already known.
func (s *Store) ResortExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM resorts
			WHERE slug = $1
		)`, slug).Scan(&exists)
	if err != nil {
		return false, errors.NewQueryExecutionFailedError("resort exists check", err)
	}
	return exists, nil
}

// UpdateStatus moves a resort through its lifecycle.
func (s *Store) UpdateStatus(ctx context.Context, resortID string, status models.ResortStatus) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx, `
		UPDATE resorts
		SET status = $1, updated_at = $2
		WHERE id = $3`,
		status, now, resortID,
	)
	if err != nil {
		return errors.NewQueryExecutionFailedError("update resort status", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NewResortNotFoundError(resortID)
	}
	return nil
}

// ListFilter narrows ListResorts. Zero values mean "no constraint".
type ListFilter struct {
	Status  models.ResortStatus
	Country string

	// MissingScore selects resorts whose metrics row has no composite
	// score yet; the scoring backfill drives off it.
	MissingScore bool

	// StaleContentBefore (RFC3339) selects resorts with no generated
	// content at all, or any section older than the given instant; the
	// content backfill drives off it.
	StaleContentBefore string

	Limit int
}

// ListResorts returns resorts matching the filter, oldest first so
// backfills work through the backlog in discovery order.
func (s *Store) ListResorts(ctx context.Context, filter ListFilter) ([]models.Resort, error) {
	query := `
		SELECT r.id, r.slug, r.name, r.country, r.region, r.status, r.created_at, r.updated_at
		FROM resorts r`

	var conditions []string
	var args []interface{}

	if filter.MissingScore {
		query += ` JOIN resort_metrics m ON m.resort_id = r.id`
		conditions = append(conditions, "m.family_overall_score IS NULL")
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conditions = append(conditions, fmt.Sprintf("r.status = $%d", len(args)))
	}
	if filter.Country != "" {
		args = append(args, filter.Country)
		conditions = append(conditions, fmt.Sprintf("r.country = $%d", len(args)))
	}
	if filter.StaleContentBefore != "" {
		args = append(args, filter.StaleContentBefore)
		conditions = append(conditions, fmt.Sprintf(`(
			NOT EXISTS (SELECT 1 FROM resort_content c WHERE c.resort_id = r.id)
			OR EXISTS (SELECT 1 FROM resort_content c WHERE c.resort_id = r.id AND c.generated_at < $%d)
		)`, len(args)))
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY r.created_at ASC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("list resorts", err)
	}
	defer rows.Close()

	var resorts []models.Resort
	for rows.Next() {
		var r models.Resort
		if err := rows.Scan(&r.ID, &r.Slug, &r.Name, &r.Country, &r.Region, &r.Status, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, errors.NewQueryExecutionFailedError("scan resort row", err)
		}
		resorts = append(resorts, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("list resorts", err)
	}
	return resorts, nil
}
