// internal/store/content.go
package store

import (
	"context"
	"time"

	"familyski-workers/internal/common/errors"
	"familyski-workers/internal/models"
)

// UpsertContentSection writes one generated prose section. Regeneration
// overwrites in place; readers only ever see the latest text.
func (s *Store) UpsertContentSection(ctx context.Context, resortID, section, body string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO resort_content (resort_id, section, body, generated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (resort_id, section) DO UPDATE SET
			body = EXCLUDED.body,
			generated_at = EXCLUDED.generated_at`,
		resortID, section, body, now,
	)
	if err != nil {
		return errors.NewQueryExecutionFailedError("upsert content section", err)
	}
	return nil
}

// GetContentSections returns all generated sections for a resort. An
// empty map is normal for resorts that have not reached content
// generation yet.
func (s *Store) GetContentSections(ctx context.Context, resortID string) (models.ContentSections, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT section, body
		FROM resort_content
		WHERE resort_id = $1`, resortID)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("get content sections", err)
	}
	defer rows.Close()

	sections := models.ContentSections{}
	for rows.Next() {
		var section, body string
		if err := rows.Scan(&section, &body); err != nil {
			return nil, errors.NewQueryExecutionFailedError("scan content section", err)
		}
		sections[section] = body
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("get content sections", err)
	}
	return sections, nil
}
