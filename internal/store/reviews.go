// internal/store/reviews.go
package store

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"familyski-workers/internal/common/errors"
	"familyski-workers/internal/models"
)

// AddReview stores one parent-review snippet collected during research.
func (s *Store) AddReview(ctx context.Context, review *models.Review) error {
	if review.ID == "" {
		review.ID = uuid.New().String()
	}
	if review.CreatedAt == "" {
		review.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO resort_reviews (id, resort_id, source, author_context, body, rating, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		review.ID, review.ResortID, review.Source, review.AuthorContext,
		review.Body, review.Rating, review.CreatedAt,
	)
	if err != nil {
		return errors.NewDatabaseInsertFailedError(err)
	}
	return nil
}

// GetAggregatedReviews concatenates the stored review bodies for a resort,
// newest first, in the form the sentiment assessor consumes. The caller
// compares the result against scoring.MinReviewLength before spending an
// LLM call on it.
func (s *Store) GetAggregatedReviews(ctx context.Context, resortID string) (string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT body
		FROM resort_reviews
		WHERE resort_id = $1
		ORDER BY created_at DESC`, resortID)
	if err != nil {
		return "", errors.NewQueryExecutionFailedError("get aggregated reviews", err)
	}
	defer rows.Close()

	var bodies []string
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return "", errors.NewQueryExecutionFailedError("scan review body", err)
		}
		if trimmed := strings.TrimSpace(body); trimmed != "" {
			bodies = append(bodies, trimmed)
		}
	}
	if err := rows.Err(); err != nil {
		return "", errors.NewQueryExecutionFailedError("get aggregated reviews", err)
	}
	return strings.Join(bodies, "\n\n"), nil
}
