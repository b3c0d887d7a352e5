// internal/store/metrics.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"familyski-workers/internal/common/errors"
	"familyski-workers/internal/models"
)

// GetMetrics loads the structured attributes for a resort. A missing
// metrics row is not an error: it reads as all-unknown, the same as a
// freshly discovered resort.
func (s *Store) GetMetrics(ctx context.Context, resortID string) (*models.FamilyMetrics, error) {
	var (
		hasChildcare         sql.NullBool
		kidsEquipmentRental  sql.NullBool
		minSkiSchoolAge      sql.NullInt64
		hasMagicCarpet       sql.NullBool
		beginnerTerrainPct   sql.NullFloat64
		avgDayPassUSD        sql.NullFloat64
		transferTimeMinutes  sql.NullInt64
		familyLodgingOnSlope sql.NullBool
		bestAgeRange         sql.NullString
		nightSkiing          sql.NullBool
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT has_childcare, kids_equipment_rental, min_ski_school_age, has_magic_carpet,
		       beginner_terrain_pct, avg_day_pass_usd, transfer_time_minutes,
		       family_lodging_on_slope, best_age_range, night_skiing
		FROM resort_metrics
		WHERE resort_id = $1`, resortID).
		Scan(&hasChildcare, &kidsEquipmentRental, &minSkiSchoolAge, &hasMagicCarpet,
			&beginnerTerrainPct, &avgDayPassUSD, &transferTimeMinutes,
			&familyLodgingOnSlope, &bestAgeRange, &nightSkiing)
	if err == sql.ErrNoRows {
		return &models.FamilyMetrics{}, nil
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("get resort metrics", err)
	}

	m := &models.FamilyMetrics{}
	if hasChildcare.Valid {
		m.HasChildcare = &hasChildcare.Bool
	}
	if kidsEquipmentRental.Valid {
		m.KidsEquipmentRental = &kidsEquipmentRental.Bool
	}
	if minSkiSchoolAge.Valid {
		age := int(minSkiSchoolAge.Int64)
		m.MinSkiSchoolAge = &age
	}
	if hasMagicCarpet.Valid {
		m.HasMagicCarpet = &hasMagicCarpet.Bool
	}
	if beginnerTerrainPct.Valid {
		m.BeginnerTerrainPct = &beginnerTerrainPct.Float64
	}
	if avgDayPassUSD.Valid {
		m.AvgDayPassUSD = &avgDayPassUSD.Float64
	}
	if transferTimeMinutes.Valid {
		minutes := int(transferTimeMinutes.Int64)
		m.TransferTimeMinutes = &minutes
	}
	if familyLodgingOnSlope.Valid {
		m.FamilyLodgingOnSlope = &familyLodgingOnSlope.Bool
	}
	if bestAgeRange.Valid {
		m.BestAgeRange = &bestAgeRange.String
	}
	if nightSkiing.Valid {
		m.NightSkiing = &nightSkiing.Bool
	}
	return m, nil
}

// UpdateMetrics writes the full metrics snapshot for a resort. Research
// merges patches in memory and persists the result here, so nil fields
// really do mean "still unknown" rather than "not updated this round".
func (s *Store) UpdateMetrics(ctx context.Context, resortID string, m *models.FamilyMetrics) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO resort_metrics (
			resort_id, has_childcare, kids_equipment_rental, min_ski_school_age,
			has_magic_carpet, beginner_terrain_pct, avg_day_pass_usd,
			transfer_time_minutes, family_lodging_on_slope, best_age_range, night_skiing
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (resort_id) DO UPDATE SET
			has_childcare = EXCLUDED.has_childcare,
			kids_equipment_rental = EXCLUDED.kids_equipment_rental,
			min_ski_school_age = EXCLUDED.min_ski_school_age,
			has_magic_carpet = EXCLUDED.has_magic_carpet,
			beginner_terrain_pct = EXCLUDED.beginner_terrain_pct,
			avg_day_pass_usd = EXCLUDED.avg_day_pass_usd,
			transfer_time_minutes = EXCLUDED.transfer_time_minutes,
			family_lodging_on_slope = EXCLUDED.family_lodging_on_slope,
			best_age_range = EXCLUDED.best_age_range,
			night_skiing = EXCLUDED.night_skiing`,
		resortID, m.HasChildcare, m.KidsEquipmentRental, m.MinSkiSchoolAge,
		m.HasMagicCarpet, m.BeginnerTerrainPct, m.AvgDayPassUSD,
		m.TransferTimeMinutes, m.FamilyLodgingOnSlope, m.BestAgeRange, m.NightSkiing,
	)
	if err != nil {
		return errors.NewQueryExecutionFailedError("update resort metrics", err)
	}
	return nil
}

// SaveCompositeScore overwrites the persisted score in one UPDATE. Every
// scoring run is a full recomputation; there is no partial write path.
func (s *Store) SaveCompositeScore(ctx context.Context, resortID string, score *models.CompositeScore) error {
	dimensionsJSON, err := json.Marshal(score.Dimensions)
	if err != nil {
		return errors.NewQueryExecutionFailedError("marshal score dimensions", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE resort_metrics SET
			family_overall_score = $1,
			structural_score = $2,
			content_score = $3,
			review_score = $4,
			score_confidence = $5,
			score_reasoning = $6,
			score_dimensions = $7,
			scored_at = $8
		WHERE resort_id = $9`,
		score.FamilyScore,
		score.StructuralScore,
		score.ContentScore,
		score.ReviewScore,
		string(score.Confidence),
		score.Reasoning,
		dimensionsJSON,
		score.ScoredAt.Format(time.RFC3339),
		resortID,
	)
	if err != nil {
		return errors.NewQueryExecutionFailedError("save composite score", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NewResortNotFoundError(resortID)
	}
	return nil
}

// GetCompositeScore reads the persisted score back. Resorts that were
// never scored return a typed error the publish gate can branch on.
func (s *Store) GetCompositeScore(ctx context.Context, resortID string) (*models.CompositeScore, error) {
	var (
		familyScore    sql.NullFloat64
		structural     sql.NullFloat64
		contentScore   sql.NullFloat64
		reviewScore    sql.NullFloat64
		confidence     sql.NullString
		reasoning      sql.NullString
		dimensionsJSON []byte
		scoredAt       sql.NullString
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT family_overall_score, structural_score, content_score, review_score,
		       score_confidence, score_reasoning, score_dimensions, scored_at
		FROM resort_metrics
		WHERE resort_id = $1`, resortID).
		Scan(&familyScore, &structural, &contentScore, &reviewScore,
			&confidence, &reasoning, &dimensionsJSON, &scoredAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewScoreMissingError(resortID)
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("get composite score", err)
	}
	if !familyScore.Valid {
		return nil, errors.NewScoreMissingError(resortID)
	}

	score := &models.CompositeScore{
		FamilyScore:     familyScore.Float64,
		StructuralScore: structural.Float64,
		Confidence:      models.Confidence(confidence.String),
		Reasoning:       reasoning.String,
	}
	if contentScore.Valid {
		score.ContentScore = &contentScore.Float64
	}
	if reviewScore.Valid {
		score.ReviewScore = &reviewScore.Float64
	}
	if len(dimensionsJSON) > 0 {
		if err := json.Unmarshal(dimensionsJSON, &score.Dimensions); err != nil {
			return nil, errors.NewQueryExecutionFailedError("unmarshal score dimensions", err)
		}
	}
	if scoredAt.Valid {
		if ts, err := time.Parse(time.RFC3339, scoredAt.String); err == nil {
			score.ScoredAt = ts
		}
	}
	return score, nil
}
