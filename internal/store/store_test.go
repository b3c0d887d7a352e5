// internal/store/store_test.go
package store

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	apperrors "familyski-workers/internal/common/errors"
	"familyski-workers/internal/models"
)

// ==========================
// Test Helpers
// ==========================

func asStandardError(t *testing.T, err error) *apperrors.StandardError {
	t.Helper()
	stdErr, ok := err.(*apperrors.StandardError)
	assert.True(t, ok, "expected *StandardError, got %T", err)
	return stdErr
}

func resortRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "slug", "name", "country", "region", "status", "created_at", "updated_at",
	})
}

// ==========================
// CreateResort Tests
// ==========================

func TestCreateResort_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("zermatt").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO resorts`).
		WithArgs(
			sqlmock.AnyArg(),
			"zermatt",
			"Zermatt",
			"Switzerland",
			"Valais",
			"discovered",
			sqlmock.AnyArg(),
			sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO resort_metrics`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	s := New(db)
	resort := &models.Resort{
		Slug:    "zermatt",
		Name:    "Zermatt",
		Country: "Switzerland",
		Region:  "Valais",
	}
	err = s.CreateResort(context.Background(), resort)

	assert.NoError(t, err)
	assert.NotEmpty(t, resort.ID)
	assert.Equal(t, models.StatusDiscovered, resort.Status)

	// Defaulted timestamps must be RFC3339.
	_, err = time.Parse(time.RFC3339, resort.CreatedAt)
	assert.NoError(t, err)
	_, err = time.Parse(time.RFC3339, resort.UpdatedAt)
	assert.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateResort_DuplicateSlug(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("zermatt").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	s := New(db)
	err = s.CreateResort(context.Background(), &models.Resort{
		Slug:    "zermatt",
		Name:    "Zermatt",
		Country: "Switzerland",
	})

	assert.Error(t, err)
	stdErr := asStandardError(t, err)
	assert.Equal(t, apperrors.ErrCodeDuplicateResort, stdErr.Code)
	assert.False(t, stdErr.Retryable)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateResort_InsertError(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("zermatt").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO resorts`).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	s := New(db)
	err = s.CreateResort(context.Background(), &models.Resort{
		Slug:    "zermatt",
		Name:    "Zermatt",
		Country: "Switzerland",
	})

	assert.Error(t, err)
	stdErr := asStandardError(t, err)
	assert.Equal(t, apperrors.ErrCodeDatabaseInsertFailed, stdErr.Code)
	assert.True(t, stdErr.Retryable)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateResort_KeepsProvidedIdentity(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("val-thorens").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO resorts`).
		WithArgs(
			"resort-123",
			"val-thorens",
			"Val Thorens",
			"France",
			"",
			"researched",
			"2026-08-01T00:00:00Z",
			sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO resort_metrics`).
		WithArgs("resort-123").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	s := New(db)
	resort := &models.Resort{
		ID:        "resort-123",
		Slug:      "val-thorens",
		Name:      "Val Thorens",
		Country:   "France",
		Status:    models.StatusResearched,
		CreatedAt: "2026-08-01T00:00:00Z",
	}
	err = s.CreateResort(context.Background(), resort)

	assert.NoError(t, err)
	assert.Equal(t, "resort-123", resort.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// GetResortBySlug Tests
// ==========================

func TestGetResortBySlug_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT id, slug, name, country, region, status`).
		WithArgs("zermatt").
		WillReturnRows(resortRows().AddRow(
			"resort-123", "zermatt", "Zermatt", "Switzerland", "Valais",
			"published", "2026-08-01T00:00:00Z", "2026-08-10T00:00:00Z",
		))

	s := New(db)
	resort, err := s.GetResortBySlug(context.Background(), "zermatt")

	assert.NoError(t, err)
	assert.Equal(t, "resort-123", resort.ID)
	assert.Equal(t, "Zermatt", resort.Name)
	assert.Equal(t, models.StatusPublished, resort.Status)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetResortBySlug_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT id, slug, name, country, region, status`).
		WithArgs("atlantis").
		WillReturnRows(resortRows())

	s := New(db)
	resort, err := s.GetResortBySlug(context.Background(), "atlantis")

	assert.Error(t, err)
	assert.Nil(t, resort)
	stdErr := asStandardError(t, err)
	assert.Equal(t, apperrors.ErrCodeResortNotFound, stdErr.Code)

	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// ResortExists Tests
// ==========================

func TestResortExists(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("zermatt").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	s := New(db)
	exists, err := s.ResortExists(context.Background(), "zermatt")

	assert.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// UpdateStatus Tests
// ==========================

func TestUpdateStatus_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE resorts`).
		WithArgs("researched", sqlmock.AnyArg(), "resort-123").
		WillReturnResult(sqlmock.NewResult(0, 1))

	s := New(db)
	err = s.UpdateStatus(context.Background(), "resort-123", models.StatusResearched)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatus_UnknownResort(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE resorts`).
		WithArgs("published", sqlmock.AnyArg(), "resort-missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	s := New(db)
	err = s.UpdateStatus(context.Background(), "resort-missing", models.StatusPublished)

	assert.Error(t, err)
	stdErr := asStandardError(t, err)
	assert.Equal(t, apperrors.ErrCodeResortNotFound, stdErr.Code)

	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// ListResorts Tests
// ==========================

func TestListResorts_NoFilter(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT r.id, r.slug`).
		WillReturnRows(resortRows().
			AddRow("r-1", "zermatt", "Zermatt", "Switzerland", "Valais", "published", "2026-08-01T00:00:00Z", "2026-08-10T00:00:00Z").
			AddRow("r-2", "laax", "Laax", "Switzerland", "Graubunden", "draft", "2026-08-02T00:00:00Z", "2026-08-11T00:00:00Z"))

	s := New(db)
	resorts, err := s.ListResorts(context.Background(), ListFilter{})

	assert.NoError(t, err)
	assert.Len(t, resorts, 2)
	assert.Equal(t, "zermatt", resorts[0].Slug)
	assert.Equal(t, "laax", resorts[1].Slug)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListResorts_StatusCountryLimit(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT r.id, r.slug`).
		WithArgs("researched", "Austria", 25).
		WillReturnRows(resortRows().
			AddRow("r-3", "ischgl", "Ischgl", "Austria", "Tyrol", "researched", "2026-08-03T00:00:00Z", "2026-08-12T00:00:00Z"))

	s := New(db)
	resorts, err := s.ListResorts(context.Background(), ListFilter{
		Status:  models.StatusResearched,
		Country: "Austria",
		Limit:   25,
	})

	assert.NoError(t, err)
	assert.Len(t, resorts, 1)
	assert.Equal(t, "ischgl", resorts[0].Slug)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListResorts_MissingScoreJoinsMetrics(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`JOIN resort_metrics`).
		WillReturnRows(resortRows().
			AddRow("r-4", "nozawa", "Nozawa Onsen", "Japan", "Nagano", "draft", "2026-08-04T00:00:00Z", "2026-08-13T00:00:00Z"))

	s := New(db)
	resorts, err := s.ListResorts(context.Background(), ListFilter{MissingScore: true})

	assert.NoError(t, err)
	assert.Len(t, resorts, 1)
	assert.Equal(t, "nozawa", resorts[0].Slug)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListResorts_StaleContentBefore(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	cutoff := "2026-07-01T00:00:00Z"
	mock.ExpectQuery(`SELECT r.id, r.slug`).
		WithArgs(cutoff).
		WillReturnRows(resortRows().
			AddRow("r-5", "morzine", "Morzine", "France", "Haute-Savoie", "published", "2026-08-05T00:00:00Z", "2026-08-14T00:00:00Z"))

	s := New(db)
	resorts, err := s.ListResorts(context.Background(), ListFilter{StaleContentBefore: cutoff})

	assert.NoError(t, err)
	assert.Len(t, resorts, 1)
	assert.Equal(t, "morzine", resorts[0].Slug)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListResorts_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT r.id, r.slug`).
		WillReturnError(assert.AnError)

	s := New(db)
	resorts, err := s.ListResorts(context.Background(), ListFilter{})

	assert.Error(t, err)
	assert.Nil(t, resorts)
	stdErr := asStandardError(t, err)
	assert.Equal(t, apperrors.ErrCodeQueryExecutionFailed, stdErr.Code)

	assert.NoError(t, mock.ExpectationsWereMet())
}
