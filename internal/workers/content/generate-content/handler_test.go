// internal/workers/content/generate-content/handler_test.go
package generatecontent

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	apperrors "familyski-workers/internal/common/errors"
	"familyski-workers/internal/common/genai"
	"familyski-workers/internal/common/logger"
	"familyski-workers/internal/models"
	"familyski-workers/internal/store"
)

// ==========================
// Test Helpers
// ==========================

// sectionProse is long enough to pass the minimum body check.
const sectionProse = "Families will find the village compact and walkable, with the nursery slopes " +
	"a short stroll from most lodging. The ski school meets daily at the base of the magic carpet " +
	"area, and instructors are used to nervous first-timers."

type fakeLLM struct {
	server *httptest.Server
	calls  int64
}

// newFakeLLM serves section generations, returning a 500 for sections in
// failSections and a degenerate body for sections in shortSections.
func newFakeLLM(t *testing.T, failSections, shortSections map[string]bool) *fakeLLM {
	t.Helper()
	f := &fakeLLM{}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&f.calls, 1)

		var req map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&req)
		prompt, _ := req["prompt"].(string)

		for section := range failSections {
			if strings.Contains(prompt, "Section: "+section) {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
		}

		text := sectionProse
		for section := range shortSections {
			if strings.Contains(prompt, "Section: "+section) {
				text = "Too short."
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"text":        text,
			"model":       "test-model",
			"tokens_used": 180,
		})
	}))
	return f
}

func (f *fakeLLM) callCount() int64 {
	return atomic.LoadInt64(&f.calls)
}

func newTestHandler(t *testing.T, db *sql.DB, llmURL string) *Handler {
	t.Helper()
	genaiClient := genai.NewClient(&genai.Config{
		BaseURL:    llmURL,
		MaxRetries: 0,
		MaxTokens:  700,
	})
	return NewHandler(LoadConfig(), store.New(db), genaiClient, logger.NewTestLogger(t))
}

func expectResortLookup(mock sqlmock.Sqlmock, slug, id, status string) {
	mock.ExpectQuery(`SELECT id, slug, name, country, region, status`).
		WithArgs(slug).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "slug", "name", "country", "region", "status", "created_at", "updated_at",
		}).AddRow(id, slug, "Zermatt", "Switzerland", "Valais", status,
			"2026-08-01T00:00:00Z", "2026-08-10T00:00:00Z"))
}

func expectMetrics(mock sqlmock.Sqlmock, resortID string) {
	mock.ExpectQuery(`SELECT has_childcare`).
		WithArgs(resortID).
		WillReturnRows(sqlmock.NewRows([]string{
			"has_childcare", "kids_equipment_rental", "min_ski_school_age", "has_magic_carpet",
			"beginner_terrain_pct", "avg_day_pass_usd", "transfer_time_minutes",
			"family_lodging_on_slope", "best_age_range", "night_skiing",
		}).AddRow(true, nil, 4, nil, nil, 72.0, nil, nil, nil, nil))
}

func expectSections(mock sqlmock.Sqlmock, resortID string, existing map[string]string) {
	rows := sqlmock.NewRows([]string{"section", "body"})
	for section, body := range existing {
		rows.AddRow(section, body)
	}
	mock.ExpectQuery(`SELECT section, body`).
		WithArgs(resortID).
		WillReturnRows(rows)
}

func expectReviews(mock sqlmock.Sqlmock, resortID, reviews string) {
	rows := sqlmock.NewRows([]string{"body"})
	if reviews != "" {
		rows.AddRow(reviews)
	}
	mock.ExpectQuery(`SELECT body`).
		WithArgs(resortID).
		WillReturnRows(rows)
}

func expectUpsert(mock sqlmock.Sqlmock, resortID, section string) {
	mock.ExpectExec(`INSERT INTO resort_content`).
		WithArgs(resortID, section, sectionProse, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
}

// ==========================
// Generation Tests
// ==========================

func TestHandler_Execute_GeneratesFullPage(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	llm := newFakeLLM(t, nil, nil)
	defer llm.server.Close()

	expectResortLookup(mock, "zermatt", "resort-123", "researched")
	expectMetrics(mock, "resort-123")
	expectSections(mock, "resort-123", nil)
	expectReviews(mock, "resort-123", "The kids club was outstanding and the staff spoke English.")
	for _, section := range models.CanonicalSections() {
		expectUpsert(mock, "resort-123", section)
	}
	mock.ExpectExec(`UPDATE resorts`).
		WithArgs("draft", sqlmock.AnyArg(), "resort-123").
		WillReturnResult(sqlmock.NewResult(0, 1))

	handler := newTestHandler(t, db, llm.server.URL)
	output, err := handler.Execute(context.Background(), &Input{Slug: "zermatt"})

	assert.NoError(t, err)
	assert.Equal(t, models.CanonicalSections(), output.Generated)
	assert.Empty(t, output.Skipped)
	assert.Empty(t, output.Failed)
	assert.Equal(t, "draft", output.Status)
	assert.Equal(t, int64(7), llm.callCount())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_SkipsFreshSections(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	llm := newFakeLLM(t, nil, nil)
	defer llm.server.Close()

	expectResortLookup(mock, "zermatt", "resort-123", "researched")
	expectMetrics(mock, "resort-123")
	expectSections(mock, "resort-123", map[string]string{
		models.SectionOverview: "Existing overview prose.",
		models.SectionDining:   "Existing dining prose.",
	})
	expectReviews(mock, "resort-123", "")
	for _, section := range []string{
		models.SectionLodging, models.SectionLiftTickets, models.SectionSkiSchool,
		models.SectionChildcare, models.SectionLogistics,
	} {
		expectUpsert(mock, "resort-123", section)
	}
	mock.ExpectExec(`UPDATE resorts`).
		WithArgs("draft", sqlmock.AnyArg(), "resort-123").
		WillReturnResult(sqlmock.NewResult(0, 1))

	handler := newTestHandler(t, db, llm.server.URL)
	output, err := handler.Execute(context.Background(), &Input{Slug: "zermatt"})

	assert.NoError(t, err)
	assert.Len(t, output.Generated, 5)
	assert.ElementsMatch(t, []string{"overview", "dining"}, output.Skipped)
	assert.Equal(t, int64(5), llm.callCount())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_ForceRegeneratesAll(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	llm := newFakeLLM(t, nil, nil)
	defer llm.server.Close()

	existing := map[string]string{}
	for _, section := range models.CanonicalSections() {
		existing[section] = "Old prose for " + section
	}

	expectResortLookup(mock, "zermatt", "resort-123", "draft")
	expectMetrics(mock, "resort-123")
	expectSections(mock, "resort-123", existing)
	expectReviews(mock, "resort-123", "")
	for _, section := range models.CanonicalSections() {
		expectUpsert(mock, "resort-123", section)
	}

	handler := newTestHandler(t, db, llm.server.URL)
	output, err := handler.Execute(context.Background(), &Input{Slug: "zermatt", Force: true})

	assert.NoError(t, err)
	assert.Len(t, output.Generated, 7)
	assert.Empty(t, output.Skipped)
	assert.Equal(t, "draft", output.Status)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_NothingToRegenerate(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	llm := newFakeLLM(t, nil, nil)
	defer llm.server.Close()

	existing := map[string]string{}
	for _, section := range models.CanonicalSections() {
		existing[section] = "Current prose for " + section
	}

	expectResortLookup(mock, "zermatt", "resort-123", "draft")
	expectMetrics(mock, "resort-123")
	expectSections(mock, "resort-123", existing)
	expectReviews(mock, "resort-123", "")

	handler := newTestHandler(t, db, llm.server.URL)
	output, err := handler.Execute(context.Background(), &Input{Slug: "zermatt"})

	assert.NoError(t, err)
	assert.Empty(t, output.Generated)
	assert.Len(t, output.Skipped, 7)
	assert.Equal(t, "draft", output.Status)
	assert.Equal(t, int64(0), llm.callCount())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_SectionSubset(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	llm := newFakeLLM(t, nil, nil)
	defer llm.server.Close()

	expectResortLookup(mock, "zermatt", "resort-123", "draft")
	expectMetrics(mock, "resort-123")
	expectSections(mock, "resort-123", nil)
	expectReviews(mock, "resort-123", "")
	expectUpsert(mock, "resort-123", models.SectionSkiSchool)
	expectUpsert(mock, "resort-123", models.SectionChildcare)

	handler := newTestHandler(t, db, llm.server.URL)
	output, err := handler.Execute(context.Background(), &Input{
		Slug:     "zermatt",
		Sections: []string{"ski_school", "childcare"},
	})

	assert.NoError(t, err)
	assert.Equal(t, []string{"ski_school", "childcare"}, output.Generated)
	assert.Equal(t, int64(2), llm.callCount())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_UnknownSection(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	llm := newFakeLLM(t, nil, nil)
	defer llm.server.Close()

	handler := newTestHandler(t, db, llm.server.URL)
	output, err := handler.Execute(context.Background(), &Input{
		Slug:     "zermatt",
		Sections: []string{"spa"},
	})

	assert.Error(t, err)
	assert.Nil(t, output)
	stdErr, ok := err.(*apperrors.StandardError)
	assert.True(t, ok)
	assert.Equal(t, apperrors.ErrorCode("VALIDATION_ERROR"), stdErr.Code)

	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Failure Handling Tests
// ==========================

func TestHandler_Execute_PartialFailureDegrades(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	llm := newFakeLLM(t, map[string]bool{models.SectionDining: true}, nil)
	defer llm.server.Close()

	expectResortLookup(mock, "zermatt", "resort-123", "researched")
	expectMetrics(mock, "resort-123")
	expectSections(mock, "resort-123", nil)
	expectReviews(mock, "resort-123", "")
	for _, section := range models.CanonicalSections() {
		if section == models.SectionDining {
			continue
		}
		expectUpsert(mock, "resort-123", section)
	}
	mock.ExpectExec(`UPDATE resorts`).
		WithArgs("draft", sqlmock.AnyArg(), "resort-123").
		WillReturnResult(sqlmock.NewResult(0, 1))

	handler := newTestHandler(t, db, llm.server.URL)
	output, err := handler.Execute(context.Background(), &Input{Slug: "zermatt"})

	assert.NoError(t, err)
	assert.Len(t, output.Generated, 6)
	assert.Equal(t, []string{"dining"}, output.Failed)
	assert.Equal(t, "draft", output.Status)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_AllSectionsFailing(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	failAll := map[string]bool{}
	for _, section := range models.CanonicalSections() {
		failAll[section] = true
	}
	llm := newFakeLLM(t, failAll, nil)
	defer llm.server.Close()

	expectResortLookup(mock, "zermatt", "resort-123", "researched")
	expectMetrics(mock, "resort-123")
	expectSections(mock, "resort-123", nil)
	expectReviews(mock, "resort-123", "")

	handler := newTestHandler(t, db, llm.server.URL)
	output, err := handler.Execute(context.Background(), &Input{Slug: "zermatt"})

	assert.Error(t, err)
	assert.Nil(t, output)
	stdErr, ok := err.(*apperrors.StandardError)
	assert.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeContentGenerationFailed, stdErr.Code)
	assert.True(t, stdErr.Retryable)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_RejectsDegenerateBody(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	llm := newFakeLLM(t, nil, map[string]bool{models.SectionChildcare: true})
	defer llm.server.Close()

	expectResortLookup(mock, "zermatt", "resort-123", "researched")
	expectMetrics(mock, "resort-123")
	expectSections(mock, "resort-123", nil)
	expectReviews(mock, "resort-123", "")
	for _, section := range models.CanonicalSections() {
		if section == models.SectionChildcare {
			continue
		}
		expectUpsert(mock, "resort-123", section)
	}
	mock.ExpectExec(`UPDATE resorts`).
		WithArgs("draft", sqlmock.AnyArg(), "resort-123").
		WillReturnResult(sqlmock.NewResult(0, 1))

	handler := newTestHandler(t, db, llm.server.URL)
	output, err := handler.Execute(context.Background(), &Input{Slug: "zermatt"})

	assert.NoError(t, err)
	assert.Equal(t, []string{"childcare"}, output.Failed)
	assert.NotContains(t, output.Generated, "childcare")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_ResortNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	llm := newFakeLLM(t, nil, nil)
	defer llm.server.Close()

	mock.ExpectQuery(`SELECT id, slug, name, country, region, status`).
		WithArgs("nowhere").
		WillReturnError(sql.ErrNoRows)

	handler := newTestHandler(t, db, llm.server.URL)
	output, err := handler.Execute(context.Background(), &Input{Slug: "nowhere"})

	assert.Error(t, err)
	assert.Nil(t, output)
	stdErr, ok := err.(*apperrors.StandardError)
	assert.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeResortNotFound, stdErr.Code)
}

// ==========================
// Prompt Tests
// ==========================

func TestBuildSectionPrompt(t *testing.T) {
	boolPtr := func(v bool) *bool { return &v }
	intPtr := func(v int) *int { return &v }

	resort := &models.Resort{Name: "Zermatt", Country: "Switzerland", Region: "Valais"}
	familyMetrics := &models.FamilyMetrics{
		HasChildcare:    boolPtr(true),
		MinSkiSchoolAge: intPtr(4),
	}

	prompt := buildSectionPrompt(resort, models.SectionSkiSchool, familyMetrics, "Lessons were great for our five year old.")

	assert.Contains(t, prompt, "Resort: Zermatt (Valais, Switzerland)")
	assert.Contains(t, prompt, "Section: ski_school")
	assert.Contains(t, prompt, "- childcare available: yes")
	assert.Contains(t, prompt, "- minimum ski school age: 4")
	assert.Contains(t, prompt, "What parents say:")
	assert.NotContains(t, prompt, "night skiing")
}

func TestBuildSectionPrompt_NoFactsNoReviews(t *testing.T) {
	resort := &models.Resort{Name: "Saas-Fee", Country: "Switzerland"}

	prompt := buildSectionPrompt(resort, models.SectionOverview, &models.FamilyMetrics{}, "")

	assert.NotContains(t, prompt, "Known facts:")
	assert.NotContains(t, prompt, "What parents say:")
}

func TestResolveSections(t *testing.T) {
	tests := []struct {
		name      string
		requested []string
		expected  []string
		wantErr   bool
	}{
		{"empty defaults to canonical", nil, models.CanonicalSections(), false},
		{"subset kept in order", []string{"dining", "overview"}, []string{"dining", "overview"}, false},
		{"duplicates collapse", []string{"overview", "overview"}, []string{"overview"}, false},
		{"unknown section rejected", []string{"overview", "spa"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sections, err := resolveSections(tt.requested)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, sections)
		})
	}
}
