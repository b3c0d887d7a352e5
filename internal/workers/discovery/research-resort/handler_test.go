// internal/workers/discovery/research-resort/handler_test.go
package researchresort

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	miniredis "github.com/alicebob/miniredis/v2"
	redismock "github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"familyski-workers/internal/common/database"
	apperrors "familyski-workers/internal/common/errors"
	"familyski-workers/internal/common/genai"
	"familyski-workers/internal/common/logger"
	"familyski-workers/internal/common/search"
	"familyski-workers/internal/models"
	"familyski-workers/internal/store"
)

// ==========================
// Test Helpers
// ==========================

// reviewSnippet is long enough to be stored as a parent review.
const reviewSnippet = "Our kids aged 3 and 6 had a wonderful week, the ski school was caring and patient."

func newFakeLLM(t *testing.T, text string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"text":        text,
			"model":       "test-model",
			"tokens_used": 32,
		})
	}))
}

func newFakeSearch(t *testing.T, calls *int64, status int, snippet string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			atomic.AddInt64(calls, 1)
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"items": []map[string]string{
				{"link": "https://example.com/zermatt", "title": "Zermatt with kids", "snippet": snippet, "mime": "text/html"},
			},
		})
	}))
}

func newTestHandler(t *testing.T, db *sql.DB, searchURL, llmURL string, redisClient *database.RedisClient) *Handler {
	t.Helper()
	searchClient := search.NewClient(&search.Config{
		BaseURL:    searchURL,
		APIKey:     "test-key",
		EngineID:   "test-cx",
		Timeout:    5 * time.Second,
		MaxResults: 5,
	})
	genaiClient := genai.NewClient(&genai.Config{
		BaseURL:    llmURL,
		MaxRetries: 0,
		MaxTokens:  512,
	})
	return NewHandler(LoadConfig(), store.New(db), searchClient, genaiClient, redisClient, logger.NewTestLogger(t))
}

func miniredisClient(t *testing.T) (*miniredis.Miniredis, *database.RedisClient) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, &database.RedisClient{Client: client}
}

func expectResortLookup(mock sqlmock.Sqlmock, slug, id, status string) {
	mock.ExpectQuery(`SELECT id, slug, name, country, region, status`).
		WithArgs(slug).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "slug", "name", "country", "region", "status", "created_at", "updated_at",
		}).AddRow(id, slug, "Zermatt", "Switzerland", "Valais", status,
			"2026-08-01T00:00:00Z", "2026-08-10T00:00:00Z"))
}

func metricsCols() []string {
	return []string{
		"has_childcare", "kids_equipment_rental", "min_ski_school_age", "has_magic_carpet",
		"beginner_terrain_pct", "avg_day_pass_usd", "transfer_time_minutes",
		"family_lodging_on_slope", "best_age_range", "night_skiing",
	}
}

func expectNullMetrics(mock sqlmock.Sqlmock, resortID string) {
	mock.ExpectQuery(`SELECT has_childcare`).
		WithArgs(resortID).
		WillReturnRows(sqlmock.NewRows(metricsCols()).
			AddRow(nil, nil, nil, nil, nil, nil, nil, nil, nil, nil))
}

// ==========================
// Research Tests
// ==========================

func TestHandler_Execute_ExtractsAndMerges(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mr, redisClient := miniredisClient(t)

	searchServer := newFakeSearch(t, nil, http.StatusOK, reviewSnippet)
	defer searchServer.Close()
	llmServer := newFakeLLM(t, `{"hasChildcare": true, "minSkiSchoolAge": 4, "avgDayPassUsd": 72.5}`)
	defer llmServer.Close()

	expectResortLookup(mock, "zermatt", "resort-123", "discovered")

	// The reviews topic stores its snippet.
	mock.ExpectExec(`INSERT INTO resort_reviews`).
		WithArgs(sqlmock.AnyArg(), "resort-123", "https://example.com/zermatt", "", reviewSnippet, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	// Stored metrics already know about equipment rental; the patch must
	// not erase that.
	mock.ExpectQuery(`SELECT has_childcare`).
		WithArgs("resort-123").
		WillReturnRows(sqlmock.NewRows(metricsCols()).
			AddRow(nil, true, nil, nil, nil, nil, nil, nil, nil, nil))

	mock.ExpectExec(`INSERT INTO resort_metrics`).
		WithArgs("resort-123", true, true, 4, nil, nil, 72.5, nil, nil, nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectExec(`UPDATE resorts`).
		WithArgs("researched", sqlmock.AnyArg(), "resort-123").
		WillReturnResult(sqlmock.NewResult(0, 1))

	handler := newTestHandler(t, db, searchServer.URL, llmServer.URL, redisClient)
	output, err := handler.Execute(context.Background(), &Input{Slug: "zermatt"})

	assert.NoError(t, err)
	assert.Equal(t, 3, output.FieldsExtracted)
	assert.InDelta(t, 0.4, output.DataCompleteness, 0.001)
	assert.Equal(t, 1, output.ReviewsAdded)
	assert.Equal(t, "researched", output.Status)

	// Topic results are cached for the next run.
	assert.True(t, mr.Exists("research:zermatt:childcare"))
	assert.True(t, mr.Exists("research:zermatt:reviews"))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_UsesCachedTopicResults(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mr, redisClient := miniredisClient(t)

	cached, _ := json.Marshal([]search.Result{
		{Title: "Zermatt with kids", URL: "https://example.com/zermatt", Snippet: reviewSnippet},
	})
	for _, topic := range researchTopics {
		mr.Set("research:zermatt:"+topic.name, string(cached))
	}

	var searchCalls int64
	searchServer := newFakeSearch(t, &searchCalls, http.StatusOK, reviewSnippet)
	defer searchServer.Close()
	llmServer := newFakeLLM(t, `{"hasChildcare": true}`)
	defer llmServer.Close()

	expectResortLookup(mock, "zermatt", "resort-123", "researched")
	mock.ExpectExec(`INSERT INTO resort_reviews`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	expectNullMetrics(mock, "resort-123")
	mock.ExpectExec(`INSERT INTO resort_metrics`).
		WithArgs("resort-123", true, nil, nil, nil, nil, nil, nil, nil, nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	handler := newTestHandler(t, db, searchServer.URL, llmServer.URL, redisClient)
	output, err := handler.Execute(context.Background(), &Input{Slug: "zermatt"})

	assert.NoError(t, err)
	assert.Equal(t, 1, output.FieldsExtracted)
	assert.Equal(t, "researched", output.Status)
	assert.Equal(t, int64(0), atomic.LoadInt64(&searchCalls))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_ForceBypassesCache(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mr, redisClient := miniredisClient(t)

	cached, _ := json.Marshal([]search.Result{
		{Title: "Stale", URL: "https://example.com/old", Snippet: "Outdated snippet from a previous season."},
	})
	for _, topic := range researchTopics {
		mr.Set("research:zermatt:"+topic.name, string(cached))
	}

	var searchCalls int64
	searchServer := newFakeSearch(t, &searchCalls, http.StatusOK, reviewSnippet)
	defer searchServer.Close()
	llmServer := newFakeLLM(t, `{}`)
	defer llmServer.Close()

	expectResortLookup(mock, "zermatt", "resort-123", "researched")
	mock.ExpectExec(`INSERT INTO resort_reviews`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	expectNullMetrics(mock, "resort-123")

	handler := newTestHandler(t, db, searchServer.URL, llmServer.URL, redisClient)
	output, err := handler.Execute(context.Background(), &Input{Slug: "zermatt", Force: true})

	assert.NoError(t, err)
	assert.Equal(t, 0, output.FieldsExtracted)
	assert.Equal(t, int64(len(researchTopics)), atomic.LoadInt64(&searchCalls))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_CachesWithConfiguredTTL(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	redisDB, redisMock := redismock.NewClientMock()
	redisClient := &database.RedisClient{Client: redisDB}

	// Snippet below the review minimum so no review insert interferes.
	searchServer := newFakeSearch(t, nil, http.StatusOK, "Short.")
	defer searchServer.Close()
	llmServer := newFakeLLM(t, `{}`)
	defer llmServer.Close()

	payload, _ := json.Marshal([]search.Result{
		{Title: "Zermatt with kids", URL: "https://example.com/zermatt", Snippet: "Short."},
	})
	for _, topic := range researchTopics {
		key := "research:zermatt:" + topic.name
		redisMock.ExpectGet(key).RedisNil()
		redisMock.ExpectSet(key, payload, 24*time.Hour).SetVal("OK")
	}

	expectResortLookup(mock, "zermatt", "resort-123", "researched")
	expectNullMetrics(mock, "resort-123")

	handler := newTestHandler(t, db, searchServer.URL, llmServer.URL, redisClient)
	_, err = handler.Execute(context.Background(), &Input{Slug: "zermatt"})

	assert.NoError(t, err)
	assert.NoError(t, redisMock.ExpectationsWereMet())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_SearchFailuresDegrade(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	_, redisClient := miniredisClient(t)

	searchServer := newFakeSearch(t, nil, http.StatusInternalServerError, "")
	defer searchServer.Close()
	llmServer := newFakeLLM(t, `{}`)
	defer llmServer.Close()

	expectResortLookup(mock, "zermatt", "resort-123", "researched")
	expectNullMetrics(mock, "resort-123")

	handler := newTestHandler(t, db, searchServer.URL, llmServer.URL, redisClient)
	output, err := handler.Execute(context.Background(), &Input{Slug: "zermatt"})

	assert.NoError(t, err)
	assert.Equal(t, 0, output.FieldsExtracted)
	assert.Equal(t, 0, output.ReviewsAdded)
	assert.InDelta(t, 0.0, output.DataCompleteness, 0.001)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_MalformedPatch(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"free text", "The resort has childcare and a ski school starting at age four."},
		{"wrong field type", `{"minSkiSchoolAge": "four"}`},
		{"out of range", `{"beginnerTerrainPct": 250}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			assert.NoError(t, err)
			defer db.Close()

			_, redisClient := miniredisClient(t)

			searchServer := newFakeSearch(t, nil, http.StatusOK, "Short.")
			defer searchServer.Close()
			llmServer := newFakeLLM(t, tt.text)
			defer llmServer.Close()

			expectResortLookup(mock, "zermatt", "resort-123", "researched")

			handler := newTestHandler(t, db, searchServer.URL, llmServer.URL, redisClient)
			output, err := handler.Execute(context.Background(), &Input{Slug: "zermatt"})

			assert.Error(t, err)
			assert.Nil(t, output)
			stdErr, ok := err.(*apperrors.StandardError)
			assert.True(t, ok)
			assert.Equal(t, apperrors.ErrCodeMetricsExtractionFailed, stdErr.Code)
		})
	}
}

// ==========================
// Merge Tests
// ==========================

func TestMergeMetrics(t *testing.T) {
	boolPtr := func(v bool) *bool { return &v }
	intPtr := func(v int) *int { return &v }

	t.Run("empty patch keeps existing", func(t *testing.T) {
		existing := &models.FamilyMetrics{HasChildcare: boolPtr(true), MinSkiSchoolAge: intPtr(4)}
		merged, extracted := mergeMetrics(existing, &models.FamilyMetrics{})

		assert.Equal(t, 0, extracted)
		assert.Equal(t, existing, merged)
	})

	t.Run("patch overrides and preserves", func(t *testing.T) {
		existing := &models.FamilyMetrics{HasChildcare: boolPtr(true), MinSkiSchoolAge: intPtr(6)}
		patch := &models.FamilyMetrics{MinSkiSchoolAge: intPtr(4), HasMagicCarpet: boolPtr(true)}

		merged, extracted := mergeMetrics(existing, patch)

		assert.Equal(t, 2, extracted)
		assert.True(t, *merged.HasChildcare)
		assert.Equal(t, 4, *merged.MinSkiSchoolAge)
		assert.True(t, *merged.HasMagicCarpet)
	})

	t.Run("explicit false is an update", func(t *testing.T) {
		existing := &models.FamilyMetrics{HasChildcare: boolPtr(true)}
		patch := &models.FamilyMetrics{HasChildcare: boolPtr(false)}

		merged, extracted := mergeMetrics(existing, patch)

		assert.Equal(t, 1, extracted)
		assert.False(t, *merged.HasChildcare)
	})
}
