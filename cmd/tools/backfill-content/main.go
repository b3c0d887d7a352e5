// cmd/tools/backfill-content/main.go
//
// Batch content regeneration. Selects resorts with no generated content, or
// with -max-age any section older than the cutoff, and runs the same section
// generation the generate-content worker runs.
//
// Usage:
//
//	backfill-content [-max-age 720h] [-sections overview,childcare] [-country Austria] [-limit 20]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"familyski-workers/internal/common/config"
	"familyski-workers/internal/common/database"
	"familyski-workers/internal/common/genai"
	"familyski-workers/internal/common/logger"
	"familyski-workers/internal/store"
	gc "familyski-workers/internal/workers/content/generate-content"
)

func main() {
	var (
		maxAge   = flag.Duration("max-age", 0, "regenerate sections older than this (0 = only resorts with no content)")
		sections = flag.String("sections", "", "comma-separated section names (empty = all sections)")
		country  = flag.String("country", "", "only regenerate resorts in this country")
		limit    = flag.Int("limit", 0, "maximum number of resorts to regenerate (0 = no limit)")
		force    = flag.Bool("force", false, "rewrite sections even when they already exist")
	)
	flag.Parse()

	zapLog := logger.New("info", "console")
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	ctx := context.Background()

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		zapLog.Fatal("postgres connection failed", zap.Error(err))
	}
	defer pg.Close()
	if err := pg.Ping(ctx); err != nil {
		zapLog.Fatal("postgres ping failed", zap.Error(err))
	}

	st := store.New(pg.GetDB())

	genaiClient := genai.NewClient(&genai.Config{
		BaseURL:     cfg.APIs.GenAI.BaseURL,
		APIKey:      cfg.APIs.GenAI.APIKey,
		MaxRetries:  cfg.APIs.GenAI.MaxRetries,
		MaxTokens:   cfg.APIs.GenAI.MaxTokens,
		Temperature: cfg.APIs.GenAI.Temperature,
	})

	handlerCfg := gc.LoadConfig()
	handler := gc.NewHandler(handlerCfg, st, genaiClient, log)

	// A zero cutoff predates every generated_at, so only the no-content leg
	// of the staleness filter can match.
	cutoff := time.Time{}
	if *maxAge > 0 {
		cutoff = time.Now().Add(-*maxAge)
	}

	resorts, err := st.ListResorts(ctx, store.ListFilter{
		Country:            *country,
		StaleContentBefore: cutoff.UTC().Format(time.RFC3339),
		Limit:              *limit,
	})
	if err != nil {
		zapLog.Fatal("listing resorts failed", zap.Error(err))
	}
	if len(resorts) == 0 {
		fmt.Println("No resorts need content.")
		return
	}

	var wantSections []string
	if *sections != "" {
		for _, s := range strings.Split(*sections, ",") {
			if s = strings.TrimSpace(s); s != "" {
				wantSections = append(wantSections, s)
			}
		}
	}

	// Stale selections carry existing sections that must be rewritten.
	rewrite := *force || *maxAge > 0

	zapLog.Info("starting content backfill",
		zap.Int("resorts", len(resorts)),
		zap.Duration("maxAge", *maxAge),
		zap.Bool("force", rewrite),
	)

	var regenerated, failed int
	for _, r := range resorts {
		runCtx, cancel := context.WithTimeout(ctx, handlerCfg.Timeout)
		out, err := handler.Execute(runCtx, &gc.Input{
			Slug:     r.Slug,
			Sections: wantSections,
			Force:    rewrite,
		})
		cancel()

		if err != nil {
			failed++
			zapLog.Warn("content generation failed",
				zap.String("slug", r.Slug),
				zap.Error(err),
			)
			continue
		}

		regenerated++
		zapLog.Info("resort content regenerated",
			zap.String("slug", r.Slug),
			zap.Int("generated", len(out.Generated)),
			zap.Int("skipped", len(out.Skipped)),
			zap.Int("failedSections", len(out.Failed)),
		)
	}

	fmt.Printf("Content backfill complete: %d regenerated, %d failed (of %d)\n", regenerated, failed, len(resorts))
	if failed > 0 {
		os.Exit(1)
	}
}
