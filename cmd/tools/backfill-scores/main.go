// cmd/tools/backfill-scores/main.go
//
// Batch rescoring. Works through resorts that have metrics but no composite
// family score yet (or every resort with -all) and runs the same scoring
// pipeline the score-resort worker runs, one resort at a time.
//
// Usage:
//
//	backfill-scores [-all] [-country Switzerland] [-limit 50]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"familyski-workers/internal/common/config"
	"familyski-workers/internal/common/database"
	"familyski-workers/internal/common/genai"
	"familyski-workers/internal/common/logger"
	"familyski-workers/internal/scoring"
	"familyski-workers/internal/store"
	sr "familyski-workers/internal/workers/scoring/score-resort"
)

func main() {
	var (
		all     = flag.Bool("all", false, "rescore every resort, not just those missing a score")
		country = flag.String("country", "", "only rescore resorts in this country")
		limit   = flag.Int("limit", 0, "maximum number of resorts to rescore (0 = no limit)")
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

	handlerCfg := sr.LoadConfig()
	handler := sr.NewHandler(
		handlerCfg,
		st,
		scoring.NewContentAssessor(genaiClient, log),
		scoring.NewReviewAssessor(genaiClient, log),
		log,
	)

	resorts, err := st.ListResorts(ctx, store.ListFilter{
		MissingScore: !*all,
		Country:      *country,
		Limit:        *limit,
	})
	if err != nil {
		zapLog.Fatal("listing resorts failed", zap.Error(err))
	}
	if len(resorts) == 0 {
		fmt.Println("No resorts need scoring.")
		return
	}

	zapLog.Info("starting score backfill",
		zap.Int("resorts", len(resorts)),
		zap.Bool("rescoreAll", *all),
	)

	var scored, failed int
	for _, r := range resorts {
		runCtx, cancel := context.WithTimeout(ctx, handlerCfg.Timeout)
		out, err := handler.Execute(runCtx, &sr.Input{Slug: r.Slug})
		cancel()

		if err != nil {
			failed++
			zapLog.Warn("scoring failed",
				zap.String("slug", r.Slug),
				zap.Error(err),
			)
			continue
		}

		scored++
		zapLog.Info("resort scored",
			zap.String("slug", r.Slug),
			zap.Float64("familyScore", out.FamilyScore),
			zap.String("confidence", out.Confidence),
		)
	}

	fmt.Printf("Score backfill complete: %d scored, %d failed (of %d)\n", scored, failed, len(resorts))
	if failed > 0 {
		os.Exit(1)
	}
}
