package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/heetsz/Parakh.ai/internal/archive"
	"github.com/heetsz/Parakh.ai/internal/config"
	"github.com/heetsz/Parakh.ai/internal/groq"
	"github.com/heetsz/Parakh.ai/internal/httpapi"
	"github.com/heetsz/Parakh.ai/internal/interview"
	"github.com/heetsz/Parakh.ai/internal/observability"
	"github.com/heetsz/Parakh.ai/internal/plan"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	store, err := archive.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("archive store init failed: %v", err)
	}
	defer store.Close()

	pool := groq.NewPool(cfg.GroqAPIBaseURL, cfg.Keys(), cfg.GroqRequestTimeout)
	if pool.Default().Configured() {
		log.Printf("groq credentials: %d distinct key(s) in rotation", pool.Size())
	} else {
		log.Printf("GROQ_API_KEY not set; transcription, replies and synthesis degrade to fallbacks")
	}

	primary := pool.Default()
	transcriber := interview.NewGroqTranscriber(primary, cfg.GroqSTTModel)
	replies := interview.NewGroqReplyGenerator(primary, cfg.GroqLLMModel)
	evaluator := interview.NewGroqEvaluator(primary, cfg.GroqEvalModel)
	synths := interview.NewGroqSynthesizerPool(pool)

	orchestrator := interview.NewOrchestrator(
		transcriber,
		replies,
		evaluator,
		synths,
		interview.NewRegistry(),
		store,
		metrics,
		cfg.GroqTTSModel,
		cfg.GroqTTSVoice,
		cfg.GroqTTSFormat,
	)

	planner := plan.NewGenerator(primary, cfg.GroqLLMModel)

	api := httpapi.New(cfg, orchestrator, evaluator, planner, store, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
