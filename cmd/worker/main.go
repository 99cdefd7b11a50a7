package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mkorolev/helpcenter-rag/internal/bootstrap"
	"github.com/mkorolev/helpcenter-rag/internal/config"
	"github.com/mkorolev/helpcenter-rag/internal/core/domain"
	"github.com/mkorolev/helpcenter-rag/internal/observability/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.NewJSONLogger("info", "worker").Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	logger := logging.NewJSONLogger(cfg.LogLevel, "worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger, "helpcenter_worker")
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           metricsMux(app),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics_server_failed", "error", err)
		}
	}()

	logger.Info("worker_started", "subject", cfg.NATSSubject)
	handler := func(handlerCtx context.Context, event domain.ArticleEvent) error {
		started := time.Now()
		var err error
		switch event.Kind {
		case domain.ArticleUpserted:
			err = app.Indexer.IndexArticle(handlerCtx, event.ArticleID)
		case domain.ArticleDeleted:
			err = app.Indexer.DeindexArticle(handlerCtx, event.ArticleID)
		default:
			logger.Warn("unknown_article_event", "kind", event.Kind, "article_id", event.ArticleID)
			return nil
		}
		if err != nil {
			return err
		}
		logger.Info("article_event_handled",
			"kind", event.Kind,
			"article_id", event.ArticleID,
			"duration_ms", float64(time.Since(started).Microseconds())/1000.0,
		)
		return nil
	}

	if err := app.Queue.SubscribeArticleEvents(ctx, handler); err != nil {
		logger.Error("subscribe_failed", "error", err)
		os.Exit(1)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
	logger.Info("worker_stopped")
}

func metricsMux(app *bootstrap.App) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", app.Metrics.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	return mux
}
