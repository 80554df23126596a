package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sauravbhattacharya001/agentlens/internal/alerts"
	"github.com/sauravbhattacharya001/agentlens/internal/config"
	"github.com/sauravbhattacharya001/agentlens/internal/dispatch"
	"github.com/sauravbhattacharya001/agentlens/internal/httpapi"
	"github.com/sauravbhattacharya001/agentlens/internal/ingest"
	"github.com/sauravbhattacharya001/agentlens/internal/metrics"
	"github.com/sauravbhattacharya001/agentlens/internal/scheduler"
	"github.com/sauravbhattacharya001/agentlens/internal/store"
	"github.com/sauravbhattacharya001/agentlens/internal/subscribers"
	logging "github.com/sauravbhattacharya001/agentlens/internal/subscribers/logging"
	"github.com/sauravbhattacharya001/agentlens/internal/subscribers/webhook"
	"github.com/sauravbhattacharya001/agentlens/internal/subscribers/ws"
)

func main() {
	logger := log.New(os.Stdout, "lens ", log.Ldate|log.Ltime|log.Lmicroseconds|log.LUTC)
	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid config: %v", err)
	}

	st, err := store.NewGormStore(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		logger.Fatalf("failed to initialize store: %v", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Printf("store close error: %v", err)
		}
	}()

	hub := ws.NewHub(logger)
	defer hub.Close()
	subs := []subscribers.Subscriber{logging.New(logger), hub}
	for idx, webhookURL := range cfg.WebhookURLs {
		name := webhookSubscriberName(idx, webhookURL)
		subs = append(subs, webhook.New(name, webhookURL, logger))
	}
	dispatcher := dispatch.New(logger, subs)

	pipeline := ingest.NewPipeline(st, logger)
	evaluator := metrics.NewEvaluator(st)
	engine := alerts.NewEngine(st, evaluator, logger, alerts.WithNotifier(dispatcher.Dispatch))

	sched := scheduler.New(engine, cfg.EvalInterval, logger)
	if err := sched.Start(context.Background()); err != nil {
		logger.Fatalf("failed to start alert scheduler: %v", err)
	}
	defer sched.Stop()

	srv := httpapi.NewServer(logger, cfg.HTTPAddr, cfg.APIKey, pipeline, engine, st, hub)
	go func() {
		logger.Printf("listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("http server crashed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Printf("server shutdown error: %v", err)
	}
}

func webhookSubscriberName(index int, webhookURL string) string {
	parsed, err := url.Parse(webhookURL)
	if err == nil {
		host := strings.TrimSpace(parsed.Host)
		if host != "" {
			return host
		}
	}
	return fmt.Sprintf("webhook-%d", index+1)
}
