package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/renkeyss/cch-bot/internal/analysis/intent"
	"github.com/renkeyss/cch-bot/internal/config"
	"github.com/renkeyss/cch-bot/internal/handler"
	"github.com/renkeyss/cch-bot/internal/handler/usage"
	"github.com/renkeyss/cch-bot/internal/handler/webhook"
	"github.com/renkeyss/cch-bot/internal/service/backend"
	"github.com/renkeyss/cch-bot/internal/service/dispatch"
	"github.com/renkeyss/cch-bot/internal/service/exchange"
	"github.com/renkeyss/cch-bot/internal/service/quota"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	if !cfg.LINE.Enabled() {
		log.Fatal("LINE_CHANNEL_SECRET 和 LINE_CHANNEL_ACCESS_TOKEN 必须配置")
	}
	if !cfg.AI.Enabled() {
		log.Printf("warning: %s backend credentials incomplete, replies will fall back to error texts", cfg.AI.Backend)
	}

	client, err := backend.New(ctx, cfg.AI, cfg.Messages)
	if err != nil {
		log.Fatalf("failed to initialize %s backend: %v", cfg.AI.Backend, err)
	}
	log.Printf("AI backend %q initialized", cfg.AI.Backend)

	quotaStore := quota.NewStore(cfg.Quota.DailyLimit)
	if cfg.Quota.ReportInterval > 0 {
		reporter := quota.NewReporter(quotaStore, time.Local)
		if _, err := reporter.ScheduleInterval(cfg.Quota.ReportInterval); err != nil {
			log.Fatalf("failed to schedule quota report: %v", err)
		}
		reporter.Start()
		defer reporter.Stop()
	}

	var recorder exchange.Recorder
	if cfg.Exchange.DSN != "" {
		gormRecorder, err := exchange.OpenGormRecorder(cfg.Exchange.DSN)
		if err != nil {
			log.Fatalf("failed to open exchange log: %v", err)
		}
		defer gormRecorder.Close()
		recorder = gormRecorder
		log.Printf("exchange log stored in %s", cfg.Exchange.DSN)
	} else {
		recorder = exchange.NewMemoryRecorder(cfg.Exchange.MemoryLimit)
	}

	classifier := intent.NewClassifier(cfg.Messages.IntroductionTriggers)
	dispatcher := dispatch.New(classifier, quotaStore, client, recorder, cfg.Messages)

	replier, err := webhook.NewLineReplier(cfg.LINE.ChannelAccessToken)
	if err != nil {
		log.Fatalf("failed to initialize LINE client: %v", err)
	}
	webhookHandler := webhook.New(cfg.LINE.ChannelSecret, dispatcher, replier, cfg.Server.DispatchTimeout)

	var usageHandler *usage.Handler
	if cfg.Server.AdminToken != "" {
		usageHandler = usage.New(quotaStore, recorder, cfg.Server.AdminToken)
	} else {
		log.Println("ADMIN_TOKEN 未配置，跳过用量接口")
	}

	router := handler.NewRouter(webhookHandler, usageHandler)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("cch-bot relay listening on %s", addr)
	if err := runServer(ctx, srv, serverCfg.DispatchTimeout); err != nil {
		log.Printf("server error: %v", err)
	}
}

// runServer blocks until ctx is cancelled or the listener fails. Shutdown waits up to
// grace for in-flight callbacks so their replies are still delivered.
func runServer(ctx context.Context, srv *http.Server, grace time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), grace+5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
