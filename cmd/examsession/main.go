package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/examkit/session-runtime/internal/backend"
	"github.com/examkit/session-runtime/internal/config"
	"github.com/examkit/session-runtime/internal/examination"
	"github.com/examkit/session-runtime/internal/logging"
	"github.com/examkit/session-runtime/internal/server"
)

// logoutRouter ends the process loop once the session navigates away.
type logoutRouter struct {
	logger zerolog.Logger
	done   chan string
}

func (r *logoutRouter) Navigate(reason string, quitLinkEnabled bool) {
	r.logger.Info().
		Str("reason", reason).
		Bool("quit_link", quitLinkEnabled).
		Msg("session ended")
	select {
	case r.done <- reason:
	default:
	}
}

func main() {
	hash := flag.String("hash", "", "session handle to run")
	examID := flag.Int64("exam-id", 0, "exam id (preview mode)")
	preview := flag.Bool("preview", false, "run in preview mode, no live session")
	collaborative := flag.Bool("collaborative", false, "collaborative session, use interoperability routes")
	flag.Parse()

	if os.Getenv("APP_ENV") != "production" {
		if err := godotenv.Load(".env"); err != nil {
			log.Printf("Warning: could not load .env file: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	cfg, err := config.Load(ctx)
	cancel()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if *hash == "" && !*preview {
		log.Fatal("a session hash is required (-hash)")
	}

	logger := logging.New(cfg.Name, cfg.Env)

	client := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.HTTPTimeout, cfg.Backend.TimeFetchRetries, logger)
	router := &logoutRouter{logger: logger, done: make(chan string, 1)}
	controller := examination.NewController(client, router, examination.LogNotifier{Logger: logger}, examination.ControllerConfig{
		Clock: examination.ClockConfig{
			TickInterval:   cfg.Clock.TickInterval,
			SyncInterval:   cfg.Clock.SyncInterval,
			AlarmThreshold: cfg.Clock.AlarmThreshold,
		},
		AutosaveInterval: cfg.Session.AutosaveInterval,
	}, logger)

	srv := server.NewHTTPServer(cfg.HTTPAddr, controller, logger)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server failed")
		}
	}()

	runCtx := logging.IntoContext(context.Background(), logger)
	if err := controller.Start(runCtx, examination.StartRequest{
		Hash:          *hash,
		ExamID:        *examID,
		Preview:       *preview,
		Collaborative: *collaborative,
	}); err != nil {
		logger.Fatal().Err(err).Msg("failed to start session")
	}

	if clock := controller.Clock(); clock != nil {
		go func() {
			for update := range clock.Updates() {
				if update.Scarce {
					logger.Warn().Int("remaining", update.Remaining).Str("display", update.Display).Msg("time is scarce")
				}
			}
		}()
		go func() {
			for pulse := range clock.Pulses() {
				logger.Info().Str("remaining", pulse).Msg("time remaining")
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case reason := <-router.done:
		logger.Info().Str("reason", reason).Msg("shutting down")
	case sig := <-stop:
		logger.Info().Str("signal", sig.String()).Msg("interrupted, leaving session running server-side")
		controller.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GracefulShutdownTimeout)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
