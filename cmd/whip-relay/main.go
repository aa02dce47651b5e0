// Command whip-relay runs the broadcast relay's HTTP signaling surface:
// WHIP ingest, WHEP egress, trickle-ICE patching, and teardown.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"

	"github.com/nab-os/whip-go/internal/config"
	"github.com/nab-os/whip-go/internal/relay"
	"github.com/nab-os/whip-go/internal/signaling"
)

func main() {
	if err := run(); err != nil {
		logrus.WithError(err).Error("whip-relay exiting")
		os.Exit(1)
	}
}

func run() error {
	log := newLogger()

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	engine, err := relay.NewEngine(relay.EngineOptions{
		ICEServerURLs: cfg.ICEServers,
		UDPMuxPort:    cfg.UDPMuxPort,
		NATIPs:        cfg.NATIPs,
	})
	if err != nil {
		return fmt.Errorf("build media engine: %w", err)
	}

	registry := relay.NewRegistry()
	svc := relay.NewService(engine, registry, log.WithField("component", "relay"))

	router := signaling.NewRouter(svc, cfg.StaticDir, log.WithField("component", "signaling"))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.Port).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("listen and serve: %w", err)
		}
		return nil
	}
}

// newLogger configures logrus with a TTY-friendly text formatter when
// stdout is a terminal and JSON otherwise, so a systemd/container deploy
// gets machine-parseable logs without any code change.
func newLogger() *logrus.Entry {
	logger := logrus.StandardLogger()
	if isatty.IsTerminal(os.Stdout.Fd()) {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logrus.NewEntry(logger)
}
