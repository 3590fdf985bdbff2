package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Tyrowin/roombroker/internal/server"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Room broker terminated with error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	// a missing .env file is fine, the environment may already be set
	_ = godotenv.Load()

	cfg, err := server.LoadConfig()
	if err != nil {
		return exitConfig, err
	}
	log := server.NewLogger(cfg, os.Stdout)

	srv, err := server.New(cfg, log)
	if err != nil {
		return exitConfig, err
	}
	srv.Start()

	httpServer := server.CreateServer(cfg.Port, srv.Routes())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		if err := server.StartServer(httpServer, log); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	case err, ok := <-errChan:
		if ok {
			runErr = fmt.Errorf("http server: %w", err)
		}
	}

	if err := server.ShutdownServer(httpServer, cfg.ShutdownTimeout, log); err != nil && runErr == nil {
		runErr = err
	}
	if err := srv.Shutdown(cfg.ShutdownTimeout); err != nil && runErr == nil {
		runErr = err
	}

	if runErr != nil {
		log.Error("Room broker stopped with error", "err", runErr)
		return exitRuntime, runErr
	}
	log.Info("Room broker stopped")
	return exitOK, nil
}
