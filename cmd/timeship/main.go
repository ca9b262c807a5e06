// Command timeship serves a local directory tree, and its ZFS snapshot
// history, over a read-only HTTP API.
//
// Boot sequence grounded on the teacher's fs/config + fs/rc/rcserver
// startup: build a logger, read the handful of recognized environment
// variables directly (no flags/config framework — there's nothing here a
// CLI surface would serve), open the root as a Rooted FS Gateway, register
// it, mount the HTTP Surface, and shut down gracefully on SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SmilyOrg/timeship/backend/zfs"
	"github.com/SmilyOrg/timeship/httpapi"
	"github.com/SmilyOrg/timeship/storage"
)

const (
	readTimeout     = 15 * time.Second
	writeTimeout    = 15 * time.Second
	idleTimeout     = 60 * time.Second
	shutdownTimeout = 30 * time.Second
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	if err := run(logger); err != nil {
		logger.Error("exiting", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	root := envOr("TIMESHIP_ROOT", "")
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		root = wd
	}
	address := envOr("TIMESHIP_ADDRESS", ":8080")
	apiPrefix := envOr("TIMESHIP_API_PREFIX", "/api")
	// TIMESHIP_CORS_ALLOWED_ORIGINS is recognized but unused: this server
	// has no CORS middleware to configure.
	_ = envOr("TIMESHIP_CORS_ALLOWED_ORIGINS", "http://localhost:8080")

	engine := zfs.New(root, logger)
	fac, err := storage.NewFacade("local", root, storage.CapList|storage.CapRead|storage.CapStat|storage.CapSnapshotList, engine, logger)
	if err != nil {
		return err
	}

	reg := storage.NewRegistry(logger)
	reg.Register(fac, true)

	mux := http.NewServeMux()
	mux.Handle(apiPrefix+"/", http.StripPrefix(apiPrefix, httpapi.NewRouter(reg, logger)))

	srv := &http.Server{
		Addr:         address,
		Handler:      mux,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "address", address, "root", root, "prefix", apiPrefix)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-sig:
		logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("shutdown did not complete cleanly", "error", err)
		}
		<-serveErr
	}

	return reg.Close()
}

func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}
