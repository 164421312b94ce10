// Command dashboard serves the model-evaluation dashboard.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ezoic/elasticity/config"
	"github.com/ezoic/elasticity/dashboard"
	"github.com/ezoic/elasticity/pkg/errors"
	"github.com/ezoic/elasticity/pkg/log"
	"github.com/ezoic/elasticity/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfgFile := flag.String("config", "", "YAML configuration file")
	addr := flag.String("addr", "", "Listen address (default from configuration)")
	noDB := flag.Bool("no-db", false, "Serve without the DuckDB endpoints")
	flag.Parse()

	cfg, err := config.Load(config.LoadOptions{File: *cfgFile, EnvFile: ".env"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	cfg.SetupLogging()
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, !*noDB); err != nil {
		log.LogError(err, "Dashboard stopped")
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg *config.Config, withDB bool) error {
	logger := log.GetLoggerWithName("main")

	src, err := cfg.Source(ctx)
	if err != nil {
		return err
	}

	var db *store.Store
	if withDB {
		opts := cfg.StoreOptions()
		opts.MustExist = true
		db, err = store.Open(ctx, opts)
		switch {
		case errors.Is(err, errors.ErrNotFound):
			logger.Warn("Database not found, database endpoints disabled", log.PathKey, opts.Path)
			db = nil
		case err != nil:
			return err
		default:
			defer db.Close()
		}
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           dashboard.New(dashboard.OptionsFromConfig(cfg), src, db).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("Dashboard listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return errors.Wrap(err, "listen")
	case <-ctx.Done():
	}

	logger.Info("Shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return errors.Wrap(srv.Shutdown(shutdownCtx), "shutdown")
}
