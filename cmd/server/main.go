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

	"github.com/spf13/cobra"

	"querytool-macros/server/internal/auth"
	"querytool-macros/server/internal/config"
	"querytool-macros/server/internal/httpapi"
	"querytool-macros/server/internal/log"
	"querytool-macros/server/internal/storage"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:           "server",
		Short:         "Serve query tool macros and query history",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				configPath = os.Getenv("MACROS_CONFIG")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return err
			}
			log.InitLogger(cfg.LogLevel)
			if err := run(cmd.Context(), cfg); err != nil {
				log.WithError(err).Error("server stopped")
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file (or MACROS_CONFIG)")
	return cmd
}

func run(ctx context.Context, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.OpenSQLite(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Init(ctx); err != nil {
		return err
	}

	mux := http.NewServeMux()
	httpapi.NewServer(store).RegisterRoutes(mux)

	var handler http.Handler = mux
	if cfg.Auth.OIDCEnabled() {
		manager, err := auth.NewManager(cfg.Auth)
		if err != nil {
			return err
		}
		manager.RegisterRoutes(mux)
		handler = manager.Middleware(func(r *http.Request) bool {
			return httpapi.Public(r) || r.URL.Path == "/auth/callback"
		})(mux)
	} else {
		log.Warnf("oidc not configured, every request acts as %q", cfg.DevUser)
		handler = auth.DevUser(cfg.DevUser)(mux)
	}

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.LogRequests(handler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("server listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Infof("shutting down")
	return server.Shutdown(shutdownCtx)
}
