package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mesh-intelligence/crudgrid/internal/server"
)

// shutdownTimeout bounds graceful shutdown of in-flight requests.
const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the grid state HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen == "" {
				listen = a.cfg.GetString(cfgKeyListen)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.runServe(ctx, listen)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (default: config listen, :8080)")
	return cmd
}

// runServe opens the stores, serves until ctx is done, then shuts the HTTP
// server down and releases the stores.
func (a *app) runServe(ctx context.Context, listen string) error {
	logger := a.logger("server")

	cat, err := a.loadCatalog()
	if err != nil {
		return err
	}

	settings, err := a.attachSettings()
	if err != nil {
		return err
	}
	defer func() {
		if err := settings.Detach(); err != nil {
			logger.Error("detaching settings backend", "error", err)
		}
	}()

	sessions, err := a.openSessions(logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := sessions.Close(); err != nil {
			logger.Error("closing session store", "error", err)
		}
	}()

	gin.SetMode(gin.ReleaseMode)
	srv := server.New(server.Config{
		Catalog:    cat,
		Sessions:   sessions,
		Settings:   settings,
		Logger:     logger,
		SessionTTL: a.cfg.GetDuration(cfgKeySessionTTL),
	}).HTTPServer(listen)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", listen, "grids", cat.IDs())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
