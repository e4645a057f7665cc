package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/campleads/internal/api"
	"github.com/sells-group/campleads/internal/config"
	"github.com/sells-group/campleads/internal/leads"
	"github.com/sells-group/campleads/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for the review UI",
	Long: `Serves lead import, listings, and run control over HTTP. Starting runs
requires the search and model settings; without them the server still serves
everything else.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate(config.ComponentServe); err != nil {
			return err
		}

		var (
			st     store.Store
			runner api.RunStarter
		)
		if err := cfg.Validate(config.ComponentScrape); err != nil {
			zap.L().Warn("run control disabled", zap.Error(err))
			s, err := openStore(ctx)
			if err != nil {
				return err
			}
			st = s
		} else {
			env, err := initPipeline(ctx)
			if err != nil {
				return err
			}
			st = env.Store
			runner = env.Runner
		}
		defer st.Close() //nolint:errcheck

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		g, gctx := errgroup.WithContext(ctx)

		srv := api.NewServer(gctx, st, leads.NewImporter(st), runner, api.Options{
			AllowedOrigins:  cfg.Server.AllowedOrigins,
			DefaultCampType: cfg.Pipeline.DefaultCampType,
		})
		httpSrv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           srv.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", port))
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 15*time.Second)
			defer cancel()
			err := httpSrv.Shutdown(shutdownCtx)
			// The active run, if any, sees the cancelled context and records STOPPED.
			srv.Wait()
			return eris.Wrap(err, "server shutdown")
		})

		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
