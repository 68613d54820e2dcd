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

	"github.com/sells-group/zonasi/internal/facility"
	"github.com/sells-group/zonasi/internal/zonation"
)

var (
	servePort  int
	serveAudit bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the ranking API over HTTP",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}
		if err := cfg.Validate("rank"); err != nil {
			return err
		}

		facilities, err := loadFacilities(ctx, facility.Filter{})
		if err != nil {
			return err
		}

		a := &api{
			facilities:  facilities,
			defaults:    zonation.FromSettings(cfg.Zonation),
			model:       cfg.Zonation.DistanceModel,
			earthRadius: cfg.Zonation.EarthRadiusKM,
			concurrency: cfg.Zonation.BatchConcurrency,
			log:         zap.L().With(zap.String("command", "serve")),
		}
		if err := a.defaults.Validate(); err != nil {
			return err
		}
		if serveAudit {
			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			a.audit = st
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           buildRouter(a, cfg.Server),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server",
			zap.Int("port", cfg.Server.Port),
			zap.Int("facilities", len(facilities)),
			zap.Bool("audit", serveAudit),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().BoolVar(&serveAudit, "audit", false, "record every ranking call in the store")
	rootCmd.AddCommand(serveCmd)
}
