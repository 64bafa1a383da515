package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kdimtricp/brokeshot/internal/api"
	"github.com/kdimtricp/brokeshot/internal/session"
)

func newServeCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the upload, analysis and history HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := opts.cfg

			rt, err := openRuntime(ctx, cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			app := &api.App{
				Library:       rt.library,
				History:       rt.history,
				Sessions:      session.NewManager(ctx, rt.sessionDeps()),
				MaxUploadSize: cfg.MaxUploadBytes(),
			}

			srv := &http.Server{
				Addr:              cfg.Listen,
				Handler:           api.NewRouter(app),
				ReadHeaderTimeout: 10 * time.Second,
			}

			go func() {
				<-ctx.Done()
				log.Info().Msg("Shutting down...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()

			log.Info().
				Str("listen", cfg.Listen).
				Str("endpoint", rt.client.Endpoint()).
				Str("db", cfg.DBPath).
				Str("library", rt.library.BasePath()).
				Int64("max_upload_bytes", cfg.MaxUploadBytes()).
				Msg("Starting server")

			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	return cmd
}
