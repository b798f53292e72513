package commands

import (
	"context"
	"errors"
	"net/http"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/homescout/internal/conversation"
	"github.com/jmylchreest/homescout/internal/logger"
	"github.com/jmylchreest/homescout/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the chat API over HTTP",
	Long: `Start the HTTP API used by the front-end.

Endpoints:
  POST   /chat          send a message, returns the reply and listings
  DELETE /chat/{id}     forget a conversation
  GET    /healthcheck   liveness

Examples:
  homescout serve
  homescout serve --addr 127.0.0.1:9000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "listen address (default :8000)")
	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	svc, cleanup, err := newSearchService(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	orch, err := newOrchestrator(svc)
	if err != nil {
		return err
	}

	convs := conversation.NewStore(cfg.Conversations.TTL)
	go convs.Run(ctx, cfg.Conversations.SweepInterval)

	handler := server.New(orch, convs, server.WithTurnTimeout(cfg.Server.TurnTimeout))
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("chat API listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
			return err
		}
		logger.Info("server stopped")
		return nil
	case err := <-serverErr:
		return err
	}
}
