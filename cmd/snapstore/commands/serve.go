package commands

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/snapstore-db/snapstore/pkg/server"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the snapshot HTTP API server",
	Run: func(cmd *cobra.Command, args []string) {
		engine := newEngine()
		srv := server.NewServer(engine, logger)

		httpServer := &http.Server{
			Addr:    conf.ListenAddr,
			Handler: srv.Router(),
		}

		go func() {
			logger.Infow("starting server", "addr", conf.ListenAddr, "data_dir", conf.DataDir)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				fatal("server failed to start", err)
			}
		}()

		// Wait for interrupt signal to gracefully shutdown the server
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("shutting down server")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			fatal("server forced to shutdown", err)
		}
		logger.Info("server exited")
	},
}
