package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serverAddr string

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the HTTP API, the scheduler and the categorization worker",
	Run: func(cmd *cobra.Command, args []string) {
		// Setup Signal Handling (Ctrl+C)
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a := mustApp(ctx)

		addr := cfg.Server.Addr
		if cmd.Flags().Changed("addr") {
			addr = serverAddr
		}

		err := a.Serve(ctx, addr)
		if cErr := a.Close(); cErr != nil {
			logger.Error("Failed to close store", zap.Error(cErr))
		}
		if err != nil {
			logger.Fatal("Server stopped", zap.Error(err))
		}
		logger.Info("Goodbye!")
	},
}

func init() {
	serverCmd.Flags().StringVar(&serverAddr, "addr", "", "Listen address (overrides server.addr)")
}
