package main

import (
	"context"
	"encoding/json"
	"os"

	"feedpipe/internal/model"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runFeedID string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one ingestion pass over all active feeds and print the report",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a := mustApp(ctx)
		defer a.Close()

		var report model.RunReport
		if runFeedID != "" {
			res, err := a.Pipeline.RunFeed(ctx, runFeedID)
			if err != nil {
				logger.Fatal("Feed run failed", zap.Error(err))
			}
			report = model.RunReport{res}
		} else {
			var err error
			report, err = a.Pipeline.Run(ctx)
			if err != nil {
				logger.Fatal("Ingestion run could not start", zap.Error(err))
			}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(map[string]any{"success": true, "results": report}); err != nil {
			logger.Fatal("Failed to write report", zap.Error(err))
		}
	},
}

func init() {
	runCmd.Flags().StringVar(&runFeedID, "feed", "", "Process only this feed id, regardless of its status")
}
