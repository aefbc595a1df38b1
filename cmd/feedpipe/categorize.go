package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	categorizeLimit     int
	classifyTitle       string
	classifyDescription string
)

var categorizeCmd = &cobra.Command{
	Use:   "categorize",
	Short: "Label uncategorized articles once",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a := mustApp(ctx)
		defer a.Close()

		n, err := a.Worker.RunOnce(ctx, categorizeLimit)
		if err != nil {
			logger.Fatal("Categorization failed", zap.Error(err))
		}
		logger.Info("Categorization complete", zap.Int("labelled", n))
	},
}

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Categorize a single title/description and print the label",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a := mustApp(ctx)
		defer a.Close()

		fmt.Println(a.Categorizer.Categorize(ctx, classifyTitle, classifyDescription))
	},
}

func init() {
	categorizeCmd.Flags().IntVar(&categorizeLimit, "limit", 100, "Maximum number of articles to label")

	classifyCmd.Flags().StringVar(&classifyTitle, "title", "", "Article title")
	classifyCmd.Flags().StringVar(&classifyDescription, "description", "", "Article description (HTML allowed)")
	_ = classifyCmd.MarkFlagRequired("title")
}
