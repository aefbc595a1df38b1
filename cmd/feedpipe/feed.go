package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"feedpipe/internal/model"
	web "feedpipe/internal/server"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var feedTitle string

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Manage registered feeds",
}

var feedAddCmd = &cobra.Command{
	Use:   "add [url]",
	Short: "Register a feed",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		url := strings.TrimSpace(args[0])
		if err := web.ValidateFeedURL(url); err != nil {
			logger.Fatal("Invalid feed URL", zap.String("url", url), zap.Error(err))
		}

		ctx := context.Background()
		a := mustApp(ctx)
		defer a.Close()

		f := model.NewFeed(url, feedTitle)
		if err := a.Store.AddFeed(ctx, f); err != nil {
			logger.Fatal("Failed to add feed", zap.Error(err))
		}

		logger.Info("Feed registered",
			zap.String("id", f.ID),
			zap.String("url", url))
	},
}

var feedListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered feeds",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a := mustApp(ctx)
		defer a.Close()

		feeds, err := a.Store.ListFeeds(ctx)
		if err != nil {
			logger.Fatal("Failed to list feeds", zap.Error(err))
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tSTATUS\tTITLE\tURL\tLAST FETCHED\tERROR")
		for _, f := range feeds {
			last := "-"
			if f.LastFetched != nil {
				last = f.LastFetched.Format(time.RFC3339)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", f.ID, f.Status, f.Title, f.URL, last, f.ErrorMessage)
		}
		tw.Flush()
	},
}

var feedActivateCmd = &cobra.Command{
	Use:   "activate [id]",
	Short: "Return an errored feed to the active selection",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a := mustApp(ctx)
		defer a.Close()

		f, err := web.ActivateFeed(ctx, a.Store, args[0])
		if err != nil {
			logger.Fatal("Failed to activate feed", zap.String("id", args[0]), zap.Error(err))
		}
		logger.Info("Feed activated", zap.String("id", f.ID), zap.String("url", f.URL))
	},
}

func init() {
	feedAddCmd.Flags().StringVar(&feedTitle, "title", "", "Display title (replaced by the feed's own title on first fetch)")
	feedCmd.AddCommand(feedAddCmd, feedListCmd, feedActivateCmd)
}
