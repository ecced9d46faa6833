package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/keyrace/internal/api"
	"github.com/verte-zerg/keyrace/internal/leaderboard"
	"github.com/verte-zerg/keyrace/internal/leaderboardui"
	"github.com/verte-zerg/keyrace/internal/logger"
	"github.com/verte-zerg/keyrace/internal/model"
)

var (
	boardMode  string
	boardLimit int
	boardPlain bool
	boardLive  bool
)

func newLeaderboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "leaderboard",
		Aliases: []string{"lb"},
		Short:   "Show the leaderboard",
		Args:    cobra.NoArgs,
		RunE:    runLeaderboardCmd,
	}
	cmd.Flags().StringVar(&boardMode, "mode", "", "only show one mode: time, words or quote")
	cmd.Flags().IntVar(&boardLimit, "limit", leaderboard.DefaultLimit, fmt.Sprintf("number of entries (max %d)", leaderboard.MaxLimit))
	cmd.Flags().BoolVar(&boardPlain, "plain", false, "print a text table instead of the interactive view")
	cmd.Flags().BoolVar(&boardLive, "live", true, "refresh when new scores arrive")
	return cmd
}

func runLeaderboardCmd(cmd *cobra.Command, _ []string) error {
	q := leaderboard.Query{Limit: boardLimit}
	if boardMode != "" {
		mode, err := model.ParseMode(boardMode)
		if err != nil {
			return fmt.Errorf("--mode: %w", err)
		}
		q.Mode = mode
	}
	if boardLimit <= 0 {
		return fmt.Errorf("--limit must be > 0")
	}
	q = q.Normalize()

	server, err := accountServer()
	if err != nil {
		return err
	}
	client := leaderboard.NewClient(server, "")

	if boardPlain {
		ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
		defer cancel()
		entries, err := client.Top(ctx, q)
		if err != nil {
			return describe(err)
		}
		return leaderboard.RenderPlain(cmd.OutOrStdout(), entries)
	}

	log, closeLog := fileLogger()
	defer closeLog()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	var live <-chan leaderboard.Entry
	if boardLive {
		if feedURL, err := client.FeedURL(); err == nil {
			live, err = api.DialFeed(ctx, feedURL, log)
			if err != nil {
				log.Warn().Err(err).Msg("live updates unavailable")
			}
		}
	}

	m := leaderboardui.NewModel(leaderboardui.Options{Fetcher: client, Query: q, Live: live})
	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run leaderboard TUI: %w", err)
	}
	return nil
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream new leaderboard scores as they are submitted",
		Args:  cobra.NoArgs,
		RunE:  runWatchCmd,
	}
}

func runWatchCmd(cmd *cobra.Command, _ []string) error {
	server, err := accountServer()
	if err != nil {
		return err
	}
	client := leaderboard.NewClient(server, "")
	feedURL, err := client.FeedURL()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	entries, err := api.DialFeed(ctx, feedURL, cliLogger())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if err := printf(out, "Watching %s (ctrl+c to stop)\n", client.BaseURL()); err != nil {
		return err
	}
	for e := range entries {
		if err := printf(out, "%s  %-24s %4d wpm %3d%%  %s\n",
			e.CreatedAt.Local().Format("15:04:05"), e.Username, e.WPM, e.Accuracy, leaderboard.ModeLabel(e)); err != nil {
			return err
		}
	}
	if ctx.Err() == nil {
		return fmt.Errorf("feed connection closed by server")
	}
	return nil
}

// cliLogger logs to stderr for commands that do not own the terminal.
func cliLogger() zerolog.Logger {
	return logger.Setup(logLevel, "pretty")
}
