package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"millionx-backend/domain/config"
	"millionx-backend/interfaces/tui"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var server, token string

	cmd := &cobra.Command{
		Use:   "explore",
		Short: "Terminal explorer for millionx knowledge sessions",
		Long: `Browse and grow knowledge exploration sessions from the terminal.

Authentication uses a session token obtained from a magic link; set it
via --token or the MILLIONX_TOKEN environment variable.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&server, "server", envOr("MILLIONX_SERVER", "http://localhost:8080"), "API server base URL")
	cmd.PersistentFlags().StringVar(&token, "token", os.Getenv("MILLIONX_TOKEN"), "session token")

	client := func() *tui.Client { return tui.NewClient(server, token) }

	cmd.AddCommand(
		sessionsCmd(client),
		startCmd(client),
		openCmd(client),
		deleteCmd(client),
	)

	return cmd
}

func sessionsCmd(client func() *tui.Client) *cobra.Command {
	var page, pageSize int

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List saved sessions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()

			sessions, err := client().ListSessions(ctx, page, pageSize)
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Println("no sessions yet — try: explore start <topic>")
				return nil
			}

			idColor := color.New(color.FgCyan)
			titleColor := color.New(color.Bold)
			metaColor := color.New(color.Faint)

			for _, s := range sessions {
				idColor.Print(s.ID.String())
				fmt.Print("  ")
				titleColor.Print(s.Title)
				metaColor.Printf("  %d nodes · %s\n", s.NodeCount, s.UpdatedAt.Local().Format("2006-01-02 15:04"))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 20, "sessions per page")
	return cmd
}

func startCmd(client func() *tui.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "start <topic>",
		Short: "Start a new exploration and open it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()

			session, err := client().StartTopic(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			return runExplorer(client(), session.ID)
		},
	}
}

func openCmd(client func() *tui.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "open <session-id>",
		Short: "Open an existing session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplorer(client(), args[0])
		},
	}
}

func deleteCmd(client func() *tui.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()

			if err := client().DeleteSession(ctx, args[0]); err != nil {
				return err
			}
			color.Green("deleted %s", args[0])
			return nil
		},
	}
}

func runExplorer(client *tui.Client, sessionID string) error {
	model := tui.NewModel(client, config.DefaultDomainConfig(), sessionID)
	_, err := tea.NewProgram(model, tea.WithAltScreen()).Run()
	return err
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
