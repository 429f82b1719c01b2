package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhejian/shortlink/internal/client"
)

const defaultServerURL = "http://127.0.0.1:8080"

func newShortenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shorten [URL]",
		Short: "Create a short link through a running server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			serverURL, _ := cmd.Flags().GetString("server-url")
			alias, _ := cmd.Flags().GetString("alias")

			resp, err := client.NewClient(serverURL).Shorten(cmd.Context(), args[0], alias)
			if err != nil {
				if errors.Is(err, client.ErrAliasTaken) {
					return fmt.Errorf("alias %q is already taken", alias)
				}
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), resp.Short)
			return nil
		},
	}
	cmd.Flags().StringP("server-url", "u", defaultServerURL, "server URL")
	cmd.Flags().StringP("alias", "a", "", "custom alias")
	return cmd
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats [CODE]",
		Short: "Show click statistics for a short code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			serverURL, _ := cmd.Flags().GetString("server-url")

			stats, err := client.NewClient(serverURL).Stats(cmd.Context(), args[0])
			if err != nil {
				if errors.Is(err, client.ErrNotFound) {
					return fmt.Errorf("short code %q not found", args[0])
				}
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Short link:   %s\n", stats.Short)
			fmt.Fprintf(out, "Long URL:     %s\n", stats.LongURL)
			if stats.CustomAlias != "" {
				fmt.Fprintf(out, "Custom alias: %s\n", stats.CustomAlias)
			}
			fmt.Fprintf(out, "Created at:   %s\n", stats.CreatedAt)
			fmt.Fprintf(out, "Clicks:       %d\n", stats.Clicks)
			return nil
		},
	}
	cmd.Flags().StringP("server-url", "u", defaultServerURL, "server URL")
	return cmd
}
