package main

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/nemaniarjun/storyengine/internal/httpx"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var engineAddr string

	cmd := &cobra.Command{
		Use:   "run <app-id> <story-name>",
		Short: "Trigger a story via an engine's gateway and stream its response",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			appID, story := args[0], args[1]
			url := fmt.Sprintf("http://%s/gateway/%s/%s", engineAddr, appID, story)

			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, url, nil)
			if err != nil {
				return err
			}

			client := httpx.New()
			zl := zerolog.Nop()
			resp, err := client.FetchWithRetry(context.Background(), nopLogger{zl}, 1, req)
			if err != nil {
				return fmt.Errorf("triggering story: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode >= 300 {
				return fmt.Errorf("engine returned status %d", resp.StatusCode)
			}
			_, err = io.Copy(cmd.OutOrStdout(), resp.Body)
			return err
		},
	}

	cmd.Flags().StringVar(&engineAddr, "engine", "127.0.0.1:8082", "storyengined address")
	return cmd
}

// nopLogger adapts a zerolog.Logger into storymodel.Logger for a CLI
// command that has no per-story logging context of its own.
type nopLogger struct{ zl zerolog.Logger }

func (n nopLogger) Debug(format string, args ...any) { n.zl.Debug().Msgf(format, args...) }
func (n nopLogger) Info(format string, args ...any)  { n.zl.Info().Msgf(format, args...) }
