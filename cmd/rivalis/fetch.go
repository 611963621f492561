package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rivalis-ai/rivalis/pkg/config"
	"github.com/rivalis-ai/rivalis/pkg/fetch"
	"github.com/spf13/cobra"
)

func newFetchCmd() *cobra.Command {
	var (
		configPath string
		raw        bool
	)

	cmd := &cobra.Command{
		Use:   "fetch <url>",
		Short: "Fetch a URL with retry and print its extracted content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if configPath != "" {
				var err error
				cfg, err = config.Load(configPath)
				if err != nil {
					return err
				}
			}

			opts := []fetch.Option{
				fetch.WithHTTPClient(&http.Client{
					Timeout: time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second,
				}),
				fetch.WithMaxAttempts(cfg.Fetch.MaxAttempts),
			}
			if cfg.Fetch.UserAgent != "" {
				opts = append(opts, fetch.WithUserAgent(cfg.Fetch.UserAgent))
			}

			result := fetch.New(opts...).Fetch(cmd.Context(), args[0])
			if result.Error != "" {
				return fmt.Errorf("fetch %s: %s (HTTP %d)", result.URL, result.Error, result.StatusCode)
			}

			if raw {
				fmt.Print(result.RawContent)
				return nil
			}
			if result.Title != "" {
				fmt.Printf("# %s\n\n", result.Title)
			}
			fmt.Println(result.Text)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	cmd.Flags().BoolVar(&raw, "raw", false, "print raw HTML instead of extracted text")

	return cmd
}
