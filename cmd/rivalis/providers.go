package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/rivalis-ai/rivalis/pkg/config"
	"github.com/rivalis-ai/rivalis/pkg/llm"
	"github.com/spf13/cobra"
)

func newProvidersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "Manage configured LLM providers",
	}
	cmd.AddCommand(newProvidersTestCmd())
	return cmd
}

// newProvidersTestCmd sends a one-token prompt through every configured task
// so misconfigured keys fail before a run burns budget on them.
func newProvidersTestCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Send a test prompt through each configured task",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			tasks := make([]string, 0, len(cfg.Tasks))
			for name := range cfg.Tasks {
				tasks = append(tasks, name)
			}
			sort.Strings(tasks)

			failed := 0
			for _, name := range tasks {
				tc := cfg.Tasks[name]
				if err := testTask(cmd.Context(), tc); err != nil {
					fmt.Printf("FAIL  %-20s %s/%s: %v\n", name, tc.Provider, tc.Model, err)
					failed++
					continue
				}
				fmt.Printf("OK    %-20s %s/%s\n", name, tc.Provider, tc.Model)
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d tasks failed", failed, len(tasks))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")
	return cmd
}

func testTask(ctx context.Context, tc config.TaskConfig) error {
	apiKey := os.Getenv(tc.APIKeyEnv)
	if apiKey == "" {
		return fmt.Errorf("%s is not set", tc.APIKeyEnv)
	}

	client, err := llm.New(tc.Provider, llm.Options{
		APIKey:    apiKey,
		Model:     tc.Model,
		MaxTokens: 16,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err = client.Complete(ctx, "Reply with the single word: ok", "")
	return err
}
