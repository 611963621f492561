package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rivalis-ai/rivalis/pkg/config"
	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Validate the config and scaffold output directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			dirs := []string{
				cfg.Output.Dir,
				cfg.Output.LogDir,
			}
			if cfg.Checkpoints.Backend == "file" {
				dirs = append(dirs, cfg.Checkpoints.Dir)
			}
			for _, comp := range cfg.Project.Competitors {
				dirs = append(dirs, filepath.Join(cfg.Output.Dir, config.Slug(comp.Name)))
			}

			for _, dir := range dirs {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("create %s: %w", dir, err)
				}
				fmt.Printf("created %s\n", dir)
			}

			fmt.Printf("project %s ready: %d competitors, $%.2f budget\n",
				cfg.Project.Name, len(cfg.Project.Competitors), cfg.Budget.MaxUSD)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")
	return cmd
}
