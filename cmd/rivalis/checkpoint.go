package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rivalis-ai/rivalis/pkg/checkpoint"
	"github.com/rivalis-ai/rivalis/pkg/config"
	"github.com/spf13/cobra"
)

// openStore builds the checkpoint store the config selects.
func openStore(cfg *config.Config) (checkpoint.Store, error) {
	switch cfg.Checkpoints.Backend {
	case "sqlite":
		return checkpoint.NewSQLiteStore(cfg.Checkpoints.Path)
	default:
		return checkpoint.NewFileStore(cfg.Checkpoints.Dir)
	}
}

func newCheckpointCmd() *cobra.Command {
	var (
		configPath string
		project    string
		stage      string
		list       bool
		load       bool
		deleteOne  bool
		clear      bool
	)

	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Inspect and manage pipeline checkpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if project == "" {
				project = cfg.Project.Name
			}

			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			switch {
			case list:
				infos, err := store.List(project)
				if err != nil {
					return err
				}
				if len(infos) == 0 {
					fmt.Println("No checkpoints found.")
					return nil
				}
				for _, info := range infos {
					fmt.Printf("%-20s %-30s %s\n", info.Project, info.Stage, info.Timestamp.Format("2006-01-02 15:04:05"))
				}
				return nil

			case load:
				if stage == "" {
					return errors.New("--load requires --stage")
				}
				data, err := store.Load(project, stage)
				if err != nil {
					if errors.Is(err, checkpoint.ErrNotFound) {
						return fmt.Errorf("no checkpoint for %s/%s", project, stage)
					}
					return err
				}
				var pretty json.RawMessage = data
				out, err := json.MarshalIndent(pretty, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(out))
				return nil

			case deleteOne:
				if stage == "" {
					return errors.New("--delete requires --stage")
				}
				removed, err := store.Delete(project, stage)
				if err != nil {
					return err
				}
				if !removed {
					fmt.Printf("no checkpoint for %s/%s\n", project, stage)
					return nil
				}
				fmt.Printf("deleted %s/%s\n", project, stage)
				return nil

			case clear:
				if err := store.Clear(project); err != nil {
					return err
				}
				fmt.Printf("cleared checkpoints for %s\n", project)
				return nil

			default:
				return cmd.Help()
			}
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")
	cmd.Flags().StringVarP(&project, "project", "p", "", "project name (default: from config)")
	cmd.Flags().StringVarP(&stage, "stage", "s", "", "stage name")
	cmd.Flags().BoolVar(&list, "list", false, "list checkpoints")
	cmd.Flags().BoolVar(&load, "load", false, "print one checkpoint's payload")
	cmd.Flags().BoolVar(&deleteOne, "delete", false, "delete one checkpoint")
	cmd.Flags().BoolVar(&clear, "clear", false, "delete all of the project's checkpoints")

	return cmd
}
