package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/rivalis-ai/rivalis/pkg/config"
	"github.com/rivalis-ai/rivalis/pkg/models"
	"github.com/spf13/cobra"
)

func newCostCmd() *cobra.Command {
	var (
		configPath string
		logPath    string
		byEntry    bool
	)

	cmd := &cobra.Command{
		Use:   "cost",
		Short: "Show accumulated LLM spend from the cost log",
		RunE: func(cmd *cobra.Command, args []string) error {
			if logPath == "" {
				cfg, err := config.Load(configPath)
				if err != nil {
					return err
				}
				logPath = cfg.Output.CostLog
			}

			data, err := os.ReadFile(logPath)
			if err != nil {
				return fmt.Errorf("read cost log: %w", err)
			}
			var log models.CostLog
			if err := json.Unmarshal(data, &log); err != nil {
				return fmt.Errorf("parse cost log: %w", err)
			}

			if byEntry {
				fmt.Print(formatEntryTable(log.Entries))
			} else {
				fmt.Print(formatSummary(log.Summary))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")
	cmd.Flags().StringVar(&logPath, "log", "", "cost log path (default: from config)")
	cmd.Flags().BoolVar(&byEntry, "entries", false, "list every call instead of the summary")

	return cmd
}

func formatSummary(s models.CostSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Total cost:   $%.4f of $%.2f (%.1f%%)\n", s.TotalCostUSD, s.BudgetUSD, s.BudgetPctUsed)
	fmt.Fprintf(&b, "Total calls:  %d\n", s.TotalCalls)
	fmt.Fprintf(&b, "Tokens:       %d in / %d out\n\n", s.TotalInputTokens, s.TotalOutputTokens)

	b.WriteString(formatBreakdown("BY PROVIDER", s.ByProvider))
	b.WriteString(formatBreakdown("BY TASK", s.ByTask))
	return b.String()
}

func formatBreakdown(header string, costs map[string]float64) string {
	if len(costs) == 0 {
		return ""
	}
	keys := make([]string, 0, len(costs))
	for k := range costs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "%-25s %10s\n", header, "COST")
	b.WriteString(strings.Repeat("-", 36) + "\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "%-25s $%9.4f\n", k, costs[k])
	}
	b.WriteString("\n")
	return b.String()
}

func formatEntryTable(entries []models.CostEntry) string {
	if len(entries) == 0 {
		return "No cost data found.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-20s %-20s %-25s %10s %10s %10s\n",
		"TIME", "TASK", "MODEL", "IN", "OUT", "COST")
	b.WriteString(strings.Repeat("-", 100) + "\n")

	var total float64
	for _, e := range entries {
		fmt.Fprintf(&b, "%-20s %-20s %-25s %10d %10d $%9.4f\n",
			e.Timestamp.Format("2006-01-02 15:04:05"),
			e.Task, e.Model, e.InputTokens, e.OutputTokens, e.CostUSD)
		total += e.CostUSD
	}
	b.WriteString(strings.Repeat("-", 100) + "\n")
	fmt.Fprintf(&b, "%88s $%9.4f\n", "TOTAL:", total)
	return b.String()
}
