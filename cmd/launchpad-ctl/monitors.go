// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wingedpig/launchpad/cmd/launchpad-ctl/output"
	"github.com/wingedpig/launchpad/pkg/client"
)

func (c *cli) healthCmd() *cobra.Command {
	var (
		history bool
		clear   bool
	)
	cmd := &cobra.Command{
		Use:   "health <project>",
		Short: "Show health check status of a project's tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id := args[0]

			if clear {
				if err := c.api.Health.ClearHistory(ctx, id); err != nil {
					return err
				}
				c.printf("Cleared health history of %s\n", id)
				return nil
			}

			if history {
				entries, err := c.api.Health.History(ctx, id)
				if err != nil {
					return err
				}
				if c.jsonOutput {
					return c.printJSON(entries)
				}
				c.printf("%-20s %-16s %-17s %s\n", "TIME", "TASK", "TYPE", "MESSAGE")
				c.println(strings.Repeat("-", 80))
				for _, e := range entries {
					c.printf("%-20s %-16s %-17s %s\n", e.Time.Local().Format("2006-01-02 15:04:05"), e.Task, e.Type, e.Message)
				}
				return nil
			}

			states, err := c.api.Health.Status(ctx, id)
			if err != nil {
				return err
			}
			if c.jsonOutput {
				return c.printJSON(states)
			}
			if len(states) == 0 {
				c.printf("No health checks running for %s\n", id)
				return nil
			}
			c.printf("%-16s %-10s %-9s %-8s %-10s %s\n", "TASK", "STATUS", "FAILURES", "TIME", "CHECKED", "URL")
			c.println(strings.Repeat("-", 80))
			for _, s := range states {
				checked := "-"
				if !s.LastCheck.IsZero() {
					checked = s.LastCheck.Local().Format("15:04:05")
				}
				c.printf("%-16s %-10s %-9d %-8s %-10s %s\n", s.Task, s.Status, s.Failures, fmt.Sprintf("%dms", s.ResponseTimeMS), checked, s.URL)
				if s.LastError != "" {
					c.printf("  %s\n", s.LastError)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&history, "history", false, "Show recent health transitions")
	cmd.Flags().BoolVar(&clear, "clear", false, "Clear health history")
	return cmd
}

func (c *cli) perfCmd() *cobra.Command {
	var (
		periods bool
		since   string
		until   string
		clear   bool
	)
	cmd := &cobra.Command{
		Use:   "perf <project>",
		Short: "Show CPU and memory usage of a project",
		Long: `Perf shows the recent in-memory samples of a running project. With
--since or --until it reads persisted history instead; times may be relative
(1h, 2d), a clock time (6:30am) or an ISO timestamp.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id := args[0]

			switch {
			case clear:
				if err := c.api.Performance.Clear(ctx, id); err != nil {
					return err
				}
				c.printf("Cleared performance history of %s\n", id)
				return nil

			case periods:
				list, err := c.api.Performance.Periods(ctx, id)
				if err != nil {
					return err
				}
				if c.jsonOutput {
					return c.printJSON(list)
				}
				for _, p := range list {
					c.printf("%04d-%02d\n", p.Year, p.Month)
				}
				return nil

			case since != "" || until != "":
				now := time.Now()
				var start, end time.Time
				var err error
				if since != "" {
					if start, err = output.ParseTime(since, now); err != nil {
						return fmt.Errorf("--since: %w", err)
					}
				}
				if until != "" {
					if end, err = output.ParseTime(until, now); err != nil {
						return fmt.Errorf("--until: %w", err)
					}
				}
				samples, err := c.api.Performance.History(ctx, id, start, end)
				if err != nil {
					return err
				}
				if c.jsonOutput {
					return c.printJSON(samples)
				}
				c.printSamples(samples)
				return nil
			}

			perf, err := c.api.Performance.Current(ctx, id)
			if err != nil {
				return err
			}
			if c.jsonOutput {
				return c.printJSON(perf)
			}
			if !perf.Monitoring && len(perf.Samples) == 0 {
				c.printf("%s is not being sampled\n", id)
				return nil
			}
			c.printSamples(perf.Samples)
			return nil
		},
	}
	cmd.Flags().BoolVar(&periods, "periods", false, "List months with persisted samples")
	cmd.Flags().StringVar(&since, "since", "", "Read persisted samples since (e.g. 1h, 6:30am, 2026-10-01)")
	cmd.Flags().StringVar(&until, "until", "", "Read persisted samples until")
	cmd.Flags().BoolVar(&clear, "clear", false, "Clear in-memory samples")
	return cmd
}

func (c *cli) printSamples(samples []client.Sample) {
	c.printf("%-20s %8s %10s %6s %s\n", "TIME", "CPU%", "MEMORY", "PROCS", "UPTIME")
	c.println(strings.Repeat("-", 60))
	for _, s := range samples {
		c.printf("%-20s %8.1f %10s %6d %s\n",
			s.Timestamp.Local().Format("2006-01-02 15:04:05"),
			s.CPU,
			formatBytes(s.Memory),
			len(s.Processes),
			(time.Duration(s.Uptime) * time.Second).String(),
		)
	}
}

func formatBytes(b uint64) string {
	const mb = 1024 * 1024
	if b >= 1024*mb {
		return fmt.Sprintf("%.2fGB", float64(b)/(1024*mb))
	}
	return fmt.Sprintf("%.1fMB", float64(b)/mb)
}

func (c *cli) detectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect <command...>",
		Short: "Suggest tunnel monitoring for an ngrok or cloudflared command",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := c.api.Tunnel.Detect(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			if c.jsonOutput {
				return c.printJSON(result)
			}
			if result.Detected && result.Monitoring != nil {
				c.printf("Detected %s. Add this to the task config:\n\n", result.Monitoring.Type)
				return c.printJSON(map[string]interface{}{"monitoring": result.Monitoring})
			}
			c.println("No tunnel agent detected")
			return nil
		},
	}
}
