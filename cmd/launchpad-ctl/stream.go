// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wingedpig/launchpad/cmd/launchpad-ctl/output"
	"github.com/wingedpig/launchpad/pkg/client"
)

// outputConfig holds command-line options for the output command.
type outputConfig struct {
	lines    int
	follow   bool
	since    string
	until    string
	stream   string
	grep     string
	invert   bool
	before   int
	after    int
	context  int
	format   string
	template string
}

func (c *cli) outputCmd() *cobra.Command {
	cfg := &outputConfig{}
	cmd := &cobra.Command{
		Use:   "output <project> <task>",
		Short: "Show captured output of a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runOutput(cmd.Context(), args[0], args[1], cfg)
		},
	}
	f := cmd.Flags()
	f.IntVarP(&cfg.lines, "lines", "n", 100, "Number of lines")
	f.BoolVarP(&cfg.follow, "follow", "f", false, "Stream new output until interrupted")
	f.StringVar(&cfg.since, "since", "", "Show lines since (e.g. 10m, 6:30am, 2026-10-01T10:00:00Z)")
	f.StringVar(&cfg.until, "until", "", "Show lines until")
	f.StringVar(&cfg.stream, "stream", "", "Only stdout or stderr")
	f.StringVar(&cfg.grep, "grep", "", "Filter by regex pattern")
	f.BoolVarP(&cfg.invert, "invert", "v", false, "Show lines that do not match --grep")
	f.IntVarP(&cfg.before, "before", "B", 0, "Show N lines before each match")
	f.IntVarP(&cfg.after, "after", "A", 0, "Show N lines after each match")
	f.IntVarP(&cfg.context, "context", "C", 0, "Show N lines before and after each match")
	f.StringVar(&cfg.format, "format", "plain", "Output format: plain, json, jsonl, csv, raw, template")
	f.StringVar(&cfg.template, "template", "", "Go template for --format template (fields: seq, time, stream, line, task)")
	return cmd
}

func (c *cli) runOutput(ctx context.Context, project, task string, cfg *outputConfig) error {
	now := time.Now()
	opts := output.FilterOptions{
		Stream:      cfg.stream,
		GrepPattern: cfg.grep,
		Invert:      cfg.invert,
		Before:      cfg.before,
		After:       cfg.after,
	}
	if cfg.context > 0 {
		opts.Before, opts.After = cfg.context, cfg.context
	}
	var err error
	if cfg.since != "" {
		if opts.Since, err = output.ParseTime(cfg.since, now); err != nil {
			return fmt.Errorf("--since: %w", err)
		}
	}
	if cfg.until != "" {
		if opts.Until, err = output.ParseTime(cfg.until, now); err != nil {
			return fmt.Errorf("--until: %w", err)
		}
	}

	format, err := output.ParseFormat(cfg.format)
	if err != nil {
		return err
	}
	if c.jsonOutput {
		format = output.FormatJSON
	}
	if cfg.follow && format == output.FormatJSON {
		format = output.FormatJSONL
	}
	formatter, err := output.NewFormatter(c.out, task, output.Options{Format: format, Template: cfg.template})
	if err != nil {
		return err
	}

	out, err := c.api.Projects.Output(ctx, project, task, cfg.lines)
	if err != nil {
		return err
	}
	lines, err := output.FilterLines(out.Lines, opts)
	if err != nil {
		return err
	}
	if err := formatter.WriteLines(lines); err != nil {
		return err
	}

	if !cfg.follow {
		return nil
	}

	// Context lines need the whole window, so following filters line by line
	filter, err := output.NewFilter(output.FilterOptions{
		Stream:      opts.Stream,
		GrepPattern: opts.GrepPattern,
		Invert:      opts.Invert,
	})
	if err != nil {
		return err
	}
	var lastSeq int64
	if n := len(out.Lines); n > 0 {
		lastSeq = out.Lines[n-1].Sequence
	}

	return c.api.Events.Stream(ctx, client.StreamOptions{Pattern: "process.output", Project: project}, func(ev client.Event) error {
		line, ok := outputLineFromEvent(ev, task)
		if !ok {
			return nil
		}
		if line.Sequence > 0 && line.Sequence <= lastSeq {
			return nil
		}
		if !filter.Match(&line) {
			return nil
		}
		return formatter.WriteLine(&line)
	})
}

// outputLineFromEvent converts a process.output event of task.
func outputLineFromEvent(ev client.Event, task string) (client.OutputLine, bool) {
	if ev.Type != "process.output" {
		return client.OutputLine{}, false
	}
	if t, _ := ev.Payload["task"].(string); t != task {
		return client.OutputLine{}, false
	}
	line := client.OutputLine{Time: ev.Timestamp}
	line.Stream, _ = ev.Payload["stream"].(string)
	line.Line, _ = ev.Payload["data"].(string)
	if seq, ok := ev.Payload["seq"].(float64); ok {
		line.Sequence = int64(seq)
	}
	return line, true
}

func (c *cli) eventsCmd() *cobra.Command {
	var (
		limit   int
		types   []string
		project string
		since   string
		follow  bool
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show recent events, or follow live events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if follow {
				pattern := strings.Join(types, ",")
				return c.api.Events.Stream(ctx, client.StreamOptions{Pattern: pattern, Project: project}, func(ev client.Event) error {
					if c.jsonOutput {
						return c.printJSON(ev)
					}
					c.printEvent(ev)
					return nil
				})
			}

			opts := &client.ListOptions{Limit: limit, Types: types, Project: project}
			if since != "" {
				t, err := output.ParseTime(since, time.Now())
				if err != nil {
					return fmt.Errorf("--since: %w", err)
				}
				opts.Since = t
			}
			events, err := c.api.Events.List(ctx, opts)
			if err != nil {
				return err
			}
			if c.jsonOutput {
				return c.printJSON(events)
			}

			c.printf("%-20s %-26s %-16s %s\n", "TIME", "TYPE", "PROJECT", "DETAILS")
			c.println(strings.Repeat("-", 100))
			for _, ev := range events {
				c.printEvent(ev)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Number of events")
	cmd.Flags().StringSliceVarP(&types, "type", "t", nil, "Event type pattern, e.g. project.* (repeatable)")
	cmd.Flags().StringVarP(&project, "project", "p", "", "Only events of this project")
	cmd.Flags().StringVar(&since, "since", "", "Only events since (e.g. 1h, 6:30am)")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Stream live events until interrupted")
	return cmd
}

func (c *cli) printEvent(ev client.Event) {
	keys := make([]string, 0, len(ev.Payload))
	for k := range ev.Payload {
		if k == "project" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, ev.Payload[k]))
	}
	c.printf("%-20s %-26s %-16s %s\n",
		ev.Timestamp.Local().Format("2006-01-02 15:04:05"),
		ev.Type,
		dash(ev.Project),
		strings.Join(parts, " "),
	)
}

func (c *cli) notifyCmd() *cobra.Command {
	var n client.Notification
	cmd := &cobra.Command{
		Use:   "notify <title>",
		Short: "Send a desktop notification through Launchpad",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n.Title = args[0]
			switch n.Level {
			case client.LevelInfo, client.LevelWarning, client.LevelCritical:
			default:
				return fmt.Errorf("invalid level: %s (must be info, warning, or critical)", n.Level)
			}
			if err := c.api.Notify.Send(cmd.Context(), n); err != nil {
				return err
			}
			if !c.jsonOutput {
				c.println("Notification sent")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&n.Body, "body", "b", "", "Notification body")
	cmd.Flags().StringVarP(&n.Level, "level", "l", client.LevelInfo, "Level: info, warning, critical")
	cmd.Flags().StringVarP(&n.Project, "project", "p", "", "Project the notification concerns")
	return cmd
}
