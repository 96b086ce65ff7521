// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wingedpig/launchpad/pkg/client"
)

func (c *cli) projectsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "projects [id]",
		Aliases: []string{"status", "ls"},
		Short:   "List projects, or show the tasks of one project",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if len(args) == 1 {
				p, err := c.api.Projects.Get(ctx, args[0])
				if err != nil {
					return err
				}
				if c.jsonOutput {
					return c.printJSON(p)
				}
				c.printProject(p)
				return nil
			}

			projects, err := c.api.Projects.List(ctx)
			if err != nil {
				return err
			}
			if c.jsonOutput {
				return c.printJSON(projects)
			}

			c.printf("%-20s %-24s %-10s %-6s %s\n", "PROJECT", "NAME", "STATE", "TASKS", "ENVIRONMENT")
			c.println(strings.Repeat("-", 72))
			for _, p := range projects {
				running := 0
				for _, t := range p.Tasks {
					if t.Running {
						running++
					}
				}
				c.printf("%-20s %-24s %-10s %-6s %s\n",
					p.ID,
					truncate(p.Name, 21),
					p.State,
					fmt.Sprintf("%d/%d", running, len(p.Tasks)),
					dash(p.Environment),
				)
			}
			return nil
		},
	}
}

func (c *cli) printProject(p *client.Project) {
	c.printf("Project: %s (%s)\n", p.Name, p.ID)
	c.printf("State:   %s\n", p.State)
	if p.Environment != "" {
		c.printf("Env:     %s\n", p.Environment)
	}
	if p.LaunchedAt != nil {
		c.printf("Since:   %s\n", p.LaunchedAt.Format("2006-01-02 15:04:05"))
	}
	c.println()

	c.printf("%-20s %-9s %-8s %-8s %-10s %s\n", "TASK", "MODE", "RUNNING", "PID", "HEALTH", "PORTS")
	c.println(strings.Repeat("-", 70))
	for _, t := range p.Tasks {
		pid := "-"
		if t.PID > 0 {
			pid = strconv.Itoa(t.PID)
		}
		running := "no"
		if t.Running {
			running = "yes"
		}
		var ports []string
		for _, port := range t.Ports {
			ports = append(ports, strconv.Itoa(port))
		}
		c.printf("%-20s %-9s %-8s %-8s %-10s %s\n", t.Name, t.Mode, running, pid, dash(t.Health), dash(strings.Join(ports, ",")))
	}

	for _, tun := range p.Tunnels {
		c.printf("\nTunnel %s: %s\n", tun.Task, tun.URL)
	}
	if len(p.Conflicts) > 0 {
		c.println()
		c.printConflicts(p.Conflicts)
	}
}

func (c *cli) printConflicts(conflicts []client.Conflict) {
	c.printf("%-7s %-8s %-16s %-16s %s\n", "PORT", "PID", "PROCESS", "TASK", "COMMAND")
	c.println(strings.Repeat("-", 72))
	for _, cf := range conflicts {
		c.printf("%-7d %-8d %-16s %-16s %s\n", cf.Port, cf.PID, truncate(dash(cf.ProcessName), 13), cf.Task, truncate(cf.Command, 40))
	}
}

func (c *cli) launchCmd() *cobra.Command {
	var (
		environment string
		yes         bool
	)
	cmd := &cobra.Command{
		Use:   "launch <project>",
		Short: "Launch every task of a project",
		Long: `Launch starts every task of a project that runs in the chosen
environment. If other processes hold ports the project needs, they are
listed and you are asked whether to kill them; --yes kills them without
asking.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id := args[0]

			result, err := c.api.Projects.Launch(ctx, id, environment)
			if err != nil {
				return err
			}

			if len(result.Conflicts) > 0 {
				if !c.jsonOutput {
					c.printf("%d port conflict(s) for %s:\n\n", len(result.Conflicts), id)
					c.printConflicts(result.Conflicts)
					c.println()
				}
				if !yes && !c.confirm("Kill these processes and launch anyway?") {
					if c.jsonOutput {
						return c.printJSON(result)
					}
					return fmt.Errorf("launch of %s cancelled", id)
				}
				result, err = c.api.Projects.ConfirmLaunch(ctx, id, environment, result.Conflicts)
				if err != nil {
					return err
				}
			}

			if c.jsonOutput {
				return c.printJSON(result)
			}
			c.printLaunchResult(result)
			if !result.Success {
				return fmt.Errorf("launch of %s finished with errors", id)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&environment, "env", "e", "", "Environment to launch")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Kill conflicting processes without asking")
	return cmd
}

func (c *cli) printLaunchResult(r *client.LaunchResult) {
	env := ""
	if r.Environment != "" {
		env = " (" + r.Environment + ")"
	}
	c.printf("Launched %s%s\n", r.Project, env)
	for _, name := range r.Started {
		c.printf("  started   %s\n", name)
	}
	for _, name := range r.External {
		c.printf("  terminal  %s\n", name)
	}
	for _, e := range r.Errors {
		c.printf("  failed    %s: %s\n", e.Task, e.Error)
	}
}

// confirm asks a yes/no question on the input stream. Anything but y or
// yes is no.
func (c *cli) confirm(question string) bool {
	if c.jsonOutput {
		return false
	}
	c.printf("%s [y/N]: ", question)
	answer, _ := bufio.NewReader(c.in).ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func (c *cli) stopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop <project>",
		Short: "Stop every task of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.api.Projects.Stop(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if c.jsonOutput {
				return c.printJSON(p)
			}
			c.printf("Stopped %s\n", p.ID)
			return nil
		},
	}
}

func (c *cli) taskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Start, stop or restart one task of a project",
	}

	actions := []struct {
		name  string
		short string
		done  string
		run   taskAction
	}{
		{"start", "Start one task", "Started", func(ctx context.Context, id, task string) (*client.Project, error) {
			return c.api.Projects.StartTask(ctx, id, task)
		}},
		{"stop", "Stop one task", "Stopped", func(ctx context.Context, id, task string) (*client.Project, error) {
			return c.api.Projects.StopTask(ctx, id, task)
		}},
		{"restart", "Restart one task", "Restarted", func(ctx context.Context, id, task string) (*client.Project, error) {
			return c.api.Projects.RestartTask(ctx, id, task)
		}},
	}

	for _, a := range actions {
		a := a
		cmd.AddCommand(&cobra.Command{
			Use:   a.name + " <project> <task>",
			Short: a.short,
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.runTaskAction(cmd.Context(), args[0], args[1], a.done, a.run)
			},
		})
	}
	return cmd
}

func (c *cli) restartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restart <project> <task>",
		Short: "Restart one task of a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runTaskAction(cmd.Context(), args[0], args[1], "Restarted", c.api.Projects.RestartTask)
		},
	}
}

type taskAction func(ctx context.Context, id, task string) (*client.Project, error)

func (c *cli) runTaskAction(ctx context.Context, id, task, done string, fn taskAction) error {
	p, err := fn(ctx, id, task)
	if err != nil {
		return err
	}
	if c.jsonOutput {
		return c.printJSON(p)
	}
	c.printf("%s %s/%s", done, id, task)
	for _, t := range p.Tasks {
		if t.Name == task && t.PID > 0 {
			c.printf(" (PID %d)", t.PID)
		}
	}
	c.println()
	return nil
}

func (c *cli) portsCmd() *cobra.Command {
	var environment string
	cmd := &cobra.Command{
		Use:   "ports <project>",
		Short: "Show ports a launch would need that are already in use",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conflicts, err := c.api.Projects.Ports(cmd.Context(), args[0], environment)
			if err != nil {
				return err
			}
			if c.jsonOutput {
				return c.printJSON(conflicts)
			}
			if len(conflicts) == 0 {
				c.println("No port conflicts")
				return nil
			}
			c.printConflicts(conflicts)
			return nil
		},
	}
	cmd.Flags().StringVarP(&environment, "env", "e", "", "Environment to check")
	return cmd
}

func (c *cli) killCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kill <pid>",
		Short: "Forcefully kill a process, such as one holding a needed port",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := strconv.Atoi(args[0])
			if err != nil || pid <= 0 {
				return fmt.Errorf("invalid pid: %s", args[0])
			}
			killed, err := c.api.Processes.Kill(cmd.Context(), pid)
			if err != nil {
				return err
			}
			if c.jsonOutput {
				return c.printJSON(map[string]interface{}{"pid": pid, "killed": killed})
			}
			if !killed {
				return fmt.Errorf("process %d was not killed", pid)
			}
			c.printf("Killed process %d\n", pid)
			return nil
		},
	}
}
