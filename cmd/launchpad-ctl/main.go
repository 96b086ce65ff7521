// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// launchpad-ctl is a command-line tool for controlling a running Launchpad
// instance.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wingedpig/launchpad/pkg/client"
)

var (
	version       = "0.9"
	defaultAPIURL = "http://127.0.0.1:4477"
)

// cli holds state shared by every command.
type cli struct {
	apiURL     string
	jsonOutput bool
	api        *client.Client
	in         io.Reader
	out        io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(os.Stdin, os.Stdout)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	c := &cli{in: in, out: out}

	apiURL := defaultAPIURL
	if env := os.Getenv("LAUNCHPAD_API"); env != "" {
		apiURL = env
	}

	root := &cobra.Command{
		Use:   "launchpad-ctl",
		Short: "Control a running Launchpad instance",
		Long: `launchpad-ctl launches, stops and inspects the projects of a running
Launchpad server over its HTTP API.

Environment:
  LAUNCHPAD_API    Base URL of the Launchpad API (default: ` + defaultAPIURL + `)`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			c.api = client.New(strings.TrimSuffix(c.apiURL, "/"))
		},
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(out)

	root.PersistentFlags().StringVar(&c.apiURL, "api", apiURL, "Base URL of the Launchpad API")
	root.PersistentFlags().BoolVar(&c.jsonOutput, "json", false, "Output in JSON format")

	root.AddCommand(
		c.projectsCmd(),
		c.launchCmd(),
		c.stopCmd(),
		c.taskCmd(),
		c.restartCmd(),
		c.portsCmd(),
		c.killCmd(),
		c.outputCmd(),
		c.healthCmd(),
		c.perfCmd(),
		c.detectCmd(),
		c.eventsCmd(),
		c.notifyCmd(),
	)
	return root
}

// printJSON outputs any value as formatted JSON.
func (c *cli) printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.out, string(out))
	return err
}

func (c *cli) printf(format string, args ...interface{}) {
	fmt.Fprintf(c.out, format, args...)
}

func (c *cli) println(args ...interface{}) {
	fmt.Fprintln(c.out, args...)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
