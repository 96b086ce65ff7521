// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const initUsage = `Usage: launchpad init [options]

Create a launchpad.hjson configuration file in the current directory.

The command asks for a project and its tasks, then writes a commented
config you can edit afterwards.

Options:
  -h, -help    Show this help message

After running init:
  1. Review and edit launchpad.hjson as needed
  2. Run: launchpad
  3. Launch: launchpad-ctl launch <project>`

type taskAnswers struct {
	Name    string
	Command string
	Port    int
	Health  string
}

type initAnswers struct {
	ProjectName string
	Port        int
	Tasks       []taskAnswers
}

// runInit handles "launchpad init".
func runInit(args []string) error {
	initFlags := flag.NewFlagSet("init", flag.ExitOnError)
	showHelp := initFlags.Bool("help", false, "Show help for init command")
	initFlags.BoolVar(showHelp, "h", false, "Show help for init command")
	initFlags.Parse(args)

	if *showHelp {
		fmt.Println(initUsage)
		return nil
	}

	configFile := "launchpad.hjson"
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("%s already exists; remove it first or use a different directory", configFile)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	fmt.Println("Launchpad Configuration Setup")
	fmt.Println("=============================")
	fmt.Println()
	fmt.Println("Press Enter to accept defaults shown in [brackets].")
	fmt.Println()

	answers := askInit(bufio.NewReader(os.Stdin), os.Stdout, filepath.Base(cwd))

	if err := os.WriteFile(configFile, []byte(generateConfig(answers)), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Println()
	fmt.Printf("Created %s\n", configFile)
	return nil
}

func askInit(reader *bufio.Reader, out io.Writer, defaultName string) initAnswers {
	a := initAnswers{}
	a.ProjectName = prompt(reader, out, "Project name", defaultName)

	a.Port = 4477
	if p, err := strconv.Atoi(prompt(reader, out, "API port", "4477")); err == nil {
		a.Port = p
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Tasks are the processes a project runs (servers, watchers, tunnels).")
	for {
		more := prompt(reader, out, "Add a task? (y/n)", "y")
		if strings.ToLower(more) != "y" {
			break
		}
		t := taskAnswers{}
		t.Name = prompt(reader, out, "  Task name", "web")
		t.Command = prompt(reader, out, "  Command to run", "npm run dev")
		if p, err := strconv.Atoi(prompt(reader, out, "  Port it listens on (0 for none)", "0")); err == nil {
			t.Port = p
		}
		if t.Port > 0 {
			t.Health = prompt(reader, out, "  Health check URL (or empty to skip)", fmt.Sprintf("http://localhost:%d/", t.Port))
		}
		a.Tasks = append(a.Tasks, t)
		fmt.Fprintln(out)
	}
	return a
}

func prompt(reader *bufio.Reader, out io.Writer, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(out, "%s [%s]: ", question, defaultVal)
	} else {
		fmt.Fprintf(out, "%s: ", question)
	}
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return defaultVal
	}
	return input
}

// escapeHJSONValue escapes a string for an HJSON double-quoted value.
func escapeHJSONValue(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}

func generateConfig(a initAnswers) string {
	var sb strings.Builder

	sb.WriteString(`{
  // Launchpad configuration (HJSON: JSON with comments and relaxed syntax).
  //
  // Template variables available in command, work_dir, env_file, env values
  // and health_check.url:
  //   {{.Project.ID}}  {{.Project.Name}}  {{.Task.Name}}  {{.Task.Port}}
  //   {{.Environment}} {{.Home}}

  server: {
    host: "127.0.0.1"
    port: `)
	sb.WriteString(strconv.Itoa(a.Port))
	sb.WriteString(`

    // For HTTPS, set both:
    // tls_cert: "~/.launchpad/cert.pem"
    // tls_key: "~/.launchpad/key.pem"
  }

  // Where performance history is stored
  // data_dir: "~/.launchpad"

  // Reload projects when this file changes
  watch: {
    debounce: "250ms"
  }

  projects: [
    {
      name: "`)
	sb.WriteString(escapeHJSONValue(a.ProjectName))
	sb.WriteString(`"
      tasks: [
`)

	if len(a.Tasks) == 0 {
		sb.WriteString(`        // {
        //   name: "web"
        //   command: "npm run dev"
        //   work_dir: "~/src/app"
        //   port: 3000
        //
        //   // "external" opens the task in a terminal window
        //   // mode: "internal"
        //
        //   // Only run in these environments (empty means all)
        //   // environments: ["dev"]
        //
        //   // env: { dev: { NODE_ENV: "development" } }
        //
        //   // health_check: {
        //   //   enabled: true
        //   //   url: "http://localhost:{{.Task.Port}}/health"
        //   //   interval: "30s"
        //   //   retries: 3
        //   //   auto_restart: true
        //   // }
        // }
`)
	}
	for _, t := range a.Tasks {
		sb.WriteString(`        {
          name: "`)
		sb.WriteString(escapeHJSONValue(t.Name))
		sb.WriteString(`"
          command: "`)
		sb.WriteString(escapeHJSONValue(t.Command))
		sb.WriteString(`"
`)
		if t.Port > 0 {
			sb.WriteString(`          port: `)
			sb.WriteString(strconv.Itoa(t.Port))
			sb.WriteString("\n")
		}
		if t.Health != "" {
			sb.WriteString(`          health_check: {
            enabled: true
            url: "`)
			sb.WriteString(escapeHJSONValue(t.Health))
			sb.WriteString(`"
          }
`)
		}
		sb.WriteString("        }\n")
	}

	sb.WriteString(`      ]
    }
  ]
}
`)
	return sb.String()
}
