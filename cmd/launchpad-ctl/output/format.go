// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/template"
	"time"

	"github.com/wingedpig/launchpad/pkg/client"
)

// Formatter writes output lines of one task.
type Formatter struct {
	opts     Options
	template *template.Template
	writer   io.Writer
	task     string
}

// NewFormatter creates a Formatter for lines of task.
func NewFormatter(w io.Writer, task string, opts Options) (*Formatter, error) {
	f := &Formatter{opts: opts, writer: w, task: task}

	if opts.Format == FormatTemplate {
		if opts.Template == "" {
			return nil, fmt.Errorf("template format needs a template")
		}
		tmpl, err := template.New("line").Parse(opts.Template)
		if err != nil {
			return nil, fmt.Errorf("invalid template: %w", err)
		}
		f.template = tmpl
	}

	return f, nil
}

// WriteLine writes one line. JSON array output needs WriteLines.
func (f *Formatter) WriteLine(line *client.OutputLine) error {
	switch f.opts.Format {
	case FormatJSON:
		return fmt.Errorf("use WriteLines for JSON array format")
	case FormatJSONL:
		return f.writeJSONL(line)
	case FormatCSV:
		return f.writeCSV([]client.OutputLine{*line}, false)
	case FormatRaw:
		_, err := fmt.Fprintln(f.writer, line.Line)
		return err
	case FormatTemplate:
		return f.writeTemplate(line)
	default:
		return f.writePlain(line)
	}
}

// WriteLines writes lines as a whole.
func (f *Formatter) WriteLines(lines []client.OutputLine) error {
	switch f.opts.Format {
	case FormatJSON:
		if lines == nil {
			lines = []client.OutputLine{}
		}
		data, err := json.MarshalIndent(lines, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(f.writer, "%s\n", data)
		return err
	case FormatCSV:
		return f.writeCSV(lines, true)
	default:
		for i := range lines {
			if err := f.WriteLine(&lines[i]); err != nil {
				return err
			}
		}
		return nil
	}
}

func (f *Formatter) writePlain(line *client.OutputLine) error {
	ts := line.Time.Format("15:04:05.000")
	marker := " "
	if line.Stream == "stderr" {
		marker = "!"
	}
	if f.opts.Prefix {
		_, err := fmt.Fprintf(f.writer, "%s %s [%s] %s\n", ts, marker, f.task, line.Line)
		return err
	}
	_, err := fmt.Fprintf(f.writer, "%s %s %s\n", ts, marker, line.Line)
	return err
}

func (f *Formatter) writeJSONL(line *client.OutputLine) error {
	data, err := json.Marshal(line)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(f.writer, "%s\n", data)
	return err
}

func (f *Formatter) writeCSV(lines []client.OutputLine, header bool) error {
	w := csv.NewWriter(f.writer)
	if header {
		if err := w.Write([]string{"seq", "time", "stream", "line"}); err != nil {
			return err
		}
	}
	for _, l := range lines {
		record := []string{
			strconv.FormatInt(l.Sequence, 10),
			l.Time.Format(time.RFC3339Nano),
			l.Stream,
			l.Line,
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func (f *Formatter) writeTemplate(line *client.OutputLine) error {
	data := map[string]interface{}{
		"seq":    line.Sequence,
		"time":   line.Time.Format("2006-01-02 15:04:05.000"),
		"stream": line.Stream,
		"line":   line.Line,
		"task":   f.task,
	}

	var buf bytes.Buffer
	if err := f.template.Execute(&buf, data); err != nil {
		return err
	}
	_, err := fmt.Fprintln(f.writer, buf.String())
	return err
}
