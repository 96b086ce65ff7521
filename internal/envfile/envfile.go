// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package envfile reads KEY=VALUE environment files, merges them into a
// process environment and rewrites single variables in place.
package envfile

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

// AddedComment precedes variables appended by Update.
const AddedComment = "# Added by launchpad"

// updateMu serializes rewrites within this process.
var updateMu sync.Mutex

// Read parses an env file. A missing file yields an empty map and no error.
func Read(path string) (map[string]string, error) {
	if path == "" {
		return map[string]string{}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("open env file: %w", err)
	}
	defer f.Close()

	vars, err := godotenv.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse env file %s: %w", path, err)
	}
	return vars, nil
}

// Merge applies overlays to base (a KEY=VALUE list such as os.Environ()).
// Later overlays win. Keys already in base keep their position; new keys
// are appended in sorted order.
func Merge(base []string, overlays ...map[string]string) []string {
	final := make(map[string]string)
	var added []string
	for _, overlay := range overlays {
		for k, v := range overlay {
			if _, seen := final[k]; !seen {
				added = append(added, k)
			}
			final[k] = v
		}
	}

	out := make([]string, 0, len(base)+len(added))
	used := make(map[string]bool, len(final))
	for _, kv := range base {
		key := kv
		if i := strings.IndexByte(kv, '='); i >= 0 {
			key = kv[:i]
		}
		if v, ok := final[key]; ok {
			if used[key] {
				continue
			}
			used[key] = true
			out = append(out, key+"="+v)
			continue
		}
		out = append(out, kv)
	}

	sort.Strings(added)
	for _, k := range added {
		if !used[k] {
			out = append(out, k+"="+final[k])
		}
	}
	return out
}

// Environ returns the process environment with the variables from envFile
// and then vars layered on top.
func Environ(envFile string, vars map[string]string) ([]string, error) {
	fileVars, err := Read(envFile)
	if err != nil {
		return nil, err
	}
	return Merge(os.Environ(), fileVars, vars), nil
}

// Update sets key to value in the env file at path. An existing assignment is
// replaced on its own line; every other line is kept byte for byte. An absent
// key is appended after an AddedComment line. A missing file is created.
func Update(path, key, value string) error {
	if path == "" {
		return errors.New("env file path is empty")
	}
	if key == "" {
		return errors.New("env key is empty")
	}

	updateMu.Lock()
	defer updateMu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("read env file: %w", err)
	}

	line := key + "=" + formatValue(value)
	lines := bytes.SplitAfter(data, []byte("\n"))
	replaced := false
	for i, l := range lines {
		if prefix, ok := matchKey(l, key); ok {
			ending := ""
			if bytes.HasSuffix(l, []byte("\r\n")) {
				ending = "\r\n"
			} else if bytes.HasSuffix(l, []byte("\n")) {
				ending = "\n"
			}
			lines[i] = []byte(prefix + line + ending)
			replaced = true
		}
	}

	var out []byte
	if replaced {
		out = bytes.Join(lines, nil)
	} else {
		out = data
		if len(out) > 0 && !bytes.HasSuffix(out, []byte("\n")) {
			out = append(out, '\n')
		}
		out = append(out, []byte(AddedComment+"\n"+line+"\n")...)
	}

	return writeAtomic(path, out)
}

// matchKey reports whether l assigns key, returning any "export " prefix
// and leading indentation so it can be preserved.
func matchKey(l []byte, key string) (string, bool) {
	s := string(l)
	trimmed := strings.TrimLeft(s, " \t")
	indent := s[:len(s)-len(trimmed)]
	if strings.HasPrefix(trimmed, "#") {
		return "", false
	}
	prefix := indent
	if strings.HasPrefix(trimmed, "export ") {
		prefix += "export "
		trimmed = strings.TrimLeft(trimmed[len("export "):], " \t")
	}
	if !strings.HasPrefix(trimmed, key) {
		return "", false
	}
	rest := strings.TrimLeft(trimmed[len(key):], " \t")
	if !strings.HasPrefix(rest, "=") {
		return "", false
	}
	return prefix, true
}

// formatValue quotes values that would not survive a round trip unquoted.
func formatValue(v string) string {
	if v == "" || strings.ContainsAny(v, " \t#\"'\\$\n") {
		return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`).Replace(v) + `"`
	}
	return v
}

func writeAtomic(path string, data []byte) error {
	mode := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create env dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp env file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write env file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close env file: %w", err)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod env file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename env file: %w", err)
	}
	return nil
}
