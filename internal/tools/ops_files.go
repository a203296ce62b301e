// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package tools

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"taskagent/internal/sandbox"
)

func countSpecificWeekday(ctx context.Context, env *Env, args Args) (string, error) {
	const name = "count_specific_weekday"
	weekday := args.Int("weekday")
	if weekday < 0 || weekday > 6 {
		return "", ArgumentTypeError(name, "weekday", "must be between 0 (Monday) and 6 (Sunday), got %d", weekday)
	}

	content, err := readText(env, args.Path("input_file"))
	if err != nil {
		return "", err
	}

	count := 0
	for _, line := range splitLines(content) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		t, err := parseDate(line)
		if err != nil {
			env.Logger.Debug().Str("line", line).Err(err).Msg("Skipping unparseable date")
			continue
		}
		if mondayIndexed(t.Weekday()) == weekday {
			count++
		}
	}

	out := args.Path("output_file")
	if err := writeText(env, out, strconv.Itoa(count)); err != nil {
		return "", err
	}
	return wroteMessage(out, "counted %d dates", count), nil
}

// leadingWeekday matches a day name prefix such as "Sunday, " or "Tue ".
// dateparse rejects some layouts when they start with one.
var leadingWeekday = regexp.MustCompile(`(?i)^(mon|tue|tues|wed|wednes|thu|thur|thurs|fri|sat|satur|sun)(day)?\.?,?\s+`)

func parseDate(line string) (time.Time, error) {
	t, err := dateparse.ParseAny(line)
	if err == nil {
		return t, nil
	}
	if trimmed := leadingWeekday.ReplaceAllString(line, ""); trimmed != line {
		if t, terr := dateparse.ParseAny(trimmed); terr == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}

// mondayIndexed converts a time.Weekday (Sunday=0) to Monday=0 numbering.
func mondayIndexed(d time.Weekday) int {
	return (int(d) + 6) % 7
}

func sortContactsByFields(ctx context.Context, env *Env, args Args) (string, error) {
	const name = "sort_contacts_by_fields"
	var fields []string
	for _, field := range strings.Split(args.String("sort_fields"), ",") {
		field = strings.Trim(strings.TrimSpace(field), `"'[]`)
		if field != "" {
			fields = append(fields, field)
		}
	}
	if len(fields) == 0 {
		return "", ArgumentTypeError(name, "sort_fields", "names no fields")
	}

	content, err := readText(env, args.Path("input_file"))
	if err != nil {
		return "", err
	}
	var contacts []jsonObject
	if err := json.Unmarshal([]byte(content), &contacts); err != nil {
		return "", fmt.Errorf("input file is not a JSON array of objects: %w", err)
	}

	sort.SliceStable(contacts, func(i, j int) bool {
		for _, field := range fields {
			if c := compareJSONValues(contacts[i].field(field), contacts[j].field(field)); c != 0 {
				return c < 0
			}
		}
		return false
	})

	out := args.Path("output_file")
	if err := writeJSON(env, out, contacts); err != nil {
		return "", err
	}
	return wroteMessage(out, "sorted %d contacts by %s", len(contacts), strings.Join(fields, ",")), nil
}

type logFile struct {
	path    sandbox.Path
	modTime time.Time
}

func retrieveLogLines(ctx context.Context, env *Env, args Args) (string, error) {
	const name = "retrieve_log_lines"
	perFile, maxLogs := args.Int("lines_per_file"), args.Int("max_logs")
	if perFile < 0 {
		return "", ArgumentTypeError(name, "lines_per_file", "must not be negative")
	}
	if maxLogs < 0 {
		return "", ArgumentTypeError(name, "max_logs", "must not be negative")
	}

	dir := args.Path("input_dir")
	entries, err := os.ReadDir(dir.String())
	if err != nil {
		return "", fmt.Errorf("input directory not readable: %w", err)
	}

	var logs []logFile
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) != ".log" {
			continue
		}
		p, err := env.Guard.Join(dir, entry.Name())
		if err != nil {
			env.Logger.Warn().Str("entry", entry.Name()).Err(err).Msg("Skipping log outside sandbox")
			continue
		}
		info, err := os.Stat(p.String())
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		logs = append(logs, logFile{path: p, modTime: info.ModTime()})
	}
	sort.SliceStable(logs, func(i, j int) bool {
		return logs[i].modTime.After(logs[j].modTime)
	})
	if len(logs) > maxLogs {
		logs = logs[:maxLogs]
	}

	var b strings.Builder
	for _, lf := range logs {
		content, err := readText(env, lf.path)
		if err != nil {
			return "", err
		}
		lines := splitLines(content)
		if len(lines) > perFile {
			lines = lines[:perFile]
		}
		for _, line := range lines {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	if b.Len() == 0 {
		b.WriteByte('\n')
	}

	out := args.Path("output_file")
	if err := writeText(env, out, b.String()); err != nil {
		return "", err
	}
	return wroteMessage(out, "collected lines from %d log files", len(logs)), nil
}

func indexFilesByExtension(ctx context.Context, env *Env, args Args) (string, error) {
	const name = "index_files_by_extension"
	ext := args.String("extension")
	if strings.ContainsAny(ext, `/\`) {
		return "", ArgumentTypeError(name, "extension", "must not contain path separators")
	}
	marker := args.String("marker")

	dir := args.Path("input_dir")
	info, err := os.Stat(dir.String())
	if err != nil {
		return "", fmt.Errorf("input directory not found: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", dir.String())
	}

	pattern := "**/*" + escapeGlob(ext)
	index := map[string]string{}
	visited := 0
	err = doublestar.GlobWalk(os.DirFS(dir.String()), pattern, func(match string, d iofs.DirEntry) error {
		if d.IsDir() {
			return nil
		}
		visited++
		if limit := env.Limits.MaxDirectoryEntries; limit > 0 && visited > limit {
			return fmt.Errorf("more than %d matching files", limit)
		}
		p, err := env.Guard.Join(dir, filepath.FromSlash(match))
		if err != nil {
			env.Logger.Warn().Str("file", match).Err(err).Msg("Skipping file outside sandbox")
			return nil
		}
		found, err := firstMarkedLine(env, p, marker)
		if err != nil {
			return err
		}
		index[match] = found
		return nil
	})
	if err != nil {
		return "", err
	}

	out := args.Path("output_file")
	if err := writeJSON(env, out, index); err != nil {
		return "", err
	}
	return wroteMessage(out, "indexed %d files", len(index)), nil
}

func firstMarkedLine(env *Env, p sandbox.Path, marker string) (string, error) {
	f, err := env.Guard.Open(p)
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, marker) {
			return strings.TrimSpace(line[len(marker):]), nil
		}
	}
	return "", scanner.Err()
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(`*?[]{}\`, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

func convertMarkdownToHTML(ctx context.Context, env *Env, args Args) (string, error) {
	content, err := readText(env, args.Path("input_file"))
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(content), &buf); err != nil {
		return "", fmt.Errorf("markdown conversion failed: %w", err)
	}

	out := args.Path("output_file")
	if err := env.Guard.WriteFile(out, buf.Bytes()); err != nil {
		return "", err
	}
	return wroteMessage(out, "converted %d bytes of markdown", len(content)), nil
}

func filterCSVAndWriteJSON(ctx context.Context, env *Env, args Args) (string, error) {
	column, value := args.String("column"), args.String("value")

	f, err := env.Guard.Open(args.Path("input_file"))
	if err != nil {
		return "", err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		header = nil
	} else if err != nil {
		return "", fmt.Errorf("failed to read CSV header: %w", err)
	}

	rows := []map[string]string{}
	for header != nil {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read CSV: %w", err)
		}
		row := make(map[string]string, len(header))
		for i, key := range header {
			if i < len(record) {
				row[key] = record[i]
			} else {
				row[key] = ""
			}
		}
		if cell, ok := row[column]; ok && cell == value {
			rows = append(rows, row)
		}
	}

	out := args.Path("output_file")
	if err := writeJSON(env, out, rows); err != nil {
		return "", err
	}
	return wroteMessage(out, "matched %d rows", len(rows)), nil
}
