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
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	_ "modernc.org/sqlite"
	apperrors "taskagent/internal/errors"
	"taskagent/internal/sandbox"
)

// Statements that would open other database files are rejected: an attached
// or vacuumed-into file is not covered by the db_file path check.
var outsideFileSQL = regexp.MustCompile(`(?i)\battach\b|\bvacuum\b[^;]*\binto\b|\bload_extension\b`)


func checkSQL(operation, query string) error {
	if outsideFileSQL.MatchString(query) {
		return apperrors.New(apperrors.CodePathEscape, "SQL statement would access a file other than db_file").
			WithStage(apperrors.StageValidate).
			WithOperation(operation).
			WithField("sql_query")
	}
	return nil
}

func openSQLite(p sandbox.Path, readOnly bool) (*sql.DB, error) {
	dsn := (&url.URL{Scheme: "file", Path: p.String()}).String()
	if readOnly {
		dsn += "?mode=ro"
	}
	return sql.Open("sqlite", dsn)
}

func queryDBAndWrite(ctx context.Context, env *Env, args Args) (string, error) {
	const name = "query_db_and_write"
	query := args.String("sql_query")
	if err := checkSQL(name, query); err != nil {
		return "", err
	}

	db, err := openSQLite(args.Path("db_file"), true)
	if err != nil {
		return "", err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return "", fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	result := "0"
	if rows.Next() {
		values, err := scanRow(rows)
		if err != nil {
			return "", err
		}
		if len(values) > 0 {
			result = formatScalar(values[0])
		}
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("query failed: %w", err)
	}

	out := args.Path("output_file")
	if err := writeText(env, out, result); err != nil {
		return "", err
	}
	return wroteMessage(out, "query returned %s", result), nil
}

func runSQLOnDB(ctx context.Context, env *Env, args Args) (string, error) {
	const name = "run_sql_on_db"
	query := args.String("sql_query")
	if err := checkSQL(name, query); err != nil {
		return "", err
	}

	db, err := openSQLite(args.Path("db_file"), false)
	if err != nil {
		return "", err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return "", fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var b strings.Builder
	count := 0
	for rows.Next() {
		values, err := scanRow(rows)
		if err != nil {
			return "", err
		}
		b.WriteString(formatTuple(values))
		b.WriteByte('\n')
		count++
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("query failed: %w", err)
	}

	out := args.Path("output_file")
	if err := writeText(env, out, b.String()); err != nil {
		return "", err
	}
	return wroteMessage(out, "wrote %d rows", count), nil
}

func scanRow(rows *sql.Rows) ([]interface{}, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	values := make([]interface{}, len(columns))
	ptrs := make([]interface{}, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}
	return values, nil
}

func formatScalar(v interface{}) string {
	switch value := v.(type) {
	case nil:
		return "None"
	case []byte:
		return string(value)
	case string:
		return value
	case float64:
		return formatFloat(value)
	case bool:
		if value {
			return "True"
		}
		return "False"
	default:
		return fmt.Sprint(value)
	}
}

// formatTuple renders a row the way a Python tuple prints, e.g. (1, 'a').
func formatTuple(values []interface{}) string {
	parts := make([]string, len(values))
	for i, v := range values {
		switch value := v.(type) {
		case string:
			parts[i] = quoteSingle(value)
		case []byte:
			parts[i] = "b" + quoteSingle(string(value))
		default:
			parts[i] = formatScalar(value)
		}
	}
	if len(parts) == 1 {
		return "(" + parts[0] + ",)"
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func quoteSingle(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "'", `\'`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return "'" + s + "'"
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEn") {
		s += ".0"
	}
	return s
}

func fetchDataFromAPI(ctx context.Context, env *Env, args Args) (string, error) {
	const name = "fetch_data_from_api"
	u, err := requireHTTPURL(name, "url", args.String("url"))
	if err != nil {
		return "", err
	}

	method := args.String("method")
	var body io.Reader
	if method == http.MethodPost {
		payload := args.String("payload")
		var object map[string]interface{}
		if err := json.Unmarshal([]byte(payload), &object); err != nil {
			return "", ArgumentTypeError(name, "payload", "is not a JSON object: %v", err)
		}
		body = strings.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	data, err := fetch(env, name, req)
	if err != nil {
		return "", err
	}

	var indented bytes.Buffer
	if err := json.Indent(&indented, bytes.TrimSpace(data), "", "  "); err != nil {
		return "", fmt.Errorf("response is not JSON: %w", err)
	}

	out := args.Path("output_file")
	if err := env.Guard.WriteFile(out, indented.Bytes()); err != nil {
		return "", err
	}
	return wroteMessage(out, "%s %s returned %d bytes", method, u.Host, len(data)), nil
}

func scrapeWebsite(ctx context.Context, env *Env, args Args) (string, error) {
	const name = "scrape_website"
	u, err := requireHTTPURL(name, "url", args.String("url"))
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}

	data, err := fetch(env, name, req)
	if err != nil {
		return "", err
	}

	content := string(data)
	if args.String("text_only") == "true" {
		content, err = visibleText(content)
		if err != nil {
			return "", err
		}
	}

	out := args.Path("output_file")
	if err := writeText(env, out, content); err != nil {
		return "", err
	}
	return wroteMessage(out, "saved %d bytes from %s", len(content), u.Host), nil
}

var errResponseTooLarge = errors.New("response too large")

// fetch performs req and returns the body of a 2xx response. Transport
// failures and non-2xx statuses are upstream errors; a body over
// MaxResponseBytes fails the operation instead of being cut short.
func fetch(env *Env, operation string, req *http.Request) ([]byte, error) {
	resp, err := env.HTTP.Do(req)
	if err != nil {
		return nil, UpstreamError(operation, fmt.Sprintf("request to %s failed", req.URL.Host), err)
	}
	defer resp.Body.Close()

	limit := env.Limits.Normalize().MaxResponseBytes
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, UpstreamError(operation, "failed to read response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, UpstreamError(operation, fmt.Sprintf("%s responded %s", req.URL.Host, resp.Status), nil)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: %s sent more than %d bytes", errResponseTooLarge, req.URL.Host, limit)
	}
	return data, nil
}

var skippedElements = map[string]bool{
	"script": true, "style": true, "noscript": true, "svg": true, "iframe": true,
	"canvas": true, "template": true, "head": true,
}

var blockElements = map[string]bool{
	"p": true, "div": true, "section": true, "article": true, "main": true, "li": true,
	"tr": true, "br": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true,
	"h6": true, "blockquote": true, "pre": true, "table": true, "ul": true, "ol": true,
}

func visibleText(raw string) (string, error) {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("html.Parse: %w", err)
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if text := strings.TrimSpace(n.Data); text != "" {
				if sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
					sb.WriteByte(' ')
				}
				sb.WriteString(text)
			}
			return
		case html.ElementNode:
			tag := strings.ToLower(n.Data)
			if skippedElements[tag] {
				return
			}
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c)
			}
			if blockElements[tag] && sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
				sb.WriteByte('\n')
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return strings.TrimSpace(sb.String()) + "\n", nil
}
