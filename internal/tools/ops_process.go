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
	"context"
	"fmt"
	"net/http"
	"os"
	"path"
	"regexp"
	"strings"
)

var (
	packageNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._\-\[\],<>=!~]*$`)
	versionPattern     = regexp.MustCompile(`^[0-9A-Za-z][0-9A-Za-z.\-+]*$`)
)

func installAndRunScript(ctx context.Context, env *Env, args Args) (string, error) {
	const name = "install_and_run_script"
	pkg := args.String("package")
	if !packageNamePattern.MatchString(pkg) {
		return "", ArgumentTypeError(name, "package", "is not a valid package specifier: %q", pkg)
	}
	scriptURL, err := requireHTTPURL(name, "script_url", args.String("script_url"))
	if err != nil {
		return "", err
	}
	scriptArg := args.String("script_arg")
	if err := rejectFlag(name, "script_arg", scriptArg); err != nil {
		return "", err
	}

	root := env.Guard.RootPath()
	if _, err := env.Runner.Run(ctx, root.String(), "python3", "-m", "pip", "install", pkg); err != nil {
		return "", fmt.Errorf("pip install %s: %w", pkg, err)
	}

	scriptName := path.Base(scriptURL.Path)
	if scriptName == "." || scriptName == "/" || scriptName == "" {
		scriptName = "script.py"
	}
	script, err := env.Guard.Join(root, scriptName)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, scriptURL.String(), nil)
	if err != nil {
		return "", err
	}
	body, err := fetch(env, name, req)
	if err != nil {
		return "", err
	}
	if err := env.Guard.WriteFile(script, body); err != nil {
		return "", err
	}

	output, err := env.Runner.Run(ctx, root.String(), "python3", script.String(), scriptArg)
	if err != nil {
		return "", fmt.Errorf("running %s: %w", scriptName, err)
	}
	env.Logger.Debug().Str("script", scriptName).Int("output_length", len(output)).Msg("Script finished")
	return fmt.Sprintf("installed %s and ran %s %s", pkg, scriptName, scriptArg), nil
}

func formatFileInplace(ctx context.Context, env *Env, args Args) (string, error) {
	const name = "format_file_inplace"
	version := strings.TrimPrefix(args.String("prettier_version"), "v")
	if !versionPattern.MatchString(version) {
		return "", ArgumentTypeError(name, "prettier_version", "is not a valid version: %q", version)
	}

	target := args.Path("file_path")
	info, err := os.Stat(target.String())
	if err != nil {
		return "", fmt.Errorf("file to format not found: %w", err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%s is not a regular file", target.String())
	}

	if _, err := env.Runner.Run(ctx, target.Dir().String(), "npx", "--yes", "prettier@"+version, "--write", target.String()); err != nil {
		return "", err
	}
	return fmt.Sprintf("formatted %s with prettier@%s", target.String(), version), nil
}

func cloneRepoAndCommit(ctx context.Context, env *Env, args Args) (string, error) {
	const name = "clone_repo_and_commit"
	repo, err := requireHTTPURL(name, "repo_url", args.String("repo_url"))
	if err != nil {
		return "", err
	}
	target := args.Path("output_dir")
	if target.Rel() == "." {
		return "", ArgumentTypeError(name, "output_dir", "must be a subdirectory of the data directory")
	}
	if entries, err := os.ReadDir(target.String()); err == nil && len(entries) > 0 {
		return "", fmt.Errorf("%s already exists and is not empty", target.String())
	}
	if err := env.Guard.MkdirAll(target.Dir()); err != nil {
		return "", err
	}

	root := env.Guard.RootPath().String()
	if _, err := env.Runner.Run(ctx, root, "git", "clone", "--", repo.String(), target.String()); err != nil {
		return "", err
	}
	if _, err := env.Runner.Run(ctx, target.String(), "git", "add", "."); err != nil {
		return "", err
	}
	commit := []string{
		"-c", "user.name=taskagent", "-c", "user.email=taskagent@localhost",
		"commit", "--allow-empty", "-m", args.String("commit_msg"),
	}
	if _, err := env.Runner.Run(ctx, target.String(), "git", commit...); err != nil {
		return "", err
	}
	return fmt.Sprintf("cloned %s into %s and committed", repo.String(), target.String()), nil
}
