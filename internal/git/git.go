// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package git wraps the git commands needed to manage the pmaports and aports
// checkouts.
package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/z3ntu/pmbootstrap/internal/config"
	"github.com/z3ntu/pmbootstrap/internal/run"
)

var (
	// ErrUnknownRepo is returned for repository names without URL.
	ErrUnknownRepo = errors.New("no git repository configured")

	// ErrNoUpstreamRemote is returned if no remote points to the official
	// repository URL.
	ErrNoUpstreamRemote = errors.New("no remote found for the upstream URL")
)

// URLs maps the short repository names to their official URLs.
var URLs = config.GitRepos

// Path returns the checkout path of the repository with the given name.
func Path(work, aports, name string) string {
	if name == "pmaports" {
		return aports
	}

	return filepath.Join(work, "cache_git", name)
}

// Repository is a git checkout.
type Repository struct {
	Dir    string
	Runner run.Runner
}

// Run runs git with the given arguments in the repository and returns its
// output without trailing newline.
func (r *Repository) Run(ctx context.Context, args ...string) (string, error) {
	output, err := run.OutputOf(ctx, r.Runner, append([]string{"git", "-C", r.Dir}, args...)...)
	if err != nil {
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}

	return strings.TrimRight(output, "\n"), nil
}

// RevParse returns the commit hash of the revision. With extra arguments
// like "--abbrev-ref", other names can be resolved.
func (r *Repository) RevParse(ctx context.Context, revision string, extra ...string) (string, error) {
	args := append([]string{"rev-parse"}, extra...)

	return r.Run(ctx, append(args, revision)...)
}

// Branch returns the currently checked out branch.
func (r *Repository) Branch(ctx context.Context) (string, error) {
	return r.RevParse(ctx, "HEAD", "--abbrev-ref")
}

// IsClean returns if the worktree has no changes to tracked files.
func (r *Repository) IsClean(ctx context.Context) (bool, error) {
	output, err := r.Run(ctx, "status", "--porcelain", "--untracked-files=no")
	if err != nil {
		return false, err
	}

	return output == "", nil
}

// UpstreamRemote returns the name of the remote that points to the given URL.
// A URL ending with ".git" also matches without that suffix.
func (r *Repository) UpstreamRemote(ctx context.Context, url string) (string, error) {
	output, err := r.Run(ctx, "remote", "-v")
	if err != nil {
		return "", err
	}

	candidates := []string{url, strings.TrimSuffix(url, ".git")}

	for line := range strings.Lines(output) {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		if slices.Contains(candidates, fields[1]) {
			return fields[0], nil
		}
	}

	return "", fmt.Errorf("%w: %s in %s", ErrNoUpstreamRemote, url, r.Dir)
}

// CanFastForward returns if the branch can be fast-forwarded to the given
// upstream ref.
func (r *Repository) CanFastForward(ctx context.Context, branch, upstream string) (bool, error) {
	result, err := r.Runner.Run(ctx, run.Cmd{
		Args:  []string{"git", "-C", r.Dir, "merge-base", "--is-ancestor", branch, upstream},
		Check: run.Bool(false),
	})
	if err != nil {
		return false, fmt.Errorf("git merge-base: %w", err)
	}

	return result.ExitCode == 0, nil
}

// Clone clones the URL into dir. It does nothing if dir exists already.
func Clone(ctx context.Context, runner run.Runner, url, dir string, shallow bool) error {
	if _, err := os.Stat(dir); err == nil {
		return nil
	}

	err := os.MkdirAll(filepath.Dir(dir), 0o755)
	if err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}

	args := []string{"git", "clone"}
	if shallow {
		args = append(args, "--depth=1")
	}

	slog.Info("Clone git repository: " + url)

	_, err = runner.Run(ctx, run.Cmd{
		Args:   append(args, url, dir),
		Output: run.OutputStdout,
	})
	if err != nil {
		return fmt.Errorf("git clone: %w", err)
	}

	return nil
}

// CloneRepo clones the repository with the given name to its path.
func CloneRepo(ctx context.Context, runner run.Runner, work, aports, name string) error {
	url, exists := URLs[name]
	if !exists {
		return fmt.Errorf("%w: %s", ErrUnknownRepo, name)
	}

	return Clone(ctx, runner, url, Path(work, aports, name), name != "pmaports")
}
