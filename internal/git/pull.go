// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package git

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
)

// PullStatus is the outcome of [Pull].
type PullStatus int

// Pull outcomes. All but PullUpToDate and PullUpdated mean the repository
// was left as it is.
const (
	PullUpToDate PullStatus = iota
	PullUpdated
	PullNotOfficialBranch
	PullDirty
	PullWrongRemote
	PullNoFastForward
)

// OK returns if the pull was done or not needed.
func (s PullStatus) OK() bool {
	return s == PullUpToDate || s == PullUpdated
}

// Pull updates the checkout with a fast-forward merge, if it is on one of
// the given official branches, clean and tracks the upstream remote. If one
// of these conditions is not met, a warning is logged and the repository is
// not touched.
func Pull(ctx context.Context, repo *Repository, url string, officialBranches []string) (PullStatus, error) {
	name := repo.Dir

	branch, err := repo.Branch(ctx)
	if err != nil {
		return 0, err
	}

	if !slices.Contains(officialBranches, branch) {
		slog.Warn(fmt.Sprintf("NOTE: not on official branch, skipping pull of %s "+
			"(official branches: %s)", name, strings.Join(officialBranches, ", ")),
			slog.String("branch", branch))

		return PullNotOfficialBranch, nil
	}

	clean, err := repo.IsClean(ctx)
	if err != nil {
		return 0, err
	}

	if !clean {
		slog.Warn("Uncommitted changes, skipping pull", slog.String("repo", name))
		return PullDirty, nil
	}

	remote, err := repo.UpstreamRemote(ctx, url)
	if err != nil {
		return 0, err
	}

	upstream := remote + "/" + branch

	tracking, err := repo.RevParse(ctx, branch+"@{u}", "--abbrev-ref")
	if err != nil || tracking != upstream {
		slog.Warn("Branch is not tracking the upstream, skipping pull",
			slog.String("repo", name),
			slog.String("branch", branch),
			slog.String("upstream", upstream),
		)

		return PullWrongRemote, nil //nolint:nilerr
	}

	_, err = repo.Run(ctx, "fetch")
	if err != nil {
		return 0, err
	}

	local, err := repo.RevParse(ctx, branch)
	if err != nil {
		return 0, err
	}

	remoteRev, err := repo.RevParse(ctx, upstream)
	if err != nil {
		return 0, err
	}

	if local == remoteRev {
		slog.Info(name + ": already up to date")
		return PullUpToDate, nil
	}

	canFF, err := repo.CanFastForward(ctx, branch, upstream)
	if err != nil {
		return 0, err
	}

	if !canFF {
		slog.Warn("Can't fast-forward, looks like you committed on top of it, skipping pull",
			slog.String("repo", name),
			slog.String("upstream", upstream),
		)

		return PullNoFastForward, nil
	}

	_, err = repo.Run(ctx, "merge", "--ff-only", upstream)
	if err != nil {
		return 0, err
	}

	slog.Info(name + ": updated to " + upstream)

	return PullUpdated, nil
}
