// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/burrowpm/burrow/internal/manifest"
	"github.com/burrowpm/burrow/pubgrub"
	"github.com/burrowpm/burrow/source"
)

func newResolveCmd(logger *logrus.Logger) *cobra.Command {
	var (
		manifestPath string
		registryPath string
		lockPath     string
	)

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve the manifest's dependencies and write the lockfile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()
			return runResolve(ctx, cmd, logger, manifestPath, registryPath, lockPath)
		},
	}
	cmd.Flags().StringVar(&manifestPath, "manifest", "burrow.toml", "project manifest file")
	cmd.Flags().StringVar(&registryPath, "registry", "registry.toml", "offline registry fixture")
	cmd.Flags().StringVar(&lockPath, "lock", "burrow.lock", "lockfile to write")
	return cmd
}

func runResolve(ctx context.Context, cmd *cobra.Command, logger *logrus.Logger, manifestPath, registryPath, lockPath string) error {
	m, err := manifest.Load(manifestPath)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), err)
		return err
	}
	reg, err := manifest.LoadRegistry(registryPath)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), err)
		return err
	}

	root, rootVersion := m.RootPackage()
	mgr := source.NewManager(ctx, reg.Client(), logger)
	provider := source.WithRoot(mgr, root, rootVersion, m.RootDependencies())

	// A still-valid lockfile biases the solve toward the previous pins.
	if lock, err := manifest.LoadLock(lockPath); err == nil && lock != nil && lock.InputsDigest == m.InputsDigest() {
		if pins, err := lock.Pins(); err == nil {
			provider.PreferPins(pins)
		}
	}

	// Warm the cache for the direct dependencies while the solver starts.
	direct := make([]string, 0, len(m.Dependencies))
	for name := range m.Dependencies {
		if pkg, err := source.ParsePackage(name); err == nil {
			direct = append(direct, pkg.Name)
		}
	}
	go mgr.Prefetch(ctx, direct, 4)

	solution, err := pubgrub.NewSolver(provider, logger).Solve(root, rootVersion)
	if err != nil {
		printSolveFailure(cmd, mgr, err)
		return err
	}

	lock := manifest.LockFromSolution(root, solution, m.InputsDigest())
	if err := manifest.WriteLock(lockPath, lock); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), err)
		return err
	}

	printSolution(cmd, root, solution)
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", lockPath)
	return nil
}

func printSolution(cmd *cobra.Command, root pubgrub.Package, solution map[pubgrub.Package]pubgrub.Version) {
	pkgs := make([]pubgrub.Package, 0, len(solution))
	for pkg := range solution {
		if pkg != root {
			pkgs = append(pkgs, pkg)
		}
	}
	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].String() < pkgs[j].String() })

	fmt.Fprintf(cmd.OutOrStdout(), "Resolved %d packages:\n", len(pkgs))
	for _, pkg := range pkgs {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s %s\n", color.CyanString(pkg.String()), solution[pkg])
	}
}

func printSolveFailure(cmd *cobra.Command, mgr *source.Manager, err error) {
	out := cmd.ErrOrStderr()
	var nse *pubgrub.NoSolutionError
	if errors.As(err, &nse) {
		fmt.Fprintln(out, color.RedString("No valid set of package versions exists:"))
		fmt.Fprintln(out, pubgrub.Explain(nse.Tree))
		return
	}
	var ce *pubgrub.CancelledError
	if errors.As(err, &ce) {
		fmt.Fprintln(out, color.YellowString("Resolution cancelled:"), ce.Err)
		return
	}
	fmt.Fprintln(out, color.RedString("Resolution failed:"), err)
	var pe *pubgrub.ProviderError
	if errors.As(err, &pe) && pe.Pkg.Name != "" {
		if matches := mgr.SuggestFor(pe.Pkg.Name); len(matches) > 0 {
			fmt.Fprintf(out, "did you mean: %s?\n", strings.Join(matches, ", "))
		}
	}
}
