// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package main

import (
	"context"

	"github.com/spf13/cobra"
)

var phaseCmd = &cobra.Command{
	Use:   "phase",
	Short: "Drive one lifecycle operation of the core state machine",
}

// flags is shared across all phase subcommands: only one phase runs per
// invocation of this CLI.
var flags = &workflowFlags{}

func init() {
	rootCmd.AddCommand(phaseCmd)

	newPhaseCmd("install", "Run the Install phase", func(ctx context.Context) {
		h, err := buildHandler()
		DieNotNil(err, "failed to build handler")
		outcome := h.Install(ctx, flags.input())
		printOutcome("Install", outcome, outcome.Success())
	})

	newPhaseCmd("apply", "Run the Apply phase", func(ctx context.Context) {
		h, err := buildHandler()
		DieNotNil(err, "failed to build handler")
		outcome := h.Apply(ctx, flags.input())
		printOutcome("Apply", outcome, outcome.Success())
	})

	newPhaseCmd("cancel", "Run the Cancel phase", func(ctx context.Context) {
		h, err := buildHandler()
		DieNotNil(err, "failed to build handler")
		outcome := h.Cancel(ctx, flags.input())
		printOutcome("Cancel", outcome, outcome.Success())
	})

	newPhaseCmd("isinstalled", "Run the IsInstalled phase", func(ctx context.Context) {
		h, err := buildHandler()
		DieNotNil(err, "failed to build handler")
		outcome := h.IsInstalled(ctx, flags.input())
		printOutcome("IsInstalled", outcome, outcome.Success())
	})

	newPhaseCmd("backup", "Run the Backup phase (no-op)", func(ctx context.Context) {
		h, err := buildHandler()
		DieNotNil(err, "failed to build handler")
		outcome := h.Backup(ctx, flags.input())
		printOutcome("Backup", outcome, outcome.Success())
	})

	newPhaseCmd("restore", "Run the Restore phase (unsupported)", func(ctx context.Context) {
		h, err := buildHandler()
		DieNotNil(err, "failed to build handler")
		outcome := h.Restore(ctx, flags.input())
		printOutcome("Restore", outcome, outcome.Success())
	})

	downloadCmd := newPhaseCmd("download", "Run the Download phase", func(ctx context.Context) {
		h, err := buildHandler()
		DieNotNil(err, "failed to build handler")
		outcome := h.Download(ctx, flags.input())
		printOutcome("Download", outcome, outcome.Success())
	})
	downloadCmd.Flags().StringVar(&sourceArtifact, "source", "", "Path to a local file to use as the downloaded artifact")
}

func newPhaseCmd(use, short string, run func(ctx context.Context)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			run(cmd.Context())
		},
	}
	flags.register(cmd)
	phaseCmd.AddCommand(cmd)
	return cmd
}
