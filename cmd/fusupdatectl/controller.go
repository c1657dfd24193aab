// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/FSEmbedded/fus-device-update-azure/pkg/workdir"
)

// controllerCmd groups the out-of-band controller-side operations on the
// work directory, per spec.md §4.2/§6: arming sentinels and inspecting
// stamps. These act directly on a work-folder path, bypassing the TOML
// config entirely, since the controller may run on a different host or in
// a different process than the handler.
var controllerCmd = &cobra.Command{
	Use:   "controller",
	Short: "Drive the work-dir rendezvous from the controller side",
}

var controllerWorkDir string

func init() {
	rootCmd.AddCommand(controllerCmd)
	controllerCmd.PersistentFlags().StringVar(&controllerWorkDir, "workdir", "", "Path to the handler's work folder (required)")

	armCmd := &cobra.Command{
		Use:   "arm <sentinel>",
		Short: "Create a sentinel file, releasing a WaitSentinel call blocked on it",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			DieNotNil(requireWorkDir())
			wd := workdir.New(controllerWorkDir)
			DieNotNil(wd.ArmSentinel(args[0]), "failed to arm sentinel")
		},
	}
	controllerCmd.AddCommand(armCmd)

	stampsCmd := &cobra.Command{
		Use:   "stamps",
		Short: "Print the well-known stamp files and their content",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			DieNotNil(requireWorkDir())
			wd := workdir.New(controllerWorkDir)
			for _, name := range []string{
				workdir.StampUpdateVersion,
				workdir.StampUpdateType,
				workdir.StampUpdateSize,
				workdir.StampUpdateLocation,
				workdir.StampErrorState,
			} {
				content, err := wd.ReadStamp(name)
				if err != nil {
					fmt.Printf("%s: <absent>\n", name)
					continue
				}
				fmt.Printf("%s: %s\n", name, content)
			}
		},
	}
	controllerCmd.AddCommand(stampsCmd)
}

func requireWorkDir() error {
	if controllerWorkDir == "" {
		return fmt.Errorf("fusupdatectl: --workdir is required")
	}
	return nil
}
