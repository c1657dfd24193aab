// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package main

import (
	"os"

	"github.com/moby/term"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/FSEmbedded/fus-device-update-azure/pkg/config"
)

var (
	verbose     bool
	configPaths []string
	cfg         *config.Config

	rootCmd = &cobra.Command{
		Use:   "fusupdatectl",
		Short: "Drives the fus-device-update core state machine without real hardware",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			} else {
				zerolog.SetGlobalLevel(zerolog.InfoLevel)
			}
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: !term.IsTerminal(uintptr(os.Stderr.Fd()))})

			// The controller subcommands don't need a loaded config: they
			// only touch the work directory, whose path they take directly
			// via --workdir.
			if cmd.Parent() != nil && cmd.Parent().Name() == "controller" {
				return
			}

			var err error
			cfg, err = config.NewConfig(configPaths)
			cobra.CheckErr(err)
		},
	}
)

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose debug logging")
	rootCmd.PersistentFlags().StringSliceVarP(&configPaths, "cfg-dirs", "c",
		[]string{"/etc/fus-device-update"}, "A comma-separated list of paths to search for fus-update.toml")
}
