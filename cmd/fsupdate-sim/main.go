// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

// fsupdate-sim is a stand-in for the privileged external updater CLI
// documented in spec.md §6. It accepts the same flag vocabulary as the
// real updater and exits with a caller-controlled code read from
// FSUPDATE_SIM_EXIT_CODE, so pkg/updater and pkg/handler tests can launch a
// real child process instead of mocking exec.Cmd.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
)

func main() {
	updateFile := flag.String("update_file", "", "path to the artifact to install")
	updateType := flag.String("update_type", "", "app or fw")
	commitUpdate := flag.Bool("commit_update", false, "")
	rollbackUpdate := flag.Bool("rollback_update", false, "")
	rebootState := flag.Bool("update_reboot_state", false, "")
	firmwareVersion := flag.Bool("firmware_version", false, "")
	applicationVersion := flag.Bool("application_version", false, "")
	flag.Parse()

	_ = updateFile
	_ = updateType
	_ = commitUpdate
	_ = rollbackUpdate
	_ = rebootState

	if *firmwareVersion || *applicationVersion {
		if v := os.Getenv("FSUPDATE_SIM_VERSION"); v != "" {
			fmt.Println(v)
		}
	}

	exitCode := 0
	if raw := os.Getenv("FSUPDATE_SIM_EXIT_CODE"); raw != "" {
		code, err := strconv.Atoi(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fsupdate-sim: invalid FSUPDATE_SIM_EXIT_CODE %q: %v\n", raw, err)
			os.Exit(1)
		}
		exitCode = code
	}
	os.Exit(exitCode)
}
