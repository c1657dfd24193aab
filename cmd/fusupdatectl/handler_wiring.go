// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package main

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/FSEmbedded/fus-device-update-azure/pkg/audit"
	"github.com/FSEmbedded/fus-device-update-azure/pkg/handler"
	"github.com/FSEmbedded/fus-device-update-azure/pkg/updater"
	"github.com/FSEmbedded/fus-device-update-azure/pkg/workdir"
)

var sourceArtifact string

func buildHandler() (*handler.Handler, error) {
	wd := workdir.New(cfg.WorkDir())
	wd.Mode = cfg.StampMode()
	wd.PollInterval = time.Duration(cfg.PollIntervalMs()) * time.Millisecond

	gw := updater.NewGateway(cfg.ShellPath())

	var al *audit.Log
	if cfg.AuditDBPath() != "" {
		var err error
		al, err = audit.Open(cfg.AuditDBPath())
		if err != nil {
			log.Warn().Err(err).Msg("failed to open audit database; continuing without an audit trail")
		}
	}

	dl := &fileCopyDownloader{SourcePath: sourceArtifact}
	return handler.NewHandler(wd, gw, dl, logHost{}, al), nil
}

func printOutcome(phase string, outcome fmt.Stringer, success bool) {
	fmt.Println(outcome.String())
	if !success {
		log.Error().Str("phase", phase).Msg("phase returned a failure outcome")
	}
}
