// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/FSEmbedded/fus-device-update-azure/pkg/workflow"
)

// fileCopyDownloader stands in for the host agent's content-download
// subsystem (spec.md §1's "out of scope" collaborator): it copies
// SourcePath into the workflow's single file entity inside the work
// folder. When SourcePath is empty it creates an empty placeholder artifact
// instead, so the lifecycle can still be driven end to end without a real
// payload.
type fileCopyDownloader struct {
	SourcePath string
}

func (d *fileCopyDownloader) Download(_ context.Context, p workflow.Provider, workFolder string) error {
	file, err := workflow.SingleFile(p)
	if err != nil {
		return err
	}
	dest := filepath.Join(workFolder, file.TargetFilename)

	if err := os.MkdirAll(workFolder, 0o755); err != nil {
		return fmt.Errorf("fusupdatectl: create work folder: %w", err)
	}

	if d.SourcePath == "" {
		log.Info().Str("path", dest).Msg("no --source given; writing an empty placeholder artifact")
		return os.WriteFile(dest, nil, 0o644)
	}

	src, err := os.Open(d.SourcePath)
	if err != nil {
		return fmt.Errorf("fusupdatectl: open source artifact: %w", err)
	}
	defer src.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("fusupdatectl: create artifact copy: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("fusupdatectl: copy artifact: %w", err)
	}
	log.Info().Str("src", d.SourcePath).Str("dst", dest).Msg("downloaded artifact")
	return nil
}

// logHost stands in for the host agent's reboot-request collaborator
// (spec.md §1/§4.1): it has nothing to reboot, so it just logs the request.
type logHost struct{}

func (logHost) RequestImmediateReboot(p workflow.Provider) {
	log.Warn().Str("workflow_id", p.ID()).Msg("host agent would request an immediate reboot now")
}
