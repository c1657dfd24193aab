// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package main

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/FSEmbedded/fus-device-update-azure/pkg/workflow"
)

// workflowFlags holds the flags every phase subcommand uses to assemble a
// workflow.StaticInput, standing in for the host agent's workflow handle
// (spec.md §1/§4.1).
type workflowFlags struct {
	workflowID        string
	workFolder        string
	installedCriteria string
	updateTypeToken   string
	handlerUpdateType string
	targetFilename    string
	updateSize        int64
}

func (f *workflowFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.workflowID, "workflow-id", "", "Opaque workflow identifier (default: a generated UUID)")
	cmd.Flags().StringVar(&f.workFolder, "work-folder", "", "Filesystem path the host agent owns for this update")
	cmd.Flags().StringVar(&f.installedCriteria, "installed-criteria", "", "Target version string")
	cmd.Flags().StringVar(&f.updateTypeToken, "update-type-token", "fus/update:1", "Update-type token, e.g. fus/update:1")
	cmd.Flags().StringVar(&f.handlerUpdateType, "handler-update-type", "", "handler_properties.updateType")
	cmd.Flags().StringVar(&f.targetFilename, "target-filename", "", "Name of the single file entity")
	cmd.Flags().Int64Var(&f.updateSize, "update-size", 0, "Update size in bytes")
}

func (f *workflowFlags) input() *workflow.StaticInput {
	id := f.workflowID
	if id == "" {
		id = uuid.New().String()
	}
	var entities []workflow.FileEntity
	if f.targetFilename != "" {
		entities = []workflow.FileEntity{{TargetFilename: f.targetFilename}}
	}
	return &workflow.StaticInput{In: workflow.Input{
		WorkflowID:        id,
		WorkFolder:        f.workFolder,
		InstalledCriteria: f.installedCriteria,
		UpdateTypeToken:   f.updateTypeToken,
		HandlerUpdateType: f.handlerUpdateType,
		FileEntities:      entities,
		UpdateSize:        f.updateSize,
	}}
}
