// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

// Package audit persists a history of lifecycle outcomes and the cached
// Update Kind for a workflow, supplementing spec.md §4.2's errorState stamp
// (which is overwritten on every write and carries no history) and spec.md
// §9's "cached Update Kind between IsInstalled and a subsequent Install"
// instance-state field (which does not survive a process restart).
package audit

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/FSEmbedded/fus-device-update-azure/pkg/interpreter"
	"github.com/FSEmbedded/fus-device-update-azure/pkg/updater"
)

// Record is one persisted lifecycle outcome.
type Record struct {
	ID            string
	CorrelationID string
	WorkflowID    string
	Phase         string
	Kind          updater.Kind
	ResultCode    interpreter.ResultCode
	ExtendedCode  interpreter.ExtendedCode
	ChildExitCode int
	Timestamp     time.Time
}

// Log is a thin handle on the audit SQLite database. Like the teacher's
// internal/db and internal/events packages, it opens and closes a
// connection per call rather than holding one open for the process
// lifetime — the handler invokes audit operations rarely enough that
// connection-pooling overhead is not a concern.
type Log struct {
	DBFilePath string
}

// Open creates the audit tables if missing and returns a Log bound to
// dbFilePath.
func Open(dbFilePath string) (*Log, error) {
	if err := createTables(dbFilePath); err != nil {
		return nil, err
	}
	return &Log{DBFilePath: dbFilePath}, nil
}

func createTables(dbFilePath string) error {
	db, err := sql.Open("sqlite", dbFilePath)
	if err != nil {
		return fmt.Errorf("audit: failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Err(closeErr).Msg("audit: failed to close database")
		}
	}()

	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS audit_records(
	id TEXT PRIMARY KEY,
	correlation_id TEXT NOT NULL,
	workflow_id TEXT NOT NULL,
	phase TEXT NOT NULL,
	kind INTEGER NOT NULL,
	result_code INTEGER NOT NULL,
	extended_code INTEGER NOT NULL,
	child_exit_code INTEGER NOT NULL,
	recorded_at TEXT NOT NULL
);`)
	if err != nil {
		return fmt.Errorf("audit: failed to create audit_records table: %w", err)
	}

	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS kind_cache(
	workflow_id TEXT PRIMARY KEY,
	kind INTEGER NOT NULL,
	updated_at TEXT NOT NULL
);`)
	if err != nil {
		return fmt.Errorf("audit: failed to create kind_cache table: %w", err)
	}

	return nil
}

// RecordOutcome persists one phase's final Outcome, per spec.md §4.2's
// write_error_state intent extended into a history rather than a single
// overwritten stamp.
func (l *Log) RecordOutcome(workflowID, phase string, kind updater.Kind, outcome interpreter.Outcome) error {
	db, err := sql.Open("sqlite", l.DBFilePath)
	if err != nil {
		return fmt.Errorf("audit: failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Err(closeErr).Msg("audit: failed to close database")
		}
	}()

	id := ulid.Make().String()
	correlationID := uuid.New().String()
	_, err = db.Exec(
		"INSERT INTO audit_records (id, correlation_id, workflow_id, phase, kind, result_code, extended_code, child_exit_code, recorded_at) VALUES (?,?,?,?,?,?,?,?,?);",
		id, correlationID, workflowID, phase, int(kind), int(outcome.Result), int(outcome.Extended), outcome.ChildExitCode, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("audit: failed to insert audit record: %w", err)
	}
	return nil
}

// RecentRecords returns up to limit audit records for workflowID, most
// recent first.
func (l *Log) RecentRecords(workflowID string, limit int) ([]Record, error) {
	db, err := sql.Open("sqlite", l.DBFilePath)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Err(closeErr).Msg("audit: failed to close database")
		}
	}()

	rows, err := db.Query(
		"SELECT id, correlation_id, workflow_id, phase, kind, result_code, extended_code, child_exit_code, recorded_at FROM audit_records WHERE workflow_id = ? ORDER BY id DESC LIMIT ?;",
		workflowID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to select audit records: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			log.Err(closeErr).Msg("audit: failed to close rows")
		}
	}()

	var records []Record
	for rows.Next() {
		var r Record
		var kind, resultCode, extendedCode int
		var recordedAt string
		if err := rows.Scan(&r.ID, &r.CorrelationID, &r.WorkflowID, &r.Phase, &kind, &resultCode, &extendedCode, &r.ChildExitCode, &recordedAt); err != nil {
			return nil, fmt.Errorf("audit: failed to scan audit record: %w", err)
		}
		r.Kind = updater.Kind(kind)
		r.ResultCode = interpreter.ResultCode(resultCode)
		r.ExtendedCode = interpreter.ExtendedCode(extendedCode)
		if ts, parseErr := time.Parse(time.RFC3339Nano, recordedAt); parseErr == nil {
			r.Timestamp = ts
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: error iterating over audit records: %w", err)
	}

	return records, nil
}

// SaveKind persists the Update Kind derived for workflowID, so a process
// restart between IsInstalled and the following Install does not lose it
// (spec.md §9 only requires this to survive in instance state; this is a
// stronger guarantee, not a contract requirement).
func (l *Log) SaveKind(workflowID string, kind updater.Kind) error {
	db, err := sql.Open("sqlite", l.DBFilePath)
	if err != nil {
		return fmt.Errorf("audit: failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Err(closeErr).Msg("audit: failed to close database")
		}
	}()

	_, err = db.Exec(
		"INSERT INTO kind_cache (workflow_id, kind, updated_at) VALUES (?,?,?) ON CONFLICT(workflow_id) DO UPDATE SET kind = excluded.kind, updated_at = excluded.updated_at;",
		workflowID, int(kind), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("audit: failed to upsert kind cache: %w", err)
	}
	return nil
}

// LoadKind returns the cached Update Kind for workflowID, if any.
func (l *Log) LoadKind(workflowID string) (updater.Kind, bool, error) {
	db, err := sql.Open("sqlite", l.DBFilePath)
	if err != nil {
		return updater.KindUnknown, false, fmt.Errorf("audit: failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Err(closeErr).Msg("audit: failed to close database")
		}
	}()

	row := db.QueryRow("SELECT kind FROM kind_cache WHERE workflow_id = ?;", workflowID)
	var kind int
	switch err := row.Scan(&kind); err {
	case nil:
		return updater.Kind(kind), true, nil
	case sql.ErrNoRows:
		return updater.KindUnknown, false, nil
	default:
		return updater.KindUnknown, false, fmt.Errorf("audit: failed to scan kind cache: %w", err)
	}
}
