// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package reconcile checks and repairs consistency between the
// metadata store and the vector index. The check runs on demand as a
// sequence of independent steps; a failing step is reported and the
// remaining steps still run.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/indexit/core"
	"github.com/poiesic/indexit/storage"
)

// StepReport holds the outcome of one reconciliation step.
type StepReport struct {
	Name  string
	Found int
	Fixed int
	Err   error
}

// Report aggregates all step outcomes of one reconciliation run.
type Report struct {
	Steps       []StepReport
	IndexStatus *core.IndexStatus
}

// StepByName returns the report for a named step, or nil.
func (r *Report) StepByName(name string) *StepReport {
	for i := range r.Steps {
		if r.Steps[i].Name == name {
			return &r.Steps[i]
		}
	}
	return nil
}

// Reconciler runs the consistency check between stores.
type Reconciler struct {
	files  storage.FileRepository
	index  storage.VectorIndex
	logger *slog.Logger
}

// NewReconciler creates a reconciler over the given stores.
func NewReconciler(files storage.FileRepository, index storage.VectorIndex, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{files: files, index: index, logger: logger}
}

// Run executes the full diagnostic pass. Steps never abort each other;
// every step reports its own found/fixed counts and error.
func (r *Reconciler) Run(ctx context.Context) *Report {
	report := &Report{}

	report.Steps = append(report.Steps, r.orphanedMetadata(ctx))

	orphans, step := r.orphanedVectors(ctx)
	report.Steps = append(report.Steps, step)
	report.Steps = append(report.Steps, r.cleanupVectors(ctx, orphans))

	report.Steps = append(report.Steps, r.statusSync(ctx))

	health := StepReport{Name: "index_health"}
	status, err := r.index.Status(ctx)
	if err != nil {
		health.Err = err
	} else {
		report.IndexStatus = status
	}
	report.Steps = append(report.Steps, health)

	for _, step := range report.Steps {
		if step.Err != nil {
			r.logger.Warn("reconciliation step failed", "step", step.Name, "err", step.Err)
			continue
		}
		r.logger.Info("reconciliation step done", "step", step.Name, "found", step.Found, "fixed", step.Fixed)
	}

	return report
}

// orphanedMetadata finds COMPLETED records with no vectors actually
// present in the index and corrects their status to FAILED.
func (r *Reconciler) orphanedMetadata(ctx context.Context) StepReport {
	step := StepReport{Name: "orphaned_metadata"}

	records, err := r.files.List(ctx, storage.ListOptions{})
	if err != nil {
		step.Err = err
		return step
	}

	for _, record := range records {
		if record.Status != core.StatusCompleted {
			continue
		}
		count, err := r.index.CountByFile(ctx, record.ID)
		if err != nil {
			step.Err = err
			return step
		}
		if count > 0 {
			continue
		}

		step.Found++
		failure := &storage.FailureInfo{
			Message: "index holds no vectors for completed file",
			Type:    core.ErrorTypeInternal,
		}
		if err := r.files.UpdateStatus(ctx, record.ID, core.StatusFailed, failure); err != nil {
			step.Err = err
			return step
		}
		step.Fixed++
	}

	return step
}

// orphanedVectors finds vectors whose file record is missing or
// DELETED. Returns the orphaned vector ids for the cleanup step.
func (r *Reconciler) orphanedVectors(ctx context.Context) ([]string, StepReport) {
	step := StepReport{Name: "orphaned_vectors"}

	records, err := r.files.List(ctx, storage.ListOptions{IncludeDeleted: true})
	if err != nil {
		step.Err = err
		return nil, step
	}

	known := make(map[string]struct{}, len(records))
	for _, record := range records {
		if record.Status == core.StatusDeleted {
			continue
		}
		known[record.ID] = struct{}{}
	}

	orphans, err := r.index.FindOrphaned(ctx, known)
	if err != nil {
		step.Err = err
		return nil, step
	}

	step.Found = len(orphans)
	return orphans, step
}

// cleanupVectors deletes the orphaned vectors found by the previous
// step, grouped per file id.
func (r *Reconciler) cleanupVectors(ctx context.Context, orphans []string) StepReport {
	step := StepReport{Name: "cleanup", Found: len(orphans)}

	fileIDs := make(map[string]struct{})
	for _, vectorID := range orphans {
		fileID, _, err := core.ParseVectorID(vectorID)
		if err != nil {
			step.Err = fmt.Errorf("malformed vector id %q: %w", vectorID, err)
			return step
		}
		fileIDs[fileID] = struct{}{}
	}

	for fileID := range fileIDs {
		deleted, err := r.index.DeleteByFile(ctx, fileID)
		if err != nil {
			step.Err = err
			return step
		}
		step.Fixed += deleted
	}

	return step
}

// statusSync corrects recorded chunk counts that disagree with the
// actual vector count in the index.
func (r *Reconciler) statusSync(ctx context.Context) StepReport {
	step := StepReport{Name: "status_sync"}

	records, err := r.files.List(ctx, storage.ListOptions{})
	if err != nil {
		step.Err = err
		return step
	}

	for _, record := range records {
		if record.Status != core.StatusCompleted {
			continue
		}
		count, err := r.index.CountByFile(ctx, record.ID)
		if err != nil {
			step.Err = err
			return step
		}
		// Zero vectors is the orphaned-metadata case, handled earlier.
		if count == 0 || count == record.ChunkCount {
			continue
		}

		step.Found++
		if err := r.files.SetVectorizationResult(ctx, record.ID, true, count, ""); err != nil {
			step.Err = err
			return step
		}
		step.Fixed++
	}

	return step
}
