// Package execution submits analysis runs built from the current selection
// and keeps the jobs collection in step with them.
package execution

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/Ashfaaq98/dossier-console/internal/bus"
	"github.com/Ashfaaq98/dossier-console/internal/errs"
	"github.com/Ashfaaq98/dossier-console/internal/model"
	"github.com/Ashfaaq98/dossier-console/internal/selection"
	"github.com/Ashfaaq98/dossier-console/internal/state"
)

// Selection supplies the payload for the next run
type Selection interface {
	BuildPayload() (model.AnalysisPayload, error)
}

// Submitter sends an analysis request to the backend
type Submitter interface {
	SubmitAnalysis(ctx context.Context, payload model.AnalysisPayload) (model.ExecutionJob, error)
}

// Jobs is the part of the state store the runner refreshes
type Jobs interface {
	LoadJobs(ctx context.Context) error
	ReportError(c state.Collection, op string, err error)
}

// Runner turns the selection into a submitted job
type Runner struct {
	selection Selection
	submitter Submitter
	bus       bus.Bus
	jobs      Jobs
	logger    *log.Logger
}

// New creates a runner. b may be nil.
func New(sel Selection, submitter Submitter, b bus.Bus, jobs Jobs, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if b == nil {
		b = bus.NewNullBus(logger)
	}
	return &Runner{
		selection: sel,
		submitter: submitter,
		bus:       b,
		jobs:      jobs,
		logger:    logger,
	}
}

// Payload builds and checks the request without sending it.
func (r *Runner) Payload() (model.AnalysisPayload, error) {
	payload, err := r.selection.BuildPayload()
	if err != nil {
		return model.AnalysisPayload{}, err
	}
	if err := selection.ValidateRange(payload.StartDate, payload.EndDate); err != nil {
		return model.AnalysisPayload{}, errs.Validation("dates", err.Error())
	}
	return payload, nil
}

// Submit sends the current selection as an analysis run. An incomplete
// selection fails with a ValidationError before anything is sent. Gateway
// failures also land in the store's error slot.
func (r *Runner) Submit(ctx context.Context) (model.ExecutionJob, error) {
	payload, err := r.Payload()
	if err != nil {
		return model.ExecutionJob{}, err
	}

	job, err := r.submitter.SubmitAnalysis(ctx, payload)
	if err != nil {
		r.jobs.ReportError(state.Jobs, "submit analysis", err)
		return model.ExecutionJob{}, fmt.Errorf("failed to submit analysis: %w", err)
	}
	r.logger.Printf("Submitted analysis job %d for %d entities", job.ID, len(payload.Entities))

	if err := r.bus.PublishAnalysis(ctx, bus.NewAnalysisMessage(job, payload)); err != nil {
		r.logger.Printf("Failed to publish analysis for job %d: %v", job.ID, err)
	}

	// The job exists either way; a failed refresh is already in the error slot.
	_ = r.jobs.LoadJobs(ctx)
	return job, nil
}
