package worker

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"ops_server/core/port/in"
	"ops_server/core/port/out"
	"ops_server/pkg/apperr"
)

// RunbookProcessor regenerates runbook windows from queued jobs.
type RunbookProcessor struct {
	runbooks in.RunbookService
	log      zerolog.Logger
}

func NewRunbookProcessor(runbooks in.RunbookService, log zerolog.Logger) *RunbookProcessor {
	return &RunbookProcessor{
		runbooks: runbooks,
		log:      log.With().Str("component", "runbook_processor").Logger(),
	}
}

// Process implements Processor. Only transient failures are returned;
// bad jobs and lock contention are logged and swallowed so they are not retried.
func (p *RunbookProcessor) Process(ctx context.Context, msg *Message) error {
	if msg.Type != JobRunbookGenerate {
		return fmt.Errorf("unknown job type %q", msg.Type)
	}

	var job out.RunbookGenerateJob
	if err := json.Unmarshal(msg.Data, &job); err != nil {
		p.log.Warn().Err(err).Str("job_id", msg.ID).Msg("dropping malformed runbook job")
		return nil
	}

	result, err := p.runbooks.Generate(ctx, &in.GenerateRunbookRequest{
		StaffID:  job.StaffID,
		Date:     job.Date,
		RoleType: job.RoleType,
	})
	switch {
	case err == nil:
		p.log.Info().
			Str("staff_id", result.StaffID).
			Str("from", result.From).
			Int("generated", result.Generated).
			Str("source", job.Source).
			Msg("runbook regenerated")
		return nil
	case apperr.HasCode(err, apperr.CodeConflict):
		p.log.Info().Str("staff_id", job.StaffID).Msg("runbook regeneration already in progress")
		return nil
	case apperr.HasCode(err, apperr.CodeNoPersona):
		p.log.Warn().Err(err).Str("staff_id", job.StaffID).Msg("runbook job skipped")
		return nil
	}
	if appErr := apperr.AsAppError(err); appErr.IsValidation() {
		p.log.Warn().Err(err).Str("staff_id", job.StaffID).Msg("runbook job rejected")
		return nil
	}
	return err
}

// Dispatcher feeds stream messages into the pool. It implements
// messaging.JobHandler; a message is acknowledged once it is queued.
type Dispatcher struct {
	pool *Pool
}

func NewDispatcher(pool *Pool) *Dispatcher {
	return &Dispatcher{pool: pool}
}

func (d *Dispatcher) Handle(ctx context.Context, stream string, data []byte) error {
	var jobType JobType
	switch stream {
	case out.StreamRunbookGenerate:
		jobType = JobRunbookGenerate
	default:
		return fmt.Errorf("no job type for stream %s", stream)
	}

	if !d.pool.Submit(NewMessage(jobType, data)) {
		return fmt.Errorf("worker pool is not running")
	}
	return nil
}
