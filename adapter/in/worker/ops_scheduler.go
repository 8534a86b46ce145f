package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"ops_server/core/domain"
	"ops_server/core/port/out"
)

// Scheduler enqueues a regeneration job for every assigned staff member
// once a day at runHour local time.
type Scheduler struct {
	staff    out.AssignmentRepository
	producer out.RunbookJobProducer
	runHour  int
	now      func() time.Time
	log      zerolog.Logger
}

func NewScheduler(staff out.AssignmentRepository, producer out.RunbookJobProducer, runHour int, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		staff:    staff,
		producer: producer,
		runHour:  runHour,
		now:      time.Now,
		log:      log.With().Str("component", "runbook_scheduler").Logger(),
	}
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		next := nextRun(s.now(), s.runHour)
		s.log.Info().Time("next_run", next).Msg("runbook scheduler waiting")

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if n, err := s.RunOnce(ctx); err != nil {
			s.log.Error().Err(err).Int("enqueued", n).Msg("nightly runbook enqueue failed")
		}
	}
}

// RunOnce enqueues one job per staff member for the window starting today.
// A failed publish is logged and skipped.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	ids, err := s.staff.ListStaffWithAssignments(ctx)
	if err != nil {
		return 0, err
	}

	date := s.now().Format(domain.DateLayout)
	enqueued := 0
	for _, id := range ids {
		job := &out.RunbookGenerateJob{
			StaffID:  id.String(),
			Date:     date,
			RoleType: string(domain.RoleOperator),
			Source:   "scheduler",
		}
		if err := s.producer.PublishRunbookGenerate(ctx, job); err != nil {
			s.log.Warn().Err(err).Str("staff_id", job.StaffID).Msg("failed to enqueue runbook job")
			continue
		}
		enqueued++
	}

	s.log.Info().Int("staff", len(ids)).Int("enqueued", enqueued).Str("date", date).Msg("nightly runbook jobs enqueued")
	return enqueued, nil
}

// nextRun returns the first runHour:00 strictly after now, in now's location.
func nextRun(now time.Time, runHour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), runHour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
