package process

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Triggers label where a run came from.
const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
)

// DefaultSchedule runs ingestion daily at 06:00.
const DefaultSchedule = "0 6 * * *"

// Scheduler runs ingestion followed by the retention sweep on a cron schedule.
type Scheduler struct {
	pipeline      *Pipeline
	retentionDays int
	cron          *cron.Cron
	schedule      string
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewScheduler parses schedule (standard 5-field cron) and prepares the job.
// An empty schedule is rejected; callers wanting a single run use RunOnce.
func NewScheduler(p *Pipeline, schedule string, retentionDays int) (*Scheduler, error) {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(schedule); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		pipeline:      p,
		retentionDays: retentionDays,
		cron:          cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger))),
		schedule:      schedule,
		ctx:           ctx,
		cancel:        cancel,
	}
	if _, err := s.cron.AddFunc(schedule, func() { _ = s.RunOnce(s.ctx) }); err != nil {
		cancel()
		return nil, fmt.Errorf("schedule ingestion: %w", err)
	}
	return s, nil
}

// RunOnce performs one scheduled cycle: an ingestion run, then a sweep. A
// failed run skips the sweep.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	return RunCycle(ctx, s.pipeline, TriggerSchedule, s.retentionDays)
}

// RunCycle runs ingestion and then the retention sweep, recording the run
// under trigger.
func RunCycle(ctx context.Context, p *Pipeline, trigger string, retentionDays int) error {
	started := time.Now()
	res, err := p.Run(ctx)
	p.Metrics().ObserveRun(trigger, started, err)
	if err != nil {
		log.Error().Err(err).Str("run_id", res.RunID).Str("trigger", trigger).Msg("Ingestion run failed")
		return err
	}

	deleted, err := p.Sweep(ctx, p.Now(), retentionDays)
	if err != nil {
		log.Error().Err(err).Str("run_id", res.RunID).Msg("Retention sweep failed")
		return err
	}

	log.Info().
		Str("run_id", res.RunID).
		Str("trigger", trigger).
		Int("saved", res.Saved).
		Int64("deleted", deleted).
		Msg("Ingestion cycle finished")
	return nil
}

// Start begins firing on the schedule in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	entries := s.cron.Entries()
	if len(entries) > 0 {
		log.Info().Str("schedule", s.schedule).Time("next", entries[0].Next).Msg("Scheduler started")
	}
}

// Stop halts the schedule, cancels an in-flight cycle and waits for it to
// return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	log.Info().Msg("Scheduler stopped")
}
