package scheduler

import (
	"context"
	"fmt"

	"deal_followup_backend/platform/config"
	"deal_followup_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// DefaultSchedule runs the pipeline at 09:00 on weekdays.
const DefaultSchedule = "0 9 * * 1-5"

// Periodic registers the recurring pipeline run with asynq's scheduler.
type Periodic struct {
	scheduler *asynq.Scheduler
	spec      string
	entryID   string
	log       *logger.Logger
}

func NewPeriodic(cfg config.SchedulerConfig, log *logger.Logger) (*Periodic, error) {
	opt, err := redisClientOpt(cfg.GetRedisURL(), cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	spec := cfg.GetPipelineSchedule()
	if spec == "" {
		spec = DefaultSchedule
	}

	s := asynq.NewScheduler(opt, &asynq.SchedulerOpts{
		PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
			if err != nil {
				log.Warn("scheduled pipeline run not enqueued", "error", err)
				return
			}
			log.Info("scheduled pipeline run enqueued", "taskId", info.ID)
		},
	})

	task, err := NewRunPipelineTask(RunPipelinePayload{TriggeredBy: TriggeredBySchedule})
	if err != nil {
		return nil, err
	}
	entryID, err := s.Register(spec, task, runTaskOptions(queueName(cfg))...)
	if err != nil {
		return nil, fmt.Errorf("register pipeline schedule %q: %w", spec, err)
	}

	return &Periodic{scheduler: s, spec: spec, entryID: entryID, log: log}, nil
}

// Run blocks until ctx is done.
func (p *Periodic) Run(ctx context.Context) {
	if p == nil || p.scheduler == nil {
		return
	}

	if err := p.scheduler.Start(); err != nil {
		p.log.Error("pipeline schedule failed to start", "error", err)
		return
	}
	p.log.Info("pipeline schedule registered", "spec", p.spec, "entryId", p.entryID)

	<-ctx.Done()
	p.scheduler.Shutdown()
}
