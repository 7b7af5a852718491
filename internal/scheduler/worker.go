package scheduler

import (
	"context"
	"errors"
	"fmt"

	"deal_followup_backend/platform/config"
	"deal_followup_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// PipelineRunner starts one pipeline run.
type PipelineRunner interface {
	Run(ctx context.Context) (RunSummary, error)
}

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	runner PipelineRunner
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, runner PipelineRunner, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 1
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		runner: runner,
		log:    log,
	}
	mux.HandleFunc(TaskRunPipeline, w.handleRunPipeline)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleRunPipeline(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseRunPipelinePayload(task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	summary, err := w.runner.Run(ctx)
	if errors.Is(err, ErrRunInProgress) {
		w.log.Info("pipeline already running, skipping", "triggeredBy", payload.TriggeredBy)
		return nil
	}
	if err != nil {
		w.log.Error("pipeline run failed", "triggeredBy", payload.TriggeredBy, "error", err)
		return err
	}

	w.log.Info("pipeline run finished",
		"triggeredBy", payload.TriggeredBy,
		"staleDealsFound", summary.StaleDealsFound,
		"followUpsCreated", summary.FollowUpsCreated,
	)
	return nil
}
