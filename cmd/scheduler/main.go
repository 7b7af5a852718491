package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"deal_followup_backend/internal/scheduler"
	"deal_followup_backend/platform/config"
	"deal_followup_backend/platform/logger"
)

func main() {
	cfg, err := config.LoadScheduler()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env, "schedule", cfg.GetPipelineSchedule())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	periodic, err := scheduler.NewPeriodic(cfg, log)
	if err != nil {
		log.Error("failed to register pipeline schedule", "error", err)
		panic("failed to register pipeline schedule: " + err.Error())
	}
	go periodic.Run(ctx)

	if len(os.Args) > 1 && os.Args[1] == "run-now" {
		client, err := scheduler.NewClient(cfg)
		if err != nil {
			panic("failed to initialize scheduler client: " + err.Error())
		}
		if err := client.EnqueueRun(ctx, scheduler.TriggeredByManual); err != nil {
			log.Error("failed to enqueue manual run", "error", err)
		} else {
			log.Info("manual pipeline run enqueued")
		}
		_ = client.Close()
	}

	worker, err := scheduler.NewWorker(cfg, scheduler.NewTrigger(cfg), log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
}
