package pipeline

import (
	"context"
	"sync"
	"time"

	"deal_followup_backend/internal/events"
	"deal_followup_backend/internal/followup"
	"deal_followup_backend/internal/followup/store"
	"deal_followup_backend/platform/apperr"
	"deal_followup_backend/platform/logger"
	"deal_followup_backend/platform/validator"

	"github.com/google/uuid"
)

// ErrRunInProgress is returned when a run is requested while another one is
// still going.
var ErrRunInProgress = apperr.Conflict("a pipeline run is already in progress")

// Deps are the collaborators of a pipeline run.
type Deps struct {
	CRM        CRM
	Scorer     Scorer
	Drafter    Drafter
	Cards      CardPoster
	Store      store.Store
	Thresholds Thresholds
	Validator  *validator.Validator
	Bus        events.Bus
	Log        *logger.Logger
}

// Options tune how a run executes.
type Options struct {
	Concurrency int
	Policy      FailurePolicy
	PhoneRegion string
}

// Orchestrator runs detect, score, draft and notify strictly in that order.
// Runs are serialized within the process.
type Orchestrator struct {
	detect *DetectStage
	score  *ScoreStage
	draft  *DraftStage
	notify *NotifyStage
	bus    events.Bus
	log    *logger.Logger
	runMu  sync.Mutex
}

// NewOrchestrator wires the four stages.
func NewOrchestrator(deps Deps, opts Options) *Orchestrator {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Policy == "" {
		opts.Policy = FailureAbort
	}
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}

	return &Orchestrator{
		detect: &DetectStage{
			crm:        deps.CRM,
			store:      deps.Store,
			thresholds: deps.Thresholds,
			val:        deps.Validator,
			policy:     opts.Policy,
			region:     opts.PhoneRegion,
			now:        time.Now,
			log:        deps.Log,
		},
		score: &ScoreStage{
			scorer:      deps.Scorer,
			concurrency: opts.Concurrency,
			policy:      opts.Policy,
			log:         deps.Log,
		},
		draft: &DraftStage{
			drafter:     deps.Drafter,
			concurrency: opts.Concurrency,
			policy:      opts.Policy,
			log:         deps.Log,
		},
		notify: &NotifyStage{
			cards:  deps.Cards,
			store:  deps.Store,
			bus:    deps.Bus,
			policy: opts.Policy,
			newID:  newRecordID,
			now:    time.Now,
			log:    deps.Log,
		},
		bus: deps.Bus,
		log: deps.Log,
	}
}

// Run executes one pipeline pass. A stage error aborts the run; records that
// notification already persisted are returned with the error and stay stored.
func (o *Orchestrator) Run(ctx context.Context) (Result, error) {
	if !o.runMu.TryLock() {
		return Result{}, ErrRunInProgress
	}
	defer o.runMu.Unlock()

	result := Result{RunID: uuid.NewString(), Records: []followup.Record{}}
	ctx = context.WithValue(ctx, logger.RunIDKey, result.RunID)
	log := o.log.WithContext(ctx)
	started := time.Now()

	stageStart := time.Now()
	candidates, skipped, err := o.detect.Detect(ctx)
	result.Skipped += skipped
	if err != nil {
		return result, err
	}
	result.StaleDealsFound = len(candidates)
	log.PipelineStage("detect", result.StaleDealsFound+skipped, len(candidates), time.Since(stageStart))

	if len(candidates) == 0 {
		log.Info("no stale deals found")
		o.publishCompleted(ctx, result, started)
		return result, nil
	}

	stageStart = time.Now()
	scored, skipped, err := o.score.Score(ctx, candidates)
	result.Skipped += skipped
	if err != nil {
		return result, err
	}
	log.PipelineStage("score", len(candidates), len(scored), time.Since(stageStart))

	stageStart = time.Now()
	drafted, skipped, err := o.draft.Draft(ctx, scored)
	result.Skipped += skipped
	if err != nil {
		return result, err
	}
	log.PipelineStage("draft", len(scored), len(drafted), time.Since(stageStart))

	stageStart = time.Now()
	records, skipped, err := o.notify.Notify(ctx, drafted)
	result.Skipped += skipped
	result.Records = records
	result.FollowUpsCreated = len(records)
	if err != nil {
		return result, err
	}
	log.PipelineStage("notify", len(drafted), len(records), time.Since(stageStart))

	log.Info("pipeline run complete",
		"staleDealsFound", result.StaleDealsFound,
		"followUpsCreated", result.FollowUpsCreated,
		"skipped", result.Skipped,
	)
	o.publishCompleted(ctx, result, started)
	return result, nil
}

func (o *Orchestrator) publishCompleted(ctx context.Context, result Result, started time.Time) {
	if o.bus == nil {
		return
	}
	o.bus.Publish(ctx, events.PipelineCompleted{
		BaseEvent:        events.NewBaseEvent(),
		RunID:            result.RunID,
		StaleDealsFound:  result.StaleDealsFound,
		FollowUpsCreated: result.FollowUpsCreated,
		Skipped:          result.Skipped,
		Duration:         time.Since(started),
	})
}
