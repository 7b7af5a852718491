package scheduler

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const TaskRunPipeline = "pipeline.run"

// Trigger sources recorded on the task.
const (
	TriggeredBySchedule = "schedule"
	TriggeredByManual   = "manual"
)

type RunPipelinePayload struct {
	TriggeredBy string    `json:"triggeredBy"`
	RequestedAt time.Time `json:"requestedAt"`
}

func NewRunPipelineTask(payload RunPipelinePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRunPipeline, data), nil
}

func ParseRunPipelinePayload(task *asynq.Task) (RunPipelinePayload, error) {
	var payload RunPipelinePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return RunPipelinePayload{}, err
	}
	return payload, nil
}
