package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskNotifyProviders = "matching.notify_providers"

const TaskScoreRefresh = "scoring.refresh"

type NotifyProvidersPayload struct {
	RequestID   string   `json:"requestId"`
	Mode        string   `json:"mode"`
	ProviderIDs []string `json:"providerIds,omitempty"`
}

type ScoreRefreshPayload struct {
	ProviderID string `json:"providerId"`
}

func NewNotifyProvidersTask(payload NotifyProvidersPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotifyProviders, data), nil
}

func ParseNotifyProvidersPayload(task *asynq.Task) (NotifyProvidersPayload, error) {
	var payload NotifyProvidersPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return NotifyProvidersPayload{}, err
	}
	return payload, nil
}

func NewScoreRefreshTask(payload ScoreRefreshPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskScoreRefresh, data), nil
}

func ParseScoreRefreshPayload(task *asynq.Task) (ScoreRefreshPayload, error) {
	var payload ScoreRefreshPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ScoreRefreshPayload{}, err
	}
	return payload, nil
}
