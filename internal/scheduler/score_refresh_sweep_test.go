package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"marketplace_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type staticLister struct {
	ids    []uuid.UUID
	err    error
	before time.Time
}

func (l *staticLister) ListStaleScores(_ context.Context, before time.Time, _ int) ([]uuid.UUID, error) {
	l.before = before
	return l.ids, l.err
}

type recordingQueue struct {
	queued []uuid.UUID
	failOn uuid.UUID
}

func (q *recordingQueue) EnqueueScoreRefresh(_ context.Context, id uuid.UUID) error {
	if id == q.failOn {
		return errors.New("redis down")
	}
	q.queued = append(q.queued, id)
	return nil
}

func TestScoreRefreshSweepQueuesStaleProviders(t *testing.T) {
	bad := uuid.New()
	lister := &staticLister{ids: []uuid.UUID{uuid.New(), bad, uuid.New()}}
	queue := &recordingQueue{failOn: bad}
	sweep := NewScoreRefreshSweep(lister, queue, logger.Discard(), 0, 2*time.Hour)

	start := time.Now()
	assert.Equal(t, 2, sweep.sweep(context.Background()))
	assert.Len(t, queue.queued, 2)
	assert.WithinDuration(t, start.Add(-2*time.Hour), lister.before, time.Second)
}

func TestScoreRefreshSweepSurvivesListingErrors(t *testing.T) {
	sweep := NewScoreRefreshSweep(&staticLister{err: errors.New("db down")}, &recordingQueue{}, logger.Discard(), 0, 0)
	assert.Equal(t, 0, sweep.sweep(context.Background()))
	assert.Equal(t, defaultScoreSweepInterval, sweep.interval)
}

func TestTaskPayloadsRoundTrip(t *testing.T) {
	task, err := NewNotifyProvidersTask(NotifyProvidersPayload{RequestID: "r-1", Mode: "directed", ProviderIDs: []string{"a", "b"}})
	assert.NoError(t, err)
	assert.Equal(t, TaskNotifyProviders, task.Type())

	payload, err := ParseNotifyProvidersPayload(task)
	assert.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, payload.ProviderIDs)
}
