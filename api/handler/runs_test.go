package handler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/use-agent/maillage/config"
	"github.com/use-agent/maillage/models"
)

func TestRunStore_EvictsOnlyOldFinishedRuns(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewRunStore(ctx, time.Hour)
	s.now = func() time.Time { return now }

	old := now.Add(-2 * time.Hour).Unix()
	s.add(&models.RunJob{ID: "old-done", Status: models.RunCompleted, CreatedAt: old})
	s.add(&models.RunJob{ID: "old-running", Status: models.RunProcessing, CreatedAt: old})
	s.add(&models.RunJob{ID: "fresh", Status: models.RunFailed, CreatedAt: now.Unix()})

	assert.Equal(t, 1, s.Evict())

	_, ok := s.snapshot("old-done")
	assert.False(t, ok)
	_, ok = s.snapshot("old-running")
	assert.True(t, ok)
	_, ok = s.snapshot("fresh")
	assert.True(t, ok)
	assert.Equal(t, 1, s.Active())
}

func TestRunStore_SnapshotIsACopy(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := NewRunStore(ctx, time.Hour)
	s.add(&models.RunJob{ID: "r", Records: []models.OpportunityRecord{{Keyword: "a"}}})

	snap, _ := s.snapshot("r")
	snap.Records[0].Keyword = "changed"

	again, _ := s.snapshot("r")
	assert.Equal(t, "a", again.Records[0].Keyword)
}

func TestRunStore_ShutdownCancelsQueuedRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewRunStore(ctx, time.Hour)
	s.add(&models.RunJob{ID: "q", Status: models.RunQueued})

	s.slot <- struct{}{} // another run holds the slot
	cancel()
	s.execute("q", nil, []string{"k"}, config.WebhookConfig{})

	job, _ := s.snapshot("q")
	assert.Equal(t, models.RunCancelled, job.Status)
	assert.NotNil(t, job.Error)
}
