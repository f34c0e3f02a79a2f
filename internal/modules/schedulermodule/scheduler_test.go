package schedulermodule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func createJob(t *testing.T, db *gorm.DB, name, key string, every int) *ScheduledJob {
	t.Helper()
	job := ScheduledJob{Name: name, JobKey: key, EverySeconds: every, Enabled: true}
	require.NoError(t, db.Create(&job).Error)
	return &job
}

func TestRunDueExecutesNeverRanJob(t *testing.T) {
	db := setupTestDB(t)
	clock := clockwork.NewFakeClock()
	s := NewScheduler(db, clock)

	var calls int32
	s.RegisterJob("demo", func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	createJob(t, db, "config:demo", "demo", 3600)

	require.NoError(t, s.RunDue(context.Background()))
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))

	var job ScheduledJob
	require.NoError(t, db.Where("name = ?", "config:demo").First(&job).Error)
	require.NotNil(t, job.LastRunAt)
	require.NotNil(t, job.NextRunAt)
	assert.Equal(t, time.Hour, job.NextRunAt.Sub(*job.LastRunAt))
}

func TestRunDueSkipsJobNotYetDue(t *testing.T) {
	db := setupTestDB(t)
	clock := clockwork.NewFakeClock()
	s := NewScheduler(db, clock)

	var calls int32
	s.RegisterJob("demo", func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	createJob(t, db, "config:demo", "demo", 3600)

	require.NoError(t, s.RunDue(context.Background()))
	require.NoError(t, s.RunDue(context.Background()))
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))

	clock.Advance(2 * time.Hour)
	require.NoError(t, s.RunDue(context.Background()))
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestRunDueSkipsDisabledJob(t *testing.T) {
	db := setupTestDB(t)
	s := NewScheduler(db, clockwork.NewFakeClock())

	var calls int32
	s.RegisterJob("demo", func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	job := createJob(t, db, "config:demo", "demo", 3600)
	require.NoError(t, db.Model(job).Update("enabled", false).Error)

	require.NoError(t, s.RunDue(context.Background()))
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestRunDueReschedulesUnknownJobKey(t *testing.T) {
	db := setupTestDB(t)
	s := NewScheduler(db, clockwork.NewFakeClock())
	createJob(t, db, "config:ghost", "no.such.key", 3600)

	require.NoError(t, s.RunDue(context.Background()))

	var job ScheduledJob
	require.NoError(t, db.Where("name = ?", "config:ghost").First(&job).Error)
	assert.NotNil(t, job.NextRunAt)
}

func TestRunDueReschedulesFailedJob(t *testing.T) {
	db := setupTestDB(t)
	s := NewScheduler(db, clockwork.NewFakeClock())

	s.RegisterJob("flaky", func(ctx context.Context) error {
		return errors.New("upstream down")
	})
	createJob(t, db, "config:flaky", "flaky", 3600)

	require.NoError(t, s.RunDue(context.Background()))

	var job ScheduledJob
	require.NoError(t, db.Where("name = ?", "config:flaky").First(&job).Error)
	require.NotNil(t, job.LastRunAt)
	require.NotNil(t, job.NextRunAt)
}

func TestRunLoopTicksWithClock(t *testing.T) {
	db := setupTestDB(t)
	clock := clockwork.NewFakeClock()
	s := NewScheduler(db, clock)

	var calls int32
	s.RegisterJob("demo", func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	createJob(t, db, "config:demo", "demo", 3600)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	// wait for the loop to own the ticker before advancing
	clock.BlockUntil(1)
	clock.Advance(PollInterval)

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) == 1
	}, time.Second, 5*time.Millisecond)
}
