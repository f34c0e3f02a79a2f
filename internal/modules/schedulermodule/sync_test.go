package schedulermodule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/redbridgehc/clubhouse/internal/config"
)

func setupTestDB(t *testing.T) *gorm.DB {
	dbName := "file:" + t.Name() + "?mode=memory&cache=shared&_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&ScheduledJob{}))
	return db
}

func boolPtr(b bool) *bool { return &b }

func testSchedule() map[string]config.JobSpec {
	return map[string]config.JobSpec{
		"spond-sync":  {Job: JobSpondSync, Every: 3600},
		"task-digest": {Job: JobTaskDigest, Every: 86400},
	}
}

func TestSyncScheduleCreatesManagedJobs(t *testing.T) {
	db := setupTestDB(t)

	result, err := SyncSchedule(db, testSchedule())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	assert.Zero(t, result.Deleted)

	var job ScheduledJob
	require.NoError(t, db.Where("name = ?", "config:spond-sync").First(&job).Error)
	assert.Equal(t, JobSpondSync, job.JobKey)
	assert.Equal(t, 3600, job.EverySeconds)
	assert.True(t, job.Enabled)
	assert.Nil(t, job.NextRunAt)
}

func TestSyncScheduleIsIdempotent(t *testing.T) {
	db := setupTestDB(t)

	_, err := SyncSchedule(db, testSchedule())
	require.NoError(t, err)

	result, err := SyncSchedule(db, testSchedule())
	require.NoError(t, err)
	assert.Zero(t, result.Created)
	assert.Zero(t, result.Updated)
	assert.Zero(t, result.Deleted)
	assert.Equal(t, 2, result.Unchanged)
}

func TestSyncScheduleUpdatesChangedSpec(t *testing.T) {
	db := setupTestDB(t)
	_, err := SyncSchedule(db, testSchedule())
	require.NoError(t, err)

	// simulate a past run so we can see the reset
	ran := time.Now().UTC()
	require.NoError(t, db.Model(&ScheduledJob{}).
		Where("name = ?", "config:spond-sync").
		Update("next_run_at", &ran).Error)

	schedule := testSchedule()
	schedule["spond-sync"] = config.JobSpec{Job: JobSpondSync, Every: 1800, Enabled: boolPtr(false)}

	result, err := SyncSchedule(db, schedule)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 1, result.Unchanged)

	var job ScheduledJob
	require.NoError(t, db.Where("name = ?", "config:spond-sync").First(&job).Error)
	assert.Equal(t, 1800, job.EverySeconds)
	assert.False(t, job.Enabled)
	assert.Nil(t, job.NextRunAt)
}

func TestSyncScheduleDeletesStaleManagedJobs(t *testing.T) {
	db := setupTestDB(t)
	_, err := SyncSchedule(db, testSchedule())
	require.NoError(t, err)

	schedule := testSchedule()
	delete(schedule, "task-digest")

	result, err := SyncSchedule(db, schedule)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Deleted)

	var count int64
	require.NoError(t, db.Model(&ScheduledJob{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestSyncScheduleLeavesManualJobsAlone(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.Create(&ScheduledJob{
		Name: "manual-backup", JobKey: "backup", EverySeconds: 600, Enabled: true,
	}).Error)

	result, err := SyncSchedule(db, map[string]config.JobSpec{})
	require.NoError(t, err)
	assert.Zero(t, result.Deleted)

	var count int64
	require.NoError(t, db.Model(&ScheduledJob{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}
