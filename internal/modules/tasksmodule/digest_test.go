package tasksmodule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/redbridgehc/clubhouse/internal/email"
	"github.com/redbridgehc/clubhouse/internal/modules/membersmodule"
)

func setupTestDB(t *testing.T) *gorm.DB {
	dbName := "file:" + t.Name() + "?mode=memory&cache=shared&_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&membersmodule.PlayerType{}, &membersmodule.Player{}, &Task{}))
	return db
}

func timePtr(t time.Time) *time.Time { return &t }

func seedTasks(t *testing.T, db *gorm.DB, now time.Time) {
	t.Helper()
	rows := []Task{
		{Title: "Chase missing consent form", Status: TaskOpen, AssignedTo: "sec@club.org", DueAt: timePtr(now.AddDate(0, 0, -2))},
		{Title: "Order match balls", Status: TaskOpen, AssignedTo: "sec@club.org", DueAt: timePtr(now.AddDate(0, 0, 3))},
		{Title: "Book pitch for friendly", Status: TaskOpen, AssignedTo: "fixtures@club.org"},
		{Title: "Already done", Status: TaskDone, AssignedTo: "sec@club.org"},
		{Title: "Unassigned", Status: TaskOpen},
	}
	for i := range rows {
		require.NoError(t, db.Create(&rows[i]).Error)
	}
}

func TestBuildAssigneeTaskMapOrdersOverdueFirst(t *testing.T) {
	db := setupTestDB(t)
	now := time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)
	seedTasks(t, db, now)

	taskMap, err := BuildAssigneeTaskMap(db, now)
	require.NoError(t, err)
	require.Len(t, taskMap, 2)

	sec := taskMap["sec@club.org"]
	require.Len(t, sec, 2)
	assert.Equal(t, "Chase missing consent form", sec[0].Title)
	assert.Equal(t, "Order match balls", sec[1].Title)
	assert.True(t, sec[0].IsOverdue(now))
	assert.False(t, sec[1].IsOverdue(now))

	require.Len(t, taskMap["fixtures@club.org"], 1)
}

func TestSendDigestOneEmailPerAssignee(t *testing.T) {
	db := setupTestDB(t)
	now := time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)
	seedTasks(t, db, now)

	svc := email.NewConsoleService()
	result, err := SendDigest(db, svc, "Test Club", now, DigestOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Recipients)
	assert.Equal(t, 2, result.Sent)
	assert.Equal(t, 3, result.Tasks)

	sent := svc.SentMessages()
	require.Len(t, sent, 2)
	// assignees are processed in sorted order
	assert.Equal(t, "fixtures@club.org", sent[0].To[0].Address)
	assert.Equal(t, "sec@club.org", sent[1].To[0].Address)
	assert.Contains(t, sent[1].Subject, "2 open task(s)")
	assert.Contains(t, sent[1].Body, "! Chase missing consent form")
	assert.Contains(t, sent[1].Body, "- Order match balls")
}

func TestSendDigestDryRunSendsNothing(t *testing.T) {
	db := setupTestDB(t)
	now := time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)
	seedTasks(t, db, now)

	svc := email.NewConsoleService()
	result, err := SendDigest(db, svc, "Test Club", now, DigestOptions{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Sent)
	assert.Empty(t, svc.SentMessages())
}

func TestSendDigestNoOpenTasks(t *testing.T) {
	db := setupTestDB(t)
	now := time.Now().UTC()

	svc := email.NewConsoleService()
	result, err := SendDigest(db, svc, "Test Club", now, DigestOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Recipients)
	assert.Empty(t, svc.SentMessages())
}

func TestSendDigestSkipsInvalidEmail(t *testing.T) {
	db := setupTestDB(t)
	now := time.Now().UTC()
	require.NoError(t, db.Create(&Task{Title: "Broken assignee", Status: TaskOpen, AssignedTo: "not-an-email "}).Error)

	svc := email.NewConsoleService()
	result, err := SendDigest(db, svc, "Test Club", now, DigestOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Recipients)
	assert.Equal(t, 0, result.Sent)
}
