package incidentsmodule

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/redbridgehc/clubhouse/internal/email"
	"github.com/redbridgehc/clubhouse/internal/modules/membersmodule"
	"github.com/redbridgehc/clubhouse/internal/modules/tasksmodule"
)

func setupTestDB(t *testing.T) *gorm.DB {
	dbName := "file:" + t.Name() + "?mode=memory&cache=shared&_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&membersmodule.PlayerType{}, &membersmodule.Player{}, &membersmodule.Team{},
		&tasksmodule.Task{},
		&Incident{}, &IncidentRouting{},
	))
	return db
}

func setupRouter(t *testing.T, db *gorm.DB, svc *email.ConsoleService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	m := &Module{db: db, mailer: svc, clubName: "Test Club"}
	router := gin.New()
	m.RegisterRoutes(router)
	return router
}

func createTestIncident(t *testing.T, db *gorm.DB) *Incident {
	t.Helper()
	inc := Incident{
		OccurredAt: time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC),
		Location:   "Main pitch",
		Summary:    "Collision during match",
		Status:     IncidentOpen,
	}
	require.NoError(t, db.Create(&inc).Error)
	return &inc
}

func postJSON(t *testing.T, router *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestIncidentReferenceAssignedOnCreate(t *testing.T) {
	db := setupTestDB(t)
	inc := createTestIncident(t, db)

	assert.Equal(t, fmt.Sprintf("INC-%05d", inc.ID), inc.Reference)

	var stored Incident
	require.NoError(t, db.First(&stored, inc.ID).Error)
	assert.Equal(t, inc.Reference, stored.Reference)
}

func TestRouteIncidentEmailsAndCreatesTasks(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.Create(&IncidentRouting{
		Name:       "Welfare team",
		Active:     true,
		Recipients: "welfare@club.org, Chair <chair@club.org>",
	}).Error)
	inc := createTestIncident(t, db)

	svc := email.NewConsoleService()
	require.NoError(t, RouteIncident(db, svc, "Test Club", inc))

	sent := svc.SentMessages()
	require.Len(t, sent, 2)
	assert.Contains(t, sent[0].Subject, inc.Reference)
	assert.Contains(t, sent[0].Body, "Main pitch")

	var tasks []tasksmodule.Task
	require.NoError(t, db.Find(&tasks).Error)
	require.Len(t, tasks, 2)
	for _, task := range tasks {
		assert.Equal(t, tasksmodule.TaskOpen, task.Status)
		assert.False(t, task.AllowManualComplete)
		assert.Contains(t, task.Title, inc.Reference)
	}
}

func TestRouteIncidentDeduplicatesRecipients(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.Create(&IncidentRouting{Active: true, Recipients: "welfare@club.org"}).Error)
	require.NoError(t, db.Create(&IncidentRouting{Active: true, Recipients: "WELFARE@club.org, chair@club.org"}).Error)
	inc := createTestIncident(t, db)

	svc := email.NewConsoleService()
	require.NoError(t, RouteIncident(db, svc, "Test Club", inc))
	assert.Len(t, svc.SentMessages(), 2)
}

func TestRouteIncidentWithoutRoutingSendsNothing(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.Create(&IncidentRouting{Active: false, Recipients: "old@club.org"}).Error)
	inc := createTestIncident(t, db)

	svc := email.NewConsoleService()
	require.NoError(t, RouteIncident(db, svc, "Test Club", inc))
	assert.Empty(t, svc.SentMessages())
}

func TestCreateIncidentEndpoint(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.Create(&IncidentRouting{Active: true, Recipients: "welfare@club.org"}).Error)
	svc := email.NewConsoleService()
	router := setupRouter(t, db, svc)

	w := postJSON(t, router, "/api/incidents", gin.H{
		"occurred_at":    "2026-03-14T10:30:00Z",
		"location":       "Main pitch",
		"summary":        "Ball to the face",
		"activity_type":  "training",
		"role_involved":  "coach",
		"reporter_email": "duty@club.org",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Incident Incident `json:"incident"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Incident.Reference)
	assert.Equal(t, IncidentOpen, resp.Incident.Status)
	assert.Equal(t, "training", resp.Incident.ActivityType)
	assert.Len(t, svc.SentMessages(), 1)
}

func TestCreateIncidentValidation(t *testing.T) {
	db := setupTestDB(t)
	router := setupRouter(t, db, email.NewConsoleService())

	// missing summary and location
	w := postJSON(t, router, "/api/incidents", gin.H{"occurred_at": "2026-03-14T10:30:00Z"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(t, router, "/api/incidents", gin.H{
		"occurred_at":   "2026-03-14T10:30:00Z",
		"location":      "Main pitch",
		"summary":       "Bad enum",
		"activity_type": "regatta",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListIncidentsHidesSensitiveByDefault(t *testing.T) {
	db := setupTestDB(t)
	createTestIncident(t, db)
	require.NoError(t, db.Create(&Incident{
		OccurredAt: time.Now().UTC(),
		Location:   "Clubhouse",
		Summary:    "Safeguarding concern",
		Status:     IncidentOpen,
		Sensitive:  true,
	}).Error)
	router := setupRouter(t, db, email.NewConsoleService())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/incidents", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/incidents?include_sensitive=true", nil))
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
}

func TestAssignIncidentOnlyOnce(t *testing.T) {
	db := setupTestDB(t)
	inc := createTestIncident(t, db)
	router := setupRouter(t, db, email.NewConsoleService())

	path := fmt.Sprintf("/api/incidents/%d/assign", inc.ID)
	w := postJSON(t, router, path, gin.H{"assigned_to": "welfare@club.org"})
	require.Equal(t, http.StatusOK, w.Code)

	var stored Incident
	require.NoError(t, db.First(&stored, inc.ID).Error)
	assert.Equal(t, IncidentReview, stored.Status)
	assert.Equal(t, "welfare@club.org", stored.AssignedTo)
	require.NotNil(t, stored.AssignedAt)

	w = postJSON(t, router, path, gin.H{"assigned_to": "chair@club.org"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestUnassignReturnsIncidentToQueue(t *testing.T) {
	db := setupTestDB(t)
	inc := createTestIncident(t, db)
	router := setupRouter(t, db, email.NewConsoleService())

	postJSON(t, router, fmt.Sprintf("/api/incidents/%d/assign", inc.ID), gin.H{"assigned_to": "welfare@club.org"})
	w := postJSON(t, router, fmt.Sprintf("/api/incidents/%d/unassign", inc.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var stored Incident
	require.NoError(t, db.First(&stored, inc.ID).Error)
	assert.Equal(t, IncidentOpen, stored.Status)
	assert.Empty(t, stored.AssignedTo)
	assert.Nil(t, stored.AssignedAt)
}

func TestCloseIncidentCompletesReviewTasks(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.Create(&IncidentRouting{Active: true, Recipients: "welfare@club.org"}).Error)
	inc := createTestIncident(t, db)
	require.NoError(t, RouteIncident(db, email.NewConsoleService(), "Test Club", inc))
	router := setupRouter(t, db, email.NewConsoleService())

	w := postJSON(t, router, fmt.Sprintf("/api/incidents/%d/close", inc.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var stored Incident
	require.NoError(t, db.First(&stored, inc.ID).Error)
	assert.Equal(t, IncidentClosed, stored.Status)

	var open int64
	require.NoError(t, db.Model(&tasksmodule.Task{}).
		Where("status = ?", tasksmodule.TaskOpen).Count(&open).Error)
	assert.Zero(t, open)
}

func TestClosedIncidentIsImmutable(t *testing.T) {
	db := setupTestDB(t)
	inc := createTestIncident(t, db)
	require.NoError(t, db.Model(inc).Update("status", IncidentClosed).Error)
	router := setupRouter(t, db, email.NewConsoleService())

	body, _ := json.Marshal(gin.H{"summary": "Rewritten"})
	req := httptest.NewRequest(http.MethodPut, fmt.Sprintf("/api/incidents/%d", inc.ID), bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = postJSON(t, router, fmt.Sprintf("/api/incidents/%d/assign", inc.ID), gin.H{"assigned_to": "welfare@club.org"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCreateRoutingRejectsInvalidRecipients(t *testing.T) {
	db := setupTestDB(t)
	router := setupRouter(t, db, email.NewConsoleService())

	w := postJSON(t, router, "/api/incidents/routing", gin.H{"name": "Broken", "recipients": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(t, router, "/api/incidents/routing", gin.H{"name": "Welfare", "recipients": "welfare@club.org"})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestReviewTaskTitleTruncatesOnRuneBoundaries(t *testing.T) {
	long := strings.Repeat("é", 70)
	assert.Equal(t, strings.Repeat("é", 60), truncate(long, 60))
	assert.Equal(t, "Collision", truncate("Collision", 60))

	db := setupTestDB(t)
	require.NoError(t, db.Create(&IncidentRouting{Active: true, Recipients: "welfare@club.org"}).Error)
	inc := Incident{
		OccurredAt: time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC),
		Location:   "Main pitch",
		Summary:    long,
		Status:     IncidentOpen,
	}
	require.NoError(t, db.Create(&inc).Error)
	require.NoError(t, RouteIncident(db, email.NewConsoleService(), "Test Club", &inc))

	var task tasksmodule.Task
	require.NoError(t, db.First(&task).Error)
	assert.True(t, utf8.ValidString(task.Title))
	assert.Contains(t, task.Title, strings.Repeat("é", 60))
}
