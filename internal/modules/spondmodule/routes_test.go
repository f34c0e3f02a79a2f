package spondmodule

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/redbridgehc/clubhouse/internal/modules/membersmodule"
)

func setupRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := setupTestDB(t)
	m := &Module{db: db}
	router := gin.New()
	m.RegisterRoutes(router)
	return router, db
}

func createTestPlayer(t *testing.T, db *gorm.DB) membersmodule.Player {
	t.Helper()
	pt := membersmodule.PlayerType{Name: "Senior"}
	require.NoError(t, db.Create(&pt).Error)
	player := membersmodule.Player{
		FirstName:    "Ada",
		LastName:     "Lovelace",
		DateOfBirth:  time.Date(1990, 3, 14, 0, 0, 0, 0, time.UTC),
		PlayerTypeID: pt.ID,
	}
	require.NoError(t, db.Create(&player).Error)
	return player
}

func TestSearchEndpoint(t *testing.T) {
	router, db := setupRouter(t)
	require.NoError(t, db.Create(&SpondMember{SpondMemberID: "m1", FullName: "Ada Lovelace", Email: "ada@example.com"}).Error)
	require.NoError(t, db.Create(&SpondMember{SpondMemberID: "m2", FullName: "Grace Hopper", Email: "grace@example.com"}).Error)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/spond/search?q=ada", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Results []SearchResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Results, 1)
	assert.Equal(t, "Ada Lovelace", body.Results[0].Name)

	// empty query returns an empty result set, not an error
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/spond/search", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Empty(t, body.Results)
}

func TestSearchCapsResults(t *testing.T) {
	_, db := setupRouter(t)
	for i := 0; i < searchLimit+10; i++ {
		require.NoError(t, db.Create(&SpondMember{
			SpondMemberID: fmt.Sprintf("m%d", i),
			FullName:      fmt.Sprintf("Player %02d", i),
		}).Error)
	}

	results, err := SearchMembers(db, "player")
	require.NoError(t, err)
	assert.Len(t, results, searchLimit)
}

func TestLinkAndUnlinkPlayer(t *testing.T) {
	router, db := setupRouter(t)
	player := createTestPlayer(t, db)
	member := SpondMember{SpondMemberID: "m1", FullName: "Ada Lovelace"}
	require.NoError(t, db.Create(&member).Error)

	form := url.Values{"spond_member_pk": {fmt.Sprint(member.ID)}}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/spond/link/%d", player.ID),
		strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var link PlayerSpondLink
	require.NoError(t, db.Where("player_id = ?", player.ID).First(&link).Error)
	assert.True(t, link.Active)

	// unlink deactivates without deleting
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost,
		fmt.Sprintf("/api/spond/unlink/%d/%d", player.ID, link.ID), nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, db.First(&link, link.ID).Error)
	assert.False(t, link.Active)

	// re-linking the same pair reactivates the existing row
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/spond/link/%d", player.ID),
		strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var count int64
	db.Model(&PlayerSpondLink{}).Where("player_id = ?", player.ID).Count(&count)
	assert.EqualValues(t, 1, count)
	require.NoError(t, db.First(&link, link.ID).Error)
	assert.True(t, link.Active)
}

func TestLinkUnknownPlayerFails(t *testing.T) {
	router, db := setupRouter(t)
	member := SpondMember{SpondMemberID: "m1", FullName: "Ada Lovelace"}
	require.NoError(t, db.Create(&member).Error)

	form := url.Values{"spond_member_pk": {fmt.Sprint(member.ID)}}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/spond/link/9999",
		strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLinkUnknownMemberFails(t *testing.T) {
	router, db := setupRouter(t)
	player := createTestPlayer(t, db)

	form := url.Values{"spond_member_pk": {"9999"}}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/spond/link/%d", player.ID),
		strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDashboardKPIs(t *testing.T) {
	router, db := setupRouter(t)
	player := createTestPlayer(t, db)
	member := SpondMember{SpondMemberID: "m1", FullName: "Ada Lovelace"}
	require.NoError(t, db.Create(&member).Error)
	require.NoError(t, db.Create(&SpondMember{SpondMemberID: "m2", FullName: "Grace Hopper"}).Error)
	_, err := LinkPlayer(db, player.ID, member.ID, "tester")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/spond/dashboard", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		KPI struct {
			TotalMembers    int64 `json:"total_members"`
			LinkedMembers   int64 `json:"linked_members"`
			UnlinkedMembers int64 `json:"unlinked_members"`
		} `json:"kpi"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.EqualValues(t, 2, body.KPI.TotalMembers)
	assert.EqualValues(t, 1, body.KPI.LinkedMembers)
	assert.EqualValues(t, 1, body.KPI.UnlinkedMembers)
}
