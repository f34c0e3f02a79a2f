package spondmodule

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/redbridgehc/clubhouse/internal/events"
	"github.com/redbridgehc/clubhouse/internal/logger"
	"github.com/redbridgehc/clubhouse/internal/modules/membersmodule"
)

const searchLimit = 25

// RegisterRoutes registers the spond module routes
func (m *Module) RegisterRoutes(router *gin.Engine) {
	logger.Info("Registering spond module routes")

	api := router.Group("/api/spond")
	{
		api.GET("/search", m.searchMembers)
		api.POST("/link/:player_id", m.linkPlayer)
		api.POST("/unlink/:player_id/:link_id", m.unlinkPlayer)
		api.GET("/dashboard", m.getDashboard)
		api.POST("/sync", m.triggerSync)
	}
}

// SearchMembers is the case-insensitive substring search over member
// name and email, capped at searchLimit rows. Empty queries return no
// results.
func SearchMembers(db *gorm.DB, query string) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []SearchResult{}, nil
	}

	like := "%" + strings.ToLower(query) + "%"
	var members []SpondMember
	err := db.Where("LOWER(full_name) LIKE ? OR LOWER(email) LIKE ?", like, like).
		Order("full_name").Limit(searchLimit).Find(&members).Error
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(members))
	for _, sm := range members {
		results = append(results, SearchResult{
			ID:            sm.ID,
			SpondMemberID: sm.SpondMemberID,
			Name:          sm.FullName,
			Email:         sm.Email,
		})
	}
	return results, nil
}

func (m *Module) searchMembers(c *gin.Context) {
	results, err := SearchMembers(m.db, c.Query("q"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// LinkPlayer upserts the player/member link. Re-linking an inactive pair
// reactivates it.
func LinkPlayer(db *gorm.DB, playerID, spondMemberPK uint, linkedBy string) (*PlayerSpondLink, error) {
	var player membersmodule.Player
	if err := db.First(&player, playerID).Error; err != nil {
		return nil, err
	}
	var member SpondMember
	if err := db.First(&member, spondMemberPK).Error; err != nil {
		return nil, err
	}

	var link PlayerSpondLink
	err := db.Where("player_id = ? AND spond_member_id = ?", player.ID, member.ID).First(&link).Error
	switch {
	case err == nil:
		link.LinkedBy = linkedBy
		link.Active = true
		link.LinkedAt = time.Now().UTC()
		if err := db.Save(&link).Error; err != nil {
			return nil, err
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		link = PlayerSpondLink{
			PlayerID:      player.ID,
			SpondMemberID: member.ID,
			LinkedBy:      linkedBy,
			Active:        true,
		}
		if err := db.Create(&link).Error; err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	events.PublishGlobal(events.Event{
		Type:    events.EventPlayerLinked,
		Source:  "spond",
		Title:   "Player linked",
		Message: player.FullName() + " -> " + member.FullName,
	})
	return &link, nil
}

func (m *Module) linkPlayer(c *gin.Context) {
	playerID, err := strconv.Atoi(c.Param("player_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid player"})
		return
	}
	spondPK, err := strconv.Atoi(c.PostForm("spond_member_pk"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid spond member"})
		return
	}

	link, err := LinkPlayer(m.db, uint(playerID), uint(spondPK), c.GetHeader("X-User"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown player or spond member"})
			return
		}
		logger.Error("failed to link player", logger.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "link failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "link_id": link.ID})
}

func (m *Module) unlinkPlayer(c *gin.Context) {
	playerID, err1 := strconv.Atoi(c.Param("player_id"))
	linkID, err2 := strconv.Atoi(c.Param("link_id"))
	if err1 != nil || err2 != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid link"})
		return
	}

	var link PlayerSpondLink
	err := m.db.Where("id = ? AND player_id = ?", linkID, playerID).First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid link"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unlink failed"})
		return
	}

	if err := m.db.Model(&link).Update("active", false).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unlink failed"})
		return
	}

	events.PublishGlobal(events.Event{
		Type:   events.EventPlayerUnlinked,
		Source: "spond",
		Title:  "Player unlinked",
	})
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// getDashboard returns the KPI block the staff dashboard renders.
func (m *Module) getDashboard(c *gin.Context) {
	var totalGroups, totalMembers, linkedMembers, upcomingEvents int64
	if err := m.db.Model(&SpondGroup{}).Count(&totalGroups).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "dashboard query failed"})
		return
	}
	m.db.Model(&SpondMember{}).Count(&totalMembers)
	m.db.Model(&PlayerSpondLink{}).Where("active = ?", true).
		Distinct("spond_member_id").Count(&linkedMembers)
	m.db.Model(&SpondEvent{}).Where("start_at >= ?", time.Now().UTC()).Count(&upcomingEvents)

	c.JSON(http.StatusOK, gin.H{
		"kpi": gin.H{
			"total_groups":     totalGroups,
			"total_members":    totalMembers,
			"linked_members":   linkedMembers,
			"unlinked_members": totalMembers - linkedMembers,
			"upcoming_events":  upcomingEvents,
		},
	})
}

func (m *Module) triggerSync(c *gin.Context) {
	if m.api == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "spond client not configured"})
		return
	}
	result, err := Sync(context.Background(), m.db, m.api, time.Now().UTC())
	if err != nil {
		logger.Error("spond sync failed", logger.Err(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "sync failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}
