package membersmodule

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"github.com/redbridgehc/clubhouse/internal/logger"
	"github.com/redbridgehc/clubhouse/internal/seed"
)

var validate = validator.New()

// RegisterRoutes registers the members module routes
func (m *Module) RegisterRoutes(router *gin.Engine) {
	logger.Info("Registering members module routes")

	api := router.Group("/api/members")
	{
		api.GET("/players", m.listPlayers)
		api.GET("/players/:public_id", m.getPlayer)
		api.POST("/players", m.createPlayer)

		api.GET("/teams", m.listTeams)
		api.GET("/teams/:id/roster", m.getTeamRoster)
	}
}

func (m *Module) listPlayers(c *gin.Context) {
	query := m.db.Preload("PlayerType").Order("last_name, first_name")
	if q := c.Query("q"); q != "" {
		like := "%" + q + "%"
		query = query.Where("first_name LIKE ? OR last_name LIKE ? OR membership_number LIKE ?", like, like, like)
	}

	var players []Player
	if err := query.Find(&players).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list players"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"players": players, "count": len(players)})
}

func (m *Module) getPlayer(c *gin.Context) {
	var player Player
	err := m.db.Preload("PlayerType").Where("public_id = ?", c.Param("public_id")).First(&player).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "player not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load player"})
		return
	}

	var answers []PlayerAnswer
	if err := m.db.Preload("Question").Where("player_id = ?", player.ID).Order("id").Find(&answers).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load answers"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"player": player, "answers": answers})
}

type createPlayerRequest struct {
	FirstName    string `json:"first_name" validate:"required,max=100"`
	LastName     string `json:"last_name" validate:"required,max=100"`
	DateOfBirth  string `json:"date_of_birth" validate:"required"`
	Gender       string `json:"gender" validate:"omitempty,oneof=male female other"`
	Relation     string `json:"relation" validate:"omitempty,oneof=self additional_adult child"`
	PlayerTypeID uint   `json:"player_type_id" validate:"required"`
	CreatedBy    string `json:"created_by" validate:"omitempty,email"`
}

func (m *Module) createPlayer(c *gin.Context) {
	var req createPlayerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validate.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dob, err := seed.ParseDate(req.DateOfBirth)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := ValidateDateOfBirth(dob, time.Now()); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	player := Player{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		DateOfBirth:  dob,
		Gender:       req.Gender,
		Relation:     req.Relation,
		PlayerTypeID: req.PlayerTypeID,
		CreatedBy:    req.CreatedBy,
	}
	if err := m.db.Create(&player).Error; err != nil {
		logger.Error("failed to create player", logger.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create player"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"player": player})
}

func (m *Module) listTeams(c *gin.Context) {
	query := m.db.Order("name")
	if c.Query("include_inactive") != "true" {
		query = query.Where("active = ?", true)
	}
	var teams []Team
	if err := query.Find(&teams).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list teams"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"teams": teams})
}

func (m *Module) getTeamRoster(c *gin.Context) {
	teamID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid team id"})
		return
	}

	var team Team
	if err := m.db.First(&team, teamID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "team not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load team"})
		return
	}

	var memberships []TeamMembership
	err = m.db.Preload("Player").Preload("Positions").
		Where("team_id = ?", teamID).Order("player_id").Find(&memberships).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load roster"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"team": team, "roster": memberships})
}
