package incidentsmodule

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"github.com/redbridgehc/clubhouse/internal/logger"
)

var validate = validator.New()

// RegisterRoutes registers the incidents module routes
func (m *Module) RegisterRoutes(router *gin.Engine) {
	logger.Info("Registering incidents module routes")

	api := router.Group("/api/incidents")
	{
		api.GET("", m.listIncidents)
		api.POST("", m.createIncident)
		api.GET("/:id", m.getIncident)
		api.PUT("/:id", m.updateIncident)
		api.POST("/:id/assign", m.assignIncident)
		api.POST("/:id/unassign", m.unassignIncident)
		api.POST("/:id/close", m.closeIncident)

		api.GET("/routing", m.listRouting)
		api.POST("/routing", m.createRouting)
	}
}

func (m *Module) listIncidents(c *gin.Context) {
	query := m.db.Preload("Team").Preload("PrimaryPlayer").
		Order("occurred_at DESC, id DESC")

	// Sensitive reports stay out of the general list unless asked for.
	if c.Query("include_sensitive") != "true" {
		query = query.Where("sensitive = ?", false)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if q := c.Query("q"); q != "" {
		like := "%" + q + "%"
		query = query.Where("summary LIKE ? OR description LIKE ? OR location LIKE ?", like, like, like)
	}

	var incidents []Incident
	if err := query.Find(&incidents).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list incidents"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"incidents": incidents, "count": len(incidents)})
}

type createIncidentRequest struct {
	OccurredAt          time.Time `json:"occurred_at" validate:"required"`
	Location            string    `json:"location" validate:"required,max=255"`
	ActivityType        string    `json:"activity_type" validate:"omitempty,oneof=match training other"`
	TeamID              *uint     `json:"team_id"`
	PrimaryPlayerID     *uint     `json:"primary_player_id"`
	RoleInvolved        string    `json:"role_involved" validate:"omitempty,oneof=player coach umpire volunteer spectator other"`
	AgeUnder18          bool      `json:"age_under_18"`
	Summary             string    `json:"summary" validate:"required,max=255"`
	Description         string    `json:"description"`
	SuspectedConcussion bool      `json:"suspected_concussion"`
	InjuryTypes         string    `json:"injury_types" validate:"max=255"`
	TreatmentLevel      string    `json:"treatment_level" validate:"omitempty,oneof=none first_aid hospital gp"`
	FirstAiderName      string    `json:"first_aider_name" validate:"max=255"`
	FirstAiderContact   string    `json:"first_aider_contact" validate:"max=255"`
	ReporterEmail       string    `json:"reporter_email" validate:"omitempty,email"`
	Sensitive           bool      `json:"sensitive"`
}

func (m *Module) createIncident(c *gin.Context) {
	var req createIncidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validate.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	incident := Incident{
		OccurredAt:          req.OccurredAt,
		Location:            req.Location,
		ActivityType:        defaultString(req.ActivityType, ActivityMatch),
		TeamID:              req.TeamID,
		PrimaryPlayerID:     req.PrimaryPlayerID,
		RoleInvolved:        defaultString(req.RoleInvolved, RolePlayer),
		AgeUnder18:          req.AgeUnder18,
		Summary:             req.Summary,
		Description:         req.Description,
		SuspectedConcussion: req.SuspectedConcussion,
		InjuryTypes:         req.InjuryTypes,
		TreatmentLevel:      defaultString(req.TreatmentLevel, TreatmentNone),
		FirstAiderName:      req.FirstAiderName,
		FirstAiderContact:   req.FirstAiderContact,
		ReporterEmail:       req.ReporterEmail,
		Sensitive:           req.Sensitive,
		Status:              IncidentOpen,
	}
	if err := m.db.Create(&incident).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create incident"})
		return
	}

	if err := RouteIncident(m.db, m.mailer, m.clubName, &incident); err != nil {
		// The report itself is saved, routing failures must not lose it.
		logger.Error("incident routing failed",
			logger.String("reference", incident.Reference), logger.Err(err))
	}

	c.JSON(http.StatusCreated, gin.H{"incident": incident})
}

func (m *Module) getIncident(c *gin.Context) {
	incident, ok := m.loadIncident(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"incident": incident})
}

type updateIncidentRequest struct {
	Summary              *string    `json:"summary" validate:"omitempty,max=255"`
	Description          *string    `json:"description"`
	StatusNotes          *string    `json:"status_notes"`
	TreatmentLevel       *string    `json:"treatment_level" validate:"omitempty,oneof=none first_aid hospital gp"`
	SafeguardingNotified *bool      `json:"safeguarding_notified"`
	SafeguardingNotes    *string    `json:"safeguarding_notes"`
	SubmittedToEH        *bool      `json:"submitted_to_eh"`
	EHSubmittedAt        *time.Time `json:"eh_submitted_at"`
}

func (m *Module) updateIncident(c *gin.Context) {
	incident, ok := m.loadIncident(c)
	if !ok {
		return
	}
	if incident.Status == IncidentClosed {
		c.JSON(http.StatusForbidden, gin.H{"error": "closed incidents cannot be edited"})
		return
	}

	var req updateIncidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validate.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updates := map[string]interface{}{}
	if req.Summary != nil {
		updates["summary"] = *req.Summary
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.StatusNotes != nil {
		updates["status_notes"] = *req.StatusNotes
	}
	if req.TreatmentLevel != nil {
		updates["treatment_level"] = *req.TreatmentLevel
	}
	if req.SafeguardingNotified != nil {
		updates["safeguarding_notified"] = *req.SafeguardingNotified
	}
	if req.SafeguardingNotes != nil {
		updates["safeguarding_notes"] = *req.SafeguardingNotes
	}
	if req.SubmittedToEH != nil {
		updates["submitted_to_eh"] = *req.SubmittedToEH
	}
	if req.EHSubmittedAt != nil {
		updates["eh_submitted_at"] = *req.EHSubmittedAt
	}
	if len(updates) == 0 {
		c.JSON(http.StatusOK, gin.H{"incident": incident})
		return
	}

	if err := m.db.Model(incident).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update incident"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"incident": incident})
}

type assignRequest struct {
	AssignedTo string `json:"assigned_to" validate:"required,email"`
}

func (m *Module) assignIncident(c *gin.Context) {
	incident, ok := m.loadIncident(c)
	if !ok {
		return
	}
	if incident.Status == IncidentClosed {
		c.JSON(http.StatusConflict, gin.H{"error": "incident is closed"})
		return
	}
	if incident.AssignedTo != "" {
		c.JSON(http.StatusConflict, gin.H{"error": "incident is already assigned", "assigned_to": incident.AssignedTo})
		return
	}

	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validate.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{
		"assigned_to": req.AssignedTo,
		"assigned_at": &now,
		"status":      IncidentReview,
	}
	if err := m.db.Model(incident).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to assign incident"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"incident": incident})
}

func (m *Module) unassignIncident(c *gin.Context) {
	incident, ok := m.loadIncident(c)
	if !ok {
		return
	}
	if incident.Status == IncidentClosed {
		c.JSON(http.StatusConflict, gin.H{"error": "incident is closed"})
		return
	}

	updates := map[string]interface{}{
		"assigned_to": "",
		"assigned_at": nil,
		"status":      IncidentOpen,
	}
	if err := m.db.Model(incident).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to unassign incident"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"incident": incident})
}

func (m *Module) closeIncident(c *gin.Context) {
	incident, ok := m.loadIncident(c)
	if !ok {
		return
	}
	if incident.Status == IncidentClosed {
		c.JSON(http.StatusOK, gin.H{"incident": incident})
		return
	}

	if err := m.db.Model(incident).Update("status", IncidentClosed).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to close incident"})
		return
	}
	if err := closeReviewTasks(m.db, incident); err != nil {
		logger.Warn("failed to close review tasks",
			logger.String("reference", incident.Reference), logger.Err(err))
	}
	c.JSON(http.StatusOK, gin.H{"incident": incident})
}

func (m *Module) listRouting(c *gin.Context) {
	var routes []IncidentRouting
	if err := m.db.Order("id").Find(&routes).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list routing"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"routing": routes})
}

type createRoutingRequest struct {
	Name       string `json:"name" validate:"required,max=100"`
	Recipients string `json:"recipients" validate:"required,max=1024"`
	Active     *bool  `json:"active"`
}

func (m *Module) createRouting(c *gin.Context) {
	var req createRoutingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validate.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	route := IncidentRouting{Name: req.Name, Recipients: req.Recipients, Active: true}
	if req.Active != nil {
		route.Active = *req.Active
	}
	if len(route.RecipientAddresses()) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "recipients contains no valid email address"})
		return
	}
	if err := m.db.Create(&route).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create routing"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"routing": route})
}

// loadIncident resolves the :id route param, writing the error response
// itself when the lookup fails.
func (m *Module) loadIncident(c *gin.Context) (*Incident, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid incident id"})
		return nil, false
	}

	var incident Incident
	if err := m.db.Preload("Team").Preload("PrimaryPlayer").First(&incident, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "incident not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load incident"})
		return nil, false
	}
	return &incident, true
}

func defaultString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
