package tasksmodule

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

// RegisterRoutes registers the tasks module routes
func (m *Module) RegisterRoutes(router *gin.Engine) {
	logger.Info("Registering tasks module routes")

	api := router.Group("/api/tasks")
	{
		api.GET("", m.listTasks)
		api.POST("", m.createTask)
		api.POST("/:id/done", m.completeTask)
		api.POST("/:id/dismiss", m.dismissTask)
	}
}

func (m *Module) listTasks(c *gin.Context) {
	query := m.db.Preload("SubjectPlayer").Order("status, due_at, created_at DESC")
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if assignee := c.Query("assigned_to"); assignee != "" {
		query = query.Where("assigned_to = ?", assignee)
	}

	var tasks []Task
	if err := query.Find(&tasks).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list tasks"})
		return
	}

	now := time.Now().UTC()
	overdue := 0
	for i := range tasks {
		if tasks[i].IsOverdue(now) {
			overdue++
		}
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks, "overdue": overdue})
}

type createTaskRequest struct {
	Title           string     `json:"title" validate:"required,max=200"`
	Description     string     `json:"description"`
	AssignedTo      string     `json:"assigned_to" validate:"omitempty,email"`
	CreatedBy       string     `json:"created_by" validate:"omitempty,email"`
	DueAt           *time.Time `json:"due_at"`
	SubjectPlayerID *uint      `json:"subject_player_id"`
}

func (m *Module) createTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validate.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task := Task{
		Title:               req.Title,
		Description:         req.Description,
		Status:              TaskOpen,
		AssignedTo:          req.AssignedTo,
		CreatedBy:           req.CreatedBy,
		DueAt:               req.DueAt,
		SubjectPlayerID:     req.SubjectPlayerID,
		AllowManualComplete: true,
	}
	if err := m.db.Create(&task).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create task"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"task": task})
}

func (m *Module) completeTask(c *gin.Context) {
	m.closeTask(c, TaskDone)
}

func (m *Module) dismissTask(c *gin.Context) {
	m.closeTask(c, TaskDismissed)
}

func (m *Module) closeTask(c *gin.Context, target string) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return
	}

	var task Task
	if err := m.db.First(&task, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load task"})
		return
	}

	if task.Status != TaskOpen {
		c.JSON(http.StatusConflict, gin.H{"error": "task is not open", "status": task.Status})
		return
	}
	if target == TaskDone && !task.AllowManualComplete {
		c.JSON(http.StatusForbidden, gin.H{"error": "task cannot be completed manually"})
		return
	}

	if err := m.db.Model(&task).Update("status", target).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update task"})
		return
	}
	task.Status = target
	c.JSON(http.StatusOK, gin.H{"task": task})
}
