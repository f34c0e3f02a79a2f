package tasksmodule

import (
	"time"

	"github.com/redbridgehc/clubhouse/internal/modules/membersmodule"
)

// Task statuses.
const (
	TaskOpen      = "open"
	TaskDone      = "done"
	TaskDismissed = "dismissed"
)

// Task is a unit of club admin work, optionally tied to a player and
// assigned to a staff member by email.
type Task struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	Title       string     `json:"title" gorm:"size:200;not null"`
	Description string     `json:"description"`
	Status      string     `json:"status" gorm:"size:12;default:open;index"`
	DueAt       *time.Time `json:"due_at"`

	CreatedBy  string `json:"created_by" gorm:"size:254"`
	AssignedTo string `json:"assigned_to" gorm:"size:254;index"`

	SubjectPlayerID *uint                 `json:"subject_player_id"`
	SubjectPlayer   *membersmodule.Player `json:"subject_player,omitempty"`

	// AllowManualComplete is false for tasks that only automation may
	// close.
	AllowManualComplete bool `json:"allow_manual_complete" gorm:"default:true"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsOverdue reports whether an open task is past its due date.
func (t *Task) IsOverdue(now time.Time) bool {
	return t.Status == TaskOpen && t.DueAt != nil && t.DueAt.Before(now)
}
