package schedulermodule

import "time"

// ManagedPrefix marks rows owned by the config file. Reconciliation only
// ever deletes rows carrying this prefix, hand-made rows are left alone.
const ManagedPrefix = "config:"

// ScheduledJob is one periodic job the scheduler drives. Name is unique;
// JobKey selects the registered job func.
type ScheduledJob struct {
	ID           uint   `json:"id" gorm:"primaryKey"`
	Name         string `json:"name" gorm:"size:200;uniqueIndex;not null"`
	JobKey       string `json:"job_key" gorm:"size:100;not null"`
	EverySeconds int    `json:"every_seconds" gorm:"not null"`
	Enabled      bool   `json:"enabled" gorm:"default:true"`

	LastRunAt *time.Time `json:"last_run_at"`
	NextRunAt *time.Time `json:"next_run_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Interval returns the run interval as a duration.
func (j *ScheduledJob) Interval() time.Duration {
	return time.Duration(j.EverySeconds) * time.Second
}

// Due reports whether the job should run now. A job that never ran is
// immediately due.
func (j *ScheduledJob) Due(now time.Time) bool {
	if !j.Enabled {
		return false
	}
	return j.NextRunAt == nil || !j.NextRunAt.After(now)
}
