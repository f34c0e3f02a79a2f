package schedulermodule

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/redbridgehc/clubhouse/internal/config"
	"github.com/redbridgehc/clubhouse/internal/database"
	"github.com/redbridgehc/clubhouse/internal/logger"
)

// SyncResult reports what one reconciliation run changed.
type SyncResult struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Deleted   int `json:"deleted"`
}

// SyncSchedule reconciles the scheduled_jobs table against the declared
// schedule. Declared jobs are created or updated under the managed
// prefix; managed rows no longer declared are deleted. Rows without the
// prefix are never touched.
func SyncSchedule(db *gorm.DB, schedule map[string]config.JobSpec) (*SyncResult, error) {
	result := &SyncResult{}

	err := database.WithTransaction(db, func(tx *gorm.DB) error {
		seen := make(map[string]bool, len(schedule))

		for name, spec := range schedule {
			managedName := ManagedPrefix + name
			seen[managedName] = true

			enabled := true
			if spec.Enabled != nil {
				enabled = *spec.Enabled
			}

			var job ScheduledJob
			err := tx.Where("name = ?", managedName).First(&job).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				job = ScheduledJob{
					Name:         managedName,
					JobKey:       spec.Job,
					EverySeconds: spec.Every,
					Enabled:      enabled,
				}
				if err := tx.Create(&job).Error; err != nil {
					return fmt.Errorf("failed to create job %q: %w", managedName, err)
				}
				result.Created++
				logger.Info("scheduled job created", logger.String("name", managedName))
			case err != nil:
				return fmt.Errorf("failed to load job %q: %w", managedName, err)
			default:
				if job.JobKey == spec.Job && job.EverySeconds == spec.Every && job.Enabled == enabled {
					result.Unchanged++
					continue
				}
				updates := map[string]interface{}{
					"job_key":       spec.Job,
					"every_seconds": spec.Every,
					"enabled":       enabled,
					// Interval changes take effect on the next tick.
					"next_run_at": nil,
				}
				if err := tx.Model(&job).Updates(updates).Error; err != nil {
					return fmt.Errorf("failed to update job %q: %w", managedName, err)
				}
				result.Updated++
				logger.Info("scheduled job updated", logger.String("name", managedName))
			}
		}

		var managed []ScheduledJob
		if err := tx.Where("name LIKE ?", ManagedPrefix+"%").Find(&managed).Error; err != nil {
			return fmt.Errorf("failed to list managed jobs: %w", err)
		}
		for i := range managed {
			if seen[managed[i].Name] || !strings.HasPrefix(managed[i].Name, ManagedPrefix) {
				continue
			}
			if err := tx.Delete(&managed[i]).Error; err != nil {
				return fmt.Errorf("failed to delete stale job %q: %w", managed[i].Name, err)
			}
			result.Deleted++
			logger.Warn("stale scheduled job deleted", logger.String("name", managed[i].Name))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
