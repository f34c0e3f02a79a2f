package membersmodule

import (
	"gorm.io/gorm"

	"github.com/redbridgehc/clubhouse/internal/database"
	"github.com/redbridgehc/clubhouse/internal/logger"
)

// BackfillOptions control the membership-number backfill.
type BackfillOptions struct {
	// Force rewrites numbers that do not match the padded row id.
	// Without it only missing numbers are filled.
	Force bool
	// DryRun reports what would change without writing.
	DryRun bool
}

// BackfillResult lists the assignments made (or that would be made).
type BackfillResult struct {
	Updated int               `json:"updated"`
	Numbers map[string]string `json:"numbers,omitempty"` // public id -> assigned number
}

// BackfillMembershipNumbers assigns the zero-padded sequential number to
// players missing one.
func BackfillMembershipNumbers(db *gorm.DB, opts BackfillOptions) (*BackfillResult, error) {
	result := &BackfillResult{Numbers: map[string]string{}}

	run := func(tx *gorm.DB) error {
		query := tx.Model(&Player{})
		if !opts.Force {
			query = query.Where("membership_number IS NULL OR membership_number = ''")
		}
		var players []Player
		if err := query.Order("id").Find(&players).Error; err != nil {
			return err
		}

		for _, p := range players {
			target := FormatMembershipNumber(p.ID)
			if p.MembershipNumber == target {
				continue
			}
			if err := tx.Model(&Player{}).Where("id = ?", p.ID).
				UpdateColumn("membership_number", target).Error; err != nil {
				return err
			}
			result.Updated++
			result.Numbers[p.PublicID] = target
		}
		return nil
	}

	var err error
	if opts.DryRun {
		err = database.WithRollback(db, run)
	} else {
		err = database.WithTransaction(db, run)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("membership number backfill complete",
		logger.Int("updated", result.Updated), logger.Bool("dry_run", opts.DryRun))
	return result, nil
}
