package membershipsmodule

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/redbridgehc/clubhouse/internal/database"
	"github.com/redbridgehc/clubhouse/internal/events"
	"github.com/redbridgehc/clubhouse/internal/logger"
)

// CloneOptions control season cloning.
type CloneOptions struct {
	// CreateTarget creates the target season (source dates shifted one
	// year forward) when it does not exist.
	CreateTarget bool
	// Overwrite updates rows that already exist in the target season.
	// Without it, existing rows are left untouched and counted as skipped.
	Overwrite bool
	// DryRun runs the whole clone inside a transaction that is rolled
	// back at the end.
	DryRun bool
	// IncludeInactive is accepted for explicitness. Inactive rows are
	// cloned regardless, carrying their active flag into the target.
	IncludeInactive bool
}

// CloneSummary reports per-entity created/updated/skipped counts.
type CloneSummary struct {
	Created  map[string]int `json:"created"`
	Updated  map[string]int `json:"updated"`
	Skipped  map[string]int `json:"skipped"`
	Warnings []string       `json:"warnings,omitempty"`
}

func newCloneSummary() *CloneSummary {
	return &CloneSummary{Created: map[string]int{}, Updated: map[string]int{}, Skipped: map[string]int{}}
}

// shiftYear moves a date one year forward, clamping Feb 29 to Feb 28 in
// non-leap years.
func shiftYear(t time.Time) time.Time {
	day := t.Day()
	if t.Month() == time.February && day == 29 {
		day = 28
	}
	return time.Date(t.Year()+1, t.Month(), day, 0, 0, 0, 0, t.Location())
}

// CloneSeason copies a season's catalogue (products with plans, add-on
// fees, match fee tariffs) into another season, keyed on the same
// natural keys the seed importer uses.
func CloneSeason(db *gorm.DB, sourceName, targetName string, opts CloneOptions) (*CloneSummary, error) {
	summary := newCloneSummary()
	run := func(tx *gorm.DB) error { return cloneTx(tx, sourceName, targetName, opts, summary) }

	var err error
	if opts.DryRun {
		err = database.WithRollback(db, run)
	} else {
		err = database.WithTransaction(db, run)
	}
	if err != nil {
		return nil, err
	}

	events.PublishGlobal(events.Event{
		Type:    events.EventSeasonCloned,
		Source:  "memberships",
		Title:   "Season cloned",
		Message: fmt.Sprintf("%s -> %s (dry_run=%v)", sourceName, targetName, opts.DryRun),
	})
	return summary, nil
}

func cloneTx(tx *gorm.DB, sourceName, targetName string, opts CloneOptions, summary *CloneSummary) error {
	var source Season
	if err := tx.Where("name = ?", sourceName).First(&source).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("source season %q: %w", sourceName, ErrSeasonNotFound)
		}
		return err
	}

	var target Season
	err := tx.Where("name = ?", targetName).First(&target).Error
	switch {
	case err == nil:
	case errors.Is(err, gorm.ErrRecordNotFound):
		if !opts.CreateTarget {
			return fmt.Errorf("target season %q does not exist (use create-target): %w", targetName, ErrSeasonNotFound)
		}
		target = Season{
			Name:   targetName,
			Start:  shiftYear(source.Start),
			End:    shiftYear(source.End),
			Active: false,
		}
		if err := tx.Create(&target).Error; err != nil {
			return err
		}
		summary.Created["seasons"]++
		logger.Info("created target season",
			logger.String("name", targetName),
			logger.String("start", target.Start.Format("2006-01-02")))
	default:
		return err
	}

	productMap, err := cloneProducts(tx, source.ID, target.ID, opts, summary)
	if err != nil {
		return err
	}
	if err := cloneAddOns(tx, source.ID, target.ID, opts, summary); err != nil {
		return err
	}
	return cloneTariffs(tx, source.ID, target.ID, productMap, opts, summary)
}

// cloneProducts returns a source-product-ID to target-product-ID map so
// product-scoped tariffs can follow their product into the target season.
func cloneProducts(tx *gorm.DB, sourceID, targetID uint, opts CloneOptions, summary *CloneSummary) (map[uint]uint, error) {
	var products []MembershipProduct
	if err := tx.Preload("Plans").Where("season_id = ?", sourceID).Order("sku").Find(&products).Error; err != nil {
		return nil, err
	}

	productMap := make(map[uint]uint, len(products))
	for _, src := range products {
		var dst MembershipProduct
		err := tx.Where("season_id = ? AND sku = ?", targetID, src.SKU).First(&dst).Error
		switch {
		case err == nil:
			productMap[src.ID] = dst.ID
			if !opts.Overwrite {
				summary.Skipped["products"]++
				continue
			}
			dst.CategoryID = src.CategoryID
			dst.Name = src.Name
			dst.ListPricePence = src.ListPricePence
			dst.Active = src.Active
			dst.Notes = src.Notes
			dst.RequiresPlan = src.RequiresPlan
			dst.PayPerMatch = src.PayPerMatch
			if err := tx.Save(&dst).Error; err != nil {
				return nil, err
			}
			summary.Updated["products"]++
		case errors.Is(err, gorm.ErrRecordNotFound):
			dst = MembershipProduct{
				SeasonID:       targetID,
				CategoryID:     src.CategoryID,
				Name:           src.Name,
				SKU:            src.SKU,
				ListPricePence: src.ListPricePence,
				Active:         src.Active,
				Notes:          src.Notes,
				RequiresPlan:   src.RequiresPlan,
				PayPerMatch:    src.PayPerMatch,
			}
			if err := tx.Create(&dst).Error; err != nil {
				return nil, err
			}
			productMap[src.ID] = dst.ID
			summary.Created["products"]++
		default:
			return nil, err
		}

		for _, plan := range src.Plans {
			if err := clonePlan(tx, dst.ID, plan, opts, summary); err != nil {
				return nil, err
			}
		}
	}
	return productMap, nil
}

func clonePlan(tx *gorm.DB, targetProductID uint, src PaymentPlan, opts CloneOptions, summary *CloneSummary) error {
	var dst PaymentPlan
	err := tx.Where("product_id = ? AND label = ?", targetProductID, src.Label).First(&dst).Error
	switch {
	case err == nil:
		if !opts.Overwrite {
			summary.Skipped["plans"]++
			return nil
		}
		dst.InstalmentAmountPence = src.InstalmentAmountPence
		dst.InstalmentCount = src.InstalmentCount
		dst.Frequency = src.Frequency
		dst.IncludesMatchFees = src.IncludesMatchFees
		dst.Active = src.Active
		dst.DisplayOrder = src.DisplayOrder
		if err := tx.Save(&dst).Error; err != nil {
			return err
		}
		summary.Updated["plans"]++
	case errors.Is(err, gorm.ErrRecordNotFound):
		dst = PaymentPlan{
			ProductID:             targetProductID,
			Label:                 src.Label,
			InstalmentAmountPence: src.InstalmentAmountPence,
			InstalmentCount:       src.InstalmentCount,
			Frequency:             src.Frequency,
			IncludesMatchFees:     src.IncludesMatchFees,
			Active:                src.Active,
			DisplayOrder:          src.DisplayOrder,
		}
		if err := tx.Create(&dst).Error; err != nil {
			return err
		}
		summary.Created["plans"]++
	default:
		return err
	}
	return nil
}

func cloneAddOns(tx *gorm.DB, sourceID, targetID uint, opts CloneOptions, summary *CloneSummary) error {
	var addons []AddOnFee
	if err := tx.Where("season_id = ?", sourceID).Order("name").Find(&addons).Error; err != nil {
		return err
	}

	for _, src := range addons {
		var dst AddOnFee
		err := tx.Where("season_id = ? AND name = ?", targetID, src.Name).First(&dst).Error
		switch {
		case err == nil:
			if !opts.Overwrite {
				summary.Skipped["addons"]++
				continue
			}
			dst.AmountPence = src.AmountPence
			dst.Active = src.Active
			if err := tx.Save(&dst).Error; err != nil {
				return err
			}
			summary.Updated["addons"]++
		case errors.Is(err, gorm.ErrRecordNotFound):
			dst = AddOnFee{SeasonID: targetID, Name: src.Name, AmountPence: src.AmountPence, Active: src.Active}
			if err := tx.Create(&dst).Error; err != nil {
				return err
			}
			summary.Created["addons"]++
		default:
			return err
		}
	}
	return nil
}

func cloneTariffs(tx *gorm.DB, sourceID, targetID uint, productMap map[uint]uint, opts CloneOptions, summary *CloneSummary) error {
	var tariffs []MatchFeeTariff
	if err := tx.Where("season_id = ?", sourceID).Order("name, id").Find(&tariffs).Error; err != nil {
		return err
	}

	for _, src := range tariffs {
		var productID *uint
		if src.ProductID != nil {
			mapped, ok := productMap[*src.ProductID]
			if !ok {
				// Product-scoped tariff whose product has no counterpart
				// in the target season.
				summary.Skipped["match_fees"]++
				summary.Warnings = append(summary.Warnings,
					fmt.Sprintf("tariff %q skipped: its product was not cloned", src.Name))
				continue
			}
			productID = &mapped
		}

		findQuery := tx.Where("season_id = ? AND name = ?", targetID, src.Name)
		findQuery = whereNullable(findQuery, "category_id", src.CategoryID)
		findQuery = whereNullable(findQuery, "product_id", productID)

		var dst MatchFeeTariff
		err := findQuery.First(&dst).Error
		switch {
		case err == nil:
			if !opts.Overwrite {
				summary.Skipped["match_fees"]++
				continue
			}
			dst.AmountPence = src.AmountPence
			dst.IsDefault = src.IsDefault
			dst.Active = src.Active
			if err := tx.Save(&dst).Error; err != nil {
				return err
			}
			summary.Updated["match_fees"]++
		case errors.Is(err, gorm.ErrRecordNotFound):
			dst = MatchFeeTariff{
				SeasonID:    targetID,
				Name:        src.Name,
				AmountPence: src.AmountPence,
				CategoryID:  src.CategoryID,
				ProductID:   productID,
				IsDefault:   src.IsDefault,
				Active:      src.Active,
			}
			if err := tx.Create(&dst).Error; err != nil {
				return err
			}
			summary.Created["match_fees"]++
		default:
			return err
		}
	}
	return nil
}

func whereNullable(q *gorm.DB, column string, value *uint) *gorm.DB {
	if value == nil {
		return q.Where(column + " IS NULL")
	}
	return q.Where(column+" = ?", *value)
}
