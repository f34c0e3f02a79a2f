package membershipsmodule

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/redbridgehc/clubhouse/internal/database"
	"github.com/redbridgehc/clubhouse/internal/events"
	"github.com/redbridgehc/clubhouse/internal/logger"
	"github.com/redbridgehc/clubhouse/internal/modules/membersmodule"
	"github.com/redbridgehc/clubhouse/internal/seed"
)

// Document is the portable seed covering the memberships catalogue and
// the members-side reference data. Cross-references use natural keys
// only, so the document moves between databases. Subscriptions and
// player answers are environment-specific and never included.
type Document struct {
	Meta        seed.Meta          `json:"_meta"`
	Memberships MembershipsSection `json:"memberships"`
	Members     MembersSection     `json:"members"`
}

type MembershipsSection struct {
	Seasons    []SeasonRow   `json:"seasons"`
	Categories []CategoryRow `json:"categories"`
	Products   []ProductRow  `json:"products"`
	AddOns     []AddOnRow    `json:"addons"`
	MatchFees  []MatchFeeRow `json:"match_fees"`
}

type MembersSection struct {
	PlayerTypes        []PlayerTypeRow       `json:"player_types"`
	Positions          []PositionRow         `json:"positions"`
	QuestionCategories []QuestionCategoryRow `json:"question_categories"`
	DynamicQuestions   []DynamicQuestionRow  `json:"dynamic_questions"`
	Teams              []TeamRow             `json:"teams"`
	TeamMemberships    []TeamMembershipRow   `json:"team_memberships"`
}

type SeasonRow struct {
	Name   string `json:"name"`
	Start  string `json:"start"`
	End    string `json:"end"`
	Active bool   `json:"is_active"`
}

type CategoryRow struct {
	Code        string   `json:"code"`
	Label       string   `json:"label"`
	Description string   `json:"description"`
	Selectable  bool     `json:"is_selectable"`
	AppliesTo   []string `json:"applies_to"`
}

type ProductRow struct {
	Season         string    `json:"season"`
	Category       string    `json:"category"`
	Name           string    `json:"name"`
	SKU            string    `json:"sku"`
	ListPricePence int64     `json:"list_price_pence"`
	Active         bool      `json:"active"`
	Notes          string    `json:"notes"`
	RequiresPlan   bool      `json:"requires_plan"`
	PayPerMatch    bool      `json:"pay_per_match"`
	Plans          []PlanRow `json:"plans"`
}

type PlanRow struct {
	Label                 string `json:"label"`
	InstalmentAmountPence int64  `json:"instalment_amount_pence"`
	InstalmentCount       int    `json:"instalment_count"`
	Frequency             string `json:"frequency"`
	IncludesMatchFees     bool   `json:"includes_match_fees"`
	Active                bool   `json:"active"`
	DisplayOrder          int    `json:"display_order"`
}

type AddOnRow struct {
	Season      string `json:"season"`
	Name        string `json:"name"`
	AmountPence int64  `json:"amount_pence"`
	Active      bool   `json:"active"`
}

type MatchFeeRow struct {
	Season      string  `json:"season"`
	Name        string  `json:"name"`
	AmountPence int64   `json:"amount_pence"`
	Category    *string `json:"category"`
	Product     *string `json:"product"`
	IsDefault   bool    `json:"is_default"`
	Active      bool    `json:"active"`
}

type PlayerTypeRow struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

type PositionRow struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type QuestionCategoryRow struct {
	Code         string `json:"code"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	DisplayOrder int    `json:"display_order"`
}

type DynamicQuestionRow struct {
	Code                string   `json:"code"`
	Label               string   `json:"label"`
	HelpText            string   `json:"help_text"`
	QuestionType        string   `json:"question_type"`
	Required            bool     `json:"required"`
	RequiresDetailIfYes bool     `json:"requires_detail_if_yes"`
	Category            *string  `json:"category"`
	AppliesTo           []string `json:"applies_to"`
	DisplayOrder        int      `json:"display_order"`
	Active              bool     `json:"active"`
	ChoicesText         string   `json:"choices_text"`
}

type TeamRow struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Active      bool   `json:"is_active"`
}

type TeamMembershipRow struct {
	Team           string   `json:"team"`
	PlayerPublicID string   `json:"player_public_id"`
	Positions      []string `json:"positions"`
}

// Ordered candidate unique fields per entity, evaluated in this order by
// the importer when resolving a row.
var (
	playerTypeResolver = seed.Resolver{Entity: "player type", Candidates: []string{"code", "slug", "name"}}
	positionResolver   = seed.Resolver{Entity: "position", Candidates: []string{"code", "slug", "name"}}
	qcatResolver       = seed.Resolver{Entity: "question category", Candidates: []string{"code", "slug", "name"}}
	teamResolver       = seed.Resolver{Entity: "team", Candidates: []string{"code", "slug", "name"}}
)

// ImportOptions control the seed importer.
type ImportOptions struct {
	// DryRun performs the full import inside a transaction that is
	// rolled back at the end.
	DryRun bool
	// Purge deletes existing rows of the affected types, children
	// first, before importing.
	Purge bool
}

// ImportResult reports what the importer did (or would do, on dry run).
type ImportResult struct {
	Created  map[string]int `json:"created"`
	Updated  map[string]int `json:"updated"`
	Warnings []string       `json:"warnings,omitempty"`
}

func newImportResult() *ImportResult {
	return &ImportResult{Created: map[string]int{}, Updated: map[string]int{}}
}

func (r *ImportResult) record(entity string, created bool) {
	if created {
		r.Created[entity]++
	} else {
		r.Updated[entity]++
	}
}

func (r *ImportResult) warnf(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Export serializes the memberships catalogue and members reference data
// to a portable document. Ordering is deterministic so repeated exports
// of the same data are byte-identical.
func Export(db *gorm.DB) (*Document, error) {
	doc := &Document{
		Meta: seed.Meta{Version: seed.CurrentVersion, Notes: "No Subscription or PlayerAnswer rows exported."},
	}

	var seasons []Season
	if err := db.Order("start, id").Find(&seasons).Error; err != nil {
		return nil, err
	}
	seasonName := make(map[uint]string, len(seasons))
	for _, s := range seasons {
		seasonName[s.ID] = s.Name
		doc.Memberships.Seasons = append(doc.Memberships.Seasons, SeasonRow{
			Name:   s.Name,
			Start:  seed.FormatDate(s.Start),
			End:    seed.FormatDate(s.End),
			Active: s.Active,
		})
	}

	var categories []MembershipCategory
	if err := db.Preload("AppliesTo").Order("code").Find(&categories).Error; err != nil {
		return nil, err
	}
	categoryCode := make(map[uint]string, len(categories))
	for _, c := range categories {
		categoryCode[c.ID] = c.Code
		applies := make([]string, 0, len(c.AppliesTo))
		for _, pt := range c.AppliesTo {
			applies = append(applies, pt.Name)
		}
		doc.Memberships.Categories = append(doc.Memberships.Categories, CategoryRow{
			Code:        c.Code,
			Label:       c.Label,
			Description: c.Description,
			Selectable:  c.Selectable,
			AppliesTo:   applies,
		})
	}

	var products []MembershipProduct
	err := db.Preload("Plans", func(tx *gorm.DB) *gorm.DB { return tx.Order("display_order, id") }).
		Joins("JOIN seasons ON seasons.id = membership_products.season_id").
		Order("seasons.start, membership_products.sku").
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	productSKU := make(map[uint]string, len(products))
	for _, p := range products {
		productSKU[p.ID] = p.SKU
		row := ProductRow{
			Season:         seasonName[p.SeasonID],
			Category:       categoryCode[p.CategoryID],
			Name:           p.Name,
			SKU:            p.SKU,
			ListPricePence: p.ListPricePence,
			Active:         p.Active,
			Notes:          p.Notes,
			RequiresPlan:   p.RequiresPlan,
			PayPerMatch:    p.PayPerMatch,
		}
		for _, plan := range p.Plans {
			row.Plans = append(row.Plans, PlanRow{
				Label:                 plan.Label,
				InstalmentAmountPence: plan.InstalmentAmountPence,
				InstalmentCount:       plan.InstalmentCount,
				Frequency:             plan.Frequency,
				IncludesMatchFees:     plan.IncludesMatchFees,
				Active:                plan.Active,
				DisplayOrder:          plan.DisplayOrder,
			})
		}
		doc.Memberships.Products = append(doc.Memberships.Products, row)
	}

	var addons []AddOnFee
	err = db.Joins("JOIN seasons ON seasons.id = add_on_fees.season_id").
		Order("seasons.start, add_on_fees.name").Find(&addons).Error
	if err != nil {
		return nil, err
	}
	for _, a := range addons {
		doc.Memberships.AddOns = append(doc.Memberships.AddOns, AddOnRow{
			Season:      seasonName[a.SeasonID],
			Name:        a.Name,
			AmountPence: a.AmountPence,
			Active:      a.Active,
		})
	}

	var fees []MatchFeeTariff
	err = db.Joins("JOIN seasons ON seasons.id = match_fee_tariffs.season_id").
		Order("seasons.start, match_fee_tariffs.name, match_fee_tariffs.id").Find(&fees).Error
	if err != nil {
		return nil, err
	}
	for _, f := range fees {
		row := MatchFeeRow{
			Season:      seasonName[f.SeasonID],
			Name:        f.Name,
			AmountPence: f.AmountPence,
			IsDefault:   f.IsDefault,
			Active:      f.Active,
		}
		if f.CategoryID != nil {
			code := categoryCode[*f.CategoryID]
			row.Category = &code
		}
		if f.ProductID != nil {
			sku := productSKU[*f.ProductID]
			row.Product = &sku
		}
		doc.Memberships.MatchFees = append(doc.Memberships.MatchFees, row)
	}

	if err := exportMembers(db, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func exportMembers(db *gorm.DB, doc *Document) error {
	var playerTypes []membersmodule.PlayerType
	if err := db.Order("name").Find(&playerTypes).Error; err != nil {
		return err
	}
	for _, pt := range playerTypes {
		doc.Members.PlayerTypes = append(doc.Members.PlayerTypes, PlayerTypeRow{Key: pt.Name, Label: pt.Name})
	}

	var positions []membersmodule.Position
	if err := db.Order("name").Find(&positions).Error; err != nil {
		return err
	}
	for _, p := range positions {
		doc.Members.Positions = append(doc.Members.Positions, PositionRow{Code: p.Name, Name: p.Name})
	}

	var qcats []membersmodule.QuestionCategory
	if err := db.Order("display_order, name").Find(&qcats).Error; err != nil {
		return err
	}
	qcatName := make(map[uint]string, len(qcats))
	for _, qc := range qcats {
		qcatName[qc.ID] = qc.Name
		doc.Members.QuestionCategories = append(doc.Members.QuestionCategories, QuestionCategoryRow{
			Code:         qc.Name,
			Name:         qc.Name,
			Description:  qc.Description,
			DisplayOrder: qc.DisplayOrder,
		})
	}

	var questions []membersmodule.DynamicQuestion
	if err := db.Preload("AppliesTo").Order("display_order, code").Find(&questions).Error; err != nil {
		return err
	}
	for _, q := range questions {
		row := DynamicQuestionRow{
			Code:                q.Code,
			Label:               q.Label,
			HelpText:            q.HelpText,
			QuestionType:        q.QuestionType,
			Required:            q.Required,
			RequiresDetailIfYes: q.RequiresDetailIfYes,
			DisplayOrder:        q.DisplayOrder,
			Active:              q.Active,
			ChoicesText:         q.ChoicesText,
		}
		if q.CategoryID != nil {
			name := qcatName[*q.CategoryID]
			row.Category = &name
		}
		for _, pt := range q.AppliesTo {
			row.AppliesTo = append(row.AppliesTo, pt.Name)
		}
		doc.Members.DynamicQuestions = append(doc.Members.DynamicQuestions, row)
	}

	var teams []membersmodule.Team
	if err := db.Order("name").Find(&teams).Error; err != nil {
		return err
	}
	teamName := make(map[uint]string, len(teams))
	for _, t := range teams {
		teamName[t.ID] = t.Name
		doc.Members.Teams = append(doc.Members.Teams, TeamRow{
			Code:        t.Name,
			Name:        t.Name,
			Description: t.Description,
			Active:      t.Active,
		})
	}

	var memberships []membersmodule.TeamMembership
	err := db.Preload("Player").Preload("Positions").Order("team_id, player_id").Find(&memberships).Error
	if err != nil {
		return err
	}
	for _, tm := range memberships {
		if tm.Player.PublicID == "" {
			continue
		}
		row := TeamMembershipRow{
			Team:           teamName[tm.TeamID],
			PlayerPublicID: tm.Player.PublicID,
		}
		for _, pos := range tm.Positions {
			row.Positions = append(row.Positions, pos.Name)
		}
		doc.Members.TeamMemberships = append(doc.Members.TeamMemberships, row)
	}
	return nil
}

// Import applies a seed document with idempotent natural-key upserts.
// Unknown cross-references abort the whole import; nothing is written.
func Import(db *gorm.DB, doc *Document, opts ImportOptions) (*ImportResult, error) {
	if err := doc.Meta.CheckVersion(); err != nil {
		return nil, err
	}

	result := newImportResult()
	run := func(tx *gorm.DB) error { return importTx(tx, doc, opts, result) }

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
		Type:    events.EventSeedImported,
		Source:  "memberships",
		Title:   "Seed imported",
		Message: fmt.Sprintf("memberships seed applied (dry_run=%v, purge=%v)", opts.DryRun, opts.Purge),
	})
	return result, nil
}

func importTx(tx *gorm.DB, doc *Document, opts ImportOptions, result *ImportResult) error {
	if opts.Purge {
		if err := purge(tx); err != nil {
			return err
		}
	}

	seasonByName, err := importSeasons(tx, doc.Memberships.Seasons, result)
	if err != nil {
		return err
	}
	typeByKey, err := importPlayerTypes(tx, doc.Members.PlayerTypes, result)
	if err != nil {
		return err
	}
	categoryByCode, err := importCategories(tx, doc.Memberships.Categories, typeByKey, result)
	if err != nil {
		return err
	}
	if err := importProducts(tx, doc.Memberships.Products, seasonByName, categoryByCode, result); err != nil {
		return err
	}
	if err := importAddOns(tx, doc.Memberships.AddOns, seasonByName, result); err != nil {
		return err
	}
	if err := importMatchFees(tx, doc.Memberships.MatchFees, seasonByName, categoryByCode, result); err != nil {
		return err
	}
	if err := importMembersReference(tx, &doc.Members, typeByKey, result); err != nil {
		return err
	}
	return importTeamMemberships(tx, doc.Members.TeamMemberships, result)
}

// purge deletes the affected types, children first, so a subsequent
// import recreates a clean state.
func purge(tx *gorm.DB) error {
	models := []interface{}{
		// members side
		&membersmodule.TeamMembership{},
		&membersmodule.Team{},
		&membersmodule.DynamicQuestion{},
		&membersmodule.QuestionCategory{},
		&membersmodule.Position{},
		&membersmodule.PlayerType{},
		// memberships side
		&PaymentPlan{},
		&MatchFeeTariff{},
		&MembershipProduct{},
		&AddOnFee{},
		&MembershipCategory{},
		&Season{},
	}
	for _, m := range models {
		if err := tx.Where("1 = 1").Delete(m).Error; err != nil {
			return fmt.Errorf("purge failed: %w", err)
		}
	}
	return nil
}

func importSeasons(tx *gorm.DB, rows []SeasonRow, result *ImportResult) (map[string]*Season, error) {
	out := make(map[string]*Season, len(rows))
	for _, row := range rows {
		start, err := seed.ParseDate(row.Start)
		if err != nil {
			return nil, fmt.Errorf("season %q: %w", row.Name, err)
		}
		end, err := seed.ParseDate(row.End)
		if err != nil {
			return nil, fmt.Errorf("season %q: %w", row.Name, err)
		}

		var season Season
		err = tx.Where("name = ?", row.Name).First(&season).Error
		switch {
		case err == nil:
			season.Start = start
			season.End = end
			season.Active = row.Active
			if err := tx.Save(&season).Error; err != nil {
				return nil, err
			}
			result.record("seasons", false)
		case errors.Is(err, gorm.ErrRecordNotFound):
			season = Season{Name: row.Name, Start: start, End: end, Active: row.Active}
			if err := tx.Create(&season).Error; err != nil {
				return nil, err
			}
			result.record("seasons", true)
		default:
			return nil, err
		}
		s := season
		out[row.Name] = &s
	}
	return out, nil
}

func importPlayerTypes(tx *gorm.DB, rows []PlayerTypeRow, result *ImportResult) (map[string]*membersmodule.PlayerType, error) {
	out := map[string]*membersmodule.PlayerType{}

	var existing []membersmodule.PlayerType
	if err := tx.Find(&existing).Error; err != nil {
		return nil, err
	}
	for i := range existing {
		out[existing[i].Name] = &existing[i]
	}

	for _, row := range rows {
		key := row.Key
		if key == "" {
			key = row.Label
		}
		if key == "" {
			continue
		}

		if pt, ok := out[key]; ok {
			out[key] = pt
			result.record("player_types", false)
			continue
		}

		// Not in the key map: try the ordered candidate fields with the
		// key and then the label before creating.
		var pt membersmodule.PlayerType
		err := playerTypeResolver.Find(tx, &pt, key)
		if errors.Is(err, seed.ErrUnresolved) && row.Label != "" && row.Label != key {
			err = playerTypeResolver.Find(tx, &pt, row.Label)
		}
		switch {
		case err == nil:
			out[key] = &pt
			result.record("player_types", false)
		case errors.Is(err, seed.ErrUnresolved):
			pt = membersmodule.PlayerType{Name: key}
			if err := tx.Create(&pt).Error; err != nil {
				return nil, err
			}
			created := pt
			out[key] = &created
			result.record("player_types", true)
		default:
			return nil, err
		}
	}
	return out, nil
}

func importCategories(tx *gorm.DB, rows []CategoryRow, typeByKey map[string]*membersmodule.PlayerType, result *ImportResult) (map[string]*MembershipCategory, error) {
	out := make(map[string]*MembershipCategory, len(rows))
	for _, row := range rows {
		var cat MembershipCategory
		err := tx.Where("code = ?", row.Code).First(&cat).Error
		switch {
		case err == nil:
			cat.Label = row.Label
			cat.Description = row.Description
			cat.Selectable = row.Selectable
			if err := tx.Save(&cat).Error; err != nil {
				return nil, err
			}
			result.record("categories", false)
		case errors.Is(err, gorm.ErrRecordNotFound):
			cat = MembershipCategory{
				Code:        row.Code,
				Label:       row.Label,
				Description: row.Description,
				Selectable:  row.Selectable,
			}
			if err := tx.Create(&cat).Error; err != nil {
				return nil, err
			}
			result.record("categories", true)
		default:
			return nil, err
		}

		applies := make([]membersmodule.PlayerType, 0, len(row.AppliesTo))
		for _, key := range row.AppliesTo {
			pt, ok := typeByKey[key]
			if !ok {
				return nil, fmt.Errorf("unknown player type key %q for category %q", key, row.Code)
			}
			applies = append(applies, *pt)
		}
		if err := tx.Model(&cat).Association("AppliesTo").Replace(applies); err != nil {
			return nil, err
		}
		c := cat
		out[row.Code] = &c
	}
	return out, nil
}

func importProducts(tx *gorm.DB, rows []ProductRow, seasonByName map[string]*Season, categoryByCode map[string]*MembershipCategory, result *ImportResult) error {
	for _, row := range rows {
		season, err := resolveSeason(tx, seasonByName, row.Season)
		if err != nil {
			return fmt.Errorf("product %q: %w", row.SKU, err)
		}
		category, err := resolveCategory(tx, categoryByCode, row.Category)
		if err != nil {
			return fmt.Errorf("product %q: %w", row.SKU, err)
		}

		var product MembershipProduct
		err = tx.Where("season_id = ? AND sku = ?", season.ID, row.SKU).First(&product).Error
		switch {
		case err == nil:
			product.CategoryID = category.ID
			product.Name = row.Name
			product.ListPricePence = row.ListPricePence
			product.Active = row.Active
			product.Notes = row.Notes
			product.RequiresPlan = row.RequiresPlan
			product.PayPerMatch = row.PayPerMatch
			if err := tx.Save(&product).Error; err != nil {
				return err
			}
			result.record("products", false)
		case errors.Is(err, gorm.ErrRecordNotFound):
			product = MembershipProduct{
				SeasonID:       season.ID,
				CategoryID:     category.ID,
				Name:           row.Name,
				SKU:            row.SKU,
				ListPricePence: row.ListPricePence,
				Active:         row.Active,
				Notes:          row.Notes,
				RequiresPlan:   row.RequiresPlan,
				PayPerMatch:    row.PayPerMatch,
			}
			if err := tx.Create(&product).Error; err != nil {
				return err
			}
			result.record("products", true)
		default:
			return err
		}

		for _, planRow := range row.Plans {
			if err := upsertPlan(tx, product.ID, planRow, result); err != nil {
				return fmt.Errorf("product %q plan %q: %w", row.SKU, planRow.Label, err)
			}
		}
	}
	return nil
}

func upsertPlan(tx *gorm.DB, productID uint, row PlanRow, result *ImportResult) error {
	var plan PaymentPlan
	err := tx.Where("product_id = ? AND label = ?", productID, row.Label).First(&plan).Error
	switch {
	case err == nil:
		plan.InstalmentAmountPence = row.InstalmentAmountPence
		plan.InstalmentCount = row.InstalmentCount
		plan.Frequency = row.Frequency
		plan.IncludesMatchFees = row.IncludesMatchFees
		plan.Active = row.Active
		plan.DisplayOrder = row.DisplayOrder
		if err := tx.Save(&plan).Error; err != nil {
			return err
		}
		result.record("plans", false)
	case errors.Is(err, gorm.ErrRecordNotFound):
		plan = PaymentPlan{
			ProductID:             productID,
			Label:                 row.Label,
			InstalmentAmountPence: row.InstalmentAmountPence,
			InstalmentCount:       row.InstalmentCount,
			Frequency:             row.Frequency,
			IncludesMatchFees:     row.IncludesMatchFees,
			Active:                row.Active,
			DisplayOrder:          row.DisplayOrder,
		}
		if err := tx.Create(&plan).Error; err != nil {
			return err
		}
		result.record("plans", true)
	default:
		return err
	}
	return nil
}

func importAddOns(tx *gorm.DB, rows []AddOnRow, seasonByName map[string]*Season, result *ImportResult) error {
	for _, row := range rows {
		season, err := resolveSeason(tx, seasonByName, row.Season)
		if err != nil {
			return fmt.Errorf("add-on %q: %w", row.Name, err)
		}

		var addon AddOnFee
		err = tx.Where("season_id = ? AND name = ?", season.ID, row.Name).First(&addon).Error
		switch {
		case err == nil:
			addon.AmountPence = row.AmountPence
			addon.Active = row.Active
			if err := tx.Save(&addon).Error; err != nil {
				return err
			}
			result.record("addons", false)
		case errors.Is(err, gorm.ErrRecordNotFound):
			addon = AddOnFee{SeasonID: season.ID, Name: row.Name, AmountPence: row.AmountPence, Active: row.Active}
			if err := tx.Create(&addon).Error; err != nil {
				return err
			}
			result.record("addons", true)
		default:
			return err
		}
	}
	return nil
}

func importMatchFees(tx *gorm.DB, rows []MatchFeeRow, seasonByName map[string]*Season, categoryByCode map[string]*MembershipCategory, result *ImportResult) error {
	for _, row := range rows {
		season, err := resolveSeason(tx, seasonByName, row.Season)
		if err != nil {
			return fmt.Errorf("match fee %q: %w", row.Name, err)
		}

		var categoryID *uint
		if row.Category != nil {
			category, err := resolveCategory(tx, categoryByCode, *row.Category)
			if err != nil {
				return fmt.Errorf("match fee %q: %w", row.Name, err)
			}
			categoryID = &category.ID
		}

		var productID *uint
		if row.Product != nil {
			var product MembershipProduct
			err := tx.Where("season_id = ? AND sku = ?", season.ID, *row.Product).First(&product).Error
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("match fee %q: unknown product sku %q in season %q", row.Name, *row.Product, row.Season)
				}
				return err
			}
			productID = &product.ID
		}

		query := tx.Where("season_id = ? AND name = ?", season.ID, row.Name)
		query = whereNullable(query, "category_id", categoryID)
		query = whereNullable(query, "product_id", productID)

		var fee MatchFeeTariff
		err = query.First(&fee).Error
		switch {
		case err == nil:
			fee.AmountPence = row.AmountPence
			fee.IsDefault = row.IsDefault
			fee.Active = row.Active
			if err := tx.Save(&fee).Error; err != nil {
				return err
			}
			result.record("match_fees", false)
		case errors.Is(err, gorm.ErrRecordNotFound):
			fee = MatchFeeTariff{
				SeasonID:    season.ID,
				Name:        row.Name,
				AmountPence: row.AmountPence,
				CategoryID:  categoryID,
				ProductID:   productID,
				IsDefault:   row.IsDefault,
				Active:      row.Active,
			}
			if err := tx.Create(&fee).Error; err != nil {
				return err
			}
			result.record("match_fees", true)
		default:
			return err
		}
	}
	return nil
}

func importMembersReference(tx *gorm.DB, section *MembersSection, typeByKey map[string]*membersmodule.PlayerType, result *ImportResult) error {
	for _, row := range section.Positions {
		key := firstNonEmpty(row.Code, row.Name)
		if key == "" {
			continue
		}
		var pos membersmodule.Position
		err := positionResolver.Find(tx, &pos, key)
		switch {
		case err == nil:
			result.record("positions", false)
		case errors.Is(err, seed.ErrUnresolved):
			pos = membersmodule.Position{Name: key}
			if err := tx.Create(&pos).Error; err != nil {
				return err
			}
			result.record("positions", true)
		default:
			return err
		}
	}

	qcatByCode := map[string]*membersmodule.QuestionCategory{}
	for _, row := range section.QuestionCategories {
		key := firstNonEmpty(row.Code, row.Name)
		if key == "" {
			continue
		}
		var qc membersmodule.QuestionCategory
		err := qcatResolver.Find(tx, &qc, key)
		switch {
		case err == nil:
			qc.Description = row.Description
			qc.DisplayOrder = row.DisplayOrder
			if err := tx.Save(&qc).Error; err != nil {
				return err
			}
			result.record("question_categories", false)
		case errors.Is(err, seed.ErrUnresolved):
			qc = membersmodule.QuestionCategory{
				Name:         key,
				Description:  row.Description,
				DisplayOrder: row.DisplayOrder,
			}
			if err := tx.Create(&qc).Error; err != nil {
				return err
			}
			result.record("question_categories", true)
		default:
			return err
		}
		c := qc
		qcatByCode[key] = &c
	}

	for _, row := range section.DynamicQuestions {
		if row.Code == "" {
			continue
		}

		var categoryID *uint
		if row.Category != nil {
			qc, ok := qcatByCode[*row.Category]
			if !ok {
				var found membersmodule.QuestionCategory
				if err := qcatResolver.Find(tx, &found, *row.Category); err != nil {
					return fmt.Errorf("question %q: unknown question category %q", row.Code, *row.Category)
				}
				qc = &found
			}
			categoryID = &qc.ID
		}

		var q membersmodule.DynamicQuestion
		err := tx.Where("code = ?", row.Code).First(&q).Error
		created := false
		switch {
		case err == nil:
		case errors.Is(err, gorm.ErrRecordNotFound):
			q = membersmodule.DynamicQuestion{Code: row.Code}
			created = true
		default:
			return err
		}
		q.Label = row.Label
		q.HelpText = row.HelpText
		q.QuestionType = row.QuestionType
		q.Required = row.Required
		q.RequiresDetailIfYes = row.RequiresDetailIfYes
		q.CategoryID = categoryID
		q.DisplayOrder = row.DisplayOrder
		q.Active = row.Active
		q.ChoicesText = row.ChoicesText
		if err := tx.Save(&q).Error; err != nil {
			return err
		}
		result.record("dynamic_questions", created)

		applies := make([]membersmodule.PlayerType, 0, len(row.AppliesTo))
		for _, key := range row.AppliesTo {
			pt, ok := typeByKey[key]
			if !ok {
				return fmt.Errorf("question %q: unknown player type key %q", row.Code, key)
			}
			applies = append(applies, *pt)
		}
		if err := tx.Model(&q).Association("AppliesTo").Replace(applies); err != nil {
			return err
		}
	}

	for _, row := range section.Teams {
		key := firstNonEmpty(row.Code, row.Name)
		if key == "" {
			continue
		}
		var team membersmodule.Team
		err := teamResolver.Find(tx, &team, key)
		switch {
		case err == nil:
			team.Description = row.Description
			team.Active = row.Active
			if err := tx.Save(&team).Error; err != nil {
				return err
			}
			result.record("teams", false)
		case errors.Is(err, seed.ErrUnresolved):
			team = membersmodule.Team{Name: key, Description: row.Description, Active: row.Active}
			if err := tx.Create(&team).Error; err != nil {
				return err
			}
			result.record("teams", true)
		default:
			return err
		}
	}
	return nil
}

// importTeamMemberships links players to teams. Teams must resolve or
// the import fails; players are never created from this path, so rows
// whose player is absent are reported and skipped.
func importTeamMemberships(tx *gorm.DB, rows []TeamMembershipRow, result *ImportResult) error {
	for _, row := range rows {
		if row.Team == "" || row.PlayerPublicID == "" {
			continue
		}

		var team membersmodule.Team
		if err := teamResolver.Find(tx, &team, row.Team); err != nil {
			return fmt.Errorf("team membership for player %q: %w", row.PlayerPublicID, err)
		}

		var player membersmodule.Player
		err := tx.Where("public_id = ?", row.PlayerPublicID).First(&player).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				result.warnf("team %q: player %s not found, membership skipped", row.Team, row.PlayerPublicID)
				logger.Warn("seed: player missing for team membership",
					logger.String("team", row.Team), logger.String("player", row.PlayerPublicID))
				continue
			}
			return err
		}

		var tm membersmodule.TeamMembership
		err = tx.Where("team_id = ? AND player_id = ?", team.ID, player.ID).First(&tm).Error
		created := false
		switch {
		case err == nil:
		case errors.Is(err, gorm.ErrRecordNotFound):
			tm = membersmodule.TeamMembership{TeamID: team.ID, PlayerID: player.ID}
			if err := tx.Create(&tm).Error; err != nil {
				return err
			}
			created = true
		default:
			return err
		}
		result.record("team_memberships", created)

		if len(row.Positions) > 0 {
			positions := make([]membersmodule.Position, 0, len(row.Positions))
			for _, name := range row.Positions {
				var pos membersmodule.Position
				if err := positionResolver.Find(tx, &pos, name); err != nil {
					return fmt.Errorf("team membership for player %q: %w", row.PlayerPublicID, err)
				}
				positions = append(positions, pos)
			}
			if err := tx.Model(&tm).Association("Positions").Replace(positions); err != nil {
				return err
			}
		}
	}
	return nil
}

func resolveSeason(tx *gorm.DB, cache map[string]*Season, name string) (*Season, error) {
	if s, ok := cache[name]; ok {
		return s, nil
	}
	var season Season
	err := tx.Where("name = ?", name).First(&season).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("unknown season %q", name)
		}
		return nil, err
	}
	cache[name] = &season
	return &season, nil
}

func resolveCategory(tx *gorm.DB, cache map[string]*MembershipCategory, code string) (*MembershipCategory, error) {
	if c, ok := cache[code]; ok {
		return c, nil
	}
	var category MembershipCategory
	err := tx.Where("code = ?", code).First(&category).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("unknown category %q", code)
		}
		return nil, err
	}
	cache[code] = &category
	return &category, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
