package membershipsmodule

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/redbridgehc/clubhouse/internal/modules/membersmodule"
)

// Season is the club's annual operating period ("2025/26"). Products,
// fees and tariffs are scoped to a season.
type Season struct {
	ID     uint      `json:"id" gorm:"primaryKey"`
	Name   string    `json:"name" gorm:"uniqueIndex;size:32;not null"`
	Start  time.Time `json:"start" gorm:"not null"`
	End    time.Time `json:"end" gorm:"not null"`
	Active bool      `json:"active" gorm:"default:false"`
}

// MembershipCategory is a high-level bucket like U12, Teen, Senior, Guest.
type MembershipCategory struct {
	ID          uint                       `json:"id" gorm:"primaryKey"`
	Code        string                     `json:"code" gorm:"uniqueIndex;size:50;not null"`
	Label       string                     `json:"label" gorm:"size:100;not null"`
	Description string                     `json:"description"`
	Selectable  bool                       `json:"selectable" gorm:"default:true"`
	AppliesTo   []membersmodule.PlayerType `json:"applies_to" gorm:"many2many:category_player_types"`
}

// Payment frequencies for plans.
const (
	FrequencyOnce    = "once"
	FrequencyMonthly = "monthly"
	FrequencyWeekly  = "weekly"
)

// MembershipProduct is one purchasable membership for a season. The SKU
// is unique within its season; clone and import key on it.
type MembershipProduct struct {
	ID             uint               `json:"id" gorm:"primaryKey"`
	SeasonID       uint               `json:"season_id" gorm:"uniqueIndex:idx_season_sku;not null"`
	Season         Season             `json:"season"`
	CategoryID     uint               `json:"category_id" gorm:"not null"`
	Category       MembershipCategory `json:"category"`
	Name           string             `json:"name" gorm:"size:150;not null"`
	SKU            string             `json:"sku" gorm:"uniqueIndex:idx_season_sku;size:80;not null"`
	ListPricePence int64              `json:"list_price_pence" gorm:"default:0"`
	Active         bool               `json:"active" gorm:"default:true"`
	Notes          string             `json:"notes"`
	// RequiresPlan is false for e.g. £0 guest memberships where a plan
	// is optional.
	RequiresPlan bool `json:"requires_plan" gorm:"default:true"`
	// PayPerMatch adds a per-match fee on top of any membership payment.
	PayPerMatch bool          `json:"pay_per_match" gorm:"default:false"`
	Plans       []PaymentPlan `json:"plans" gorm:"foreignKey:ProductID"`
}

// PaymentPlan is an instalment schedule for a product, e.g.
// "£12.50 x 12 months". The label is unique per product.
type PaymentPlan struct {
	ID                    uint   `json:"id" gorm:"primaryKey"`
	ProductID             uint   `json:"product_id" gorm:"uniqueIndex:idx_product_label;not null"`
	Label                 string `json:"label" gorm:"uniqueIndex:idx_product_label;size:120;not null"`
	InstalmentAmountPence int64  `json:"instalment_amount_pence" gorm:"not null"`
	InstalmentCount       int    `json:"instalment_count" gorm:"not null"`
	Frequency             string `json:"frequency" gorm:"size:16;default:monthly"`
	IncludesMatchFees     bool   `json:"includes_match_fees" gorm:"default:true"`
	Active                bool   `json:"active" gorm:"default:true"`
	DisplayOrder          int    `json:"display_order" gorm:"default:0"`
}

// AddOnFee is a season-scoped extra (e.g. insurance levy). Name is
// unique per season.
type AddOnFee struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	SeasonID    uint   `json:"season_id" gorm:"uniqueIndex:idx_season_addon;not null"`
	Season      Season `json:"season"`
	Name        string `json:"name" gorm:"uniqueIndex:idx_season_addon;size:80;not null"`
	AmountPence int64  `json:"amount_pence" gorm:"not null"`
	Active      bool   `json:"active" gorm:"default:true"`
}

// MatchFeeTariff is a per-match fee, optionally scoped to a category or
// a product. Resolution is product > category > season default.
type MatchFeeTariff struct {
	ID          uint                `json:"id" gorm:"primaryKey"`
	SeasonID    uint                `json:"season_id" gorm:"not null"`
	Season      Season              `json:"season"`
	Name        string              `json:"name" gorm:"size:80;default:League Match"`
	AmountPence int64               `json:"amount_pence" gorm:"not null"`
	CategoryID  *uint               `json:"category_id"`
	Category    *MembershipCategory `json:"category,omitempty"`
	ProductID   *uint               `json:"product_id"`
	Product     *MembershipProduct  `json:"product,omitempty"`
	IsDefault   bool                `json:"is_default" gorm:"default:false"`
	Active      bool                `json:"active" gorm:"default:true"`
}

// Subscription statuses.
const (
	SubscriptionPending   = "pending"
	SubscriptionActive    = "active"
	SubscriptionPaused    = "paused"
	SubscriptionCancelled = "cancelled"
)

// Subscription ties a player to a product (and optionally a plan) for a
// season. The season is denormalised from the product so the one
// pending-or-active-per-player-per-season rule is a single query.
// Subscriptions are environment-specific and never appear in seed
// documents.
type Subscription struct {
	ID          uint                 `json:"id" gorm:"primaryKey"`
	PlayerID    uint                 `json:"player_id" gorm:"not null"`
	Player      membersmodule.Player `json:"player"`
	ProductID   uint                 `json:"product_id" gorm:"not null"`
	Product     MembershipProduct    `json:"product"`
	PlanID      *uint                `json:"plan_id"`
	Plan        *PaymentPlan         `json:"plan,omitempty"`
	SeasonID    uint                 `json:"season_id" gorm:"not null"`
	Season      Season               `json:"season"`
	Status      string               `json:"status" gorm:"size:20;default:pending"`
	ExternalRef string               `json:"external_ref" gorm:"size:120"`
	StartedAt   time.Time            `json:"started_at" gorm:"autoCreateTime"`
	CreatedBy   string               `json:"created_by" gorm:"size:254"`
}

var (
	ErrSeasonNotFound     = errors.New("season not found")
	ErrPlanRequired       = errors.New("this product requires a payment plan")
	ErrSeasonMismatch     = errors.New("subscription season must match product season")
	ErrDuplicateSub       = errors.New("player already has a pending or active subscription for this season")
	ErrSubNotTransitional = errors.New("subscription cannot transition from its current status")
)

// BeforeSave aligns the denormalised season and enforces the plan
// requirement.
func (s *Subscription) BeforeSave(tx *gorm.DB) error {
	var product MembershipProduct
	if err := tx.First(&product, s.ProductID).Error; err != nil {
		return err
	}
	if s.SeasonID != 0 && s.SeasonID != product.SeasonID {
		return ErrSeasonMismatch
	}
	s.SeasonID = product.SeasonID
	if product.RequiresPlan && s.PlanID == nil {
		return ErrPlanRequired
	}
	return nil
}

// BeforeCreate enforces at most one pending-or-active subscription per
// player per season.
func (s *Subscription) BeforeCreate(tx *gorm.DB) error {
	var product MembershipProduct
	if err := tx.First(&product, s.ProductID).Error; err != nil {
		return err
	}
	var count int64
	err := tx.Model(&Subscription{}).
		Where("player_id = ? AND season_id = ? AND status IN ?",
			s.PlayerID, product.SeasonID, []string{SubscriptionPending, SubscriptionActive}).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrDuplicateSub
	}
	return nil
}

// ResolveMatchFee finds the most specific active match fee for a
// product: product > category > season default.
func ResolveMatchFee(db *gorm.DB, product *MembershipProduct) (*MatchFeeTariff, error) {
	var fee MatchFeeTariff

	err := db.Where("product_id = ? AND active = ?", product.ID, true).First(&fee).Error
	if err == nil {
		return &fee, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	err = db.Where("category_id = ? AND season_id = ? AND active = ?",
		product.CategoryID, product.SeasonID, true).First(&fee).Error
	if err == nil {
		return &fee, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	err = db.Where("season_id = ? AND category_id IS NULL AND product_id IS NULL AND is_default = ? AND active = ?",
		product.SeasonID, true, true).First(&fee).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &fee, nil
}
