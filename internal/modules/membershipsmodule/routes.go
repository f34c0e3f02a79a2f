package membershipsmodule

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/redbridgehc/clubhouse/internal/config"
	"github.com/redbridgehc/clubhouse/internal/logger"
)

// RegisterRoutes registers the memberships module routes
func (m *Module) RegisterRoutes(router *gin.Engine) {
	logger.Info("Registering memberships module routes")

	api := router.Group("/api/memberships")
	{
		api.GET("/seasons", m.listSeasons)
		api.GET("/seasons/:id/products", m.listSeasonProducts)
		api.GET("/products/:id/match-fee", m.getProductMatchFee)

		api.POST("/subscriptions", m.createSubscription)
		api.GET("/subscriptions", m.listSubscriptions)
		api.POST("/subscriptions/:id/activate", m.transitionSubscription(SubscriptionActive))
		api.POST("/subscriptions/:id/pause", m.transitionSubscription(SubscriptionPaused))
		api.POST("/subscriptions/:id/cancel", m.transitionSubscription(SubscriptionCancelled))
	}

	router.GET("/api/wallet/:public_id/pass", m.getWalletPass)
}

func (m *Module) listSeasons(c *gin.Context) {
	var seasons []Season
	if err := m.db.Order("start DESC").Find(&seasons).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list seasons"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"seasons": seasons})
}

func (m *Module) listSeasonProducts(c *gin.Context) {
	seasonID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid season id"})
		return
	}

	query := m.db.Preload("Category").Preload("Plans").Where("season_id = ?", seasonID)
	if c.Query("include_inactive") != "true" {
		query = query.Where("active = ?", true)
	}

	var products []MembershipProduct
	if err := query.Order("sku").Find(&products).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list products"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

// getProductMatchFee resolves the effective per-match fee for a product,
// most specific tariff first.
func (m *Module) getProductMatchFee(c *gin.Context) {
	productID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}

	var product MembershipProduct
	if err := m.db.First(&product, productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load product"})
		return
	}

	fee, err := ResolveMatchFee(m.db, &product)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve match fee"})
		return
	}
	if fee == nil {
		c.JSON(http.StatusOK, gin.H{"match_fee": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"match_fee": fee})
}

type createSubscriptionRequest struct {
	PlayerID  uint   `json:"player_id" binding:"required"`
	ProductID uint   `json:"product_id" binding:"required"`
	PlanID    *uint  `json:"plan_id"`
	CreatedBy string `json:"created_by"`
}

func (m *Module) createSubscription(c *gin.Context) {
	var req createSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sub := Subscription{
		PlayerID:  req.PlayerID,
		ProductID: req.ProductID,
		PlanID:    req.PlanID,
		Status:    SubscriptionPending,
		CreatedBy: req.CreatedBy,
	}
	if err := m.db.Create(&sub).Error; err != nil {
		switch {
		case errors.Is(err, ErrPlanRequired), errors.Is(err, ErrDuplicateSub):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, gorm.ErrRecordNotFound):
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown product"})
		default:
			logger.Error("failed to create subscription", logger.Err(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create subscription"})
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{"subscription": sub})
}

func (m *Module) listSubscriptions(c *gin.Context) {
	query := m.db.Preload("Player").Preload("Product").Preload("Season")
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if season := c.Query("season_id"); season != "" {
		query = query.Where("season_id = ?", season)
	}

	var subs []Subscription
	if err := query.Order("started_at DESC").Find(&subs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list subscriptions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscriptions": subs})
}

// Legal status transitions. Cancelled is terminal.
var allowedTransitions = map[string][]string{
	SubscriptionActive:    {SubscriptionPending, SubscriptionPaused},
	SubscriptionPaused:    {SubscriptionActive},
	SubscriptionCancelled: {SubscriptionPending, SubscriptionActive, SubscriptionPaused},
}

func canTransition(from, to string) bool {
	for _, s := range allowedTransitions[to] {
		if s == from {
			return true
		}
	}
	return false
}

func (m *Module) transitionSubscription(target string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid subscription id"})
			return
		}

		var sub Subscription
		if err := m.db.First(&sub, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load subscription"})
			return
		}

		if !canTransition(sub.Status, target) {
			c.JSON(http.StatusConflict, gin.H{
				"error":  ErrSubNotTransitional.Error(),
				"status": sub.Status,
			})
			return
		}

		if err := m.db.Model(&sub).Update("status", target).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update subscription"})
			return
		}
		sub.Status = target
		c.JSON(http.StatusOK, gin.H{"subscription": sub})
	}
}

func (m *Module) getWalletPass(c *gin.Context) {
	payload, err := BuildPass(m.db, config.Get(), c.Param("public_id"))
	if err != nil {
		if errors.Is(err, ErrPlayerNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "player not found"})
			return
		}
		logger.Error("failed to build wallet pass", logger.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build pass"})
		return
	}
	c.JSON(http.StatusOK, payload)
}
