package membershipsmodule

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/redbridgehc/clubhouse/internal/config"
	"github.com/redbridgehc/clubhouse/internal/modules/membersmodule"
)

// PassField is one labelled value on a wallet pass.
type PassField struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Value string `json:"value"`
}

// PassBarcode carries the scannable member reference.
type PassBarcode struct {
	Message         string `json:"message"`
	Format          string `json:"format"`
	MessageEncoding string `json:"messageEncoding"`
}

// PassPayload is the unsigned membership pass document. Signing into a
// binary .pkpass is handled outside this service.
type PassPayload struct {
	FormatVersion    int         `json:"formatVersion"`
	Description      string      `json:"description"`
	OrganizationName string      `json:"organizationName"`
	SerialNumber     string      `json:"serialNumber"`
	BackgroundColor  string      `json:"backgroundColor,omitempty"`
	ForegroundColor  string      `json:"foregroundColor,omitempty"`
	Generic          PassGeneric `json:"generic"`
	Barcode          PassBarcode `json:"barcode"`
}

type PassGeneric struct {
	PrimaryFields   []PassField `json:"primaryFields"`
	SecondaryFields []PassField `json:"secondaryFields,omitempty"`
	AuxiliaryFields []PassField `json:"auxiliaryFields"`
	BackFields      []PassField `json:"backFields"`
}

// ErrPlayerNotFound is returned when a pass is requested for an unknown
// public id.
var ErrPlayerNotFound = errors.New("player not found")

// BuildPass assembles the wallet pass payload for a player, including
// the active subscription's season and product when one exists.
func BuildPass(db *gorm.DB, cfg *config.Config, publicID string) (*PassPayload, error) {
	var player membersmodule.Player
	err := db.Where("public_id = ?", publicID).First(&player).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("public id %s: %w", publicID, ErrPlayerNotFound)
		}
		return nil, err
	}

	name := strings.TrimSpace(player.FullName())
	if name == "" {
		name = "Unknown Player"
	}

	short := cfg.Club.ShortName
	payload := &PassPayload{
		FormatVersion:    1,
		Description:      fmt.Sprintf("%s %s", short, cfg.Club.PassDescription),
		OrganizationName: cfg.Club.Name,
		SerialNumber:     player.PublicID,
		BackgroundColor:  cfg.Club.PassBackground,
		ForegroundColor:  cfg.Club.PassForeground,
		Generic: PassGeneric{
			PrimaryFields: []PassField{
				{Key: "name", Label: "Member", Value: name},
			},
			AuxiliaryFields: []PassField{
				{Key: "member_no", Label: "Number", Value: fmt.Sprintf("%s%s", short, player.MembershipNumber)},
			},
			BackFields: []PassField{
				{Key: "pid", Label: "Player ID", Value: player.PublicID},
			},
		},
		Barcode: PassBarcode{
			Message:         fmt.Sprintf("%s:%s", short, player.PublicID),
			Format:          "PKBarcodeFormatQR",
			MessageEncoding: "iso-8859-1",
		},
	}

	var sub Subscription
	err = db.Preload("Season").Preload("Product").
		Where("player_id = ? AND status = ?", player.ID, SubscriptionActive).
		Order("started_at DESC").First(&sub).Error
	switch {
	case err == nil:
		payload.Generic.SecondaryFields = append(payload.Generic.SecondaryFields,
			PassField{Key: "season", Label: "Season", Value: sub.Season.Name},
			PassField{Key: "product", Label: "Membership", Value: sub.Product.Name},
		)
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return nil, err
	}
	return payload, nil
}
