package spondmodule

import (
	"time"

	"gorm.io/datatypes"

	"github.com/redbridgehc/clubhouse/internal/modules/membersmodule"
)

// SpondGroup mirrors one group (or subgroup) from the external API. The
// parent link is nullable so placeholder rows for dangling subgroup ids
// can be created first and re-parented on a later sync.
type SpondGroup struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	SpondGroupID string         `json:"spond_group_id" gorm:"uniqueIndex;size:64;not null"`
	Name         string         `json:"name" gorm:"size:255"`
	ParentID     *uint          `json:"parent_id"`
	Parent       *SpondGroup    `json:"-"`
	Data         datatypes.JSON `json:"data"`
}

// SpondMember mirrors one member from the external API.
type SpondMember struct {
	ID            uint           `json:"id" gorm:"primaryKey"`
	SpondMemberID string         `json:"spond_member_id" gorm:"uniqueIndex;size:64;not null"`
	FullName      string         `json:"full_name" gorm:"size:255"`
	Email         string         `json:"email" gorm:"size:254"`
	Groups        []SpondGroup   `json:"groups" gorm:"many2many:spond_member_groups"`
	Data          datatypes.JSON `json:"data"`
	LastSyncedAt  *time.Time     `json:"last_synced_at"`
}

// SpondEvent mirrors one calendar event from the external API.
type SpondEvent struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	SpondEventID string         `json:"spond_event_id" gorm:"uniqueIndex;size:64;not null"`
	Heading      string         `json:"heading" gorm:"size:255"`
	StartAt      time.Time      `json:"start_at"`
	EndAt        time.Time      `json:"end_at"`
	GroupID      *uint          `json:"group_id"`
	Group        *SpondGroup    `json:"group,omitempty"`
	Data         datatypes.JSON `json:"data"`
}

// PlayerSpondLink connects a club player to an external member record.
// Unlinking deactivates rather than deletes so the pairing survives.
type PlayerSpondLink struct {
	ID            uint                 `json:"id" gorm:"primaryKey"`
	PlayerID      uint                 `json:"player_id" gorm:"uniqueIndex:idx_player_spond;not null"`
	Player        membersmodule.Player `json:"player"`
	SpondMemberID uint                 `json:"spond_member_id" gorm:"uniqueIndex:idx_player_spond;not null"`
	SpondMember   SpondMember          `json:"spond_member"`
	LinkedBy      string               `json:"linked_by" gorm:"size:254"`
	LinkedAt      time.Time            `json:"linked_at" gorm:"autoCreateTime"`
	Active        bool                 `json:"active" gorm:"default:true"`
}
