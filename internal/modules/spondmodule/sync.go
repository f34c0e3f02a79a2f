package spondmodule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/redbridgehc/clubhouse/internal/database"
	"github.com/redbridgehc/clubhouse/internal/events"
	"github.com/redbridgehc/clubhouse/internal/logger"
)

// SyncResult counts what one sync run touched.
type SyncResult struct {
	Groups  int `json:"groups"`
	Members int `json:"members"`
	Events  int `json:"events"`
}

// groupMeta is the flattened view of the group tree before upserting.
type groupMeta struct {
	name   string
	parent string
	raw    json.RawMessage
}

// Sync pulls groups, members and upcoming events from the external API
// and upserts them. Safe to run repeatedly; rows are keyed by external
// id.
func Sync(ctx context.Context, db *gorm.DB, api API, now time.Time) (*SyncResult, error) {
	groups, err := api.Groups(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch groups: %w", err)
	}

	index := map[string]*groupMeta{}
	var indexGroup func(g GroupPayload, parent string)
	indexGroup = func(g GroupPayload, parent string) {
		if g.ID == "" {
			return
		}
		raw, _ := json.Marshal(g)
		meta, ok := index[g.ID]
		if !ok {
			meta = &groupMeta{}
			index[g.ID] = meta
		}
		if g.Name != "" {
			meta.name = g.Name
		}
		if parent != "" {
			meta.parent = parent
		}
		meta.raw = raw
		for _, sub := range g.SubGroups {
			child, ok := subgroupRef(sub)
			if !ok {
				continue
			}
			if child.Name == "" && child.Members == nil {
				// bare id, placeholder row until a later sync names it
				if _, seen := index[child.ID]; !seen {
					placeholder, _ := json.Marshal(map[string]string{"id": child.ID})
					index[child.ID] = &groupMeta{parent: g.ID, raw: placeholder}
				} else {
					index[child.ID].parent = g.ID
				}
				continue
			}
			indexGroup(child, g.ID)
		}
	}
	for _, g := range groups {
		indexGroup(g, "")
	}

	result := &SyncResult{}
	err = database.WithTransaction(db, func(tx *gorm.DB) error {
		if err := upsertGroups(tx, index, result); err != nil {
			return err
		}
		return upsertMembers(tx, groups, now, result)
	})
	if err != nil {
		return nil, err
	}

	eventsFetched, err := api.Events(ctx, now.AddDate(0, -1, 0), now.AddDate(0, 3, 0))
	if err != nil {
		// groups and members already landed; report events separately
		logger.Warn("spond event fetch failed", logger.Err(err))
	} else {
		err = database.WithTransaction(db, func(tx *gorm.DB) error {
			return upsertEvents(tx, eventsFetched, result)
		})
		if err != nil {
			return nil, err
		}
	}

	events.PublishGlobal(events.Event{
		Type:    events.EventSpondSynced,
		Source:  "spond",
		Title:   "Spond sync complete",
		Message: fmt.Sprintf("%d groups, %d members, %d events", result.Groups, result.Members, result.Events),
	})
	return result, nil
}

// upsertGroups writes all groups first without parents, then re-links
// parents once every row exists.
func upsertGroups(tx *gorm.DB, index map[string]*groupMeta, result *SyncResult) error {
	byExternalID := map[string]*SpondGroup{}
	for gid, meta := range index {
		name := meta.name
		if name == "" {
			name = gid
		}

		var group SpondGroup
		err := tx.Where("spond_group_id = ?", gid).First(&group).Error
		switch {
		case err == nil:
			group.Name = name
			group.Data = []byte(meta.raw)
			if err := tx.Save(&group).Error; err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			group = SpondGroup{SpondGroupID: gid, Name: name, Data: []byte(meta.raw)}
			if err := tx.Create(&group).Error; err != nil {
				return err
			}
		default:
			return err
		}
		g := group
		byExternalID[gid] = &g
		result.Groups++
	}

	for gid, meta := range index {
		if meta.parent == "" {
			continue
		}
		parent, ok := byExternalID[meta.parent]
		if !ok {
			continue
		}
		child := byExternalID[gid]
		if child.ParentID != nil && *child.ParentID == parent.ID {
			continue
		}
		if err := tx.Model(&SpondGroup{}).Where("id = ?", child.ID).
			Update("parent_id", parent.ID).Error; err != nil {
			return err
		}
	}
	return nil
}

// upsertMembers flattens members out of every group payload and replaces
// their group links with the subgroup ids the API reports.
func upsertMembers(tx *gorm.DB, groups []GroupPayload, now time.Time, result *SyncResult) error {
	seen := map[string]bool{}
	for _, g := range groups {
		for _, mp := range g.Members {
			if mp.ID == "" || seen[mp.ID] {
				continue
			}
			seen[mp.ID] = true

			full := strings.TrimSpace(strings.TrimSpace(mp.FirstName) + " " + strings.TrimSpace(mp.LastName))
			email := strings.ToLower(strings.TrimSpace(mp.Email))
			raw, _ := json.Marshal(mp)
			syncedAt := now

			var member SpondMember
			err := tx.Where("spond_member_id = ?", mp.ID).First(&member).Error
			switch {
			case err == nil:
				member.FullName = full
				member.Email = email
				member.Data = raw
				member.LastSyncedAt = &syncedAt
				if err := tx.Save(&member).Error; err != nil {
					return err
				}
			case errors.Is(err, gorm.ErrRecordNotFound):
				member = SpondMember{
					SpondMemberID: mp.ID,
					FullName:      full,
					Email:         email,
					Data:          raw,
					LastSyncedAt:  &syncedAt,
				}
				if err := tx.Create(&member).Error; err != nil {
					return err
				}
			default:
				return err
			}

			var linked []SpondGroup
			if len(mp.SubGroups) > 0 {
				if err := tx.Where("spond_group_id IN ?", mp.SubGroups).Find(&linked).Error; err != nil {
					return err
				}
			}
			if err := tx.Model(&member).Association("Groups").Replace(linked); err != nil {
				return err
			}
			result.Members++
		}
	}
	return nil
}

func upsertEvents(tx *gorm.DB, payloads []EventPayload, result *SyncResult) error {
	for _, ep := range payloads {
		if ep.ID == "" {
			continue
		}

		var groupID *uint
		if ep.GroupID != "" {
			var group SpondGroup
			err := tx.Where("spond_group_id = ?", ep.GroupID).First(&group).Error
			if err == nil {
				groupID = &group.ID
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}

		raw, _ := json.Marshal(ep)
		var event SpondEvent
		err := tx.Where("spond_event_id = ?", ep.ID).First(&event).Error
		switch {
		case err == nil:
			event.Heading = ep.Heading
			event.StartAt = ep.StartAt
			event.EndAt = ep.EndAt
			event.GroupID = groupID
			event.Data = raw
			if err := tx.Save(&event).Error; err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			event = SpondEvent{
				SpondEventID: ep.ID,
				Heading:      ep.Heading,
				StartAt:      ep.StartAt,
				EndAt:        ep.EndAt,
				GroupID:      groupID,
				Data:         raw,
			}
			if err := tx.Create(&event).Error; err != nil {
				return err
			}
		default:
			return err
		}
		result.Events++
	}
	return nil
}
