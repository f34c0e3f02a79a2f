package membersmodule

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PlayerType buckets players into registration flows ("Senior", "Junior").
type PlayerType struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"uniqueIndex;size:20;not null"`
}

// Gender and relation choices mirror the registration form.
const (
	GenderMale   = "male"
	GenderFemale = "female"
	GenderOther  = "other"

	RelationSelf            = "self"
	RelationAdditionalAdult = "additional_adult"
	RelationChild           = "child"
)

// Player is a registered club member.
type Player struct {
	ID               uint       `json:"id" gorm:"primaryKey"`
	PublicID         string     `json:"public_id" gorm:"uniqueIndex;size:36;not null"`
	FirstName        string     `json:"first_name" gorm:"size:100;not null"`
	LastName         string     `json:"last_name" gorm:"size:100;not null"`
	DateOfBirth      time.Time  `json:"date_of_birth" gorm:"not null"`
	Gender           string     `json:"gender" gorm:"size:20;default:other"`
	Relation         string     `json:"relation" gorm:"size:20;default:self"`
	PlayerTypeID     uint       `json:"player_type_id" gorm:"not null"`
	PlayerType       PlayerType `json:"player_type"`
	MembershipNumber string     `json:"membership_number" gorm:"uniqueIndex;size:10"`
	CreatedBy        string     `json:"created_by" gorm:"size:254"` // account email of the registering user
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// BeforeCreate assigns the public id used in wallet URLs and seed
// documents.
func (p *Player) BeforeCreate(tx *gorm.DB) error {
	if p.PublicID == "" {
		p.PublicID = uuid.NewString()
	}
	return nil
}

// AfterCreate assigns the sequential membership number once the row id is
// known.
func (p *Player) AfterCreate(tx *gorm.DB) error {
	if p.MembershipNumber != "" {
		return nil
	}
	p.MembershipNumber = FormatMembershipNumber(p.ID)
	return tx.Model(p).UpdateColumn("membership_number", p.MembershipNumber).Error
}

// FormatMembershipNumber renders the zero-padded sequential number
// printed on membership cards.
func FormatMembershipNumber(id uint) string {
	return fmt.Sprintf("%05d", id)
}

// Age returns the player's age in whole years at the given date.
func (p *Player) Age(on time.Time) int {
	years := on.Year() - p.DateOfBirth.Year()
	anniversary := p.DateOfBirth.AddDate(years, 0, 0)
	if anniversary.After(on) {
		years--
	}
	return years
}

// FullName joins first and last name for display.
func (p *Player) FullName() string {
	return p.FirstName + " " + p.LastName
}

// Question types supported by the dynamic registration form.
const (
	QuestionText    = "text"
	QuestionBoolean = "boolean"
	QuestionChoice  = "choice"
	QuestionNumber  = "number"
)

// QuestionCategory groups dynamic questions into form sections.
type QuestionCategory struct {
	ID           uint   `json:"id" gorm:"primaryKey"`
	Name         string `json:"name" gorm:"uniqueIndex;size:100;not null"`
	DisplayOrder int    `json:"display_order" gorm:"default:0"`
	Description  string `json:"description"`
}

// DynamicQuestion is a configurable registration question.
type DynamicQuestion struct {
	ID                  uint              `json:"id" gorm:"primaryKey"`
	Code                string            `json:"code" gorm:"uniqueIndex;size:64;not null"` // stable identifier, e.g. "medical_conditions"
	Label               string            `json:"label" gorm:"size:255;not null"`
	HelpText            string            `json:"help_text" gorm:"size:255"`
	QuestionType        string            `json:"question_type" gorm:"size:10;default:text"`
	Required            bool              `json:"required" gorm:"default:false"`
	RequiresDetailIfYes bool              `json:"requires_detail_if_yes" gorm:"default:false"`
	CategoryID          *uint             `json:"category_id"`
	Category            *QuestionCategory `json:"category,omitempty"`
	AppliesTo           []PlayerType      `json:"applies_to" gorm:"many2many:question_player_types"`
	DisplayOrder        int               `json:"display_order" gorm:"default:0"`
	Active              bool              `json:"active" gorm:"default:true"`
	ChoicesText         string            `json:"choices_text"` // comma-separated options for choice questions
}

// PlayerAnswer stores one player's answer to one dynamic question.
type PlayerAnswer struct {
	ID            uint            `json:"id" gorm:"primaryKey"`
	PlayerID      uint            `json:"player_id" gorm:"uniqueIndex:idx_player_question;not null"`
	QuestionID    uint            `json:"question_id" gorm:"uniqueIndex:idx_player_question;not null"`
	Question      DynamicQuestion `json:"-"`
	TextAnswer    string          `json:"text_answer"`
	BooleanAnswer *bool           `json:"boolean_answer"`
	DetailText    string          `json:"detail_text"`
	// Numeric-style answers (mobile, ID numbers) kept as strings to
	// preserve leading zeros.
	NumericAnswer string    `json:"numeric_answer" gorm:"size:32"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Team is a playing squad.
type Team struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	Name        string `json:"name" gorm:"uniqueIndex;size:80;not null"`
	Description string `json:"description" gorm:"size:255"`
	Active      bool   `json:"active" gorm:"default:true"`
}

// Position is a playing position ("Goalkeeper", "Midfield").
type Position struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"uniqueIndex;size:40;not null"`
}

// TeamMembership assigns a player to a team.
type TeamMembership struct {
	ID         uint       `json:"id" gorm:"primaryKey"`
	TeamID     uint       `json:"team_id" gorm:"uniqueIndex:idx_team_player;not null"`
	Team       Team       `json:"team"`
	PlayerID   uint       `json:"player_id" gorm:"uniqueIndex:idx_team_player;not null"`
	Player     Player     `json:"player"`
	Positions  []Position `json:"positions" gorm:"many2many:team_membership_positions"`
	AssignedAt time.Time  `json:"assigned_at" gorm:"autoCreateTime"`
}

// ValidateDateOfBirth rejects dates of birth that are today or later.
func ValidateDateOfBirth(dob, today time.Time) error {
	d := dob.Truncate(24 * time.Hour)
	t := today.Truncate(24 * time.Hour)
	if !d.Before(t) {
		return fmt.Errorf("date of birth cannot be today or in the future")
	}
	return nil
}
