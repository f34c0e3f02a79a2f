package incidentsmodule

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/redbridgehc/clubhouse/internal/modules/membersmodule"
)

// Activity types.
const (
	ActivityMatch    = "match"
	ActivityTraining = "training"
	ActivityOther    = "other"
)

// Roles of the person involved.
const (
	RolePlayer    = "player"
	RoleCoach     = "coach"
	RoleUmpire    = "umpire"
	RoleVolunteer = "volunteer"
	RoleSpectator = "spectator"
	RoleOther     = "other"
)

// Treatment levels.
const (
	TreatmentNone     = "none"
	TreatmentFirstAid = "first_aid"
	TreatmentHospital = "hospital"
	TreatmentGP       = "gp"
)

// Incident statuses. Open incidents sit in the review queue, review
// means someone has picked it up, closed incidents are immutable.
const (
	IncidentOpen   = "open"
	IncidentReview = "review"
	IncidentClosed = "closed"
)

// Incident is a single injury or safeguarding report.
type Incident struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	Reference string `json:"reference" gorm:"size:16;uniqueIndex"`

	OccurredAt   time.Time `json:"occurred_at" gorm:"not null;index"`
	Location     string    `json:"location" gorm:"size:255;not null"`
	ActivityType string    `json:"activity_type" gorm:"size:16;default:match"`

	TeamID          *uint                 `json:"team_id"`
	Team            *membersmodule.Team   `json:"team,omitempty"`
	PrimaryPlayerID *uint                 `json:"primary_player_id"`
	PrimaryPlayer   *membersmodule.Player `json:"primary_player,omitempty"`
	RoleInvolved    string                `json:"role_involved" gorm:"size:16;default:player"`
	AgeUnder18      bool                  `json:"age_under_18"`

	Summary             string `json:"summary" gorm:"size:255;not null"`
	Description         string `json:"description"`
	SuspectedConcussion bool   `json:"suspected_concussion"`
	InjuryTypes         string `json:"injury_types" gorm:"size:255"`

	TreatmentLevel    string `json:"treatment_level" gorm:"size:16;default:none"`
	FirstAiderName    string `json:"first_aider_name" gorm:"size:255"`
	FirstAiderContact string `json:"first_aider_contact" gorm:"size:255"`

	ReporterEmail string    `json:"reporter_email" gorm:"size:254"`
	ReportedAt    time.Time `json:"reported_at" gorm:"autoCreateTime"`

	Status      string `json:"status" gorm:"size:12;default:open;index"`
	StatusNotes string `json:"status_notes"`

	AssignedTo string     `json:"assigned_to" gorm:"size:254"`
	AssignedAt *time.Time `json:"assigned_at"`

	Sensitive bool `json:"sensitive"`

	SafeguardingNotified bool       `json:"safeguarding_notified"`
	SafeguardingNotes    string     `json:"safeguarding_notes"`
	SubmittedToEH        bool       `json:"submitted_to_eh"`
	EHSubmittedAt        *time.Time `json:"eh_submitted_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FormatReference builds the stable incident reference from the row id.
func FormatReference(id uint) string {
	return fmt.Sprintf("INC-%05d", id)
}

// AfterCreate assigns the reference once the row id is known.
func (i *Incident) AfterCreate(tx *gorm.DB) error {
	if i.Reference != "" {
		return nil
	}
	i.Reference = FormatReference(i.ID)
	return tx.Model(i).UpdateColumn("reference", i.Reference).Error
}

// IncidentRouting names the people who get emailed (and a review task)
// when a new incident is filed. Recipients is a comma separated list of
// email addresses.
type IncidentRouting struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	Name       string `json:"name" gorm:"size:100;default:Default incident review team"`
	Active     bool   `json:"active" gorm:"default:true"`
	Recipients string `json:"recipients" gorm:"size:1024"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RecipientAddresses returns the parseable addresses in Recipients,
// silently dropping anything malformed.
func (r *IncidentRouting) RecipientAddresses() []mail.Address {
	var out []mail.Address
	for _, raw := range strings.Split(r.Recipients, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		addr, err := mail.ParseAddress(raw)
		if err != nil {
			continue
		}
		out = append(out, *addr)
	}
	return out
}

// ActiveRecipients collects the distinct recipient addresses of all
// active routing rows.
func ActiveRecipients(db *gorm.DB) ([]mail.Address, error) {
	var routes []IncidentRouting
	if err := db.Where("active = ?", true).Find(&routes).Error; err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out []mail.Address
	for i := range routes {
		for _, addr := range routes[i].RecipientAddresses() {
			key := strings.ToLower(addr.Address)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, addr)
		}
	}
	return out, nil
}
