package incidentsmodule

import (
	"fmt"
	"net/mail"
	"strings"

	"gorm.io/gorm"

	"github.com/redbridgehc/clubhouse/internal/email"
	"github.com/redbridgehc/clubhouse/internal/events"
	"github.com/redbridgehc/clubhouse/internal/logger"
	"github.com/redbridgehc/clubhouse/internal/modules/tasksmodule"
)

// renderNotification builds the plain-text body sent to reviewers.
func renderNotification(clubName string, inc *Incident) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A new incident has been reported at %s and needs review.\n\n", clubName)
	fmt.Fprintf(&b, "Reference: %s\n", inc.Reference)
	fmt.Fprintf(&b, "Summary:   %s\n", inc.Summary)
	fmt.Fprintf(&b, "Location:  %s\n", inc.Location)
	fmt.Fprintf(&b, "When:      %s\n", inc.OccurredAt.Format("2006-01-02 15:04"))
	if inc.SuspectedConcussion {
		b.WriteString("\nSuspected concussion reported.\n")
	}
	return b.String()
}

// RouteIncident notifies the active routing recipients about a freshly
// filed incident. Each recipient gets an email and an automation-owned
// review task. A missing routing table is not an error, the incident
// still stands on its own.
func RouteIncident(db *gorm.DB, svc email.Service, clubName string, inc *Incident) error {
	recipients, err := ActiveRecipients(db)
	if err != nil {
		return fmt.Errorf("failed to load incident routing: %w", err)
	}
	if len(recipients) == 0 {
		logger.Warn("no active incident routing recipients, skipping notification",
			logger.String("reference", inc.Reference))
		return nil
	}

	title := fmt.Sprintf("[REVIEW] Incident %s: %s", inc.Reference, truncate(inc.Summary, 60))
	body := renderNotification(clubName, inc)

	var messages []*email.Message
	for _, addr := range recipients {
		messages = append(messages, &email.Message{
			To:      []mail.Address{addr},
			Subject: title,
			Body:    body,
		})

		task := tasksmodule.Task{
			Title:               title,
			Description:         body,
			Status:              tasksmodule.TaskOpen,
			AssignedTo:          addr.Address,
			AllowManualComplete: false,
		}
		if err := db.Create(&task).Error; err != nil {
			return fmt.Errorf("failed to create review task: %w", err)
		}
	}

	if err := svc.SendMessages(messages...); err != nil {
		return fmt.Errorf("failed to send incident notifications: %w", err)
	}

	events.PublishGlobal(events.Event{
		Type:    events.EventIncidentFiled,
		Source:  "incidents",
		Title:   "Incident filed",
		Message: fmt.Sprintf("%s routed to %d reviewer(s)", inc.Reference, len(recipients)),
	})
	return nil
}

// closeReviewTasks marks the automation-owned review tasks for an
// incident as done once it is closed.
func closeReviewTasks(db *gorm.DB, inc *Incident) error {
	pattern := fmt.Sprintf("%%Incident %s:%%", inc.Reference)
	return db.Model(&tasksmodule.Task{}).
		Where("status = ? AND allow_manual_complete = ? AND title LIKE ?", tasksmodule.TaskOpen, false, pattern).
		Update("status", tasksmodule.TaskDone).Error
}

// truncate cuts s to at most max runes, never splitting a multibyte
// character.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
