package tasksmodule

import (
	"fmt"
	"net/mail"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/redbridgehc/clubhouse/internal/email"
	"github.com/redbridgehc/clubhouse/internal/events"
	"github.com/redbridgehc/clubhouse/internal/logger"
)

// DigestLookaheadDays is how far ahead "due soon" reaches.
const DigestLookaheadDays = 7

// DigestOptions control the digest run.
type DigestOptions struct {
	// DryRun builds the digests but sends nothing.
	DryRun bool
}

// DigestResult reports what one digest run produced.
type DigestResult struct {
	Recipients int `json:"recipients"`
	Sent       int `json:"sent"`
	Tasks      int `json:"tasks"`
}

// BuildAssigneeTaskMap groups open assigned tasks per assignee email,
// overdue first, then due soon, then undated.
func BuildAssigneeTaskMap(db *gorm.DB, now time.Time) (map[string][]Task, error) {
	soon := now.AddDate(0, 0, DigestLookaheadDays)

	base := func() *gorm.DB {
		return db.Where("status = ? AND assigned_to <> ''", TaskOpen)
	}

	var overdue, dueSoon, undated []Task
	if err := base().Where("due_at < ?", now).Order("due_at").Find(&overdue).Error; err != nil {
		return nil, err
	}
	if err := base().Where("due_at >= ? AND due_at <= ?", now, soon).Order("due_at").Find(&dueSoon).Error; err != nil {
		return nil, err
	}
	if err := base().Where("due_at IS NULL").Order("created_at DESC").Find(&undated).Error; err != nil {
		return nil, err
	}

	out := map[string][]Task{}
	for _, bucket := range [][]Task{overdue, dueSoon, undated} {
		for _, t := range bucket {
			out[t.AssignedTo] = append(out[t.AssignedTo], t)
		}
	}
	return out, nil
}

// renderDigest builds the plain-text body for one assignee.
func renderDigest(clubName string, tasks []Task, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You have %d open task(s) at %s.\n\n", len(tasks), clubName)
	for _, t := range tasks {
		marker := "-"
		if t.IsOverdue(now) {
			marker = "!"
		}
		fmt.Fprintf(&b, "%s %s", marker, t.Title)
		if t.DueAt != nil {
			fmt.Fprintf(&b, " (due %s)", t.DueAt.Format("Mon 2 Jan"))
		}
		b.WriteString("\n")
	}
	b.WriteString("\nOverdue tasks are marked with '!'.\n")
	return b.String()
}

// SendDigest emails each assignee one message covering all their open
// tasks. Assignees without a parseable email address are skipped.
func SendDigest(db *gorm.DB, svc email.Service, clubName string, now time.Time, opts DigestOptions) (*DigestResult, error) {
	taskMap, err := BuildAssigneeTaskMap(db, now)
	if err != nil {
		return nil, err
	}

	result := &DigestResult{Recipients: len(taskMap)}
	if len(taskMap) == 0 {
		logger.Info("no assignees with open tasks, digest skipped")
		return result, nil
	}

	assignees := make([]string, 0, len(taskMap))
	for a := range taskMap {
		assignees = append(assignees, a)
	}
	sort.Strings(assignees)

	var messages []*email.Message
	for _, assignee := range assignees {
		tasks := taskMap[assignee]
		result.Tasks += len(tasks)

		addr, err := mail.ParseAddress(assignee)
		if err != nil {
			logger.Warn("skipping assignee with invalid email", logger.String("assignee", assignee))
			continue
		}
		messages = append(messages, &email.Message{
			To:      []mail.Address{*addr},
			Subject: fmt.Sprintf("You have %d open task(s)", len(tasks)),
			Body:    renderDigest(clubName, tasks, now),
		})
	}

	if opts.DryRun {
		logger.Info("digest dry run", logger.Int("recipients", len(messages)))
		return result, nil
	}

	if err := svc.SendMessages(messages...); err != nil {
		return nil, fmt.Errorf("digest send failed: %w", err)
	}
	result.Sent = len(messages)

	events.PublishGlobal(events.Event{
		Type:    events.EventDigestSent,
		Source:  "tasks",
		Title:   "Task digest sent",
		Message: fmt.Sprintf("%d email(s) covering %d task(s)", result.Sent, result.Tasks),
	})
	return result, nil
}
