package membersmodule

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/redbridgehc/clubhouse/internal/database"
	"github.com/redbridgehc/clubhouse/internal/events"
	"github.com/redbridgehc/clubhouse/internal/logger"
	"github.com/redbridgehc/clubhouse/internal/seed"
)

// PlayersDocument is the portable players seed. Players match across
// environments by public id; questions by code. With OnlyPlayers the
// answers section is dropped on both export and import.
type PlayersDocument struct {
	Meta    seed.Meta   `json:"_meta"`
	Players []PlayerRow `json:"players"`
	Answers []AnswerRow `json:"answers,omitempty"`
}

type PlayerRow struct {
	PublicID    string `json:"public_id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	DateOfBirth string `json:"date_of_birth"`
	Gender      string `json:"gender"`
	Relation    string `json:"relation"`
	PlayerType  string `json:"player_type"`
}

type AnswerRow struct {
	PlayerPublicID string `json:"player_public_id"`
	Question       string `json:"question"`
	TextAnswer     string `json:"text_answer,omitempty"`
	BooleanAnswer  *bool  `json:"boolean_answer,omitempty"`
	DetailText     string `json:"detail_text,omitempty"`
	NumericAnswer  string `json:"numeric_answer,omitempty"`
}

var (
	playerTypeFinder = seed.Resolver{Entity: "player type", Candidates: []string{"code", "slug", "name"}}
	questionFinder   = seed.Resolver{Entity: "question", Candidates: []string{"code", "slug", "name"}}
)

// PlayersSeedOptions control the players importer and exporter.
type PlayersSeedOptions struct {
	// OnlyPlayers drops the answers section.
	OnlyPlayers bool
	// DryRun performs the import inside a transaction rolled back at
	// the end.
	DryRun bool
	// Purge deletes existing PlayerAnswer rows before importing. It
	// never deletes players.
	Purge bool
}

// PlayersSeedResult reports created/updated counts and skipped rows.
type PlayersSeedResult struct {
	PlayersCreated int      `json:"players_created"`
	PlayersUpdated int      `json:"players_updated"`
	AnswersCreated int      `json:"answers_created"`
	AnswersUpdated int      `json:"answers_updated"`
	Warnings       []string `json:"warnings,omitempty"`
}

func (r *PlayersSeedResult) warnf(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// ExportPlayers serializes all players (and, unless OnlyPlayers, their
// answers) ordered by row id so repeated exports are stable.
func ExportPlayers(db *gorm.DB, opts PlayersSeedOptions) (*PlayersDocument, error) {
	note := "Players + PlayerAnswers"
	if opts.OnlyPlayers {
		note = "Players only"
	}
	doc := &PlayersDocument{Meta: seed.Meta{Version: seed.CurrentVersion, Notes: note}}

	var players []Player
	if err := db.Preload("PlayerType").Order("id").Find(&players).Error; err != nil {
		return nil, err
	}
	for _, p := range players {
		if p.PublicID == "" {
			continue
		}
		doc.Players = append(doc.Players, PlayerRow{
			PublicID:    p.PublicID,
			FirstName:   p.FirstName,
			LastName:    p.LastName,
			DateOfBirth: seed.FormatDate(p.DateOfBirth),
			Gender:      p.Gender,
			Relation:    p.Relation,
			PlayerType:  p.PlayerType.Name,
		})
	}
	if opts.OnlyPlayers {
		return doc, nil
	}

	var answers []PlayerAnswer
	err := db.Preload("Question").Order("id").Find(&answers).Error
	if err != nil {
		return nil, err
	}
	playerPublicID := make(map[uint]string, len(players))
	for _, p := range players {
		playerPublicID[p.ID] = p.PublicID
	}
	for _, a := range answers {
		pub, ok := playerPublicID[a.PlayerID]
		if !ok || pub == "" {
			continue
		}
		doc.Answers = append(doc.Answers, AnswerRow{
			PlayerPublicID: pub,
			Question:       a.Question.Code,
			TextAnswer:     a.TextAnswer,
			BooleanAnswer:  a.BooleanAnswer,
			DetailText:     a.DetailText,
			NumericAnswer:  a.NumericAnswer,
		})
	}
	return doc, nil
}

// ImportPlayers upserts players by public id and answers by
// player+question. Answers whose player or question cannot be resolved
// are reported and skipped.
func ImportPlayers(db *gorm.DB, doc *PlayersDocument, opts PlayersSeedOptions) (*PlayersSeedResult, error) {
	if err := doc.Meta.CheckVersion(); err != nil {
		return nil, err
	}

	result := &PlayersSeedResult{}
	run := func(tx *gorm.DB) error { return importPlayersTx(tx, doc, opts, result) }

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
		Source:  "members",
		Title:   "Players seed imported",
		Message: fmt.Sprintf("%d created, %d updated", result.PlayersCreated, result.PlayersUpdated),
	})
	return result, nil
}

func importPlayersTx(tx *gorm.DB, doc *PlayersDocument, opts PlayersSeedOptions, result *PlayersSeedResult) error {
	if opts.Purge && !opts.OnlyPlayers {
		if err := tx.Where("1 = 1").Delete(&PlayerAnswer{}).Error; err != nil {
			return fmt.Errorf("purge failed: %w", err)
		}
		logger.Warn("purged existing player answers")
	}

	for _, row := range doc.Players {
		if row.PublicID == "" {
			result.warnf("player %s %s has no public id, skipped", row.FirstName, row.LastName)
			continue
		}

		dob, err := seed.ParseDate(row.DateOfBirth)
		if err != nil {
			return fmt.Errorf("player %s: %w", row.PublicID, err)
		}

		var playerType PlayerType
		if row.PlayerType != "" {
			if err := playerTypeFinder.Find(tx, &playerType, row.PlayerType); err != nil {
				return fmt.Errorf("player %s: %w", row.PublicID, err)
			}
		}

		var player Player
		err = tx.Where("public_id = ?", row.PublicID).First(&player).Error
		switch {
		case err == nil:
			player.FirstName = row.FirstName
			player.LastName = row.LastName
			player.DateOfBirth = dob
			player.Gender = row.Gender
			player.Relation = row.Relation
			if playerType.ID != 0 {
				player.PlayerTypeID = playerType.ID
			}
			if err := tx.Save(&player).Error; err != nil {
				return err
			}
			result.PlayersUpdated++
		case errors.Is(err, gorm.ErrRecordNotFound):
			if playerType.ID == 0 {
				return fmt.Errorf("player %s: player type required to create", row.PublicID)
			}
			player = Player{
				PublicID:     row.PublicID,
				FirstName:    row.FirstName,
				LastName:     row.LastName,
				DateOfBirth:  dob,
				Gender:       row.Gender,
				Relation:     row.Relation,
				PlayerTypeID: playerType.ID,
			}
			if err := tx.Create(&player).Error; err != nil {
				return err
			}
			result.PlayersCreated++
		default:
			return err
		}
	}

	if opts.OnlyPlayers {
		return nil
	}
	return importAnswers(tx, doc.Answers, result)
}

func importAnswers(tx *gorm.DB, rows []AnswerRow, result *PlayersSeedResult) error {
	for _, row := range rows {
		var player Player
		err := tx.Where("public_id = ?", row.PlayerPublicID).First(&player).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				result.warnf("answer for unknown player %s skipped", row.PlayerPublicID)
				continue
			}
			return err
		}

		var question DynamicQuestion
		if err := questionFinder.Find(tx, &question, row.Question); err != nil {
			if errors.Is(err, seed.ErrUnresolved) {
				result.warnf("answer for player %s: unknown question %q skipped", row.PlayerPublicID, row.Question)
				continue
			}
			return err
		}

		var answer PlayerAnswer
		err = tx.Where("player_id = ? AND question_id = ?", player.ID, question.ID).First(&answer).Error
		created := false
		switch {
		case err == nil:
		case errors.Is(err, gorm.ErrRecordNotFound):
			answer = PlayerAnswer{PlayerID: player.ID, QuestionID: question.ID}
			created = true
		default:
			return err
		}
		answer.TextAnswer = row.TextAnswer
		answer.BooleanAnswer = row.BooleanAnswer
		answer.DetailText = row.DetailText
		answer.NumericAnswer = row.NumericAnswer
		if err := tx.Save(&answer).Error; err != nil {
			return err
		}
		if created {
			result.AnswersCreated++
		} else {
			result.AnswersUpdated++
		}
	}
	return nil
}
