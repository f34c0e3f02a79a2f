package membersmodule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/redbridgehc/clubhouse/internal/seed"
)

func setupTestDB(t *testing.T) *gorm.DB {
	dbName := "file:" + t.Name() + "?mode=memory&cache=shared&_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&PlayerType{},
		&Player{},
		&QuestionCategory{},
		&DynamicQuestion{},
		&PlayerAnswer{},
		&Team{},
		&Position{},
		&TeamMembership{},
	)
	require.NoError(t, err)
	return db
}

func seedReferenceData(t *testing.T, db *gorm.DB) (PlayerType, DynamicQuestion) {
	t.Helper()
	pt := PlayerType{Name: "Senior"}
	require.NoError(t, db.Create(&pt).Error)
	q := DynamicQuestion{Code: "medical_conditions", Label: "Any medical conditions?", QuestionType: QuestionBoolean, Active: true}
	require.NoError(t, db.Create(&q).Error)
	return pt, q
}

func boolPtr(b bool) *bool { return &b }

func playersDoc() *PlayersDocument {
	return &PlayersDocument{
		Meta: seed.Meta{Version: seed.CurrentVersion},
		Players: []PlayerRow{
			{
				PublicID:    "11111111-1111-1111-1111-111111111111",
				FirstName:   "Ada",
				LastName:    "Lovelace",
				DateOfBirth: "1990-03-14",
				Gender:      GenderFemale,
				Relation:    RelationSelf,
				PlayerType:  "Senior",
			},
		},
		Answers: []AnswerRow{
			{
				PlayerPublicID: "11111111-1111-1111-1111-111111111111",
				Question:       "medical_conditions",
				BooleanAnswer:  boolPtr(true),
				DetailText:     "asthma",
			},
		},
	}
}

func TestImportPlayersCreatesAndAssignsNumbers(t *testing.T) {
	db := setupTestDB(t)
	seedReferenceData(t, db)

	result, err := ImportPlayers(db, playersDoc(), PlayersSeedOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.PlayersCreated)
	assert.Equal(t, 1, result.AnswersCreated)
	assert.Empty(t, result.Warnings)

	var player Player
	require.NoError(t, db.Where("public_id = ?", "11111111-1111-1111-1111-111111111111").First(&player).Error)
	assert.Equal(t, FormatMembershipNumber(player.ID), player.MembershipNumber)

	var answer PlayerAnswer
	require.NoError(t, db.Where("player_id = ?", player.ID).First(&answer).Error)
	require.NotNil(t, answer.BooleanAnswer)
	assert.True(t, *answer.BooleanAnswer)
	assert.Equal(t, "asthma", answer.DetailText)
}

func TestImportPlayersIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	seedReferenceData(t, db)

	_, err := ImportPlayers(db, playersDoc(), PlayersSeedOptions{})
	require.NoError(t, err)

	result, err := ImportPlayers(db, playersDoc(), PlayersSeedOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.PlayersCreated)
	assert.Equal(t, 1, result.PlayersUpdated)
	assert.Equal(t, 1, result.AnswersUpdated)

	var count int64
	db.Model(&Player{}).Count(&count)
	assert.EqualValues(t, 1, count)
	db.Model(&PlayerAnswer{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestImportPlayersOnlyPlayersIgnoresAnswers(t *testing.T) {
	db := setupTestDB(t)
	seedReferenceData(t, db)

	result, err := ImportPlayers(db, playersDoc(), PlayersSeedOptions{OnlyPlayers: true})
	require.NoError(t, err)
	assert.Equal(t, 1, result.PlayersCreated)
	assert.Equal(t, 0, result.AnswersCreated)

	var count int64
	db.Model(&PlayerAnswer{}).Count(&count)
	assert.EqualValues(t, 0, count)
}

func TestImportPlayersDryRunWritesNothing(t *testing.T) {
	db := setupTestDB(t)
	seedReferenceData(t, db)

	result, err := ImportPlayers(db, playersDoc(), PlayersSeedOptions{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 1, result.PlayersCreated)

	var count int64
	db.Model(&Player{}).Count(&count)
	assert.EqualValues(t, 0, count)
}

func TestImportPlayersSkipsUnknownQuestion(t *testing.T) {
	db := setupTestDB(t)
	seedReferenceData(t, db)

	doc := playersDoc()
	doc.Answers[0].Question = "no_such_question"

	result, err := ImportPlayers(db, doc, PlayersSeedOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.AnswersCreated)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "unknown question")
}

func TestImportPlayersUnknownTypeFails(t *testing.T) {
	db := setupTestDB(t)
	seedReferenceData(t, db)

	doc := playersDoc()
	doc.Players[0].PlayerType = "Veteran"

	_, err := ImportPlayers(db, doc, PlayersSeedOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, seed.ErrUnresolved)
}

func TestImportPlayersPurgeRemovesStaleAnswers(t *testing.T) {
	db := setupTestDB(t)
	pt, _ := seedReferenceData(t, db)
	stray := DynamicQuestion{Code: "stray", Label: "Stray", QuestionType: QuestionText, Active: true}
	require.NoError(t, db.Create(&stray).Error)

	_, err := ImportPlayers(db, playersDoc(), PlayersSeedOptions{})
	require.NoError(t, err)

	var player Player
	require.NoError(t, db.Where("player_type_id = ?", pt.ID).First(&player).Error)
	require.NoError(t, db.Create(&PlayerAnswer{PlayerID: player.ID, QuestionID: stray.ID, TextAnswer: "old"}).Error)

	_, err = ImportPlayers(db, playersDoc(), PlayersSeedOptions{Purge: true})
	require.NoError(t, err)

	var count int64
	db.Model(&PlayerAnswer{}).Where("question_id = ?", stray.ID).Count(&count)
	assert.EqualValues(t, 0, count)
	db.Model(&PlayerAnswer{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestExportPlayersRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	seedReferenceData(t, db)

	_, err := ImportPlayers(db, playersDoc(), PlayersSeedOptions{})
	require.NoError(t, err)

	exported, err := ExportPlayers(db, PlayersSeedOptions{})
	require.NoError(t, err)
	require.Len(t, exported.Players, 1)
	assert.Equal(t, "1990-03-14", exported.Players[0].DateOfBirth)
	assert.Equal(t, "Senior", exported.Players[0].PlayerType)
	require.Len(t, exported.Answers, 1)
	assert.Equal(t, "medical_conditions", exported.Answers[0].Question)

	onlyPlayers, err := ExportPlayers(db, PlayersSeedOptions{OnlyPlayers: true})
	require.NoError(t, err)
	assert.Empty(t, onlyPlayers.Answers)

	db2 := setupTestDB(t)
	seedReferenceData(t, db2)
	result, err := ImportPlayers(db2, exported, PlayersSeedOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.PlayersCreated)
	assert.Equal(t, 1, result.AnswersCreated)
}

func TestBackfillMembershipNumbers(t *testing.T) {
	db := setupTestDB(t)
	pt, _ := seedReferenceData(t, db)

	player := Player{
		FirstName:    "Grace",
		LastName:     "Hopper",
		DateOfBirth:  time.Date(1985, 12, 9, 0, 0, 0, 0, time.UTC),
		PlayerTypeID: pt.ID,
	}
	require.NoError(t, db.Create(&player).Error)
	// simulate a legacy row without a number
	require.NoError(t, db.Model(&Player{}).Where("id = ?", player.ID).
		UpdateColumn("membership_number", "").Error)

	result, err := BackfillMembershipNumbers(db, BackfillOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)

	var reloaded Player
	require.NoError(t, db.First(&reloaded, player.ID).Error)
	assert.Equal(t, FormatMembershipNumber(player.ID), reloaded.MembershipNumber)

	// second run is a no-op
	result, err = BackfillMembershipNumbers(db, BackfillOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Updated)
}

func TestValidateDateOfBirth(t *testing.T) {
	today := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)
	assert.NoError(t, ValidateDateOfBirth(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), today))
	assert.Error(t, ValidateDateOfBirth(today, today))
	assert.Error(t, ValidateDateOfBirth(today.AddDate(0, 0, 1), today))
}
