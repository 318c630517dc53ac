package gamemanager

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizbattle/quizbattle-api/internal/domain/entity"
)

func projectorGame(phase string) *entity.Game {
	return &entity.Game{
		ID:               1,
		PIN:              "ABC123",
		Topic:            "Кино",
		Difficulty:       entity.DifficultyMedium,
		QuestionsPerTeam: 5,
		Status:           entity.GameStatusInProgress,
		Phase:            phase,
		CurrentTeam:      entity.TeamA,
	}
}

func projectorQuestion() *entity.Question {
	return &entity.Question{
		ID:            10,
		GameID:        1,
		Team:          entity.TeamA,
		OrderIndex:    0,
		Text:          "Столица Франции?",
		Option1:       "Париж",
		Option2:       "Лион",
		Option3:       "Марсель",
		Option4:       "Ницца",
		CorrectOption: 0,
	}
}

func TestProjector_NeverLeaksCorrectOption(t *testing.T) {
	// Arrange
	projector := NewProjector(nil)
	game := projectorGame(entity.PhaseQuestion)
	started := time.Now()
	game.QuestionStartedAt = &started

	snap := projector.Snapshot(ProjectionInput{
		Game:            game,
		CurrentQuestion: projectorQuestion(),
		Stats:           newTeamStats(),
		Now:             time.Now(),
	})

	// Act
	raw, err := json.Marshal(snap)
	require.NoError(t, err)

	// Assert: в сериализованном снапшоте нет ни номера, ни текстового
	// ключа правильного варианта
	assert.NotContains(t, string(raw), "correct_option")
	require.NotNil(t, snap.CurrentQuestion)
	assert.Len(t, snap.CurrentQuestion.Options, 4)
}

func TestProjector_QuestionHiddenOutsideQuestionPhase(t *testing.T) {
	testCases := []struct {
		name  string
		phase string
	}{
		{"отсчет", entity.PhaseCountdown},
		{"пауза", entity.PhasePaused},
		{"результаты", entity.PhaseResults},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			projector := NewProjector(nil)
			snap := projector.Snapshot(ProjectionInput{
				Game:            projectorGame(tc.phase),
				CurrentQuestion: projectorQuestion(),
				Stats:           newTeamStats(),
				Now:             time.Now(),
			})
			assert.Nil(t, snap.CurrentQuestion)
		})
	}
}

func TestProjector_QuestionSecondsLeft(t *testing.T) {
	// Arrange: medium дает 30 секунд, прошло 12
	projector := NewProjector(nil)
	game := projectorGame(entity.PhaseQuestion)
	now := time.Now()
	started := now.Add(-12 * time.Second)
	game.QuestionStartedAt = &started

	// Act
	snap := projector.Snapshot(ProjectionInput{
		Game:            game,
		CurrentQuestion: projectorQuestion(),
		Stats:           newTeamStats(),
		Now:             now,
	})

	// Assert
	require.NotNil(t, snap.QuestionSecondsLeft)
	assert.Equal(t, 18, *snap.QuestionSecondsLeft)
}

func TestProjector_QuestionSecondsLeftClampedToZero(t *testing.T) {
	// Arrange: окно давно истекло, таймаут еще не зафиксирован
	projector := NewProjector(nil)
	game := projectorGame(entity.PhaseQuestion)
	now := time.Now()
	started := now.Add(-45 * time.Second)
	game.QuestionStartedAt = &started

	// Act
	snap := projector.Snapshot(ProjectionInput{
		Game:  game,
		Stats: newTeamStats(),
		Now:   now,
	})

	// Assert
	require.NotNil(t, snap.QuestionSecondsLeft)
	assert.Equal(t, 0, *snap.QuestionSecondsLeft)
}

func TestProjector_PausedRemainingSeconds(t *testing.T) {
	// Arrange
	projector := NewProjector(nil)
	game := projectorGame(entity.PhasePaused)

	// Act
	snap := projector.Snapshot(ProjectionInput{
		Game:            game,
		Stats:           newTeamStats(),
		PausedRemaining: 8 * time.Second,
		Now:             time.Now(),
	})

	// Assert
	require.NotNil(t, snap.QuestionSecondsLeft)
	assert.Equal(t, 8, *snap.QuestionSecondsLeft)
}

func TestProjector_FiltersInactivePlayers(t *testing.T) {
	// Arrange
	projector := NewProjector(nil)
	players := []*entity.Player{
		{ID: 1, Name: "Аня", Team: entity.TeamA, Active: true, IsCaptain: true},
		{ID: 2, Name: "Борис", Team: entity.TeamB, Active: false},
		{ID: 3, Name: "Вера", Team: entity.TeamB, Active: true},
	}

	// Act
	snap := projector.Snapshot(ProjectionInput{
		Game:    projectorGame(entity.PhaseQuestion),
		Players: players,
		Stats:   newTeamStats(),
		Now:     time.Now(),
	})

	// Assert
	require.Len(t, snap.Players, 2)
	assert.Equal(t, "Аня", snap.Players[0].Name)
	assert.Equal(t, "Вера", snap.Players[1].Name)
}

func TestProjector_WinnerOnlyWhenFinished(t *testing.T) {
	// Arrange
	projector := NewProjector(nil)
	game := projectorGame(entity.PhaseResults)
	game.Status = entity.GameStatusFinished
	game.CurrentTeam = ""
	game.ScoreA = 7
	game.ScoreB = 9

	// Act
	snap := projector.Snapshot(ProjectionInput{
		Game:  game,
		Stats: newTeamStats(),
		Now:   time.Now(),
	})

	// Assert
	require.NotNil(t, snap.Winner)
	assert.Equal(t, entity.TeamB, *snap.Winner)
	assert.Nil(t, snap.QuestionSecondsLeft)
}

func TestVotePercentages(t *testing.T) {
	testCases := []struct {
		name     string
		votes    map[uint]string
		expected map[string]int
	}{
		{"нет голосов", map[uint]string{}, map[string]int{}},
		{"единогласно", map[uint]string{1: "2"}, map[string]int{"2": 100}},
		{
			"усечение до целых",
			map[uint]string{1: "1", 2: "1", 3: "4"},
			map[string]int{"1": 66, "4": 33},
		},
		{
			"поровну",
			map[uint]string{1: "1", 2: "2"},
			map[string]int{"1": 50, "2": 50},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, votePercentages(tc.votes))
		})
	}
}
