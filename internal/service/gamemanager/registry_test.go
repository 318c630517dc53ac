package gamemanager

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizbattle/quizbattle-api/internal/domain/entity"
	apperrors "github.com/quizbattle/quizbattle-api/internal/pkg/errors"
)

var pinPattern = regexp.MustCompile(`^[A-Z0-9]{6}$`)

func TestRegistry_CreateRoom(t *testing.T) {
	// Arrange
	env := newTestEnv(t, 1, nil)

	// Act
	room, game, host, err := env.registry.CreateRoom(context.Background(), CreateGameParams{
		HostName:         "Ведущий",
		Topic:            "Кино",
		Difficulty:       entity.DifficultyEasy,
		QuestionsPerTeam: 3,
	})

	// Assert
	require.NoError(t, err)
	assert.Regexp(t, pinPattern, room.PIN())
	assert.Equal(t, room.PIN(), game.PIN)
	assert.Equal(t, entity.GameStatusWaiting, game.Status)
	assert.Equal(t, entity.PhaseGathering, game.Phase)
	assert.True(t, host.IsHost)
	assert.True(t, host.Active)

	adopted, ok := env.registry.Get(room.PIN())
	require.True(t, ok)
	assert.Same(t, room, adopted)
}

func TestRegistry_CreateRoom_DeckLayout(t *testing.T) {
	// Arrange
	env := newTestEnv(t, 5, nil)

	// Act
	_, game, _, err := env.registry.CreateRoom(context.Background(), CreateGameParams{
		HostName:         "Ведущий",
		Topic:            "Наука",
		Difficulty:       entity.DifficultyMedium,
		QuestionsPerTeam: 4,
	})
	require.NoError(t, err)

	// Assert: по 4 вопроса на команду, индексы 0..3 без дыр,
	// correct_option хранится с нуля
	questions, err := env.questions.GetByGameID(game.ID)
	require.NoError(t, err)
	require.Len(t, questions, 8)

	seen := map[string]map[int]bool{entity.TeamA: {}, entity.TeamB: {}}
	for _, q := range questions {
		require.Contains(t, seen, q.Team)
		assert.False(t, seen[q.Team][q.OrderIndex], "duplicate slot %s/%d", q.Team, q.OrderIndex)
		seen[q.Team][q.OrderIndex] = true
		assert.GreaterOrEqual(t, q.OrderIndex, 0)
		assert.Less(t, q.OrderIndex, 4)
		assert.GreaterOrEqual(t, q.CorrectOption, 0)
		assert.Less(t, q.CorrectOption, 4)
		assert.False(t, q.Answered)
	}
	assert.Len(t, seen[entity.TeamA], 4)
	assert.Len(t, seen[entity.TeamB], 4)
}

func TestRegistry_CreateRoom_NormalizesParams(t *testing.T) {
	// Arrange
	env := newTestEnv(t, 1, nil)

	// Act: неизвестная сложность и нулевой размер колоды
	_, game, _, err := env.registry.CreateRoom(context.Background(), CreateGameParams{
		HostName:   "Ведущий",
		Topic:      "Кино",
		Difficulty: "nightmare",
	})

	// Assert: подставлены значения по умолчанию
	require.NoError(t, err)
	assert.Equal(t, entity.DifficultyMedium, game.Difficulty)
	assert.Equal(t, DefaultQuestionsPerTeam, game.QuestionsPerTeam)
}

func TestRegistry_CreateRoom_UniquePINs(t *testing.T) {
	// Arrange
	env := newTestEnv(t, 1, nil)
	pins := make(map[string]bool)

	// Act & Assert
	for i := 0; i < 20; i++ {
		room, _, _, err := env.registry.CreateRoom(context.Background(), CreateGameParams{
			HostName: "Ведущий",
			Topic:    "Кино",
		})
		require.NoError(t, err)
		assert.False(t, pins[room.PIN()], "pin %s issued twice", room.PIN())
		pins[room.PIN()] = true
	}
	assert.Equal(t, 20, env.registry.Count())
}

func TestRegistry_GetOrAdopt(t *testing.T) {
	// Arrange: строка игры есть в БД, комнаты в реестре нет —
	// например, после перезапуска процесса
	env := newTestEnv(t, 1, nil)
	game := &entity.Game{
		PIN:              "ABC123",
		Topic:            "Кино",
		Difficulty:       entity.DifficultyMedium,
		QuestionsPerTeam: 5,
		Status:           entity.GameStatusInProgress,
		Phase:            entity.PhaseQuestion,
		CurrentTeam:      entity.TeamA,
	}
	require.NoError(t, env.games.Create(game))

	// Act
	room, err := env.registry.GetOrAdopt("ABC123")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "ABC123", room.PIN())
	assert.Equal(t, 1, env.registry.Count())

	// Повторный запрос возвращает ту же комнату
	again, err := env.registry.GetOrAdopt("ABC123")
	require.NoError(t, err)
	assert.Same(t, room, again)
}

func TestRegistry_GetOrAdopt_UnknownPIN(t *testing.T) {
	// Arrange
	env := newTestEnv(t, 1, nil)

	// Act
	_, err := env.registry.GetOrAdopt("NOPE00")

	// Assert
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRegistry_CleanupRetiresIdleFinishedRooms(t *testing.T) {
	// Arrange: завершенная игра, к комнате давно не обращались
	env := newTestEnv(t, 1, nil)
	game := &entity.Game{
		PIN:    "DONE42",
		Topic:  "Кино",
		Status: entity.GameStatusFinished,
		Phase:  entity.PhaseResults,
	}
	require.NoError(t, env.games.Create(game))
	room, err := env.registry.GetOrAdopt("DONE42")
	require.NoError(t, err)
	room.mu.Lock()
	room.lastTouched = time.Now().Add(-2 * time.Hour)
	room.mu.Unlock()

	// Act
	env.registry.cleanupOnce()

	// Assert
	assert.Equal(t, 0, env.registry.Count())
}

func TestRegistry_CleanupKeepsActiveRooms(t *testing.T) {
	// Arrange: игра не завершена, хоть комната и простаивает
	env := newTestEnv(t, 1, nil)
	room, _, _ := env.createRoom(t, []string{"Ведущий", "Аня"}, 2)
	room.mu.Lock()
	room.lastTouched = time.Now().Add(-2 * time.Hour)
	room.mu.Unlock()

	// Act
	env.registry.cleanupOnce()

	// Assert
	assert.Equal(t, 1, env.registry.Count())
}

func TestRegistry_Shutdown(t *testing.T) {
	// Arrange
	env := newTestEnv(t, 1, nil)
	env.createRoom(t, []string{"Ведущий", "Аня"}, 2)
	env.createRoom(t, []string{"Кира", "Петр"}, 2)
	require.Equal(t, 2, env.registry.Count())

	// Act
	env.registry.Shutdown()

	// Assert
	assert.Equal(t, 0, env.registry.Count())
}
