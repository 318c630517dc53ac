package gamemanager

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quizbattle/quizbattle-api/internal/domain/entity"
	apperrors "github.com/quizbattle/quizbattle-api/internal/pkg/errors"
	"github.com/quizbattle/quizbattle-api/internal/service/oracle"
)

// Фейковые репозитории имитируют семантику Postgres-реализаций: возвращают
// копии строк, сортируют игроков по joined_at и ловят занятый PIN
// среди незавершенных игр.

type fakeGameRepo struct {
	mu    sync.Mutex
	seq   uint
	games map[uint]entity.Game
}

func newFakeGameRepo() *fakeGameRepo {
	return &fakeGameRepo{games: make(map[uint]entity.Game)}
}

func (r *fakeGameRepo) Create(game *entity.Game) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, g := range r.games {
		if g.PIN == game.PIN && g.Status != entity.GameStatusFinished {
			return fmt.Errorf("%w: pin %s already in use", apperrors.ErrConflict, game.PIN)
		}
	}
	r.seq++
	game.ID = r.seq
	game.CreatedAt = time.Now()
	r.games[game.ID] = *game
	return nil
}

func (r *fakeGameRepo) GetByID(id uint) (*entity.Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.games[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	out := g
	return &out, nil
}

func (r *fakeGameRepo) GetByPIN(pin string) (*entity.Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var found *entity.Game
	for _, g := range r.games {
		if g.PIN != pin || g.Status == entity.GameStatusFinished {
			continue
		}
		if found == nil || g.ID > found.ID {
			out := g
			found = &out
		}
	}
	if found == nil {
		for _, g := range r.games {
			if g.PIN != pin {
				continue
			}
			if found == nil || g.ID > found.ID {
				out := g
				found = &out
			}
		}
	}
	if found == nil {
		return nil, apperrors.ErrNotFound
	}
	return found, nil
}

func (r *fakeGameRepo) Update(game *entity.Game) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.games[game.ID]; !ok {
		return apperrors.ErrNotFound
	}
	game.UpdatedAt = time.Now()
	r.games[game.ID] = *game
	return nil
}

func (r *fakeGameRepo) Delete(id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.games, id)
	return nil
}

func (r *fakeGameRepo) PINInUse(pin string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, g := range r.games {
		if g.PIN == pin && g.Status != entity.GameStatusFinished {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeGameRepo) GetByUserID(userID uint) ([]entity.Game, error) {
	return nil, nil
}

type fakePlayerRepo struct {
	mu      sync.Mutex
	seq     uint
	players map[uint]entity.Player
}

func newFakePlayerRepo() *fakePlayerRepo {
	return &fakePlayerRepo{players: make(map[uint]entity.Player)}
}

func (r *fakePlayerRepo) Create(player *entity.Player) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	player.ID = r.seq
	r.players[player.ID] = *player
	return nil
}

func (r *fakePlayerRepo) GetByID(id uint) (*entity.Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	out := p
	return &out, nil
}

func (r *fakePlayerRepo) GetByGameID(gameID uint) ([]*entity.Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entity.Player, 0)
	for _, p := range r.players {
		if p.GameID == gameID {
			cp := p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *fakePlayerRepo) Update(player *entity.Player) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.players[player.ID]; !ok {
		return apperrors.ErrNotFound
	}
	r.players[player.ID] = *player
	return nil
}

func (r *fakePlayerRepo) UpdateBatch(players []*entity.Player) error {
	for _, p := range players {
		if err := r.Update(p); err != nil {
			return err
		}
	}
	return nil
}

type fakeQuestionRepo struct {
	mu        sync.Mutex
	seq       uint
	questions map[uint]entity.Question
}

func newFakeQuestionRepo() *fakeQuestionRepo {
	return &fakeQuestionRepo{questions: make(map[uint]entity.Question)}
}

func (r *fakeQuestionRepo) CreateBatch(questions []*entity.Question) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, q := range questions {
		r.seq++
		q.ID = r.seq
		r.questions[q.ID] = *q
	}
	return nil
}

func (r *fakeQuestionRepo) GetByID(id uint) (*entity.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.questions[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	out := q
	return &out, nil
}

func (r *fakeQuestionRepo) GetByGameID(gameID uint) ([]entity.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]entity.Question, 0)
	for _, q := range r.questions {
		if q.GameID == gameID {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Team != out[j].Team {
			return out[i].Team < out[j].Team
		}
		return out[i].OrderIndex < out[j].OrderIndex
	})
	return out, nil
}

func (r *fakeQuestionRepo) GetByGameTeamIndex(gameID uint, team string, orderIndex int) (*entity.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, q := range r.questions {
		if q.GameID == gameID && q.Team == team && q.OrderIndex == orderIndex {
			out := q
			return &out, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *fakeQuestionRepo) Update(question *entity.Question) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.questions[question.ID]; !ok {
		return apperrors.ErrNotFound
	}
	r.questions[question.ID] = *question
	return nil
}

func (r *fakeQuestionRepo) DeleteByGameID(gameID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, q := range r.questions {
		if q.GameID == gameID {
			delete(r.questions, id)
		}
	}
	return nil
}

// fakeBroadcaster записывает рассылки в порядке отправки.
type broadcastEvent struct {
	kind   string // "state" или "answer_result"
	state  *Snapshot
	result *AnswerResult
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []broadcastEvent
}

func (b *fakeBroadcaster) BroadcastState(pin string, snapshot *Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, broadcastEvent{kind: "state", state: snapshot})
}

func (b *fakeBroadcaster) BroadcastAnswerResult(pin string, result *AnswerResult) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, broadcastEvent{kind: "answer_result", result: result})
}

func (b *fakeBroadcaster) all() []broadcastEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]broadcastEvent, len(b.events))
	copy(out, b.events)
	return out
}

func (b *fakeBroadcaster) results() []*AnswerResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*AnswerResult, 0)
	for _, ev := range b.events {
		if ev.kind == "answer_result" {
			out = append(out, ev.result)
		}
	}
	return out
}

func (b *fakeBroadcaster) lastState() *Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.events) - 1; i >= 0; i-- {
		if b.events[i].kind == "state" {
			return b.events[i].state
		}
	}
	return nil
}

// stubSource отдает детерминированные вопросы и запоминает вызовы.
type sourceCall struct {
	topic      string
	difficulty string
	count      int
}

type stubSource struct {
	mu    sync.Mutex
	calls []sourceCall
}

func (s *stubSource) Fetch(ctx context.Context, topic, difficulty string, count int) ([]oracle.GeneratedQuestion, error) {
	s.mu.Lock()
	s.calls = append(s.calls, sourceCall{topic: topic, difficulty: difficulty, count: count})
	s.mu.Unlock()

	out := make([]oracle.GeneratedQuestion, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, oracle.GeneratedQuestion{
			Text:          fmt.Sprintf("Вопрос %d по теме %q", i+1, topic),
			Options:       []string{"Вариант 1", "Вариант 2", "Вариант 3", "Вариант 4"},
			CorrectOption: i%4 + 1,
		})
	}
	return out, nil
}

func (s *stubSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// testEnv собирает движок на фейках с быстрым отсчетом и фиксированным зерном.
type testEnv struct {
	games     *fakeGameRepo
	players   *fakePlayerRepo
	questions *fakeQuestionRepo
	hub       *fakeBroadcaster
	source    *stubSource
	registry  *Registry
}

func newTestEnv(t *testing.T, seed int64, timeouts *TimeoutConfig) *testEnv {
	t.Helper()

	env := &testEnv{
		games:     newFakeGameRepo(),
		players:   newFakePlayerRepo(),
		questions: newFakeQuestionRepo(),
		hub:       &fakeBroadcaster{},
		source:    &stubSource{},
	}
	cfg := &Config{
		CountdownFrom:     3,
		CountdownTick:     time.Millisecond,
		FastAnswerWindow:  8 * time.Second,
		QuickAnswerWindow: 15 * time.Second,
		MinResumeWindow:   time.Millisecond,
		MaxPINAttempts:    50,
		RetireAfter:       time.Hour,
		CleanupInterval:   time.Hour,
	}
	deps := &Dependencies{
		GameRepo:     env.games,
		PlayerRepo:   env.players,
		QuestionRepo: env.questions,
		Source:       env.source,
		Broadcaster:  env.hub,
		Config:       cfg,
		Rand:         rand.New(rand.NewSource(seed)),
	}
	env.registry = NewRegistry(context.Background(), deps, timeouts)
	return env
}

// createRoom создает комнату с ведущим и присоединяет остальных игроков.
func (env *testEnv) createRoom(t *testing.T, names []string, perTeam int) (*Room, *entity.Game, []*entity.Player) {
	t.Helper()
	require.NotEmpty(t, names)

	room, game, host, err := env.registry.CreateRoom(context.Background(), CreateGameParams{
		HostName:         names[0],
		Topic:            "История России",
		Difficulty:       entity.DifficultyMedium,
		QuestionsPerTeam: perTeam,
	})
	require.NoError(t, err)

	players := []*entity.Player{host}
	for _, name := range names[1:] {
		p, err := room.Join(name, nil)
		require.NoError(t, err)
		players = append(players, p)
	}
	return room, game, players
}

// startGame создает комнату и доводит ее до первого вопроса.
func (env *testEnv) startGame(t *testing.T, names []string, perTeam int) (*Room, *entity.Game) {
	t.Helper()

	room, game, players := env.createRoom(t, names, perTeam)
	_, err := room.Start(players[0].ID)
	require.NoError(t, err)
	return room, env.mustGame(t, game.ID)
}

func (env *testEnv) mustGame(t *testing.T, id uint) *entity.Game {
	t.Helper()
	game, err := env.games.GetByID(id)
	require.NoError(t, err)
	return game
}

// captain возвращает капитана команды.
func (env *testEnv) captain(t *testing.T, gameID uint, team string) *entity.Player {
	t.Helper()
	players, err := env.players.GetByGameID(gameID)
	require.NoError(t, err)
	for _, p := range players {
		if p.Active && p.Team == team && p.IsCaptain {
			return p
		}
	}
	t.Fatalf("captain of team %s not found in game %d", team, gameID)
	return nil
}

// mustHost возвращает ведущего комнаты.
func (env *testEnv) mustHost(t *testing.T, gameID uint) *entity.Player {
	t.Helper()
	players, err := env.players.GetByGameID(gameID)
	require.NoError(t, err)
	for _, p := range players {
		if p.IsHost {
			return p
		}
	}
	t.Fatalf("host not found in game %d", gameID)
	return nil
}

// teamMembers возвращает активных игроков команды в порядке joined_at.
func (env *testEnv) teamMembers(t *testing.T, gameID uint, team string) []*entity.Player {
	t.Helper()
	players, err := env.players.GetByGameID(gameID)
	require.NoError(t, err)
	out := make([]*entity.Player, 0)
	for _, p := range players {
		if p.Active && p.Team == team {
			out = append(out, p)
		}
	}
	return out
}

// currentQuestion возвращает вопрос, на который сейчас отвечают.
func (env *testEnv) currentQuestion(t *testing.T, gameID uint) *entity.Question {
	t.Helper()
	game := env.mustGame(t, gameID)
	q, err := env.questions.GetByGameTeamIndex(game.ID, game.CurrentTeam, game.CurrentIndex(game.CurrentTeam))
	require.NoError(t, err)
	return q
}

// answerCurrent фиксирует ответ капитана текущей команды: верный или заведомо неверный.
func (env *testEnv) answerCurrent(t *testing.T, room *Room, gameID uint, correct bool) {
	t.Helper()
	game := env.mustGame(t, gameID)
	captain := env.captain(t, gameID, game.CurrentTeam)
	question := env.currentQuestion(t, gameID)

	option := question.CorrectOption + 1
	if !correct {
		option = option%4 + 1
	}
	require.NoError(t, room.Answer(captain.ID, option))
}

// backdateQuestion сдвигает question_started_at в прошлое, имитируя
// прошедшее с показа вопроса время.
func (env *testEnv) backdateQuestion(t *testing.T, gameID uint, ago time.Duration) {
	t.Helper()
	game := env.mustGame(t, gameID)
	require.NotNil(t, game.QuestionStartedAt)
	started := time.Now().Add(-ago)
	game.QuestionStartedAt = &started
	require.NoError(t, env.games.Update(game))
}
