package gamemanager

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/quizbattle/quizbattle-api/internal/domain/entity"
	apperrors "github.com/quizbattle/quizbattle-api/internal/pkg/errors"
)

// Room — актор одной игровой комнаты. Все команды, включая синтетический
// таймаут, проходят через один мьютекс, поэтому внутри комнаты состояние
// меняется строго последовательно. Персистентные строки перечитываются из
// репозиториев на каждой команде; здесь живет только временное состояние:
// голоса, счетчики команд, остаток паузы и шаг обратного отсчета.
type Room struct {
	pin    string
	gameID uint

	mu sync.Mutex

	cfg       *Config
	timeouts  *TimeoutConfig
	deps      *Dependencies
	projector *Projector
	rnd       *lockedRand

	ctx  context.Context
	stop context.CancelFunc

	timer *DeadlineTimer

	votes            map[uint]string
	stats            map[string]*TeamStats
	pausedElapsed    time.Duration
	pausedRemaining  time.Duration
	countdownSeconds int

	lastTouched time.Time
}

func newRoom(parent context.Context, pin string, gameID uint, cfg *Config, timeouts *TimeoutConfig, deps *Dependencies, rnd *lockedRand) *Room {
	ctx, stop := context.WithCancel(parent)
	return &Room{
		pin:         pin,
		gameID:      gameID,
		cfg:         cfg,
		timeouts:    timeouts,
		deps:        deps,
		projector:   NewProjector(timeouts),
		rnd:         rnd,
		ctx:         ctx,
		stop:        stop,
		timer:       &DeadlineTimer{},
		votes:       make(map[uint]string),
		stats:       newTeamStats(),
		lastTouched: time.Now(),
	}
}

// PIN возвращает код комнаты.
func (r *Room) PIN() string {
	return r.pin
}

// Join добавляет игрока в комнату, пока игра не началась.
// Повторный вход отклоняется сначала по user_id, затем по имени
// среди активных игроков.
func (r *Room) Join(name string, userID *uint) (*entity.Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touch()

	game, err := r.game()
	if err != nil {
		return nil, err
	}
	if !game.IsWaiting() {
		return nil, fmt.Errorf("%w: game already started", apperrors.ErrConflict)
	}

	players, err := r.deps.PlayerRepo.GetByGameID(game.ID)
	if err != nil {
		return nil, err
	}
	if userID != nil {
		for _, p := range players {
			if p.Active && p.UserID != nil && *p.UserID == *userID {
				return nil, fmt.Errorf("%w: you are already in this room", apperrors.ErrConflict)
			}
		}
	}
	for _, p := range players {
		if p.Active && p.Name == name {
			return nil, fmt.Errorf("%w: name %q is already taken in this room", apperrors.ErrConflict, name)
		}
	}

	player := &entity.Player{
		GameID:   game.ID,
		UserID:   userID,
		Name:     name,
		IsHost:   false,
		Active:   true,
		JoinedAt: time.Now(),
	}
	if err := r.deps.PlayerRepo.Create(player); err != nil {
		return nil, err
	}

	log.Printf("[Room %s] Player %q joined (id=%d)", r.pin, name, player.ID)
	r.publish(game)
	return player, nil
}

// Start переводит игру из ожидания в обратный отсчет и далее к первому
// вопросу. Мьютекс комнаты удерживается на весь отсчет: команды,
// пришедшие в это время, применятся уже после перехода к фазе question.
func (r *Room) Start(hostPlayerID uint) (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touch()

	game, err := r.game()
	if err != nil {
		return nil, err
	}

	host, err := r.deps.PlayerRepo.GetByID(hostPlayerID)
	if err != nil || host.GameID != game.ID || !host.IsHost || !host.Active {
		return nil, fmt.Errorf("%w: only the host can start the game", apperrors.ErrForbidden)
	}
	if !game.IsWaiting() {
		return nil, fmt.Errorf("%w: game already started", apperrors.ErrConflict)
	}

	players, err := r.deps.PlayerRepo.GetByGameID(game.ID)
	if err != nil {
		return nil, err
	}
	active := activeOnly(players)
	if len(active) < 2 {
		return nil, fmt.Errorf("%w: at least one player per team is required", apperrors.ErrValidation)
	}

	if err := r.assignTeamsAndCaptains(active); err != nil {
		return nil, err
	}
	countA, countB := 0, 0
	for _, p := range active {
		if p.Team == entity.TeamA {
			countA++
		} else if p.Team == entity.TeamB {
			countB++
		}
	}
	if countA == 0 || countB == 0 {
		return nil, fmt.Errorf("%w: at least one player per team is required", apperrors.ErrValidation)
	}

	game.Status = entity.GameStatusInProgress
	game.Phase = entity.PhaseCountdown
	game.CurrentTeam = entity.TeamA
	game.CurrentIndexA = 0
	game.CurrentIndexB = 0
	if err := r.deps.GameRepo.Update(game); err != nil {
		return nil, err
	}
	r.pausedElapsed = 0
	r.pausedRemaining = 0

	log.Printf("[Room %s] Game started: %d players, %d questions per team", r.pin, len(active), game.QuestionsPerTeam)

	for sec := r.cfg.CountdownFrom; sec >= 1; sec-- {
		r.countdownSeconds = sec
		r.publish(game)
		time.Sleep(r.cfg.CountdownTick)
	}
	r.countdownSeconds = 0

	now := time.Now()
	game.Phase = entity.PhaseQuestion
	game.QuestionStartedAt = &now
	if err := r.deps.GameRepo.Update(game); err != nil {
		return nil, err
	}
	r.votes = make(map[uint]string)

	r.publish(game)
	r.armQuestionTimer(game, r.baseTimeout(game.Difficulty))
	return r.buildSnapshot(game)
}

// Snapshot строит проекцию текущего состояния комнаты.
func (r *Room) Snapshot() (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	game, err := r.game()
	if err != nil {
		return nil, err
	}
	return r.buildSnapshot(game)
}

// assignTeamsAndCaptains раздает команды по четным и нечетным позициям
// перемешанного списка; капитаном каждой команды становится раньше всех
// вошедший игрок (players упорядочены по joined_at).
func (r *Room) assignTeamsAndCaptains(players []*entity.Player) error {
	shuffled := make([]*entity.Player, len(players))
	copy(shuffled, players)
	r.rnd.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	for idx, p := range shuffled {
		if idx%2 == 0 {
			p.Team = entity.TeamA
		} else {
			p.Team = entity.TeamB
		}
		p.IsCaptain = false
	}
	for _, team := range []string{entity.TeamA, entity.TeamB} {
		for _, p := range players {
			if p.Team == team {
				p.IsCaptain = true
				break
			}
		}
	}
	return r.deps.PlayerRepo.UpdateBatch(players)
}

// game перечитывает строку игры. Вызывается под мьютексом комнаты.
func (r *Room) game() (*entity.Game, error) {
	return r.deps.GameRepo.GetByID(r.gameID)
}

func (r *Room) baseTimeout(difficulty string) time.Duration {
	return r.timeouts.BaseTimeout(difficulty)
}

// armQuestionTimer взводит таймер на конкретный вопрос. Срабатывание
// привязано к паре (команда, индекс): опоздавший таймер, переживший
// смену вопроса, не тронет чужой вопрос.
func (r *Room) armQuestionTimer(game *entity.Game, d time.Duration) {
	team := game.CurrentTeam
	index := game.CurrentIndex(team)
	if d < r.cfg.MinResumeWindow {
		d = r.cfg.MinResumeWindow
	}
	r.timer.Arm(r.ctx, d, func() {
		r.handleTimeout(team, index)
	})
}

// buildSnapshot собирает вход проекции: перечитывает игроков и текущий
// вопрос, добавляет временное состояние комнаты.
func (r *Room) buildSnapshot(game *entity.Game) (*Snapshot, error) {
	players, err := r.deps.PlayerRepo.GetByGameID(game.ID)
	if err != nil {
		return nil, err
	}

	var current *entity.Question
	if game.IsInProgress() && game.Phase == entity.PhaseQuestion && game.CurrentTeam != "" {
		q, err := r.deps.QuestionRepo.GetByGameTeamIndex(game.ID, game.CurrentTeam, game.CurrentIndex(game.CurrentTeam))
		if err == nil {
			current = q
		} else if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
	}

	return r.projector.Snapshot(ProjectionInput{
		Game:             game,
		Players:          players,
		CurrentQuestion:  current,
		Votes:            r.votes,
		Stats:            r.stats,
		CountdownSeconds: r.countdownSeconds,
		PausedRemaining:  r.pausedRemaining,
		Now:              time.Now(),
	}), nil
}

// publish строит и рассылает снапшот; ошибки построения не прерывают
// команду, а только логируются.
func (r *Room) publish(game *entity.Game) {
	snap, err := r.buildSnapshot(game)
	if err != nil {
		log.Printf("[Room %s] Failed to build state snapshot: %v", r.pin, err)
		return
	}
	if r.deps.Broadcaster != nil {
		r.deps.Broadcaster.BroadcastState(r.pin, snap)
	}
}

func (r *Room) touch() {
	r.lastTouched = time.Now()
}

// idleSince возвращает момент последней команды комнаты.
func (r *Room) idleSince() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastTouched
}

// retire останавливает таймеры комнаты при удалении из реестра.
func (r *Room) retire() {
	r.timer.Cancel()
	r.stop()
}

func activeOnly(players []*entity.Player) []*entity.Player {
	out := make([]*entity.Player, 0, len(players))
	for _, p := range players {
		if p.Active {
			out = append(out, p)
		}
	}
	return out
}
