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

// Registry хранит живые комнаты по PIN. Чтения частые, структурные
// изменения редкие: создание комнаты и уборка завершенных.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	cfg      *Config
	timeouts *TimeoutConfig
	deps     *Dependencies
	rnd      *lockedRand
	ctx      context.Context
}

// NewRegistry создает реестр комнат. ctx ограничивает жизнь всех таймеров
// комнат; nil-конфиги заменяются значениями по умолчанию.
func NewRegistry(ctx context.Context, deps *Dependencies, timeouts *TimeoutConfig) *Registry {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := deps.Config
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if timeouts == nil {
		timeouts = DefaultTimeoutConfig()
	}
	return &Registry{
		rooms:    make(map[string]*Room),
		cfg:      cfg,
		timeouts: timeouts,
		deps:     deps,
		rnd:      newLockedRand(deps.Rand),
		ctx:      ctx,
	}
}

// CreateGameParams — параметры создания комнаты.
type CreateGameParams struct {
	HostName         string
	Topic            string
	Difficulty       string
	QuestionsPerTeam int
	HostUserID       *uint
}

// CreateRoom создает игру: подбирает свободный PIN, пишет строку игры,
// ведущего и колоду, регистрирует комнату. PIN уникален среди незавершенных
// игр; гонку на вставке ловит частичный уникальный индекс, после чего
// подбор повторяется.
func (reg *Registry) CreateRoom(ctx context.Context, params CreateGameParams) (*Room, *entity.Game, *entity.Player, error) {
	difficulty := params.Difficulty
	switch difficulty {
	case entity.DifficultyEasy, entity.DifficultyMedium, entity.DifficultyHard:
	default:
		difficulty = entity.DifficultyMedium
	}
	perTeam := params.QuestionsPerTeam
	if perTeam <= 0 {
		perTeam = DefaultQuestionsPerTeam
	}

	for attempt := 0; attempt < reg.cfg.MaxPINAttempts; attempt++ {
		pin := reg.randomPIN()
		inUse, err := reg.deps.GameRepo.PINInUse(pin)
		if err != nil {
			return nil, nil, nil, err
		}
		if inUse {
			continue
		}

		game := &entity.Game{
			PIN:              pin,
			Topic:            params.Topic,
			Difficulty:       difficulty,
			QuestionsPerTeam: perTeam,
			Status:           entity.GameStatusWaiting,
			Phase:            entity.PhaseGathering,
		}
		if err := reg.deps.GameRepo.Create(game); err != nil {
			if errors.Is(err, apperrors.ErrConflict) {
				continue
			}
			return nil, nil, nil, err
		}

		host := &entity.Player{
			GameID:   game.ID,
			UserID:   params.HostUserID,
			Name:     params.HostName,
			IsHost:   true,
			Active:   true,
			JoinedAt: time.Now(),
		}
		if err := reg.deps.PlayerRepo.Create(host); err != nil {
			reg.dropGame(game.ID)
			return nil, nil, nil, err
		}

		questions, err := buildDeck(ctx, reg.deps.Source, reg.rnd, game.ID, params.Topic, difficulty, perTeam)
		if err != nil {
			reg.dropGame(game.ID)
			return nil, nil, nil, err
		}
		if err := reg.deps.QuestionRepo.CreateBatch(questions); err != nil {
			reg.dropGame(game.ID)
			return nil, nil, nil, err
		}

		room := newRoom(reg.ctx, pin, game.ID, reg.cfg, reg.timeouts, reg.deps, reg.rnd)
		reg.mu.Lock()
		reg.rooms[pin] = room
		reg.mu.Unlock()

		log.Printf("[Registry] Room %s created: topic=%q difficulty=%s questions=%dx2", pin, params.Topic, difficulty, perTeam)
		return room, game, host, nil
	}

	return nil, nil, nil, fmt.Errorf("%w: could not allocate a unique pin", apperrors.ErrConflict)
}

// Get возвращает живую комнату по PIN.
func (reg *Registry) Get(pin string) (*Room, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	room, ok := reg.rooms[pin]
	return room, ok
}

// GetOrAdopt возвращает комнату по PIN, при необходимости поднимая ее из
// строк БД — например, после перезапуска процесса. Временное состояние
// (голоса, счетчики, таймер вопроса) при этом не восстанавливается.
func (reg *Registry) GetOrAdopt(pin string) (*Room, error) {
	if room, ok := reg.Get(pin); ok {
		return room, nil
	}

	game, err := reg.deps.GameRepo.GetByPIN(pin)
	if err != nil {
		return nil, err
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	if room, ok := reg.rooms[pin]; ok {
		return room, nil
	}
	room := newRoom(reg.ctx, pin, game.ID, reg.cfg, reg.timeouts, reg.deps, reg.rnd)
	reg.rooms[pin] = room
	log.Printf("[Registry] Room %s adopted from storage (game #%d, status=%s)", pin, game.ID, game.Status)
	return room, nil
}

// Count возвращает число живых комнат.
func (reg *Registry) Count() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}

// StartCleanup запускает фоновую уборку: комнаты завершенных игр, к которым
// дольше RetireAfter никто не обращался, снимаются с реестра.
func (reg *Registry) StartCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(reg.cfg.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				reg.cleanupOnce()
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (reg *Registry) cleanupOnce() {
	cutoff := time.Now().Add(-reg.cfg.RetireAfter)

	reg.mu.RLock()
	candidates := make([]*Room, 0)
	for _, room := range reg.rooms {
		candidates = append(candidates, room)
	}
	reg.mu.RUnlock()

	for _, room := range candidates {
		if room.idleSince().After(cutoff) {
			continue
		}
		game, err := reg.deps.GameRepo.GetByID(room.gameID)
		if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			continue
		}
		if err == nil && !game.IsFinished() {
			continue
		}
		reg.mu.Lock()
		delete(reg.rooms, room.pin)
		reg.mu.Unlock()
		room.retire()
		log.Printf("[Registry] Room %s retired", room.pin)
	}
}

// Shutdown снимает все комнаты и их таймеры; вызывается при остановке сервера.
func (reg *Registry) Shutdown() {
	reg.mu.Lock()
	rooms := reg.rooms
	reg.rooms = make(map[string]*Room)
	reg.mu.Unlock()

	for _, room := range rooms {
		room.retire()
	}
	if len(rooms) > 0 {
		log.Printf("[Registry] Shut down %d rooms", len(rooms))
	}
}

func (reg *Registry) randomPIN() string {
	b := make([]byte, PINLength)
	for i := range b {
		b[i] = pinAlphabet[reg.rnd.Intn(len(pinAlphabet))]
	}
	return string(b)
}

// dropGame подчищает строки игры, если создание комнаты оборвалось на полпути.
func (reg *Registry) dropGame(gameID uint) {
	if err := reg.deps.GameRepo.Delete(gameID); err != nil {
		log.Printf("[Registry] Failed to clean up game #%d after aborted create: %v", gameID, err)
	}
}
