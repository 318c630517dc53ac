package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/quizbattle/quizbattle-api/internal/pkg/errors"
	"github.com/quizbattle/quizbattle-api/internal/service/gamemanager"
	"github.com/quizbattle/quizbattle-api/internal/websocket"
	"github.com/quizbattle/quizbattle-api/pkg/auth"
)

// Допустимые размеры колоды на команду
var allowedQuestionsPerTeam = map[int]bool{5: true, 6: true, 7: true}

// GameService — фасад игрового движка для HTTP-обработчиков и сокетов.
// Проверяет вход, находит комнату по PIN и делегирует команду ее актору;
// выпускает игровые токены для подключения по сокету.
type GameService struct {
	registry *gamemanager.Registry
	jwt      *auth.JWTService
}

// NewGameService создает новый игровой сервис.
func NewGameService(registry *gamemanager.Registry, jwt *auth.JWTService) *GameService {
	return &GameService{
		registry: registry,
		jwt:      jwt,
	}
}

// CreateGameInput — параметры создания комнаты.
type CreateGameInput struct {
	HostName         string
	Topic            string
	Difficulty       string
	QuestionsPerTeam int
	UserID           *uint
}

// CreatedGame — результат создания комнаты.
type CreatedGame struct {
	PIN          string                `json:"pin"`
	HostPlayerID uint                  `json:"host_player_id"`
	PlayerToken  string                `json:"player_token"`
	State        *gamemanager.Snapshot `json:"state"`
}

// JoinedGame — результат входа в комнату.
type JoinedGame struct {
	PlayerID    uint                  `json:"player_id"`
	PlayerToken string                `json:"player_token"`
	State       *gamemanager.Snapshot `json:"state"`
}

// CreateGame создает комнату с колодой вопросов и возвращает игровой токен
// ведущего.
func (s *GameService) CreateGame(ctx context.Context, input CreateGameInput) (*CreatedGame, error) {
	input.HostName = strings.TrimSpace(input.HostName)
	input.Topic = strings.TrimSpace(input.Topic)

	if l := len([]rune(input.HostName)); l < 1 || l > 80 {
		return nil, fmt.Errorf("%w: host name must be 1-80 characters", errors.ErrValidation)
	}
	if l := len([]rune(input.Topic)); l < 2 || l > 255 {
		return nil, fmt.Errorf("%w: topic must be 2-255 characters", errors.ErrValidation)
	}
	if !allowedQuestionsPerTeam[input.QuestionsPerTeam] {
		return nil, fmt.Errorf("%w: questions_per_team must be 5, 6 or 7", errors.ErrValidation)
	}

	room, game, host, err := s.registry.CreateRoom(ctx, gamemanager.CreateGameParams{
		HostName:         input.HostName,
		Topic:            input.Topic,
		Difficulty:       input.Difficulty,
		QuestionsPerTeam: input.QuestionsPerTeam,
		HostUserID:       input.UserID,
	})
	if err != nil {
		return nil, err
	}

	token, err := s.jwt.GeneratePlayerToken(game.PIN, host.ID)
	if err != nil {
		return nil, err
	}
	snapshot, err := room.Snapshot()
	if err != nil {
		return nil, err
	}

	return &CreatedGame{
		PIN:          game.PIN,
		HostPlayerID: host.ID,
		PlayerToken:  token,
		State:        snapshot,
	}, nil
}

// JoinGame добавляет игрока в комнату по PIN и возвращает его игровой токен.
func (s *GameService) JoinGame(ctx context.Context, pin, name string, userID *uint) (*JoinedGame, error) {
	name = strings.TrimSpace(name)
	if l := len([]rune(name)); l < 1 || l > 80 {
		return nil, fmt.Errorf("%w: name must be 1-80 characters", errors.ErrValidation)
	}

	room, err := s.room(pin)
	if err != nil {
		return nil, err
	}
	player, err := room.Join(name, userID)
	if err != nil {
		return nil, err
	}

	token, err := s.jwt.GeneratePlayerToken(room.PIN(), player.ID)
	if err != nil {
		return nil, err
	}
	snapshot, err := room.Snapshot()
	if err != nil {
		return nil, err
	}

	return &JoinedGame{
		PlayerID:    player.ID,
		PlayerToken: token,
		State:       snapshot,
	}, nil
}

// StartGame запускает игру от имени ведущего.
func (s *GameService) StartGame(pin string, hostPlayerID uint) (*gamemanager.Snapshot, error) {
	room, err := s.room(pin)
	if err != nil {
		return nil, err
	}
	return room.Start(hostPlayerID)
}

// GetState возвращает снапшот комнаты.
func (s *GameService) GetState(pin string) (*gamemanager.Snapshot, error) {
	room, err := s.room(pin)
	if err != nil {
		return nil, err
	}
	return room.Snapshot()
}

// VerifyPlayerToken проверяет игровой токен подключения к (pin, playerID).
func (s *GameService) VerifyPlayerToken(token, pin string, playerID uint) error {
	_, err := s.jwt.VerifyPlayerToken(token, pin, playerID)
	return err
}

// HandleAnswer реализует websocket.CommandHandler: ответ капитана.
func (s *GameService) HandleAnswer(pin string, playerID uint, optionIndex int) error {
	room, err := s.room(pin)
	if err != nil {
		return err
	}
	return room.Answer(playerID, optionIndex)
}

// HandleVote реализует websocket.CommandHandler: совещательный голос.
func (s *GameService) HandleVote(pin string, playerID uint, choice string) error {
	room, err := s.room(pin)
	if err != nil {
		return err
	}
	return room.Vote(playerID, choice)
}

// HandleSkip реализует websocket.CommandHandler: пропуск вопроса капитаном.
func (s *GameService) HandleSkip(pin string, playerID uint) error {
	room, err := s.room(pin)
	if err != nil {
		return err
	}
	return room.Skip(playerID)
}

// HandleTransferCaptain реализует websocket.CommandHandler.
func (s *GameService) HandleTransferCaptain(pin string, fromPlayerID, toPlayerID uint) error {
	room, err := s.room(pin)
	if err != nil {
		return err
	}
	return room.TransferCaptain(fromPlayerID, toPlayerID)
}

// HandleHostControl реализует websocket.CommandHandler: команды ведущего.
func (s *GameService) HandleHostControl(pin string, hostPlayerID uint, msg websocket.ClientMessage) error {
	room, err := s.room(pin)
	if err != nil {
		return err
	}
	return room.HostControl(hostPlayerID, gamemanager.HostControlInput{
		Action:         msg.ControlAction,
		TargetPlayerID: msg.TargetPlayerID,
		Topic:          msg.Topic,
		Difficulty:     msg.Difficulty,
	})
}

// HandleDisconnect реализует websocket.CommandHandler: обрыв сокета.
// Ошибки здесь некому возвращать, комната сама их логирует.
func (s *GameService) HandleDisconnect(pin string, playerID uint) {
	room, err := s.room(pin)
	if err != nil {
		return
	}
	room.Disconnect(playerID)
}

func (s *GameService) room(pin string) (*gamemanager.Room, error) {
	pin = strings.ToUpper(strings.TrimSpace(pin))
	room, err := s.registry.GetOrAdopt(pin)
	if err != nil {
		return nil, err
	}
	return room, nil
}

// HubBroadcaster адаптирует websocket.Hub к gamemanager.Broadcaster:
// упаковывает снапшоты и результаты фиксации в серверный конверт.
type HubBroadcaster struct {
	Hub *websocket.Hub
}

// BroadcastState рассылает снапшот состояния комнаты.
func (b *HubBroadcaster) BroadcastState(pin string, snapshot *gamemanager.Snapshot) {
	b.Hub.Broadcast(pin, websocket.Event{Type: websocket.EventState, Data: snapshot})
}

// BroadcastAnswerResult рассылает результат фиксации вопроса.
func (b *HubBroadcaster) BroadcastAnswerResult(pin string, result *gamemanager.AnswerResult) {
	b.Hub.Broadcast(pin, websocket.Event{Type: websocket.EventAnswerResult, Data: result})
}
