package gamemanager

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/quizbattle/quizbattle-api/internal/domain/entity"
	"github.com/quizbattle/quizbattle-api/internal/domain/repository"
	"github.com/quizbattle/quizbattle-api/internal/service/oracle"
)

// Constants for default values
const (
	DefaultQuestionsPerTeam = 5
	PINLength               = 6
	pinAlphabet             = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// Config содержит настройки игрового движка
type Config struct {
	// Обратный отсчет перед первым вопросом
	CountdownFrom int           // С какого числа начинается отсчет
	CountdownTick time.Duration // Пауза между шагами отсчета

	// Бонусы за скорость ответа
	FastAnswerWindow  time.Duration // Ответ быстрее этого окна дает +2
	QuickAnswerWindow time.Duration // Ответ быстрее этого окна дает +1

	// Минимальный остаток таймера при паузе
	MinResumeWindow time.Duration

	// Генерация PIN
	MaxPINAttempts int // Сколько раз пробуем сгенерировать уникальный PIN

	// Уборка завершенных комнат из реестра
	RetireAfter     time.Duration // Сколько держать комнату после завершения
	CleanupInterval time.Duration // Период фоновой уборки
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		CountdownFrom:     3,
		CountdownTick:     time.Second,
		FastAnswerWindow:  8 * time.Second,
		QuickAnswerWindow: 15 * time.Second,
		MinResumeWindow:   time.Second,
		MaxPINAttempts:    50,
		RetireAfter:       time.Hour,
		CleanupInterval:   10 * time.Minute,
	}
}

// QuestionSource определяет интерфейс генератора вопросов,
// необходимый движку при создании и перезапуске игры.
type QuestionSource interface {
	Fetch(ctx context.Context, topic, difficulty string, count int) ([]oracle.GeneratedQuestion, error)
}

// Broadcaster определяет интерфейс рассылки событий комнаты,
// реализуемый WebSocket-хабом.
type Broadcaster interface {
	BroadcastState(pin string, snapshot *Snapshot)
	BroadcastAnswerResult(pin string, result *AnswerResult)
}

// Dependencies содержит зависимости игрового движка
type Dependencies struct {
	GameRepo     repository.GameRepository
	PlayerRepo   repository.PlayerRepository
	QuestionRepo repository.QuestionRepository
	Source       QuestionSource
	Broadcaster  Broadcaster
	Config       *Config
	Rand         *rand.Rand // Источник случайности; в тестах с фиксированным зерном
}

// TeamStats — счетчики исходов вопросов одной команды за текущую игру.
// Живут в памяти комнаты и обнуляются при перезапуске.
type TeamStats struct {
	Correct    int `json:"correct"`
	Incorrect  int `json:"incorrect"`
	Timeout    int `json:"timeout"`
	SpeedBonus int `json:"speed_bonus"`
}

// AnswerResult — событие фиксации ответа на вопрос. Уходит в рассылку
// до снапшота, отражающего последствия фиксации.
type AnswerResult struct {
	Timeout       bool   `json:"timeout"`
	Skip          bool   `json:"skip"`
	Correct       bool   `json:"correct"`
	CorrectOption int    `json:"correct_option"` // Ноль-базный, как в хранилище
	Team          string `json:"team"`           // Команда, которой принадлежал вопрос
	QuestionID    uint   `json:"question_id"`
}

// lockedRand защищает общий rand.Rand: PIN и перемешивания запрашиваются
// из разных горутин.
type lockedRand struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func newLockedRand(rnd *rand.Rand) *lockedRand {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &lockedRand{rnd: rnd}
}

func (r *lockedRand) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rnd.Intn(n)
}

func (r *lockedRand) Shuffle(n int, swap func(i, j int)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rnd.Shuffle(n, swap)
}

// newTeamStats возвращает нулевые счетчики для обеих команд.
func newTeamStats() map[string]*TeamStats {
	return map[string]*TeamStats{
		entity.TeamA: {},
		entity.TeamB: {},
	}
}
