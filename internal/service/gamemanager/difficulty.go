package gamemanager

import (
	"time"

	"github.com/quizbattle/quizbattle-api/internal/domain/entity"
)

// TimeoutConfig задает окно ответа на вопрос для каждого уровня сложности
type TimeoutConfig struct {
	// BaseTimeouts — базовое окно ответа по уровням сложности
	BaseTimeouts map[string]time.Duration

	// DefaultTimeout — окно для неизвестного уровня
	DefaultTimeout time.Duration
}

// DefaultTimeoutConfig возвращает окна по умолчанию: чем сложнее вопрос,
// тем меньше времени на обсуждение
func DefaultTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{
		BaseTimeouts: map[string]time.Duration{
			entity.DifficultyEasy:   35 * time.Second,
			entity.DifficultyMedium: 30 * time.Second,
			entity.DifficultyHard:   25 * time.Second,
		},
		DefaultTimeout: 30 * time.Second,
	}
}

// BaseTimeout возвращает окно ответа для уровня сложности
func (c *TimeoutConfig) BaseTimeout(difficulty string) time.Duration {
	if d, ok := c.BaseTimeouts[difficulty]; ok {
		return d
	}
	return c.DefaultTimeout
}
