package repository

import (
	"github.com/quizbattle/quizbattle-api/internal/domain/entity"
)

// QuestionRepository определяет методы для работы с колодой вопросов
type QuestionRepository interface {
	CreateBatch(questions []*entity.Question) error
	GetByID(id uint) (*entity.Question, error)
	GetByGameID(gameID uint) ([]entity.Question, error)

	// GetByGameTeamIndex возвращает вопрос команды с заданным order_index
	GetByGameTeamIndex(gameID uint, team string, orderIndex int) (*entity.Question, error)

	Update(question *entity.Question) error

	// DeleteByGameID удаляет колоду комнаты (используется при рестарте)
	DeleteByGameID(gameID uint) error
}
