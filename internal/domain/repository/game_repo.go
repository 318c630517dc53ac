package repository

import (
	"github.com/quizbattle/quizbattle-api/internal/domain/entity"
)

// GameRepository определяет методы для работы с играми
type GameRepository interface {
	Create(game *entity.Game) error
	GetByID(id uint) (*entity.Game, error)
	GetByPIN(pin string) (*entity.Game, error)
	Update(game *entity.Game) error
	Delete(id uint) error

	// PINInUse проверяет, занят ли PIN незавершенной игрой
	PINInUse(pin string) (bool, error)

	// GetByUserID возвращает игры, в которых участвовал пользователь,
	// вместе с игроками, в порядке убывания created_at
	GetByUserID(userID uint) ([]entity.Game, error)
}
