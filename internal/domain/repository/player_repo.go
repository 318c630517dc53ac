package repository

import (
	"github.com/quizbattle/quizbattle-api/internal/domain/entity"
)

// PlayerRepository определяет методы для работы с игроками
type PlayerRepository interface {
	Create(player *entity.Player) error
	GetByID(id uint) (*entity.Player, error)

	// GetByGameID возвращает всех игроков комнаты в порядке joined_at
	GetByGameID(gameID uint) ([]*entity.Player, error)

	Update(player *entity.Player) error

	// UpdateBatch сохраняет набор игроков (распределение команд, сброс при рестарте)
	UpdateBatch(players []*entity.Player) error
}
