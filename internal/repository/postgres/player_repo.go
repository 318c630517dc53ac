package postgres

import (
	"errors"

	"gorm.io/gorm"

	"github.com/quizbattle/quizbattle-api/internal/domain/entity"
	apperrors "github.com/quizbattle/quizbattle-api/internal/pkg/errors"
)

// PlayerRepo реализует repository.PlayerRepository
type PlayerRepo struct {
	db *gorm.DB
}

// NewPlayerRepo создает новый репозиторий игроков
func NewPlayerRepo(db *gorm.DB) *PlayerRepo {
	return &PlayerRepo{db: db}
}

// Create создает нового игрока
func (r *PlayerRepo) Create(player *entity.Player) error {
	return r.db.Create(player).Error
}

// GetByID возвращает игрока по ID
func (r *PlayerRepo) GetByID(id uint) (*entity.Player, error) {
	var player entity.Player
	err := r.db.First(&player, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &player, nil
}

// GetByGameID возвращает всех игроков комнаты в порядке joined_at
func (r *PlayerRepo) GetByGameID(gameID uint) ([]*entity.Player, error) {
	var players []*entity.Player
	err := r.db.Where("game_id = ?", gameID).
		Order("joined_at, id").
		Find(&players).Error
	if err != nil {
		return nil, err
	}
	return players, nil
}

// Update обновляет игрока
func (r *PlayerRepo) Update(player *entity.Player) error {
	return r.db.Save(player).Error
}

// UpdateBatch сохраняет набор игроков одной транзакцией
func (r *PlayerRepo) UpdateBatch(players []*entity.Player) error {
	if len(players) == 0 {
		return nil
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		for _, player := range players {
			if err := tx.Save(player).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
