package postgres

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/quizbattle/quizbattle-api/internal/domain/entity"
	apperrors "github.com/quizbattle/quizbattle-api/internal/pkg/errors"
)

// GameRepo реализует repository.GameRepository
type GameRepo struct {
	db *gorm.DB
}

// NewGameRepo создает новый репозиторий игр
func NewGameRepo(db *gorm.DB) *GameRepo {
	return &GameRepo{db: db}
}

// Create создает новую игру.
// Partial unique index uniq_games_pin_active гарантирует уникальность PIN
// среди незавершенных игр; нарушение транслируется в ErrConflict.
func (r *GameRepo) Create(game *entity.Game) error {
	if err := r.db.Create(game).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: pin %s already in use", apperrors.ErrConflict, game.PIN)
		}
		return err
	}
	return nil
}

// GetByID возвращает игру по ID
func (r *GameRepo) GetByID(id uint) (*entity.Game, error) {
	var game entity.Game
	err := r.db.First(&game, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &game, nil
}

// GetByPIN возвращает незавершенную игру с данным PIN; если таких нет —
// последнюю завершенную (для просмотра результатов)
func (r *GameRepo) GetByPIN(pin string) (*entity.Game, error) {
	var game entity.Game
	err := r.db.Where("pin = ? AND status <> ?", pin, entity.GameStatusFinished).
		Order("id DESC").
		First(&game).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = r.db.Where("pin = ?", pin).Order("id DESC").First(&game).Error
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &game, nil
}

// PINInUse проверяет, занят ли PIN незавершенной игрой
func (r *GameRepo) PINInUse(pin string) (bool, error) {
	var count int64
	err := r.db.Model(&entity.Game{}).
		Where("pin = ? AND status <> ?", pin, entity.GameStatusFinished).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Update обновляет игру
func (r *GameRepo) Update(game *entity.Game) error {
	return r.db.Save(game).Error
}

// Delete удаляет игру (вопросы и игроки каскадируются на уровне БД)
func (r *GameRepo) Delete(id uint) error {
	return r.db.Delete(&entity.Game{}, id).Error
}

// GetByUserID возвращает игры, в которых участвовал пользователь,
// вместе с игроками, в порядке убывания created_at
func (r *GameRepo) GetByUserID(userID uint) ([]entity.Game, error) {
	var games []entity.Game
	err := r.db.
		Joins("JOIN players ON players.game_id = games.id").
		Where("players.user_id = ?", userID).
		Preload("Players").
		Order("games.created_at DESC").
		Find(&games).Error
	if err != nil {
		return nil, err
	}
	return games, nil
}

// isUniqueViolation проверяет Postgres unique violation (23505) для pgconn и lib/pq драйверов
func isUniqueViolation(err error) bool {
	// pgx/v5 driver (pgconn.PgError)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	// lib/pq driver
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return true
	}
	return false
}
