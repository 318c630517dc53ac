package postgres

import (
	"gorm.io/gorm"

	"github.com/quizbattle/quizbattle-api/internal/domain/entity"
	"github.com/quizbattle/quizbattle-api/internal/domain/repository"
)

// StatsRepo реализует repository.StatsRepository
type StatsRepo struct {
	db *gorm.DB
}

// NewStatsRepo создает новый репозиторий агрегатной статистики
func NewStatsRepo(db *gorm.DB) *StatsRepo {
	return &StatsRepo{db: db}
}

// GetRating возвращает пользователей, отсортированных по (wins, games_finished)
// по убыванию. Победа засчитывается, когда команда игрока набрала строго больше
// очков соперника; ничьи не считаются.
func (r *StatsRepo) GetRating(limit int) ([]repository.RatingRow, error) {
	var rows []repository.RatingRow
	err := r.db.Model(&entity.User{}).
		Select(`users.id AS user_id,
			users.username,
			COUNT(DISTINCT CASE
				WHEN games.status = ? AND (
					(players.team = ? AND games.score_a > games.score_b) OR
					(players.team = ? AND games.score_b > games.score_a)
				) THEN games.id END) AS wins,
			COUNT(DISTINCT CASE WHEN games.status = ? THEN games.id END) AS games_finished`,
			entity.GameStatusFinished, entity.TeamA, entity.TeamB, entity.GameStatusFinished).
		Joins("LEFT JOIN players ON players.user_id = users.id").
		Joins("LEFT JOIN games ON games.id = players.game_id").
		Group("users.id, users.username").
		Order("wins DESC, games_finished DESC, users.id").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
