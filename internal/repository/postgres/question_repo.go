package postgres

import (
	"errors"

	"gorm.io/gorm"

	"github.com/quizbattle/quizbattle-api/internal/domain/entity"
	apperrors "github.com/quizbattle/quizbattle-api/internal/pkg/errors"
)

// QuestionRepo реализует repository.QuestionRepository
type QuestionRepo struct {
	db *gorm.DB
}

// NewQuestionRepo создает новый репозиторий вопросов
func NewQuestionRepo(db *gorm.DB) *QuestionRepo {
	return &QuestionRepo{db: db}
}

// CreateBatch создает колоду вопросов одной транзакцией
func (r *QuestionRepo) CreateBatch(questions []*entity.Question) error {
	if len(questions) == 0 {
		return nil
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		// Устанавливаем кодировку UTF-8 внутри транзакции: тексты вопросов
		// содержат кириллицу
		if err := tx.Exec("SET CLIENT_ENCODING TO 'UTF8'").Error; err != nil {
			return err
		}
		return tx.Create(&questions).Error
	})
}

// GetByID возвращает вопрос по ID
func (r *QuestionRepo) GetByID(id uint) (*entity.Question, error) {
	var question entity.Question
	err := r.db.First(&question, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &question, nil
}

// GetByGameID возвращает колоду комнаты в порядке (team, order_index)
func (r *QuestionRepo) GetByGameID(gameID uint) ([]entity.Question, error) {
	var questions []entity.Question
	err := r.db.Where("game_id = ?", gameID).
		Order("team, order_index").
		Find(&questions).Error
	if err != nil {
		return nil, err
	}
	return questions, nil
}

// GetByGameTeamIndex возвращает вопрос команды с заданным order_index
func (r *QuestionRepo) GetByGameTeamIndex(gameID uint, team string, orderIndex int) (*entity.Question, error) {
	var question entity.Question
	err := r.db.Where("game_id = ? AND team = ? AND order_index = ?", gameID, team, orderIndex).
		First(&question).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &question, nil
}

// Update обновляет вопрос
func (r *QuestionRepo) Update(question *entity.Question) error {
	return r.db.Save(question).Error
}

// DeleteByGameID удаляет колоду комнаты (используется при рестарте)
func (r *QuestionRepo) DeleteByGameID(gameID uint) error {
	return r.db.Where("game_id = ?", gameID).Delete(&entity.Question{}).Error
}
