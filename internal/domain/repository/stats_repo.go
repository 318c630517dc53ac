package repository

// RatingRow — строка глобального рейтинга
type RatingRow struct {
	UserID        uint   `json:"user_id"`
	Username      string `json:"username"`
	Wins          int    `json:"wins"`
	GamesFinished int    `json:"games_finished"`
}

// StatsRepository определяет агрегатные запросы по завершенным играм
type StatsRepository interface {
	// GetRating возвращает пользователей, отсортированных по (wins, games_finished)
	// по убыванию, не более limit строк. Пользователи без игр тоже участвуют.
	GetRating(limit int) ([]RatingRow, error)
}
