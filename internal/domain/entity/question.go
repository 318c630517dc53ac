package entity

// Question представляет вопрос из колоды комнаты.
// Варианты хранятся в четырех колонках; correct_option хранится с нуля
// (генератор вопросов отдает номер с единицы, конвертация происходит один раз
// при создании колоды).
type Question struct {
	ID            uint   `gorm:"primaryKey" json:"id"`
	GameID        uint   `gorm:"not null;index" json:"game_id"`
	Team          string `gorm:"size:1;not null" json:"team"`
	OrderIndex    int    `gorm:"not null" json:"order_index"`
	Text          string `gorm:"type:text;not null" json:"text"`
	Option1       string `gorm:"size:255;not null" json:"option_1"`
	Option2       string `gorm:"size:255;not null" json:"option_2"`
	Option3       string `gorm:"size:255;not null" json:"option_3"`
	Option4       string `gorm:"size:255;not null" json:"option_4"`
	CorrectOption int    `gorm:"not null" json:"-"` // Скрыто от клиента
	Answered      bool   `gorm:"not null;default:false" json:"answered"`
}

// TableName определяет имя таблицы для GORM
func (Question) TableName() string {
	return "questions"
}

// Options возвращает варианты ответа в порядке показа
func (q *Question) Options() []string {
	return []string{q.Option1, q.Option2, q.Option3, q.Option4}
}

// IsCorrect проверяет, является ли выбранный вариант правильным (нумерация с нуля)
func (q *Question) IsCorrect(selectedOption int) bool {
	return selectedOption == q.CorrectOption
}

// IsValidOption проверяет, что выбранный вариант существует
func (q *Question) IsValidOption(selectedOption int) bool {
	return selectedOption >= 0 && selectedOption < 4
}
