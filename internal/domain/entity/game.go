package entity

import (
	"time"
)

// Константы статусов игры
const (
	GameStatusWaiting    = "waiting"
	GameStatusInProgress = "in_progress"
	GameStatusFinished   = "finished"
)

// Константы фаз внутри игры
const (
	PhaseGathering = "gathering"
	PhaseCountdown = "countdown"
	PhaseQuestion  = "question"
	PhasePaused    = "paused"
	PhaseResults   = "results"
)

// Команды
const (
	TeamA = "A"
	TeamB = "B"
)

// Уровни сложности
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Результаты завершенной игры
const (
	WinnerDraw = "draw"
)

// Game представляет комнату викторины
type Game struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	PIN              string     `gorm:"column:pin;size:6;not null;index" json:"pin"`
	Topic            string     `gorm:"size:255;not null" json:"topic"`
	Difficulty       string     `gorm:"size:10;not null;default:'medium'" json:"difficulty"`
	QuestionsPerTeam int        `gorm:"not null" json:"questions_per_team"`
	Status           string     `gorm:"size:32;not null;default:'waiting';index" json:"status"`
	Phase            string     `gorm:"size:32;not null;default:'gathering'" json:"phase"`
	CurrentTeam      string     `gorm:"size:1;not null;default:''" json:"current_team"` // "A", "B" или "" вне раунда
	CurrentIndexA    int        `gorm:"not null;default:0" json:"current_index_a"`
	CurrentIndexB    int        `gorm:"not null;default:0" json:"current_index_b"`
	ScoreA           int        `gorm:"not null;default:0" json:"score_a"`
	ScoreB           int        `gorm:"not null;default:0" json:"score_b"`
	QuestionStartedAt *time.Time `gorm:"type:timestamp" json:"question_started_at,omitempty"`
	Players          []Player   `gorm:"foreignKey:GameID" json:"players,omitempty"`
	Questions        []Question `gorm:"foreignKey:GameID" json:"questions,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Game) TableName() string {
	return "games"
}

// IsWaiting проверяет, находится ли игра в лобби
func (g *Game) IsWaiting() bool {
	return g.Status == GameStatusWaiting
}

// IsInProgress проверяет, идет ли игра
func (g *Game) IsInProgress() bool {
	return g.Status == GameStatusInProgress
}

// IsFinished проверяет, завершена ли игра
func (g *Game) IsFinished() bool {
	return g.Status == GameStatusFinished
}

// CurrentIndex возвращает индекс текущего вопроса для команды
func (g *Game) CurrentIndex(team string) int {
	if team == TeamA {
		return g.CurrentIndexA
	}
	return g.CurrentIndexB
}

// AllQuestionsConsumed проверяет, исчерпали ли обе команды свои вопросы
func (g *Game) AllQuestionsConsumed() bool {
	return g.CurrentIndexA >= g.QuestionsPerTeam && g.CurrentIndexB >= g.QuestionsPerTeam
}

// Winner возвращает "A", "B" или "draw" для завершенной игры, иначе ""
func (g *Game) Winner() string {
	if !g.IsFinished() {
		return ""
	}
	switch {
	case g.ScoreA > g.ScoreB:
		return TeamA
	case g.ScoreB > g.ScoreA:
		return TeamB
	default:
		return WinnerDraw
	}
}

// OtherTeam возвращает противоположную команду
func OtherTeam(team string) string {
	if team == TeamA {
		return TeamB
	}
	return TeamA
}
