package entity

import (
	"time"
)

// Player представляет участника комнаты
type Player struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	GameID    uint      `gorm:"not null;index" json:"game_id"`
	UserID    *uint     `gorm:"index" json:"user_id,omitempty"` // NULL для гостей
	Name      string    `gorm:"size:80;not null" json:"name"`
	Team      string    `gorm:"size:1;not null;default:''" json:"team"` // "" до распределения команд
	IsHost    bool      `gorm:"not null;default:false" json:"is_host"`
	IsCaptain bool      `gorm:"not null;default:false" json:"is_captain"`
	Active    bool      `gorm:"not null;default:true" json:"active"`
	JoinedAt  time.Time `gorm:"not null" json:"joined_at"`
}

// TableName определяет имя таблицы для GORM
func (Player) TableName() string {
	return "players"
}

// OnTeam проверяет, играет ли участник за указанную команду
func (p *Player) OnTeam(team string) bool {
	return p.Team == team
}

// CanCommitAnswer проверяет право игрока зафиксировать ответ текущей команды
func (p *Player) CanCommitAnswer(currentTeam string) bool {
	return p.Active && p.IsCaptain && p.Team == currentTeam
}
