package dto

// CreateGameRequest — тело POST /games
type CreateGameRequest struct {
	HostName         string `json:"host_name" binding:"required,min=1,max=80"`
	Topic            string `json:"topic" binding:"required,min=2,max=255"`
	QuestionsPerTeam int    `json:"questions_per_team" binding:"required,oneof=5 6 7"`
	Difficulty       string `json:"difficulty" binding:"omitempty,oneof=easy medium hard"`
	UserID           *uint  `json:"user_id,omitempty"`
}

// JoinGameRequest — тело POST /games/:pin/join
type JoinGameRequest struct {
	Name   string `json:"name" binding:"required,min=1,max=80"`
	UserID *uint  `json:"user_id,omitempty"`
}

// StartGameRequest — тело POST /games/:pin/start
type StartGameRequest struct {
	HostPlayerID uint `json:"host_player_id" binding:"required"`
}
