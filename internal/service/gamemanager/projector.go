package gamemanager

import (
	"time"

	"github.com/quizbattle/quizbattle-api/internal/domain/entity"
)

// QuestionView — текущий вопрос в снапшоте. Правильный вариант наружу
// не отдается ни в каком виде.
type QuestionView struct {
	ID         uint     `json:"id"`
	Team       string   `json:"team"`
	OrderIndex int      `json:"order_index"`
	Text       string   `json:"text"`
	Options    []string `json:"options"`
}

// PlayerView — игрок в снапшоте.
type PlayerView struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	Team      string `json:"team"`
	IsHost    bool   `json:"is_host"`
	IsCaptain bool   `json:"is_captain"`
}

// Snapshot — полное наблюдаемое состояние комнаты, уходящее клиентам
// после каждой смены состояния.
type Snapshot struct {
	PIN                 string               `json:"pin"`
	Topic               string               `json:"topic"`
	Difficulty          string               `json:"difficulty"`
	Status              string               `json:"status"`
	Phase               string               `json:"phase"`
	CountdownSeconds    int                  `json:"countdown_seconds"`
	QuestionsPerTeam    int                  `json:"questions_per_team"`
	CurrentTeam         string               `json:"current_team"`
	ScoreA              int                  `json:"score_a"`
	ScoreB              int                  `json:"score_b"`
	CurrentQuestion     *QuestionView        `json:"current_question"`
	Players             []PlayerView         `json:"players"`
	Winner              *string              `json:"winner"`
	TeamStats           map[string]TeamStats `json:"team_stats"`
	VotePercentages     map[string]int       `json:"vote_percentages"`
	QuestionSecondsLeft *int                 `json:"question_seconds_left"`
}

// ProjectionInput — все, что нужно для построения снапшота: персистентные
// строки плюс временное состояние комнаты.
type ProjectionInput struct {
	Game             *entity.Game
	Players          []*entity.Player
	CurrentQuestion  *entity.Question
	Votes            map[uint]string
	Stats            map[string]*TeamStats
	CountdownSeconds int
	PausedRemaining  time.Duration
	Now              time.Time
}

// Projector строит снапшоты комнаты. Чистая функция над входом:
// ни блокировок, ни обращений к хранилищу.
type Projector struct {
	timeouts *TimeoutConfig
}

// NewProjector создает проектор с заданными окнами ответа.
func NewProjector(timeouts *TimeoutConfig) *Projector {
	if timeouts == nil {
		timeouts = DefaultTimeoutConfig()
	}
	return &Projector{timeouts: timeouts}
}

// Snapshot собирает проекцию состояния комнаты.
func (p *Projector) Snapshot(in ProjectionInput) *Snapshot {
	game := in.Game

	snap := &Snapshot{
		PIN:              game.PIN,
		Topic:            game.Topic,
		Difficulty:       game.Difficulty,
		Status:           game.Status,
		Phase:            game.Phase,
		CountdownSeconds: in.CountdownSeconds,
		QuestionsPerTeam: game.QuestionsPerTeam,
		CurrentTeam:      game.CurrentTeam,
		ScoreA:           game.ScoreA,
		ScoreB:           game.ScoreB,
		Players:          make([]PlayerView, 0, len(in.Players)),
		TeamStats:        copyStats(in.Stats),
		VotePercentages:  votePercentages(in.Votes),
	}

	for _, player := range in.Players {
		if !player.Active {
			continue
		}
		snap.Players = append(snap.Players, PlayerView{
			ID:        player.ID,
			Name:      player.Name,
			Team:      player.Team,
			IsHost:    player.IsHost,
			IsCaptain: player.IsCaptain,
		})
	}

	// Вопрос виден только в фазе question; на паузе и отсчете его нет.
	if game.Phase == entity.PhaseQuestion && in.CurrentQuestion != nil {
		q := in.CurrentQuestion
		snap.CurrentQuestion = &QuestionView{
			ID:         q.ID,
			Team:       q.Team,
			OrderIndex: q.OrderIndex,
			Text:       q.Text,
			Options:    q.Options(),
		}
	}

	if game.IsInProgress() {
		switch game.Phase {
		case entity.PhaseQuestion:
			if game.QuestionStartedAt != nil {
				elapsed := int(in.Now.Sub(*game.QuestionStartedAt).Seconds())
				if elapsed < 0 {
					elapsed = 0
				}
				left := int(p.timeouts.BaseTimeout(game.Difficulty).Seconds()) - elapsed
				if left < 0 {
					left = 0
				}
				snap.QuestionSecondsLeft = &left
			}
		case entity.PhasePaused:
			left := int(in.PausedRemaining.Seconds())
			snap.QuestionSecondsLeft = &left
		}
	}

	if winner := game.Winner(); winner != "" {
		snap.Winner = &winner
	}

	return snap
}

// votePercentages переводит голоса в целые проценты с усечением;
// из-за усечения сумма может быть чуть меньше 100.
func votePercentages(votes map[uint]string) map[string]int {
	result := make(map[string]int)
	if len(votes) == 0 {
		return result
	}
	counts := make(map[string]int)
	for _, choice := range votes {
		counts[choice]++
	}
	total := len(votes)
	for choice, n := range counts {
		result[choice] = n * 100 / total
	}
	return result
}

func copyStats(stats map[string]*TeamStats) map[string]TeamStats {
	out := map[string]TeamStats{
		entity.TeamA: {},
		entity.TeamB: {},
	}
	for team, s := range stats {
		if s != nil {
			out[team] = *s
		}
	}
	return out
}
