package service

import (
	"errors"
	"log"
	"sort"
	"time"

	"github.com/quizbattle/quizbattle-api/internal/domain/entity"
	"github.com/quizbattle/quizbattle-api/internal/domain/repository"
	apperrors "github.com/quizbattle/quizbattle-api/internal/pkg/errors"
)

const (
	// Сколько строк отдает глобальный рейтинг
	ratingLimit = 20

	// Ключ и время жизни кеша рейтинга
	ratingCacheKey = "rating:top"
	ratingCacheTTL = 30 * time.Second

	// Ограничения списков в профильной статистике
	maxRecentTopics      = 5
	maxFrequentTeammates = 5
)

// UserStats — агрегированная статистика пользователя по сыгранным играм.
type UserStats struct {
	UserID            uint     `json:"user_id"`
	Username          string   `json:"username"`
	GamesPlayed       int      `json:"games_played"`
	GamesFinished     int      `json:"games_finished"`
	Wins              int      `json:"wins"`
	WinRate           float64  `json:"win_rate"`
	AverageTeamScore  float64  `json:"average_team_score"`
	RecentTopics      []string `json:"recent_topics"`
	FavoriteTeam      string   `json:"favorite_team"`
	FrequentTeammates []string `json:"frequent_teammates"`
}

// StatsService строит read-модели над завершенными играми: профильную
// статистику и глобальный рейтинг. В живом движке не участвует.
type StatsService struct {
	users repository.UserRepository
	games repository.GameRepository
	stats repository.StatsRepository
	cache repository.CacheRepository // nil допустим: рейтинг без кеша
}

// NewStatsService создает новый сервис статистики.
func NewStatsService(
	users repository.UserRepository,
	games repository.GameRepository,
	stats repository.StatsRepository,
	cache repository.CacheRepository,
) *StatsService {
	return &StatsService{
		users: users,
		games: games,
		stats: stats,
		cache: cache,
	}
}

// GetUserStats собирает статистику пользователя по его играм.
// Игры приходят в порядке убывания created_at, поэтому recent_topics —
// просто первые уникальные темы.
func (s *StatsService) GetUserStats(userID uint) (*UserStats, error) {
	user, err := s.users.GetByID(userID)
	if err != nil {
		return nil, err
	}

	games, err := s.games.GetByUserID(userID)
	if err != nil {
		return nil, err
	}

	result := &UserStats{
		UserID:            user.ID,
		Username:          user.Username,
		RecentTopics:      make([]string, 0, maxRecentTopics),
		FrequentTeammates: make([]string, 0, maxFrequentTeammates),
	}

	teamCounts := map[string]int{}
	teammateCounts := map[string]int{}
	seenTopics := map[string]bool{}
	totalScore := 0

	for _, game := range games {
		var me *entity.Player
		for i := range game.Players {
			p := &game.Players[i]
			if p.UserID != nil && *p.UserID == userID {
				me = p
				break
			}
		}
		if me == nil {
			continue
		}

		result.GamesPlayed++
		if !seenTopics[game.Topic] && len(result.RecentTopics) < maxRecentTopics {
			seenTopics[game.Topic] = true
			result.RecentTopics = append(result.RecentTopics, game.Topic)
		}
		if me.Team != "" {
			teamCounts[me.Team]++
			for i := range game.Players {
				p := &game.Players[i]
				if p.ID != me.ID && p.Team == me.Team {
					teammateCounts[p.Name]++
				}
			}
		}

		if !game.IsFinished() {
			continue
		}
		result.GamesFinished++
		if me.Team == entity.TeamA {
			totalScore += game.ScoreA
		} else if me.Team == entity.TeamB {
			totalScore += game.ScoreB
		}
		if game.Winner() == me.Team && me.Team != "" {
			result.Wins++
		}
	}

	if result.GamesFinished > 0 {
		result.WinRate = float64(result.Wins) / float64(result.GamesFinished)
		result.AverageTeamScore = float64(totalScore) / float64(result.GamesFinished)
	}
	if teamCounts[entity.TeamA] >= teamCounts[entity.TeamB] && teamCounts[entity.TeamA] > 0 {
		result.FavoriteTeam = entity.TeamA
	} else if teamCounts[entity.TeamB] > 0 {
		result.FavoriteTeam = entity.TeamB
	}
	result.FrequentTeammates = topNames(teammateCounts, maxFrequentTeammates)

	return result, nil
}

// GetRating возвращает глобальный рейтинг (top 20 по победам, затем по
// числу завершенных игр). Результат кешируется на 30 секунд.
func (s *StatsService) GetRating() ([]repository.RatingRow, error) {
	if s.cache != nil {
		var cached []repository.RatingRow
		if err := s.cache.GetJSON(ratingCacheKey, &cached); err == nil {
			return cached, nil
		} else if !errors.Is(err, apperrors.ErrNotFound) {
			log.Printf("[Stats] Rating cache read failed: %v", err)
		}
	}

	rows, err := s.stats.GetRating(ratingLimit)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ratingCacheKey, rows, ratingCacheTTL); err != nil {
			log.Printf("[Stats] Rating cache write failed: %v", err)
		}
	}
	return rows, nil
}

// topNames возвращает не более limit имен, отсортированных по убыванию
// частоты; при равенстве — по алфавиту, чтобы порядок был стабильным.
func topNames(counts map[string]int, limit int) []string {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})
	if len(names) > limit {
		names = names[:limit]
	}
	return names
}
