package gamemanager

import (
	"context"

	"github.com/quizbattle/quizbattle-api/internal/domain/entity"
)

// buildDeck запрашивает у генератора 2N вопросов одной пачкой и раскладывает
// их по командам: после перемешивания первые N достаются команде A, остальные
// команде B, в порядке order_index. Номер правильного ответа переводится из
// нумерации с единицы в ноль-базную форму хранилища.
func buildDeck(ctx context.Context, source QuestionSource, rnd *lockedRand, gameID uint, topic, difficulty string, perTeam int) ([]*entity.Question, error) {
	items, err := source.Fetch(ctx, topic, difficulty, perTeam*2)
	if err != nil {
		return nil, err
	}
	if len(items) > perTeam*2 {
		items = items[:perTeam*2]
	}

	rnd.Shuffle(len(items), func(i, j int) {
		items[i], items[j] = items[j], items[i]
	})

	questions := make([]*entity.Question, 0, len(items))
	for i, item := range items {
		team := entity.TeamA
		order := i
		if i >= perTeam {
			team = entity.TeamB
			order = i - perTeam
		}
		questions = append(questions, &entity.Question{
			GameID:        gameID,
			Team:          team,
			OrderIndex:    order,
			Text:          item.Text,
			Option1:       item.Options[0],
			Option2:       item.Options[1],
			Option3:       item.Options[2],
			Option4:       item.Options[3],
			CorrectOption: item.CorrectOption - 1,
		})
	}
	return questions, nil
}
