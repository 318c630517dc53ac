package gamemanager

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/quizbattle/quizbattle-api/internal/domain/entity"
	apperrors "github.com/quizbattle/quizbattle-api/internal/pkg/errors"
)

// commitKind различает источники фиксации вопроса.
type commitKind int

const (
	commitAnswer     commitKind = iota // ответ капитана
	commitSkip                         // пропуск капитаном
	commitSystemSkip                   // next_question от ведущего
	commitTimeout                      // срабатывание таймера
)

// Answer фиксирует ответ капитана текущей команды. optionIndex приходит
// с клиента в нумерации 1..4 и здесь переводится в ноль-базную.
func (r *Room) Answer(playerID uint, optionIndex int) error {
	if optionIndex < 1 || optionIndex > 4 {
		return fmt.Errorf("%w: option_index must be between 1 and 4", apperrors.ErrValidation)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.touch()
	return r.commit(commitAnswer, playerID, optionIndex-1)
}

// Skip — пропуск текущего вопроса капитаном; засчитывается команде
// как неверный ответ.
func (r *Room) Skip(playerID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touch()
	return r.commit(commitSkip, playerID, -1)
}

// Vote сохраняет совещательный голос игрока текущей команды.
// На исход вопроса голоса не влияют и очищаются при каждой фиксации.
// Вне фазы question и для чужой команды голос молча игнорируется.
func (r *Room) Vote(playerID uint, choice string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touch()

	game, err := r.game()
	if err != nil {
		return err
	}
	if !game.IsInProgress() || game.Phase != entity.PhaseQuestion {
		return nil
	}
	player, err := r.deps.PlayerRepo.GetByID(playerID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		return err
	}
	if player.GameID != game.ID || !player.Active || player.Team != game.CurrentTeam {
		return nil
	}

	r.votes[playerID] = choice
	r.publish(game)
	return nil
}

// TransferCaptain передает капитанство внутри одной команды.
func (r *Room) TransferCaptain(fromPlayerID, toPlayerID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touch()

	game, err := r.game()
	if err != nil {
		return err
	}

	from, fromErr := r.deps.PlayerRepo.GetByID(fromPlayerID)
	to, toErr := r.deps.PlayerRepo.GetByID(toPlayerID)
	if fromErr != nil || toErr != nil ||
		from.GameID != game.ID || to.GameID != game.ID ||
		!from.IsCaptain || from.Team != to.Team {
		return fmt.Errorf("%w: invalid captain transfer", apperrors.ErrValidation)
	}

	from.IsCaptain = false
	to.IsCaptain = true
	if err := r.deps.PlayerRepo.UpdateBatch([]*entity.Player{from, to}); err != nil {
		return err
	}

	log.Printf("[Room %s] Captain of team %s transferred: %d -> %d", r.pin, from.Team, from.ID, to.ID)
	r.publish(game)
	return nil
}

// handleTimeout — обработчик срабатывания таймера вопроса. Состояние
// перечитывается на момент срабатывания: если фаза уже не question, очередь
// успела сместиться с пары (team, index) или вопрос зафиксирован, таймаут
// молча ни во что не превращается.
func (r *Room) handleTimeout(team string, index int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touch()

	game, err := r.game()
	if err != nil {
		log.Printf("[Room %s] Timeout processing failed: %v", r.pin, err)
		return
	}
	if !game.IsInProgress() || game.Phase != entity.PhaseQuestion {
		return
	}
	if game.CurrentTeam != team || game.CurrentIndex(team) != index {
		return
	}

	if err := r.commit(commitTimeout, 0, -1); err != nil {
		log.Printf("[Room %s] Timeout processing failed: %v", r.pin, err)
	}
}

// commit — единственная точка фиксации вопроса: начисляет очки, двигает
// очередь команд и завершает игру, когда обе колоды исчерпаны. Вызывается
// под мьютексом комнаты. optionIndex здесь уже ноль-базный.
//
// Опоздавшие фиксации (чужая фаза, нет текущего вопроса, вопрос уже
// зафиксирован) — молчаливые no-op, чтобы гонка таймера и ответа не
// приводила к двойному засчитыванию.
func (r *Room) commit(kind commitKind, playerID uint, optionIndex int) error {
	game, err := r.game()
	if err != nil {
		return err
	}

	phaseOK := game.IsInProgress() && game.Phase == entity.PhaseQuestion
	// next_question разрешен и с паузы: ведущий может снять вопрос, не возобновляя таймер.
	if kind == commitSystemSkip && game.IsInProgress() && game.Phase == entity.PhasePaused {
		phaseOK = true
	}
	if !phaseOK || game.CurrentTeam == "" {
		return nil
	}

	question, err := r.deps.QuestionRepo.GetByGameTeamIndex(game.ID, game.CurrentTeam, game.CurrentIndex(game.CurrentTeam))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		return err
	}
	if question.Answered {
		return nil
	}

	if kind == commitAnswer || kind == commitSkip {
		player, err := r.deps.PlayerRepo.GetByID(playerID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return fmt.Errorf("%w: player not found in this game", apperrors.ErrNotFound)
			}
			return err
		}
		if player.GameID != game.ID || !player.Active {
			return fmt.Errorf("%w: player not found in this game", apperrors.ErrNotFound)
		}
		if player.Team != game.CurrentTeam {
			return fmt.Errorf("%w: not your team's turn", apperrors.ErrForbidden)
		}
		if !player.IsCaptain {
			return fmt.Errorf("%w: only the captain can commit an answer", apperrors.ErrForbidden)
		}
	}

	isCorrect := kind == commitAnswer && question.IsCorrect(optionIndex)

	elapsed := 0
	if game.QuestionStartedAt != nil {
		elapsed = int(time.Since(*game.QuestionStartedAt).Seconds())
		if elapsed < 0 {
			elapsed = 0
		}
	}

	team := game.CurrentTeam
	switch {
	case kind == commitTimeout:
		r.stats[team].Timeout++
	case isCorrect:
		bonus := 0
		if elapsed <= int(r.cfg.FastAnswerWindow.Seconds()) {
			bonus = 2
		} else if elapsed <= int(r.cfg.QuickAnswerWindow.Seconds()) {
			bonus = 1
		}
		if team == entity.TeamA {
			game.ScoreA += 1 + bonus
		} else {
			game.ScoreB += 1 + bonus
		}
		r.stats[team].Correct++
		r.stats[team].SpeedBonus += bonus
	default:
		r.stats[team].Incorrect++
	}

	question.Answered = true
	if err := r.deps.QuestionRepo.Update(question); err != nil {
		return err
	}

	// Очередь переходит к другой команде; индекс отвечавшей сдвигается.
	if team == entity.TeamA {
		game.CurrentIndexA++
		game.CurrentTeam = entity.TeamB
	} else {
		game.CurrentIndexB++
		game.CurrentTeam = entity.TeamA
	}

	r.votes = make(map[uint]string)
	r.pausedElapsed = 0
	r.pausedRemaining = 0

	if game.AllQuestionsConsumed() {
		game.Status = entity.GameStatusFinished
		game.Phase = entity.PhaseResults
		game.CurrentTeam = ""
		game.QuestionStartedAt = nil
		r.timer.Cancel()
	} else {
		now := time.Now()
		game.Phase = entity.PhaseQuestion
		game.QuestionStartedAt = &now
	}

	if err := r.deps.GameRepo.Update(game); err != nil {
		return err
	}

	// answer_result уходит раньше снапшота, отражающего последствия фиксации.
	if r.deps.Broadcaster != nil {
		r.deps.Broadcaster.BroadcastAnswerResult(r.pin, &AnswerResult{
			Timeout:       kind == commitTimeout,
			Skip:          kind == commitSkip || kind == commitSystemSkip,
			Correct:       isCorrect,
			CorrectOption: question.CorrectOption,
			Team:          question.Team,
			QuestionID:    question.ID,
		})
	}
	r.publish(game)

	if game.IsInProgress() {
		r.armQuestionTimer(game, r.baseTimeout(game.Difficulty))
	}

	if game.IsFinished() {
		log.Printf("[Room %s] Game finished: A=%d B=%d", r.pin, game.ScoreA, game.ScoreB)
	}
	return nil
}
