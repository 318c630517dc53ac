package gamemanager

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/quizbattle/quizbattle-api/internal/domain/entity"
	apperrors "github.com/quizbattle/quizbattle-api/internal/pkg/errors"
)

// Команды ведущего.
const (
	HostActionPause        = "pause"
	HostActionResume       = "resume"
	HostActionNextQuestion = "next_question"
	HostActionKick         = "kick"
	HostActionRestart      = "restart"
)

// HostControlInput — параметры команды ведущего.
type HostControlInput struct {
	Action         string
	TargetPlayerID uint
	Topic          string
	Difficulty     string
}

// HostControl выполняет команду ведущего. Пауза и возобновление вне своих
// фаз молча ничего не меняют; перезапуск из незавершенной игры — конфликт.
func (r *Room) HostControl(hostPlayerID uint, input HostControlInput) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touch()

	game, err := r.game()
	if err != nil {
		return err
	}

	host, err := r.deps.PlayerRepo.GetByID(hostPlayerID)
	if err != nil || host.GameID != game.ID || !host.IsHost {
		return fmt.Errorf("%w: only the host can control the game", apperrors.ErrForbidden)
	}

	switch input.Action {
	case HostActionPause:
		if err := r.pause(game); err != nil {
			return err
		}
	case HostActionResume:
		if err := r.resume(game); err != nil {
			return err
		}
	case HostActionNextQuestion:
		// commit сам рассылает answer_result и снапшот.
		return r.commit(commitSystemSkip, hostPlayerID, -1)
	case HostActionKick:
		if err := r.kick(game, input.TargetPlayerID); err != nil {
			return err
		}
	case HostActionRestart:
		if err := r.restartGame(game, input.Topic, input.Difficulty); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: unknown host action %q", apperrors.ErrValidation, input.Action)
	}

	r.publish(game)
	return nil
}

// pause замораживает текущий вопрос: остаток окна считается в целых
// секундах, но не меньше минимального, таймер снимается.
func (r *Room) pause(game *entity.Game) error {
	if !game.IsInProgress() || game.Phase != entity.PhaseQuestion {
		return nil
	}

	elapsedSec := 0
	if game.QuestionStartedAt != nil {
		elapsedSec = int(time.Since(*game.QuestionStartedAt).Seconds())
		if elapsedSec < 0 {
			elapsedSec = 0
		}
	}
	remainingSec := int(r.baseTimeout(game.Difficulty).Seconds()) - elapsedSec
	minSec := int(r.cfg.MinResumeWindow.Seconds())
	if remainingSec < minSec {
		remainingSec = minSec
	}

	r.pausedElapsed = time.Duration(elapsedSec) * time.Second
	r.pausedRemaining = time.Duration(remainingSec) * time.Second

	game.Phase = entity.PhasePaused
	if err := r.deps.GameRepo.Update(game); err != nil {
		return err
	}
	r.timer.Cancel()

	log.Printf("[Room %s] Paused with %d seconds left", r.pin, remainingSec)
	return nil
}

// resume продолжает вопрос с того же места: question_started_at сдвигается
// назад на время, прошедшее до паузы, таймер взводится на сохраненный остаток.
func (r *Room) resume(game *entity.Game) error {
	if !game.IsInProgress() || game.Phase != entity.PhasePaused {
		return nil
	}

	started := time.Now().Add(-r.pausedElapsed)
	remaining := r.pausedRemaining
	if remaining <= 0 {
		remaining = r.baseTimeout(game.Difficulty)
	}

	game.Phase = entity.PhaseQuestion
	game.QuestionStartedAt = &started
	if err := r.deps.GameRepo.Update(game); err != nil {
		return err
	}

	r.pausedElapsed = 0
	r.pausedRemaining = 0
	r.armQuestionTimer(game, remaining)

	log.Printf("[Room %s] Resumed with %v left", r.pin, remaining)
	return nil
}

// kick деактивирует игрока. Капитанство выбывшего капитана уходит раньше
// всех вошедшему активному игроку той же команды; если таких нет, команда
// остается без капитана и досиживает свои вопросы до таймаутов.
func (r *Room) kick(game *entity.Game, targetPlayerID uint) error {
	if targetPlayerID == 0 {
		return nil
	}
	target, err := r.deps.PlayerRepo.GetByID(targetPlayerID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		return err
	}
	if target.GameID != game.ID {
		return nil
	}

	wasCaptain := target.IsCaptain
	team := target.Team
	target.Active = false
	target.IsCaptain = false
	if err := r.deps.PlayerRepo.Update(target); err != nil {
		return err
	}
	log.Printf("[Room %s] Player %q kicked (id=%d)", r.pin, target.Name, target.ID)

	if wasCaptain && team != "" {
		return r.promoteCaptain(game, team)
	}
	return nil
}

// promoteCaptain делает капитаном раньше всех вошедшего активного игрока
// команды (игроки из репозитория приходят в порядке joined_at).
func (r *Room) promoteCaptain(game *entity.Game, team string) error {
	players, err := r.deps.PlayerRepo.GetByGameID(game.ID)
	if err != nil {
		return err
	}
	for _, p := range players {
		if p.Active && p.Team == team {
			p.IsCaptain = true
			if err := r.deps.PlayerRepo.Update(p); err != nil {
				return err
			}
			log.Printf("[Room %s] Captain of team %s reassigned to %q (id=%d)", r.pin, team, p.Name, p.ID)
			break
		}
	}
	return nil
}

// restartGame возвращает завершенную игру в ожидание со свежей колодой.
// Тема и сложность меняются только на валидные значения; составы команд
// и капитанские флаги активных игроков сбрасываются.
func (r *Room) restartGame(game *entity.Game, topic, difficulty string) error {
	if !game.IsFinished() {
		return fmt.Errorf("%w: restart is available only after the game has finished", apperrors.ErrConflict)
	}

	if t := strings.TrimSpace(topic); t != "" {
		game.Topic = t
	}
	switch difficulty {
	case entity.DifficultyEasy, entity.DifficultyMedium, entity.DifficultyHard:
		game.Difficulty = difficulty
	}

	if err := r.deps.QuestionRepo.DeleteByGameID(game.ID); err != nil {
		return err
	}
	questions, err := buildDeck(r.ctx, r.deps.Source, r.rnd, game.ID, game.Topic, game.Difficulty, game.QuestionsPerTeam)
	if err != nil {
		return err
	}
	if err := r.deps.QuestionRepo.CreateBatch(questions); err != nil {
		return err
	}

	game.Status = entity.GameStatusWaiting
	game.Phase = entity.PhaseGathering
	game.CurrentTeam = ""
	game.CurrentIndexA = 0
	game.CurrentIndexB = 0
	game.ScoreA = 0
	game.ScoreB = 0
	game.QuestionStartedAt = nil
	if err := r.deps.GameRepo.Update(game); err != nil {
		return err
	}

	r.votes = make(map[uint]string)
	r.stats = newTeamStats()
	r.pausedElapsed = 0
	r.pausedRemaining = 0
	r.timer.Cancel()

	players, err := r.deps.PlayerRepo.GetByGameID(game.ID)
	if err != nil {
		return err
	}
	reset := make([]*entity.Player, 0, len(players))
	for _, p := range players {
		if !p.Active {
			continue
		}
		p.Team = ""
		p.IsCaptain = false
		reset = append(reset, p)
	}
	if len(reset) > 0 {
		if err := r.deps.PlayerRepo.UpdateBatch(reset); err != nil {
			return err
		}
	}

	log.Printf("[Room %s] Restarted: topic=%q difficulty=%s", r.pin, game.Topic, game.Difficulty)
	return nil
}

// Disconnect помечает игрока неактивным после обрыва сокета. Игра от этого
// не завершается; капитанство уходит раньше всех вошедшему активному
// игроку той же команды, если он есть.
func (r *Room) Disconnect(playerID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touch()

	game, err := r.game()
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		return err
	}
	player, err := r.deps.PlayerRepo.GetByID(playerID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		return err
	}
	if player.GameID != game.ID {
		return nil
	}

	wasCaptain := player.IsCaptain
	team := player.Team
	player.Active = false
	player.IsCaptain = false
	if err := r.deps.PlayerRepo.Update(player); err != nil {
		return err
	}
	log.Printf("[Room %s] Player %q disconnected (id=%d)", r.pin, player.Name, player.ID)

	if wasCaptain && team != "" {
		if err := r.promoteCaptain(game, team); err != nil {
			return err
		}
	}

	r.publish(game)
	return nil
}
