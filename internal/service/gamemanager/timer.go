package gamemanager

import (
	"context"
	"sync"
	"time"
)

// DeadlineTimer — одноразовый перевзводимый таймер вопроса. Повторный Arm
// снимает предыдущее срабатывание, поэтому в комнате живет максимум один
// отложенный таймаут.
type DeadlineTimer struct {
	mu       sync.Mutex
	cancel   context.CancelFunc
	deadline time.Time
}

// Arm взводит таймер на d от текущего момента. fire выполняется в отдельной
// горутине; актуальность таймаута обработчик проверяет сам, перечитывая
// состояние комнаты на момент срабатывания.
func (t *DeadlineTimer) Arm(ctx context.Context, d time.Duration, fire func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}
	timerCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.deadline = time.Now().Add(d)

	go func() {
		select {
		case <-time.After(d):
			fire()
		case <-timerCtx.Done():
		}
	}()
}

// Cancel снимает взведенный таймер; без взведенного таймера ничего не делает.
func (t *DeadlineTimer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.deadline = time.Time{}
}

// Remaining возвращает остаток до дедлайна, не меньше нуля.
func (t *DeadlineTimer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.deadline.IsZero() {
		return 0
	}
	if rem := time.Until(t.deadline); rem > 0 {
		return rem
	}
	return 0
}
