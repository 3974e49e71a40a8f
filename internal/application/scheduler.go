package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cleanxpert/internal/domain"
)

const notifyTimeout = 30 * time.Second

type Starter interface {
	Start()
}

type ScheduleState struct {
	Armed bool                  `json:"armed"`
	Entry *domain.ScheduleEntry `json:"entry,omitempty"`
	At    *time.Time            `json:"at,omitempty"`
}

// SchedulerTrigger holds at most one pending alarm. Arming again replaces
// the pending one; nothing is queued.
type SchedulerTrigger struct {
	alarm    AlarmClock
	target   Starter
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time

	mu    sync.Mutex
	seq   uint64
	armed *armedAlarm
}

type armedAlarm struct {
	id     uint64
	entry  domain.ScheduleEntry
	at     time.Time
	cancel func() bool
}

func NewSchedulerTrigger(alarm AlarmClock, target Starter, notifier Notifier, logger *slog.Logger) *SchedulerTrigger {
	if notifier == nil {
		notifier = &NoopNotifier{}
	}
	return &SchedulerTrigger{
		alarm:    alarm,
		target:   target,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Arm schedules target.Start at the next occurrence of entry and returns
// that instant. The alarm is registered without holding the lock, so an
// AlarmClock may call back synchronously.
func (s *SchedulerTrigger) Arm(entry domain.ScheduleEntry) time.Time {
	s.mu.Lock()
	if s.armed != nil {
		if s.armed.cancel != nil {
			s.armed.cancel()
		}
		s.logger.Info("replacing scheduled cleaning", "previous", s.armed.entry.String())
	}
	at := entry.Next(s.now())
	s.seq++
	id := s.seq
	s.armed = &armedAlarm{id: id, entry: entry, at: at}
	s.mu.Unlock()

	cancel := s.alarm.ScheduleOneShot(at, func() { s.fire(id) })

	s.mu.Lock()
	current := s.armed != nil && s.armed.id == id
	if current {
		s.armed.cancel = cancel
	}
	s.mu.Unlock()

	if !current {
		// Fired, disarmed or replaced while registering.
		cancel()
		return at
	}

	s.logger.Info("cleaning scheduled", "time", entry.String(), "at", at)
	return at
}

// Disarm cancels the pending alarm and reports whether there was one.
func (s *SchedulerTrigger) Disarm() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.armed == nil {
		return false
	}
	if s.armed.cancel != nil {
		s.armed.cancel()
	}
	s.logger.Info("scheduled cleaning cancelled", "time", s.armed.entry.String())
	s.armed = nil
	return true
}

func (s *SchedulerTrigger) State() ScheduleState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.armed == nil {
		return ScheduleState{}
	}
	entry := s.armed.entry
	at := s.armed.at
	return ScheduleState{Armed: true, Entry: &entry, At: &at}
}

func (s *SchedulerTrigger) fire(id uint64) {
	s.mu.Lock()
	if s.armed == nil || s.armed.id != id {
		s.mu.Unlock()
		return
	}
	entry := s.armed.entry
	s.armed = nil
	s.mu.Unlock()

	s.logger.Info("cleaning task triggered", "time", entry.String())
	s.target.Start()

	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if err := s.notifier.Notify(ctx, fmt.Sprintf("Scheduled cleaning started at %s", entry)); err != nil {
		s.logger.Error("notifying scheduled cleaning", "error", err)
	}
}
