package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/cwarden/memories/internal/logging"
)

// ErrPermissionDenied is returned when reminders cannot be delivered.
var ErrPermissionDenied = errors.New("notify: permission denied")

// Registry holds the reminders currently scheduled with the platform.
type Registry interface {
	// ReplaceScheduled clears every scheduled reminder, then schedules entries.
	ReplaceScheduled(ctx context.Context, entries []Entry) error
	CancelAll(ctx context.Context) error
}

// Permission reports whether reminders can be delivered at all.
type Permission interface {
	Allowed(ctx context.Context) bool
}

// Settings are the user's reminder preferences.
type Settings struct {
	Enabled bool
	At      Clock
}

type Scheduler struct {
	registry   Registry
	permission Permission
	formatter  *Formatter
	debug      bool
	log        *log.Logger
}

// NewScheduler creates a Scheduler. With debug set, only the earliest
// reminder is scheduled, 20 seconds from now.
func NewScheduler(registry Registry, permission Permission, f *Formatter, debug bool) *Scheduler {
	if f == nil {
		f = defaultFormatter
	}
	return &Scheduler{
		registry:   registry,
		permission: permission,
		formatter:  f,
		debug:      debug,
		log:        logging.WithPrefix("notify"),
	}
}

// Authorize checks that reminders can be delivered before the caller turns
// them on.
func (s *Scheduler) Authorize(ctx context.Context) error {
	if !s.permission.Allowed(ctx) {
		return ErrPermissionDenied
	}
	return nil
}

// Rebuild replaces the scheduled reminders with the plan for counts. It does
// nothing unless reminders are enabled and permitted, and returns the
// entries it scheduled.
func (s *Scheduler) Rebuild(ctx context.Context, counts map[DayKey]int, settings Settings, now time.Time) ([]Entry, error) {
	if !settings.Enabled {
		s.log.Debug("reminders disabled, not scheduling")
		return nil, nil
	}
	if !s.permission.Allowed(ctx) {
		s.log.Debug("reminders not permitted, not scheduling")
		return nil, nil
	}

	entries := Plan(counts, settings.At, now, s.formatter)
	if s.debug {
		entries = DebugOverride(entries, now)
	}

	if err := s.registry.ReplaceScheduled(ctx, entries); err != nil {
		return nil, fmt.Errorf("failed to schedule reminders: %w", err)
	}

	s.log.Info("reminders scheduled", "count", len(entries), "days", len(counts))
	return entries, nil
}

// Disable cancels every scheduled reminder. Persisting the preference is
// up to the caller.
func (s *Scheduler) Disable(ctx context.Context) error {
	if err := s.registry.CancelAll(ctx); err != nil {
		return fmt.Errorf("failed to cancel reminders: %w", err)
	}
	s.log.Info("reminders cancelled")
	return nil
}
