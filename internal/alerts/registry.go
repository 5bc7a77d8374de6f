// Package alerts keeps scheduled memories reminders in the local database
// and delivers them when they come due.
package alerts

import (
	"context"
	"slices"

	"github.com/cwarden/memories/internal/notify"
	"github.com/cwarden/memories/internal/store"
)

// Registry stores scheduled reminders in the database.
type Registry struct {
	store *store.Store
}

func NewRegistry(st *store.Store) *Registry {
	return &Registry{store: st}
}

func (r *Registry) ReplaceScheduled(ctx context.Context, entries []notify.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	alerts := make([]store.Alert, 0, len(entries))
	for _, e := range entries {
		alerts = append(alerts, store.Alert{
			FireAt: e.FireDate,
			Month:  int(e.Key.Month),
			Day:    e.Key.Day,
			Count:  e.Count,
			Title:  e.Title,
			Body:   e.Body,
			Sound:  e.Sound,
		})
	}
	return r.store.ReplaceAlerts(alerts)
}

func (r *Registry) CancelAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.store.ClearAlerts()
}

func (r *Registry) Scheduled() ([]store.Alert, error) {
	return r.store.Alerts()
}

// Permission allows reminders once there is somewhere to deliver them.
type Permission struct {
	urls []string
}

func NewPermission(urls []string) Permission {
	return Permission{urls: slices.Clone(urls)}
}

func (p Permission) Allowed(ctx context.Context) bool {
	return len(p.urls) > 0
}
