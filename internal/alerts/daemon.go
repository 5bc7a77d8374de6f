package alerts

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdlog "log"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"
	"golang.org/x/time/rate"

	"github.com/cwarden/memories/internal/logging"
	"github.com/cwarden/memories/internal/store"
)

// Sender delivers one reminder.
type Sender interface {
	Send(title, body string) error
}

// ShoutrrrSender delivers through every configured shoutrrr URL.
type ShoutrrrSender struct {
	sender *router.ServiceRouter
}

func NewShoutrrrSender(urls []string, timeout time.Duration) (*ShoutrrrSender, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("at least one alert URL is required")
	}
	sender, err := shoutrrr.CreateSender(slices.Clone(urls)...)
	if err != nil {
		return nil, fmt.Errorf("invalid alert URL: %w", err)
	}
	if timeout > 0 {
		sender.Timeout = timeout
	}
	sender.SetLogger(stdlog.New(io.Discard, "", 0))
	return &ShoutrrrSender{sender: sender}, nil
}

func (s *ShoutrrrSender) Send(title, body string) error {
	params := stypes.Params{}
	if title != "" {
		params.SetTitle(title)
	}
	return errors.Join(s.sender.Send(body, &params)...)
}

// AlertStore is the part of the database the daemon needs.
type AlertStore interface {
	DueAlerts(now time.Time) ([]store.Alert, error)
	MarkDelivered(id int64, at time.Time) error
	SetLaunchDate(day time.Time) error
}

// Daemon delivers reminders as they come due.
type Daemon struct {
	store   AlertStore
	sender  Sender
	poll    time.Duration
	limiter *rate.Limiter
	now     func() time.Time
	log     *log.Logger
}

// NewDaemon creates a daemon polling every poll and sending at most one
// reminder per interval.
func NewDaemon(st AlertStore, sender Sender, poll, interval time.Duration) *Daemon {
	if poll <= 0 {
		poll = 30 * time.Second
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Daemon{
		store:   st,
		sender:  sender,
		poll:    poll,
		limiter: rate.NewLimiter(limit, 1),
		now:     time.Now,
		log:     logging.WithPrefix("alerts"),
	}
}

// Run delivers due reminders until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.poll)
	defer ticker.Stop()

	d.log.Info("alert daemon started", "poll", d.poll)
	for {
		if _, err := d.DeliverDue(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			d.log.Error("delivery failed", "error", err)
		}

		select {
		case <-ctx.Done():
			d.log.Info("alert daemon stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// DeliverDue sends every reminder that is due and returns how many were
// delivered. A reminder that fails to send stays due for the next attempt.
func (d *Daemon) DeliverDue(ctx context.Context) (int, error) {
	due, err := d.store.DueAlerts(d.now())
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, a := range due {
		if err := d.limiter.Wait(ctx); err != nil {
			return delivered, err
		}

		if err := d.sender.Send(a.Title, a.Body); err != nil {
			d.log.Warn("failed to send reminder", "id", a.ID, "error", err)
			continue
		}

		if err := d.store.MarkDelivered(a.ID, d.now()); err != nil {
			return delivered, err
		}
		// The next launch opens on the day the reminder was about
		if err := d.store.SetLaunchDate(a.FireAt); err != nil {
			d.log.Warn("failed to record launch date", "error", err)
		}

		d.log.Info("reminder delivered", "id", a.ID, "count", a.Count)
		delivered++
	}
	return delivered, nil
}
