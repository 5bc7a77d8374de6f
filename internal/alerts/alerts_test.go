package alerts

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/cwarden/memories/internal/notify"
	"github.com/cwarden/memories/internal/store"
)

type recordingSender struct {
	mu    sync.Mutex
	sent  []string
	fail  map[string]bool
	calls int
}

func (s *recordingSender) Send(title, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.fail[title] {
		return errors.New("send failed")
	}
	s.sent = append(s.sent, title)
	return nil
}

func (s *recordingSender) titles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestRegistryRoundTrip(t *testing.T) {
	st := openStore(t)
	reg := NewRegistry(st)
	ctx := context.Background()

	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	entries := notify.Plan(map[notify.DayKey]int{
		{Month: time.January, Day: 1}:   3,
		{Month: time.December, Day: 31}: 2,
	}, notify.Clock{Hour: 9}, now, nil)

	if err := reg.ReplaceScheduled(ctx, entries); err != nil {
		t.Fatalf("ReplaceScheduled failed: %v", err)
	}

	scheduled, err := reg.Scheduled()
	if err != nil {
		t.Fatal(err)
	}
	if len(scheduled) != 2 {
		t.Fatalf("Expected 2 scheduled, got %d", len(scheduled))
	}
	if a := scheduled[0]; a.Month != 12 || a.Day != 31 || a.Count != 2 || a.Title != "2 Photo Memories" || a.Sound != notify.Sound {
		t.Errorf("First alert = %+v", a)
	}
	if !scheduled[1].FireAt.Equal(time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("Second alert fires %v", scheduled[1].FireAt)
	}

	if err := reg.CancelAll(ctx); err != nil {
		t.Fatal(err)
	}
	if scheduled, _ := reg.Scheduled(); len(scheduled) != 0 {
		t.Errorf("CancelAll left %d alerts", len(scheduled))
	}
}

func TestRegistryWithScheduler(t *testing.T) {
	st := openStore(t)
	reg := NewRegistry(st)
	ctx := context.Background()
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	counts := map[notify.DayKey]int{{Month: time.July, Day: 1}: 1}
	settings := notify.Settings{Enabled: true, At: notify.Clock{Hour: 9}}

	denied := notify.NewScheduler(reg, NewPermission(nil), nil, false)
	denied.Rebuild(ctx, counts, settings, now)
	if scheduled, _ := reg.Scheduled(); len(scheduled) != 0 {
		t.Error("Without alert URLs nothing should be scheduled")
	}

	s := notify.NewScheduler(reg, NewPermission([]string{"generic://example.com"}), nil, false)
	if _, err := s.Rebuild(ctx, counts, settings, now); err != nil {
		t.Fatal(err)
	}
	if scheduled, _ := reg.Scheduled(); len(scheduled) != 1 {
		t.Errorf("Expected 1 scheduled, got %d", len(scheduled))
	}
}

func TestDeliverDue(t *testing.T) {
	st := openStore(t)
	now := time.Date(2024, 6, 15, 9, 0, 0, 0, time.Local)

	st.ReplaceAlerts([]store.Alert{
		{FireAt: now.Add(-time.Minute), Month: 6, Day: 15, Count: 1, Title: "due"},
		{FireAt: now.Add(-time.Second), Month: 6, Day: 15, Count: 1, Title: "broken"},
		{FireAt: now.Add(time.Hour), Month: 6, Day: 15, Count: 1, Title: "later"},
	})

	sender := &recordingSender{fail: map[string]bool{"broken": true}}
	d := NewDaemon(st, sender, time.Second, 0)
	d.now = func() time.Time { return now }

	n, err := d.DeliverDue(context.Background())
	if err != nil {
		t.Fatalf("DeliverDue failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Delivered %d, want 1", n)
	}
	if got := sender.titles(); len(got) != 1 || got[0] != "due" {
		t.Errorf("Sent %v", got)
	}

	// Delivered reminders are not sent again, failed ones are retried
	n, _ = d.DeliverDue(context.Background())
	if n != 0 || sender.calls != 3 {
		t.Errorf("Second pass delivered %d with %d calls, want 0 and 3", n, sender.calls)
	}

	day, ok, err := st.TakeLaunchDate(time.Local)
	if err != nil || !ok {
		t.Fatalf("Launch date should be set, ok=%v err=%v", ok, err)
	}
	if day.Month() != time.June || day.Day() != 15 {
		t.Errorf("Launch date = %v", day)
	}
}

func TestRescheduleDoesNotResend(t *testing.T) {
	st := openStore(t)
	reg := NewRegistry(st)
	ctx := context.Background()
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.Local)
	counts := map[notify.DayKey]int{{Month: time.June, Day: 15}: 2}
	settings := notify.Settings{Enabled: true, At: notify.Clock{Hour: 9}}

	s := notify.NewScheduler(reg, NewPermission([]string{"generic://example.com"}), nil, false)
	sender := &recordingSender{}
	d := NewDaemon(st, sender, time.Second, 0)

	for i := 0; i < 2; i++ {
		at := now.Add(time.Duration(i) * time.Minute)
		if _, err := s.Rebuild(ctx, counts, settings, at); err != nil {
			t.Fatalf("Rebuild failed: %v", err)
		}
		d.now = func() time.Time { return at }
		if _, err := d.DeliverDue(ctx); err != nil {
			t.Fatalf("DeliverDue failed: %v", err)
		}
	}

	if got := sender.titles(); len(got) != 1 || got[0] != "2 Photo Memories" {
		t.Errorf("Sent %v, want one reminder", got)
	}
}

func TestDaemonRunStops(t *testing.T) {
	defer goleak.VerifyNone(t)

	st := openStore(t)
	defer st.Close() // before the leak check
	st.ReplaceAlerts([]store.Alert{
		{FireAt: time.Now().Add(-time.Minute), Month: 1, Day: 1, Count: 1, Title: "one"},
	})

	sender := &recordingSender{}
	d := NewDaemon(st, sender, 10*time.Millisecond, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for len(sender.titles()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	if err := <-done; err != nil {
		t.Errorf("Run returned %v", err)
	}
	if got := sender.titles(); len(got) != 1 {
		t.Errorf("Expected exactly one delivery, got %v", got)
	}
}

func TestShoutrrrSenderRequiresURL(t *testing.T) {
	if _, err := NewShoutrrrSender(nil, time.Second); err == nil {
		t.Error("Expected an error without URLs")
	}
	if _, err := NewShoutrrrSender([]string{"not a url"}, time.Second); err == nil {
		t.Error("Expected an error for an invalid URL")
	}
}
