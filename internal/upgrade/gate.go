// Package upgrade decides whether full-resolution viewing is available.
package upgrade

import (
	"github.com/charmbracelet/log"

	"github.com/cwarden/memories/internal/logging"
)

// DefaultLimit is how many full-resolution views are free.
const DefaultLimit = 25

// Counter persists the entitlement state.
type Counter interface {
	HighQualityViews() (int, error)
	IncrementHighQualityViews() (int, error)
	Unlocked() (bool, error)
	SetUnlocked(unlocked bool) error
}

// Prompter asks the user whether to upgrade. reply must eventually be
// called exactly once.
type Prompter interface {
	PromptForUpgrade(index int, reply func(accepted bool))
}

type Gate struct {
	counter  Counter
	limit    int
	prompter Prompter
	log      *log.Logger
}

func NewGate(counter Counter, limit int, prompter Prompter) *Gate {
	if limit < 0 {
		limit = DefaultLimit
	}
	return &Gate{
		counter:  counter,
		limit:    limit,
		prompter: prompter,
		log:      logging.WithPrefix("upgrade"),
	}
}

// SetPrompter replaces the prompter. The UI is built after the gate.
func (g *Gate) SetPrompter(p Prompter) {
	g.prompter = p
}

// HighQualityAllowed reports whether the next full-resolution view is
// permitted. Storage errors deny.
func (g *Gate) HighQualityAllowed() bool {
	unlocked, err := g.counter.Unlocked()
	if err != nil {
		g.log.Warn("failed to read unlock state", "error", err)
		return false
	}
	if unlocked {
		return true
	}

	views, err := g.counter.HighQualityViews()
	if err != nil {
		g.log.Warn("failed to read view count", "error", err)
		return false
	}
	return views < g.limit
}

func (g *Gate) RecordHighQualityView() {
	n, err := g.counter.IncrementHighQualityViews()
	if err != nil {
		g.log.Warn("failed to record view", "error", err)
		return
	}
	g.log.Debug("high quality view recorded", "views", n, "limit", g.limit)
}

// PromptForUpgrade asks the prompter, declining when there is none. An
// accepted prompt unlocks full-resolution viewing for good.
func (g *Gate) PromptForUpgrade(index int, reply func(bool)) {
	if g.prompter == nil {
		reply(false)
		return
	}
	g.prompter.PromptForUpgrade(index, func(accepted bool) {
		if accepted {
			if err := g.counter.SetUnlocked(true); err != nil {
				g.log.Error("failed to unlock", "error", err)
				accepted = false
			} else {
				g.log.Info("upgrade accepted")
			}
		}
		reply(accepted)
	})
}

// Remaining returns the free views left, or -1 when unlocked.
func (g *Gate) Remaining() int {
	if unlocked, err := g.counter.Unlocked(); err == nil && unlocked {
		return -1
	}
	views, err := g.counter.HighQualityViews()
	if err != nil {
		return 0
	}
	return max(0, g.limit-views)
}
