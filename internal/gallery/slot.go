package gallery

import "github.com/cwarden/memories/internal/media"

// State is how much of an item a slot holds.
type State int

const (
	StateEmpty State = iota
	StatePreviewLoaded
	StateFullLoaded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePreviewLoaded:
		return "preview"
	case StateFullLoaded:
		return "full"
	case StateFailed:
		return "failed"
	default:
		return "empty"
	}
}

// Slot is the view state of one position in the gallery.
type Slot struct {
	Active       bool // inside the window since it was last evicted
	State        State
	PreviewToken media.Token
	FullToken    media.Token
	Progress     float64
	Content      media.Content
	Unavailable  bool // the full-resolution load failed
	Prompting    bool // waiting on the upgrade prompt
	Declined     bool // upgrade prompt refused
}

// IsEmpty reports whether the slot was never loaded or has been evicted.
func (s Slot) IsEmpty() bool {
	return !s.Active
}

// Loading reports whether any request is in flight.
func (s Slot) Loading() bool {
	return s.PreviewToken != 0 || s.FullToken != 0
}

// Actions are the item actions currently available.
type Actions struct {
	Share    bool
	Delete   bool
	Favorite bool
}
