package media

import (
	"errors"
	"image"
	"time"
)

var (
	// ErrFetchFailed is reported when a file exists but cannot be decoded or read.
	ErrFetchFailed = errors.New("media: fetch failed")
	// ErrAssetGone is reported when the item vanished from the library mid-session.
	ErrAssetGone = errors.New("media: asset gone")
	// ErrNotFound is returned for unknown item IDs.
	ErrNotFound = errors.New("media: not found")
	// ErrReadOnly is returned by mutations on a read-only library.
	ErrReadOnly = errors.New("media: library is read-only")
)

type Kind int

const (
	KindPhoto Kind = iota
	KindLivePhoto
	KindVideo
)

func (k Kind) String() string {
	switch k {
	case KindLivePhoto:
		return "live"
	case KindVideo:
		return "video"
	default:
		return "photo"
	}
}

// Caps are the mutations the library permits on an item.
type Caps struct {
	Delete bool
	Edit   bool
}

type Item struct {
	ID       string
	Path     string
	Paired   string // video half of a live photo
	Created  time.Time
	Favorite bool
	Kind     Kind
	Caps     Caps
	Size     int64
}

// Year is the creation year shown next to each memory.
func (i Item) Year() int {
	return i.Created.Year()
}

// Size is a target box for previews.
type Size struct {
	Width  int
	Height int
}

// Token identifies one in-flight fetch. Zero means no request.
type Token uint64

// Content is what a completed fetch delivers.
type Content struct {
	Image     image.Image
	VideoPath string
	Preview   bool
	Width     int
	Height    int
}

type Result struct {
	Token   Token
	Content Content
	Err     error
}

type Mutation int

const (
	MutationDelete Mutation = iota
	MutationToggleFavorite
)

func (m Mutation) String() string {
	if m == MutationDelete {
		return "delete"
	}
	return "toggle-favorite"
}

// Change describes what happened to one item between two library snapshots.
type Change struct {
	Deleted bool
	After   Item
}

// ChangeSet is delivered whenever the library changes. Items that are not
// mentioned did not change.
type ChangeSet struct {
	Changes  map[string]Change
	Inserted []Item
}

// Details returns the change recorded for id, if any.
func (cs ChangeSet) Details(id string) (Change, bool) {
	c, ok := cs.Changes[id]
	return c, ok
}

// Empty reports whether the change set carries nothing.
func (cs ChangeSet) Empty() bool {
	return len(cs.Changes) == 0 && len(cs.Inserted) == 0
}
