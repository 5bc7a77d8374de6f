// Package gallery keeps a sliding window of loaded media around the item
// being viewed.
//
// A Controller is driven from a single goroutine, the UI loop. Fetch
// completions arrive on background goroutines and are handed to Dispatch,
// which must queue them onto that loop rather than run them inline.
package gallery

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/cwarden/memories/internal/logging"
	"github.com/cwarden/memories/internal/media"
)

var (
	ErrInvalidIndex    = errors.New("gallery: invalid index")
	ErrClosed          = errors.New("gallery: closed")
	ErrNotPermitted    = errors.New("gallery: action not permitted")
	ErrEmptyCollection = errors.New("gallery: no items")
)

// Fetcher loads media in the background. Callbacks may run on any
// goroutine.
type Fetcher interface {
	FetchPreview(item media.Item, size media.Size, done func(media.Result)) media.Token
	FetchFull(item media.Item, progress func(float64), done func(media.Result)) media.Token
	FetchLivePhoto(item media.Item, progress func(float64), done func(media.Result)) media.Token
	FetchVideo(item media.Item, progress func(float64), done func(media.Result)) media.Token
	Cancel(tok media.Token)
}

// Mutator changes the library. Success is observed through
// OnLibraryChanged, only failures are reported to done.
type Mutator interface {
	Mutate(m media.Mutation, item media.Item, done func(error))
}

// Gate decides whether full-resolution loads are allowed.
type Gate interface {
	HighQualityAllowed() bool
	RecordHighQualityView()
	PromptForUpgrade(index int, reply func(accepted bool))
}

// Display is told about every slot change.
type Display interface {
	OnSlotStateChanged(index int, slot Slot)
	OnCloseRequested()
	OnActionFailed(err error)
}

// Source supplies the original bytes of an item.
type Source interface {
	Data(ctx context.Context, item media.Item) ([]byte, error)
}

type preheater interface {
	Preheat(items []media.Item, size media.Size)
}

// Dispatch runs fn on the UI loop.
type Dispatch func(fn func())

type Deps struct {
	Fetcher  Fetcher
	Mutator  Mutator
	Gate     Gate
	Display  Display
	Dispatch Dispatch
	Source   Source
}

type Controller struct {
	items   []media.Item
	slots   []Slot
	current int
	closed  bool

	previewSize media.Size
	deps        Deps
	log         *log.Logger
}

// New creates a controller over items. Nothing is loaded until the first
// SetCurrentIndex.
func New(items []media.Item, deps Deps, previewSize media.Size) (*Controller, error) {
	if len(items) == 0 {
		return nil, ErrEmptyCollection
	}
	if deps.Fetcher == nil || deps.Gate == nil || deps.Display == nil || deps.Dispatch == nil {
		return nil, fmt.Errorf("gallery: missing collaborator")
	}
	if previewSize.Width <= 0 || previewSize.Height <= 0 {
		previewSize = media.DefaultPreviewSize
	}

	return &Controller{
		items:       append([]media.Item(nil), items...),
		slots:       make([]Slot, len(items)),
		current:     -1,
		previewSize: previewSize,
		deps:        deps,
		log:         logging.WithPrefix("gallery"),
	}, nil
}

func (c *Controller) Len() int {
	return len(c.items)
}

// Current returns the current index, -1 before the first SetCurrentIndex.
func (c *Controller) Current() int {
	return c.current
}

func (c *Controller) Closed() bool {
	return c.closed
}

func (c *Controller) Item(index int) (media.Item, error) {
	if err := c.check(index); err != nil {
		return media.Item{}, err
	}
	return c.items[index], nil
}

func (c *Controller) Slot(index int) (Slot, error) {
	if err := c.check(index); err != nil {
		return Slot{}, err
	}
	return c.slots[index], nil
}

func (c *Controller) check(index int) error {
	if c.closed {
		return ErrClosed
	}
	if index < 0 || index >= len(c.items) {
		return fmt.Errorf("%w: %d of %d", ErrInvalidIndex, index, len(c.items))
	}
	return nil
}

func (c *Controller) window(i int) (lo, hi int) {
	return max(0, i-1), min(len(c.items)-1, i+1)
}

// SetCurrentIndex moves the window to i. Repeating the current index does
// nothing.
func (c *Controller) SetCurrentIndex(i int) error {
	if err := c.check(i); err != nil {
		return err
	}
	if i == c.current {
		return nil
	}
	c.moveTo(i)
	return nil
}

func (c *Controller) moveTo(i int) {
	prev := c.current
	c.current = i
	lo, hi := c.window(i)

	for idx := range c.slots {
		if (idx < lo || idx > hi) && c.slots[idx].Active {
			c.cancel(idx)
			c.evict(idx, true)
		}
	}

	// A former current item stays as a neighbor with its preview only
	if prev >= lo && prev <= hi && prev != i {
		c.demote(prev)
	}

	for idx := lo; idx <= hi; idx++ {
		c.ensureLoaded(idx, idx == i, false)
	}

	if p, ok := c.deps.Fetcher.(preheater); ok {
		var ahead []media.Item
		for idx := hi + 1; idx <= min(len(c.items)-1, hi+2); idx++ {
			ahead = append(ahead, c.items[idx])
		}
		if len(ahead) > 0 {
			p.Preheat(ahead, c.previewSize)
		}
	}

	c.log.Debug("window moved", "current", i, "from", lo, "to", hi)
}

// EnsureLoaded loads the preview for index and, when full is set, the full
// resolution item. index must lie in the window and only the current index
// may load in full. A failed or declined slot is retried.
func (c *Controller) EnsureLoaded(index int, full bool) error {
	if err := c.check(index); err != nil {
		return err
	}
	if c.current < 0 {
		return fmt.Errorf("%w: no current index", ErrInvalidIndex)
	}
	if lo, hi := c.window(c.current); index < lo || index > hi {
		return fmt.Errorf("%w: %d outside window", ErrInvalidIndex, index)
	}
	if full && index != c.current {
		return fmt.Errorf("%w: %d is not current", ErrInvalidIndex, index)
	}
	c.ensureLoaded(index, full, true)
	return nil
}

func (c *Controller) ensureLoaded(index int, full, retry bool) {
	s := &c.slots[index]

	if retry && (s.State == StateFailed || s.Declined) {
		c.cancel(index)
		*s = Slot{}
	}

	if !s.Active {
		*s = Slot{Active: true}
	}

	if s.State == StateEmpty && s.PreviewToken == 0 {
		item := c.items[index]
		s.PreviewToken = c.deps.Fetcher.FetchPreview(item, c.previewSize, func(r media.Result) {
			c.deps.Dispatch(func() { c.previewDone(index, r) })
		})
		c.notify(index)
	}

	if full {
		c.upgrade(index)
	}
}

func (c *Controller) upgrade(index int) {
	s := &c.slots[index]
	if s.State == StateFullLoaded || s.FullToken != 0 || s.Prompting || s.Declined || s.Unavailable {
		return
	}

	if !c.deps.Gate.HighQualityAllowed() {
		s.Prompting = true
		c.notify(index)
		id := c.items[index].ID
		c.deps.Gate.PromptForUpgrade(index, func(accepted bool) {
			c.deps.Dispatch(func() { c.upgradeReply(index, id, accepted) })
		})
		return
	}

	c.fetchFull(index)
}

func (c *Controller) upgradeReply(index int, id string, accepted bool) {
	if c.closed || index >= len(c.slots) || c.items[index].ID != id || !c.slots[index].Prompting {
		return
	}

	s := &c.slots[index]
	s.Prompting = false
	if index != c.current {
		c.notify(index)
		return
	}
	if !accepted {
		s.Declined = true
		c.notify(index)
		return
	}
	c.fetchFull(index)
}

func (c *Controller) fetchFull(index int) {
	item := c.items[index]

	// tok is read on the UI loop, after the fetch call has returned
	var tok media.Token
	progress := func(p float64) {
		c.deps.Dispatch(func() { c.fullProgress(index, tok, p) })
	}
	done := func(r media.Result) {
		c.deps.Dispatch(func() { c.fullDone(index, r) })
	}

	switch item.Kind {
	case media.KindLivePhoto:
		tok = c.deps.Fetcher.FetchLivePhoto(item, progress, done)
	case media.KindVideo:
		tok = c.deps.Fetcher.FetchVideo(item, progress, done)
	default:
		tok = c.deps.Fetcher.FetchFull(item, progress, done)
	}

	s := &c.slots[index]
	s.FullToken = tok
	s.Progress = 0
	c.notify(index)
}

func (c *Controller) previewDone(index int, r media.Result) {
	if c.closed || r.Token == 0 || index >= len(c.slots) || c.slots[index].PreviewToken != r.Token {
		return
	}

	s := &c.slots[index]
	s.PreviewToken = 0

	switch {
	case r.Err != nil:
		c.log.Warn("preview failed", "index", index, "error", r.Err)
		if s.State == StateEmpty {
			s.State = StateFailed
		}
	case s.State == StateEmpty:
		s.State = StatePreviewLoaded
		s.Content = r.Content
	case s.State == StateFailed && s.Content.Image == nil && s.Content.VideoPath == "":
		// The full load failed first; show the preview under the indicator
		s.Content = r.Content
	}
	c.notify(index)
}

func (c *Controller) fullProgress(index int, tok media.Token, p float64) {
	if c.closed || tok == 0 || index >= len(c.slots) || c.slots[index].FullToken != tok {
		return
	}
	c.slots[index].Progress = min(max(p, 0), 1)
	c.notify(index)
}

func (c *Controller) fullDone(index int, r media.Result) {
	if c.closed || r.Token == 0 || index >= len(c.slots) || c.slots[index].FullToken != r.Token {
		return
	}

	s := &c.slots[index]
	s.FullToken = 0

	if r.Err != nil {
		c.log.Warn("full load failed", "index", index, "item", c.items[index].ID, "error", r.Err)
		s.State = StateFailed
		s.Unavailable = true
		s.Progress = 0
		c.notify(index)
		return
	}

	s.State = StateFullLoaded
	s.Content = r.Content
	s.Progress = 1
	c.deps.Gate.RecordHighQualityView()
	c.notify(index)
}

// demote drops whatever full-resolution work is pending for index.
func (c *Controller) demote(index int) {
	s := &c.slots[index]
	if s.FullToken != 0 {
		c.deps.Fetcher.Cancel(s.FullToken)
		s.FullToken = 0
		s.Progress = 0
	}
	s.Prompting = false
	s.Declined = false
	c.notify(index)
}

// CancelLoad cancels every request in flight for index.
func (c *Controller) CancelLoad(index int) error {
	if err := c.check(index); err != nil {
		return err
	}
	if c.cancel(index) {
		c.notify(index)
	}
	return nil
}

func (c *Controller) cancel(index int) bool {
	s := &c.slots[index]
	cancelled := false
	if s.PreviewToken != 0 {
		c.deps.Fetcher.Cancel(s.PreviewToken)
		s.PreviewToken = 0
		cancelled = true
	}
	if s.FullToken != 0 {
		c.deps.Fetcher.Cancel(s.FullToken)
		s.FullToken = 0
		s.Progress = 0
		cancelled = true
	}
	s.Prompting = false
	return cancelled
}

// Evict releases the content held for index, cancelling its requests.
func (c *Controller) Evict(index int) error {
	if err := c.check(index); err != nil {
		return err
	}
	c.cancel(index)
	c.evict(index, true)
	return nil
}

func (c *Controller) evict(index int, notify bool) {
	wasActive := c.slots[index].Active
	c.slots[index] = Slot{}
	if notify && wasActive {
		c.notify(index)
	}
}

// OnLibraryChanged applies a library change. Deleting an item rebuilds the
// window around the clamped current index; deleting every item closes the
// gallery. Metadata changes only update the items.
func (c *Controller) OnLibraryChanged(cs media.ChangeSet) error {
	if c.closed {
		return ErrClosed
	}

	kept := make([]media.Item, 0, len(c.items))
	var updated []int
	deleted := false

	for _, item := range c.items {
		ch, ok := cs.Details(item.ID)
		switch {
		case !ok:
			kept = append(kept, item)
		case ch.Deleted:
			deleted = true
		default:
			updated = append(updated, len(kept))
			kept = append(kept, ch.After)
		}
	}

	if len(kept) == 0 {
		c.log.Info("all items removed, closing")
		c.shutdown()
		c.deps.Display.OnCloseRequested()
		return nil
	}

	if !deleted {
		c.items = kept
		for _, idx := range updated {
			if c.slots[idx].Active || idx == c.current {
				c.notify(idx)
			}
		}
		return nil
	}

	for idx := range c.slots {
		c.cancel(idx)
	}
	c.items = kept
	c.slots = make([]Slot, len(kept))
	c.log.Debug("items deleted, rebuilding window", "remaining", len(kept))

	if c.current < 0 {
		return nil
	}
	c.current = min(c.current, len(kept)-1)
	i := c.current
	c.current = -1
	c.moveTo(i)
	return nil
}

// RequestDelete asks the library to delete the item at index.
func (c *Controller) RequestDelete(index int) error {
	return c.mutate(index, media.MutationDelete)
}

// RequestToggleFavorite asks the library to flip the favorite flag.
func (c *Controller) RequestToggleFavorite(index int) error {
	return c.mutate(index, media.MutationToggleFavorite)
}

func (c *Controller) mutate(index int, m media.Mutation) error {
	if err := c.check(index); err != nil {
		return err
	}
	if c.deps.Mutator == nil {
		return ErrNotPermitted
	}

	item := c.items[index]
	if (m == media.MutationDelete && !item.Caps.Delete) || (m == media.MutationToggleFavorite && !item.Caps.Edit) {
		return fmt.Errorf("%w: %s", ErrNotPermitted, m)
	}

	c.deps.Mutator.Mutate(m, item, func(err error) {
		if err != nil {
			c.deps.Dispatch(func() { c.deps.Display.OnActionFailed(err) })
		}
	})
	return nil
}

// Actions reports what can be done with the current item. Everything
// waits for the full-resolution load.
func (c *Controller) Actions() Actions {
	if c.closed || c.current < 0 {
		return Actions{}
	}
	if c.slots[c.current].State != StateFullLoaded {
		return Actions{}
	}
	item := c.items[c.current]
	return Actions{
		Share:    c.deps.Source != nil,
		Delete:   item.Caps.Delete && c.deps.Mutator != nil,
		Favorite: item.Caps.Edit && c.deps.Mutator != nil,
	}
}

// ShareData returns the original bytes of the item at index.
func (c *Controller) ShareData(ctx context.Context, index int) (media.Item, []byte, error) {
	if err := c.check(index); err != nil {
		return media.Item{}, nil, err
	}
	if c.deps.Source == nil {
		return media.Item{}, nil, ErrNotPermitted
	}
	item := c.items[index]
	data, err := c.deps.Source.Data(ctx, item)
	if err != nil {
		return item, nil, err
	}
	return item, data, nil
}

// Close cancels everything in flight. Later calls fail with ErrClosed.
func (c *Controller) Close() {
	if c.closed {
		return
	}
	c.shutdown()
}

func (c *Controller) shutdown() {
	for idx := range c.slots {
		c.cancel(idx)
	}
	c.items = nil
	c.slots = nil
	c.current = -1
	c.closed = true
}

func (c *Controller) notify(index int) {
	c.deps.Display.OnSlotStateChanged(index, c.slots[index])
}
