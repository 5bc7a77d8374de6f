package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/patrickmn/go-cache"
	"github.com/spf13/afero"
	"golang.org/x/sync/semaphore"

	"github.com/cwarden/memories/internal/logging"
)

// FavoriteStore persists the favorite flag, which plain files cannot carry.
type FavoriteStore interface {
	Favorites() (map[string]bool, error)
	SetFavorite(id string, favorite bool) error
}

type Options struct {
	Dirs     []string
	Workers  int
	CacheTTL time.Duration
	ReadOnly bool
}

// FileStore serves a directory-based media library. All fetches run on
// background goroutines and report back through callbacks.
type FileStore struct {
	fs        afero.Fs
	opts      Options
	favorites FavoriteStore
	previews  *cache.Cache
	sem       *semaphore.Weighted
	log       *log.Logger

	mu       sync.Mutex
	items    []Item
	requests map[Token]context.CancelFunc

	// closeMu guards sends on changes against Close.
	closeMu sync.RWMutex
	changes chan ChangeSet
	closed  bool

	nextToken atomic.Uint64
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func NewFileStore(fs afero.Fs, favorites FavoriteStore, opts Options) *FileStore {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 10 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &FileStore{
		fs:        fs,
		opts:      opts,
		favorites: favorites,
		previews:  cache.New(opts.CacheTTL, 2*opts.CacheTTL),
		sem:       semaphore.NewWeighted(int64(opts.Workers)),
		log:       logging.WithPrefix("media"),
		requests:  make(map[Token]context.CancelFunc),
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (s *FileStore) caps() Caps {
	if s.opts.ReadOnly {
		return Caps{}
	}
	return Caps{Delete: true, Edit: s.favorites != nil}
}

func (s *FileStore) scan() ([]Item, error) {
	favs := map[string]bool{}
	if s.favorites != nil {
		f, err := s.favorites.Favorites()
		if err != nil {
			return nil, fmt.Errorf("failed to load favorites: %w", err)
		}
		favs = f
	}
	return scanDirs(s.fs, s.opts.Dirs, favs, s.caps())
}

// Scan reads the library and makes the result the current snapshot.
func (s *FileStore) Scan() ([]Item, error) {
	items, err := s.scan()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.items = items
	s.mu.Unlock()

	s.log.Debug("library scanned", "items", len(items))
	return append([]Item(nil), items...), nil
}

// Items returns the current snapshot.
func (s *FileStore) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Item(nil), s.items...)
}

// Item looks up one item of the current snapshot.
func (s *FileStore) Item(id string) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.items {
		if item.ID == id {
			return item, nil
		}
	}
	return Item{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Changes returns the channel change sets are published on. Before the
// first call, rescans publish nothing.
func (s *FileStore) Changes() <-chan ChangeSet {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.changes == nil && !s.closed {
		s.changes = make(chan ChangeSet, 8)
	}
	return s.changes
}

// Rescan diffs the library against the current snapshot and publishes the
// difference when there is one.
func (s *FileStore) Rescan(ctx context.Context) (ChangeSet, error) {
	after, err := s.scan()
	if err != nil {
		return ChangeSet{}, err
	}

	s.mu.Lock()
	cs := diffItems(s.items, after)
	s.items = after
	s.mu.Unlock()

	if cs.Empty() {
		return cs, nil
	}

	s.log.Debug("library changed", "changes", len(cs.Changes), "inserted", len(cs.Inserted))

	s.closeMu.RLock()
	defer s.closeMu.RUnlock()
	if s.changes == nil || s.closed {
		return cs, nil
	}
	select {
	case s.changes <- cs:
	case <-ctx.Done():
		return cs, ctx.Err()
	case <-s.ctx.Done():
	}
	return cs, nil
}

// submit runs work on a background goroutine under its own context. done
// runs on that goroutine and is skipped for cancelled requests.
func (s *FileStore) submit(work func(ctx context.Context) (Content, error), done func(Result)) Token {
	tok := Token(s.nextToken.Add(1))
	ctx, cancel := context.WithCancel(s.ctx)

	s.mu.Lock()
	s.requests[tok] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.Cancel(tok)

		if err := s.sem.Acquire(ctx, 1); err != nil {
			return
		}
		content, err := work(ctx)
		s.sem.Release(1)

		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.log.Debug("fetch failed", "token", tok, "error", err)
		}
		if done != nil {
			done(Result{Token: tok, Content: content, Err: err})
		}
	}()

	return tok
}

// Cancel stops the request. Unknown or finished tokens are ignored.
func (s *FileStore) Cancel(tok Token) {
	s.mu.Lock()
	cancel, ok := s.requests[tok]
	delete(s.requests, tok)
	s.mu.Unlock()

	if ok {
		cancel()
	}
}

// InFlight reports how many requests have not completed yet.
func (s *FileStore) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func previewKey(item Item, size Size) string {
	return fmt.Sprintf("%s:%d:%d:%dx%d", item.ID, item.Created.UnixNano(), item.Size, size.Width, size.Height)
}

func (s *FileStore) FetchPreview(item Item, size Size, done func(Result)) Token {
	return s.submit(func(ctx context.Context) (Content, error) {
		return s.preview(ctx, item, size)
	}, done)
}

func (s *FileStore) preview(ctx context.Context, item Item, size Size) (Content, error) {
	if item.Kind == KindVideo {
		// No frame decoder; the display draws a placeholder.
		return Content{Preview: true, VideoPath: item.Path}, nil
	}

	key := previewKey(item, size)
	if cached, ok := s.previews.Get(key); ok {
		return cached.(Content), nil
	}

	f, err := s.open(item.Path)
	if err != nil {
		return Content{}, err
	}
	defer f.Close()

	img, err := decode(f)
	if err != nil {
		return Content{}, err
	}
	if err := ctx.Err(); err != nil {
		return Content{}, err
	}

	b := img.Bounds()
	content := Content{Image: scaleToFill(img, size), Preview: true, Width: b.Dx(), Height: b.Dy()}
	s.previews.SetDefault(key, content)
	return content, nil
}

// Preheat warms the preview cache for items in the background.
func (s *FileStore) Preheat(items []Item, size Size) {
	for _, item := range items {
		if item.Kind == KindVideo {
			continue
		}
		if _, ok := s.previews.Get(previewKey(item, size)); ok {
			continue
		}
		s.submit(func(ctx context.Context) (Content, error) {
			return s.preview(ctx, item, size)
		}, nil)
	}
}

func (s *FileStore) FetchFull(item Item, progress func(float64), done func(Result)) Token {
	return s.submit(func(ctx context.Context) (Content, error) {
		return s.full(ctx, item, progress)
	}, done)
}

func (s *FileStore) FetchLivePhoto(item Item, progress func(float64), done func(Result)) Token {
	return s.submit(func(ctx context.Context) (Content, error) {
		if item.Paired != "" {
			if _, err := s.fs.Stat(item.Paired); err != nil {
				return Content{}, s.statErr(item.Paired, err)
			}
		}
		content, err := s.full(ctx, item, progress)
		if err != nil {
			return Content{}, err
		}
		content.VideoPath = item.Paired
		return content, nil
	}, done)
}

func (s *FileStore) FetchVideo(item Item, progress func(float64), done func(Result)) Token {
	return s.submit(func(ctx context.Context) (Content, error) {
		if _, err := s.fs.Stat(item.Path); err != nil {
			return Content{}, s.statErr(item.Path, err)
		}
		if progress != nil {
			progress(1)
		}
		return Content{VideoPath: item.Path}, nil
	}, done)
}

func (s *FileStore) full(ctx context.Context, item Item, progress func(float64)) (Content, error) {
	f, err := s.open(item.Path)
	if err != nil {
		return Content{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Content{}, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	img, err := decode(&progressReader{r: f, total: info.Size(), progress: progress})
	if err != nil {
		return Content{}, err
	}
	if err := ctx.Err(); err != nil {
		return Content{}, err
	}

	b := img.Bounds()
	return Content{Image: img, Width: b.Dx(), Height: b.Dy()}, nil
}

func (s *FileStore) open(path string) (afero.File, error) {
	f, err := s.fs.Open(path)
	if err != nil {
		return nil, s.statErr(path, err)
	}
	return f, nil
}

func (s *FileStore) statErr(path string, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrAssetGone, path)
	}
	return fmt.Errorf("%w: %v", ErrFetchFailed, err)
}

// Data returns the original bytes of item, for sharing.
func (s *FileStore) Data(ctx context.Context, item Item) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, item.Path)
	if err != nil {
		return nil, s.statErr(item.Path, err)
	}
	return data, nil
}

// Mutate applies m to item in the background. The new state of the
// library is published through Changes, not through done.
func (s *FileStore) Mutate(m Mutation, item Item, done func(error)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := s.mutate(s.ctx, m, item)
		if err != nil {
			s.log.Warn("mutation failed", "mutation", m, "item", item.ID, "error", err)
		}
		if done != nil {
			done(err)
		}
	}()
}

func (s *FileStore) mutate(ctx context.Context, m Mutation, item Item) error {
	if s.opts.ReadOnly {
		return ErrReadOnly
	}

	switch m {
	case MutationDelete:
		if err := s.fs.Remove(item.Path); err != nil {
			return s.statErr(item.Path, err)
		}
		if item.Paired != "" {
			if err := s.fs.Remove(item.Paired); err != nil && !errors.Is(err, os.ErrNotExist) {
				s.log.Warn("failed to remove paired video", "path", item.Paired, "error", err)
			}
		}
		if s.favorites != nil && item.Favorite {
			if err := s.favorites.SetFavorite(item.ID, false); err != nil {
				s.log.Warn("failed to clear favorite", "item", item.ID, "error", err)
			}
		}

	case MutationToggleFavorite:
		if s.favorites == nil {
			return ErrReadOnly
		}
		if err := s.favorites.SetFavorite(item.ID, !item.Favorite); err != nil {
			return fmt.Errorf("failed to set favorite: %w", err)
		}

	default:
		return fmt.Errorf("unknown mutation: %d", m)
	}

	_, err := s.Rescan(ctx)
	return err
}

// Close cancels every request and waits for the background goroutines.
func (s *FileStore) Close() error {
	s.cancel()
	s.wg.Wait()

	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if !s.closed && s.changes != nil {
		close(s.changes)
	}
	s.closed = true
	return nil
}
