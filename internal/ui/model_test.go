package ui

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/cwarden/memories/internal/config"
	"github.com/cwarden/memories/internal/gallery"
	"github.com/cwarden/memories/internal/logging"
	"github.com/cwarden/memories/internal/media"
	"github.com/cwarden/memories/internal/store"
	"github.com/cwarden/memories/internal/upgrade"
)

// fakeLibrary completes every request immediately.
type fakeLibrary struct {
	next      media.Token
	changes   chan media.ChangeSet
	mutations []string
	mutateErr error
}

func newFakeLibrary() *fakeLibrary {
	return &fakeLibrary{changes: make(chan media.ChangeSet, 1)}
}

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	return img
}

func (l *fakeLibrary) FetchPreview(item media.Item, size media.Size, done func(media.Result)) media.Token {
	l.next++
	done(media.Result{Token: l.next, Content: media.Content{Image: testImage(), Preview: true}})
	return l.next
}

func (l *fakeLibrary) full(progress func(float64), done func(media.Result)) media.Token {
	l.next++
	progress(1)
	done(media.Result{Token: l.next, Content: media.Content{Image: testImage()}})
	return l.next
}

func (l *fakeLibrary) FetchFull(item media.Item, progress func(float64), done func(media.Result)) media.Token {
	return l.full(progress, done)
}

func (l *fakeLibrary) FetchLivePhoto(item media.Item, progress func(float64), done func(media.Result)) media.Token {
	return l.full(progress, done)
}

func (l *fakeLibrary) FetchVideo(item media.Item, progress func(float64), done func(media.Result)) media.Token {
	return l.full(progress, done)
}

func (l *fakeLibrary) Cancel(tok media.Token) {}

func (l *fakeLibrary) Mutate(m media.Mutation, item media.Item, done func(error)) {
	l.mutations = append(l.mutations, m.String()+":"+item.ID)
	done(l.mutateErr)
}

func (l *fakeLibrary) Data(ctx context.Context, item media.Item) ([]byte, error) {
	return []byte("original"), nil
}

func (l *fakeLibrary) Changes() <-chan media.ChangeSet {
	return l.changes
}

var testDay = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func testItems(n int) []media.Item {
	items := make([]media.Item, n)
	for i := range items {
		items[i] = media.Item{
			ID:      "item" + string(rune('0'+i)),
			Path:    "/photos/img" + string(rune('0'+i)) + ".png",
			Created: time.Date(2020-i, 6, 15, 10, 0, 0, 0, time.UTC),
			Kind:    media.KindPhoto,
			Caps:    media.Caps{Delete: true, Edit: true},
		}
	}
	return items
}

type fixture struct {
	m       *Model
	library *fakeLibrary
	gate    *upgrade.Gate
	export  afero.Fs
}

func newFixture(t *testing.T, n, limit int) *fixture {
	t.Helper()

	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := config.DefaultConfig()
	cfg.ExportDir = "/export"

	f := &fixture{
		library: newFakeLibrary(),
		gate:    upgrade.NewGate(st, limit, nil),
		export:  afero.NewMemMapFs(),
	}
	m, err := NewModel(cfg, f.library, f.gate, testItems(n), testDay, f.export)
	if err != nil {
		t.Fatalf("NewModel failed: %v", err)
	}
	t.Cleanup(m.Close)
	f.m = m

	m.Init()
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	f.drain()
	return f
}

// drain runs every queued completion on the test goroutine.
func (f *fixture) drain() {
	for {
		select {
		case fn := <-f.m.queue:
			f.m.Update(dispatchMsg{fn: fn})
		default:
			return
		}
	}
}

func (f *fixture) press(k string) tea.Cmd {
	var msg tea.KeyMsg
	switch k {
	case "left":
		msg = tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		msg = tea.KeyMsg{Type: tea.KeyRight}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	}
	_, cmd := f.m.Update(msg)
	f.drain()
	return cmd
}

func (f *fixture) slot(t *testing.T) gallery.Slot {
	t.Helper()
	s, err := f.m.controller.Slot(f.m.controller.Current())
	if err != nil {
		t.Fatalf("Slot failed: %v", err)
	}
	return s
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestNewModelEmpty(t *testing.T) {
	st, _ := store.Open(":memory:")
	defer st.Close()

	_, err := NewModel(config.DefaultConfig(), newFakeLibrary(), upgrade.NewGate(st, 1, nil), nil, testDay, afero.NewMemMapFs())
	if !errors.Is(err, gallery.ErrEmptyCollection) {
		t.Errorf("Expected ErrEmptyCollection, got %v", err)
	}
}

func TestNavigation(t *testing.T) {
	f := newFixture(t, 4, 100)

	tests := []struct {
		key     string
		current int
	}{
		{"h", 0},
		{"l", 1},
		{"right", 2},
		{"left", 1},
		{"G", 3},
		{"l", 3},
		{"g", 0},
	}

	for _, tt := range tests {
		f.press(tt.key)
		if got := f.m.controller.Current(); got != tt.current {
			t.Errorf("after %q: current = %d, want %d", tt.key, got, tt.current)
		}
	}
}

func TestViewShowsMemory(t *testing.T) {
	f := newFixture(t, 3, 100)

	if s := f.slot(t); s.State != gallery.StateFullLoaded {
		t.Fatalf("Current slot state = %v, want full", s.State)
	}

	view := f.m.View()
	for _, want := range []string{"4 years ago", "1/3", "▀", "? for help"} {
		if !strings.Contains(view, want) {
			t.Errorf("View missing %q", want)
		}
	}

	f.press("?")
	if !strings.Contains(f.m.View(), "toggle favorite") {
		t.Error("Help should list the favorite binding")
	}
}

func TestUpgradePromptFlow(t *testing.T) {
	f := newFixture(t, 3, 0)

	if f.m.prompt == nil {
		t.Fatal("Expected an upgrade prompt")
	}
	if !strings.Contains(f.m.View(), "Upgrade") {
		t.Error("View should show the upgrade question")
	}

	// Other keys wait for the answer
	f.press("l")
	if f.m.controller.Current() != 0 {
		t.Error("Navigation should wait for the prompt")
	}

	f.press("n")
	if f.m.prompt != nil {
		t.Error("Prompt should be dismissed")
	}
	if s := f.slot(t); !s.Declined || s.State != gallery.StatePreviewLoaded {
		t.Errorf("After decline: %+v", s)
	}

	f.press("l")
	if f.m.prompt == nil {
		t.Fatal("Next item should prompt again")
	}
	f.press("y")
	if s := f.slot(t); s.State != gallery.StateFullLoaded {
		t.Errorf("After accepting: state = %v, want full", s.State)
	}
	if f.gate.Remaining() != -1 {
		t.Error("Accepting should unlock")
	}
}

func TestDeleteConfirmAndClose(t *testing.T) {
	f := newFixture(t, 1, 100)

	f.press("d")
	if !f.m.confirmDelete {
		t.Fatal("Delete should ask for confirmation")
	}
	f.press("n")
	if len(f.library.mutations) != 0 {
		t.Fatal("Declined delete should not mutate")
	}

	f.press("d")
	f.press("y")
	if len(f.library.mutations) != 1 || f.library.mutations[0] != "delete:item0" {
		t.Fatalf("mutations = %v", f.library.mutations)
	}

	_, cmd := f.m.Update(libraryChangedMsg{changes: media.ChangeSet{Changes: map[string]media.Change{
		"item0": {Deleted: true},
	}}})
	if !isQuit(cmd) {
		t.Error("Deleting the last memory should quit")
	}
	if !f.m.controller.Closed() {
		t.Error("Controller should be closed")
	}
}

func TestFavoriteFailureShowsMessage(t *testing.T) {
	f := newFixture(t, 2, 100)
	f.library.mutateErr = media.ErrReadOnly

	f.press("f")
	if len(f.library.mutations) != 1 || f.library.mutations[0] != "toggle-favorite:item0" {
		t.Fatalf("mutations = %v", f.library.mutations)
	}
	if !strings.Contains(f.m.message, "Action failed") {
		t.Errorf("message = %q", f.m.message)
	}
}

func TestShareExports(t *testing.T) {
	f := newFixture(t, 2, 100)

	cmd := f.press("s")
	if cmd == nil {
		t.Fatal("Share should return an export command")
	}
	msg, ok := cmd().(exportedMsg)
	if !ok || msg.err != nil {
		t.Fatalf("export = %+v", msg)
	}
	if msg.path != "/export/img0.png" {
		t.Errorf("exported to %s", msg.path)
	}
	data, err := afero.ReadFile(f.export, msg.path)
	if err != nil || string(data) != "original" {
		t.Errorf("exported data = %q, %v", data, err)
	}
}

func TestInitLogsFailure(t *testing.T) {
	var buf bytes.Buffer
	logging.SetOutput(&buf, log.DebugLevel)
	defer logging.SetOutput(io.Discard, log.InfoLevel)

	st, _ := store.Open(":memory:")
	defer st.Close()
	m, err := NewModel(config.DefaultConfig(), newFakeLibrary(), upgrade.NewGate(st, 1, nil), testItems(1), testDay, afero.NewMemMapFs())
	if err != nil {
		t.Fatal(err)
	}
	m.Close()

	m.Init()
	if !strings.Contains(buf.String(), "failed to open first memory") {
		t.Errorf("Init should log the failure, got %q", buf.String())
	}
}

func TestQuit(t *testing.T) {
	f := newFixture(t, 2, 100)

	if !isQuit(f.press("q")) {
		t.Error("q should quit")
	}
	select {
	case <-f.m.done:
	default:
		t.Error("Quitting should release dispatchers")
	}
}

func TestKeyMapFromConfig(t *testing.T) {
	km := newKeyMap(map[string]string{"n": "next", "p": "prev", "x": "quit"})

	if !key.Matches(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")}, km.Next) {
		t.Error("n should move to the next memory")
	}
	if !key.Matches(tea.KeyMsg{Type: tea.KeyRight}, km.Next) {
		t.Error("right arrow should always move to the next memory")
	}
	if !key.Matches(tea.KeyMsg{Type: tea.KeyCtrlC}, km.Quit) {
		t.Error("ctrl+c should always quit")
	}
	if key.Matches(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("l")}, km.Next) {
		t.Error("l is not bound in this map")
	}
}

func TestHalfBlocks(t *testing.T) {
	out := halfBlocks(testImage(), 2, 1)
	if n := strings.Count(out, "▀"); n != 2 {
		t.Errorf("Expected 2 cells, got %d in %q", n, out)
	}

	out = halfBlocks(testImage(), 4, 10)
	if lines := strings.Count(out, "\n") + 1; lines != 2 {
		t.Errorf("Expected 2 rows for a square image 4 cells wide, got %d", lines)
	}

	if halfBlocks(testImage(), 0, 5) != "" {
		t.Error("Zero width should render nothing")
	}
}
