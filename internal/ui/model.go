package ui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/afero"

	"github.com/cwarden/memories/internal/config"
	"github.com/cwarden/memories/internal/gallery"
	"github.com/cwarden/memories/internal/logging"
	"github.com/cwarden/memories/internal/media"
	"github.com/cwarden/memories/internal/upgrade"
)

// Library is the media store behind the gallery.
type Library interface {
	gallery.Fetcher
	gallery.Mutator
	gallery.Source
	Changes() <-chan media.ChangeSet
}

// Entitlements gates full-resolution viewing.
type Entitlements interface {
	gallery.Gate
	SetPrompter(p upgrade.Prompter)
	Remaining() int
}

type pendingPrompt struct {
	index int
	reply func(bool)
}

type Model struct {
	// Core components
	config     *config.Config
	library    Library
	gate       Entitlements
	controller *gallery.Controller
	export     afero.Fs

	// Completions from background fetches, run on the UI loop
	queue    chan func()
	done     chan struct{}
	doneOnce sync.Once

	// View state
	day      time.Time
	width    int
	height   int
	showHelp bool
	closing  bool

	prompt        *pendingPrompt
	confirmDelete bool

	message   string
	messageID int

	// Widgets
	keys     keyMap
	help     help.Model
	progress progress.Model
	spinner  spinner.Model

	// Styles
	styles Styles
}

type Styles struct {
	Normal   lipgloss.Style
	Header   lipgloss.Style
	Favorite lipgloss.Style
	Help     lipgloss.Style
	Message  lipgloss.Style
	Error    lipgloss.Style
	Frame    lipgloss.Style
}

// NewModel builds the gallery over items, the memories of day. It fails
// with gallery.ErrEmptyCollection when there is nothing to show.
func NewModel(cfg *config.Config, library Library, gate Entitlements, items []media.Item, day time.Time, export afero.Fs) (*Model, error) {
	fill := "39"
	if c := cfg.Colors["progress"]; c != "" {
		fill = c
	}

	m := &Model{
		config:   cfg,
		library:  library,
		gate:     gate,
		export:   export,
		queue:    make(chan func(), 64),
		done:     make(chan struct{}),
		day:      day,
		keys:     newKeyMap(cfg.KeyBindings),
		help:     help.New(),
		progress: progress.New(progress.WithSolidFill(fill), progress.WithoutPercentage()),
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		styles:   DefaultStyles(cfg.Colors),
	}

	controller, err := gallery.New(items, gallery.Deps{
		Fetcher:  library,
		Mutator:  library,
		Gate:     gate,
		Display:  m,
		Dispatch: m.dispatch,
		Source:   library,
	}, media.Size{Width: cfg.PreviewSize, Height: cfg.PreviewSize})
	if err != nil {
		return nil, err
	}
	m.controller = controller
	gate.SetPrompter(m)

	return m, nil
}

func DefaultStyles(colors map[string]string) Styles {
	color := func(name, def string) lipgloss.Color {
		if c, ok := colors[name]; ok && c != "" {
			return lipgloss.Color(c)
		}
		return lipgloss.Color(def)
	}

	return Styles{
		Normal: lipgloss.NewStyle().
			Foreground(color("normal", "252")),
		Header: lipgloss.NewStyle().
			Foreground(color("header", "220")).
			Bold(true),
		Favorite: lipgloss.NewStyle().
			Foreground(color("favorite", "196")).
			Bold(true),
		Help: lipgloss.NewStyle().
			Foreground(color("help", "241")),
		Message: lipgloss.NewStyle().
			Foreground(color("message", "220")).
			Background(lipgloss.Color("235")).
			Padding(0, 1),
		Error: lipgloss.NewStyle().
			Foreground(color("error", "160")).
			Bold(true),
		Frame: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")),
	}
}

// dispatch hands fn to the UI loop. It gives up once the model is closed.
func (m *Model) dispatch(fn func()) {
	select {
	case m.queue <- fn:
	case <-m.done:
	}
}

// Close releases goroutines blocked in dispatch. Safe to call repeatedly.
func (m *Model) Close() {
	m.doneOnce.Do(func() {
		close(m.done)
	})
	m.controller.Close()
}

func (m *Model) Init() tea.Cmd {
	if err := m.controller.SetCurrentIndex(0); err != nil {
		logging.Warn("failed to open first memory", "error", err)
	}
	return tea.Batch(
		tea.EnterAltScreen,
		m.waitForDispatch(),
		m.waitForChange(),
		m.spinner.Tick,
	)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.progress.Width = max(10, msg.Width/2)
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case dispatchMsg:
		msg.fn()
		return m, m.after(m.waitForDispatch())

	case libraryChangedMsg:
		if err := m.controller.OnLibraryChanged(msg.changes); err != nil && !errors.Is(err, gallery.ErrClosed) {
			logging.Warn("failed to apply library change", "error", err)
		}
		return m, m.after(m.waitForChange())

	case exportedMsg:
		if msg.err != nil {
			return m, m.showMessage(fmt.Sprintf("Export failed: %v", msg.err))
		}
		return m, m.showMessage("Exported to " + msg.path)

	case messageTimeoutMsg:
		if msg.id == m.messageID {
			m.message = ""
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// after quits once the controller asked to close, and otherwise continues
// with next.
func (m *Model) after(next tea.Cmd) tea.Cmd {
	if m.closing {
		m.Close()
		return tea.Quit
	}
	return next
}

func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.prompt != nil {
		return m.handlePromptKeys(msg)
	}
	if m.confirmDelete {
		return m.handleConfirmKeys(msg)
	}

	cur := m.controller.Current()
	actions := m.controller.Actions()

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.Close()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp

	case key.Matches(msg, m.keys.Next):
		m.moveTo(cur + 1)

	case key.Matches(msg, m.keys.Prev):
		m.moveTo(cur - 1)

	case key.Matches(msg, m.keys.First):
		m.moveTo(0)

	case key.Matches(msg, m.keys.Last):
		m.moveTo(m.controller.Len() - 1)

	case key.Matches(msg, m.keys.Retry):
		if err := m.controller.EnsureLoaded(cur, true); err != nil {
			return m, m.showMessage(err.Error())
		}

	case key.Matches(msg, m.keys.Favorite):
		if !actions.Favorite {
			return m, m.showMessage("Favorite is not available yet")
		}
		if err := m.controller.RequestToggleFavorite(cur); err != nil {
			return m, m.showMessage(err.Error())
		}

	case key.Matches(msg, m.keys.Delete):
		if !actions.Delete {
			return m, m.showMessage("Delete is not available yet")
		}
		if m.config.ConfirmDelete {
			m.confirmDelete = true
			return m, nil
		}
		return m, m.requestDelete()

	case key.Matches(msg, m.keys.Share):
		if !actions.Share {
			return m, m.showMessage("Export is not available yet")
		}
		return m, m.share(cur)
	}

	return m, m.after(nil)
}

func (m *Model) moveTo(index int) {
	if index < 0 || index >= m.controller.Len() {
		return
	}
	if err := m.controller.SetCurrentIndex(index); err != nil {
		logging.Warn("failed to move", "index", index, "error", err)
	}
}

func (m *Model) handlePromptKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var accepted bool
	switch {
	case key.Matches(msg, m.keys.Yes):
		accepted = true
	case key.Matches(msg, m.keys.No):
		accepted = false
	case key.Matches(msg, m.keys.Quit):
		m.Close()
		return m, tea.Quit
	default:
		return m, nil
	}

	p := m.prompt
	m.prompt = nil
	p.reply(accepted)
	if accepted {
		return m, m.showMessage("Full resolution unlocked")
	}
	return m, nil
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Yes):
		m.confirmDelete = false
		return m, m.requestDelete()
	case key.Matches(msg, m.keys.No):
		m.confirmDelete = false
	}
	return m, nil
}

func (m *Model) requestDelete() tea.Cmd {
	if err := m.controller.RequestDelete(m.controller.Current()); err != nil {
		return m.showMessage(err.Error())
	}
	return m.showMessage("Deleting...")
}

// share writes the original file into the export directory.
func (m *Model) share(index int) tea.Cmd {
	item, data, err := m.controller.ShareData(context.Background(), index)
	if err != nil {
		return m.showMessage(fmt.Sprintf("Export failed: %v", err))
	}

	fs, dir := m.export, m.config.ExportDir
	return func() tea.Msg {
		if err := fs.MkdirAll(dir, 0755); err != nil {
			return exportedMsg{err: err}
		}
		path := filepath.Join(dir, filepath.Base(item.Path))
		if err := afero.WriteFile(fs, path, data, 0644); err != nil {
			return exportedMsg{err: err}
		}
		return exportedMsg{path: path}
	}
}

// OnSlotStateChanged is called by the controller on the UI loop. View
// reads slot state directly, so there is nothing to copy.
func (m *Model) OnSlotStateChanged(index int, slot gallery.Slot) {
	if index == m.controller.Current() && slot.State == gallery.StateFailed && slot.Unavailable {
		logging.Debug("full image unavailable", "index", index)
	}
}

func (m *Model) OnCloseRequested() {
	m.closing = true
}

func (m *Model) OnActionFailed(err error) {
	m.setMessage(fmt.Sprintf("Action failed: %v", err))
}

// PromptForUpgrade shows the upgrade question until the user answers.
func (m *Model) PromptForUpgrade(index int, reply func(bool)) {
	if m.prompt != nil {
		// Only one question at a time; the older one is answered no
		m.prompt.reply(false)
	}
	m.prompt = &pendingPrompt{index: index, reply: reply}
}

func (m *Model) setMessage(msg string) {
	m.message = msg
	m.messageID++
}

func (m *Model) showMessage(msg string) tea.Cmd {
	m.setMessage(msg)
	id := m.messageID
	return tea.Tick(3*time.Second, func(time.Time) tea.Msg {
		return messageTimeoutMsg{id: id}
	})
}

func (m *Model) waitForDispatch() tea.Cmd {
	queue, done := m.queue, m.done
	return func() tea.Msg {
		select {
		case fn := <-queue:
			return dispatchMsg{fn: fn}
		case <-done:
			return nil
		}
	}
}

func (m *Model) waitForChange() tea.Cmd {
	changes, done := m.library.Changes(), m.done
	return func() tea.Msg {
		select {
		case cs, ok := <-changes:
			if !ok {
				return nil
			}
			return libraryChangedMsg{changes: cs}
		case <-done:
			return nil
		}
	}
}

// Message types
type dispatchMsg struct {
	fn func()
}

type libraryChangedMsg struct {
	changes media.ChangeSet
}

type exportedMsg struct {
	path string
	err  error
}

type messageTimeoutMsg struct {
	id int
}
