package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"

	"github.com/cwarden/memories/internal/gallery"
	"github.com/cwarden/memories/internal/media"
)

func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}
	if m.controller.Closed() {
		return ""
	}

	cur := m.controller.Current()
	item, err := m.controller.Item(cur)
	if err != nil {
		return "Loading..."
	}
	slot, _ := m.controller.Slot(cur)

	header := m.renderHeader(item)
	footer := m.renderFooter(slot)
	status := m.renderStatusBar()

	bodyHeight := m.height - lipgloss.Height(header) - lipgloss.Height(footer) - lipgloss.Height(status)
	body := lipgloss.Place(m.width, max(1, bodyHeight), lipgloss.Center, lipgloss.Center,
		m.renderSlot(item, slot, m.width, max(1, bodyHeight)))

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer, status)
}

func (m *Model) renderHeader(item media.Item) string {
	years := m.day.Year() - item.Year()
	ago := "Today"
	switch {
	case years == 1:
		ago = "1 year ago"
	case years > 1:
		ago = fmt.Sprintf("%d years ago", years)
	}

	parts := []string{
		m.styles.Header.Render(ago),
		m.styles.Normal.Render(item.Created.Format(m.config.DateFormat + " " + m.config.TimeFormat)),
	}
	if item.Kind != media.KindPhoto {
		parts = append(parts, m.styles.Help.Render(item.Kind.String()))
	}
	if item.Favorite {
		parts = append(parts, m.styles.Favorite.Render("♥"))
	}

	return truncate.StringWithTail(" "+strings.Join(parts, "  "), uint(max(0, m.width)), "…")
}

func (m *Model) renderSlot(item media.Item, slot gallery.Slot, width, height int) string {
	content := slot.Content
	switch {
	case content.Image != nil:
		return halfBlocks(content.Image, width, height)
	case content.VideoPath != "":
		return m.styles.Normal.Render("▶ " + content.VideoPath)
	case slot.State == gallery.StateFailed:
		return m.styles.Error.Render("Unable to load " + item.Path)
	default:
		return m.spinner.View() + " Loading"
	}
}

func (m *Model) renderFooter(slot gallery.Slot) string {
	switch {
	case m.prompt != nil:
		remaining := "You have used all free full-resolution views."
		return m.styles.Message.Render(remaining + " Upgrade to view in full? (y/n)")

	case m.confirmDelete:
		return m.styles.Message.Render("Delete this memory? (y/n)")

	case slot.Unavailable:
		return m.styles.Error.Render("Full image unavailable") +
			m.styles.Help.Render(fmt.Sprintf("  (%s to retry)", m.keys.Retry.Help().Key))

	case slot.Declined:
		return m.styles.Help.Render("Showing preview")

	case slot.FullToken != 0:
		return m.progress.ViewAs(slot.Progress)
	}
	return ""
}

func (m *Model) renderStatusBar() string {
	if m.showHelp {
		return wordwrap.String(m.help.View(m.keys), max(1, m.width))
	}

	left := fmt.Sprintf(" %s | %d/%d",
		m.day.Format("Jan 2"),
		m.controller.Current()+1,
		m.controller.Len())
	if n := m.gate.Remaining(); n >= 0 {
		left += fmt.Sprintf(" | %d free views", n)
	}

	right := "? for help | q to quit"
	if m.message != "" {
		right = m.styles.Message.Render(m.message)
	}

	width := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if width < 0 {
		return truncate.StringWithTail(left+" "+right, uint(max(0, m.width)), "…")
	}

	middle := strings.Repeat(" ", width)
	return m.styles.Help.Render(left + middle + right)
}
