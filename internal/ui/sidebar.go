package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// DatasetSelectedMsg is sent when a dataset is chosen in the sidebar.
type DatasetSelectedMsg struct {
	Name string
}

// DatasetItem is one entry of the sidebar. Kind describes the source, e.g.
// "postgres users" or "file contacts.json"; its first word is the badge.
type DatasetItem struct {
	Name  string
	Title string
	Kind  string
}

func (it DatasetItem) badge() string {
	kind, _, _ := strings.Cut(it.Kind, " ")
	return kind
}

func (it DatasetItem) label() string {
	if it.Title != "" {
		return it.Title
	}
	return it.Name
}

// SidebarModel lists the configured datasets. The list scrolls so the cursor
// stays in view; the loaded dataset is marked.
type SidebarModel struct {
	items   []DatasetItem
	cursor  int
	offset  int
	active  string
	focused bool
	width   int
	height  int
}

// NewSidebarModel creates a sidebar over the given datasets.
func NewSidebarModel(items []DatasetItem) SidebarModel {
	return SidebarModel{items: items}
}

func (m *SidebarModel) SetFocused(f bool) { m.focused = f }

func (m SidebarModel) Focused() bool { return m.focused }

func (m *SidebarModel) SetSize(w, h int) {
	m.width, m.height = w, h
	m.follow()
}

// SetItems replaces the dataset list, keeping the cursor in range.
func (m *SidebarModel) SetItems(items []DatasetItem) {
	m.items = items
	m.cursor = min(m.cursor, max(len(items)-1, 0))
	m.follow()
}

// Selected returns the name of the loaded dataset.
func (m SidebarModel) Selected() string { return m.active }

// SetSelected marks name as loaded and moves the cursor to it without
// emitting a message.
func (m *SidebarModel) SetSelected(name string) {
	m.active = name
	if i := m.index(name); i >= 0 {
		m.cursor = i
		m.follow()
	}
}

func (m SidebarModel) index(name string) int {
	for i, it := range m.items {
		if it.Name == name {
			return i
		}
	}
	return -1
}

// rows is how many entries fit below the header.
func (m SidebarModel) rows() int {
	return max(m.height-2-1, 1)
}

// follow scrolls the window so the cursor is visible.
func (m *SidebarModel) follow() {
	n := m.rows()
	switch {
	case m.cursor < m.offset:
		m.offset = m.cursor
	case m.cursor >= m.offset+n:
		m.offset = m.cursor - n + 1
	}
	m.offset = max(min(m.offset, len(m.items)-n), 0)
}

func (m SidebarModel) Init() tea.Cmd { return nil }

// Update moves the cursor and opens the dataset under it on enter.
func (m SidebarModel) Update(msg tea.Msg) (SidebarModel, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok || !m.focused || len(m.items) == 0 {
		return m, nil
	}

	last := len(m.items) - 1
	switch key.String() {
	case "up", "k":
		m.cursor = max(m.cursor-1, 0)
	case "down", "j":
		m.cursor = min(m.cursor+1, last)
	case "home", "g":
		m.cursor = 0
	case "end", "G":
		m.cursor = last
	case "enter":
		name := m.items[m.cursor].Name
		m.active = name
		return m, func() tea.Msg { return DatasetSelectedMsg{Name: name} }
	}
	m.follow()
	return m, nil
}

// View renders one line per dataset: a marker for the loaded one, the title
// and the source badge right-aligned.
func (m SidebarModel) View() string {
	border := UnfocusedBorder
	if m.focused {
		border = FocusedBorder
	}
	innerW := max(m.width-2, 8)
	innerH := max(m.height-2, 1)

	lines := []string{ColumnHeader.Render(fmt.Sprintf("Datasets (%d)", len(m.items)))}
	if len(m.items) == 0 {
		lines = append(lines, DimText.Render("  No datasets configured"))
	}

	end := min(m.offset+m.rows(), len(m.items))
	for i := m.offset; i < end; i++ {
		lines = append(lines, m.entry(i, innerW))
	}

	content := lipgloss.NewStyle().Width(innerW).Height(innerH).Render(strings.Join(lines, "\n"))
	return border.Width(innerW).Height(innerH).Render(content)
}

func (m SidebarModel) entry(i, width int) string {
	it := m.items[i]
	marker := "  "
	if it.Name == m.active {
		marker = "● "
	}
	badge := it.badge()
	// ItemStyle pads one column on the left.
	text := width - 1
	room := max(text-lipgloss.Width(marker)-lipgloss.Width(badge)-1, 3)
	title := ansi.Truncate(it.label(), room, "…")
	gap := max(text-lipgloss.Width(marker)-lipgloss.Width(title)-lipgloss.Width(badge), 1)
	line := marker + title + strings.Repeat(" ", gap) + Caption.Render(badge)

	switch {
	case i == m.cursor && m.focused:
		return ItemCursor.Width(width).Render(line)
	case it.Name == m.active:
		return ItemActive.Width(width).Render(line)
	}
	return ItemStyle.Width(width).Render(line)
}
