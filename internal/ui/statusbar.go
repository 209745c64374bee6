package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/lipgloss"
)

// MessageType represents the type of status message.
type MessageType int

const (
	MsgInfo MessageType = iota
	MsgSuccess
	MsgError
)

// StatusBarModel is the context-aware status bar at the bottom.
type StatusBarModel struct {
	message        string
	messageType    MessageType
	messageTime    time.Time
	pendingChanges int
	activePane     int
	loadTime       time.Duration
	rowCount       int
	skipped        int
	help           help.Model
	width          int
}

// NewStatusBarModel creates a new status bar.
func NewStatusBarModel() StatusBarModel {
	h := help.New()
	h.ShortSeparator = " | "
	return StatusBarModel{help: h}
}

// SetWidth sets the status bar width.
func (m *StatusBarModel) SetWidth(w int) {
	m.width = w
	m.help.Width = w / 2
}

// SetMessage sets a status message.
func (m *StatusBarModel) SetMessage(msg string, t MessageType) {
	m.message = msg
	m.messageType = t
	m.messageTime = time.Now()
}

// Message returns the current message.
func (m StatusBarModel) Message() string {
	return m.message
}

// SetPendingChanges updates the pending changes count.
func (m *StatusBarModel) SetPendingChanges(count int) {
	m.pendingChanges = count
}

// SetActivePane sets which pane is focused (0=sidebar, 1=table).
func (m *StatusBarModel) SetActivePane(pane int) {
	m.activePane = pane
}

// SetLoadInfo records the last dataset load.
func (m *StatusBarModel) SetLoadInfo(elapsed time.Duration, rowCount, skipped int) {
	m.loadTime = elapsed
	m.rowCount = rowCount
	m.skipped = skipped
}

// messageTTL is how long info and success messages stay up.
const messageTTL = 3 * time.Second

// ClearExpiredMessage drops info and success messages older than
// messageTTL. Errors stay until replaced.
func (m *StatusBarModel) ClearExpiredMessage() {
	if m.messageType != MsgError && time.Since(m.messageTime) > messageTTL {
		m.message = ""
	}
}

var messageStyles = map[MessageType]lipgloss.Style{
	MsgInfo:    BarStyle,
	MsgSuccess: BarSuccess,
	MsgError:   BarError,
}

// View renders the message (or key hints) on the left and pending/load
// info on the right.
func (m StatusBarModel) View() string {
	left := m.contextHints()
	if m.message != "" {
		left = messageStyles[m.messageType].Render(m.message)
	}
	right := m.info()

	w := max(m.width, 20)
	gap := max(w-lipgloss.Width(left)-lipgloss.Width(right)-2, 1)
	return BarStyle.Width(w).Render(left + strings.Repeat(" ", gap) + right)
}

func (m StatusBarModel) info() string {
	var parts []string
	if m.pendingChanges > 0 {
		parts = append(parts, fmt.Sprintf("Pending: %d rows | Ctrl+S to commit", m.pendingChanges))
	}
	if m.loadTime > 0 {
		s := fmt.Sprintf("%d rows in %s", m.rowCount, m.loadTime.Round(time.Millisecond))
		if m.skipped > 0 {
			s += fmt.Sprintf(" (%d skipped)", m.skipped)
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " | ")
}

func (m StatusBarModel) contextHints() string {
	if m.activePane == 1 {
		return m.help.ShortHelpView(Keys.ShortHelp())
	}
	return "j/k Navigate | Enter Open dataset | Tab Switch pane"
}
