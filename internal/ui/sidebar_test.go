package ui

import (
	"fmt"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSidebarSelectsDataset(t *testing.T) {
	m := NewSidebarModel([]DatasetItem{
		{Name: "contacts", Title: "Contacts", Kind: "http"},
		{Name: "users", Title: "Users", Kind: "postgres"},
	})
	m.SetSize(30, 12)

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd, "unfocused sidebar ignores keys")

	m.SetFocused(true)
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	m, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, DatasetSelectedMsg{Name: "users"}, cmd())
	assert.Equal(t, "users", m.Selected())

	out := ansi.Strip(m.View())
	assert.Contains(t, out, "Datasets")
	assert.Contains(t, out, "Contacts")
	assert.Contains(t, out, "postgres")
}

func TestSidebarEmpty(t *testing.T) {
	m := NewSidebarModel(nil)
	m.SetSize(30, 6)
	m.SetFocused(true)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Contains(t, ansi.Strip(m.View()), "No datasets configured")
}

func TestSidebarSetSelected(t *testing.T) {
	m := NewSidebarModel([]DatasetItem{{Name: "a", Title: "A"}, {Name: "b", Title: "B"}})
	m.SetSelected("b")
	assert.Equal(t, 1, m.cursor)

	m.SetItems([]DatasetItem{{Name: "a", Title: "A"}})
	assert.Equal(t, 0, m.cursor)
}

func TestSidebarScrollsAndMarksActive(t *testing.T) {
	var items []DatasetItem
	for i := range 10 {
		items = append(items, DatasetItem{Name: fmt.Sprintf("d%d", i), Title: fmt.Sprintf("Dataset %d", i), Kind: "file d.json"})
	}
	m := NewSidebarModel(items)
	m.SetSize(30, 6) // three entries below the header
	m.SetFocused(true)

	out := ansi.Strip(m.View())
	assert.Contains(t, out, "Datasets (10)")
	assert.Contains(t, out, "Dataset 2")
	assert.NotContains(t, out, "Dataset 3")
	assert.Contains(t, out, "file")
	assert.NotContains(t, out, "d.json", "only the source kind is shown")

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("G")})
	assert.Equal(t, 9, m.cursor)
	assert.Equal(t, 7, m.offset)
	out = ansi.Strip(m.View())
	assert.Contains(t, out, "Dataset 9")
	assert.NotContains(t, out, "Dataset 6")

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, DatasetSelectedMsg{Name: "d9"}, cmd())
	assert.Contains(t, ansi.Strip(m.View()), "● Dataset 9")

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("g")})
	assert.Equal(t, 0, m.offset)
	assert.Equal(t, "d9", m.Selected(), "moving the cursor keeps the loaded dataset")
}

func TestSidebarFallsBackToName(t *testing.T) {
	m := NewSidebarModel([]DatasetItem{{Name: "raw_events", Kind: "postgres events"}})
	m.SetSize(40, 5)
	out := ansi.Strip(m.View())
	assert.Contains(t, out, "raw_events")
	assert.Contains(t, out, "postgres")
}

func TestStatusBar(t *testing.T) {
	m := NewStatusBarModel()
	m.SetWidth(160)
	m.SetActivePane(1)
	m.SetPendingChanges(3)
	m.SetLoadInfo(1500*time.Millisecond, 200, 2)

	out := ansi.Strip(m.View())
	assert.Contains(t, out, "/ search")
	assert.Contains(t, out, "Pending: 3 rows")
	assert.Contains(t, out, "200 rows in 1.5s (2 skipped)")

	m.SetMessage("Export failed", MsgError)
	out = ansi.Strip(m.View())
	assert.Contains(t, out, "Export failed")
	assert.NotContains(t, out, "/ search")

	m.messageTime = time.Now().Add(-time.Minute)
	m.ClearExpiredMessage()
	assert.Equal(t, "Export failed", m.Message(), "errors stay until replaced")

	m.SetMessage("Exported 3 rows", MsgSuccess)
	m.messageTime = time.Now().Add(-time.Minute)
	m.ClearExpiredMessage()
	assert.Empty(t, m.Message())
}
