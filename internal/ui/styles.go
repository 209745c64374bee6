package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// Palette
var (
	ColorAccent    = lipgloss.Color("#4ecca3")
	ColorModified  = lipgloss.Color("#f0a500")
	ColorDim       = lipgloss.Color("#555555")
	ColorSuccess   = lipgloss.Color("#4ecca3")
	ColorError     = lipgloss.Color("#e94560")
	ColorSelected  = lipgloss.Color("#7aa2f7")
	ColorDeleteRow = lipgloss.Color("#e94560")

	barBackground = lipgloss.Color("#333333")
	barForeground = lipgloss.Color("#cccccc")
)

// Pane borders
var (
	FocusedBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorAccent)

	UnfocusedBorder = FocusedBorder.BorderForeground(ColorDim)
)

// Text
var (
	AccentText   = lipgloss.NewStyle().Foreground(ColorAccent)
	DimText      = lipgloss.NewStyle().Foreground(ColorDim)
	ErrorText    = lipgloss.NewStyle().Foreground(ColorError)
	ModifiedText = lipgloss.NewStyle().Foreground(ColorModified)
	DeletedText  = lipgloss.NewStyle().Foreground(ColorDeleteRow).Faint(true)
	SelectedText = lipgloss.NewStyle().Foreground(ColorSelected)
	NullText     = DimText.Italic(true)
	Caption      = DimText
)

// Table
var (
	ColumnHeader    = AccentText.Bold(true)
	SortArrow       = ModifiedText
	CellPlain       = lipgloss.NewStyle()
	CellCursor      = lipgloss.NewStyle().Reverse(true)
	CheckboxChecked = SelectedText.Bold(true)

	// Title line: "/query" and filter chips.
	PromptLabel = AccentText
	QueryText   = AccentText.Bold(true)
	FilterChip  = ModifiedText
)

// Dataset list
var (
	ItemStyle  = lipgloss.NewStyle().PaddingLeft(1)
	ItemActive = ItemStyle.Foreground(ColorAccent).Bold(true)
	ItemCursor = ItemStyle.Reverse(true)
)

// Bars share one background; the status bar colours its message by kind.
var (
	BarStyle   = lipgloss.NewStyle().Background(barBackground).Foreground(barForeground).Padding(0, 1)
	BarError   = BarStyle.Foreground(ColorError)
	BarSuccess = BarStyle.Foreground(ColorSuccess)
	TopBar     = BarStyle
)
