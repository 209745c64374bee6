package ui

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"cli-admin/internal/editor"
	"cli-admin/internal/explore"
)

// EditBlockedMsg is sent when an action is not possible on this dataset.
type EditBlockedMsg struct {
	Reason string
}

// ExportRequestMsg asks the app to export rows. Selection is true when Rows
// are the selected rows rather than the whole filtered collection.
type ExportRequestMsg struct {
	Dataset   string
	Columns   []explore.Column
	Rows      []explore.Row
	Selection bool
}

// CommitRequestMsg asks the app to commit staged changes.
type CommitRequestMsg struct{}

// ReloadRequestMsg asks the app to reload a dataset.
type ReloadRequestMsg struct {
	Dataset string
}

type promptMode int

const (
	promptNone promptMode = iota
	promptSearch
	promptFilter
	promptSet
)

const checkboxWidth = 3

// TableModel renders one explorer view: checkbox column, sortable headers,
// the current page and a pagination footer.
type TableModel struct {
	view      *explore.View
	changes   *editor.ChangeTracker
	keys      KeyMap
	pageSizes []int

	dataset string
	title   string
	table   string
	pk      string

	cursorRow    int // index within the current page
	cursorCol    int
	scrollOffset int
	colOffset    int
	focused      bool
	width        int
	height       int
	loading      bool
	errMsg       string

	prompt     promptMode
	input      textinput.Model
	promptKey  string
	promptKind explore.FilterKind
	prevQuery  string
}

// NewTableModel creates an empty table pane.
func NewTableModel(changes *editor.ChangeTracker, pageSizes []int) TableModel {
	ti := textinput.New()
	ti.Prompt = ""
	ti.CharLimit = 256
	sizes := slices.Clone(pageSizes)
	slices.Sort(sizes)
	return TableModel{
		changes:   changes,
		keys:      Keys,
		pageSizes: slices.Compact(sizes),
		input:     ti,
	}
}

// SetFocused sets focus state.
func (m *TableModel) SetFocused(f bool) {
	m.focused = f
}

// Focused returns focus state.
func (m TableModel) Focused() bool {
	return m.focused
}

// SetSize sets the pane dimensions.
func (m *TableModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.input.Width = max(w-20, 10)
}

// SetLoading shows a loading state for the named dataset.
func (m *TableModel) SetLoading(dataset, title string) {
	m.dataset = dataset
	m.title = title
	m.loading = true
	m.errMsg = ""
}

// SetError shows an error message in place of the table.
func (m *TableModel) SetError(msg string) {
	m.loading = false
	m.errMsg = msg
}

// SetDataset shows a loaded view. table and pk are empty for read-only
// datasets.
func (m *TableModel) SetDataset(dataset, title string, view *explore.View, table, pk string) {
	m.dataset = dataset
	m.title = title
	m.view = view
	m.table = table
	m.pk = pk
	m.loading = false
	m.errMsg = ""
	m.cursorRow = 0
	m.cursorCol = 0
	m.scrollOffset = 0
	m.colOffset = 0
	m.closePrompt()
}

// Explorer returns the view being shown, nil before a dataset is loaded.
func (m TableModel) Explorer() *explore.View {
	return m.view
}

// Dataset returns the name of the shown dataset.
func (m TableModel) Dataset() string {
	return m.dataset
}

// IsPrompting reports whether the search or filter prompt has the keyboard.
func (m TableModel) IsPrompting() bool {
	return m.prompt != promptNone
}

// Init satisfies tea.Model.
func (m TableModel) Init() tea.Cmd {
	return nil
}

// Update handles key events.
func (m TableModel) Update(msg tea.Msg) (TableModel, tea.Cmd) {
	if !m.focused || m.view == nil || m.loading {
		return m, nil
	}
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		if m.prompt != promptNone {
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}
		return m, nil
	}
	if m.prompt != promptNone {
		return m.updatePrompt(keyMsg)
	}
	return m.updateNav(keyMsg)
}

func (m TableModel) updateNav(msg tea.KeyMsg) (TableModel, tea.Cmd) {
	v := m.view
	d := v.Derive()
	pageLen := len(d.VisibleRows)
	cols := v.Columns()

	switch {
	case key.Matches(msg, m.keys.Up):
		if m.cursorRow > 0 {
			m.cursorRow--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursorRow < pageLen-1 {
			m.cursorRow++
		}
	case key.Matches(msg, m.keys.Left):
		if m.cursorCol > 0 {
			m.cursorCol--
		}
	case key.Matches(msg, m.keys.Right):
		if m.cursorCol < len(cols)-1 {
			m.cursorCol++
		}
	case key.Matches(msg, m.keys.First):
		m.cursorRow = 0
	case key.Matches(msg, m.keys.Last):
		m.cursorRow = max(pageLen-1, 0)

	case key.Matches(msg, m.keys.Search):
		m.prevQuery = v.Query()
		m.prompt = promptSearch
		m.input.Placeholder = "search all columns"
		m.input.SetValue(v.Query())
		m.input.CursorEnd()
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.Sort):
		if len(cols) == 0 {
			break
		}
		col := cols[m.cursorCol]
		if !v.ToggleSort(col.Key) {
			return m, blocked(fmt.Sprintf("Column %s is not sortable", col.Title))
		}
		m.cursorRow = 0
	case key.Matches(msg, m.keys.Filter):
		if len(cols) == 0 {
			break
		}
		return m.startFilter(cols[m.cursorCol])
	case key.Matches(msg, m.keys.ClearFilter):
		v.ClearFilters()
		v.SetQuery("")

	case key.Matches(msg, m.keys.Toggle):
		if m.cursorRow < pageLen {
			v.ToggleSelected(d.VisibleRows[m.cursorRow].ID)
		}
	case key.Matches(msg, m.keys.SelectAll):
		v.SelectAllVisible()
	case key.Matches(msg, m.keys.ClearSel):
		v.ClearSelection()

	case key.Matches(msg, m.keys.NextPage):
		v.NextPage()
		m.cursorRow = 0
	case key.Matches(msg, m.keys.PrevPage):
		v.PrevPage()
		m.cursorRow = 0
	case key.Matches(msg, m.keys.Bigger):
		v.SetPageSize(nextPageSize(m.pageSizes, v.PageSize(), 1))
		m.cursorRow = 0
	case key.Matches(msg, m.keys.Smaller):
		v.SetPageSize(nextPageSize(m.pageSizes, v.PageSize(), -1))
		m.cursorRow = 0

	case key.Matches(msg, m.keys.Export):
		rows, sel := v.SelectedRows(), true
		if len(rows) == 0 {
			rows, sel = v.Filtered(), false
		}
		req := ExportRequestMsg{Dataset: m.dataset, Columns: cols, Rows: rows, Selection: sel}
		return m, func() tea.Msg { return req }
	case key.Matches(msg, m.keys.SetValue):
		if len(cols) == 0 {
			break
		}
		if reason := m.editBlocked(); reason != "" {
			return m, blocked(reason)
		}
		col := cols[m.cursorCol]
		if col.Key == m.pk {
			return m, blocked("Primary key column cannot be changed")
		}
		m.prompt = promptSet
		m.promptKey = col.Key
		m.input.Placeholder = "new value (empty sets NULL)"
		m.input.SetValue("")
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.Delete):
		if reason := m.editBlocked(); reason != "" {
			return m, blocked(reason)
		}
		m.changes.StageDelete(m.table, m.pk, v.Selection().IDs())
	case key.Matches(msg, m.keys.Undo):
		m.changes.Undo()
	case key.Matches(msg, m.keys.Commit):
		if m.changes.HasChanges() {
			return m, func() tea.Msg { return CommitRequestMsg{} }
		}
	case key.Matches(msg, m.keys.Reload):
		name := m.dataset
		return m, func() tea.Msg { return ReloadRequestMsg{Dataset: name} }
	}

	m.clampCursor()
	return m, nil
}

// startFilter cycles select options in place and opens a prompt for other
// filter kinds.
func (m TableModel) startFilter(col explore.Column) (TableModel, tea.Cmd) {
	v := m.view
	fc, declared := explore.FindFilter(v.FilterConfigs(), col.Key)
	if declared && fc.Kind == explore.FilterSelect && len(fc.Options) > 0 {
		v.SetFilter(col.Key, nextOption(fc.Options, v.Filters()[col.Key]))
		m.clampCursor()
		return m, nil
	}
	if !declared && !col.Filterable {
		return m, blocked(fmt.Sprintf("Column %s is not filterable", col.Title))
	}

	m.prompt = promptFilter
	m.promptKey = col.Key
	m.promptKind = fc.Kind
	m.input.Placeholder = "value (empty clears)"
	m.input.SetValue(explore.Stringify(v.Filters()[col.Key]))
	m.input.CursorEnd()
	return m, m.input.Focus()
}

func (m TableModel) updatePrompt(msg tea.KeyMsg) (TableModel, tea.Cmd) {
	switch msg.String() {
	case "esc":
		if m.prompt == promptSearch {
			m.view.SetQuery(m.prevQuery)
		}
		m.closePrompt()
		m.clampCursor()
		return m, nil
	case "enter":
		switch m.prompt {
		case promptFilter:
			m.view.SetFilter(m.promptKey, parseFilterInput(m.input.Value(), m.promptKind))
		case promptSet:
			var value any
			if s := m.input.Value(); s != "" {
				value = s
			}
			m.changes.StageSet(m.table, m.pk, m.view.Selection().IDs(), m.promptKey, value)
		}
		m.closePrompt()
		m.cursorRow = 0
		m.clampCursor()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.prompt == promptSearch {
		m.view.SetQuery(m.input.Value())
		m.cursorRow = 0
	}
	return m, cmd
}

func (m *TableModel) closePrompt() {
	m.prompt = promptNone
	m.promptKey = ""
	m.input.Blur()
	m.input.SetValue("")
}

func (m *TableModel) clampCursor() {
	if m.view == nil {
		return
	}
	d := m.view.Derive()
	if m.cursorRow >= len(d.VisibleRows) {
		m.cursorRow = max(len(d.VisibleRows)-1, 0)
	}
	if n := len(m.view.Columns()); m.cursorCol >= n {
		m.cursorCol = max(n-1, 0)
	}
	m.ensureRowVisible()
	m.ensureColVisible(d.VisibleRows)
}

func (m *TableModel) ensureRowVisible() {
	visRows := m.visibleRowCount()
	if m.cursorRow < m.scrollOffset {
		m.scrollOffset = m.cursorRow
	} else if m.cursorRow >= m.scrollOffset+visRows {
		m.scrollOffset = m.cursorRow - visRows + 1
	}
}

func (m *TableModel) ensureColVisible(rows []explore.Row) {
	if m.cursorCol < m.colOffset {
		m.colOffset = m.cursorCol
	}
	widths := colWidths(m.view.Columns(), rows)
	usedWidth := checkboxWidth + 3
	for i := m.colOffset; i <= m.cursorCol && i < len(widths); i++ {
		usedWidth += widths[i] + 3
	}
	innerW := m.width - 4
	for usedWidth > innerW && m.colOffset < m.cursorCol {
		usedWidth -= widths[m.colOffset] + 3
		m.colOffset++
	}
}

func (m TableModel) visibleRowCount() int {
	// border (2) + title, header, separator, footer (4)
	h := m.height - 6
	if m.prompt != promptNone {
		h--
	}
	if h < 1 {
		h = 1
	}
	return h
}

// View renders the table pane.
func (m TableModel) View() string {
	borderStyle := UnfocusedBorder
	if m.focused {
		borderStyle = FocusedBorder
	}

	innerW := m.width - 2
	if innerW < 10 {
		innerW = 10
	}
	innerH := m.height - 2
	if innerH < 3 {
		innerH = 3
	}

	var content string
	switch {
	case m.loading:
		content = DimText.Render(fmt.Sprintf("Loading %s…", m.title))
	case m.errMsg != "":
		content = ErrorText.Render(m.errMsg)
	case m.view == nil:
		content = DimText.Render("Select a dataset")
	default:
		content = m.renderTable(innerW, innerH)
	}

	return borderStyle.Width(innerW).Height(innerH).MaxHeight(innerH + 2).Render(content)
}

func (m TableModel) renderTable(w, h int) string {
	v := m.view
	d := v.Derive()
	cols := v.Columns()

	var b strings.Builder
	b.WriteString(m.titleLine(w))
	b.WriteString("\n")

	if m.prompt != promptNone {
		label := "/"
		switch m.prompt {
		case promptFilter:
			label = "filter " + m.promptKey + ": "
		case promptSet:
			label = fmt.Sprintf("set %s on %d rows: ", m.promptKey, m.view.Selection().Count())
		}
		b.WriteString(PromptLabel.Render(label) + m.input.View())
		b.WriteString("\n")
	}

	widths := colWidths(cols, d.VisibleRows)
	visibleCols := visibleColumns(widths, m.colOffset, w-checkboxWidth-3)
	sortDesc := v.Sort()

	// Header
	headerParts := []string{ColumnHeader.Width(checkboxWidth).Render(headerBox(d.Selection))}
	for _, ci := range visibleCols {
		name := cols[ci].Title
		if name == "" {
			name = cols[ci].Key
		}
		if sortDesc != nil && sortDesc.Key == cols[ci].Key {
			arrow := "▲"
			if sortDesc.Direction == explore.Desc {
				arrow = "▼"
			}
			name = truncate(name, widths[ci]-2) + " " + SortArrow.Render(arrow)
			headerParts = append(headerParts, ColumnHeader.Width(widths[ci]).Render(name))
			continue
		}
		headerParts = append(headerParts, ColumnHeader.Width(widths[ci]).Render(truncate(name, widths[ci])))
	}
	b.WriteString(strings.Join(headerParts, " | "))
	b.WriteString("\n")

	// Separator
	sepParts := []string{strings.Repeat("─", checkboxWidth)}
	for _, ci := range visibleCols {
		sepParts = append(sepParts, strings.Repeat("─", widths[ci]))
	}
	b.WriteString(DimText.Render(strings.Join(sepParts, "─┼─")))
	b.WriteString("\n")

	if len(d.VisibleRows) == 0 {
		msg := "No rows"
		if len(v.Rows()) > 0 {
			msg = "No rows match the current search and filters"
		}
		b.WriteString(DimText.Render(msg))
		b.WriteString("\n")
	}

	startRow := m.scrollOffset
	endRow := min(startRow+m.visibleRowCount(), len(d.VisibleRows))
	for ri := startRow; ri < endRow; ri++ {
		row := d.VisibleRows[ri]
		selected := v.Selection().IsSelected(row.ID)
		deleted := m.table != "" && m.changes.IsRowDeleted(m.table, row.ID)

		box := "[ ]"
		boxStyle := CellPlain
		if selected {
			box = "[x]"
			boxStyle = CheckboxChecked
		}
		rowParts := []string{boxStyle.Width(checkboxWidth).Render(box)}

		for _, ci := range visibleCols {
			col := cols[ci]
			colW := widths[ci]
			val, _ := col.ValueOf(row)
			text := col.Display(row)
			modified := false
			if m.table != "" {
				if pending, ok := m.changes.PendingValue(m.table, row.ID, col.Key); ok {
					val, text, modified = pending, explore.Stringify(pending), true
				}
			}

			var style lipgloss.Style
			switch {
			case ri == m.cursorRow && ci == m.cursorCol && m.focused:
				style = CellCursor
			case deleted:
				style = DeletedText
			case modified:
				style = ModifiedText
			case val == nil:
				style = NullText
				text = "NULL"
			case selected:
				style = SelectedText
			default:
				style = CellPlain
			}
			rowParts = append(rowParts, style.Width(colW).Render(truncate(sanitizeCell(text), colW)))
		}
		b.WriteString(strings.Join(rowParts, " | "))
		b.WriteString("\n")
	}

	b.WriteString(DimText.Render(footer(d)))
	return b.String()
}

// titleLine shows the dataset title with the active search, filters and
// sort.
func (m TableModel) titleLine(w int) string {
	v := m.view
	parts := []string{ColumnHeader.Render(m.title)}
	if q := v.Query(); q != "" && m.prompt != promptSearch {
		parts = append(parts, PromptLabel.Render("/")+QueryText.Render(q))
	}
	active := v.Filters()
	for _, k := range active.Active() {
		parts = append(parts, FilterChip.Render(k+"="+explore.Stringify(active[k])))
	}
	if s := v.Sort(); s != nil {
		parts = append(parts, DimText.Render("sort "+s.String()))
	}
	if m.table == "" {
		parts = append(parts, DimText.Render("read-only"))
	}
	return ansi.Truncate(strings.Join(parts, "  "), w, "…")
}

// footer renders the visible range, page, page size and selection count.
func footer(d explore.Derived) string {
	first, last := d.Pagination.Range()
	return fmt.Sprintf("rows %d–%d of %d · page %d/%d · size %d · selected %d",
		first, last, d.Pagination.Total,
		d.Pagination.Page, d.Pagination.PageCount(),
		d.Pagination.PageSize,
		len(d.Selection.SelectedIDs))
}

// headerBox is the tri-state select-all checkbox.
func headerBox(s explore.SelectionSummary) string {
	switch {
	case s.AllVisibleSelected:
		return "[x]"
	case s.Indeterminate:
		return "[-]"
	}
	return "[ ]"
}

// editBlocked returns why bulk changes are not possible right now.
func (m TableModel) editBlocked() string {
	if m.table == "" || m.pk == "" {
		return "Dataset is read-only"
	}
	if m.view.Selection().Count() == 0 {
		return "Select rows first (space or a)"
	}
	return ""
}

func blocked(reason string) tea.Cmd {
	return func() tea.Msg { return EditBlockedMsg{Reason: reason} }
}

// nextOption advances a select filter: unset, each option in turn, unset.
func nextOption(options []explore.Option, current any) any {
	if explore.IsEmptyValue(current) {
		return options[0].Value
	}
	cur := explore.Stringify(current)
	for i, o := range options {
		if explore.Stringify(o.Value) == cur {
			if i+1 < len(options) {
				return options[i+1].Value
			}
			return nil
		}
	}
	return nil
}

// parseFilterInput turns prompt text into a filter value. Number filters
// match exactly when the text parses; everything else is a substring match.
func parseFilterInput(s string, kind explore.FilterKind) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if kind == explore.FilterNumber {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return s
}

// nextPageSize steps through sizes from cur in direction dir, staying put at
// either end.
func nextPageSize(sizes []int, cur, dir int) int {
	if dir > 0 {
		for _, s := range sizes {
			if s > cur {
				return s
			}
		}
		return cur
	}
	for i := len(sizes) - 1; i >= 0; i-- {
		if sizes[i] < cur {
			return sizes[i]
		}
	}
	return cur
}

func colWidths(cols []explore.Column, rows []explore.Row) []int {
	widths := make([]int, len(cols))
	for i, col := range cols {
		title := col.Title
		if title == "" {
			title = col.Key
		}
		w := lipgloss.Width(title) + 2
		if w < 6 {
			w = 6
		}
		for _, r := range rows {
			if cw := lipgloss.Width(sanitizeCell(col.Display(r))); cw > w {
				w = cw
			}
		}
		if w > 40 {
			w = 40
		}
		widths[i] = w
	}
	return widths
}

func visibleColumns(widths []int, offset, availWidth int) []int {
	var cols []int
	usedWidth := 0
	for i := offset; i < len(widths); i++ {
		needed := widths[i] + 3 // " | " separator
		if usedWidth+needed > availWidth && len(cols) > 0 {
			break
		}
		cols = append(cols, i)
		usedWidth += needed
	}
	return cols
}

func sanitizeCell(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "↵")
	s = strings.ReplaceAll(s, "\n", "↵")
	s = strings.ReplaceAll(s, "\r", "↵")
	s = strings.ReplaceAll(s, "\t", " ")
	return s
}

func truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	return ansi.Truncate(s, maxLen, "…")
}
