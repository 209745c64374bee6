package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"cli-admin/internal/config"
	"cli-admin/internal/editor"
	"cli-admin/internal/explore"
	"cli-admin/internal/export"
	"cli-admin/internal/source"
	"cli-admin/internal/ui"
)

const (
	sidebarWidth  = 30
	loadTimeout   = 60 * time.Second
	commitTimeout = 30 * time.Second
)

// Pane represents which pane is focused.
type Pane int

const (
	SidebarPane Pane = iota
	TablePane
)

// Committer applies staged bulk changes. *db.DB implements it.
type Committer interface {
	ExecBatch(ctx context.Context, queries []string, args [][]any) (int64, error)
}

// Options configure the root model.
type Options struct {
	Views *config.Views
	Deps  source.Deps

	// Committer is nil when no database is connected.
	Committer Committer
	// Session names the saved connection Committer writes to, empty for a
	// connection given as a URI.
	Session string
	// ConnInfo is shown in the top bar.
	ConnInfo  string
	ExportDir string
	Logger    *zap.Logger
	Now       func() time.Time
}

// tableRef is the database table behind a loaded dataset.
type tableRef struct {
	table    string
	pk       string
	editable bool
}

// tickMsg is sent to clear expired status messages.
type tickMsg struct{}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg{}
	})
}

// datasetLoadedMsg carries a loaded dataset back to the app.
type datasetLoadedMsg struct {
	name    string
	seq     int
	dataset *source.Dataset
	elapsed time.Duration
	err     error
}

// exportResultMsg carries the result of a TUI export.
type exportResultMsg struct {
	path string
	rows int
	err  error
}

// commitResultMsg carries commit result.
type commitResultMsg struct {
	batch string
	err   error
	rows  int64
}

// Model is the root Bubble Tea model.
type Model struct {
	activePane Pane
	sidebar    ui.SidebarModel
	table      ui.TableModel
	statusbar  ui.StatusBarModel
	help       help.Model
	showHelp   bool

	views     *config.Views
	deps      source.Deps
	committer Committer
	session   string
	connInfo  string
	exportDir string
	logger    *zap.Logger
	now       func() time.Time

	changes *editor.ChangeTracker
	events  *eventSink
	loaded  map[string]*explore.View
	tables  map[string]tableRef
	loadSeq int
	current string

	width  int
	height int
}

// NewModel creates the root app model.
func NewModel(opts Options) Model {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	views := opts.Views
	if views == nil {
		views = &config.Views{}
	}
	deps := opts.Deps
	if deps.Logger == nil {
		deps.Logger = logger
	}

	items := make([]ui.DatasetItem, len(views.Datasets))
	for i, d := range views.Datasets {
		items[i] = ui.DatasetItem{Name: d.Name, Title: d.Title, Kind: sourceLabel(d)}
	}
	sidebar := ui.NewSidebarModel(items)
	sidebar.SetFocused(true)

	changes := editor.NewChangeTracker()
	statusbar := ui.NewStatusBarModel()
	statusbar.SetActivePane(0)

	return Model{
		activePane: SidebarPane,
		sidebar:    sidebar,
		table:      ui.NewTableModel(changes, views.PageSizes),
		statusbar:  statusbar,
		help:       help.New(),
		views:      views,
		deps:       deps,
		committer:  opts.Committer,
		session:    opts.Session,
		connInfo:   opts.ConnInfo,
		exportDir:  opts.ExportDir,
		logger:     logger,
		now:        now,
		changes:    changes,
		events:     &eventSink{logger: logger},
		loaded:     make(map[string]*explore.View),
		tables:     make(map[string]tableRef),
	}
}

// Init starts the app.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// Update handles all messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.recalcLayout()
		return m, nil

	case tickMsg:
		m.statusbar.ClearExpiredMessage()
		m.statusbar.SetPendingChanges(m.changes.PendingCount())
		return m, tickCmd()

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.activePane == TablePane && m.table.IsPrompting() {
			break
		}
		switch msg.String() {
		case "?":
			m.showHelp = !m.showHelp
			m.recalcLayout()
			return m, nil
		case "tab", "shift+tab":
			m.cycleFocus()
			return m, nil
		}

	case ui.DatasetSelectedMsg:
		if m.activePane == SidebarPane {
			m.cycleFocus()
		}
		return m, m.openDataset(msg.Name, false)

	case ui.ReloadRequestMsg:
		return m, m.openDataset(msg.Dataset, true)

	case datasetLoadedMsg:
		m.applyLoaded(msg)
		return m, nil

	case ui.EditBlockedMsg:
		m.statusbar.SetMessage(msg.Reason, ui.MsgError)
		return m, nil

	case ui.ExportRequestMsg:
		m.statusbar.SetMessage(fmt.Sprintf("Exporting %d rows...", len(msg.Rows)), ui.MsgInfo)
		return m, m.exportRows(msg)

	case exportResultMsg:
		if msg.err != nil {
			m.logger.Error("export failed", zap.Error(msg.err))
			m.statusbar.SetMessage("Export failed: "+msg.err.Error(), ui.MsgError)
		} else {
			m.logger.Info("exported", zap.String("path", msg.path), zap.Int("rows", msg.rows))
			m.statusbar.SetMessage(fmt.Sprintf("Exported %d rows to %s", msg.rows, msg.path), ui.MsgSuccess)
		}
		return m, nil

	case ui.CommitRequestMsg:
		if m.committer == nil {
			m.statusbar.SetMessage("Commit failed: no database connection", ui.MsgError)
			return m, nil
		}
		m.statusbar.SetMessage("Committing...", ui.MsgInfo)
		return m, m.commitChanges()

	case commitResultMsg:
		if msg.err != nil {
			m.logger.Error("commit failed", zap.String("batch", msg.batch), zap.Error(msg.err))
			m.statusbar.SetMessage("Commit failed: "+msg.err.Error(), ui.MsgError)
			return m, nil
		}
		m.logger.Info("committed", zap.String("batch", msg.batch), zap.Int64("rows", msg.rows))
		m.statusbar.SetMessage(fmt.Sprintf("Committed, %d rows affected", msg.rows), ui.MsgSuccess)
		m.changes.Clear()
		m.statusbar.SetPendingChanges(0)
		if m.current != "" {
			return m, m.openDataset(m.current, true)
		}
		return m, nil
	}

	// Forward to focused pane
	var cmd tea.Cmd
	switch m.activePane {
	case SidebarPane:
		m.sidebar, cmd = m.sidebar.Update(msg)
	case TablePane:
		m.table, cmd = m.table.Update(msg)
		m.statusbar.SetPendingChanges(m.changes.PendingCount())
	}
	if note := m.events.drain(); note != "" {
		m.statusbar.SetMessage(note, ui.MsgInfo)
	}
	return m, cmd
}

// View renders the full layout.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	info := m.connInfo
	if info == "" {
		info = "cli-admin"
	}
	topBar := ui.TopBar.Width(m.width - 2).Render(
		fmt.Sprintf(" %s · %d datasets ", info, len(m.views.Datasets)),
	)

	mainArea := lipgloss.JoinHorizontal(lipgloss.Top, m.sidebar.View(), m.table.View())
	parts := []string{topBar, mainArea}
	if m.showHelp {
		parts = append(parts, m.help.FullHelpView(ui.Keys.FullHelp()))
	}
	parts = append(parts, m.statusbar.View())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m *Model) cycleFocus() {
	if m.activePane == SidebarPane {
		m.activePane = TablePane
		m.statusbar.SetActivePane(1)
	} else {
		m.activePane = SidebarPane
		m.statusbar.SetActivePane(0)
	}
	m.sidebar.SetFocused(m.activePane == SidebarPane)
	m.table.SetFocused(m.activePane == TablePane)
}

func (m *Model) recalcLayout() {
	if m.width == 0 || m.height == 0 {
		return
	}
	availH := m.height - 3 // top bar + status bar + spacing
	if m.showHelp {
		availH -= lipgloss.Height(m.help.FullHelpView(ui.Keys.FullHelp()))
	}
	if availH < 6 {
		availH = 6
	}
	m.sidebar.SetSize(sidebarWidth, availH)
	m.table.SetSize(m.width-sidebarWidth-1, availH)
	m.statusbar.SetWidth(m.width)
	m.help.Width = m.width
}

// openDataset shows a dataset, loading it first unless a view for it already
// exists. reload fetches fresh rows into the existing view.
func (m *Model) openDataset(name string, reload bool) tea.Cmd {
	spec, err := m.views.Find(name)
	if err != nil {
		m.statusbar.SetMessage(err.Error(), ui.MsgError)
		return nil
	}
	if m.current != name {
		m.current = name
		m.sidebar.SetSelected(name)
	}
	if v, ok := m.loaded[name]; ok && !reload {
		m.showView(name, spec.Title, v)
		return nil
	}

	m.loadSeq++
	seq := m.loadSeq
	if !reload || m.table.Explorer() == nil || m.table.Dataset() != name {
		m.table.SetLoading(name, spec.Title)
	}
	m.statusbar.SetMessage(fmt.Sprintf("Loading %s...", spec.Title), ui.MsgInfo)

	deps := m.deps
	return func() tea.Msg {
		start := time.Now()
		loader, err := source.New(spec, deps)
		if err != nil {
			return datasetLoadedMsg{name: name, seq: seq, err: err}
		}
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		ds, err := loader.Load(ctx)
		return datasetLoadedMsg{name: name, seq: seq, dataset: ds, elapsed: time.Since(start), err: err}
	}
}

func (m *Model) applyLoaded(msg datasetLoadedMsg) {
	if msg.seq != m.loadSeq || msg.name != m.current {
		m.logger.Debug("dropping stale load", zap.String("dataset", msg.name))
		return
	}
	if msg.err != nil {
		m.logger.Error("load failed", zap.String("dataset", msg.name), zap.Error(msg.err))
		m.table.SetError(msg.err.Error())
		m.statusbar.SetMessage("Load failed: "+msg.err.Error(), ui.MsgError)
		return
	}

	ds := msg.dataset
	v, err := m.viewFor(msg.name, ds)
	if err != nil {
		m.table.SetError(err.Error())
		m.statusbar.SetMessage(err.Error(), ui.MsgError)
		return
	}
	m.showView(msg.name, ds.Title, v)
	m.statusbar.SetLoadInfo(msg.elapsed, len(ds.Rows), ds.Skipped)

	note := fmt.Sprintf("Loaded %d rows from %s", len(ds.Rows), ds.Title)
	if !m.tables[msg.name].editable {
		note += " (read-only)"
	}
	m.statusbar.SetMessage(note, ui.MsgSuccess)
	m.events.drain()
}

// viewFor returns the dataset's view with the new rows. An existing view is
// kept so search, filters, sort and selection survive a reload.
func (m *Model) viewFor(name string, ds *source.Dataset) (*explore.View, error) {
	spec, err := m.views.Find(name)
	if err != nil {
		return nil, err
	}
	m.tables[name] = tableRef{
		table:    ds.Table,
		pk:       ds.PrimaryKey,
		editable: ds.Editable() && m.writable(spec.Source.Connection),
	}

	if v, ok := m.loaded[name]; ok && sameKeys(v.Columns(), ds.Columns) {
		v.SetRows(ds.Rows)
		return v, nil
	}

	opts := append(m.events.options(name), explore.WithPageSize(spec.PageSize))
	if s := spec.InitialSort(); s != nil {
		opts = append(opts, explore.WithSort(s))
	}
	v, err := explore.NewView(ds.Columns, ds.Filters, opts...)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", name, err)
	}
	v.SetRows(ds.Rows)
	m.loaded[name] = v
	return v, nil
}

// writable reports whether staged changes on a dataset using connection can
// be committed. Commits go to the session database only.
func (m *Model) writable(connection string) bool {
	return m.committer != nil && (connection == "" || connection == m.session)
}

func (m *Model) showView(name, title string, v *explore.View) {
	ref := m.tables[name]
	table, pk := "", ""
	if ref.editable {
		table, pk = ref.table, ref.pk
	}
	m.table.SetDataset(name, title, v, table, pk)
	m.recalcLayout()
}

func (m *Model) exportRows(req ui.ExportRequestMsg) tea.Cmd {
	name := fmt.Sprintf("%s-%s%s", req.Dataset, m.now().Format("20060102-150405"), export.FormatCSV.Ext())
	path := filepath.Join(m.exportDir, name)
	return func() tea.Msg {
		n, err := writeExport(path, export.FormatCSV, req.Columns, req.Rows)
		return exportResultMsg{path: path, rows: n, err: err}
	}
}

// writeExport creates path and writes rows to it.
func writeExport(path string, format export.Format, columns []explore.Column, rows []explore.Row) (n int, err error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create export file: %w", err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()
	if err := export.Write(f, format, columns, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (m *Model) commitChanges() tea.Cmd {
	queries, args := m.changes.GenerateSQL()
	committer := m.committer
	// batch ties the commit's log lines together.
	batch := uuid.NewString()
	m.logger.Info("committing", zap.String("batch", batch), zap.Int("statements", len(queries)))
	return func() tea.Msg {
		if len(queries) == 0 {
			return commitResultMsg{batch: batch}
		}
		ctx, cancel := context.WithTimeout(context.Background(), commitTimeout)
		defer cancel()
		n, err := committer.ExecBatch(ctx, queries, args)
		return commitResultMsg{batch: batch, rows: n, err: err}
	}
}

func sameKeys(a, b []explore.Column) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Key != b[i].Key {
			return false
		}
	}
	return true
}

func sourceLabel(d config.Dataset) string {
	switch d.Source.Kind {
	case config.SourcePostgres:
		if d.Source.Query != "" {
			return "postgres query"
		}
		return "postgres " + d.Source.Table
	case config.SourceHTTP:
		return "http"
	case config.SourceFile:
		return "file " + filepath.Base(d.Source.Path)
	}
	return d.Source.Kind
}
