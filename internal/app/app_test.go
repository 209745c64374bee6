package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cli-admin/internal/config"
	"cli-admin/internal/db"
	"cli-admin/internal/source"
	"cli-admin/internal/ui"
)

const contactsJSON = `[
  {"id": 1, "name": "Ann", "status": "active"},
  {"id": 2, "name": "Bob", "status": "lost"},
  {"id": 3, "name": "Cy", "status": "active"}
]`

type fakeQuerier struct {
	loads int
}

func (f *fakeQuerier) LoadTable(ctx context.Context, table string, limit int) (*db.Table, error) {
	f.loads++
	return &db.Table{
		Name:        table,
		Columns:     []string{"id", "email"},
		ColumnTypes: []string{"int4", "text"},
		PrimaryKeys: []string{"id"},
		Rows: []map[string]any{
			{"id": int64(1), "email": "ann@example.com"},
			{"id": int64(2), "email": "bob@example.com"},
		},
	}, nil
}

func (f *fakeQuerier) LoadQuery(ctx context.Context, sql string) (*db.Table, error) {
	return nil, fmt.Errorf("not used")
}

type fakeCommitter struct {
	queries []string
	args    [][]any
	err     error
}

func (f *fakeCommitter) ExecBatch(ctx context.Context, queries []string, args [][]any) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.queries = append(f.queries, queries...)
	f.args = append(f.args, args...)
	return int64(len(queries)), nil
}

type fixture struct {
	dir       string
	querier   *fakeQuerier
	committer *fakeCommitter
}

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestModel(t *testing.T) (Model, *fixture) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "contacts.json")
	require.NoError(t, os.WriteFile(path, []byte(contactsJSON), 0o644))

	views, err := config.ParseViews([]byte(fmt.Sprintf(`
page_size: 2
datasets:
  - name: contacts
    title: Contacts
    source: {kind: file, path: %q}
  - name: users
    title: Users
    source: {kind: postgres, table: users}
  - name: broken
    source: {kind: file, path: %q}
  - name: archive
    title: Archived users
    source: {kind: postgres, connection: archive, table: users}
`, path, filepath.Join(dir, "missing.json"))))
	require.NoError(t, err)

	fx := &fixture{dir: dir, querier: &fakeQuerier{}, committer: &fakeCommitter{}}
	m := NewModel(Options{
		Views: views,
		Deps: source.Deps{
			Connect: func(ctx context.Context, connection string) (source.Querier, error) {
				return fx.querier, nil
			},
		},
		Committer: fx.committer,
		ConnInfo:  "app@localhost:5432/crm",
		ExportDir: dir,
		Logger:    zap.NewNop(),
		Now:       func() time.Time { return fixedNow },
	})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 140, Height: 40})
	return next.(Model), fx
}

// drive delivers msg and keeps feeding the resulting command output back in
// until no command is returned.
func drive(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	for i := 0; msg != nil && i < 10; i++ {
		next, cmd := m.Update(msg)
		m = next.(Model)
		if cmd == nil {
			break
		}
		msg = cmd()
	}
	return m
}

func keys(s string) tea.KeyMsg {
	switch s {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "ctrl+s":
		return tea.KeyMsg{Type: tea.KeyCtrlS}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestOpenDataset(t *testing.T) {
	m, _ := newTestModel(t)
	m = drive(t, m, ui.DatasetSelectedMsg{Name: "contacts"})

	require.NotNil(t, m.table.Explorer())
	assert.Len(t, m.table.Explorer().Rows(), 3)
	assert.Equal(t, TablePane, m.activePane)
	assert.Equal(t, "Loaded 3 rows from Contacts (read-only)", m.statusbar.Message())

	out := ansi.Strip(m.View())
	assert.Contains(t, out, "app@localhost:5432/crm · 4 datasets")
	assert.Contains(t, out, "rows 1–2 of 3 · page 1/2 · size 2 · selected 0")
}

func TestOpenDatasetFromSidebar(t *testing.T) {
	m, _ := newTestModel(t)
	m = drive(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, "contacts", m.table.Dataset())
	assert.Equal(t, "contacts", m.sidebar.Selected())
}

func TestLoadFailureShowsError(t *testing.T) {
	m, _ := newTestModel(t)
	m = drive(t, m, ui.DatasetSelectedMsg{Name: "broken"})

	assert.Nil(t, m.table.Explorer())
	assert.Contains(t, m.statusbar.Message(), "Load failed")
	assert.Contains(t, m.statusbar.Message(), "missing.json")
}

func TestUnknownDataset(t *testing.T) {
	m, _ := newTestModel(t)
	m = drive(t, m, ui.DatasetSelectedMsg{Name: "nope"})
	assert.Contains(t, m.statusbar.Message(), "unknown dataset")
}

func TestViewEventsReachStatusBar(t *testing.T) {
	m, _ := newTestModel(t)
	m = drive(t, m, ui.DatasetSelectedMsg{Name: "contacts"})

	m = drive(t, m, keys("s"))
	assert.Equal(t, "Sorted by id asc", m.statusbar.Message())

	m = drive(t, m, keys(" "))
	assert.Equal(t, "1 selected", m.statusbar.Message())

	m = drive(t, m, keys("n"))
	assert.Equal(t, "Page 2", m.statusbar.Message())

	m = drive(t, m, keys("+"))
	assert.Equal(t, "10 rows per page · Page 1", m.statusbar.Message())
}

func TestStaleLoadIsDropped(t *testing.T) {
	m, _ := newTestModel(t)
	m = drive(t, m, ui.DatasetSelectedMsg{Name: "contacts"})

	m.applyLoaded(datasetLoadedMsg{name: "contacts", seq: m.loadSeq - 1, err: fmt.Errorf("late")})
	assert.NotContains(t, m.statusbar.Message(), "late")
	assert.NotNil(t, m.table.Explorer())
}

func TestReloadKeepsViewState(t *testing.T) {
	m, _ := newTestModel(t)
	m = drive(t, m, ui.DatasetSelectedMsg{Name: "contacts"})
	v := m.table.Explorer()
	v.SetQuery("active")
	v.ToggleSelected("3")

	m = drive(t, m, keys("r"))
	assert.Same(t, v, m.table.Explorer())
	assert.Equal(t, "active", v.Query())
	assert.True(t, v.Selection().IsSelected("3"))
	assert.Equal(t, 2, v.Derive().Pagination.Total)
}

func TestSwitchingBackReusesView(t *testing.T) {
	m, fx := newTestModel(t)
	m = drive(t, m, ui.DatasetSelectedMsg{Name: "users"})
	users := m.table.Explorer()
	m = drive(t, m, ui.DatasetSelectedMsg{Name: "contacts"})
	m = drive(t, m, ui.DatasetSelectedMsg{Name: "users"})

	assert.Same(t, users, m.table.Explorer())
	assert.Equal(t, 1, fx.querier.loads)
}

func TestExportWritesCSV(t *testing.T) {
	m, fx := newTestModel(t)
	m = drive(t, m, ui.DatasetSelectedMsg{Name: "contacts"})
	m = drive(t, m, keys("e"))

	path := filepath.Join(fx.dir, "contacts-20240501-120000.csv")
	assert.Equal(t, "Exported 3 rows to "+path, m.statusbar.Message())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "id,name,status\n1,Ann,active\n2,Bob,lost\n3,Cy,active\n", string(data))
}

func TestExportFailure(t *testing.T) {
	m, fx := newTestModel(t)
	m.exportDir = filepath.Join(fx.dir, "does", "not", "exist")
	m = drive(t, m, ui.DatasetSelectedMsg{Name: "contacts"})
	m = drive(t, m, keys("e"))
	assert.Contains(t, m.statusbar.Message(), "Export failed")
}

func TestCommitStagedDelete(t *testing.T) {
	m, fx := newTestModel(t)
	m = drive(t, m, ui.DatasetSelectedMsg{Name: "users"})
	assert.Equal(t, "Loaded 2 rows from Users", m.statusbar.Message())

	m = drive(t, m, keys(" "))
	m = drive(t, m, keys("d"))
	assert.Equal(t, 1, m.changes.PendingCount())

	m = drive(t, m, keys("ctrl+s"))
	assert.Equal(t, []string{`DELETE FROM "users" WHERE "id"::text = ANY($1)`}, fx.committer.queries)
	assert.Equal(t, [][]any{{[]string{"1"}}}, fx.committer.args)
	assert.False(t, m.changes.HasChanges())
	assert.Equal(t, 2, fx.querier.loads, "commit reloads the dataset")
}

func TestCommitFailureKeepsChanges(t *testing.T) {
	m, fx := newTestModel(t)
	fx.committer.err = fmt.Errorf("permission denied")
	m = drive(t, m, ui.DatasetSelectedMsg{Name: "users"})
	m = drive(t, m, keys(" "))
	m = drive(t, m, keys("d"))
	m = drive(t, m, keys("ctrl+s"))

	assert.Equal(t, "Commit failed: permission denied", m.statusbar.Message())
	assert.True(t, m.changes.HasChanges())
}

func TestOtherConnectionIsReadOnly(t *testing.T) {
	m, _ := newTestModel(t)
	m = drive(t, m, ui.DatasetSelectedMsg{Name: "archive"})
	assert.Equal(t, "Loaded 2 rows from Archived users (read-only)", m.statusbar.Message())

	m = drive(t, m, keys(" "))
	m = drive(t, m, keys("d"))
	assert.Equal(t, "Dataset is read-only", m.statusbar.Message())
	assert.False(t, m.changes.HasChanges())
}

func TestCommitWithoutDatabase(t *testing.T) {
	m, _ := newTestModel(t)
	m.committer = nil
	m = drive(t, m, ui.CommitRequestMsg{})
	assert.Equal(t, "Commit failed: no database connection", m.statusbar.Message())
}

func TestEditBlockedShowsReason(t *testing.T) {
	m, _ := newTestModel(t)
	m = drive(t, m, ui.DatasetSelectedMsg{Name: "contacts"})
	m = drive(t, m, keys(" "))
	m = drive(t, m, keys("d"))
	assert.Equal(t, "Dataset is read-only", m.statusbar.Message())
}

func TestHelpAndFocus(t *testing.T) {
	m, _ := newTestModel(t)
	assert.Equal(t, SidebarPane, m.activePane)

	m = drive(t, m, keys("tab"))
	assert.Equal(t, TablePane, m.activePane)
	m = drive(t, m, keys("tab"))
	assert.Equal(t, SidebarPane, m.activePane)

	m = drive(t, m, keys("?"))
	assert.True(t, m.showHelp)
	assert.Contains(t, ansi.Strip(m.View()), "clear filters")
}

func TestCtrlCQuits(t *testing.T) {
	m, _ := newTestModel(t)
	_, cmd := m.Update(keys("ctrl+c"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestEventSinkDrain(t *testing.T) {
	s := &eventSink{logger: zap.NewNop()}
	assert.Empty(t, s.drain())
	s.add("a")
	s.add("b")
	assert.Equal(t, "a · b", s.drain())
	assert.Empty(t, s.drain())
}
