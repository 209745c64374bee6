package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"cli-admin/internal/config"
	"cli-admin/internal/db"
	"cli-admin/internal/explore"
)

func rowIDs(rows []explore.Row) []explore.RowID {
	out := make([]explore.RowID, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}

func httpSpec(url string) *config.Dataset {
	return &config.Dataset{
		Name:    "contacts",
		Title:   "Contacts",
		IDField: "id",
		Source:  config.Source{Kind: config.SourceHTTP, URL: url, TokenEnv: "CRM_TOKEN"},
	}
}

func newHTTP(t *testing.T, spec *config.Dataset, client *http.Client) *HTTP {
	t.Helper()
	l, err := New(spec, Deps{
		Client: client,
		Getenv: func(k string) string {
			if k == "CRM_TOKEN" {
				return "s3cret"
			}
			return ""
		},
	})
	require.NoError(t, err)
	h := l.(*HTTP)
	h.Backoff = time.Millisecond
	return h
}

func TestHTTPLoadsArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer s3cret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id": 1, "name": "Ann", "score": 80}, {"id": 2, "name": "Bob"}]`))
	}))
	defer srv.Close()

	ds, err := newHTTP(t, httpSpec(srv.URL), srv.Client()).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []explore.RowID{"1", "2"}, rowIDs(ds.Rows))
	assert.Equal(t, float64(80), ds.Rows[0].Fields["score"])

	keys := make([]string, len(ds.Columns))
	for i, c := range ds.Columns {
		keys[i] = c.Key
	}
	assert.Equal(t, []string{"id", "name", "score"}, keys)
	assert.False(t, ds.Editable())
}

func TestHTTPLoadsDataEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": [{"id": "a"}, {"name": "no id"}, {"id": "a"}], "total": 3}`))
	}))
	defer srv.Close()

	core, logs := observer.New(zapcore.WarnLevel)
	l, err := New(httpSpec(srv.URL), Deps{Client: srv.Client(), Logger: zap.New(core)})
	require.NoError(t, err)

	ds, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []explore.RowID{"a"}, rowIDs(ds.Rows))
	assert.Equal(t, 2, ds.Skipped)
	assert.Equal(t, 1, logs.FilterMessage("duplicate row id").Len())
	assert.Equal(t, 1, logs.FilterMessage("records skipped").Len())
}

func TestHTTPRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`[{"id": 7}]`))
	}))
	defer srv.Close()

	ds, err := newHTTP(t, httpSpec(srv.URL), srv.Client()).Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, ds.Rows, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPGivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	h := newHTTP(t, httpSpec(srv.URL), srv.Client())
	h.Retries = 2
	_, err := h.Load(context.Background())
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadGateway, se.Code)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newHTTP(t, httpSpec(srv.URL), srv.Client()).Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http 401")
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	h := newHTTP(t, httpSpec(srv.URL), srv.Client())
	h.Backoff = time.Hour
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := h.Load(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHTTPRejectsNonArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items": []}`))
	}))
	defer srv.Close()

	_, err := newHTTP(t, httpSpec(srv.URL), srv.Client()).Load(context.Background())
	assert.Error(t, err)
}

func TestNoIDField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"uuid": 1}, {"uuid": 2}]`))
	}))
	defer srv.Close()

	_, err := newHTTP(t, httpSpec(srv.URL), srv.Client()).Load(context.Background())
	assert.ErrorIs(t, err, ErrNoIDField)
}

func TestFileLoadsJSONAndYAML(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "contacts.json")
	yamlPath := filepath.Join(dir, "contacts.yml")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`[{"id": 1, "company": {"name": "ACME"}}]`), 0o600))
	require.NoError(t, os.WriteFile(yamlPath, []byte("data:\n  - id: 1\n    company: {name: ACME}\n  - id: 2\n    company: {name: Globex}\n"), 0o600))

	spec := &config.Dataset{
		Name:    "contacts",
		IDField: "id",
		Columns: []config.ColumnSpec{{Key: "company", Path: "company.name", Filterable: true}},
	}

	spec.Source = config.Source{Kind: config.SourceFile, Path: jsonPath}
	l, err := New(spec, Deps{})
	require.NoError(t, err)
	ds, err := l.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, ds.Rows, 1)
	assert.Equal(t, "ACME", ds.Columns[0].Display(ds.Rows[0]))

	spec.Source.Path = yamlPath
	ds, err = (&File{Spec: spec, Logger: zap.NewNop()}).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []explore.RowID{"1", "2"}, rowIDs(ds.Rows))
	assert.Equal(t, "Globex", ds.Columns[0].Display(ds.Rows[1]))
}

func TestFileErrors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`[1, 2]`), 0o600))

	spec := &config.Dataset{Name: "x", IDField: "id", Source: config.Source{Kind: config.SourceFile, Path: bad}}
	_, err := (&File{Spec: spec, Logger: zap.NewNop()}).Load(context.Background())
	assert.ErrorContains(t, err, "record 0 is not an object")

	spec.Source.Path = filepath.Join(dir, "missing.json")
	_, err = (&File{Spec: spec, Logger: zap.NewNop()}).Load(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

type fakeQuerier struct {
	table *db.Table
	err   error
	asked string
}

func (f *fakeQuerier) LoadTable(_ context.Context, table string, limit int) (*db.Table, error) {
	f.asked = table
	return f.table, f.err
}

func (f *fakeQuerier) LoadQuery(_ context.Context, sql string) (*db.Table, error) {
	f.asked = sql
	t := *f.table
	t.Name = ""
	return &t, f.err
}

func pgSpec() *config.Dataset {
	return &config.Dataset{
		Name:    "users",
		IDField: "id",
		Source:  config.Source{Kind: config.SourcePostgres, Connection: "prod", Table: "users", Limit: 100},
	}
}

func connectTo(q Querier) func(context.Context, string) (Querier, error) {
	return func(context.Context, string) (Querier, error) { return q, nil }
}

func TestPostgresUsesPrimaryKey(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 0, 0, time.UTC)
	q := &fakeQuerier{table: &db.Table{
		Name:        "users",
		Columns:     []string{"user_id", "email", "created_at"},
		ColumnTypes: []string{"int8", "text", "timestamptz"},
		PrimaryKeys: []string{"user_id"},
		Rows: []map[string]any{
			{"user_id": int64(1), "email": "a@x", "created_at": at},
			{"user_id": int64(2), "email": "b@x", "created_at": nil},
		},
	}}
	l, err := New(pgSpec(), Deps{Connect: connectTo(q)})
	require.NoError(t, err)

	ds, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "users", q.asked)
	assert.Equal(t, []explore.RowID{"1", "2"}, rowIDs(ds.Rows))
	assert.True(t, ds.Editable())
	assert.Equal(t, "user_id", ds.PrimaryKey)
	assert.Equal(t, "2024-01-02 03:04", ds.Columns[2].Display(ds.Rows[0]))
}

func TestPostgresCompositeKey(t *testing.T) {
	q := &fakeQuerier{table: &db.Table{
		Name:        "order_items",
		Columns:     []string{"order_id", "line", "sku"},
		PrimaryKeys: []string{"order_id", "line"},
		Rows: []map[string]any{
			{"order_id": int64(10), "line": int64(1), "sku": "A"},
			{"order_id": int64(10), "line": int64(2), "sku": "B"},
		},
	}}
	spec := pgSpec()
	spec.Source.Table = "order_items"
	ds, err := (&Postgres{Spec: spec, Connect: connectTo(q), Logger: zap.NewNop()}).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []explore.RowID{"10/1", "10/2"}, rowIDs(ds.Rows))
	assert.False(t, ds.Editable())
}

func TestPostgresQueryIsReadOnly(t *testing.T) {
	q := &fakeQuerier{table: &db.Table{
		Name:    "users",
		Columns: []string{"id", "email"},
		Rows:    []map[string]any{{"id": int64(5), "email": "e@x"}},
	}}
	spec := pgSpec()
	spec.Source.Query = "SELECT id, email FROM users"
	ds, err := (&Postgres{Spec: spec, Connect: connectTo(q), Logger: zap.NewNop()}).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, spec.Source.Query, q.asked)
	assert.Equal(t, []explore.RowID{"5"}, rowIDs(ds.Rows))
	assert.False(t, ds.Editable())
}

func TestPostgresWithoutKey(t *testing.T) {
	q := &fakeQuerier{table: &db.Table{Name: "logs", Columns: []string{"msg"}}}
	_, err := (&Postgres{Spec: pgSpec(), Connect: connectTo(q), Logger: zap.NewNop()}).Load(context.Background())
	assert.ErrorIs(t, err, ErrNoIDField)
}

func TestPostgresConnectError(t *testing.T) {
	boom := errors.New("refused")
	p := &Postgres{
		Spec:    pgSpec(),
		Connect: func(context.Context, string) (Querier, error) { return nil, boom },
		Logger:  zap.NewNop(),
	}
	_, err := p.Load(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestNewRejectsPostgresWithoutConnector(t *testing.T) {
	_, err := New(pgSpec(), Deps{})
	assert.Error(t, err)

	_, err = New(&config.Dataset{Name: "x", Source: config.Source{Kind: "ftp"}}, Deps{})
	assert.Error(t, err)
}

func TestDeriveColumnsPutsIDFirst(t *testing.T) {
	cols := deriveColumns([]map[string]any{{"b": 1, "id": 1}, {"a": 2, "id": 2}}, "id")
	keys := make([]string, len(cols))
	for i, c := range cols {
		keys[i] = c.Key
	}
	assert.Equal(t, []string{"id", "a", "b"}, keys)
}
