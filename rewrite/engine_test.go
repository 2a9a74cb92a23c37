package rewrite

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duck-access/gateway"
	"duck-access/internal/sqlexpr"
	"duck-access/manifest"
	"duck-access/secret"
)

// staticFetcher serves a fixed manifest body, or a fixed error.
type staticFetcher struct {
	body []byte
	err  error
}

func (f *staticFetcher) FetchManifest(ctx context.Context, auth *secret.AuthContext, schema, table string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.body, nil
}

func newEngine(t *testing.T, body string, opts ...EngineOption) *Engine {
	t.Helper()
	cache := manifest.NewCache(&staticFetcher{body: []byte(body)})
	return NewEngine(cache, opts...)
}

var testAuth = secret.NewAuthContext("https://api.example.com", "k1")

func TestRewrite_NoAuthContext(t *testing.T) {
	e := newEngine(t, `{"files": ["https://x/a.parquet"]}`)

	_, err := e.Rewrite(context.Background(), "main", "orders", nil)
	require.ErrorIs(t, err, ErrNotApplicable)
}

func TestRewrite_UnprotectedTableScansDirectly(t *testing.T) {
	e := newEngine(t, `{
		"table": "orders",
		"files": ["https://x/a.parquet", "https://x/b.parquet"],
		"columns": [{"name": "id", "type": "BIGINT"}]
	}`)

	res, err := e.Rewrite(context.Background(), "main", "orders", testAuth)
	require.NoError(t, err)

	_, ok := res.Fragment.(*TableFunctionRef)
	require.True(t, ok, "no filters and no masks must not produce a subquery")
	assert.Equal(t,
		`read_parquet(['https://x/a.parquet', 'https://x/b.parquet']) AS "orders"`,
		res.Fragment.Ref())
	assert.Empty(t, res.Warnings)
}

func TestRewrite_ColumnMasks(t *testing.T) {
	e := newEngine(t, `{
		"table": "users",
		"files": ["https://x/u.parquet"],
		"columns": [
			{"name": "id", "type": "BIGINT"},
			{"name": "email", "type": "VARCHAR"},
			{"name": "age", "type": "INTEGER"}
		],
		"column_masks": {"email": "'***'"}
	}`)

	res, err := e.Rewrite(context.Background(), "main", "users", testAuth)
	require.NoError(t, err)

	// Masked column replaced and aliased back; the rest pass through in
	// declared order.
	assert.Equal(t,
		`(SELECT "id", '***' AS "email", "age" FROM read_parquet(['https://x/u.parquet']) AS "__duck_access_src") AS "users"`,
		res.Fragment.Ref())
}

func TestRewrite_RowFiltersConjoined(t *testing.T) {
	e := newEngine(t, `{
		"table": "events",
		"files": ["https://x/e.parquet"],
		"row_filters": ["region = 'EU'", "age >= 18"]
	}`)

	res, err := e.Rewrite(context.Background(), "main", "events", testAuth)
	require.NoError(t, err)

	assert.Equal(t,
		`(SELECT * FROM read_parquet(['https://x/e.parquet']) AS "__duck_access_src" WHERE "region" = 'EU' AND "age" >= 18) AS "events"`,
		res.Fragment.Ref())
}

func TestRewrite_DisjunctiveFilterStaysConjoined(t *testing.T) {
	e := newEngine(t, `{
		"table": "events",
		"files": ["https://x/e.parquet"],
		"row_filters": ["a = 1 OR b = 2", "c = 3"]
	}`)

	res, err := e.Rewrite(context.Background(), "main", "events", testAuth)
	require.NoError(t, err)

	// An OR filter must be grouped before conjoining, or rows matching only
	// its left branch would escape the other filters.
	assert.Equal(t,
		`(SELECT * FROM read_parquet(['https://x/e.parquet']) AS "__duck_access_src" WHERE ("a" = 1 OR "b" = 2) AND "c" = 3) AS "events"`,
		res.Fragment.Ref())

	sub, ok := res.Fragment.(*SubqueryRef)
	require.True(t, ok)
	top, err := sqlexpr.ParseExpr(sqlexpr.FormatExpr(sub.Where))
	require.NoError(t, err)
	bin, ok := top.(*sqlexpr.BinaryExpr)
	require.True(t, ok, "combined filter must be a binary expression")
	assert.Equal(t, sqlexpr.TOKEN_AND, bin.Op, "conjunction must bind at the top level")
}

func TestRewrite_ThreeFiltersMixedShapes(t *testing.T) {
	e := newEngine(t, `{
		"table": "events",
		"files": ["https://x/e.parquet"],
		"row_filters": ["a = 1 OR b = 2", "c = 3", "d = 4 OR e = 5"]
	}`)

	res, err := e.Rewrite(context.Background(), "main", "events", testAuth)
	require.NoError(t, err)
	assert.Equal(t,
		`(SELECT * FROM read_parquet(['https://x/e.parquet']) AS "__duck_access_src" WHERE ("a" = 1 OR "b" = 2) AND "c" = 3 AND ("d" = 4 OR "e" = 5)) AS "events"`,
		res.Fragment.Ref())
}

func TestRewrite_FiltersAndMasksTogether(t *testing.T) {
	e := newEngine(t, `{
		"table": "users",
		"files": ["https://x/u.parquet"],
		"columns": [
			{"name": "id", "type": "BIGINT"},
			{"name": "ssn", "type": "VARCHAR"}
		],
		"row_filters": ["active"],
		"column_masks": {"ssn": "concat('***-', substr(ssn, 8, 4))"}
	}`)

	res, err := e.Rewrite(context.Background(), "main", "users", testAuth)
	require.NoError(t, err)

	assert.Equal(t,
		`(SELECT "id", concat('***-', substr("ssn", 8, 4)) AS "ssn" FROM read_parquet(['https://x/u.parquet']) AS "__duck_access_src" WHERE "active") AS "users"`,
		res.Fragment.Ref())
}

func TestRewrite_MaskForUnknownColumnIgnored(t *testing.T) {
	e := newEngine(t, `{
		"table": "users",
		"files": ["https://x/u.parquet"],
		"columns": [{"name": "id", "type": "BIGINT"}],
		"column_masks": {"ghost": "'***'"}
	}`)

	res, err := e.Rewrite(context.Background(), "main", "users", testAuth)
	require.NoError(t, err)
	assert.Equal(t,
		`(SELECT "id" FROM read_parquet(['https://x/u.parquet']) AS "__duck_access_src") AS "users"`,
		res.Fragment.Ref())
	assert.Empty(t, res.Warnings)
}

func TestRewrite_MasksWithoutDeclaredColumnsProjectStar(t *testing.T) {
	e := newEngine(t, `{
		"table": "users",
		"files": ["https://x/u.parquet"],
		"column_masks": {"email": "'***'"}
	}`)

	res, err := e.Rewrite(context.Background(), "main", "users", testAuth)
	require.NoError(t, err)
	assert.Equal(t,
		`(SELECT * FROM read_parquet(['https://x/u.parquet']) AS "__duck_access_src") AS "users"`,
		res.Fragment.Ref())
}

func TestRewrite_FailOpenDropsBrokenEntries(t *testing.T) {
	e := newEngine(t, `{
		"table": "users",
		"files": ["https://x/u.parquet"],
		"columns": [{"name": "email", "type": "VARCHAR"}],
		"row_filters": ["age > 18", "((broken"],
		"column_masks": {"email": "'unterminated"}
	}`)

	res, err := e.Rewrite(context.Background(), "main", "users", testAuth)
	require.NoError(t, err)

	// Broken mask serves the column raw; broken filter is dropped, the
	// parsable one survives.
	assert.Equal(t,
		`(SELECT "email" FROM read_parquet(['https://x/u.parquet']) AS "__duck_access_src" WHERE "age" > 18) AS "users"`,
		res.Fragment.Ref())

	require.Len(t, res.Warnings, 2)
	kinds := []string{res.Warnings[0].Kind, res.Warnings[1].Kind}
	assert.Contains(t, kinds, "column_mask")
	assert.Contains(t, kinds, "row_filter")
}

func TestRewrite_FailClosedRejectsBrokenMask(t *testing.T) {
	e := newEngine(t, `{
		"table": "users",
		"files": ["https://x/u.parquet"],
		"columns": [{"name": "email", "type": "VARCHAR"}],
		"column_masks": {"email": "'unterminated"}
	}`, WithFailMode(FailClosed))

	_, err := e.Rewrite(context.Background(), "main", "users", testAuth)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `column mask for "email"`)
}

func TestRewrite_FailClosedRejectsBrokenFilter(t *testing.T) {
	e := newEngine(t, `{
		"table": "users",
		"files": ["https://x/u.parquet"],
		"row_filters": ["((broken"]
	}`, WithFailMode(FailClosed))

	_, err := e.Rewrite(context.Background(), "main", "users", testAuth)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row filter")
}

func TestRewrite_FetchErrorNamesTable(t *testing.T) {
	cache := manifest.NewCache(&staticFetcher{err: &gateway.NotFoundError{Message: "no such table"}})
	e := NewEngine(cache)

	_, err := e.Rewrite(context.Background(), "main", "ghost", testAuth)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `failed to resolve table "ghost"`)
	assert.Contains(t, err.Error(), "no such table")

	var nf *gateway.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestRewrite_SelectSQLWrapsFragment(t *testing.T) {
	e := newEngine(t, `{
		"table": "orders",
		"files": ["https://x/a.parquet"]
	}`)

	res, err := e.Rewrite(context.Background(), "main", "orders", testAuth)
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT * FROM read_parquet(['https://x/a.parquet']) AS "orders"`,
		res.Fragment.SelectSQL())
	assert.Equal(t, "orders", res.Fragment.Alias())
}

// End-to-end over a live HTTP server: gateway, cache and engine wired
// together the way the host engine binds them.
func TestRewrite_EndToEnd(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/manifest", func(w http.ResponseWriter, req *http.Request) {
		if req.Header.Get("X-API-Key") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var body struct {
			Table string `json:"table"`
		}
		require.NoError(t, decodeJSON(req, &body))
		switch body.Table {
		case "protected":
			_, _ = w.Write([]byte(`{
				"table": "protected",
				"files": ["https://x/p1.parquet", "https://x/p2.parquet"],
				"columns": [{"name": "name", "type": "VARCHAR"}, {"name": "salary", "type": "BIGINT"}],
				"row_filters": ["dept = 'eng'"],
				"column_masks": {"salary": "NULL"}
			}`))
		case "open":
			_, _ = w.Write([]byte(`{"table": "open", "files": ["https://x/o1.parquet", "https://x/o2.parquet"]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message": "no such table"}`))
		}
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	auth := secret.NewAuthContext(srv.URL, "secret")
	cache := manifest.NewCache(gateway.NewClient())
	engine := NewEngine(cache)

	t.Run("protected table rewritten", func(t *testing.T) {
		res, err := engine.Rewrite(context.Background(), "main", "protected", auth)
		require.NoError(t, err)
		assert.Equal(t,
			`(SELECT "name", NULL AS "salary" FROM read_parquet(['https://x/p1.parquet', 'https://x/p2.parquet']) AS "__duck_access_src" WHERE "dept" = 'eng') AS "protected"`,
			res.Fragment.Ref())
	})

	t.Run("unknown table surfaces server message", func(t *testing.T) {
		_, err := engine.Rewrite(context.Background(), "main", "ghost", auth)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no such table")
	})

	t.Run("open table scans all files directly", func(t *testing.T) {
		res, err := engine.Rewrite(context.Background(), "main", "open", auth)
		require.NoError(t, err)
		assert.Equal(t,
			`read_parquet(['https://x/o1.parquet', 'https://x/o2.parquet']) AS "open"`,
			res.Fragment.Ref())
	})

	t.Run("no credential falls through", func(t *testing.T) {
		_, err := engine.Rewrite(context.Background(), "main", "protected", nil)
		require.ErrorIs(t, err, ErrNotApplicable)
	})
}

func decodeJSON(req *http.Request, v any) error {
	defer req.Body.Close() //nolint:errcheck
	return json.NewDecoder(req.Body).Decode(v)
}
