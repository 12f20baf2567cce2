package dhis2

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minios-linux/d2dedup/dedupe"
)

func newTestClient(t *testing.T, srv *httptest.Server, auth Auth, retries int) *Client {
	t.Helper()
	c, err := New(Options{
		BaseURL:    srv.URL + "/",
		Auth:       auth,
		MaxRetries: retries,
		Log:        log.New(io.Discard),
	})
	require.NoError(t, err)
	c.backoff = func(int) time.Duration { return 0 }
	return c
}

var basic = Auth{Kind: AuthBasic, Username: "admin", Password: "district"}

func TestNewValidatesOptions(t *testing.T) {
	scenarios := []struct {
		name string
		opts Options
	}{
		{"missing url", Options{}},
		{"relative url", Options{BaseURL: "play.dhis2.org"}},
		{"basic without user", Options{BaseURL: "https://x", Auth: Auth{Kind: AuthBasic}}},
		{"token without token", Options{BaseURL: "https://x", Auth: Auth{Kind: AuthToken}}},
		{"unknown kind", Options{BaseURL: "https://x", Auth: Auth{Kind: "oauth"}}},
	}
	for _, sc := range scenarios {
		t.Run(sc.name, func(t *testing.T) {
			_, err := New(sc.opts)
			assert.Error(t, err)
		})
	}

	c, err := New(Options{BaseURL: " https://play.dhis2.org/dev/ "})
	require.NoError(t, err)
	assert.Equal(t, "https://play.dhis2.org/dev", c.BaseURL())
}

func TestAuthHeaders(t *testing.T) {
	var got []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"version":"2.40.1"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, basic, 0).Ping(context.Background())
	require.NoError(t, err)
	info, err := newTestClient(t, srv, Auth{Kind: AuthToken, Token: "d2pat_abc"}, 0).Ping(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "2.40.1", info.Version)
	assert.Equal(t, []string{"Basic YWRtaW46ZGlzdHJpY3Q=", "ApiToken d2pat_abc"}, got)
}

func TestListTypes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/schemas.json", r.URL.Path)
		assert.Equal(t, "translatable:eq:true", r.URL.Query().Get("filter"))
		_, _ = w.Write([]byte(`{"schemas":[
			{"name":"dataElement","plural":"dataElements","translatable":true,"relativeApiEndpoint":"/dataElements"},
			{"name":"user","plural":"users","translatable":false},
			{"name":"indicator","plural":"indicators","translatable":true}
		]}`))
	}))
	defer srv.Close()

	types, err := newTestClient(t, srv, basic, 0).ListTypes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []dedupe.ObjectType{
		{Name: "dataElement", Plural: "dataElements", APIEndpoint: "/dataElements"},
		{Name: "indicator", Plural: "indicators"},
	}, types)
}

func TestFetchObjects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/indicators", r.URL.Path)
		assert.Equal(t, "false", r.URL.Query().Get("paging"))
		assert.Equal(t, "id,name,translations", r.URL.Query().Get("fields"))
		_, _ = w.Write([]byte(`{"indicators":[{"id":"Uvn6LCg7dVU","name":"ANC 1","translations":[
			{"locale":"fr","property":"NAME","value":"CPN 1"},
			{"locale":"fr","property":"NAME","value":"CPN1"}
		]}]}`))
	}))
	defer srv.Close()

	objects, err := newTestClient(t, srv, basic, 0).FetchObjects(context.Background(), dedupe.ObjectType{Plural: "indicators"})
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, "Uvn6LCg7dVU", objects[0].ID)
	assert.Equal(t, "ANC 1", objects[0].Name)
	assert.Len(t, objects[0].Translations, 2)
}

func TestFetchObjectsMissingKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"pager":{}}`))
	}))
	defer srv.Close()

	objects, err := newTestClient(t, srv, basic, 0).FetchObjects(context.Background(), dedupe.ObjectType{Plural: "indicators"})
	require.NoError(t, err)
	assert.Empty(t, objects)
}

func TestFetchFreshAndWriteBackRoundTrip(t *testing.T) {
	var put map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/indicators/abc", r.URL.Path)
		switch r.Method {
		case http.MethodGet:
			assert.Equal(t, ":owner", r.URL.Query().Get("fields"))
			_, _ = w.Write([]byte(`{"id":"abc","code":"ANC1","decimals":12345678901234567890,
				"translations":[{"locale":"en","property":"NAME","value":"A"},{"locale":"en","property":"NAME","value":"B"}]}`))
		case http.MethodPut:
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			dec := json.NewDecoder(r.Body)
			dec.UseNumber()
			assert.NoError(t, dec.Decode(&put))
			_, _ = w.Write([]byte(`{"httpStatus":"OK","status":"OK"}`))
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv, basic, 0)
	typ := dedupe.ObjectType{Plural: "indicators"}

	obj, err := c.FetchFresh(context.Background(), typ, "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", obj.ID)
	assert.Len(t, obj.Translations, 2)
	assert.NotContains(t, obj.Fields, "translations")
	assert.Equal(t, json.Number("12345678901234567890"), obj.Fields["decimals"])

	obj.Translations = obj.Translations[1:]
	require.NoError(t, c.WriteBack(context.Background(), typ, "abc", obj))

	assert.Equal(t, "ANC1", put["code"])
	assert.Equal(t, json.Number("12345678901234567890"), put["decimals"])
	assert.Equal(t, []any{map[string]any{"locale": "en", "property": "NAME", "value": "B"}}, put["translations"])
}

func TestWriteBackEmptyTranslations(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		body = string(b)
	}))
	defer srv.Close()

	err := newTestClient(t, srv, basic, 0).WriteBack(context.Background(), dedupe.ObjectType{Plural: "indicators"}, "abc",
		&dedupe.FullObject{ID: "abc", Fields: map[string]any{"id": "abc"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"abc","translations":[]}`, body)
}

func TestWriteBackImportReportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ERROR","message":"Property name is not unique"}`))
	}))
	defer srv.Close()

	err := newTestClient(t, srv, basic, 0).WriteBack(context.Background(), dedupe.ObjectType{Plural: "indicators"}, "abc",
		&dedupe.FullObject{ID: "abc"})
	assert.ErrorContains(t, err, "Property name is not unique")
}

func TestRetriesServerErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"version":"2.39"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, basic, 2).Ping(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetriesExhausted(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, basic, 1).Ping(context.Background())

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
	assert.Equal(t, 2, calls)
}

func TestNegativeRetriesStillSendOnce(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := newTestClient(t, srv, basic, -1).WriteBack(context.Background(), dedupe.ObjectType{Plural: "indicators"}, "abc",
		&dedupe.FullObject{ID: "abc"})

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
	assert.Equal(t, 1, calls)
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, `{"message":"Unauthorized"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, basic, 3).ListTypes(context.Background())

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
	assert.False(t, se.Temporary())
	assert.Contains(t, se.Error(), "Unauthorized")
	assert.Equal(t, 1, calls)
}

func TestCanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(t, srv, basic, 3).Ping(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
