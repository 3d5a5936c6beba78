package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittostore/pkg/storage/helper"
)

const walSegment = "000000010000000000000001"

type apiResponse struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error"`
}

type problem struct {
	Status int    `json:"status"`
	Detail string `json:"detail"`
}

// newTestServer serves one posix repository holding an archive.info and a
// sharded WAL segment for stanza main.
func newTestServer(t *testing.T, gatherer prometheus.Gatherer) *httptest.Server {
	t.Helper()
	dir := t.TempDir()
	repo := filepath.Join(dir, "repo")

	walDir := filepath.Join(repo, "archive", "main", "16-1", walSegment[:16])
	require.NoError(t, os.MkdirAll(walDir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(walDir, walSegment), []byte("wal-content"), 0o640))
	require.NoError(t, os.WriteFile(filepath.Join(repo, "archive", "main", "archive.info"), []byte("[db]\n"), 0o640))

	hc := helper.New(helper.Options{
		Stanza:    "main",
		SpoolPath: filepath.Join(dir, "spool"),
		LockPath:  filepath.Join(dir, "lock"),
		Repos:     []helper.RepoOptions{{Type: helper.RepoPosix, Path: repo}},
	})
	t.Cleanup(func() { _ = hc.Close() })

	srv := httptest.NewServer(NewRouter(hc, gatherer))
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, srv *httptest.Server, route string, query url.Values) *http.Response {
	t.Helper()
	u := srv.URL + route
	if query != nil {
		u += "?" + query.Encode()
	}
	resp, err := http.Get(u)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil)

	resp := get(t, srv, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", decode[apiResponse](t, resp).Status)

	resp = get(t, srv, "/health/repos", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[apiResponse](t, resp)

	var repos []struct {
		Repo   int    `json:"repo"`
		Type   string `json:"type"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &repos))
	require.Len(t, repos, 1)
	assert.Equal(t, 1, repos[0].Repo)
	assert.Equal(t, "posix", repos[0].Type)
	assert.Equal(t, "healthy", repos[0].Status)
}

func TestRootRedirects(t *testing.T) {
	srv := newTestServer(t, nil)

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
	resp, err := client.Get(srv.URL + "/")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Equal(t, "/health", resp.Header.Get("Location"))
}

func TestList(t *testing.T) {
	srv := newTestServer(t, nil)

	resp := get(t, srv, "/api/v1/repos/1/list", url.Values{"path": {"<REPO:ARCHIVE>"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var entries []struct {
		Name string `json:"name"`
		Type string `json:"type"`
	}
	require.NoError(t, json.Unmarshal(decode[apiResponse](t, resp).Data, &entries))

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"16-1", "archive.info"}, names)
	assert.Equal(t, "path", entries[0].Type)
	assert.Equal(t, "file", entries[1].Type)
}

func TestListRecurse(t *testing.T) {
	srv := newTestServer(t, nil)

	resp := get(t, srv, "/api/v1/repos/1/list", url.Values{"path": {"<REPO:ARCHIVE>/16-1"}, "recurse": {"true"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var entries []struct {
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal(decode[apiResponse](t, resp).Data, &entries))

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{walSegment[:16], walSegment[:16] + "/" + walSegment}, names)
}

func TestInfo(t *testing.T) {
	srv := newTestServer(t, nil)

	resp := get(t, srv, "/api/v1/repos/1/info", url.Values{"path": {"<REPO:ARCHIVE>/16-1/" + walSegment}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var entry struct {
		Name string `json:"name"`
		Type string `json:"type"`
		Size uint64 `json:"size"`
		Mode string `json:"mode"`
	}
	require.NoError(t, json.Unmarshal(decode[apiResponse](t, resp).Data, &entry))
	assert.Equal(t, "<REPO:ARCHIVE>/16-1/"+walSegment, entry.Name)
	assert.Equal(t, "file", entry.Type)
	assert.Equal(t, uint64(len("wal-content")), entry.Size)
	assert.Equal(t, "0640", entry.Mode)
}

func TestFile(t *testing.T) {
	srv := newTestServer(t, nil)

	resp := get(t, srv, "/api/v1/repos/1/file", url.Values{"path": {"<REPO:ARCHIVE>/16-1/" + walSegment}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/octet-stream", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "wal-content", string(body))
}

func TestErrors(t *testing.T) {
	srv := newTestServer(t, nil)

	tests := []struct {
		name   string
		route  string
		path   string
		status int
	}{
		{"missing file", "/api/v1/repos/1/file", "<REPO:ARCHIVE>/missing", http.StatusNotFound},
		{"missing info", "/api/v1/repos/1/info", "<REPO:BACKUP>/missing", http.StatusNotFound},
		{"unknown repo", "/api/v1/repos/2/list", "<REPO:ARCHIVE>", http.StatusNotFound},
		{"repo zero", "/api/v1/repos/0/list", "<REPO:ARCHIVE>", http.StatusNotFound},
		{"not a number", "/api/v1/repos/one/list", "<REPO:ARCHIVE>", http.StatusNotFound},
		{"escaping path", "/api/v1/repos/1/info", "<REPO:ARCHIVE>/../..", http.StatusBadRequest},
		{"unrouted path", "/api/v1/repos/1/info", "/etc/passwd", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := get(t, srv, tt.route, url.Values{"path": {tt.path}})
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))
			assert.Equal(t, tt.status, decode[problem](t, resp).Status)
		})
	}
}

func TestMetrics(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		srv := newTestServer(t, nil)
		assert.Equal(t, http.StatusNotFound, get(t, srv, "/metrics", nil).StatusCode)
	})

	t.Run("enabled", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "dstore_test_total"})
		reg.MustRegister(counter)
		counter.Inc()

		srv := newTestServer(t, reg)
		resp := get(t, srv, "/metrics", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), "dstore_test_total 1")
	})
}
