package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/Sternrassler/arxiv-client/internal/testutil"
	"github.com/Sternrassler/arxiv-client/pkg/client"
	"github.com/Sternrassler/arxiv-client/pkg/feed"
)

func newTestClient(t *testing.T, mock *testutil.MockArxiv) *client.Client {
	t.Helper()
	cc := client.DefaultConfig()
	cc.BaseURL = mock.URL()
	cc.Delay = 20 * time.Millisecond
	cc.NumRetries = 0
	c, err := client.New(cc)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func serve(t *testing.T, h http.Handler, target string) (*http.Response, []byte) {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	resp := w.Result()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestHealthEndpoint(t *testing.T) {
	mock := testutil.NewMockArxiv()
	defer mock.Close()
	router := newRouter(newTestClient(t, mock))

	resp, body := serve(t, router, "/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var health healthResponse
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "20ms", health.Interval)
	assert.False(t, health.Shared)
	assert.Zero(t, health.Requests)
	assert.Nil(t, health.LastRequest)
	assert.Contains(t, health.Counters, "arxiv_pages_fetched_total")
	assert.NotEmpty(t, resp.Header.Get("Content-Type"))
}

func TestReadyEndpoint_WithoutRedis(t *testing.T) {
	mock := testutil.NewMockArxiv()
	defer mock.Close()
	router := newRouter(newTestClient(t, mock))

	resp, body := serve(t, router, "/ready")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))
}

func TestSearchEndpoint(t *testing.T) {
	mock := testutil.NewMockArxiv()
	defer mock.Close()
	mock.SetEntries(testutil.NewEntries(0, 5)...)
	c := newTestClient(t, mock)
	router := newRouter(c)

	resp, body := serve(t, router, "/search?q=electron&max_results=3&start=1&sort_by=submittedDate")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var got searchResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "electron", got.Query)
	assert.Equal(t, 1, got.Start)
	assert.Equal(t, 3, got.Count)
	require.Len(t, got.Results, 3)
	assert.Equal(t, "2101.00001v1", got.Results[0].ShortID())

	reqs := mock.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "submittedDate", reqs[0].Query.Get("sortBy"))

	_, body = serve(t, router, "/health")
	var health healthResponse
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, int64(1), health.Requests)
	assert.NotNil(t, health.LastRequest)
	assert.GreaterOrEqual(t, health.Counters["arxiv_results_yielded_total"], float64(3))
}

func TestSearchEndpoint_StartCountsFromOffset(t *testing.T) {
	mock := testutil.NewMockArxiv()
	defer mock.Close()
	mock.SetEntries(testutil.NewEntries(0, 30)...)
	router := newRouter(newTestClient(t, mock))

	tests := []struct {
		name      string
		target    string
		wantCount int
		wantFirst string
	}{
		{"default page past start", "/search?q=x&start=10", 10, "2101.00010v1"},
		{"start equals max_results", "/search?q=x&start=5&max_results=5", 5, "2101.00005v1"},
		{"start near the end", "/search?q=x&start=28&max_results=5", 2, "2101.00028v1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := serve(t, router, tt.target)
			require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

			var got searchResponse
			require.NoError(t, json.Unmarshal(body, &got))
			assert.Equal(t, tt.wantCount, got.Count)
			require.NotEmpty(t, got.Results)
			assert.Equal(t, tt.wantFirst, got.Results[0].ShortID())
		})
	}
}

func TestSearchEndpoint_BadRequests(t *testing.T) {
	mock := testutil.NewMockArxiv()
	defer mock.Close()
	router := newRouter(newTestClient(t, mock))

	tests := []struct {
		name   string
		target string
	}{
		{"no query", "/search"},
		{"non-numeric cap", "/search?q=x&max_results=ten"},
		{"non-numeric start", "/search?q=x&start=abc"},
		{"negative cap", "/search?q=x&max_results=-1"},
		{"negative start", "/search?q=x&start=-5"},
		{"unknown sort", "/search?q=x&sort_by=popularity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := serve(t, router, tt.target)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(body))

			var got searchResponse
			require.NoError(t, json.Unmarshal(body, &got))
			assert.NotEmpty(t, got.Error)
		})
	}
	assert.Equal(t, 0, mock.RequestCount())
}

func TestSearchEndpoint_UpstreamFailure(t *testing.T) {
	mock := testutil.NewMockArxiv()
	defer mock.Close()
	mock.SetEntries(testutil.NewEntries(0, 2)...)
	mock.FailNext(http.StatusServiceUnavailable)
	router := newRouter(newTestClient(t, mock))

	resp, body := serve(t, router, "/search?q=x")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	var got searchResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Contains(t, got.Error, "retry attempts exhausted")
	assert.Empty(t, got.Results)
}

func TestMetricsEndpoint(t *testing.T) {
	mock := testutil.NewMockArxiv()
	defer mock.Close()
	mock.SetEntries(testutil.NewEntries(0, 1)...)
	c := newTestClient(t, mock)
	router := newRouter(c)

	serve(t, router, "/search?q=x")

	resp, body := serve(t, router, "/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := string(body)
	assert.Contains(t, out, "# HELP")
	assert.Contains(t, out, `arxiv_requests_total{status="200"}`)
	assert.Contains(t, out, "arxiv_pages_fetched_total")
}

func TestWriteResults(t *testing.T) {
	results := []*feed.Result{{
		EntryID:         "http://arxiv.org/abs/2101.00001v1",
		Title:           "Paper number 1",
		Published:       time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC),
		PrimaryCategory: "cs.LG",
		Authors:         []feed.Author{{Name: "Ada"}, {Name: "Grace"}},
	}}

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeResults(&buf, formatText, results))
		assert.Equal(t,
			"2101.00001v1  2021-01-04  [cs.LG]\n    Paper number 1\n    Ada, Grace\n",
			buf.String())
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeResults(&buf, formatJSON, results))
		var got []*feed.Result
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		require.Len(t, got, 1)
		assert.Equal(t, results[0].EntryID, got[0].EntryID)
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeResults(&buf, formatYAML, results))
		var got []map[string]any
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
		require.Len(t, got, 1)
		assert.True(t, strings.Contains(buf.String(), "Paper number 1"))
	})

	t.Run("json empty", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeResults(&buf, formatJSON, nil))
		assert.Equal(t, "[]\n", buf.String())
	})
}

// execute runs the CLI with args and returns its stdout. Flag values are
// reset afterwards so commands can be executed again by later tests.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		resetFlags(rootCmd)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			sv.Replace(nil)
		} else {
			f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func TestSearchCommand(t *testing.T) {
	mock := testutil.NewMockArxiv()
	defer mock.Close()
	mock.SetEntries(testutil.NewEntries(0, 4)...)

	out, err := execute(t,
		"search", "-q", "electron", "-n", "3", "--format", "json",
		"--base-url", mock.URL(), "--delay", "1ms", "--page-size", "2",
	)
	require.NoError(t, err)

	var got []*feed.Result
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 3)
	assert.Equal(t, "2101.00000v1", got[0].ShortID())
	assert.Equal(t, []int{0, 2}, []int{mock.Requests()[0].Start, mock.Requests()[1].Start})
	assert.Equal(t, 2, cfg.PageSize)
}

func TestSearchCommand_OffsetBeyondMaxResults(t *testing.T) {
	mock := testutil.NewMockArxiv()
	defer mock.Close()
	mock.SetEntries(testutil.NewEntries(0, 30)...)

	out, err := execute(t,
		"search", "-q", "electron", "--offset", "10", "-n", "4", "--format", "json",
		"--base-url", mock.URL(), "--delay", "1ms",
	)
	require.NoError(t, err)

	var got []*feed.Result
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 4)
	assert.Equal(t, "2101.00010v1", got[0].ShortID())
	assert.Equal(t, "2101.00013v1", got[3].ShortID())
	require.Equal(t, 1, mock.RequestCount())
	assert.Equal(t, 10, mock.Requests()[0].Start)
}

func TestDownloadCommand(t *testing.T) {
	files := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/pdf/2101.00000v1":
			w.Write([]byte("%PDF-1.4 paper"))
		case "/src/2101.00000v1":
			w.Write([]byte("source tarball"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer files.Close()

	entry := testutil.NewEntry(0)
	entry.Links[1].Href = files.URL + "/pdf/2101.00000v1"

	mock := testutil.NewMockArxiv()
	defer mock.Close()
	mock.SetEntries(entry)

	dir := t.TempDir()

	t.Run("pdf", func(t *testing.T) {
		out, err := execute(t,
			"download", "2101.00000v1", "--dir", dir,
			"--base-url", mock.URL(), "--delay", "1ms",
		)
		require.NoError(t, err)

		path := filepath.Join(dir, "2101.00000v1.Paper_number_0.pdf")
		assert.Equal(t, path+"\n", out)
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "%PDF-1.4 paper", string(data))

		reqs := mock.Requests()
		require.NotEmpty(t, reqs)
		assert.Equal(t, "2101.00000v1", reqs[len(reqs)-1].Query.Get("id_list"))
	})

	t.Run("source with filename", func(t *testing.T) {
		out, err := execute(t,
			"download", "2101.00000v1", "--source", "--filename", "paper.tar.gz", "--dir", dir,
			"--base-url", mock.URL(), "--delay", "1ms",
		)
		require.NoError(t, err)

		path := filepath.Join(dir, "paper.tar.gz")
		assert.Equal(t, path+"\n", out)
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "source tarball", string(data))
	})

	t.Run("filename needs a single id", func(t *testing.T) {
		before := mock.RequestCount()
		_, err := execute(t,
			"download", "2101.00000v1", "2101.00001v1", "--filename", "x.pdf", "--dir", dir,
			"--base-url", mock.URL(), "--delay", "1ms",
		)
		require.Error(t, err)
		assert.Equal(t, before, mock.RequestCount())
	})

	t.Run("no matching paper", func(t *testing.T) {
		empty := testutil.NewMockArxiv()
		defer empty.Close()

		_, err := execute(t,
			"download", "9999.99999", "--dir", dir,
			"--base-url", empty.URL(), "--delay", "1ms",
		)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no papers found")
	})
}
