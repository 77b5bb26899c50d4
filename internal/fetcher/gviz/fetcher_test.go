package gviz

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/require"

	"github.com/Zevik/google-sheets-site-builder/internal/sitedata"
)

const pagesPayload = `/*O_o*/
google.visualization.Query.setResponse({"version":"0.6","reqId":"0","status":"ok","table":{"cols":[{"id":"A","label":"id","type":"number"},{"id":"B","label":"folder_id","type":"string"},{"id":"C","label":"","type":"string"},{"id":"D","label":"slug","type":"string"}],"rows":[{"c":[{"v":1.0},{"v":"3"},{"v":"ignored"},{"v":"about"}]},{"c":[{"v":2.0},null,null,{"v":"team"}]},{"c":[{"v":3.0}]}]}});`

func TestParseResponseBuildsRowsByLabel(t *testing.T) {
	t.Parallel()

	table, err := ParseResponse([]byte(pagesPayload))
	require.NoError(t, err)
	require.Equal(t, []string{"id", "folder_id", "slug"}, table.Columns)
	require.Len(t, table.Rows, 3)

	require.Equal(t, sitedata.Row{"id": 1.0, "folder_id": "3", "slug": "about"}, table.Rows[0])
	require.Equal(t, sitedata.Row{"id": 2.0, "folder_id": nil, "slug": "team"}, table.Rows[1])
	require.Equal(t, sitedata.Row{"id": 3.0, "folder_id": nil, "slug": nil}, table.Rows[2])
	for _, row := range table.Rows {
		require.NotContains(t, row, "")
	}
}

func TestParseResponseErrors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		body    string
		wantErr error
		wantMsg string
	}{
		{
			name:    "missing envelope",
			body:    `<html>Sign in</html>`,
			wantErr: sitedata.ErrMalformedResponse,
		},
		{
			name:    "invalid json inside envelope",
			body:    `google.visualization.Query.setResponse({not json});`,
			wantErr: sitedata.ErrMalformedResponse,
		},
		{
			name: "upstream error status",
			body: `google.visualization.Query.setResponse({"status":"error","errors":[` +
				`{"reason":"invalid_query","message":"Invalid sheet name","detailed_message":"Unable to parse"}]});`,
			wantErr: sitedata.ErrUpstreamReported,
			wantMsg: "Invalid sheet name",
		},
		{
			name:    "upstream error without message",
			body:    `google.visualization.Query.setResponse({"status":"error"});`,
			wantErr: sitedata.ErrUpstreamReported,
			wantMsg: "unknown error",
		},
		{
			name:    "no table",
			body:    `google.visualization.Query.setResponse({"status":"ok"});`,
			wantErr: sitedata.ErrMalformedResponse,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseResponse([]byte(tc.body))
			require.ErrorIs(t, err, tc.wantErr)
			if tc.wantMsg != "" {
				require.Contains(t, err.Error(), tc.wantMsg)
			}
		})
	}
}

func TestParseResponseToleratesTrailingWhitespace(t *testing.T) {
	t.Parallel()

	body := `google.visualization.Query.setResponse({"status":"ok","table":{"cols":[{"label":"key"}],"rows":[]}});` + "\n\n"
	table, err := ParseResponse([]byte(body))
	require.NoError(t, err)
	require.Empty(t, table.Rows)
	require.Equal(t, []string{"key"}, table.Columns)
}

func TestFetchTabRequestsGvizEndpoint(t *testing.T) {
	t.Parallel()

	var gotPath, gotTab, gotTqx, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotTab = r.URL.Query().Get("sheet")
		gotTqx = r.URL.Query().Get("tqx")
		gotUA = r.UserAgent()
		w.Header().Set("Content-Type", "application/javascript")
		fmt.Fprint(w, pagesPayload)
	}))
	defer srv.Close()

	f := New(Config{BaseURL: srv.URL, UserAgent: "site-builder-test", Timeout: time.Second}, nil)
	table, err := f.FetchTab(context.Background(), "sheet-123", sitedata.TabPages)
	require.NoError(t, err)
	require.Len(t, table.Rows, 3)
	require.Equal(t, "/spreadsheets/d/sheet-123/gviz/tq", gotPath)
	require.Equal(t, "pages", gotTab)
	require.Equal(t, "out:json", gotTqx)
	require.Equal(t, "site-builder-test", gotUA)
}

func TestFetchTabRevisitsSameURL(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, pagesPayload)
	}))
	defer srv.Close()

	f := New(Config{BaseURL: srv.URL}, nil)
	for i := 0; i < 2; i++ {
		_, err := f.FetchTab(context.Background(), "sheet", sitedata.TabMenu)
		require.NoError(t, err)
	}
	require.Equal(t, int32(2), hits.Load())
}

func TestFetchTabNonSuccessStatusIsUnreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	f := New(Config{BaseURL: srv.URL}, nil)
	_, err := f.FetchTab(context.Background(), "sheet", sitedata.TabSettings)
	require.ErrorIs(t, err, sitedata.ErrUpstreamUnreachable)

	tab, ok := sitedata.FailedTab(err)
	require.True(t, ok)
	require.Equal(t, sitedata.TabSettings, tab)
}

func TestFetchTabMalformedBodyNamesTab(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<!DOCTYPE html><html>login</html>")
	}))
	defer srv.Close()

	f := New(Config{BaseURL: srv.URL}, nil)
	_, err := f.FetchTab(context.Background(), "sheet", sitedata.TabContent)
	require.ErrorIs(t, err, sitedata.ErrMalformedResponse)
	require.Contains(t, err.Error(), `"content"`)
}

func TestFetchTabHonorsContextDeadline(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		fmt.Fprint(w, pagesPayload)
	}))
	defer srv.Close()
	defer close(release)

	f := New(Config{BaseURL: srv.URL, Timeout: 5 * time.Second}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := f.FetchTab(ctx, "sheet", sitedata.TabPages)
	require.ErrorIs(t, err, sitedata.ErrUpstreamUnreachable)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFetchTabWaitsOnLimiter(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, pagesPayload)
	}))
	defer srv.Close()

	limiter := &stubWaiter{}
	f := New(Config{BaseURL: srv.URL}, limiter)
	_, err := f.FetchTab(context.Background(), "sheet", sitedata.TabPages)
	require.NoError(t, err)
	require.Len(t, limiter.urls, 1)
	require.True(t, strings.HasPrefix(limiter.urls[0], srv.URL+"/spreadsheets/d/sheet/gviz/tq"))

	limiter.err = errors.New("limited")
	_, err = f.FetchTab(context.Background(), "sheet", sitedata.TabPages)
	require.ErrorIs(t, err, sitedata.ErrUpstreamUnreachable)
}

func TestFetchTabRequiresSpreadsheetID(t *testing.T) {
	t.Parallel()

	f := New(Config{}, nil)
	_, err := f.FetchTab(context.Background(), "", sitedata.TabPages)
	require.ErrorIs(t, err, sitedata.ErrNoSpreadsheetID)
	require.NotErrorIs(t, err, sitedata.ErrUpstreamReported)
	require.False(t, sitedata.Retryable(err))
	require.Equal(t, "invalid", outcome(err))
}

func TestTabURLEscapesIdentifiers(t *testing.T) {
	t.Parallel()

	f := New(Config{BaseURL: "https://docs.example.com/"}, nil)
	got := f.TabURL("a/b", sitedata.TabName("main menu"))
	require.Equal(t, "https://docs.example.com/spreadsheets/d/a%2Fb/gviz/tq?sheet=main+menu&tqx=out%3Ajson", got)
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f := New(Config{}, nil)
	var result tabResult
	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, &result)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	hooks.onResponse(&colly.Response{StatusCode: http.StatusOK, Body: []byte("body")})
	require.Equal(t, http.StatusOK, result.status)
	require.Equal(t, "body", string(result.body))

	hooks.onError(&colly.Response{StatusCode: http.StatusBadGateway}, errors.New("boom"))
	require.Equal(t, http.StatusBadGateway, result.status)
	require.EqualError(t, result.err, "boom")
}

type stubWaiter struct {
	urls []string
	err  error
}

func (s *stubWaiter) Wait(_ context.Context, url string) error {
	s.urls = append(s.urls, url)
	return s.err
}

type stubHooks struct {
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}
