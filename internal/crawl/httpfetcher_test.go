package crawl

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFetcher(t *testing.T) PageFetcher {
	t.Helper()
	f, err := NewHTTPFactory(testCrawlConfig()).NewContext()
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestHTTPFetcher_CollectsResourceURLs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head>
			<script src="https://widget.intercom.io/widget/abc"></script>
			<link href="/styles.css" rel="stylesheet">
		</head><body>
			<iframe src="https://fareharbor.com/embeds/calendar"></iframe>
			<img src="relative/logo.png">
		</body></html>`))
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	_, err := f.Navigate(context.Background(), srv.URL, 5*time.Second)
	require.NoError(t, err)

	urls := f.NetworkRequestURLs()
	assert.Contains(t, urls, "https://widget.intercom.io/widget/abc")
	assert.Contains(t, urls, "https://fareharbor.com/embeds/calendar")
	// Relative references resolve against the page URL.
	assert.Contains(t, urls, srv.URL+"/styles.css")
	assert.Contains(t, urls, srv.URL+"/relative/logo.png")
}

func TestHTTPFetcher_QueryVisible(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body>
			<div class="chat-launcher">Chat with us</div>
			<div class="chat-panel" style="display: none">hidden panel</div>
			<div class="chat-drawer" hidden>drawer</div>
		</body></html>`))
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	_, err := f.Navigate(context.Background(), srv.URL, 5*time.Second)
	require.NoError(t, err)

	els := f.QueryVisible(`[class*="chat"]`)
	require.Len(t, els, 3)

	visible := 0
	for _, el := range els {
		if el.Visible {
			visible++
			assert.Equal(t, "Chat with us", el.Text)
		}
	}
	assert.Equal(t, 1, visible)
}

func TestHTTPFetcher_NavigateTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	_, err := f.Navigate(context.Background(), srv.URL, 50*time.Millisecond)
	assert.Error(t, err)
}

func TestHTTPFetcher_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "go away", http.StatusForbidden)
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	_, err := f.Navigate(context.Background(), srv.URL, 5*time.Second)
	assert.Error(t, err)
}
