package crawl

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/tourscan/internal/config"
)

// HTTPFactory creates HTTP-backed fetch contexts. All contexts share one
// transport and one politeness limiter; each context gets its own cookie jar.
type HTTPFactory struct {
	cfg       config.CrawlConfig
	transport *http.Transport
	limiter   *rate.Limiter
}

// NewHTTPFactory creates a factory for HTTP page fetchers.
func NewHTTPFactory(cfg config.CrawlConfig) *HTTPFactory {
	return &HTTPFactory{
		cfg: cfg,
		transport: &http.Transport{
			MaxIdleConnsPerHost: 10,
			MaxConnsPerHost:     20,
			IdleConnTimeout:     90 * time.Second,
		},
		limiter: rate.NewLimiter(20, 20),
	}
}

// NewContext returns a fetcher with a fresh cookie jar.
func (f *HTTPFactory) NewContext() (PageFetcher, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, eris.Wrap(err, "crawl: cookie jar")
	}
	return &httpFetcher{
		client: &http.Client{
			Transport: f.transport,
			Jar:       jar,
		},
		cfg:     f.cfg,
		limiter: f.limiter,
		seen:    make(map[string]struct{}),
	}, nil
}

// httpFetcher loads pages over plain HTTP and parses them with goquery. It
// cannot execute JavaScript, so "network requests" are approximated by the
// static resource URLs referenced from the markup, which is where chat and
// booking embed scripts live anyway.
type httpFetcher struct {
	client  *http.Client
	cfg     config.CrawlConfig
	limiter *rate.Limiter

	lastDoc     *goquery.Document
	resourceURL []string
	seen        map[string]struct{}
}

var wsRe = regexp.MustCompile(`\s+`)

func (h *httpFetcher) Navigate(ctx context.Context, pageURL string, timeout time.Duration) (*Page, error) {
	if err := h.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "crawl: rate limiter wait")
	}

	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(navCtx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "crawl: create request")
	}
	req.Header.Set("User-Agent", h.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "crawl: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return nil, eris.Errorf("crawl: status %d from %s", resp.StatusCode, pageURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, h.cfg.MaxBodyBytes))
	if err != nil {
		return nil, eris.Wrap(err, "crawl: read body")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, eris.Wrap(err, "crawl: parse html")
	}

	finalURL := pageURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	h.lastDoc = doc
	h.collectResources(doc, finalURL)

	return &Page{
		URL:  finalURL,
		HTML: string(body),
		Text: wsRe.ReplaceAllString(doc.Find("body").Text(), " "),
	}, nil
}

// collectResources records absolute script/iframe/img/link URLs so detection
// can match embed hosts the same way a request log would.
func (h *httpFetcher) collectResources(doc *goquery.Document, pageURL string) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return
	}
	doc.Find("script[src], iframe[src], img[src], link[href]").Each(func(_ int, s *goquery.Selection) {
		raw, ok := s.Attr("src")
		if !ok {
			raw, ok = s.Attr("href")
		}
		if !ok || raw == "" {
			return
		}
		u, err := base.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return
		}
		abs := u.String()
		if _, dup := h.seen[abs]; dup {
			return
		}
		h.seen[abs] = struct{}{}
		h.resourceURL = append(h.resourceURL, abs)
	})
}

func (h *httpFetcher) QueryVisible(selector string) []Element {
	if h.lastDoc == nil {
		return nil
	}
	var out []Element
	h.lastDoc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		out = append(out, Element{
			Text:    strings.TrimSpace(s.Text()),
			Visible: !isHidden(s),
		})
	})
	return out
}

// isHidden approximates visibility from static markup: inline display/visibility
// styles and the hidden attribute. Styles applied by JS are invisible here.
func isHidden(s *goquery.Selection) bool {
	if _, ok := s.Attr("hidden"); ok {
		return true
	}
	style, ok := s.Attr("style")
	if !ok {
		return false
	}
	style = strings.ToLower(strings.ReplaceAll(style, " ", ""))
	return strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden")
}

func (h *httpFetcher) NetworkRequestURLs() []string {
	return h.resourceURL
}

func (h *httpFetcher) Close() error {
	h.lastDoc = nil
	return nil
}
