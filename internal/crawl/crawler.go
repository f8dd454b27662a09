package crawl

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/tourscan/internal/config"
	"github.com/sells-group/tourscan/internal/detect"
	"github.com/sells-group/tourscan/internal/patterns"
)

// navSelectors finds the primary navigation anchors used for page discovery.
const navSelectors = "nav a, .navigation a, #menu a, .menu a"

// Crawler visits a site's root page plus a handful of likely booking pages
// and aggregates detection signals across them.
type Crawler struct {
	factory FetcherFactory
	ext     *detect.Extractor
	tables  *patterns.Tables
	cfg     config.CrawlConfig
}

// New creates a Crawler.
func New(factory FetcherFactory, ext *detect.Extractor, tables *patterns.Tables, cfg config.CrawlConfig) *Crawler {
	return &Crawler{factory: factory, ext: ext, tables: tables, cfg: cfg}
}

// NormalizeURL coerces a spreadsheet cell into a crawlable URL: a bare domain
// is assumed https, trailing slashes are dropped.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", eris.New("crawl: empty url")
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	raw = strings.TrimRight(raw, "/")
	u, err := url.Parse(raw)
	if err != nil {
		return "", eris.Wrapf(err, "crawl: parse url %q", raw)
	}
	if u.Host == "" || !strings.Contains(u.Host, ".") {
		return "", eris.Errorf("crawl: no usable host in %q", raw)
	}
	return raw, nil
}

// Crawl analyzes one site. A root-page failure fails the site; failures on
// discovered sub-pages are logged and skipped so that partial coverage still
// yields a result.
func (c *Crawler) Crawl(ctx context.Context, rootURL string, phase config.PhaseConfig) (*detect.Result, error) {
	fetcher, err := c.factory.NewContext()
	if err != nil {
		return nil, eris.Wrap(err, "crawl: new context")
	}
	defer func() { _ = fetcher.Close() }()

	root, err := fetcher.Navigate(ctx, rootURL, phase.Timeout())
	if err != nil {
		return nil, err
	}
	if err := sleepCtx(ctx, c.cfg.SettleDelay()); err != nil {
		return nil, err
	}

	result := detect.NewResult()
	rootSignals := c.pageSignals(fetcher, root)
	result.Fold(rootSignals)
	result.Details = rootSignals.Details

	for _, target := range c.discoverTargets(root, phase.MaxPagesPerSite-1) {
		if err := sleepCtx(ctx, c.cfg.PageDelay()); err != nil {
			return nil, err
		}
		page, err := fetcher.Navigate(ctx, target, phase.Timeout())
		if err != nil {
			zap.L().Debug("sub-page fetch failed, skipping",
				zap.String("url", target),
				zap.Error(err),
			)
			continue
		}
		result.Fold(c.pageSignals(fetcher, page))
	}

	return result, nil
}

// pageSignals runs static extraction on a page and layers the live-element
// widget heuristics on top. A panic in extraction fails the page, not the
// batch.
func (c *Crawler) pageSignals(fetcher PageFetcher, page *Page) (ps detect.PageSignals) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("page extraction panicked",
				zap.String("url", page.URL),
				zap.Any("panic", r),
			)
			ps = detect.NewPageSignals()
		}
	}()

	ps = c.ext.Extract(detect.PageContent{
		HTML:               page.HTML,
		Text:               page.Text,
		URL:                page.URL,
		NetworkRequestURLs: fetcher.NetworkRequestURLs(),
	})

	for _, sel := range c.tables.DynamicChatSelectors {
		for _, el := range fetcher.QueryVisible(sel) {
			if el.Visible && containsAnyFold(el.Text, c.tables.DynamicChatKeywords) {
				ps.HasChatbot = true
				ps.ChatbotTypes.Add("dynamic_chat_widget")
			}
		}
	}

	// One booking-shaped element is routine page furniture; a spread of them
	// is a live widget.
	bookingEls := 0
	for _, sel := range c.tables.DynamicBookingSelectors {
		for _, el := range fetcher.QueryVisible(sel) {
			if el.Visible {
				bookingEls++
			}
		}
	}
	if bookingEls >= 2 {
		ps.BookingTech.Add("dynamic_booking_system")
	}

	return ps
}

// discoverTargets collects up to limit same-host URLs worth visiting after
// the root page: navigation anchors first, then common booking paths.
func (c *Crawler) discoverTargets(root *Page, limit int) []string {
	if limit <= 0 {
		return nil
	}
	base, err := url.Parse(root.URL)
	if err != nil {
		return nil
	}

	seen := map[string]struct{}{canonical(base): {}}
	var targets []string
	add := func(u *url.URL) {
		if len(targets) >= limit {
			return
		}
		if u.Host != base.Host || (u.Scheme != "http" && u.Scheme != "https") {
			return
		}
		u.Fragment = ""
		key := canonical(u)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		targets = append(targets, u.String())
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(root.HTML))
	if err == nil {
		navLinks := 0
		doc.Find(navSelectors).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if navLinks >= c.cfg.NavLinkLimit || len(targets) >= limit {
				return false
			}
			href, ok := s.Attr("href")
			if !ok || href == "" {
				return true
			}
			navLinks++
			if u, err := base.Parse(href); err == nil {
				add(u)
			}
			return true
		})
	}

	for _, path := range c.cfg.PathGuesses {
		if len(targets) >= limit {
			break
		}
		if u, err := base.Parse(path); err == nil {
			add(u)
		}
	}

	return targets
}

// canonical is the dedupe key for a URL within one site.
func canonical(u *url.URL) string {
	return strings.TrimRight(u.Path, "/") + "?" + u.RawQuery
}

func containsAnyFold(s string, keywords []string) bool {
	ls := strings.ToLower(s)
	for _, k := range keywords {
		if strings.Contains(ls, k) {
			return true
		}
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
