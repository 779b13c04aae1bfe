package research

import (
	"bytes"
	"context"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/gocolly/colly/v2"

	"github.com/Folken2/ag-ui-research/internal/log"
	"github.com/Folken2/ag-ui-research/internal/session"
)

// PageEnricher fetches source pages and fills in metadata the search API did
// not return: Open Graph title and image, plus a readable-content excerpt as
// the snippet fallback.
//
// Everything here is best-effort. A page that blocks scraping, times out or
// returns junk leaves its source untouched.
type PageEnricher struct {
	parallelism int
	delay       time.Duration
	timeout     time.Duration
	logger      log.Logger
}

// EnricherConfig tunes the scraper. Zero values get sane defaults.
type EnricherConfig struct {
	Parallelism int
	Delay       time.Duration
	Timeout     time.Duration
}

// NewPageEnricher creates an enricher.
func NewPageEnricher(cfg EnricherConfig, logger log.Logger) *PageEnricher {
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 4
	}
	if cfg.Delay <= 0 {
		cfg.Delay = 100 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &PageEnricher{
		parallelism: cfg.Parallelism,
		delay:       cfg.Delay,
		timeout:     cfg.Timeout,
		logger:      logger,
	}
}

// Enrich implements the Enricher interface. Sources that already carry a
// title, image and snippet are skipped; the rest are fetched concurrently and
// updated in place.
func (p *PageEnricher) Enrich(ctx context.Context, sources []session.Source) {
	c := colly.NewCollector(
		colly.Async(true),
		colly.MaxDepth(1),
	)
	c.SetRequestTimeout(p.timeout)
	if err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: p.parallelism,
		Delay:       p.delay,
	}); err != nil {
		p.logger.Debug("configuring scraper limits failed", "error", err)
		return
	}

	// Sources are updated from colly's worker goroutines; index them through
	// the request context and guard writes with one mutex.
	var mu sync.Mutex

	c.OnHTML("html", func(e *colly.HTMLElement) {
		idx, err := strconv.Atoi(e.Request.Ctx.Get("index"))
		if err != nil || idx < 0 || idx >= len(sources) {
			return
		}

		ogTitle := metaContent(e.DOM, `meta[property="og:title"]`)
		ogImage := metaContent(e.DOM, `meta[property="og:image"]`)
		description := metaContent(e.DOM, `meta[name="description"]`)
		pageTitle := e.DOM.Find("title").First().Text()

		snippet := description
		if snippet == "" {
			snippet = readableExcerpt(e.Response.Body, e.Request.URL)
		}

		mu.Lock()
		defer mu.Unlock()
		src := &sources[idx]
		if src.Title == "" {
			if ogTitle != "" {
				src.Title = ogTitle
			} else {
				src.Title = pageTitle
			}
		}
		if src.ImageURL == "" {
			src.ImageURL = e.Request.AbsoluteURL(ogImage)
		}
		if src.Snippet == "" {
			src.Snippet = truncate(snippet, snippetLimit)
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		p.logger.Debug("source page fetch failed", "url", r.Request.URL.String(), "error", err)
	})

	visited := 0
	for i := range sources {
		if ctx.Err() != nil {
			break
		}
		if sources[i].Title != "" && sources[i].ImageURL != "" && sources[i].Snippet != "" {
			continue
		}
		reqCtx := colly.NewContext()
		reqCtx.Put("index", strconv.Itoa(i))
		if err := c.Request("GET", sources[i].URL, nil, reqCtx, nil); err != nil {
			p.logger.Debug("scheduling source fetch failed", "url", sources[i].URL, "error", err)
			continue
		}
		visited++
	}

	if visited > 0 {
		c.Wait()
	}
}

// metaContent returns the content attribute of the first element matching the
// selector.
func metaContent(doc *goquery.Selection, selector string) string {
	content, _ := doc.Find(selector).Attr("content")
	return content
}

// readableExcerpt runs the readability extractor over a fetched page and
// returns its excerpt, or "" when the page has no readable content.
func readableExcerpt(body []byte, pageURL *url.URL) string {
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		return ""
	}
	return article.Excerpt
}
