package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/carlmjohnson/requests"
	"github.com/fiffu/mangawatch/config"
	"github.com/fiffu/mangawatch/lib/models"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

const (
	searchPath = "/search/simple"

	searchResultXPath  = "//a[contains(@href, '/series/')]"
	latestChapterXPath = "(//*[@id='chapter-list']//div)[1]"
	readerMangaXPath   = "/html/body/main/section[1]/div/div[1]/a/div"
	readerChapterXPath = "/html/body/main/section[1]/div/div[1]/button[1]"
	pageImageXPath     = "//img[@src]"
)

// WeebCentral scrapes weebcentral.com. Pages are server rendered fragments,
// so plain HTTP plus XPath is enough.
type WeebCentral struct {
	log       *zap.Logger
	base      *url.URL
	transport http.RoundTripper
	userAgent string
}

func NewWeebCentral(cfg *config.Config, log *zap.Logger, transport http.RoundTripper) (Source, error) {
	return New(cfg.Source.BaseURL, cfg.Source.UserAgent, log, transport)
}

func New(baseURL, userAgent string, log *zap.Logger, transport http.RoundTripper) (*WeebCentral, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("source base url: %w", err)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("source base url %q has no host", baseURL)
	}
	return &WeebCentral{log, base, transport, userAgent}, nil
}

func (w *WeebCentral) Host() string {
	return w.base.Hostname()
}

func (w *WeebCentral) Search(ctx context.Context, query string) ([]MangaRef, error) {
	endpoint := w.resolve(searchPath + "?location=main")
	doc, err := w.fetch(ctx, requests.URL(endpoint).BodyForm(url.Values{"text": {query}}))
	if err != nil {
		return nil, adapterError("search", query, err)
	}

	seen := make(map[string]bool)
	refs := make([]MangaRef, 0)
	for _, a := range htmlquery.Find(doc, searchResultXPath) {
		href := w.resolve(htmlquery.SelectAttr(a, "href"))
		title := digForText(a)
		if title == "" || seen[href] {
			continue
		}
		seen[href] = true
		refs = append(refs, MangaRef{Title: title, URL: href})
	}
	return refs, nil
}

func (w *WeebCentral) LatestChapter(ctx context.Context, mangaURL string) (ChapterRef, error) {
	doc, err := w.fetch(ctx, requests.URL(mangaURL))
	if err != nil {
		return ChapterRef{}, adapterError("latest chapter", mangaURL, err)
	}

	entry := htmlquery.FindOne(doc, latestChapterXPath)
	if entry == nil {
		return ChapterRef{}, adapterError("latest chapter", mangaURL, fmt.Errorf("no chapter list"))
	}
	anchor := htmlquery.FindOne(entry, ".//a[@href]")
	if anchor == nil {
		return ChapterRef{}, adapterError("latest chapter", mangaURL, fmt.Errorf("chapter entry has no link"))
	}

	return ChapterRef{
		Title:       firstText(anchor),
		URL:         w.resolve(htmlquery.SelectAttr(anchor, "href")),
		PublishedAt: selectAttr(entry, ".//time", "datetime"),
	}, nil
}

func (w *WeebCentral) ChapterResources(ctx context.Context, chapterURL string) ([]string, error) {
	endpoint := strings.TrimRight(chapterURL, "/") + "/images?is_prev=False&current_page=1&reading_style=long_strip"
	doc, err := w.fetch(ctx, requests.URL(endpoint))
	if err != nil {
		return nil, adapterError("chapter resources", chapterURL, err)
	}

	urls := make([]string, 0)
	for _, img := range htmlquery.Find(doc, pageImageXPath) {
		if src := strings.TrimSpace(htmlquery.SelectAttr(img, "src")); src != "" {
			urls = append(urls, w.resolve(src))
		}
	}
	return urls, nil
}

func (w *WeebCentral) Describe(ctx context.Context, chapterURL string) (ChapterDescription, error) {
	doc, err := w.fetch(ctx, requests.URL(chapterURL))
	if err != nil {
		return ChapterDescription{}, adapterError("describe", chapterURL, err)
	}

	desc := ChapterDescription{
		MangaTitle:   selectText(doc, readerMangaXPath),
		ChapterTitle: selectText(doc, readerChapterXPath),
	}
	if desc.MangaTitle == "" || desc.ChapterTitle == "" {
		return ChapterDescription{}, adapterError("describe", chapterURL, fmt.Errorf("reader header not found"))
	}
	return desc, nil
}

func (w *WeebCentral) fetch(ctx context.Context, rb *requests.Builder) (*html.Node, error) {
	var body string
	err := rb.
		Transport(w.transport).
		Header("User-Agent", w.userAgent).
		ToString(&body).
		Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return htmlquery.Parse(strings.NewReader(body))
}

func (w *WeebCentral) resolve(ref string) string {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ref
	}
	return w.base.ResolveReference(u).String()
}

func adapterError(op, target string, err error) error {
	return fmt.Errorf("%s %s: %w: %w", op, target, models.ErrAdapter, err)
}
