// Package document turns an ordered list of page images into a single EPUB.
package document

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"strings"

	"github.com/carlmjohnson/requests"
	"github.com/fiffu/mangawatch/config"
	"github.com/go-shiori/go-epub"
	"go.uber.org/zap"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
)

var (
	ErrEmptyInput = errors.New("no pages to assemble")
	ErrNoPages    = errors.New("none of the pages could be fetched")
)

// PartialFetchError is returned together with a usable document when some
// pages were skipped.
type PartialFetchError struct {
	Failed int
	Total  int
}

func (e *PartialFetchError) Error() string {
	return fmt.Sprintf("fetched %d of %d pages", e.Total-e.Failed, e.Total)
}

type Document struct {
	Filename string
	Content  []byte
	Pages    int
}

type page struct {
	index   int
	content []byte
	format  string
}

type Assembler struct {
	log         *zap.Logger
	transport   http.RoundTripper
	concurrency int
}

func NewAssembler(cfg *config.Config, log *zap.Logger, transport http.RoundTripper) *Assembler {
	concurrency := cfg.Document.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Assembler{log, transport, concurrency}
}

// Assemble downloads every page and binds them in order. Pages that fail to
// download or decode are skipped; the returned error is then a
// *PartialFetchError and the document is still usable.
func (a *Assembler) Assemble(ctx context.Context, title string, urls []string) (*Document, error) {
	if len(urls) == 0 {
		return nil, ErrEmptyInput
	}

	pages := a.fetchPages(ctx, urls)
	if len(pages) == 0 {
		return nil, ErrNoPages
	}

	content, err := bind(title, pages)
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", title, err)
	}

	doc := &Document{
		Filename: sanitizeFilename(title) + ".epub",
		Content:  content,
		Pages:    len(pages),
	}
	a.log.Sugar().Infow("Document assembled", "title", title, "pages", len(pages), "bytes", len(content))

	if failed := len(urls) - len(pages); failed > 0 {
		return doc, &PartialFetchError{Failed: failed, Total: len(urls)}
	}
	return doc, nil
}

func (a *Assembler) fetchPages(ctx context.Context, urls []string) []page {
	slots := make([]*page, len(urls))

	var g errgroup.Group
	g.SetLimit(a.concurrency)
	for i, u := range urls {
		g.Go(func() error {
			p, err := a.fetchPage(ctx, i, u)
			if err != nil {
				a.log.Sugar().Warnw("Skipping page", "page", i+1, "total", len(urls), "url", u, "err", err)
				return nil
			}
			slots[i] = p
			return nil
		})
	}
	g.Wait()

	pages := make([]page, 0, len(urls))
	for _, p := range slots {
		if p != nil {
			pages = append(pages, *p)
		}
	}
	return pages
}

func (a *Assembler) fetchPage(ctx context.Context, index int, url string) (*page, error) {
	var buf bytes.Buffer
	err := requests.URL(url).
		Transport(a.transport).
		ToBytesBuffer(&buf).
		Fetch(ctx)
	if err != nil {
		return nil, err
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(buf.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return &page{index: index, content: buf.Bytes(), format: format}, nil
}

func bind(title string, pages []page) ([]byte, error) {
	e, err := epub.NewEpub(title)
	if err != nil {
		return nil, err
	}
	e.SetAuthor("mangawatch")
	e.SetLang("en")

	var body strings.Builder
	for n, p := range pages {
		dataURL := fmt.Sprintf("data:image/%s;base64,%s", p.format, base64.StdEncoding.EncodeToString(p.content))
		internalPath, err := e.AddImage(dataURL, fmt.Sprintf("page%04d.%s", p.index+1, p.format))
		if err != nil {
			return nil, fmt.Errorf("add page %d: %w", p.index+1, err)
		}
		fmt.Fprintf(&body, `<div class="page"><img src="%s" alt="Page %d" style="width:100%%;height:auto;"/></div>`+"\n", internalPath, n+1)
	}

	if _, err := e.AddSection(body.String(), title, "", ""); err != nil {
		return nil, fmt.Errorf("add section: %w", err)
	}

	var out bytes.Buffer
	if _, err := e.WriteTo(&out); err != nil {
		return nil, fmt.Errorf("write epub: %w", err)
	}
	return out.Bytes(), nil
}

func sanitizeFilename(name string) string {
	invalid := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|"}
	result := name
	for _, char := range invalid {
		result = strings.ReplaceAll(result, char, "_")
	}
	result = strings.TrimSpace(result)
	result = strings.Trim(result, ".")
	if result == "" {
		result = "chapter"
	}
	return result
}
