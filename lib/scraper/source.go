// Package scraper extracts manga metadata and page images from the content
// source. Everything site specific lives here.
package scraper

import "context"

// MangaRef is a search candidate.
type MangaRef struct {
	Title string
	URL   string
}

// ChapterRef describes one chapter as the source shows it.
type ChapterRef struct {
	Title       string
	URL         string
	PublishedAt string
}

type ChapterDescription struct {
	MangaTitle   string
	ChapterTitle string
}

// Source is the content extraction boundary. Every method may fail with an
// error wrapping models.ErrAdapter.
type Source interface {
	Search(ctx context.Context, query string) ([]MangaRef, error)
	LatestChapter(ctx context.Context, mangaURL string) (ChapterRef, error)
	ChapterResources(ctx context.Context, chapterURL string) ([]string, error)
	Describe(ctx context.Context, chapterURL string) (ChapterDescription, error)
	// Host is the source's canonical host name, used to validate pasted URLs.
	Host() string
}
