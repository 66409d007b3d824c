package app

import (
	"time"

	"github.com/fiffu/mangawatch/lib/models"
)

type MangaView struct {
	URL         string      `json:"url"`
	Title       string      `json:"title"`
	LastChapter ChapterView `json:"last_chapter"`
	TrackedAt   string      `json:"tracked_at"`
}

type ChapterView struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	PublishedAt string `json:"published_at,omitempty"`
}

func (view ChapterView) From(entity models.Chapter) ChapterView {
	return ChapterView{
		URL:         entity.URL,
		Title:       entity.Title,
		PublishedAt: entity.PublishedAt,
	}
}

func (view MangaView) From(entity models.Manga) MangaView {
	return MangaView{
		URL:         entity.URL,
		Title:       entity.Title,
		LastChapter: ChapterView{}.From(entity.LastChapter),
		TrackedAt:   isoformat(entity.CreatedAt),
	}
}

type PassReportView struct {
	ID           string                `json:"id"`
	StartedAt    string                `json:"started_at"`
	ElapsedMsecs int64                 `json:"elapsed_msecs"`
	Tracked      int                   `json:"tracked"`
	Updated      int                   `json:"updated"`
	Unchanged    int                   `json:"unchanged"`
	Errored      int                   `json:"errored"`
	Notified     int                   `json:"notified"`
	NotifyFailed int                   `json:"notify_failed"`
	Failures     []models.MangaFailure `json:"failures,omitempty"`
}

func (view PassReportView) From(entity *models.PassReport) PassReportView {
	return PassReportView{
		ID:           entity.ID,
		StartedAt:    isoformat(entity.StartedAt),
		ElapsedMsecs: entity.Elapsed.Milliseconds(),
		Tracked:      entity.Tracked,
		Updated:      entity.Updated,
		Unchanged:    entity.Unchanged,
		Errored:      entity.Errored,
		Notified:     entity.Notified,
		NotifyFailed: entity.NotifyFailed,
		Failures:     entity.Failures,
	}
}

type Fromable[Entity any, Repr any] interface {
	From(Entity) Repr
}

func FromMany[T any, U Fromable[T, U]](elems []T) []U {
	out := make([]U, len(elems))
	for i, t := range elems {
		var u U
		out[i] = u.From(t)
	}
	return out
}

func isoformat(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
