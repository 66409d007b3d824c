package conversation

import (
	"github.com/fiffu/mangawatch/lib/models"
	"github.com/fiffu/mangawatch/lib/scraper"
)

// session is the pending state of a user's conversation. A user without a
// session is idle.
type session interface {
	isSession()
}

type awaitingMangaChoice struct {
	candidates []scraper.MangaRef
}

type awaitingActionChoice struct {
	manga   models.Manga
	chapter models.Chapter
}

type awaitingRemovalChoice struct {
	mangas models.Mangas
}

func (awaitingMangaChoice) isSession()   {}
func (awaitingActionChoice) isSession()  {}
func (awaitingRemovalChoice) isSession() {}

func (s awaitingMangaChoice) find(title string) (scraper.MangaRef, bool) {
	for _, c := range s.candidates {
		if c.Title == title {
			return c, true
		}
	}
	return scraper.MangaRef{}, false
}

func stageOf(s session) string {
	switch s.(type) {
	case nil:
		return "idle"
	case awaitingMangaChoice:
		return "awaiting_manga_choice"
	case awaitingActionChoice:
		return "awaiting_action_choice"
	case awaitingRemovalChoice:
		return "awaiting_removal_choice"
	default:
		return "unknown"
	}
}
