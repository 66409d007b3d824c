package models

import "time"

// Outcome tells which branch UpsertMangaWithSubscription took.
type Outcome int

const (
	OutcomeCreated Outcome = iota + 1
	OutcomeSubscribed
	OutcomeAlreadySubscribed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeSubscribed:
		return "subscribed"
	case OutcomeAlreadySubscribed:
		return "already_subscribed"
	default:
		return "unknown"
	}
}

// ChapterUpdate is the payload of a new-chapter notification.
type ChapterUpdate struct {
	Manga   Manga
	Chapter Chapter
}

type MangaFailure struct {
	MangaURL string `json:"manga_url"`
	Title    string `json:"title"`
	Err      string `json:"error"`
}

// PassReport summarises one reconciliation pass.
type PassReport struct {
	ID            string
	StartedAt     time.Time
	Elapsed       time.Duration
	Tracked       int
	Updated       int
	Unchanged     int
	Errored       int
	Notified      int
	NotifyFailed  int
	Failures      []MangaFailure
	UpdatedTitles []string
}

// Noteworthy reports whether the pass saw anything an operator would care about.
func (r *PassReport) Noteworthy() bool {
	return r.Updated > 0 || r.Errored > 0 || r.NotifyFailed > 0
}
