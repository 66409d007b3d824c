package models

import "time"

type Manga struct {
	URL            string `gorm:"primaryKey"`
	Title          string `gorm:"not null"`
	LastChapterURL string `gorm:"not null;index"`
	CreatedAt      time.Time
	UpdatedAt      time.Time

	LastChapter Chapter `gorm:"foreignKey:LastChapterURL;references:URL"`
}

type Mangas []Manga

// Titles returns the manga titles in order.
func (ms Mangas) Titles() []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Title
	}
	return out
}

// FindByTitle does an exact, case-sensitive title match.
func (ms Mangas) FindByTitle(title string) (*Manga, bool) {
	for i := range ms {
		if ms[i].Title == title {
			return &ms[i], true
		}
	}
	return nil, false
}
