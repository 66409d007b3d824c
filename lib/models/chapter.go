package models

import "time"

// Chapter is immutable once stored: a URL never changes title or timestamp.
type Chapter struct {
	URL   string `gorm:"primaryKey"`
	Title string `gorm:"not null"`
	// PublishedAt is whatever the source displays. It is shown to users but
	// never compared, since the source does not keep it monotonic.
	PublishedAt string
	CreatedAt   time.Time
}

type Chapters []Chapter
