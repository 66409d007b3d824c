package models

import "time"

type Subscription struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    int64  `gorm:"not null;uniqueIndex:idx_user_manga,priority:1"`
	MangaURL  string `gorm:"not null;uniqueIndex:idx_user_manga,priority:2;index"`
	CreatedAt time.Time

	Manga Manga `gorm:"foreignKey:MangaURL;references:URL"`
}

type Subscriptions []Subscription
