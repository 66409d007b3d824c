package models

import "time"

// User is a chat platform user. The ID is the platform's own identifier.
type User struct {
	ID        int64 `gorm:"primaryKey;autoIncrement:false"`
	CreatedAt time.Time

	Subscriptions []Subscription
}
