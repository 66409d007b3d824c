package lib

import (
	"context"
	"sync"

	"github.com/fiffu/mangawatch/lib/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type registerUser struct {
	log *zap.Logger
	db  *gorm.DB
	mu  *sync.Mutex
}

// RegisterUser inserts the user if absent. Registering twice is a no-op.
func (svc *registerUser) RegisterUser(ctx context.Context, userID int64) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	tx := svc.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.User{ID: userID})
	if err := tx.Error; err != nil {
		return wrapStoreError(svc.log, "register user", err)
	}
	if tx.RowsAffected > 0 {
		svc.log.Sugar().Infow("Registered user", "user_id", userID)
	}
	return nil
}

func ensureUser(tx *gorm.DB, userID int64) error {
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.User{ID: userID}).Error
}
