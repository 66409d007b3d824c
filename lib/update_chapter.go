package lib

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fiffu/mangawatch/lib/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type chapterUpdater struct {
	log *zap.Logger
	db  *gorm.DB
	mu  *sync.Mutex
}

// UpdateLastChapter records chapter (if new) and points the manga at it.
func (svc *chapterUpdater) UpdateLastChapter(ctx context.Context, mangaURL string, chapter models.Chapter) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	err := svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		manga := models.Manga{}
		if err := tx.Where("url = ?", mangaURL).Take(&manga).Error; err != nil {
			return err
		}
		if err := insertChapter(tx, &chapter); err != nil {
			return err
		}
		return tx.Model(&manga).Update("last_chapter_url", chapter.URL).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("manga %s: %w", mangaURL, models.ErrNotFound)
	} else if err != nil {
		return wrapStoreError(svc.log, "update last chapter", err)
	}

	svc.log.Sugar().Infow("Last chapter updated", "manga_url", mangaURL, "chapter_url", chapter.URL)
	return nil
}
