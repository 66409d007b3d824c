package lib

import (
	"context"
	"errors"
	"sync"

	"github.com/fiffu/mangawatch/lib/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type subscribe struct {
	log *zap.Logger
	db  *gorm.DB
	mu  *sync.Mutex
}

// UpsertMangaWithSubscription subscribes the user to the manga, creating the
// manga and its chapter when they are new. An existing manga keeps its stored
// title and chapter.
func (svc *subscribe) UpsertMangaWithSubscription(ctx context.Context, userID int64, manga models.Manga, chapter models.Chapter) (models.Outcome, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	var outcome models.Outcome
	err := svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureUser(tx, userID); err != nil {
			return err
		}

		existing := models.Manga{}
		err := tx.Where("url = ?", manga.URL).Take(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := insertChapter(tx, &chapter); err != nil {
				return err
			}
			row := models.Manga{URL: manga.URL, Title: manga.Title, LastChapterURL: chapter.URL}
			if err := tx.Omit(clause.Associations).Create(&row).Error; err != nil {
				return err
			}
			if err := tx.Omit(clause.Associations).Create(&models.Subscription{UserID: userID, MangaURL: manga.URL}).Error; err != nil {
				return err
			}
			outcome = models.OutcomeCreated
			return nil

		case err != nil:
			return err
		}

		res := tx.Omit(clause.Associations).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.Subscription{UserID: userID, MangaURL: manga.URL})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			outcome = models.OutcomeAlreadySubscribed
		} else {
			outcome = models.OutcomeSubscribed
		}
		return nil
	})
	if err != nil {
		return 0, wrapStoreError(svc.log, "upsert manga with subscription", err)
	}

	svc.log.Sugar().Infow("Subscription recorded", "user_id", userID, "manga_url", manga.URL, "outcome", outcome.String())
	return outcome, nil
}

// RemoveSubscription deletes the relation only. Removing a subscription that
// does not exist succeeds.
func (svc *subscribe) RemoveSubscription(ctx context.Context, userID int64, mangaURL string) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	tx := svc.db.WithContext(ctx).
		Where("user_id = ? AND manga_url = ?", userID, mangaURL).
		Delete(&models.Subscription{})
	if err := tx.Error; err != nil {
		return wrapStoreError(svc.log, "remove subscription", err)
	}
	svc.log.Sugar().Infow("Subscription removed", "user_id", userID, "manga_url", mangaURL, "rows", tx.RowsAffected)
	return nil
}

// insertChapter leaves an already stored chapter untouched.
func insertChapter(tx *gorm.DB, chapter *models.Chapter) error {
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(chapter).Error
}
