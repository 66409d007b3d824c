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

// Service is the only reader and writer of the content store. Writes are
// serialised by mu and run inside a single transaction each.
type Service struct {
	log *zap.Logger
	db  *gorm.DB
	mu  *sync.Mutex

	*registerUser
	*subscribe
	*chapterUpdater
}

func NewService(log *zap.Logger, db *gorm.DB) *Service {
	var mu sync.Mutex
	return &Service{
		log, db, &mu,
		&registerUser{log, db, &mu},
		&subscribe{log, db, &mu},
		&chapterUpdater{log, db, &mu},
	}
}

type Stats struct {
	Users         int64 `json:"users"`
	Mangas        int64 `json:"mangas"`
	Chapters      int64 `json:"chapters"`
	Subscriptions int64 `json:"subscriptions"`
}

// ListSubscriptions returns the user's mangas in the order they subscribed.
func (svc *Service) ListSubscriptions(ctx context.Context, userID int64) (models.Mangas, error) {
	mangas := models.Mangas{}
	tx := svc.db.WithContext(ctx).
		Joins("LastChapter").
		Joins("JOIN subscriptions ON subscriptions.manga_url = mangas.url").
		Where("subscriptions.user_id = ?", userID).
		Order("subscriptions.id").
		Find(&mangas)
	if err := tx.Error; err != nil {
		return nil, svc.storeError("list subscriptions", err)
	}
	return mangas, nil
}

// ListAllTracked returns every manga, subscribed to or not.
func (svc *Service) ListAllTracked(ctx context.Context) (models.Mangas, error) {
	mangas := models.Mangas{}
	tx := svc.db.WithContext(ctx).
		Joins("LastChapter").
		Order("mangas.created_at").
		Find(&mangas)
	if err := tx.Error; err != nil {
		return nil, svc.storeError("list tracked", err)
	}
	return mangas, nil
}

// FindMangaByChapterURL finds the manga whose last known chapter is chapterURL.
func (svc *Service) FindMangaByChapterURL(ctx context.Context, chapterURL string) (*models.Manga, error) {
	manga := &models.Manga{}
	tx := svc.db.WithContext(ctx).
		Joins("LastChapter").
		Where("mangas.last_chapter_url = ?", chapterURL).
		First(manga)
	if err := tx.Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("manga with chapter %s: %w", chapterURL, models.ErrNotFound)
	} else if err != nil {
		return nil, svc.storeError("find manga by chapter", err)
	}
	return manga, nil
}

func (svc *Service) FindChapter(ctx context.Context, chapterURL string) (*models.Chapter, error) {
	chapter := &models.Chapter{}
	tx := svc.db.WithContext(ctx).Where("url = ?", chapterURL).First(chapter)
	if err := tx.Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("chapter %s: %w", chapterURL, models.ErrNotFound)
	} else if err != nil {
		return nil, svc.storeError("find chapter", err)
	}
	return chapter, nil
}

// SubscribersOf returns the ids of users subscribed to the manga.
func (svc *Service) SubscribersOf(ctx context.Context, mangaURL string) ([]int64, error) {
	userIDs := make([]int64, 0)
	tx := svc.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("manga_url = ?", mangaURL).
		Order("id").
		Pluck("user_id", &userIDs)
	if err := tx.Error; err != nil {
		return nil, svc.storeError("list subscribers", err)
	}
	return userIDs, nil
}

func (svc *Service) ListUserIDs(ctx context.Context) ([]int64, error) {
	userIDs := make([]int64, 0)
	tx := svc.db.WithContext(ctx).Model(&models.User{}).Order("id").Pluck("id", &userIDs)
	if err := tx.Error; err != nil {
		return nil, svc.storeError("list users", err)
	}
	return userIDs, nil
}

func (svc *Service) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	counts := []struct {
		model any
		dest  *int64
	}{
		{&models.User{}, &stats.Users},
		{&models.Manga{}, &stats.Mangas},
		{&models.Chapter{}, &stats.Chapters},
		{&models.Subscription{}, &stats.Subscriptions},
	}
	for _, c := range counts {
		if err := svc.db.WithContext(ctx).Model(c.model).Count(c.dest).Error; err != nil {
			return nil, svc.storeError("stats", err)
		}
	}
	return stats, nil
}

func (svc *Service) storeError(op string, err error) error {
	return wrapStoreError(svc.log, op, err)
}

func wrapStoreError(log *zap.Logger, op string, err error) error {
	log.Sugar().Errorw("Store operation failed", "op", op, "err", err)
	return fmt.Errorf("%s: %w: %w", op, models.ErrStore, err)
}
