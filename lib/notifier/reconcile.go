package notifier

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/fiffu/mangawatch/lib/models"
	"github.com/fiffu/mangawatch/senders"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Reconcile runs one pass over every tracked manga. Failures are isolated per
// manga and per subscriber and end up in the report.
func (n *Notifier) Reconcile(ctx context.Context) *models.PassReport {
	n.passMu.Lock()
	defer n.passMu.Unlock()

	report := &models.PassReport{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	n.log.Sugar().Infow("Pass started", "pass_id", report.ID)

	mangas, err := n.store.ListAllTracked(ctx)
	if err != nil {
		report.Errored = 1
		report.Failures = []models.MangaFailure{{Err: err.Error()}}
		n.finish(ctx, report)
		return report
	}
	report.Tracked = len(mangas)

	var mu sync.Mutex
	metrics := &passMetrics{}

	g := new(errgroup.Group)
	g.SetLimit(n.concurrency)
	for _, manga := range mangas {
		g.Go(func() error {
			m := n.reconcileManga(ctx, report.ID, manga)
			mu.Lock()
			metrics.Add(m)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	metrics.fill(report)
	n.finish(ctx, report)
	return report
}

func (n *Notifier) reconcileManga(ctx context.Context, passID string, manga models.Manga) *passMetrics {
	failed := func(err error) *passMetrics {
		n.log.Sugar().Errorw("Manga check failed", "pass_id", passID, "manga_url", manga.URL, "err", err)
		return &passMetrics{
			errored:  1,
			failures: []models.MangaFailure{{MangaURL: manga.URL, Title: manga.Title, Err: err.Error()}},
		}
	}

	sctx, cancel := context.WithTimeout(ctx, n.sourceTimeout)
	defer cancel()
	latest, err := n.source.LatestChapter(sctx, manga.URL)
	if err != nil {
		return failed(err)
	}
	if latest.URL == manga.LastChapterURL {
		return &passMetrics{unchanged: 1}
	}

	chapter := models.Chapter{URL: latest.URL, Title: latest.Title, PublishedAt: latest.PublishedAt}
	if err := n.store.UpdateLastChapter(ctx, manga.URL, chapter); err != nil {
		return failed(err)
	}
	n.log.Sugar().Infow("New chapter",
		"pass_id", passID,
		"manga_url", manga.URL,
		"previous", manga.LastChapterURL,
		"current", chapter.URL,
	)

	m := &passMetrics{updated: 1, updatedTitles: []string{fmt.Sprintf("%s: %s", manga.Title, chapter.Title)}}
	notified, notifyFailed := n.fanOut(ctx, passID, &models.ChapterUpdate{Manga: manga, Chapter: chapter})
	m.notified, m.notifyFailed = notified, notifyFailed
	return m
}

// fanOut notifies every subscriber; one failed delivery never stops the rest.
func (n *Notifier) fanOut(ctx context.Context, passID string, update *models.ChapterUpdate) (notified, failed int) {
	userIDs, err := n.store.SubscribersOf(ctx, update.Manga.URL)
	if err != nil {
		n.log.Sugar().Errorw("Subscriber lookup failed", "pass_id", passID, "manga_url", update.Manga.URL, "err", err)
		return 0, 0
	}

	sender, ok := n.senders[senders.PlatformTelegram]
	if !ok {
		n.log.Sugar().Errorw("No sender registered", "platform", senders.PlatformTelegram)
		return 0, len(userIDs)
	}

	for _, userID := range userIDs {
		if _, err := sender.SendUpdate(ctx, strconv.FormatInt(userID, 10), update); err != nil {
			n.log.Sugar().Errorw("Notification failed",
				"pass_id", passID,
				"user_id", userID,
				"manga_url", update.Manga.URL,
				"err", err,
			)
			failed++
			continue
		}
		notified++
	}
	return notified, failed
}

func (n *Notifier) finish(ctx context.Context, report *models.PassReport) {
	report.Elapsed = time.Since(report.StartedAt)

	args := []any{"pass_id", report.ID, "elapsed_msecs", int(report.Elapsed.Milliseconds())}
	if report.Updated != 0 {
		args = append(args, "updated", report.Updated)
	}
	if report.Unchanged != 0 {
		args = append(args, "unchanged", report.Unchanged)
	}
	if report.Errored != 0 {
		args = append(args, "errored", report.Errored)
	}
	if report.Notified != 0 || report.NotifyFailed != 0 {
		args = append(args, "notified", report.Notified, "notify_failed", report.NotifyFailed)
	}
	n.log.Sugar().Infow(fmt.Sprintf("Processed %d mangas", report.Tracked), args...)

	n.reportMu.Lock()
	n.lastReport = report
	n.reportMu.Unlock()

	n.sendReport(ctx, report)
}

func (n *Notifier) sendReport(ctx context.Context, report *models.PassReport) {
	if n.reporter == nil || len(n.recipients) == 0 || !report.Noteworthy() {
		return
	}
	for _, recipient := range n.recipients {
		if _, err := n.reporter.SendReport(ctx, recipient, report); err != nil {
			n.log.Sugar().Errorw("Pass report failed", "pass_id", report.ID, "recipient", recipient, "err", err)
		}
	}
}
