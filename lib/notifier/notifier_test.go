package notifier

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fiffu/mangawatch/config"
	"github.com/fiffu/mangawatch/lib"
	"github.com/fiffu/mangawatch/lib/models"
	"github.com/fiffu/mangawatch/lib/scraper"
	"github.com/fiffu/mangawatch/senders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap/zaptest"
)

type fakeSource struct {
	scraper.Source

	mu     sync.Mutex
	latest map[string]scraper.ChapterRef
	calls  int
}

func (f *fakeSource) LatestChapter(ctx context.Context, mangaURL string) (scraper.ChapterRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	ch, ok := f.latest[mangaURL]
	if !ok {
		return ch, fmt.Errorf("latest chapter of %s: %w", mangaURL, models.ErrAdapter)
	}
	return ch, nil
}

type delivery struct {
	recipient string
	chapter   string
}

type fakeSender struct {
	mu        sync.Mutex
	delivered []delivery
	failFor   map[string]bool
}

func (f *fakeSender) SendUpdate(ctx context.Context, recipient string, update *models.ChapterUpdate) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[recipient] {
		return "", errors.New("chat not found")
	}
	f.delivered = append(f.delivered, delivery{recipient, update.Chapter.URL})
	return "ok", nil
}

type fakeReporter struct {
	mu      sync.Mutex
	reports map[string]*models.PassReport
}

func (f *fakeReporter) SendReport(ctx context.Context, recipient string, report *models.PassReport) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports[recipient] = report
	return "id", nil
}

type fixture struct {
	notifier *Notifier
	svc      *lib.Service
	source   *fakeSource
	sender   *fakeSender
	reporter *fakeReporter
}

func setupNotifier(t *testing.T) *fixture {
	log := zaptest.NewLogger(t)
	db, err := models.OpenDatabase(filepath.Join(t.TempDir(), "test.sqlite"), nil)
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))
	svc := lib.NewService(log, db)

	cfg := &config.Config{}
	cfg.Source.TimeoutSecs = 5
	cfg.Notifier.IntervalMins = 60
	cfg.Notifier.Concurrency = 2
	cfg.Notifier.ReportRecipients = []string{"ops@example.com"}

	source := &fakeSource{latest: map[string]scraper.ChapterRef{}}
	sender := &fakeSender{failFor: map[string]bool{}}
	reporter := &fakeReporter{reports: map[string]*models.PassReport{}}
	registry := senders.Registry{senders.PlatformTelegram: sender}

	n := NewNotifier(cfg, log, svc, source, registry, reporter)
	return &fixture{n, svc, source, sender, reporter}
}

func (f *fixture) track(t *testing.T, userID int64, mangaURL, chapterURL string) {
	manga := models.Manga{URL: mangaURL, Title: mangaURL}
	chapter := models.Chapter{URL: chapterURL, Title: chapterURL}
	_, err := f.svc.UpsertMangaWithSubscription(context.Background(), userID, manga, chapter)
	require.NoError(t, err)
}

func lastChapters(t *testing.T, svc *lib.Service) map[string]string {
	mangas, err := svc.ListAllTracked(context.Background())
	require.NoError(t, err)
	out := map[string]string{}
	for _, m := range mangas {
		out[m.URL] = m.LastChapterURL
	}
	return out
}

func TestReconcile(t *testing.T) {
	f := setupNotifier(t)
	f.track(t, 1, "m1", "m1/c1")
	f.track(t, 1, "m2", "m2/c1")
	f.track(t, 2, "m2", "m2/c1")
	f.track(t, 2, "m3", "m3/c1")

	f.source.latest["m1"] = scraper.ChapterRef{URL: "m1/c1", Title: "m1/c1"}
	f.source.latest["m2"] = scraper.ChapterRef{URL: "m2/c2", Title: "m2/c2", PublishedAt: "2025-03-01"}
	// m3 is missing from the source and fails.

	report := f.notifier.Reconcile(context.Background())

	assert.NotEmpty(t, report.ID)
	assert.Equal(t, 3, report.Tracked)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 1, report.Unchanged)
	assert.Equal(t, 1, report.Errored)
	assert.Equal(t, 2, report.Notified)
	assert.Equal(t, 0, report.NotifyFailed)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "m3", report.Failures[0].MangaURL)
	assert.Equal(t, []string{"m2: m2/c2"}, report.UpdatedTitles)

	assert.ElementsMatch(t, []delivery{{"1", "m2/c2"}, {"2", "m2/c2"}}, f.sender.delivered)
	assert.Equal(t, map[string]string{"m1": "m1/c1", "m2": "m2/c2", "m3": "m3/c1"}, lastChapters(t, f.svc))
	assert.Same(t, report, f.reporter.reports["ops@example.com"])
	assert.Same(t, report, f.notifier.LastReport())

	// A second pass sees nothing new.
	f.source.latest["m3"] = scraper.ChapterRef{URL: "m3/c1"}
	report = f.notifier.Reconcile(context.Background())
	assert.Equal(t, 3, report.Unchanged)
	assert.Len(t, f.sender.delivered, 2)
}

func TestReconcileIgnoresPublishedAt(t *testing.T) {
	f := setupNotifier(t)
	f.track(t, 1, "m1", "m1/c1")
	f.source.latest["m1"] = scraper.ChapterRef{URL: "m1/c1", Title: "Renamed", PublishedAt: "2030-01-01"}

	report := f.notifier.Reconcile(context.Background())
	assert.Equal(t, 1, report.Unchanged)
	assert.Empty(t, f.sender.delivered)
	assert.Empty(t, f.reporter.reports)
}

func TestReconcileSubscriberFailureIsIsolated(t *testing.T) {
	f := setupNotifier(t)
	f.track(t, 1, "m1", "m1/c1")
	f.track(t, 2, "m1", "m1/c1")
	f.track(t, 3, "m1", "m1/c1")
	f.sender.failFor["2"] = true
	f.source.latest["m1"] = scraper.ChapterRef{URL: "m1/c2"}

	report := f.notifier.Reconcile(context.Background())
	assert.Equal(t, 2, report.Notified)
	assert.Equal(t, 1, report.NotifyFailed)
	assert.ElementsMatch(t, []delivery{{"1", "m1/c2"}, {"3", "m1/c2"}}, f.sender.delivered)
}

type failingUpdates struct {
	*lib.Service
}

func (failingUpdates) UpdateLastChapter(ctx context.Context, mangaURL string, chapter models.Chapter) error {
	return fmt.Errorf("update: %w", models.ErrStore)
}

func TestReconcileWritesBeforeNotifying(t *testing.T) {
	f := setupNotifier(t)
	f.track(t, 1, "m1", "m1/c1")
	f.source.latest["m1"] = scraper.ChapterRef{URL: "m1/c2"}
	f.notifier.store = failingUpdates{f.svc}

	report := f.notifier.Reconcile(context.Background())
	assert.Equal(t, 1, report.Errored)
	assert.Equal(t, 0, report.Updated)
	assert.Empty(t, f.sender.delivered)
}

func TestRunNotifier(t *testing.T) {
	f := setupNotifier(t)
	f.track(t, 1, "m1", "m1/c1")
	f.source.latest["m1"] = scraper.ChapterRef{URL: "m1/c1"}

	assert.False(t, f.notifier.TriggerPass("test"))

	lc := fxtest.NewLifecycle(t)
	RunNotifier(lc, f.notifier)
	lc.RequireStart()

	// The first pass runs right away.
	require.Eventually(t, func() bool { return f.notifier.LastReport() != nil }, 5*time.Second, 10*time.Millisecond)
	first := f.notifier.LastReport()

	require.Eventually(t, func() bool { return f.notifier.TriggerPass("test") }, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return f.notifier.LastReport() != first }, 5*time.Second, 10*time.Millisecond)

	lc.RequireStop()
	assert.False(t, f.notifier.TriggerPass("test"))
}

func TestNewNotifierClampsBadDurations(t *testing.T) {
	f := setupNotifier(t)
	cfg := &config.Config{}
	cfg.Notifier.IntervalMins = -1

	n := NewNotifier(cfg, zaptest.NewLogger(t), f.svc, f.source, senders.Registry{}, nil)
	assert.Equal(t, defaultInterval, n.alarmClock.interval)
	assert.Equal(t, defaultSourceTimeout, n.sourceTimeout)
	assert.Equal(t, 1, n.concurrency)

	f.track(t, 1, "m1", "m1/c1")
	f.source.latest["m1"] = scraper.ChapterRef{URL: "m1/c1"}
	report := n.Reconcile(context.Background())
	assert.Equal(t, 1, report.Unchanged)
}
