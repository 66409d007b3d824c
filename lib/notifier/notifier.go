// Package notifier periodically re-checks every tracked manga and tells
// subscribers about new chapters.
package notifier

import (
	"context"
	"sync"
	"time"

	"github.com/fiffu/mangawatch/config"
	"github.com/fiffu/mangawatch/lib/models"
	"github.com/fiffu/mangawatch/lib/scraper"
	"github.com/fiffu/mangawatch/senders"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const defaultSourceTimeout = 30 * time.Second

// Store is the part of the subscription service a pass needs.
type Store interface {
	ListAllTracked(ctx context.Context) (models.Mangas, error)
	UpdateLastChapter(ctx context.Context, mangaURL string, chapter models.Chapter) error
	SubscribersOf(ctx context.Context, mangaURL string) ([]int64, error)
}

type Notifier struct {
	log      *zap.Logger
	store    Store
	source   scraper.Source
	senders  senders.Registry
	reporter senders.Reporter

	recipients    []string
	concurrency   int
	sourceTimeout time.Duration

	passMu     sync.Mutex // one pass at a time
	alarmClock *alarmClock
	wg         sync.WaitGroup

	reportMu   sync.RWMutex
	lastReport *models.PassReport
}

// NewNotifier builds a notifier; reporter may be nil.
func NewNotifier(
	cfg *config.Config,
	log *zap.Logger,
	store Store,
	source scraper.Source,
	registry senders.Registry,
	reporter senders.Reporter,
) *Notifier {
	concurrency := cfg.Notifier.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	sourceTimeout := cfg.SourceTimeout()
	if sourceTimeout <= 0 {
		sourceTimeout = defaultSourceTimeout
	}
	interval := cfg.NotifierInterval()
	if interval <= 0 {
		log.Sugar().Warnw("Non-positive notifier interval, using default", "interval", interval, "default", defaultInterval)
	}
	return &Notifier{
		log:           log,
		store:         store,
		source:        source,
		senders:       registry,
		reporter:      reporter,
		recipients:    cfg.Notifier.ReportRecipients,
		concurrency:   concurrency,
		sourceTimeout: sourceTimeout,
		alarmClock:    newAlarmClock(interval),
	}
}

// RunNotifier ties the notifier loop to the application lifecycle.
func RunNotifier(lc fx.Lifecycle, n *Notifier) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			n.Start()
			return nil
		},
		OnStop: func(context.Context) error {
			n.log.Sugar().Info("Trying to stop notifier")
			n.Stop()
			return nil
		},
	})
}

// Start launches the loop. Each wake-up of the alarm clock runs one pass.
func (n *Notifier) Start() {
	c := n.alarmClock.Start(context.Background())

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		for evt := range c {
			n.handleEvent(evt)
		}
	}()
}

// Stop halts the loop and waits for an in-flight pass to finish.
func (n *Notifier) Stop() {
	n.alarmClock.Stop()
	n.wg.Wait()
	n.log.Sugar().Info("Notifier stopped")
}

// TriggerPass requests a pass outside the regular schedule. It returns false
// when the loop is not running or a triggered pass is already queued.
func (n *Notifier) TriggerPass(source string) bool {
	ok := n.alarmClock.Trigger(source)
	n.log.Sugar().Infow("Pass trigger requested", "source", source, "accepted", ok)
	return ok
}

// LastReport returns the report of the latest completed pass, or nil.
func (n *Notifier) LastReport() *models.PassReport {
	n.reportMu.RLock()
	defer n.reportMu.RUnlock()
	return n.lastReport
}

func (n *Notifier) handleEvent(evt Event) {
	if trigger, ok := evt.(triggerEvent); ok {
		n.log.Sugar().Infow("Manual pass", "source", trigger.Source, "requested_at", trigger.Timestamp())
	}
	n.Reconcile(context.Background())
}
