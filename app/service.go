package app

import (
	"github.com/fiffu/mangawatch/config"
	"github.com/fiffu/mangawatch/lib"
	"github.com/fiffu/mangawatch/lib/conversation"
	"github.com/fiffu/mangawatch/lib/document"
	"github.com/fiffu/mangawatch/lib/notifier"
	"github.com/fiffu/mangawatch/lib/scraper"
	"github.com/fiffu/mangawatch/senders"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func NewService(log *zap.Logger, db *gorm.DB) *lib.Service {
	return lib.NewService(log, db)
}

func NewEngine(
	cfg *config.Config,
	log *zap.Logger,
	svc *lib.Service,
	source scraper.Source,
	assembler *document.Assembler,
	telegram *senders.Telegram,
) *conversation.Engine {
	return conversation.NewEngine(cfg, log.Named("conversation"), svc, source, assembler, telegram)
}

func NewNotifier(
	cfg *config.Config,
	log *zap.Logger,
	svc *lib.Service,
	source scraper.Source,
	registry senders.Registry,
	reporter senders.Reporter,
) *notifier.Notifier {
	return notifier.NewNotifier(cfg, log.Named("notifier"), svc, source, registry, reporter)
}
