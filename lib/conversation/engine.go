// Package conversation runs the per-user chat state machine: searching and
// following mangas, listing and removing them, and downloading chapters.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/fiffu/mangawatch/config"
	"github.com/fiffu/mangawatch/lib/document"
	"github.com/fiffu/mangawatch/lib/models"
	"github.com/fiffu/mangawatch/lib/scraper"
	"go.uber.org/zap"
)

// Transport delivers replies to a chat.
type Transport interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendChoice(ctx context.Context, chatID int64, text string, options []string) error
	SendDocument(ctx context.Context, chatID int64, filename string, data []byte) error
}

// Store is the part of the subscription service the engine uses.
type Store interface {
	RegisterUser(ctx context.Context, userID int64) error
	UpsertMangaWithSubscription(ctx context.Context, userID int64, manga models.Manga, chapter models.Chapter) (models.Outcome, error)
	ListSubscriptions(ctx context.Context, userID int64) (models.Mangas, error)
	RemoveSubscription(ctx context.Context, userID int64, mangaURL string) error
	FindMangaByChapterURL(ctx context.Context, chapterURL string) (*models.Manga, error)
}

type Assembler interface {
	Assemble(ctx context.Context, title string, urls []string) (*document.Document, error)
}

type Engine struct {
	log       *zap.Logger
	store     Store
	source    scraper.Source
	assembler Assembler
	transport Transport

	sourceTimeout   time.Duration
	documentTimeout time.Duration

	mu    sync.Mutex
	users map[int64]*userState
}

// userState serialises turns of one user and holds their pending session.
// It is dropped from the map once the user is idle and no turn holds it.
type userState struct {
	mu      sync.Mutex
	session session
	refs    int // guarded by Engine.mu
}

func NewEngine(cfg *config.Config, log *zap.Logger, store Store, source scraper.Source, assembler Assembler, transport Transport) *Engine {
	return &Engine{
		log:             log,
		store:           store,
		source:          source,
		assembler:       assembler,
		transport:       transport,
		sourceTimeout:   cfg.SourceTimeout(),
		documentTimeout: cfg.DocumentTimeout(),
		users:           make(map[int64]*userState),
	}
}

// Handle processes one turn. Turns of the same user are handled one at a
// time; different users proceed in parallel.
func (e *Engine) Handle(ctx context.Context, turn Turn) {
	state := e.acquire(turn.UserID)
	state.mu.Lock()
	defer state.mu.Unlock()
	defer e.release(turn.UserID, state)

	e.log.Sugar().Infow("Turn received",
		"user_id", turn.UserID,
		"command", turn.Command,
		"stage", stageOf(state.session),
	)

	if err := e.store.RegisterUser(ctx, turn.UserID); err != nil {
		e.reply(ctx, turn, msgGenericError)
		return
	}

	switch turn.Command {
	case "start", "help":
		e.reply(ctx, turn, msgHelp)
	case "add":
		e.add(ctx, turn, state)
	case "list":
		e.list(ctx, turn, state)
	case "cancel":
		e.cancel(ctx, turn, state)
	case "download":
		state.session = nil
		e.downloadByURL(ctx, turn, turn.Args)
	case "":
		e.text(ctx, turn, state)
	default:
		e.reply(ctx, turn, msgUnknownCommand)
	}
}

// Stage reports the conversation stage of a user, for logging and tests.
func (e *Engine) Stage(userID int64) string {
	state := e.acquire(userID)
	state.mu.Lock()
	defer state.mu.Unlock()
	defer e.release(userID, state)
	return stageOf(state.session)
}

func (e *Engine) acquire(userID int64) *userState {
	e.mu.Lock()
	defer e.mu.Unlock()
	state, ok := e.users[userID]
	if !ok {
		state = &userState{}
		e.users[userID] = state
	}
	state.refs++
	return state
}

// release must be called with state.mu held.
func (e *Engine) release(userID int64, state *userState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	state.refs--
	if state.refs == 0 && state.session == nil {
		delete(e.users, userID)
	}
}

func (e *Engine) text(ctx context.Context, turn Turn, state *userState) {
	switch s := state.session.(type) {
	case nil:
		if isURL(turn.Args) {
			e.downloadByURL(ctx, turn, turn.Args)
			return
		}
		e.reply(ctx, turn, msgUnknownCommand)
	case awaitingMangaChoice:
		e.chooseManga(ctx, turn, state, s)
	case awaitingActionChoice:
		state.session = nil
		e.chooseAction(ctx, turn, s)
	case awaitingRemovalChoice:
		e.chooseRemoval(ctx, turn, state, s)
	}
}

func (e *Engine) add(ctx context.Context, turn Turn, state *userState) {
	if turn.Args == "" {
		e.reply(ctx, turn, msgAddUsage)
		return
	}
	state.session = nil

	sctx, cancel := context.WithTimeout(ctx, e.sourceTimeout)
	defer cancel()
	candidates, err := e.source.Search(sctx, turn.Args)
	if err != nil {
		e.log.Sugar().Errorw("Search failed", "user_id", turn.UserID, "query", turn.Args, "err", err)
		e.reply(ctx, turn, msgGenericError)
		return
	}
	if len(candidates) == 0 {
		e.reply(ctx, turn, msgNoResults)
		return
	}

	titles := make([]string, len(candidates))
	for i, c := range candidates {
		titles[i] = c.Title
	}
	state.session = awaitingMangaChoice{candidates: candidates}
	e.choice(ctx, turn, msgChooseManga, titles)
}

func (e *Engine) chooseManga(ctx context.Context, turn Turn, state *userState, s awaitingMangaChoice) {
	ref, ok := s.find(turn.Args)
	if !ok {
		e.reply(ctx, turn, msgInvalidManga)
		return
	}
	state.session = nil

	sctx, cancel := context.WithTimeout(ctx, e.sourceTimeout)
	defer cancel()
	latest, err := e.source.LatestChapter(sctx, ref.URL)
	if err != nil {
		e.log.Sugar().Errorw("Latest chapter lookup failed", "user_id", turn.UserID, "manga_url", ref.URL, "err", err)
		e.reply(ctx, turn, msgChapterError)
		return
	}

	manga := models.Manga{URL: ref.URL, Title: ref.Title}
	chapter := models.Chapter{URL: latest.URL, Title: latest.Title, PublishedAt: latest.PublishedAt}
	outcome, err := e.store.UpsertMangaWithSubscription(ctx, turn.UserID, manga, chapter)
	if err != nil {
		e.reply(ctx, turn, msgGenericError)
		return
	}
	e.log.Sugar().Infow("Manga followed", "user_id", turn.UserID, "manga_url", ref.URL, "outcome", outcome)

	e.reply(ctx, turn, outcomeMessage(outcome, ref.Title))
	e.reply(ctx, turn, fmt.Sprintf(msgLastChapter, chapter.Title, chapter.PublishedAt))
	state.session = awaitingActionChoice{manga: manga, chapter: chapter}
	e.choice(ctx, turn, msgChooseAction, actions)
}

func (e *Engine) chooseAction(ctx context.Context, turn Turn, s awaitingActionChoice) {
	switch turn.Args {
	case actionDownload:
		e.deliver(ctx, turn, s.manga.Title, s.chapter.Title, s.chapter.URL)
	case actionReadOnline:
		e.reply(ctx, turn, s.chapter.URL)
	case actionNothing:
		e.reply(ctx, turn, msgWillNotify)
	default:
		e.reply(ctx, turn, msgInvalidAction)
	}
}

func (e *Engine) list(ctx context.Context, turn Turn, state *userState) {
	state.session = nil

	mangas, err := e.store.ListSubscriptions(ctx, turn.UserID)
	if err != nil {
		e.reply(ctx, turn, msgGenericError)
		return
	}
	if len(mangas) == 0 {
		e.reply(ctx, turn, msgListEmpty)
		return
	}

	for _, chunk := range formatList(mangas) {
		e.reply(ctx, turn, chunk)
	}
	state.session = awaitingRemovalChoice{mangas: mangas}
	e.choice(ctx, turn, msgChooseRemoval, mangas.Titles())
}

func (e *Engine) chooseRemoval(ctx context.Context, turn Turn, state *userState, s awaitingRemovalChoice) {
	manga, ok := s.mangas.FindByTitle(turn.Args)
	if !ok {
		e.reply(ctx, turn, msgInvalidManga)
		return
	}
	state.session = nil

	if err := e.store.RemoveSubscription(ctx, turn.UserID, manga.URL); err != nil {
		e.reply(ctx, turn, msgGenericError)
		return
	}
	e.log.Sugar().Infow("Manga unfollowed", "user_id", turn.UserID, "manga_url", manga.URL)
	e.reply(ctx, turn, fmt.Sprintf(msgRemoved, manga.Title))
}

func (e *Engine) cancel(ctx context.Context, turn Turn, state *userState) {
	if state.session == nil {
		e.reply(ctx, turn, msgNothingToStop)
		return
	}
	state.session = nil
	e.reply(ctx, turn, msgWillNotify)
}

func (e *Engine) downloadByURL(ctx context.Context, turn Turn, raw string) {
	if !e.isChapterURL(raw) {
		host := e.source.Host()
		e.reply(ctx, turn, fmt.Sprintf(msgInvalidChapterURL, host, host))
		return
	}

	manga, err := e.store.FindMangaByChapterURL(ctx, raw)
	if err == nil {
		e.deliver(ctx, turn, manga.Title, manga.LastChapter.Title, raw)
		return
	}
	if !errors.Is(err, models.ErrNotFound) {
		e.reply(ctx, turn, msgGenericError)
		return
	}

	sctx, cancel := context.WithTimeout(ctx, e.sourceTimeout)
	defer cancel()
	desc, err := e.source.Describe(sctx, raw)
	if err != nil {
		e.log.Sugar().Errorw("Describe chapter failed", "user_id", turn.UserID, "chapter_url", raw, "err", err)
		e.reply(ctx, turn, msgGenericError)
		return
	}
	e.deliver(ctx, turn, desc.MangaTitle, desc.ChapterTitle, raw)
}

// deliver fetches the chapter pages and sends them as one document.
func (e *Engine) deliver(ctx context.Context, turn Turn, mangaTitle, chapterTitle, chapterURL string) {
	e.reply(ctx, turn, msgDownloading)

	sctx, cancel := context.WithTimeout(ctx, e.sourceTimeout)
	defer cancel()
	urls, err := e.source.ChapterResources(sctx, chapterURL)
	if err != nil {
		e.log.Sugar().Errorw("Chapter resources failed", "user_id", turn.UserID, "chapter_url", chapterURL, "err", err)
		e.reply(ctx, turn, msgGenericError)
		return
	}
	if len(urls) == 0 {
		e.reply(ctx, turn, msgNoImages)
		return
	}

	dctx, cancel := context.WithTimeout(ctx, e.documentTimeout)
	defer cancel()
	doc, err := e.assembler.Assemble(dctx, mangaTitle+" - "+chapterTitle, urls)

	var partial *document.PartialFetchError
	switch {
	case errors.As(err, &partial):
		e.reply(ctx, turn, fmt.Sprintf(msgMissingPages, partial.Failed, partial.Total))
	case err != nil:
		e.log.Sugar().Errorw("Assemble failed", "user_id", turn.UserID, "chapter_url", chapterURL, "err", err)
		e.reply(ctx, turn, msgGenericError)
		return
	}

	if err := e.transport.SendDocument(ctx, turn.ChatID, doc.Filename, doc.Content); err != nil {
		e.log.Sugar().Errorw("Document delivery failed", "user_id", turn.UserID, "filename", doc.Filename, "err", err)
		return
	}
	e.log.Sugar().Infow("Document sent", "user_id", turn.UserID, "filename", doc.Filename, "pages", doc.Pages)
}

// isChapterURL accepts http(s) links to a chapter page on the source host.
func (e *Engine) isChapterURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if host != strings.TrimPrefix(strings.ToLower(e.source.Host()), "www.") {
		return false
	}
	return strings.HasPrefix(u.Path, "/chapters/") && len(u.Path) > len("/chapters/")
}

func (e *Engine) reply(ctx context.Context, turn Turn, text string) {
	if err := e.transport.SendText(ctx, turn.ChatID, text); err != nil {
		e.log.Sugar().Errorw("Reply failed", "user_id", turn.UserID, "err", err)
	}
}

func (e *Engine) choice(ctx context.Context, turn Turn, text string, options []string) {
	if err := e.transport.SendChoice(ctx, turn.ChatID, text, options); err != nil {
		e.log.Sugar().Errorw("Choice prompt failed", "user_id", turn.UserID, "err", err)
	}
}

func isURL(text string) bool {
	return strings.HasPrefix(text, "http://") || strings.HasPrefix(text, "https://")
}

func outcomeMessage(outcome models.Outcome, title string) string {
	switch outcome {
	case models.OutcomeCreated:
		return fmt.Sprintf(msgOutcomeCreated, title)
	case models.OutcomeAlreadySubscribed:
		return fmt.Sprintf(msgOutcomeAlready, title)
	default:
		return fmt.Sprintf(msgOutcomeAdded, title)
	}
}

// formatList renders the subscriptions as one or more messages, each within
// the chat message size limit.
func formatList(mangas models.Mangas) []string {
	var chunks []string
	var sb strings.Builder
	sb.WriteString(msgListHeader)
	for i, m := range mangas {
		line := fmt.Sprintf("%d. %s - %s", i+1, m.Title, m.LastChapter.Title)
		if m.LastChapter.PublishedAt != "" {
			line += fmt.Sprintf(" (%s)", m.LastChapter.PublishedAt)
		}
		line = truncate(line, maxMessageLen)

		if sb.Len()+1+len(line) > maxMessageLen {
			chunks = append(chunks, sb.String())
			sb.Reset()
			sb.WriteString(line)
			continue
		}
		sb.WriteString("\n")
		sb.WriteString(line)
	}
	return append(chunks, sb.String())
}

// truncate cuts s to at most n bytes on a rune boundary. Byte length never
// undercounts Telegram's UTF-16 length.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n - len("...")
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
