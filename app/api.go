package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/fiffu/mangawatch/config"
	"github.com/fiffu/mangawatch/lib"
	"github.com/fiffu/mangawatch/lib/models"
	"github.com/fiffu/mangawatch/lib/notifier"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type reconciler interface {
	TriggerPass(source string) bool
	LastReport() *models.PassReport
}

func NewAPI(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, svc *lib.Service, n *notifier.Notifier) *http.Server {
	addr := fmt.Sprintf(":%d", cfg.ServerPort)
	srv := &http.Server{Addr: addr, Handler: router(cfg, log, svc, n)}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Sugar().Errorw("HTTP server stopped", "err", err)
				}
			}()
			log.Sugar().Infow("HTTP server started", "addr", addr)
			return nil
		},
		OnStop: srv.Shutdown,
	})

	return srv
}

func router(cfg *config.Config, log *zap.Logger, svc *lib.Service, rec reconciler) http.Handler {
	ctrl := &controller{log, svc, rec}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		if creds := cfg.GetCreds(); len(creds) > 0 {
			r.Use(middleware.BasicAuth("mangawatch", creds))
		} else {
			log.Sugar().Info("Auth is disabled since no credentials are defined")
		}

		r.Get("/stats", ctrl.stats)
		r.Get("/mangas", ctrl.listMangas)
		r.Get("/chapters", ctrl.findChapter)
		r.Post("/reconcile", ctrl.reconcile)

		r.Route("/users", func(r chi.Router) {
			r.Get("/", ctrl.listUsers)
			r.Get("/{user_id}/subscriptions", ctrl.listSubscriptions)
			r.Delete("/{user_id}/subscriptions", ctrl.removeSubscription)
		})
	})

	return r
}

type controller struct {
	log *zap.Logger
	svc *lib.Service
	rec reconciler
}

func (ctrl *controller) reject(w http.ResponseWriter, status int, err error) {
	if err != nil {
		http.Error(w, err.Error(), status)
	} else {
		w.WriteHeader(status)
	}
}

// fail maps service errors onto status codes.
func (ctrl *controller) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrValidation):
		ctrl.reject(w, http.StatusBadRequest, err)
	case errors.Is(err, models.ErrNotFound):
		ctrl.reject(w, http.StatusNotFound, err)
	default:
		ctrl.reject(w, http.StatusInternalServerError, err)
	}
}

func (ctrl *controller) resolve(w http.ResponseWriter, status int, body any) {
	if b, err := json.Marshal(body); err != nil {
		ctrl.reject(w, http.StatusInternalServerError, err)
		ctrl.log.Sugar().Errorw("Request failed", "err", err)
		return
	} else {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write(b)
	}
}

func (ctrl *controller) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := ctrl.svc.Stats(r.Context())
	if err != nil {
		ctrl.fail(w, err)
		return
	}

	var lastPass *PassReportView
	if report := ctrl.rec.LastReport(); report != nil {
		view := PassReportView{}.From(report)
		lastPass = &view
	}
	ctrl.resolve(w, http.StatusOK, map[string]any{
		"store":     stats,
		"last_pass": lastPass,
	})
}

func (ctrl *controller) listMangas(w http.ResponseWriter, r *http.Request) {
	mangas, err := ctrl.svc.ListAllTracked(r.Context())
	if err != nil {
		ctrl.fail(w, err)
		return
	}
	ctrl.resolve(w, http.StatusOK, FromMany[models.Manga, MangaView](mangas))
}

func (ctrl *controller) findChapter(w http.ResponseWriter, r *http.Request) {
	chapterURL := r.URL.Query().Get("url")
	if chapterURL == "" {
		ctrl.reject(w, http.StatusBadRequest, errors.New("url is required"))
		return
	}

	chapter, err := ctrl.svc.FindChapter(r.Context(), chapterURL)
	if err != nil {
		ctrl.fail(w, err)
		return
	}
	ctrl.resolve(w, http.StatusOK, ChapterView{}.From(*chapter))
}

func (ctrl *controller) listUsers(w http.ResponseWriter, r *http.Request) {
	userIDs, err := ctrl.svc.ListUserIDs(r.Context())
	if err != nil {
		ctrl.fail(w, err)
		return
	}
	ctrl.resolve(w, http.StatusOK, map[string]any{"user_ids": userIDs})
}

func (ctrl *controller) listSubscriptions(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserID(r)
	if err != nil {
		ctrl.fail(w, err)
		return
	}

	mangas, err := ctrl.svc.ListSubscriptions(r.Context(), userID)
	if err != nil {
		ctrl.fail(w, err)
		return
	}
	ctrl.resolve(w, http.StatusOK, FromMany[models.Manga, MangaView](mangas))
}

func (ctrl *controller) removeSubscription(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserID(r)
	if err != nil {
		ctrl.fail(w, err)
		return
	}
	mangaURL := r.URL.Query().Get("manga_url")
	if mangaURL == "" {
		ctrl.reject(w, http.StatusBadRequest, errors.New("manga_url is required"))
		return
	}

	if err := ctrl.svc.RemoveSubscription(r.Context(), userID, mangaURL); err != nil {
		ctrl.fail(w, err)
		return
	}
	ctrl.log.Sugar().Infow("Subscription removed by operator", "user_id", userID, "manga_url", mangaURL)
	ctrl.reject(w, http.StatusNoContent, nil)
}

func (ctrl *controller) reconcile(w http.ResponseWriter, r *http.Request) {
	if !ctrl.rec.TriggerPass("api") {
		ctrl.reject(w, http.StatusConflict, errors.New("a pass is already queued"))
		return
	}
	ctrl.resolve(w, http.StatusAccepted, map[string]any{"queued": true})
}

func parseUserID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "user_id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("user id %q: %w", raw, models.ErrValidation)
	}
	return id, nil
}
