package zakat

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ayush/zakat-tracker/internal/httpx"
	"github.com/ayush/zakat-tracker/internal/middleware"
	"github.com/ayush/zakat-tracker/internal/models"
)

// EntryStore defines the interface for entry persistence. By-id methods are
// scoped to the owner and return models.ErrInvalidID or
// models.ErrEntryNotFound rather than a generic failure.
type EntryStore interface {
	Insert(ctx context.Context, e *models.Entry) error
	ListByUser(ctx context.Context, userID string) ([]models.Entry, error)
	GetByID(ctx context.Context, userID, id string) (*models.Entry, error)
	Update(ctx context.Context, userID, id string, patch models.EntryPatch) (*models.Entry, error)
	Delete(ctx context.Context, userID, id string) error
}

// UserLookup resolves the authenticated email to its user record.
type UserLookup interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// SummaryCache stores computed summaries per user.
type SummaryCache interface {
	Get(ctx context.Context, userID string) (*models.Summary, bool, error)
	Set(ctx context.Context, userID string, s *models.Summary) error
	Invalidate(ctx context.Context, userID string) error
}

// FileStore defines the interface for export archives.
type FileStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
}

// Handler holds zakat HTTP handlers.
type Handler struct {
	users   UserLookup
	entries EntryStore
	cache   SummaryCache
	files   FileStore
	log     *slog.Logger
	now     func() time.Time
}

// Option configures optional collaborators of Handler.
type Option func(*Handler)

// WithSummaryCache enables caching of statistics summaries.
func WithSummaryCache(c SummaryCache) Option {
	return func(h *Handler) { h.cache = c }
}

// WithFileStore archives every export to fs.
func WithFileStore(fs FileStore) Option {
	return func(h *Handler) { h.files = fs }
}

func NewHandler(users UserLookup, entries EntryStore, log *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		users:   users,
		entries: entries,
		log:     log.With(slog.String("component", "zakat")),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes mounts the zakat endpoints. Callers wrap it with RequireAuth.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/statistics/summary", h.Statistics)
	r.Get("/export", h.Export)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// currentUser resolves the caller. A token whose user no longer exists yields
// models.ErrUserNotFound.
func (h *Handler) currentUser(r *http.Request) (*models.User, error) {
	email, ok := middleware.EmailFromContext(r.Context())
	if !ok {
		return nil, models.ErrUnauthorized
	}
	return h.users.GetUserByEmail(r.Context(), email)
}

// Create records a new entry for the caller.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}

	var req models.CreateEntryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, h.log, err)
		return
	}

	now := h.now().UTC()
	entry := &models.Entry{
		UserID:      user.ID,
		Amount:      *req.Amount,
		Category:    req.Category,
		Description: req.Description,
		Date:        now,
		ZakatAmount: ComputeObligation(*req.Amount),
		CreatedAt:   now,
	}
	if req.Date != nil {
		entry.Date = req.Date.UTC()
	}

	if err := h.entries.Insert(r.Context(), entry); err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	h.invalidate(r.Context(), user.ID)

	httpx.JSON(w, http.StatusCreated, entry)
}

// List returns all entries of the caller, newest date first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}

	entries, err := h.entries.ListByUser(r.Context(), user.ID)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	if entries == nil {
		entries = []models.Entry{}
	}
	httpx.JSON(w, http.StatusOK, entries)
}

// Get returns a single entry owned by the caller.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}

	entry, err := h.entries.GetByID(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

// Update replaces only the supplied fields. The obligation is recomputed when
// the amount changes.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}

	var req models.UpdateEntryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, h.log, err)
		return
	}

	patch := models.EntryPatch{
		Amount:      req.Amount,
		Category:    req.Category,
		Description: req.Description,
	}
	if req.Amount != nil {
		zakat := ComputeObligation(*req.Amount)
		patch.ZakatAmount = &zakat
	}
	if req.Date != nil {
		date := req.Date.UTC()
		patch.Date = &date
	}

	entry, err := h.entries.Update(r.Context(), user.ID, chi.URLParam(r, "id"), patch)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	if !patch.Empty() {
		h.invalidate(r.Context(), user.ID)
	}
	httpx.JSON(w, http.StatusOK, entry)
}

// Delete removes an entry owned by the caller.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}

	if err := h.entries.Delete(r.Context(), user.ID, chi.URLParam(r, "id")); err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	h.invalidate(r.Context(), user.ID)
	w.WriteHeader(http.StatusNoContent)
}

// Statistics returns totals and the per-category breakdown of the caller's
// entries.
func (h *Handler) Statistics(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}

	if h.cache != nil {
		cached, ok, err := h.cache.Get(r.Context(), user.ID)
		if err != nil {
			h.log.Warn("summary cache read failed", slog.String("error", err.Error()))
		} else if ok {
			httpx.JSON(w, http.StatusOK, cached)
			return
		}
	}

	entries, err := h.entries.ListByUser(r.Context(), user.ID)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	summary := Summarize(entries)

	if h.cache != nil {
		if err := h.cache.Set(r.Context(), user.ID, &summary); err != nil {
			h.log.Warn("summary cache write failed", slog.String("error", err.Error()))
		}
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) invalidate(ctx context.Context, userID string) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Invalidate(ctx, userID); err != nil {
		h.log.Warn("summary cache invalidate failed", slog.String("user_id", userID), slog.String("error", err.Error()))
	}
}
