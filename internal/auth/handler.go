package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ayush/zakat-tracker/internal/httpx"
	"github.com/ayush/zakat-tracker/internal/middleware"
	"github.com/ayush/zakat-tracker/internal/models"
)

// UserStore defines the interface for user persistence.
type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// Handler holds auth-related HTTP handlers.
type Handler struct {
	users     UserStore
	passwords *PasswordHasher
	tokens    *TokenService
	log       *slog.Logger
	now       func() time.Time
}

func NewHandler(users UserStore, passwords *PasswordHasher, tokens *TokenService, log *slog.Logger) *Handler {
	return &Handler{
		users:     users,
		passwords: passwords,
		tokens:    tokens,
		log:       log.With(slog.String("component", "auth")),
		now:       time.Now,
	}
}

// Register creates a new user.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, h.log, err)
		return
	}

	hashed, err := h.passwords.Hash(req.Password)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}

	user := &models.User{
		Username:     req.Username,
		Email:        strings.ToLower(req.Email),
		PasswordHash: hashed,
		FullName:     req.FullName,
		CreatedAt:    h.now().UTC(),
	}
	if err := h.users.CreateUser(r.Context(), user); err != nil {
		httpx.Error(w, h.log, err)
		return
	}

	h.log.Info("user registered", slog.String("user_id", user.ID))
	httpx.JSON(w, http.StatusCreated, user)
}

// Login checks form credentials (username carries the email) and issues an
// access token. A missing user and a wrong password get the same answer.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httpx.Error(w, h.log, &models.ValidationError{Msg: "invalid form body"})
		return
	}
	req := models.LoginRequest{
		Username: r.PostForm.Get("username"),
		Password: r.PostForm.Get("password"),
	}
	if err := httpx.Validate(req); err != nil {
		httpx.Error(w, h.log, err)
		return
	}

	user, err := h.findLoginUser(r.Context(), req.Username)
	if err != nil && !errors.Is(err, models.ErrUserNotFound) {
		httpx.Error(w, h.log, err)
		return
	}
	if user == nil || !h.passwords.Verify(req.Password, user.PasswordHash) {
		httpx.Unauthorized(w, "Incorrect email or password")
		return
	}

	token, err := h.tokens.Issue(user.Email)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, models.TokenResponse{AccessToken: token, TokenType: "bearer"})
}

// findLoginUser looks the email up as typed, then lowercased. New accounts
// are stored lowercased; older ones keep the case they registered with.
func (h *Handler) findLoginUser(ctx context.Context, email string) (*models.User, error) {
	user, err := h.users.GetUserByEmail(ctx, email)
	if !errors.Is(err, models.ErrUserNotFound) {
		return user, err
	}
	if lower := strings.ToLower(email); lower != email {
		return h.users.GetUserByEmail(ctx, lower)
	}
	return nil, err
}

// Me returns the currently authenticated user.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	email, ok := middleware.EmailFromContext(r.Context())
	if !ok {
		httpx.Error(w, h.log, models.ErrUnauthorized)
		return
	}

	user, err := h.users.GetUserByEmail(r.Context(), email)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}
