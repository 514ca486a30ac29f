package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/machinemu/machinemu/internal/platform/httpx"
	"github.com/machinemu/machinemu/internal/rbac"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	limiter   *LoginLimiter
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, limiter *LoginLimiter) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		limiter:   limiter,
		validator: validator.New(),
	}
}

// MountRoutes registers the public auth routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.login)
	r.Post("/register", h.register)
}

// MountProtectedRoutes registers routes that need a verified credential but
// no particular permission. The caller mounts these behind Authenticate.
func (h *Handler) MountProtectedRoutes(r chi.Router) {
	r.Get("/me", h.me)
}

type credentialsRequest struct {
	UserName string `json:"userName" validate:"required,max=100"`
	Secret   string `json:"secret" validate:"required,min=6"`
}

type loginResponse struct {
	Token       string   `json:"token"`
	Permissions []string `json:"permissions"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		// Field-level detail is withheld on login to keep the failure shape
		// identical to a bad credential.
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}

	blocked, err := h.limiter.Blocked(r.Context(), req.UserName)
	if err != nil {
		h.logger.Warn("login limiter", slog.Any("error", err))
	}
	if blocked {
		httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "too many failed login attempts")
		return
	}

	token, permissions, err := h.service.Login(r.Context(), req.UserName, req.Secret)
	if err != nil {
		if !errors.Is(err, httpx.ErrUnauthorized) {
			// Infrastructure failure, not a bad credential. It must not count
			// against the account or a store outage could lock callers out.
			h.logger.Error("login", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		if lerr := h.limiter.RecordFailure(r.Context(), req.UserName); lerr != nil {
			h.logger.Warn("record login failure", slog.Any("error", lerr))
		}
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	if err := h.limiter.Reset(r.Context(), req.UserName); err != nil {
		h.logger.Warn("reset login limiter", slog.Any("error", err))
	}
	httpx.JSON(w, http.StatusOK, loginResponse{Token: token, Permissions: permissions})
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.FieldProblem(w, http.StatusBadRequest, "Validation Failed", "userName and secret are required, secret at least 6 characters", "secret")
		return
	}
	user, err := h.service.Register(r.Context(), req.UserName, req.Secret)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"id":       user.ID,
		"userName": user.UserName,
	})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	identity, ok := rbac.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	profile, err := h.service.Introspect(r.Context(), identity.UserID)
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			// The subject was deleted after the token was issued.
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		h.logger.Error("introspect", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, profile)
}
