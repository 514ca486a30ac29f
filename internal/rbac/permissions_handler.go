package rbac

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/machinemu/machinemu/internal/audit"
	"github.com/machinemu/machinemu/internal/platform/httpx"
)

// PermissionsHandler manages permission CRUD endpoints.
type PermissionsHandler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	guard     Middleware
	audit     *audit.Service
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(logger *slog.Logger, service *Service, guard Middleware, auditor *audit.Service) *PermissionsHandler {
	return &PermissionsHandler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
		guard:     guard,
		audit:     auditor,
	}
}

// MountRoutes registers permission routes. The whole surface requires
// ManageRoles, matching the policy that permissions are edited by whoever
// curates roles.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(PermManageRoles))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Post("/", h.create)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.remove)
	})
}

type permissionRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

func (h *PermissionsHandler) list(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.ListPermissions(r.Context())
	if err != nil {
		h.logger.Error("list permissions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if perms == nil {
		perms = []PermissionRecord{}
	}
	httpx.JSON(w, http.StatusOK, perms)
}

func (h *PermissionsHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid permission id")
		return
	}
	perm, err := h.service.GetPermission(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, perm)
}

func (h *PermissionsHandler) create(w http.ResponseWriter, r *http.Request) {
	var req permissionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.FieldProblem(w, http.StatusBadRequest, "Validation Failed", "name is required", "name")
		return
	}
	perm, err := h.service.CreatePermission(r.Context(), req.Name)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.recordAudit(r, "permission.create", perm.ID, map[string]any{"name": perm.Name})
	httpx.JSON(w, http.StatusCreated, perm)
}

func (h *PermissionsHandler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid permission id")
		return
	}
	var req permissionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.FieldProblem(w, http.StatusBadRequest, "Validation Failed", "name is required", "name")
		return
	}
	perm, err := h.service.UpdatePermission(r.Context(), id, req.Name)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.recordAudit(r, "permission.update", perm.ID, map[string]any{"name": perm.Name})
	httpx.JSON(w, http.StatusOK, perm)
}

func (h *PermissionsHandler) remove(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid permission id")
		return
	}
	if err := h.service.DeletePermission(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.recordAudit(r, "permission.delete", id, nil)
	httpx.NoContent(w)
}

func (h *PermissionsHandler) recordAudit(r *http.Request, action string, entityID int64, meta map[string]any) {
	identity, _ := IdentityFromContext(r.Context())
	if err := h.audit.Record(r.Context(), audit.Entry{
		ActorID:  identity.UserID,
		Action:   action,
		Entity:   "permission",
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     meta,
	}); err != nil {
		h.logger.Warn("audit record", slog.Any("error", err))
	}
}
