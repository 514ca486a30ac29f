package cars

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/machinemu/machinemu/internal/audit"
	"github.com/machinemu/machinemu/internal/platform/httpx"
	"github.com/machinemu/machinemu/internal/rbac"
)

// Handler manages car endpoints. The listing is open to any authenticated
// caller; everything else sits behind a dedicated permission.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	guard     rbac.Middleware
	audit     *audit.Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard rbac.Middleware, auditor *audit.Service) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
		guard:     guard,
		audit:     auditor,
	}
}

// MountRoutes registers car routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)

	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(rbac.PermManageCars))
		r.Get("/{id}", h.get)
		r.Post("/", h.create)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.remove)
		r.Post("/{id}/refuel", h.refuel)
	})

	r.With(h.guard.Require(rbac.PermGetCarStatus)).Get("/{id}/status", h.status)
	r.With(h.guard.Require(rbac.PermStartCar)).Post("/{id}/start", h.start)
	r.With(h.guard.Require(rbac.PermStopCar)).Post("/{id}/stop", h.stop)
}

type createCarRequest struct {
	Name             string  `json:"name" validate:"required,max=100"`
	Gas              float64 `json:"gas" validate:"gte=0"`
	ConsumptionPerKM float64 `json:"consumptionPerKm" validate:"gte=0"`
}

type updateCarRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

type refuelRequest struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	cars, err := h.service.ListCars(r.Context())
	if err != nil {
		h.logger.Error("list cars", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, cars)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	car, err := h.service.GetCar(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, car)
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	status, err := h.service.Status(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": status})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createCarRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.FieldProblem(w, http.StatusBadRequest, "Validation Failed", "car name is required, gas and consumption must not be negative", "name")
		return
	}
	car, err := h.service.CreateCar(r.Context(), req.Name, req.Gas, req.ConsumptionPerKM)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.recordAudit(r, "car.create", car.ID, map[string]any{"name": car.Name})
	httpx.JSON(w, http.StatusCreated, car)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var req updateCarRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.FieldProblem(w, http.StatusBadRequest, "Validation Failed", "car name is required", "name")
		return
	}
	car, err := h.service.RenameCar(r.Context(), id, req.Name)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.recordAudit(r, "car.update", car.ID, map[string]any{"name": car.Name})
	httpx.JSON(w, http.StatusOK, car)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteCar(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.recordAudit(r, "car.delete", id, nil)
	httpx.NoContent(w)
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	car, err := h.service.Start(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, car)
}

func (h *Handler) stop(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	car, err := h.service.Stop(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, car)
}

func (h *Handler) refuel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var req refuelRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.FieldProblem(w, http.StatusBadRequest, "Validation Failed", "refuel amount must be positive", "amount")
		return
	}
	car, err := h.service.Refuel(r.Context(), id, req.Amount)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.recordAudit(r, "car.refuel", car.ID, map[string]any{"amount": req.Amount})
	httpx.JSON(w, http.StatusOK, car)
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid car id")
		return 0, false
	}
	return id, true
}

func (h *Handler) recordAudit(r *http.Request, action string, entityID int64, meta map[string]any) {
	identity, _ := rbac.IdentityFromContext(r.Context())
	if err := h.audit.Record(r.Context(), audit.Entry{
		ActorID:  identity.UserID,
		Action:   action,
		Entity:   "car",
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     meta,
	}); err != nil {
		h.logger.Warn("audit record", slog.Any("error", err))
	}
}
