package maintenance

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicaleng/cmms/internal/domain/servicerecord"
	"github.com/clinicaleng/cmms/internal/platform/apperr"
	"github.com/clinicaleng/cmms/internal/platform/auth"
	"github.com/clinicaleng/cmms/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// BulkPaths are exempt from the per-request timeout; they run under the
// bulk transaction timeout instead.
var BulkPaths = []string{
	"/api/v1/preventive-maintenance/bulk-schedule",
	"/api/v1/preventive-maintenance/bulk-execute",
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RoleTecnico, auth.RoleSolicitante))
	read.GET("/preventive-maintenance", h.List)
	read.GET("/preventive-maintenance/:id", h.Get)

	tech := api.Group("", auth.RequireRole(auth.RoleTecnico))
	tech.POST("/preventive-maintenance", h.Create)
	tech.POST("/preventive-maintenance/:id/execute", h.Execute)
	tech.POST("/preventive-maintenance/bulk-execute", h.BulkExecute)

	admin := api.Group("", auth.RequireRole(auth.RoleMaster))
	admin.DELETE("/preventive-maintenance/:id", h.Delete)
	admin.POST("/preventive-maintenance/bulk-schedule", h.BulkSchedule)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperr.Validation("id inválido")
	}
	return id, nil
}

func (h *Handler) Create(c echo.Context) error {
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return apperr.Validation("corpo da requisição inválido")
	}
	v, err := h.svc.Create(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, v)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	v, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := Filter{ServiceType: c.QueryParam("service_type")}
	if st := c.QueryParam("status"); st != "" {
		status, err := servicerecord.ParseFilter(st)
		if err != nil {
			return err
		}
		f.Status = status
	}
	if eq := c.QueryParam("equipment_id"); eq != "" {
		id, err := uuid.Parse(eq)
		if err != nil {
			return apperr.Validation("equipment_id inválido")
		}
		f.EquipmentID = &id
	}
	items, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Execute(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in ExecuteInput
	if err := c.Bind(&in); err != nil {
		return apperr.Validation("corpo da requisição inválido")
	}
	res, err := h.svc.Execute(c.Request().Context(), id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) BulkSchedule(c echo.Context) error {
	var in BulkScheduleInput
	if err := c.Bind(&in); err != nil {
		return apperr.Validation("corpo da requisição inválido")
	}
	res, err := h.svc.BulkSchedule(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) BulkExecute(c echo.Context) error {
	var in BulkExecuteInput
	if err := c.Bind(&in); err != nil {
		return apperr.Validation("corpo da requisição inválido")
	}
	res, err := h.svc.BulkExecute(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}
