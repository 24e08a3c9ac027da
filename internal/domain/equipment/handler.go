package equipment

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

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

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RoleTecnico, auth.RoleSolicitante))
	read.GET("/equipment", h.ListEquipment)
	read.GET("/equipment/:id", h.GetEquipment)

	write := api.Group("", auth.RequireRole(auth.RoleMaster))
	write.POST("/equipment", h.CreateEquipment)
	write.PUT("/equipment/:id", h.UpdateEquipment)
	write.DELETE("/equipment/:id", h.DeleteEquipment)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperr.Validation("id inválido")
	}
	return id, nil
}

func (h *Handler) CreateEquipment(c echo.Context) error {
	var e Equipment
	if err := c.Bind(&e); err != nil {
		return apperr.Validation("corpo da requisição inválido")
	}
	if err := h.svc.CreateEquipment(c.Request().Context(), &e); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, e)
}

func (h *Handler) GetEquipment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	e, err := h.svc.GetEquipment(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) ListEquipment(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := Filter{
		Status:        Status(c.QueryParam("status")),
		Criticality:   Criticality(c.QueryParam("criticality")),
		EquipmentType: c.QueryParam("equipment_type"),
		Search:        c.QueryParam("q"),
	}
	items, total, err := h.svc.ListEquipment(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg).WithNext(c.Request().URL.Path))
}

func (h *Handler) UpdateEquipment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var e Equipment
	if err := c.Bind(&e); err != nil {
		return apperr.Validation("corpo da requisição inválido")
	}
	e.ID = id
	if err := h.svc.UpdateEquipment(c.Request().Context(), &e); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) DeleteEquipment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteEquipment(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
