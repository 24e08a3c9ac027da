package checklist

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
	read := api.Group("", auth.RequireRole(auth.RoleTecnico))
	read.GET("/checklist-templates", h.ListTemplates)
	read.GET("/checklist-templates/:id", h.GetTemplate)
	read.GET("/preventive-maintenance/:id/checklist", h.GetResults)

	write := api.Group("", auth.RequireRole(auth.RoleMaster))
	write.POST("/checklist-templates", h.CreateTemplate)
}

func (h *Handler) CreateTemplate(c echo.Context) error {
	var t Template
	if err := c.Bind(&t); err != nil {
		return apperr.Validation("corpo da requisição inválido")
	}
	if err := h.svc.CreateTemplate(c.Request().Context(), &t); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) GetTemplate(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("id inválido")
	}
	t, err := h.svc.GetTemplate(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) ListTemplates(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListTemplates(c.Request().Context(), c.QueryParam("equipment_type"), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) GetResults(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("id inválido")
	}
	results, err := h.svc.ResultsFor(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if results == nil {
		results = []Result{}
	}
	return c.JSON(http.StatusOK, results)
}
