package staff

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
	read.GET("/staff", h.ListMembers)
	read.GET("/staff/:id", h.GetMember)

	write := api.Group("", auth.RequireRole(auth.RoleMaster))
	write.POST("/staff", h.CreateMember)
	write.POST("/staff/:id/deactivate", h.DeactivateMember)
}

func (h *Handler) CreateMember(c echo.Context) error {
	var m Member
	if err := c.Bind(&m); err != nil {
		return apperr.Validation("corpo da requisição inválido")
	}
	if err := h.svc.CreateMember(c.Request().Context(), &m); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) GetMember(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("id inválido")
	}
	m, err := h.svc.GetMember(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) DeactivateMember(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("id inválido")
	}
	if err := h.svc.SetActive(c.Request().Context(), id, false); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListMembers(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListMembers(c.Request().Context(), c.QueryParam("role"), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}
