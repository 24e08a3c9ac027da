package serviceorder

import (
	"context"
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
	g := api.Group("", auth.RequireRole(auth.RoleTecnico))
	g.GET("/service-orders", h.ListOrders)
	g.GET("/service-orders/:id", h.GetOrder)
	g.POST("/service-orders/:id/start", h.StartOrder)
	g.POST("/service-orders/:id/complete", h.CompleteOrder)
}

// orderView adds the printable code to the stored order.
type orderView struct {
	*ServiceOrder
	Code string `json:"code"`
}

func view(o *ServiceOrder) orderView {
	return orderView{ServiceOrder: o, Code: o.Code()}
}

func (h *Handler) GetOrder(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("id inválido")
	}
	o, err := h.svc.GetOrder(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view(o))
}

func (h *Handler) ListOrders(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := Filter{Status: Status(c.QueryParam("status"))}
	if eq := c.QueryParam("equipment_id"); eq != "" {
		id, err := uuid.Parse(eq)
		if err != nil {
			return apperr.Validation("equipment_id inválido")
		}
		f.EquipmentID = &id
	}
	items, total, err := h.svc.ListOrders(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	views := make([]orderView, 0, len(items))
	for _, o := range items {
		views = append(views, view(o))
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(views, total, pg))
}

func (h *Handler) StartOrder(c echo.Context) error {
	return h.transition(c, h.svc.Start)
}

func (h *Handler) CompleteOrder(c echo.Context) error {
	return h.transition(c, h.svc.Complete)
}

func (h *Handler) transition(c echo.Context, fn func(ctx context.Context, id uuid.UUID) (*ServiceOrder, error)) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("id inválido")
	}
	o, err := fn(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view(o))
}
