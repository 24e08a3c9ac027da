package corrective

import (
	"net/http"
	"time"

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
	read.GET("/corrective-maintenance", h.List)
	read.GET("/corrective-maintenance/:id", h.Get)
	read.POST("/corrective-maintenance", h.Open)

	tech := api.Group("", auth.RequireRole(auth.RoleTecnico))
	tech.POST("/corrective-maintenance/:id/accept", h.Accept)
	tech.POST("/corrective-maintenance/:id/resolve", h.Resolve)
	tech.POST("/corrective-maintenance/:id/close", h.Close)
}

// RegisterPublicRoutes mounts the unauthenticated QR page endpoint. The
// caller supplies tenant resolution and rate limiting.
func (h *Handler) RegisterPublicRoutes(g *echo.Group, mw ...echo.MiddlewareFunc) {
	g.POST("/equipment/:id/tickets", h.OpenPublic, mw...)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperr.Validation("id inválido")
	}
	return id, nil
}

func (h *Handler) Open(c echo.Context) error {
	var in OpenInput
	if err := c.Bind(&in); err != nil {
		return apperr.Validation("corpo da requisição inválido")
	}
	v, err := h.svc.Open(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, v)
}

type publicTicketRequest struct {
	Description     string  `json:"description"`
	Urgency         Urgency `json:"urgency"`
	ReporterName    string  `json:"reporter_name"`
	ReporterContact *string `json:"reporter_contact,omitempty"`
}

// publicTicketResponse leaves out internal fields of the ticket.
type publicTicketResponse struct {
	ID          uuid.UUID `json:"id"`
	Status      Status    `json:"status"`
	SLADeadline string    `json:"sla_deadline"`
}

func (h *Handler) OpenPublic(c echo.Context) error {
	eqID, err := parseID(c)
	if err != nil {
		return err
	}
	var req publicTicketRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("corpo da requisição inválido")
	}
	v, err := h.svc.OpenPublic(c.Request().Context(), OpenInput{
		EquipmentID:     eqID,
		Description:     req.Description,
		Urgency:         req.Urgency,
		ReporterName:    &req.ReporterName,
		ReporterContact: req.ReporterContact,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, publicTicketResponse{
		ID:          v.ID,
		Status:      v.CorrectiveMaintenance.Status,
		SLADeadline: v.SLADeadline.Format(time.RFC3339),
	})
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
	f := Filter{
		Status:  Status(c.QueryParam("status")),
		Urgency: Urgency(c.QueryParam("urgency")),
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

func (h *Handler) Accept(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in AcceptInput
	if err := c.Bind(&in); err != nil {
		return apperr.Validation("corpo da requisição inválido")
	}
	v, err := h.svc.Accept(c.Request().Context(), id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) Resolve(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in ResolveInput
	if err := c.Bind(&in); err != nil {
		return apperr.Validation("corpo da requisição inválido")
	}
	v, err := h.svc.Resolve(c.Request().Context(), id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) Close(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	v, err := h.svc.Close(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}
