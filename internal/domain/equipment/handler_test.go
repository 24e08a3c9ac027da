package equipment

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/clinicaleng/cmms/internal/platform/apperr"
	"github.com/clinicaleng/cmms/internal/platform/db"
)

func newTestHandler() (*Handler, *echo.Echo) {
	svc, _ := newTestService()
	return NewHandler(svc), echo.New()
}

func tenantRequest(method, body string) *http.Request {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req.WithContext(db.WithTenant(req.Context(), "t1"))
}

func TestCreateEquipmentHandler(t *testing.T) {
	h, e := newTestHandler()
	rec := httptest.NewRecorder()
	c := e.NewContext(tenantRequest(http.MethodPost, `{"name":"Desfibrilador","equipment_type":"DEA","criticality":"A","contingency_plan":"DEA reserva no posto 2"}`), rec)

	if err := h.CreateEquipment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var got Equipment
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got.Status != StatusAtivo {
		t.Errorf("status = %s, want ATIVO", got.Status)
	}
}

func TestCreateEquipmentHandler_MissingContingencyPlan(t *testing.T) {
	h, e := newTestHandler()
	c := e.NewContext(tenantRequest(http.MethodPost, `{"name":"Desfibrilador","equipment_type":"DEA","criticality":"A"}`), httptest.NewRecorder())

	err := h.CreateEquipment(c)
	if !apperr.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGetEquipmentHandler_InvalidID(t *testing.T) {
	h, e := newTestHandler()
	c := e.NewContext(tenantRequest(http.MethodGet, ""), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")

	if err := h.GetEquipment(c); !apperr.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestListEquipmentHandler(t *testing.T) {
	h, e := newTestHandler()
	for _, body := range []string{
		`{"name":"A1","equipment_type":"X","criticality":"C"}`,
		`{"name":"B1","equipment_type":"X","criticality":"B"}`,
	} {
		c := e.NewContext(tenantRequest(http.MethodPost, body), httptest.NewRecorder())
		if err := h.CreateEquipment(c); err != nil {
			t.Fatal(err)
		}
	}

	req := tenantRequest(http.MethodGet, "")
	req.URL.RawQuery = "criticality=B"
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := h.ListEquipment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var resp struct {
		Data  []Equipment `json:"data"`
		Total int         `json:"total"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 1 || resp.Data[0].Name != "B1" {
		t.Errorf("unexpected list: %+v", resp)
	}
}
