package draft

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/upo/upo/internal/platform/workspace"
)

func newTestHandler(t *testing.T) (*Handler, *echo.Echo) {
	svc, _ := newTestService(t)
	return NewHandler(svc), echo.New()
}

func newCtx(e *echo.Echo, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req = req.WithContext(workspace.WithID(req.Context(), "ward"))
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestHandler_GetForm(t *testing.T) {
	h, e := newTestHandler(t)
	c, rec := newCtx(e, http.MethodGet, "/", "")
	c.SetParamNames("form")
	c.SetParamValues("clinical")
	if err := h.GetForm(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	var result map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &result)
	if result["form"] != "clinical" {
		t.Errorf("expected form clinical, got %v", result["form"])
	}
}

func TestHandler_GetForm_Unknown(t *testing.T) {
	h, e := newTestHandler(t)
	c, _ := newCtx(e, http.MethodGet, "/", "")
	c.SetParamNames("form")
	c.SetParamValues("nope")
	err := h.GetForm(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestHandler_EditField(t *testing.T) {
	h, e := newTestHandler(t)
	c, rec := newCtx(e, http.MethodPatch, "/", `{"value":"70"}`)
	c.SetParamNames("form", "field")
	c.SetParamValues("surgical", "peso")
	if err := h.EditField(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c, rec = newCtx(e, http.MethodPatch, "/", `{"value":"1.75"}`)
	c.SetParamNames("form", "field")
	c.SetParamValues("surgical", "altura")
	if err := h.EditField(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var snap struct {
		Display map[string]string `json:"display"`
	}
	json.Unmarshal(rec.Body.Bytes(), &snap)
	if snap.Display["imc"] != "22.9" {
		t.Errorf("expected imc 22.9, got %v", snap.Display["imc"])
	}
}

func TestHandler_EditField_MultiAndInvalidOption(t *testing.T) {
	h, e := newTestHandler(t)
	c, rec := newCtx(e, http.MethodPatch, "/", `{"values":["TOT","PVP"]}`)
	c.SetParamNames("form", "field")
	c.SetParamValues("clinical", "clin_invasao")
	if err := h.EditField(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var snap struct {
		Toggles map[string]bool `json:"toggles"`
	}
	json.Unmarshal(rec.Body.Bytes(), &snap)
	if !snap.Toggles["tot"] || !snap.Toggles["pvp"] {
		t.Errorf("expected bound toggles on, got %v", snap.Toggles)
	}

	c, _ = newCtx(e, http.MethodPatch, "/", `{"value":"Talvez"}`)
	c.SetParamNames("form", "field")
	c.SetParamValues("clinical", "inst_neuro")
	err := h.EditField(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_ToggleAndStoredDraft(t *testing.T) {
	h, e := newTestHandler(t)
	c, rec := newCtx(e, http.MethodPut, "/", `{"on":true}`)
	c.SetParamNames("form", "toggle")
	c.SetParamValues("surgical", "clexane")
	if err := h.SetToggle(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	c, rec = newCtx(e, http.MethodGet, "/", "")
	c.SetParamNames("group")
	c.SetParamValues("admission")
	if err := h.GetDraft(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var stored map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &stored)
	if stored["_ui_clexane"] != true || stored["heparina_hora"] != "18:00" {
		t.Errorf("unexpected stored draft %v", stored)
	}
}

func TestHandler_ResumeWithoutDraft(t *testing.T) {
	h, e := newTestHandler(t)
	c, rec := newCtx(e, http.MethodPost, "/", "")
	c.SetParamNames("form")
	c.SetParamValues("reassessment")
	if err := h.Resume(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var out Outcome
	json.Unmarshal(rec.Body.Bytes(), &out)
	if out.Message != MsgNoDraft {
		t.Errorf("expected %q, got %q", MsgNoDraft, out.Message)
	}
}

func TestHandler_ListAndDeleteDrafts(t *testing.T) {
	h, e := newTestHandler(t)
	_, _ = h.svc.Edit(context.Background(), "ward", "reassessment", "reav_leito", "4")
	_ = h.svc.Hide(context.Background(), "ward", "reassessment")

	c, rec := newCtx(e, http.MethodGet, "/drafts?limit=5", "")
	if err := h.ListDrafts(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var page struct {
		Data  []Entry `json:"data"`
		Total int     `json:"total"`
		Limit int     `json:"limit"`
	}
	json.Unmarshal(rec.Body.Bytes(), &page)
	if page.Total != 1 || page.Limit != 5 || page.Data[0].Group != "reassessment" {
		t.Fatalf("unexpected page %+v", page)
	}

	c, rec = newCtx(e, http.MethodDelete, "/", "")
	c.SetParamNames("group")
	c.SetParamValues("reassessment")
	if err := h.DeleteDraft(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}

	c, _ = newCtx(e, http.MethodGet, "/", "")
	c.SetParamNames("group")
	c.SetParamValues("reassessment")
	err := h.GetDraft(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}
