package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"radiator_control/internal/models"
	"radiator_control/internal/service"
)

func newRadiatorService() (*service.Service, *mockMonitoring, *mockDispatcher, *mockDevices) {
	mon := &mockMonitoring{view: service.StatesView{
		States:   map[string]string{"Salon": models.StateComfort, "Cuisine": models.StateEco},
		Disabled: map[string]bool{"Salon": false, "Cuisine": true},
	}}
	disp := &mockDispatcher{applied: map[string]string{"Salon": models.StateComfort}}
	dev := &mockDevices{names: []string{"Cuisine", "Salon"}, disabled: map[string]bool{"Salon": false, "Cuisine": true}}
	s := &service.Service{
		Authorization: &mockAuth{parseID: 7},
		Monitoring:    mon,
		Dispatcher:    disp,
		Devices:       dev,
	}
	return s, mon, disp, dev
}

func TestRadiatorHandlers_GetStates(t *testing.T) {
	s, mon, _, _ := newRadiatorService()
	r := newTestRouter(s)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/states", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without auth, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, authorized(httptest.NewRequest(http.MethodGet, "/api/v1/states", nil)))
	if w.Code != http.StatusOK {
		t.Fatalf("states status=%d, body=%s", w.Code, w.Body.String())
	}
	var view service.StatesView
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if view.States["Salon"] != models.StateComfort || !view.Disabled["Cuisine"] {
		t.Fatalf("unexpected view: %+v", view)
	}
	if mon.refreshCalls != 1 {
		t.Fatalf("Refresh calls=%d", mon.refreshCalls)
	}

	mon.err = errors.New("db down")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, authorized(httptest.NewRequest(http.MethodGet, "/api/v1/states", nil)))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestRadiatorHandlers_SetMode(t *testing.T) {
	cases := []struct {
		name        string
		body        string
		dispatchErr error
		wantCode    int
		wantTargets []string
	}{
		{name: "all devices", body: `{"mode":"COMFORT"}`, wantCode: http.StatusOK},
		{name: "single device", body: `{"mode":"ECO","device":"Salon"}`, wantCode: http.StatusOK, wantTargets: []string{"Salon"}},
		{name: "unknown device", body: `{"mode":"ECO","device":"Garage"}`, wantCode: http.StatusBadRequest},
		{name: "missing mode", body: `{"device":"Salon"}`, wantCode: http.StatusBadRequest},
		{name: "not json", body: `mode=ECO`, wantCode: http.StatusBadRequest},
		{name: "invalid mode", body: `{"mode":"STATE"}`, dispatchErr: fmt.Errorf("%w: STATE", service.ErrInvalidMode), wantCode: http.StatusBadRequest},
		{name: "broker down", body: `{"mode":"ECO"}`, dispatchErr: service.ErrTransportUnavailable, wantCode: http.StatusServiceUnavailable},
		{name: "other failure", body: `{"mode":"ECO"}`, dispatchErr: errors.New("db down"), wantCode: http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, _, disp, _ := newRadiatorService()
			disp.err = tc.dispatchErr
			r := newTestRouter(s)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, authorized(httptest.NewRequest(http.MethodPost, "/api/v1/mode", bytes.NewBufferString(tc.body))))
			if w.Code != tc.wantCode {
				t.Fatalf("status=%d, want %d, body=%s", w.Code, tc.wantCode, w.Body.String())
			}
			if tc.wantCode != http.StatusOK {
				return
			}

			if disp.lastMode.Source != service.SourceAPI {
				t.Fatalf("source=%q", disp.lastMode.Source)
			}
			if len(disp.lastMode.Targets) != len(tc.wantTargets) {
				t.Fatalf("targets=%v, want %v", disp.lastMode.Targets, tc.wantTargets)
			}
			var resp struct {
				Applied  map[string]string `json:"applied_modes"`
				Disabled map[string]bool   `json:"disabled"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if resp.Applied["Salon"] != models.StateComfort || !resp.Disabled["Cuisine"] {
				t.Fatalf("unexpected response: %+v", resp)
			}
		})
	}
}

func TestRadiatorHandlers_Options(t *testing.T) {
	s, _, _, dev := newRadiatorService()
	dev.applied = map[string]string{"Salon": models.StateEco}
	r := newTestRouter(s)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, authorized(httptest.NewRequest(http.MethodGet, "/api/v1/options", nil)))
	if w.Code != http.StatusOK {
		t.Fatalf("options status=%d", w.Code)
	}

	w = httptest.NewRecorder()
	body := bytes.NewBufferString(`{"device":"Salon","disabled":true}`)
	r.ServeHTTP(w, authorized(httptest.NewRequest(http.MethodPost, "/api/v1/options", body)))
	if w.Code != http.StatusOK {
		t.Fatalf("set option status=%d, body=%s", w.Code, w.Body.String())
	}
	if dev.lastName != "Salon" || !dev.lastFlag {
		t.Fatalf("SetDisabled got %q/%v", dev.lastName, dev.lastFlag)
	}
	var resp struct {
		Applied map[string]string `json:"applied_modes"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Applied["Salon"] != models.StateEco {
		t.Fatalf("unexpected response: %s", w.Body.String())
	}

	dev.err = service.ErrDeviceNotFound
	w = httptest.NewRecorder()
	body = bytes.NewBufferString(`{"device":"Garage","disabled":true}`)
	r.ServeHTTP(w, authorized(httptest.NewRequest(http.MethodPost, "/api/v1/options", body)))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown device, got %d", w.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("radiator_up 1\n"))
	})
	r := NewHandler(&service.Service{}, nil, WithMetrics(metrics)).InitRoutes()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("health status=%d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK || w.Body.String() != "radiator_up 1\n" {
		t.Fatalf("metrics status=%d body=%q", w.Code, w.Body.String())
	}
}
