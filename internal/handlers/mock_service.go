package handlers

import (
	"context"
	"net/http"

	"radiator_control/internal/models"
	"radiator_control/internal/schedule"
	"radiator_control/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(ctx context.Context, username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(ctx context.Context, username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type mockDispatcher struct {
	applied  map[string]string
	err      error
	lastMode service.ModeParams
	calls    int
}

func (m *mockDispatcher) ApplyMode(ctx context.Context, p service.ModeParams) (map[string]string, error) {
	m.calls++
	m.lastMode = p
	return m.applied, m.err
}

type mockMonitoring struct {
	view         service.StatesView
	err          error
	refreshCalls int
}

func (m *mockMonitoring) Refresh(ctx context.Context) (service.StatesView, error) {
	m.refreshCalls++
	return m.view, m.err
}
func (m *mockMonitoring) Current(ctx context.Context) (service.StatesView, error) {
	return m.view, m.err
}

type mockDevices struct {
	devices   []service.DeviceStatus
	names     []string
	disabled  map[string]bool
	applied   map[string]string
	err       error
	lastName  string
	lastOther string
	lastFlag  bool
}

func (m *mockDevices) Sync(ctx context.Context, seed []string) error { return m.err }
func (m *mockDevices) ListDevices(ctx context.Context) ([]service.DeviceStatus, error) {
	return m.devices, m.err
}
func (m *mockDevices) KnownNames(ctx context.Context) ([]string, error) {
	return m.names, m.err
}
func (m *mockDevices) Register(ctx context.Context, name, ipAddress string) (models.Device, error) {
	m.lastName, m.lastOther = name, ipAddress
	return models.Device{Name: name, IPAddress: ipAddress}, m.err
}
func (m *mockDevices) Rename(ctx context.Context, oldName, newName string) error {
	m.lastName, m.lastOther = oldName, newName
	return m.err
}
func (m *mockDevices) Remove(ctx context.Context, name string) error {
	m.lastName = name
	return m.err
}
func (m *mockDevices) DisabledMap(ctx context.Context) (map[string]bool, error) {
	return m.disabled, nil
}
func (m *mockDevices) SetDisabled(ctx context.Context, name string, disabled bool) (map[string]string, error) {
	m.lastName, m.lastFlag = name, disabled
	return m.applied, m.err
}

type mockPlanning struct {
	weekly   schedule.Weekly
	err      error
	replaced schedule.Weekly
}

func (m *mockPlanning) Get(ctx context.Context) (schedule.Weekly, error) {
	return m.weekly, m.err
}
func (m *mockPlanning) Replace(ctx context.Context, w schedule.Weekly) (schedule.Weekly, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.replaced = w
	return schedule.Normalize(w)
}

type mockEventLog struct {
	resp       []models.DeviceEvent
	err        error
	lastFilter service.LogFilter
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.DeviceEvent, error) {
	m.lastFilter = f
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}

// authorized builds a request carrying a bearer token accepted by mockAuth.
func authorized(req *http.Request) *http.Request {
	for k, vv := range authHeader("valid") {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	if req.Body != nil && req.Body != http.NoBody {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}
