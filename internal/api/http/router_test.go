package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/device-issue-service/internal/api/http/handlers"
	"github.com/spec-kit/device-issue-service/internal/auth"
	"github.com/spec-kit/device-issue-service/internal/domain"
	"github.com/spec-kit/device-issue-service/internal/events"
	"github.com/spec-kit/device-issue-service/internal/observability"
	"github.com/spec-kit/device-issue-service/internal/persistence"
	"github.com/spec-kit/device-issue-service/internal/repository"
	"github.com/spec-kit/device-issue-service/internal/service"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type testServer struct {
	app    *fiber.App
	tokens *auth.TokenManager
}

func newTestServer(t *testing.T, redis handlers.Pinger) *testServer {
	t.Helper()
	store := repository.NewMemoryStore()
	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()
	tokens := auth.NewTokenManager("test-secret", 10)

	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), metrics, 0)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("device-issue-service", "test", &persistence.Postgres{}, redis),
		Issues:         handlers.NewIssuesHandler(service.NewIssueService(service.IssueDependencies{IssueRepo: store, Dispatcher: dispatcher})),
		Approvals:      handlers.NewApprovalsHandler(service.NewApprovalService(service.ApprovalDependencies{IssueRepo: store, ApprovalRepo: store, Dispatcher: dispatcher, Metrics: metrics})),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
		Metrics:        metrics.Handler(),
	})
	return &testServer{app: app, tokens: tokens}
}

func (s *testServer) token(t *testing.T, role domain.Role) string {
	t.Helper()
	token, _, err := s.tokens.GenerateToken(strings.ToLower(string(role))+"-1", role)
	require.NoError(t, err)
	return token
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func (s *testServer) do(t *testing.T, method, path, body string, role domain.Role) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if role != "" {
		req.Header.Set("Authorization", "Bearer "+s.token(t, role))
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var env envelope
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &env))
	}
	return resp.StatusCode, env
}

type issueBody struct {
	ID         string   `json:"id"`
	Reference  string   `json:"reference"`
	Status     string   `json:"status"`
	NextActors []string `json:"next_actors"`
}

const submission = `{"device_id":"DEV-9","complaint_type":"Screen","description":"Flickers","priority":"Medium","location":"Room 12"}`

func (s *testServer) submit(t *testing.T) issueBody {
	t.Helper()
	status, env := s.do(t, http.MethodPost, "/api/issues", submission, "")
	require.Equal(t, http.StatusCreated, status)
	var issue issueBody
	require.NoError(t, json.Unmarshal(env.Data, &issue))
	return issue
}

func TestSubmitIsOpenAndReadsNeedAuth(t *testing.T) {
	s := newTestServer(t, stubPinger{})
	issue := s.submit(t)
	assert.Equal(t, "Pending", issue.Status)
	assert.Equal(t, []string{"DC"}, issue.NextActors)

	status, env := s.do(t, http.MethodGet, "/api/issues/"+issue.ID, "", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

	status, env = s.do(t, http.MethodGet, "/api/issues/"+issue.ID, "", domain.RoleClerk)
	assert.Equal(t, http.StatusOK, status)
	var got issueBody
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, issue.Reference, got.Reference)
}

func TestSubmitAsForm(t *testing.T) {
	s := newTestServer(t, stubPinger{})
	form := url.Values{
		"device_id":      {"DEV-1"},
		"complaint_type": {"Network"},
		"description":    {"No link"},
		"priority":       {"Low"},
		"location":       {"Desk 4"},
		"under_warranty": {"true"},
	}
	req := httptest.NewRequest(http.MethodPost, "/api/issues/submit", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestSubmitClerkForm(t *testing.T) {
	s := newTestServer(t, stubPinger{})
	form := url.Values{
		"deviceId":      {"DEV-1"},
		"complaintType": {"Hardware"},
		"priorityLevel": {"High"},
		"location":      {"Lab 2"},
		"description":   {"Fan grinding"},
		"underWarranty": {"true"},
	}
	req := httptest.NewRequest(http.MethodPost, "/api/issues/submit", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var env struct {
		Data struct {
			DeviceID      string `json:"device_id"`
			ComplaintType string `json:"complaint_type"`
			Priority      string `json:"priority"`
			UnderWarranty bool   `json:"under_warranty"`
			Status        string `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.Equal(t, "DEV-1", env.Data.DeviceID)
	assert.Equal(t, "Hardware", env.Data.ComplaintType)
	assert.Equal(t, "High", env.Data.Priority)
	assert.True(t, env.Data.UnderWarranty)
	assert.Equal(t, "Pending", env.Data.Status)
}

func TestSubmitValidationError(t *testing.T) {
	s := newTestServer(t, stubPinger{})
	status, env := s.do(t, http.MethodPost, "/api/issues", `{"device_id":"DEV-9","priority":"Whenever"}`, "")
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
	assert.Equal(t, "oneof", env.Error.Details["priority"])
}

func TestApprovalRoutes(t *testing.T) {
	s := newTestServer(t, stubPinger{})
	issue := s.submit(t)
	base := "/api/issues/" + issue.ID

	status, env := s.do(t, http.MethodPost, base+"/approve/superadmin", "", domain.RoleSuperAdmin)
	assert.Equal(t, http.StatusPreconditionFailed, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "PRECONDITION_FAILED", env.Error.Code)
	assert.Equal(t, "Super User Approved", env.Error.Details["expected"])
	assert.Equal(t, "Pending", env.Error.Details["actual"])

	status, _ = s.do(t, http.MethodPost, base+"/approve/dc", "", domain.RoleSuperUser)
	assert.Equal(t, http.StatusForbidden, status)

	status, env = s.do(t, http.MethodPost, base+"/approve/dc", `{"comment":"verified"}`, domain.RoleDC)
	require.Equal(t, http.StatusOK, status)
	var got issueBody
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "DC Approved", got.Status)
	assert.ElementsMatch(t, []string{"SUPER_USER", "ROOT"}, got.NextActors)

	status, _ = s.do(t, http.MethodPost, base+"/approve/dc", "", domain.RoleDC)
	assert.Equal(t, http.StatusPreconditionFailed, status)

	status, _ = s.do(t, http.MethodPost, base+"/reject/superuser", "", domain.RoleSuperUser)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = s.do(t, http.MethodPost, base+"/approve/superuser", "", domain.RoleSuperUser)
	assert.Equal(t, http.StatusOK, status)
	status, env = s.do(t, http.MethodPost, base+"/approve/superadmin", "", domain.RoleSuperAdmin)
	assert.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "Super Admin Approved", got.Status)

	status, env = s.do(t, http.MethodGet, base+"/approvals", "", domain.RoleClerk)
	require.Equal(t, http.StatusOK, status)
	var history []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &history))
	require.Len(t, history, 3)
	assert.Equal(t, "verified", history[0]["comment"])

	status, _ = s.do(t, http.MethodPost, "/api/issues/missing/approve/dc", "", domain.RoleDC)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestBypassUpdateAndDelete(t *testing.T) {
	s := newTestServer(t, stubPinger{})
	issue := s.submit(t)
	base := "/api/issues/" + issue.ID

	status, _ := s.do(t, http.MethodPatch, base+"/status", `{"status":"Completed"}`, domain.RoleDC)
	assert.Equal(t, http.StatusForbidden, status)

	status, env := s.do(t, http.MethodPatch, base+"/status", `{"status":"Completed"}`, domain.RoleSuperUser)
	require.Equal(t, http.StatusOK, status)
	var got issueBody
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "Completed", got.Status)
	assert.Empty(t, got.NextActors)

	status, env = s.do(t, http.MethodPatch, base, `{}`, domain.RoleRoot)
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "no fields provided to update", env.Error.Message)

	status, _ = s.do(t, http.MethodPatch, base, `{"status":"Escalated"}`, domain.RoleRoot)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = s.do(t, http.MethodDelete, base, "", domain.RoleSuperUser)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = s.do(t, http.MethodDelete, base, "", domain.RoleRoot)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = s.do(t, http.MethodDelete, base, "", domain.RoleRoot)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestListCountSummary(t *testing.T) {
	s := newTestServer(t, stubPinger{})
	first := s.submit(t)
	s.submit(t)
	status, _ := s.do(t, http.MethodPost, "/api/issues/"+first.ID+"/approve/dc", "", domain.RoleDC)
	require.Equal(t, http.StatusOK, status)

	status, env := s.do(t, http.MethodGet, "/api/issues?status="+url.QueryEscape("DC Approved"), "", domain.RoleRoot)
	require.Equal(t, http.StatusOK, status)
	var list []issueBody
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, first.ID, list[0].ID)

	status, env = s.do(t, http.MethodGet, "/api/issues/count?status=Pending", "", domain.RoleClerk)
	require.Equal(t, http.StatusOK, status)
	var count struct {
		Status string `json:"status"`
		Count  int    `json:"count"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &count))
	assert.Equal(t, 1, count.Count)

	status, _ = s.do(t, http.MethodGet, "/api/issues/count", "", domain.RoleClerk)
	assert.Equal(t, http.StatusBadRequest, status)

	status, env = s.do(t, http.MethodGet, "/api/issues/summary", "", domain.RoleClerk)
	require.Equal(t, http.StatusOK, status)
	var summary []struct {
		Status string `json:"status"`
		Count  int    `json:"count"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Len(t, summary, len(domain.IssueStatuses()))
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, stubPinger{})
	status, _ := s.do(t, http.MethodGet, "/health/live", "", "")
	assert.Equal(t, http.StatusOK, status)
	status, _ = s.do(t, http.MethodGet, "/health/ready", "", "")
	assert.Equal(t, http.StatusOK, status)

	s.submit(t)
	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "http_requests_total")

	down := newTestServer(t, stubPinger{err: errors.New("connection refused")})
	status, env := down.do(t, http.MethodGet, "/health/ready", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "connection refused", env.Error.Details["redis"])
}

func TestMalformedIssueIDIsNotFound(t *testing.T) {
	s := newTestServer(t, stubPinger{})
	cases := []struct {
		method string
		path   string
		body   string
		role   domain.Role
	}{
		{http.MethodGet, "/api/issues/123", "", domain.RoleClerk},
		{http.MethodGet, "/api/issues/123/approvals", "", domain.RoleClerk},
		{http.MethodPatch, "/api/issues/123", `{"status":"Completed"}`, domain.RoleRoot},
		{http.MethodDelete, "/api/issues/123", "", domain.RoleRoot},
		{http.MethodPost, "/api/issues/123/approve/dc", "", domain.RoleDC},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			status, env := s.do(t, tc.method, tc.path, tc.body, tc.role)
			assert.Equal(t, http.StatusNotFound, status)
			require.NotNil(t, env.Error)
			assert.Equal(t, "NOT_FOUND", env.Error.Code)
		})
	}
}

func TestMetricsUseRouteTemplates(t *testing.T) {
	s := newTestServer(t, stubPinger{})
	issue := s.submit(t)
	status, _ := s.do(t, http.MethodGet, "/api/issues/"+issue.ID, "", domain.RoleClerk)
	require.Equal(t, http.StatusOK, status)
	status, _ = s.do(t, http.MethodGet, "/scan/wp-login.php", "", "")
	require.Equal(t, http.StatusNotFound, status)

	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := string(raw)

	assert.Contains(t, body, `path="/api/issues/:id"`)
	assert.Contains(t, body, `path="unmatched"`)
	assert.NotContains(t, body, issue.ID)
	assert.NotContains(t, body, "wp-login")
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t, stubPinger{})
	status, env := s.do(t, http.MethodGet, "/nope", "", "")
	assert.Equal(t, http.StatusNotFound, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}
