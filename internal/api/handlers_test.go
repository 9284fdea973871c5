// AccessMux - Tenant-Scoped Access Control Event Multiplexer
// Copyright 2026 the AccessMux authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/accessmux/accessmux

package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/accessmux/accessmux/internal/auth"
	"github.com/accessmux/accessmux/internal/config"
	"github.com/accessmux/accessmux/internal/database"
	"github.com/accessmux/accessmux/internal/hub"
	"github.com/accessmux/accessmux/internal/jobqueue"
	"github.com/accessmux/accessmux/internal/logging"
	"github.com/accessmux/accessmux/internal/models"
)

func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

type testEnv struct {
	handler *Handler
	router  http.Handler
	db      *database.DB
	hub     *hub.Hub
	jwt     *auth.JWTManager
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{
		Database: config.DatabaseConfig{Path: ":memory:"},
		Security: config.SecurityConfig{
			JWTSecret:       "0123456789abcdef0123456789abcdef",
			SessionTimeout:  time.Hour,
			RateLimitReqs:   10000,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Attendance: config.AttendanceConfig{Timezone: "UTC"},
		Media:      config.MediaConfig{Dir: t.TempDir()},
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	h := hub.New()
	queue := jobqueue.New(db, h)

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		t.Fatalf("failed to create jwt manager: %v", err)
	}

	handler, err := NewHandler(db, cfg, h, queue, jwtManager)
	if err != nil {
		t.Fatalf("failed to create handler: %v", err)
	}

	return &testEnv{
		handler: handler,
		router:  handler.Router(),
		db:      db,
		hub:     h,
		jwt:     jwtManager,
	}
}

func (e *testEnv) createTenant(t *testing.T, name string) *models.Tenant {
	t.Helper()
	tenant, err := e.db.CreateTenant(context.Background(), name, "key-"+name, "edge-"+name, "UTC")
	if err != nil {
		t.Fatalf("failed to create tenant: %v", err)
	}
	return tenant
}

func (e *testEnv) createAccount(t *testing.T, username, password, role string, tenantID *int64) *models.Account {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	account, err := e.db.CreateAccount(context.Background(), username, hash, role, tenantID)
	if err != nil {
		t.Fatalf("failed to create account: %v", err)
	}
	return account
}

func (e *testEnv) token(t *testing.T, account *models.Account) string {
	t.Helper()
	token, err := e.jwt.GenerateToken(account)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// decodeData unmarshals the data half of a success envelope into dst.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()

	var envelope struct {
		Status string           `json:"status"`
		Data   json.RawMessage  `json:"data"`
		Error  *models.APIError `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	if envelope.Status != "success" {
		t.Fatalf("expected success envelope, got %q (error: %+v)", envelope.Status, envelope.Error)
	}
	if dst != nil {
		if err := json.Unmarshal(envelope.Data, dst); err != nil {
			t.Fatalf("failed to decode data: %v", err)
		}
	}
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var envelope struct {
		Error *models.APIError `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("failed to decode error response %q: %v", rec.Body.String(), err)
	}
	if envelope.Error == nil {
		t.Fatalf("expected error envelope, got %q", rec.Body.String())
	}
	return envelope.Error.Code
}

func TestLoginAndMe(t *testing.T) {
	env := setupTestEnv(t)
	env.createAccount(t, "root", "super-secret-pw", models.RoleAdmin, nil)

	rec := env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "root",
		"password": "super-secret-pw",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}

	var login struct {
		Token   string `json:"token"`
		Account struct {
			Username string `json:"username"`
			Role     string `json:"role"`
		} `json:"account"`
	}
	decodeData(t, rec, &login)
	if login.Token == "" {
		t.Fatal("expected a token")
	}
	if login.Account.Role != models.RoleAdmin {
		t.Errorf("role = %q, want admin", login.Account.Role)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/auth/me", login.Token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("me status = %d, want 200", rec.Code)
	}
	var me struct {
		Username string `json:"username"`
	}
	decodeData(t, rec, &me)
	if me.Username != "root" {
		t.Errorf("username = %q, want root", me.Username)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	env := setupTestEnv(t)
	env.createAccount(t, "root", "super-secret-pw", models.RoleAdmin, nil)

	tests := []struct {
		name string
		body map[string]string
		want int
	}{
		{"wrong password", map[string]string{"username": "root", "password": "nope-nope-nope"}, http.StatusUnauthorized},
		{"unknown user", map[string]string{"username": "ghost", "password": "super-secret-pw"}, http.StatusUnauthorized},
		{"missing fields", map[string]string{"username": "root"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/v1/auth/login", "", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestMembersRequireAuth(t *testing.T) {
	env := setupTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/members", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestMemberLifecycle(t *testing.T) {
	env := setupTestEnv(t)
	tenant := env.createTenant(t, "acme")
	owner := env.createAccount(t, "owner", "owner-password", models.RoleOwner, &tenant.ID)
	token := env.token(t, owner)

	rec := env.do(t, http.MethodPost, "/api/v1/members", token, map[string]interface{}{
		"first_name": "Ada",
		"last_name":  "Lovelace",
		"phone":      "+14155550101",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201 (body %s)", rec.Code, rec.Body.String())
	}
	var member models.Member
	decodeData(t, rec, &member)
	if member.EmployeeNo != strconv.FormatInt(tenant.ID, 10)+"s"+strconv.FormatInt(member.ID, 10) {
		t.Errorf("employee_no = %q, want composite of tenant and member id", member.EmployeeNo)
	}
	if member.Status != models.MemberStatusPending {
		t.Errorf("status = %q, want pending", member.Status)
	}

	// No gateway is connected, so the provision job stays pending.
	jobs, err := env.db.ListPendingJobs(context.Background(), tenant.ID)
	if err != nil {
		t.Fatalf("failed to list jobs: %v", err)
	}
	if len(jobs) != 1 || jobs[0].JobType != models.JobTypeCreate {
		t.Fatalf("jobs = %+v, want one pending create job", jobs)
	}

	rec = env.do(t, http.MethodPut, "/api/v1/members/"+strconv.FormatInt(member.ID, 10), token, map[string]interface{}{
		"first_name": "Ada",
		"last_name":  "King",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	var updated models.Member
	decodeData(t, rec, &updated)
	if updated.LastName != "King" {
		t.Errorf("last_name = %q, want King", updated.LastName)
	}
	if updated.Phone != nil {
		t.Errorf("phone = %v, want cleared", *updated.Phone)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/members?q=king", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200", rec.Code)
	}
	var page struct {
		Total int64           `json:"total"`
		Items []models.Member `json:"items"`
	}
	decodeData(t, rec, &page)
	if page.Total != 1 || len(page.Items) != 1 {
		t.Fatalf("list = %+v, want exactly the updated member", page)
	}

	rec = env.do(t, http.MethodDelete, "/api/v1/members/"+strconv.FormatInt(member.ID, 10), token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d, want 200", rec.Code)
	}

	// Deletion is asynchronous: the row survives until a gateway confirms.
	if _, err := env.db.GetMember(context.Background(), tenant.ID, member.ID); err != nil {
		t.Fatalf("member row should survive delete queuing: %v", err)
	}
	jobs, err = env.db.ListPendingJobs(context.Background(), tenant.ID)
	if err != nil {
		t.Fatalf("failed to list jobs: %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("pending jobs = %d, want create+update+delete", len(jobs))
	}
}

func TestMembersAreTenantScoped(t *testing.T) {
	env := setupTestEnv(t)
	tenantA := env.createTenant(t, "acme")
	tenantB := env.createTenant(t, "globex")
	ownerA := env.createAccount(t, "owner-a", "owner-password", models.RoleOwner, &tenantA.ID)
	ownerB := env.createAccount(t, "owner-b", "owner-password", models.RoleOwner, &tenantB.ID)

	rec := env.do(t, http.MethodPost, "/api/v1/members", env.token(t, ownerA), map[string]interface{}{
		"first_name": "Ada",
		"last_name":  "Lovelace",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", rec.Code)
	}
	var member models.Member
	decodeData(t, rec, &member)

	rec = env.do(t, http.MethodGet, "/api/v1/members/"+strconv.FormatInt(member.ID, 10), env.token(t, ownerB), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("cross-tenant get status = %d, want 404", rec.Code)
	}
}

func TestAdminEndpointsRejectOwners(t *testing.T) {
	env := setupTestEnv(t)
	tenant := env.createTenant(t, "acme")
	owner := env.createAccount(t, "owner", "owner-password", models.RoleOwner, &tenant.ID)

	rec := env.do(t, http.MethodGet, "/api/v1/admin/tenants", env.token(t, owner), nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if code := errorCode(t, rec); code != "FORBIDDEN" {
		t.Errorf("error code = %q, want FORBIDDEN", code)
	}
}

func TestTenantAdministration(t *testing.T) {
	env := setupTestEnv(t)
	admin := env.createAccount(t, "root", "admin-password", models.RoleAdmin, nil)
	token := env.token(t, admin)

	rec := env.do(t, http.MethodPost, "/api/v1/admin/tenants", token, map[string]string{
		"name":     "acme",
		"timezone": "Asia/Tashkent",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201 (body %s)", rec.Code, rec.Body.String())
	}
	var tenant models.Tenant
	decodeData(t, rec, &tenant)
	if tenant.APIKey == "" || tenant.EdgeSecret == "" {
		t.Fatal("expected generated credentials")
	}
	if tenant.Timezone != "Asia/Tashkent" {
		t.Errorf("timezone = %q, want Asia/Tashkent", tenant.Timezone)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/admin/tenants/"+strconv.FormatInt(tenant.ID, 10)+"/rotate-keys", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("rotate status = %d, want 200", rec.Code)
	}
	var rotated models.Tenant
	decodeData(t, rec, &rotated)
	if rotated.APIKey == tenant.APIKey || rotated.EdgeSecret == tenant.EdgeSecret {
		t.Error("rotation should replace both credentials")
	}

	rec = env.do(t, http.MethodPost, "/api/v1/admin/tenants/"+strconv.FormatInt(tenant.ID, 10)+"/owners", token, map[string]string{
		"username": "acme-owner",
		"password": "owner-password",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("owner create status = %d, want 201 (body %s)", rec.Code, rec.Body.String())
	}

	// The new owner operates on its own tenant without tenant_id.
	rec = env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "acme-owner",
		"password": "owner-password",
	})
	var login struct {
		Token string `json:"token"`
	}
	decodeData(t, rec, &login)
	rec = env.do(t, http.MethodGet, "/api/v1/members", login.Token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("owner list status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
}

func TestAdminActsOnTenantViaQueryParam(t *testing.T) {
	env := setupTestEnv(t)
	tenant := env.createTenant(t, "acme")
	admin := env.createAccount(t, "root", "admin-password", models.RoleAdmin, nil)
	token := env.token(t, admin)

	rec := env.do(t, http.MethodGet, "/api/v1/members", token, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status without tenant_id = %d, want 403", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/members?tenant_id="+strconv.FormatInt(tenant.ID, 10), token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status with tenant_id = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
}

func TestIngestEventEndpoint(t *testing.T) {
	env := setupTestEnv(t)
	tenant := env.createTenant(t, "acme")
	owner := env.createAccount(t, "owner", "owner-password", models.RoleOwner, &tenant.ID)
	token := env.token(t, owner)

	rec := env.do(t, http.MethodPost, "/api/v1/members", token, map[string]interface{}{
		"first_name": "Ada",
		"last_name":  "Lovelace",
	})
	var member models.Member
	decodeData(t, rec, &member)

	body := map[string]interface{}{
		"employee_no": member.EmployeeNo,
		"device_id":   "door-1",
		"event_type":  "access_granted",
		"ts":          "2026-03-01T09:00:00Z",
	}
	rec = env.do(t, http.MethodPost, "/api/v1/events", token, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("ingest status = %d, want 201 (body %s)", rec.Code, rec.Body.String())
	}
	var event models.AccessEvent
	decodeData(t, rec, &event)
	if event.MemberID == nil || *event.MemberID != member.ID {
		t.Fatalf("member_id = %v, want %d", event.MemberID, member.ID)
	}

	// Resubmitting the same event is silently absorbed.
	rec = env.do(t, http.MethodPost, "/api/v1/events", token, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("replay status = %d, want 201", rec.Code)
	}
	var replay models.AccessEvent
	decodeData(t, rec, &replay)
	if replay.ID != event.ID || replay.EventID != event.EventID {
		t.Errorf("replay returned a different event: %+v vs %+v", replay, event)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/events", token, nil)
	var page struct {
		Total int64                `json:"total"`
		Items []models.AccessEvent `json:"items"`
	}
	decodeData(t, rec, &page)
	if page.Total != 1 {
		t.Fatalf("event total = %d, want 1", page.Total)
	}
}

func TestIngestEventRejections(t *testing.T) {
	env := setupTestEnv(t)
	tenant := env.createTenant(t, "acme")
	env.createTenant(t, "globex")
	owner := env.createAccount(t, "owner", "owner-password", models.RoleOwner, &tenant.ID)
	token := env.token(t, owner)

	tests := []struct {
		name       string
		employeeNo string
		wantStatus int
		wantCode   string
	}{
		{"missing identifier", "", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"undecodable identifier", "badge-7", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"foreign tenant", "2s1", http.StatusForbidden, "FORBIDDEN"},
		{"unknown member", "1s999", http.StatusNotFound, "NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/v1/events", token, map[string]interface{}{
				"employee_no": tt.employeeNo,
				"event_type":  "access_granted",
			})
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if code := errorCode(t, rec); code != tt.wantCode {
				t.Errorf("error code = %q, want %q", code, tt.wantCode)
			}
		})
	}
}

func TestDeviceWebhook(t *testing.T) {
	env := setupTestEnv(t)
	tenant := env.createTenant(t, "acme")
	owner := env.createAccount(t, "owner", "owner-password", models.RoleOwner, &tenant.ID)
	token := env.token(t, owner)

	rec := env.do(t, http.MethodPost, "/api/v1/members", token, map[string]interface{}{
		"first_name": "Ada",
		"last_name":  "Lovelace",
	})
	var member models.Member
	decodeData(t, rec, &member)

	rec = env.do(t, http.MethodPost, "/hooks/devices/"+tenant.EdgeSecret+"/events", "", map[string]interface{}{
		"dateTime": "2026-03-01T09:00:00Z",
		"AccessControllerEvent": map[string]interface{}{
			"employeeNoString": member.EmployeeNo,
			"majorEventType":   5,
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("webhook status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/api/v1/events?has_member=true", token, nil)
	var page struct {
		Total int64                `json:"total"`
		Items []models.AccessEvent `json:"items"`
	}
	decodeData(t, rec, &page)
	if page.Total != 1 {
		t.Fatalf("mapped events = %d, want 1", page.Total)
	}
	if page.Items[0].MemberID == nil || *page.Items[0].MemberID != member.ID {
		t.Errorf("member_id = %v, want %d", page.Items[0].MemberID, member.ID)
	}
}

func TestDeviceWebhookResolvesBareMemberID(t *testing.T) {
	env := setupTestEnv(t)
	tenant := env.createTenant(t, "acme")
	owner := env.createAccount(t, "owner", "owner-password", models.RoleOwner, &tenant.ID)
	token := env.token(t, owner)

	rec := env.do(t, http.MethodPost, "/api/v1/members", token, map[string]interface{}{
		"first_name": "Ada",
		"last_name":  "Lovelace",
	})
	var member models.Member
	decodeData(t, rec, &member)

	// Terminals strip the composite down to the bare member number.
	rec = env.do(t, http.MethodPost, "/hooks/devices/"+tenant.EdgeSecret+"/events", "", map[string]interface{}{
		"dateTime": "2026-03-01T09:00:00Z",
		"AccessControllerEvent": map[string]interface{}{
			"employeeNoString": strconv.FormatInt(member.ID, 10),
			"majorEventType":   5,
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("webhook status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/api/v1/events?has_member=true", token, nil)
	var page struct {
		Total int64                `json:"total"`
		Items []models.AccessEvent `json:"items"`
	}
	decodeData(t, rec, &page)
	if page.Total != 1 {
		t.Fatalf("mapped events = %d, want 1", page.Total)
	}
	if page.Items[0].MemberID == nil || *page.Items[0].MemberID != member.ID {
		t.Errorf("member_id = %v, want %d", page.Items[0].MemberID, member.ID)
	}
}

func TestDeviceWebhookUnknownSecret(t *testing.T) {
	env := setupTestEnv(t)

	rec := env.do(t, http.MethodPost, "/hooks/devices/not-a-secret/events", "", map[string]interface{}{})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestDeviceWebhookToleratesGarbage(t *testing.T) {
	env := setupTestEnv(t)
	tenant := env.createTenant(t, "acme")

	req := httptest.NewRequest(http.MethodPost, "/hooks/devices/"+tenant.EdgeSecret+"/events", bytes.NewReader([]byte("not json at all")))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestAttendanceDaysEndpoint(t *testing.T) {
	env := setupTestEnv(t)
	tenant := env.createTenant(t, "acme")
	owner := env.createAccount(t, "owner", "owner-password", models.RoleOwner, &tenant.ID)
	token := env.token(t, owner)

	rec := env.do(t, http.MethodPost, "/api/v1/members", token, map[string]interface{}{
		"first_name": "Ada",
		"last_name":  "Lovelace",
	})
	var member models.Member
	decodeData(t, rec, &member)

	for _, ts := range []string{"2026-03-02T09:00:00Z", "2026-03-02T12:15:00Z", "2026-03-02T17:30:00Z"} {
		rec = env.do(t, http.MethodPost, "/api/v1/events", token, map[string]interface{}{
			"employee_no": member.EmployeeNo,
			"event_type":  "access_granted",
			"ts":          ts,
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("ingest status = %d, want 201", rec.Code)
		}
	}

	rec = env.do(t, http.MethodGet, "/api/v1/attendance/days?start=2026-03-01&end=2026-03-03", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("attendance status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	var page struct {
		Total int64 `json:"total"`
		Items []struct {
			MemberID        int64  `json:"member_id"`
			Date            string `json:"date"`
			Count           int    `json:"count"`
			DurationMinutes *int64 `json:"duration_minutes"`
		} `json:"items"`
	}
	decodeData(t, rec, &page)
	if page.Total != 1 || len(page.Items) != 1 {
		t.Fatalf("attendance rows = %+v, want one day", page)
	}
	row := page.Items[0]
	if row.Date != "2026-03-02" || row.Count != 3 {
		t.Errorf("row = %+v, want 3 touches on 2026-03-02", row)
	}
	if row.DurationMinutes == nil || *row.DurationMinutes != 510 {
		t.Errorf("duration = %v, want 510 minutes", row.DurationMinutes)
	}
}

func TestHealthEndpoints(t *testing.T) {
	env := setupTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d, want 200", rec.Code)
	}
	var health struct {
		Status string `json:"status"`
	}
	decodeData(t, rec, &health)
	if health.Status != "healthy" {
		t.Errorf("status = %q, want healthy", health.Status)
	}

	for _, path := range []string{"/api/v1/health/live", "/api/v1/health/ready"} {
		rec = env.do(t, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, rec.Code)
		}
	}
}
