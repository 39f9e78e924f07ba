package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"roombooking-backend/config"
	"roombooking-backend/models"
	"roombooking-backend/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var testNow = time.Date(2025, time.November, 10, 12, 0, 0, 0, time.UTC)

type apiFixture struct {
	srv    *httptest.Server
	db     *gorm.DB
	tokens *services.TokenService
}

// newAPI serves the full router over a real listener so the login proxy can
// call the built-in token endpoint of the same process.
func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := config.DefaultConfig()
	cfg.DBDriver = "sqlite"
	cfg.DBURL = "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	cfg.JWTSecret = "test-secret"
	cfg.OAuthClientID = "spa"
	cfg.OAuthClientSecret = "spa-secret"

	db, err := config.ConnectDB(cfg, logger)
	if err != nil {
		t.Fatalf("ConnectDB: %v", err)
	}
	if err := config.Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	srv := httptest.NewUnstartedServer(nil)
	clock := func() time.Time { return testNow }
	tokens := services.NewTokenService(db, logger, services.TokenConfig{
		Secret:       cfg.JWTSecret,
		ClientID:     cfg.OAuthClientID,
		ClientSecret: cfg.OAuthClientSecret,
		AccessTTL:    time.Hour,
		RefreshTTL:   24 * time.Hour,
	}, clock)
	auth := services.NewAuthService(db, logger, services.AuthConfig{
		TokenEndpoint: "http://" + srv.Listener.Addr().String() + "/oauth/token",
		ClientID:      cfg.OAuthClientID,
		ClientSecret:  cfg.OAuthClientSecret,
	}, tokens)
	bookings := services.NewBookingService(db, logger, services.NoopPublisher{}, clock)

	srv.Config.Handler = SetupRouter(Deps{
		Config:   cfg,
		Logger:   logger,
		Clock:    clock,
		Auth:     auth,
		Tokens:   tokens,
		Clients:  services.NewClientService(db, logger, clock),
		Rooms:    services.NewRoomService(db, logger),
		Bookings: bookings,
		Credits:  services.NewCreditService(db, logger, clock),
		Reports:  services.NewReportService(db, bookings, clock),
	})
	srv.Start()
	t.Cleanup(func() {
		srv.Close()
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return &apiFixture{srv: srv, db: db, tokens: tokens}
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := f.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, data
}

func (f *apiFixture) login(t *testing.T, email, password string) string {
	t.Helper()
	resp, body := f.do(t, http.MethodPost, "/api/login", "", map[string]string{"email": email, "password": password})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d, body %s", resp.StatusCode, body)
	}
	var out struct {
		AccessToken string `json:"access_token"`
		User        struct {
			Email string `json:"email"`
		} `json:"user"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	if out.User.Email != email {
		t.Errorf("login user = %q, want %q", out.User.Email, email)
	}
	return out.AccessToken
}

func (f *apiFixture) user(t *testing.T, email, role string) {
	t.Helper()
	if _, err := f.tokens.CreateUser(context.Background(), "Test", email, "password123", role); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
}

func decode(t *testing.T, body []byte, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(body, v); err != nil {
		t.Fatalf("decode %s: %v", body, err)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	f := newAPI(t)

	resp, body := f.do(t, http.MethodGet, "/health", "", nil)
	if resp.StatusCode != http.StatusOK || string(body) != `{"status":"ok"}` {
		t.Errorf("health = %d %s", resp.StatusCode, body)
	}
	resp, _ = f.do(t, http.MethodGet, "/metrics", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("metrics status = %d", resp.StatusCode)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	f := newAPI(t)

	resp, body := f.do(t, http.MethodGet, "/api/clients", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	if string(body) != `{"message":"Unauthenticated."}` {
		t.Errorf("body = %s", body)
	}
}

func TestOAuthTokenEndpoint(t *testing.T) {
	f := newAPI(t)
	f.user(t, "staff@example.com", models.RoleStaff)

	post := func(form url.Values) (int, map[string]interface{}) {
		resp, err := f.srv.Client().PostForm(f.srv.URL+"/oauth/token", form)
		if err != nil {
			t.Fatalf("post token: %v", err)
		}
		defer resp.Body.Close()
		var out map[string]interface{}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("decode token: %v", err)
		}
		return resp.StatusCode, out
	}

	status, out := post(url.Values{
		"grant_type": {"password"}, "client_id": {"spa"}, "client_secret": {"spa-secret"},
		"username": {"staff@example.com"}, "password": {"password123"},
	})
	if status != http.StatusOK || out["token_type"] != "Bearer" || out["refresh_token"] == "" {
		t.Fatalf("password grant = %d %v", status, out)
	}

	status, out = post(url.Values{
		"grant_type": {"password"}, "client_id": {"spa"}, "client_secret": {"wrong"},
		"username": {"staff@example.com"}, "password": {"password123"},
	})
	if status != http.StatusUnauthorized || out["error"] != "invalid_client" {
		t.Errorf("bad client = %d %v", status, out)
	}

	status, out = post(url.Values{"grant_type": {"client_credentials"}, "client_id": {"spa"}, "client_secret": {"spa-secret"}})
	if status != http.StatusBadRequest || out["error"] != "unsupported_grant_type" {
		t.Errorf("unsupported grant = %d %v", status, out)
	}
}

func TestLoginProxy(t *testing.T) {
	f := newAPI(t)
	f.user(t, "staff@example.com", models.RoleStaff)

	token := f.login(t, "staff@example.com", "password123")

	resp, body := f.do(t, http.MethodGet, "/api/user", token, nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"email":"staff@example.com"`) {
		t.Errorf("user = %d %s", resp.StatusCode, body)
	}
	if strings.Contains(string(body), "password") {
		t.Errorf("user body leaks password: %s", body)
	}

	resp, body = f.do(t, http.MethodPost, "/api/login", "", map[string]string{"email": "staff@example.com", "password": "nope"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong password status = %d, body %s", resp.StatusCode, body)
	}

	resp, body = f.do(t, http.MethodPost, "/api/login", "", map[string]string{"email": "not-an-email"})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("invalid input status = %d, body %s", resp.StatusCode, body)
	}

	resp, _ = f.do(t, http.MethodPost, "/api/logout", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("logout status = %d", resp.StatusCode)
	}
	resp, _ = f.do(t, http.MethodGet, "/api/user", token, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("revoked token status = %d, want 401", resp.StatusCode)
	}
}

func TestRoomWritesRequireAdmin(t *testing.T) {
	f := newAPI(t)
	f.user(t, "staff@example.com", models.RoleStaff)
	f.user(t, "admin@example.com", models.RoleAdmin)
	room := map[string]interface{}{"number": "301", "name": "Room 301", "capacity": 4}

	staffToken := f.login(t, "staff@example.com", "password123")
	resp, body := f.do(t, http.MethodPost, "/api/rooms", staffToken, room)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("staff create room = %d %s, want 403", resp.StatusCode, body)
	}

	adminToken := f.login(t, "admin@example.com", "password123")
	resp, body = f.do(t, http.MethodPost, "/api/rooms", adminToken, room)
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("admin create room = %d %s, want 201", resp.StatusCode, body)
	}
}

func TestBookingLifecycle(t *testing.T) {
	f := newAPI(t)
	f.user(t, "staff@example.com", models.RoleStaff)
	token := f.login(t, "staff@example.com", "password123")

	room := models.Room{Number: "101", Name: "Room 101", Capacity: 2, IsActive: true}
	if err := f.db.Create(&room).Error; err != nil {
		t.Fatalf("seed room: %v", err)
	}
	expires := testNow.AddDate(0, 1, 0)
	client := models.Client{Name: "Ana", Email: "ana@example.com", CreditBalance: decimal.NewFromInt(5), CreditExpiresAt: &expires}
	if err := f.db.Create(&client).Error; err != nil {
		t.Fatalf("seed client: %v", err)
	}

	resp, body := f.do(t, http.MethodPost, "/api/bookings", token, map[string]interface{}{
		"client_id":    client.ID,
		"room_id":      room.ID,
		"booking_date": "2025-11-12",
		"start_time":   "09:00",
		"end_time":     "11:00",
		"hours_booked": 2,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create booking = %d %s", resp.StatusCode, body)
	}
	var booking models.Booking
	decode(t, body, &booking)
	if booking.Status != models.StatusPending {
		t.Errorf("status = %s, want pending", booking.Status)
	}

	resp, body = f.do(t, http.MethodGet, "/api/credits/balance?client_id="+client.ID.String(), token, nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"balance":3`) {
		t.Errorf("balance after booking = %d %s", resp.StatusCode, body)
	}

	resp, body = f.do(t, http.MethodPost, "/api/bookings", token, map[string]interface{}{
		"client_id":    client.ID,
		"room_id":      room.ID,
		"booking_date": "2025-11-13",
		"start_time":   "09:00",
		"end_time":     "13:00",
		"hours_booked": 4,
	})
	if resp.StatusCode != http.StatusUnprocessableEntity || !strings.Contains(string(body), "hours_booked") {
		t.Errorf("over-budget booking = %d %s", resp.StatusCode, body)
	}

	resp, body = f.do(t, http.MethodPost, "/api/bookings/list", token, map[string]string{"client_id": client.ID.String()})
	var listed []models.Booking
	decode(t, body, &listed)
	if resp.StatusCode != http.StatusOK || len(listed) != 1 {
		t.Errorf("list = %d, %d bookings", resp.StatusCode, len(listed))
	}

	cancelPath := "/api/bookings/" + booking.ID.String() + "/cancel"
	resp, body = f.do(t, http.MethodPost, cancelPath, token, nil)
	if resp.StatusCode != http.StatusOK || string(body) != `{"message":"Booking cancelled successfully."}` {
		t.Errorf("cancel = %d %s", resp.StatusCode, body)
	}
	resp, body = f.do(t, http.MethodPost, cancelPath, token, nil)
	if resp.StatusCode != http.StatusOK || string(body) != `{"message":"The booking is already cancelled."}` {
		t.Errorf("second cancel = %d %s", resp.StatusCode, body)
	}

	resp, body = f.do(t, http.MethodGet, "/api/credits/balance?client_id="+client.ID.String(), token, nil)
	if !strings.Contains(string(body), `"balance":5`) {
		t.Errorf("balance after cancel = %d %s", resp.StatusCode, body)
	}

	resp, _ = f.do(t, http.MethodGet, "/api/bookings/not-a-uuid", token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("malformed id status = %d, want 404", resp.StatusCode)
	}
}

func TestExportBookings(t *testing.T) {
	f := newAPI(t)
	f.user(t, "staff@example.com", models.RoleStaff)
	token := f.login(t, "staff@example.com", "password123")

	resp, body := f.do(t, http.MethodGet, "/api/reports/bookings/export", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("export = %d %s", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); cd != `attachment; filename="bookings-2025-11-10.xlsx"` {
		t.Errorf("Content-Disposition = %q", cd)
	}
	// xlsx is a zip archive
	if !bytes.HasPrefix(body, []byte("PK")) {
		t.Error("export body is not a zip archive")
	}
}
