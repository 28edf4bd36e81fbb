package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/aura-events/ticketing/internal/models"
	"github.com/aura-events/ticketing/pkg/utils"
)

type stubUsers struct {
	users   map[string]*models.User
	touched []uuid.UUID
}

func (s *stubUsers) GetByUsername(_ context.Context, username string) (*models.User, error) {
	u, ok := s.users[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (s *stubUsers) TouchLastLogin(_ context.Context, id uuid.UUID, _ time.Time) error {
	s.touched = append(s.touched, id)
	return nil
}

func newUser(t *testing.T, username, password string, staff, active bool) *models.User {
	t.Helper()
	hash, err := utils.HashPassword(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return &models.User{ID: uuid.New(), Username: username, Password: hash, IsStaff: staff, IsActive: active}
}

// withClaims mimics the authentication middleware for handler tests.
func withClaims(jwtService *JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cookie, err := c.Cookie("sessionid"); err == nil {
			if claims, err := jwtService.Validate(cookie); err == nil {
				c.Set(ContextClaims, claims)
			}
		}
		c.Next()
	}
}

func TestLoginLogoutFlow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	users := &stubUsers{users: map[string]*models.User{
		"door":     newUser(t, "door", "s3cret-pass", true, true),
		"guest":    newUser(t, "guest", "s3cret-pass", false, true),
		"disabled": newUser(t, "disabled", "s3cret-pass", true, false),
	}}
	jwtService := NewJWTService("secret", 2)
	sessions := NewSessions(client)
	h := NewHandler(users, sessions, jwtService, CookieConfig{Name: "sessionid"}, nil)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(withClaims(jwtService))
	r.POST("/login/", h.Login)
	r.POST("/logout/", h.Logout)
	r.GET("/current_user/", h.CurrentUser)

	post := func(body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/login/", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		return w
	}

	cases := []struct {
		body string
		want int
	}{
		{body: `{"username":"door"}`, want: http.StatusBadRequest},
		{body: `{"username":"nobody","password":"x"}`, want: http.StatusUnauthorized},
		{body: `{"username":"door","password":"wrong"}`, want: http.StatusUnauthorized},
		{body: `{"username":"disabled","password":"s3cret-pass"}`, want: http.StatusForbidden},
		{body: `{"username":"guest","password":"s3cret-pass"}`, want: http.StatusForbidden},
	}
	for _, tc := range cases {
		if w := post(tc.body); w.Code != tc.want {
			t.Fatalf("login %s: want %d got %d", tc.body, tc.want, w.Code)
		}
	}

	w := post(`{"username":"door","password":"s3cret-pass"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("login: want 200 got %d: %s", w.Code, w.Body.String())
	}
	var login LoginResponse
	if err := json.Unmarshal(w.Body.Bytes(), &login); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !login.IsAuthenticated || !login.IsStaff || login.Username == nil || *login.Username != "door" || login.Token == "" {
		t.Fatalf("unexpected login body %s", w.Body.String())
	}
	if len(users.touched) != 1 {
		t.Fatal("last login not recorded")
	}
	var session *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "sessionid" {
			session = c
		}
	}
	if session == nil || !session.HttpOnly {
		t.Fatalf("session cookie missing or not HttpOnly: %+v", session)
	}

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/current_user/", nil)
	req.AddCookie(session)
	r.ServeHTTP(w, req)
	var me models.CurrentUser
	json.Unmarshal(w.Body.Bytes(), &me)
	if !me.IsAuthenticated || me.Username == nil || *me.Username != "door" {
		t.Fatalf("current user: %s", w.Body.String())
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/logout/", nil)
	req.AddCookie(session)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("logout: want 200 got %d", w.Code)
	}
	claims, _ := jwtService.Validate(session.Value)
	revoked, err := sessions.IsRevoked(context.Background(), claims.ID)
	if err != nil || !revoked {
		t.Fatalf("session not revoked: %v %v", revoked, err)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/current_user/", nil))
	json.Unmarshal(w.Body.Bytes(), &me)
	if me.IsAuthenticated || me.Username != nil {
		t.Fatalf("anonymous current user: %s", w.Body.String())
	}
}

func TestJWTRejectsExpiredAndForeignTokens(t *testing.T) {
	s := NewJWTService("secret", 1)
	token, _, err := s.Generate(&models.User{ID: uuid.New(), Username: "door", IsStaff: true})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := NewJWTService("other", 1).Validate(token); err == nil {
		t.Fatal("token signed with another secret must be rejected")
	}
	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := s.Validate(token); err == nil {
		t.Fatal("expired token must be rejected")
	}
}
