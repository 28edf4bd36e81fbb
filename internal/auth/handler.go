package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-events/ticketing/internal/models"
	"github.com/aura-events/ticketing/pkg/response"
	"github.com/aura-events/ticketing/pkg/utils"
)

// UserStore is the user persistence the handler needs.
type UserStore interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

// SessionStore revokes logged-out sessions.
type SessionStore interface {
	Revoke(ctx context.Context, id string, expiresAt time.Time) error
}

// LoginRequest is the body for POST /login/.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the session summary plus the bearer token for non-browser clients.
type LoginResponse struct {
	models.CurrentUser
	Token string `json:"token"`
}

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
}

// Handler handles staff session HTTP endpoints.
type Handler struct {
	users    UserStore
	sessions SessionStore
	jwt      *JWTService
	cookie   CookieConfig
	logger   *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(users UserStore, sessions SessionStore, jwt *JWTService, cookie CookieConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{users: users, sessions: sessions, jwt: jwt, cookie: cookie, logger: logger}
}

func (h *Handler) setCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, value, maxAge, "/", "", h.cookie.Secure, true)
}

// Login handles POST /login/. Only active staff accounts may sign in.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Username) == "" || req.Password == "" {
		response.WriteDetail(c, http.StatusBadRequest, "username & password required")
		return
	}

	ctx := c.Request.Context()
	user, err := h.users.GetByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			h.logger.Error("load user", zap.Error(err))
			response.WriteDetail(c, http.StatusInternalServerError, "login failed")
			return
		}
		response.WriteDetail(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if !utils.CheckPassword(req.Password, user.Password) {
		response.WriteDetail(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if !user.IsActive {
		response.WriteDetail(c, http.StatusForbidden, "User disabled")
		return
	}
	if !user.IsStaff {
		response.WriteDetail(c, http.StatusForbidden, "Admin access only")
		return
	}

	token, _, err := h.jwt.Generate(user)
	if err != nil {
		h.logger.Error("generate session token", zap.Error(err))
		response.WriteDetail(c, http.StatusInternalServerError, "login failed")
		return
	}
	if err := h.users.TouchLastLogin(ctx, user.ID, time.Now().UTC()); err != nil {
		h.logger.Warn("record last login", zap.String("username", user.Username), zap.Error(err))
	}
	h.setCookie(c, token, int(h.jwt.TTL().Seconds()))
	h.logger.Info("staff login", zap.String("username", user.Username))

	username := user.Username
	c.JSON(http.StatusOK, LoginResponse{
		CurrentUser: models.CurrentUser{IsAuthenticated: true, IsStaff: user.IsStaff, Username: &username},
		Token:       token,
	})
}

// Logout handles POST /logout/. The session id is revoked so the token stops working everywhere.
func (h *Handler) Logout(c *gin.Context) {
	if claims := ClaimsFrom(c); claims != nil && claims.ExpiresAt != nil {
		if err := h.sessions.Revoke(c.Request.Context(), claims.ID, claims.ExpiresAt.Time); err != nil {
			h.logger.Error("revoke session", zap.Error(err))
			response.WriteDetail(c, http.StatusInternalServerError, "logout failed")
			return
		}
	}
	h.setCookie(c, "", -1)
	response.WriteDetail(c, http.StatusOK, "logged out")
}

// CurrentUser handles GET /current_user/.
func (h *Handler) CurrentUser(c *gin.Context) {
	claims := ClaimsFrom(c)
	if claims == nil {
		c.JSON(http.StatusOK, models.CurrentUser{})
		return
	}
	username := claims.Username
	c.JSON(http.StatusOK, models.CurrentUser{IsAuthenticated: true, IsStaff: claims.IsStaff, Username: &username})
}
