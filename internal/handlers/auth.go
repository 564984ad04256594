package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"todoweb/internal/auth"
	"todoweb/internal/models"
	"todoweb/internal/service"
	"todoweb/pkg/logger"
)

// AuthHandler serves the login, register and logout pages.
type AuthHandler struct {
	sessions     auth.SessionStore
	users        *service.UserService
	flashes      auth.FlashStore
	cookieMaxAge int
	cookieSecure bool
}

func NewAuthHandler(sessions auth.SessionStore, users *service.UserService, flashes auth.FlashStore, cookieMaxAge int, cookieSecure bool) *AuthHandler {
	return &AuthHandler{
		sessions:     sessions,
		users:        users,
		flashes:      flashes,
		cookieMaxAge: cookieMaxAge,
		cookieSecure: cookieSecure,
	}
}

const sessionCookieName = "session_id"

// LoginForm renders the login page; authenticated users go straight to the list.
func (h *AuthHandler) LoginForm(c *gin.Context) {
	if h.currentSession(c) != "" {
		c.Redirect(http.StatusFound, todoIndexPath)
		return
	}
	c.HTML(http.StatusOK, "auth/login", gin.H{
		"title":   "Log in",
		"flashes": h.flashes.Pop(c.Request.Context(), h.anySession(c)),
	})
}

// Login checks credentials and opens a session.
func (h *AuthHandler) Login(c *gin.Context) {
	ctx := c.Request.Context()
	user, err := h.users.ValidateCredentials(ctx, c.PostForm("username"), c.PostForm("password"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.HTML(http.StatusUnauthorized, "auth/login", gin.H{
				"title":   "Log in",
				"flashes": []models.Flash{{Category: models.FlashDanger, Message: "Invalid username or password"}},
			})
			return
		}
		logger.Error(ctx, "Login failed", "error", err)
		c.HTML(http.StatusInternalServerError, "error", gin.H{"title": "Error", "status": 500, "message": "Login failed"})
		return
	}
	h.openSession(c, user.ID)
}

// RegisterForm renders the registration page.
func (h *AuthHandler) RegisterForm(c *gin.Context) {
	if h.currentSession(c) != "" {
		c.Redirect(http.StatusFound, todoIndexPath)
		return
	}
	c.HTML(http.StatusOK, "auth/register", gin.H{
		"title":   "Register",
		"flashes": h.flashes.Pop(c.Request.Context(), h.anySession(c)),
	})
}

// Register creates an account and logs the new user in.
func (h *AuthHandler) Register(c *gin.Context) {
	ctx := c.Request.Context()
	user, err := h.users.Register(ctx, c.PostForm("username"), c.PostForm("password"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			c.HTML(http.StatusBadRequest, "auth/register", gin.H{
				"title":   "Register",
				"flashes": []models.Flash{{Category: models.FlashWarning, Message: "Username and password are required"}},
			})
		case errors.Is(err, service.ErrUsernameTaken):
			c.HTML(http.StatusConflict, "auth/register", gin.H{
				"title":   "Register",
				"flashes": []models.Flash{{Category: models.FlashWarning, Message: "Username is already taken"}},
			})
		default:
			logger.Error(ctx, "Register failed", "error", err)
			c.HTML(http.StatusInternalServerError, "error", gin.H{"title": "Error", "status": 500, "message": "Registration failed"})
		}
		return
	}
	h.openSession(c, user.ID)
}

// Logout closes the session and clears the cookie. POST only.
func (h *AuthHandler) Logout(c *gin.Context) {
	if sessionID := h.anySession(c); sessionID != "" {
		_ = h.sessions.Delete(c.Request.Context(), sessionID)
	}
	c.SetCookie(sessionCookieName, "", -1, "/", "", h.cookieSecure, true)
	c.Redirect(http.StatusFound, "/auth/login")
}

func (h *AuthHandler) openSession(c *gin.Context, userID int64) {
	sessionID, err := h.sessions.Create(c.Request.Context(), userID)
	if err != nil {
		logger.Error(c.Request.Context(), "Session create failed", "error", err)
		c.HTML(http.StatusInternalServerError, "error", gin.H{"title": "Error", "status": 500, "message": "Failed to start session"})
		return
	}
	c.SetCookie(sessionCookieName, sessionID, h.cookieMaxAge, "/", "", h.cookieSecure, true)
	c.Redirect(http.StatusFound, todoIndexPath)
}

// currentSession returns the session ID only when it is still valid.
func (h *AuthHandler) currentSession(c *gin.Context) string {
	sessionID := h.anySession(c)
	if sessionID == "" {
		return ""
	}
	if _, ok := h.sessions.GetUserID(c.Request.Context(), sessionID); !ok {
		return ""
	}
	return sessionID
}

// anySession returns the raw cookie value, valid or not (flash queues are
// keyed by it even after the session itself expired).
func (h *AuthHandler) anySession(c *gin.Context) string {
	sessionID, err := c.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	return sessionID
}
