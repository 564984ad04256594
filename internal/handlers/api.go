package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"todoweb/internal/middleware"
	"todoweb/internal/repository"
	"todoweb/internal/service"
	"todoweb/pkg/logger"
)

// APIHandler serves the read-only JSON surface behind bearer tokens.
type APIHandler struct {
	svc      *service.TodoService
	users    *service.UserService
	events   repository.EventRepo
	secret   string
	tokenTTL time.Duration
}

func NewAPIHandler(svc *service.TodoService, users *service.UserService, events repository.EventRepo, secret string, tokenTTL time.Duration) *APIHandler {
	return &APIHandler{svc: svc, users: users, events: events, secret: secret, tokenTTL: tokenTTL}
}

// Token exchanges valid credentials for a signed bearer token.
func (h *APIHandler) Token(c *gin.Context) {
	ctx := c.Request.Context()
	var body struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	user, err := h.users.ValidateCredentials(ctx, body.Username, body.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password"})
			return
		}
		logger.Error(ctx, "Token issue failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}
	if h.secret == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server misconfiguration"})
		return
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(user.ID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(h.tokenTTL)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(h.secret))
	if err != nil {
		logger.Error(ctx, "Token sign failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": signed, "expires_at": claims.ExpiresAt.Time})
}

// ListTodos returns the caller's todos as JSON, filtered by an optional
// ?query= title substring.
func (h *APIHandler) ListTodos(c *gin.Context) {
	ctx := c.Request.Context()
	todos, err := h.svc.Search(ctx, middleware.UserID(c), c.Query("query"))
	if err != nil {
		logger.Error(ctx, "API list todos failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get todos"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": todos})
}

// Activity returns the caller's recent audit events.
func (h *APIHandler) Activity(c *gin.Context) {
	ctx := c.Request.Context()
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	events, err := h.events.ListByOwner(ctx, middleware.UserID(c), limit)
	if err != nil {
		logger.Error(ctx, "API activity failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get activity"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": events})
}
