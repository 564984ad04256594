package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"todoweb/internal/auth"
	"todoweb/internal/middleware"
	"todoweb/internal/models"
	"todoweb/internal/service"
	"todoweb/pkg/logger"
)

const todoIndexPath = "/todo/"

// TodoHandler serves the server-rendered todo pages.
type TodoHandler struct {
	svc     *service.TodoService
	flashes auth.FlashStore
}

func NewTodoHandler(svc *service.TodoService, flashes auth.FlashStore) *TodoHandler {
	return &TodoHandler{svc: svc, flashes: flashes}
}

// Index lists the caller's todos, newest first.
func (h *TodoHandler) Index(c *gin.Context) {
	ctx := c.Request.Context()
	todos, err := h.svc.List(ctx, middleware.UserID(c))
	if err != nil {
		h.renderError(c, http.StatusInternalServerError, "Failed to load todos")
		return
	}
	c.HTML(http.StatusOK, "todo/index", gin.H{
		"title":   "My todos",
		"authed":  true,
		"todos":   todos,
		"query":   "",
		"flashes": h.flashes.Pop(ctx, middleware.SessionID(c)),
	})
}

// Search filters the caller's todos by a case-insensitive title substring.
// A blank query renders the full list.
func (h *TodoHandler) Search(c *gin.Context) {
	ctx := c.Request.Context()
	query := c.Query("query")
	todos, err := h.svc.Search(ctx, middleware.UserID(c), query)
	if err != nil {
		h.renderError(c, http.StatusInternalServerError, "Failed to search todos")
		return
	}
	c.HTML(http.StatusOK, "todo/index", gin.H{
		"title":   "My todos",
		"authed":  true,
		"todos":   todos,
		"query":   query,
		"flashes": h.flashes.Pop(ctx, middleware.SessionID(c)),
	})
}

// CreateForm renders the empty creation form.
func (h *TodoHandler) CreateForm(c *gin.Context) {
	c.HTML(http.StatusOK, "todo/create", gin.H{
		"title":   "New todo",
		"authed":  true,
		"flashes": h.flashes.Pop(c.Request.Context(), middleware.SessionID(c)),
	})
}

// Create handles the creation form submission. Validation failures flash a
// message and return to the list with nothing persisted.
func (h *TodoHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()
	_, err := h.svc.Create(ctx, middleware.UserID(c),
		c.PostForm("title"), c.PostForm("detail"), c.PostForm("duedate"))
	switch {
	case errors.Is(err, service.ErrTitleRequired):
		h.flash(c, models.FlashWarning, "Title is required")
	case errors.Is(err, service.ErrInvalidDueDate):
		h.flash(c, models.FlashDanger, "Invalid due date format")
	case err != nil:
		logger.Error(ctx, "Create todo failed", "error", err)
		h.renderError(c, http.StatusInternalServerError, "Failed to create todo")
		return
	}
	c.Redirect(http.StatusFound, todoIndexPath)
}

// UpdateForm renders the update form pre-filled with the existing todo. The
// ownership gate runs before anything else, same as on submission.
func (h *TodoHandler) UpdateForm(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	todo, err := h.svc.Get(c.Request.Context(), middleware.UserID(c), id, true)
	if err != nil {
		h.renderLookupError(c, err, id)
		return
	}
	c.HTML(http.StatusOK, "todo/update", gin.H{
		"title":   "Edit todo",
		"authed":  true,
		"todo":    todo,
		"flashes": h.flashes.Pop(c.Request.Context(), middleware.SessionID(c)),
	})
}

// Update handles the update form submission.
func (h *TodoHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()
	id, ok := parseID(c)
	if !ok {
		return
	}
	_, err := h.svc.Update(ctx, middleware.UserID(c), id,
		c.PostForm("title"), c.PostForm("detail"), c.PostForm("status"), c.PostForm("duedate"))
	switch {
	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrForbidden):
		h.renderLookupError(c, err, id)
		return
	case errors.Is(err, service.ErrTitleRequired):
		h.flash(c, models.FlashWarning, "Title can't be blank")
	case errors.Is(err, service.ErrInvalidDueDate):
		h.flash(c, models.FlashDanger, "Invalid due date format")
	case err != nil:
		logger.Error(ctx, "Update todo failed", "error", err, "id", id)
		h.renderError(c, http.StatusInternalServerError, "Failed to update todo")
		return
	default:
		h.flash(c, models.FlashSuccess, "Todo updated successfully")
	}
	c.Redirect(http.StatusFound, todoIndexPath)
}

// Delete permanently removes an owned todo. POST only.
func (h *TodoHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(ctx, middleware.UserID(c), id); err != nil {
		if errors.Is(err, service.ErrNotFound) || errors.Is(err, service.ErrForbidden) {
			h.renderLookupError(c, err, id)
			return
		}
		logger.Error(ctx, "Delete todo failed", "error", err, "id", id)
		h.renderError(c, http.StatusInternalServerError, "Failed to delete todo")
		return
	}
	h.flash(c, models.FlashInfo, "Todo deleted successfully")
	c.Redirect(http.StatusFound, todoIndexPath)
}

func (h *TodoHandler) flash(c *gin.Context, category, message string) {
	h.flashes.Push(c.Request.Context(), middleware.SessionID(c), models.Flash{
		Category: category,
		Message:  message,
	})
}

func (h *TodoHandler) renderLookupError(c *gin.Context, err error, id int64) {
	if errors.Is(err, service.ErrForbidden) {
		h.renderError(c, http.StatusForbidden, "You don't have access to this todo")
		return
	}
	h.renderError(c, http.StatusNotFound, "Todo id "+strconv.FormatInt(id, 10)+" doesn't exist")
}

func (h *TodoHandler) renderError(c *gin.Context, status int, message string) {
	c.HTML(status, "error", gin.H{"title": "Error", "authed": true, "status": status, "message": message})
	c.Abort()
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.HTML(http.StatusNotFound, "error", gin.H{
			"title":   "Error",
			"authed":  true,
			"status":  http.StatusNotFound,
			"message": "Todo id " + c.Param("id") + " doesn't exist",
		})
		c.Abort()
		return 0, false
	}
	return id, true
}
