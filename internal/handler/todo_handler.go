package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/mtodo/internal/model"
	"github.com/xxxsen/mtodo/internal/pkg/response"
	"github.com/xxxsen/mtodo/internal/service"
)

// naiveLayout accepts timestamps without an offset; they are read as UTC.
const naiveLayout = "2006-01-02T15:04:05"

type TodoHandler struct {
	todos *service.TodoService
}

func NewTodoHandler(todos *service.TodoService) *TodoHandler {
	return &TodoHandler{todos: todos}
}

type todoCreateRequest struct {
	Title    string  `json:"title"`
	Deadline *string `json:"deadline"`
}

type todoUpdateRequest struct {
	Title    *string `json:"title"`
	Deadline *string `json:"deadline"`
	Done     *bool   `json:"done"`
}

type todoView struct {
	ID        int64   `json:"id"`
	Title     string  `json:"title"`
	Deadline  *string `json:"deadline"`
	Done      bool    `json:"done"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

func (h *TodoHandler) List(c *gin.Context) {
	query := service.TodoQuery{
		Search:  c.Query("search"),
		Status:  c.Query("status"),
		OrderBy: c.Query("order_by"),
		Order:   c.Query("order"),
	}
	if raw, ok := c.GetQuery("limit"); ok {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			invalidRequest(c, "limit must be between 1 and 200")
			return
		}
		query.Limit = limit
	}
	if raw, ok := c.GetQuery("offset"); ok {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			invalidRequest(c, "offset must not be negative")
			return
		}
		query.Offset = offset
	}
	todos, err := h.todos.List(c.Request.Context(), getUserID(c), query)
	if err != nil {
		handleError(c, err)
		return
	}
	views := make([]todoView, 0, len(todos))
	for i := range todos {
		views = append(views, newTodoView(&todos[i]))
	}
	response.Success(c, views)
}

func (h *TodoHandler) Create(c *gin.Context) {
	var req todoCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, "invalid request")
		return
	}
	deadline, ok := parseDeadline(req.Deadline)
	if !ok {
		invalidRequest(c, "deadline must be an RFC 3339 timestamp")
		return
	}
	todo, err := h.todos.Create(c.Request.Context(), getUserID(c), service.TodoCreateInput{
		Title:    req.Title,
		Deadline: deadline,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Created(c, newTodoView(todo))
}

func (h *TodoHandler) Update(c *gin.Context) {
	id, ok := parseTodoID(c)
	if !ok {
		return
	}
	var req todoUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, "invalid request")
		return
	}
	deadline, ok := parseDeadline(req.Deadline)
	if !ok {
		invalidRequest(c, "deadline must be an RFC 3339 timestamp")
		return
	}
	todo, err := h.todos.Update(c.Request.Context(), getUserID(c), id, service.TodoPatch{
		Title:    req.Title,
		Deadline: deadline,
		Done:     req.Done,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, newTodoView(todo))
}

func (h *TodoHandler) Delete(c *gin.Context) {
	id, ok := parseTodoID(c)
	if !ok {
		return
	}
	if err := h.todos.Delete(c.Request.Context(), getUserID(c), id); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

func parseTodoID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		invalidRequest(c, "invalid todo id")
		return 0, false
	}
	return id, true
}

// parseDeadline returns nil for a missing or null deadline.
func parseDeadline(raw *string) (*int64, bool) {
	if raw == nil {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, *raw)
	if err != nil {
		t, err = time.ParseInLocation(naiveLayout, *raw, time.UTC)
		if err != nil {
			return nil, false
		}
	}
	unix := t.Unix()
	return &unix, true
}

func formatUnix(sec int64) string {
	return time.Unix(sec, 0).UTC().Format(time.RFC3339)
}

func newTodoView(todo *model.Todo) todoView {
	view := todoView{
		ID:        todo.ID,
		Title:     todo.Title,
		Done:      todo.Done,
		CreatedAt: formatUnix(todo.CreatedAt),
		UpdatedAt: formatUnix(todo.UpdatedAt),
	}
	if todo.Deadline != nil {
		deadline := formatUnix(*todo.Deadline)
		view.Deadline = &deadline
	}
	return view
}
