// Package handlers exposes the todo service over HTTP.
package handlers

import (
	"errors"
	"strconv"
	"strings"
	"unicode"

	"github.com/fluxorio/todo-service/pkg/todo"
	"github.com/fluxorio/todo-service/pkg/web"
	"github.com/valyala/fasthttp"
)

// Client-facing messages
const (
	MsgTodoNotFound  = "Todo not found"
	MsgInvalidText   = "Invalid todo text"
	MsgInvalidJSON   = "Invalid JSON body"
	MsgRouteNotFound = "Route not found"
	MsgCreated       = "Todo created successfully"
	MsgUpdated       = "Todo updated successfully"
	MsgDeleted       = "Todo deleted successfully"
)

// DataResponse is the success envelope for single values
type DataResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Message string      `json:"message,omitempty"`
}

// ListResponse is the success envelope for GET /api/todos
type ListResponse struct {
	Success bool        `json:"success"`
	Data    []todo.Todo `json:"data"`
	Count   int         `json:"count"`
}

// TodoHandler handles todo-related requests
type TodoHandler struct {
	todoService todo.ServiceInterface
}

// NewTodoHandler creates a new todo handler
func NewTodoHandler(todoService todo.ServiceInterface) *TodoHandler {
	return &TodoHandler{
		todoService: todoService,
	}
}

// ListTodos handles GET /api/todos
func (h *TodoHandler) ListTodos(ctx *web.FastRequestContext) error {
	todos := h.todoService.List(ctx.Context())
	if todos == nil {
		todos = []todo.Todo{}
	}
	return ctx.JSON(fasthttp.StatusOK, ListResponse{
		Success: true,
		Data:    todos,
		Count:   len(todos),
	})
}

// GetTodo handles GET /api/todos/:id
func (h *TodoHandler) GetTodo(ctx *web.FastRequestContext) error {
	id, ok := ParseID(ctx.Param("id"))
	if !ok {
		return ctx.Fail(fasthttp.StatusNotFound, MsgTodoNotFound)
	}

	t, err := h.todoService.Get(ctx.Context(), id)
	if err != nil {
		return writeServiceError(ctx, err)
	}
	return ctx.JSON(fasthttp.StatusOK, DataResponse{Success: true, Data: t})
}

// CreateTodo handles POST /api/todos
func (h *TodoHandler) CreateTodo(ctx *web.FastRequestContext) error {
	body, err := bindObject(ctx)
	if err != nil {
		return ctx.Fail(fasthttp.StatusBadRequest, MsgInvalidJSON)
	}

	created, err := h.todoService.Create(ctx.Context(), body["text"])
	if err != nil {
		return writeServiceError(ctx, err)
	}
	return ctx.JSON(fasthttp.StatusCreated, DataResponse{
		Success: true,
		Data:    created,
		Message: MsgCreated,
	})
}

// UpdateTodo handles PUT /api/todos/:id
func (h *TodoHandler) UpdateTodo(ctx *web.FastRequestContext) error {
	id, ok := ParseID(ctx.Param("id"))
	if !ok {
		return ctx.Fail(fasthttp.StatusNotFound, MsgTodoNotFound)
	}

	body, err := bindObject(ctx)
	if err != nil {
		return ctx.Fail(fasthttp.StatusBadRequest, MsgInvalidJSON)
	}

	updated, err := h.todoService.Update(ctx.Context(), id, todo.Patch(body))
	if err != nil {
		return writeServiceError(ctx, err)
	}
	return ctx.JSON(fasthttp.StatusOK, DataResponse{
		Success: true,
		Data:    updated,
		Message: MsgUpdated,
	})
}

// DeleteTodo handles DELETE /api/todos/:id
func (h *TodoHandler) DeleteTodo(ctx *web.FastRequestContext) error {
	id, ok := ParseID(ctx.Param("id"))
	if !ok {
		return ctx.Fail(fasthttp.StatusNotFound, MsgTodoNotFound)
	}

	removed, err := h.todoService.Delete(ctx.Context(), id)
	if err != nil {
		return writeServiceError(ctx, err)
	}
	return ctx.JSON(fasthttp.StatusOK, DataResponse{
		Success: true,
		Data:    removed,
		Message: MsgDeleted,
	})
}

// GetStats handles GET /api/stats
func (h *TodoHandler) GetStats(ctx *web.FastRequestContext) error {
	return ctx.JSON(fasthttp.StatusOK, DataResponse{
		Success: true,
		Data:    h.todoService.Stats(ctx.Context()),
	})
}

// writeServiceError maps domain errors to their responses. Anything else
// is returned so the router answers 500.
func writeServiceError(ctx *web.FastRequestContext, err error) error {
	switch {
	case errors.Is(err, todo.ErrNotFound):
		return ctx.Fail(fasthttp.StatusNotFound, MsgTodoNotFound)
	case errors.Is(err, todo.ErrInvalidInput):
		return ctx.Fail(fasthttp.StatusBadRequest, MsgInvalidText)
	default:
		return err
	}
}

// bindObject decodes the request body as a JSON object. An empty body
// yields an empty object; any other JSON value is an error.
func bindObject(ctx *web.FastRequestContext) (map[string]interface{}, error) {
	var body map[string]interface{}
	err := ctx.BindJSON(&body)
	if errors.Is(err, web.ErrEmptyBody) {
		return map[string]interface{}{}, nil
	}
	if err != nil {
		return nil, err
	}
	if body == nil {
		// literal null
		return nil, errors.New("request body is not a JSON object")
	}
	return body, nil
}

// ParseID reads the leading integer of s, ignoring anything after it, so
// "12abc" is 12. Leading whitespace is skipped, an optional sign is honoured
// and a "0x" prefix selects hexadecimal. It reports false when s has no
// leading digits or the value overflows.
func ParseID(s string) (int, bool) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)

	neg := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}

	base, isDigit := 10, isDecimal
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		base, isDigit = 16, isHex
		s = s[2:]
	}

	end := 0
	for end < len(s) && isDigit(s[end]) {
		end++
	}
	if end == 0 {
		return 0, false
	}
	id, err := strconv.ParseInt(s[:end], base, strconv.IntSize)
	if err != nil {
		return 0, false
	}
	if neg {
		id = -id
	}
	return int(id), true
}

func isDecimal(c byte) bool {
	return c >= '0' && c <= '9'
}

func isHex(c byte) bool {
	return isDecimal(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
