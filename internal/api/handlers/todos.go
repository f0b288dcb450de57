package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/izpodvypodvert/todoapi/internal/api"
	"github.com/izpodvypodvert/todoapi/internal/api/middleware"
	"github.com/izpodvypodvert/todoapi/internal/domain"
)

// TodoStore is the per-user todo service.
type TodoStore interface {
	GetAll(ctx context.Context, owner *domain.User) ([]*domain.Todo, error)
	GetByID(ctx context.Context, owner *domain.User, id int64) (*domain.Todo, error)
	Create(ctx context.Context, owner *domain.User, input domain.TodoCreate) (*domain.Todo, error)
	Update(ctx context.Context, owner *domain.User, id int64, input domain.TodoUpdate) (*domain.Todo, error)
	Delete(ctx context.Context, owner *domain.User, id int64) (int64, error)
}

type TodoHandler struct {
	todos TodoStore
}

func NewTodoHandler(todos TodoStore) *TodoHandler {
	return &TodoHandler{todos: todos}
}

type TodoResponse struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	OwnerID     uuid.UUID `json:"owner_id"`
}

func newTodoResponse(t *domain.Todo) TodoResponse {
	return TodoResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		OwnerID:     t.UserID,
	}
}

type CreateTodoRequest struct {
	Title       string  `json:"title" validate:"required,max=255"`
	Description *string `json:"description"`
}

type UpdateTodoRequest struct {
	Title       *string                 `json:"title" validate:"omitempty,min=1,max=255"`
	Description domain.Nullable[string] `json:"description"`
}

func (h *TodoHandler) List(w http.ResponseWriter, r *http.Request) {
	owner := middleware.GetUser(r.Context())

	todos, err := h.todos.GetAll(r.Context(), owner)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	resp := make([]TodoResponse, 0, len(todos))
	for _, t := range todos {
		resp = append(resp, newTodoResponse(t))
	}
	api.Success(w, http.StatusOK, resp)
}

func (h *TodoHandler) Create(w http.ResponseWriter, r *http.Request) {
	owner := middleware.GetUser(r.Context())

	var req CreateTodoRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	todo, err := h.todos.Create(r.Context(), owner, domain.TodoCreate{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	api.Success(w, http.StatusCreated, newTodoResponse(todo))
}

func (h *TodoHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseInt64Param(w, r)
	if !ok {
		return
	}

	todo, err := h.todos.GetByID(r.Context(), middleware.GetUser(r.Context()), id)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	api.Success(w, http.StatusOK, newTodoResponse(todo))
}

func (h *TodoHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseInt64Param(w, r)
	if !ok {
		return
	}

	var req UpdateTodoRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	todo, err := h.todos.Update(r.Context(), middleware.GetUser(r.Context()), id, domain.TodoUpdate{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	api.Success(w, http.StatusOK, newTodoResponse(todo))
}

func (h *TodoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseInt64Param(w, r)
	if !ok {
		return
	}

	count, err := h.todos.Delete(r.Context(), middleware.GetUser(r.Context()), id)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}
	if count == 0 {
		api.HandleError(w, r, domain.NotFound(domain.EntityTodo, id))
		return
	}

	api.NoContent(w)
}
