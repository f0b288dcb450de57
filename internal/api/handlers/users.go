package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/izpodvypodvert/todoapi/internal/api"
	"github.com/izpodvypodvert/todoapi/internal/api/middleware"
	"github.com/izpodvypodvert/todoapi/internal/domain"
)

// UserAdmin covers reading and changing accounts.
type UserAdmin interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	UpdateUser(ctx context.Context, user *domain.User, upd domain.UserUpdate, privileged bool) (*domain.User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
}

type UserHandler struct {
	users UserAdmin
}

func NewUserHandler(users UserAdmin) *UserHandler {
	return &UserHandler{users: users}
}

type UpdateMeRequest struct {
	Email    *string `json:"email" validate:"omitempty,email"`
	Username *string `json:"username" validate:"omitempty,min=1,max=64"`
	Password *string `json:"password"`
}

func (req UpdateMeRequest) toDomain() domain.UserUpdate {
	return domain.UserUpdate{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	}
}

type UpdateUserRequest struct {
	UpdateMeRequest
	IsActive    *bool `json:"is_active"`
	IsSuperuser *bool `json:"is_superuser"`
	IsVerified  *bool `json:"is_verified"`
}

func (req UpdateUserRequest) toDomain() domain.UserUpdate {
	upd := req.UpdateMeRequest.toDomain()
	upd.IsActive = req.IsActive
	upd.IsSuperuser = req.IsSuperuser
	upd.IsVerified = req.IsVerified
	return upd
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	api.Success(w, http.StatusOK, newUserResponse(user))
}

func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req UpdateMeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	updated, err := h.users.UpdateUser(r.Context(), user, req.toDomain(), false)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	api.Success(w, http.StatusOK, newUserResponse(updated))
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUserID(w, r)
	if !ok {
		return
	}

	user, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	api.Success(w, http.StatusOK, newUserResponse(user))
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUserID(w, r)
	if !ok {
		return
	}

	var req UpdateUserRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	updated, err := h.users.UpdateUser(r.Context(), user, req.toDomain(), true)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	api.Success(w, http.StatusOK, newUserResponse(updated))
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUserID(w, r)
	if !ok {
		return
	}

	if err := h.users.DeleteUser(r.Context(), id); err != nil {
		api.HandleError(w, r, err)
		return
	}

	api.NoContent(w)
}

func parseUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, r, domain.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}
