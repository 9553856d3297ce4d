// Package profile реализует HTTP-обработчик чтения профиля текущего пользователя.
package profile

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/gdohealth/chat-backend/internal/http/middlewarectx"
	"github.com/gdohealth/chat-backend/internal/http/response"
	"github.com/gdohealth/chat-backend/internal/lib/sl"
	"github.com/gdohealth/chat-backend/internal/models"
	"github.com/gdohealth/chat-backend/internal/storage/repository"
)

// Service определяет методы бизнес-логики чтения профиля.
type Service interface {
	GetProfile(ctx context.Context, userID string) (*models.User, error)
}

// Handler обрабатывает HTTP-запросы чтения профиля.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler с заданным логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Профиль текущего пользователя
// @Description Возвращает профиль пользователя из JWT
// @Tags Users
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} map[string]any "Профиль"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /users/me [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.profile"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID, ok := middlewarectx.UserID(r.Context())
	if !ok {
		log.Error("user id is missing in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	user, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			log.Info("user not found", slog.String("user_id", userID))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("user not found"))
			return
		}
		log.Error("failed to get profile", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to get profile"))
		return
	}

	render.JSON(w, r, response.OKWithData(Profile(user)))
}

// Profile собирает JSON-представление пользователя без чувствительных полей.
func Profile(user *models.User) map[string]any {
	return map[string]any{
		"id":             user.ID,
		"email":          user.Email,
		"display_name":   user.DisplayName,
		"account_type":   user.AccountType,
		"email_verified": user.EmailVerified,
		"store_history":  user.StoreHistory,
		"created_at":     user.CreatedAt,
		"last_login":     user.LastLogin,
	}
}
