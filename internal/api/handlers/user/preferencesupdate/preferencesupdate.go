// Package preferencesupdate реализует HTTP-обработчик изменения настройки
// хранения истории. Отключение планирует удаление истории через
// grace-период, включение снимает его.
package preferencesupdate

import (
	"context"
	"encoding/json"
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

// Request — входные данные изменения настройки. Поле указатель, чтобы
// отличить отсутствующее значение от false.
type Request struct {
	StoreHistory *bool `json:"store_history"`
}

// Service определяет методы бизнес-логики изменения настройки истории.
type Service interface {
	SetPreference(ctx context.Context, userID string, storeHistory bool) (*models.HistoryPreference, error)
}

// Handler обрабатывает HTTP-запросы изменения настройки истории.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler с заданным логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Изменение настройки хранения истории
// @Description Включает или отключает хранение истории диалогов
// @Tags Users
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body Request true "Новое значение настройки"
// @Success 200 {object} map[string]any "Обновлённая настройка"
// @Failure 400 {object} response.ErrorResponse "store_history отсутствует или не булево"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /users/me/preferences [patch]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.preferencesupdate"

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

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("store_history must be a boolean"))
		return
	}
	if req.StoreHistory == nil {
		log.Error("store_history is missing")
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("store_history is required"))
		return
	}

	pref, err := h.service.SetPreference(r.Context(), userID, *req.StoreHistory)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("user not found"))
			return
		}
		log.Error("failed to set history preference", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to set history preference"))
		return
	}

	log.Info("history preference updated",
		slog.String("user_id", userID), slog.Bool("store_history", *req.StoreHistory))
	render.JSON(w, r, response.OKWithData(pref))
}
