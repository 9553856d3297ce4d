// Package mode реализует HTTP-обработчик переключения режима диалога.
package mode

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/gdohealth/chat-backend/internal/http/middlewarectx"
	"github.com/gdohealth/chat-backend/internal/http/response"
	"github.com/gdohealth/chat-backend/internal/lib/sl"
	"github.com/gdohealth/chat-backend/internal/services/session"
	"github.com/gdohealth/chat-backend/internal/storage/repository"
)

// Request — входные данные переключения режима.
type Request struct {
	Mode string `json:"mode" validate:"required,oneof=intake advice reflection summary"`
}

// Service определяет методы бизнес-логики переключения режима.
type Service interface {
	UpdateMode(ctx context.Context, userID, sessionID, mode string) error
}

// Handler обрабатывает HTTP-запросы переключения режима.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый экземпляр Handler с заданным логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Переключение режима диалога
// @Description Переводит активную сессию в один из режимов: intake, advice, reflection, summary
// @Tags Sessions
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param id path string true "Идентификатор сессии"
// @Param request body Request true "Новый режим"
// @Success 200 {object} map[string]any "Режим обновлён"
// @Failure 400 {object} response.ErrorResponse "Ошибка валидации, неподдерживаемый режим или сессия не активна"
// @Failure 403 {object} response.ErrorResponse "Сессия принадлежит другому пользователю"
// @Failure 404 {object} response.ErrorResponse "Сессия не найдена"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /sessions/{id}/mode [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.session.mode"

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

	sessionID := chi.URLParam(r, "id")

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	if err := h.service.UpdateMode(r.Context(), userID, sessionID, req.Mode); err != nil {
		switch {
		case errors.Is(err, session.ErrUnsupportedMode):
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("unsupported session mode"))
		case errors.Is(err, session.ErrSessionNotActive):
			log.Info("session is not active", slog.String("session_id", sessionID))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("session is not active"))
		case errors.Is(err, session.ErrNotSessionOwner):
			log.Info("session belongs to another user", slog.String("session_id", sessionID))
			w.WriteHeader(http.StatusForbidden)
			render.JSON(w, r, response.Error("session belongs to another user"))
		case errors.Is(err, repository.ErrSessionNotFound):
			log.Info("session not found", slog.String("session_id", sessionID))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("session not found"))
		default:
			log.Error("failed to update session mode", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("failed to update session mode"))
		}
		return
	}

	log.Info("session mode updated",
		slog.String("session_id", sessionID),
		slog.String("mode", req.Mode))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"session_id": sessionID,
		"mode":       req.Mode,
	}))
}
