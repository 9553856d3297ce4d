// Package switchmode реализует HTTP-обработчик выбора следующего режима
// диалога.
package switchmode

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/gdohealth/chat-backend/internal/http/response"
	"github.com/gdohealth/chat-backend/internal/lib/sl"
	"github.com/gdohealth/chat-backend/internal/services/triage"
)

// Request — текущий режим и заполненные поля анкеты.
type Request struct {
	CurrentMode string            `json:"current_mode" validate:"required,oneof=intake advice reflection summary"`
	Fields      map[string]string `json:"fields"`
}

// Service определяет методы бизнес-логики выбора режима.
type Service interface {
	SwitchMode(ctx context.Context, currentMode string, fields map[string]string) *triage.ModeResult
}

// Handler обрабатывает HTTP-запросы выбора режима.
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
// @Summary Выбор следующего режима диалога
// @Description Рекомендует следующий режим; при недоступной модели возвращается advice с признаком fallback
// @Tags Triage
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body Request true "Текущий режим и поля анкеты"
// @Success 200 {object} map[string]any "Рекомендованный режим"
// @Failure 400 {object} response.ErrorResponse "Ошибка валидации данных"
// @Router /triage/switch-mode [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.triage.switchmode"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

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

	result := h.service.SwitchMode(r.Context(), req.CurrentMode, req.Fields)
	if result.Fallback {
		log.Warn("mode selection fell back to advice",
			slog.String("current_mode", req.CurrentMode))
	}
	render.JSON(w, r, response.OKWithData(result))
}
