// Package riskcheck реализует HTTP-обработчик проверки сообщения на
// рисковый контент.
package riskcheck

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/gdohealth/chat-backend/internal/http/response"
	"github.com/gdohealth/chat-backend/internal/lib/sl"
	"github.com/gdohealth/chat-backend/internal/services/triage"
)

// Request — проверяемое сообщение пользователя.
type Request struct {
	Message string `json:"message" validate:"required"`
}

// Service определяет методы бизнес-логики проверки сообщений.
type Service interface {
	RiskCheck(ctx context.Context, message string) (*triage.RiskResult, error)
}

// Handler обрабатывает HTTP-запросы проверки сообщений.
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
// @Summary Проверка сообщения на рисковый контент
// @Description Прогоняет сообщение через moderation и возвращает категории риска
// @Tags Triage
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body Request true "Сообщение пользователя"
// @Success 200 {object} map[string]any "Результат проверки"
// @Failure 400 {object} response.ErrorResponse "Ошибка валидации данных"
// @Failure 502 {object} response.ErrorResponse "Ошибка обращения к moderation"
// @Failure 503 {object} response.ErrorResponse "Интеграция с OpenAI не настроена"
// @Router /triage/risk-check [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.triage.riskcheck"

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

	result, err := h.service.RiskCheck(r.Context(), req.Message)
	if err != nil {
		if errors.Is(err, triage.ErrNotConfigured) {
			w.WriteHeader(http.StatusServiceUnavailable)
			render.JSON(w, r, response.Error("risk check is not configured"))
			return
		}
		log.Error("risk check failed", sl.Err(err))
		w.WriteHeader(http.StatusBadGateway)
		render.JSON(w, r, response.Error("risk check failed"))
		return
	}

	if result.Flagged {
		log.Warn("risky message detected",
			slog.Any("categories", result.Categories))
	}
	render.JSON(w, r, response.OKWithData(result))
}
