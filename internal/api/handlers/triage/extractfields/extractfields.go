// Package extractfields реализует HTTP-обработчик извлечения полей
// intake-анкеты из свободного текста.
package extractfields

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

// Request — сообщение, из которого извлекаются поля анкеты.
type Request struct {
	Message string `json:"message" validate:"required"`
}

// Service определяет методы бизнес-логики извлечения полей.
type Service interface {
	ExtractFields(ctx context.Context, message string) (map[string]string, error)
}

// Handler обрабатывает HTTP-запросы извлечения полей анкеты.
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
// @Summary Извлечение полей intake-анкеты
// @Description Извлекает поля анкеты из свободного текста сообщения
// @Tags Triage
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body Request true "Сообщение пользователя"
// @Success 200 {object} map[string]any "Извлечённые поля"
// @Failure 400 {object} response.ErrorResponse "Ошибка валидации данных"
// @Failure 502 {object} response.ErrorResponse "Модель не вернула разбираемый ответ"
// @Failure 503 {object} response.ErrorResponse "Интеграция с OpenAI не настроена"
// @Router /triage/extract-fields [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.triage.extractfields"

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

	fields, err := h.service.ExtractFields(r.Context(), req.Message)
	if err != nil {
		if errors.Is(err, triage.ErrNotConfigured) {
			w.WriteHeader(http.StatusServiceUnavailable)
			render.JSON(w, r, response.Error("field extraction is not configured"))
			return
		}
		log.Error("field extraction failed", sl.Err(err))
		w.WriteHeader(http.StatusBadGateway)
		render.JSON(w, r, response.Error("field extraction failed"))
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"fields": fields,
	}))
}
