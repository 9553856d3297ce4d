// Package grantcredits реализует внутренний HTTP-обработчик начисления
// сессионных кредитов после оплаты. Повторная доставка вебхука с тем же
// order_reference не приводит к двойному начислению.
package grantcredits

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
	"github.com/gdohealth/chat-backend/internal/models"
	"github.com/gdohealth/chat-backend/internal/services/credits"
)

// Request — входные данные начисления кредитов.
type Request struct {
	UserID         string  `json:"user_id" validate:"required,uuid"`
	Sessions       int     `json:"sessions" validate:"required,min=1"`
	Source         string  `json:"source" validate:"max=50"`
	OrderReference *string `json:"order_reference"`
	ValidDays      *int    `json:"valid_days" validate:"omitempty,min=1"`
}

// Service определяет методы бизнес-логики начисления кредитов.
type Service interface {
	Grant(ctx context.Context, userID string, count int, source string, orderReference *string, validDays *int) (*models.GrantResult, error)
}

// Handler обрабатывает внутренние запросы начисления кредитов.
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
// @Summary Начисление сессионных кредитов
// @Description Начисляет оплаченные сессии; повтор с тем же order_reference идемпотентен
// @Tags Internal
// @Accept  json
// @Produce  json
// @Param X-Internal-Key header string true "Внутренний ключ API"
// @Param request body Request true "Параметры начисления"
// @Success 200 {object} map[string]any "Результат начисления"
// @Failure 400 {object} response.ErrorResponse "Ошибка валидации или недопустимое количество сессий"
// @Failure 401 {object} response.ErrorResponse "Неверный внутренний ключ"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /internal/grant-credits [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.internalapi.grantcredits"

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

	result, err := h.service.Grant(r.Context(), req.UserID, req.Sessions, req.Source, req.OrderReference, req.ValidDays)
	if err != nil {
		if errors.Is(err, credits.ErrInvalidGrant) {
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("sessions count must be positive"))
			return
		}
		log.Error("failed to grant credits", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to grant credits"))
		return
	}

	log.Info("credits granted",
		slog.String("user_id", req.UserID),
		slog.Int("sessions_added", result.SessionsAdded),
		slog.Bool("already_processed", result.AlreadyProcessed))
	render.JSON(w, r, response.OKWithData(result))
}
