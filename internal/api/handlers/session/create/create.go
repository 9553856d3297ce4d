// Package create реализует HTTP-обработчик создания сессии. Создание
// атомарно списывает один кредит: сначала бесплатный, затем оплаченный.
package create

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/gdohealth/chat-backend/internal/http/middlewarectx"
	"github.com/gdohealth/chat-backend/internal/http/response"
	"github.com/gdohealth/chat-backend/internal/lib/sl"
	"github.com/gdohealth/chat-backend/internal/models"
	"github.com/gdohealth/chat-backend/internal/services/session"
)

// Request — входные данные создания сессии. Тело может быть пустым.
type Request struct {
	ExpertID *string `json:"expert_id" validate:"omitempty,uuid"`
}

// Service определяет методы бизнес-логики создания сессии.
type Service interface {
	Create(ctx context.Context, userID string, expertID *string) (*models.Session, error)
}

// Handler обрабатывает HTTP-запросы создания сессии.
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
// @Summary Создание сессии
// @Description Списывает кредит и создает активную сессию с таймером
// @Tags Sessions
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body Request false "Необязательный выбор эксперта"
// @Success 201 {object} map[string]any "Созданная сессия"
// @Failure 400 {object} response.ErrorResponse "Ошибка валидации данных"
// @Failure 402 {object} response.ErrorResponse "Нет кредитов, в data текущий баланс"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /sessions [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.session.create"

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
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
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

	created, err := h.service.Create(r.Context(), userID, req.ExpertID)
	if err != nil {
		var noCredits *session.NoCreditsError
		if errors.As(err, &noCredits) {
			log.Info("no session credits available", slog.String("user_id", userID))
			w.WriteHeader(http.StatusPaymentRequired)
			render.JSON(w, r, response.ErrorWithCode(response.CodeNoCredits,
				"no session credits available", noCredits.Balance))
			return
		}
		log.Error("failed to create session", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to create session"))
		return
	}

	log.Info("session created",
		slog.String("session_id", created.ID),
		slog.String("session_type", created.SessionType))
	w.WriteHeader(http.StatusCreated)
	render.JSON(w, r, response.OKWithData(created))
}
