// Package forgotpassword реализует HTTP-обработчик запроса восстановления
// пароля. Ответ одинаков для существующей и несуществующей почты.
package forgotpassword

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
)

// Request — входные данные запроса восстановления
type Request struct {
	Email string `json:"email" validate:"required,email"`
}

// Service определяет методы бизнес-логики восстановления пароля.
type Service interface {
	ForgotPassword(ctx context.Context, email string) error
}

// Handler обрабатывает HTTP-запросы восстановления пароля.
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
// @Summary Запрос восстановления пароля
// @Description Генерирует одноразовый токен восстановления. Ответ не раскрывает, зарегистрирована ли почта
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Почта пользователя"
// @Success 200 {object} map[string]any "Запрос принят"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /auth/forgot-password [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.forgotpassword"

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

	if err := h.service.ForgotPassword(r.Context(), req.Email); err != nil {
		log.Error("failed to process password reset request", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to process request"))
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"message": "if the email is registered, a reset link will be sent",
	}))
}
