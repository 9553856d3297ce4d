// Package creditsbalance реализует HTTP-обработчик чтения баланса кредитов.
package creditsbalance

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/gdohealth/chat-backend/internal/http/middlewarectx"
	"github.com/gdohealth/chat-backend/internal/http/response"
	"github.com/gdohealth/chat-backend/internal/lib/sl"
	"github.com/gdohealth/chat-backend/internal/models"
)

// Service определяет методы бизнес-логики чтения баланса.
type Service interface {
	GetBalance(ctx context.Context, userID string) (*models.CreditBalance, error)
}

// Handler обрабатывает HTTP-запросы чтения баланса кредитов.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler с заданным логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Баланс кредитов
// @Description Возвращает остаток бесплатных и оплаченных сессий
// @Tags Users
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} map[string]any "Баланс"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /users/credits [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.creditsbalance"

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

	balance, err := h.service.GetBalance(r.Context(), userID)
	if err != nil {
		log.Error("failed to get credit balance", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to get credit balance"))
		return
	}

	render.JSON(w, r, response.OKWithData(balance))
}
