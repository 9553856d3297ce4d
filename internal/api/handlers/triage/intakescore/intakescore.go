// Package intakescore реализует HTTP-обработчик подсчёта полноты
// intake-анкеты.
package intakescore

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/gdohealth/chat-backend/internal/http/response"
	"github.com/gdohealth/chat-backend/internal/lib/sl"
	"github.com/gdohealth/chat-backend/internal/services/triage"
)

// Request — заполненные поля анкеты.
type Request struct {
	Fields map[string]string `json:"fields"`
}

// Service определяет методы бизнес-логики подсчёта полноты анкеты.
type Service interface {
	IntakeScore(ctx context.Context, fields map[string]string) *triage.ScoreResult
}

// Handler обрабатывает HTTP-запросы подсчёта полноты анкеты.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler с заданным логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Оценка полноты intake-анкеты
// @Description Считает взвешенную оценку заполненных полей и список недостающих
// @Tags Triage
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body Request true "Поля анкеты"
// @Success 200 {object} map[string]any "Оценка, признак завершённости и недостающие поля"
// @Failure 400 {object} response.ErrorResponse "Некорректное тело запроса"
// @Router /triage/intake-score [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.triage.intakescore"

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

	result := h.service.IntakeScore(r.Context(), req.Fields)
	render.JSON(w, r, response.OKWithData(result))
}
