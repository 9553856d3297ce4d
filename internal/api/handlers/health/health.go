package health

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/redis/go-redis/v9"
	"github.com/streadway/amqp"

	"github.com/gdohealth/chat-backend/internal/http/response"
	"github.com/gdohealth/chat-backend/internal/storage/repository"
)

type Handler struct {
	log     *slog.Logger
	storage *repository.Storage
	rabbit  *amqp.Connection
	redis   *redis.Client
}

func New(log *slog.Logger, storage *repository.Storage, rabbit *amqp.Connection, rdb *redis.Client) *Handler {
	return &Handler{
		log:     log,
		storage: storage,
		rabbit:  rabbit,
		redis:   rdb,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.health"
	w.WriteHeader(http.StatusOK)
	render.JSON(w, r, response.OKWithData(map[string]any{
		"status": "ok",
	}))
}
