package middlewarectx

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestRateLimitMiddleware_NoRedis(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	w := httptest.NewRecorder()

	RateLimitMiddleware(nil, 10, time.Minute, newNoopLogger())(next).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimitMiddleware_FailOpen(t *testing.T) {
	// Клиент указывает на несуществующий redis: запросы проходят
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() {
		_ = rdb.Close()
	})

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	w := httptest.NewRecorder()

	RateLimitMiddleware(rdb, 10, time.Minute, newNoopLogger())(next).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", host, port.Port()),
	})
	require.NoError(t, rdb.Ping(ctx).Err())

	return rdb, func() {
		_ = rdb.Close()
		_ = container.Terminate(ctx)
	}
}

func TestRateLimitMiddleware_WindowResets(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rdb, cleanup := setupTestRedis(t)
	defer cleanup()

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := RateLimitMiddleware(rdb, 2, time.Second, newNoopLogger())(next)

	do := func() int {
		req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	start := time.Now()
	assert.Equal(t, http.StatusOK, do())
	assert.Equal(t, http.StatusOK, do())
	assert.Equal(t, http.StatusTooManyRequests, do())

	// Ретрай внутри окна не продлевает его: TTL выставлен только
	// первым запросом окна
	time.Sleep(500 * time.Millisecond)
	assert.Equal(t, http.StatusTooManyRequests, do())

	// Через секунду после ПЕРВОГО запроса окно закрылось, несмотря
	// на ретрай в середине
	time.Sleep(time.Until(start.Add(1200 * time.Millisecond)))
	assert.Equal(t, http.StatusOK, do())
}
