package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/ignatzorin/services-marketplace/internal/interface/http/response"
	"github.com/ignatzorin/services-marketplace/internal/logger"
)

// RateLimitMiddleware ограничивает число запросов с одного IP к маршруту.
// По умолчанию 10 запросов в минуту.
func RateLimitMiddleware(limit int64, period time.Duration) gin.HandlerFunc {
	if limit <= 0 {
		limit = 10
	}
	if period <= 0 {
		period = time.Minute
	}

	instance := limiter.New(memory.NewStore(), limiter.Rate{Period: period, Limit: limit})

	return func(c *gin.Context) {
		key := c.FullPath() + "|" + c.ClientIP()
		state, err := instance.Get(c, key)
		if err != nil {
			// хранилище в памяти, ошибка означает баг, запрос не блокируем
			if logger.Log != nil {
				logger.Log.WithError(err).Warn("rate limit: ошибка хранилища")
			}
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(state.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(state.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(state.Reset, 10))

		if state.Reached {
			c.Header("Retry-After", strconv.FormatInt(state.Reset-time.Now().Unix(), 10))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, response.ErrorBody{
				Error: "Request was throttled.",
				Code:  "THROTTLED",
			})
			return
		}
		c.Next()
	}
}
