package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/services-marketplace/internal/interface/http/response"
	"github.com/ignatzorin/services-marketplace/internal/logger"
)

// ErrorHandler отдаёт ответ по последней ошибке из c.Errors, если хендлер сам ничего не записал.
// Внутренние ошибки маскируются, AppError отдаётся как есть.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last()
		if logger.Log != nil {
			logger.Log.WithFields(logrus.Fields{
				"error":  err.Error(),
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
			}).Warn("request error")
		}
		response.Error(c, err.Err)
	}
}

// Recovery превращает панику в 500 и логирует стек.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		if logger.Log != nil {
			logger.Log.WithFields(logrus.Fields{
				"panic":  recovered,
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
			}).Error("panic в обработчике")
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, response.ErrorBody{Error: "внутренняя ошибка сервера", Code: "INTERNAL_ERROR"})
	})
}

// RequestLogger пишет одну строку на запрос.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if logger.Log == nil {
			return
		}
		logger.Log.WithFields(logrus.Fields{
			"status": c.Writer.Status(),
			"method": c.Request.Method,
			"path":   c.FullPath(),
			"ip":     c.ClientIP(),
		}).Debug("request")
	}
}
