package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/services-marketplace/internal/logger"
	"github.com/ignatzorin/services-marketplace/internal/pkg/apperror"
)

// ErrorBody единый формат ошибки. Fields заполнен для ошибок валидации.
type ErrorBody struct {
	Error  string            `json:"error"`
	Code   string            `json:"code,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Page страница списка.
type Page struct {
	Results interface{} `json:"results"`
	Count   int         `json:"count"`
}

// Message ответ без тела ресурса.
type Message struct {
	Message string `json:"message"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

func Paginated(c *gin.Context, results interface{}, count int) {
	c.JSON(http.StatusOK, Page{Results: results, Count: count})
}

func OK(c *gin.Context, message string) {
	c.JSON(http.StatusOK, Message{Message: message})
}

func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error переводит ошибку в HTTP ответ. Всё, что не AppError, скрывается за 500.
func Error(c *gin.Context, err error) {
	if appErr, ok := apperror.As(err); ok {
		if appErr.HTTPStatus >= http.StatusInternalServerError {
			logError(c, err)
		}
		c.JSON(appErr.HTTPStatus, ErrorBody{
			Error:  appErr.Message,
			Code:   string(appErr.Code),
			Fields: appErr.Fields,
		})
		return
	}

	logError(c, err)
	c.JSON(http.StatusInternalServerError, ErrorBody{
		Error: "внутренняя ошибка сервера",
		Code:  string(apperror.ErrCodeInternal),
	})
}

func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorBody{Error: message, Code: string(apperror.ErrCodeBadRequest)})
}

func NotFound(c *gin.Context, message string) {
	c.JSON(http.StatusNotFound, ErrorBody{Error: message, Code: string(apperror.ErrCodeNotFound)})
}

func Unauthorized(c *gin.Context, message string) {
	c.JSON(http.StatusUnauthorized, ErrorBody{Error: message, Code: string(apperror.ErrCodeUnauthorized)})
}

func Forbidden(c *gin.Context, message string) {
	c.JSON(http.StatusForbidden, ErrorBody{Error: message, Code: string(apperror.ErrCodeForbidden)})
}

func logError(c *gin.Context, err error) {
	if logger.Log == nil {
		return
	}
	logger.Log.WithError(err).WithField("method", c.Request.Method).
		WithField("path", c.FullPath()).Error("request failed")
}
