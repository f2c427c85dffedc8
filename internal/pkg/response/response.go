package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/lk2023060901/seo-research-backend/internal/pkg/errors"
)

// Response is the envelope of every JSON API reply
type Response struct {
	Code    int         `json:"code"`              // business code, 0 on success
	Message string      `json:"message,omitempty"` // human readable message
	Data    interface{} `json:"data"`              // payload, {} when empty
}

// Success writes a 200 reply
func Success(c *gin.Context, data interface{}) {
	write(c, http.StatusOK, apperrors.Success, "", data)
}

// Accepted writes a 202 reply for work that continues after the response
func Accepted(c *gin.Context, data interface{}) {
	write(c, http.StatusAccepted, apperrors.Success, "", data)
}

// BadRequest writes a 400 reply
func BadRequest(c *gin.Context, message string) {
	ErrorWithCode(c, apperrors.ErrBadRequest, message)
}

// NotFound writes a 404 reply
func NotFound(c *gin.Context, message string) {
	ErrorWithCode(c, apperrors.ErrNotFound, message)
}

// HandleError writes the reply for any error, using the AppError code if
// present. Validation errors list the failing fields in data.
func HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)

	code := apperrors.ExtractCode(err)
	var data interface{}
	if appErr, ok := apperrors.As(err); ok && len(appErr.Fields) > 0 {
		data = gin.H{"fields": appErr.Fields}
	}
	write(c, apperrors.GetHTTPStatus(code), code, apperrors.FormatError(code, apperrors.GetDetails(err)), data)
}

// ErrorWithCode writes an error reply for a business code
func ErrorWithCode(c *gin.Context, code int, details ...string) {
	write(c, apperrors.GetHTTPStatus(code), code, apperrors.FormatError(code, details...), nil)
}

// Data writes raw bytes, used by export endpoints
func Data(c *gin.Context, contentType, filename string, body []byte) {
	if filename != "" {
		c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	}
	c.Data(http.StatusOK, contentType, body)
}

func write(c *gin.Context, status, code int, message string, data interface{}) {
	if data == nil {
		data = struct{}{}
	}
	c.JSON(status, Response{
		Code:    code,
		Message: message,
		Data:    data,
	})
}
