package service

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	apperrors "github.com/lk2023060901/seo-research-backend/internal/pkg/errors"
	"github.com/lk2023060901/seo-research-backend/internal/pkg/response"
)

var fieldNamesOnce sync.Once

// useWireFieldNames makes validation errors report json/form names instead
// of Go field names.
func useWireFieldNames() {
	fieldNamesOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return f.Name
		})
	})
}

// bindFailed answers a request that could not be bound. Rule violations
// become ErrInvalidParams with the failing fields, malformed bodies
// ErrBadRequest.
func bindFailed(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		response.BadRequest(c, err.Error())
		return
	}
	fields := make([]apperrors.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, apperrors.FieldError{Field: fe.Field(), Rule: fe.Tag()})
	}
	response.HandleError(c, apperrors.NewValidationError(fields...))
}
