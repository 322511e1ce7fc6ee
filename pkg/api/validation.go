package api

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/wms-platform/inbound-service/pkg/errors"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns gin's binding validator, reporting fields by their json names.
// Rules are read from `binding` tags.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		engine, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			engine = validator.New()
			engine.SetTagName("binding")
		}
		validate = engine
		validate.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return field.Name
			}
			return name
		})
	})
	return validate
}

// BindAndValidate binds the JSON body and validates it
func BindAndValidate(c *gin.Context, obj interface{}) *errors.AppError {
	Validator()
	if err := c.ShouldBindJSON(obj); err != nil {
		return bindError("invalid request body", err)
	}
	return nil
}

// BindQuery binds query parameters and validates them
func BindQuery(c *gin.Context, obj interface{}) *errors.AppError {
	Validator()
	if err := c.ShouldBindQuery(obj); err != nil {
		return bindError("invalid query parameters", err)
	}
	return nil
}

// ValidateStruct validates obj against its binding tags
func ValidateStruct(obj interface{}) *errors.AppError {
	if err := Validator().Struct(obj); err != nil {
		return bindError("validation error", err)
	}
	return nil
}

func bindError(message string, err error) *errors.AppError {
	var validationErrors validator.ValidationErrors
	if !stderrors.As(err, &validationErrors) {
		return errors.ErrBadRequest(fmt.Sprintf("%s: %v", message, err))
	}

	fields := make(map[string]string, len(validationErrors))
	for _, fe := range validationErrors {
		fields[fieldPath(fe)] = errorMessage(fe)
	}
	return errors.ErrValidationWithFields("validation failed", fields)
}

// fieldPath drops the root struct name from the namespace, e.g. "lines[0].sku"
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func errorMessage(fe validator.FieldError) string {
	field := fe.Field()

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		if fe.Kind() == reflect.String || fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must have at least %s entries or characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "dive":
		return fmt.Sprintf("%s contains an invalid entry", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
