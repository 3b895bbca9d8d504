package validation

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
)

// BindAndValidate binds JSON body into `out` and runs validation.
// If validation fails, it writes a 400 response and returns an error for the handler to short-circuit.
func BindAndValidate(c *gin.Context, out interface{}, v *validatorv10.Validate) error {
	if err := c.ShouldBindJSON(out); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Invalid request body",
		})
		return err
	}

	if err := v.Struct(out); err != nil {
		fields := validationErrorsToMap(err)
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": Message(err),
			"errors":  fields,
		})
		return err
	}
	return nil
}

// Message renders validation errors as one human-readable sentence list.
func Message(err error) string {
	var ve validatorv10.ValidationErrors
	if !errors.As(err, &ve) {
		return err.Error()
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		msgs = append(msgs, fieldMessage(fe))
	}
	return strings.Join(msgs, "; ")
}

func fieldMessage(fe validatorv10.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s must not be less than %s", fe.Field(), fe.Param())
	case "lte":
		return fmt.Sprintf("%s must not exceed %s", fe.Field(), fe.Param())
	case "excluded_with":
		return fmt.Sprintf("%s cannot be combined with %s", fe.Field(), fe.Param())
	}
	return fe.Error()
}

func validationErrorsToMap(err error) map[string]string {
	out := map[string]string{}
	var ve validatorv10.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			out[fe.Field()] = fieldMessage(fe)
		}
	} else {
		out["error"] = err.Error()
	}
	return out
}
