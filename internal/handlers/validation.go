package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/charlesng35/linker/pkg/errors"
	"github.com/charlesng35/linker/pkg/response"
	appValidator "github.com/charlesng35/linker/pkg/validator"
)

// bindAndValidate decodes the JSON body into dest and validates it, writing a
// 400 response and returning false on failure.
func bindAndValidate[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest("invalid JSON payload"))
		return false
	}

	if err := appValidator.ValidateStruct(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest(formatValidationError(err)))
		return false
	}

	return true
}

func formatValidationError(err error) string {
	if err == nil {
		return "invalid request payload"
	}

	if ve, ok := err.(appValidator.ValidationErrors); ok {
		if len(ve) == 0 {
			return "invalid request payload"
		}

		messages := make([]string, 0, len(ve))
		for _, failure := range ve {
			messages = append(messages, failure.Field+" failed on "+failure.Tag)
		}
		return strings.Join(messages, "; ")
	}

	return err.Error()
}
