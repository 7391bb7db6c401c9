package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/abhisek/opoplan/internal/schedule"
	"github.com/abhisek/opoplan/internal/store"
	"github.com/abhisek/opoplan/internal/theme"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.AbortWithStatusJSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// RespondServiceError maps plan service errors onto HTTP statuses. Errors
// without a mapping become an opaque 500; the cause is kept on the gin
// context for the request logger.
func RespondServiceError(c *gin.Context, err error) {
	var (
		ve *schedule.ValidationError
		ie *schedule.InfeasiblePlanError
		be *schedule.BlockValidationError
		re *theme.ResolutionError
	)
	status, apiErr := http.StatusInternalServerError, APIError{Message: "internal error", Code: "internal_error"}
	switch {
	case errors.As(err, &ve):
		status = http.StatusBadRequest
		apiErr = APIError{Message: err.Error(), Code: "validation_error", Details: ve.Problems}
	case errors.As(err, &ie):
		status = http.StatusUnprocessableEntity
		apiErr = APIError{Message: err.Error(), Code: "infeasible_plan", Details: gin.H{
			"requiredHours":  ie.RequiredHours,
			"availableHours": ie.AvailableHours,
			"deficit":        ie.Deficit,
		}}
	case errors.As(err, &be):
		status = http.StatusUnprocessableEntity
		apiErr = APIError{Message: err.Error(), Code: "block_validation", Details: be.ByBlock()}
	case errors.As(err, &re):
		status = http.StatusUnprocessableEntity
		apiErr = APIError{Message: err.Error(), Code: "themes_not_found", Details: gin.H{"unresolved": re.Unresolved}}
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
		apiErr = APIError{Message: "not found", Code: "not_found"}
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, ErrorEnvelope{Error: apiErr})
}
