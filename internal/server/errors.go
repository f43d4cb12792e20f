package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	advancedomain "github.com/splitnest/splitnest/internal/advance/domain"
	billdomain "github.com/splitnest/splitnest/internal/bill/domain"
	housedomain "github.com/splitnest/splitnest/internal/house/domain"
	ledgerdomain "github.com/splitnest/splitnest/internal/ledger/domain"
	riskdomain "github.com/splitnest/splitnest/internal/riskindex/domain"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrInvalidRequest = errors.New("invalid_request")
	ErrRateLimited    = errors.New("rate_limited")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case err == nil:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	case isBadRequestError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: err.Error(),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, riskdomain.ErrAssessmentInProgress),
		errors.Is(err, housedomain.ErrMemberExists),
		errors.Is(err, billdomain.ErrChargeAlreadyPaid):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many recompute requests, try again shortly",
		}
	case errors.Is(err, advancedomain.ErrInsufficientAllowance),
		errors.Is(err, advancedomain.ErrChargeNotAdvanced),
		errors.Is(err, billdomain.ErrChargeAdvanced):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "unprocessable",
			Message: err.Error(),
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isBadRequestError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, housedomain.ErrInvalidName) ||
		errors.Is(err, housedomain.ErrNoMembers) ||
		errors.Is(err, billdomain.ErrInvalidAmount) ||
		errors.Is(err, billdomain.ErrInvalidSplit) ||
		errors.Is(err, advancedomain.ErrInvalidAmount) ||
		errors.Is(err, ledgerdomain.ErrInvalidAmount) ||
		errors.Is(err, ledgerdomain.ErrEmptyReason)
}

func isNotFoundError(err error) bool {
	return errors.Is(err, housedomain.ErrNotFound) ||
		errors.Is(err, billdomain.ErrNotFound) ||
		errors.Is(err, billdomain.ErrChargeNotFound) ||
		errors.Is(err, advancedomain.ErrBillNotFound) ||
		errors.Is(err, advancedomain.ErrChargeNotFound) ||
		errors.Is(err, riskdomain.ErrHouseNotFound) ||
		errors.Is(err, gorm.ErrRecordNotFound)
}
