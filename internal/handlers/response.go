package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/voltaprotect/groupbuy-backend/internal/platform/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// RespondError maps a service error onto the wire envelope. Internal causes
// are logged upstream; clients only ever see the code and message.
func RespondError(c *gin.Context, err error) {
	apiErr := apierr.From(err)
	msg := apiErr.Error()
	if apiErr.Code == apierr.CodeInternal {
		msg = "internal error"
	}
	c.JSON(apiErr.Status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    apiErr.Code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}
