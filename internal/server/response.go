package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	deskerrors "svcdesk/internal/errors"
	"svcdesk/internal/intake"
)

// SuccessResponse is the envelope of every successful JSON response.
type SuccessResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Warning string      `json:"warning,omitempty"` // set when the change was kept in memory only
	Data    interface{} `json:"data,omitempty"`
}

// ErrorResponse is the envelope of every failed JSON response.
type ErrorResponse struct {
	Status  string   `json:"status"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

// RespondSuccess sends a success envelope.
func RespondSuccess(c *gin.Context, status int, data interface{}, message string) {
	c.JSON(status, SuccessResponse{Status: "success", Message: message, Data: data})
}

// RespondError sends an error envelope.
func RespondError(c *gin.Context, status int, message string, details ...string) {
	resp := ErrorResponse{Status: "error", Message: message}
	if len(details) > 0 {
		resp.Details = details
	}
	c.JSON(status, resp)
}

// RespondResult sends data when err is nil or only a persistence warning,
// and maps every other error to its status code.
func RespondResult(c *gin.Context, status int, data interface{}, message string, err error) {
	if err == nil {
		RespondSuccess(c, status, data, message)
		return
	}
	if deskerrors.IsPersistence(err) {
		c.JSON(status, SuccessResponse{
			Status:  "success",
			Message: message,
			Warning: "saved in memory only: " + err.Error(),
			Data:    data,
		})
		return
	}
	RespondDeskError(c, err)
}

// RespondDeskError maps service errors to HTTP responses.
func RespondDeskError(c *gin.Context, err error) {
	var verr *deskerrors.ValidationError
	switch {
	case errors.As(err, &verr):
		RespondError(c, http.StatusBadRequest, verr.Message, verr.Fields...)
	case deskerrors.IsInvalidValue(err):
		RespondError(c, http.StatusBadRequest, err.Error())
	case deskerrors.IsNotFound(err):
		RespondError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, intake.ErrParseInFlight):
		RespondError(c, http.StatusConflict, err.Error())
	default:
		log.WithFields(log.Fields{"path": c.FullPath(), "method": c.Request.Method}).Error("❌ Request failed: ", err)
		RespondError(c, http.StatusInternalServerError, "internal error", err.Error())
	}
}
