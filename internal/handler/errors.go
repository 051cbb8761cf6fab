package handler

import (
	"errors"
	"net/http"

	"github.com/CageChen/ezworkspace/internal/fs"
	"github.com/CageChen/ezworkspace/internal/transport"
	"github.com/gin-gonic/gin"
)

// statusFor maps a workspace error to an HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, fs.ErrNotFound), errors.Is(err, transport.ErrUnknownOp):
		return http.StatusNotFound
	case errors.Is(err, fs.ErrAlreadyExists),
		errors.Is(err, fs.ErrNonEmptyDirectory),
		errors.Is(err, fs.ErrTypeMismatch):
		return http.StatusConflict
	case errors.Is(err, fs.ErrInvalidName):
		return http.StatusBadRequest
	case errors.Is(err, fs.ErrParentMissing):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// respondError writes err with its status and error class
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	body := gin.H{"error": err.Error()}
	if code := fs.ErrorCode(err); code != "" {
		body["code"] = code
	}
	c.JSON(statusFor(err), body)
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
