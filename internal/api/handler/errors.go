package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/timmy/memevote/internal/domain"
	"github.com/timmy/memevote/internal/logger"
)

// errorMessages overrides the client-facing message per sentinel.
// A missing or empty entry falls back to the error's own detail.
type errorMessages map[error]string

var statusBySentinel = []struct {
	sentinel error
	status   int
}{
	{domain.ErrValidation, http.StatusBadRequest},
	{domain.ErrNotEligible, http.StatusForbidden},
	{domain.ErrVoteLimitReached, http.StatusForbidden},
	{domain.ErrAlreadyCreated, http.StatusForbidden},
	{domain.ErrAlreadyVoted, http.StatusBadRequest},
	{domain.ErrNotFound, http.StatusNotFound},
	{domain.ErrStoreUnavailable, http.StatusInternalServerError},
}

// respondError writes {"error": message} with the status for err's sentinel.
// Errors that match no sentinel are reported as a generic server error.
func respondError(c *gin.Context, err error, messages errorMessages) {
	for _, s := range statusBySentinel {
		if !errors.Is(err, s.sentinel) {
			continue
		}
		msg := messages[s.sentinel]
		if msg == "" {
			msg = detail(err, s.sentinel)
		}
		if s.status >= http.StatusInternalServerError {
			respondServerError(c, s.status, msg, err)
			return
		}
		c.JSON(s.status, gin.H{"error": msg})
		return
	}

	respondServerError(c, http.StatusInternalServerError, "Server error", err)
}

// respondServerError logs err and echoes the request id so a client report
// can be matched to the log line.
func respondServerError(c *gin.Context, status int, msg string, err error) {
	ctx := c.Request.Context()
	logger.CtxError(ctx, "Request failed with %d: %v", status, err)
	c.JSON(status, gin.H{
		"error":     msg,
		"requestId": logger.GetRequestID(ctx),
	})
}

// detail strips the sentinel prefix so "validation failed: title is required"
// becomes "title is required".
func detail(err, sentinel error) string {
	msg := err.Error()
	if trimmed := strings.TrimPrefix(msg, sentinel.Error()+": "); trimmed != msg {
		return trimmed
	}
	return msg
}
