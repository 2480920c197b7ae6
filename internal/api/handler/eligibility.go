package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/timmy/memevote/internal/domain"
	"github.com/timmy/memevote/internal/service"
)

// EligibilityHandler serves allowlist lookups.
type EligibilityHandler struct {
	voting    *service.VotingService
	allowlist *service.AllowlistService
}

// NewEligibilityHandler creates a new eligibility handler.
func NewEligibilityHandler(voting *service.VotingService, allowlist *service.AllowlistService) *EligibilityHandler {
	return &EligibilityHandler{
		voting:    voting,
		allowlist: allowlist,
	}
}

type checkEligibilityBody struct {
	Address string `json:"address"`
}

// CheckEligibility handles POST /api/check-eligibility.
func (h *EligibilityHandler) CheckEligibility(c *gin.Context) {
	var body checkEligibilityBody
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}
	if strings.TrimSpace(body.Address) == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Address is required",
		})
		return
	}

	c.JSON(http.StatusOK, h.voting.CheckEligibility(c.Request.Context(), body.Address))
}

// ListEligible handles GET /api/eligible-addresses.
func (h *EligibilityHandler) ListEligible(c *gin.Context) {
	doc, err := h.allowlist.List(c.Request.Context())
	if err != nil {
		respondError(c, err, errorMessages{
			domain.ErrStoreUnavailable: "Failed to load eligible addresses",
		})
		return
	}
	c.JSON(http.StatusOK, doc)
}
