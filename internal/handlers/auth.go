package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/couponloop/exchange-backend/internal/services"
)

type AuthHandler struct {
	identity services.IdentityService
}

func NewAuthHandler(identity services.IdentityService) *AuthHandler {
	return &AuthHandler{identity: identity}
}

type mintTokenRequest struct {
	WalletAddress string `json:"wallet_address" binding:"required"`
}

// MintToken exchanges a wallet address for a bearer token. The production
// identity provider fronts this with a signature challenge; this endpoint is
// the seam it plugs into.
func (h *AuthHandler) MintToken(c *gin.Context) {
	var req mintTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	token, err := h.identity.MintToken(req.WalletAddress)
	if err != nil {
		RespondAPIError(c, err)
		return
	}
	RespondOK(c, gin.H{"token": token})
}
