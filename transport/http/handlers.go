package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/blocchat/gatekeeper/core"
	"github.com/blocchat/gatekeeper/service"
)

// SessionCookie is the cookie carrying the session token for browser clients.
const SessionCookie = "admin_session"

// AuthHandlers contains HTTP handlers for the admin auth endpoints.
type AuthHandlers struct {
	auth *service.AuthService
}

// NewAuthHandlers creates new auth handlers.
func NewAuthHandlers(auth *service.AuthService) *AuthHandlers {
	return &AuthHandlers{auth: auth}
}

// Nonce handles the challenge request.
func (h *AuthHandlers) Nonce(c *gin.Context) {
	var req struct {
		WalletAddress string `json:"wallet_address" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	nonce, message, err := h.auth.RequestChallenge(c.Request.Context(), req.WalletAddress)
	if err != nil {
		if errors.Is(err, core.ErrInvalidAddress) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid wallet address"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create challenge"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"nonce": nonce, "message": message})
}

// Authenticate handles the signed-challenge login request.
func (h *AuthHandlers) Authenticate(c *gin.Context) {
	var req struct {
		WalletAddress string `json:"wallet_address" binding:"required"`
		Nonce         string `json:"nonce" binding:"required"`
		Signature     string `json:"signature" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, authFailure("Invalid request"))
		return
	}

	token, wallet, err := h.auth.Authenticate(c.Request.Context(), req.WalletAddress, req.Nonce, req.Signature)
	if err != nil {
		status := http.StatusInternalServerError
		msg := "Authentication failed"

		switch {
		case errors.Is(err, core.ErrNotWhitelisted):
			status = http.StatusForbidden
			msg = "Wallet is not authorized"
		case errors.Is(err, core.ErrNonceNotFound),
			errors.Is(err, core.ErrNonceMismatch),
			errors.Is(err, core.ErrNonceExpired):
			status = http.StatusBadRequest
			msg = "Invalid or expired nonce"
		case errors.Is(err, core.ErrInvalidAddress),
			errors.Is(err, core.ErrMalformedSignature),
			errors.Is(err, core.ErrSignatureRecovery):
			status = http.StatusBadRequest
			msg = "Malformed signature or address"
		case errors.Is(err, core.ErrInvalidSignature):
			status = http.StatusUnauthorized
			msg = "Invalid signature"
		}

		c.JSON(status, authFailure(msg))
		return
	}

	setSessionCookie(c, token, int(h.auth.Sessions().TTL().Seconds()))
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"session_token":  token,
		"wallet_address": wallet,
	})
}

// Check reports whether the presented credential maps to a live session. It
// never errors: absence or invalidity yields authenticated=false.
func (h *AuthHandlers) Check(c *gin.Context) {
	token, _ := extractToken(c)
	wallet, ok := h.auth.Check(c.Request.Context(), token)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"authenticated": true, "wallet_address": wallet})
}

// Logout revokes the session and clears the cookie. Always succeeds.
func (h *AuthHandlers) Logout(c *gin.Context) {
	if token, ok := extractToken(c); ok {
		h.auth.Logout(c.Request.Context(), token)
	}
	setSessionCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func authFailure(msg string) gin.H {
	return gin.H{"success": false, "error": msg}
}

func setSessionCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(SessionCookie, token, maxAge, "/", "", true, true)
}

// GateHandlers contains HTTP handlers for gate policy management and
// verification.
type GateHandlers struct {
	gates *service.GateService
}

// NewGateHandlers creates new gate handlers.
func NewGateHandlers(gates *service.GateService) *GateHandlers {
	return &GateHandlers{gates: gates}
}

type requirementPayload struct {
	TokenAddress *string `json:"token_address"`
	TokenSymbol  string  `json:"token_symbol" binding:"required"`
	MinAmount    string  `json:"min_amount" binding:"required"`
}

// Replace handles atomic create-or-replace of a conversation's gate policy.
func (h *GateHandlers) Replace(c *gin.Context) {
	conversationID := c.Param("conversation_id")

	var req struct {
		Requirements []requirementPayload `json:"requirements" binding:"required"`
		Operator     string               `json:"operator" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	requirements := make([]core.TokenRequirement, 0, len(req.Requirements))
	for _, r := range req.Requirements {
		requirements = append(requirements, core.TokenRequirement{
			TokenAddress: r.TokenAddress,
			TokenSymbol:  r.TokenSymbol,
			MinAmount:    r.MinAmount,
		})
	}

	err := h.gates.SetPolicy(c.Request.Context(), conversationID, requirements, core.Operator(req.Operator))
	if err != nil {
		switch {
		case errors.Is(err, core.ErrInvalidOperator),
			errors.Is(err, core.ErrInvalidAmount),
			errors.Is(err, core.ErrInvalidAddress):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update token gates"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Token gates updated successfully"})
}

// Get returns a conversation's gate policy, or 404 when none exists.
func (h *GateHandlers) Get(c *gin.Context) {
	conversationID := c.Param("conversation_id")

	policy, err := h.gates.GetPolicy(c.Request.Context(), conversationID)
	if err != nil {
		if errors.Is(err, core.ErrPolicyNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No token gates found for this conversation"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get token gates"})
		return
	}

	requirements := make([]requirementPayload, 0, len(policy.Requirements))
	for _, r := range policy.Requirements {
		requirements = append(requirements, requirementPayload{
			TokenAddress: r.TokenAddress,
			TokenSymbol:  r.TokenSymbol,
			MinAmount:    r.MinAmount,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"requirements": requirements,
		"operator":     policy.Operator,
	})
}

// Delete removes a conversation's gate policy.
func (h *GateHandlers) Delete(c *gin.Context) {
	conversationID := c.Param("conversation_id")

	if err := h.gates.DeletePolicy(c.Request.Context(), conversationID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete token gates"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Token gates deleted successfully"})
}

// Verify evaluates a conversation's gate policy for a wallet.
func (h *GateHandlers) Verify(c *gin.Context) {
	var req struct {
		ConversationID string `json:"conversation_id" binding:"required"`
		WalletAddress  string `json:"wallet_address" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	decision, err := h.gates.Evaluate(c.Request.Context(), req.ConversationID, req.WalletAddress)
	if err != nil {
		if errors.Is(err, core.ErrInvalidAddress) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid wallet address"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify token gates"})
		return
	}

	c.JSON(http.StatusOK, decision)
}

// HealthHandler reports liveness and database reachability.
type HealthHandler struct {
	db *gorm.DB
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(db *gorm.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// Health handles the liveness probe.
func (h *HealthHandler) Health(c *gin.Context) {
	status := "ok"
	dbStatus := "ok"

	if h.db != nil {
		if sqlDB, err := h.db.DB(); err != nil {
			status, dbStatus = "degraded", "unavailable"
		} else if err := sqlDB.PingContext(c.Request.Context()); err != nil {
			status, dbStatus = "degraded", "unavailable"
		}
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"status": status, "database": dbStatus})
}
