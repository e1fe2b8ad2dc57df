package handlers

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ElementalEngine/core-api-backend/internal/config"
	jwtutil "github.com/ElementalEngine/core-api-backend/pkg/jwt"
	"github.com/ElementalEngine/core-api-backend/pkg/logger"
)

type AuthHandler struct {
	cfg        *config.Config
	jwtManager *jwtutil.Manager
}

func NewAuthHandler(cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		cfg:        cfg,
		jwtManager: jwtutil.NewManager(cfg.JWTSecret, cfg.JWTExpiration),
	}
}

type TokenRequest struct {
	ServiceID string `json:"serviceId" binding:"required"`
	Secret    string `json:"secret" binding:"required"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

// Token exchanges the shared bot secret for a bearer token. The
// reporting bot is the only expected client.
func (h *AuthHandler) Token(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	if subtle.ConstantTimeCompare([]byte(req.Secret), []byte(h.cfg.BotSharedSecret)) != 1 {
		logger.Warn("Token request with bad secret", "serviceId", req.ServiceID, "ip", c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "Invalid credentials",
		})
		return
	}

	token, err := h.jwtManager.Generate(req.ServiceID, "bot")
	if err != nil {
		logger.Error("Failed to generate token", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to generate token",
		})
		return
	}

	logger.Info("Service token issued", "serviceId", req.ServiceID)
	c.JSON(http.StatusOK, TokenResponse{Token: token})
}
