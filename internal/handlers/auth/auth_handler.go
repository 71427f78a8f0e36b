// internal/handlers/auth/auth_handler.go
package auth

import (
	"crypto/subtle"
	"net/http"

	"boda-service/internal/pkg/jwt"
	"boda-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type AuthHandler struct {
	tokens       *jwt.Manager
	adminEmail   string
	passwordHash string
	logger       *zap.Logger
}

func NewAuthHandler(tokens *jwt.Manager, adminEmail, passwordHash string, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		tokens:       tokens,
		adminEmail:   adminEmail,
		passwordHash: passwordHash,
		logger:       logger,
	}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login authenticates the configured admin account and issues a token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	emailOK := subtle.ConstantTimeCompare([]byte(req.Email), []byte(h.adminEmail)) == 1
	passOK := bcrypt.CompareHashAndPassword([]byte(h.passwordHash), []byte(req.Password)) == nil
	if !emailOK || !passOK {
		h.logger.Warn("failed admin login attempt", zap.String("email", req.Email), zap.String("client_ip", c.ClientIP()))
		response.Unauthorized(c, "invalid credentials")
		return
	}

	token, err := h.tokens.Generate(req.Email)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to issue token", err)
		return
	}

	response.Success(c, http.StatusOK, "login successful", gin.H{
		"token": token,
		"email": req.Email,
	})
}
