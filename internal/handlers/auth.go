package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/coursebridge/coursebridge-backend/internal/services"
)

type AuthHandler struct {
	authService services.AuthService
}

func NewAuthHandler(authService services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (ah *AuthHandler) Register(c *gin.Context) {
	var req services.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	user, err := ah.authService.Register(c.Request.Context(), req)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondCreated(c, user)
}

func (ah *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	pair, user, err := ah.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"tokens": pair, "user": user})
}

func (ah *AuthHandler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	pair, err := ah.authService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, pair)
}

func (ah *AuthHandler) Logout(c *gin.Context) {
	if err := ah.authService.Logout(c.Request.Context()); err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"message": "logged out"})
}
