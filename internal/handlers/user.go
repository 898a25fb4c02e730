package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/coursebridge/coursebridge-backend/internal/services"
)

type UserHandler struct {
	userService services.UserService
}

func NewUserHandler(userService services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

func (uh *UserHandler) GetMe(c *gin.Context) {
	user, err := uh.userService.GetMe(c.Request.Context())
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, user)
}

func (uh *UserHandler) List(c *gin.Context) {
	users, err := uh.userService.List(c.Request.Context())
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"users": users})
}

func (uh *UserHandler) SetRole(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	var req struct {
		Role string `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	user, err := uh.userService.SetRole(c.Request.Context(), id, req.Role)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, user)
}

func (uh *UserHandler) BulkRoleSync(c *gin.Context) {
	var req struct {
		Items []services.RoleSyncItem `json:"items"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	report, err := uh.userService.BulkRoleSync(c.Request.Context(), req.Items)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, report)
}
