package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/coursebridge/coursebridge-backend/internal/services"
)

type EnrollmentHandler struct {
	enrollmentService services.EnrollmentService
}

func NewEnrollmentHandler(enrollmentService services.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollmentService: enrollmentService}
}

func (eh *EnrollmentHandler) Create(c *gin.Context) {
	var req services.CreateEnrollmentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	enrollment, err := eh.enrollmentService.Create(c.Request.Context(), req)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondCreated(c, enrollment)
}

// Check answers "is user X enrolled in course Y" from query params:
// ?courseId=...&userId=... or ?courseId=...&email=...
func (eh *EnrollmentHandler) Check(c *gin.Context) {
	in := services.CheckEnrollmentInput{Email: c.Query("email")}

	courseID, err := uuid.Parse(c.Query("courseId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or missing courseId"})
		return
	}
	in.CourseID = courseID

	if raw := c.Query("userId"); raw != "" {
		userID, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid userId"})
			return
		}
		in.UserID = userID
	}

	check, err := eh.enrollmentService.Check(c.Request.Context(), in)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, check)
}

func (eh *EnrollmentHandler) ListMine(c *gin.Context) {
	enrollments, err := eh.enrollmentService.ListForUser(c.Request.Context(), uuid.Nil)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"enrollments": enrollments})
}

// Update patches progress and/or status on one enrollment.
func (eh *EnrollmentHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid enrollment id"})
		return
	}
	var req struct {
		Progress  *int   `json:"progress,omitempty"`
		Completed *bool  `json:"completed,omitempty"`
		Status    string `json:"status,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Progress == nil && req.Status == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "progress or status required"})
		return
	}

	ctx := c.Request.Context()
	if req.Status != "" {
		enrollment, err := eh.enrollmentService.UpdateStatus(ctx, id, req.Status)
		if err != nil {
			RespondError(c, err)
			return
		}
		if req.Progress == nil {
			RespondOK(c, enrollment)
			return
		}
	}

	enrollment, err := eh.enrollmentService.UpdateProgress(ctx, id, services.ProgressUpdateInput{
		Progress:  *req.Progress,
		Completed: req.Completed,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, enrollment)
}

func (eh *EnrollmentHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid enrollment id"})
		return
	}
	if err := eh.enrollmentService.Delete(c.Request.Context(), id); err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}

func (eh *EnrollmentHandler) Reconcile(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	report, err := eh.enrollmentService.ReconcileIdentity(c.Request.Context(), req.Email)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, report)
}
