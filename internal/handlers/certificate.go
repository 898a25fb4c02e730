package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/coursebridge/coursebridge-backend/internal/data/repos"
	"github.com/coursebridge/coursebridge-backend/internal/services"
)

type CertificateHandler struct {
	certificateService services.CertificateService
}

func NewCertificateHandler(certificateService services.CertificateService) *CertificateHandler {
	return &CertificateHandler{certificateService: certificateService}
}

func (ch *CertificateHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid certificate id"})
		return
	}
	cert, err := ch.certificateService.GetByID(c.Request.Context(), id)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, cert)
}

func (ch *CertificateHandler) ListMine(c *gin.Context) {
	certs, err := ch.certificateService.ListByUser(c.Request.Context(), uuid.Nil)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"certificates": certs})
}

// ListAll supports ?revoked=true|false, ?creditType=, ?userId=, ?courseId=.
func (ch *CertificateHandler) ListAll(c *gin.Context) {
	f := repos.CertificateFilter{CreditType: c.Query("creditType")}
	switch c.Query("revoked") {
	case "true":
		v := true
		f.Revoked = &v
	case "false":
		v := false
		f.Revoked = &v
	}
	if raw := c.Query("userId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid userId"})
			return
		}
		f.UserID = id
	}
	if raw := c.Query("courseId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid courseId"})
			return
		}
		f.CourseID = id
	}

	views, err := ch.certificateService.ListAll(c.Request.Context(), f)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"certificates": views})
}

func (ch *CertificateHandler) Generate(c *gin.Context) {
	var req struct {
		EnrollmentID uuid.UUID `json:"enrollment_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	certs, err := ch.certificateService.GenerateForEnrollment(c.Request.Context(), req.EnrollmentID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"certificates": certs})
}

func (ch *CertificateHandler) Edit(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid certificate id"})
		return
	}
	var req services.EditCertificateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	req.CertificateID = id
	cert, err := ch.certificateService.Edit(c.Request.Context(), req)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, cert)
}

func (ch *CertificateHandler) Revoke(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid certificate id"})
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	cert, err := ch.certificateService.Revoke(c.Request.Context(), id, req.Reason)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, cert)
}

func (ch *CertificateHandler) ListEdits(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid certificate id"})
		return
	}
	edits, err := ch.certificateService.ListEdits(c.Request.Context(), id)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"edits": edits})
}
