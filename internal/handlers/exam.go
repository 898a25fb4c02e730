package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/coursebridge/coursebridge-backend/internal/services"
)

type ExamHandler struct {
	examService services.ExamService
}

func NewExamHandler(examService services.ExamService) *ExamHandler {
	return &ExamHandler{examService: examService}
}

func (xh *ExamHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid exam id"})
		return
	}
	exam, err := xh.examService.GetByID(c.Request.Context(), id)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, exam)
}

func (xh *ExamHandler) ListAttempts(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid exam id"})
		return
	}
	userID := uuid.Nil
	if raw := c.Query("userId"); raw != "" {
		userID, err = uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid userId"})
			return
		}
	}
	attempts, err := xh.examService.ListAttempts(c.Request.Context(), examID, userID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"attempts": attempts})
}

func (xh *ExamHandler) CreateAttempt(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid exam id"})
		return
	}
	attempt, err := xh.examService.CreateAttempt(c.Request.Context(), examID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondCreated(c, attempt)
}

func (xh *ExamHandler) SubmitAnswer(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid attempt id"})
		return
	}
	var req struct {
		QuestionID      uuid.UUID `json:"question_id"`
		SelectedOptions []string  `json:"selected_options"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	answer, err := xh.examService.SubmitAnswer(c.Request.Context(), services.SubmitAnswerInput{
		AttemptID:       attemptID,
		QuestionID:      req.QuestionID,
		SelectedOptions: req.SelectedOptions,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, answer)
}

func (xh *ExamHandler) CompleteAttempt(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid attempt id"})
		return
	}
	var req struct {
		Score  float64 `json:"score"`
		Passed bool    `json:"passed"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	result, err := xh.examService.CompleteAttempt(c.Request.Context(), services.CompleteAttemptInput{
		AttemptID: attemptID,
		Score:     req.Score,
		Passed:    req.Passed,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, result)
}
