package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/coursebridge/coursebridge-backend/internal/services"
)

type CourseHandler struct {
	courseService services.CourseService
	examService   services.ExamService
}

func NewCourseHandler(courseService services.CourseService, examService services.ExamService) *CourseHandler {
	return &CourseHandler{courseService: courseService, examService: examService}
}

func (ch *CourseHandler) Create(c *gin.Context) {
	var req services.CreateCourseInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	course, err := ch.courseService.Create(c.Request.Context(), req)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondCreated(c, course)
}

func (ch *CourseHandler) List(c *gin.Context) {
	activeOnly := c.Query("active") == "true"
	courses, err := ch.courseService.List(c.Request.Context(), activeOnly)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"courses": courses})
}

func (ch *CourseHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid course id"})
		return
	}
	course, err := ch.courseService.GetByID(c.Request.Context(), id)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, course)
}

func (ch *CourseHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid course id"})
		return
	}
	var fields map[string]interface{}
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	course, err := ch.courseService.Update(c.Request.Context(), id, fields)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, course)
}

func (ch *CourseHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid course id"})
		return
	}
	if err := ch.courseService.Delete(c.Request.Context(), id); err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}

func (ch *CourseHandler) CreateExam(c *gin.Context) {
	courseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid course id"})
		return
	}
	var req services.CreateExamInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	req.CourseID = courseID
	exam, err := ch.examService.CreateExam(c.Request.Context(), req)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondCreated(c, exam)
}

func (ch *CourseHandler) ListExams(c *gin.Context) {
	courseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid course id"})
		return
	}
	exams, err := ch.examService.GetForCourse(c.Request.Context(), courseID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"exams": exams})
}
