package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/coursebridge/coursebridge-backend/internal/data/db"
	"github.com/coursebridge/coursebridge-backend/internal/data/repos"
	"github.com/coursebridge/coursebridge-backend/internal/domain/workflow"
	"github.com/coursebridge/coursebridge-backend/internal/platform/logger"
	"github.com/coursebridge/coursebridge-backend/internal/requestdata"
	"github.com/coursebridge/coursebridge-backend/internal/types"
)

type ExamQuestionInput struct {
	Position       int             `json:"position"`
	Prompt         string          `json:"prompt"`
	Options        json.RawMessage `json:"options"`
	CorrectOptions []string        `json:"correct_options"`
}

type CreateExamInput struct {
	CourseID     uuid.UUID           `json:"course_id"`
	Title        string              `json:"title"`
	Description  string              `json:"description"`
	PassingScore float64             `json:"passing_score"`
	AttemptLimit *int                `json:"attempt_limit,omitempty"`
	Questions    []ExamQuestionInput `json:"questions"`
}

type SubmitAnswerInput struct {
	AttemptID       uuid.UUID `json:"attempt_id"`
	QuestionID      uuid.UUID `json:"question_id"`
	SelectedOptions []string  `json:"selected_options"`
}

type CompleteAttemptInput struct {
	AttemptID uuid.UUID `json:"attempt_id"`
	Score     float64   `json:"score"`
	Passed    bool      `json:"passed"`
}

// CompletionResult reports the finished attempt plus any certificates minted
// in the same transaction.
type CompletionResult struct {
	Attempt      *types.ExamAttempt   `json:"attempt"`
	Certificates []*types.Certificate `json:"certificates"`
}

type ExamService interface {
	CreateExam(ctx context.Context, in CreateExamInput) (*types.Exam, error)
	GetByID(ctx context.Context, id uuid.UUID) (*types.Exam, error)
	GetForCourse(ctx context.Context, courseID uuid.UUID) ([]*types.Exam, error)
	ListAttempts(ctx context.Context, examID, userID uuid.UUID) ([]*types.ExamAttempt, error)
	CreateAttempt(ctx context.Context, examID uuid.UUID) (*types.ExamAttempt, error)
	SubmitAnswer(ctx context.Context, in SubmitAnswerInput) (*types.ExamAnswer, error)
	CompleteAttempt(ctx context.Context, in CompleteAttemptInput) (*CompletionResult, error)
}

type examService struct {
	log         *logger.Logger
	txRunner    db.TxRunner
	exams       repos.ExamRepo
	questions   repos.ExamQuestionRepo
	attempts    repos.ExamAttemptRepo
	answers     repos.ExamAnswerRepo
	enrollments repos.EnrollmentRepo
	certSvc     CertificateService
}

func NewExamService(
	baseLog *logger.Logger,
	txRunner db.TxRunner,
	exams repos.ExamRepo,
	questions repos.ExamQuestionRepo,
	attempts repos.ExamAttemptRepo,
	answers repos.ExamAnswerRepo,
	enrollments repos.EnrollmentRepo,
	certSvc CertificateService,
) ExamService {
	serviceLog := baseLog.With("service", "ExamService")
	return &examService{
		log:         serviceLog,
		txRunner:    txRunner,
		exams:       exams,
		questions:   questions,
		attempts:    attempts,
		answers:     answers,
		enrollments: enrollments,
		certSvc:     certSvc,
	}
}

func (s *examService) CreateExam(ctx context.Context, in CreateExamInput) (*types.Exam, error) {
	const op = "ExamService.CreateExam"

	if !requestdata.IsAdmin(ctx) {
		return nil, workflow.NewError(workflow.CodeForbidden, op, "admin privileges required", nil)
	}
	if in.CourseID == uuid.Nil {
		return nil, workflow.NewError(workflow.CodeValidation, op, "course id required", nil)
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, workflow.NewError(workflow.CodeValidation, op, "title required", nil)
	}
	if in.PassingScore < 0 || in.PassingScore > 100 {
		return nil, workflow.NewError(workflow.CodeValidation, op, "passing score must be between 0 and 100", nil)
	}
	if in.AttemptLimit != nil && *in.AttemptLimit < 1 {
		return nil, workflow.NewError(workflow.CodeValidation, op, "attempt limit must be at least 1", nil)
	}

	exam := &types.Exam{
		CourseID:     in.CourseID,
		Title:        strings.TrimSpace(in.Title),
		Description:  in.Description,
		PassingScore: in.PassingScore,
		AttemptLimit: in.AttemptLimit,
	}
	if exam.PassingScore == 0 {
		exam.PassingScore = DefaultPassingScore
	}
	for _, q := range in.Questions {
		if strings.TrimSpace(q.Prompt) == "" {
			return nil, workflow.NewError(workflow.CodeValidation, op, "question prompt required", nil)
		}
		if len(q.CorrectOptions) == 0 {
			return nil, workflow.NewError(workflow.CodeValidation, op, "question needs at least one correct option", nil)
		}
		correct, err := json.Marshal(q.CorrectOptions)
		if err != nil {
			return nil, workflow.Wrap(workflow.CodeInternal, op, err)
		}
		exam.Questions = append(exam.Questions, types.ExamQuestion{
			Position:       q.Position,
			Prompt:         q.Prompt,
			Options:        datatypes.JSON(q.Options),
			CorrectOptions: datatypes.JSON(correct),
		})
	}

	err := s.txRunner.InTx(ctx, func(tx *gorm.DB) error {
		_, err := s.exams.Create(ctx, tx, []*types.Exam{exam})
		return err
	})
	if err != nil {
		if repos.IsDuplicate(err) {
			return nil, workflow.NewConflict(op, "duplicate question position", uuid.Nil)
		}
		return nil, workflow.Wrap(workflow.CodeInternal, op, err)
	}

	s.log.Info("exam created", "exam_id", exam.ID, "course_id", exam.CourseID)
	return exam, nil
}

func (s *examService) GetByID(ctx context.Context, id uuid.UUID) (*types.Exam, error) {
	const op = "ExamService.GetByID"

	exams, err := s.exams.GetByIDs(ctx, nil, []uuid.UUID{id})
	if err != nil {
		return nil, workflow.Wrap(workflow.CodeInternal, op, err)
	}
	if len(exams) == 0 {
		return nil, workflow.NewError(workflow.CodeNotFound, op, "exam not found", nil)
	}
	return exams[0], nil
}

func (s *examService) GetForCourse(ctx context.Context, courseID uuid.UUID) ([]*types.Exam, error) {
	const op = "ExamService.GetForCourse"

	exams, err := s.exams.GetByCourseIDs(ctx, nil, []uuid.UUID{courseID})
	if err != nil {
		return nil, workflow.Wrap(workflow.CodeInternal, op, err)
	}
	return exams, nil
}

func (s *examService) ListAttempts(ctx context.Context, examID, userID uuid.UUID) ([]*types.ExamAttempt, error) {
	const op = "ExamService.ListAttempts"

	rd := requestdata.GetRequestData(ctx)
	if rd == nil {
		return nil, workflow.NewError(workflow.CodeUnauthorized, op, "authentication required", nil)
	}
	if userID == uuid.Nil {
		userID = rd.UserID
	}
	if userID != rd.UserID && !requestdata.IsAdmin(ctx) {
		return nil, workflow.NewError(workflow.CodeForbidden, op, "cannot list another user's attempts", nil)
	}

	attempts, err := s.attempts.GetByUserAndExam(ctx, nil, userID, examID)
	if err != nil {
		return nil, workflow.Wrap(workflow.CodeInternal, op, err)
	}
	return attempts, nil
}

func (s *examService) CreateAttempt(ctx context.Context, examID uuid.UUID) (*types.ExamAttempt, error) {
	const op = "ExamService.CreateAttempt"

	rd := requestdata.GetRequestData(ctx)
	if rd == nil {
		return nil, workflow.NewError(workflow.CodeUnauthorized, op, "authentication required", nil)
	}

	var attempt *types.ExamAttempt
	err := s.txRunner.InTx(ctx, func(tx *gorm.DB) error {
		// The row lock serializes the limit check against concurrent attempt
		// creation for the same exam.
		exam, err := s.exams.LockByID(ctx, tx, examID)
		if err != nil {
			return err
		}
		if exam == nil {
			return workflow.NewError(workflow.CodeNotFound, op, "exam not found", nil)
		}
		if exam.AttemptLimit != nil {
			count, err := s.attempts.CountByUserAndExam(ctx, tx, rd.UserID, examID)
			if err != nil {
				return err
			}
			if count >= int64(*exam.AttemptLimit) {
				return workflow.NewError(workflow.CodeAttemptLimit, op,
					fmt.Sprintf("attempt limit reached (%d of %d used)", count, *exam.AttemptLimit), nil)
			}
		}

		attempt = &types.ExamAttempt{
			UserID:    rd.UserID,
			ExamID:    examID,
			StartedAt: time.Now().UTC(),
			Status:    types.AttemptStatusInProgress,
		}
		_, err = s.attempts.Create(ctx, tx, []*types.ExamAttempt{attempt})
		return err
	})
	if err != nil {
		if workflow.CodeOf(err) != "" {
			return nil, err
		}
		return nil, workflow.Wrap(workflow.CodeInternal, op, err)
	}

	s.log.Info("attempt started", "attempt_id", attempt.ID, "exam_id", examID, "user_id", rd.UserID)
	return attempt, nil
}

func (s *examService) SubmitAnswer(ctx context.Context, in SubmitAnswerInput) (*types.ExamAnswer, error) {
	const op = "ExamService.SubmitAnswer"

	attempt, err := s.ownedAttempt(ctx, op, in.AttemptID)
	if err != nil {
		return nil, err
	}
	if attempt.Status == types.AttemptStatusCompleted {
		return nil, workflow.NewError(workflow.CodeInvariantViolation, op, "attempt already completed", nil)
	}
	if len(in.SelectedOptions) == 0 {
		return nil, workflow.NewError(workflow.CodeValidation, op, "selected options required", nil)
	}

	questions, err := s.questions.GetByIDs(ctx, nil, []uuid.UUID{in.QuestionID})
	if err != nil {
		return nil, workflow.Wrap(workflow.CodeInternal, op, err)
	}
	if len(questions) == 0 {
		return nil, workflow.NewError(workflow.CodeNotFound, op, "question not found", nil)
	}
	question := questions[0]
	if question.ExamID != attempt.ExamID {
		return nil, workflow.NewError(workflow.CodeValidation, op, "question does not belong to the attempt's exam", nil)
	}

	var correctOptions []string
	if len(question.CorrectOptions) > 0 {
		if err := json.Unmarshal(question.CorrectOptions, &correctOptions); err != nil {
			return nil, workflow.Wrap(workflow.CodeInternal, op, err)
		}
	}

	selected, err := json.Marshal(in.SelectedOptions)
	if err != nil {
		return nil, workflow.Wrap(workflow.CodeInternal, op, err)
	}

	answer := &types.ExamAnswer{
		AttemptID:       in.AttemptID,
		QuestionID:      in.QuestionID,
		SelectedOptions: datatypes.JSON(selected),
		Correct:         equalAsSets(in.SelectedOptions, correctOptions),
	}
	if err := s.answers.Upsert(ctx, nil, answer); err != nil {
		return nil, workflow.Wrap(workflow.CodeInternal, op, err)
	}
	return answer, nil
}

// equalAsSets compares option keys ignoring order and duplicates.
func equalAsSets(a, b []string) bool {
	setA := make(map[string]bool, len(a))
	for _, v := range a {
		setA[v] = true
	}
	setB := make(map[string]bool, len(b))
	for _, v := range b {
		setB[v] = true
	}
	if len(setA) != len(setB) {
		return false
	}
	for v := range setA {
		if !setB[v] {
			return false
		}
	}
	return true
}

func (s *examService) CompleteAttempt(ctx context.Context, in CompleteAttemptInput) (*CompletionResult, error) {
	const op = "ExamService.CompleteAttempt"

	attempt, err := s.ownedAttempt(ctx, op, in.AttemptID)
	if err != nil {
		return nil, err
	}
	if attempt.Status == types.AttemptStatusCompleted {
		return nil, workflow.NewConflict(op, "attempt already completed", attempt.ID)
	}
	if in.Score < 0 || in.Score > 100 {
		return nil, workflow.NewError(workflow.CodeValidation, op, "score must be between 0 and 100", nil)
	}

	exam, err := s.GetByID(ctx, attempt.ExamID)
	if err != nil {
		return nil, err
	}

	result := &CompletionResult{Certificates: []*types.Certificate{}}
	now := time.Now().UTC()
	err = s.txRunner.InTx(ctx, func(tx *gorm.DB) error {
		if err := s.attempts.Update(ctx, tx, attempt.ID, map[string]interface{}{
			"completed_at": now,
			"score":        in.Score,
			"passed":       in.Passed,
			"status":       types.AttemptStatusCompleted,
			"updated_at":   now,
		}); err != nil {
			return err
		}

		enrollment, err := s.enrollments.GetByUserAndCourse(ctx, tx, attempt.UserID, exam.CourseID)
		if err != nil {
			return err
		}
		if enrollment == nil {
			// Attempt completion still stands; certificates require an
			// enrollment to hang off.
			return nil
		}

		if err := s.enrollments.Update(ctx, tx, enrollment.ID, map[string]interface{}{
			"exam_score":  in.Score,
			"exam_passed": in.Passed,
			"updated_at":  now,
		}); err != nil {
			return err
		}

		if !in.Passed {
			return nil
		}
		certs, err := s.certSvc.AutoGenerate(ctx, tx, AutoGenerateInput{
			UserID:       attempt.UserID,
			CourseID:     exam.CourseID,
			EnrollmentID: enrollment.ID,
			ExamScore:    in.Score,
			PassingScore: exam.PassingScore,
		})
		if err != nil {
			return err
		}
		result.Certificates = certs
		return nil
	})
	if err != nil {
		if workflow.CodeOf(err) != "" {
			return nil, err
		}
		return nil, workflow.Wrap(workflow.CodeInternal, op, err)
	}

	attempts, err := s.attempts.GetByIDs(ctx, nil, []uuid.UUID{attempt.ID})
	if err != nil {
		return nil, workflow.Wrap(workflow.CodeInternal, op, err)
	}
	if len(attempts) > 0 {
		result.Attempt = attempts[0]
	}

	s.log.Info("attempt completed",
		"attempt_id", attempt.ID, "score", in.Score, "passed", in.Passed,
		"certificates", len(result.Certificates))
	return result, nil
}

// ownedAttempt loads the attempt and enforces the ownership rule: the acting
// user must be the attempt's owner unless they are an admin.
func (s *examService) ownedAttempt(ctx context.Context, op string, attemptID uuid.UUID) (*types.ExamAttempt, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil {
		return nil, workflow.NewError(workflow.CodeUnauthorized, op, "authentication required", nil)
	}

	attempts, err := s.attempts.GetByIDs(ctx, nil, []uuid.UUID{attemptID})
	if err != nil {
		return nil, workflow.Wrap(workflow.CodeInternal, op, err)
	}
	if len(attempts) == 0 {
		return nil, workflow.NewError(workflow.CodeNotFound, op, "attempt not found", nil)
	}
	attempt := attempts[0]
	if attempt.UserID != rd.UserID && !requestdata.IsAdmin(ctx) {
		return nil, workflow.NewError(workflow.CodeForbidden, op, "not the attempt owner", nil)
	}
	return attempt, nil
}
