package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coursebridge/coursebridge-backend/internal/data/db"
	"github.com/coursebridge/coursebridge-backend/internal/data/repos"
	"github.com/coursebridge/coursebridge-backend/internal/domain/workflow"
	"github.com/coursebridge/coursebridge-backend/internal/platform/logger"
	"github.com/coursebridge/coursebridge-backend/internal/requestdata"
	"github.com/coursebridge/coursebridge-backend/internal/types"
)

type CoursePriceInput struct {
	Format     string `json:"format"`
	PriceCents int64  `json:"price_cents"`
}

type CourseCreditInput struct {
	CreditType   string  `json:"credit_type"`
	Amount       float64 `json:"amount"`
	CourseNumber string  `json:"course_number"`
}

// CreateCourseInput describes a course together with its price, credit and
// state children. The whole composite is inserted in one transaction.
type CreateCourseInput struct {
	SKU         string              `json:"sku"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Author      string              `json:"author"`
	MainSubject string              `json:"main_subject"`
	Prices      []CoursePriceInput  `json:"prices"`
	Credits     []CourseCreditInput `json:"credits"`
	StateCodes  []string            `json:"state_codes"`
}

type CourseService interface {
	Create(ctx context.Context, in CreateCourseInput) (*types.Course, error)
	GetByID(ctx context.Context, id uuid.UUID) (*types.Course, error)
	GetBySKU(ctx context.Context, sku string) (*types.Course, error)
	List(ctx context.Context, activeOnly bool) ([]*types.Course, error)
	Update(ctx context.Context, id uuid.UUID, fields map[string]interface{}) (*types.Course, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type courseService struct {
	log      *logger.Logger
	txRunner db.TxRunner
	courses  repos.CourseRepo
}

func NewCourseService(baseLog *logger.Logger, txRunner db.TxRunner, courses repos.CourseRepo) CourseService {
	serviceLog := baseLog.With("service", "CourseService")
	return &courseService{log: serviceLog, txRunner: txRunner, courses: courses}
}

func (s *courseService) Create(ctx context.Context, in CreateCourseInput) (*types.Course, error) {
	const op = "CourseService.Create"

	if !requestdata.IsAdmin(ctx) {
		return nil, workflow.NewError(workflow.CodeForbidden, op, "admin privileges required", nil)
	}

	sku := strings.TrimSpace(in.SKU)
	if sku == "" {
		return nil, workflow.NewError(workflow.CodeValidation, op, "sku required", nil)
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, workflow.NewError(workflow.CodeValidation, op, "title required", nil)
	}
	for _, c := range in.Credits {
		if strings.TrimSpace(c.CreditType) == "" {
			return nil, workflow.NewError(workflow.CodeValidation, op, "credit type required", nil)
		}
		if c.Amount <= 0 {
			return nil, workflow.NewError(workflow.CodeValidation, op, "credit amount must be positive", nil)
		}
	}

	course := &types.Course{
		SKU:         sku,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Author:      in.Author,
		MainSubject: in.MainSubject,
		Active:      true,
	}
	for _, p := range in.Prices {
		course.Prices = append(course.Prices, types.CoursePrice{
			Format:     p.Format,
			PriceCents: p.PriceCents,
		})
	}
	for _, c := range in.Credits {
		course.Credits = append(course.Credits, types.CourseCredit{
			CreditType:   c.CreditType,
			Amount:       c.Amount,
			CourseNumber: c.CourseNumber,
		})
	}
	for _, code := range in.StateCodes {
		course.States = append(course.States, types.CourseState{
			StateCode: strings.ToUpper(strings.TrimSpace(code)),
		})
	}

	err := s.txRunner.InTx(ctx, func(tx *gorm.DB) error {
		_, err := s.courses.Create(ctx, tx, []*types.Course{course})
		return err
	})
	if err != nil {
		if repos.IsDuplicate(err) {
			existing, lookupErr := s.courses.GetBySKUs(ctx, nil, []string{sku})
			existingID := uuid.Nil
			if lookupErr == nil && len(existing) > 0 {
				existingID = existing[0].ID
			}
			return nil, workflow.NewConflict(op, "course sku already exists", existingID)
		}
		return nil, workflow.Wrap(workflow.CodeInternal, op, err)
	}

	s.log.Info("course created", "course_id", course.ID, "sku", course.SKU)
	return course, nil
}

func (s *courseService) GetByID(ctx context.Context, id uuid.UUID) (*types.Course, error) {
	const op = "CourseService.GetByID"

	courses, err := s.courses.GetByIDs(ctx, nil, []uuid.UUID{id})
	if err != nil {
		return nil, workflow.Wrap(workflow.CodeInternal, op, err)
	}
	if len(courses) == 0 {
		return nil, workflow.NewError(workflow.CodeNotFound, op, "course not found", nil)
	}
	return courses[0], nil
}

func (s *courseService) GetBySKU(ctx context.Context, sku string) (*types.Course, error) {
	const op = "CourseService.GetBySKU"

	sku = strings.TrimSpace(sku)
	if sku == "" {
		return nil, workflow.NewError(workflow.CodeValidation, op, "sku required", nil)
	}

	courses, err := s.courses.GetBySKUs(ctx, nil, []string{sku})
	if err != nil {
		return nil, workflow.Wrap(workflow.CodeInternal, op, err)
	}
	if len(courses) == 0 {
		return nil, workflow.NewError(workflow.CodeNotFound, op, "course not found", nil)
	}
	return courses[0], nil
}

func (s *courseService) List(ctx context.Context, activeOnly bool) ([]*types.Course, error) {
	const op = "CourseService.List"

	courses, err := s.courses.List(ctx, nil, activeOnly)
	if err != nil {
		return nil, workflow.Wrap(workflow.CodeInternal, op, err)
	}
	return courses, nil
}

// updatableCourseColumns bounds what an admin may patch on a course row.
var updatableCourseColumns = map[string]bool{
	"title":        true,
	"description":  true,
	"author":       true,
	"main_subject": true,
	"active":       true,
}

func (s *courseService) Update(ctx context.Context, id uuid.UUID, fields map[string]interface{}) (*types.Course, error) {
	const op = "CourseService.Update"

	if !requestdata.IsAdmin(ctx) {
		return nil, workflow.NewError(workflow.CodeForbidden, op, "admin privileges required", nil)
	}
	if len(fields) == 0 {
		return nil, workflow.NewError(workflow.CodeValidation, op, "no fields to update", nil)
	}
	for col := range fields {
		if !updatableCourseColumns[col] {
			return nil, workflow.NewError(workflow.CodeValidation, op, "field "+col+" is not editable", nil)
		}
	}

	if err := s.courses.Update(ctx, nil, id, fields); err != nil {
		if isRecordNotFound(err) {
			return nil, workflow.NewError(workflow.CodeNotFound, op, "course not found", nil)
		}
		return nil, workflow.Wrap(workflow.CodeInternal, op, err)
	}
	return s.GetByID(ctx, id)
}

func (s *courseService) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "CourseService.Delete"

	if !requestdata.IsAdmin(ctx) {
		return workflow.NewError(workflow.CodeForbidden, op, "admin privileges required", nil)
	}

	courses, err := s.courses.GetByIDs(ctx, nil, []uuid.UUID{id})
	if err != nil {
		return workflow.Wrap(workflow.CodeInternal, op, err)
	}
	if len(courses) == 0 {
		return workflow.NewError(workflow.CodeNotFound, op, "course not found", nil)
	}

	if err := s.courses.SoftDeleteByIDs(ctx, nil, []uuid.UUID{id}); err != nil {
		return workflow.Wrap(workflow.CodeInternal, op, err)
	}
	s.log.Info("course soft-deleted", "course_id", id)
	return nil
}
