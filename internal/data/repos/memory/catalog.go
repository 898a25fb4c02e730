package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coursebridge/coursebridge-backend/internal/data/repos"
	"github.com/coursebridge/coursebridge-backend/internal/types"
)

type courseRepo struct{ s *Store }

func cloneCourse(c *types.Course) *types.Course {
	cp := *c
	cp.Prices = append([]types.CoursePrice(nil), c.Prices...)
	cp.Credits = append([]types.CourseCredit(nil), c.Credits...)
	cp.States = append([]types.CourseState(nil), c.States...)
	return &cp
}

func (r *courseRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.Course) ([]*types.Course, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range rows {
		for id, existing := range r.s.courses {
			if existing.SKU == c.SKU && !r.s.deleted[id] {
				return nil, repos.ErrDuplicate
			}
		}
		ensureID(&c.ID)
		for i := range c.Prices {
			ensureID(&c.Prices[i].ID)
			c.Prices[i].CourseID = c.ID
		}
		for i := range c.Credits {
			ensureID(&c.Credits[i].ID)
			c.Credits[i].CourseID = c.ID
		}
		for i := range c.States {
			ensureID(&c.States[i].ID)
			c.States[i].CourseID = c.ID
		}
		r.s.courses[c.ID] = cloneCourse(c)
	}
	return rows, nil
}

func (r *courseRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Course, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*types.Course
	for _, id := range ids {
		if c, ok := r.s.courses[id]; ok && !r.s.deleted[id] {
			out = append(out, cloneCourse(c))
		}
	}
	return out, nil
}

func (r *courseRepo) GetBySKUs(ctx context.Context, tx *gorm.DB, skus []string) ([]*types.Course, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*types.Course
	for _, sku := range skus {
		for id, c := range r.s.courses {
			if c.SKU == sku && !r.s.deleted[id] {
				out = append(out, cloneCourse(c))
			}
		}
	}
	return out, nil
}

func (r *courseRepo) List(ctx context.Context, tx *gorm.DB, activeOnly bool) ([]*types.Course, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*types.Course
	for id, c := range r.s.courses {
		if r.s.deleted[id] {
			continue
		}
		if activeOnly && !c.Active {
			continue
		}
		out = append(out, cloneCourse(c))
	}
	sortStable(out, func(a, b *types.Course) bool { return a.Title < b.Title })
	return out, nil
}

func (r *courseRepo) Update(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]interface{}) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.courses[id]
	if !ok || r.s.deleted[id] {
		return gorm.ErrRecordNotFound
	}
	for k, v := range fields {
		switch k {
		case "title":
			c.Title = v.(string)
		case "description":
			c.Description = v.(string)
		case "author":
			c.Author = v.(string)
		case "main_subject":
			c.MainSubject = v.(string)
		case "active":
			c.Active = v.(bool)
		case "updated_at":
			c.UpdatedAt = v.(time.Time)
		default:
			return fmt.Errorf("memory: unknown course column %q", k)
		}
	}
	return nil
}

func (r *courseRepo) SoftDeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, id := range ids {
		if _, ok := r.s.courses[id]; ok {
			r.s.deleted[id] = true
		}
	}
	return nil
}

type examRepo struct{ s *Store }

func cloneExam(e *types.Exam) *types.Exam {
	cp := *e
	cp.Questions = append([]types.ExamQuestion(nil), e.Questions...)
	return &cp
}

func (r *examRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.Exam) ([]*types.Exam, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range rows {
		ensureID(&e.ID)
		for i := range e.Questions {
			ensureID(&e.Questions[i].ID)
			e.Questions[i].ExamID = e.ID
			q := e.Questions[i]
			r.s.questions[q.ID] = &q
		}
		r.s.exams[e.ID] = cloneExam(e)
	}
	return rows, nil
}

func (r *examRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Exam, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*types.Exam
	for _, id := range ids {
		if e, ok := r.s.exams[id]; ok {
			out = append(out, cloneExam(e))
		}
	}
	return out, nil
}

func (r *examRepo) GetByCourseIDs(ctx context.Context, tx *gorm.DB, courseIDs []uuid.UUID) ([]*types.Exam, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*types.Exam
	for _, courseID := range courseIDs {
		for _, e := range r.s.exams {
			if e.CourseID == courseID {
				out = append(out, cloneExam(e))
			}
		}
	}
	return out, nil
}

func (r *examRepo) LockByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Exam, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if e, ok := r.s.exams[id]; ok {
		return cloneExam(e), nil
	}
	return nil, nil
}

type examQuestionRepo struct{ s *Store }

func (r *examQuestionRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.ExamQuestion, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*types.ExamQuestion
	for _, id := range ids {
		if q, ok := r.s.questions[id]; ok {
			cp := *q
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *examQuestionRepo) GetByExamIDs(ctx context.Context, tx *gorm.DB, examIDs []uuid.UUID) ([]*types.ExamQuestion, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*types.ExamQuestion
	for _, examID := range examIDs {
		for _, q := range r.s.questions {
			if q.ExamID == examID {
				cp := *q
				out = append(out, &cp)
			}
		}
	}
	sortStable(out, func(a, b *types.ExamQuestion) bool { return a.Position < b.Position })
	return out, nil
}
