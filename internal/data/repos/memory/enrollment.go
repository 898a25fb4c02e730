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

type enrollmentRepo struct{ s *Store }

func (r *enrollmentRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.Enrollment) ([]*types.Enrollment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range rows {
		for _, existing := range r.s.enrollments {
			if existing.UserID == e.UserID && existing.CourseID == e.CourseID {
				return nil, repos.ErrDuplicate
			}
		}
		ensureID(&e.ID)
		cp := *e
		r.s.enrollments[e.ID] = &cp
	}
	return rows, nil
}

func (r *enrollmentRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Enrollment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*types.Enrollment
	for _, id := range ids {
		if e, ok := r.s.enrollments[id]; ok {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *enrollmentRepo) GetByUserIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) ([]*types.Enrollment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*types.Enrollment
	for _, userID := range userIDs {
		for _, e := range r.s.enrollments {
			if e.UserID == userID {
				cp := *e
				out = append(out, &cp)
			}
		}
	}
	sortStable(out, func(a, b *types.Enrollment) bool { return a.EnrolledAt.After(b.EnrolledAt) })
	return out, nil
}

func (r *enrollmentRepo) GetByUserAndCourse(ctx context.Context, tx *gorm.DB, userID, courseID uuid.UUID) (*types.Enrollment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.enrollments {
		if e.UserID == userID && e.CourseID == courseID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *enrollmentRepo) Update(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]interface{}) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.enrollments[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for k, v := range fields {
		switch k {
		case "progress":
			e.Progress = v.(int)
		case "completed":
			e.Completed = v.(bool)
		case "completed_at":
			e.CompletedAt = timePtrValue(v)
		case "last_accessed_at":
			e.LastAccessedAt = timePtrValue(v)
		case "status":
			e.Status = v.(string)
		case "notes":
			e.Notes = v.(string)
		case "exam_score":
			e.ExamScore = floatPtrValue(v)
		case "exam_passed":
			e.ExamPassed = v.(bool)
		case "user_id":
			e.UserID = v.(uuid.UUID)
		case "updated_at":
			e.UpdatedAt = v.(time.Time)
		default:
			return fmt.Errorf("memory: unknown enrollment column %q", k)
		}
	}
	return nil
}

func (r *enrollmentRepo) FullDeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, id := range ids {
		delete(r.s.enrollments, id)
	}
	return nil
}

func timePtrValue(v interface{}) *time.Time {
	switch t := v.(type) {
	case *time.Time:
		return t
	case time.Time:
		return &t
	case nil:
		return nil
	default:
		return nil
	}
}

func floatPtrValue(v interface{}) *float64 {
	switch f := v.(type) {
	case *float64:
		return f
	case float64:
		return &f
	case nil:
		return nil
	default:
		return nil
	}
}
