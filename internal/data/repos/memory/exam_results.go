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

type examAttemptRepo struct{ s *Store }

func (r *examAttemptRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.ExamAttempt) ([]*types.ExamAttempt, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range rows {
		ensureID(&a.ID)
		if a.Status == "" {
			a.Status = types.AttemptStatusInProgress
		}
		cp := *a
		r.s.attempts[a.ID] = &cp
	}
	return rows, nil
}

func (r *examAttemptRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.ExamAttempt, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*types.ExamAttempt
	for _, id := range ids {
		if a, ok := r.s.attempts[id]; ok {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *examAttemptRepo) GetByUserAndExam(ctx context.Context, tx *gorm.DB, userID, examID uuid.UUID) ([]*types.ExamAttempt, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*types.ExamAttempt
	for _, a := range r.s.attempts {
		if a.UserID == userID && a.ExamID == examID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sortStable(out, func(a, b *types.ExamAttempt) bool { return a.StartedAt.After(b.StartedAt) })
	return out, nil
}

func (r *examAttemptRepo) CountByUserAndExam(ctx context.Context, tx *gorm.DB, userID, examID uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var count int64
	for _, a := range r.s.attempts {
		if a.UserID == userID && a.ExamID == examID {
			count++
		}
	}
	return count, nil
}

func (r *examAttemptRepo) Update(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]interface{}) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.attempts[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for k, v := range fields {
		switch k {
		case "completed_at":
			a.CompletedAt = timePtrValue(v)
		case "score":
			a.Score = floatPtrValue(v)
		case "passed":
			a.Passed = v.(bool)
		case "status":
			a.Status = v.(string)
		case "updated_at":
			a.UpdatedAt = v.(time.Time)
		default:
			return fmt.Errorf("memory: unknown attempt column %q", k)
		}
	}
	return nil
}

type examAnswerRepo struct{ s *Store }

func (r *examAnswerRepo) Upsert(ctx context.Context, tx *gorm.DB, row *types.ExamAnswer) error {
	if row == nil {
		return nil
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.answers {
		if a.AttemptID == row.AttemptID && a.QuestionID == row.QuestionID {
			a.SelectedOptions = row.SelectedOptions
			a.Correct = row.Correct
			a.UpdatedAt = time.Now().UTC()
			*row = *a
			return nil
		}
	}
	ensureID(&row.ID)
	cp := *row
	r.s.answers[row.ID] = &cp
	return nil
}

func (r *examAnswerRepo) GetByAttemptIDs(ctx context.Context, tx *gorm.DB, attemptIDs []uuid.UUID) ([]*types.ExamAnswer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*types.ExamAnswer
	for _, attemptID := range attemptIDs {
		for _, a := range r.s.answers {
			if a.AttemptID == attemptID {
				cp := *a
				out = append(out, &cp)
			}
		}
	}
	return out, nil
}

type certificateRepo struct{ s *Store }

func (r *certificateRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.Certificate) ([]*types.Certificate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range rows {
		for _, existing := range r.s.certs {
			if existing.CertificateNumber == c.CertificateNumber {
				return nil, repos.ErrDuplicate
			}
		}
		ensureID(&c.ID)
		cp := *c
		r.s.certs[c.ID] = &cp
	}
	return rows, nil
}

func (r *certificateRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Certificate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*types.Certificate
	for _, id := range ids {
		if c, ok := r.s.certs[id]; ok {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *certificateRepo) GetByUserIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) ([]*types.Certificate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*types.Certificate
	for _, userID := range userIDs {
		for _, c := range r.s.certs {
			if c.UserID == userID {
				cp := *c
				out = append(out, &cp)
			}
		}
	}
	sortStable(out, func(a, b *types.Certificate) bool { return a.CompletionDate.After(b.CompletionDate) })
	return out, nil
}

func (r *certificateRepo) List(ctx context.Context, tx *gorm.DB, f repos.CertificateFilter) ([]*types.Certificate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*types.Certificate
	for _, c := range r.s.certs {
		if f.Revoked != nil && c.Revoked != *f.Revoked {
			continue
		}
		if f.CreditType != "" && c.CreditType != f.CreditType {
			continue
		}
		if f.UserID != uuid.Nil && c.UserID != f.UserID {
			continue
		}
		if f.CourseID != uuid.Nil && c.CourseID != f.CourseID {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sortStable(out, func(a, b *types.Certificate) bool { return a.CompletionDate.After(b.CompletionDate) })
	return out, nil
}

func (r *certificateRepo) Update(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]interface{}) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.certs[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for k, v := range fields {
		switch k {
		case "recipient_name":
			c.RecipientName = v.(string)
		case "course_title":
			c.CourseTitle = v.(string)
		case "exam_score":
			c.ExamScore = v.(float64)
		case "credits_earned":
			c.CreditsEarned = v.(float64)
		case "completion_date":
			c.CompletionDate = v.(time.Time)
		case "revoked":
			c.Revoked = v.(bool)
		case "revoked_reason":
			c.RevokedReason = v.(string)
		case "revoked_at":
			c.RevokedAt = timePtrValue(v)
		case "updated_at":
			c.UpdatedAt = v.(time.Time)
		default:
			return fmt.Errorf("memory: unknown certificate column %q", k)
		}
	}
	return nil
}

type certificateEditRepo struct{ s *Store }

func (r *certificateEditRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.CertificateEdit) ([]*types.CertificateEdit, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range rows {
		ensureID(&e.ID)
		cp := *e
		r.s.certEdits = append(r.s.certEdits, &cp)
	}
	return rows, nil
}

func (r *certificateEditRepo) GetByCertificateIDs(ctx context.Context, tx *gorm.DB, certificateIDs []uuid.UUID) ([]*types.CertificateEdit, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*types.CertificateEdit
	for _, certID := range certificateIDs {
		for _, e := range r.s.certEdits {
			if e.CertificateID == certID {
				cp := *e
				out = append(out, &cp)
			}
		}
	}
	sortStable(out, func(a, b *types.CertificateEdit) bool { return a.CreatedAt.Before(b.CreatedAt) })
	return out, nil
}
