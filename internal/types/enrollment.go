package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	EnrollmentTypeSelf  = "self"
	EnrollmentTypeAdmin = "admin"
	EnrollmentTypeGift  = "gift"
	EnrollmentTypeComp  = "comp"

	EnrollmentStatusPending = "pending"
	EnrollmentStatusActive  = "active"
	EnrollmentStatusExpired = "expired"
	EnrollmentStatusRevoked = "revoked"
)

// Enrollment links one user to one course. The (user_id, course_id) unique
// index is the concurrency-safety mechanism: concurrent creates surface as
// unique violations mapped to a conflict outcome.
type Enrollment struct {
	ID             uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID         uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_enrollment_user_course;column:user_id" json:"user_id"`
	CourseID       uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_enrollment_user_course;column:course_id" json:"course_id"`
	Progress       int        `gorm:"not null;default:0;column:progress" json:"progress"`
	Completed      bool       `gorm:"not null;default:false;column:completed" json:"completed"`
	CompletedAt    *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	EnrollmentType string     `gorm:"not null;default:'self';column:enrollment_type" json:"enrollment_type"`
	Status         string     `gorm:"not null;default:'active';index;column:status" json:"status"`
	Notes          string     `gorm:"column:notes;type:text" json:"notes,omitempty"`
	ExamScore      *float64   `gorm:"column:exam_score" json:"exam_score,omitempty"`
	ExamPassed     bool       `gorm:"not null;default:false;column:exam_passed" json:"exam_passed"`
	EnrolledAt     time.Time  `gorm:"not null;column:enrolled_at" json:"enrolled_at"`
	LastAccessedAt *time.Time `gorm:"column:last_accessed_at" json:"last_accessed_at,omitempty"`
	CreatedAt      time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (Enrollment) TableName() string { return "user_enrollments" }

// Terminal reports whether the status admits no further transitions.
func EnrollmentStatusTerminal(status string) bool {
	return status == EnrollmentStatusExpired || status == EnrollmentStatusRevoked
}

// EnrollmentStatusCanTransition encodes the status machine:
// pending -> active -> {expired, revoked}; active -> active is allowed so
// progress updates can restamp the row.
func EnrollmentStatusCanTransition(from, to string) bool {
	switch from {
	case EnrollmentStatusPending:
		return to == EnrollmentStatusActive || to == EnrollmentStatusExpired || to == EnrollmentStatusRevoked
	case EnrollmentStatusActive:
		return to == EnrollmentStatusActive || to == EnrollmentStatusExpired || to == EnrollmentStatusRevoked
	default:
		return false
	}
}
