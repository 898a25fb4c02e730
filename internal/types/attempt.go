package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	AttemptStatusInProgress = "in_progress"
	AttemptStatusCompleted  = "completed"
)

type ExamAttempt struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID      uuid.UUID  `gorm:"type:uuid;not null;index:idx_attempt_user_exam;column:user_id" json:"user_id"`
	ExamID      uuid.UUID  `gorm:"type:uuid;not null;index:idx_attempt_user_exam;column:exam_id" json:"exam_id"`
	StartedAt   time.Time  `gorm:"not null;column:started_at" json:"started_at"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	Score       *float64   `gorm:"column:score" json:"score,omitempty"`
	Passed      bool       `gorm:"not null;default:false;column:passed" json:"passed"`
	Status      string     `gorm:"not null;default:'in_progress';column:status" json:"status"`
	CreatedAt   time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (ExamAttempt) TableName() string { return "exam_attempts" }

// ExamAnswer holds one learner's answer to one question within an attempt.
// The (attempt_id, question_id) unique index makes repeated submissions an
// update rather than a second row.
type ExamAnswer struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	AttemptID       uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_answer_attempt_question;column:attempt_id" json:"attempt_id"`
	QuestionID      uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_answer_attempt_question;column:question_id" json:"question_id"`
	SelectedOptions datatypes.JSON `gorm:"column:selected_options" json:"selected_options"`
	Correct         bool           `gorm:"not null;default:false;column:correct" json:"correct"`
	CreatedAt       time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (ExamAnswer) TableName() string { return "exam_answers" }
