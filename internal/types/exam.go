package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Exam struct {
	ID           uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	CourseID     uuid.UUID `gorm:"type:uuid;not null;index;column:course_id" json:"course_id"`
	Title        string    `gorm:"not null;column:title" json:"title"`
	Description  string    `gorm:"column:description;type:text" json:"description"`
	PassingScore float64   `gorm:"not null;default:70;column:passing_score" json:"passing_score"`
	// AttemptLimit nil means unlimited attempts.
	AttemptLimit *int `gorm:"column:attempt_limit" json:"attempt_limit,omitempty"`

	Questions []ExamQuestion `gorm:"constraint:OnDelete:CASCADE;foreignKey:ExamID;references:ID" json:"questions,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Exam) TableName() string { return "exams" }

type ExamQuestion struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ExamID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_exam_question_position;column:exam_id" json:"exam_id"`
	Position int       `gorm:"not null;uniqueIndex:idx_exam_question_position;column:position" json:"position"`
	Prompt   string    `gorm:"not null;column:prompt;type:text" json:"prompt"`
	// Options is a JSON array of {key, text} objects.
	Options datatypes.JSON `gorm:"column:options" json:"options"`
	// CorrectOptions is a JSON array of option keys; graded clients never see
	// it.
	CorrectOptions datatypes.JSON `gorm:"column:correct_options" json:"-"`
	CreatedAt      time.Time      `gorm:"not null;default:now()" json:"created_at"`
}

func (ExamQuestion) TableName() string { return "exam_questions" }
