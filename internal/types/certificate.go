package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Certificate is an issued credential. Recipient name and course title are
// denormalized at issuance time so later catalog edits do not rewrite
// history. Rows are never deleted; revocation sets the flag and reason.
type Certificate struct {
	ID           uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID       uuid.UUID `gorm:"type:uuid;not null;index;column:user_id" json:"user_id"`
	CourseID     uuid.UUID `gorm:"type:uuid;not null;index;column:course_id" json:"course_id"`
	EnrollmentID uuid.UUID `gorm:"type:uuid;not null;index;column:enrollment_id" json:"enrollment_id"`

	RecipientName     string    `gorm:"not null;column:recipient_name" json:"recipient_name"`
	CourseTitle       string    `gorm:"not null;column:course_title" json:"course_title"`
	CertificateNumber string    `gorm:"uniqueIndex;not null;column:certificate_number" json:"certificate_number"`
	CreditType        string    `gorm:"not null;index;column:credit_type" json:"credit_type"`
	CreditsEarned     float64   `gorm:"not null;column:credits_earned" json:"credits_earned"`
	CompletionDate    time.Time `gorm:"not null;column:completion_date" json:"completion_date"`
	ExamScore         float64   `gorm:"not null;column:exam_score" json:"exam_score"`

	Revoked       bool           `gorm:"not null;default:false;index;column:revoked" json:"revoked"`
	RevokedReason string         `gorm:"column:revoked_reason" json:"revoked_reason,omitempty"`
	RevokedAt     *time.Time     `gorm:"column:revoked_at" json:"revoked_at,omitempty"`
	CustomData    datatypes.JSON `gorm:"column:custom_data" json:"custom_data,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Certificate) TableName() string { return "certificates" }

// CertificateEdit is one append-only audit entry for a post-issuance field
// edit.
type CertificateEdit struct {
	ID            uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	CertificateID uuid.UUID `gorm:"type:uuid;not null;index;column:certificate_id" json:"certificate_id"`
	EditedBy      uuid.UUID `gorm:"type:uuid;not null;column:edited_by" json:"edited_by"`
	FieldName     string    `gorm:"not null;column:field_name" json:"field_name"`
	OldValue      string    `gorm:"column:old_value;type:text" json:"old_value"`
	NewValue      string    `gorm:"column:new_value;type:text" json:"new_value"`
	EditReason    string    `gorm:"column:edit_reason;type:text" json:"edit_reason,omitempty"`
	CreatedAt     time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (CertificateEdit) TableName() string { return "certificate_edits" }
