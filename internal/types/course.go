package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Course struct {
	ID          uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SKU         string    `gorm:"uniqueIndex;not null;column:sku" json:"sku"`
	Title       string    `gorm:"column:title;not null" json:"title"`
	Description string    `gorm:"column:description;type:text" json:"description"`
	Author      string    `gorm:"column:author" json:"author"`
	MainSubject string    `gorm:"column:main_subject" json:"main_subject"`
	Active      bool      `gorm:"column:active;not null;default:true;index" json:"active"`

	Prices  []CoursePrice  `gorm:"constraint:OnDelete:CASCADE;foreignKey:CourseID;references:ID" json:"prices,omitempty"`
	Credits []CourseCredit `gorm:"constraint:OnDelete:CASCADE;foreignKey:CourseID;references:ID" json:"credits,omitempty"`
	States  []CourseState  `gorm:"constraint:OnDelete:CASCADE;foreignKey:CourseID;references:ID" json:"states,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Course) TableName() string { return "courses" }

// CoursePrice is one purchasable format of a course (e.g. online, hardcopy).
type CoursePrice struct {
	ID         uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	CourseID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_course_price_format;column:course_id" json:"course_id"`
	Format     string    `gorm:"not null;uniqueIndex:idx_course_price_format;column:format" json:"format"`
	PriceCents int64     `gorm:"not null;column:price_cents" json:"price_cents"`
	CreatedAt  time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (CoursePrice) TableName() string { return "course_prices" }

// CourseCredit is one continuing-education credit configuration. One
// certificate is minted per credit type when an exam is passed.
type CourseCredit struct {
	ID           uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	CourseID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_course_credit_type;column:course_id" json:"course_id"`
	CreditType   string    `gorm:"not null;uniqueIndex:idx_course_credit_type;column:credit_type" json:"credit_type"`
	Amount       float64   `gorm:"not null;column:amount" json:"amount"`
	CourseNumber string    `gorm:"column:course_number" json:"course_number,omitempty"`
	CreatedAt    time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (CourseCredit) TableName() string { return "course_credits" }

// CourseState marks a US state the course is approved for.
type CourseState struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	CourseID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_course_state_code;column:course_id" json:"course_id"`
	StateCode string    `gorm:"not null;uniqueIndex:idx_course_state_code;column:state_code" json:"state_code"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (CourseState) TableName() string { return "course_states" }
