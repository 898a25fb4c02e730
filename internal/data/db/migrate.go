package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/coursebridge/coursebridge-backend/internal/types"
)

// AutoMigrateAll creates or updates every table the service owns. Unique
// indexes declared on the models double as the concurrency-safety mechanism
// for enrollment dedupe, answer upserts and certificate numbers, so the
// migration must run before the service accepts traffic.
func (s *PostgresService) AutoMigrateAll() error {
	return AutoMigrate(s.db)
}

func AutoMigrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(
		&types.User{},
		&types.Profile{},
		&types.UserToken{},

		&types.Course{},
		&types.CoursePrice{},
		&types.CourseCredit{},
		&types.CourseState{},

		&types.Enrollment{},

		&types.Exam{},
		&types.ExamQuestion{},
		&types.ExamAttempt{},
		&types.ExamAnswer{},

		&types.Certificate{},
		&types.CertificateEdit{},
	); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return nil
}
