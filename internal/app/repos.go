package app

import (
	"gorm.io/gorm"

	"github.com/coursebridge/coursebridge-backend/internal/data/repos"
	"github.com/coursebridge/coursebridge-backend/internal/data/repos/memory"
	"github.com/coursebridge/coursebridge-backend/internal/platform/logger"
)

type Repos struct {
	User            repos.UserRepo
	Profile         repos.ProfileRepo
	UserToken       repos.UserTokenRepo
	Course          repos.CourseRepo
	Enrollment      repos.EnrollmentRepo
	Exam            repos.ExamRepo
	ExamQuestion    repos.ExamQuestionRepo
	ExamAttempt     repos.ExamAttemptRepo
	ExamAnswer      repos.ExamAnswerRepo
	Certificate     repos.CertificateRepo
	CertificateEdit repos.CertificateEditRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:            repos.NewUserRepo(db, log),
		Profile:         repos.NewProfileRepo(db, log),
		UserToken:       repos.NewUserTokenRepo(db, log),
		Course:          repos.NewCourseRepo(db, log),
		Enrollment:      repos.NewEnrollmentRepo(db, log),
		Exam:            repos.NewExamRepo(db, log),
		ExamQuestion:    repos.NewExamQuestionRepo(db, log),
		ExamAttempt:     repos.NewExamAttemptRepo(db, log),
		ExamAnswer:      repos.NewExamAnswerRepo(db, log),
		Certificate:     repos.NewCertificateRepo(db, log),
		CertificateEdit: repos.NewCertificateEditRepo(db, log),
	}
}

func wireMemoryRepos(store *memory.Store, log *logger.Logger) Repos {
	log.Info("Wiring in-memory repos...")
	return Repos{
		User:            store.Users(),
		Profile:         store.Profiles(),
		UserToken:       store.UserTokens(),
		Course:          store.Courses(),
		Enrollment:      store.Enrollments(),
		Exam:            store.Exams(),
		ExamQuestion:    store.ExamQuestions(),
		ExamAttempt:     store.ExamAttempts(),
		ExamAnswer:      store.ExamAnswers(),
		Certificate:     store.Certificates(),
		CertificateEdit: store.CertificateEdits(),
	}
}
