// Package memory implements the repo interfaces against process-local maps.
// It is the second data-access backend next to Postgres: wired in via
// DATA_BACKEND=memory at startup and used by the service unit tests, so the
// workflows are testable without a live database. Uniqueness rules enforced
// by Postgres indexes are emulated here and surface as repos.ErrDuplicate.
package memory

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coursebridge/coursebridge-backend/internal/data/repos"
	"github.com/coursebridge/coursebridge-backend/internal/types"
)

type Store struct {
	mu sync.Mutex

	users       map[uuid.UUID]*types.User
	profiles    []*types.Profile
	tokens      []*types.UserToken
	courses     map[uuid.UUID]*types.Course
	deleted     map[uuid.UUID]bool
	enrollments map[uuid.UUID]*types.Enrollment
	exams       map[uuid.UUID]*types.Exam
	questions   map[uuid.UUID]*types.ExamQuestion
	attempts    map[uuid.UUID]*types.ExamAttempt
	answers     map[uuid.UUID]*types.ExamAnswer
	certs       map[uuid.UUID]*types.Certificate
	certEdits   []*types.CertificateEdit
}

func NewStore() *Store {
	return &Store{
		users:       map[uuid.UUID]*types.User{},
		courses:     map[uuid.UUID]*types.Course{},
		deleted:     map[uuid.UUID]bool{},
		enrollments: map[uuid.UUID]*types.Enrollment{},
		exams:       map[uuid.UUID]*types.Exam{},
		questions:   map[uuid.UUID]*types.ExamQuestion{},
		attempts:    map[uuid.UUID]*types.ExamAttempt{},
		answers:     map[uuid.UUID]*types.ExamAnswer{},
		certs:       map[uuid.UUID]*types.Certificate{},
	}
}

func (s *Store) Users() repos.UserRepo                       { return &userRepo{s} }
func (s *Store) Profiles() repos.ProfileRepo                 { return &profileRepo{s} }
func (s *Store) UserTokens() repos.UserTokenRepo             { return &userTokenRepo{s} }
func (s *Store) Courses() repos.CourseRepo                   { return &courseRepo{s} }
func (s *Store) Enrollments() repos.EnrollmentRepo           { return &enrollmentRepo{s} }
func (s *Store) Exams() repos.ExamRepo                       { return &examRepo{s} }
func (s *Store) ExamQuestions() repos.ExamQuestionRepo       { return &examQuestionRepo{s} }
func (s *Store) ExamAttempts() repos.ExamAttemptRepo         { return &examAttemptRepo{s} }
func (s *Store) ExamAnswers() repos.ExamAnswerRepo           { return &examAnswerRepo{s} }
func (s *Store) Certificates() repos.CertificateRepo         { return &certificateRepo{s} }
func (s *Store) CertificateEdits() repos.CertificateEditRepo { return &certificateEditRepo{s} }

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func notFoundIfZero(updated bool) error {
	if !updated {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func sortStable[T any](rows []T, less func(a, b T) bool) {
	sort.SliceStable(rows, func(i, j int) bool { return less(rows[i], rows[j]) })
}
