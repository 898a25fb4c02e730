package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coursebridge/coursebridge-backend/internal/data/db"
	"github.com/coursebridge/coursebridge-backend/internal/data/repos"
	"github.com/coursebridge/coursebridge-backend/internal/domain/workflow"
	"github.com/coursebridge/coursebridge-backend/internal/platform/logger"
	"github.com/coursebridge/coursebridge-backend/internal/requestdata"
	"github.com/coursebridge/coursebridge-backend/internal/types"
)

// DefaultPassingScore applies when an exam does not configure its own
// threshold.
const DefaultPassingScore = 70.0

const certNumberAttempts = 5

type AutoGenerateInput struct {
	UserID       uuid.UUID
	CourseID     uuid.UUID
	EnrollmentID uuid.UUID
	ExamScore    float64
	PassingScore float64
}

type EditCertificateInput struct {
	CertificateID uuid.UUID `json:"certificate_id"`
	FieldName     string    `json:"field_name"`
	NewValue      string    `json:"new_value"`
	EditReason    string    `json:"edit_reason,omitempty"`
}

// CertificateView pairs a certificate with its course for list endpoints.
type CertificateView struct {
	Certificate *types.Certificate `json:"certificate"`
	Course      *types.Course      `json:"course,omitempty"`
}

type CertificateService interface {
	// AutoGenerate mints one certificate per credit type configured on the
	// course when the score clears the passing threshold. Runs on the caller's
	// transaction so attempt completion and minting commit together.
	AutoGenerate(ctx context.Context, tx *gorm.DB, in AutoGenerateInput) ([]*types.Certificate, error)
	// GenerateForEnrollment re-runs minting from the enrollment's recorded
	// exam result, for admins repairing a revocation or a missed completion.
	GenerateForEnrollment(ctx context.Context, enrollmentID uuid.UUID) ([]*types.Certificate, error)
	GetByID(ctx context.Context, id uuid.UUID) (*types.Certificate, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*types.Certificate, error)
	ListAll(ctx context.Context, f repos.CertificateFilter) ([]*CertificateView, error)
	Edit(ctx context.Context, in EditCertificateInput) (*types.Certificate, error)
	Revoke(ctx context.Context, certificateID uuid.UUID, reason string) (*types.Certificate, error)
	ListEdits(ctx context.Context, certificateID uuid.UUID) ([]*types.CertificateEdit, error)
}

type certificateService struct {
	log         *logger.Logger
	txRunner    db.TxRunner
	certs       repos.CertificateRepo
	edits       repos.CertificateEditRepo
	users       repos.UserRepo
	courses     repos.CourseRepo
	enrollments repos.EnrollmentRepo
}

func NewCertificateService(
	baseLog *logger.Logger,
	txRunner db.TxRunner,
	certs repos.CertificateRepo,
	edits repos.CertificateEditRepo,
	users repos.UserRepo,
	courses repos.CourseRepo,
	enrollments repos.EnrollmentRepo,
) CertificateService {
	serviceLog := baseLog.With("service", "CertificateService")
	return &certificateService{
		log:         serviceLog,
		txRunner:    txRunner,
		certs:       certs,
		edits:       edits,
		users:       users,
		courses:     courses,
		enrollments: enrollments,
	}
}

func (s *certificateService) AutoGenerate(ctx context.Context, tx *gorm.DB, in AutoGenerateInput) ([]*types.Certificate, error) {
	const op = "CertificateService.AutoGenerate"

	passing := in.PassingScore
	if passing <= 0 {
		passing = DefaultPassingScore
	}
	if in.ExamScore < passing {
		return []*types.Certificate{}, nil
	}

	users, err := s.users.GetByIDs(ctx, tx, []uuid.UUID{in.UserID})
	if err != nil {
		return nil, workflow.Wrap(workflow.CodeInternal, op, err)
	}
	if len(users) == 0 {
		return nil, workflow.NewError(workflow.CodeNotFound, op, "user not found", nil)
	}
	courses, err := s.courses.GetByIDs(ctx, tx, []uuid.UUID{in.CourseID})
	if err != nil {
		return nil, workflow.Wrap(workflow.CodeInternal, op, err)
	}
	if len(courses) == 0 {
		return nil, workflow.NewError(workflow.CodeNotFound, op, "course not found", nil)
	}
	user, course := users[0], courses[0]

	now := time.Now().UTC()
	var created []*types.Certificate
	for _, credit := range course.Credits {
		existing, err := s.certs.List(ctx, tx, repos.CertificateFilter{
			UserID:     in.UserID,
			CourseID:   in.CourseID,
			CreditType: credit.CreditType,
		})
		if err != nil {
			return nil, workflow.Wrap(workflow.CodeInternal, op, err)
		}
		if hasLiveCertificate(existing) {
			continue
		}

		cert, err := s.mintOne(ctx, tx, user, course, credit, in, now)
		if err != nil {
			return nil, err
		}
		created = append(created, cert)
	}

	if len(created) > 0 {
		s.log.Info("certificates generated",
			"user_id", in.UserID, "course_id", in.CourseID, "count", len(created))
	}
	if created == nil {
		created = []*types.Certificate{}
	}
	return created, nil
}

func (s *certificateService) GenerateForEnrollment(ctx context.Context, enrollmentID uuid.UUID) ([]*types.Certificate, error) {
	const op = "CertificateService.GenerateForEnrollment"

	if !requestdata.IsAdmin(ctx) {
		return nil, workflow.NewError(workflow.CodeForbidden, op, "admin privileges required", nil)
	}
	if enrollmentID == uuid.Nil {
		return nil, workflow.NewError(workflow.CodeValidation, op, "enrollment id required", nil)
	}

	enrollments, err := s.enrollments.GetByIDs(ctx, nil, []uuid.UUID{enrollmentID})
	if err != nil {
		return nil, workflow.Wrap(workflow.CodeInternal, op, err)
	}
	if len(enrollments) == 0 {
		return nil, workflow.NewError(workflow.CodeNotFound, op, "enrollment not found", nil)
	}
	enrollment := enrollments[0]
	if !enrollment.ExamPassed || enrollment.ExamScore == nil {
		return nil, workflow.NewError(workflow.CodeInvariantViolation, op,
			"enrollment has no passing exam result", nil)
	}

	var created []*types.Certificate
	err = s.txRunner.InTx(ctx, func(tx *gorm.DB) error {
		var genErr error
		// The enrollment's pass flag is the authority here; the recorded
		// score doubles as the threshold so minting cannot re-fail it.
		created, genErr = s.AutoGenerate(ctx, tx, AutoGenerateInput{
			UserID:       enrollment.UserID,
			CourseID:     enrollment.CourseID,
			EnrollmentID: enrollment.ID,
			ExamScore:    *enrollment.ExamScore,
			PassingScore: *enrollment.ExamScore,
		})
		return genErr
	})
	if err != nil {
		if workflow.CodeOf(err) != "" {
			return nil, err
		}
		return nil, workflow.Wrap(workflow.CodeInternal, op, err)
	}
	return created, nil
}

func hasLiveCertificate(certs []*types.Certificate) bool {
	for _, c := range certs {
		if !c.Revoked {
			return true
		}
	}
	return false
}

// mintOne inserts a certificate, regenerating the number on the rare
// collision of the random suffix.
func (s *certificateService) mintOne(
	ctx context.Context,
	tx *gorm.DB,
	user *types.User,
	course *types.Course,
	credit types.CourseCredit,
	in AutoGenerateInput,
	now time.Time,
) (*types.Certificate, error) {
	const op = "CertificateService.mintOne"

	var lastErr error
	for i := 0; i < certNumberAttempts; i++ {
		cert := &types.Certificate{
			UserID:            in.UserID,
			CourseID:          in.CourseID,
			EnrollmentID:      in.EnrollmentID,
			RecipientName:     user.DisplayName(),
			CourseTitle:       course.Title,
			CertificateNumber: newCertificateNumber(now),
			CreditType:        credit.CreditType,
			CreditsEarned:     credit.Amount,
			CompletionDate:    now,
			ExamScore:         in.ExamScore,
		}
		if _, err := s.certs.Create(ctx, tx, []*types.Certificate{cert}); err != nil {
			if repos.IsDuplicate(err) {
				lastErr = err
				continue
			}
			return nil, workflow.Wrap(workflow.CodeInternal, op, err)
		}
		return cert, nil
	}
	return nil, workflow.Wrap(workflow.CodeInternal, op,
		fmt.Errorf("could not allocate a unique certificate number: %w", lastErr))
}

func newCertificateNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
	return fmt.Sprintf("CERT-%d-%s", now.Year(), suffix)
}

func (s *certificateService) GetByID(ctx context.Context, id uuid.UUID) (*types.Certificate, error) {
	const op = "CertificateService.GetByID"

	rd := requestdata.GetRequestData(ctx)
	if rd == nil {
		return nil, workflow.NewError(workflow.CodeUnauthorized, op, "authentication required", nil)
	}

	cert, err := s.getCertificate(ctx, op, id)
	if err != nil {
		return nil, err
	}
	if cert.UserID != rd.UserID && !requestdata.IsAdmin(ctx) {
		return nil, workflow.NewError(workflow.CodeForbidden, op, "not the certificate owner", nil)
	}
	return cert, nil
}

func (s *certificateService) ListByUser(ctx context.Context, userID uuid.UUID) ([]*types.Certificate, error) {
	const op = "CertificateService.ListByUser"

	rd := requestdata.GetRequestData(ctx)
	if rd == nil {
		return nil, workflow.NewError(workflow.CodeUnauthorized, op, "authentication required", nil)
	}
	if userID == uuid.Nil {
		userID = rd.UserID
	}
	if userID != rd.UserID && !requestdata.IsAdmin(ctx) {
		return nil, workflow.NewError(workflow.CodeForbidden, op, "cannot list another user's certificates", nil)
	}

	certs, err := s.certs.GetByUserIDs(ctx, nil, []uuid.UUID{userID})
	if err != nil {
		return nil, workflow.Wrap(workflow.CodeInternal, op, err)
	}
	return certs, nil
}

func (s *certificateService) ListAll(ctx context.Context, f repos.CertificateFilter) ([]*CertificateView, error) {
	const op = "CertificateService.ListAll"

	if !requestdata.IsAdmin(ctx) {
		return nil, workflow.NewError(workflow.CodeForbidden, op, "admin privileges required", nil)
	}

	certs, err := s.certs.List(ctx, nil, f)
	if err != nil {
		return nil, workflow.Wrap(workflow.CodeInternal, op, err)
	}

	courseIDs := make([]uuid.UUID, 0, len(certs))
	seen := map[uuid.UUID]bool{}
	for _, c := range certs {
		if !seen[c.CourseID] {
			seen[c.CourseID] = true
			courseIDs = append(courseIDs, c.CourseID)
		}
	}
	courses, err := s.courses.GetByIDs(ctx, nil, courseIDs)
	if err != nil {
		return nil, workflow.Wrap(workflow.CodeInternal, op, err)
	}
	byID := make(map[uuid.UUID]*types.Course, len(courses))
	for _, c := range courses {
		byID[c.ID] = c
	}

	views := make([]*CertificateView, 0, len(certs))
	for _, c := range certs {
		views = append(views, &CertificateView{Certificate: c, Course: byID[c.CourseID]})
	}
	return views, nil
}

// editableCertificateFields maps the bounded set of editable fields to their
// column parser. Anything else is rejected.
var editableCertificateFields = map[string]struct{}{
	"recipient_name":  {},
	"course_title":    {},
	"exam_score":      {},
	"credits_earned":  {},
	"completion_date": {},
}

func (s *certificateService) Edit(ctx context.Context, in EditCertificateInput) (*types.Certificate, error) {
	const op = "CertificateService.Edit"

	rd := requestdata.GetRequestData(ctx)
	if rd == nil {
		return nil, workflow.NewError(workflow.CodeUnauthorized, op, "authentication required", nil)
	}
	if !requestdata.IsAdmin(ctx) {
		return nil, workflow.NewError(workflow.CodeForbidden, op, "admin privileges required", nil)
	}
	if _, ok := editableCertificateFields[in.FieldName]; !ok {
		return nil, workflow.NewError(workflow.CodeValidation, op,
			fmt.Sprintf("field %q is not editable", in.FieldName), nil)
	}

	cert, err := s.getCertificate(ctx, op, in.CertificateID)
	if err != nil {
		return nil, err
	}
	if cert.Revoked {
		return nil, workflow.NewConflict(op, "certificate is revoked and immutable", cert.ID)
	}

	newValue, oldValue, err := parseCertificateField(op, cert, in.FieldName, in.NewValue)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	err = s.txRunner.InTx(ctx, func(tx *gorm.DB) error {
		if err := s.certs.Update(ctx, tx, cert.ID, map[string]interface{}{
			in.FieldName: newValue,
			"updated_at": now,
		}); err != nil {
			return err
		}
		edit := &types.CertificateEdit{
			CertificateID: cert.ID,
			EditedBy:      rd.UserID,
			FieldName:     in.FieldName,
			OldValue:      oldValue,
			NewValue:      in.NewValue,
			EditReason:    in.EditReason,
		}
		_, err := s.edits.Create(ctx, tx, []*types.CertificateEdit{edit})
		return err
	})
	if err != nil {
		return nil, workflow.Wrap(workflow.CodeInternal, op, err)
	}

	s.log.Info("certificate edited", "certificate_id", cert.ID, "field", in.FieldName, "edited_by", rd.UserID)
	return s.getCertificate(ctx, op, cert.ID)
}

// parseCertificateField converts the incoming string value to the column's
// type and formats the current value for the audit row.
func parseCertificateField(op string, cert *types.Certificate, field, raw string) (interface{}, string, error) {
	switch field {
	case "recipient_name":
		if strings.TrimSpace(raw) == "" {
			return nil, "", workflow.NewError(workflow.CodeValidation, op, "recipient name cannot be empty", nil)
		}
		return raw, cert.RecipientName, nil
	case "course_title":
		if strings.TrimSpace(raw) == "" {
			return nil, "", workflow.NewError(workflow.CodeValidation, op, "course title cannot be empty", nil)
		}
		return raw, cert.CourseTitle, nil
	case "exam_score":
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v > 100 {
			return nil, "", workflow.NewError(workflow.CodeValidation, op, "exam score must be a number between 0 and 100", err)
		}
		return v, formatFloat(cert.ExamScore), nil
	case "credits_earned":
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			return nil, "", workflow.NewError(workflow.CodeValidation, op, "credits earned must be a non-negative number", err)
		}
		return v, formatFloat(cert.CreditsEarned), nil
	case "completion_date":
		v, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, "", workflow.NewError(workflow.CodeValidation, op, "completion date must be YYYY-MM-DD", err)
		}
		return v, cert.CompletionDate.Format("2006-01-02"), nil
	}
	return nil, "", workflow.NewError(workflow.CodeValidation, op, fmt.Sprintf("field %q is not editable", field), nil)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (s *certificateService) Revoke(ctx context.Context, certificateID uuid.UUID, reason string) (*types.Certificate, error) {
	const op = "CertificateService.Revoke"

	rd := requestdata.GetRequestData(ctx)
	if rd == nil {
		return nil, workflow.NewError(workflow.CodeUnauthorized, op, "authentication required", nil)
	}
	if !requestdata.IsAdmin(ctx) {
		return nil, workflow.NewError(workflow.CodeForbidden, op, "admin privileges required", nil)
	}
	if strings.TrimSpace(reason) == "" {
		return nil, workflow.NewError(workflow.CodeValidation, op, "revocation reason required", nil)
	}

	cert, err := s.getCertificate(ctx, op, certificateID)
	if err != nil {
		return nil, err
	}
	if cert.Revoked {
		return nil, workflow.NewConflict(op, "certificate already revoked", cert.ID)
	}

	now := time.Now().UTC()
	err = s.txRunner.InTx(ctx, func(tx *gorm.DB) error {
		if err := s.certs.Update(ctx, tx, cert.ID, map[string]interface{}{
			"revoked":        true,
			"revoked_reason": reason,
			"revoked_at":     now,
			"updated_at":     now,
		}); err != nil {
			return err
		}
		edit := &types.CertificateEdit{
			CertificateID: cert.ID,
			EditedBy:      rd.UserID,
			FieldName:     "revoked",
			OldValue:      "false",
			NewValue:      "true",
			EditReason:    reason,
		}
		_, err := s.edits.Create(ctx, tx, []*types.CertificateEdit{edit})
		return err
	})
	if err != nil {
		return nil, workflow.Wrap(workflow.CodeInternal, op, err)
	}

	s.log.Info("certificate revoked", "certificate_id", cert.ID, "revoked_by", rd.UserID)
	return s.getCertificate(ctx, op, cert.ID)
}

func (s *certificateService) ListEdits(ctx context.Context, certificateID uuid.UUID) ([]*types.CertificateEdit, error) {
	const op = "CertificateService.ListEdits"

	if !requestdata.IsAdmin(ctx) {
		return nil, workflow.NewError(workflow.CodeForbidden, op, "admin privileges required", nil)
	}
	if _, err := s.getCertificate(ctx, op, certificateID); err != nil {
		return nil, err
	}

	edits, err := s.edits.GetByCertificateIDs(ctx, nil, []uuid.UUID{certificateID})
	if err != nil {
		return nil, workflow.Wrap(workflow.CodeInternal, op, err)
	}
	return edits, nil
}

func (s *certificateService) getCertificate(ctx context.Context, op string, id uuid.UUID) (*types.Certificate, error) {
	certs, err := s.certs.GetByIDs(ctx, nil, []uuid.UUID{id})
	if err != nil {
		return nil, workflow.Wrap(workflow.CodeInternal, op, err)
	}
	if len(certs) == 0 {
		return nil, workflow.NewError(workflow.CodeNotFound, op, "certificate not found", nil)
	}
	return certs[0], nil
}
