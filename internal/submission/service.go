// internal/submission/service.go
package submission

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "policy-monitor/internal/common/errors"
	"policy-monitor/internal/common/logger"
	"policy-monitor/internal/common/metrics"
	"policy-monitor/internal/document"
	"policy-monitor/internal/models"
	"policy-monitor/internal/schedule"
)

// SerialAllocator is the slice of the serial registry the service needs.
type SerialAllocator interface {
	BucketFor(policyType string) (bucket string, manual bool)
	PeekAvailable(ctx context.Context, bucket string) (*models.Serial, error)
	ClaimFromPool(ctx context.Context, bucket, preferred, actor string) (string, error)
	ClaimManual(ctx context.Context, serialValue, actor string) error
	Release(ctx context.Context, serialValue string) error
}

// CatalogResolver resolves intake free-text onto catalog rows.
type CatalogResolver interface {
	ResolvePolicy(ctx context.Context, freeText string) (*models.PolicyCatalogEntry, error)
	ResolveOrCreateIntermediary(ctx context.Context, email, name, agencyName string) (*models.Intermediary, error)
	ResolveOrCreateCustomer(ctx context.Context, email, first, last string) (*models.Customer, error)
}

// DocumentPipeline uploads submitted files and renders the summary
// artifact.
type DocumentPipeline interface {
	Process(ctx context.Context, sub *models.Submission, files []document.File) ([]models.Attachment, []document.Failure, error)
}

// Notifier dispatches the head-office notification without blocking the
// request path.
type Notifier interface {
	Dispatch(sub *models.Submission)
}

// SubmissionStore is the persistence surface the service drives.
type SubmissionStore interface {
	Insert(ctx context.Context, sub *models.Submission) error
	GetByID(ctx context.Context, id string) (*models.Submission, error)
	GetBySerial(ctx context.Context, serial string) (*models.Submission, error)
	UpdateDocuments(ctx context.Context, sub *models.Submission) error
	UpdateStatus(ctx context.Context, id string, status models.Status, issuedAt *time.Time) error
	RecordPayment(ctx context.Context, entry *models.PaymentHistoryEntry, nextDue string) error
	ListPayments(ctx context.Context, submissionID string) ([]models.PaymentHistoryEntry, error)
	ListAll(ctx context.Context) ([]models.Submission, error)
	ListWithForms(ctx context.Context) ([]models.Submission, error)
	ListCustomers(ctx context.Context) ([]models.CustomerWithPolicies, error)
	GetCustomer(ctx context.Context, id string) (*models.CustomerWithPolicies, error)
}

// Service drives the submission lifecycle: intake, document attachment,
// status transitions, payment recording, and the dashboard read views.
type Service struct {
	store    SubmissionStore
	serials  SerialAllocator
	catalog  CatalogResolver
	pipeline DocumentPipeline
	notifier Notifier
	logger   logger.Logger
}

func NewService(
	store SubmissionStore,
	serials SerialAllocator,
	catalog CatalogResolver,
	pipeline DocumentPipeline,
	notifier Notifier,
	log logger.Logger,
) *Service {
	return &Service{
		store:    store,
		serials:  serials,
		catalog:  catalog,
		pipeline: pipeline,
		notifier: notifier,
		logger:   log,
	}
}

// CreateRequest carries the intake form fields.
type CreateRequest struct {
	Agency            string  `json:"agency"`
	SubmissionType    string  `json:"submissionType"`
	IntermediaryName  string  `json:"intermediaryName"`
	IntermediaryEmail string  `json:"intermediaryEmail"`
	ClientFirstName   string  `json:"clientFirstName"`
	ClientLastName    string  `json:"clientLastName"`
	ClientEmail       string  `json:"clientEmail"`
	PolicyType        string  `json:"policyType"`
	PremiumPaid       float64 `json:"premiumPaid"`
	ANP               float64 `json:"anp"`
	ModeOfPayment     string  `json:"modeOfPayment"`
	PolicyDate        string  `json:"policyDate"`
	SerialNumber      string  `json:"serialNumber"`
}

func (r *CreateRequest) validate() error {
	switch {
	case strings.TrimSpace(r.PolicyType) == "":
		return apperrors.NewValidationError("policyType is required", "")
	case strings.TrimSpace(r.Agency) == "":
		return apperrors.NewValidationError("agency is required", "")
	case strings.TrimSpace(r.IntermediaryEmail) == "":
		return apperrors.NewValidationError("intermediaryEmail is required", "")
	case strings.TrimSpace(r.ClientFirstName) == "" || strings.TrimSpace(r.ClientLastName) == "":
		return apperrors.NewValidationError("client first and last name are required", "")
	case !models.PaymentMode(r.ModeOfPayment).Valid():
		return apperrors.NewValidationError("unrecognized mode of payment", r.ModeOfPayment)
	case strings.TrimSpace(r.PolicyDate) == "":
		return apperrors.NewValidationError("policyDate is required", "")
	}
	return nil
}

// AvailableSerialResult is what the intake form shows before submit.
type AvailableSerialResult struct {
	RequiresSerial bool   `json:"requiresSerial"`
	SerialNumber   string `json:"serialNumber,omitempty"`
}

// AvailableSerial previews serial allocation for a policy type. Manual
// policies require the caller to supply a serial; pool policies get the
// next unissued one shown (but not yet claimed).
func (s *Service) AvailableSerial(ctx context.Context, policyType string) (*AvailableSerialResult, error) {
	entry, err := s.catalog.ResolvePolicy(ctx, policyType)
	if err != nil {
		return nil, err
	}

	bucket, manual := s.serials.BucketFor(entry.Name)
	if manual {
		return &AvailableSerialResult{RequiresSerial: true}, nil
	}

	next, err := s.serials.PeekAvailable(ctx, bucket)
	if err != nil {
		return nil, err
	}
	return &AvailableSerialResult{SerialNumber: next.SerialNumber}, nil
}

// Create runs the intake flow. Policy resolution happens before any
// serial claim so a bad policy type cannot burn a serial; if the insert
// fails after a pool claim the serial is released again so the pool does
// not leak.
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*models.Submission, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	policy, err := s.catalog.ResolvePolicy(ctx, req.PolicyType)
	if err != nil {
		return nil, err
	}

	mode := models.PaymentMode(req.ModeOfPayment)
	nextDue, err := schedule.NextDueDateString(req.PolicyDate, mode)
	if err != nil {
		return nil, err
	}

	intermediary, err := s.catalog.ResolveOrCreateIntermediary(ctx,
		req.IntermediaryEmail, req.IntermediaryName, req.Agency)
	if err != nil {
		return nil, err
	}

	customer, err := s.catalog.ResolveOrCreateCustomer(ctx,
		req.ClientEmail, req.ClientFirstName, req.ClientLastName)
	if err != nil {
		return nil, err
	}

	bucket, manual := s.serials.BucketFor(policy.Name)
	var serialValue string
	if manual {
		if strings.TrimSpace(req.SerialNumber) == "" {
			return nil, apperrors.NewValidationError("this policy type requires a manually supplied serial number", policy.Name)
		}
		serialValue = strings.TrimSpace(req.SerialNumber)
		if err := s.serials.ClaimManual(ctx, serialValue, intermediary.Email); err != nil {
			return nil, err
		}
	} else {
		serialValue, err = s.serials.ClaimFromPool(ctx, bucket, req.SerialNumber, intermediary.Email)
		if err != nil {
			return nil, err
		}
	}

	sub := &models.Submission{
		ID:                uuid.New().String(),
		PolicyID:          policy.ID,
		IntermediaryID:    intermediary.ID,
		Agency:            req.Agency,
		SubmissionType:    req.SubmissionType,
		IntermediaryName:  intermediary.Name,
		IntermediaryEmail: intermediary.Email,
		ClientFirstName:   req.ClientFirstName,
		ClientLastName:    req.ClientLastName,
		ClientName:        strings.TrimSpace(req.ClientFirstName + " " + req.ClientLastName),
		ClientEmail:       strings.ToLower(strings.TrimSpace(req.ClientEmail)),
		PolicyType:        policy.Name,
		PremiumPaid:       req.PremiumPaid,
		ANP:               req.ANP,
		ModeOfPayment:     mode,
		PolicyDate:        req.PolicyDate,
		NextPaymentDate:   nextDue,
		SerialNumber:      serialValue,
		Status:            models.StatusPending,
		Attachments:       []models.Attachment{},
	}
	if customer != nil {
		sub.CustomerID = customer.ID
	}

	if err := s.store.Insert(ctx, sub); err != nil {
		if !manual {
			if relErr := s.serials.Release(context.WithoutCancel(ctx), serialValue); relErr != nil {
				s.logger.WithError(relErr).Error("failed to release serial after insert failure", map[string]interface{}{
					"serial": serialValue,
				})
			}
		}
		return nil, err
	}

	metrics.SubmissionsCreated.WithLabelValues(policy.Name).Inc()
	s.logger.Info("submission created", map[string]interface{}{
		"id":     sub.ID,
		"serial": sub.SerialNumber,
		"policy": sub.PolicyType,
	})
	return sub, nil
}

// Details is the prior-submission lookup shown on the document form.
type Details struct {
	PolicyType    string             `json:"policyType"`
	ClientName    string             `json:"clientName"`
	ModeOfPayment models.PaymentMode `json:"modeOfPayment"`
	PolicyDate    string             `json:"policyDate"`
}

// DetailsBySerial returns the form prefill data for an existing serial.
func (s *Service) DetailsBySerial(ctx context.Context, serial string) (*Details, error) {
	sub, err := s.store.GetBySerial(ctx, serial)
	if err != nil {
		return nil, err
	}
	return &Details{
		PolicyType:    sub.PolicyType,
		ClientName:    sub.ClientName,
		ModeOfPayment: sub.ModeOfPayment,
		PolicyDate:    sub.PolicyDate,
	}, nil
}

// AttachRequest carries the document step's form fields and files.
type AttachRequest struct {
	FormType      string
	FormData      map[string]interface{}
	ModeOfPayment string
	PolicyDate    string
	Files         []document.File
}

// AttachDocuments runs the document step against an existing submission.
// Files that fail to upload are skipped and reported back, the rest are
// appended (never replacing earlier attachments), and the notification
// goes out asynchronously so its failure cannot roll back the persisted
// update.
func (s *Service) AttachDocuments(ctx context.Context, serial string, req *AttachRequest) (*models.Submission, []document.Failure, error) {
	sub, err := s.store.GetBySerial(ctx, serial)
	if err != nil {
		return nil, nil, err
	}

	if req.FormType != "" {
		sub.FormType = req.FormType
	}
	if req.FormData != nil {
		sub.FormData = req.FormData
	}
	if req.ModeOfPayment != "" {
		mode := models.PaymentMode(req.ModeOfPayment)
		if !mode.Valid() {
			return nil, nil, apperrors.NewValidationError("unrecognized mode of payment", req.ModeOfPayment)
		}
		sub.ModeOfPayment = mode
	}
	if req.PolicyDate != "" {
		sub.PolicyDate = req.PolicyDate
	}
	// Overrides shift the schedule anchor, so the due date is recomputed.
	if req.ModeOfPayment != "" || req.PolicyDate != "" {
		nextDue, err := schedule.NextDueDateString(sub.PolicyDate, sub.ModeOfPayment)
		if err != nil {
			return nil, nil, err
		}
		sub.NextPaymentDate = nextDue
	}

	uploaded, failures, err := s.pipeline.Process(ctx, sub, req.Files)
	if err != nil {
		return nil, nil, err
	}
	sub.Attachments = append(sub.Attachments, uploaded...)

	if err := s.store.UpdateDocuments(ctx, sub); err != nil {
		return nil, nil, err
	}

	s.notifier.Dispatch(sub)
	return sub, failures, nil
}

// SetStatus applies a lifecycle transition. Only Pending submissions can
// move, and only to Issued or Declined; Issued stamps issued_at exactly
// once.
func (s *Service) SetStatus(ctx context.Context, id string, target models.Status) (*models.Submission, error) {
	if target != models.StatusIssued && target != models.StatusDeclined {
		return nil, apperrors.NewValidationError("status must be Issued or Declined", string(target))
	}

	sub, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.Status.IsTerminal() {
		return nil, apperrors.NewStatusConflictError(string(sub.Status), string(target))
	}

	var issuedAt *time.Time
	if target == models.StatusIssued {
		now := time.Now().UTC()
		issuedAt = &now
	}

	if err := s.store.UpdateStatus(ctx, id, target, issuedAt); err != nil {
		return nil, err
	}

	sub.Status = target
	sub.IssuedAt = issuedAt
	s.logger.Info("submission status changed", map[string]interface{}{
		"id":     id,
		"status": string(target),
	})
	return sub, nil
}

// RecordPayment marks the current due period as paid and advances the
// schedule from that due date (not from today). A missing due date is a
// hard error; recording the same period twice is a conflict.
func (s *Service) RecordPayment(ctx context.Context, id string) (*models.Submission, error) {
	sub, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.NextPaymentDate == "" {
		return nil, apperrors.NewValidationError("submission has no payment schedule", id)
	}

	nextDue, err := schedule.NextDueDateString(sub.NextPaymentDate, sub.ModeOfPayment)
	if err != nil {
		return nil, err
	}

	entry := &models.PaymentHistoryEntry{
		ID:            uuid.New().String(),
		SubmissionID:  sub.ID,
		Amount:        sub.PremiumPaid,
		PaidAt:        time.Now().UTC(),
		PeriodCovered: sub.NextPaymentDate,
	}
	if err := s.store.RecordPayment(ctx, entry, nextDue); err != nil {
		return nil, err
	}

	metrics.PaymentsRecorded.Inc()
	sub.NextPaymentDate = nextDue
	sub.IsPaid = true
	return sub, nil
}

// PaymentHistory returns the recorded payments for a submission, oldest
// first. The submission must exist.
func (s *Service) PaymentHistory(ctx context.Context, id string) ([]models.PaymentHistoryEntry, error) {
	if _, err := s.store.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListPayments(ctx, id)
}

// ListAll returns every submission, newest first.
func (s *Service) ListAll(ctx context.Context) ([]models.Submission, error) {
	return s.store.ListAll(ctx)
}

// ListWithForms returns submissions that completed the document step.
func (s *Service) ListWithForms(ctx context.Context) ([]models.Submission, error) {
	return s.store.ListWithForms(ctx)
}

// ListCustomers returns the payment-board view.
func (s *Service) ListCustomers(ctx context.Context) ([]models.CustomerWithPolicies, error) {
	return s.store.ListCustomers(ctx)
}

// GetCustomer returns one customer with nested policies.
func (s *Service) GetCustomer(ctx context.Context, id string) (*models.CustomerWithPolicies, error) {
	return s.store.GetCustomer(ctx, id)
}
