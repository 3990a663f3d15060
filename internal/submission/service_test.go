package submission

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "policy-monitor/internal/common/errors"
	"policy-monitor/internal/common/logger"
	"policy-monitor/internal/document"
	"policy-monitor/internal/models"
)

// --- fakes ---

type fakeSerials struct {
	manualPolicies map[string]bool
	claimed        []string
	released       []string
	claimErr       error
}

func (f *fakeSerials) BucketFor(policyType string) (string, bool) {
	if f.manualPolicies[policyType] {
		return models.ManualBucket, true
	}
	if policyType == "Allianz Well" {
		return "Allianz Well", false
	}
	return "General", false
}

func (f *fakeSerials) PeekAvailable(_ context.Context, bucket string) (*models.Serial, error) {
	return &models.Serial{SerialNumber: "AZ-0001", Pool: bucket}, nil
}

func (f *fakeSerials) ClaimFromPool(_ context.Context, bucket, preferred, _ string) (string, error) {
	if f.claimErr != nil {
		return "", f.claimErr
	}
	serial := preferred
	if serial == "" {
		serial = "AZ-0001"
	}
	f.claimed = append(f.claimed, serial)
	return serial, nil
}

func (f *fakeSerials) ClaimManual(_ context.Context, serialValue, _ string) error {
	if f.claimErr != nil {
		return f.claimErr
	}
	f.claimed = append(f.claimed, serialValue)
	return nil
}

func (f *fakeSerials) Release(_ context.Context, serialValue string) error {
	f.released = append(f.released, serialValue)
	return nil
}

type fakeCatalog struct {
	policies map[string]string // free text -> canonical name
}

func (f *fakeCatalog) ResolvePolicy(_ context.Context, freeText string) (*models.PolicyCatalogEntry, error) {
	if name, ok := f.policies[freeText]; ok {
		return &models.PolicyCatalogEntry{ID: "pc-" + name, Name: name}, nil
	}
	return nil, apperrors.NewNotFoundError("policy type", freeText)
}

func (f *fakeCatalog) ResolveOrCreateIntermediary(_ context.Context, email, name, _ string) (*models.Intermediary, error) {
	return &models.Intermediary{ID: "in-1", Name: name, Email: email, AgencyID: "ag-1"}, nil
}

func (f *fakeCatalog) ResolveOrCreateCustomer(_ context.Context, email, first, last string) (*models.Customer, error) {
	if email == "" {
		return nil, nil
	}
	return &models.Customer{ID: "cu-1", FirstName: first, LastName: last, Email: email}, nil
}

type fakePipeline struct {
	attachments []models.Attachment
	failures    []document.Failure
	err         error
}

func (f *fakePipeline) Process(_ context.Context, _ *models.Submission, _ []document.File) ([]models.Attachment, []document.Failure, error) {
	return f.attachments, f.failures, f.err
}

type fakeNotifier struct {
	dispatched []*models.Submission
}

func (f *fakeNotifier) Dispatch(sub *models.Submission) {
	f.dispatched = append(f.dispatched, sub)
}

type memStore struct {
	bySerial   map[string]*models.Submission
	insertErr  error
	payments   []models.PaymentHistoryEntry
	paymentErr error
}

func newMemStore() *memStore {
	return &memStore{bySerial: map[string]*models.Submission{}}
}

func (m *memStore) Insert(_ context.Context, sub *models.Submission) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	cp := *sub
	m.bySerial[sub.SerialNumber] = &cp
	return nil
}

func (m *memStore) GetByID(_ context.Context, id string) (*models.Submission, error) {
	for _, sub := range m.bySerial {
		if sub.ID == id {
			cp := *sub
			return &cp, nil
		}
	}
	return nil, apperrors.NewNotFoundError("submission", id)
}

func (m *memStore) GetBySerial(_ context.Context, serial string) (*models.Submission, error) {
	if sub, ok := m.bySerial[serial]; ok {
		cp := *sub
		return &cp, nil
	}
	return nil, apperrors.NewNotFoundError("submission", serial)
}

func (m *memStore) UpdateDocuments(_ context.Context, sub *models.Submission) error {
	cp := *sub
	m.bySerial[sub.SerialNumber] = &cp
	return nil
}

func (m *memStore) UpdateStatus(_ context.Context, id string, status models.Status, issuedAt *time.Time) error {
	for _, sub := range m.bySerial {
		if sub.ID == id {
			sub.Status = status
			if issuedAt != nil {
				sub.IssuedAt = issuedAt
			}
			return nil
		}
	}
	return apperrors.NewNotFoundError("submission", id)
}

func (m *memStore) RecordPayment(_ context.Context, entry *models.PaymentHistoryEntry, nextDue string) error {
	if m.paymentErr != nil {
		return m.paymentErr
	}
	m.payments = append(m.payments, *entry)
	for _, sub := range m.bySerial {
		if sub.ID == entry.SubmissionID {
			sub.NextPaymentDate = nextDue
			sub.IsPaid = true
		}
	}
	return nil
}

func (m *memStore) ListPayments(_ context.Context, submissionID string) ([]models.PaymentHistoryEntry, error) {
	var out []models.PaymentHistoryEntry
	for _, p := range m.payments {
		if p.SubmissionID == submissionID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) ListAll(_ context.Context) ([]models.Submission, error)       { return nil, nil }
func (m *memStore) ListWithForms(_ context.Context) ([]models.Submission, error) { return nil, nil }
func (m *memStore) ListCustomers(_ context.Context) ([]models.CustomerWithPolicies, error) {
	return nil, nil
}
func (m *memStore) GetCustomer(_ context.Context, _ string) (*models.CustomerWithPolicies, error) {
	return nil, nil
}

// --- helpers ---

func newTestService(t *testing.T) (*Service, *memStore, *fakeSerials, *fakeNotifier, *fakePipeline) {
	t.Helper()
	store := newMemStore()
	serials := &fakeSerials{manualPolicies: map[string]bool{"Eazy Health": true}}
	catalog := &fakeCatalog{policies: map[string]string{
		"Allianz Well":  "Allianz Well",
		"allianz  well": "Allianz Well",
		"AZpire Growth": "AZpire Growth",
		"Eazy Health":   "Eazy Health",
	}}
	pipeline := &fakePipeline{}
	notifier := &fakeNotifier{}
	svc := NewService(store, serials, catalog, pipeline, notifier, logger.NewNoOpLogger())
	return svc, store, serials, notifier, pipeline
}

func validCreateRequest() *CreateRequest {
	return &CreateRequest{
		Agency:            "Caelum",
		SubmissionType:    "New Business",
		IntermediaryName:  "Jo Agent",
		IntermediaryEmail: "agent@caelum.example",
		ClientFirstName:   "Ana",
		ClientLastName:    "Cruz",
		ClientEmail:       "ana.cruz@example.com",
		PolicyType:        "AZpire Growth",
		PremiumPaid:       1200,
		ANP:               4800,
		ModeOfPayment:     "Quarterly",
		PolicyDate:        "2024-03-01",
	}
}

// --- Create ---

func TestCreate_PoolPolicy(t *testing.T) {
	svc, store, serials, _, _ := newTestService(t)

	sub, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)

	assert.NotEmpty(t, sub.ID)
	assert.Equal(t, "AZpire Growth", sub.PolicyType)
	assert.Equal(t, "AZ-0001", sub.SerialNumber)
	assert.Equal(t, models.StatusPending, sub.Status)
	assert.Equal(t, "Ana Cruz", sub.ClientName)
	assert.Equal(t, "2024-06-01", sub.NextPaymentDate)
	assert.Equal(t, "cu-1", sub.CustomerID)
	assert.Equal(t, []string{"AZ-0001"}, serials.claimed)
	assert.Contains(t, store.bySerial, "AZ-0001")
}

func TestCreate_UnknownPolicyClaimsNothing(t *testing.T) {
	svc, store, serials, _, _ := newTestService(t)

	req := validCreateRequest()
	req.PolicyType = "No Such Plan"
	_, err := svc.Create(context.Background(), req)

	assert.True(t, apperrors.Is(err, apperrors.ErrCodeNotFound))
	assert.Empty(t, serials.claimed)
	assert.Empty(t, store.bySerial)
}

func TestCreate_InsertFailureReleasesPoolSerial(t *testing.T) {
	svc, store, serials, _, _ := newTestService(t)
	store.insertErr = apperrors.NewDatabaseError("insert submission", errors.New("connection reset"))

	_, err := svc.Create(context.Background(), validCreateRequest())

	assert.True(t, apperrors.Is(err, apperrors.ErrCodeDatabaseFailed))
	assert.Equal(t, []string{"AZ-0001"}, serials.released)
	assert.Empty(t, store.bySerial)
}

func TestCreate_ManualPolicyRequiresSerial(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	req := validCreateRequest()
	req.PolicyType = "Eazy Health"
	_, err := svc.Create(context.Background(), req)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeValidationFailed))

	req.SerialNumber = "MAN-77"
	sub, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "MAN-77", sub.SerialNumber)
}

func TestCreate_UnknownPaymentModeRejected(t *testing.T) {
	svc, _, serials, _, _ := newTestService(t)

	req := validCreateRequest()
	req.ModeOfPayment = "Weekly"
	_, err := svc.Create(context.Background(), req)

	assert.True(t, apperrors.Is(err, apperrors.ErrCodeValidationFailed))
	assert.Empty(t, serials.claimed)
}

func TestCreate_NoCustomerLinkWithoutEmail(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	req := validCreateRequest()
	req.ClientEmail = ""
	sub, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, sub.CustomerID)
}

// --- AvailableSerial ---

func TestAvailableSerial(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	res, err := svc.AvailableSerial(context.Background(), "AZpire Growth")
	require.NoError(t, err)
	assert.False(t, res.RequiresSerial)
	assert.Equal(t, "AZ-0001", res.SerialNumber)

	res, err = svc.AvailableSerial(context.Background(), "Eazy Health")
	require.NoError(t, err)
	assert.True(t, res.RequiresSerial)
	assert.Empty(t, res.SerialNumber)
}

// --- DetailsBySerial ---

func TestDetailsBySerial(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	created, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)

	details, err := svc.DetailsBySerial(context.Background(), created.SerialNumber)
	require.NoError(t, err)
	assert.Equal(t, "AZpire Growth", details.PolicyType)
	assert.Equal(t, "Ana Cruz", details.ClientName)
	assert.Equal(t, models.ModeQuarterly, details.ModeOfPayment)

	_, err = svc.DetailsBySerial(context.Background(), "UNKNOWN")
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeNotFound))
}

// --- AttachDocuments ---

func TestAttachDocuments_AppendsAndNotifies(t *testing.T) {
	svc, store, _, notifier, pipeline := newTestService(t)

	created, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)

	pipeline.attachments = []models.Attachment{{FileName: "id.pdf", FilePath: created.ID + "/1_id.pdf"}}
	sub, failures, err := svc.AttachDocuments(context.Background(), created.SerialNumber, &AttachRequest{
		FormType: "NON_GAE",
		FormData: map[string]interface{}{"dob": "1990-05-04"},
	})
	require.NoError(t, err)
	assert.Empty(t, failures)
	assert.Len(t, sub.Attachments, 1)
	require.Len(t, notifier.dispatched, 1)

	// A second batch accumulates instead of replacing.
	pipeline.attachments = []models.Attachment{{FileName: "form.png", FilePath: created.ID + "/2_form.png"}}
	sub, _, err = svc.AttachDocuments(context.Background(), created.SerialNumber, &AttachRequest{})
	require.NoError(t, err)
	assert.Len(t, sub.Attachments, 2)
	assert.Equal(t, "NON_GAE", store.bySerial[created.SerialNumber].FormType)
}

func TestAttachDocuments_FailuresReportedWithSuccess(t *testing.T) {
	svc, _, _, _, pipeline := newTestService(t)

	created, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)

	pipeline.attachments = []models.Attachment{{FileName: "ok.png"}}
	pipeline.failures = []document.Failure{{FileName: "bad.txt", Reason: "unsupported content type"}}

	sub, failures, err := svc.AttachDocuments(context.Background(), created.SerialNumber, &AttachRequest{})
	require.NoError(t, err)
	assert.Len(t, sub.Attachments, 1)
	require.Len(t, failures, 1)
	assert.Equal(t, "bad.txt", failures[0].FileName)
}

func TestAttachDocuments_OverridesRecomputeSchedule(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	created, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)
	assert.Equal(t, "2024-06-01", created.NextPaymentDate)

	sub, _, err := svc.AttachDocuments(context.Background(), created.SerialNumber, &AttachRequest{
		ModeOfPayment: "Monthly",
		PolicyDate:    "2024-01-31",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ModeMonthly, sub.ModeOfPayment)
	assert.Equal(t, "2024-02-29", sub.NextPaymentDate)
}

// --- SetStatus ---

func TestSetStatus_IssueStampsTimestampOnce(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	created, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)

	sub, err := svc.SetStatus(context.Background(), created.ID, models.StatusIssued)
	require.NoError(t, err)
	assert.Equal(t, models.StatusIssued, sub.Status)
	require.NotNil(t, sub.IssuedAt)
}

func TestSetStatus_TerminalStatesAreFinal(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	created, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)

	_, err = svc.SetStatus(context.Background(), created.ID, models.StatusDeclined)
	require.NoError(t, err)

	_, err = svc.SetStatus(context.Background(), created.ID, models.StatusIssued)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeStatusConflict))
}

func TestSetStatus_RejectsPendingAsTarget(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	created, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)

	_, err = svc.SetStatus(context.Background(), created.ID, models.StatusPending)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeValidationFailed))
}

// --- RecordPayment ---

func TestRecordPayment_AdvancesFromCurrentDueDate(t *testing.T) {
	svc, store, _, _, _ := newTestService(t)

	created, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)
	assert.Equal(t, "2024-06-01", created.NextPaymentDate)

	sub, err := svc.RecordPayment(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-09-01", sub.NextPaymentDate)
	assert.True(t, sub.IsPaid)

	require.Len(t, store.payments, 1)
	assert.Equal(t, "2024-06-01", store.payments[0].PeriodCovered)
	assert.Equal(t, 1200.0, store.payments[0].Amount)

	history, err := svc.PaymentHistory(context.Background(), created.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "2024-06-01", history[0].PeriodCovered)
}

func TestPaymentHistory_UnknownSubmission(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	_, err := svc.PaymentHistory(context.Background(), "missing")
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeNotFound))
}

func TestRecordPayment_NoScheduleIsAnError(t *testing.T) {
	svc, store, _, _, _ := newTestService(t)

	created, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)
	store.bySerial[created.SerialNumber].NextPaymentDate = ""

	_, err = svc.RecordPayment(context.Background(), created.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeValidationFailed))
}

func TestRecordPayment_DuplicatePeriodConflicts(t *testing.T) {
	svc, store, _, _, _ := newTestService(t)

	created, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)
	store.paymentErr = apperrors.NewPaymentConflictError(created.ID, "2024-06-01")

	_, err = svc.RecordPayment(context.Background(), created.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodePaymentConflict))
}
