// internal/models/submission.go
package models

import "time"

// Status is the submission lifecycle state. Pending is the only initial
// state; Issued and Declined are terminal.
type Status string

const (
	StatusPending  Status = "Pending"
	StatusIssued   Status = "Issued"
	StatusDeclined Status = "Declined"
)

// IsTerminal reports whether no further status transition is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusIssued || s == StatusDeclined
}

// PaymentMode is the premium payment frequency chosen at intake.
type PaymentMode string

const (
	ModeMonthly    PaymentMode = "Monthly"
	ModeQuarterly  PaymentMode = "Quarterly"
	ModeSemiAnnual PaymentMode = "Semi-Annual"
	ModeAnnual     PaymentMode = "Annual"
)

// Valid reports whether the mode is one of the four supported frequencies.
func (m PaymentMode) Valid() bool {
	switch m {
	case ModeMonthly, ModeQuarterly, ModeSemiAnnual, ModeAnnual:
		return true
	}
	return false
}

// Attachment describes one stored document belonging to a submission.
type Attachment struct {
	FileName string `json:"fileName"`
	FilePath string `json:"filePath"`
	FileURL  string `json:"fileUrl"`
	FileSize int64  `json:"fileSize"`
	MimeType string `json:"mimeType"`
}

// Submission is the aggregate root of one client's policy application.
// Serial and policy catalog entries are referenced, never owned; the
// attachments list is append-only across the intake and document steps.
type Submission struct {
	ID                string                 `json:"id"`
	PolicyID          string                 `json:"policyId,omitempty"`
	IntermediaryID    string                 `json:"intermediaryId,omitempty"`
	CustomerID        string                 `json:"customerId,omitempty"`
	Agency            string                 `json:"agency"`
	SubmissionType    string                 `json:"submissionType"`
	IntermediaryName  string                 `json:"intermediaryName"`
	IntermediaryEmail string                 `json:"intermediaryEmail"`
	ClientFirstName   string                 `json:"clientFirstName"`
	ClientLastName    string                 `json:"clientLastName"`
	ClientName        string                 `json:"clientName"`
	ClientEmail       string                 `json:"clientEmail,omitempty"`
	PolicyType        string                 `json:"policyType"`
	PremiumPaid       float64                `json:"premiumPaid"`
	ANP               float64                `json:"anp"`
	ModeOfPayment     PaymentMode            `json:"modeOfPayment"`
	PolicyDate        string                 `json:"policyDate"`
	NextPaymentDate   string                 `json:"nextPaymentDate,omitempty"`
	SerialNumber      string                 `json:"serialNumber"`
	Status            Status                 `json:"status"`
	FormType          string                 `json:"formType,omitempty"`
	FormData          map[string]interface{} `json:"formData,omitempty"`
	Attachments       []Attachment           `json:"attachments"`
	IsPaid            bool                   `json:"isPaid"`
	CreatedAt         time.Time              `json:"createdAt"`
	UpdatedAt         time.Time              `json:"updatedAt"`
	IssuedAt          *time.Time             `json:"issuedAt,omitempty"`
}
