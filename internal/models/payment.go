// internal/models/payment.go
package models

import "time"

// PaymentHistoryEntry is one "mark paid" action. Append-only audit log;
// rows are never mutated or deleted. PeriodCovered is the due date the
// payment closed, and (submission, period) is unique so the same period
// cannot be recorded twice.
type PaymentHistoryEntry struct {
	ID            string    `json:"id"`
	SubmissionID  string    `json:"submissionId"`
	Amount        float64   `json:"amount"`
	PaidAt        time.Time `json:"paidAt"`
	PeriodCovered string    `json:"periodCovered"`
}
