// internal/submission/store.go
package submission

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"

	apperrors "policy-monitor/internal/common/errors"
	"policy-monitor/internal/models"
)

const submissionColumns = `
	id, policy_id, intermediary_id, customer_id, serial_number, agency,
	submission_type, intermediary_name, intermediary_email,
	client_first_name, client_last_name, client_name, client_email,
	policy_type, premium_paid, anp, mode_of_payment, policy_date,
	next_payment_date, status, form_type, form_data, attachments,
	is_paid, created_at, updated_at, issued_at`

// Store is the submissions repository. JSON columns (form_data,
// attachments) are marshalled here so the service layer only sees Go
// values.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Insert persists a freshly created submission. The caller has already
// claimed the serial; the unique constraint on serial_number is the
// one-submission-per-serial backstop.
func (s *Store) Insert(ctx context.Context, sub *models.Submission) error {
	formData, err := marshalJSONB(sub.FormData)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	attachments, err := json.Marshal(sub.Attachments)
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	now := time.Now().UTC()
	sub.CreatedAt = now
	sub.UpdatedAt = now

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO submissions (
			id, policy_id, intermediary_id, customer_id, serial_number, agency,
			submission_type, intermediary_name, intermediary_email,
			client_first_name, client_last_name, client_name, client_email,
			policy_type, premium_paid, anp, mode_of_payment, policy_date,
			next_payment_date, status, form_data, attachments, is_paid,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, nullif($4, ''), $5, $6,
			$7, $8, $9,
			$10, $11, $12, nullif($13, ''),
			$14, $15, $16, $17, $18,
			nullif($19, ''), $20, $21, $22, $23,
			$24, $25
		)`,
		sub.ID, sub.PolicyID, sub.IntermediaryID, sub.CustomerID, sub.SerialNumber, sub.Agency,
		sub.SubmissionType, sub.IntermediaryName, sub.IntermediaryEmail,
		sub.ClientFirstName, sub.ClientLastName, sub.ClientName, sub.ClientEmail,
		sub.PolicyType, sub.PremiumPaid, sub.ANP, string(sub.ModeOfPayment), sub.PolicyDate,
		sub.NextPaymentDate, string(sub.Status), formData, attachments, sub.IsPaid,
		sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewSerialConflictError(sub.SerialNumber)
		}
		return apperrors.NewDatabaseError("insert submission", err)
	}
	return nil
}

// GetByID fetches one submission by primary key.
func (s *Store) GetByID(ctx context.Context, id string) (*models.Submission, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT`+submissionColumns+` FROM submissions WHERE id = $1`, id)
	sub, err := scanSubmission(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("submission", id)
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("get submission", err)
	}
	return sub, nil
}

// GetBySerial fetches one submission by its serial number.
func (s *Store) GetBySerial(ctx context.Context, serial string) (*models.Submission, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT`+submissionColumns+` FROM submissions WHERE serial_number = $1`, serial)
	sub, err := scanSubmission(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("submission", serial)
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("get submission by serial", err)
	}
	return sub, nil
}

// UpdateDocuments persists the document-step fields: form type and data,
// the grown attachments list, and the display overrides for payment mode
// and policy dates.
func (s *Store) UpdateDocuments(ctx context.Context, sub *models.Submission) error {
	formData, err := marshalJSONB(sub.FormData)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	attachments, err := json.Marshal(sub.Attachments)
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	sub.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE submissions
		 SET form_type = nullif($1, ''), form_data = $2, attachments = $3,
		     mode_of_payment = $4, policy_date = $5,
		     next_payment_date = nullif($6, ''), updated_at = $7
		 WHERE id = $8`,
		sub.FormType, formData, attachments,
		string(sub.ModeOfPayment), sub.PolicyDate,
		sub.NextPaymentDate, sub.UpdatedAt, sub.ID,
	)
	if err != nil {
		return apperrors.NewDatabaseError("update submission documents", err)
	}
	return requireOneRow(res, "submission", sub.ID)
}

// UpdateStatus writes the new lifecycle state. issuedAt is non-nil only
// for the Pending to Issued transition.
func (s *Store) UpdateStatus(ctx context.Context, id string, status models.Status, issuedAt *time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE submissions
		 SET status = $1, issued_at = COALESCE($2, issued_at), updated_at = $3
		 WHERE id = $4`,
		string(status), issuedAt, time.Now().UTC(), id,
	)
	if err != nil {
		return apperrors.NewDatabaseError("update submission status", err)
	}
	return requireOneRow(res, "submission", id)
}

// RecordPayment appends the history row and advances the due date in one
// transaction. The unique (submission_id, period_covered) constraint
// turns a double record of the same period into a conflict instead of a
// second row.
func (s *Store) RecordPayment(ctx context.Context, entry *models.PaymentHistoryEntry, nextDue string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewDatabaseError("begin payment tx", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO payment_history (id, submission_id, amount, paid_at, period_covered)
		 VALUES ($1, $2, $3, $4, $5)`,
		entry.ID, entry.SubmissionID, entry.Amount, entry.PaidAt, entry.PeriodCovered,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewPaymentConflictError(entry.SubmissionID, entry.PeriodCovered)
		}
		return apperrors.NewDatabaseError("insert payment history", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE submissions
		 SET next_payment_date = $1, is_paid = true, updated_at = $2
		 WHERE id = $3`,
		nextDue, time.Now().UTC(), entry.SubmissionID,
	)
	if err != nil {
		return apperrors.NewDatabaseError("advance due date", err)
	}
	if err := requireOneRow(res, "submission", entry.SubmissionID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewDatabaseError("commit payment tx", err)
	}
	return nil
}

// ListPayments returns the payment history for a submission, oldest
// first.
func (s *Store) ListPayments(ctx context.Context, submissionID string) ([]models.PaymentHistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, submission_id, amount, paid_at, period_covered
		 FROM payment_history WHERE submission_id = $1
		 ORDER BY period_covered`,
		submissionID,
	)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list payments", err)
	}
	defer rows.Close()

	var entries []models.PaymentHistoryEntry
	for rows.Next() {
		var e models.PaymentHistoryEntry
		if err := rows.Scan(&e.ID, &e.SubmissionID, &e.Amount, &e.PaidAt, &e.PeriodCovered); err != nil {
			return nil, apperrors.NewDatabaseError("scan payment", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseError("list payments", err)
	}
	return entries, nil
}

// ListAll returns every submission, newest first.
func (s *Store) ListAll(ctx context.Context) ([]models.Submission, error) {
	return s.list(ctx,
		`SELECT`+submissionColumns+` FROM submissions ORDER BY created_at DESC`)
}

// ListWithForms returns submissions that completed the document step,
// most recently updated first.
func (s *Store) ListWithForms(ctx context.Context) ([]models.Submission, error) {
	return s.list(ctx,
		`SELECT`+submissionColumns+` FROM submissions
		 WHERE form_type IS NOT NULL ORDER BY updated_at DESC`)
}

// ListCustomers returns every customer with their linked submissions
// nested, for the payment board.
func (s *Store) ListCustomers(ctx context.Context) ([]models.CustomerWithPolicies, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, first_name, last_name, email, created_at
		 FROM customers ORDER BY created_at DESC`)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list customers", err)
	}
	defer rows.Close()

	var customers []models.Customer
	for rows.Next() {
		var c models.Customer
		if err := rows.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.CreatedAt); err != nil {
			return nil, apperrors.NewDatabaseError("scan customer", err)
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseError("list customers", err)
	}

	out := make([]models.CustomerWithPolicies, 0, len(customers))
	for _, c := range customers {
		policies, err := s.list(ctx,
			`SELECT`+submissionColumns+` FROM submissions
			 WHERE customer_id = $1 ORDER BY created_at DESC`, c.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, models.CustomerWithPolicies{Customer: c, Policies: policies})
	}
	return out, nil
}

// GetCustomer returns one customer with nested submissions.
func (s *Store) GetCustomer(ctx context.Context, id string) (*models.CustomerWithPolicies, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, first_name, last_name, email, created_at
		 FROM customers WHERE id = $1`, id)

	var c models.Customer
	if err := row.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NewNotFoundError("customer", id)
		}
		return nil, apperrors.NewDatabaseError("get customer", err)
	}

	policies, err := s.list(ctx,
		`SELECT`+submissionColumns+` FROM submissions
		 WHERE customer_id = $1 ORDER BY created_at DESC`, c.ID)
	if err != nil {
		return nil, err
	}
	return &models.CustomerWithPolicies{Customer: c, Policies: policies}, nil
}

func (s *Store) list(ctx context.Context, query string, args ...interface{}) ([]models.Submission, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list submissions", err)
	}
	defer rows.Close()

	subs := []models.Submission{}
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, apperrors.NewDatabaseError("scan submission", err)
		}
		subs = append(subs, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseError("list submissions", err)
	}
	return subs, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSubmission(row rowScanner) (*models.Submission, error) {
	var (
		sub         models.Submission
		customerID  sql.NullString
		clientEmail sql.NullString
		nextDue     sql.NullString
		formType    sql.NullString
		formData    []byte
		attachments []byte
		issuedAt    sql.NullTime
		mode        string
		status      string
	)

	err := row.Scan(
		&sub.ID, &sub.PolicyID, &sub.IntermediaryID, &customerID, &sub.SerialNumber, &sub.Agency,
		&sub.SubmissionType, &sub.IntermediaryName, &sub.IntermediaryEmail,
		&sub.ClientFirstName, &sub.ClientLastName, &sub.ClientName, &clientEmail,
		&sub.PolicyType, &sub.PremiumPaid, &sub.ANP, &mode, &sub.PolicyDate,
		&nextDue, &status, &formType, &formData, &attachments,
		&sub.IsPaid, &sub.CreatedAt, &sub.UpdatedAt, &issuedAt,
	)
	if err != nil {
		return nil, err
	}

	sub.CustomerID = customerID.String
	sub.ClientEmail = clientEmail.String
	sub.NextPaymentDate = nextDue.String
	sub.FormType = formType.String
	sub.ModeOfPayment = models.PaymentMode(mode)
	sub.Status = models.Status(status)
	if issuedAt.Valid {
		t := issuedAt.Time
		sub.IssuedAt = &t
	}
	if len(formData) > 0 {
		if err := json.Unmarshal(formData, &sub.FormData); err != nil {
			return nil, err
		}
	}
	if len(attachments) > 0 {
		if err := json.Unmarshal(attachments, &sub.Attachments); err != nil {
			return nil, err
		}
	}
	return &sub, nil
}

func marshalJSONB(m map[string]interface{}) ([]byte, error) {
	if m == nil {
		m = map[string]interface{}{}
	}
	return json.Marshal(m)
}

func requireOneRow(res sql.Result, resource, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewDatabaseError("rows affected", err)
	}
	if affected == 0 {
		return apperrors.NewNotFoundError(resource, id)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}
