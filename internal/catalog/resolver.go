// internal/catalog/resolver.go
package catalog

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"

	apperrors "policy-monitor/internal/common/errors"
	"policy-monitor/internal/common/logger"
	"policy-monitor/internal/models"
)

// Resolver maps free-text intake fields onto catalog rows: policy names
// onto the canonical catalog, intermediaries onto agency-scoped records,
// customers onto email-keyed records.
type Resolver struct {
	db     *sql.DB
	logger logger.Logger
}

func NewResolver(db *sql.DB, log logger.Logger) *Resolver {
	return &Resolver{db: db, logger: log}
}

// normalizePolicyName folds case, trims, and collapses interior runs of
// whitespace so "  allianz   well " matches "Allianz Well".
func normalizePolicyName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// ResolvePolicy matches free-text against the policy catalog. Exact name
// first, then one normalized scan; first match wins; a miss is terminal,
// there is no catalog write path from intake.
func (r *Resolver) ResolvePolicy(ctx context.Context, freeText string) (*models.PolicyCatalogEntry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name FROM policy_catalog WHERE name = $1`,
		freeText,
	)

	var entry models.PolicyCatalogEntry
	err := row.Scan(&entry.ID, &entry.Name)
	if err == nil {
		return &entry, nil
	}
	if err != sql.ErrNoRows {
		return nil, apperrors.NewDatabaseError("resolve policy", err)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM policy_catalog ORDER BY name`)
	if err != nil {
		return nil, apperrors.NewDatabaseError("resolve policy", err)
	}
	defer rows.Close()

	want := normalizePolicyName(freeText)
	for rows.Next() {
		if err := rows.Scan(&entry.ID, &entry.Name); err != nil {
			return nil, apperrors.NewDatabaseError("scan policy", err)
		}
		if normalizePolicyName(entry.Name) == want {
			return &entry, nil
		}
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseError("resolve policy", err)
	}

	return nil, apperrors.NewNotFoundError("policy type", freeText)
}

// ResolveAgency looks up an agency by exact name. Agencies are seeded
// reference data; an unknown name is a caller error, not a create.
func (r *Resolver) ResolveAgency(ctx context.Context, name string) (*models.Agency, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name FROM agencies WHERE name = $1`,
		name,
	)

	var a models.Agency
	if err := row.Scan(&a.ID, &a.Name); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NewNotFoundError("agency", name)
		}
		return nil, apperrors.NewDatabaseError("resolve agency", err)
	}
	return &a, nil
}

// ResolveOrCreateIntermediary finds the intermediary by email, creating
// one under the named agency on first sight. The agency must resolve;
// there is no fallback to some arbitrary row.
func (r *Resolver) ResolveOrCreateIntermediary(ctx context.Context, email, name, agencyName string) (*models.Intermediary, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, apperrors.NewValidationError("intermediary email is required", "")
	}

	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, email, agency_id FROM intermediaries WHERE email = $1`,
		email,
	)

	var in models.Intermediary
	err := row.Scan(&in.ID, &in.Name, &in.Email, &in.AgencyID)
	if err == nil {
		return &in, nil
	}
	if err != sql.ErrNoRows {
		return nil, apperrors.NewDatabaseError("resolve intermediary", err)
	}

	agency, err := r.ResolveAgency(ctx, agencyName)
	if err != nil {
		return nil, err
	}

	in = models.Intermediary{
		ID:       uuid.New().String(),
		Name:     name,
		Email:    email,
		AgencyID: agency.ID,
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO intermediaries (id, name, email, agency_id) VALUES ($1, $2, $3, $4)`,
		in.ID, in.Name, in.Email, in.AgencyID,
	)
	if err != nil {
		return nil, apperrors.NewDatabaseError("create intermediary", err)
	}

	r.logger.Info("intermediary created", map[string]interface{}{
		"email":  in.Email,
		"agency": agency.Name,
	})
	return &in, nil
}

// ResolveOrCreateCustomer finds or creates the customer by lowercased
// email. An empty email means the submission carries no customer link;
// (nil, nil) signals that to the caller.
func (r *Resolver) ResolveOrCreateCustomer(ctx context.Context, email, first, last string) (*models.Customer, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, nil
	}

	row := r.db.QueryRowContext(ctx,
		`SELECT id, first_name, last_name, email, created_at FROM customers WHERE email = $1`,
		email,
	)

	var c models.Customer
	err := row.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.CreatedAt)
	if err == nil {
		return &c, nil
	}
	if err != sql.ErrNoRows {
		return nil, apperrors.NewDatabaseError("resolve customer", err)
	}

	c = models.Customer{
		ID:        uuid.New().String(),
		FirstName: first,
		LastName:  last,
		Email:     email,
	}
	row = r.db.QueryRowContext(ctx,
		`INSERT INTO customers (id, first_name, last_name, email)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at`,
		c.ID, c.FirstName, c.LastName, c.Email,
	)
	if err := row.Scan(&c.CreatedAt); err != nil {
		return nil, apperrors.NewDatabaseError("create customer", err)
	}

	r.logger.Info("customer created", map[string]interface{}{"email": c.Email})
	return &c, nil
}
