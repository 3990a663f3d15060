// internal/serial/registry.go
package serial

import (
	"context"
	"database/sql"
	"time"

	"policy-monitor/internal/common/config"
	apperrors "policy-monitor/internal/common/errors"
	"policy-monitor/internal/common/logger"
	"policy-monitor/internal/common/metrics"
	"policy-monitor/internal/models"
)

const defaultClaimAttempts = 3

// Registry manages the pre-provisioned serial-number pools. Pool serials
// are claimed with a single conditional UPDATE; the database row is the
// only serialization point, so two contenders for the same serial resolve
// to exactly one winner.
type Registry struct {
	db     *sql.DB
	cfg    config.SerialConfig
	logger logger.Logger
}

// NewRegistry creates a serial Registry backed by Postgres.
func NewRegistry(db *sql.DB, cfg config.SerialConfig, log logger.Logger) *Registry {
	return &Registry{
		db:     db,
		cfg:    cfg,
		logger: log,
	}
}

// BucketFor resolves the pool routing for a policy type. Manual policies
// bypass the pools entirely and accept caller-supplied serials.
func (r *Registry) BucketFor(policyType string) (bucket string, manual bool) {
	if r.cfg.IsManualPolicy(policyType) {
		return models.ManualBucket, true
	}
	return r.cfg.BucketFor(policyType), false
}

// PeekAvailable returns one unissued serial from the bucket without
// claiming it. An empty bucket is a hard error; there is no fallback
// across pools.
func (r *Registry) PeekAvailable(ctx context.Context, bucket string) (*models.Serial, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT serial_number, pool, is_used
		 FROM serial_numbers
		 WHERE pool = $1 AND is_used = false
		 ORDER BY serial_number
		 LIMIT 1`,
		bucket,
	)

	var s models.Serial
	if err := row.Scan(&s.SerialNumber, &s.Pool, &s.IsUsed); err != nil {
		if err == sql.ErrNoRows {
			metrics.SerialAllocations.WithLabelValues(bucket, "exhausted").Inc()
			return nil, apperrors.NewPoolExhaustedError(bucket)
		}
		return nil, apperrors.NewDatabaseError("peek serial", err)
	}
	return &s, nil
}

// Claim marks a specific pool serial as issued. The WHERE clause carries
// the is_used guard, so a serial taken between peek and claim surfaces as
// zero rows affected and maps to a conflict, never a silent double issue.
func (r *Registry) Claim(ctx context.Context, serialValue, bucket, actor string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE serial_numbers
		 SET is_used = true, used_at = $1, used_by = $2
		 WHERE serial_number = $3 AND pool = $4 AND is_used = false`,
		time.Now().UTC(), actor, serialValue, bucket,
	)
	if err != nil {
		return apperrors.NewDatabaseError("claim serial", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewDatabaseError("claim serial", err)
	}
	if affected == 0 {
		metrics.SerialAllocations.WithLabelValues(bucket, "conflict").Inc()
		return apperrors.NewSerialConflictError(serialValue)
	}

	metrics.SerialAllocations.WithLabelValues(bucket, "claimed").Inc()
	return nil
}

// ClaimFromPool claims the preferred serial, re-peeking the bucket on
// conflict until the attempt budget runs out. The preferred serial is
// usually what the caller showed the agent moments earlier; losing it to
// a concurrent claim is expected under load.
func (r *Registry) ClaimFromPool(ctx context.Context, bucket, preferred, actor string) (string, error) {
	attempts := r.cfg.ClaimAttempts
	if attempts <= 0 {
		attempts = defaultClaimAttempts
	}

	candidate := preferred
	for attempt := 1; attempt <= attempts; attempt++ {
		if candidate == "" {
			next, err := r.PeekAvailable(ctx, bucket)
			if err != nil {
				return "", err
			}
			candidate = next.SerialNumber
		}

		err := r.Claim(ctx, candidate, bucket, actor)
		if err == nil {
			return candidate, nil
		}
		if !apperrors.Is(err, apperrors.ErrCodeSerialConflict) {
			return "", err
		}

		r.logger.Warn("serial claim lost race, retrying", map[string]interface{}{
			"serial":  candidate,
			"bucket":  bucket,
			"attempt": attempt,
		})
		candidate = ""
	}

	return "", apperrors.NewSerialConflictError(preferred)
}

// ClaimManual records a caller-supplied serial as issued. Manual serials
// live outside the pools; re-submitting the same serial overwrites the
// audit fields (last writer wins).
func (r *Registry) ClaimManual(ctx context.Context, serialValue, actor string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO serial_numbers (serial_number, pool, is_used, used_at, used_by)
		 VALUES ($1, $2, true, $3, $4)
		 ON CONFLICT (serial_number)
		 DO UPDATE SET is_used = true, used_at = $3, used_by = $4`,
		serialValue, models.ManualBucket, time.Now().UTC(), actor,
	)
	if err != nil {
		return apperrors.NewDatabaseError("claim manual serial", err)
	}

	metrics.SerialAllocations.WithLabelValues(models.ManualBucket, "claimed").Inc()
	return nil
}

// Release flips a serial back to unissued. Called to undo a pool claim
// when submission creation fails downstream of the claim.
func (r *Registry) Release(ctx context.Context, serialValue string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE serial_numbers
		 SET is_used = false, used_at = NULL, used_by = ''
		 WHERE serial_number = $1`,
		serialValue,
	)
	if err != nil {
		return apperrors.NewDatabaseError("release serial", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewDatabaseError("release serial", err)
	}
	if affected == 0 {
		return apperrors.NewNotFoundError("serial", serialValue)
	}

	r.logger.Info("serial released", map[string]interface{}{"serial": serialValue})
	return nil
}

// List returns the full serial history, newest issues first, for the
// audit view.
func (r *Registry) List(ctx context.Context) ([]models.Serial, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT serial_number, pool, is_used, used_at, used_by
		 FROM serial_numbers
		 ORDER BY used_at DESC NULLS LAST, serial_number`,
	)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list serials", err)
	}
	defer rows.Close()

	var serials []models.Serial
	for rows.Next() {
		var s models.Serial
		var usedAt sql.NullTime
		var usedBy sql.NullString
		if err := rows.Scan(&s.SerialNumber, &s.Pool, &s.IsUsed, &usedAt, &usedBy); err != nil {
			return nil, apperrors.NewDatabaseError("scan serial", err)
		}
		if usedAt.Valid {
			t := usedAt.Time
			s.UsedAt = &t
		}
		s.UsedBy = usedBy.String
		serials = append(serials, s)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseError("list serials", err)
	}
	return serials, nil
}

// Load inserts unissued serials into a pool, skipping ones already
// present. Used by the serial-loader tool for pre-provisioning.
func (r *Registry) Load(ctx context.Context, pool string, serials []string) (int, error) {
	inserted := 0
	for _, s := range serials {
		res, err := r.db.ExecContext(ctx,
			`INSERT INTO serial_numbers (serial_number, pool, is_used)
			 VALUES ($1, $2, false)
			 ON CONFLICT (serial_number) DO NOTHING`,
			s, pool,
		)
		if err != nil {
			return inserted, apperrors.NewDatabaseError("load serial", err)
		}
		if affected, err := res.RowsAffected(); err == nil && affected > 0 {
			inserted++
		}
	}
	return inserted, nil
}
