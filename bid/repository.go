package bid

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound = errors.New("bid: not found")
	// ErrDuplicateBid rejects a re-submission with unchanged terms.
	ErrDuplicateBid = errors.New("bid: identical bid already placed")
	// ErrAlreadyConfirmed rejects edits to a bid the patron accepted.
	// Renegotiation goes through the extension history instead.
	ErrAlreadyConfirmed = errors.New("bid: bid already confirmed")
)

const recordColumns = `id, post_id, auditor_email, patron_email, status, is_rejected,
	estimated_amount, estimated_delivery, history, created_at, updated_at`

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanRecord(row pgx.Row) (Record, error) {
	var r Record
	err := row.Scan(
		&r.ID, &r.PostID, &r.AuditorEmail, &r.PatronEmail, &r.Status, &r.IsRejected,
		&r.EstimatedAmount, &r.EstimatedDelivery, &r.History, &r.CreatedAt, &r.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("bid: scan record: %w", err)
	}
	return r, nil
}

// Place inserts the auditor's bid, or overwrites the amount and delivery
// of their existing PENDING bid on the same post. Re-submitting unchanged
// terms fails with ErrDuplicateBid; a confirmed bid cannot be replaced.
func (r *Repository) Place(ctx context.Context, auditorEmail, patronEmail string, params PlaceParams) (Record, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("bid: begin place: %w", err)
	}
	defer tx.Rollback(ctx)

	const lockQuery = `
		SELECT ` + recordColumns + `
		FROM bids
		WHERE post_id = $1 AND auditor_email = $2
		FOR UPDATE`

	existing, err := scanRecord(tx.QueryRow(ctx, lockQuery, params.PostID, auditorEmail))
	switch {
	case errors.Is(err, ErrNotFound):
		const insertQuery = `
			INSERT INTO bids (id, post_id, auditor_email, patron_email, status, estimated_amount, estimated_delivery)
			VALUES ($1, $2, $3, $4, 'PENDING', $5, $6)
			RETURNING ` + recordColumns

		placed, err := scanRecord(tx.QueryRow(ctx, insertQuery,
			uuid.NewString(), params.PostID, auditorEmail, patronEmail,
			params.EstimatedAmount, params.EstimatedDelivery))
		if err != nil {
			return Record{}, fmt.Errorf("bid: insert: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return Record{}, fmt.Errorf("bid: commit place: %w", err)
		}
		return placed, nil
	case err != nil:
		return Record{}, err
	}

	if existing.Status == StatusConfirm {
		return Record{}, ErrAlreadyConfirmed
	}
	if existing.EstimatedAmount == params.EstimatedAmount && existing.EstimatedDelivery == params.EstimatedDelivery {
		return Record{}, ErrDuplicateBid
	}

	const updateQuery = `
		UPDATE bids
		SET estimated_amount = $3, estimated_delivery = $4, updated_at = now()
		WHERE post_id = $1 AND auditor_email = $2 AND status = 'PENDING'
		RETURNING ` + recordColumns

	updated, err := scanRecord(tx.QueryRow(ctx, updateQuery,
		params.PostID, auditorEmail, params.EstimatedAmount, params.EstimatedDelivery))
	if err != nil {
		return Record{}, fmt.Errorf("bid: update terms: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Record{}, fmt.Errorf("bid: commit place: %w", err)
	}
	return updated, nil
}

func (r *Repository) GetByID(ctx context.Context, bidID string) (Record, error) {
	const query = `SELECT ` + recordColumns + ` FROM bids WHERE id = $1`
	return scanRecord(r.pool.QueryRow(ctx, query, bidID))
}

// ListByPost returns every bid on the post, rejected ones included.
func (r *Repository) ListByPost(ctx context.Context, postID int64) ([]Record, error) {
	const query = `SELECT ` + recordColumns + ` FROM bids WHERE post_id = $1 ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, postID)
	if err != nil {
		return nil, fmt.Errorf("bid: list by post: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetConfirmed returns the accepted bid on the post, if any.
func (r *Repository) GetConfirmed(ctx context.Context, postID int64) (Record, error) {
	const query = `
		SELECT ` + recordColumns + `
		FROM bids
		WHERE post_id = $1 AND status = 'CONFIRM' AND NOT is_rejected`

	return scanRecord(r.pool.QueryRow(ctx, query, postID))
}

// Accept moves the patron's chosen bid from PENDING to CONFIRM.
func (r *Repository) Accept(ctx context.Context, bidID, patronEmail string) (Record, error) {
	const query = `
		UPDATE bids
		SET status = 'CONFIRM', updated_at = now()
		WHERE id = $1 AND patron_email = $2 AND status = 'PENDING' AND NOT is_rejected
		RETURNING ` + recordColumns

	return scanRecord(r.pool.QueryRow(ctx, query, bidID, patronEmail))
}

// Reject marks a PENDING bid rejected. The row stays for the audit trail.
func (r *Repository) Reject(ctx context.Context, bidID, patronEmail string) (Record, error) {
	const query = `
		UPDATE bids
		SET is_rejected = TRUE, updated_at = now()
		WHERE id = $1 AND patron_email = $2 AND status = 'PENDING'
		RETURNING ` + recordColumns

	return scanRecord(r.pool.QueryRow(ctx, query, bidID, patronEmail))
}

// Delete withdraws the auditor's own PENDING bid.
func (r *Repository) Delete(ctx context.Context, postID int64, auditorEmail string) error {
	const query = `DELETE FROM bids WHERE post_id = $1 AND auditor_email = $2 AND status = 'PENDING'`

	tag, err := r.pool.Exec(ctx, query, postID, auditorEmail)
	if err != nil {
		return fmt.Errorf("bid: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendExtension appends a renegotiation proposal to the confirmed bid's
// history. Existing entries are never rewritten.
func (r *Repository) AppendExtension(ctx context.Context, postID int64, auditorEmail string, ext Extension) (Record, error) {
	const query = `
		UPDATE bids
		SET history = history || jsonb_build_array(jsonb_build_object(
			'reason', $3::text,
			'proposedAmount', $4::bigint,
			'proposedDeliveryTime', $5::bigint)),
		    updated_at = now()
		WHERE post_id = $1 AND auditor_email = $2 AND status = 'CONFIRM' AND NOT is_rejected
		RETURNING ` + recordColumns

	return scanRecord(r.pool.QueryRow(ctx, query,
		postID, auditorEmail, ext.Reason, ext.ProposedAmount, ext.ProposedDeliveryTime))
}

// SetTerms rewrites the confirmed bid's amount and delivery after the
// patron accepts a proposal.
func (r *Repository) SetTerms(ctx context.Context, postID int64, amount, delivery int64) (Record, error) {
	const query = `
		UPDATE bids
		SET estimated_amount = $2, estimated_delivery = $3, updated_at = now()
		WHERE post_id = $1 AND status = 'CONFIRM' AND NOT is_rejected
		RETURNING ` + recordColumns

	return scanRecord(r.pool.QueryRow(ctx, query, postID, amount, delivery))
}
