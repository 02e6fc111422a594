package post

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no post row matches the conditional update or
// lookup. For transitions this covers both "no such post" and "lost the
// compare-and-swap": either way the caller's precondition no longer holds.
var ErrNotFound = errors.New("post: not found")

const recordColumns = `
	post_id, patron_email, auditor_email, status::text, audit_types,
	github_url, description, social_link, offer_amount, estimated_delivery,
	current_audit_id, salt, tx_hash, extension_request, vote_id,
	report_files, dispute_reason, created_at, updated_at
`

// recordColumnsPrefixed qualifies the columns for updates that join bids,
// where post_id and estimated_delivery would otherwise be ambiguous.
const recordColumnsPrefixed = `
	p.post_id, p.patron_email, p.auditor_email, p.status::text, p.audit_types,
	p.github_url, p.description, p.social_link, p.offer_amount, p.estimated_delivery,
	p.current_audit_id, p.salt, p.tx_hash, p.extension_request, p.vote_id,
	p.report_files, p.dispute_reason, p.created_at, p.updated_at
`

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	err := row.Scan(
		&rec.PostID,
		&rec.PatronEmail,
		&rec.AuditorEmail,
		&rec.Status,
		&rec.AuditTypes,
		&rec.GithubURL,
		&rec.Description,
		&rec.SocialLink,
		&rec.OfferAmount,
		&rec.EstimatedDelivery,
		&rec.CurrentAuditID,
		&rec.Salt,
		&rec.TxHash,
		&rec.ExtensionRequest,
		&rec.VoteID,
		&rec.ReportFiles,
		&rec.DisputeReason,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("post: scan: %w", err)
	}
	return rec, nil
}

// Create inserts a PRE_REGISTRATION post. The post id comes from the posts
// sequence so identifiers are collision-free without client retries.
func (r *Repository) Create(ctx context.Context, patronEmail string, params RegisterParams) (Record, error) {
	const query = `
		INSERT INTO posts (
			patron_email, status, audit_types, github_url, description,
			social_link, offer_amount, estimated_delivery, salt
		)
		VALUES ($1, 'PRE_REGISTRATION', $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + recordColumns

	row := r.pool.QueryRow(ctx, query,
		patronEmail,
		params.AuditTypes,
		params.GithubURL,
		params.Description,
		params.SocialLink,
		params.OfferAmount,
		params.EstimatedDelivery,
		params.Salt,
	)
	rec, err := scanRecord(row)
	if err != nil {
		return Record{}, fmt.Errorf("post: create: %w", err)
	}
	return rec, nil
}

// GetByID fetches a post by its identifier.
func (r *Repository) GetByID(ctx context.Context, postID int64) (Record, error) {
	const query = `SELECT ` + recordColumns + ` FROM posts WHERE post_id = $1`
	return scanRecord(r.pool.QueryRow(ctx, query, postID))
}

// GetOwned fetches a post owned by the patron, optionally restricted to a
// set of statuses.
func (r *Repository) GetOwned(ctx context.Context, postID int64, patronEmail string, statuses ...Status) (Record, error) {
	query := `SELECT ` + recordColumns + ` FROM posts WHERE post_id = $1 AND patron_email = $2`
	args := []any{postID, patronEmail}
	if len(statuses) > 0 {
		query += ` AND status = ANY($3::post_status[])`
		args = append(args, statusList(statuses))
	}
	return scanRecord(r.pool.QueryRow(ctx, query, args...))
}

// Confirm applies the PRE_REGISTRATION -> PENDING transition keyed by the
// caller-supplied salt. Only one caller can win the swap.
func (r *Repository) Confirm(ctx context.Context, salt int64, txHash string, auditID int64) (Record, error) {
	const query = `
		UPDATE posts
		SET status = 'PENDING', tx_hash = $2, current_audit_id = $3, updated_at = now()
		WHERE salt = $1 AND status = 'PRE_REGISTRATION'
		RETURNING ` + recordColumns
	return scanRecord(r.pool.QueryRow(ctx, query, salt, txHash, auditID))
}

// SetInProgress applies PENDING -> IN_PROGRESS, copying the accepted bid's
// amount and delivery onto the post.
func (r *Repository) SetInProgress(ctx context.Context, postID int64, patronEmail string, salt int64, txHash string) (Record, error) {
	const query = `
		UPDATE posts p
		SET status = 'IN_PROGRESS',
		    tx_hash = $4,
		    offer_amount = b.estimated_amount,
		    estimated_delivery = b.estimated_delivery,
		    updated_at = now()
		FROM bids b
		WHERE p.post_id = $1
		  AND p.patron_email = $2
		  AND p.salt = $3
		  AND p.status = 'PENDING'
		  AND b.post_id = p.post_id
		  AND b.auditor_email = p.auditor_email
		  AND b.status IN ('PENDING', 'CONFIRM')
		RETURNING ` + recordColumnsPrefixed
	return scanRecord(r.pool.QueryRow(ctx, query, postID, patronEmail, salt, txHash))
}

// Finish applies SUBMITTED -> COMPLETED/FAILED.
func (r *Repository) Finish(ctx context.Context, postID int64, patronEmail string, salt int64, txHash string, target Status) (Record, error) {
	if target != StatusCompleted && target != StatusFailed {
		return Record{}, fmt.Errorf("post: finish: invalid target status %s", target)
	}
	const query = `
		UPDATE posts
		SET status = $5::post_status, tx_hash = $4, updated_at = now()
		WHERE post_id = $1 AND patron_email = $2 AND salt = $3 AND status = 'SUBMITTED'
		RETURNING ` + recordColumns
	return scanRecord(r.pool.QueryRow(ctx, query, postID, patronEmail, salt, txHash, target))
}

// FailAfterClaim applies PENDING/IN_PROGRESS -> FAILED once the escrow
// refund has been claimed.
func (r *Repository) FailAfterClaim(ctx context.Context, postID int64, patronEmail string) (Record, error) {
	const query = `
		UPDATE posts
		SET status = 'FAILED', updated_at = now()
		WHERE post_id = $1 AND patron_email = $2 AND status IN ('PENDING', 'IN_PROGRESS')
		RETURNING ` + recordColumns
	return scanRecord(r.pool.QueryRow(ctx, query, postID, patronEmail))
}

// SetAuditor records the accepted auditor and a fresh salt on a PENDING
// post. The auditor must actually have bid on the post.
func (r *Repository) SetAuditor(ctx context.Context, postID int64, patronEmail, auditorEmail string, salt int64) (Record, error) {
	const query = `
		UPDATE posts
		SET auditor_email = $3, salt = $4, updated_at = now()
		WHERE post_id = $1
		  AND patron_email = $2
		  AND status = 'PENDING'
		  AND EXISTS (
			SELECT 1 FROM bids WHERE post_id = $1 AND auditor_email = $3 AND NOT is_rejected
		  )
		RETURNING ` + recordColumns
	return scanRecord(r.pool.QueryRow(ctx, query, postID, patronEmail, auditorEmail, salt))
}

// UpdateSalt refreshes the correlation salt on a SUBMITTED post.
func (r *Repository) UpdateSalt(ctx context.Context, postID int64, patronEmail string, salt int64) (Record, error) {
	const query = `
		UPDATE posts
		SET salt = $3, updated_at = now()
		WHERE post_id = $1 AND patron_email = $2 AND status = 'SUBMITTED'
		RETURNING ` + recordColumns
	return scanRecord(r.pool.QueryRow(ctx, query, postID, patronEmail, salt))
}

// SetReportFiles attaches the auditor's report references while the
// engagement is IN_PROGRESS.
func (r *Repository) SetReportFiles(ctx context.Context, postID int64, auditorEmail string, salt int64, files []string) (Record, error) {
	const query = `
		UPDATE posts
		SET report_files = $4, salt = $3, updated_at = now()
		WHERE post_id = $1 AND auditor_email = $2 AND status = 'IN_PROGRESS'
		RETURNING ` + recordColumns
	return scanRecord(r.pool.QueryRow(ctx, query, postID, auditorEmail, salt, files))
}

// SetSubmitted applies IN_PROGRESS -> SUBMITTED for the engaged auditor.
func (r *Repository) SetSubmitted(ctx context.Context, postID int64, auditorEmail string, salt int64, txHash string) (Record, error) {
	const query = `
		UPDATE posts
		SET status = 'SUBMITTED', tx_hash = $4, updated_at = now()
		WHERE post_id = $1 AND auditor_email = $2 AND salt = $3 AND status = 'IN_PROGRESS'
		RETURNING ` + recordColumns
	return scanRecord(r.pool.QueryRow(ctx, query, postID, auditorEmail, salt, txHash))
}

// MarkUnderArbitration applies SUBMITTED -> UNDER_ARBITERATION with the
// dispute reason and on-chain poll id.
func (r *Repository) MarkUnderArbitration(ctx context.Context, postID int64, patronEmail, reason string, voteID int64) (Record, error) {
	const query = `
		UPDATE posts
		SET status = 'UNDER_ARBITERATION', dispute_reason = $3, vote_id = $4, updated_at = now()
		WHERE post_id = $1 AND patron_email = $2 AND status = 'SUBMITTED'
		RETURNING ` + recordColumns
	return scanRecord(r.pool.QueryRow(ctx, query, postID, patronEmail, reason, voteID))
}

// ResolveTerminal moves an UNDER_ARBITERATION post to COMPLETED or FAILED.
func (r *Repository) ResolveTerminal(ctx context.Context, postID int64, target Status) (Record, error) {
	if target != StatusCompleted && target != StatusFailed {
		return Record{}, fmt.Errorf("post: resolve: invalid target status %s", target)
	}
	const query = `
		UPDATE posts
		SET status = $2::post_status, updated_at = now()
		WHERE post_id = $1 AND status = 'UNDER_ARBITERATION'
		RETURNING ` + recordColumns
	return scanRecord(r.pool.QueryRow(ctx, query, postID, target))
}

// ResolveInProgress moves an UNDER_ARBITERATION post back to IN_PROGRESS
// with the contract-adjusted offer and deadline.
func (r *Repository) ResolveInProgress(ctx context.Context, postID int64, offerAmount, estimatedDelivery int64) (Record, error) {
	const query = `
		UPDATE posts
		SET status = 'IN_PROGRESS', offer_amount = $2, estimated_delivery = $3, updated_at = now()
		WHERE post_id = $1 AND status = 'UNDER_ARBITERATION'
		RETURNING ` + recordColumns
	return scanRecord(r.pool.QueryRow(ctx, query, postID, offerAmount, estimatedDelivery))
}

// RaiseExtensionRequest flips the extension flag for the engaged auditor.
// The false -> true swap rejects a second proposal while one is open.
func (r *Repository) RaiseExtensionRequest(ctx context.Context, postID int64, auditorEmail string) (Record, error) {
	const query = `
		UPDATE posts
		SET extension_request = true, updated_at = now()
		WHERE post_id = $1 AND auditor_email = $2 AND status = 'IN_PROGRESS' AND NOT extension_request
		RETURNING ` + recordColumns
	return scanRecord(r.pool.QueryRow(ctx, query, postID, auditorEmail))
}

// ApplyExtension clears the extension flag and optionally copies the agreed
// amount and delivery onto the post.
func (r *Repository) ApplyExtension(ctx context.Context, postID int64, patronEmail string, accepted bool, offerAmount, estimatedDelivery int64) (Record, error) {
	if !accepted {
		const decline = `
			UPDATE posts
			SET extension_request = false, updated_at = now()
			WHERE post_id = $1 AND patron_email = $2 AND status = 'IN_PROGRESS' AND extension_request
			RETURNING ` + recordColumns
		return scanRecord(r.pool.QueryRow(ctx, decline, postID, patronEmail))
	}
	const accept = `
		UPDATE posts
		SET extension_request = false, offer_amount = $3, estimated_delivery = $4, updated_at = now()
		WHERE post_id = $1 AND patron_email = $2 AND status = 'IN_PROGRESS' AND extension_request
		RETURNING ` + recordColumns
	return scanRecord(r.pool.QueryRow(ctx, accept, postID, patronEmail, offerAmount, estimatedDelivery))
}

func statusList(statuses []Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
