package arbitration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound = errors.New("arbitration: not found")
	// ErrAlreadyVoted rejects a second vote from the same arbiter slot.
	ErrAlreadyVoted = errors.New("arbitration: arbiter already voted")
	// ErrNotArbiter rejects a vote from an address outside the panel.
	ErrNotArbiter = errors.New("arbitration: address is not on the panel")
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create records a new poll for the post along with its five arbiter
// slots. A second call for the same post is a no-op returning the
// existing record, so retried panel selection never re-creates a poll.
func (r *Repository) Create(ctx context.Context, postID, voteID, auditID int64, deadline time.Time, arbiters [5]string) (Record, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Record{}, false, fmt.Errorf("arbitration: begin create: %w", err)
	}
	defer tx.Rollback(ctx)

	const insertQuery = `
		INSERT INTO arbitrations (id, post_id, vote_id, current_audit_id, force_vote_deadline)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (post_id) DO NOTHING
		RETURNING id`

	var id string
	err = tx.QueryRow(ctx, insertQuery, uuid.NewString(), postID, voteID, auditID, deadline).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		existing, err := r.GetByPostID(ctx, postID)
		if err != nil {
			return Record{}, false, err
		}
		return existing, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("arbitration: insert poll: %w", err)
	}

	const voteQuery = `
		INSERT INTO arbitration_votes (arbitration_id, arbiter_address)
		VALUES ($1, $2)`

	for _, addr := range arbiters {
		if _, err := tx.Exec(ctx, voteQuery, id, addr); err != nil {
			return Record{}, false, fmt.Errorf("arbitration: insert vote slot: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return Record{}, false, fmt.Errorf("arbitration: commit create: %w", err)
	}

	created, err := r.GetByPostID(ctx, postID)
	if err != nil {
		return Record{}, false, err
	}
	return created, true, nil
}

func (r *Repository) GetByPostID(ctx context.Context, postID int64) (Record, error) {
	const query = `
		SELECT id, post_id, vote_id, current_audit_id, vote_count,
		       force_vote_deadline, is_force_voted, created_at
		FROM arbitrations
		WHERE post_id = $1`

	var rec Record
	err := r.pool.QueryRow(ctx, query, postID).Scan(
		&rec.ID, &rec.PostID, &rec.VoteID, &rec.CurrentAuditID, &rec.VoteCount,
		&rec.ForceVoteDeadline, &rec.IsForceVoted, &rec.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("arbitration: get by post: %w", err)
	}

	rec.Votes, err = r.votes(ctx, rec.ID)
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (r *Repository) votes(ctx context.Context, arbitrationID string) ([]Vote, error) {
	const query = `
		SELECT arbiter_address, vote_type, vote
		FROM arbitration_votes
		WHERE arbitration_id = $1
		ORDER BY arbiter_address`

	rows, err := r.pool.Query(ctx, query, arbitrationID)
	if err != nil {
		return nil, fmt.Errorf("arbitration: list votes: %w", err)
	}
	defer rows.Close()

	var out []Vote
	for rows.Next() {
		var v Vote
		if err := rows.Scan(&v.ArbiterAddress, &v.VoteType, &v.Approve); err != nil {
			return nil, fmt.Errorf("arbitration: scan vote: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// RecordVote fills the arbiter's slot and bumps the poll's vote count in
// one transaction. An already-used slot fails with ErrAlreadyVoted and
// leaves the count untouched.
func (r *Repository) RecordVote(ctx context.Context, arbitrationID, arbiterAddress string, voteType int, approve bool) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("arbitration: begin vote: %w", err)
	}
	defer tx.Rollback(ctx)

	const slotQuery = `
		UPDATE arbitration_votes
		SET vote_type = $3, vote = $4
		WHERE arbitration_id = $1 AND arbiter_address = $2 AND vote_type = 0`

	tag, err := tx.Exec(ctx, slotQuery, arbitrationID, arbiterAddress, voteType, approve)
	if err != nil {
		return fmt.Errorf("arbitration: record vote: %w", err)
	}
	if tag.RowsAffected() == 0 {
		const existsQuery = `
			SELECT EXISTS (
				SELECT 1 FROM arbitration_votes
				WHERE arbitration_id = $1 AND arbiter_address = $2)`

		var onPanel bool
		if err := tx.QueryRow(ctx, existsQuery, arbitrationID, arbiterAddress).Scan(&onPanel); err != nil {
			return fmt.Errorf("arbitration: check panel: %w", err)
		}
		if !onPanel {
			return ErrNotArbiter
		}
		return ErrAlreadyVoted
	}

	const countQuery = `
		UPDATE arbitrations
		SET vote_count = vote_count + 1
		WHERE id = $1`

	if _, err := tx.Exec(ctx, countQuery, arbitrationID); err != nil {
		return fmt.Errorf("arbitration: bump vote count: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("arbitration: commit vote: %w", err)
	}
	return nil
}

// MarkForceVoted claims the one-shot resolution slot. Only the caller
// that flips the flag proceeds with settlement.
func (r *Repository) MarkForceVoted(ctx context.Context, arbitrationID string) (bool, error) {
	const query = `
		UPDATE arbitrations
		SET is_force_voted = TRUE
		WHERE id = $1 AND NOT is_force_voted`

	tag, err := r.pool.Exec(ctx, query, arbitrationID)
	if err != nil {
		return false, fmt.Errorf("arbitration: mark force voted: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListExpired returns unresolved polls whose force-vote deadline passed.
func (r *Repository) ListExpired(ctx context.Context, now time.Time) ([]Record, error) {
	const query = `
		SELECT id, post_id, vote_id, current_audit_id, vote_count,
		       force_vote_deadline, is_force_voted, created_at
		FROM arbitrations
		WHERE force_vote_deadline <= $1 AND NOT is_force_voted
		ORDER BY force_vote_deadline`

	rows, err := r.pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("arbitration: list expired: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(
			&rec.ID, &rec.PostID, &rec.VoteID, &rec.CurrentAuditID, &rec.VoteCount,
			&rec.ForceVoteDeadline, &rec.IsForceVoted, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("arbitration: scan expired: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Details returns every open poll the arbiter sits on, joined with the
// disputed post and the confirmed bid's terms.
func (r *Repository) Details(ctx context.Context, arbiterAddress string) ([]Detail, error) {
	const query = `
		SELECT a.id, a.post_id, a.vote_id, a.current_audit_id, a.vote_count,
		       a.force_vote_deadline, a.is_force_voted, a.created_at,
		       p.patron_email, p.auditor_email, p.github_url, p.description,
		       COALESCE(p.dispute_reason, ''), p.report_files,
		       p.offer_amount, p.estimated_delivery,
		       COALESCE(b.estimated_amount, 0), COALESCE(b.estimated_delivery, 0)
		FROM arbitrations a
		JOIN arbitration_votes v ON v.arbitration_id = a.id AND v.arbiter_address = $1
		JOIN posts p ON p.post_id = a.post_id
		LEFT JOIN bids b ON b.post_id = a.post_id AND b.status = 'CONFIRM' AND NOT b.is_rejected
		WHERE NOT a.is_force_voted
		ORDER BY a.created_at`

	rows, err := r.pool.Query(ctx, query, arbiterAddress)
	if err != nil {
		return nil, fmt.Errorf("arbitration: details: %w", err)
	}
	defer rows.Close()

	var out []Detail
	for rows.Next() {
		var d Detail
		if err := rows.Scan(
			&d.Record.ID, &d.Record.PostID, &d.Record.VoteID, &d.Record.CurrentAuditID,
			&d.Record.VoteCount, &d.Record.ForceVoteDeadline, &d.Record.IsForceVoted, &d.Record.CreatedAt,
			&d.PatronEmail, &d.AuditorEmail, &d.GithubURL, &d.Description,
			&d.DisputeReason, &d.ReportFiles,
			&d.OfferAmount, &d.EstimatedDelivery,
			&d.BidAmount, &d.BidDelivery,
		); err != nil {
			return nil, fmt.Errorf("arbitration: scan detail: %w", err)
		}
		d.PostID = d.Record.PostID
		out = append(out, d)
	}
	return out, rows.Err()
}
