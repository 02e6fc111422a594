package post

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"auditflow/chain"
)

var (
	// ErrGuardMismatch means the contract's reported audit status does not
	// match the precondition for the requested transition. The persisted
	// record is left untouched.
	ErrGuardMismatch = errors.New("post: validation failed against the contract")
	// ErrDeliveryInPast rejects estimated delivery timestamps behind now.
	ErrDeliveryInPast = errors.New("post: estimated delivery is in the past")
	// ErrInvalidStatus rejects a target status outside the transition table.
	ErrInvalidStatus = errors.New("post: invalid target status")
	// ErrReportCountMismatch rejects report submissions whose file count
	// does not match the engagement's audit types.
	ErrReportCountMismatch = errors.New("post: report count does not match audit types")
)

// Store is the persistence surface the registry needs.
type Store interface {
	Create(ctx context.Context, patronEmail string, params RegisterParams) (Record, error)
	GetByID(ctx context.Context, postID int64) (Record, error)
	GetOwned(ctx context.Context, postID int64, patronEmail string, statuses ...Status) (Record, error)
	Confirm(ctx context.Context, salt int64, txHash string, auditID int64) (Record, error)
	SetInProgress(ctx context.Context, postID int64, patronEmail string, salt int64, txHash string) (Record, error)
	Finish(ctx context.Context, postID int64, patronEmail string, salt int64, txHash string, target Status) (Record, error)
	FailAfterClaim(ctx context.Context, postID int64, patronEmail string) (Record, error)
	SetAuditor(ctx context.Context, postID int64, patronEmail, auditorEmail string, salt int64) (Record, error)
	UpdateSalt(ctx context.Context, postID int64, patronEmail string, salt int64) (Record, error)
	SetReportFiles(ctx context.Context, postID int64, auditorEmail string, salt int64, files []string) (Record, error)
	SetSubmitted(ctx context.Context, postID int64, auditorEmail string, salt int64, txHash string) (Record, error)
}

// Service is the PostRegistry: the single source of truth for where an
// engagement is in its lifecycle. Transitions that claim to reflect a
// payment event re-validate against the escrow contract before the
// conditional write.
type Service struct {
	store   Store
	gateway chain.Gateway
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(store Store, gateway chain.Gateway, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:   store,
		gateway: gateway,
		logger:  logger,
		now:     time.Now,
	}
}

// WithClock overrides the service clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Register creates a PRE_REGISTRATION post for the patron.
func (s *Service) Register(ctx context.Context, patronEmail string, params RegisterParams) (Record, error) {
	if params.EstimatedDelivery < s.now().UnixMilli() {
		return Record{}, ErrDeliveryInPast
	}
	if params.OfferAmount < 1 {
		return Record{}, fmt.Errorf("post: offer amount must be positive")
	}

	rec, err := s.store.Create(ctx, patronEmail, params)
	if err != nil {
		return Record{}, err
	}
	s.logger.Info("post registered", "postID", rec.PostID, "patron", patronEmail)
	return rec, nil
}

// guard reads the contract's audit status and compares it with want.
func (s *Service) guard(ctx context.Context, auditID int64, want chain.AuditStatus) error {
	info, err := s.gateway.GetPaymentInfo(ctx, auditID)
	if err != nil {
		return err
	}
	if info.Status != want {
		s.logger.Warn("contract guard mismatch",
			"auditID", auditID, "want", want.String(), "got", info.Status.String())
		return fmt.Errorf("%w: expected %s, contract reports %s", ErrGuardMismatch, want, info.Status)
	}
	return nil
}

// Confirm applies PRE_REGISTRATION -> PENDING after the contract reports
// AuditCreated for the referenced audit.
func (s *Service) Confirm(ctx context.Context, salt int64, txHash string, auditID int64) (Record, error) {
	if err := s.guard(ctx, auditID, chain.AuditCreated); err != nil {
		return Record{}, err
	}
	return s.store.Confirm(ctx, salt, txHash, auditID)
}

// UpdateStatus advances a PENDING post to IN_PROGRESS (contract must report
// AuditAssigned) or a SUBMITTED post to COMPLETED/FAILED (AuditCompleted).
func (s *Service) UpdateStatus(ctx context.Context, patronEmail string, postID, salt int64, txHash string, target Status) (Record, error) {
	current, err := s.store.GetOwned(ctx, postID, patronEmail, StatusPending, StatusSubmitted)
	if err != nil {
		return Record{}, err
	}
	if current.Salt != salt {
		return Record{}, ErrNotFound
	}

	switch current.Status {
	case StatusPending:
		if target != StatusInProgress {
			return Record{}, fmt.Errorf("%w: %s from PENDING", ErrInvalidStatus, target)
		}
		if err := s.guard(ctx, current.CurrentAuditID, chain.AuditAssigned); err != nil {
			return Record{}, err
		}
		return s.store.SetInProgress(ctx, postID, patronEmail, salt, txHash)
	case StatusSubmitted:
		if target != StatusCompleted && target != StatusFailed {
			return Record{}, fmt.Errorf("%w: %s from SUBMITTED", ErrInvalidStatus, target)
		}
		if err := s.guard(ctx, current.CurrentAuditID, chain.AuditCompleted); err != nil {
			return Record{}, err
		}
		return s.store.Finish(ctx, postID, patronEmail, salt, txHash, target)
	default:
		return Record{}, ErrNotFound
	}
}

// FailAfterClaim marks a PENDING or IN_PROGRESS post FAILED after the
// patron reclaims the escrow. No contract guard: the claim already settled
// on chain.
func (s *Service) FailAfterClaim(ctx context.Context, patronEmail string, postID int64) (Record, error) {
	return s.store.FailAfterClaim(ctx, postID, patronEmail)
}

// AssignAuditor records the accepted auditor and a new salt on the post.
func (s *Service) AssignAuditor(ctx context.Context, patronEmail string, postID int64, auditorEmail string, salt int64) (Record, error) {
	return s.store.SetAuditor(ctx, postID, patronEmail, auditorEmail, salt)
}

// UpdateSalt refreshes the correlation salt on a SUBMITTED post.
func (s *Service) UpdateSalt(ctx context.Context, patronEmail string, postID, salt int64) (Record, error) {
	return s.store.UpdateSalt(ctx, postID, patronEmail, salt)
}

// SubmitReport attaches the auditor's report references, one per audit type.
func (s *Service) SubmitReport(ctx context.Context, auditorEmail string, postID, salt int64, files []string) (Record, error) {
	current, err := s.store.GetByID(ctx, postID)
	if err != nil {
		return Record{}, err
	}
	if current.AuditorEmail != auditorEmail {
		return Record{}, ErrNotFound
	}
	if len(files) == 0 || len(files) != len(current.AuditTypes) {
		return Record{}, ErrReportCountMismatch
	}
	return s.store.SetReportFiles(ctx, postID, auditorEmail, salt, files)
}

// ConfirmSubmit applies IN_PROGRESS -> SUBMITTED once the contract reports
// AuditSubmitted.
func (s *Service) ConfirmSubmit(ctx context.Context, auditorEmail string, postID, salt int64, txHash string) (Record, error) {
	current, err := s.store.GetByID(ctx, postID)
	if err != nil {
		return Record{}, err
	}
	if current.AuditorEmail != auditorEmail || current.Salt != salt || current.Status != StatusInProgress {
		return Record{}, ErrNotFound
	}
	if err := s.guard(ctx, current.CurrentAuditID, chain.AuditSubmitted); err != nil {
		return Record{}, err
	}
	return s.store.SetSubmitted(ctx, postID, auditorEmail, salt, txHash)
}

// Get returns the post, regardless of caller role.
func (s *Service) Get(ctx context.Context, postID int64) (Record, error) {
	return s.store.GetByID(ctx, postID)
}
