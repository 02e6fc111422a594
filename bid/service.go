package bid

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"auditflow/post"
)

var (
	// ErrSelfBid rejects a patron bidding on their own post.
	ErrSelfBid = errors.New("bid: patron cannot bid on own post")
	// ErrPostNotOpen rejects bids on posts outside PENDING.
	ErrPostNotOpen = errors.New("bid: post is not open for bids")
	// ErrNoExtensionPending rejects a resolution when no proposal exists.
	ErrNoExtensionPending = errors.New("bid: no extension proposal pending")
)

// Store is the bid persistence surface.
type Store interface {
	Place(ctx context.Context, auditorEmail, patronEmail string, params PlaceParams) (Record, error)
	GetByID(ctx context.Context, bidID string) (Record, error)
	ListByPost(ctx context.Context, postID int64) ([]Record, error)
	GetConfirmed(ctx context.Context, postID int64) (Record, error)
	Accept(ctx context.Context, bidID, patronEmail string) (Record, error)
	Reject(ctx context.Context, bidID, patronEmail string) (Record, error)
	Delete(ctx context.Context, postID int64, auditorEmail string) error
	AppendExtension(ctx context.Context, postID int64, auditorEmail string, ext Extension) (Record, error)
	SetTerms(ctx context.Context, postID, amount, delivery int64) (Record, error)
}

// PostDirectory is the slice of the post registry the bid flow needs.
type PostDirectory interface {
	GetByID(ctx context.Context, postID int64) (post.Record, error)
	RaiseExtensionRequest(ctx context.Context, postID int64, auditorEmail string) (post.Record, error)
	ApplyExtension(ctx context.Context, postID int64, patronEmail string, accepted bool, offerAmount, estimatedDelivery int64) (post.Record, error)
}

// Service handles auditor offers and the confirmed bid's timeline
// renegotiation.
type Service struct {
	store  Store
	posts  PostDirectory
	logger *slog.Logger
}

func NewService(store Store, posts PostDirectory, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, posts: posts, logger: logger}
}

// Place records an auditor's offer on an open post. An existing PENDING
// bid by the same auditor is overwritten; unchanged terms are rejected.
func (s *Service) Place(ctx context.Context, auditorEmail string, params PlaceParams) (Record, error) {
	p, err := s.posts.GetByID(ctx, params.PostID)
	if err != nil {
		return Record{}, err
	}
	if p.PatronEmail == auditorEmail {
		return Record{}, ErrSelfBid
	}
	if p.Status != post.StatusPending {
		return Record{}, fmt.Errorf("%w: status %s", ErrPostNotOpen, p.Status)
	}

	rec, err := s.store.Place(ctx, auditorEmail, p.PatronEmail, params)
	if err != nil {
		return Record{}, err
	}
	s.logger.Info("bid placed", "postID", params.PostID, "auditor", auditorEmail)
	return rec, nil
}

// ListByPost returns all bids on the post.
func (s *Service) ListByPost(ctx context.Context, postID int64) ([]Record, error) {
	return s.store.ListByPost(ctx, postID)
}

// Accept confirms the patron's chosen bid.
func (s *Service) Accept(ctx context.Context, patronEmail, bidID string) (Record, error) {
	return s.store.Accept(ctx, bidID, patronEmail)
}

// Reject marks a pending bid rejected.
func (s *Service) Reject(ctx context.Context, patronEmail, bidID string) (Record, error) {
	return s.store.Reject(ctx, bidID, patronEmail)
}

// Withdraw deletes the auditor's own pending bid.
func (s *Service) Withdraw(ctx context.Context, auditorEmail string, postID int64) error {
	return s.store.Delete(ctx, postID, auditorEmail)
}

// ProposeExtension appends a renegotiation proposal to the confirmed bid
// and flags the post so the patron sees a decision is pending.
func (s *Service) ProposeExtension(ctx context.Context, auditorEmail string, postID int64, ext Extension) (Record, error) {
	if _, err := s.posts.RaiseExtensionRequest(ctx, postID, auditorEmail); err != nil {
		return Record{}, err
	}
	rec, err := s.store.AppendExtension(ctx, postID, auditorEmail, ext)
	if err != nil {
		return Record{}, err
	}
	s.logger.Info("extension proposed", "postID", postID, "auditor", auditorEmail,
		"proposedAmount", ext.ProposedAmount, "proposedDelivery", ext.ProposedDeliveryTime)
	return rec, nil
}

// ResolveExtension applies the patron's decision on the latest proposal.
// Accepting copies the proposed terms onto both the post and the
// confirmed bid; declining only clears the pending flag. The proposal
// stays in the history either way.
func (s *Service) ResolveExtension(ctx context.Context, patronEmail string, postID int64, accepted bool) (Record, error) {
	confirmed, err := s.store.GetConfirmed(ctx, postID)
	if err != nil {
		return Record{}, err
	}
	if len(confirmed.History) == 0 {
		return Record{}, ErrNoExtensionPending
	}
	latest := confirmed.History[len(confirmed.History)-1]

	if _, err := s.posts.ApplyExtension(ctx, postID, patronEmail, accepted,
		latest.ProposedAmount, latest.ProposedDeliveryTime); err != nil {
		return Record{}, err
	}
	if !accepted {
		s.logger.Info("extension declined", "postID", postID)
		return confirmed, nil
	}

	rec, err := s.store.SetTerms(ctx, postID, latest.ProposedAmount, latest.ProposedDeliveryTime)
	if err != nil {
		return Record{}, err
	}
	s.logger.Info("extension accepted", "postID", postID,
		"amount", latest.ProposedAmount, "delivery", latest.ProposedDeliveryTime)
	return rec, nil
}
