package arbitration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"auditflow/chain"
	"auditflow/funds"
	"auditflow/metrics"
	"auditflow/post"
)

var (
	// ErrUnresolvable means the contract reports a status no settlement
	// branch covers. Nothing is written.
	ErrUnresolvable = errors.New("arbitration: contract state does not allow settlement")
	// ErrAlreadyResolving means another caller claimed the settlement.
	ErrAlreadyResolving = errors.New("arbitration: settlement already in progress")
)

// Store is the arbitration persistence surface.
type Store interface {
	Create(ctx context.Context, postID, voteID, auditID int64, deadline time.Time, arbiters [5]string) (Record, bool, error)
	GetByPostID(ctx context.Context, postID int64) (Record, error)
	RecordVote(ctx context.Context, arbitrationID, arbiterAddress string, voteType int, approve bool) error
	MarkForceVoted(ctx context.Context, arbitrationID string) (bool, error)
	ListExpired(ctx context.Context, now time.Time) ([]Record, error)
	Details(ctx context.Context, arbiterAddress string) ([]Detail, error)
}

// PostRegistry is the slice of the post registry arbitration drives.
type PostRegistry interface {
	GetByID(ctx context.Context, postID int64) (post.Record, error)
	MarkUnderArbitration(ctx context.Context, postID int64, patronEmail, reason string, voteID int64) (post.Record, error)
	ResolveTerminal(ctx context.Context, postID int64, target post.Status) (post.Record, error)
	ResolveInProgress(ctx context.Context, postID int64, offerAmount, estimatedDelivery int64) (post.Record, error)
}

// Coordinator opens polls for disputed posts, records arbiter votes, and
// settles polls against the escrow contract.
type Coordinator struct {
	store    Store
	posts    PostRegistry
	gateway  chain.Gateway
	arbiters [5]string
	logger   *slog.Logger
	now      func() time.Time
}

func NewCoordinator(store Store, posts PostRegistry, gateway chain.Gateway, arbiters [5]string, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		store:    store,
		posts:    posts,
		gateway:  gateway,
		arbiters: arbiters,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the coordinator clock, for tests.
func (c *Coordinator) WithClock(now func() time.Time) *Coordinator {
	c.now = now
	return c
}

// SelectArbiters opens an on-chain poll for the disputed post and moves
// it to UNDER_ARBITERATION. Calling it again for the same post returns
// the existing poll without touching the chain.
func (c *Coordinator) SelectArbiters(ctx context.Context, patronEmail string, postID int64, reason string) (Record, error) {
	existing, err := c.store.GetByPostID(ctx, postID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Record{}, err
	}

	p, err := c.posts.GetByID(ctx, postID)
	if err != nil {
		return Record{}, err
	}
	if p.PatronEmail != patronEmail || p.Status != post.StatusSubmitted {
		return Record{}, post.ErrNotFound
	}

	info, err := c.gateway.GetPaymentInfo(ctx, p.CurrentAuditID)
	if err != nil {
		return Record{}, err
	}
	if info.Status != chain.AuditAwaitingValidation {
		return Record{}, fmt.Errorf("%w: expected %s, contract reports %s",
			post.ErrGuardMismatch, chain.AuditAwaitingValidation, info.Status)
	}

	poll, err := c.gateway.CreatePoll(ctx, p.CurrentAuditID, chain.DefaultPollBuffer, c.arbiters)
	if err != nil {
		return Record{}, err
	}

	panel := c.arbiters
	if len(poll.Arbiters) == len(panel) {
		for i, a := range poll.Arbiters {
			panel[i] = a.VoterAddress
		}
	}

	deadline := c.now().Add(forceVoteWindow)
	rec, created, err := c.store.Create(ctx, postID, poll.PollID, p.CurrentAuditID, deadline, panel)
	if err != nil {
		return Record{}, err
	}
	if created {
		if _, err := c.posts.MarkUnderArbitration(ctx, postID, patronEmail, reason, poll.PollID); err != nil {
			return Record{}, err
		}
		c.logger.Info("poll opened", "postID", postID, "pollID", poll.PollID, "deadline", deadline)
	}
	return rec, nil
}

// Vote records the arbiter's vote while the poll is open. Once the
// contract has moved on, the quorum is reached, or the force-vote
// deadline has passed, the call settles the poll instead.
func (c *Coordinator) Vote(ctx context.Context, arbiterAddress string, postID int64, voteType int, approve bool) error {
	rec, err := c.store.GetByPostID(ctx, postID)
	if err != nil {
		return err
	}
	if !rec.onPanel(arbiterAddress) {
		return ErrNotArbiter
	}

	info, err := c.gateway.GetPaymentInfo(ctx, rec.CurrentAuditID)
	if err != nil {
		return err
	}

	open := info.Status == chain.AuditAwaitingValidation &&
		rec.VoteCount < quorum &&
		c.now().Before(rec.ForceVoteDeadline)
	if open {
		if voteType == VoteTypeUnvoted {
			return fmt.Errorf("arbitration: vote type %d is reserved", VoteTypeUnvoted)
		}
		if err := c.store.RecordVote(ctx, rec.ID, arbiterAddress, voteType, approve); err != nil {
			return err
		}
		metrics.VoteRecorded()
		c.logger.Info("vote recorded", "postID", postID, "arbiter", arbiterAddress, "voteType", voteType)
		return nil
	}

	return c.settle(ctx, rec, info)
}

// settle releases the disputed funds and moves the post to its final
// state. The contract's status is validated before anything is written;
// an unexpected status aborts with no mutation.
func (c *Coordinator) settle(ctx context.Context, rec Record, info chain.PaymentInfo) error {
	var target post.Status
	switch info.Status {
	case chain.AuditExpired:
		target = post.StatusFailed
	case chain.AuditCompleted:
		target = post.StatusCompleted
	case chain.AuditAssigned, chain.AuditAwaitingValidation:
		target = post.StatusInProgress
	default:
		return fmt.Errorf("%w: contract reports %s", ErrUnresolvable, info.Status)
	}
	terminal := target != post.StatusInProgress

	p, err := c.posts.GetByID(ctx, rec.PostID)
	if err != nil {
		return err
	}

	escrowed := funds.ToFixed18(p.OfferAmount)
	var amount *big.Int
	if terminal {
		amount = funds.Distribution(escrowed, info.NewOfferAmount, nil, nil, true)
	} else {
		haircut, err := c.gateway.GetPollHaircut(ctx, rec.VoteID)
		if err != nil {
			return err
		}
		share, err := c.gateway.GetArbiterShareRatio(ctx)
		if err != nil {
			return err
		}
		amount = funds.Distribution(escrowed, info.NewOfferAmount, haircut, share, false)
	}

	won, err := c.store.MarkForceVoted(ctx, rec.ID)
	if err != nil {
		return err
	}
	if !won {
		return ErrAlreadyResolving
	}

	if terminal {
		if _, err := c.posts.ResolveTerminal(ctx, rec.PostID, target); err != nil {
			return err
		}
	} else {
		offer := funds.FromFixed18(info.NewOfferAmount)
		if _, err := c.posts.ResolveInProgress(ctx, rec.PostID, offer, info.NewDeadline); err != nil {
			return err
		}
	}

	outcome, err := c.gateway.Distribute(ctx, rec.VoteID, amount)
	if err != nil {
		return err
	}
	metrics.PollSettled(string(target))
	c.logger.Info("poll settled",
		"postID", rec.PostID, "pollID", rec.VoteID, "target", string(target),
		"amount", amount.String(), "send", outcome.Result.String())
	return nil
}

// Details lists the open polls the arbiter sits on.
func (c *Coordinator) Details(ctx context.Context, arbiterAddress string) ([]Detail, error) {
	return c.store.Details(ctx, arbiterAddress)
}
