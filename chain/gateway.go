package chain

import (
	"context"
	"math/big"
)

// DefaultPollBuffer is the buffer amount forwarded to createNewPoll for the
// admin treasury share.
const DefaultPollBuffer int64 = 164_000_000

// Gateway wraps all reads and writes against the escrow and voting
// contracts. Reads are dry-run queries; writes estimate gas, submit a signed
// transaction, and report a three-way SendOutcome.
type Gateway interface {
	// GetPaymentInfo queries the escrow contract for the audit's current
	// status, adjusted offer amount and deadline.
	GetPaymentInfo(ctx context.Context, auditID int64) (PaymentInfo, error)
	// GetPollHaircut queries the voting contract for the poll's decided
	// haircut percentage.
	GetPollHaircut(ctx context.Context, pollID int64) (*big.Int, error)
	// GetArbiterShareRatio queries the voting contract for the arbiter
	// pool's share ratio.
	GetArbiterShareRatio(ctx context.Context) (*big.Int, error)
	// CreatePoll opens a poll for the audit with the fixed arbiter list and
	// returns the assigned poll id once the PollCreated event is observed.
	CreatePoll(ctx context.Context, auditID int64, buffer int64, arbiters [5]string) (PollCreated, error)
	// Distribute releases treasury funds for the poll. Amount is an
	// 18-decimal fixed-point integer.
	Distribute(ctx context.Context, pollID int64, amount *big.Int) (SendOutcome, error)
}
