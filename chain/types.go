package chain

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

var (
	// ErrUnavailable signals the node could not be reached or refused the
	// call. Callers may back off and retry; the off-chain record is untouched.
	ErrUnavailable = errors.New("chain: node unavailable")
	// ErrDecode signals the node answered but the payload could not be
	// decoded against the contract ABI.
	ErrDecode = errors.New("chain: decode contract output")
)

// AuditStatus is the escrow contract's audit state, decoded once at the
// gateway boundary so the core never branches on raw strings.
type AuditStatus int

const (
	AuditStatusUnknown AuditStatus = iota
	AuditCreated
	AuditAssigned
	AuditSubmitted
	AuditCompleted
	AuditAwaitingValidation
	AuditExpired
)

var auditStatusNames = map[AuditStatus]string{
	AuditCreated:            "AuditCreated",
	AuditAssigned:           "AuditAssigned",
	AuditSubmitted:          "AuditSubmitted",
	AuditCompleted:          "AuditCompleted",
	AuditAwaitingValidation: "AuditAwaitingValidation",
	AuditExpired:            "AuditExpired",
}

func (s AuditStatus) String() string {
	if name, ok := auditStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("AuditStatus(%d)", int(s))
}

// ParseAuditStatus decodes the contract-reported status string.
func ParseAuditStatus(raw string) (AuditStatus, error) {
	for status, name := range auditStatusNames {
		if name == raw {
			return status, nil
		}
	}
	return AuditStatusUnknown, fmt.Errorf("%w: unknown audit status %q", ErrDecode, raw)
}

// PaymentInfo is the escrow contract's view of an audit engagement.
// NewOfferAmount is an 18-decimal fixed-point integer.
type PaymentInfo struct {
	Status         AuditStatus
	NewOfferAmount *big.Int
	NewDeadline    int64
}

// Arbiter is one entry of a poll's voter list as reported by the voting
// contract.
type Arbiter struct {
	VoterAddress string `json:"voterAddress"`
	HasVoted     bool   `json:"hasVoted"`
}

// PollCreated is the decoded PollCreated event emitted by createNewPoll.
type PollCreated struct {
	PollID   int64
	Arbiters []Arbiter
}

// SendResult classifies the outcome of a state-changing transaction.
type SendResult int

const (
	// SendConfirmed means the transaction was included in a block and the
	// expected contract event was observed.
	SendConfirmed SendResult = iota
	// SendFinalizedNoEvent means the transaction reached finality without
	// emitting the expected event. This resolves with an empty result rather
	// than an error.
	SendFinalizedNoEvent
	// SendTimedOut means neither inclusion nor finality was observed within
	// the bounded wait.
	SendTimedOut
)

func (r SendResult) String() string {
	switch r {
	case SendConfirmed:
		return "confirmed"
	case SendFinalizedNoEvent:
		return "finalized-without-event"
	case SendTimedOut:
		return "timed-out"
	default:
		return fmt.Sprintf("SendResult(%d)", int(r))
	}
}

// ContractEvent is a decoded contract-emitted event.
type ContractEvent struct {
	Name string            `json:"name"`
	Args map[string]string `json:"args"`
}

// SendOutcome is the three-way result of the submit-and-confirm protocol.
// Event is set only when Result is SendConfirmed.
type SendOutcome struct {
	Result SendResult
	Event  *ContractEvent
}

// parseChainNumber parses a contract-reported numeric string. Node output
// carries digit-grouping commas which must be stripped before parsing.
func parseChainNumber(raw string) (*big.Int, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if cleaned == "" {
		return nil, fmt.Errorf("%w: empty numeric value", ErrDecode)
	}
	n, ok := new(big.Int).SetString(cleaned, 10)
	if !ok {
		return nil, fmt.Errorf("%w: invalid numeric value %q", ErrDecode, raw)
	}
	return n, nil
}
