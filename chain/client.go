package chain

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// Weight is the two-dimensional gas limit used by the contracts node.
type Weight struct {
	RefTime   uint64 `json:"refTime"`
	ProofSize uint64 `json:"proofSize"`
}

// Dry-run queries use a fixed weight ceiling; submissions use the weight the
// dry run reports as required.
var maxCallWeight = Weight{
	RefTime:   5_000_000_000_000 - 1,
	ProofSize: 1_000_000,
}

// ClientConfig carries the connection and signing parameters for the node.
type ClientConfig struct {
	NodeURL        string
	EscrowContract string
	VotingAddress  string
	SigningKey     string
	CallTimeout    time.Duration
	SendTimeout    time.Duration
	Logger         *slog.Logger
}

// Client talks JSON-RPC to the contracts node. It holds its own connection
// handle and signing key; construct one and inject it where a Gateway is
// needed.
type Client struct {
	nodeURL     string
	escrowAddr  string
	votingAddr  string
	signingKey  []byte
	httpc       *http.Client
	callTimeout time.Duration
	sendTimeout time.Duration
	logger      *slog.Logger

	// pollInterval controls how often transaction status is re-checked while
	// waiting for inclusion or finality.
	pollInterval time.Duration
}

// NewClient constructs a node client. The zero timeouts default to 30s for
// queries and 2m for the submit-and-confirm protocol.
func NewClient(cfg ClientConfig) *Client {
	callTimeout := cfg.CallTimeout
	if callTimeout <= 0 {
		callTimeout = 30 * time.Second
	}
	sendTimeout := cfg.SendTimeout
	if sendTimeout <= 0 {
		sendTimeout = 2 * time.Minute
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		nodeURL:      cfg.NodeURL,
		escrowAddr:   cfg.EscrowContract,
		votingAddr:   cfg.VotingAddress,
		signingKey:   []byte(cfg.SigningKey),
		httpc:        &http.Client{Timeout: callTimeout},
		callTimeout:  callTimeout,
		sendTimeout:  sendTimeout,
		logger:       logger,
		pollInterval: 3 * time.Second,
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      uuid.NewString(),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("chain: marshal %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.nodeURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("chain: build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s: node returned %s", ErrUnavailable, method, resp.Status)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %s: read response: %v", ErrUnavailable, method, err)
	}

	var envelope rpcResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDecode, method, err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("%w: %s: node error %d: %s", ErrUnavailable, method, envelope.Error.Code, envelope.Error.Message)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrDecode, method, err)
		}
	}
	return nil
}

type contractCallParams struct {
	Contract string `json:"contract"`
	Method   string `json:"method"`
	Args     []any  `json:"args"`
	GasLimit Weight `json:"gasLimit"`
	Origin   string `json:"origin,omitempty"`
}

type contractCallResult struct {
	GasRequired Weight          `json:"gasRequired"`
	Output      json.RawMessage `json:"output"`
}

// queryContract performs a dry-run contract call and returns the decoded
// output plus the gas the node reports as required.
func (c *Client) queryContract(ctx context.Context, contract, method string, args ...any) (contractCallResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	var result contractCallResult
	err := c.call(ctx, "contracts_call", contractCallParams{
		Contract: contract,
		Method:   method,
		Args:     args,
		GasLimit: maxCallWeight,
	}, &result)
	if err != nil {
		return contractCallResult{}, err
	}
	return result, nil
}

// GetPaymentInfo implements Gateway.
func (c *Client) GetPaymentInfo(ctx context.Context, auditID int64) (PaymentInfo, error) {
	result, err := c.queryContract(ctx, c.escrowAddr, "getPaymentinfo", auditID)
	if err != nil {
		return PaymentInfo{}, err
	}

	var payload struct {
		CurrentStatus string `json:"currentstatus"`
		Deadline      string `json:"deadline"`
		Value         string `json:"value"`
	}
	if err := json.Unmarshal(result.Output, &payload); err != nil {
		return PaymentInfo{}, fmt.Errorf("%w: getPaymentinfo output: %v", ErrDecode, err)
	}

	status, err := ParseAuditStatus(payload.CurrentStatus)
	if err != nil {
		return PaymentInfo{}, err
	}
	value, err := parseChainNumber(payload.Value)
	if err != nil {
		return PaymentInfo{}, fmt.Errorf("getPaymentinfo value: %w", err)
	}
	deadline, err := parseChainNumber(payload.Deadline)
	if err != nil {
		return PaymentInfo{}, fmt.Errorf("getPaymentinfo deadline: %w", err)
	}

	return PaymentInfo{
		Status:         status,
		NewOfferAmount: value,
		NewDeadline:    deadline.Int64(),
	}, nil
}

// GetPollHaircut implements Gateway.
func (c *Client) GetPollHaircut(ctx context.Context, pollID int64) (*big.Int, error) {
	result, err := c.queryContract(ctx, c.votingAddr, "getPollInfo", pollID)
	if err != nil {
		return nil, err
	}

	var payload struct {
		DecidedHaircut string `json:"decidedHaircut"`
	}
	if err := json.Unmarshal(result.Output, &payload); err != nil {
		return nil, fmt.Errorf("%w: getPollInfo output: %v", ErrDecode, err)
	}
	haircut, err := parseChainNumber(payload.DecidedHaircut)
	if err != nil {
		return nil, fmt.Errorf("getPollInfo haircut: %w", err)
	}
	return haircut, nil
}

// GetArbiterShareRatio implements Gateway.
func (c *Client) GetArbiterShareRatio(ctx context.Context) (*big.Int, error) {
	result, err := c.queryContract(ctx, c.votingAddr, "knowArbitersShare")
	if err != nil {
		return nil, err
	}

	var raw string
	if err := json.Unmarshal(result.Output, &raw); err != nil {
		return nil, fmt.Errorf("%w: knowArbitersShare output: %v", ErrDecode, err)
	}
	share, err := parseChainNumber(raw)
	if err != nil {
		return nil, fmt.Errorf("knowArbitersShare ratio: %w", err)
	}
	return share, nil
}

// CreatePoll implements Gateway. It resolves once the PollCreated event is
// observed in a block; reaching finality without the event yields an error
// because the poll id is unrecoverable in that case.
func (c *Client) CreatePoll(ctx context.Context, auditID int64, buffer int64, arbiters [5]string) (PollCreated, error) {
	voterList := make([]Arbiter, 0, len(arbiters))
	for _, addr := range arbiters {
		voterList = append(voterList, Arbiter{VoterAddress: addr})
	}

	outcome, err := c.send(ctx, c.votingAddr, "createNewPoll", "PollCreated", auditID, buffer, voterList)
	if err != nil {
		return PollCreated{}, err
	}
	switch outcome.Result {
	case SendConfirmed:
		// fall through to event decode
	case SendFinalizedNoEvent:
		return PollCreated{}, fmt.Errorf("%w: createNewPoll finalized without PollCreated event", ErrDecode)
	case SendTimedOut:
		return PollCreated{}, fmt.Errorf("%w: createNewPoll timed out awaiting inclusion", ErrUnavailable)
	}

	pollID, err := parseChainNumber(outcome.Event.Args["pollId"])
	if err != nil {
		return PollCreated{}, fmt.Errorf("PollCreated pollId: %w", err)
	}
	var decoded []Arbiter
	if raw := outcome.Event.Args["arbiters"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
			return PollCreated{}, fmt.Errorf("%w: PollCreated arbiters: %v", ErrDecode, err)
		}
	}
	if len(decoded) == 0 {
		for _, v := range voterList {
			decoded = append(decoded, v)
		}
	}

	return PollCreated{PollID: pollID.Int64(), Arbiters: decoded}, nil
}

// Distribute implements Gateway. Finality without the FundsReleased event
// resolves empty rather than erroring; only submission failures surface.
func (c *Client) Distribute(ctx context.Context, pollID int64, amount *big.Int) (SendOutcome, error) {
	return c.send(ctx, c.votingAddr, "releaseTreasuryFunds", "FundsReleased", pollID, amount.String())
}

type submitParams struct {
	Contract  string `json:"contract"`
	Method    string `json:"method"`
	Args      []any  `json:"args"`
	GasLimit  Weight `json:"gasLimit"`
	Signature string `json:"signature"`
}

type submitResult struct {
	Hash string `json:"hash"`
}

type txStatusResult struct {
	Status string          `json:"status"` // pending | inBlock | finalized
	Events []ContractEvent `json:"events"`
}

// send implements the submit-and-confirm protocol: dry-run for gas, submit
// the signed transaction, then poll for inclusion until the expected event
// is observed, finality is reached without it, or the bounded wait expires.
// There is no retry and no cancellation after submission.
func (c *Client) send(ctx context.Context, contract, method, eventName string, args ...any) (SendOutcome, error) {
	dryRun, err := c.queryContract(ctx, contract, method, args...)
	if err != nil {
		return SendOutcome{}, fmt.Errorf("chain: estimate gas for %s: %w", method, err)
	}

	payload, err := json.Marshal(submitParams{
		Contract: contract,
		Method:   method,
		Args:     args,
		GasLimit: dryRun.GasRequired,
	})
	if err != nil {
		return SendOutcome{}, fmt.Errorf("chain: marshal %s submission: %w", method, err)
	}

	signature, err := c.sign(payload)
	if err != nil {
		return SendOutcome{}, err
	}

	submitCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	var submitted submitResult
	err = c.call(submitCtx, "contracts_submit", submitParams{
		Contract:  contract,
		Method:    method,
		Args:      args,
		GasLimit:  dryRun.GasRequired,
		Signature: signature,
	}, &submitted)
	if err != nil {
		return SendOutcome{}, err
	}

	c.logger.Info("chain transaction submitted",
		"method", method,
		"hash", submitted.Hash,
		"refTime", dryRun.GasRequired.RefTime,
	)

	return c.waitForOutcome(ctx, method, eventName, submitted.Hash)
}

func (c *Client) waitForOutcome(ctx context.Context, method, eventName, hash string) (SendOutcome, error) {
	deadline := time.NewTimer(c.sendTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return SendOutcome{Result: SendTimedOut}, fmt.Errorf("%w: %s: %v", ErrUnavailable, method, ctx.Err())
		case <-deadline.C:
			c.logger.Warn("chain transaction timed out", "method", method, "hash", hash)
			return SendOutcome{Result: SendTimedOut}, nil
		case <-ticker.C:
		}

		statusCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
		var status txStatusResult
		err := c.call(statusCtx, "contracts_transactionStatus", map[string]string{"hash": hash}, &status)
		cancel()
		if err != nil {
			// A transient status failure is not a submission failure; keep
			// waiting until the bounded timeout expires.
			c.logger.Warn("chain status poll failed", "method", method, "hash", hash, "err", err)
			continue
		}

		switch status.Status {
		case "inBlock", "finalized":
			for i := range status.Events {
				if status.Events[i].Name == eventName {
					return SendOutcome{Result: SendConfirmed, Event: &status.Events[i]}, nil
				}
			}
			if status.Status == "finalized" {
				c.logger.Info("chain transaction finalized without event",
					"method", method, "hash", hash, "event", eventName)
				return SendOutcome{Result: SendFinalizedNoEvent}, nil
			}
		}
	}
}

// sign produces the keyed blake2b-256 authentication tag the node expects
// over the canonical submission payload.
func (c *Client) sign(payload []byte) (string, error) {
	h, err := blake2b.New256(c.signingKey)
	if err != nil {
		return "", fmt.Errorf("chain: init signer: %w", err)
	}
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil)), nil
}
