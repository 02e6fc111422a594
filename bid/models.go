package bid

import "time"

// Status of a bid. PENDING bids are open offers the auditor may still
// edit; CONFIRM marks the bid the patron accepted.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusConfirm Status = "CONFIRM"
)

// Extension is one renegotiation proposal appended to a confirmed bid's
// history. Entries are append-only.
type Extension struct {
	Reason               string `json:"reason"`
	ProposedAmount       int64  `json:"proposedAmount"`
	ProposedDeliveryTime int64  `json:"proposedDeliveryTime"`
}

type Record struct {
	ID                string
	PostID            int64
	AuditorEmail      string
	PatronEmail       string
	Status            Status
	IsRejected        bool
	EstimatedAmount   int64
	EstimatedDelivery int64
	History           []Extension
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// PlaceParams carries an auditor's offer for a post.
type PlaceParams struct {
	PostID            int64
	EstimatedAmount   int64
	EstimatedDelivery int64
}
