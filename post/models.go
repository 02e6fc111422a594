package post

import "time"

// Status is the engagement lifecycle state. Transitions go through the
// registry's guarded conditional updates only.
type Status string

const (
	StatusPreRegistration  Status = "PRE_REGISTRATION"
	StatusPending          Status = "PENDING"
	StatusInProgress       Status = "IN_PROGRESS"
	StatusSubmitted        Status = "SUBMITTED"
	StatusUnderArbitration Status = "UNDER_ARBITERATION"
	StatusCompleted        Status = "COMPLETED"
	StatusFailed           Status = "FAILED"
)

// Record mirrors the posts table. Amounts are whole tokens; timestamps on
// the engagement (estimated delivery) are unix milliseconds to match the
// contract's deadline representation.
type Record struct {
	PostID            int64
	PatronEmail       string
	AuditorEmail      string
	Status            Status
	AuditTypes        []string
	GithubURL         string
	Description       string
	SocialLink        string
	OfferAmount       int64
	EstimatedDelivery int64
	CurrentAuditID    int64
	Salt              int64
	TxHash            string
	ExtensionRequest  bool
	VoteID            int64
	ReportFiles       []string
	DisputeReason     string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// RegisterParams is the caller-supplied portion of a new engagement.
type RegisterParams struct {
	AuditTypes        []string
	GithubURL         string
	Description       string
	SocialLink        string
	OfferAmount       int64
	EstimatedDelivery int64
	Salt              int64
}
