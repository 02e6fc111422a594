package arbitration

import "time"

// quorum is the vote count that forces resolution even while the
// contract still reports the poll open.
const quorum = 4

// forceVoteWindow is how long arbiters get before an unresolved poll
// can be force-settled. The cutoff is hard: votes arriving at or after
// the deadline are routed to resolution instead.
const forceVoteWindow = 24 * time.Hour

// VoteTypeUnvoted is the zero sentinel for an arbiter slot that has not
// voted yet. Any non-zero vote type marks the slot used.
const VoteTypeUnvoted = 0

// Vote is one arbiter slot on a poll.
type Vote struct {
	ArbiterAddress string
	VoteType       int
	Approve        bool
}

// Record is the coordinator's view of an on-chain poll. One row per
// post, created once and never re-created.
type Record struct {
	ID                string
	PostID            int64
	VoteID            int64
	CurrentAuditID    int64
	VoteCount         int
	ForceVoteDeadline time.Time
	IsForceVoted      bool
	CreatedAt         time.Time
	Votes             []Vote
}

// onPanel reports whether the address holds one of the poll's slots.
func (r Record) onPanel(arbiterAddress string) bool {
	for _, v := range r.Votes {
		if v.ArbiterAddress == arbiterAddress {
			return true
		}
	}
	return false
}

// Detail is what an arbiter reviews before voting: the poll, the
// disputed post, and the confirmed bid's terms.
type Detail struct {
	Record            Record
	PostID            int64
	PatronEmail       string
	AuditorEmail      string
	GithubURL         string
	Description       string
	DisputeReason     string
	ReportFiles       []string
	OfferAmount       int64
	EstimatedDelivery int64
	BidAmount         int64
	BidDelivery       int64
}
