package httpapi

import (
	"time"

	"auditflow/arbitration"
	"auditflow/bid"
	"auditflow/post"
)

type postView struct {
	PostID            int64    `json:"postId"`
	PatronEmail       string   `json:"patronEmail"`
	AuditorEmail      string   `json:"auditorEmail,omitempty"`
	Status            string   `json:"status"`
	AuditTypes        []string `json:"auditTypes"`
	GithubURL         string   `json:"githubUrl"`
	Description       string   `json:"description"`
	SocialLink        string   `json:"socialLink,omitempty"`
	OfferAmount       int64    `json:"offerAmount"`
	EstimatedDelivery int64    `json:"estimatedDelivery"`
	CurrentAuditID    int64    `json:"currentAuditId,omitempty"`
	Salt              int64    `json:"salt,omitempty"`
	TxHash            string   `json:"txHash,omitempty"`
	ExtensionRequest  bool     `json:"extensionRequest"`
	VoteID            int64    `json:"voteId,omitempty"`
	ReportFiles       []string `json:"reportFiles,omitempty"`
	DisputeReason     string   `json:"disputeReason,omitempty"`
	CreatedAt         string   `json:"createdAt"`
	UpdatedAt         string   `json:"updatedAt"`
}

func toPostView(r post.Record) postView {
	return postView{
		PostID:            r.PostID,
		PatronEmail:       r.PatronEmail,
		AuditorEmail:      r.AuditorEmail,
		Status:            string(r.Status),
		AuditTypes:        r.AuditTypes,
		GithubURL:         r.GithubURL,
		Description:       r.Description,
		SocialLink:        r.SocialLink,
		OfferAmount:       r.OfferAmount,
		EstimatedDelivery: r.EstimatedDelivery,
		CurrentAuditID:    r.CurrentAuditID,
		Salt:              r.Salt,
		TxHash:            r.TxHash,
		ExtensionRequest:  r.ExtensionRequest,
		VoteID:            r.VoteID,
		ReportFiles:       r.ReportFiles,
		DisputeReason:     r.DisputeReason,
		CreatedAt:         r.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:         r.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

type bidView struct {
	ID                string          `json:"id"`
	PostID            int64           `json:"postId"`
	AuditorEmail      string          `json:"auditorEmail"`
	PatronEmail       string          `json:"patronEmail"`
	Status            string          `json:"status"`
	IsRejected        bool            `json:"isRejected"`
	EstimatedAmount   int64           `json:"estimatedAmount"`
	EstimatedDelivery int64           `json:"estimatedDelivery"`
	History           []bid.Extension `json:"history"`
}

func toBidView(r bid.Record) bidView {
	history := r.History
	if history == nil {
		history = []bid.Extension{}
	}
	return bidView{
		ID:                r.ID,
		PostID:            r.PostID,
		AuditorEmail:      r.AuditorEmail,
		PatronEmail:       r.PatronEmail,
		Status:            string(r.Status),
		IsRejected:        r.IsRejected,
		EstimatedAmount:   r.EstimatedAmount,
		EstimatedDelivery: r.EstimatedDelivery,
		History:           history,
	}
}

type arbitrationView struct {
	ID                string   `json:"id"`
	PostID            int64    `json:"postId"`
	VoteID            int64    `json:"voteId"`
	VoteCount         int      `json:"voteCount"`
	ForceVoteDeadline string   `json:"forceVoteDeadline"`
	IsForceVoted      bool     `json:"isForceVoted"`
	Arbiters          []string `json:"arbiters"`
}

func toArbitrationView(r arbitration.Record) arbitrationView {
	arbiters := make([]string, 0, len(r.Votes))
	for _, v := range r.Votes {
		arbiters = append(arbiters, v.ArbiterAddress)
	}
	return arbitrationView{
		ID:                r.ID,
		PostID:            r.PostID,
		VoteID:            r.VoteID,
		VoteCount:         r.VoteCount,
		ForceVoteDeadline: r.ForceVoteDeadline.UTC().Format(time.RFC3339),
		IsForceVoted:      r.IsForceVoted,
		Arbiters:          arbiters,
	}
}

type detailView struct {
	Arbitration       arbitrationView `json:"arbitration"`
	PatronEmail       string          `json:"patronEmail"`
	AuditorEmail      string          `json:"auditorEmail"`
	GithubURL         string          `json:"githubUrl"`
	Description       string          `json:"description"`
	DisputeReason     string          `json:"disputeReason"`
	ReportFiles       []string        `json:"reportFiles"`
	OfferAmount       int64           `json:"offerAmount"`
	EstimatedDelivery int64           `json:"estimatedDelivery"`
	BidAmount         int64           `json:"bidAmount"`
	BidDelivery       int64           `json:"bidDelivery"`
}

func toDetailView(d arbitration.Detail) detailView {
	return detailView{
		Arbitration:       toArbitrationView(d.Record),
		PatronEmail:       d.PatronEmail,
		AuditorEmail:      d.AuditorEmail,
		GithubURL:         d.GithubURL,
		Description:       d.Description,
		DisputeReason:     d.DisputeReason,
		ReportFiles:       d.ReportFiles,
		OfferAmount:       d.OfferAmount,
		EstimatedDelivery: d.EstimatedDelivery,
		BidAmount:         d.BidAmount,
		BidDelivery:       d.BidDelivery,
	}
}
