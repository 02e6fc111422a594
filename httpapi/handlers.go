package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"auditflow/arbitration"
	"auditflow/bid"
	"auditflow/chain"
	"auditflow/post"
)

// dateLayout is the wire format for delivery dates.
const dateLayout = "02/01/2006"

// PostService drives the engagement lifecycle.
type PostService interface {
	Register(ctx context.Context, patronEmail string, params post.RegisterParams) (post.Record, error)
	Confirm(ctx context.Context, salt int64, txHash string, auditID int64) (post.Record, error)
	UpdateStatus(ctx context.Context, patronEmail string, postID, salt int64, txHash string, target post.Status) (post.Record, error)
	FailAfterClaim(ctx context.Context, patronEmail string, postID int64) (post.Record, error)
	AssignAuditor(ctx context.Context, patronEmail string, postID int64, auditorEmail string, salt int64) (post.Record, error)
	UpdateSalt(ctx context.Context, patronEmail string, postID, salt int64) (post.Record, error)
	SubmitReport(ctx context.Context, auditorEmail string, postID, salt int64, files []string) (post.Record, error)
	ConfirmSubmit(ctx context.Context, auditorEmail string, postID, salt int64, txHash string) (post.Record, error)
	Get(ctx context.Context, postID int64) (post.Record, error)
}

// BidService handles auditor offers and timeline renegotiation.
type BidService interface {
	Place(ctx context.Context, auditorEmail string, params bid.PlaceParams) (bid.Record, error)
	ListByPost(ctx context.Context, postID int64) ([]bid.Record, error)
	Accept(ctx context.Context, patronEmail, bidID string) (bid.Record, error)
	Reject(ctx context.Context, patronEmail, bidID string) (bid.Record, error)
	Withdraw(ctx context.Context, auditorEmail string, postID int64) error
	ProposeExtension(ctx context.Context, auditorEmail string, postID int64, ext bid.Extension) (bid.Record, error)
	ResolveExtension(ctx context.Context, patronEmail string, postID int64, accepted bool) (bid.Record, error)
}

// ArbitrationService runs dispute polls.
type ArbitrationService interface {
	SelectArbiters(ctx context.Context, patronEmail string, postID int64, reason string) (arbitration.Record, error)
	Vote(ctx context.Context, arbiterAddress string, postID int64, voteType int, approve bool) error
	Details(ctx context.Context, arbiterAddress string) ([]arbitration.Detail, error)
}

// Pinger reports whether the datastore is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	posts      PostService
	bids       BidService
	arbitraton ArbitrationService
	db         Pinger
	validate   *validator.Validate
	logger     *slog.Logger
}

func NewHandler(posts PostService, bids BidService, arb ArbitrationService, db Pinger, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		posts:      posts,
		bids:       bids,
		arbitraton: arb,
		db:         db,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		logger:     logger,
	}
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]apiError{"error": {Code: code, Message: message}})
}

// decode unmarshals and validates the request body into v.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_JSON", "invalid JSON body")
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return false
	}
	return true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, post.ErrNotFound), errors.Is(err, bid.ErrNotFound), errors.Is(err, arbitration.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "resource not found")
	case errors.Is(err, post.ErrGuardMismatch):
		writeError(w, http.StatusConflict, "GUARD_MISMATCH", err.Error())
	case errors.Is(err, post.ErrInvalidStatus), errors.Is(err, post.ErrDeliveryInPast),
		errors.Is(err, post.ErrReportCountMismatch), errors.Is(err, bid.ErrSelfBid),
		errors.Is(err, bid.ErrPostNotOpen), errors.Is(err, bid.ErrNoExtensionPending):
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
	case errors.Is(err, bid.ErrDuplicateBid), errors.Is(err, bid.ErrAlreadyConfirmed),
		errors.Is(err, arbitration.ErrAlreadyVoted), errors.Is(err, arbitration.ErrAlreadyResolving),
		errors.Is(err, arbitration.ErrUnresolvable):
		writeError(w, http.StatusConflict, "CONFLICT", err.Error())
	case errors.Is(err, arbitration.ErrNotArbiter):
		writeError(w, http.StatusForbidden, "NOT_ARBITER", err.Error())
	case errors.Is(err, chain.ErrUnavailable):
		writeError(w, http.StatusBadGateway, "CHAIN_UNAVAILABLE", "contract node is unreachable")
	default:
		h.logger.Error("request failed",
			slog.String("path", r.URL.Path), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
	}
}

// parseDate converts a DD/MM/YYYY date into unix milliseconds at UTC
// midnight.
func parseDate(raw string) (int64, error) {
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return 0, err
	}
	return t.UnixMilli(), nil
}

type registerAuditRequest struct {
	AuditTypes        []string `json:"auditTypes" validate:"required,min=1,dive,required"`
	GithubURL         string   `json:"githubUrl" validate:"required,url"`
	Description       string   `json:"description" validate:"required"`
	SocialLink        string   `json:"socialLink" validate:"omitempty,url"`
	OfferAmount       int64    `json:"offerAmount" validate:"required,gt=0"`
	EstimatedDelivery string   `json:"estimatedDelivery" validate:"required"`
	Salt              int64    `json:"salt" validate:"required"`
}

// RegisterAudit handles POST /registerAudit.
func (h *Handler) RegisterAudit(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	var req registerAuditRequest
	if !h.decode(w, r, &req) {
		return
	}
	delivery, err := parseDate(req.EstimatedDelivery)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "estimatedDelivery must be DD/MM/YYYY")
		return
	}

	rec, err := h.posts.Register(r.Context(), id.Email, post.RegisterParams{
		AuditTypes:        req.AuditTypes,
		GithubURL:         req.GithubURL,
		Description:       req.Description,
		SocialLink:        req.SocialLink,
		OfferAmount:       req.OfferAmount,
		EstimatedDelivery: delivery,
		Salt:              req.Salt,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPostView(rec))
}

type confirmPostRequest struct {
	Salt    int64  `json:"salt" validate:"required"`
	TxHash  string `json:"txHash" validate:"required"`
	AuditID int64  `json:"auditId" validate:"required"`
}

// ConfirmPost handles POST /confirmPost.
func (h *Handler) ConfirmPost(w http.ResponseWriter, r *http.Request) {
	var req confirmPostRequest
	if !h.decode(w, r, &req) {
		return
	}

	rec, err := h.posts.Confirm(r.Context(), req.Salt, req.TxHash, req.AuditID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostView(rec))
}

type updateAuditStatusRequest struct {
	PostID int64  `json:"postId" validate:"required"`
	Salt   int64  `json:"salt" validate:"required"`
	TxHash string `json:"txHash" validate:"required"`
	Status string `json:"status" validate:"required,oneof=IN_PROGRESS COMPLETED FAILED"`
}

// UpdateAuditStatus handles POST /updateAuditStatus.
func (h *Handler) UpdateAuditStatus(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	var req updateAuditStatusRequest
	if !h.decode(w, r, &req) {
		return
	}

	rec, err := h.posts.UpdateStatus(r.Context(), id.Email, req.PostID, req.Salt, req.TxHash, post.Status(req.Status))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostView(rec))
}

type postIDRequest struct {
	PostID int64 `json:"postId" validate:"required"`
}

// UpdateAuditStatusAfterClaim handles POST /updateAuditStatusAfterClaim.
func (h *Handler) UpdateAuditStatusAfterClaim(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	var req postIDRequest
	if !h.decode(w, r, &req) {
		return
	}

	rec, err := h.posts.FailAfterClaim(r.Context(), id.Email, req.PostID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostView(rec))
}

type requestForAuditRequest struct {
	PostID            int64  `json:"postId" validate:"required"`
	EstimatedAmount   int64  `json:"estimatedAmount" validate:"required,gt=0"`
	EstimatedDelivery string `json:"estimatedDelivery" validate:"required"`
}

// RequestForAudit handles POST /requestForAudit.
func (h *Handler) RequestForAudit(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	var req requestForAuditRequest
	if !h.decode(w, r, &req) {
		return
	}
	delivery, err := parseDate(req.EstimatedDelivery)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "estimatedDelivery must be DD/MM/YYYY")
		return
	}

	rec, err := h.bids.Place(r.Context(), id.Email, bid.PlaceParams{
		PostID:            req.PostID,
		EstimatedAmount:   req.EstimatedAmount,
		EstimatedDelivery: delivery,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBidView(rec))
}

// ViewBidRequests handles GET /viewBidRequests/{postID}.
func (h *Handler) ViewBidRequests(w http.ResponseWriter, r *http.Request) {
	postID, err := strconv.ParseInt(chi.URLParam(r, "postID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "postID must be an integer")
		return
	}

	bids, err := h.bids.ListByPost(r.Context(), postID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	views := make([]bidView, 0, len(bids))
	for _, b := range bids {
		views = append(views, toBidView(b))
	}
	writeJSON(w, http.StatusOK, map[string][]bidView{"bids": views})
}

type updateBidStatusRequest struct {
	BidID  string `json:"bidId" validate:"required,uuid4"`
	Status string `json:"status" validate:"required,oneof=CONFIRM REJECTED"`
}

// UpdateBidStatus handles POST /updateBidStatus.
func (h *Handler) UpdateBidStatus(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	var req updateBidStatusRequest
	if !h.decode(w, r, &req) {
		return
	}

	var rec bid.Record
	var err error
	if req.Status == "CONFIRM" {
		rec, err = h.bids.Accept(r.Context(), id.Email, req.BidID)
	} else {
		rec, err = h.bids.Reject(r.Context(), id.Email, req.BidID)
	}
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBidView(rec))
}

// DeleteBidRequest handles POST /deleteBidRequest.
func (h *Handler) DeleteBidRequest(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	var req postIDRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.bids.Withdraw(r.Context(), id.Email, req.PostID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type updateAuditorRequest struct {
	PostID       int64  `json:"postId" validate:"required"`
	AuditorEmail string `json:"auditorEmail" validate:"required,email"`
	Salt         int64  `json:"salt" validate:"required"`
}

// UpdateAuditorID handles POST /updateAuditorID.
func (h *Handler) UpdateAuditorID(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	var req updateAuditorRequest
	if !h.decode(w, r, &req) {
		return
	}

	rec, err := h.posts.AssignAuditor(r.Context(), id.Email, req.PostID, req.AuditorEmail, req.Salt)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostView(rec))
}

type updateSaltRequest struct {
	PostID int64 `json:"postId" validate:"required"`
	Salt   int64 `json:"salt" validate:"required"`
}

// UpdateSalt handles POST /updateSalt.
func (h *Handler) UpdateSalt(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	var req updateSaltRequest
	if !h.decode(w, r, &req) {
		return
	}

	rec, err := h.posts.UpdateSalt(r.Context(), id.Email, req.PostID, req.Salt)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostView(rec))
}

type submitReportRequest struct {
	PostID      int64    `json:"postId" validate:"required"`
	Salt        int64    `json:"salt" validate:"required"`
	ReportFiles []string `json:"reportFiles" validate:"required,min=1,dive,uri"`
}

// SubmitAuditReport handles POST /submitAuditReport.
func (h *Handler) SubmitAuditReport(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	var req submitReportRequest
	if !h.decode(w, r, &req) {
		return
	}

	rec, err := h.posts.SubmitReport(r.Context(), id.Email, req.PostID, req.Salt, req.ReportFiles)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostView(rec))
}

type confirmSubmitRequest struct {
	PostID int64  `json:"postId" validate:"required"`
	Salt   int64  `json:"salt" validate:"required"`
	TxHash string `json:"txHash" validate:"required"`
}

// ConfirmSubmit handles POST /confirmSubmit.
func (h *Handler) ConfirmSubmit(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	var req confirmSubmitRequest
	if !h.decode(w, r, &req) {
		return
	}

	rec, err := h.posts.ConfirmSubmit(r.Context(), id.Email, req.PostID, req.Salt, req.TxHash)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostView(rec))
}

type proposeExtensionRequest struct {
	PostID               int64  `json:"postId" validate:"required"`
	Reason               string `json:"reason" validate:"required"`
	ProposedAmount       int64  `json:"proposedAmount" validate:"required,gt=0"`
	ProposedDeliveryTime string `json:"proposedDeliveryTime" validate:"required"`
}

// SetExtendTimelineData handles POST /setExtendTimelineData. The
// assigned auditor proposes new terms for the engagement.
func (h *Handler) SetExtendTimelineData(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	var req proposeExtensionRequest
	if !h.decode(w, r, &req) {
		return
	}
	delivery, err := parseDate(req.ProposedDeliveryTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "proposedDeliveryTime must be DD/MM/YYYY")
		return
	}

	rec, err := h.bids.ProposeExtension(r.Context(), id.Email, req.PostID, bid.Extension{
		Reason:               req.Reason,
		ProposedAmount:       req.ProposedAmount,
		ProposedDeliveryTime: delivery,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBidView(rec))
}

type resolveExtensionRequest struct {
	PostID   int64 `json:"postId" validate:"required"`
	Accepted *bool `json:"accepted" validate:"required"`
}

// ExtendTimeline handles POST /extendTimeline. The patron accepts or
// declines the pending proposal.
func (h *Handler) ExtendTimeline(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	var req resolveExtensionRequest
	if !h.decode(w, r, &req) {
		return
	}

	rec, err := h.bids.ResolveExtension(r.Context(), id.Email, req.PostID, *req.Accepted)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBidView(rec))
}

type selectArbitersRequest struct {
	PostID int64  `json:"postId" validate:"required"`
	Reason string `json:"reason" validate:"required"`
}

// SelectArbiters handles POST /selectArbiters.
func (h *Handler) SelectArbiters(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	var req selectArbitersRequest
	if !h.decode(w, r, &req) {
		return
	}

	rec, err := h.arbitraton.SelectArbiters(r.Context(), id.Email, req.PostID, req.Reason)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toArbitrationView(rec))
}

type voteRequest struct {
	PostID   int64 `json:"postId" validate:"required"`
	VoteType int   `json:"voteType" validate:"required,gt=0"`
	Vote     *bool `json:"vote" validate:"required"`
}

// VoteForPost handles POST /voteForPost.
func (h *Handler) VoteForPost(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	var req voteRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.arbitraton.Vote(r.Context(), id.WalletAddress, req.PostID, req.VoteType, *req.Vote); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

// ViewArbiterationDetails handles GET /viewArbiterationDetails.
func (h *Handler) ViewArbiterationDetails(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	details, err := h.arbitraton.Details(r.Context(), id.WalletAddress)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	views := make([]detailView, 0, len(details))
	for _, d := range details {
		views = append(views, toDetailView(d))
	}
	writeJSON(w, http.StatusOK, map[string][]detailView{"disputes": views})
}

// HealthCheck handles GET /healthCheck.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "datastore is unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
