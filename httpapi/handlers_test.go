package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"auditflow/arbitration"
	"auditflow/auth"
	"auditflow/bid"
	"auditflow/post"
)

func newTestServer(t *testing.T, posts PostService, bids BidService, arb ArbitrationService) *httptest.Server {
	t.Helper()
	h := NewHandler(posts, bids, arb, fakePinger{}, nil)
	srv := httptest.NewServer(NewRouter(h, fakeVerifier{}))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, srv *httptest.Server, method, path, token, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestRouter_RejectsMissingToken(t *testing.T) {
	srv := newTestServer(t, &stubPosts{}, &stubBids{}, &stubArb{})

	resp := doJSON(t, srv, http.MethodPost, "/registerAudit", "", `{}`)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestRegisterAudit_CreatesPost(t *testing.T) {
	posts := &stubPosts{rec: post.Record{PostID: 17, PatronEmail: "patron@example.com", Status: post.StatusPreRegistration}}
	srv := newTestServer(t, posts, &stubBids{}, &stubArb{})

	body := `{
		"auditTypes": ["security"],
		"githubUrl": "https://github.com/example/repo",
		"description": "ink! escrow audit",
		"offerAmount": 100,
		"estimatedDelivery": "31/12/2026",
		"salt": 4711
	}`
	resp := doJSON(t, srv, http.MethodPost, "/registerAudit", "token", body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var view postView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if view.PostID != 17 {
		t.Errorf("expected postId 17, got %d", view.PostID)
	}
	if posts.registeredBy != "patron@example.com" {
		t.Errorf("expected patron from token, got %q", posts.registeredBy)
	}
}

func TestRegisterAudit_RejectsBadDate(t *testing.T) {
	srv := newTestServer(t, &stubPosts{}, &stubBids{}, &stubArb{})

	body := `{
		"auditTypes": ["security"],
		"githubUrl": "https://github.com/example/repo",
		"description": "audit",
		"offerAmount": 100,
		"estimatedDelivery": "2026-12-31",
		"salt": 4711
	}`
	resp := doJSON(t, srv, http.MethodPost, "/registerAudit", "token", body)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestConfirmPost_GuardMismatchMapsToConflict(t *testing.T) {
	posts := &stubPosts{err: post.ErrGuardMismatch}
	srv := newTestServer(t, posts, &stubBids{}, &stubArb{})

	resp := doJSON(t, srv, http.MethodPost, "/confirmPost", "token",
		`{"salt": 4711, "txHash": "0xabc", "auditId": 9}`)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestVoteForPost_RequiresVoteField(t *testing.T) {
	srv := newTestServer(t, &stubPosts{}, &stubBids{}, &stubArb{})

	resp := doJSON(t, srv, http.MethodPost, "/voteForPost", "token",
		`{"postId": 1, "voteType": 2}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestVoteForPost_PassesWalletAddress(t *testing.T) {
	arb := &stubArb{}
	srv := newTestServer(t, &stubPosts{}, &stubBids{}, arb)

	resp := doJSON(t, srv, http.MethodPost, "/voteForPost", "token",
		`{"postId": 1, "voteType": 2, "vote": true}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if arb.votedBy != "5GrwvaEF" {
		t.Errorf("expected wallet address from token, got %q", arb.votedBy)
	}
}

func TestRequestForAudit_DuplicateMapsToConflict(t *testing.T) {
	bids := &stubBids{err: bid.ErrDuplicateBid}
	srv := newTestServer(t, &stubPosts{}, bids, &stubArb{})

	resp := doJSON(t, srv, http.MethodPost, "/requestForAudit", "token",
		`{"postId": 1, "estimatedAmount": 50, "estimatedDelivery": "31/12/2026"}`)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestSetExtendTimelineData_RaisesProposal(t *testing.T) {
	bids := &stubBids{}
	srv := newTestServer(t, &stubPosts{}, bids, &stubArb{})

	resp := doJSON(t, srv, http.MethodPost, "/setExtendTimelineData", "token",
		`{"postId": 1, "reason": "scope grew", "proposedAmount": 90, "proposedDeliveryTime": "31/12/2026"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !bids.proposed || bids.resolved {
		t.Fatalf("expected a proposal, got proposed=%v resolved=%v", bids.proposed, bids.resolved)
	}
	if bids.proposedExt.Reason != "scope grew" || bids.proposedExt.ProposedAmount != 90 {
		t.Errorf("unexpected proposal terms: %+v", bids.proposedExt)
	}
}

func TestExtendTimeline_ResolvesProposal(t *testing.T) {
	bids := &stubBids{}
	srv := newTestServer(t, &stubPosts{}, bids, &stubArb{})

	resp := doJSON(t, srv, http.MethodPost, "/extendTimeline", "token",
		`{"postId": 1, "accepted": true}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !bids.resolved || bids.proposed {
		t.Fatalf("expected a resolution, got proposed=%v resolved=%v", bids.proposed, bids.resolved)
	}
	if !bids.accepted {
		t.Errorf("expected the accepted flag to pass through")
	}
}

func TestHealthCheck_NoTokenNeeded(t *testing.T) {
	srv := newTestServer(t, &stubPosts{}, &stubBids{}, &stubArb{})

	resp := doJSON(t, srv, http.MethodGet, "/healthCheck", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

type fakeVerifier struct{}

func (fakeVerifier) VerifyToken(tokenString string) (auth.Identity, error) {
	if tokenString == "" {
		return auth.Identity{}, auth.ErrInvalidToken
	}
	return auth.Identity{Email: "patron@example.com", WalletAddress: "5GrwvaEF"}, nil
}

type fakePinger struct{}

func (fakePinger) Ping(ctx context.Context) error { return nil }

type stubPosts struct {
	rec          post.Record
	err          error
	registeredBy string
}

func (s *stubPosts) Register(ctx context.Context, patronEmail string, params post.RegisterParams) (post.Record, error) {
	s.registeredBy = patronEmail
	return s.rec, s.err
}

func (s *stubPosts) Confirm(ctx context.Context, salt int64, txHash string, auditID int64) (post.Record, error) {
	return s.rec, s.err
}

func (s *stubPosts) UpdateStatus(ctx context.Context, patronEmail string, postID, salt int64, txHash string, target post.Status) (post.Record, error) {
	return s.rec, s.err
}

func (s *stubPosts) FailAfterClaim(ctx context.Context, patronEmail string, postID int64) (post.Record, error) {
	return s.rec, s.err
}

func (s *stubPosts) AssignAuditor(ctx context.Context, patronEmail string, postID int64, auditorEmail string, salt int64) (post.Record, error) {
	return s.rec, s.err
}

func (s *stubPosts) UpdateSalt(ctx context.Context, patronEmail string, postID, salt int64) (post.Record, error) {
	return s.rec, s.err
}

func (s *stubPosts) SubmitReport(ctx context.Context, auditorEmail string, postID, salt int64, files []string) (post.Record, error) {
	return s.rec, s.err
}

func (s *stubPosts) ConfirmSubmit(ctx context.Context, auditorEmail string, postID, salt int64, txHash string) (post.Record, error) {
	return s.rec, s.err
}

func (s *stubPosts) Get(ctx context.Context, postID int64) (post.Record, error) {
	return s.rec, s.err
}

type stubBids struct {
	rec         bid.Record
	err         error
	proposedExt bid.Extension
	proposed    bool
	resolved    bool
	accepted    bool
}

func (s *stubBids) Place(ctx context.Context, auditorEmail string, params bid.PlaceParams) (bid.Record, error) {
	return s.rec, s.err
}

func (s *stubBids) ListByPost(ctx context.Context, postID int64) ([]bid.Record, error) {
	return nil, s.err
}

func (s *stubBids) Accept(ctx context.Context, patronEmail, bidID string) (bid.Record, error) {
	return s.rec, s.err
}

func (s *stubBids) Reject(ctx context.Context, patronEmail, bidID string) (bid.Record, error) {
	return s.rec, s.err
}

func (s *stubBids) Withdraw(ctx context.Context, auditorEmail string, postID int64) error {
	return s.err
}

func (s *stubBids) ProposeExtension(ctx context.Context, auditorEmail string, postID int64, ext bid.Extension) (bid.Record, error) {
	s.proposed = true
	s.proposedExt = ext
	return s.rec, s.err
}

func (s *stubBids) ResolveExtension(ctx context.Context, patronEmail string, postID int64, accepted bool) (bid.Record, error) {
	s.resolved = true
	s.accepted = accepted
	return s.rec, s.err
}

type stubArb struct {
	rec     arbitration.Record
	err     error
	votedBy string
}

func (s *stubArb) SelectArbiters(ctx context.Context, patronEmail string, postID int64, reason string) (arbitration.Record, error) {
	return s.rec, s.err
}

func (s *stubArb) Vote(ctx context.Context, arbiterAddress string, postID int64, voteType int, approve bool) error {
	s.votedBy = arbiterAddress
	return s.err
}

func (s *stubArb) Details(ctx context.Context, arbiterAddress string) ([]arbitration.Detail, error) {
	return nil, s.err
}
