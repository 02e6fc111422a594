package post

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"auditflow/chain"
)

func TestRegister_RejectsPastDelivery(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store, &fakeGateway{}, nil).WithClock(func() time.Time {
		return time.UnixMilli(1_000_000)
	})

	_, err := svc.Register(context.Background(), "patron@example.com", RegisterParams{
		AuditTypes:        []string{"security"},
		OfferAmount:       100,
		EstimatedDelivery: 999_999,
	})
	if !errors.Is(err, ErrDeliveryInPast) {
		t.Fatalf("expected ErrDeliveryInPast, got %v", err)
	}
	if store.created {
		t.Errorf("expected no record to be created")
	}
}

func TestConfirm_GuardMismatchLeavesPostUntouched(t *testing.T) {
	store := &fakeStore{}
	gw := &fakeGateway{status: chain.AuditAssigned}
	svc := NewService(store, gw, nil)

	_, err := svc.Confirm(context.Background(), 4711, "0xabc", 9)
	if !errors.Is(err, ErrGuardMismatch) {
		t.Fatalf("expected ErrGuardMismatch, got %v", err)
	}
	if store.confirmed {
		t.Errorf("expected confirm write to be skipped on guard mismatch")
	}
}

func TestConfirm_AppliesWhenContractReportsCreated(t *testing.T) {
	store := &fakeStore{}
	gw := &fakeGateway{status: chain.AuditCreated}
	svc := NewService(store, gw, nil)

	rec, err := svc.Confirm(context.Background(), 4711, "0xabc", 9)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !store.confirmed {
		t.Fatalf("expected confirm write to run")
	}
	if rec.Status != StatusPending {
		t.Errorf("expected PENDING, got %s", rec.Status)
	}
}

func TestUpdateStatus_PendingRejectsTerminalTarget(t *testing.T) {
	store := &fakeStore{rec: Record{PostID: 1, Status: StatusPending, Salt: 7, CurrentAuditID: 9}}
	svc := NewService(store, &fakeGateway{status: chain.AuditAssigned}, nil)

	_, err := svc.UpdateStatus(context.Background(), "patron@example.com", 1, 7, "0xabc", StatusCompleted)
	if !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestUpdateStatus_SubmittedCompletes(t *testing.T) {
	store := &fakeStore{rec: Record{PostID: 1, Status: StatusSubmitted, Salt: 7, CurrentAuditID: 9}}
	svc := NewService(store, &fakeGateway{status: chain.AuditCompleted}, nil)

	rec, err := svc.UpdateStatus(context.Background(), "patron@example.com", 1, 7, "0xdef", StatusCompleted)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if rec.Status != StatusCompleted {
		t.Errorf("expected COMPLETED, got %s", rec.Status)
	}
	if store.finishTarget != StatusCompleted {
		t.Errorf("expected finish target COMPLETED, got %s", store.finishTarget)
	}
}

func TestUpdateStatus_SaltMismatchIsNotFound(t *testing.T) {
	store := &fakeStore{rec: Record{PostID: 1, Status: StatusPending, Salt: 7}}
	svc := NewService(store, &fakeGateway{status: chain.AuditAssigned}, nil)

	_, err := svc.UpdateStatus(context.Background(), "patron@example.com", 1, 8, "0xabc", StatusInProgress)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSubmitReport_CountMustMatchAuditTypes(t *testing.T) {
	store := &fakeStore{rec: Record{
		PostID:       1,
		Status:       StatusInProgress,
		AuditorEmail: "auditor@example.com",
		AuditTypes:   []string{"security", "gas"},
		Salt:         7,
	}}
	svc := NewService(store, &fakeGateway{}, nil)

	_, err := svc.SubmitReport(context.Background(), "auditor@example.com", 1, 7, []string{"ipfs://one"})
	if !errors.Is(err, ErrReportCountMismatch) {
		t.Fatalf("expected ErrReportCountMismatch, got %v", err)
	}

	_, err = svc.SubmitReport(context.Background(), "auditor@example.com", 1, 7, []string{"ipfs://one", "ipfs://two"})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestConfirmSubmit_OnlyAssignedAuditor(t *testing.T) {
	store := &fakeStore{rec: Record{
		PostID:       1,
		Status:       StatusInProgress,
		AuditorEmail: "auditor@example.com",
		Salt:         7,
	}}
	svc := NewService(store, &fakeGateway{status: chain.AuditSubmitted}, nil)

	if _, err := svc.ConfirmSubmit(context.Background(), "other@example.com", 1, 7, "0xabc"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign auditor, got %v", err)
	}

	rec, err := svc.ConfirmSubmit(context.Background(), "auditor@example.com", 1, 7, "0xabc")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if rec.Status != StatusSubmitted {
		t.Errorf("expected SUBMITTED, got %s", rec.Status)
	}
}

type fakeStore struct {
	rec          Record
	created      bool
	confirmed    bool
	finishTarget Status
}

func (f *fakeStore) Create(ctx context.Context, patronEmail string, params RegisterParams) (Record, error) {
	f.created = true
	return Record{PostID: 1, PatronEmail: patronEmail, Status: StatusPreRegistration}, nil
}

func (f *fakeStore) GetByID(ctx context.Context, postID int64) (Record, error) {
	if f.rec.PostID == 0 {
		return Record{}, ErrNotFound
	}
	return f.rec, nil
}

func (f *fakeStore) GetOwned(ctx context.Context, postID int64, patronEmail string, statuses ...Status) (Record, error) {
	if f.rec.PostID == 0 {
		return Record{}, ErrNotFound
	}
	for _, st := range statuses {
		if f.rec.Status == st {
			return f.rec, nil
		}
	}
	return Record{}, ErrNotFound
}

func (f *fakeStore) Confirm(ctx context.Context, salt int64, txHash string, auditID int64) (Record, error) {
	f.confirmed = true
	return Record{PostID: 1, Status: StatusPending, Salt: salt, TxHash: txHash, CurrentAuditID: auditID}, nil
}

func (f *fakeStore) SetInProgress(ctx context.Context, postID int64, patronEmail string, salt int64, txHash string) (Record, error) {
	f.rec.Status = StatusInProgress
	return f.rec, nil
}

func (f *fakeStore) Finish(ctx context.Context, postID int64, patronEmail string, salt int64, txHash string, target Status) (Record, error) {
	f.finishTarget = target
	f.rec.Status = target
	return f.rec, nil
}

func (f *fakeStore) FailAfterClaim(ctx context.Context, postID int64, patronEmail string) (Record, error) {
	f.rec.Status = StatusFailed
	return f.rec, nil
}

func (f *fakeStore) SetAuditor(ctx context.Context, postID int64, patronEmail, auditorEmail string, salt int64) (Record, error) {
	f.rec.AuditorEmail = auditorEmail
	f.rec.Salt = salt
	return f.rec, nil
}

func (f *fakeStore) UpdateSalt(ctx context.Context, postID int64, patronEmail string, salt int64) (Record, error) {
	f.rec.Salt = salt
	return f.rec, nil
}

func (f *fakeStore) SetReportFiles(ctx context.Context, postID int64, auditorEmail string, salt int64, files []string) (Record, error) {
	f.rec.ReportFiles = files
	return f.rec, nil
}

func (f *fakeStore) SetSubmitted(ctx context.Context, postID int64, auditorEmail string, salt int64, txHash string) (Record, error) {
	f.rec.Status = StatusSubmitted
	return f.rec, nil
}

type fakeGateway struct {
	status  chain.AuditStatus
	callErr error
}

func (f *fakeGateway) GetPaymentInfo(ctx context.Context, auditID int64) (chain.PaymentInfo, error) {
	if f.callErr != nil {
		return chain.PaymentInfo{}, f.callErr
	}
	return chain.PaymentInfo{Status: f.status, NewOfferAmount: big.NewInt(0)}, nil
}

func (f *fakeGateway) GetPollHaircut(ctx context.Context, pollID int64) (*big.Int, error) {
	return big.NewInt(0), nil
}

func (f *fakeGateway) GetArbiterShareRatio(ctx context.Context) (*big.Int, error) {
	return big.NewInt(10), nil
}

func (f *fakeGateway) CreatePoll(ctx context.Context, auditID, buffer int64, arbiters [5]string) (chain.PollCreated, error) {
	return chain.PollCreated{}, nil
}

func (f *fakeGateway) Distribute(ctx context.Context, pollID int64, amount *big.Int) (chain.SendOutcome, error) {
	return chain.SendOutcome{Result: chain.SendConfirmed}, nil
}
