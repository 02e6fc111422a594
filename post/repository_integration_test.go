package post

import (
	"context"
	"errors"
	"testing"
	"time"

	"auditflow/test/infra"
)

// TestLifecycle_Integration runs the conditional-update transitions against
// a real PostgreSQL. Requires Docker unless INTEGRATION_PG_DSN points at a
// live database.
func TestLifecycle_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in -short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	pgc, dsn, err := infra.StartPostgres16(ctx, "")
	if err != nil {
		t.Skipf("postgres unavailable: %v", err)
	}
	t.Cleanup(func() { _ = pgc.Terminate(context.Background()) })

	pool, teardown, err := infra.ApplyMigrations(ctx, dsn)
	if err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	t.Cleanup(func() {
		pool.Close()
		_ = teardown(context.Background())
	})

	repo := NewRepository(pool)

	// Salt correlates the confirmation with the on-chain transaction.
	const salt = int64(4711)

	rec, err := repo.Create(ctx, "patron@example.com", RegisterParams{
		AuditTypes:        []string{"security", "gas"},
		GithubURL:         "https://github.com/example/escrow",
		Description:       "ink! escrow contract",
		OfferAmount:       100,
		EstimatedDelivery: time.Now().Add(30 * 24 * time.Hour).UnixMilli(),
		Salt:              salt,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.Status != StatusPreRegistration {
		t.Fatalf("expected PRE_REGISTRATION, got %s", rec.Status)
	}
	if rec.PostID == 0 {
		t.Fatalf("expected a generated post id")
	}

	if _, err := repo.Confirm(ctx, salt+1, "0xabc", 9); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for wrong salt, got %v", err)
	}

	confirmed, err := repo.Confirm(ctx, salt, "0xabc", 9)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed.Status != StatusPending || confirmed.CurrentAuditID != 9 {
		t.Fatalf("unexpected confirmed record: %+v", confirmed)
	}

	// The guard is consumed: a second confirmation finds no matching row.
	if _, err := repo.Confirm(ctx, salt, "0xdef", 9); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected second confirm to fail, got %v", err)
	}

	// An accepted bid supplies the working terms for IN_PROGRESS.
	if _, err := pool.Exec(ctx, `
		INSERT INTO bids (id, post_id, auditor_email, patron_email, status, estimated_amount, estimated_delivery)
		VALUES (gen_random_uuid(), $1, 'auditor@example.com', 'patron@example.com', 'CONFIRM', 80, $2)`,
		rec.PostID, time.Now().Add(14*24*time.Hour).UnixMilli()); err != nil {
		t.Fatalf("seed bid: %v", err)
	}

	if _, err := repo.SetAuditor(ctx, rec.PostID, "patron@example.com", "auditor@example.com", salt); err != nil {
		t.Fatalf("set auditor: %v", err)
	}

	inProgress, err := repo.SetInProgress(ctx, rec.PostID, "patron@example.com", salt, "0x123")
	if err != nil {
		t.Fatalf("set in progress: %v", err)
	}
	if inProgress.Status != StatusInProgress {
		t.Fatalf("expected IN_PROGRESS, got %s", inProgress.Status)
	}
	if inProgress.OfferAmount != 80 {
		t.Fatalf("expected bid amount 80 copied onto post, got %d", inProgress.OfferAmount)
	}

	submitted, err := repo.SetSubmitted(ctx, rec.PostID, "auditor@example.com", salt, "0x456")
	if err != nil {
		t.Fatalf("set submitted: %v", err)
	}
	if submitted.Status != StatusSubmitted {
		t.Fatalf("expected SUBMITTED, got %s", submitted.Status)
	}

	done, err := repo.Finish(ctx, rec.PostID, "patron@example.com", salt, "0x789", StatusCompleted)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if done.Status != StatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", done.Status)
	}
}
