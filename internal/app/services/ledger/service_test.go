package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/yorktechapps/pixelplace/internal/app/domain/purchase"
	"github.com/yorktechapps/pixelplace/internal/app/storage/memory"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	return New(store, store, nil), store
}

func TestRegisterIsIdempotentPerExternalID(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Register(ctx, 42, "Alice")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if first.PixelBalance != 0 {
		t.Fatalf("new participant balance %d, want 0", first.PixelBalance)
	}

	again, err := svc.Register(ctx, 42, "Alice A.")
	if err != nil {
		t.Fatalf("re-register: %v", err)
	}
	if again.ID != first.ID {
		t.Fatalf("re-register minted a new identity: %s vs %s", again.ID, first.ID)
	}
	if again.DisplayName != "Alice A." {
		t.Fatalf("display name not refreshed: %s", again.DisplayName)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, 0, "Alice"); err == nil {
		t.Fatal("zero external id accepted")
	}
	if _, err := svc.Register(ctx, 42, ""); err == nil {
		t.Fatal("empty display name accepted")
	}
}

func TestBalanceUnknownParticipant(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.Balance(context.Background(), "nope"); !errors.Is(err, ErrParticipantNotFound) {
		t.Fatalf("got %v, want ErrParticipantNotFound", err)
	}
}

func TestCreditPurchase(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	p, err := svc.Register(ctx, 42, "Alice")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	pack := purchase.Packs[50]
	balance, tx, err := svc.CreditPurchase(ctx, p.ID, pack, "key-1")
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if balance != 50 {
		t.Fatalf("balance %d, want 50", balance)
	}
	if tx.Status != purchase.StatusCompleted {
		t.Fatalf("status %s", tx.Status)
	}
	if tx.PixelsGranted != 50 || tx.DigipogsSpent != 85 || tx.DiscountPercent != 15 {
		t.Fatalf("audit record wrong: %+v", tx)
	}

	history, err := svc.Transactions(ctx, p.ID)
	if err != nil || len(history) != 1 {
		t.Fatalf("history len %d err %v", len(history), err)
	}

	if _, _, err := svc.CreditPurchase(ctx, "nope", pack, "key-2"); !errors.Is(err, ErrParticipantNotFound) {
		t.Fatalf("unknown participant: %v", err)
	}
}

func TestRecordUnsettledDoesNotCredit(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	p, err := svc.Register(ctx, 42, "Alice")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	tx, err := svc.RecordUnsettled(ctx, p.ID, purchase.Packs[10], "key-timeout")
	if err != nil {
		t.Fatalf("record unsettled: %v", err)
	}
	if tx.Status != purchase.StatusPendingReconcile {
		t.Fatalf("status %s", tx.Status)
	}
	if tx.PixelsGranted != 0 {
		t.Fatalf("unsettled record granted %d pixels", tx.PixelsGranted)
	}

	balance, err := svc.Balance(ctx, p.ID)
	if err != nil || balance != 0 {
		t.Fatalf("balance %d err %v, want 0", balance, err)
	}
}
