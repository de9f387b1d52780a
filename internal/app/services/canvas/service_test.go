package canvas

import (
	"context"
	"errors"
	"testing"

	domain "github.com/yorktechapps/pixelplace/internal/app/domain/canvas"
	"github.com/yorktechapps/pixelplace/internal/app/domain/participant"
	"github.com/yorktechapps/pixelplace/internal/app/storage"
	"github.com/yorktechapps/pixelplace/internal/app/storage/memory"
)

func newTestService(t *testing.T, balance int) (*Service, *memory.Store, string) {
	t.Helper()
	store := memory.New()
	p, err := store.UpsertParticipant(context.Background(), participant.Participant{
		ExternalID:   7,
		DisplayName:  "Painter",
		PixelBalance: balance,
	})
	if err != nil {
		t.Fatalf("upsert participant: %v", err)
	}
	return New(store, store, nil), store, p.ID
}

func TestPlaceChargesAndCommits(t *testing.T) {
	svc, store, pid := newTestService(t, 5)
	ctx := context.Background()

	res, err := svc.Place(ctx, pid, 0, 0, "#FF0000")
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if !res.Charged {
		t.Fatal("first placement must be charged")
	}
	if res.NewBalance != 4 {
		t.Fatalf("balance %d, want 4", res.NewBalance)
	}
	if res.Event.Color != "#FF0000" || res.Event.X != 0 || res.Event.Y != 0 {
		t.Fatalf("unexpected event: %+v", res.Event)
	}

	color, err := svc.ColorAt(0, 0)
	if err != nil || color != "#FF0000" {
		t.Fatalf("projection color %q err %v", color, err)
	}

	events, err := store.ListPixelEvents(ctx)
	if err != nil || len(events) != 1 {
		t.Fatalf("expected one logged event, got %d err %v", len(events), err)
	}
}

func TestReassertingSameColorIsFree(t *testing.T) {
	svc, _, pid := newTestService(t, 5)
	ctx := context.Background()

	if _, err := svc.Place(ctx, pid, 0, 0, "#FF0000"); err != nil {
		t.Fatalf("first place: %v", err)
	}

	for i := 0; i < 3; i++ {
		res, err := svc.Place(ctx, pid, 0, 0, "#ff0000")
		if err != nil {
			t.Fatalf("re-place %d: %v", i, err)
		}
		if res.Charged {
			t.Fatalf("re-place %d must be free", i)
		}
		if res.NewBalance != 4 {
			t.Fatalf("re-place %d changed balance: %d", i, res.NewBalance)
		}
	}
}

func TestReassertIsFreeEvenAtZeroBalance(t *testing.T) {
	svc, _, pid := newTestService(t, 1)
	ctx := context.Background()

	if _, err := svc.Place(ctx, pid, 3, 3, "#ABC"); err != nil {
		t.Fatalf("place: %v", err)
	}

	// Balance is now zero; re-asserting the same color must still work.
	res, err := svc.Place(ctx, pid, 3, 3, "#AABBCC")
	if err != nil {
		t.Fatalf("re-place at zero balance: %v", err)
	}
	if res.Charged {
		t.Fatal("re-place must not charge")
	}
}

func TestPlaceInsufficientBalance(t *testing.T) {
	svc, store, pid := newTestService(t, 0)
	ctx := context.Background()

	_, err := svc.Place(ctx, pid, 1, 1, "#00FF00")
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	events, _ := store.ListPixelEvents(ctx)
	if len(events) != 0 {
		t.Fatalf("rejected placement must not append, got %d events", len(events))
	}
	if color, _ := svc.ColorAt(1, 1); color != domain.DefaultColor {
		t.Fatalf("projection mutated on rejection: %s", color)
	}
}

func TestPlaceValidationOrder(t *testing.T) {
	svc, _, pid := newTestService(t, 5)
	ctx := context.Background()

	if _, err := svc.Place(ctx, pid, 128, 0, "#FF0000"); !errors.Is(err, ErrInvalidCoordinate) {
		t.Fatalf("x=128: got %v", err)
	}
	if _, err := svc.Place(ctx, pid, 0, 64, "#FF0000"); !errors.Is(err, ErrInvalidCoordinate) {
		t.Fatalf("y=64: got %v", err)
	}
	if _, err := svc.Place(ctx, pid, 0, 0, "red"); !errors.Is(err, ErrInvalidColor) {
		t.Fatalf("bad color: got %v", err)
	}
	// Out-of-bounds wins over bad color.
	if _, err := svc.Place(ctx, pid, -1, 0, "red"); !errors.Is(err, ErrInvalidCoordinate) {
		t.Fatalf("bounds must be checked first: got %v", err)
	}
	if _, err := svc.Place(ctx, "missing", 0, 0, "#FF0000"); !errors.Is(err, ErrUnknownParticipant) {
		t.Fatalf("unknown participant: got %v", err)
	}
}

// failingEventStore rejects every append.
type failingEventStore struct {
	storage.EventStore
}

func (failingEventStore) AppendPixelEvent(context.Context, domain.PixelEvent) (domain.PixelEvent, error) {
	return domain.PixelEvent{}, errors.New("disk full")
}

func TestFailedAppendRefundsDebit(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	p, err := store.UpsertParticipant(ctx, participant.Participant{ExternalID: 8, DisplayName: "Px", PixelBalance: 3})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	svc := New(failingEventStore{EventStore: store}, store, nil)
	if _, err := svc.Place(ctx, p.ID, 0, 0, "#123456"); err == nil {
		t.Fatal("place must fail when append fails")
	}

	after, err := store.GetParticipant(ctx, p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if after.PixelBalance != 3 {
		t.Fatalf("debit not refunded: balance %d", after.PixelBalance)
	}
	if color, _ := svc.ColorAt(0, 0); color != domain.DefaultColor {
		t.Fatalf("projection mutated after failed append: %s", color)
	}
}

func TestRebuildReconstructsView(t *testing.T) {
	svc, store, pid := newTestService(t, 10)
	ctx := context.Background()

	placements := []struct {
		x, y  int
		color string
	}{
		{0, 0, "#FF0000"},
		{1, 1, "#00FF00"},
		{0, 0, "#0000FF"}, // overwrite
	}
	for _, pl := range placements {
		if _, err := svc.Place(ctx, pid, pl.x, pl.y, pl.color); err != nil {
			t.Fatalf("place: %v", err)
		}
	}

	fresh := New(store, store, nil)
	if err := fresh.Rebuild(ctx); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	if color, _ := fresh.ColorAt(0, 0); color != "#0000FF" {
		t.Fatalf("rebuilt color at (0,0) = %s, want #0000FF", color)
	}
	if color, _ := fresh.ColorAt(1, 1); color != "#00FF00" {
		t.Fatalf("rebuilt color at (1,1) = %s", color)
	}
	if color, _ := fresh.ColorAt(5, 5); color != domain.DefaultColor {
		t.Fatalf("untouched coordinate should be white, got %s", color)
	}
}

func TestSnapshotShape(t *testing.T) {
	svc, _, pid := newTestService(t, 5)
	if _, err := svc.Place(context.Background(), pid, 127, 63, "#FF00FF"); err != nil {
		t.Fatalf("place: %v", err)
	}

	grid := svc.Snapshot()
	if len(grid) != domain.Height {
		t.Fatalf("snapshot rows %d, want %d", len(grid), domain.Height)
	}
	for y, row := range grid {
		if len(row) != domain.Width {
			t.Fatalf("row %d width %d, want %d", y, len(row), domain.Width)
		}
	}
	if grid[63][127] != "#FF00FF" {
		t.Fatalf("corner color %s", grid[63][127])
	}
	if grid[0][0] != domain.DefaultColor {
		t.Fatalf("default color %s", grid[0][0])
	}
}
